package application

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"hubgate/internal/domain"
	"hubgate/internal/metrics"
)

type ProbeTimeouts struct {
	Home  time.Duration
	Cloud time.Duration
}

func DefaultProbeTimeouts() ProbeTimeouts {
	return ProbeTimeouts{Home: 2 * time.Second, Cloud: 4 * time.Second}
}

func (p ProbeTimeouts) For(mode domain.Mode) time.Duration {
	if mode == domain.ModeCloud {
		return p.Cloud
	}
	return p.Home
}

// Synchronizer produces the authoritative device list for one user and mode.
type Synchronizer struct {
	resolver  *ConnectionResolver
	hub       HubGateway
	overrides OverrideRepository
	probes    ProbeTimeouts
	logger    *slog.Logger
}

func NewSynchronizer(
	resolver *ConnectionResolver,
	hub HubGateway,
	overrides OverrideRepository,
	probes ProbeTimeouts,
	logger *slog.Logger,
) *Synchronizer {
	return &Synchronizer{
		resolver:  resolver,
		hub:       hub,
		overrides: overrides,
		probes:    probes,
		logger:    logger,
	}
}

func (s *Synchronizer) ListDevices(ctx context.Context, userID int64, mode domain.Mode) ([]domain.UIDevice, error) {
	start := time.Now()
	devices, err := s.listDevices(ctx, userID, mode)
	metrics.ObserveSync(string(mode), start, err)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("devices synchronized",
		"user_id", userID,
		"mode", mode,
		"devices", len(devices),
		"duration", time.Since(start),
	)
	return devices, nil
}

func (s *Synchronizer) listDevices(ctx context.Context, userID int64, mode domain.Mode) ([]domain.UIDevice, error) {
	relations, conn, err := s.resolver.Resolve(ctx, userID)
	if err != nil {
		return nil, err
	}

	handle, ok := conn.Handle(mode)
	if !ok {
		return []domain.UIDevice{}, nil
	}

	if !s.hub.Probe(ctx, handle, s.probes.For(mode)) {
		return nil, unreachable(mode)
	}

	var (
		enriched  []domain.EnrichedDevice
		overrides []domain.DeviceOverride
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		enriched, err = s.fetchEnriched(gctx, handle)
		return err
	})
	g.Go(func() error {
		var err error
		overrides, err = s.overrides.ListOverrides(gctx, conn.ID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	devices := ApplyOverrides(enriched, overrides)
	if relations.User.Role == domain.RoleTenant {
		devices = FilterForTenant(devices, relations.AllowedAreas())
	}

	return devices, nil
}

// fetchEnriched treats metadata as best effort: a failed template query
// leaves devices without area and labels instead of failing the sync.
func (s *Synchronizer) fetchEnriched(ctx context.Context, h domain.HubHandle) ([]domain.EnrichedDevice, error) {
	states, err := s.hub.FetchAllStates(ctx, h)
	if err != nil {
		return nil, err
	}

	meta, err := s.hub.FetchMetadata(ctx, h)
	if err != nil {
		s.logger.Warn("device metadata unavailable, continuing without it", "error", err)
		meta = nil
	}

	return EnrichDevices(states, meta), nil
}

func unreachable(mode domain.Mode) error {
	if mode == domain.ModeCloud {
		return domain.NewError(domain.KindConnectionMissing, domain.MsgCloudUnreachable)
	}
	return domain.NewError(domain.KindConnectionMissing, domain.MsgHomeUnreachable)
}
