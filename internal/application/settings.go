package application

import (
	"context"
	"log/slog"
	"strings"

	"hubgate/internal/domain"
	"hubgate/internal/validation"
)

const msgAdminOnly = "Only the homeowner can change hub settings."

// HubSettings is an admin's edit of the shared connection. A nil CloudURL
// leaves it untouched and a blank one clears it; blank secrets are kept.
type HubSettings struct {
	Username       string  `validate:"required" label:"hub username"`
	BaseURL        string  `validate:"required" label:"hub URL"`
	CloudURL       *string `label:"cloud URL"`
	Password       string  `label:"hub password"`
	LongLivedToken string  `label:"access token"`
}

// OverrideEdit replaces the display metadata of one entity. Nil fields are
// stored as null and fall back to hub values.
type OverrideEdit struct {
	EntityID string  `validate:"required" label:"device"`
	Name     *string `validate:"omitempty,max=120" label:"name"`
	Area     *string `validate:"omitempty,max=120" label:"area"`
	Label    *string `validate:"omitempty,max=60" label:"label"`
}

type OverrideSaver interface {
	SaveOverride(ctx context.Context, override domain.DeviceOverride) (*domain.DeviceOverride, error)
}

// Settings holds the admin-only writes. Every write clears the cached device
// lists of everyone sharing the connection.
type Settings struct {
	resolver  *ConnectionResolver
	users     ConnectionUsers
	conns     ConnectionRepository
	overrides OverrideSaver
	cache     CacheInvalidator
	logger    *slog.Logger
}

func NewSettings(
	resolver *ConnectionResolver,
	users ConnectionUsers,
	conns ConnectionRepository,
	overrides OverrideSaver,
	cache CacheInvalidator,
	logger *slog.Logger,
) *Settings {
	return &Settings{
		resolver:  resolver,
		users:     users,
		conns:     conns,
		overrides: overrides,
		cache:     cache,
		logger:    logger,
	}
}

// Connection returns the connection that applies to userID.
func (s *Settings) Connection(ctx context.Context, userID int64) (*domain.Connection, error) {
	_, conn, err := s.resolver.Resolve(ctx, userID)
	return conn, err
}

func (s *Settings) UpdateHubSettings(ctx context.Context, adminID int64, in HubSettings) (*domain.Connection, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	update, err := connectionUpdate(in)
	if err != nil {
		return nil, err
	}

	conn, err := s.adminConnection(ctx, adminID)
	if err != nil {
		return nil, err
	}

	updated, err := s.conns.UpdateConnection(ctx, conn.ID, update)
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, adminID, conn.ID)
	s.logger.Info("hub settings updated", "user_id", adminID, "connection_id", conn.ID)
	return updated, nil
}

func (s *Settings) SaveOverride(ctx context.Context, adminID int64, in OverrideEdit) (*domain.DeviceOverride, error) {
	in.EntityID = strings.TrimSpace(in.EntityID)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	conn, err := s.adminConnection(ctx, adminID)
	if err != nil {
		return nil, err
	}

	saved, err := s.overrides.SaveOverride(ctx, domain.DeviceOverride{
		ConnectionID: conn.ID,
		EntityID:     in.EntityID,
		Name:         trimmed(in.Name),
		Area:         trimmed(in.Area),
		Label:        trimmed(in.Label),
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, adminID, conn.ID)
	s.logger.Info("device override saved", "user_id", adminID, "entity_id", in.EntityID)
	return saved, nil
}

// invalidate clears the admin's lists and those of every user linked to the
// connection. Tenants that were never linked have nothing cached.
func (s *Settings) invalidate(ctx context.Context, adminID, connectionID int64) {
	s.cache.ClearAll(ctx, adminID)

	users, err := s.users.ListConnectionUsers(ctx, connectionID)
	if err != nil {
		s.logger.Warn("listing connection users failed, their cached lists expire on their own",
			"connection_id", connectionID,
			"error", err,
		)
		return
	}
	for _, u := range users {
		if u.ID != adminID {
			s.cache.ClearAll(ctx, u.ID)
		}
	}
}

func (s *Settings) adminConnection(ctx context.Context, userID int64) (*domain.Connection, error) {
	relations, conn, err := s.resolver.Resolve(ctx, userID)
	if err != nil {
		return nil, err
	}
	if relations.User.Role != domain.RoleAdmin {
		return nil, domain.NewError(domain.KindInvalidInput, msgAdminOnly)
	}
	return conn, nil
}

func connectionUpdate(in HubSettings) (domain.ConnectionUpdate, error) {
	base, err := domain.NormalizeBaseURL(in.BaseURL)
	if err != nil {
		return domain.ConnectionUpdate{}, err
	}

	username := strings.TrimSpace(in.Username)
	update := domain.ConnectionUpdate{Username: &username, BaseURL: &base}

	if in.CloudURL != nil {
		if strings.TrimSpace(*in.CloudURL) == "" {
			update.ClearCloudURL = true
		} else {
			cloud, err := domain.NormalizeBaseURL(*in.CloudURL)
			if err != nil {
				return domain.ConnectionUpdate{}, err
			}
			update.CloudURL = &cloud
		}
	}

	if p := in.Password; strings.TrimSpace(p) != "" {
		update.Password = &p
	}
	if t := strings.TrimSpace(in.LongLivedToken); t != "" {
		update.LongLivedToken = &t
	}

	return update, nil
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
