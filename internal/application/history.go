package application

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"hubgate/internal/domain"
	"hubgate/internal/metrics"
)

// HistoryAggregator buckets monitoring readings into daily, weekly or monthly
// series. When the reading store fails it asks the platform once.
type HistoryAggregator struct {
	resolver *ConnectionResolver
	readings ReadingRepository
	fallback HistoryAPI
	catalog  DeviceCatalog
	now      func() time.Time
	logger   *slog.Logger
}

// NewHistoryAggregator accepts a nil fallback when no platform endpoint is configured.
func NewHistoryAggregator(resolver *ConnectionResolver, readings ReadingRepository, fallback HistoryAPI, catalog DeviceCatalog, logger *slog.Logger) *HistoryAggregator {
	return &HistoryAggregator{
		resolver: resolver,
		readings: readings,
		fallback: fallback,
		catalog:  catalog,
		now:      time.Now,
		logger:   logger,
	}
}

// WithClock replaces the clock used to anchor lookback windows.
func (a *HistoryAggregator) WithClock(now func() time.Time) *HistoryAggregator {
	a.now = now
	return a
}

// FetchHistory reads the entity's series. Tenants only see entities in their
// device list for mode.
func (a *HistoryAggregator) FetchHistory(ctx context.Context, userID int64, mode domain.Mode, entityID string, bucket domain.Bucket) (*domain.HistoryResult, error) {
	if strings.TrimSpace(entityID) == "" {
		return nil, domain.NewError(domain.KindInvalidInput, "Choose a sensor to see its history.")
	}

	relations, conn, err := a.resolver.Resolve(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := requireVisible(ctx, a.catalog, relations, mode, entityID); err != nil {
		return nil, err
	}

	since := a.now().UTC().AddDate(0, 0, -bucket.LookbackDays())
	readings, err := a.readings.ListReadings(ctx, conn.ID, entityID, since)
	if err != nil {
		a.logger.Warn("reading store failed, trying history fallback",
			"user_id", userID,
			"entity_id", entityID,
			"error", err,
		)
		return a.fromFallback(ctx, userID, entityID, bucket)
	}

	metrics.HistorySources.WithLabelValues("store").Inc()
	return Aggregate(readings, bucket), nil
}

func (a *HistoryAggregator) fromFallback(ctx context.Context, userID int64, entityID string, bucket domain.Bucket) (*domain.HistoryResult, error) {
	if a.fallback == nil {
		metrics.HistorySources.WithLabelValues("failed").Inc()
		return nil, domain.NewError(domain.KindUnableToLoad, domain.MsgHistoryUnavailable)
	}

	result, err := a.fallback.FetchHistory(ctx, userID, entityID, bucket)
	if err != nil {
		metrics.HistorySources.WithLabelValues("failed").Inc()
		return nil, domain.WrapError(domain.KindUnableToLoad, domain.MsgHistoryUnavailable, err)
	}

	metrics.HistorySources.WithLabelValues("fallback").Inc()
	return result, nil
}

type bucketAcc struct {
	slot  domain.BucketSlot
	sum   float64
	count int
}

// Aggregate groups readings by bucket. Energy units are summed, everything
// else is averaged. The unit is the first non-empty one seen.
func Aggregate(readings []domain.MonitoringReading, bucket domain.Bucket) *domain.HistoryResult {
	var unit *string
	groups := make(map[string]*bucketAcc)

	for _, r := range readings {
		if unit == nil && r.Unit != nil && strings.TrimSpace(*r.Unit) != "" {
			u := *r.Unit
			unit = &u
		}
		if r.NumericValue == nil {
			continue
		}

		slot := domain.SlotFor(bucket, r.CapturedAt)
		acc, ok := groups[slot.Key]
		if !ok {
			acc = &bucketAcc{slot: slot}
			groups[slot.Key] = acc
		}
		acc.sum += *r.NumericValue
		acc.count++
	}

	sum := unit != nil && domain.IsEnergyUnit(*unit)

	points := make([]domain.HistoryPoint, 0, len(groups))
	for _, acc := range groups {
		value := acc.sum
		if !sum {
			value = acc.sum / float64(acc.count)
		}
		points = append(points, domain.HistoryPoint{
			Key:         acc.slot.Key,
			BucketStart: acc.slot.Start,
			Label:       acc.slot.Label,
			Value:       value,
			Count:       acc.count,
		})
	}

	sort.Slice(points, func(i, j int) bool {
		return points[i].BucketStart.Before(points[j].BucketStart)
	})

	return &domain.HistoryResult{Unit: unit, Points: points}
}
