package postgres

import (
	"context"
	"database/sql"
	"time"

	"hubgate/internal/domain"
)

const overrideColumns = `id, "haConnectionId", "entityId", name, area, label`

func scanOverride(row rowScanner) (*domain.DeviceOverride, error) {
	var (
		o                 domain.DeviceOverride
		name, area, label sql.NullString
	)
	if err := row.Scan(&o.ID, &o.ConnectionID, &o.EntityID, &name, &area, &label); err != nil {
		return nil, err
	}
	o.Name = nullString(name)
	o.Area = nullString(area)
	o.Label = nullString(label)
	return &o, nil
}

func (s *Store) ListOverrides(ctx context.Context, connectionID int64) ([]domain.DeviceOverride, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+overrideColumns+` FROM "Device" WHERE "haConnectionId" = $1`, connectionID)
	if err != nil {
		return nil, s.storeError("querying overrides", err)
	}
	defer rows.Close()

	overrides := make([]domain.DeviceOverride, 0)
	for rows.Next() {
		o, err := scanOverride(rows)
		if err != nil {
			return nil, s.storeError("scanning override", err)
		}
		overrides = append(overrides, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, s.storeError("iterating overrides", err)
	}
	return overrides, nil
}

// SaveOverride upserts on (haConnectionId, entityId).
func (s *Store) SaveOverride(ctx context.Context, o domain.DeviceOverride) (*domain.DeviceOverride, error) {
	row := s.db.QueryRowContext(ctx, `INSERT INTO "Device" ("haConnectionId", "entityId", name, area, label)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT ("haConnectionId", "entityId") DO UPDATE
SET name = EXCLUDED.name, area = EXCLUDED.area, label = EXCLUDED.label
RETURNING `+overrideColumns,
		o.ConnectionID, o.EntityID, o.Name, o.Area, o.Label,
	)
	saved, err := scanOverride(row)
	if err != nil {
		return nil, s.storeError("saving override", err)
	}
	return saved, nil
}

func (s *Store) ListReadings(ctx context.Context, connectionID int64, entityID string, since time.Time) ([]domain.MonitoringReading, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT "entityId", "haConnectionId", "capturedAt", unit, "numericValue"
FROM "MonitoringReading"
WHERE "haConnectionId" = $1 AND "entityId" = $2 AND "capturedAt" >= $3
ORDER BY "capturedAt"`,
		connectionID, entityID, since,
	)
	if err != nil {
		return nil, s.storeError("querying readings", err)
	}
	defer rows.Close()

	readings := make([]domain.MonitoringReading, 0)
	for rows.Next() {
		var (
			r     domain.MonitoringReading
			unit  sql.NullString
			value sql.NullFloat64
		)
		if err := rows.Scan(&r.EntityID, &r.ConnectionID, &r.CapturedAt, &unit, &value); err != nil {
			return nil, s.storeError("scanning reading", err)
		}
		r.Unit = nullString(unit)
		r.NumericValue = nullFloat64(value)
		readings = append(readings, r)
	}
	if err := rows.Err(); err != nil {
		return nil, s.storeError("iterating readings", err)
	}
	return readings, nil
}
