package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"hubgate/internal/domain"
)

type Config struct {
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
}

// Open connects and pings the database.
func Open(ctx context.Context, cfg Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return db, nil
}

// Store implements every repository port over one *sql.DB. Tables use the
// quoted camelCase names shared with the rest of the platform.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewStore(db *sql.DB, logger *slog.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// storeError hides driver details behind the user-facing store message.
func (s *Store) storeError(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		s.logger.Error("database error",
			"operation", op,
			"code", string(pqErr.Code),
			"error", pqErr.Message,
		)
	} else {
		s.logger.Error("database error", "operation", op, "error", err)
	}
	return domain.WrapError(domain.KindServer, domain.MsgStoreUnavailable, fmt.Errorf("%s: %w", op, err))
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func nullInt64(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func nullFloat64(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}
