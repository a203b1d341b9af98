package application

import (
	"context"
	"time"

	"hubgate/internal/domain"
)

// UserRepository reads users and writes their connection link.
// GetUser returns a KindNotFound error for unknown ids.
type UserRepository interface {
	GetUser(ctx context.Context, id int64) (*domain.User, error)
	ListAccessRules(ctx context.Context, userID int64) ([]domain.AccessRule, error)
	FindAdmin(ctx context.Context) (*domain.User, error)
	SetConnectionID(ctx context.Context, userID, connectionID int64) (*domain.User, error)
	ConnectionUsers
}

// ConnectionUsers lists the users linked to a connection.
type ConnectionUsers interface {
	ListConnectionUsers(ctx context.Context, connectionID int64) ([]domain.User, error)
}

// ConnectionRepository lookups return nil, nil when no row matches.
type ConnectionRepository interface {
	GetConnection(ctx context.Context, id int64) (*domain.Connection, error)
	GetConnectionByOwner(ctx context.Context, ownerID int64) (*domain.Connection, error)
	UpdateConnection(ctx context.Context, id int64, update domain.ConnectionUpdate) (*domain.Connection, error)
}

type OverrideRepository interface {
	ListOverrides(ctx context.Context, connectionID int64) ([]domain.DeviceOverride, error)
	SaveOverride(ctx context.Context, override domain.DeviceOverride) (*domain.DeviceOverride, error)
}

type ReadingRepository interface {
	ListReadings(ctx context.Context, connectionID int64, entityID string, since time.Time) ([]domain.MonitoringReading, error)
}

// Store bundles the repositories of one relational backend.
type Store struct {
	Users       UserRepository
	Connections ConnectionRepository
	Overrides   OverrideRepository
	Readings    ReadingRepository
}
