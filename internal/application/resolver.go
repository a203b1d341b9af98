package application

import (
	"context"
	"log/slog"

	"hubgate/internal/domain"
)

// ConnectionResolver finds the hub connection that applies to a user.
// Tenants never own a connection; on first resolution they inherit the
// admin's one and the link is written back so later resolutions short-circuit.
type ConnectionResolver struct {
	users  UserRepository
	conns  ConnectionRepository
	logger *slog.Logger
}

func NewConnectionResolver(users UserRepository, conns ConnectionRepository, logger *slog.Logger) *ConnectionResolver {
	return &ConnectionResolver{
		users:  users,
		conns:  conns,
		logger: logger,
	}
}

func (r *ConnectionResolver) Resolve(ctx context.Context, userID int64) (*domain.UserRelations, *domain.Connection, error) {
	relations, err := r.loadRelations(ctx, userID)
	if err != nil {
		return nil, nil, err
	}

	conn, err := r.lookup(ctx, relations.User)
	if err != nil {
		return nil, nil, err
	}

	if conn == nil && relations.User.Role == domain.RoleTenant {
		conn, err = r.inherit(ctx, relations.User)
		if err != nil {
			return nil, nil, err
		}
		if conn != nil {
			relations, err = r.loadRelations(ctx, userID)
			if err != nil {
				return nil, nil, err
			}
		}
	}

	if conn == nil {
		return nil, nil, domain.NewError(domain.KindConnectionMissing, domain.MsgConnectionNotConfigured)
	}

	return relations, conn, nil
}

func (r *ConnectionResolver) loadRelations(ctx context.Context, userID int64) (*domain.UserRelations, error) {
	user, err := r.users.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	rules, err := r.users.ListAccessRules(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &domain.UserRelations{User: *user, AccessRules: rules}, nil
}

// lookup tries the linked connection id, then ownership for admins.
func (r *ConnectionResolver) lookup(ctx context.Context, user domain.User) (*domain.Connection, error) {
	if user.ConnectionID != nil {
		conn, err := r.conns.GetConnection(ctx, *user.ConnectionID)
		if err != nil {
			return nil, err
		}
		if conn != nil {
			return conn, nil
		}
	}

	if user.Role == domain.RoleAdmin {
		return r.conns.GetConnectionByOwner(ctx, user.ID)
	}

	return nil, nil
}

// inherit links tenant to the admin's connection, backfilling the admin's own
// link when it was only found by ownership.
func (r *ConnectionResolver) inherit(ctx context.Context, tenant domain.User) (*domain.Connection, error) {
	admin, err := r.users.FindAdmin(ctx)
	if err != nil {
		return nil, err
	}
	if admin == nil {
		return nil, nil
	}

	conn, err := r.lookup(ctx, *admin)
	if err != nil {
		return nil, err
	}
	if conn == nil {
		return nil, nil
	}

	if _, err := r.users.SetConnectionID(ctx, tenant.ID, conn.ID); err != nil {
		return nil, err
	}

	if admin.ConnectionID == nil {
		if _, err := r.users.SetConnectionID(ctx, admin.ID, conn.ID); err != nil {
			return nil, err
		}
	}

	r.logger.Info("tenant linked to admin connection",
		"user_id", tenant.ID,
		"admin_id", admin.ID,
		"connection_id", conn.ID,
	)

	return conn, nil
}
