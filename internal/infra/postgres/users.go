package postgres

import (
	"context"
	"database/sql"
	"errors"

	"hubgate/internal/domain"
)

const userColumns = `id, username, role, "haConnectionId"`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	var (
		u      domain.User
		role   string
		connID sql.NullInt64
	)
	if err := row.Scan(&u.ID, &u.Username, &role, &connID); err != nil {
		return nil, err
	}
	u.Role = domain.Role(role)
	u.ConnectionID = nullInt64(connID)
	return &u, nil
}

func (s *Store) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM "User" WHERE id = $1 LIMIT 1`, id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewError(domain.KindNotFound, domain.MsgUserNotFound)
	}
	if err != nil {
		return nil, s.storeError("querying user", err)
	}
	return u, nil
}

func (s *Store) ListAccessRules(ctx context.Context, userID int64) ([]domain.AccessRule, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, "userId", area FROM "AccessRule" WHERE "userId" = $1 ORDER BY id`, userID)
	if err != nil {
		return nil, s.storeError("querying access rules", err)
	}
	defer rows.Close()

	rules := make([]domain.AccessRule, 0)
	for rows.Next() {
		var r domain.AccessRule
		if err := rows.Scan(&r.ID, &r.UserID, &r.Area); err != nil {
			return nil, s.storeError("scanning access rule", err)
		}
		rules = append(rules, r)
	}
	if err := rows.Err(); err != nil {
		return nil, s.storeError("iterating access rules", err)
	}
	return rules, nil
}

// FindAdmin returns the lowest-id admin, or nil when there is none.
func (s *Store) FindAdmin(ctx context.Context) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM "User" WHERE role = $1 ORDER BY id LIMIT 1`, string(domain.RoleAdmin))
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, s.storeError("querying admin", err)
	}
	return u, nil
}

// ListConnectionUsers returns the users linked to a connection.
func (s *Store) ListConnectionUsers(ctx context.Context, connectionID int64) ([]domain.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM "User" WHERE "haConnectionId" = $1 ORDER BY id`, connectionID)
	if err != nil {
		return nil, s.storeError("querying connection users", err)
	}
	defer rows.Close()

	users := make([]domain.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, s.storeError("scanning connection user", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, s.storeError("iterating connection users", err)
	}
	return users, nil
}

func (s *Store) SetConnectionID(ctx context.Context, userID, connectionID int64) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx,
		`UPDATE "User" SET "haConnectionId" = $1 WHERE id = $2 RETURNING `+userColumns,
		connectionID, userID,
	)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewError(domain.KindNotFound, domain.MsgUserNotFound)
	}
	if err != nil {
		return nil, s.storeError("linking user connection", err)
	}
	return u, nil
}
