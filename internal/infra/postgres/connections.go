package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"hubgate/internal/domain"
)

const connectionColumns = `id, "haUsername", "baseUrl", "cloudUrl", "haPassword", "longLivedToken", "ownerId"`

func scanConnection(row rowScanner) (*domain.Connection, error) {
	var (
		c        domain.Connection
		cloudURL sql.NullString
		ownerID  sql.NullInt64
	)
	if err := row.Scan(&c.ID, &c.Username, &c.BaseURL, &cloudURL, &c.Password, &c.LongLivedToken, &ownerID); err != nil {
		return nil, err
	}
	c.CloudURL = nullString(cloudURL)
	c.OwnerID = ownerID.Int64
	return &c, nil
}

func (s *Store) GetConnection(ctx context.Context, id int64) (*domain.Connection, error) {
	return s.oneConnection(ctx, "querying connection",
		`SELECT `+connectionColumns+` FROM "HaConnection" WHERE id = $1 LIMIT 1`, id)
}

func (s *Store) GetConnectionByOwner(ctx context.Context, ownerID int64) (*domain.Connection, error) {
	return s.oneConnection(ctx, "querying owned connection",
		`SELECT `+connectionColumns+` FROM "HaConnection" WHERE "ownerId" = $1 ORDER BY id LIMIT 1`, ownerID)
}

func (s *Store) oneConnection(ctx context.Context, op, query string, arg int64) (*domain.Connection, error) {
	c, err := scanConnection(s.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, s.storeError(op, err)
	}
	return c, nil
}

// UpdateConnection patches only the columns present in update and returns
// the written row.
func (s *Store) UpdateConnection(ctx context.Context, id int64, update domain.ConnectionUpdate) (*domain.Connection, error) {
	var (
		sets []string
		args []any
	)
	set := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf(`"%s" = $%d`, column, len(args)))
	}

	if update.Username != nil {
		set("haUsername", *update.Username)
	}
	if update.BaseURL != nil {
		set("baseUrl", *update.BaseURL)
	}
	if update.ClearCloudURL {
		set("cloudUrl", nil)
	} else if update.CloudURL != nil {
		set("cloudUrl", *update.CloudURL)
	}
	if update.Password != nil {
		set("haPassword", *update.Password)
	}
	if update.LongLivedToken != nil {
		set("longLivedToken", *update.LongLivedToken)
	}

	if len(sets) == 0 {
		c, err := s.GetConnection(ctx, id)
		if err == nil && c == nil {
			return nil, domain.NewError(domain.KindNotFound, domain.MsgConnectionNotConfigured)
		}
		return c, err
	}

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE "HaConnection" SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), connectionColumns)

	c, err := scanConnection(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewError(domain.KindNotFound, domain.MsgConnectionNotConfigured)
	}
	if err != nil {
		return nil, s.storeError("updating connection", err)
	}
	return c, nil
}
