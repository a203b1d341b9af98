package postgrest

import (
	"context"
	"errors"
	"time"

	"hubgate/internal/domain"
)

const (
	tableUser       = "User"
	tableAccessRule = "AccessRule"
	tableConnection = "HaConnection"
	tableDevice     = "Device"
	tableReading    = "MonitoringReading"

	userSelect    = "id,username,role,haConnectionId"
	readingSelect = "entityId,haConnectionId,capturedAt,unit,numericValue"
)

// Store implements the repository ports over a PostgREST endpoint.
type Store struct {
	client *Client
}

func NewStore(client *Client) *Store {
	return &Store{client: client}
}

func (s *Store) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	users, err := Select[domain.User](ctx, s.client, tableUser, Query{
		Filters: []Filter{Eq("id", id)},
		Select:  userSelect,
		Limit:   1,
	})
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, domain.NewError(domain.KindNotFound, domain.MsgUserNotFound)
	}
	return &users[0], nil
}

func (s *Store) ListAccessRules(ctx context.Context, userID int64) ([]domain.AccessRule, error) {
	return Select[domain.AccessRule](ctx, s.client, tableAccessRule, Query{
		Filters: []Filter{Eq("userId", userID)},
		Order:   "id.asc",
	})
}

func (s *Store) FindAdmin(ctx context.Context) (*domain.User, error) {
	users, err := Select[domain.User](ctx, s.client, tableUser, Query{
		Filters: []Filter{Eq("role", domain.RoleAdmin)},
		Select:  userSelect,
		Order:   "id.asc",
		Limit:   1,
	})
	if err != nil || len(users) == 0 {
		return nil, err
	}
	return &users[0], nil
}

func (s *Store) ListConnectionUsers(ctx context.Context, connectionID int64) ([]domain.User, error) {
	return Select[domain.User](ctx, s.client, tableUser, Query{
		Filters: []Filter{Eq("haConnectionId", connectionID)},
		Select:  userSelect,
		Order:   "id.asc",
	})
}

func (s *Store) SetConnectionID(ctx context.Context, userID, connectionID int64) (*domain.User, error) {
	user, err := Update[domain.User](ctx, s.client, tableUser,
		[]Filter{Eq("id", userID)},
		map[string]any{"haConnectionId": connectionID},
	)
	if errors.Is(err, ErrNoRows) {
		return nil, domain.NewError(domain.KindNotFound, domain.MsgUserNotFound)
	}
	return user, err
}

func (s *Store) GetConnection(ctx context.Context, id int64) (*domain.Connection, error) {
	return s.oneConnection(ctx, Eq("id", id))
}

func (s *Store) GetConnectionByOwner(ctx context.Context, ownerID int64) (*domain.Connection, error) {
	return s.oneConnection(ctx, Eq("ownerId", ownerID))
}

func (s *Store) oneConnection(ctx context.Context, filter Filter) (*domain.Connection, error) {
	conns, err := Select[domain.Connection](ctx, s.client, tableConnection, Query{
		Filters: []Filter{filter},
		Order:   "id.asc",
		Limit:   1,
	})
	if err != nil || len(conns) == 0 {
		return nil, err
	}
	return &conns[0], nil
}

func (s *Store) UpdateConnection(ctx context.Context, id int64, update domain.ConnectionUpdate) (*domain.Connection, error) {
	body := map[string]any{}
	if update.Username != nil {
		body["haUsername"] = *update.Username
	}
	if update.BaseURL != nil {
		body["baseUrl"] = *update.BaseURL
	}
	if update.ClearCloudURL {
		body["cloudUrl"] = nil
	} else if update.CloudURL != nil {
		body["cloudUrl"] = *update.CloudURL
	}
	if update.Password != nil {
		body["haPassword"] = *update.Password
	}
	if update.LongLivedToken != nil {
		body["longLivedToken"] = *update.LongLivedToken
	}

	var (
		conn *domain.Connection
		err  error
	)
	if len(body) == 0 {
		conn, err = s.GetConnection(ctx, id)
		if err == nil && conn == nil {
			err = ErrNoRows
		}
	} else {
		conn, err = Update[domain.Connection](ctx, s.client, tableConnection, []Filter{Eq("id", id)}, body)
	}
	if errors.Is(err, ErrNoRows) {
		return nil, domain.NewError(domain.KindNotFound, domain.MsgConnectionNotConfigured)
	}
	return conn, err
}

func (s *Store) ListOverrides(ctx context.Context, connectionID int64) ([]domain.DeviceOverride, error) {
	return Select[domain.DeviceOverride](ctx, s.client, tableDevice, Query{
		Filters: []Filter{Eq("haConnectionId", connectionID)},
	})
}

func (s *Store) SaveOverride(ctx context.Context, o domain.DeviceOverride) (*domain.DeviceOverride, error) {
	body := map[string]any{
		"haConnectionId": o.ConnectionID,
		"entityId":       o.EntityID,
		"name":           o.Name,
		"area":           o.Area,
		"label":          o.Label,
	}
	saved, err := Upsert[domain.DeviceOverride](ctx, s.client, tableDevice, body, "haConnectionId,entityId")
	if errors.Is(err, ErrNoRows) {
		return nil, domain.WrapError(domain.KindServer, domain.MsgStoreUnavailable, err)
	}
	return saved, err
}

// readingRow keeps capturedAt raw so one malformed timestamp only drops its
// own reading.
type readingRow struct {
	EntityID     string   `json:"entityId"`
	ConnectionID int64    `json:"haConnectionId"`
	CapturedAt   string   `json:"capturedAt"`
	Unit         *string  `json:"unit"`
	NumericValue *float64 `json:"numericValue"`
}

// Timestamps come back with an offset, or without one for columns declared
// without a time zone.
var capturedAtLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999"}

func parseCapturedAt(raw string) (time.Time, bool) {
	for _, layout := range capturedAtLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func (s *Store) ListReadings(ctx context.Context, connectionID int64, entityID string, since time.Time) ([]domain.MonitoringReading, error) {
	rows, err := Select[readingRow](ctx, s.client, tableReading, Query{
		Filters: []Filter{
			Eq("haConnectionId", connectionID),
			Eq("entityId", entityID),
			Gte("capturedAt", since),
		},
		Select: readingSelect,
		Order:  "capturedAt.asc",
	})
	if err != nil {
		return nil, err
	}

	readings := make([]domain.MonitoringReading, 0, len(rows))
	for _, row := range rows {
		at, ok := parseCapturedAt(row.CapturedAt)
		if !ok {
			continue
		}
		readings = append(readings, domain.MonitoringReading{
			EntityID:     row.EntityID,
			ConnectionID: row.ConnectionID,
			CapturedAt:   at,
			Unit:         row.Unit,
			NumericValue: row.NumericValue,
		})
	}
	return readings, nil
}
