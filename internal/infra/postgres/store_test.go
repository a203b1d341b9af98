package postgres

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hubgate/internal/domain"
)

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *Store) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	store := NewStore(db, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return db, mock, store
}

var (
	userCols       = []string{"id", "username", "role", "haConnectionId"}
	connectionCols = []string{"id", "haUsername", "baseUrl", "cloudUrl", "haPassword", "longLivedToken", "ownerId"}
	overrideCols   = []string{"id", "haConnectionId", "entityId", "name", "area", "label"}
)

func TestGetUser_Success(t *testing.T) {
	db, mock, store := setupMockDB(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM "User" WHERE id = $1`)).
		WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(2, "tenant", "TENANT", nil))

	user, err := store.GetUser(context.Background(), 2)

	require.NoError(t, err)
	assert.Equal(t, "tenant", user.Username)
	assert.Equal(t, domain.RoleTenant, user.Role)
	assert.Nil(t, user.ConnectionID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUser_NotFound(t *testing.T) {
	db, mock, store := setupMockDB(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM "User" WHERE id = $1`)).
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows(userCols))

	_, err := store.GetUser(context.Background(), 9)

	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUser_DriverErrorIsHidden(t *testing.T) {
	db, mock, store := setupMockDB(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM "User"`)).
		WillReturnError(&pq.Error{Code: "42P01", Message: `relation "User" does not exist`})

	_, err := store.GetUser(context.Background(), 1)

	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindServer))
	assert.Equal(t, domain.MsgStoreUnavailable, err.Error())

	var pqErr *pq.Error
	assert.True(t, errors.As(err, &pqErr))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListConnectionUsers(t *testing.T) {
	db, mock, store := setupMockDB(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM "User" WHERE "haConnectionId" = $1 ORDER BY id`)).
		WithArgs(int64(10)).
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow(1, "owner", "ADMIN", 10).
			AddRow(2, "tenant", "TENANT", 10))

	users, err := store.ListConnectionUsers(context.Background(), 10)

	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, int64(2), users[1].ID)
	assert.Equal(t, domain.RoleTenant, users[1].Role)
	assert.Equal(t, int64(10), *users[1].ConnectionID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListAccessRules(t *testing.T) {
	db, mock, store := setupMockDB(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM "AccessRule" WHERE "userId" = $1 ORDER BY id`)).
		WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "userId", "area"}).
			AddRow(1, 2, "Kitchen").
			AddRow(4, 2, "Hall"))

	rules, err := store.ListAccessRules(context.Background(), 2)

	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, "Kitchen", rules[0].Area)
	assert.Equal(t, "Hall", rules[1].Area)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListAccessRules_EmptyIsNotNil(t *testing.T) {
	db, mock, store := setupMockDB(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM "AccessRule"`)).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "userId", "area"}))

	rules, err := store.ListAccessRules(context.Background(), 3)

	require.NoError(t, err)
	assert.NotNil(t, rules)
	assert.Empty(t, rules)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindAdmin(t *testing.T) {
	db, mock, store := setupMockDB(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM "User" WHERE role = $1 ORDER BY id LIMIT 1`)).
		WithArgs("ADMIN").
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(1, "owner", "ADMIN", 10))

	admin, err := store.FindAdmin(context.Background())

	require.NoError(t, err)
	require.NotNil(t, admin.ConnectionID)
	assert.Equal(t, int64(10), *admin.ConnectionID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindAdmin_None(t *testing.T) {
	db, mock, store := setupMockDB(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM "User" WHERE role = $1`)).
		WithArgs("ADMIN").
		WillReturnRows(sqlmock.NewRows(userCols))

	admin, err := store.FindAdmin(context.Background())

	require.NoError(t, err)
	assert.Nil(t, admin)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetConnectionID(t *testing.T) {
	db, mock, store := setupMockDB(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE "User" SET "haConnectionId" = $1 WHERE id = $2 RETURNING`)).
		WithArgs(int64(10), int64(2)).
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(2, "tenant", "TENANT", 10))

	user, err := store.SetConnectionID(context.Background(), 2, 10)

	require.NoError(t, err)
	require.NotNil(t, user.ConnectionID)
	assert.Equal(t, int64(10), *user.ConnectionID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetConnection_Missing(t *testing.T) {
	db, mock, store := setupMockDB(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM "HaConnection" WHERE id = $1`)).
		WithArgs(int64(10)).
		WillReturnRows(sqlmock.NewRows(connectionCols))

	conn, err := store.GetConnection(context.Background(), 10)

	require.NoError(t, err)
	assert.Nil(t, conn)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetConnectionByOwner(t *testing.T) {
	db, mock, store := setupMockDB(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM "HaConnection" WHERE "ownerId" = $1`)).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows(connectionCols).
			AddRow(10, "hub", "http://192.168.1.10:8123", nil, "secret", "token", 1))

	conn, err := store.GetConnectionByOwner(context.Background(), 1)

	require.NoError(t, err)
	require.NotNil(t, conn)
	assert.Equal(t, "http://192.168.1.10:8123", conn.BaseURL)
	assert.Nil(t, conn.CloudURL)
	assert.Equal(t, int64(1), conn.OwnerID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateConnection_OnlyProvidedColumns(t *testing.T) {
	db, mock, store := setupMockDB(t)
	defer db.Close()

	base := "https://hub.example.com"
	token := "fresh"

	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE "HaConnection" SET "baseUrl" = $1, "cloudUrl" = $2, "longLivedToken" = $3 WHERE id = $4 RETURNING`)).
		WithArgs(base, nil, token, int64(10)).
		WillReturnRows(sqlmock.NewRows(connectionCols).
			AddRow(10, "hub", base, nil, "secret", token, 1))

	conn, err := store.UpdateConnection(context.Background(), 10, domain.ConnectionUpdate{
		BaseURL:        &base,
		ClearCloudURL:  true,
		LongLivedToken: &token,
	})

	require.NoError(t, err)
	assert.Equal(t, "fresh", conn.LongLivedToken)
	assert.Equal(t, "secret", conn.Password)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateConnection_UnknownRow(t *testing.T) {
	db, mock, store := setupMockDB(t)
	defer db.Close()

	username := "hub"
	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE "HaConnection"`)).
		WithArgs(username, int64(99)).
		WillReturnRows(sqlmock.NewRows(connectionCols))

	_, err := store.UpdateConnection(context.Background(), 99, domain.ConnectionUpdate{Username: &username})

	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListOverrides(t *testing.T) {
	db, mock, store := setupMockDB(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM "Device" WHERE "haConnectionId" = $1`)).
		WithArgs(int64(10)).
		WillReturnRows(sqlmock.NewRows(overrideCols).
			AddRow(1, 10, "light.kitchen", "Pendant", "Kitchen", nil).
			AddRow(2, 10, "switch.tv", nil, nil, "TV"))

	overrides, err := store.ListOverrides(context.Background(), 10)

	require.NoError(t, err)
	require.Len(t, overrides, 2)
	assert.Equal(t, "Pendant", *overrides[0].Name)
	assert.Nil(t, overrides[0].Label)
	assert.Nil(t, overrides[1].Name)
	assert.Equal(t, "TV", *overrides[1].Label)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveOverride_Upserts(t *testing.T) {
	db, mock, store := setupMockDB(t)
	defer db.Close()

	name := "Pendant"
	mock.ExpectQuery(regexp.QuoteMeta(`ON CONFLICT ("haConnectionId", "entityId") DO UPDATE`)).
		WithArgs(int64(10), "light.kitchen", "Pendant", nil, nil).
		WillReturnRows(sqlmock.NewRows(overrideCols).
			AddRow(7, 10, "light.kitchen", "Pendant", nil, nil))

	saved, err := store.SaveOverride(context.Background(), domain.DeviceOverride{
		ConnectionID: 10,
		EntityID:     "light.kitchen",
		Name:         &name,
	})

	require.NoError(t, err)
	assert.Equal(t, int64(7), saved.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListReadings(t *testing.T) {
	db, mock, store := setupMockDB(t)
	defer db.Close()

	since := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	at := since.Add(time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta(`"capturedAt" >= $3 ORDER BY "capturedAt"`)).
		WithArgs(int64(10), "sensor.energy", since).
		WillReturnRows(sqlmock.NewRows([]string{"entityId", "haConnectionId", "capturedAt", "unit", "numericValue"}).
			AddRow("sensor.energy", 10, at, "kWh", 1.5).
			AddRow("sensor.energy", 10, at.Add(time.Hour), nil, nil))

	readings, err := store.ListReadings(context.Background(), 10, "sensor.energy", since)

	require.NoError(t, err)
	require.Len(t, readings, 2)
	assert.Equal(t, "kWh", *readings[0].Unit)
	assert.InDelta(t, 1.5, *readings[0].NumericValue, 1e-9)
	assert.True(t, readings[0].CapturedAt.Equal(at))
	assert.Nil(t, readings[1].Unit)
	assert.Nil(t, readings[1].NumericValue)
	assert.NoError(t, mock.ExpectationsWereMet())
}
