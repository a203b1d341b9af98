package postgrest_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hubgate/internal/domain"
	"hubgate/internal/infra/postgrest"
)

type recorded struct {
	method string
	path   string
	query  map[string][]string
	header http.Header
	body   map[string]any
}

func newStore(t *testing.T, status int, response string) (*postgrest.Store, *[]recorded) {
	t.Helper()
	var calls []recorded
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recorded{method: r.Method, path: r.URL.Path, query: r.URL.Query(), header: r.Header.Clone()}
		if data, _ := io.ReadAll(r.Body); len(data) > 0 {
			_ = json.Unmarshal(data, &rec.body)
		}
		calls = append(calls, rec)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(srv.Close)

	client := postgrest.NewClient(postgrest.Config{BaseURL: srv.URL + "/", APIKey: "anon"},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	return postgrest.NewStore(client), &calls
}

func TestGetUser_SendsFiltersAndKeys(t *testing.T) {
	store, calls := newStore(t, http.StatusOK, `[{"id":2,"username":"tenant","role":"TENANT","haConnectionId":null}]`)

	user, err := store.GetUser(context.Background(), 2)

	require.NoError(t, err)
	assert.Equal(t, "tenant", user.Username)
	assert.Nil(t, user.ConnectionID)

	require.Len(t, *calls, 1)
	call := (*calls)[0]
	assert.Equal(t, http.MethodGet, call.method)
	assert.Equal(t, "/rest/v1/User", call.path)
	assert.Equal(t, []string{"eq.2"}, call.query["id"])
	assert.Equal(t, []string{"id,username,role,haConnectionId"}, call.query["select"])
	assert.Equal(t, []string{"1"}, call.query["limit"])
	assert.Equal(t, "anon", call.header.Get("apikey"))
	assert.Equal(t, "Bearer anon", call.header.Get("Authorization"))
}

func TestGetUser_EmptyIsNotFound(t *testing.T) {
	store, _ := newStore(t, http.StatusOK, `[]`)

	_, err := store.GetUser(context.Background(), 9)

	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindNotFound))
}

func TestRejectedRequestIsStoreUnavailable(t *testing.T) {
	store, _ := newStore(t, http.StatusInternalServerError, `{"message":"boom"}`)

	_, err := store.ListAccessRules(context.Background(), 2)

	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindServer))
	assert.Equal(t, domain.MsgStoreUnavailable, err.Error())
}

func TestFindAdmin_OrdersById(t *testing.T) {
	store, calls := newStore(t, http.StatusOK, `[{"id":1,"username":"owner","role":"ADMIN","haConnectionId":10}]`)

	admin, err := store.FindAdmin(context.Background())

	require.NoError(t, err)
	require.NotNil(t, admin)
	assert.Equal(t, int64(10), *admin.ConnectionID)
	assert.Equal(t, []string{"eq.ADMIN"}, (*calls)[0].query["role"])
	assert.Equal(t, []string{"id.asc"}, (*calls)[0].query["order"])
}

func TestFindAdmin_None(t *testing.T) {
	store, _ := newStore(t, http.StatusOK, `[]`)

	admin, err := store.FindAdmin(context.Background())

	require.NoError(t, err)
	assert.Nil(t, admin)
}

func TestListConnectionUsers_FiltersByConnection(t *testing.T) {
	store, calls := newStore(t, http.StatusOK, `[{"id":1,"username":"owner","role":"ADMIN","haConnectionId":10},{"id":2,"username":"tenant","role":"TENANT","haConnectionId":10}]`)

	users, err := store.ListConnectionUsers(context.Background(), 10)

	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "tenant", users[1].Username)

	call := (*calls)[0]
	assert.Equal(t, "/rest/v1/User", call.path)
	assert.Equal(t, []string{"eq.10"}, call.query["haConnectionId"])
	assert.Equal(t, []string{"id.asc"}, call.query["order"])
}

func TestSetConnectionID_Patches(t *testing.T) {
	store, calls := newStore(t, http.StatusOK, `[{"id":2,"username":"tenant","role":"TENANT","haConnectionId":10}]`)

	user, err := store.SetConnectionID(context.Background(), 2, 10)

	require.NoError(t, err)
	assert.Equal(t, int64(10), *user.ConnectionID)

	call := (*calls)[0]
	assert.Equal(t, http.MethodPatch, call.method)
	assert.Equal(t, "return=representation", call.header.Get("Prefer"))
	assert.Equal(t, []string{"eq.2"}, call.query["id"])
	assert.EqualValues(t, 10, call.body["haConnectionId"])
}

func TestUpdateConnection_ClearsCloudURL(t *testing.T) {
	store, calls := newStore(t, http.StatusOK, `[{"id":10,"haUsername":"hub","baseUrl":"http://10.0.0.2:8123","cloudUrl":null,"haPassword":"p","longLivedToken":"t","ownerId":1}]`)

	conn, err := store.UpdateConnection(context.Background(), 10, domain.ConnectionUpdate{ClearCloudURL: true})

	require.NoError(t, err)
	assert.Nil(t, conn.CloudURL)

	body := (*calls)[0].body
	value, present := body["cloudUrl"]
	assert.True(t, present)
	assert.Nil(t, value)
	assert.NotContains(t, body, "haPassword")
}

func TestUpdateConnection_NoRowIsNotFound(t *testing.T) {
	store, _ := newStore(t, http.StatusOK, `[]`)
	base := "http://10.0.0.2:8123"

	_, err := store.UpdateConnection(context.Background(), 10, domain.ConnectionUpdate{BaseURL: &base})

	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindNotFound))
}

func TestSaveOverride_MergesOnEntity(t *testing.T) {
	store, calls := newStore(t, http.StatusCreated, `[{"id":5,"haConnectionId":10,"entityId":"light.kitchen","name":"Pendant","area":null,"label":null}]`)
	name := "Pendant"

	saved, err := store.SaveOverride(context.Background(), domain.DeviceOverride{
		ConnectionID: 10,
		EntityID:     "light.kitchen",
		Name:         &name,
	})

	require.NoError(t, err)
	assert.Equal(t, int64(5), saved.ID)

	call := (*calls)[0]
	assert.Equal(t, http.MethodPost, call.method)
	assert.Equal(t, "/rest/v1/Device", call.path)
	assert.Equal(t, []string{"haConnectionId,entityId"}, call.query["on_conflict"])
	assert.Contains(t, call.header.Get("Prefer"), "resolution=merge-duplicates")
	assert.Equal(t, "Pendant", call.body["name"])
	assert.Nil(t, call.body["label"])
}

func TestListReadings_SkipsUnparsableTimestamps(t *testing.T) {
	store, calls := newStore(t, http.StatusOK, `[
		{"entityId":"sensor.energy","haConnectionId":10,"capturedAt":"2025-06-02T10:00:00.123+00:00","unit":"kWh","numericValue":1.5},
		{"entityId":"sensor.energy","haConnectionId":10,"capturedAt":"2025-06-02T11:00:00","unit":"kWh","numericValue":2},
		{"entityId":"sensor.energy","haConnectionId":10,"capturedAt":"yesterday","unit":"kWh","numericValue":9}
	]`)
	since := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	readings, err := store.ListReadings(context.Background(), 10, "sensor.energy", since)

	require.NoError(t, err)
	require.Len(t, readings, 2)
	assert.Equal(t, 11, readings[1].CapturedAt.Hour())

	query := (*calls)[0].query
	assert.Equal(t, []string{"gte.2025-06-01T00:00:00.000Z"}, query["capturedAt"])
	assert.Equal(t, []string{"eq.sensor.energy"}, query["entityId"])
	assert.Equal(t, []string{"eq.10"}, query["haConnectionId"])
	assert.Equal(t, []string{"capturedAt.asc"}, query["order"])
}
