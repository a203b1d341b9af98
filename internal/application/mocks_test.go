package application_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"hubgate/internal/application"
	"hubgate/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func strPtr(s string) *string     { return &s }
func int64Ptr(v int64) *int64     { return &v }
func floatPtr(v float64) *float64 { return &v }

type mockUsers struct {
	mu        sync.Mutex
	users     map[int64]*domain.User
	rules     map[int64][]domain.AccessRule
	links     []link
	failGet   error
	failUsers error
}

type link struct {
	userID, connectionID int64
}

func newMockUsers(users ...domain.User) *mockUsers {
	m := &mockUsers{users: make(map[int64]*domain.User), rules: make(map[int64][]domain.AccessRule)}
	for i := range users {
		u := users[i]
		m.users[u.ID] = &u
	}
	return m
}

func (m *mockUsers) GetUser(_ context.Context, id int64) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet != nil {
		return nil, m.failGet
	}
	u, ok := m.users[id]
	if !ok {
		return nil, domain.NewError(domain.KindNotFound, domain.MsgUserNotFound)
	}
	out := *u
	return &out, nil
}

func (m *mockUsers) ListAccessRules(_ context.Context, userID int64) ([]domain.AccessRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.AccessRule(nil), m.rules[userID]...), nil
}

func (m *mockUsers) FindAdmin(_ context.Context) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]int64, 0, len(m.users))
	for id := range m.users {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		if m.users[id].Role == domain.RoleAdmin {
			out := *m.users[id]
			return &out, nil
		}
	}
	return nil, nil
}

func (m *mockUsers) SetConnectionID(_ context.Context, userID, connectionID int64) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return nil, domain.NewError(domain.KindNotFound, domain.MsgUserNotFound)
	}
	u.ConnectionID = int64Ptr(connectionID)
	m.links = append(m.links, link{userID, connectionID})
	out := *u
	return &out, nil
}

func (m *mockUsers) ListConnectionUsers(_ context.Context, connectionID int64) ([]domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failUsers != nil {
		return nil, m.failUsers
	}
	var out []domain.User
	for _, u := range m.users {
		if u.ConnectionID != nil && *u.ConnectionID == connectionID {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockUsers) writes() []link {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]link(nil), m.links...)
}

type mockConns struct {
	mu      sync.Mutex
	conns   map[int64]*domain.Connection
	updates []domain.ConnectionUpdate
}

func newMockConns(conns ...domain.Connection) *mockConns {
	m := &mockConns{conns: make(map[int64]*domain.Connection)}
	for i := range conns {
		c := conns[i]
		m.conns[c.ID] = &c
	}
	return m
}

func (m *mockConns) GetConnection(_ context.Context, id int64) (*domain.Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conns[id]
	if !ok {
		return nil, nil
	}
	out := *c
	return &out, nil
}

func (m *mockConns) GetConnectionByOwner(_ context.Context, ownerID int64) (*domain.Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.conns {
		if c.OwnerID == ownerID {
			out := *c
			return &out, nil
		}
	}
	return nil, nil
}

func (m *mockConns) UpdateConnection(_ context.Context, id int64, update domain.ConnectionUpdate) (*domain.Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conns[id]
	if !ok {
		return nil, domain.NewError(domain.KindNotFound, domain.MsgConnectionNotConfigured)
	}
	m.updates = append(m.updates, update)
	if update.Username != nil {
		c.Username = *update.Username
	}
	if update.BaseURL != nil {
		c.BaseURL = *update.BaseURL
	}
	if update.ClearCloudURL {
		c.CloudURL = nil
	} else if update.CloudURL != nil {
		c.CloudURL = strPtr(*update.CloudURL)
	}
	if update.Password != nil {
		c.Password = *update.Password
	}
	if update.LongLivedToken != nil {
		c.LongLivedToken = *update.LongLivedToken
	}
	out := *c
	return &out, nil
}

type mockOverrides struct {
	mu        sync.Mutex
	overrides []domain.DeviceOverride
	err       error
}

func (m *mockOverrides) ListOverrides(_ context.Context, connectionID int64) ([]domain.DeviceOverride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var out []domain.DeviceOverride
	for _, o := range m.overrides {
		if o.ConnectionID == connectionID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *mockOverrides) SaveOverride(_ context.Context, o domain.DeviceOverride) (*domain.DeviceOverride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.overrides {
		if existing.ConnectionID == o.ConnectionID && existing.EntityID == o.EntityID {
			o.ID = existing.ID
			m.overrides[i] = o
			return &o, nil
		}
	}
	o.ID = int64(len(m.overrides) + 1)
	m.overrides = append(m.overrides, o)
	return &o, nil
}

type mockReadings struct {
	readings []domain.MonitoringReading
	err      error
	since    time.Time
}

func (m *mockReadings) ListReadings(_ context.Context, _ int64, _ string, since time.Time) ([]domain.MonitoringReading, error) {
	m.since = since
	if m.err != nil {
		return nil, m.err
	}
	return m.readings, nil
}

type mockHub struct {
	mu        sync.Mutex
	states    []domain.RawDeviceState
	meta      []domain.DeviceMetadata
	metaErr   error
	statesErr error
	reachable bool
	calls     []domain.ServiceCall
	fetches   int
	probes    []time.Duration
	gate      chan struct{}
}

func (m *mockHub) FetchAllStates(_ context.Context, _ domain.HubHandle) ([]domain.RawDeviceState, error) {
	if m.gate != nil {
		<-m.gate
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetches++
	if m.statesErr != nil {
		return nil, m.statesErr
	}
	out := make([]domain.RawDeviceState, len(m.states))
	for i, s := range m.states {
		s.Attributes = s.Attributes.Clone()
		out[i] = s
	}
	return out, nil
}

func (m *mockHub) FetchState(_ context.Context, _ domain.HubHandle, entityID string) (*domain.RawDeviceState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetches++
	for _, s := range m.states {
		if s.EntityID == entityID {
			out := s
			return &out, nil
		}
	}
	return nil, domain.ServerError(404, "Entity not found.", "The hub answered with status 404.")
}

func (m *mockHub) FetchMetadata(_ context.Context, _ domain.HubHandle) ([]domain.DeviceMetadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.metaErr != nil {
		return nil, m.metaErr
	}
	return m.meta, nil
}

func (m *mockHub) InvokeService(_ context.Context, _ domain.HubHandle, call domain.ServiceCall) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
	return nil
}

func (m *mockHub) Probe(_ context.Context, _ domain.HubHandle, timeout time.Duration) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.probes = append(m.probes, timeout)
	return m.reachable
}

func (m *mockHub) setStates(states []domain.RawDeviceState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states = states
}

func (m *mockHub) fetchCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fetches
}

func (m *mockHub) serviceCalls() []domain.ServiceCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.ServiceCall(nil), m.calls...)
}

type mockAuth struct {
	users    map[string]domain.AuthUser
	changes  []domain.Role
	loginErr error
}

func (m *mockAuth) Login(_ context.Context, username, _ string) (*domain.AuthUser, error) {
	if m.loginErr != nil {
		return nil, m.loginErr
	}
	u, ok := m.users[username]
	if !ok {
		return nil, domain.NewError(domain.KindUnauthorized, "The username or password is incorrect.")
	}
	return &u, nil
}

func (m *mockAuth) ChangePassword(_ context.Context, role domain.Role, _, _, _ string) error {
	m.changes = append(m.changes, role)
	return nil
}

type mockNotifier struct {
	done chan struct{}
}

func (m *mockNotifier) NotifyLogout(_ context.Context) error {
	close(m.done)
	return errors.New("platform offline")
}

type mockInvalidator struct {
	mu      sync.Mutex
	cleared []domain.SnapshotKey
}

func (m *mockInvalidator) ClearCache(_ context.Context, userID int64, mode domain.Mode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleared = append(m.cleared, domain.SnapshotKey{UserID: userID, Mode: mode})
}

func (m *mockInvalidator) ClearAll(ctx context.Context, userID int64) {
	for _, mode := range domain.Modes {
		m.ClearCache(ctx, userID, mode)
	}
}

func (m *mockInvalidator) keys() []domain.SnapshotKey {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.SnapshotKey(nil), m.cleared...)
}

type mockHistoryAPI struct {
	result *domain.HistoryResult
	err    error
	calls  int
}

func (m *mockHistoryAPI) FetchHistory(_ context.Context, _ int64, _ string, _ domain.Bucket) (*domain.HistoryResult, error) {
	m.calls++
	return m.result, m.err
}

// fixture is one admin (id 1) owning connection 10, and one tenant (id 2)
// with no link yet and access to the Kitchen.
type fixture struct {
	users     *mockUsers
	conns     *mockConns
	overrides *mockOverrides
	hub       *mockHub
}

const (
	adminID  int64 = 1
	tenantID int64 = 2
	connID   int64 = 10
)

func newFixture() *fixture {
	users := newMockUsers(
		domain.User{ID: adminID, Username: "owner", Role: domain.RoleAdmin},
		domain.User{ID: tenantID, Username: "tenant", Role: domain.RoleTenant},
	)
	users.rules[tenantID] = []domain.AccessRule{{ID: 1, UserID: tenantID, Area: "Kitchen"}}

	conns := newMockConns(domain.Connection{
		ID:             connID,
		Username:       "hub",
		BaseURL:        "http://homeassistant.local:8123/",
		CloudURL:       strPtr("https://relay.example.com"),
		LongLivedToken: "token",
		OwnerID:        adminID,
	})

	return &fixture{
		users:     users,
		conns:     conns,
		overrides: &mockOverrides{},
		hub:       &mockHub{reachable: true},
	}
}

func (f *fixture) resolver() *application.ConnectionResolver {
	return application.NewConnectionResolver(f.users, f.conns, discardLogger())
}

func (f *fixture) synchronizer() *application.Synchronizer {
	return application.NewSynchronizer(f.resolver(), f.hub, f.overrides, application.DefaultProbeTimeouts(), discardLogger())
}

// catalog serves every lookup with a fresh synchronization.
func (f *fixture) catalog() application.DeviceCatalog {
	return syncCatalog{f.synchronizer()}
}

type syncCatalog struct {
	synchronizer *application.Synchronizer
}

func (c syncCatalog) Devices(ctx context.Context, userID int64, mode domain.Mode) ([]domain.UIDevice, error) {
	return c.synchronizer.ListDevices(ctx, userID, mode)
}
