package application_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hubgate/internal/application"
	"hubgate/internal/domain"
)

func sessionsFixture() (*fixture, *mockAuth, *mockInvalidator, *application.Sessions) {
	f := newFixture()
	auth := &mockAuth{users: map[string]domain.AuthUser{
		"owner":  {ID: adminID, Username: "owner", Role: domain.RoleAdmin},
		"tenant": {ID: tenantID, Username: "tenant", Role: domain.RoleTenant},
	}}
	inv := &mockInvalidator{}
	s := application.NewSessions(auth, f.resolver(), inv, nil, discardLogger()).
		WithClock(func() time.Time { return sessionNow })
	return f, auth, inv, s
}

var sessionNow = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

// clock is a settable time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestLogin_OpensHomeSession(t *testing.T) {
	_, _, inv, s := sessionsFixture()

	session, err := s.Login(context.Background(), " tenant ", "secret", "")
	require.NoError(t, err)

	assert.NotEmpty(t, session.ID)
	assert.Equal(t, domain.ModeHome, session.Mode)
	assert.Equal(t, tenantID, session.User.ID)
	assert.Equal(t, connID, session.ConnectionID, "tenant inherited the admin connection")

	got, ok := s.Get(session.ID)
	require.True(t, ok)
	assert.Equal(t, session, got)

	assert.ElementsMatch(t, []domain.SnapshotKey{
		{UserID: tenantID, Mode: domain.ModeHome},
		{UserID: tenantID, Mode: domain.ModeCloud},
	}, inv.keys())
}

func TestLogin_MissingCredentials(t *testing.T) {
	_, _, _, s := sessionsFixture()

	for _, creds := range [][2]string{{"", "secret"}, {"owner", "  "}, {" ", ""}} {
		_, err := s.Login(context.Background(), creds[0], creds[1], "")
		require.Error(t, err)
		assert.True(t, domain.IsKind(err, domain.KindInvalidInput))
		assert.Equal(t, "Enter both username and password to sign in.", err.Error())
	}
}

func TestLogin_RejectedCredentials(t *testing.T) {
	_, _, _, s := sessionsFixture()

	_, err := s.Login(context.Background(), "stranger", "secret", "")
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindUnauthorized))
}

func TestLogin_AsDifferentUserClearsPreviousCaches(t *testing.T) {
	_, _, inv, s := sessionsFixture()
	ctx := context.Background()

	first, err := s.Login(ctx, "owner", "secret", "")
	require.NoError(t, err)

	second, err := s.Login(ctx, "tenant", "secret", first.ID)
	require.NoError(t, err)

	_, ok := s.Get(first.ID)
	assert.False(t, ok, "previous session is replaced")
	_, ok = s.Get(second.ID)
	assert.True(t, ok)

	keys := inv.keys()
	assert.Contains(t, keys[2:], domain.SnapshotKey{UserID: adminID, Mode: domain.ModeHome})
	assert.Contains(t, keys[2:], domain.SnapshotKey{UserID: adminID, Mode: domain.ModeCloud})
	assert.Contains(t, keys[2:], domain.SnapshotKey{UserID: tenantID, Mode: domain.ModeHome})
}

func TestLogout_ClearsAndNotifies(t *testing.T) {
	f := newFixture()
	auth := &mockAuth{users: map[string]domain.AuthUser{"owner": {ID: adminID, Role: domain.RoleAdmin}}}
	inv := &mockInvalidator{}
	notifier := &mockNotifier{done: make(chan struct{})}
	s := application.NewSessions(auth, f.resolver(), inv, notifier, discardLogger())
	ctx := context.Background()

	session, err := s.Login(ctx, "owner", "secret", "")
	require.NoError(t, err)
	before := len(inv.keys())

	require.NoError(t, s.Logout(ctx, session.ID), "notification failure is not returned")

	select {
	case <-notifier.done:
	case <-time.After(time.Second):
		t.Fatal("logout notification was not sent")
	}

	_, ok := s.Get(session.ID)
	assert.False(t, ok)
	assert.Len(t, inv.keys(), before+2)

	err = s.Logout(ctx, session.ID)
	assert.True(t, domain.IsKind(err, domain.KindUnauthorized))
}

func TestSetMode_ClearsTargetMode(t *testing.T) {
	_, _, inv, s := sessionsFixture()
	ctx := context.Background()

	session, err := s.Login(ctx, "owner", "secret", "")
	require.NoError(t, err)
	before := len(inv.keys())

	updated, err := s.SetMode(ctx, session.ID, domain.ModeCloud)
	require.NoError(t, err)

	assert.Equal(t, domain.ModeCloud, updated.Mode)
	got, _ := s.Get(session.ID)
	assert.Equal(t, domain.ModeCloud, got.Mode)
	assert.Equal(t, []domain.SnapshotKey{{UserID: adminID, Mode: domain.ModeCloud}}, inv.keys()[before:])

	_, err = s.SetMode(ctx, "missing", domain.ModeHome)
	assert.True(t, domain.IsKind(err, domain.KindUnauthorized))
}

func TestChangePassword(t *testing.T) {
	_, auth, _, s := sessionsFixture()
	ctx := context.Background()

	session, err := s.Login(ctx, "tenant", "secret", "")
	require.NoError(t, err)

	err = s.ChangePassword(ctx, session.ID, "secret", "n3w-secret", "other")
	require.Error(t, err)
	assert.Equal(t, "The password confirmation does not match.", err.Error())
	assert.Empty(t, auth.changes)

	err = s.ChangePassword(ctx, session.ID, "", "n3w-secret", "n3w-secret")
	require.Error(t, err)
	assert.Equal(t, "Enter the current password.", err.Error())

	require.NoError(t, s.ChangePassword(ctx, session.ID, "secret", "n3w-secret", "n3w-secret"))
	assert.Equal(t, []domain.Role{domain.RoleTenant}, auth.changes)
}

func TestSessions_ExpireWhenIdle(t *testing.T) {
	_, _, _, s := sessionsFixture()
	now := &clock{now: sessionNow}
	s.WithClock(now.Now).WithIdleTimeout(time.Hour)
	ctx := context.Background()

	session, err := s.Login(ctx, "owner", "secret", "")
	require.NoError(t, err)

	now.Advance(50 * time.Minute)
	got, ok := s.Get(session.ID)
	require.True(t, ok, "use within the timeout keeps the session")
	assert.Equal(t, now.Now(), got.LastSeen)

	now.Advance(50 * time.Minute)
	_, ok = s.Get(session.ID)
	assert.True(t, ok, "idle time counts from the last use")

	now.Advance(61 * time.Minute)
	_, ok = s.Get(session.ID)
	assert.False(t, ok)

	_, err = s.SetMode(ctx, session.ID, domain.ModeCloud)
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindUnauthorized))
}

func TestSessions_LoginSweepsAbandonedSessions(t *testing.T) {
	_, _, _, s := sessionsFixture()
	now := &clock{now: sessionNow}
	s.WithClock(now.Now).WithIdleTimeout(time.Hour)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := s.Login(ctx, "tenant", "secret", "")
		require.NoError(t, err)
	}
	require.Equal(t, 3, s.Len())

	now.Advance(2 * time.Hour)
	_, err := s.Login(ctx, "owner", "secret", "")
	require.NoError(t, err)

	assert.Equal(t, 1, s.Len())
}
