package application

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"hubgate/internal/domain"
	"hubgate/internal/validation"
)

// Session is the signed-in context passed explicitly to every request.
type Session struct {
	ID           string
	User         domain.AuthUser
	Mode         domain.Mode
	ConnectionID int64
	CreatedAt    time.Time
	LastSeen     time.Time
}

const DefaultSessionIdleTimeout = 12 * time.Hour

// CacheInvalidator is the part of the Sync Cache sessions need.
type CacheInvalidator interface {
	ClearCache(ctx context.Context, userID int64, mode domain.Mode)
	ClearAll(ctx context.Context, userID int64)
}

type Sessions struct {
	auth     Authenticator
	resolver *ConnectionResolver
	cache    CacheInvalidator
	notifier LogoutNotifier
	logger   *slog.Logger
	idle     time.Duration
	now      func() time.Time

	mu       sync.Mutex
	sessions map[string]Session
}

func NewSessions(
	auth Authenticator,
	resolver *ConnectionResolver,
	cache CacheInvalidator,
	notifier LogoutNotifier,
	logger *slog.Logger,
) *Sessions {
	if notifier == nil {
		notifier = &NoopNotifier{}
	}
	return &Sessions{
		auth:     auth,
		resolver: resolver,
		cache:    cache,
		notifier: notifier,
		logger:   logger,
		idle:     DefaultSessionIdleTimeout,
		now:      time.Now,
		sessions: make(map[string]Session),
	}
}

// WithIdleTimeout sets how long an unused session stays valid.
func (s *Sessions) WithIdleTimeout(d time.Duration) *Sessions {
	if d > 0 {
		s.idle = d
	}
	return s
}

func (s *Sessions) WithClock(now func() time.Time) *Sessions {
	s.now = now
	return s
}

// Login authenticates against the platform and opens a session in home mode.
// previousID may name the session being replaced on this client.
func (s *Sessions) Login(ctx context.Context, username, password, previousID string) (Session, error) {
	username = strings.TrimSpace(username)
	if username == "" || strings.TrimSpace(password) == "" {
		return Session{}, domain.NewError(domain.KindInvalidInput, domain.MsgMissingCredentials)
	}

	user, err := s.auth.Login(ctx, username, password)
	if err != nil {
		return Session{}, err
	}

	_, conn, err := s.resolver.Resolve(ctx, user.ID)
	if err != nil {
		return Session{}, err
	}

	if previous, ok := s.take(previousID); ok && previous.User.ID != user.ID {
		s.cache.ClearAll(ctx, previous.User.ID)
	}
	s.cache.ClearAll(ctx, user.ID)

	now := s.now()
	session := Session{
		ID:           uuid.NewString(),
		User:         *user,
		Mode:         domain.ModeHome,
		ConnectionID: conn.ID,
		CreatedAt:    now,
		LastSeen:     now,
	}

	s.mu.Lock()
	s.sweep(now)
	s.sessions[session.ID] = session
	s.mu.Unlock()

	s.logger.Info("user signed in", "user_id", user.ID, "role", user.Role)
	return session, nil
}

// Get returns a live session and marks it used. Sessions idle for longer
// than the idle timeout are dropped.
func (s *Sessions) Get(id string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.touch(id)
}

// Logout drops the session and clears its caches. The platform notification
// runs detached and its failure is only logged.
func (s *Sessions) Logout(ctx context.Context, id string) error {
	session, ok := s.take(id)
	if !ok {
		return domain.NewError(domain.KindUnauthorized, domain.MsgSessionExpired)
	}

	s.cache.ClearAll(ctx, session.User.ID)

	go func() {
		nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := s.notifier.NotifyLogout(nctx); err != nil {
			s.logger.Warn("logout notification failed", "user_id", session.User.ID, "error", err)
		}
	}()

	s.logger.Info("user signed out", "user_id", session.User.ID)
	return nil
}

// SetMode clears the target mode's cache entry before switching to it.
func (s *Sessions) SetMode(ctx context.Context, id string, mode domain.Mode) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.touch(id)
	if !ok {
		return Session{}, domain.NewError(domain.KindUnauthorized, domain.MsgSessionExpired)
	}

	s.cache.ClearCache(ctx, session.User.ID, mode)
	session.Mode = mode
	s.sessions[id] = session
	return session, nil
}

type passwordChange struct {
	Current string `validate:"required" label:"current password"`
	New     string `validate:"required" label:"new password"`
	Confirm string `validate:"required,eqfield=New" label:"password confirmation"`
}

func (s *Sessions) ChangePassword(ctx context.Context, id, current, next, confirm string) error {
	session, ok := s.Get(id)
	if !ok {
		return domain.NewError(domain.KindUnauthorized, domain.MsgSessionExpired)
	}

	if err := validation.Struct(passwordChange{Current: current, New: next, Confirm: confirm}); err != nil {
		return err
	}

	return s.auth.ChangePassword(ctx, session.User.Role, current, next, confirm)
}

func (s *Sessions) take(id string) (Session, bool) {
	if id == "" {
		return Session{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.touch(id)
	if ok {
		delete(s.sessions, id)
	}
	return session, ok
}

// touch refreshes LastSeen on a live session. Callers hold mu.
func (s *Sessions) touch(id string) (Session, bool) {
	session, ok := s.sessions[id]
	if !ok {
		return Session{}, false
	}
	now := s.now()
	if now.Sub(session.LastSeen) > s.idle {
		delete(s.sessions, id)
		return Session{}, false
	}
	session.LastSeen = now
	s.sessions[id] = session
	return session, true
}

// sweep drops every idle session. Callers hold mu.
func (s *Sessions) sweep(now time.Time) {
	for id, session := range s.sessions {
		if now.Sub(session.LastSeen) > s.idle {
			delete(s.sessions, id)
		}
	}
}

// Len reports the number of sessions held, expired ones included until swept.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
