package application

import (
	"context"

	"hubgate/internal/domain"
)

// Authenticator is the platform account service.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (*domain.AuthUser, error)
	ChangePassword(ctx context.Context, role domain.Role, current, next, confirm string) error
}

// LogoutNotifier tells the platform a session ended. Failures are only logged.
type LogoutNotifier interface {
	NotifyLogout(ctx context.Context) error
}

type NoopNotifier struct{}

func (n *NoopNotifier) NotifyLogout(_ context.Context) error {
	return nil
}

// HistoryAPI aggregates history server side when the reading store fails.
type HistoryAPI interface {
	FetchHistory(ctx context.Context, userID int64, entityID string, bucket domain.Bucket) (*domain.HistoryResult, error)
}
