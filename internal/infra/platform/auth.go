package platform

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"

	"hubgate/internal/domain"
)

const (
	msgLoginFailed        = "We could not log you in right now. Please try again."
	msgLoginRejected      = "We could not log you in. Check your username and password and try again."
	msgLoginUnavailable   = "Login is not available right now. Please try again in a moment."
	msgPasswordNotChanged = "We could not update that password. Please check your details and try again."
)

// AuthClient is the platform account API. It also implements the logout
// notification.
type AuthClient struct {
	http   *resty.Client
	logger *slog.Logger
}

func NewAuthClient(cfg Config, logger *slog.Logger) *AuthClient {
	return &AuthClient{
		http:   newRESTClient(cfg.AuthBaseURL, cfg.APIKey, cfg.Timeout),
		logger: logger,
	}
}

type loginResponse struct {
	OK    bool             `json:"ok"`
	User  *domain.AuthUser `json:"user"`
	Error string           `json:"error"`
}

func (c *AuthClient) Login(ctx context.Context, username, password string) (*domain.AuthUser, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"username": username, "password": password}).
		Post("/auth-login")
	if err != nil {
		return nil, domain.WrapError(domain.KindNetwork, msgLoginFailed, err)
	}

	var decoded loginResponse
	if err := json.Unmarshal(resp.Body(), &decoded); err != nil {
		c.logger.Warn("login response unreadable", "status", resp.StatusCode(), "error", err)
		return nil, domain.WrapError(domain.KindServer, msgLoginUnavailable,
			fmt.Errorf("decoding login response: %w", err))
	}

	if resp.StatusCode() == http.StatusOK && decoded.OK && decoded.User != nil {
		return decoded.User, nil
	}

	switch {
	case resp.StatusCode() == http.StatusUnauthorized,
		strings.Contains(strings.ToLower(decoded.Error), "invalid"):
		return nil, domain.NewError(domain.KindUnauthorized, msgLoginRejected)
	case decoded.Error != "":
		return nil, domain.NewError(domain.KindUnauthorized, decoded.Error)
	default:
		return nil, domain.ServerError(resp.StatusCode(), resp.String(), msgLoginFailed)
	}
}

// ChangePassword posts to the role's own change-password endpoint.
func (c *AuthClient) ChangePassword(ctx context.Context, role domain.Role, current, next, confirm string) error {
	path := "/auth/tenant/change-password"
	if role == domain.RoleAdmin {
		path = "/auth/admin/change-password"
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"currentPassword":    current,
			"newPassword":        next,
			"confirmNewPassword": confirm,
		}).
		Post(path)
	if err != nil {
		return domain.WrapError(domain.KindNetwork, msgPasswordNotChanged, err)
	}
	if !isSuccess(resp.StatusCode()) {
		c.logger.Info("password change rejected", "role", role, "status", resp.StatusCode())
		return domain.NewError(domain.KindInvalidInput, msgPasswordNotChanged)
	}
	return nil
}

func (c *AuthClient) NotifyLogout(ctx context.Context) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]any{}).
		Post("/auth/logout")
	if err != nil {
		return fmt.Errorf("notifying logout: %w", err)
	}
	if !isSuccess(resp.StatusCode()) {
		return fmt.Errorf("notifying logout: status %d", resp.StatusCode())
	}
	return nil
}
