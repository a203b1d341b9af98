package domain

import (
	"net/url"
	"strings"
)

type Role string

const (
	RoleAdmin  Role = "ADMIN"
	RoleTenant Role = "TENANT"
)

type User struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	Role         Role   `json:"role"`
	ConnectionID *int64 `json:"haConnectionId"`
}

// AccessRule grants a tenant visibility of one area.
type AccessRule struct {
	ID     int64  `json:"id"`
	UserID int64  `json:"userId"`
	Area   string `json:"area"`
}

type UserRelations struct {
	User        User
	AccessRules []AccessRule
}

func (r UserRelations) AllowedAreas() map[string]struct{} {
	areas := make(map[string]struct{}, len(r.AccessRules))
	for _, rule := range r.AccessRules {
		if area := strings.TrimSpace(rule.Area); area != "" {
			areas[area] = struct{}{}
		}
	}
	return areas
}

// AuthUser is the identity returned by the platform login endpoint.
type AuthUser struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

type Mode string

const (
	ModeHome  Mode = "home"
	ModeCloud Mode = "cloud"
)

func ParseMode(s string) (Mode, bool) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeHome:
		return ModeHome, true
	case ModeCloud:
		return ModeCloud, true
	}
	return "", false
}

var Modes = []Mode{ModeHome, ModeCloud}

// Connection holds the hub credentials shared by an admin and every tenant of
// the same property.
type Connection struct {
	ID             int64   `json:"id"`
	Username       string  `json:"haUsername"`
	BaseURL        string  `json:"baseUrl"`
	CloudURL       *string `json:"cloudUrl"`
	Password       string  `json:"haPassword"`
	LongLivedToken string  `json:"longLivedToken"`
	OwnerID        int64   `json:"ownerId"`
}

// HubHandle is the minimal credential needed to talk to one hub endpoint.
type HubHandle struct {
	BaseURL string
	Token   string
}

// Handle selects the URL for mode. ok is false when that mode has no URL.
func (c Connection) Handle(mode Mode) (HubHandle, bool) {
	raw := c.BaseURL
	if mode == ModeCloud {
		raw = ""
		if c.CloudURL != nil {
			raw = *c.CloudURL
		}
	}
	base := strings.TrimRight(strings.TrimSpace(raw), "/")
	if base == "" {
		return HubHandle{}, false
	}
	return HubHandle{BaseURL: base, Token: c.LongLivedToken}, true
}

// ConnectionUpdate is a partial write; nil fields are left untouched.
// ClearCloudURL stores NULL in the cloud URL column.
type ConnectionUpdate struct {
	Username       *string
	BaseURL        *string
	CloudURL       *string
	ClearCloudURL  bool
	Password       *string
	LongLivedToken *string
}

// NormalizeBaseURL trims value, requires an http or https scheme and strips
// trailing slashes.
func NormalizeBaseURL(value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	u, err := url.Parse(trimmed)
	if err != nil || u.Host == "" {
		return "", NewError(KindInvalidInput, "The hub URL must start with http:// or https://.")
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return "", NewError(KindInvalidInput, "The hub URL must start with http:// or https://.")
	}
	return strings.TrimRight(trimmed, "/"), nil
}
