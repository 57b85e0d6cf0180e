package auth

import "time"

// User statuses. A user that is not active fails authentication even
// with valid credentials.
const (
	UserStatusActive    = "active"
	UserStatusInactive  = "inactive"
	UserStatusSuspended = "suspended"
)

// AdminRoleKey is the stable key of the seeded system administrator
// role. The last-admin invariant is enforced against this key.
const AdminRoleKey = "admin"

// User represents an ERP account.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Name         string    `json:"name"`
	Status       string    `json:"status"`
	RoleID       string    `json:"role_id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Role groups permissions. System roles cannot be renamed, have their
// permission set altered, or be deleted.
type Role struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Key         string       `json:"key"`
	IsSystem    bool         `json:"is_system"`
	Permissions []Permission `json:"permissions,omitempty"`
	UserCount   int          `json:"user_count"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// Permission is a seeded, immutable capability: one action on one
// resource, identified by a stable key such as "edit_users".
type Permission struct {
	ID       string `json:"id"`
	Key      string `json:"key"`
	Resource string `json:"resource"`
	Action   string `json:"action"`
}

// RefreshToken is the persisted half of a refresh credential. The
// client-held string is "<id>.<secret>"; only the secret's SHA-256 hash
// is stored.
type RefreshToken struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	TokenHash string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
	Revoked   bool      `json:"revoked"`
	CreatedAt time.Time `json:"created_at"`
}

// Live reports whether the token can still be rotated at the given
// instant.
func (t *RefreshToken) Live(now time.Time) bool {
	return !t.Revoked && now.Before(t.ExpiresAt)
}

// TokenPair bundles a freshly issued access/refresh pair.
type TokenPair struct {
	AccessToken      string    `json:"token"`
	RefreshToken     string    `json:"refresh_token"`
	AccessExpiresAt  time.Time `json:"expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// UserUpdate is a partial user patch; nil fields are left untouched.
type UserUpdate struct {
	Email  *string
	Name   *string
	Status *string
	RoleID *string
}

// RoleUpdate is a partial role patch; nil fields are left untouched.
type RoleUpdate struct {
	Name          *string
	PermissionIDs []string
}
