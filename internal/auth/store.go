package auth

import "context"

// Store describes persistence operations required by the auth subsystem.
type Store interface {
	Users() UserStore
	Roles() RoleStore
	Permissions() PermissionStore
	RefreshTokens() RefreshTokenStore
}

// UserStore manages accounts.
type UserStore interface {
	Create(ctx context.Context, u *User) error
	Find(ctx context.Context, id string) (*User, error)
	// FindByEmail matches case-insensitively; callers pass a lower-cased
	// address.
	FindByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context) ([]*User, error)
	Update(ctx context.Context, id string, upd UserUpdate) (*User, error)
	Delete(ctx context.Context, id string) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	// CountActiveWithRole counts active users holding the role,
	// excluding excludeUserID when non-empty. Used by the last-admin
	// guard.
	CountActiveWithRole(ctx context.Context, roleID, excludeUserID string) (int, error)
}

// RoleStore manages roles.
type RoleStore interface {
	Create(ctx context.Context, role *Role, permissionIDs []string) error
	Find(ctx context.Context, id string) (*Role, error)
	FindByKey(ctx context.Context, key string) (*Role, error)
	List(ctx context.Context) ([]*Role, error)
	Update(ctx context.Context, id string, upd RoleUpdate) (*Role, error)
	Delete(ctx context.Context, id string) error
	UserCount(ctx context.Context, id string) (int, error)
}

// PermissionStore manages the seeded permission catalog.
type PermissionStore interface {
	Ensure(ctx context.Context, perms []Permission) error
	List(ctx context.Context) ([]Permission, error)
	FindByIDs(ctx context.Context, ids []string) ([]Permission, error)
	ForRole(ctx context.Context, roleID string) ([]Permission, error)
}

// RefreshTokenStore manages refresh token lifecycle.
type RefreshTokenStore interface {
	Create(ctx context.Context, tok *RefreshToken) error
	// Consume atomically marks a live token revoked and returns its
	// record. Under concurrent calls with the same identifier exactly
	// one succeeds; the rest observe ErrNotFound. Expired or already
	// revoked identifiers also yield ErrNotFound.
	Consume(ctx context.Context, id string) (*RefreshToken, error)
	// Revoke unconditionally marks an identifier revoked. Revoking an
	// unknown or already revoked identifier is a no-op.
	Revoke(ctx context.Context, id string) error
	RevokeAllForUser(ctx context.Context, userID string) error
	// PurgeExpired deletes tokens past their expiry and returns how many
	// rows were removed.
	PurgeExpired(ctx context.Context) (int64, error)
}
