package auth

import (
	"context"
	"errors"
	"strings"
	"time"
)

const (
	defaultAccessTTL  = time.Hour
	defaultRefreshTTL = 7 * 24 * time.Hour
	defaultIssuer     = "erp-api"
)

// Service provides authentication, token issuance and account/role
// management on top of a Store.
type Service struct {
	store Store
	now   func() time.Time

	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration

	revokeSessionsOnPasswordChange bool
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service) error

// WithIssuer overrides the token issuer claim.
func WithIssuer(issuer string) ServiceOption {
	return func(s *Service) error {
		if iss := strings.TrimSpace(issuer); iss != "" {
			s.issuer = iss
		}
		return nil
	}
}

// WithAccessTTL configures access token lifetime.
func WithAccessTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) error {
		if ttl > 0 {
			s.accessTTL = ttl
		}
		return nil
	}
}

// WithRefreshTTL configures refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) error {
		if ttl > 0 {
			s.refreshTTL = ttl
		}
		return nil
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) error {
		if fn != nil {
			s.now = fn
		}
		return nil
	}
}

// WithSessionRevocationOnPasswordChange enables revoking all of a
// user's live refresh tokens when their password changes.
func WithSessionRevocationOnPasswordChange(enabled bool) ServiceOption {
	return func(s *Service) error {
		s.revokeSessionsOnPasswordChange = enabled
		return nil
	}
}

// NewService constructs a Service. The signing secret is required.
func NewService(store Store, secret string, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("auth: store is required")
	}
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("auth: signing secret is required")
	}
	svc := &Service{
		store:      store,
		now:        time.Now,
		secret:     []byte(secret),
		issuer:     defaultIssuer,
		accessTTL:  defaultAccessTTL,
		refreshTTL: defaultRefreshTTL,
	}
	for _, opt := range opts {
		if err := opt(svc); err != nil {
			return nil, err
		}
	}
	return svc, nil
}

// EnsureBuiltins seeds the closed permission enumeration. Called once
// at startup; inserting an already-present key is a no-op.
func (s *Service) EnsureBuiltins(ctx context.Context) error {
	return s.store.Permissions().Ensure(ctx, BuiltinPermissions)
}

// Login authenticates credentials and issues a fresh token pair.
// Unknown email, wrong password and non-active status all collapse into
// ErrUnauthorized so callers cannot probe for accounts.
func (s *Service) Login(ctx context.Context, email, password string) (TokenPair, *User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return TokenPair{}, nil, ErrUnauthorized
	}
	user, err := s.store.Users().FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return TokenPair{}, nil, ErrUnauthorized
		}
		return TokenPair{}, nil, err
	}
	if user.Status != UserStatusActive {
		return TokenPair{}, nil, ErrUnauthorized
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		return TokenPair{}, nil, ErrUnauthorized
	}
	pair, err := s.IssueTokenPair(ctx, user)
	if err != nil {
		return TokenPair{}, nil, err
	}
	return pair, user, nil
}

// Logout revokes the presented refresh token. Unknown or already
// revoked identifiers are ignored so logout is idempotent.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	tokenID, _, err := splitRefreshToken(refreshToken)
	if err != nil {
		return nil
	}
	return s.store.RefreshTokens().Revoke(ctx, tokenID)
}

// Me returns the current user snapshot with role and live permission
// set, resolved from the directory rather than the token.
func (s *Service) Me(ctx context.Context, userID string) (*User, *Role, []string, error) {
	user, err := s.store.Users().Find(ctx, userID)
	if err != nil {
		return nil, nil, nil, err
	}
	role, err := s.store.Roles().Find(ctx, user.RoleID)
	if err != nil {
		return nil, nil, nil, err
	}
	perms, err := s.PermissionsForRole(ctx, user.RoleID)
	if err != nil {
		return nil, nil, nil, err
	}
	return user, role, perms, nil
}
