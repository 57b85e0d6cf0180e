package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/shopworks/erp-api/internal/ids"
)

// Claims are the verified access-token claims. The permission set is a
// snapshot taken at issuance; role edits propagate to newly issued
// tokens only, bounded by the access TTL.
type Claims struct {
	Email       string   `json:"email"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
	jwt.RegisteredClaims
}

// IssueTokenPair mints an access token for the user with the role's
// current permission set, and persists a new refresh token.
func (s *Service) IssueTokenPair(ctx context.Context, user *User) (TokenPair, error) {
	role, err := s.store.Roles().Find(ctx, user.RoleID)
	if err != nil {
		return TokenPair{}, err
	}
	perms, err := s.PermissionsForRole(ctx, user.RoleID)
	if err != nil {
		return TokenPair{}, err
	}

	now := s.now().UTC()
	accessExp := now.Add(s.accessTTL)
	claims := Claims{
		Email:       user.Email,
		Role:        role.Key,
		Permissions: perms,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(accessExp),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return TokenPair{}, err
	}

	refreshString, record, err := s.generateRefreshToken(user.ID, now)
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.store.RefreshTokens().Create(ctx, record); err != nil {
		return TokenPair{}, err
	}

	return TokenPair{
		AccessToken:      signed,
		RefreshToken:     refreshString,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: record.ExpiresAt,
	}, nil
}

// VerifyAccessToken checks signature and expiry only; it does not
// consult the user directory. Malformed structure or a signature
// mismatch fails closed with ErrInvalidToken; a token past its expiry
// fails with ErrTokenExpired.
func (s *Service) VerifyAccessToken(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithIssuer(s.issuer), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" || claims.Role == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Rotate exchanges a live refresh token for a new pair. The old
// identifier is consumed atomically: under concurrent rotations with
// the same identifier exactly one succeeds and the rest fail with
// ErrInvalidToken. Reuse of a revoked or expired identifier is itself
// an authorization failure and never regenerates a session.
func (s *Service) Rotate(ctx context.Context, refreshToken string) (TokenPair, *User, error) {
	tokenID, secret, err := splitRefreshToken(refreshToken)
	if err != nil {
		return TokenPair{}, nil, ErrInvalidToken
	}

	record, err := s.store.RefreshTokens().Consume(ctx, tokenID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return TokenPair{}, nil, ErrInvalidToken
		}
		return TokenPair{}, nil, err
	}
	if !secureCompareHash(record.TokenHash, secret) {
		return TokenPair{}, nil, ErrInvalidToken
	}

	user, err := s.store.Users().Find(ctx, record.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return TokenPair{}, nil, ErrInvalidToken
		}
		return TokenPair{}, nil, err
	}
	// The refresh boundary is where revocation of the account itself
	// takes effect.
	if user.Status != UserStatusActive {
		return TokenPair{}, nil, ErrInvalidToken
	}

	pair, err := s.IssueTokenPair(ctx, user)
	if err != nil {
		return TokenPair{}, nil, err
	}
	return pair, user, nil
}

func (s *Service) generateRefreshToken(userID string, now time.Time) (string, *RefreshToken, error) {
	secretBytes := make([]byte, 32)
	if _, err := rand.Read(secretBytes); err != nil {
		return "", nil, err
	}
	secret := base64.RawURLEncoding.EncodeToString(secretBytes)
	sum := sha256.Sum256([]byte(secret))
	record := &RefreshToken{
		ID:        ids.New(),
		UserID:    userID,
		TokenHash: hex.EncodeToString(sum[:]),
		ExpiresAt: now.Add(s.refreshTTL),
		CreatedAt: now,
	}
	return record.ID + "." + secret, record, nil
}

func splitRefreshToken(raw string) (id, secret string, err error) {
	parts := strings.Split(strings.TrimSpace(raw), ".")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", errors.New("invalid refresh token format")
	}
	return parts[0], parts[1], nil
}

func secureCompareHash(expectedHash, secret string) bool {
	sum := sha256.Sum256([]byte(secret))
	actual := hex.EncodeToString(sum[:])
	if len(expectedHash) != len(actual) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expectedHash), []byte(actual)) == 1
}
