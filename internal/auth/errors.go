package auth

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized covers failed authentication: bad credentials or a
	// non-active account.
	ErrUnauthorized = errors.New("auth: unauthorized")
	// ErrInvalidToken covers malformed, revoked or otherwise untrusted
	// tokens. Verification fails closed onto this error.
	ErrInvalidToken = errors.New("auth: invalid token")
	// ErrTokenExpired marks a structurally valid token past its expiry.
	// It wraps ErrInvalidToken, so callers that only care about "not
	// trusted" keep working while clients can tell "refresh" from
	// "re-login" apart.
	ErrTokenExpired = fmt.Errorf("%w: expired", ErrInvalidToken)
	// ErrForbidden covers a valid identity lacking permission, and
	// invariant violations: self-deletion, last admin, system roles.
	ErrForbidden = errors.New("auth: forbidden")

	ErrNotFound     = errors.New("auth: not found")
	ErrConflict     = errors.New("auth: conflict")
	ErrInvalidInput = errors.New("auth: invalid input")
)
