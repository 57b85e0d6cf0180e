package httpapi

import (
	"net/http"
	"strings"

	"github.com/shopworks/erp-api/internal/auth"
	"github.com/shopworks/erp-api/internal/obs"
)

// authenticate verifies the bearer token and installs the principal on
// the request context. This stage answers "who are you" and only ever
// fails with 401.
func (a *API) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		claims, err := a.svc.VerifyAccessToken(token)
		if err != nil {
			obs.CountAuthFailure("authenticate")
			writeErrorKind(w, http.StatusUnauthorized, "authentication_failure", "invalid or expired token")
			return
		}
		principal := auth.NewPrincipal(claims.Subject, claims.Email, claims.Role, claims.Permissions)
		next.ServeHTTP(w, r.WithContext(auth.ContextWithPrincipal(r.Context(), principal)))
	})
}

// requirePermission checks the already-authenticated principal against
// one permission key. This stage answers "may you do this" and only
// ever fails with 403.
func (a *API) requirePermission(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := auth.PrincipalFromContext(r.Context())
			if !ok {
				obs.CountAuthFailure("authenticate")
				writeErrorKind(w, http.StatusUnauthorized, "authentication_failure", "authentication required")
				return
			}
			if !principal.HasPermission(key) {
				obs.CountAuthFailure("authorize")
				writeErrorKind(w, http.StatusForbidden, "authorization_failure", "missing permission: "+key)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
