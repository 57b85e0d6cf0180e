package httpapi

import (
	"errors"
	"net/http"

	"github.com/shopworks/erp-api/internal/audit"
	"github.com/shopworks/erp-api/internal/auth"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// sessionResponse flattens the token pair next to the user snapshot.
type sessionResponse struct {
	auth.TokenPair
	User *auth.User `json:"user"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	pair, user, err := a.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrUnauthorized) {
			_ = audit.LogEvent(r.Context(), "auth.login_failed", map[string]any{
				"email": req.Email,
			})
		}
		writeError(w, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.login", map[string]any{
		"user_id": user.ID,
		"email":   user.Email,
	})
	writeJSON(w, http.StatusOK, sessionResponse{TokenPair: pair, User: user})
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	pair, user, err := a.svc.Rotate(r.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidToken) {
			// Covers replay of an already-consumed token, which is worth
			// an audit trail of its own.
			_ = audit.LogEvent(r.Context(), "auth.refresh_rejected", nil)
		}
		writeError(w, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.refresh", map[string]any{
		"user_id": user.ID,
	})
	writeJSON(w, http.StatusOK, sessionResponse{TokenPair: pair, User: user})
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	// A missing or malformed body is tolerated; logout is idempotent.
	var req refreshRequest
	_ = decodeJSON(r, &req)
	if err := a.svc.Logout(r.Context(), req.RefreshToken); err != nil {
		writeError(w, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.logout", nil)
	writeJSON(w, http.StatusNoContent, nil)
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeErrorKind(w, http.StatusUnauthorized, "authentication_failure", "authentication required")
		return
	}
	user, role, perms, err := a.svc.Me(r.Context(), principal.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user":        user,
		"role":        role,
		"permissions": perms,
	})
}
