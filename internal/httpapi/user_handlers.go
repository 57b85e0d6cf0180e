package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shopworks/erp-api/internal/audit"
	"github.com/shopworks/erp-api/internal/auth"
)

type createUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	RoleID   string `json:"role_id"`
}

type updateUserRequest struct {
	Email  *string `json:"email"`
	Name   *string `json:"name"`
	Status *string `json:"status"`
	RoleID *string `json:"role_id"`
}

type changePasswordRequest struct {
	Password string `json:"password"`
}

func (a *API) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := a.svc.ListUsers(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

func (a *API) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	user, err := a.svc.CreateUser(r.Context(), req.Email, req.Password, req.Name, req.RoleID)
	if err != nil {
		writeError(w, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "user.created", map[string]any{
		"user_id": user.ID,
		"email":   user.Email,
		"role_id": user.RoleID,
	})
	writeJSON(w, http.StatusCreated, map[string]any{"user": user})
}

func (a *API) handleGetUser(w http.ResponseWriter, r *http.Request) {
	user, err := a.svc.GetUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

func (a *API) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	var req updateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	id := chi.URLParam(r, "id")
	actingID := actingUserID(r)
	user, err := a.svc.UpdateUser(r.Context(), id, auth.UserUpdate{
		Email:  req.Email,
		Name:   req.Name,
		Status: req.Status,
		RoleID: req.RoleID,
	}, actingID)
	if err != nil {
		writeError(w, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "user.updated", map[string]any{
		"user_id": user.ID,
	})
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

func (a *API) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := a.svc.DeleteUser(r.Context(), id, actingUserID(r)); err != nil {
		writeError(w, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "user.deleted", map[string]any{
		"user_id": id,
	})
	writeJSON(w, http.StatusNoContent, nil)
}

func (a *API) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	id := chi.URLParam(r, "id")
	if err := a.svc.ChangePassword(r.Context(), id, req.Password); err != nil {
		writeError(w, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "user.password_changed", map[string]any{
		"user_id": id,
	})
	writeJSON(w, http.StatusNoContent, nil)
}

func actingUserID(r *http.Request) string {
	if principal, ok := auth.PrincipalFromContext(r.Context()); ok {
		return principal.UserID
	}
	return ""
}
