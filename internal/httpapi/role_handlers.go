package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shopworks/erp-api/internal/audit"
	"github.com/shopworks/erp-api/internal/auth"
)

type createRoleRequest struct {
	Name          string   `json:"name"`
	PermissionIDs []string `json:"permission_ids"`
}

type updateRoleRequest struct {
	Name          *string  `json:"name"`
	PermissionIDs []string `json:"permission_ids"`
}

func (a *API) handleListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := a.svc.ListRoles(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"roles": roles})
}

func (a *API) handleCreateRole(w http.ResponseWriter, r *http.Request) {
	var req createRoleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	role, err := a.svc.CreateRole(r.Context(), req.Name, req.PermissionIDs)
	if err != nil {
		writeError(w, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "role.created", map[string]any{
		"role_id": role.ID,
		"key":     role.Key,
	})
	writeJSON(w, http.StatusCreated, map[string]any{"role": role})
}

func (a *API) handleGetRole(w http.ResponseWriter, r *http.Request) {
	role, err := a.svc.GetRole(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"role": role})
}

func (a *API) handleUpdateRole(w http.ResponseWriter, r *http.Request) {
	var req updateRoleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	role, err := a.svc.UpdateRole(r.Context(), chi.URLParam(r, "id"), auth.RoleUpdate{
		Name:          req.Name,
		PermissionIDs: req.PermissionIDs,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "role.updated", map[string]any{
		"role_id": role.ID,
	})
	writeJSON(w, http.StatusOK, map[string]any{"role": role})
}

func (a *API) handleDeleteRole(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := a.svc.DeleteRole(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "role.deleted", map[string]any{
		"role_id": id,
	})
	writeJSON(w, http.StatusNoContent, nil)
}

func (a *API) handleListPermissions(w http.ResponseWriter, r *http.Request) {
	grouped, err := a.svc.ListPermissions(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"permissions": grouped})
}
