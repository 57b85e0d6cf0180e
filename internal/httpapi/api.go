package httpapi

import (
	"context"
	"database/sql"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shopworks/erp-api/internal/auth"
	"github.com/shopworks/erp-api/internal/obs"
)

// ReadyProbe reports readiness, e.g. by pinging the database.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API is the HTTP layer over the auth service.
type API struct {
	svc        *auth.Service
	readyProbe ReadyProbe
	version    string

	rateBurst  int
	ratePerSec int
}

// New constructs the API.
func New(svc *auth.Service, rp ReadyProbe, version string) *API {
	return &API{
		svc:        svc,
		readyProbe: rp,
		version:    version,
		rateBurst:  10,
		ratePerSec: 5,
	}
}

// SetLoginRateLimit overrides the login throttle, mostly for tests.
func (a *API) SetLoginRateLimit(burst, perSec int) {
	a.rateBurst = burst
	a.ratePerSec = perSec
}

// Handler assembles the router and middleware chain.
func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(SecurityHeaders)
	r.Use(CORS)
	r.Use(Logging)

	r.Get("/healthz", a.handleHealthz)
	r.Get("/readyz", a.handleReady)
	r.Handle("/metrics", obs.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/info", a.handleInfo)

		r.With(RateLimit(a.rateBurst, a.ratePerSec)).Post("/auth/login", a.handleLogin)
		r.Post("/auth/refresh", a.handleRefresh)

		r.Group(func(r chi.Router) {
			r.Use(a.authenticate)

			r.Post("/auth/logout", a.handleLogout)
			r.Get("/auth/me", a.handleMe)

			r.Route("/users", func(r chi.Router) {
				r.With(a.requirePermission(auth.PermViewUsers)).Get("/", a.handleListUsers)
				r.With(a.requirePermission(auth.PermCreateUsers)).Post("/", a.handleCreateUser)
				r.With(a.requirePermission(auth.PermViewUsers)).Get("/{id}", a.handleGetUser)
				r.With(a.requirePermission(auth.PermEditUsers)).Put("/{id}", a.handleUpdateUser)
				r.With(a.requirePermission(auth.PermDeleteUsers)).Delete("/{id}", a.handleDeleteUser)
				r.With(a.requirePermission(auth.PermEditUsers)).Put("/{id}/password", a.handleChangePassword)
			})

			r.Route("/roles", func(r chi.Router) {
				r.With(a.requirePermission(auth.PermViewRoles)).Get("/", a.handleListRoles)
				r.With(a.requirePermission(auth.PermCreateRoles)).Post("/", a.handleCreateRole)
				r.With(a.requirePermission(auth.PermViewRoles)).Get("/permissions/all", a.handleListPermissions)
				r.With(a.requirePermission(auth.PermViewRoles)).Get("/{id}", a.handleGetRole)
				r.With(a.requirePermission(auth.PermEditRoles)).Put("/{id}", a.handleUpdateRole)
				r.With(a.requirePermission(auth.PermDeleteRoles)).Delete("/{id}", a.handleDeleteRole)
			})
		})
	})

	return obs.Instrument(MaxBodyBytes(r, 1<<20))
}

func (a *API) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "erp-api",
		"version": a.version,
	})
}

func (a *API) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

func (a *API) handleInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "erp-api",
		"version": a.version,
	})
}
