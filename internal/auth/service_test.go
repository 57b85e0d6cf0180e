package auth_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopworks/erp-api/internal/auth"
	"github.com/shopworks/erp-api/internal/store/memory"
)

// env wires a service against the in-memory store with a controllable
// clock and a seeded admin account.
type env struct {
	t     *testing.T
	store *memory.Store
	svc   *auth.Service

	adminRole *auth.Role
	admin     *auth.User

	mu  sync.Mutex
	now time.Time
}

func newEnv(t *testing.T, opts ...auth.ServiceOption) *env {
	t.Helper()
	e := &env{
		t:   t,
		now: time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC),
	}
	e.store = memory.New()
	e.store.SetClock(e.clock)

	svcOpts := append([]auth.ServiceOption{auth.WithClock(e.clock)}, opts...)
	svc, err := auth.NewService(e.store, "test-secret", svcOpts...)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	e.svc = svc

	ctx := context.Background()
	if err := svc.EnsureBuiltins(ctx); err != nil {
		t.Fatalf("EnsureBuiltins: %v", err)
	}

	e.adminRole = &auth.Role{Name: "Administrator", Key: auth.AdminRoleKey, IsSystem: true}
	if err := e.store.Roles().Create(ctx, e.adminRole, e.permissionIDs()); err != nil {
		t.Fatalf("create admin role: %v", err)
	}
	e.admin, err = svc.CreateUser(ctx, "admin@shop.test", "admin123", "Administrator", e.adminRole.ID)
	if err != nil {
		t.Fatalf("create admin user: %v", err)
	}
	return e
}

func (e *env) clock() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.now
}

func (e *env) advance(d time.Duration) {
	e.mu.Lock()
	e.now = e.now.Add(d)
	e.mu.Unlock()
}

// permissionIDs resolves seeded permission keys to ids; with no keys it
// returns every seeded permission.
func (e *env) permissionIDs(keys ...string) []string {
	e.t.Helper()
	perms, err := e.store.Permissions().List(context.Background())
	if err != nil {
		e.t.Fatalf("list permissions: %v", err)
	}
	if len(keys) == 0 {
		ids := make([]string, 0, len(perms))
		for _, p := range perms {
			ids = append(ids, p.ID)
		}
		return ids
	}
	want := make(map[string]bool, len(keys))
	for _, k := range keys {
		want[k] = true
	}
	var ids []string
	for _, p := range perms {
		if want[p.Key] {
			ids = append(ids, p.ID)
		}
	}
	if len(ids) != len(keys) {
		e.t.Fatalf("unknown permission keys in %v", keys)
	}
	return ids
}

// newRole creates a custom role holding the given permission keys.
func (e *env) newRole(name string, keys ...string) *auth.Role {
	e.t.Helper()
	role, err := e.svc.CreateRole(context.Background(), name, e.permissionIDs(keys...))
	if err != nil {
		e.t.Fatalf("create role %s: %v", name, err)
	}
	return role
}

func TestLogin(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	pair, user, err := e.svc.Login(ctx, "Admin@Shop.Test", "admin123")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if user.ID != e.admin.ID {
		t.Fatalf("unexpected user: %s", user.ID)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatalf("expected both tokens, got %+v", pair)
	}
	if !pair.AccessExpiresAt.Equal(e.clock().Add(time.Hour)) {
		t.Fatalf("unexpected access expiry: %v", pair.AccessExpiresAt)
	}

	claims, err := e.svc.VerifyAccessToken(pair.AccessToken)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Subject != e.admin.ID {
		t.Fatalf("unexpected subject: %s", claims.Subject)
	}
	if claims.Email != "admin@shop.test" || claims.Role != auth.AdminRoleKey {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if len(claims.Permissions) != len(auth.BuiltinPermissions) {
		t.Fatalf("expected full permission snapshot, got %d keys", len(claims.Permissions))
	}
}

func TestLoginFailuresAreUniform(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	cases := []struct {
		name     string
		email    string
		password string
	}{
		{"unknown email", "nobody@shop.test", "admin123"},
		{"wrong password", "admin@shop.test", "not-the-password"},
		{"empty password", "admin@shop.test", ""},
	}
	for _, tc := range cases {
		if _, _, err := e.svc.Login(ctx, tc.email, tc.password); !errors.Is(err, auth.ErrUnauthorized) {
			t.Fatalf("%s: expected ErrUnauthorized, got %v", tc.name, err)
		}
	}

	// A suspended account fails identically even with valid credentials.
	role := e.newRole("Viewer", auth.PermViewUsers)
	user, err := e.svc.CreateUser(ctx, "frozen@shop.test", "secret99", "Frozen", role.ID)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	status := auth.UserStatusSuspended
	if _, err := e.svc.UpdateUser(ctx, user.ID, auth.UserUpdate{Status: &status}, e.admin.ID); err != nil {
		t.Fatalf("suspend user: %v", err)
	}
	if _, _, err := e.svc.Login(ctx, "frozen@shop.test", "secret99"); !errors.Is(err, auth.ErrUnauthorized) {
		t.Fatalf("suspended login: expected ErrUnauthorized, got %v", err)
	}
}

func TestMeResolvesLivePermissions(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	role := e.newRole("Sales", auth.PermViewCustomers, auth.PermEditCustomers)
	user, err := e.svc.CreateUser(ctx, "sales@shop.test", "secret99", "Sales", role.ID)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	got, gotRole, perms, err := e.svc.Me(ctx, user.ID)
	if err != nil {
		t.Fatalf("me: %v", err)
	}
	if got.ID != user.ID || gotRole.ID != role.ID {
		t.Fatalf("unexpected identity: user=%s role=%s", got.ID, gotRole.ID)
	}
	want := []string{auth.PermEditCustomers, auth.PermViewCustomers}
	if len(perms) != len(want) || perms[0] != want[0] || perms[1] != want[1] {
		t.Fatalf("expected sorted %v, got %v", want, perms)
	}
}
