package auth_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopworks/erp-api/internal/auth"
)

func TestCreateUserValidation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	role := e.newRole("Viewer", auth.PermViewUsers)

	cases := []struct {
		name     string
		email    string
		password string
		fullName string
		roleID   string
	}{
		{"missing email", "", "secret99", "Someone", role.ID},
		{"no at sign", "not-an-email", "secret99", "Someone", role.ID},
		{"short password", "a@shop.test", "tiny", "Someone", role.ID},
		{"missing name", "a@shop.test", "secret99", "  ", role.ID},
		{"missing role", "a@shop.test", "secret99", "Someone", ""},
		{"unknown role", "a@shop.test", "secret99", "Someone", "nope"},
	}
	for _, tc := range cases {
		if _, err := e.svc.CreateUser(ctx, tc.email, tc.password, tc.fullName, tc.roleID); !errors.Is(err, auth.ErrInvalidInput) {
			t.Fatalf("%s: expected ErrInvalidInput, got %v", tc.name, err)
		}
	}

	// Duplicate email is a conflict, case-insensitively.
	if _, err := e.svc.CreateUser(ctx, "dup@shop.test", "secret99", "First", role.ID); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := e.svc.CreateUser(ctx, "DUP@shop.test", "secret99", "Second", role.ID); !errors.Is(err, auth.ErrConflict) {
		t.Fatalf("duplicate email: expected ErrConflict, got %v", err)
	}
}

func TestDeleteUserSelfForbidden(t *testing.T) {
	e := newEnv(t)
	err := e.svc.DeleteUser(context.Background(), e.admin.ID, e.admin.ID)
	if !errors.Is(err, auth.ErrForbidden) {
		t.Fatalf("self-delete: expected ErrForbidden, got %v", err)
	}
}

func TestDeleteLastAdminForbidden(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	role := e.newRole("Viewer", auth.PermViewUsers)
	actor, err := e.svc.CreateUser(ctx, "other@shop.test", "secret99", "Other", role.ID)
	if err != nil {
		t.Fatalf("create actor: %v", err)
	}

	if err := e.svc.DeleteUser(ctx, e.admin.ID, actor.ID); !errors.Is(err, auth.ErrForbidden) {
		t.Fatalf("last admin delete: expected ErrForbidden, got %v", err)
	}

	// With a second active admin in place the deletion goes through.
	if _, err := e.svc.CreateUser(ctx, "admin2@shop.test", "secret99", "Second Admin", e.adminRole.ID); err != nil {
		t.Fatalf("create second admin: %v", err)
	}
	if err := e.svc.DeleteUser(ctx, e.admin.ID, actor.ID); err != nil {
		t.Fatalf("delete with backup admin: %v", err)
	}
}

func TestUpdateLastAdminGuard(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	role := e.newRole("Viewer", auth.PermViewUsers)

	demote := role.ID
	if _, err := e.svc.UpdateUser(ctx, e.admin.ID, auth.UserUpdate{RoleID: &demote}, e.admin.ID); !errors.Is(err, auth.ErrForbidden) {
		t.Fatalf("demote last admin: expected ErrForbidden, got %v", err)
	}
	deactivate := auth.UserStatusInactive
	if _, err := e.svc.UpdateUser(ctx, e.admin.ID, auth.UserUpdate{Status: &deactivate}, e.admin.ID); !errors.Is(err, auth.ErrForbidden) {
		t.Fatalf("deactivate last admin: expected ErrForbidden, got %v", err)
	}

	// Renaming the last admin is fine; only role and status are guarded.
	name := "Still Admin"
	if _, err := e.svc.UpdateUser(ctx, e.admin.ID, auth.UserUpdate{Name: &name}, e.admin.ID); err != nil {
		t.Fatalf("rename last admin: %v", err)
	}

	if _, err := e.svc.CreateUser(ctx, "admin2@shop.test", "secret99", "Second Admin", e.adminRole.ID); err != nil {
		t.Fatalf("create second admin: %v", err)
	}
	if _, err := e.svc.UpdateUser(ctx, e.admin.ID, auth.UserUpdate{RoleID: &demote}, e.admin.ID); err != nil {
		t.Fatalf("demote with backup admin: %v", err)
	}
}

func TestChangePassword(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	pair, _, err := e.svc.Login(ctx, "admin@shop.test", "admin123")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := e.svc.ChangePassword(ctx, e.admin.ID, "brand-new-pass"); err != nil {
		t.Fatalf("change password: %v", err)
	}

	if _, _, err := e.svc.Login(ctx, "admin@shop.test", "admin123"); !errors.Is(err, auth.ErrUnauthorized) {
		t.Fatalf("old password: expected ErrUnauthorized, got %v", err)
	}
	if _, _, err := e.svc.Login(ctx, "admin@shop.test", "brand-new-pass"); err != nil {
		t.Fatalf("new password: %v", err)
	}

	// Default policy keeps outstanding sessions alive.
	if _, _, err := e.svc.Rotate(ctx, pair.RefreshToken); err != nil {
		t.Fatalf("rotate after password change: %v", err)
	}

	if err := e.svc.ChangePassword(ctx, e.admin.ID, "tiny"); !errors.Is(err, auth.ErrInvalidInput) {
		t.Fatalf("short password: expected ErrInvalidInput, got %v", err)
	}
}

func TestChangePasswordRevokesSessionsWhenEnabled(t *testing.T) {
	e := newEnv(t, auth.WithSessionRevocationOnPasswordChange(true))
	ctx := context.Background()

	pair, _, err := e.svc.Login(ctx, "admin@shop.test", "admin123")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := e.svc.ChangePassword(ctx, e.admin.ID, "brand-new-pass"); err != nil {
		t.Fatalf("change password: %v", err)
	}
	if _, _, err := e.svc.Rotate(ctx, pair.RefreshToken); !errors.Is(err, auth.ErrInvalidToken) {
		t.Fatalf("rotate after revoking change: expected ErrInvalidToken, got %v", err)
	}
}
