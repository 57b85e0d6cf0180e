package pg

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/shopworks/erp-api/internal/auth"
)

func TestCreateRoleWritesGrantsInOneTx(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery("insert into roles").
		WithArgs(ulidArg{}, "Sales", "sales", false).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	mock.ExpectExec("insert into role_permissions").
		WithArgs(sqlmock.AnyArg(), "perm-1").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("insert into role_permissions").
		WithArgs(sqlmock.AnyArg(), "perm-2").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	role := &auth.Role{Name: "Sales", Key: "sales"}
	if err := store.Roles().Create(context.Background(), role, []string{"perm-1", "perm-2"}); err != nil {
		t.Fatalf("create role: %v", err)
	}
	if role.ID == "" {
		t.Fatalf("expected generated role id")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateRoleDuplicateName(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("insert into roles").
		WithArgs(sqlmock.AnyArg(), "Sales", "sales", false).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectRollback()

	err := store.Roles().Create(context.Background(), &auth.Role{Name: "Sales", Key: "sales"}, []string{"perm-1"})
	if !errors.Is(err, auth.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDeleteRoleStillReferenced(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("delete from roles").
		WithArgs("role-1").
		WillReturnError(&pgconn.PgError{Code: "23503"})

	if err := store.Roles().Delete(context.Background(), "role-1"); !errors.Is(err, auth.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestFindRoleWithGrantsAndCount(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery("select r.id, r.name, r.key, r.is_system").
		WithArgs("role-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "key", "is_system", "created_at", "updated_at", "user_count"}).
			AddRow("role-1", "Administrator", "admin", true, now, now, 2))
	mock.ExpectQuery("select p.id, p.key, p.resource, p.action").
		WithArgs("role-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "key", "resource", "action"}).
			AddRow("perm-1", "view_users", "users", "view").
			AddRow("perm-2", "edit_users", "users", "edit"))

	role, err := store.Roles().Find(context.Background(), "role-1")
	if err != nil {
		t.Fatalf("find role: %v", err)
	}
	if !role.IsSystem || role.UserCount != 2 {
		t.Fatalf("unexpected role: %+v", role)
	}
	if len(role.Permissions) != 2 {
		t.Fatalf("expected 2 permissions, got %v", role.Permissions)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
