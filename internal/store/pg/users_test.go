package pg

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"

	"github.com/shopworks/erp-api/internal/auth"
)

// ulidArg matches any bind value that parses as a ULID, the format the
// text id columns store.
type ulidArg struct{}

func (ulidArg) Match(v driver.Value) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	_, err := ulid.Parse(s)
	return err == nil
}

func TestCreateUserBindsTextULID(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery("insert into users").
		WithArgs(ulidArg{}, "new@shop.test", "hash", "New", "active", "role-1").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	user := &auth.User{
		Email:        "new@shop.test",
		PasswordHash: "hash",
		Name:         "New",
		Status:       auth.UserStatusActive,
		RoleID:       "role-1",
	}
	if err := store.Users().Create(context.Background(), user); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := ulid.Parse(user.ID); err != nil {
		t.Fatalf("generated id is not a ULID: %q", user.ID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateUserMapsUniqueViolation(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("insert into users").
		WithArgs(sqlmock.AnyArg(), "dup@shop.test", "hash", "Dup", "active", "role-1").
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err := store.Users().Create(context.Background(), &auth.User{
		Email:        "dup@shop.test",
		PasswordHash: "hash",
		Name:         "Dup",
		Status:       auth.UserStatusActive,
		RoleID:       "role-1",
	})
	if !errors.Is(err, auth.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateUserMapsMissingRole(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("insert into users").
		WithArgs(sqlmock.AnyArg(), "a@shop.test", "hash", "A", "active", "ghost-role").
		WillReturnError(&pgconn.PgError{Code: "23503"})

	err := store.Users().Create(context.Background(), &auth.User{
		Email:        "a@shop.test",
		PasswordHash: "hash",
		Name:         "A",
		Status:       auth.UserStatusActive,
		RoleID:       "ghost-role",
	})
	if !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestFindByEmail(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	rows := sqlmock.NewRows([]string{"id", "email", "password_hash", "name", "status", "role_id", "created_at", "updated_at"}).
		AddRow("user-1", "admin@shop.test", "hash", "Admin", "active", "role-1", now, now)
	mock.ExpectQuery("select (.+) from users where email = lower").
		WithArgs("admin@shop.test").
		WillReturnRows(rows)

	user, err := store.Users().FindByEmail(context.Background(), "admin@shop.test")
	if err != nil {
		t.Fatalf("find by email: %v", err)
	}
	if user.ID != "user-1" || user.RoleID != "role-1" {
		t.Fatalf("unexpected user: %+v", user)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestFindUnknownUser(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("select (.+) from users where id =").
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	if _, err := store.Users().Find(context.Background(), "ghost"); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpdateUserMissingRow(t *testing.T) {
	store, mock := newMockStore(t)

	name := "Ghost"
	mock.ExpectExec("update users set name =").
		WithArgs("Ghost", "ghost-id").
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := store.Users().Update(context.Background(), "ghost-id", auth.UserUpdate{Name: &name})
	if !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCountActiveWithRoleExcludesUser(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("select count").
		WithArgs("role-1", "user-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	count, err := store.Users().CountActiveWithRole(context.Background(), "role-1", "user-1")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2, got %d", count)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
