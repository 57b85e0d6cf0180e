package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/shopworks/erp-api/internal/auth"
	"github.com/shopworks/erp-api/internal/ids"
)

type roleStore struct{ db *sql.DB }

func (s *roleStore) Create(ctx context.Context, role *auth.Role, permissionIDs []string) error {
	if role.ID == "" {
		role.ID = ids.New()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `
		insert into roles (id, name, key, is_system)
		values ($1, $2, $3, $4)
		returning created_at, updated_at
	`, role.ID, role.Name, role.Key, role.IsSystem)
	if err := row.Scan(&role.CreatedAt, &role.UpdatedAt); err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return fmt.Errorf("%w: role name already in use", auth.ErrConflict)
		}
		return err
	}
	for _, permID := range permissionIDs {
		if _, err := tx.ExecContext(ctx, `
			insert into role_permissions (role_id, permission_id)
			values ($1, $2)
		`, role.ID, permID); err != nil {
			if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
				return fmt.Errorf("%w: permission %s does not exist", auth.ErrInvalidInput, permID)
			}
			return err
		}
	}
	return tx.Commit()
}

func (s *roleStore) Find(ctx context.Context, id string) (*auth.Role, error) {
	return s.findWhere(ctx, "r.id = $1", id)
}

func (s *roleStore) FindByKey(ctx context.Context, key string) (*auth.Role, error) {
	return s.findWhere(ctx, "r.key = $1", key)
}

func (s *roleStore) findWhere(ctx context.Context, where string, arg any) (*auth.Role, error) {
	var role auth.Role
	err := s.db.QueryRowContext(ctx, `
		select r.id, r.name, r.key, r.is_system, r.created_at, r.updated_at,
		       (select count(*) from users u where u.role_id = r.id) as user_count
		from roles r
		where `+where, arg).
		Scan(&role.ID, &role.Name, &role.Key, &role.IsSystem, &role.CreatedAt, &role.UpdatedAt, &role.UserCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	perms, err := permissionsForRole(ctx, s.db, role.ID)
	if err != nil {
		return nil, err
	}
	role.Permissions = perms
	return &role, nil
}

func (s *roleStore) List(ctx context.Context) ([]*auth.Role, error) {
	rows, err := s.db.QueryContext(ctx, `
		select r.id, r.name, r.key, r.is_system, r.created_at, r.updated_at,
		       (select count(*) from users u where u.role_id = r.id) as user_count
		from roles r
		order by r.created_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []*auth.Role
	for rows.Next() {
		var role auth.Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Key, &role.IsSystem,
			&role.CreatedAt, &role.UpdatedAt, &role.UserCount); err != nil {
			return nil, err
		}
		roles = append(roles, &role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, role := range roles {
		perms, err := permissionsForRole(ctx, s.db, role.ID)
		if err != nil {
			return nil, err
		}
		role.Permissions = perms
	}
	return roles, nil
}

func (s *roleStore) Update(ctx context.Context, id string, upd auth.RoleUpdate) (*auth.Role, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if upd.Name != nil {
		var (
			sets = []string{"name = $1", "updated_at = now()"}
			args = []any{*upd.Name, id}
		)
		res, err := tx.ExecContext(ctx,
			fmt.Sprintf(`update roles set %s where id = $2`, strings.Join(sets, ", ")), args...)
		if err != nil {
			if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
				return nil, fmt.Errorf("%w: role name already in use", auth.ErrConflict)
			}
			return nil, err
		}
		aff, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if aff == 0 {
			return nil, auth.ErrNotFound
		}
	}
	if upd.PermissionIDs != nil {
		if _, err := tx.ExecContext(ctx, `delete from role_permissions where role_id = $1`, id); err != nil {
			return nil, err
		}
		for _, permID := range upd.PermissionIDs {
			if _, err := tx.ExecContext(ctx, `
				insert into role_permissions (role_id, permission_id)
				values ($1, $2)
			`, id, permID); err != nil {
				if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
					return nil, fmt.Errorf("%w: permission %s does not exist", auth.ErrInvalidInput, permID)
				}
				return nil, err
			}
		}
		if _, err := tx.ExecContext(ctx, `update roles set updated_at = now() where id = $1`, id); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.Find(ctx, id)
}

func (s *roleStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from roles where id = $1`, id)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return fmt.Errorf("%w: role is still referenced", auth.ErrConflict)
		}
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return auth.ErrNotFound
	}
	return nil
}

func (s *roleStore) UserCount(ctx context.Context, id string) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx,
		`select count(*) from users where role_id = $1`, id).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
