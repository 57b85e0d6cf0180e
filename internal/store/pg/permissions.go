package pg

import (
	"context"
	"database/sql"

	"github.com/shopworks/erp-api/internal/auth"
	"github.com/shopworks/erp-api/internal/ids"
)

type permissionStore struct{ db *sql.DB }

func (s *permissionStore) Ensure(ctx context.Context, perms []auth.Permission) error {
	for _, p := range perms {
		if p.ID == "" {
			p.ID = ids.New()
		}
		if _, err := s.db.ExecContext(ctx, `
			insert into permissions (id, key, resource, action)
			values ($1, $2, $3, $4)
			on conflict (key) do nothing
		`, p.ID, p.Key, p.Resource, p.Action); err != nil {
			return err
		}
	}
	return nil
}

func (s *permissionStore) List(ctx context.Context) ([]auth.Permission, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, key, resource, action from permissions order by resource, action`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPermissions(rows)
}

func (s *permissionStore) FindByIDs(ctx context.Context, permIDs []string) ([]auth.Permission, error) {
	if len(permIDs) == 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		select id, key, resource, action from permissions
		where id = any($1)
	`, permIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPermissions(rows)
}

func (s *permissionStore) ForRole(ctx context.Context, roleID string) ([]auth.Permission, error) {
	return permissionsForRole(ctx, s.db, roleID)
}

func permissionsForRole(ctx context.Context, db *sql.DB, roleID string) ([]auth.Permission, error) {
	rows, err := db.QueryContext(ctx, `
		select p.id, p.key, p.resource, p.action
		from permissions p
		join role_permissions rp on rp.permission_id = p.id
		where rp.role_id = $1
		order by p.resource, p.action
	`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPermissions(rows)
}

func collectPermissions(rows *sql.Rows) ([]auth.Permission, error) {
	var perms []auth.Permission
	for rows.Next() {
		var p auth.Permission
		if err := rows.Scan(&p.ID, &p.Key, &p.Resource, &p.Action); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}
