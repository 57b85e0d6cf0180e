package auth

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

var roleKeyPattern = regexp.MustCompile(`[^a-z0-9]+`)

// CreateRole adds a custom role with at least one valid permission.
// The stable key is derived from the name.
func (s *Service) CreateRole(ctx context.Context, name string, permissionIDs []string) (*Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: role name is required", ErrInvalidInput)
	}
	permissionIDs = dedupeStrings(permissionIDs)
	if len(permissionIDs) == 0 {
		return nil, fmt.Errorf("%w: at least one permission is required", ErrInvalidInput)
	}
	if err := s.validatePermissionIDs(ctx, permissionIDs); err != nil {
		return nil, err
	}
	key := roleKey(name)
	if key == "" {
		return nil, fmt.Errorf("%w: role name must contain letters or digits", ErrInvalidInput)
	}
	role := &Role{
		Name:     name,
		Key:      key,
		IsSystem: false,
	}
	if err := s.store.Roles().Create(ctx, role, permissionIDs); err != nil {
		return nil, err
	}
	return s.store.Roles().Find(ctx, role.ID)
}

// GetRole returns a role with its permission set and user count.
func (s *Service) GetRole(ctx context.Context, id string) (*Role, error) {
	return s.store.Roles().Find(ctx, id)
}

// ListRoles returns all roles with user counts.
func (s *Service) ListRoles(ctx context.Context) ([]*Role, error) {
	return s.store.Roles().List(ctx)
}

// UpdateRole renames a role or replaces its permission set. System
// roles are immutable.
func (s *Service) UpdateRole(ctx context.Context, id string, upd RoleUpdate) (*Role, error) {
	role, err := s.store.Roles().Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if role.IsSystem {
		return nil, fmt.Errorf("%w: system roles cannot be modified", ErrForbidden)
	}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: role name is required", ErrInvalidInput)
		}
		upd.Name = &name
	}
	if upd.PermissionIDs != nil {
		upd.PermissionIDs = dedupeStrings(upd.PermissionIDs)
		if len(upd.PermissionIDs) == 0 {
			return nil, fmt.Errorf("%w: at least one permission is required", ErrInvalidInput)
		}
		if err := s.validatePermissionIDs(ctx, upd.PermissionIDs); err != nil {
			return nil, err
		}
	}
	return s.store.Roles().Update(ctx, id, upd)
}

// DeleteRole removes a custom role. System roles cannot be deleted and
// a role still assigned to users yields ErrConflict.
func (s *Service) DeleteRole(ctx context.Context, id string) error {
	role, err := s.store.Roles().Find(ctx, id)
	if err != nil {
		return err
	}
	if role.IsSystem {
		return fmt.Errorf("%w: system roles cannot be deleted", ErrForbidden)
	}
	count, err := s.store.Roles().UserCount(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("%w: role is assigned to %d user(s)", ErrConflict, count)
	}
	return s.store.Roles().Delete(ctx, id)
}

// ListPermissions returns the seeded catalog grouped by resource, in
// catalog order. Used to render assignment UIs; never mutated at
// runtime.
func (s *Service) ListPermissions(ctx context.Context) (map[string][]Permission, error) {
	perms, err := s.store.Permissions().List(ctx)
	if err != nil {
		return nil, err
	}
	grouped := make(map[string][]Permission)
	for _, p := range perms {
		grouped[p.Resource] = append(grouped[p.Resource], p)
	}
	return grouped, nil
}

func (s *Service) validatePermissionIDs(ctx context.Context, ids []string) error {
	found, err := s.store.Permissions().FindByIDs(ctx, ids)
	if err != nil {
		return err
	}
	if len(found) != len(ids) {
		return fmt.Errorf("%w: one or more permission ids are unknown", ErrInvalidInput)
	}
	return nil
}

func roleKey(name string) string {
	key := strings.ToLower(strings.TrimSpace(name))
	key = roleKeyPattern.ReplaceAllString(key, "_")
	return strings.Trim(key, "_")
}

func dedupeStrings(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := set[v]; ok {
			continue
		}
		set[v] = struct{}{}
		result = append(result, v)
	}
	return result
}
