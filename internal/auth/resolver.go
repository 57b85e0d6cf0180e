package auth

import (
	"context"
	"sort"
)

// PermissionsForRole returns the sorted, deduplicated permission keys
// granted to a role. The set is recomputed on every call so that role
// edits propagate to newly issued tokens without migrations; tokens
// already in flight keep their issuance-time snapshot.
func (s *Service) PermissionsForRole(ctx context.Context, roleID string) ([]string, error) {
	perms, err := s.store.Permissions().ForRole(ctx, roleID)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(perms))
	keys := make([]string, 0, len(perms))
	for _, p := range perms {
		if _, ok := seen[p.Key]; ok {
			continue
		}
		seen[p.Key] = struct{}{}
		keys = append(keys, p.Key)
	}
	sort.Strings(keys)
	return keys, nil
}
