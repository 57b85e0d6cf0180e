// Package memory provides a mutex-guarded in-memory auth.Store used by
// tests and local development. The refresh-token consume path mirrors
// the SQL store's conditional-update semantics.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopworks/erp-api/internal/auth"
	"github.com/shopworks/erp-api/internal/ids"
)

// Store implements auth.Store in memory.
type Store struct {
	mu          sync.Mutex
	users       map[string]*auth.User
	roles       map[string]*auth.Role
	permissions map[string]auth.Permission // by id
	permByKey   map[string]string          // key -> id
	rolePerms   map[string]map[string]struct{}
	tokens      map[string]*auth.RefreshToken
	now         func() time.Time
}

var _ auth.Store = (*Store)(nil)

// New constructs an empty store.
func New() *Store {
	return &Store{
		users:       make(map[string]*auth.User),
		roles:       make(map[string]*auth.Role),
		permissions: make(map[string]auth.Permission),
		permByKey:   make(map[string]string),
		rolePerms:   make(map[string]map[string]struct{}),
		tokens:      make(map[string]*auth.RefreshToken),
		now:         time.Now,
	}
}

// SetClock overrides the time source, used by expiry tests.
func (s *Store) SetClock(fn func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fn != nil {
		s.now = fn
	}
}

func (s *Store) Users() auth.UserStore                 { return (*userStore)(s) }
func (s *Store) Roles() auth.RoleStore                 { return (*roleStore)(s) }
func (s *Store) Permissions() auth.PermissionStore     { return (*permissionStore)(s) }
func (s *Store) RefreshTokens() auth.RefreshTokenStore { return (*refreshTokenStore)(s) }

// --- users -----------------------------------------------------------------

type userStore Store

func (s *userStore) Create(_ context.Context, u *auth.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return fmt.Errorf("%w: email already in use", auth.ErrConflict)
		}
	}
	if _, ok := s.roles[u.RoleID]; !ok {
		return fmt.Errorf("%w: role does not exist", auth.ErrNotFound)
	}
	if u.ID == "" {
		u.ID = ids.New()
	}
	now := s.now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *userStore) Find(_ context.Context, id string) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *userStore) FindByEmail(_ context.Context, email string) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (s *userStore) List(_ context.Context) ([]*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	users := make([]*auth.User, 0, len(s.users))
	for _, u := range s.users {
		cp := *u
		users = append(users, &cp)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].CreatedAt.Before(users[j].CreatedAt) })
	return users, nil
}

func (s *userStore) Update(_ context.Context, id string, upd auth.UserUpdate) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	if upd.Email != nil {
		for otherID, other := range s.users {
			if otherID != id && strings.EqualFold(other.Email, *upd.Email) {
				return nil, fmt.Errorf("%w: email already in use", auth.ErrConflict)
			}
		}
		u.Email = *upd.Email
	}
	if upd.Name != nil {
		u.Name = *upd.Name
	}
	if upd.Status != nil {
		u.Status = *upd.Status
	}
	if upd.RoleID != nil {
		if _, ok := s.roles[*upd.RoleID]; !ok {
			return nil, fmt.Errorf("%w: role does not exist", auth.ErrNotFound)
		}
		u.RoleID = *upd.RoleID
	}
	u.UpdatedAt = s.now().UTC()
	cp := *u
	return &cp, nil
}

func (s *userStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return auth.ErrNotFound
	}
	delete(s.users, id)
	return nil
}

func (s *userStore) UpdatePassword(_ context.Context, id, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return auth.ErrNotFound
	}
	u.PasswordHash = passwordHash
	u.UpdatedAt = s.now().UTC()
	return nil
}

func (s *userStore) CountActiveWithRole(_ context.Context, roleID, excludeUserID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, u := range s.users {
		if u.RoleID == roleID && u.Status == auth.UserStatusActive && u.ID != excludeUserID {
			count++
		}
	}
	return count, nil
}

// --- roles -----------------------------------------------------------------

type roleStore Store

func (s *roleStore) Create(_ context.Context, role *auth.Role, permissionIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.roles {
		if strings.EqualFold(existing.Name, role.Name) {
			return fmt.Errorf("%w: role name already in use", auth.ErrConflict)
		}
	}
	for _, permID := range permissionIDs {
		if _, ok := s.permissions[permID]; !ok {
			return fmt.Errorf("%w: permission %s does not exist", auth.ErrInvalidInput, permID)
		}
	}
	if role.ID == "" {
		role.ID = ids.New()
	}
	now := s.now().UTC()
	role.CreatedAt = now
	role.UpdatedAt = now
	cp := *role
	cp.Permissions = nil
	s.roles[role.ID] = &cp
	set := make(map[string]struct{}, len(permissionIDs))
	for _, permID := range permissionIDs {
		set[permID] = struct{}{}
	}
	s.rolePerms[role.ID] = set
	return nil
}

func (s *roleStore) Find(_ context.Context, id string) (*auth.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	role, ok := s.roles[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return (*Store)(s).roleView(role), nil
}

func (s *roleStore) FindByKey(_ context.Context, key string) (*auth.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, role := range s.roles {
		if role.Key == key {
			return (*Store)(s).roleView(role), nil
		}
	}
	return nil, auth.ErrNotFound
}

func (s *roleStore) List(_ context.Context) ([]*auth.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	roles := make([]*auth.Role, 0, len(s.roles))
	for _, role := range s.roles {
		roles = append(roles, (*Store)(s).roleView(role))
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i].CreatedAt.Before(roles[j].CreatedAt) })
	return roles, nil
}

func (s *roleStore) Update(_ context.Context, id string, upd auth.RoleUpdate) (*auth.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	role, ok := s.roles[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	if upd.Name != nil {
		for otherID, other := range s.roles {
			if otherID != id && strings.EqualFold(other.Name, *upd.Name) {
				return nil, fmt.Errorf("%w: role name already in use", auth.ErrConflict)
			}
		}
		role.Name = *upd.Name
	}
	if upd.PermissionIDs != nil {
		for _, permID := range upd.PermissionIDs {
			if _, ok := s.permissions[permID]; !ok {
				return nil, fmt.Errorf("%w: permission %s does not exist", auth.ErrInvalidInput, permID)
			}
		}
		set := make(map[string]struct{}, len(upd.PermissionIDs))
		for _, permID := range upd.PermissionIDs {
			set[permID] = struct{}{}
		}
		s.rolePerms[id] = set
	}
	role.UpdatedAt = s.now().UTC()
	return (*Store)(s).roleView(role), nil
}

func (s *roleStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[id]; !ok {
		return auth.ErrNotFound
	}
	delete(s.roles, id)
	delete(s.rolePerms, id)
	return nil
}

func (s *roleStore) UserCount(_ context.Context, id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (*Store)(s).userCountLocked(id), nil
}

// --- permissions -----------------------------------------------------------

type permissionStore Store

func (s *permissionStore) Ensure(_ context.Context, perms []auth.Permission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range perms {
		if _, ok := s.permByKey[p.Key]; ok {
			continue
		}
		if p.ID == "" {
			p.ID = ids.New()
		}
		s.permissions[p.ID] = p
		s.permByKey[p.Key] = p.ID
	}
	return nil
}

func (s *permissionStore) List(_ context.Context) ([]auth.Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	perms := make([]auth.Permission, 0, len(s.permissions))
	for _, p := range s.permissions {
		perms = append(perms, p)
	}
	sortPermissions(perms)
	return perms, nil
}

func (s *permissionStore) FindByIDs(_ context.Context, permIDs []string) ([]auth.Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var perms []auth.Permission
	for _, id := range permIDs {
		if p, ok := s.permissions[id]; ok {
			perms = append(perms, p)
		}
	}
	sortPermissions(perms)
	return perms, nil
}

func (s *permissionStore) ForRole(_ context.Context, roleID string) ([]auth.Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (*Store)(s).permsForRoleLocked(roleID), nil
}

// --- refresh tokens --------------------------------------------------------

type refreshTokenStore Store

func (s *refreshTokenStore) Create(_ context.Context, tok *auth.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[tok.UserID]; !ok {
		return auth.ErrNotFound
	}
	cp := *tok
	s.tokens[tok.ID] = &cp
	return nil
}

func (s *refreshTokenStore) Consume(_ context.Context, id string) (*auth.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tok, ok := s.tokens[id]
	if !ok || !tok.Live(s.now()) {
		return nil, auth.ErrNotFound
	}
	tok.Revoked = true
	cp := *tok
	return &cp, nil
}

func (s *refreshTokenStore) Revoke(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tok, ok := s.tokens[id]; ok {
		tok.Revoked = true
	}
	return nil
}

func (s *refreshTokenStore) RevokeAllForUser(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tok := range s.tokens {
		if tok.UserID == userID {
			tok.Revoked = true
		}
	}
	return nil
}

func (s *refreshTokenStore) PurgeExpired(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var purged int64
	now := s.now()
	for id, tok := range s.tokens {
		if !now.Before(tok.ExpiresAt) {
			delete(s.tokens, id)
			purged++
		}
	}
	return purged, nil
}

// --- helpers ---------------------------------------------------------------

func (s *Store) roleView(role *auth.Role) *auth.Role {
	cp := *role
	cp.Permissions = s.permsForRoleLocked(role.ID)
	cp.UserCount = s.userCountLocked(role.ID)
	return &cp
}

func (s *Store) permsForRoleLocked(roleID string) []auth.Permission {
	var perms []auth.Permission
	for permID := range s.rolePerms[roleID] {
		if p, ok := s.permissions[permID]; ok {
			perms = append(perms, p)
		}
	}
	sortPermissions(perms)
	return perms
}

func (s *Store) userCountLocked(roleID string) int {
	count := 0
	for _, u := range s.users {
		if u.RoleID == roleID {
			count++
		}
	}
	return count
}

func sortPermissions(perms []auth.Permission) {
	sort.Slice(perms, func(i, j int) bool {
		if perms[i].Resource != perms[j].Resource {
			return perms[i].Resource < perms[j].Resource
		}
		return perms[i].Action < perms[j].Action
	})
}
