package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// CreateUser adds an account. Email must be unique case-insensitively
// and the role must exist.
func (s *Service) CreateUser(ctx context.Context, email, password, name, roleID string) (*User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	roleID = strings.TrimSpace(roleID)
	if roleID == "" {
		return nil, fmt.Errorf("%w: role_id is required", ErrInvalidInput)
	}
	if _, err := s.store.Roles().Find(ctx, roleID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: role %s does not exist", ErrInvalidInput, roleID)
		}
		return nil, err
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	user := &User{
		Email:        email,
		PasswordHash: hash,
		Name:         name,
		Status:       UserStatusActive,
		RoleID:       roleID,
	}
	if err := s.store.Users().Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// GetUser returns a single account.
func (s *Service) GetUser(ctx context.Context, id string) (*User, error) {
	return s.store.Users().Find(ctx, id)
}

// ListUsers returns all accounts.
func (s *Service) ListUsers(ctx context.Context) ([]*User, error) {
	return s.store.Users().List(ctx)
}

// UpdateUser applies a partial patch. A patch that would leave zero
// active users holding the admin role fails with ErrForbidden.
func (s *Service) UpdateUser(ctx context.Context, id string, upd UserUpdate, actingUserID string) (*User, error) {
	target, err := s.store.Users().Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if upd.Email != nil {
		email := strings.TrimSpace(strings.ToLower(*upd.Email))
		if email == "" || !strings.Contains(email, "@") {
			return nil, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
		}
		upd.Email = &email
	}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
		}
		upd.Name = &name
	}
	if upd.Status != nil {
		status := strings.TrimSpace(strings.ToLower(*upd.Status))
		switch status {
		case UserStatusActive, UserStatusInactive, UserStatusSuspended:
		default:
			return nil, fmt.Errorf("%w: unsupported status %s", ErrInvalidInput, status)
		}
		upd.Status = &status
	}
	if upd.RoleID != nil {
		roleID := strings.TrimSpace(*upd.RoleID)
		if roleID == "" {
			return nil, fmt.Errorf("%w: role_id is required", ErrInvalidInput)
		}
		if _, err := s.store.Roles().Find(ctx, roleID); err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, fmt.Errorf("%w: role %s does not exist", ErrInvalidInput, roleID)
			}
			return nil, err
		}
		upd.RoleID = &roleID
	}

	if err := s.guardLastAdminOnUpdate(ctx, target, upd); err != nil {
		return nil, err
	}
	return s.store.Users().Update(ctx, id, upd)
}

// DeleteUser removes an account. Self-deletion is barred regardless of
// permissions held, as is deleting the last active admin.
func (s *Service) DeleteUser(ctx context.Context, id, actingUserID string) error {
	if id == actingUserID {
		return fmt.Errorf("%w: cannot delete your own account", ErrForbidden)
	}
	target, err := s.store.Users().Find(ctx, id)
	if err != nil {
		return err
	}
	admin, err := s.store.Roles().FindByKey(ctx, AdminRoleKey)
	if err == nil && target.RoleID == admin.ID {
		remaining, err := s.store.Users().CountActiveWithRole(ctx, admin.ID, target.ID)
		if err != nil {
			return err
		}
		if remaining == 0 {
			return fmt.Errorf("%w: at least one active admin must remain", ErrForbidden)
		}
	} else if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	return s.store.Users().Delete(ctx, id)
}

// ChangePassword re-hashes and stores a new password. Existing refresh
// tokens stay valid unless session revocation on password change is
// enabled.
func (s *Service) ChangePassword(ctx context.Context, id, newPassword string) error {
	if _, err := s.store.Users().Find(ctx, id); err != nil {
		return err
	}
	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.store.Users().UpdatePassword(ctx, id, hash); err != nil {
		return err
	}
	if s.revokeSessionsOnPasswordChange {
		return s.store.RefreshTokens().RevokeAllForUser(ctx, id)
	}
	return nil
}

// guardLastAdminOnUpdate rejects patches that would demote or
// deactivate the only remaining active admin.
func (s *Service) guardLastAdminOnUpdate(ctx context.Context, target *User, upd UserUpdate) error {
	admin, err := s.store.Roles().FindByKey(ctx, AdminRoleKey)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	if target.RoleID != admin.ID || target.Status != UserStatusActive {
		return nil
	}
	losesAdmin := upd.RoleID != nil && *upd.RoleID != admin.ID
	losesActive := upd.Status != nil && *upd.Status != UserStatusActive
	if !losesAdmin && !losesActive {
		return nil
	}
	remaining, err := s.store.Users().CountActiveWithRole(ctx, admin.ID, target.ID)
	if err != nil {
		return err
	}
	if remaining == 0 {
		return fmt.Errorf("%w: at least one active admin must remain", ErrForbidden)
	}
	return nil
}
