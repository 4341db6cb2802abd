package admin

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInactive           = errors.New("admin: account is disabled")
)

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

func (s *Service) Store() Store {
	return s.store
}

// Authenticate verifies an email/password pair against the stored hash.
// Unknown emails and wrong passwords are indistinguishable to the caller.
func (s *Service) Authenticate(
	ctx context.Context,
	email string,
	password string,
) (*Admin, error) {

	a, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		// hide whether user exists or not
		return nil, ErrInvalidCredentials
	}

	if err := VerifyPassword(a.PasswordHash, password); err != nil {
		return nil, ErrInvalidCredentials
	}

	if !a.IsActive {
		return nil, ErrInactive
	}

	return a, nil
}

// DefaultRole resolves the role given to provisioned admins: the
// super-admin code first, then any role whose name mentions Admin.
func (s *Service) DefaultRole(ctx context.Context) (*Role, error) {
	r, err := s.store.FindRoleByCode(ctx, SuperAdminRoleCode)
	if err == nil {
		return r, nil
	}
	if !errors.Is(err, ErrRoleNotFound) {
		return nil, err
	}

	r, err = s.store.FindRoleByNameContains(ctx, "Admin")
	if err != nil {
		if errors.Is(err, ErrRoleNotFound) {
			return nil, fmt.Errorf("no admin role found: %w", err)
		}
		return nil, err
	}
	return r, nil
}
