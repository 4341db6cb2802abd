package resolver

import (
	"context"
	"errors"

	"cms-bridge/internal/admin"
	"cms-bridge/internal/auth"
)

var (
	ErrMissingEmail    = errors.New("resolver: email is required")
	ErrUnauthorized    = errors.New("resolver: no CMS permission in cobalt token")
	ErrNoRoleAvailable = errors.New("resolver: no admin role available")
)

// Result is the local admin an external identity resolved to.
type Result struct {
	Admin   *admin.Admin
	Created bool
}

// Resolver determines which local admin an external identity belongs to.
// It is the ONLY place where identity-to-admin mapping logic lives.
type Resolver interface {
	FindOrCreate(
		ctx context.Context,
		email string,
		claims auth.Claims,
	) (Result, error)
}
