package admin

import (
	"context"
	"errors"
)

var (
	ErrNotFound     = errors.New("admin: not found")
	ErrRoleNotFound = errors.New("admin: role not found")
)

// Store is the host CMS identity store as seen by the bridge. The bridge
// only reads and creates; it never updates, demotes, or deletes admins.
type Store interface {
	// FindByEmail looks the admin up by lowercase email, roles populated.
	FindByEmail(ctx context.Context, email string) (*Admin, error)

	FindByID(ctx context.Context, id string) (*Admin, error)

	// GetOrCreate atomically inserts a, or returns the admin already
	// holding a.Email. created is false when the email was taken, in
	// which case a is discarded.
	GetOrCreate(ctx context.Context, a NewAdmin) (admin *Admin, created bool, err error)

	FindRoleByCode(ctx context.Context, code string) (*Role, error)

	// FindRoleByNameContains returns any role whose name contains fragment.
	FindRoleByNameContains(ctx context.Context, fragment string) (*Role, error)
}
