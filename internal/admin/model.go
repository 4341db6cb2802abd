package admin

import (
	"strings"
	"time"
)

// SuperAdminRoleCode is the canonical code of the host's super-admin role.
const SuperAdminRoleCode = "strapi-super-admin"

type Role struct {
	ID   string
	Code string
	Name string
}

// Admin is a local administrator record owned by the host identity store.
type Admin struct {
	ID           string
	Email        string
	Username     string
	FirstName    string
	LastName     string
	IsActive     bool
	Roles        []Role
	PasswordHash string
	HashVersion  string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasRole reports whether any role name or code satisfies match.
func (a *Admin) HasRole(match func(string) bool) bool {
	for _, r := range a.Roles {
		if match(r.Name) || match(r.Code) {
			return true
		}
	}
	return false
}

// NewAdmin carries the attributes of an administrator about to be created.
type NewAdmin struct {
	Email        string
	Username     string
	FirstName    string
	LastName     string
	PasswordHash string
	HashVersion  string
	RoleID       string
}

// NormalizeEmail is the natural key of an Admin.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
