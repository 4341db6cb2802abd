package admin

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultRoles are seeded into every fresh store.
var DefaultRoles = []Role{
	{Code: SuperAdminRoleCode, Name: "Super Admin"},
	{Code: "strapi-editor", Name: "Editor"},
	{Code: "strapi-author", Name: "Author"},
}

// MemoryStore is an in-process Store used for development and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	byID    map[string]*Admin
	byEmail map[string]string
	roles   []Role
}

// NewMemoryStore returns a store seeded with roles, or DefaultRoles when
// none are given.
func NewMemoryStore(roles ...Role) *MemoryStore {
	if roles == nil {
		roles = DefaultRoles
	}

	s := &MemoryStore{
		byID:    make(map[string]*Admin),
		byEmail: make(map[string]string),
	}
	for _, r := range roles {
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		s.roles = append(s.roles, r)
	}
	return s
}

// Put stores a fully formed admin, replacing any admin with the same id.
func (s *MemoryStore) Put(a Admin) *Admin {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.Email = NormalizeEmail(a.Email)
	if old, ok := s.byID[a.ID]; ok && s.byEmail[old.Email] == a.ID {
		delete(s.byEmail, old.Email)
	}
	cp := a
	s.byID[a.ID] = &cp
	s.byEmail[a.Email] = a.ID
	return clone(&cp)
}

// Count returns the number of stored admins.
func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

func (s *MemoryStore) FindByEmail(_ context.Context, email string) (*Admin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[NormalizeEmail(email)]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(s.byID[id]), nil
}

func (s *MemoryStore) FindByID(_ context.Context, id string) (*Admin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(a), nil
}

func (s *MemoryStore) GetOrCreate(_ context.Context, n NewAdmin) (*Admin, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := NormalizeEmail(n.Email)
	if id, ok := s.byEmail[email]; ok {
		return clone(s.byID[id]), false, nil
	}

	var roles []Role
	if n.RoleID != "" {
		r, ok := s.roleByID(n.RoleID)
		if !ok {
			return nil, false, ErrRoleNotFound
		}
		roles = append(roles, r)
	}

	now := time.Now().UTC()
	a := &Admin{
		ID:           uuid.NewString(),
		Email:        email,
		Username:     n.Username,
		FirstName:    n.FirstName,
		LastName:     n.LastName,
		IsActive:     true,
		Roles:        roles,
		PasswordHash: n.PasswordHash,
		HashVersion:  n.HashVersion,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.byID[a.ID] = a
	s.byEmail[email] = a.ID

	return clone(a), true, nil
}

func (s *MemoryStore) FindRoleByCode(_ context.Context, code string) (*Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.roles {
		if r.Code == code {
			cp := r
			return &cp, nil
		}
	}
	return nil, ErrRoleNotFound
}

func (s *MemoryStore) FindRoleByNameContains(_ context.Context, fragment string) (*Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.roles {
		if strings.Contains(r.Name, fragment) {
			cp := r
			return &cp, nil
		}
	}
	return nil, ErrRoleNotFound
}

func (s *MemoryStore) roleByID(id string) (Role, bool) {
	for _, r := range s.roles {
		if r.ID == id {
			return r, true
		}
	}
	return Role{}, false
}

func clone(a *Admin) *Admin {
	cp := *a
	cp.Roles = append([]Role(nil), a.Roles...)
	return &cp
}
