package provider

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"cms-bridge/internal/auth"
)

var ErrUnknownProvider = errors.New("unknown oauth provider")

// Registry holds all configured OAuth providers and allows
// lookup by provider name. It performs no auth logic itself.
type Registry struct {
	providers map[string]OAuthProvider
}

// NewRegistry registers the given OAuth providers by name.
// Provider names must be unique.
func NewRegistry(list ...OAuthProvider) *Registry {
	m := make(map[string]OAuthProvider)
	for _, p := range list {
		m[p.Name()] = p
	}
	return &Registry{providers: m}
}

// Get returns the OAuth provider by name or an error if not registered.
func (r *Registry) Get(name string) (OAuthProvider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
	return p, nil
}

// Len reports how many providers are registered.
func (r *Registry) Len() int {
	return len(r.providers)
}

// VerifyIDToken tries every registered provider in name order and returns
// the claims of the first one that accepts the token.
func (r *Registry) VerifyIDToken(ctx context.Context, raw string) (auth.ExternalClaims, error) {
	names := make([]string, 0, len(r.providers))
	for n := range r.providers {
		names = append(names, n)
	}
	sort.Strings(names)

	err := ErrUnknownProvider
	for _, n := range names {
		claims, verr := r.providers[n].VerifyIDToken(ctx, raw)
		if verr == nil {
			return claims, nil
		}
		err = verr
	}
	return nil, err
}
