package middleware

import (
	"context"
	"net/http"

	"cms-bridge/internal/admin"
	"cms-bridge/internal/session"
)

// unexported, collision-proof context key
type adminContextKeyType struct{}

var adminKey = adminContextKeyType{}

// AdminFromContext extracts the authenticated admin from context.
func AdminFromContext(ctx context.Context) (*admin.Admin, bool) {
	a, ok := ctx.Value(adminKey).(*admin.Admin)
	return a, ok
}

type AuthMiddleware struct {
	Issuer *session.Issuer
	Admins admin.Store
}

func NewAuthMiddleware(issuer *session.Issuer, admins admin.Store) *AuthMiddleware {
	return &AuthMiddleware{Issuer: issuer, Admins: admins}
}

// Authenticate resolves the admin behind the request's session, if any.
// It never writes to the response.
func (a *AuthMiddleware) Authenticate(r *http.Request) (*admin.Admin, bool) {
	token := a.Issuer.TokenFromRequest(r.Context(), r)
	if token == "" {
		return nil, false
	}

	id, err := a.Issuer.Verify(token)
	if err != nil {
		return nil, false
	}

	u, err := a.Admins.FindByID(r.Context(), id)
	if err != nil || !u.IsActive {
		return nil, false
	}

	return u, true
}

func (a *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := a.Authenticate(r)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), adminKey, u)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
