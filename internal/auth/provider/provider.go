package provider

import (
	"context"

	"cms-bridge/internal/auth"
)

// OAuthProvider defines the contract every external identity provider
// must implement. Implementations return verified claims only and
// must not create admins or sessions.
type OAuthProvider interface {
	// Name returns the provider identifier used in routes.
	Name() string

	// AuthCodeURL returns the OAuth authorization URL.
	// State and PKCE parameters are provided by the caller.
	AuthCodeURL(state string, codeChallenge string) string

	// ExchangeCode exchanges the authorization code and returns the claims
	// of the verified ID token. No auth decisions are made here.
	ExchangeCode(
		ctx context.Context,
		code string,
		codeVerifier string,
	) (auth.ExternalClaims, error)

	// VerifyIDToken checks a raw ID token issued by this provider.
	VerifyIDToken(ctx context.Context, rawIDToken string) (auth.ExternalClaims, error)
}
