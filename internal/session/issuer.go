package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"cms-bridge/internal/logger"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("session: invalid token")
	ErrExpiredToken = errors.New("session: token expired")
)

// TokenClaims is the payload of an admin session token. It identifies the
// admin by id and nothing else.
type TokenClaims struct {
	ID string `json:"id"`
	jwt.RegisteredClaims
}

// Issuer mints and verifies admin session tokens and attaches them to
// responses. The server-side slot store is optional.
type Issuer struct {
	secret     []byte
	ttl        time.Duration
	production bool
	slots      Store
	now        func() time.Time
}

type IssuerOption func(*Issuer)

// WithSlots mirrors every issued token into a server-side session store.
func WithSlots(store Store) IssuerOption {
	return func(i *Issuer) { i.slots = store }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) IssuerOption {
	return func(i *Issuer) { i.now = now }
}

func NewIssuer(secret string, ttl time.Duration, production bool, opts ...IssuerOption) *Issuer {
	i := &Issuer{
		secret:     []byte(secret),
		ttl:        ttl,
		production: production,
		now:        time.Now,
	}
	for _, o := range opts {
		o(i)
	}
	return i
}

// Issue mints a token for the admin with the given id.
func (i *Issuer) Issue(adminID string) (string, error) {
	if adminID == "" {
		return "", fmt.Errorf("session: missing admin id")
	}

	now := i.now()
	claims := TokenClaims{
		ID: adminID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("session: sign: %w", err)
	}
	return signed, nil
}

// Verify checks the token and returns the admin id it was issued for.
func (i *Issuer) Verify(token string) (string, error) {
	var claims TokenClaims

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
		jwt.WithExpirationRequired(),
	)

	_, err := parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpiredToken
		}
		return "", ErrInvalidToken
	}
	if claims.ID == "" {
		return "", ErrInvalidToken
	}

	return claims.ID, nil
}

// Attach sets the session cookie and, when a slot store is configured,
// records the token server-side under a fresh slot id.
func (i *Issuer) Attach(ctx context.Context, w http.ResponseWriter, adminID string, token string) {
	opts := PolicyOptions(i.production)
	SetCookie(w, CookieName, token, i.ttl, opts)

	if i.slots == nil {
		return
	}

	sid, err := GenerateID()
	if err != nil {
		logger.Warn("session slot skipped", map[string]any{"error": err.Error()})
		return
	}

	now := i.now()
	if err := i.slots.Create(ctx, Session{
		SessionID: sid,
		UserID:    adminID,
		Token:     token,
		CreatedAt: now,
		ExpiresAt: now.Add(i.ttl),
	}); err != nil {
		// the cookie alone is a complete session
		logger.Warn("session slot skipped", map[string]any{
			"admin_user_id": adminID,
			"error":         err.Error(),
		})
		return
	}

	SetCookie(w, SlotCookieName, sid, i.ttl, opts)
}

// TokenFromRequest returns the session token carried by r: the session
// cookie first, then the server-side slot. It returns "" when neither is
// present.
func (i *Issuer) TokenFromRequest(ctx context.Context, r *http.Request) string {
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		return c.Value
	}

	if i.slots == nil {
		return ""
	}

	c, err := r.Cookie(SlotCookieName)
	if err != nil || c.Value == "" {
		return ""
	}

	s, err := i.slots.Get(ctx, c.Value)
	if err != nil || s == nil {
		return ""
	}
	if i.now().After(s.ExpiresAt) {
		_ = i.slots.Delete(ctx, s.SessionID)
		return ""
	}
	return s.Token
}

// Clear removes every session cookie and the server-side slot, if any.
func (i *Issuer) Clear(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	if i.slots != nil {
		if c, err := r.Cookie(SlotCookieName); err == nil && c.Value != "" {
			_ = i.slots.Delete(ctx, c.Value)
		}
	}

	opts := PolicyOptions(i.production)
	ClearCookie(w, CookieName, opts)
	ClearCookie(w, SlotCookieName, opts)
	ClearCookie(w, CrossAuthCookieName, opts)
}

// Production reports whether cookies are issued with the Secure flag.
func (i *Issuer) Production() bool {
	return i.production
}
