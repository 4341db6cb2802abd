package session

import (
	"context"
	"time"
)

// Session is the optional server-side slot that mirrors an issued admin
// token. It stores only identity pointers and the token itself.
type Session struct {
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id"` // references admin_users.id
	Token     string    `json:"token"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"` // absolute expiry time
}

// Store defines how sessions are stored and retrieved. Get returns
// (nil, nil) for unknown ids.
type Store interface {
	Create(ctx context.Context, s Session) error
	Get(ctx context.Context, sessionID string) (*Session, error)
	Delete(ctx context.Context, sessionID string) error
}
