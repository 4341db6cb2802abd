// Package audit links external Cobalt identities to local admins and keeps
// a login counter for each link.
package audit

import (
	"context"
	"errors"
	"sync"
	"time"

	"cms-bridge/internal/logger"
)

var ErrNotFound = errors.New("audit: record not found")

// LoginRecord is one external identity's login history.
type LoginRecord struct {
	CobaltUserID   string
	CobaltUsername string
	AdminUserID    string
	LastLogin      time.Time
	LoginCount     int
}

// Login describes a single successful bridge login.
type Login struct {
	CobaltUserID   string
	CobaltUsername string
	AdminUserID    string
	At             time.Time
}

type Store interface {
	// Touch creates the record with a count of one, or bumps the count and
	// refreshes the timestamp of an existing one.
	Touch(ctx context.Context, l Login) error
	Get(ctx context.Context, cobaltUserID string) (*LoginRecord, error)
}

// Recorder writes login records off the request path. Failures are logged
// and dropped; they never reach the caller.
type Recorder struct {
	store   Store
	timeout time.Duration
	now     func() time.Time
	wg      sync.WaitGroup
}

func NewRecorder(store Store) *Recorder {
	return &Recorder{
		store:   store,
		timeout: 5 * time.Second,
		now:     time.Now,
	}
}

// Record schedules a write and returns immediately. Logins without an
// external subject are not tracked.
func (r *Recorder) Record(ctx context.Context, l Login) {
	if r == nil || r.store == nil || l.CobaltUserID == "" {
		return
	}
	if l.At.IsZero() {
		l.At = r.now().UTC()
	}

	// the request context is about to be cancelled; keep its values only
	ctx = context.WithoutCancel(ctx)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		ctx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()

		if err := r.store.Touch(ctx, l); err != nil {
			logger.Warn("failed to record cobalt login", map[string]any{
				"cobalt_user_id": l.CobaltUserID,
				"admin_user_id":  l.AdminUserID,
				"error":          err.Error(),
			})
		}
	}()
}

// Wait blocks until every scheduled write has finished.
func (r *Recorder) Wait() {
	if r == nil {
		return
	}
	r.wg.Wait()
}
