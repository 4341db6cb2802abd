package resolver

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"cms-bridge/internal/admin"
	"cms-bridge/internal/audit"
	"cms-bridge/internal/auth"
	"cms-bridge/internal/logger"

	"golang.org/x/sync/singleflight"
)

const (
	fallbackFirstName = "Cobalt"
	fallbackLastName  = "User"

	provisionTimeout = 10 * time.Second
)

// StoreResolver provisions admins in the host identity store.
type StoreResolver struct {
	admins   *admin.Service
	recorder *audit.Recorder
	group    singleflight.Group
}

func NewStoreResolver(admins *admin.Service, recorder *audit.Recorder) *StoreResolver {
	return &StoreResolver{
		admins:   admins,
		recorder: recorder,
	}
}

// FindOrCreate returns the admin holding email, creating one when none
// exists and the claims authorize it. An existing admin is returned as is:
// later tokens never rewrite its profile or roles.
func (r *StoreResolver) FindOrCreate(
	ctx context.Context,
	email string,
	claims auth.Claims,
) (Result, error) {

	email = admin.NormalizeEmail(email)
	if email == "" {
		return Result{}, ErrMissingEmail
	}

	// Concurrent first logins for one email share a single provisioning
	// run detached from any one request. Only the caller whose closure ran
	// may report created; each caller still stops on its own ctx.
	caller := new(byte)
	ch := r.group.DoChan(email, func() (any, error) {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), provisionTimeout)
		defer cancel()

		res, err := r.findOrCreate(runCtx, email, claims)
		return flight{res: res, owner: caller}, err
	})

	var out singleflight.Result
	select {
	case out = <-ch:
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
	if out.Err != nil {
		return Result{}, out.Err
	}

	f := out.Val.(flight)
	res := f.res
	if f.owner != caller {
		res.Created = false
	}
	return res, nil
}

type flight struct {
	res   Result
	owner *byte
}

func (r *StoreResolver) findOrCreate(
	ctx context.Context,
	email string,
	claims auth.Claims,
) (Result, error) {

	store := r.admins.Store()

	// 1. Existing admin by email
	existing, err := store.FindByEmail(ctx, email)
	if err == nil {
		return Result{Admin: existing}, nil
	}
	if !errors.Is(err, admin.ErrNotFound) {
		return Result{}, err
	}

	// 2. Only authorized identities get provisioned
	if !auth.IsAuthorized(claims) {
		return Result{}, ErrUnauthorized
	}

	// 3. Default role
	role, err := r.admins.DefaultRole(ctx)
	if err != nil {
		if errors.Is(err, admin.ErrRoleNotFound) {
			return Result{}, ErrNoRoleAvailable
		}
		return Result{}, err
	}

	// 4. Placeholder credential; the bridge never logs in with it
	hash, version, err := admin.HashPassword(placeholderPassword())
	if err != nil {
		return Result{}, fmt.Errorf("resolver: hash placeholder: %w", err)
	}

	// 5. Create, losing gracefully to a concurrent creator
	created, wasCreated, err := store.GetOrCreate(ctx, admin.NewAdmin{
		Email:        email,
		Username:     usernameFor(email, claims),
		FirstName:    orDefault(claims.FirstName, fallbackFirstName),
		LastName:     orDefault(claims.LastName, fallbackLastName),
		PasswordHash: hash,
		HashVersion:  version,
		RoleID:       role.ID,
	})
	if err != nil {
		return Result{}, err
	}

	if wasCreated {
		logger.Info("provisioned admin from cobalt identity", map[string]any{
			"admin_user_id": created.ID,
			"username":      created.Username,
		})

		// 6. Best-effort link to the external identity
		r.recorder.Record(ctx, audit.Login{
			CobaltUserID:   claims.Subject,
			CobaltUsername: claims.Username,
			AdminUserID:    created.ID,
		})
	}

	return Result{Admin: created, Created: wasCreated}, nil
}

func usernameFor(email string, claims auth.Claims) string {
	if claims.Username != "" {
		return claims.Username
	}
	local, _, _ := strings.Cut(email, "@")
	return local
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func placeholderPassword() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return "cobalt_" + base64.RawURLEncoding.EncodeToString(b)
}
