package handler

import (
	"context"
	"errors"
	"net/http"

	"cms-bridge/internal/admin"
	"cms-bridge/internal/auth"
	"cms-bridge/internal/logger"
	"cms-bridge/internal/session"

	"github.com/gin-gonic/gin"
)

const adminSurface = "/admin"

var errUnverifiable = errors.New("token could not be verified")

// CrossAuth signs a browser in from another application. The token is
// either an admin session token, which is already good for /admin, or an
// ID token from a configured identity provider whose holder must exist
// locally with an admin or cms role.
func (h *Handler) CrossAuth(c *gin.Context) {
	raw := c.Query("token")
	if raw == "" {
		fail(c, http.StatusBadRequest, "JWT token is required")
		return
	}

	if _, err := h.issuer.Verify(raw); err == nil {
		c.Redirect(http.StatusFound, adminSurface)
		return
	}

	a, err := h.adminForIDToken(c.Request.Context(), raw)
	switch {
	case errors.Is(err, errUnverifiable):
		fail(c, http.StatusUnauthorized, "Invalid JWT token")
		return
	case errors.Is(err, admin.ErrNotFound):
		fail(c, http.StatusUnauthorized, "User not found")
		return
	case err != nil:
		internalError(c, "Authentication failed", err)
		return
	}

	if !a.IsActive {
		fail(c, http.StatusUnauthorized, "User account is disabled")
		return
	}
	if !a.HasRole(auth.Privileged) {
		fail(c, http.StatusForbidden, "Access denied. CMS role required.")
		return
	}

	jwt, err := h.issuer.Issue(a.ID)
	if err != nil {
		internalError(c, "Authentication failed", err)
		return
	}

	h.issuer.Attach(c.Request.Context(), c.Writer, a.ID, jwt)
	session.SetCookie(c.Writer, session.CrossAuthCookieName, jwt, session.CrossAuthMaxAge, cookiePolicy(h.issuer))

	logger.Info("cross-auth session created", map[string]any{
		"admin_user_id": a.ID,
	})

	c.Redirect(http.StatusFound, adminSurface)
}

type validateRequest struct {
	Token string `json:"token"`
}

// ValidateToken tells an external application who a token belongs to.
func (h *Handler) ValidateToken(c *gin.Context) {
	var req validateRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Token == "" {
		fail(c, http.StatusBadRequest, "Token is required")
		return
	}

	ctx := c.Request.Context()

	var (
		a   *admin.Admin
		err error
	)
	if id, verr := h.issuer.Verify(req.Token); verr == nil {
		a, err = h.admins.Store().FindByID(ctx, id)
	} else {
		a, err = h.adminForIDToken(ctx, req.Token)
	}

	switch {
	case errors.Is(err, errUnverifiable):
		fail(c, http.StatusUnauthorized, "Invalid token")
		return
	case errors.Is(err, admin.ErrNotFound):
		fail(c, http.StatusUnauthorized, "User not found")
		return
	case err != nil:
		internalError(c, "Token validation failed", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"valid": true,
		"user": gin.H{
			"id":       a.ID,
			"username": a.Username,
			"email":    a.Email,
			"roles":    roleNames(a),
			"isCMS":    a.HasRole(auth.Privileged),
		},
	})
}

func (h *Handler) adminForIDToken(ctx context.Context, raw string) (*admin.Admin, error) {
	if h.providers.Len() == 0 {
		return nil, errUnverifiable
	}

	ext, err := h.providers.VerifyIDToken(ctx, raw)
	if err != nil {
		logger.Warn("cross-auth token rejected", map[string]any{"error": err.Error()})
		return nil, errUnverifiable
	}

	claims := auth.Normalize(ext)
	if claims.Email == "" {
		return nil, errUnverifiable
	}

	return h.admins.Store().FindByEmail(ctx, claims.Email)
}
