package handler

import (
	"errors"
	"net/http"

	"cms-bridge/internal/audit"
	"cms-bridge/internal/auth"
	"cms-bridge/internal/auth/resolver"
	"cms-bridge/internal/logger"

	"github.com/gin-gonic/gin"
)

func (h *Handler) oauthLogin(c *gin.Context) {
	p, err := h.providers.Get(c.Param("provider"))
	if err != nil {
		fail(c, http.StatusBadRequest, "unknown oauth provider")
		return
	}

	state, err := h.generateState(c)
	if err != nil {
		internalError(c, "failed to start login", err)
		return
	}
	_, codeChallenge, err := h.generatePKCE(c)
	if err != nil {
		internalError(c, "failed to start login", err)
		return
	}

	c.Redirect(http.StatusFound, p.AuthCodeURL(state, codeChallenge))
}

func (h *Handler) oauthCallback(c *gin.Context) {
	providerName := c.Param("provider")

	p, err := h.providers.Get(providerName)
	if err != nil {
		fail(c, http.StatusBadRequest, "unknown oauth provider")
		return
	}

	if !h.validateState(c) {
		fail(c, http.StatusUnauthorized, "invalid state")
		return
	}

	if errParam := c.Query("error"); errParam != "" {
		logger.Warn("oidc callback returned error", map[string]any{
			"provider": providerName,
			"error":    errParam,
			"desc":     c.Query("error_description"),
		})

		// start over from the admin login page
		c.Redirect(http.StatusFound, adminSurface)
		return
	}

	code := c.Query("code")
	if code == "" {
		fail(c, http.StatusBadRequest, "missing code")
		return
	}

	codeVerifier := h.takePKCEVerifier(c)
	if codeVerifier == "" {
		fail(c, http.StatusUnauthorized, "missing pkce verifier")
		return
	}

	ctx := c.Request.Context()

	ext, err := p.ExchangeCode(ctx, code, codeVerifier)
	if err != nil {
		logger.Warn("oidc code exchange failed", map[string]any{
			"provider": providerName,
			"error":    err.Error(),
		})
		fail(c, http.StatusUnauthorized, "authentication failed")
		return
	}

	claims := auth.Normalize(ext)
	if !auth.IsAuthorized(claims) {
		fail(c, http.StatusForbidden, "User does not have CMS permissions")
		return
	}

	found, err := h.resolver.FindOrCreate(ctx, claims.Email, claims)
	switch {
	case errors.Is(err, resolver.ErrMissingEmail):
		fail(c, http.StatusUnauthorized, "identity provider returned no email")
		return
	case errors.Is(err, resolver.ErrUnauthorized):
		fail(c, http.StatusForbidden, "User does not have CMS permissions")
		return
	case err != nil:
		internalError(c, "failed to resolve admin", err)
		return
	}
	if !found.Admin.IsActive {
		fail(c, http.StatusUnauthorized, "User account is disabled")
		return
	}

	jwt, err := h.issuer.Issue(found.Admin.ID)
	if err != nil {
		internalError(c, "failed to create session", err)
		return
	}
	h.issuer.Attach(ctx, c.Writer, found.Admin.ID, jwt)

	if !found.Created {
		h.recorder.Record(ctx, audit.Login{
			CobaltUserID:   claims.Subject,
			CobaltUsername: claims.Username,
			AdminUserID:    found.Admin.ID,
		})
	}

	logger.Info("oauth login succeeded", map[string]any{
		"provider":      providerName,
		"admin_user_id": found.Admin.ID,
		"created":       found.Created,
		"ip":            c.ClientIP(),
	})

	c.Redirect(http.StatusFound, adminSurface)
}
