package handler

import (
	"errors"
	"net/http"

	"cms-bridge/internal/admin"
	"cms-bridge/internal/logger"
	"cms-bridge/internal/middleware"

	"github.com/gin-gonic/gin"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login is the host-native password login the browser bridge calls. It
// answers {jwt, user} and sets the session cookie.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" || req.Password == "" {
		fail(c, http.StatusBadRequest, "invalid request")
		return
	}

	a, err := h.admins.Authenticate(
		c.Request.Context(),
		req.Email,
		req.Password,
	)
	switch {
	case errors.Is(err, admin.ErrInactive):
		fail(c, http.StatusUnauthorized, "User account is disabled")
		return
	case err != nil:
		fail(c, http.StatusUnauthorized, "invalid credentials")
		return
	}

	jwt, err := h.issuer.Issue(a.ID)
	if err != nil {
		internalError(c, "session error", err)
		return
	}
	h.issuer.Attach(c.Request.Context(), c.Writer, a.ID, jwt)

	logger.Info("admin password login", map[string]any{
		"admin_user_id": a.ID,
	})

	c.JSON(http.StatusOK, gin.H{
		"jwt":  jwt,
		"user": viewOf(a),
	})
}

// Logout clears every session cookie and the server-side slot. It is
// idempotent. With a configured sign-in page the response names it so the
// browser can leave the CMS.
func (h *Handler) Logout(c *gin.Context) {
	h.issuer.Clear(c.Request.Context(), c.Writer, c.Request)

	if h.logoutURL == "" {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"redirectUrl": h.logoutURL,
	})
}

// Me returns the admin behind the current session.
func (h *Handler) Me(c *gin.Context) {
	a, ok := middleware.AdminFromContext(c.Request.Context())
	if !ok {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":  viewOf(a),
		"roles": roleNames(a),
	})
}
