package handler

import (
	"crypto/subtle"
	"time"

	"cms-bridge/internal/session"

	"github.com/gin-gonic/gin"
)

const (
	stateCookieName = "__oauth_state"
	stateTTL        = 5 * time.Minute
)

func (h *Handler) generateState(c *gin.Context) (string, error) {
	state, err := session.GenerateID()
	if err != nil {
		return "", err
	}

	session.SetCookie(c.Writer, stateCookieName, state, stateTTL, cookiePolicy(h.issuer))

	return state, nil
}

func (h *Handler) validateState(c *gin.Context) bool {
	stateQuery := c.Query("state")
	if stateQuery == "" {
		return false
	}

	cookie, err := c.Request.Cookie(stateCookieName)
	if err != nil {
		return false
	}
	session.ClearCookie(c.Writer, stateCookieName, cookiePolicy(h.issuer))

	return subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(stateQuery)) == 1
}
