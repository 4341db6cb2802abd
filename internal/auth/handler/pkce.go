package handler

import (
	"crypto/sha256"
	"encoding/base64"
	"time"

	"cms-bridge/internal/session"

	"github.com/gin-gonic/gin"
)

const (
	pkceCookieName = "__oauth_pkce"
	pkceTTL        = 5 * time.Minute
)

func (h *Handler) generatePKCE(c *gin.Context) (verifier string, challenge string, err error) {
	verifier, err = session.GenerateID()
	if err != nil {
		return "", "", err
	}

	hash := sha256.Sum256([]byte(verifier))
	challenge = base64.RawURLEncoding.EncodeToString(hash[:])

	session.SetCookie(c.Writer, pkceCookieName, verifier, pkceTTL, cookiePolicy(h.issuer))

	return verifier, challenge, nil
}

// takePKCEVerifier returns the stored verifier and expires its cookie.
func (h *Handler) takePKCEVerifier(c *gin.Context) string {
	cookie, err := c.Request.Cookie(pkceCookieName)
	if err != nil {
		return ""
	}
	session.ClearCookie(c.Writer, pkceCookieName, cookiePolicy(h.issuer))
	return cookie.Value
}
