package handler

import (
	"context"
	"errors"
	"net/http"

	"cms-bridge/internal/admin"
	"cms-bridge/internal/audit"
	"cms-bridge/internal/auth"
	"cms-bridge/internal/auth/resolver"
	"cms-bridge/internal/auth/token"
	"cms-bridge/internal/logger"

	"github.com/gin-gonic/gin"
)

var (
	errMissingEmail = errors.New("email is required")
	errMissingToken = errors.New("cobalt token is required")
	errTokenExpired = errors.New("cobalt token has expired")
)

type autoLoginRequest struct {
	Email       string `json:"email"`
	CobaltToken string `json:"cobaltToken"`
	// Password is accepted for compatibility and ignored.
	Password string `json:"password"`
}

type autoLoginResult struct {
	admin   *admin.Admin
	created bool
	jwt     string
}

// AutoLogin exchanges a Cobalt token for an admin session cookie.
func (h *Handler) AutoLogin(c *gin.Context) {
	var req autoLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request")
		return
	}

	res, err := h.exchange(c.Request.Context(), c, req.Email, req.CobaltToken)
	if err != nil {
		h.autoLoginFailed(c, err)
		return
	}

	c.JSON(http.StatusOK, envelope(res, false))
}

// AutoLoginQuery is the link-driven variant: ?email=&token=. The envelope
// also carries the issued jwt so scripts can reuse it.
func (h *Handler) AutoLoginQuery(c *gin.Context) {
	res, err := h.exchange(c.Request.Context(), c, c.Query("email"), c.Query("token"))
	if err != nil {
		h.autoLoginFailed(c, err)
		return
	}

	c.JSON(http.StatusOK, envelope(res, true))
}

func (h *Handler) exchange(
	ctx context.Context,
	c *gin.Context,
	email string,
	rawToken string,
) (autoLoginResult, error) {

	if email == "" {
		return autoLoginResult{}, errMissingEmail
	}
	if rawToken == "" {
		return autoLoginResult{}, errMissingToken
	}

	raw, err := h.codec.Decode(rawToken)
	if err != nil {
		return autoLoginResult{}, err
	}

	claims := auth.Normalize(raw)
	if claims.Expired(h.now()) {
		return autoLoginResult{}, errTokenExpired
	}
	if !auth.IsAuthorized(claims) {
		return autoLoginResult{}, resolver.ErrUnauthorized
	}

	found, err := h.resolver.FindOrCreate(ctx, email, claims)
	if err != nil {
		return autoLoginResult{}, err
	}
	if !found.Admin.IsActive {
		return autoLoginResult{}, admin.ErrInactive
	}

	jwt, err := h.issuer.Issue(found.Admin.ID)
	if err != nil {
		return autoLoginResult{}, err
	}
	h.issuer.Attach(ctx, c.Writer, found.Admin.ID, jwt)

	// first logins were recorded while provisioning
	if !found.Created {
		h.recorder.Record(ctx, audit.Login{
			CobaltUserID:   claims.Subject,
			CobaltUsername: claims.Username,
			AdminUserID:    found.Admin.ID,
		})
	}

	logger.Info("auto-login succeeded", map[string]any{
		"admin_user_id": found.Admin.ID,
		"created":       found.Created,
	})

	return autoLoginResult{admin: found.Admin, created: found.Created, jwt: jwt}, nil
}

func envelope(res autoLoginResult, withJWT bool) gin.H {
	msg := "Auto-login successful"
	if res.created {
		msg = "User created and logged in successfully"
	}

	created := res.created
	user := viewOf(res.admin)
	user.Created = &created

	body := gin.H{
		"success": true,
		"message": msg,
		"created": created,
		"user":    user,
	}
	if withJWT {
		body["jwt"] = res.jwt
	}
	return body
}

func (h *Handler) autoLoginFailed(c *gin.Context, err error) {
	switch {
	case errors.Is(err, errMissingEmail), errors.Is(err, resolver.ErrMissingEmail):
		fail(c, http.StatusBadRequest, "Email is required")
	case errors.Is(err, errMissingToken):
		fail(c, http.StatusBadRequest, "Cobalt token is required")
	case errors.Is(err, token.ErrMalformed),
		errors.Is(err, token.ErrInvalidPayload),
		errors.Is(err, token.ErrBadSignature):
		fail(c, http.StatusUnauthorized, "Invalid Cobalt token")
	case errors.Is(err, errTokenExpired):
		fail(c, http.StatusUnauthorized, "Cobalt token has expired")
	case errors.Is(err, resolver.ErrUnauthorized):
		fail(c, http.StatusForbidden, "User does not have CMS permissions")
	case errors.Is(err, admin.ErrInactive):
		fail(c, http.StatusUnauthorized, "User account is disabled")
	default:
		internalError(c, "Auto-login failed", err)
	}
}

// CheckAuth reports whether the request carries a live admin session. It
// always answers 200.
func (h *Handler) CheckAuth(c *gin.Context) {
	a, ok := h.auth.Authenticate(c.Request)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"authenticated": false})
		return
	}

	user := viewOf(a)
	user.Username = ""

	c.JSON(http.StatusOK, gin.H{
		"authenticated": true,
		"user":          user,
	})
}
