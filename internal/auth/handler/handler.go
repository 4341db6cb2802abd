package handler

import (
	"net/http"
	"strings"
	"time"

	"cms-bridge/internal/admin"
	"cms-bridge/internal/audit"
	"cms-bridge/internal/auth/provider"
	"cms-bridge/internal/auth/resolver"
	"cms-bridge/internal/auth/token"
	"cms-bridge/internal/logger"
	"cms-bridge/internal/middleware"
	"cms-bridge/internal/session"

	"github.com/gin-gonic/gin"
)

// Deps are the collaborators a Handler needs. Providers and Recorder may
// be nil.
type Deps struct {
	Codec     *token.Codec
	Resolver  resolver.Resolver
	Admins    *admin.Service
	Issuer    *session.Issuer
	Recorder  *audit.Recorder
	Providers *provider.Registry

	// LogoutRedirectURL is handed to clients after logout. Optional.
	LogoutRedirectURL string
}

type Handler struct {
	basePath  string
	codec     *token.Codec
	resolver  resolver.Resolver
	admins    *admin.Service
	issuer    *session.Issuer
	recorder  *audit.Recorder
	providers *provider.Registry
	logoutURL string
	auth      *middleware.AuthMiddleware
	now       func() time.Time
}

func NewHandler(basePath string, d Deps) *Handler {
	providers := d.Providers
	if providers == nil {
		providers = provider.NewRegistry()
	}

	return &Handler{
		basePath:  "/" + strings.Trim(basePath, "/"),
		codec:     d.Codec,
		resolver:  d.Resolver,
		admins:    d.Admins,
		issuer:    d.Issuer,
		recorder:  d.Recorder,
		providers: providers,
		logoutURL: d.LogoutRedirectURL,
		auth:      middleware.NewAuthMiddleware(d.Issuer, d.Admins.Store()),
		now:       time.Now,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	bridge := r.Group(h.basePath)
	bridge.POST("/auto-login", h.AutoLogin)
	bridge.GET("/auto-login", h.AutoLoginQuery)
	bridge.GET("/check-auth", h.CheckAuth)

	for _, p := range []string{"/admin/auth/login", "/cms-auth/login", "/cross-auth"} {
		r.GET(p, h.CrossAuth)
	}
	r.POST("/cross-auth/validate", h.ValidateToken)

	r.POST("/admin/login", h.Login)
	r.POST("/admin/logout", h.Logout)
	r.GET("/admin/me", middleware.GinRequireAuth(h.auth), h.Me)

	r.GET("/oauth/login/:provider", h.oauthLogin)
	r.GET("/oauth/callback/:provider", h.oauthCallback)

	for _, route := range r.Routes() {
		logger.Info("route registered", map[string]any{
			"method": route.Method,
			"path":   route.Path,
		})
	}
}

// userView is the admin as exposed to browsers.
type userView struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstname"`
	LastName  string `json:"lastname"`
	Username  string `json:"username,omitempty"`
	Created   *bool  `json:"created,omitempty"`
}

func viewOf(a *admin.Admin) userView {
	return userView{
		ID:        a.ID,
		Email:     a.Email,
		FirstName: a.FirstName,
		LastName:  a.LastName,
		Username:  a.Username,
	}
}

func fail(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{
		"success": false,
		"error":   msg,
	})
}

func cookiePolicy(i *session.Issuer) session.CookieOptions {
	return session.PolicyOptions(i.Production())
}

func roleNames(a *admin.Admin) []string {
	out := make([]string, 0, len(a.Roles))
	for _, r := range a.Roles {
		out = append(out, r.Name)
	}
	return out
}

// internalError logs err in full and answers with a generic message.
func internalError(c *gin.Context, msg string, err error) {
	logger.Error(msg, map[string]any{
		"path":  c.FullPath(),
		"error": err.Error(),
	})
	fail(c, http.StatusInternalServerError, msg)
}
