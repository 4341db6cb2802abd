package app

import (
	"context"
	"net/http"

	"cms-bridge/internal/admin"
	"cms-bridge/internal/audit"
	"cms-bridge/internal/auth/handler"
	"cms-bridge/internal/auth/provider"
	"cms-bridge/internal/auth/provider/openid"
	"cms-bridge/internal/auth/resolver"
	"cms-bridge/internal/auth/token"
	"cms-bridge/internal/config"
	"cms-bridge/internal/logger"
	"cms-bridge/internal/middleware"
	"cms-bridge/internal/session"

	"github.com/gin-gonic/gin"
)

const oidcProviderName = "cobalt"

func setupHTTP(
	ctx context.Context,
	cfg config.Config,
	infra *Infra,
	recorder *audit.Recorder,
) (*gin.Engine, error) {

	// ----------------------------
	// Dependencies
	// ----------------------------

	admins := admin.NewService(infra.Admins)

	opts := []session.IssuerOption{}
	if infra.Slots != nil {
		opts = append(opts, session.WithSlots(infra.Slots))
	}
	issuer := session.NewIssuer(cfg.AdminJWTSecret, cfg.SessionTTL, cfg.Production(), opts...)

	codec := token.NewCodec(cfg.CobaltTokenSecret)
	if !codec.Verifying() {
		logger.Warn("cobalt tokens are accepted without signature verification", nil)
	}

	registry := provider.NewRegistry()
	if cfg.OIDCEnabled() {
		p, err := openid.New(ctx, openid.Config{
			Name:          oidcProviderName,
			Issuer:        cfg.OIDCIssuer,
			ClientID:      cfg.OIDCClientID,
			ClientSecret:  cfg.OIDCClientSecret,
			RedirectURL:   cfg.OIDCRedirectURL,
			PublicBaseURL: cfg.OIDCPublicBaseURL,
		})
		if err != nil {
			return nil, err
		}
		registry = provider.NewRegistry(p)
	}

	authHandler := handler.NewHandler(cfg.BasePath, handler.Deps{
		Codec:     codec,
		Resolver:  resolver.NewStoreResolver(admins, recorder),
		Admins:    admins,
		Issuer:    issuer,
		Recorder:  recorder,
		Providers: registry,

		LogoutRedirectURL: cfg.LogoutRedirectURL,
	})

	// ----------------------------
	// Router
	// ----------------------------

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.Logger(logger.L()),
	)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authHandler.RegisterRoutes(router)

	return router, nil
}
