package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"cms-bridge/internal/audit"
	"cms-bridge/internal/config"
)

type App struct {
	httpServer *http.Server
	infra      *Infra
	recorder   *audit.Recorder
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	infra, err := setupInfra(ctx, cfg)
	if err != nil {
		return nil, err
	}

	recorder := audit.NewRecorder(infra.Audits)

	router, err := setupHTTP(ctx, cfg, infra, recorder)
	if err != nil {
		_ = infra.Close()
		return nil, err
	}

	server := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		httpServer: server,
		infra:      infra,
		recorder:   recorder,
	}, nil
}

// Handler exposes the router, mainly for tests.
func (a *App) Handler() http.Handler {
	return a.httpServer.Handler
}

// Run serves until Shutdown is called.
func (a *App) Run() error {
	err := a.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting requests, lets pending audit writes finish and
// closes the stores.
func (a *App) Shutdown(ctx context.Context) error {
	err := a.httpServer.Shutdown(ctx)
	a.recorder.Wait()
	return errors.Join(err, a.infra.Close())
}
