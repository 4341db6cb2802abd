package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cms-bridge/internal/app"
	"cms-bridge/internal/config"
	"cms-bridge/internal/logger"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "optional YAML config file; environment variables override it")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Init("production")
		logger.Fatal("invalid configuration", map[string]any{
			"error": err.Error(),
		})
	}

	logger.Init(cfg.AppEnv)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	application, err := app.New(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to initialize app", map[string]any{
			"error": err.Error(),
		})
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("cms-bridge started", map[string]any{
			"port":      cfg.AppPort,
			"base_path": cfg.BasePath,
			"store":     cfg.StoreDriver,
		})
		return application.Run()
	})

	g.Go(func() error {
		<-gctx.Done() // signal, or the server died

		logger.Info("shutting down", nil)

		shutdownCtx, cancel := context.WithTimeout(
			context.Background(),
			10*time.Second,
		)
		defer cancel()

		return application.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal("server stopped with error", map[string]any{
			"error": err.Error(),
		})
	}

	logger.Info("cms-bridge stopped cleanly", nil)
}
