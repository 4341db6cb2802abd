package app

import (
	"context"
	"errors"
	"fmt"

	"cms-bridge/internal/admin"
	"cms-bridge/internal/audit"
	"cms-bridge/internal/config"
	"cms-bridge/internal/db"
	"cms-bridge/internal/logger"
	"cms-bridge/internal/redis"
	"cms-bridge/internal/session"
)

// Infra holds the stores the HTTP layer runs on. DB and Redis are nil when
// the configuration does not ask for them.
type Infra struct {
	DB    *db.DB
	Redis *redis.Client

	Admins admin.Store
	Audits audit.Store
	Slots  session.Store
}

func setupInfra(ctx context.Context, cfg config.Config) (*Infra, error) {
	infra := &Infra{}

	switch cfg.StoreDriver {
	case "memory":
		infra.Admins = admin.NewMemoryStore()
		infra.Audits = audit.NewMemoryStore()
		logger.Warn("using in-memory admin store; data is lost on restart", nil)

	case "postgres", "mysql":
		dsn := cfg.DatabaseDSN
		if cfg.StoreDriver == "mysql" {
			dsn = cfg.MySQLDSN
		}

		d, err := db.Open(ctx, db.Dialect(cfg.StoreDriver), dsn)
		if err != nil {
			return nil, err
		}
		infra.DB = d
		infra.Admins = admin.NewSQLStore(d)
		infra.Audits = audit.NewSQLStore(d)

		logger.Info("database ready", map[string]any{"driver": cfg.StoreDriver})

	default:
		return nil, fmt.Errorf("app: unknown store driver %q", cfg.StoreDriver)
	}

	switch cfg.SlotStore() {
	case "redis":
		client, err := redis.New(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			_ = infra.Close()
			return nil, err
		}
		infra.Redis = client
		infra.Slots = session.NewRedisStore(client.Client)

		logger.Info("redis ready", nil)

	case "memory":
		infra.Slots = session.NewMemoryStore()
		logger.Warn("using in-memory session slots; sessions are not shared between instances", nil)

	case "none":

	default:
		_ = infra.Close()
		return nil, fmt.Errorf("app: unknown session store %q", cfg.SessionStore)
	}

	return infra, nil
}

// Close releases every connection Infra opened.
func (i *Infra) Close() error {
	var errs []error
	if i.Redis != nil {
		errs = append(errs, i.Redis.Close())
	}
	if i.DB != nil {
		errs = append(errs, i.DB.Close())
	}
	return errors.Join(errs...)
}
