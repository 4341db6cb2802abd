package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	AppPort  string `yaml:"app_port"`
	AppEnv   string `yaml:"app_env"`
	BasePath string `yaml:"base_path"`

	StoreDriver string `yaml:"store_driver"`
	DatabaseDSN string `yaml:"database_dsn"`
	MySQLDSN    string `yaml:"mysql_dsn"`

	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`

	// SessionStore picks the server-side slot store: redis, memory or
	// none. Empty means redis when RedisAddr is set, none otherwise.
	SessionStore string `yaml:"session_store"`

	AdminJWTSecret    string        `yaml:"admin_jwt_secret"`
	CobaltTokenSecret string        `yaml:"cobalt_token_secret"`
	SessionTTL        time.Duration `yaml:"session_ttl"`

	OIDCIssuer        string `yaml:"oidc_issuer"`
	OIDCClientID      string `yaml:"oidc_client_id"`
	OIDCClientSecret  string `yaml:"oidc_client_secret"`
	OIDCRedirectURL   string `yaml:"oidc_redirect_url"`
	OIDCPublicBaseURL string `yaml:"oidc_public_base_url"`

	LogoutRedirectURL string `yaml:"logout_redirect_url"`
}

// Defaults returns the configuration used when neither a file nor the
// environment provide a value.
func Defaults() Config {
	return Config{
		AppPort:     "1337",
		AppEnv:      "development",
		BasePath:    "/api/cobalt-auth",
		StoreDriver: "postgres",
		SessionTTL:  7 * 24 * time.Hour,
	}
}

// Production reports whether cookies must be issued with the Secure flag.
func (c Config) Production() bool {
	return c.AppEnv == "production"
}

// OIDCEnabled reports whether an external identity provider is configured.
func (c Config) OIDCEnabled() bool {
	return c.OIDCIssuer != "" && c.OIDCClientID != ""
}

// SlotStore resolves SessionStore to the store actually used.
func (c Config) SlotStore() string {
	switch {
	case c.SessionStore != "":
		return c.SessionStore
	case c.RedisAddr != "":
		return "redis"
	}
	return "none"
}

// Load builds the configuration from defaults, the optional YAML file at
// path, and finally the environment, in increasing precedence.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	str("APP_PORT", &cfg.AppPort)
	str("APP_ENV", &cfg.AppEnv)
	str("BASE_PATH", &cfg.BasePath)

	str("STORE_DRIVER", &cfg.StoreDriver)
	str("DATABASE_DSN", &cfg.DatabaseDSN)
	str("MYSQL_DSN", &cfg.MySQLDSN)

	str("REDIS_ADDR", &cfg.RedisAddr)
	str("REDIS_PASSWORD", &cfg.RedisPassword)
	if v, ok := lookup("REDIS_DB"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: REDIS_DB: %w", err)
		}
		cfg.RedisDB = n
	}

	str("SESSION_STORE", &cfg.SessionStore)

	str("ADMIN_JWT_SECRET", &cfg.AdminJWTSecret)
	str("COBALT_TOKEN_SECRET", &cfg.CobaltTokenSecret)
	if v, ok := lookup("SESSION_TTL"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: SESSION_TTL: %w", err)
		}
		cfg.SessionTTL = d
	}

	str("OIDC_ISSUER", &cfg.OIDCIssuer)
	str("OIDC_CLIENT_ID", &cfg.OIDCClientID)
	str("OIDC_CLIENT_SECRET", &cfg.OIDCClientSecret)
	str("OIDC_REDIRECT_URL", &cfg.OIDCRedirectURL)
	str("OIDC_PUBLIC_BASE_URL", &cfg.OIDCPublicBaseURL)

	str("LOGOUT_REDIRECT_URL", &cfg.LogoutRedirectURL)

	return nil
}

func (c Config) Validate() error {
	if c.AdminJWTSecret == "" {
		return fmt.Errorf("config: ADMIN_JWT_SECRET is required")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("config: SESSION_TTL must be positive")
	}

	switch c.StoreDriver {
	case "postgres":
		if c.DatabaseDSN == "" {
			return fmt.Errorf("config: DATABASE_DSN is required for the postgres store")
		}
	case "mysql":
		if c.MySQLDSN == "" {
			return fmt.Errorf("config: MYSQL_DSN is required for the mysql store")
		}
	case "memory":
	default:
		return fmt.Errorf("config: unknown STORE_DRIVER %q", c.StoreDriver)
	}

	switch c.SlotStore() {
	case "redis":
		if c.RedisAddr == "" {
			return fmt.Errorf("config: REDIS_ADDR is required for the redis session store")
		}
	case "memory", "none":
	default:
		return fmt.Errorf("config: unknown SESSION_STORE %q", c.SessionStore)
	}

	return nil
}
