package config

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/sethvargo/go-envconfig"

	"library-client/library"
)

const (
	BackendSQLite = library.StoreSQLite
	BackendRedis  = library.StoreRedis
)

type Config struct {
	APIURL      string        `env:"LIBRARY_API_URL,      default=http://127.0.0.1:8000"`
	AuthURL     string        `env:"LIBRARY_AUTH_URL,     default=http://localhost:8080"`
	HTTPTimeout time.Duration `env:"LIBRARY_HTTP_TIMEOUT, default=10s"`
	RateLimit   float64       `env:"LIBRARY_RATE_LIMIT,   default=0"`
	RateBurst   int           `env:"LIBRARY_RATE_BURST,   default=1"`
	LogLevel    string        `env:"LIBRARY_LOG_LEVEL,    default=info"`
	LogPretty   bool          `env:"LIBRARY_LOG_PRETTY,   default=true"`
	MetricsFile string        `env:"LIBRARY_METRICS_FILE"`

	Session SessionConfig
}

type SessionConfig struct {
	Backend     string `env:"LIBRARY_SESSION_BACKEND, default=sqlite"`
	Path        string `env:"LIBRARY_SESSION_PATH,    default=library-session.db"`
	Key         string `env:"LIBRARY_SESSION_KEY"`
	RedisAddr   string `env:"LIBRARY_REDIS_ADDR,      default=localhost:6379"`
	RedisDB     int    `env:"LIBRARY_REDIS_DB,        default=0"`
	RedisPrefix string `env:"LIBRARY_REDIS_PREFIX,    default=library:session:"`
}

// Store maps the session settings onto the store the library opens.
func (s SessionConfig) Store() library.StoreConfig {
	return library.StoreConfig{
		Backend: s.Backend,
		Path:    s.Path,
		Redis:   library.RedisConfig{Addr: s.RedisAddr, DB: s.RedisDB, Prefix: s.RedisPrefix},
		Key:     s.Key,
	}
}

// Load reads configuration from the process environment.
func Load(ctx context.Context) (*Config, error) {
	return load(ctx, envconfig.OsLookuper())
}

func load(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the values envconfig cannot check on its own. Flag overrides
// are applied after Load, so main calls it again.
func (c *Config) Validate() error {
	for name, raw := range map[string]string{"api url": c.APIURL, "auth url": c.AuthURL} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("config: invalid %s %q", name, raw)
		}
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("config: http timeout must be positive")
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("config: rate limit must not be negative")
	}
	switch c.Session.Backend {
	case BackendSQLite, BackendRedis:
	default:
		return fmt.Errorf("config: unknown session backend %q", c.Session.Backend)
	}
	return nil
}
