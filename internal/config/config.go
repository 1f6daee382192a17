// Package config loads process-wide configuration from the environment
// at startup.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the process-wide configuration, read once at startup.
type Config struct {
	// WEBUI_URL is the public base URL used for deep links in
	// notifications. Empty means deep links are omitted.
	WebUIURL string `env:"WEBUI_URL"`

	// PORT is the local port of the chat-completion endpoint, used to
	// build the in-process base URL (see CompletionsBaseURL) whether or
	// not WEBUI_URL is set.
	Port int `env:"PORT" envDefault:"8080"`

	// SCHEDULER_CHECK_INTERVAL is the poll tick of the scheduler loop.
	CheckInterval time.Duration `env:"SCHEDULER_CHECK_INTERVAL" envDefault:"60s"`

	// SCHEDULER_CONCURRENCY bounds simultaneous job executions per tick.
	Concurrency int `env:"SCHEDULER_CONCURRENCY" envDefault:"5"`

	// DATABASE_URL selects the Postgres backend when set; otherwise the
	// engine falls back to SQLite at SQLITE_PATH.
	DatabaseURL string `env:"DATABASE_URL"`
	SQLitePath  string `env:"SQLITE_PATH" envDefault:"data/promptsched.db"`

	// JWT_SECRET signs the short-lived bearer tokens minted per run.
	JWTSecret string `env:"JWT_SECRET"`

	// MODEL_CATALOG is the YAML file declaring available models and
	// their default tool lists.
	ModelCatalog string `env:"MODEL_CATALOG" envDefault:"models.yaml"`

	// WS_LISTEN_ADDR is the bind address of the in-app socket hub.
	WSListenAddr string `env:"WS_LISTEN_ADDR" envDefault:":8765"`

	// REDIS_URL enables the shared session pool for multi-process
	// deployments. Empty keeps the in-memory pool.
	RedisURL string `env:"REDIS_URL"`

	// OTLP trace export. Empty endpoint disables tracing.
	OTLPEndpoint string `env:"OTLP_ENDPOINT"`
	OTLPProtocol string `env:"OTLP_PROTOCOL" envDefault:"grpc"`
	OTLPInsecure bool   `env:"OTLP_INSECURE" envDefault:"true"`
}

// Load reads configuration from the environment and normalizes it.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if cfg.CheckInterval < time.Second {
		cfg.CheckInterval = 60 * time.Second
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 5
	}
	return &cfg, nil
}

// CompletionsBaseURL returns the base URL for in-process calls to the
// chat-completion endpoint. The scheduler runs on the same host as the
// backend, so this is always localhost.
func (c *Config) CompletionsBaseURL() string {
	return fmt.Sprintf("http://127.0.0.1:%d", c.Port)
}
