package app

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"

	"github.com/suffus/auth0/cmd/internal/auth/device"
	"github.com/suffus/auth0/cmd/internal/auth/session"
	"github.com/suffus/auth0/cmd/internal/event"
)

// Config is the process configuration, read from AUTH0_* environment
// variables.
type Config struct {
	Addr            string        `env:"AUTH0_ADDR" envDefault:":8080"`
	LogLevel        string        `env:"AUTH0_LOG_LEVEL" envDefault:"info"`
	ShutdownTimeout time.Duration `env:"AUTH0_SHUTDOWN_TIMEOUT" envDefault:"10s"`

	// DatabaseURL is the Postgres DSN for the identity directory and catalog.
	// Empty runs both on in-memory stores (dev mode).
	DatabaseURL string `env:"AUTH0_DATABASE_URL"`

	// RedisAddr is the Redis address for the session store. Empty runs
	// sessions in memory (dev mode).
	RedisAddr     string `env:"AUTH0_REDIS_ADDR"`
	RedisPassword string `env:"AUTH0_REDIS_PASSWORD"`
	RedisDB       int    `env:"AUTH0_REDIS_DB" envDefault:"0"`

	// StaticDevices seeds the static verifier, "identifier=secret" pairs
	// separated by commas. Dev mode only.
	StaticDevices []string `env:"AUTH0_STATIC_DEVICES" envSeparator:","`

	// StaticReplayWindow is how long a consumed static code stays burned.
	StaticReplayWindow time.Duration `env:"AUTH0_STATIC_REPLAY_WINDOW" envDefault:"30s"`

	Session session.Config
	Yubico  device.YubicoConfig
	Kafka   event.Config
}

// LoadConfig reads and validates the configuration from the environment.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Session.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
