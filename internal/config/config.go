// Package config handles configuration loading for the auth service.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// MinJWTSecretLength is the minimum HMAC secret size accepted for HS256 signing.
const MinJWTSecretLength = 32

// Config holds all configuration for the auth service.
type Config struct {
	NATSServers       []string      `env:"NATS_SERVERS,required,notEmpty" envSeparator:","`
	NATSQueueGroup    string        `env:"NATS_QUEUE_GROUP" envDefault:"auth-service"`
	RPCRequestTimeout time.Duration `env:"RPC_REQUEST_TIMEOUT" envDefault:"10s"`

	DBDriver      string `env:"DB_DRIVER" envDefault:"postgres"`
	DatabaseURL   string `env:"DATABASE_URL,required,notEmpty"`
	DBAutoMigrate bool   `env:"DB_AUTO_MIGRATE" envDefault:"true"`

	RedisHost     string        `env:"REDIS_HOST"`
	RedisPort     string        `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	UserCacheTTL  time.Duration `env:"USER_CACHE_TTL" envDefault:"10m"`

	JWTSecret  string        `env:"JWT_SECRET,required,notEmpty"`
	JWTExpiry  time.Duration `env:"JWT_EXPIRY" envDefault:"2h"`
	BcryptCost int           `env:"BCRYPT_COST" envDefault:"10"`

	Port        string `env:"PORT" envDefault:"8084"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that env tags cannot express.
func (c *Config) Validate() error {
	if len(c.JWTSecret) < MinJWTSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d bytes", MinJWTSecretLength)
	}
	if c.JWTExpiry <= 0 {
		return errors.New("JWT_EXPIRY must be positive")
	}
	if c.RPCRequestTimeout <= 0 {
		return errors.New("RPC_REQUEST_TIMEOUT must be positive")
	}
	switch c.DBDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	return nil
}

// RedisEnabled reports whether a redis host was configured.
func (c *Config) RedisEnabled() bool {
	return c.RedisHost != ""
}

// IsProduction reports whether the service runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
