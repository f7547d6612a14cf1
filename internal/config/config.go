// Package config handles application configuration from environment variables
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Cache backends
const (
	CacheFile   = "file"
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Config holds all application configuration
type Config struct {
	Petfinder PetfinderConfig
	Cache     CacheConfig

	Port            string        `env:"PORT" envDefault:"8080"`
	RedisAddr       string        `env:"REDIS_ADDR"`
	DatabaseURL     string        `env:"DATABASE_URL"`
	SessionLifetime time.Duration `env:"SESSION_LIFETIME" envDefault:"12h"`
	WarmInterval    time.Duration `env:"WARM_INTERVAL" envDefault:"50m"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
}

// PetfinderConfig holds Petfinder API settings. Credentials may be empty
// here; the token cache reports them as a configuration error on first use.
type PetfinderConfig struct {
	ClientID        string        `env:"PETFINDER_CLIENT_ID"`
	ClientSecret    string        `env:"PETFINDER_CLIENT_SECRET"`
	BearerToken     string        `env:"PETFINDER_BEARER_TOKEN"`
	APIBase         string        `env:"PETFINDER_API_BASE" envDefault:"https://api.petfinder.com/v2"`
	TokenURL        string        `env:"PETFINDER_TOKEN_URL" envDefault:"https://api.petfinder.com/v2/oauth2/token"`
	DefaultType     string        `env:"PETFINDER_DEFAULT_TYPE" envDefault:"dog"`
	DefaultLocation string        `env:"PETFINDER_DEFAULT_LOCATION"`
	PageSize        int           `env:"PETFINDER_PAGE_SIZE" envDefault:"10"`
	HTTPTimeout     time.Duration `env:"PETFINDER_HTTP_TIMEOUT" envDefault:"15s"`
}

// CacheConfig selects and tunes the search result cache
type CacheConfig struct {
	Backend string        `env:"CACHE_BACKEND" envDefault:"file"`
	Dir     string        `env:"CACHE_DIR"`
	TTL     time.Duration `env:"CACHE_TTL" envDefault:"1h"`
}

// Load reads configuration from environment variables, after loading an
// optional .env file from the working directory.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// HasCredentials returns true if Petfinder can be reached without a token
// exchange failing for lack of configuration
func (c *Config) HasCredentials() bool {
	p := c.Petfinder
	return p.BearerToken != "" || (p.ClientID != "" && p.ClientSecret != "")
}

// Validate checks value ranges
func (c *Config) Validate() error {
	if c.Petfinder.PageSize < 1 || c.Petfinder.PageSize > 100 {
		return fmt.Errorf("PETFINDER_PAGE_SIZE must be between 1-100, got %d", c.Petfinder.PageSize)
	}
	if c.Petfinder.DefaultType == "" {
		return fmt.Errorf("PETFINDER_DEFAULT_TYPE must not be empty")
	}
	if c.Petfinder.HTTPTimeout <= 0 {
		return fmt.Errorf("PETFINDER_HTTP_TIMEOUT must be positive, got %s", c.Petfinder.HTTPTimeout)
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive, got %s", c.Cache.TTL)
	}

	switch c.Cache.Backend {
	case CacheFile, CacheMemory:
	case CacheRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("CACHE_BACKEND=redis requires REDIS_ADDR")
		}
	default:
		return fmt.Errorf("unknown CACHE_BACKEND %q (want file, memory or redis)", c.Cache.Backend)
	}

	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	return nil
}

// Level returns the configured log level
func (c *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}
