// Package app builds the Petfinder client and its cache backend from
// configuration. The api, worker and CLI binaries share it.
package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/briangreenhill/petmatch/cache"
	"github.com/briangreenhill/petmatch/internal/config"
	"github.com/briangreenhill/petmatch/pkg/petfinder"
)

// Petfinder holds a ready client plus whatever has to be closed on shutdown
type Petfinder struct {
	Client *petfinder.Client
	Tokens *petfinder.TokenCache
	Store  cache.Cache

	closers []func() error
}

// Close releases the cache backend
func (p *Petfinder) Close() error {
	var first error
	for _, c := range p.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// NewStore opens the result-cache backend selected by CACHE_BACKEND
func NewStore(ctx context.Context, cfg *config.Config) (cache.Cache, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Cache.Backend {
	case config.CacheMemory:
		return cache.NewMemoryCache(), noop, nil
	case config.CacheRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		// entries outlive the TTL; ResultCache decides freshness
		rc := cache.NewRedisCache(client, 2*cfg.Cache.TTL)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := rc.Ping(pingCtx); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("connect redis %s: %w", cfg.RedisAddr, err)
		}
		return rc, client.Close, nil
	default:
		fc, err := cache.NewFileCache(cfg.Cache.Dir)
		if err != nil {
			return nil, nil, err
		}
		return fc, noop, nil
	}
}

// NewPetfinder wires the token cache, result cache and search client
func NewPetfinder(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Petfinder, error) {
	store, closeStore, err := NewStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open result cache: %w", err)
	}

	httpClient := &http.Client{Timeout: cfg.Petfinder.HTTPTimeout}

	tokenOpts := []petfinder.TokenOption{
		petfinder.WithTokenURL(cfg.Petfinder.TokenURL),
		petfinder.WithTokenHTTPClient(httpClient),
		petfinder.WithTokenLogger(logger),
	}
	if cfg.Petfinder.BearerToken != "" {
		tokenOpts = append(tokenOpts, petfinder.WithStaticToken(cfg.Petfinder.BearerToken))
	}
	tokens := petfinder.NewTokenCache(cfg.Petfinder.ClientID, cfg.Petfinder.ClientSecret, tokenOpts...)

	client := petfinder.New(tokens,
		petfinder.WithHTTPClient(httpClient),
		petfinder.WithBaseURL(cfg.Petfinder.APIBase),
		petfinder.WithResultCache(petfinder.NewResultCache(store, cfg.Cache.TTL, logger)),
		petfinder.WithLogger(logger),
	)

	logger.Info().
		Str("cache_backend", cfg.Cache.Backend).
		Dur("cache_ttl", cfg.Cache.TTL).
		Bool("credentials", cfg.HasCredentials()).
		Msg("petfinder client ready")

	return &Petfinder{
		Client:  client,
		Tokens:  tokens,
		Store:   store,
		closers: []func() error{closeStore},
	}, nil
}

// SharedCache reports whether the configured result cache is visible to
// processes on other hosts. Only redis is; file and memory caches filled by
// the worker are invisible to an api running elsewhere.
func SharedCache(cfg *config.Config) bool {
	return cfg.Cache.Backend == config.CacheRedis
}

// DefaultQuery is the search the UI starts with and the worker keeps warm
func DefaultQuery(cfg *config.Config) petfinder.Query {
	q := petfinder.NewQuery(cfg.Petfinder.DefaultType, cfg.Petfinder.DefaultLocation)
	q.Limit = cfg.Petfinder.PageSize
	return q
}

// NewLogger builds the root logger the binaries share
func NewLogger(cfg *config.Config) zerolog.Logger {
	return zerolog.New(os.Stdout).Level(cfg.Level()).With().Timestamp().Logger()
}
