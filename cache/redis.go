package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "petmatch:"

// RedisCache implements Cache on top of Redis. Each entry is stored as JSON
// under a prefixed key; retention bounds how long Redis keeps it around,
// while freshness is still decided by Read's maxAge.
type RedisCache struct {
	client    redis.UniversalClient
	retention time.Duration
}

// NewRedisCache wraps an existing go-redis client.
// retention <= 0 keeps entries until they are overwritten.
func NewRedisCache(client redis.UniversalClient, retention time.Duration) *RedisCache {
	return &RedisCache{client: client, retention: retention}
}

// Read implements Reader interface
func (rc *RedisCache) Read(ctx context.Context, key string, maxAge time.Duration) (*Entry, error) {
	data, err := rc.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidEntry, key, err)
	}

	if expired(entry.FetchedAt, maxAge) {
		return nil, ErrCacheMiss
	}
	return &entry, nil
}

// Write implements Writer interface
func (rc *RedisCache) Write(ctx context.Context, key string, entry *Entry) error {
	if entry.FetchedAt.IsZero() {
		entry.FetchedAt = time.Now()
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	if err := rc.client.Set(ctx, redisKeyPrefix+key, data, rc.retention).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Ping checks that the Redis server is reachable
func (rc *RedisCache) Ping(ctx context.Context) error {
	return rc.client.Ping(ctx).Err()
}
