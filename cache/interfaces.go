// Package cache provides storage backends for cached API responses
// with TTL-based expiration.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var (
	// ErrCacheMiss is returned when a cache entry is not found or expired
	ErrCacheMiss = errors.New("cache entry not found or expired")

	// ErrInvalidEntry is returned when a stored entry cannot be decoded
	ErrInvalidEntry = errors.New("cache entry is corrupt")
)

// Entry represents a cached entry with metadata
type Entry struct {
	FetchedAt time.Time       `json:"fetched_at"`
	Body      json.RawMessage `json:"body"`
}

// Reader defines the interface for reading cache entries
type Reader interface {
	// Read retrieves a cache entry by key. Entries older than maxAge are
	// reported as ErrCacheMiss; maxAge <= 0 disables the age check.
	// Any other error means the backend or the stored entry is unusable.
	Read(ctx context.Context, key string, maxAge time.Duration) (*Entry, error)
}

// Writer defines the interface for writing cache entries
type Writer interface {
	// Write stores a cache entry with the given key, replacing any previous
	// entry. A zero FetchedAt is set to the current time.
	Write(ctx context.Context, key string, entry *Entry) error
}

// Cache is the main interface that combines all cache operations
type Cache interface {
	Reader
	Writer
}

// expired reports whether an entry fetched at fetchedAt is older than maxAge.
func expired(fetchedAt time.Time, maxAge time.Duration) bool {
	return maxAge > 0 && time.Since(fetchedAt) > maxAge
}
