package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryCache implements Cache with in-memory storage.
// Suitable for single-process use and tests; entries do not survive restarts.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewMemoryCache creates an empty memory cache
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]Entry)}
}

// Read implements Reader interface
func (m *MemoryCache) Read(_ context.Context, key string, maxAge time.Duration) (*Entry, error) {
	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok || expired(entry.FetchedAt, maxAge) {
		return nil, ErrCacheMiss
	}

	// Body is shared with the stored entry; copy so callers can't mutate it
	entry.Body = append([]byte(nil), entry.Body...)
	return &entry, nil
}

// Write implements Writer interface
func (m *MemoryCache) Write(_ context.Context, key string, entry *Entry) error {
	stored := Entry{
		FetchedAt: entry.FetchedAt,
		Body:      append([]byte(nil), entry.Body...),
	}
	if stored.FetchedAt.IsZero() {
		stored.FetchedAt = time.Now()
		entry.FetchedAt = stored.FetchedAt
	}

	m.mu.Lock()
	m.entries[key] = stored
	m.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, including expired ones
func (m *MemoryCache) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
