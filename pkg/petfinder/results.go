package petfinder

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/briangreenhill/petmatch/cache"
)

// DefaultTTL is how long a search result stays usable
const DefaultTTL = time.Hour

// CachedResult is one stored search result
type CachedResult struct {
	Query     Query     `json:"query"`
	FetchedAt time.Time `json:"fetched_at"`
	Records   []Record  `json:"records"`
}

// resultBody is what goes into cache.Entry.Body
type resultBody struct {
	Query   Query    `json:"query"`
	Records []Record `json:"records"`
}

// ResultCache stores normalized search results keyed by Query, one entry
// per distinct query, on top of any cache.Cache backend. Faults in the
// backend are logged and reported as misses; they never reach the caller.
type ResultCache struct {
	store cache.Cache
	ttl   time.Duration
	now   func() time.Time
	log   zerolog.Logger
}

// NewResultCache creates a result cache. ttl <= 0 uses DefaultTTL.
func NewResultCache(store cache.Cache, ttl time.Duration, logger zerolog.Logger) *ResultCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &ResultCache{store: store, ttl: ttl, now: time.Now, log: logger}
}

// TTL returns the configured time-to-live
func (rc *ResultCache) TTL() time.Duration {
	return rc.ttl
}

// Get returns the cached result for q if one exists and is younger than
// the TTL.
func (rc *ResultCache) Get(ctx context.Context, q Query) (*CachedResult, bool) {
	key := q.Key()
	entry, err := rc.store.Read(ctx, key, rc.ttl)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			rc.log.Warn().Err(err).Str("key", key).Msg("result cache read failed, treating as miss")
		}
		return nil, false
	}

	if rc.now().Sub(entry.FetchedAt) > rc.ttl {
		return nil, false
	}

	var body resultBody
	if err := json.Unmarshal(entry.Body, &body); err != nil {
		rc.log.Warn().Err(err).Str("key", key).Msg("result cache entry corrupt, treating as miss")
		return nil, false
	}
	if body.Query != q || body.Records == nil {
		rc.log.Warn().Str("key", key).Msg("result cache entry does not match query, treating as miss")
		return nil, false
	}

	return &CachedResult{Query: q, FetchedAt: entry.FetchedAt, Records: body.Records}, true
}

// Put stores records for q. It is best effort: failures are logged only.
func (rc *ResultCache) Put(ctx context.Context, q Query, records []Record) {
	if records == nil {
		records = []Record{}
	}
	key := q.Key()
	data, err := json.Marshal(resultBody{Query: q, Records: records})
	if err != nil {
		rc.log.Warn().Err(err).Str("key", key).Msg("encode result cache entry")
		return
	}
	if err := rc.store.Write(ctx, key, &cache.Entry{FetchedAt: rc.now(), Body: data}); err != nil {
		rc.log.Warn().Err(err).Str("key", key).Msg("result cache write failed")
	}
}
