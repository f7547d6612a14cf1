package petfinder

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scenarioQuery() Query {
	return Query{Type: "dog", Location: "85004", Limit: 10, Page: 1}
}

func TestFetch_TwoAnimalsInSourceOrder(t *testing.T) {
	f := newFakePetfinder(t)
	rc, _ := newMemoryResults()
	c := f.client(f.tokens(), rc)

	records, err := c.Fetch(context.Background(), scenarioQuery())
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "71234567", records[0].ID)
	assert.Equal(t, "https://photos/1-medium.jpg", records[0].PhotoURL)
	assert.Equal(t, "71234568", records[1].ID)
	assert.Equal(t, PlaceholderPhotoURL, records[1].PhotoURL)
	assert.Equal(t, PlaceholderDescription, records[1].Description)

	f.mu.Lock()
	q := f.lastQuery
	f.mu.Unlock()
	assert.Equal(t, "dog", q.Get("type"))
	assert.Equal(t, "85004", q.Get("location"))
	assert.Equal(t, "10", q.Get("limit"))
	assert.Equal(t, "1", q.Get("page"))
	assert.False(t, q.Has("status"))
}

func TestFetch_CachedWithinTTL(t *testing.T) {
	f := newFakePetfinder(t)
	rc, _ := newMemoryResults()
	c := f.client(f.tokens(), rc)
	ctx := context.Background()

	first, err := c.Fetch(ctx, scenarioQuery())
	require.NoError(t, err)
	second, err := c.Fetch(ctx, scenarioQuery())
	require.NoError(t, err)

	assert.Equal(t, int32(1), f.searchCalls.Load())
	assert.Equal(t, int32(1), f.tokenCalls.Load())

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
	assert.Equal(t, first, second)
}

func TestFetch_CacheHitSkipsToken(t *testing.T) {
	f := newFakePetfinder(t)
	rc, _ := newMemoryResults()
	rc.Put(context.Background(), scenarioQuery(), []Record{{ID: "cached"}})

	// No credentials: any token request would fail
	c := New(NewTokenCache("", ""), WithBaseURL(f.server.URL+"/v2"), WithResultCache(rc))
	records, err := c.Fetch(context.Background(), scenarioQuery())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "cached", records[0].ID)
	assert.Equal(t, int32(0), f.searchCalls.Load())
}

func TestFetch_StaleCacheRefetches(t *testing.T) {
	f := newFakePetfinder(t)
	rc, _ := newMemoryResults()
	now := time.Now()
	rc.now = func() time.Time { return now }
	c := f.client(f.tokens(), rc)
	ctx := context.Background()

	_, err := c.Fetch(ctx, scenarioQuery())
	require.NoError(t, err)

	now = now.Add(rc.TTL() + time.Second)
	_, ok := rc.Get(ctx, scenarioQuery())
	assert.False(t, ok, "stale result must not be returned")

	_, err = c.Fetch(ctx, scenarioQuery())
	require.NoError(t, err)
	assert.Equal(t, int32(2), f.searchCalls.Load())
}

func TestFetch_RateLimited(t *testing.T) {
	f := newFakePetfinder(t)
	f.set(func(f *fakePetfinder) {
		f.searchStatus = http.StatusTooManyRequests
		f.searchBody = `{"title":"Too Many Requests"}`
		f.retryAfter = "30"
	})
	rc, store := newMemoryResults()
	c := f.client(f.tokens(), rc)

	records, err := c.Fetch(context.Background(), scenarioQuery())
	assert.Nil(t, records)

	var rl *RateLimitError
	require.ErrorAs(t, err, &rl)
	assert.Equal(t, 30*time.Second, rl.RetryAfter)

	var fe *FetchError
	assert.NotErrorAs(t, err, &fe)
	assert.True(t, IsRetryable(err))
	assert.Equal(t, 0, store.Len(), "rate limited response must not be cached")
}

func TestFetch_ServerError(t *testing.T) {
	f := newFakePetfinder(t)
	f.set(func(f *fakePetfinder) {
		f.searchStatus = http.StatusInternalServerError
		f.searchBody = `{"title":"Internal Server Error"}`
	})
	rc, store := newMemoryResults()
	c := f.client(f.tokens(), rc)

	_, err := c.Fetch(context.Background(), scenarioQuery())
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, http.StatusInternalServerError, fe.StatusCode)
	assert.Contains(t, fe.Body, "Internal Server Error")
	assert.Equal(t, 0, store.Len())
}

func TestFetch_MalformedBody(t *testing.T) {
	f := newFakePetfinder(t)
	f.set(func(f *fakePetfinder) { f.searchBody = `{"animals": [` })
	c := f.client(f.tokens(), nil)

	_, err := c.Fetch(context.Background(), scenarioQuery())
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, http.StatusOK, fe.StatusCode)
	assert.Error(t, fe.Err)
}

func TestFetch_TokenReusedAcrossQueries(t *testing.T) {
	f := newFakePetfinder(t)
	rc, _ := newMemoryResults()
	c := f.client(f.tokens(), rc)
	ctx := context.Background()

	_, err := c.Fetch(ctx, scenarioQuery())
	require.NoError(t, err)

	other := scenarioQuery()
	other.Page = 2
	_, err = c.Fetch(ctx, other)
	require.NoError(t, err)

	assert.Equal(t, int32(1), f.tokenCalls.Load())
	assert.Equal(t, int32(2), f.searchCalls.Load())
}

func TestFetch_ConfigErrorPropagates(t *testing.T) {
	f := newFakePetfinder(t)
	c := New(NewTokenCache("", ""), WithBaseURL(f.server.URL+"/v2"))

	records, err := c.Fetch(context.Background(), scenarioQuery())
	assert.Nil(t, records)
	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
	assert.False(t, IsRetryable(err))
	assert.Equal(t, int32(0), f.searchCalls.Load())
}

func TestFetch_UnauthorizedSearchInvalidatesToken(t *testing.T) {
	f := newFakePetfinder(t)
	tc := f.tokens(WithStaticToken("revoked"))
	c := f.client(tc, nil)
	ctx := context.Background()

	_, err := c.Fetch(ctx, scenarioQuery())
	var ae *AuthError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, http.StatusUnauthorized, ae.StatusCode)
	assert.Equal(t, int32(0), f.tokenCalls.Load())

	// No automatic retry happened; the next call exchanges a fresh token
	records, err := c.Fetch(ctx, scenarioQuery())
	require.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Equal(t, int32(1), f.tokenCalls.Load())
	assert.Equal(t, int32(2), f.searchCalls.Load())
}

func TestRefresh_BypassesFreshCache(t *testing.T) {
	f := newFakePetfinder(t)
	rc, _ := newMemoryResults()
	start := time.Now()
	now := start
	rc.now = func() time.Time { return now }
	c := f.client(f.tokens(), rc)
	ctx := context.Background()

	// two warm ticks 50 minutes apart, both inside the one hour TTL
	_, err := c.Refresh(ctx, scenarioQuery())
	require.NoError(t, err)
	now = start.Add(50 * time.Minute)
	_, err = c.Refresh(ctx, scenarioQuery())
	require.NoError(t, err)
	assert.Equal(t, int32(2), f.searchCalls.Load())

	now = start.Add(65 * time.Minute)
	cr, ok := rc.Get(ctx, scenarioQuery())
	require.True(t, ok)
	assert.True(t, start.Add(50*time.Minute).Equal(cr.FetchedAt))

	records, err := c.Fetch(ctx, scenarioQuery())
	require.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Equal(t, int32(2), f.searchCalls.Load())
}

func TestRefresh_InvalidQuery(t *testing.T) {
	f := newFakePetfinder(t)
	c := f.client(f.tokens(), nil)

	_, err := c.Refresh(context.Background(), Query{Type: "dog", Limit: 1, Page: 0})
	require.ErrorIs(t, err, ErrInvalidQuery)
	assert.Equal(t, int32(0), f.tokenCalls.Load())
}

func TestFetch_BrokenCacheDegradesToMiss(t *testing.T) {
	f := newFakePetfinder(t)
	store := &brokenStore{}
	rc := NewResultCache(store, time.Hour, zerolog.Nop())
	c := f.client(f.tokens(), rc)

	records, err := c.Fetch(context.Background(), scenarioQuery())
	require.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Equal(t, int32(1), store.reads.Load())
	assert.Equal(t, int32(1), store.writes.Load())
}

func TestFetch_InvalidQuery(t *testing.T) {
	f := newFakePetfinder(t)
	c := f.client(f.tokens(), nil)

	_, err := c.Fetch(context.Background(), Query{Type: "dog", Limit: 0, Page: 1})
	require.ErrorIs(t, err, ErrInvalidQuery)
	assert.Equal(t, int32(0), f.tokenCalls.Load())
}

func TestFetch_NoResultCache(t *testing.T) {
	f := newFakePetfinder(t)
	c := f.client(f.tokens(), nil)
	ctx := context.Background()

	_, err := c.Fetch(ctx, scenarioQuery())
	require.NoError(t, err)
	_, err = c.Fetch(ctx, scenarioQuery())
	require.NoError(t, err)
	assert.Equal(t, int32(2), f.searchCalls.Load())
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		value    string
		expected time.Duration
	}{
		{"", 0},
		{"0", 0},
		{"120", 2 * time.Minute},
		{"-5", 0},
		{"99999999999", time.Duration(maxRetryAfterSeconds) * time.Second},
		{"soon", 0},
		{now.Add(90 * time.Second).Format(http.TimeFormat), 90 * time.Second},
		{now.Add(-time.Minute).Format(http.TimeFormat), 0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, parseRetryAfter(tt.value, now), "Retry-After %q", tt.value)
	}
}
