package petfinder

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/briangreenhill/petmatch/cache"
)

const (
	testClientID     = "test-client-id"
	testClientSecret = "super-secret-value"
)

// twoAnimals is a search response with one photographed and one
// photo-less animal.
const twoAnimals = `{
	"animals": [
		{
			"id": 71234567,
			"url": "https://www.petfinder.com/dog/biscuit-71234567/az/phoenix/shelter/",
			"type": "Dog",
			"name": "Biscuit",
			"description": "Loves belly rubs &amp;amp; long walks.",
			"age": "Young",
			"gender": "Male",
			"size": "Medium",
			"status": "adoptable",
			"breeds": {"primary": "Labrador Retriever", "secondary": "Poodle", "mixed": true, "unknown": false},
			"photos": [{"small": "https://photos/1-small.jpg", "medium": "https://photos/1-medium.jpg", "large": "https://photos/1-large.jpg", "full": "https://photos/1-full.jpg"}],
			"attributes": {"spayed_neutered": true, "house_trained": true, "special_needs": false, "shots_current": true},
			"environment": {"children": true, "dogs": true, "cats": null},
			"contact": {"email": "adopt@example.org", "phone": "555-0100", "address": {"city": "Phoenix", "state": "AZ", "postcode": "85004"}},
			"distance": 1.25
		},
		{
			"id": 71234568,
			"url": "https://www.petfinder.com/dog/pepper-71234568/az/phoenix/shelter/",
			"type": "Dog",
			"name": "Pepper",
			"description": null,
			"age": "Adult",
			"gender": "Female",
			"size": "Small",
			"status": "adoptable",
			"breeds": {"primary": "Chihuahua", "secondary": null, "mixed": false, "unknown": false},
			"photos": [],
			"attributes": {"spayed_neutered": false, "house_trained": false, "special_needs": true, "shots_current": false},
			"environment": {"children": null, "dogs": null, "cats": null},
			"contact": {"email": null, "phone": null, "address": {"city": "Phoenix", "state": "AZ", "postcode": "85004"}},
			"distance": 3.5
		}
	],
	"pagination": {"count_per_page": 10, "total_count": 2, "current_page": 1, "total_pages": 1}
}`

// fakePetfinder serves the token and search endpoints
type fakePetfinder struct {
	server *httptest.Server

	tokenCalls  atomic.Int32
	searchCalls atomic.Int32

	mu           sync.Mutex
	expiresIn    int
	tokenStatus  int
	tokenBody    string
	searchStatus int
	searchBody   string
	retryAfter   string
	lastQuery    url.Values
	current      string
}

func newFakePetfinder(t *testing.T) *fakePetfinder {
	t.Helper()
	f := &fakePetfinder{
		expiresIn:    3600,
		tokenStatus:  http.StatusOK,
		searchStatus: http.StatusOK,
		searchBody:   twoAnimals,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v2/oauth2/token", f.handleToken)
	mux.HandleFunc("/v2/animals", f.handleAnimals)
	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakePetfinder) handleToken(w http.ResponseWriter, r *http.Request) {
	n := f.tokenCalls.Add(1)
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if f.tokenStatus != http.StatusOK {
		w.WriteHeader(f.tokenStatus)
		_, _ = w.Write([]byte(`{"type":"https://httpstatus.es/401","status":401,"title":"Unauthorized","detail":"Client authentication failed"}`))
		return
	}
	if r.PostForm.Get("grant_type") != "client_credentials" ||
		r.PostForm.Get("client_id") != testClientID ||
		r.PostForm.Get("client_secret") != testClientSecret {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"title":"Unauthorized"}`))
		return
	}
	if f.tokenBody != "" {
		_, _ = w.Write([]byte(f.tokenBody))
		return
	}

	f.current = fmt.Sprintf("token-%d", n)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"token_type":   "Bearer",
		"expires_in":   f.expiresIn,
		"access_token": f.current,
	})
}

func (f *fakePetfinder) handleAnimals(w http.ResponseWriter, r *http.Request) {
	f.searchCalls.Add(1)

	f.mu.Lock()
	defer f.mu.Unlock()

	f.lastQuery = r.URL.Query()
	if f.current == "" || r.Header.Get("Authorization") != "Bearer "+f.current {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"title":"Unauthorized","detail":"Access token invalid or expired"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if f.retryAfter != "" {
		w.Header().Set("Retry-After", f.retryAfter)
	}
	w.WriteHeader(f.searchStatus)
	_, _ = w.Write([]byte(f.searchBody))
}

func (f *fakePetfinder) set(fn func(f *fakePetfinder)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *fakePetfinder) tokens(opts ...TokenOption) *TokenCache {
	opts = append([]TokenOption{WithTokenURL(f.server.URL + "/v2/oauth2/token")}, opts...)
	return NewTokenCache(testClientID, testClientSecret, opts...)
}

func (f *fakePetfinder) client(tc *TokenCache, rc *ResultCache) *Client {
	return New(tc,
		WithBaseURL(f.server.URL+"/v2"),
		WithResultCache(rc),
		WithLogger(zerolog.Nop()),
	)
}

func newMemoryResults() (*ResultCache, *cache.MemoryCache) {
	store := cache.NewMemoryCache()
	return NewResultCache(store, time.Hour, zerolog.Nop()), store
}

// brokenStore fails every operation
type brokenStore struct {
	reads, writes atomic.Int32
}

func (b *brokenStore) Read(_ context.Context, key string, _ time.Duration) (*cache.Entry, error) {
	b.reads.Add(1)
	return nil, fmt.Errorf("%w: %s", cache.ErrInvalidEntry, key)
}

func (b *brokenStore) Write(context.Context, string, *cache.Entry) error {
	b.writes.Add(1)
	return fmt.Errorf("disk full")
}
