// Package petfinder fetches adoptable animals from the Petfinder v2 API and
// flattens them into display records.
package petfinder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

const (
	DefaultBaseURL = "https://api.petfinder.com/v2"

	maxResponseSize = 10 << 20

	maxRetryAfterSeconds = math.MaxInt64 / int64(time.Second)
)

// Client runs the search pipeline: result cache, token, search, normalize.
type Client struct {
	http    *http.Client
	baseURL *url.URL
	tokens  *TokenCache
	results *ResultCache // optional; nil means no cache
	now     func() time.Time
	log     zerolog.Logger
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

func WithBaseURL(raw string) Option {
	return func(c *Client) {
		if u, err := url.Parse(raw); err == nil && raw != "" {
			c.baseURL = u
		}
	}
}

func WithResultCache(rc *ResultCache) Option {
	return func(c *Client) { c.results = rc }
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// New creates a client that authenticates through tokens
func New(tokens *TokenCache, opts ...Option) *Client {
	u, _ := url.Parse(DefaultBaseURL)
	c := &Client{
		http:    http.DefaultClient,
		baseURL: u,
		tokens:  tokens,
		now:     time.Now,
		log:     zerolog.Nop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Fetch returns the animals matching q in the order Petfinder lists them.
// A fresh cached result is returned without touching the network.
// Errors are *ConfigError, *AuthError, *RateLimitError, *FetchError, or
// wrap ErrInvalidQuery. Fetch never retries.
func (c *Client) Fetch(ctx context.Context, q Query) ([]Record, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	if c.results != nil {
		if cr, ok := c.results.Get(ctx, q); ok {
			c.log.Debug().Str("key", q.Key()).Int("records", len(cr.Records)).Msg("result cache hit")
			return cr.Records, nil
		}
	}

	return c.fetchLive(ctx, q)
}

// Refresh fetches q from Petfinder even when a fresh result is cached, and
// replaces the cached result on success. Errors are those of Fetch.
func (c *Client) Refresh(ctx context.Context, q Query) ([]Record, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	return c.fetchLive(ctx, q)
}

func (c *Client) fetchLive(ctx context.Context, q Query) ([]Record, error) {
	if c.tokens == nil {
		return nil, &ConfigError{Field: "token cache"}
	}
	tok, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	body, err := c.search(ctx, tok.AccessToken, q)
	if err != nil {
		c.log.Warn().Err(err).Str("key", q.Key()).Msg("petfinder search failed")
		return nil, err
	}

	records := NormalizeAll(body.Animals)
	c.log.Info().
		Str("key", q.Key()).
		Int("records", len(records)).
		Dur("duration", time.Since(start)).
		Msg("fetched animals")

	if c.results != nil {
		c.results.Put(ctx, q, records)
	}
	return records, nil
}

func (c *Client) newReq(ctx context.Context, token string, q Query) (*http.Request, error) {
	u := *c.baseURL
	u.Path = path.Join(u.Path, animalsPath)
	qq := u.Query()
	for k, v := range q.Params() {
		qq.Set(k, v)
	}
	u.RawQuery = qq.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) search(ctx context.Context, token string, q Query) (*SearchResponse, error) {
	req, err := c.newReq(ctx, token, q)
	if err != nil {
		return nil, &FetchError{Err: fmt.Errorf("build request: %w", err)}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &FetchError{Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, &FetchError{StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &RateLimitError{
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), c.now()),
			Body:       excerpt(body),
		}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		c.tokens.Invalidate(token)
		return nil, &AuthError{StatusCode: resp.StatusCode, Body: excerpt(body)}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, &FetchError{StatusCode: resp.StatusCode, Body: excerpt(body)}
	}

	var out SearchResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, &FetchError{StatusCode: resp.StatusCode, Body: excerpt(body), Err: fmt.Errorf("decode animals: %w", err)}
	}
	return &out, nil
}

// parseRetryAfter reads a Retry-After header given as delta-seconds or as
// an HTTP-date. Unknown or past values yield zero.
func parseRetryAfter(v string, now time.Time) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.ParseInt(v, 10, 64); err == nil {
		if secs < 0 {
			return 0
		}
		if secs > maxRetryAfterSeconds {
			secs = maxRetryAfterSeconds
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}
