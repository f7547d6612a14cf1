package petfinder

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	DefaultTokenURL = "https://api.petfinder.com/v2/oauth2/token"

	// tokens expiring within this window are exchanged again
	defaultExpiryLeeway = 2 * time.Minute
)

// TokenCache holds the current bearer token and performs the OAuth2
// client-credentials exchange when there is none or it is about to expire.
// It is safe for concurrent use; concurrent callers share one exchange.
type TokenCache struct {
	mu     sync.Mutex
	conf   clientcredentials.Config
	http   *http.Client
	token  *oauth2.Token
	leeway time.Duration
	now    func() time.Time
	log    zerolog.Logger

	// static is a pre-issued bearer token used until Petfinder rejects it
	static string
}

type TokenOption func(*TokenCache)

func WithTokenURL(raw string) TokenOption {
	return func(tc *TokenCache) {
		if raw != "" {
			tc.conf.TokenURL = raw
		}
	}
}

func WithTokenHTTPClient(h *http.Client) TokenOption {
	return func(tc *TokenCache) {
		if h != nil {
			tc.http = h
		}
	}
}

// WithStaticToken uses a pre-issued bearer token before falling back to the
// client-credentials exchange.
func WithStaticToken(token string) TokenOption {
	return func(tc *TokenCache) { tc.static = token }
}

func WithExpiryLeeway(d time.Duration) TokenOption {
	return func(tc *TokenCache) {
		if d >= 0 {
			tc.leeway = d
		}
	}
}

func WithTokenLogger(l zerolog.Logger) TokenOption {
	return func(tc *TokenCache) { tc.log = l }
}

func withTokenClock(now func() time.Time) TokenOption {
	return func(tc *TokenCache) { tc.now = now }
}

// NewTokenCache creates a token cache for the given credentials. Empty
// credentials are accepted here and reported as a ConfigError by Token.
func NewTokenCache(clientID, clientSecret string, opts ...TokenOption) *TokenCache {
	tc := &TokenCache{
		conf: clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     DefaultTokenURL,
			AuthStyle:    oauth2.AuthStyleInParams,
		},
		http:   http.DefaultClient,
		leeway: defaultExpiryLeeway,
		now:    time.Now,
		log:    zerolog.Nop(),
	}
	for _, o := range opts {
		o(tc)
	}
	return tc
}

// Token returns a usable bearer token, exchanging credentials first when
// the cached token is missing or expires within the leeway.
func (tc *TokenCache) Token(ctx context.Context) (*oauth2.Token, error) {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	if tc.token == nil && tc.static != "" {
		tc.token = &oauth2.Token{AccessToken: tc.static, TokenType: "Bearer"}
	}
	if tc.valid(tc.token) {
		t := *tc.token
		return &t, nil
	}

	switch {
	case tc.conf.ClientID == "":
		return nil, &ConfigError{Field: "client id"}
	case tc.conf.ClientSecret == "":
		return nil, &ConfigError{Field: "client secret"}
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, tc.http)
	tok, err := tc.conf.Token(ctx)
	if err != nil {
		tc.token = nil
		return nil, classifyTokenError(ctx, err)
	}

	tc.token = tok
	tc.log.Debug().Time("expires_at", tok.Expiry).Msg("exchanged petfinder token")
	t := *tok
	return &t, nil
}

// Invalidate drops rejected if it is still the cached token, so the next
// call to Token exchanges a new one. A token exchanged by another caller
// after rejected was handed out is kept. Called after the search endpoint
// answers 401 or 403.
func (tc *TokenCache) Invalidate(rejected string) {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	if rejected == "" {
		return
	}
	if rejected == tc.static {
		tc.static = ""
	}
	if tc.token != nil && tc.token.AccessToken == rejected {
		tc.token = nil
	}
}

// valid reports whether t can be handed out. A zero Expiry means the
// provider didn't say; such tokens live until invalidated.
func (tc *TokenCache) valid(t *oauth2.Token) bool {
	if t == nil || t.AccessToken == "" {
		return false
	}
	if t.Expiry.IsZero() {
		return true
	}
	return tc.now().Add(tc.leeway).Before(t.Expiry)
}

func classifyTokenError(ctx context.Context, err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		status := 0
		if re.Response != nil {
			status = re.Response.StatusCode
		}
		return &AuthError{StatusCode: status, Body: excerpt(re.Body), Err: err}
	}

	var ue *url.Error
	if errors.As(err, &ue) || ctx.Err() != nil {
		return &FetchError{Err: err}
	}

	// missing access_token or an unparseable token response
	return &AuthError{Err: err}
}
