package petfinder

import (
	"errors"
	"fmt"
	"time"
)

// maxBodyExcerpt bounds how much of a provider response ends up in an error
const maxBodyExcerpt = 256

// ErrInvalidQuery is wrapped by errors describing a malformed Query
var ErrInvalidQuery = errors.New("invalid query")

// ConfigError means the client is not configured to talk to Petfinder.
// It is not retryable; the credentials have to be fixed.
type ConfigError struct {
	Field string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("petfinder: %s is not configured", e.Field)
}

// AuthError means Petfinder rejected the credentials or the token, or the
// token endpoint answered without an access token.
type AuthError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *AuthError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Body != "":
		return fmt.Sprintf("petfinder: authentication failed: status %d: %s", e.StatusCode, e.Body)
	case e.StatusCode != 0:
		return fmt.Sprintf("petfinder: authentication failed: status %d", e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("petfinder: authentication failed: %v", e.Err)
	}
	return "petfinder: authentication failed"
}

func (e *AuthError) Unwrap() error { return e.Err }

// RateLimitError is returned for HTTP 429. RetryAfter is zero when the
// provider did not say how long to wait.
type RateLimitError struct {
	RetryAfter time.Duration
	Body       string
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("petfinder: rate limited, retry after %s", e.RetryAfter)
	}
	return "petfinder: rate limited"
}

// FetchError covers every other failed search: unexpected statuses,
// undecodable bodies and transport errors (StatusCode 0).
type FetchError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *FetchError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Err != nil:
		return fmt.Sprintf("petfinder: fetch failed: status %d: %v", e.StatusCode, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("petfinder: fetch failed: status %d: %s", e.StatusCode, e.Body)
	case e.Err != nil:
		return fmt.Sprintf("petfinder: fetch failed: %v", e.Err)
	}
	return "petfinder: fetch failed"
}

func (e *FetchError) Unwrap() error { return e.Err }

// IsRetryable reports whether err is worth retrying later without changing
// configuration or input.
func IsRetryable(err error) bool {
	var rl *RateLimitError
	var fe *FetchError
	return errors.As(err, &rl) || errors.As(err, &fe)
}

// excerpt trims a response body for inclusion in an error message
func excerpt(body []byte) string {
	if len(body) > maxBodyExcerpt {
		return string(body[:maxBodyExcerpt]) + "..."
	}
	return string(body)
}
