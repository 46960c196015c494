package fluxer

import (
	"errors"
	"fmt"
	"time"
)

// ErrAuthentication is returned when the API rejects the token (HTTP 401).
var ErrAuthentication = errors.New("fluxer: authentication failed")

// ErrNotFound is returned when a resource does not exist (HTTP 404).
var ErrNotFound = errors.New("fluxer: resource not found")

// ErrNoClient is returned by model action methods when the model was built
// without a client back-reference.
var ErrNoClient = errors.New("fluxer: no client attached")

// RateLimitError is returned on HTTP 429. Callers are expected to wait
// RetryAfter and retry.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("fluxer: rate limit exceeded, retry after %s", e.RetryAfter)
	}
	return "fluxer: rate limit exceeded"
}

// APIError is returned for any other API failure (HTTP >= 400), carrying the
// status code and a best-effort message extracted from the response body.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("fluxer: API error %d: %s", e.StatusCode, e.Message)
}
