package billing

import (
	"errors"
	"fmt"
)

// ErrMissingAPIKey is returned by NewClient when no credential is supplied.
var ErrMissingAPIKey = errors.New("billing api key is required")

// RequestError is a non-retryable caller error (4xx other than 429). Message
// carries the status-specific hint shown to the operator.
type RequestError struct {
	StatusCode int
	Message    string
	Body       []byte
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("billing request failed (status %d): %s", e.StatusCode, e.Message)
}

// ServerError is a 5xx that survived the full retry budget.
type ServerError struct {
	StatusCode int
	Attempts   int
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("billing server error (status %d) after %d attempts", e.StatusCode, e.Attempts)
}

// RateLimitError means the bounded 429 retry budget was exhausted.
type RateLimitError struct {
	Retries int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("billing rate limit not lifted after %d retries", e.Retries)
}

// TimeoutError wraps a request that hit the configured per-request timeout on
// its final attempt.
type TimeoutError struct {
	cause error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("billing request timed out: %v", e.cause)
}

func (e *TimeoutError) Unwrap() error { return e.cause }

// NetworkError wraps a transient transport failure that survived the full
// retry budget.
type NetworkError struct {
	cause error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("billing network error: %v", e.cause)
}

func (e *NetworkError) Unwrap() error { return e.cause }
