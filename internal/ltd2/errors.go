package ltd2

import (
	"errors"
	"fmt"
	"time"
)

// Error kinds surfaced by the client. The driver decides retry behavior
// based on these via errors.Is.
var (
	// ErrForbidden means the API key is invalid or expired. Fatal, no retry.
	ErrForbidden = errors.New("forbidden: invalid or expired api key")

	// ErrRateLimited means the request was rejected with 429. Transient.
	ErrRateLimited = errors.New("rate limited")

	// ErrQuotaExhausted means the key's request quota for the period is used
	// up. Fatal for the current run.
	ErrQuotaExhausted = errors.New("request quota exhausted")

	// ErrNotFound means the query matched no entries. This marks the end of
	// the data, not a failure.
	ErrNotFound = errors.New("entry not found")

	// ErrMalformedResponse means the payload did not have the expected
	// shape, typically after a server-side schema change.
	ErrMalformedResponse = errors.New("malformed response")
)

// RateLimitError carries the server-suggested wait from a 429 response.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
	}
	return "rate limited"
}

// Is makes errors.Is(err, ErrRateLimited) match.
func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}

// StatusError is returned for unexpected HTTP status codes.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("api returned status %d", e.Code)
}

// IsFatal reports whether an error should abort a run instead of being
// retried.
func IsFatal(err error) bool {
	return errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrQuotaExhausted) ||
		errors.Is(err, ErrMalformedResponse)
}
