// Package collect provides the data-collection substrate shared by the
// fundamentals and technical collectors: a pooled HTTP client, an optional
// Redis-backed cache, per-upstream circuit breakers, a concurrency-bounding
// rate limiter, and ordered fallback chains over upstream sources.
package collect

import (
	"errors"
	"fmt"
)

// ErrCircuitOpen is returned by Breaker.Allow while the breaker is open.
// Callers fail fast without issuing the outbound request.
var ErrCircuitOpen = errors.New("circuit breaker open")

// ErrEmptyResult marks an upstream response that parsed but carried no
// usable data; fallback chains advance past it.
var ErrEmptyResult = errors.New("upstream returned empty result")

// StatusError reports a non-2xx upstream response.
type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream status %d: %s", e.Status, e.URL)
}

// Rejected reports whether the upstream refused the request outright
// (auth or quota). Rejected requests are not retried within a run.
func (e *StatusError) Rejected() bool {
	switch e.Status {
	case 401, 403, 429:
		return true
	}
	return false
}

// IsRejected reports whether err wraps a rejected-status response.
func IsRejected(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Rejected()
	}
	return false
}
