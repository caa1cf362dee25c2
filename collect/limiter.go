package collect

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Limiter bounds concurrent outbound API calls per collector. It is the
// primary backpressure mechanism against upstream rate limits.
type Limiter struct {
	sem *semaphore.Weighted
}

// NewLimiter builds a limiter admitting at most n concurrent calls.
// Non-positive n defaults to 5.
func NewLimiter(n int64) *Limiter {
	if n <= 0 {
		n = 5
	}
	return &Limiter{sem: semaphore.NewWeighted(n)}
}

// Acquire blocks until a slot is free or ctx is done.
func (l *Limiter) Acquire(ctx context.Context) error {
	return l.sem.Acquire(ctx, 1)
}

// Release frees a slot obtained by Acquire.
func (l *Limiter) Release() {
	l.sem.Release(1)
}
