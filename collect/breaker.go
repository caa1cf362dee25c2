package collect

import (
	"sync"
	"time"
)

const (
	breakerClosed = iota
	breakerOpen
	breakerHalfOpen
)

// Breaker is a consecutive-failure circuit breaker. It opens after
// Threshold failures in a row, rejects every call for Cooldown, then
// admits a single half-open probe; a successful probe closes the breaker,
// a failed one re-opens it.
type Breaker struct {
	mu        sync.Mutex
	state     int
	failures  int
	openedAt  time.Time
	threshold int
	cooldown  time.Duration
	now       func() time.Time
}

// NewBreaker builds a breaker with the given consecutive-failure threshold
// and open cooldown. Non-positive arguments take the defaults (5 failures,
// 60s cooldown).
func NewBreaker(threshold int, cooldown time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = 60 * time.Second
	}
	return &Breaker{
		threshold: threshold,
		cooldown:  cooldown,
		now:       time.Now,
	}
}

// Allow reports whether a call may proceed. While open and inside the
// cooldown it returns ErrCircuitOpen without blocking; when the cooldown
// has elapsed it transitions to half-open and admits one probe.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case breakerClosed:
		return nil
	case breakerOpen:
		if b.now().Sub(b.openedAt) < b.cooldown {
			return ErrCircuitOpen
		}
		b.state = breakerHalfOpen
		return nil
	default: // half-open: one probe is already in flight
		return ErrCircuitOpen
	}
}

// Record reports the outcome of a call admitted by Allow. A nil error
// resets the breaker; a failure increments the consecutive count and opens
// the breaker at the threshold (or immediately when half-open).
func (b *Breaker) Record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		b.state = breakerClosed
		b.failures = 0
		return
	}

	b.failures++
	if b.state == breakerHalfOpen || b.failures >= b.threshold {
		if b.state != breakerOpen {
			breakerOpens.Inc()
		}
		b.state = breakerOpen
		b.openedAt = b.now()
	}
}

// Open reports whether the breaker is currently rejecting calls.
func (b *Breaker) Open() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state == breakerOpen && b.now().Sub(b.openedAt) < b.cooldown
}

// BreakerSet keys breakers by upstream name so each source trips
// independently.
type BreakerSet struct {
	mu        sync.Mutex
	breakers  map[string]*Breaker
	threshold int
	cooldown  time.Duration
}

// NewBreakerSet builds a set producing breakers with the given settings.
func NewBreakerSet(threshold int, cooldown time.Duration) *BreakerSet {
	return &BreakerSet{
		breakers:  make(map[string]*Breaker),
		threshold: threshold,
		cooldown:  cooldown,
	}
}

// For returns the breaker for name, creating it on first use.
func (s *BreakerSet) For(name string) *Breaker {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.breakers[name]
	if !ok {
		b = NewBreaker(s.threshold, s.cooldown)
		s.breakers[name] = b
	}
	return b
}
