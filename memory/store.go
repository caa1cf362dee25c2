// Package memory persists lessons learned from past analysis runs so
// researchers and the risk manager can recall them for a symbol. Three
// backends cover the deployment range: in-process for tests, SQLite for
// single-node setups, MySQL for shared installs.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("memory: store is closed")

// Lesson is one remembered takeaway from a completed run.
type Lesson struct {
	// ID uniquely identifies the lesson; Put assigns one when empty.
	ID string `json:"id"`

	// Symbol is the ticker or crypto pair the lesson concerns.
	Symbol string `json:"symbol"`

	// Situation summarizes the market conditions at decision time.
	Situation string `json:"situation"`

	// Takeaway is what the run concluded, typically the trader's
	// reasoning plus the final decision.
	Takeaway string `json:"takeaway"`

	// Decision is the extracted signal (BUY, SELL, or HOLD).
	Decision string `json:"decision"`

	// CreatedAt is set by Put when zero.
	CreatedAt time.Time `json:"created_at"`
}

// Store persists and recalls lessons. Implementations are safe for
// concurrent use.
type Store interface {
	// Put saves a lesson, assigning ID and CreatedAt when unset.
	Put(ctx context.Context, lesson Lesson) error

	// Recall returns up to limit lessons for the symbol, newest first.
	Recall(ctx context.Context, symbol string, limit int) ([]Lesson, error)

	// Close releases backing resources.
	Close() error
}

// prepare fills defaults before a lesson is written.
func prepare(lesson Lesson) Lesson {
	if lesson.ID == "" {
		lesson.ID = uuid.NewString()
	}
	if lesson.CreatedAt.IsZero() {
		lesson.CreatedAt = time.Now().UTC()
	}
	return lesson
}

// InMemoryStore keeps lessons in process memory. Contents are lost on
// Close; intended for tests and offline runs.
type InMemoryStore struct {
	mu       sync.RWMutex
	bySymbol map[string][]Lesson
	closed   bool
}

// NewInMemoryStore creates an empty InMemoryStore.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{bySymbol: make(map[string][]Lesson)}
}

// Put implements Store.
func (s *InMemoryStore) Put(ctx context.Context, lesson Lesson) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	lesson = prepare(lesson)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.bySymbol[lesson.Symbol] = append(s.bySymbol[lesson.Symbol], lesson)
	return nil
}

// Recall implements Store.
func (s *InMemoryStore) Recall(ctx context.Context, symbol string, limit int) ([]Lesson, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	lessons := s.bySymbol[symbol]
	out := make([]Lesson, len(lessons))
	copy(out, lessons)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Close implements Store.
func (s *InMemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.bySymbol = nil
	return nil
}
