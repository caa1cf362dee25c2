package memory

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists lessons in a single-file database. Zero-setup
// default for single-node deployments; use ":memory:" for tests.
// WAL mode keeps reads concurrent with the single writer.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewSQLiteStore opens (or creates) the database at path and migrates
// the schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("memory: open sqlite: %w", err)
	}

	// SQLite allows one writer; a single pooled connection avoids
	// SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx := context.Background()
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("memory: %s: %w", pragma, err)
		}
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS lessons (
			id TEXT PRIMARY KEY,
			symbol TEXT NOT NULL,
			situation TEXT NOT NULL,
			takeaway TEXT NOT NULL,
			decision TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("memory: create lessons table: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		"CREATE INDEX IF NOT EXISTS idx_lessons_symbol_created ON lessons(symbol, created_at DESC)"); err != nil {
		return fmt.Errorf("memory: create lessons index: %w", err)
	}
	return nil
}

// Put implements Store.
func (s *SQLiteStore) Put(ctx context.Context, lesson Lesson) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}

	lesson = prepare(lesson)
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO lessons (id, symbol, situation, takeaway, decision, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		lesson.ID, lesson.Symbol, lesson.Situation, lesson.Takeaway, lesson.Decision, lesson.CreatedAt)
	if err != nil {
		return fmt.Errorf("memory: insert lesson: %w", err)
	}
	return nil
}

// Recall implements Store.
func (s *SQLiteStore) Recall(ctx context.Context, symbol string, limit int) ([]Lesson, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, symbol, situation, takeaway, decision, created_at FROM lessons WHERE symbol = ? ORDER BY created_at DESC LIMIT ?",
		symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("memory: query lessons: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanLessons(rows)
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func scanLessons(rows *sql.Rows) ([]Lesson, error) {
	var lessons []Lesson
	for rows.Next() {
		var lesson Lesson
		if err := rows.Scan(&lesson.ID, &lesson.Symbol, &lesson.Situation,
			&lesson.Takeaway, &lesson.Decision, &lesson.CreatedAt); err != nil {
			return nil, fmt.Errorf("memory: scan lesson: %w", err)
		}
		lessons = append(lessons, lesson)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("memory: iterate lessons: %w", err)
	}
	return lessons, nil
}
