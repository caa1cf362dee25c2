package memory

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLStore persists lessons in MySQL for installs where several
// service instances share one memory.
type MySQLStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewMySQLStore connects with the given DSN and migrates the schema.
// The DSN must include parseTime=true so created_at scans into
// time.Time, e.g. "user:pass@tcp(host:3306)/trading?parseTime=true".
func NewMySQLStore(dsn string) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("memory: open mysql: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("memory: ping mysql: %w", err)
	}

	store := &MySQLStore{db: db}
	if err := store.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *MySQLStore) migrate(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS lessons (
			id VARCHAR(36) PRIMARY KEY,
			symbol VARCHAR(32) NOT NULL,
			situation TEXT NOT NULL,
			takeaway TEXT NOT NULL,
			decision VARCHAR(8) NOT NULL,
			created_at TIMESTAMP(6) NOT NULL,
			INDEX idx_lessons_symbol_created (symbol, created_at)
		)
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("memory: create lessons table: %w", err)
	}
	return nil
}

// Put implements Store.
func (s *MySQLStore) Put(ctx context.Context, lesson Lesson) error {
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
func (s *MySQLStore) Recall(ctx context.Context, symbol string, limit int) ([]Lesson, error) {
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
func (s *MySQLStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
