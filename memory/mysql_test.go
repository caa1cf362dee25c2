package memory

import (
	"context"
	"os"
	"testing"
	"time"
)

// Integration test against a real MySQL server. Skipped unless
// TEST_MYSQL_DSN is set, e.g.
// "user:password@tcp(localhost:3306)/test_db?parseTime=true".
func TestMySQLIntegration(t *testing.T) {
	dsn := os.Getenv("TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("set TEST_MYSQL_DSN to run the MySQL integration test")
	}

	s, err := NewMySQLStore(dsn)
	if err != nil {
		t.Fatalf("NewMySQLStore: %v", err)
	}
	defer func() { _ = s.Close() }()

	ctx := context.Background()
	symbol := "ITEST-" + time.Now().UTC().Format("150405")

	if err := s.Put(ctx, Lesson{
		Symbol:    symbol,
		Situation: "integration check",
		Takeaway:  "round trip through mysql backend",
		Decision:  "HOLD",
	}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	lessons, err := s.Recall(ctx, symbol, 5)
	if err != nil {
		t.Fatalf("Recall: %v", err)
	}
	if len(lessons) != 1 || lessons[0].Decision != "HOLD" {
		t.Fatalf("lessons = %+v", lessons)
	}
}
