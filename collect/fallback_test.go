package collect

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

func testChain() *Chain[string] {
	return &Chain[string]{
		Breakers: NewBreakerSet(5, time.Minute),
		Limiter:  NewLimiter(5),
		Empty:    func(s string) bool { return s == "" },
		Log:      zap.NewNop(),
	}
}

func src(name, value string, err error) Source[string] {
	return Source[string]{Name: name, Fetch: func(context.Context) (string, error) {
		return value, err
	}}
}

func TestChainPrefersPrimary(t *testing.T) {
	chain := testChain()
	got, source, err := chain.Fetch(context.Background(), "AAPL",
		src("primary", "a", nil),
		src("secondary", "b", nil),
	)
	if err != nil {
		t.Fatal(err)
	}
	if got != "a" || source != "primary" {
		t.Fatalf("got %q from %q, want a from primary", got, source)
	}
}

func TestChainFallsThroughOnError(t *testing.T) {
	cases := []struct {
		name    string
		primary Source[string]
	}{
		{"transport error", src("primary", "", errors.New("dial tcp: timeout"))},
		{"empty result", src("primary", "", nil)},
		{"rejected", src("primary", "", &StatusError{URL: "u", Status: 429})},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			chain := testChain()
			got, source, err := chain.Fetch(context.Background(), "AAPL",
				tc.primary,
				src("secondary", "b", nil),
			)
			if err != nil {
				t.Fatal(err)
			}
			if got != "b" || source != "secondary" {
				t.Fatalf("got %q from %q, want b from secondary", got, source)
			}
		})
	}
}

func TestChainExhaustionJoinsErrors(t *testing.T) {
	chain := testChain()
	first := errors.New("first down")
	second := errors.New("second down")
	_, _, err := chain.Fetch(context.Background(), "MSFT",
		src("primary", "", first),
		src("secondary", "", second),
	)
	if err == nil {
		t.Fatal("want error when every source fails")
	}
	if !errors.Is(err, first) || !errors.Is(err, second) {
		t.Fatalf("joined error should wrap both causes: %v", err)
	}
	if !strings.Contains(err.Error(), "MSFT") {
		t.Fatalf("error should name the symbol: %v", err)
	}
}

func TestChainSkipsOpenBreaker(t *testing.T) {
	chain := testChain()
	br := chain.Breakers.For("primary")
	for i := 0; i < 5; i++ {
		br.Record(errors.New("boom"))
	}

	calls := 0
	got, source, err := chain.Fetch(context.Background(), "AAPL",
		Source[string]{Name: "primary", Fetch: func(context.Context) (string, error) {
			calls++
			return "a", nil
		}},
		src("secondary", "b", nil),
	)
	if err != nil {
		t.Fatal(err)
	}
	if calls != 0 {
		t.Fatalf("open breaker should skip the source entirely, got %d calls", calls)
	}
	if got != "b" || source != "secondary" {
		t.Fatalf("got %q from %q, want b from secondary", got, source)
	}
}

func TestChainEmptyCountsAgainstBreaker(t *testing.T) {
	chain := testChain()
	for i := 0; i < 5; i++ {
		_, _, _ = chain.Fetch(context.Background(), "AAPL",
			src("primary", "", nil),
			src("secondary", "b", nil),
		)
	}
	if !chain.Breakers.For("primary").Open() {
		t.Fatal("five consecutive empty results should open the breaker")
	}
}

func TestChainStopsOnCancelledContext(t *testing.T) {
	chain := testChain()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := chain.Fetch(ctx, "AAPL", src("primary", "a", nil))
	if err == nil {
		t.Fatal("cancelled context should fail the fetch")
	}
}
