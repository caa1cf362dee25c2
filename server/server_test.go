package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dshills/tradingagents-go/agents"
	"github.com/dshills/tradingagents-go/graph/emit"
)

// fakeRunner returns a canned blackboard and optionally emits engine
// events to the stream first, the way the engine would.
type fakeRunner struct {
	final  agents.Blackboard
	err    error
	stream *emit.StreamEmitter
	events []emit.Event
	delay  time.Duration
}

func (f *fakeRunner) Run(ctx context.Context, runID string, initial agents.Blackboard) (agents.Blackboard, error) {
	for _, ev := range f.events {
		ev.RunID = runID
		f.stream.Emit(ev)
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return agents.Blackboard{}, ctx.Err()
		}
	}
	out := f.final
	out.CompanyOfInterest = initial.CompanyOfInterest
	return out, f.err
}

func completedBoard() agents.Blackboard {
	return agents.Blackboard{
		TradeDate:            "2025-06-02",
		MarketReport:         "technical detail",
		NewsReport:           "news detail",
		SentimentReport:      "sentiment detail",
		FundamentalsReport:   "fundamentals detail",
		InvestmentPlan:       "long thesis wins",
		TraderInvestmentPlan: "enter in thirds",
		FinalTradeDecision:   "Thesis confirmed. FINAL DECISION: BUY",
	}
}

func newTestServer(runner Runner, stream *emit.StreamEmitter) *Server {
	s := New(runner, stream, nil)
	s.heartbeat = 10 * time.Millisecond
	return s
}

func TestHealth(t *testing.T) {
	s := newTestServer(&fakeRunner{}, emit.NewStreamEmitter(0))
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "healthy" {
		t.Errorf("body = %v", body)
	}
}

func TestRootDescriptor(t *testing.T) {
	s := newTestServer(&fakeRunner{}, emit.NewStreamEmitter(0))
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "tradingagents") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestAnalyzeRejectsEmptyTicker(t *testing.T) {
	s := newTestServer(&fakeRunner{}, emit.NewStreamEmitter(0))
	for _, body := range []string{`{}`, `{"ticker":"  "}`, `not json`} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader(body))
		s.Router().ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %q: status = %d, want 400", body, rec.Code)
		}
	}
}

func TestAnalyzeSuccess(t *testing.T) {
	runner := &fakeRunner{final: completedBoard(), stream: emit.NewStreamEmitter(0)}
	s := newTestServer(runner, runner.stream)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader(`{"ticker":"aapl","analysis_date":"2025-06-02"}`))
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp analyzeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Ticker != "AAPL" {
		t.Errorf("ticker = %q, want uppercased AAPL", resp.Ticker)
	}
	if resp.ProcessedSignal != "BUY" {
		t.Errorf("signal = %q", resp.ProcessedSignal)
	}
	if resp.MarketReport == "" || resp.FundamentalsReport == "" {
		t.Error("reports missing from response")
	}
	if resp.Error != "" {
		t.Errorf("unexpected error field: %q", resp.Error)
	}
}

func TestAnalyzeRunErrorIs200WithErrorField(t *testing.T) {
	runner := &fakeRunner{err: errors.New("upstreams exhausted"), stream: emit.NewStreamEmitter(0)}
	s := newTestServer(runner, runner.stream)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader(`{"ticker":"AAPL"}`))
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 for app-level failure", rec.Code)
	}
	var resp analyzeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Error != "upstreams exhausted" {
		t.Errorf("error = %q", resp.Error)
	}
	if resp.ProcessedSignal != "" {
		t.Errorf("signal = %q, want empty on failure", resp.ProcessedSignal)
	}
}

func TestStreamRequiresTicker(t *testing.T) {
	s := newTestServer(&fakeRunner{}, emit.NewStreamEmitter(0))
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/analyze/stream", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func parseSSE(t *testing.T, body string) []wireEvent {
	t.Helper()
	var out []wireEvent
	for _, line := range strings.Split(body, "\n") {
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev wireEvent
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
			t.Fatalf("bad SSE payload %q: %v", line, err)
		}
		out = append(out, ev)
	}
	return out
}

func TestStreamDeliversLifecycle(t *testing.T) {
	stream := emit.NewStreamEmitter(0)
	runner := &fakeRunner{
		final:  completedBoard(),
		stream: stream,
		events: []emit.Event{
			{NodeID: "market_analyst", Msg: "node_start"},
			{NodeID: "market_analyst", Msg: "node_end"},
			{NodeID: "research_manager", Msg: "node_end"},
		},
		delay: 20 * time.Millisecond,
	}
	s := newTestServer(runner, stream)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/analyze/stream?ticker=AAPL", nil)
	s.Router().ServeHTTP(rec, req)

	if got := rec.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Errorf("Content-Type = %q", got)
	}
	if got := rec.Header().Get("X-Accel-Buffering"); got != "no" {
		t.Errorf("X-Accel-Buffering = %q", got)
	}

	events := parseSSE(t, rec.Body.String())
	byType := make(map[string][]wireEvent)
	for _, ev := range events {
		byType[ev.Type] = append(byType[ev.Type], ev)
	}

	if len(byType["status"]) == 0 {
		t.Error("no status events")
	}
	var sawInProgress, sawCompleted bool
	for _, ev := range byType["agent_status"] {
		if ev.Agent == "market" && ev.Status == "in_progress" {
			sawInProgress = true
		}
		if ev.Agent == "market" && ev.Status == "completed" {
			sawCompleted = true
		}
	}
	if !sawInProgress || !sawCompleted {
		t.Errorf("agent_status events = %+v", byType["agent_status"])
	}
	reports := byType["report"]
	if len(reports) < 6 {
		t.Errorf("report events = %d, want at least 6 on a happy path", len(reports))
	}
	sections := make(map[string]bool, len(reports))
	for _, ev := range reports {
		sections[ev.Section] = true
	}
	for _, want := range []string{
		"market_report", "news_report", "sentiment_report", "fundamentals_report",
		"investment_plan", "trader_investment_plan", "final_trade_decision",
	} {
		if !sections[want] {
			t.Errorf("missing report section %q", want)
		}
	}
	if len(byType["reasoning"]) != 1 {
		t.Errorf("reasoning events = %d, want 1", len(byType["reasoning"]))
	}

	last := events[len(events)-1]
	if last.Type != "complete" || last.Signal != "BUY" {
		t.Errorf("terminal event = %+v", last)
	}

	// Final progress is 100.
	progress := byType["progress"]
	if len(progress) == 0 || progress[len(progress)-1].Content != "100" {
		t.Errorf("progress events = %+v", progress)
	}
}

func TestStreamRunErrorEmitsTerminalError(t *testing.T) {
	stream := emit.NewStreamEmitter(0)
	runner := &fakeRunner{err: errors.New("boom"), stream: stream}
	s := newTestServer(runner, stream)

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/analyze/stream?ticker=AAPL", nil))

	events := parseSSE(t, rec.Body.String())
	last := events[len(events)-1]
	if last.Type != "error" || !strings.Contains(last.Message, "boom") {
		t.Errorf("terminal event = %+v", last)
	}
}

func TestStreamHeartbeat(t *testing.T) {
	stream := emit.NewStreamEmitter(0)
	runner := &fakeRunner{final: completedBoard(), stream: stream, delay: 50 * time.Millisecond}
	s := newTestServer(runner, stream)
	s.heartbeat = 5 * time.Millisecond

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/analyze/stream?ticker=AAPL", nil))

	if !strings.Contains(rec.Body.String(), ": heartbeat") {
		t.Error("no heartbeat comment in stream")
	}
}
