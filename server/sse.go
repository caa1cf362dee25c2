package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dshills/tradingagents-go/agents"
	"github.com/dshills/tradingagents-go/graph/emit"
)

// cancelGrace gives an interrupted run time to drain before the handler
// returns.
const cancelGrace = 5 * time.Second

// wireEvent is one SSE data payload.
type wireEvent struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	Agent   string `json:"agent,omitempty"`
	Status  string `json:"status,omitempty"`
	Section string `json:"section,omitempty"`
	Content string `json:"content,omitempty"`
	Signal  string `json:"signal,omitempty"`
}

// reportSections maps analyst keys to the report section names on the
// wire.
var reportSections = map[string]string{
	agents.AnalystMarket:       "market_report",
	agents.AnalystNews:         "news_report",
	agents.AnalystSocial:       "sentiment_report",
	agents.AnalystFundamentals: "fundamentals_report",
}

// progressNodes is the denominator for the progress percentage: the
// node executions of a typical single-round run.
const progressNodes = 15

type runOutcome struct {
	final agents.Blackboard
	err   error
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	ticker := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("ticker")))
	if ticker == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "ticker query parameter is required"})
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming unsupported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	runID := uuid.NewString()
	events := s.stream.Subscribe(runID)
	defer s.stream.Unsubscribe(runID)

	// Client disconnect cancels the run; the engine drains within its
	// grace window.
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	done := make(chan runOutcome, 1)
	go func() {
		final, err := s.runner.Run(ctx, runID, agents.Blackboard{
			CompanyOfInterest: ticker,
			TradeDate:         r.URL.Query().Get("date"),
		})
		done <- runOutcome{final: final, err: err}
	}()

	s.writeEvent(w, flusher, wireEvent{Type: "status", Message: "analysis started for " + ticker})

	heartbeat := time.NewTicker(s.heartbeat)
	defer heartbeat.Stop()

	completed := 0
	for {
		select {
		case ev, open := <-events:
			if !open {
				events = nil
				continue
			}
			for _, we := range s.translate(ev, &completed) {
				s.writeEvent(w, flusher, we)
			}
		case <-heartbeat.C:
			fmt.Fprint(w, ": heartbeat\n\n")
			flusher.Flush()
		case out := <-done:
			s.finish(w, flusher, out)
			return
		case <-r.Context().Done():
			s.log.Info("stream client disconnected", zap.String("run_id", runID))
			select {
			case <-done:
			case <-time.After(cancelGrace):
			}
			return
		}
	}
}

// translate converts an engine event into zero or more wire events.
func (s *Server) translate(ev emit.Event, completed *int) []wireEvent {
	agent, isAnalyst := analystFor(ev.NodeID)

	switch ev.Msg {
	case "node_start":
		if isAnalyst {
			return []wireEvent{{Type: "agent_status", Agent: agent, Status: "in_progress"}}
		}
		return []wireEvent{{Type: "status", Message: "running " + ev.NodeID}}
	case "node_end":
		*completed++
		var out []wireEvent
		if isAnalyst {
			out = append(out, wireEvent{Type: "agent_status", Agent: agent, Status: "completed"})
		}
		pct := *completed * 100 / progressNodes
		if pct > 95 {
			pct = 95
		}
		return append(out, wireEvent{Type: "progress", Content: fmt.Sprintf("%d", pct)})
	case "node_error":
		if isAnalyst {
			return []wireEvent{{Type: "agent_status", Agent: agent, Status: "error"}}
		}
		msg, _ := ev.Meta["error"].(string)
		return []wireEvent{{Type: "status", Message: "error in " + ev.NodeID + ": " + msg}}
	case "fanout_start":
		return []wireEvent{{Type: "status", Message: "dispatching " + ev.NodeID + " branches"}}
	}
	return nil
}

// finish writes the terminal event sequence: every populated report
// section, the decision reasoning, full progress, and the signal.
func (s *Server) finish(w http.ResponseWriter, flusher http.Flusher, out runOutcome) {
	if out.err != nil {
		s.writeEvent(w, flusher, wireEvent{Type: "error", Message: out.err.Error()})
		return
	}
	final := out.final
	for _, analyst := range agents.Analysts {
		if report := final.Report(analyst); report != "" {
			s.writeEvent(w, flusher, wireEvent{
				Type:    "report",
				Section: reportSections[analyst],
				Content: report,
			})
		}
	}
	for _, section := range []struct{ name, body string }{
		{"investment_plan", final.InvestmentPlan},
		{"trader_investment_plan", final.TraderInvestmentPlan},
		{"final_trade_decision", final.FinalTradeDecision},
	} {
		if section.body == "" {
			continue
		}
		s.writeEvent(w, flusher, wireEvent{
			Type:    "report",
			Section: section.name,
			Content: section.body,
		})
	}
	if final.FinalTradeDecision != "" {
		s.writeEvent(w, flusher, wireEvent{Type: "reasoning", Content: final.FinalTradeDecision})
	}
	s.writeEvent(w, flusher, wireEvent{Type: "progress", Content: "100"})
	s.writeEvent(w, flusher, wireEvent{
		Type:   "complete",
		Signal: agents.ExtractSignal(final.FinalTradeDecision),
	})
}

func (s *Server) writeEvent(w http.ResponseWriter, flusher http.Flusher, ev wireEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", payload)
	flusher.Flush()
}

// analystFor maps a graph node ID onto its analyst key.
func analystFor(nodeID string) (string, bool) {
	key, found := strings.CutSuffix(nodeID, "_analyst")
	if !found {
		return "", false
	}
	for _, analyst := range agents.Analysts {
		if key == analyst {
			return key, true
		}
	}
	return "", false
}
