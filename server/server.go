// Package server exposes the analysis workflow over HTTP: a one-shot
// JSON endpoint, a server-sent-event stream mirroring per-node progress,
// health and metrics.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/dshills/tradingagents-go/agents"
	"github.com/dshills/tradingagents-go/graph/emit"
)

// Version is reported by the service descriptor.
const Version = "1.0.0"

// Runner executes one analysis run; satisfied by the graph engine.
type Runner interface {
	Run(ctx context.Context, runID string, initial agents.Blackboard) (agents.Blackboard, error)
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, runID string, initial agents.Blackboard) (agents.Blackboard, error)

// Run implements Runner.
func (f RunnerFunc) Run(ctx context.Context, runID string, initial agents.Blackboard) (agents.Blackboard, error) {
	return f(ctx, runID, initial)
}

// Server holds the HTTP handlers and their dependencies.
type Server struct {
	runner Runner
	stream *emit.StreamEmitter
	log    *zap.Logger

	// heartbeat is the SSE comment interval; shortened in tests.
	heartbeat time.Duration
}

// New creates a Server. The stream emitter must be the same one the
// engine was built with, or the SSE endpoint sees no events.
func New(runner Runner, stream *emit.StreamEmitter, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		runner:    runner,
		stream:    stream,
		log:       log,
		heartbeat: 15 * time.Second,
	}
}

// Router builds the chi router with all endpoints mounted.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/", s.handleRoot)
	r.Post("/analyze", s.handleAnalyze)
	r.Get("/analyze/stream", s.handleStream)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"service": "tradingagents",
		"version": Version,
		"endpoints": []string{
			"GET /health",
			"POST /analyze",
			"GET /analyze/stream?ticker=",
			"GET /metrics",
		},
	})
}

// analyzeRequest is the POST /analyze body.
type analyzeRequest struct {
	Ticker       string `json:"ticker"`
	AnalysisDate string `json:"analysis_date,omitempty"`
}

// analyzeResponse mirrors the blackboard's outward-facing fields.
// Application-level failures ride in Error with HTTP 200.
type analyzeResponse struct {
	Ticker             string `json:"ticker"`
	AnalysisDate       string `json:"analysis_date"`
	MarketReport       string `json:"market_report"`
	SentimentReport    string `json:"sentiment_report"`
	NewsReport         string `json:"news_report"`
	FundamentalsReport string `json:"fundamentals_report"`
	FinalTradeDecision string `json:"final_trade_decision"`
	ProcessedSignal    string `json:"processed_signal"`
	Error              string `json:"error,omitempty"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	ticker := strings.ToUpper(strings.TrimSpace(req.Ticker))
	if ticker == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "ticker is required"})
		return
	}

	runID := uuid.NewString()
	s.log.Info("analyze request", zap.String("run_id", runID), zap.String("ticker", ticker))

	final, err := s.runner.Run(r.Context(), runID, agents.Blackboard{
		CompanyOfInterest: ticker,
		TradeDate:         req.AnalysisDate,
	})

	resp := analyzeResponse{
		Ticker:             ticker,
		AnalysisDate:       final.TradeDate,
		MarketReport:       final.MarketReport,
		SentimentReport:    final.SentimentReport,
		NewsReport:         final.NewsReport,
		FundamentalsReport: final.FundamentalsReport,
		FinalTradeDecision: final.FinalTradeDecision,
		ProcessedSignal:    agents.ExtractSignal(final.FinalTradeDecision),
	}
	if err != nil {
		s.log.Warn("analysis failed", zap.String("run_id", runID), zap.Error(err))
		resp.Error = err.Error()
		resp.ProcessedSignal = ""
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
