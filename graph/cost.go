package graph

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrUnknownModel is returned when a recorded call names a model with no
// pricing entry. Register custom pricing via SetPricing before recording.
var ErrUnknownModel = errors.New("unknown model: no pricing entry")

// ModelPricing holds per-million-token prices for one model.
type ModelPricing struct {
	InputPer1M  float64
	OutputPer1M float64
}

// defaultModelPricing covers the models the providers in graph/model ship
// with. Prices are USD per million tokens and drift over time; override
// with SetPricing when accuracy matters.
var defaultModelPricing = map[string]ModelPricing{
	"gpt-4o":                   {InputPer1M: 2.50, OutputPer1M: 10.00},
	"gpt-4o-mini":              {InputPer1M: 0.15, OutputPer1M: 0.60},
	"gpt-4-turbo":              {InputPer1M: 10.00, OutputPer1M: 30.00},
	"gpt-3.5-turbo":            {InputPer1M: 0.50, OutputPer1M: 1.50},
	"claude-3-5-sonnet-latest": {InputPer1M: 3.00, OutputPer1M: 15.00},
	"claude-3-5-haiku-latest":  {InputPer1M: 0.80, OutputPer1M: 4.00},
	"claude-3-opus-latest":     {InputPer1M: 15.00, OutputPer1M: 75.00},
	"gemini-1.5-pro":           {InputPer1M: 1.25, OutputPer1M: 5.00},
	"gemini-1.5-flash":         {InputPer1M: 0.075, OutputPer1M: 0.30},
}

// LLMCall records one model invocation for attribution.
type LLMCall struct {
	Model        string
	InputTokens  int
	OutputTokens int
	CostUSD      float64
	NodeID       string
	Timestamp    time.Time
}

// CostTracker accumulates LLM spend for a single run. Safe for concurrent
// use; analyst branches record calls in parallel.
type CostTracker struct {
	mu sync.RWMutex

	runID     string
	pricing   map[string]ModelPricing
	calls     []LLMCall
	total     float64
	byModel   map[string]float64
	inTokens  int64
	outTokens int64
}

// NewCostTracker creates a tracker with the default pricing table.
func NewCostTracker(runID string) *CostTracker {
	pricing := make(map[string]ModelPricing, len(defaultModelPricing))
	for k, v := range defaultModelPricing {
		pricing[k] = v
	}
	return &CostTracker{
		runID:   runID,
		pricing: pricing,
		byModel: make(map[string]float64),
	}
}

// SetPricing adds or overrides the pricing entry for a model.
func (ct *CostTracker) SetPricing(model string, p ModelPricing) {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	ct.pricing[model] = p
}

// RecordCall records one model invocation and accumulates its cost.
// Unknown models still count tokens but return ErrUnknownModel so the
// caller can log the gap.
func (ct *CostTracker) RecordCall(model string, inputTokens, outputTokens int, nodeID string) error {
	ct.mu.Lock()
	defer ct.mu.Unlock()

	ct.inTokens += int64(inputTokens)
	ct.outTokens += int64(outputTokens)

	pricing, ok := ct.pricing[model]
	if !ok {
		ct.calls = append(ct.calls, LLMCall{
			Model:        model,
			InputTokens:  inputTokens,
			OutputTokens: outputTokens,
			NodeID:       nodeID,
			Timestamp:    time.Now(),
		})
		return fmt.Errorf("%w: %s", ErrUnknownModel, model)
	}

	cost := float64(inputTokens)*pricing.InputPer1M/1e6 + float64(outputTokens)*pricing.OutputPer1M/1e6
	ct.total += cost
	ct.byModel[model] += cost
	ct.calls = append(ct.calls, LLMCall{
		Model:        model,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		CostUSD:      cost,
		NodeID:       nodeID,
		Timestamp:    time.Now(),
	})
	return nil
}

// TotalCost returns the accumulated USD cost.
func (ct *CostTracker) TotalCost() float64 {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	return ct.total
}

// CostByModel returns a copy of the per-model cost breakdown.
func (ct *CostTracker) CostByModel() map[string]float64 {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	out := make(map[string]float64, len(ct.byModel))
	for k, v := range ct.byModel {
		out[k] = v
	}
	return out
}

// TokenUsage returns total input and output tokens across all calls.
func (ct *CostTracker) TokenUsage() (inputTokens, outputTokens int64) {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	return ct.inTokens, ct.outTokens
}

// Calls returns a copy of the recorded call history.
func (ct *CostTracker) Calls() []LLMCall {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	out := make([]LLMCall, len(ct.calls))
	copy(out, ct.calls)
	return out
}

// String summarizes the tracker for logs.
func (ct *CostTracker) String() string {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	return fmt.Sprintf("run=%s cost=$%.4f tokens_in=%d tokens_out=%d calls=%d",
		ct.runID, ct.total, ct.inTokens, ct.outTokens, len(ct.calls))
}
