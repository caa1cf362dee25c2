package tool

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/dshills/tradingagents-go/graph/model"
)

// Executor defaults.
const (
	DefaultCallTimeout   = 15 * time.Second
	DefaultMaxConcurrent = 4
)

// Low-quality markers. A result containing any of these is flagged so the
// aggregator can discount the report built from it.
var errorPhrases = []string{
	"currently unavailable",
	"error fetching",
	"failed to fetch",
	"unable to retrieve",
	"no data",
	"rate limit",
}

// ToolResult is the outcome of one tool call. Failures never surface as
// Go errors; they become fallback content plus an Err string so the
// conversation can continue.
type ToolResult struct {
	// Content is the text handed back to the model.
	Content string

	// ToolCallID echoes the call this result answers.
	ToolCallID string

	// Err holds the failure description, empty on success.
	Err string

	// LowQuality marks empty, tiny, or error-bearing content.
	LowQuality bool
}

// Executor runs tool calls against a Registry: parallel dispatch under a
// bounded semaphore, a per-call timeout, and graceful fallbacks in place
// of errors.
type Executor struct {
	registry      *Registry
	callTimeout   time.Duration
	maxConcurrent int64
	log           *zap.Logger
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithCallTimeout overrides the per-call timeout.
func WithCallTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) { e.callTimeout = d }
}

// WithMaxConcurrent bounds parallel tool calls.
func WithMaxConcurrent(n int) ExecutorOption {
	return func(e *Executor) {
		if n > 0 {
			e.maxConcurrent = int64(n)
		}
	}
}

// WithLogger sets the executor's logger.
func WithLogger(log *zap.Logger) ExecutorOption {
	return func(e *Executor) {
		if log != nil {
			e.log = log
		}
	}
}

// NewExecutor creates an Executor over the registry.
func NewExecutor(registry *Registry, options ...ExecutorOption) *Executor {
	e := &Executor{
		registry:      registry,
		callTimeout:   DefaultCallTimeout,
		maxConcurrent: DefaultMaxConcurrent,
		log:           zap.NewNop(),
	}
	for _, opt := range options {
		opt(e)
	}
	return e
}

// Execute runs every call and returns results in call order. It never
// returns an error: unknown tools, timeouts, and tool failures all become
// fallback results.
func (e *Executor) Execute(ctx context.Context, calls []model.ToolCall) []ToolResult {
	results := make([]ToolResult, len(calls))
	sem := semaphore.NewWeighted(e.maxConcurrent)
	var wg sync.WaitGroup

	for i, call := range calls {
		wg.Add(1)
		go func(idx int, call model.ToolCall) {
			defer wg.Done()
			if err := sem.Acquire(ctx, 1); err != nil {
				results[idx] = e.fallback(call, err)
				return
			}
			defer sem.Release(1)
			results[idx] = e.executeOne(ctx, call)
		}(i, call)
	}
	wg.Wait()
	return results
}

func (e *Executor) executeOne(ctx context.Context, call model.ToolCall) ToolResult {
	t, ok := e.registry.Get(call.Name)
	if !ok {
		e.log.Warn("unknown tool requested", zap.String("tool", call.Name))
		return ToolResult{
			Content:    fmt.Sprintf("Error: unknown tool %q.", call.Name),
			ToolCallID: call.ID,
			Err:        fmt.Sprintf("unknown tool %q", call.Name),
			LowQuality: true,
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()

	start := time.Now()
	content, err := t.Call(callCtx, call.Input)
	elapsed := time.Since(start)

	if err != nil {
		e.log.Warn("tool call failed",
			zap.String("tool", call.Name),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		return e.fallback(call, err)
	}

	e.log.Debug("tool call completed",
		zap.String("tool", call.Name),
		zap.Duration("elapsed", elapsed),
		zap.Int("bytes", len(content)))

	return ToolResult{
		Content:    content,
		ToolCallID: call.ID,
		LowQuality: IsLowQuality(content),
	}
}

func (e *Executor) fallback(call model.ToolCall, err error) ToolResult {
	return ToolResult{
		Content:    fmt.Sprintf("The tool %s is currently unavailable. Proceed with the information you have.", call.Name),
		ToolCallID: call.ID,
		Err:        err.Error(),
		LowQuality: true,
	}
}

// IsLowQuality reports whether tool or report content is too thin or
// error-bearing to trust.
func IsLowQuality(content string) bool {
	trimmed := strings.TrimSpace(content)
	if len(trimmed) < 10 {
		return true
	}
	lower := strings.ToLower(trimmed)
	for _, phrase := range errorPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}
