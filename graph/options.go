package graph

import "time"

// Options configures Engine execution behavior. Zero values fall back to
// the defaults from defaultOptions.
type Options struct {
	// MaxSteps bounds total node executions per run, including fan-out
	// branches. Exceeding it fails the run with MAX_STEPS_EXCEEDED. This is
	// the backstop against runaway loops; 0 disables the cap.
	MaxSteps int

	// MaxConcurrent bounds how many fan-out branches execute at once.
	// 0 or negative runs every branch of a fan-out concurrently.
	MaxConcurrent int

	// DefaultNodeTimeout applies to nodes without a NodePolicy.Timeout.
	// 0 means no per-node timeout.
	DefaultNodeTimeout time.Duration

	// RunWallClockBudget bounds the whole run. 0 means unlimited.
	RunWallClockBudget time.Duration

	// CancelGrace is how long the engine keeps waiting for in-flight
	// fan-out branches after cancellation before abandoning them.
	CancelGrace time.Duration

	// Metrics receives engine gauges and histograms when non-nil.
	Metrics *PrometheusMetrics

	// Cost accumulates LLM spend when non-nil. The engine itself never
	// records calls; nodes fetch the tracker via Engine options.
	Cost *CostTracker
}

func defaultOptions() Options {
	return Options{
		MaxSteps:    200,
		CancelGrace: 5 * time.Second,
	}
}

// Option is a functional option applied at New.
type Option func(*Options)

// WithMaxSteps bounds total node executions per run. Size it from the
// graph: depth times worst-case loop iterations, plus fan-out width.
func WithMaxSteps(n int) Option {
	return func(o *Options) { o.MaxSteps = n }
}

// WithMaxConcurrent bounds concurrent fan-out branch execution. Every
// running branch holds a full deep copy of state, so memory scales with
// this value times state size.
func WithMaxConcurrent(n int) Option {
	return func(o *Options) { o.MaxConcurrent = n }
}

// WithDefaultNodeTimeout sets the timeout for nodes that carry no
// per-node policy. Nodes must honor context cancellation for the timeout
// to take effect.
func WithDefaultNodeTimeout(d time.Duration) Option {
	return func(o *Options) { o.DefaultNodeTimeout = d }
}

// WithRunWallClockBudget caps the entire run. When the budget expires the
// run fails with context.DeadlineExceeded and partial state is discarded.
func WithRunWallClockBudget(d time.Duration) Option {
	return func(o *Options) { o.RunWallClockBudget = d }
}

// WithCancelGrace sets how long in-flight branches may drain after
// cancellation before the engine abandons them.
func WithCancelGrace(d time.Duration) Option {
	return func(o *Options) { o.CancelGrace = d }
}

// WithMetrics enables Prometheus instrumentation of the engine.
func WithMetrics(m *PrometheusMetrics) Option {
	return func(o *Options) { o.Metrics = m }
}

// WithCostTracker attaches an LLM cost tracker to the run options.
func WithCostTracker(t *CostTracker) Option {
	return func(o *Options) { o.Cost = t }
}
