// Package emit is the structured event abstraction for graph runs. The
// engine emits one Event per node lifecycle transition; emitters route
// them to logs, buffers, traces, or live subscribers such as the SSE layer.
package emit

// Event is one observability record from a run.
type Event struct {
	// RunID identifies the run that produced the event.
	RunID string

	// Step is the engine step counter at emission time. Zero for
	// run-level events emitted before the first node.
	Step int

	// NodeID names the node the event concerns; empty for run-level
	// events.
	NodeID string

	// Msg is the event kind. The engine emits node_start, node_end,
	// node_error, fanout_start, fanout_merged, and run_complete; domain
	// nodes add their own kinds (report, agent_status, reasoning, ...).
	Msg string

	// Meta carries event-specific fields: duration_ms, error, targets,
	// section, content.
	Meta map[string]interface{}
}
