package graph

import "errors"

// ErrInvalidRetryPolicy indicates a RetryPolicy whose configuration violates
// its constraints (MaxAttempts < 1, or MaxDelay below BaseDelay).
var ErrInvalidRetryPolicy = errors.New("invalid retry policy configuration")

// ErrBackpressureTimeout indicates the execution frontier stayed full longer
// than Options.BackpressureTimeout while a fan-out tried to enqueue work.
// Raise QueueDepth or reduce fan-out width when this occurs.
var ErrBackpressureTimeout = errors.New("frontier queue full beyond backpressure timeout")

// EngineError represents an error from Engine operations.
//
// Codes used by the engine:
//   - DUPLICATE_NODE: a node ID was registered twice
//   - NODE_NOT_FOUND: a route referenced an unregistered node
//   - NO_START_NODE: Run was called before StartAt
//   - NO_ROUTE: a node finished without explicit routing and no edge matched
//   - MAX_STEPS_EXCEEDED: the step budget ran out before completion
//   - NODE_TIMEOUT: a node exceeded its configured timeout
//   - BACKPRESSURE_TIMEOUT: the frontier queue stayed full too long
//   - STATE_COPY_FAILED: a fan-out snapshot could not be serialized
type EngineError struct {
	Message string
	Code    string
}

func (e *EngineError) Error() string {
	if e.Code != "" {
		return e.Code + ": " + e.Message
	}
	return e.Message
}
