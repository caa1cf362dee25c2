// Package graph provides a typed dataflow engine: nodes read a state
// snapshot, return a sparse delta, and the engine merges deltas through a
// caller-supplied reducer. Routing supports terminal stops, explicit
// single-target routing, conditional edges, and Send-style fan-out where
// several targets run concurrently on independent snapshots and rejoin
// deterministically.
package graph

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/dshills/tradingagents-go/graph/emit"
)

// Engine executes a workflow graph over shared state of type S.
//
// The engine owns the run's state: nodes receive deep-copied snapshots and
// return deltas, never mutating in place. Fan-out branches each get an
// independent snapshot and merge back in OrderKey order, so a join is
// reproducible regardless of goroutine completion order.
type Engine[S any] struct {
	mu sync.RWMutex

	reducer   Reducer[S]
	nodes     map[string]Node[S]
	edges     []Edge[S]
	policies  map[string]NodePolicy
	startNode string
	emitter   emit.Emitter
	opts      Options
}

// New creates an Engine with the given reducer and emitter. The emitter may
// be nil. Configuration beyond the defaults is applied through functional
// options (WithMaxSteps, WithDefaultNodeTimeout, ...).
func New[S any](reducer Reducer[S], emitter emit.Emitter, options ...Option) *Engine[S] {
	opts := defaultOptions()
	for _, o := range options {
		o(&opts)
	}
	return &Engine[S]{
		reducer:  reducer,
		nodes:    make(map[string]Node[S]),
		policies: make(map[string]NodePolicy),
		emitter:  emitter,
		opts:     opts,
	}
}

// Add registers a node under a unique ID.
func (e *Engine[S]) Add(nodeID string, node Node[S]) error {
	if nodeID == "" {
		return &EngineError{Message: "node ID cannot be empty"}
	}
	if node == nil {
		return &EngineError{Message: "node cannot be nil"}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.nodes[nodeID]; exists {
		return &EngineError{
			Message: "duplicate node ID: " + nodeID,
			Code:    "DUPLICATE_NODE",
		}
	}
	e.nodes[nodeID] = node
	return nil
}

// StartAt sets the entry node for Run. The node must already be registered.
func (e *Engine[S]) StartAt(nodeID string) error {
	if nodeID == "" {
		return &EngineError{Message: "start node ID cannot be empty"}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.nodes[nodeID]; !exists {
		return &EngineError{
			Message: "start node does not exist: " + nodeID,
			Code:    "NODE_NOT_FOUND",
		}
	}
	e.startNode = nodeID
	return nil
}

// Connect adds an edge from one node to another. A nil predicate makes the
// edge unconditional. Edges are evaluated in registration order when a node
// finishes without an explicit route; the first match wins. Explicit routing
// in NodeResult takes precedence over edges.
func (e *Engine[S]) Connect(from, to string, predicate Predicate[S]) error {
	if from == "" {
		return &EngineError{Message: "from node ID cannot be empty"}
	}
	if to == "" {
		return &EngineError{Message: "to node ID cannot be empty"}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.edges = append(e.edges, Edge[S]{From: from, To: to, When: predicate})
	return nil
}

// SetPolicy attaches a per-node execution policy (timeout, retries). The
// policy overrides the engine-wide defaults for that node only.
func (e *Engine[S]) SetPolicy(nodeID string, policy NodePolicy) error {
	if policy.RetryPolicy != nil {
		if err := policy.RetryPolicy.Validate(); err != nil {
			return err
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.nodes[nodeID]; !exists {
		return &EngineError{
			Message: "cannot set policy, node does not exist: " + nodeID,
			Code:    "NODE_NOT_FOUND",
		}
	}
	e.policies[nodeID] = policy
	return nil
}

// Run executes the workflow from the start node until a node returns a
// terminal route, the step budget runs out, or the context is cancelled.
// It returns the final merged state.
func (e *Engine[S]) Run(ctx context.Context, runID string, initial S) (S, error) {
	var zero S

	if e.reducer == nil {
		return zero, &EngineError{Message: "reducer is required", Code: "MISSING_REDUCER"}
	}

	e.mu.RLock()
	start := e.startNode
	e.mu.RUnlock()
	if start == "" {
		return zero, &EngineError{
			Message: "start node not set (call StartAt before Run)",
			Code:    "NO_START_NODE",
		}
	}

	if e.opts.RunWallClockBudget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.RunWallClockBudget)
		defer cancel()
	}

	run := &runState[S]{id: runID}
	state := initial
	current := start

	for {
		if err := run.tick(e.opts.MaxSteps); err != nil {
			return zero, err
		}
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := e.runNode(ctx, run, current, state)
		if err != nil {
			e.emitNodeError(run, current, err)
			return zero, err
		}

		state = e.reducer(state, result.Delta)

		switch {
		case result.Route.Terminal:
			e.emitEvent(run, "", "run_complete", nil)
			return state, nil

		case result.Route.To != "":
			current = result.Route.To

		case len(result.Route.Many) > 0:
			merged, err := e.runFanOut(ctx, run, current, state, result.Route.Many)
			if err != nil {
				return zero, err
			}
			state = merged
			next := e.evaluateEdges(current, state)
			if next == "" {
				// A fan-out with no continuation edge ends the run.
				e.emitEvent(run, "", "run_complete", nil)
				return state, nil
			}
			current = next

		default:
			next := e.evaluateEdges(current, state)
			if next == "" {
				return zero, &EngineError{
					Message: "no valid route from node: " + current,
					Code:    "NO_ROUTE",
				}
			}
			current = next
		}
	}
}

// runState tracks per-run bookkeeping shared between the main loop and
// fan-out branches. The step counter is guarded because branches advance it
// concurrently.
type runState[S any] struct {
	id   string
	mu   sync.Mutex
	step int
}

// tick consumes one step from the run budget.
func (r *runState[S]) tick(maxSteps int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.step++
	if maxSteps > 0 && r.step > maxSteps {
		return &EngineError{
			Message: "workflow exceeded MaxSteps limit",
			Code:    "MAX_STEPS_EXCEEDED",
		}
	}
	return nil
}

func (r *runState[S]) current() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.step
}

// runNode executes a single node with its policy applied: retries with
// exponential backoff for retryable failures, timeout enforcement, metrics,
// and start/end events.
func (e *Engine[S]) runNode(ctx context.Context, run *runState[S], nodeID string, state S) (NodeResult[S], error) {
	var zero NodeResult[S]

	e.mu.RLock()
	node, exists := e.nodes[nodeID]
	policy, hasPolicy := e.policies[nodeID]
	e.mu.RUnlock()

	if !exists {
		return zero, &EngineError{
			Message: "node not found during execution: " + nodeID,
			Code:    "NODE_NOT_FOUND",
		}
	}

	var pol *NodePolicy
	if hasPolicy {
		pol = &policy
	}

	attempts := 1
	if pol != nil && pol.RetryPolicy != nil {
		attempts = pol.RetryPolicy.MaxAttempts
	}

	e.emitEvent(run, nodeID, "node_start", nil)
	if e.opts.Metrics != nil {
		e.opts.Metrics.UpdateInflightNodes(1)
		defer e.opts.Metrics.UpdateInflightNodes(-1)
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := computeBackoff(attempt-1, pol.RetryPolicy.BaseDelay, pol.RetryPolicy.MaxDelay, nil)
			if e.opts.Metrics != nil {
				e.opts.Metrics.IncrementRetries(run.id, nodeID, "node_error")
			}
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(delay):
			}
		}

		started := time.Now()
		result, err := executeNodeWithTimeout(ctx, node, nodeID, state, pol, e.opts.DefaultNodeTimeout)
		elapsed := time.Since(started)

		if err == nil && result.Err != nil {
			err = result.Err
		}

		if e.opts.Metrics != nil {
			status := "ok"
			if err != nil {
				status = "error"
			}
			e.opts.Metrics.RecordStepLatency(run.id, nodeID, elapsed, status)
		}

		if err == nil {
			e.emitEvent(run, nodeID, "node_end", map[string]interface{}{
				"duration_ms": elapsed.Milliseconds(),
			})
			return result, nil
		}

		lastErr = err
		if pol == nil || pol.RetryPolicy == nil || pol.RetryPolicy.Retryable == nil || !pol.RetryPolicy.Retryable(err) {
			break
		}
	}

	if _, ok := lastErr.(*EngineError); ok {
		return zero, lastErr
	}
	return zero, &NodeError{
		Message: "node execution failed: " + lastErr.Error(),
		Code:    "NODE_FAILED",
		NodeID:  nodeID,
		Cause:   lastErr,
	}
}

// branchResult carries one fan-out branch's accumulated deltas back to the
// join. Deltas are kept in branch program order; branches sort by OrderKey.
type branchResult[S any] struct {
	orderKey uint64
	deltas   []S
	err      error
}

// runFanOut executes the Send targets concurrently, each on a deep-copied
// snapshot of the parent state, and merges every branch delta back into the
// parent in ascending OrderKey order. Within a branch a chain of To-routed
// nodes runs sequentially, each seeing the branch's own accumulated state;
// Terminal marks the branch done. Nested fan-out inside a branch is not
// supported.
func (e *Engine[S]) runFanOut(ctx context.Context, run *runState[S], parent string, state S, targets []string) (S, error) {
	var zero S

	e.emitEvent(run, parent, "fanout_start", map[string]interface{}{
		"targets": targets,
	})

	frontier := NewFrontier[S](len(targets))
	for i, target := range targets {
		snapshot, err := deepCopy(state)
		if err != nil {
			return zero, &EngineError{
				Message: "fan-out snapshot failed: " + err.Error(),
				Code:    "STATE_COPY_FAILED",
			}
		}
		item := WorkItem[S]{
			StepID:       run.current(),
			OrderKey:     ComputeOrderKey(parent, i),
			NodeID:       target,
			State:        snapshot,
			ParentNodeID: parent,
			EdgeIndex:    i,
		}
		if err := frontier.Enqueue(ctx, item); err != nil {
			return zero, err
		}
	}

	workers := e.opts.MaxConcurrent
	if workers <= 0 || workers > len(targets) {
		workers = len(targets)
	}

	branchCtx, cancelBranches := context.WithCancel(ctx)
	defer cancelBranches()

	results := make([]branchResult[S], 0, len(targets))
	var resultsMu sync.Mutex
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				item, err := frontier.Dequeue(branchCtx)
				if err != nil {
					return
				}
				if e.opts.Metrics != nil {
					e.opts.Metrics.UpdateQueueDepth(frontier.Len())
				}
				res := e.runBranch(branchCtx, run, item)
				resultsMu.Lock()
				results = append(results, res)
				done := len(results) == len(targets)
				resultsMu.Unlock()
				if res.err != nil || done {
					cancelBranches()
					return
				}
			}
		}()
	}

	if !e.waitWithGrace(ctx, &wg) {
		return zero, ctx.Err()
	}

	if err := ctx.Err(); err != nil {
		return zero, err
	}

	sort.Slice(results, func(i, j int) bool { return results[i].orderKey < results[j].orderKey })

	// Prefer a root-cause branch error over the cancellations it cascaded
	// onto sibling branches.
	var branchErr error
	for _, res := range results {
		if res.err == nil {
			continue
		}
		if branchErr == nil || errors.Is(branchErr, context.Canceled) {
			branchErr = res.err
		}
	}
	if branchErr != nil {
		e.emitNodeError(run, parent, branchErr)
		return zero, branchErr
	}

	merged := state
	for _, res := range results {
		for _, delta := range res.deltas {
			merged = e.reducer(merged, delta)
		}
	}

	e.emitEvent(run, parent, "fanout_merged", map[string]interface{}{
		"branches": len(results),
	})
	return merged, nil
}

// runBranch runs one fan-out branch to completion: the target node followed
// by any To-routed successors, all on the branch's private state copy.
func (e *Engine[S]) runBranch(ctx context.Context, run *runState[S], item WorkItem[S]) branchResult[S] {
	res := branchResult[S]{orderKey: item.OrderKey}
	local := item.State
	current := item.NodeID

	for {
		if err := run.tick(e.opts.MaxSteps); err != nil {
			res.err = err
			return res
		}
		if err := ctx.Err(); err != nil {
			res.err = err
			return res
		}

		result, err := e.runNode(ctx, run, current, local)
		if err != nil {
			res.err = err
			return res
		}

		res.deltas = append(res.deltas, result.Delta)
		local = e.reducer(local, result.Delta)

		switch {
		case result.Route.Terminal:
			return res
		case result.Route.To != "":
			current = result.Route.To
		case len(result.Route.Many) > 0:
			res.err = &EngineError{
				Message: "nested fan-out inside branch at node: " + current,
				Code:    "NESTED_FANOUT",
			}
			return res
		default:
			next := e.evaluateEdges(current, local)
			if next == "" {
				// No continuation: the branch is complete.
				return res
			}
			current = next
		}
	}
}

// waitWithGrace waits for in-flight branches. Once the run context is
// cancelled, it keeps waiting only for the configured grace period before
// abandoning the branches. Returns false when the grace period expired with
// work still in flight.
func (e *Engine[S]) waitWithGrace(ctx context.Context, wg *sync.WaitGroup) bool {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-ctx.Done():
	}

	grace := e.opts.CancelGrace
	if grace <= 0 {
		grace = 5 * time.Second
	}
	select {
	case <-done:
		return true
	case <-time.After(grace):
		return false
	}
}

// evaluateEdges finds the first edge from the node whose predicate accepts
// the state. Nil predicates always match. Returns "" when nothing matches.
func (e *Engine[S]) evaluateEdges(fromNode string, state S) string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, edge := range e.edges {
		if edge.From != fromNode {
			continue
		}
		if edge.When == nil || edge.When(state) {
			return edge.To
		}
	}
	return ""
}

func (e *Engine[S]) emitEvent(run *runState[S], nodeID, msg string, meta map[string]interface{}) {
	if e.emitter == nil {
		return
	}
	e.emitter.Emit(emit.Event{
		RunID:  run.id,
		Step:   run.current(),
		NodeID: nodeID,
		Msg:    msg,
		Meta:   meta,
	})
}

func (e *Engine[S]) emitNodeError(run *runState[S], nodeID string, err error) {
	if e.emitter == nil {
		return
	}
	e.emitter.Emit(emit.Event{
		RunID:  run.id,
		Step:   run.current(),
		NodeID: nodeID,
		Msg:    "node_error",
		Meta:   map[string]interface{}{"error": err.Error()},
	})
}
