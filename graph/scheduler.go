package graph

import (
	"container/heap"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"sync"
)

// WorkItem represents a schedulable unit of work during fan-out execution.
// Each WorkItem carries the node to run, the state snapshot it runs on,
// and provenance information used for deterministic ordering.
//
// WorkItems are created when a node routes to multiple targets and are
// queued in the frontier for concurrent execution. The OrderKey ensures
// branch deltas merge in a consistent order even when branches complete
// out of order.
type WorkItem[S any] struct {
	// StepID is the step number at which this work item was spawned.
	StepID int `json:"step_id"`

	// OrderKey is a deterministic sort key computed from the parent node
	// and the branch index. Merges happen in ascending OrderKey order.
	OrderKey uint64 `json:"order_key"`

	// NodeID identifies the node to execute for this work item.
	NodeID string `json:"node_id"`

	// State is the snapshot of state for this work item's execution.
	State S `json:"state"`

	// Attempt is the retry counter (0 for first execution, 1+ for retries).
	Attempt int `json:"attempt"`

	// ParentNodeID is the node that spawned this work item.
	ParentNodeID string `json:"parent_node_id"`

	// EdgeIndex is the branch index within the parent's fan-out.
	EdgeIndex int `json:"edge_index"`
}

// ComputeOrderKey generates a deterministic sort key from the parent node ID
// and branch index:
//  1. Hash parentNodeID + edgeIndex (as 4-byte big-endian) with SHA-256
//  2. Interpret the first 8 bytes of the digest as a big-endian uint64
//
// Same inputs always produce the same key, keys sort totally, and the
// parent context keeps sibling fan-outs from colliding. This is what makes
// concurrent joins reproducible: deltas merge by key order, not by
// completion order.
func ComputeOrderKey(parentNodeID string, edgeIndex int) uint64 {
	h := sha256.New()
	h.Write([]byte(parentNodeID))

	edgeBytes := make([]byte, 4)
	binary.BigEndian.PutUint32(edgeBytes, uint32(edgeIndex))
	h.Write(edgeBytes)

	return binary.BigEndian.Uint64(h.Sum(nil)[:8])
}

// workHeap implements heap.Interface for priority queue ordering by OrderKey.
type workHeap[S any] []WorkItem[S]

func (h workHeap[S]) Len() int { return len(h) }

func (h workHeap[S]) Less(i, j int) bool {
	// Min-heap: smaller OrderKey has higher priority
	return h[i].OrderKey < h[j].OrderKey
}

func (h workHeap[S]) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
}

func (h *workHeap[S]) Push(x any) {
	*h = append(*h, x.(WorkItem[S]))
}

func (h *workHeap[S]) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[0 : n-1]
	return item
}

// Frontier manages the work queue for fan-out execution with bounded
// capacity and deterministic ordering. It combines a priority queue (heap)
// for OrderKey ordering with a buffered channel for bounded depth and
// backpressure.
//
// The bounded channel provides backpressure: when the queue is full,
// Enqueue blocks until capacity becomes available or the context is
// cancelled. This prevents unbounded memory growth when fan-outs are wider
// than the system can absorb.
//
// All methods are safe for concurrent use by multiple goroutines.
type Frontier[S any] struct {
	heap     workHeap[S]
	queue    chan WorkItem[S]
	capacity int
	mu       sync.Mutex
}

// NewFrontier creates a Frontier with the specified capacity.
func NewFrontier[S any](capacity int) *Frontier[S] {
	f := &Frontier[S]{
		heap:     make(workHeap[S], 0),
		queue:    make(chan WorkItem[S], capacity),
		capacity: capacity,
	}
	heap.Init(&f.heap)
	return f
}

// Enqueue adds a work item to the frontier. The item is first added to the
// internal heap (sorted by OrderKey), then sent to the buffered channel.
//
// If the channel is full, this method blocks until space becomes available
// or the context is cancelled. Callers bound the wait with a context
// deadline to implement backpressure timeouts.
func (f *Frontier[S]) Enqueue(ctx context.Context, item WorkItem[S]) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	f.mu.Lock()
	heap.Push(&f.heap, item)
	f.mu.Unlock()

	select {
	case <-ctx.Done():
		// Roll the heap entry back so Len stays consistent with the queue.
		f.mu.Lock()
		for i := range f.heap {
			if f.heap[i].OrderKey == item.OrderKey && f.heap[i].NodeID == item.NodeID {
				heap.Remove(&f.heap, i)
				break
			}
		}
		f.mu.Unlock()
		return ctx.Err()
	case f.queue <- item:
		return nil
	}
}

// Dequeue retrieves the work item with the smallest OrderKey currently in
// the frontier. It blocks until an item is available or the context is
// cancelled.
func (f *Frontier[S]) Dequeue(ctx context.Context) (WorkItem[S], error) {
	var zero WorkItem[S]

	if ctx.Err() != nil {
		return zero, ctx.Err()
	}

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-f.queue:
		f.mu.Lock()
		defer f.mu.Unlock()

		if f.heap.Len() == 0 {
			return zero, context.Canceled
		}
		return heap.Pop(&f.heap).(WorkItem[S]), nil
	}
}

// Len returns the current number of work items in the frontier.
func (f *Frontier[S]) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.heap.Len()
}
