package graph

import (
	"encoding/json"
	"fmt"
)

// Reducer merges a node's sparse delta into the accumulated state and
// returns the result. Reducers must be deterministic; for fields written by
// concurrent fan-out branches they must also be commutative and associative
// so the join result is independent of completion order.
type Reducer[S any] func(prev, delta S) S

// deepCopy creates a deep copy of state S using JSON round-trip serialization.
//
// Fan-out branches each receive an independent snapshot so concurrent nodes
// never share mutable slices or maps. The approach works for any Go type
// that can be JSON-marshaled; unexported fields, channels, and functions
// are not carried over.
func deepCopy[S any](state S) (S, error) {
	var zero S

	data, err := json.Marshal(state)
	if err != nil {
		return zero, fmt.Errorf("failed to marshal state: %w", err)
	}

	var copied S
	if err := json.Unmarshal(data, &copied); err != nil {
		return zero, fmt.Errorf("failed to unmarshal state: %w", err)
	}

	return copied, nil
}
