package model

import (
	"context"
	"sync"
)

// Mock is a scripted ChatModel for tests and offline runs. Responses are
// returned in order; when the script runs out, Fallback (or a canned
// acknowledgement) is returned. Safe for concurrent use.
type Mock struct {
	mu        sync.Mutex
	ModelName string
	Responses []ChatOut
	Fallback  string
	Err       error

	// Fn, when set, overrides the scripted responses entirely.
	Fn func(ctx context.Context, messages []Message, tools []ToolSpec) (ChatOut, error)

	calls [][]Message
	next  int
}

// NewMock creates a Mock that replays the given responses in order.
func NewMock(responses ...ChatOut) *Mock {
	return &Mock{ModelName: "mock", Responses: responses}
}

// Name implements ChatModel.
func (m *Mock) Name() string {
	if m.ModelName == "" {
		return "mock"
	}
	return m.ModelName
}

// Chat implements ChatModel.
func (m *Mock) Chat(ctx context.Context, messages []Message, tools []ToolSpec) (ChatOut, error) {
	if err := ctx.Err(); err != nil {
		return ChatOut{}, err
	}
	if m.Fn != nil {
		return m.Fn(ctx, messages, tools)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, messages)
	if m.Err != nil {
		return ChatOut{}, m.Err
	}
	if m.next < len(m.Responses) {
		out := m.Responses[m.next]
		m.next++
		return out, nil
	}
	text := m.Fallback
	if text == "" {
		text = "mock response"
	}
	return ChatOut{Text: text}, nil
}

// CallCount returns how many times Chat ran against the script.
func (m *Mock) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// LastMessages returns the conversation from the most recent call, or nil.
func (m *Mock) LastMessages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return nil
	}
	return m.calls[len(m.calls)-1]
}
