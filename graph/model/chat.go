// Package model abstracts chat LLM providers behind a single interface so
// graph nodes stay provider-agnostic. Concrete adapters live in the
// openai, anthropic, and google subpackages; Mock covers tests and
// offline runs.
package model

import "context"

// ChatModel is a chat-completion provider. Implementations convert the
// neutral Message/ToolSpec types to their wire format, respect context
// cancellation, and report token usage when the upstream provides it.
type ChatModel interface {
	// Name returns the model identifier, used for cost attribution.
	Name() string

	// Chat sends the conversation and optional tool specs, returning
	// generated text and/or requested tool calls.
	Chat(ctx context.Context, messages []Message, tools []ToolSpec) (ChatOut, error)
}

// Message is one turn in a conversation.
type Message struct {
	// ID uniquely identifies the message for append-merge deduplication.
	// Optional for messages that never enter a message log.
	ID string `json:"id,omitempty"`

	// Role is one of the Role* constants.
	Role string `json:"role"`

	// Content is the message text. Empty for assistant turns that only
	// request tool calls.
	Content string `json:"content"`

	// ToolCalls carries the calls requested by an assistant turn.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ToolCallID links a RoleTool result back to the call it answers.
	ToolCallID string `json:"tool_call_id,omitempty"`
}

// Conversation roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ToolSpec describes a callable tool to the model. Schema is JSON Schema
// for the input object; nil means no parameters.
type ToolSpec struct {
	Name        string
	Description string
	Schema      map[string]interface{}
}

// ToolCall is a model's request to invoke one tool.
type ToolCall struct {
	// ID is the provider-assigned call identifier, echoed back on the
	// corresponding tool result message.
	ID string `json:"id"`

	// Name matches a ToolSpec.Name.
	Name string `json:"name"`

	// Input holds the arguments, already decoded from the provider's
	// JSON encoding.
	Input map[string]interface{} `json:"input,omitempty"`
}

// Usage is the token accounting for one completion. Zero when the
// provider does not report usage.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// ChatOut is the result of one completion.
type ChatOut struct {
	// Text is the generated response; may be empty when the model only
	// requests tools.
	Text string

	// ToolCalls lists the tools the model wants invoked.
	ToolCalls []ToolCall

	// Usage reports token consumption for cost tracking.
	Usage Usage
}
