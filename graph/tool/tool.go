// Package tool provides the tool surface LLM-mode analysts call through:
// a Tool interface, a Registry with per-analyst allow-lists, and an
// Executor that runs requested calls in parallel with timeouts and
// graceful fallbacks.
package tool

import "context"

// Tool is an executable capability an LLM can invoke. Implementations
// validate their arguments, respect context cancellation, and return the
// result as text suitable for a tool-result message.
type Tool interface {
	// Name returns the unique identifier, lowercase with underscores.
	Name() string

	// Description tells the model when to use the tool.
	Description() string

	// Call executes the tool. args may be nil for parameterless tools.
	Call(ctx context.Context, args map[string]interface{}) (string, error)
}

// Func adapts a function into a Tool.
type Func struct {
	ToolName string
	Desc     string
	Schema   map[string]interface{}
	Fn       func(ctx context.Context, args map[string]interface{}) (string, error)
}

// Name implements Tool.
func (f *Func) Name() string { return f.ToolName }

// Description implements Tool.
func (f *Func) Description() string { return f.Desc }

// Call implements Tool.
func (f *Func) Call(ctx context.Context, args map[string]interface{}) (string, error) {
	return f.Fn(ctx, args)
}

// StringArg extracts a required string argument.
func StringArg(args map[string]interface{}, key string) (string, bool) {
	if args == nil {
		return "", false
	}
	s, ok := args[key].(string)
	return s, ok && s != ""
}

// IntArg extracts an integer argument, accepting the float64 that JSON
// decoding produces. Returns def when absent.
func IntArg(args map[string]interface{}, key string, def int) int {
	if args == nil {
		return def
	}
	switch v := args[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return def
	}
}
