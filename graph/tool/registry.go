package tool

import (
	"fmt"
	"sort"
	"sync"

	"github.com/dshills/tradingagents-go/graph/model"
)

// Analyst kinds used for registry allow-lists.
const (
	AnalystMarket       = "market"
	AnalystNews         = "news"
	AnalystSocial       = "social"
	AnalystFundamentals = "fundamentals"
)

// Registry holds named tools and the per-analyst allow-lists that decide
// which tools each analyst may bind. Safe for concurrent use after
// registration.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	allow map[string][]string // analyst kind -> tool names, registration order
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
		allow: make(map[string][]string),
	}
}

// Register adds a tool and allows it for the given analyst kinds. A tool
// registered for no kinds is reachable only by direct Get.
func (r *Registry) Register(t Tool, kinds ...string) error {
	name := t.Name()
	if name == "" {
		return fmt.Errorf("tool has empty name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %q already registered", name)
	}
	r.tools[name] = t
	for _, kind := range kinds {
		r.allow[kind] = append(r.allow[kind], name)
	}
	return nil
}

// Get returns the tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// ForAnalyst returns the tools allowed for the analyst kind, in
// registration order.
func (r *Registry) ForAnalyst(kind string) []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := r.allow[kind]
	out := make([]Tool, 0, len(names))
	for _, name := range names {
		if t, ok := r.tools[name]; ok {
			out = append(out, t)
		}
	}
	return out
}

// Specs returns the ToolSpecs for the analyst kind, ready to hand to a
// ChatModel.
func (r *Registry) Specs(kind string) []model.ToolSpec {
	tools := r.ForAnalyst(kind)
	specs := make([]model.ToolSpec, len(tools))
	for i, t := range tools {
		spec := model.ToolSpec{Name: t.Name(), Description: t.Description()}
		switch impl := t.(type) {
		case *Func:
			spec.Schema = impl.Schema
		case interface{ Schema() map[string]interface{} }:
			spec.Schema = impl.Schema()
		}
		specs[i] = spec
	}
	return specs
}

// Names returns all registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
