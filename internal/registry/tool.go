package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Tool is an invocable tool.
type Tool interface {
	// ID returns the tool's unique id.
	ID() string

	// Name returns the tool's human-facing name. May equal the id.
	Name() string

	// Description explains what the tool does.
	Description() string

	// InputSchema returns the tool's argument schema document. May be
	// nil.
	InputSchema() map[string]any

	// Execute runs the tool.
	Execute(ctx context.Context, args map[string]any, runtime map[string]any) (any, error)
}

// ToolDefinition is the wire-facing description of a tool.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

// Definition exports a tool's wire-facing description.
func Definition(t Tool) ToolDefinition {
	return ToolDefinition{
		Name:        t.Name(),
		Description: t.Description(),
		InputSchema: t.InputSchema(),
	}
}

// ToolSource looks up a tool by id.
type ToolSource interface {
	Tool(ctx context.Context, id string) (Tool, bool, error)
}

// ToolRegistry is a static in-memory tool registry addressable by id
// and by name.
type ToolRegistry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewToolRegistry returns an empty registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{tools: make(map[string]Tool)}
}

// Register adds a tool. Duplicate ids are rejected.
func (r *ToolRegistry) Register(t Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := t.ID()
	if _, exists := r.tools[id]; exists {
		return fmt.Errorf("tool already registered: %s", id)
	}
	r.tools[id] = t
	return nil
}

// MustRegister is Register that panics on error, for wiring at startup.
func (r *ToolRegistry) MustRegister(t Tool) {
	if err := r.Register(t); err != nil {
		panic(err)
	}
}

// Get returns the tool with the given id.
func (r *ToolRegistry) Get(id string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[id]
	return t, ok
}

// GetByName returns the first tool whose Name matches, in id order.
func (r *ToolRegistry) GetByName(name string) (Tool, bool) {
	for _, t := range r.List() {
		if t.Name() == name {
			return t, true
		}
	}
	return nil, false
}

// List returns all registered tools sorted by id.
func (r *ToolRegistry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Tool implements ToolSource.
func (r *ToolRegistry) Tool(_ context.Context, id string) (Tool, bool, error) {
	t, ok := r.Get(id)
	return t, ok, nil
}

// FuncTool adapts plain functions into a Tool, mainly for tests and
// embedding.
type FuncTool struct {
	ToolID   string
	ToolName string
	Desc     string
	Schema   map[string]any
	Fn       func(ctx context.Context, args map[string]any, runtime map[string]any) (any, error)
}

func (t *FuncTool) ID() string { return t.ToolID }

// Name falls back to the id when no name is set.
func (t *FuncTool) Name() string {
	if t.ToolName != "" {
		return t.ToolName
	}
	return t.ToolID
}

func (t *FuncTool) Description() string { return t.Desc }

func (t *FuncTool) InputSchema() map[string]any { return t.Schema }

func (t *FuncTool) Execute(ctx context.Context, args map[string]any, runtime map[string]any) (any, error) {
	if t.Fn == nil {
		return nil, nil
	}
	return t.Fn(ctx, args, runtime)
}
