// Package registry defines the capability interfaces resolved steps are
// bound against (agents, tools, nested workflows) and in-memory
// registries for static registration. Persisted lookups implement the
// same source interfaces from the store layer.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// GenerateRequest is one agent invocation.
type GenerateRequest struct {
	// Prompt is the resolved user prompt.
	Prompt string

	// Instructions optionally override the agent's own instructions.
	Instructions string

	// OutputSchema, when non-nil, asks the agent for structured output
	// conforming to the document.
	OutputSchema map[string]any

	// Runtime carries engine-scoped values passed through unchanged.
	Runtime map[string]any
}

// GenerateResult is an agent's reply.
type GenerateResult struct {
	// Text is the plain-text reply.
	Text string

	// Object is the structured output, set only when the request carried
	// an output schema and the agent produced one.
	Object any
}

// Agent is an invocable agent.
type Agent interface {
	// ID returns the agent's unique id.
	ID() string

	// Generate runs one invocation.
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error)

	// Tools returns the agent's own tool set keyed by tool key. May be
	// nil.
	Tools() map[string]Tool
}

// AgentSource looks up an agent by id. The boolean reports whether the
// id was found; the error reports lookup infrastructure failures.
type AgentSource interface {
	Agent(ctx context.Context, id string) (Agent, bool, error)
}

// AgentRegistry is a static in-memory agent registry.
type AgentRegistry struct {
	mu     sync.RWMutex
	agents map[string]Agent
}

// NewAgentRegistry returns an empty registry.
func NewAgentRegistry() *AgentRegistry {
	return &AgentRegistry{agents: make(map[string]Agent)}
}

// Register adds an agent. Duplicate ids are rejected.
func (r *AgentRegistry) Register(a Agent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := a.ID()
	if _, exists := r.agents[id]; exists {
		return fmt.Errorf("agent already registered: %s", id)
	}
	r.agents[id] = a
	return nil
}

// MustRegister is Register that panics on error, for wiring at startup.
func (r *AgentRegistry) MustRegister(a Agent) {
	if err := r.Register(a); err != nil {
		panic(err)
	}
}

// Get returns the agent with the given id.
func (r *AgentRegistry) Get(id string) (Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[id]
	return a, ok
}

// List returns all registered agents sorted by id.
func (r *AgentRegistry) List() []Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Agent, 0, len(r.agents))
	for _, a := range r.agents {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Each calls fn for every registered agent in id order until fn returns
// false.
func (r *AgentRegistry) Each(fn func(Agent) bool) {
	for _, a := range r.List() {
		if !fn(a) {
			return
		}
	}
}

// Agent implements AgentSource.
func (r *AgentRegistry) Agent(_ context.Context, id string) (Agent, bool, error) {
	a, ok := r.Get(id)
	return a, ok, nil
}

// FuncAgent adapts plain functions into an Agent, mainly for tests and
// embedding.
type FuncAgent struct {
	AgentID    string
	GenerateFn func(ctx context.Context, req GenerateRequest) (*GenerateResult, error)
	ToolSet    map[string]Tool
}

func (a *FuncAgent) ID() string { return a.AgentID }

func (a *FuncAgent) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	if a.GenerateFn == nil {
		return &GenerateResult{}, nil
	}
	return a.GenerateFn(ctx, req)
}

func (a *FuncAgent) Tools() map[string]Tool { return a.ToolSet }
