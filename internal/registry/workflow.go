package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/weftlabs/weft/internal/workflow"
)

// WorkflowSource looks up an already-resolved workflow by id.
type WorkflowSource interface {
	Workflow(ctx context.Context, id string) (*workflow.Workflow, bool, error)
}

// WorkflowRegistry is a static in-memory registry of resolved workflows,
// the first tier of nested-workflow lookup.
type WorkflowRegistry struct {
	mu        sync.RWMutex
	workflows map[string]*workflow.Workflow
}

// NewWorkflowRegistry returns an empty registry.
func NewWorkflowRegistry() *WorkflowRegistry {
	return &WorkflowRegistry{workflows: make(map[string]*workflow.Workflow)}
}

// Register adds a workflow. Duplicate ids are rejected.
func (r *WorkflowRegistry) Register(w *workflow.Workflow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := w.ID()
	if _, exists := r.workflows[id]; exists {
		return fmt.Errorf("workflow already registered: %s", id)
	}
	r.workflows[id] = w
	return nil
}

// MustRegister is Register that panics on error, for wiring at startup.
func (r *WorkflowRegistry) MustRegister(w *workflow.Workflow) {
	if err := r.Register(w); err != nil {
		panic(err)
	}
}

// Get returns the workflow with the given id.
func (r *WorkflowRegistry) Get(id string) (*workflow.Workflow, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.workflows[id]
	return w, ok
}

// List returns all registered workflows sorted by id.
func (r *WorkflowRegistry) List() []*workflow.Workflow {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*workflow.Workflow, 0, len(r.workflows))
	for _, w := range r.workflows {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Workflow implements WorkflowSource.
func (r *WorkflowRegistry) Workflow(_ context.Context, id string) (*workflow.Workflow, bool, error) {
	w, ok := r.Get(id)
	return w, ok, nil
}
