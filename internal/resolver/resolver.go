// Package resolver turns stored workflow definitions into executable
// workflows: it compiles definition schemas, binds every step
// declaration to runtime capabilities (agents, tools, nested
// workflows), and assembles the declarative step graph into a sealed
// control-flow graph, detecting cycles across recursively nested
// definitions.
package resolver

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/weftlabs/weft/internal/definition"
	"github.com/weftlabs/weft/internal/integration"
	"github.com/weftlabs/weft/internal/logging"
	"github.com/weftlabs/weft/internal/registry"
	"github.com/weftlabs/weft/internal/schema"
	"github.com/weftlabs/weft/internal/workflow"
)

// DefinitionSource supplies stored workflow definitions for nested
// resolution. The boolean reports whether the id was found.
type DefinitionSource interface {
	Definition(ctx context.Context, id string) (*definition.Workflow, bool, error)
}

// DefinitionSourceFunc adapts a lookup function to DefinitionSource.
type DefinitionSourceFunc func(ctx context.Context, id string) (*definition.Workflow, bool, error)

func (f DefinitionSourceFunc) Definition(ctx context.Context, id string) (*definition.Workflow, bool, error) {
	return f(ctx, id)
}

// Options wires a Resolver to its collaborators. Any field may be nil;
// lookups that depend on a nil collaborator simply miss.
type Options struct {
	// Agents is the ordered agent lookup chain, searched first to last.
	// Conventionally the static registry precedes the stored one.
	// Sources that also implement Each(func(registry.Agent) bool) are
	// enumerated by the per-agent tool lookup tier.
	Agents []registry.AgentSource

	// Tools is the global static tool registry, searched by id and then
	// by name.
	Tools *registry.ToolRegistry

	// Workflows supplies already-resolved workflows for nested steps.
	Workflows registry.WorkflowSource

	// Definitions supplies stored definitions for nested steps that miss
	// the Workflows registry; the resolver recurses into them.
	Definitions DefinitionSource

	// Integrations supplies cached integration tools for the final tool
	// lookup tier.
	Integrations integration.Store

	// Dispatcher executes integration tools. Defaults to a fresh
	// dispatcher when Integrations is set.
	Dispatcher *integration.Dispatcher

	// Runner starts nested workflow runs on behalf of workflow steps.
	Runner workflow.Runner
}

// Resolver resolves workflow definitions. A single Resolver is safe for
// concurrent resolutions; in-progress cycle state is carried per call,
// never on the Resolver.
type Resolver struct {
	opts Options
	log  zerolog.Logger
}

// New builds a Resolver over the given collaborators.
func New(opts Options) *Resolver {
	if opts.Dispatcher == nil && opts.Integrations != nil {
		opts.Dispatcher = integration.NewDispatcher(integration.DispatcherConfig{})
	}
	return &Resolver{
		opts: opts,
		log:  logging.Component("resolver"),
	}
}

// Resolve turns one definition into an executable workflow. The
// definition is not mutated; resolving the same definition twice yields
// independent workflows.
func (r *Resolver) Resolve(ctx context.Context, def *definition.Workflow) (*workflow.Workflow, error) {
	return r.resolve(ctx, def, nil)
}

// resolve carries the in-progress definition id chain through nested
// resolution. Each recursion owns its chain copy, so concurrent
// resolutions cannot interfere and entry/exit stays symmetric on every
// path.
func (r *Resolver) resolve(ctx context.Context, def *definition.Workflow, chain []string) (*workflow.Workflow, error) {
	if def == nil {
		return nil, fmt.Errorf("definition is nil")
	}
	for _, id := range chain {
		if id == def.ID {
			return nil, &CycleError{Chain: appendChain(chain, def.ID)}
		}
	}
	chain = appendChain(chain, def.ID)

	r.log.Debug().
		Str("workflow", def.ID).
		Int("steps", len(def.Steps)).
		Int("graph_entries", len(def.StepGraph)).
		Msg("resolving workflow definition")

	w := workflow.New(workflow.Config{
		ID:           def.ID,
		Description:  def.Description,
		InputSchema:  schema.Compile(def.InputSchema),
		OutputSchema: schema.Compile(def.OutputSchema),
		StateSchema:  schema.Compile(def.StateSchema),
		Retry:        def.RetryConfig,
	})

	for _, id := range sortedStepIDs(def.Steps) {
		step, err := r.resolveStep(ctx, id, def.Steps[id], chain)
		if err != nil {
			return nil, fmt.Errorf("step %q: %w", id, err)
		}
		if err := w.AddStep(step); err != nil {
			return nil, err
		}
	}

	for i, entry := range def.StepGraph {
		if err := r.attach(w, entry); err != nil {
			return nil, fmt.Errorf("stepGraph[%d]: %w", i, err)
		}
	}

	return w.Commit(), nil
}

// ResolveStep resolves a single step declaration outside a full
// definition, dispatching on its type tag. Nested workflow steps
// resolve against an empty cycle chain.
func (r *Resolver) ResolveStep(ctx context.Context, id string, def definition.Step) (*workflow.Step, error) {
	return r.resolveStep(ctx, id, def, nil)
}

func (r *Resolver) resolveStep(ctx context.Context, id string, def definition.Step, chain []string) (*workflow.Step, error) {
	switch def.Type {
	case definition.StepAgent:
		return r.resolveAgentStep(id, def)
	case definition.StepTool:
		return r.resolveToolStep(id, def)
	case definition.StepWorkflow:
		return r.resolveWorkflowStep(ctx, id, def, chain)
	case definition.StepTransform:
		return r.resolveTransformStep(id, def)
	case definition.StepSuspend:
		return r.resolveSuspendStep(id, def)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStepType, def.Type)
	}
}

func sortedStepIDs(steps map[string]definition.Step) []string {
	ids := make([]string, 0, len(steps))
	for id := range steps {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// appendChain copies before appending so sibling recursions never share
// a backing array.
func appendChain(chain []string, id string) []string {
	out := make([]string, 0, len(chain)+1)
	out = append(out, chain...)
	return append(out, id)
}
