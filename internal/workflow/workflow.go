// Package workflow defines the executable artifacts resolution produces:
// a sealed control-flow graph of bound steps, plus the invocation-time
// contract (StepContext, guards, runner) between steps and the external
// execution engine. The engine that walks the graph lives outside this
// module.
package workflow

import (
	"errors"
	"fmt"
	"time"

	"github.com/weftlabs/weft/internal/definition"
	"github.com/weftlabs/weft/internal/schema"
)

// ErrSealed is returned by graph mutators after Commit.
var ErrSealed = errors.New("workflow is sealed")

// NodeKind tags a graph node.
type NodeKind string

const (
	NodeStep       NodeKind = "step"
	NodeParallel   NodeKind = "parallel"
	NodeBranch     NodeKind = "branch"
	NodeLoop       NodeKind = "loop"
	NodeForeach    NodeKind = "foreach"
	NodeSleep      NodeKind = "sleep"
	NodeSleepUntil NodeKind = "sleep-until"
)

// GraphNode is one element of the executable control-flow graph. Fields
// beyond Kind are populated per kind.
type GraphNode struct {
	Kind NodeKind

	// step (one), parallel (many), loop and foreach (one)
	Steps []*Step

	// branch
	Branches []Branch

	// loop
	Guard GuardFunc
	Loop  definition.LoopType

	// foreach
	Concurrency int

	// sleep
	Duration time.Duration

	// sleep-until
	Until time.Time
}

// Branch pairs a guard with the step it admits.
type Branch struct {
	When GuardFunc
	Step *Step
}

// Config carries the identity and schemas of a workflow under assembly.
type Config struct {
	ID           string
	Description  string
	InputSchema  *schema.Validator
	OutputSchema *schema.Validator
	StateSchema  *schema.Validator
	Retry        *definition.RetryConfig
}

// Workflow is an executable workflow: registered steps plus an ordered
// control-flow graph. It is mutable until Commit seals it.
type Workflow struct {
	id           string
	description  string
	inputSchema  *schema.Validator
	outputSchema *schema.Validator
	stateSchema  *schema.Validator
	retry        *definition.RetryConfig

	steps  map[string]*Step
	nodes  []GraphNode
	sealed bool
}

// New builds an empty workflow shell. Nil schemas are promoted to
// accept-anything validators.
func New(cfg Config) *Workflow {
	w := &Workflow{
		id:           cfg.ID,
		description:  cfg.Description,
		inputSchema:  cfg.InputSchema,
		outputSchema: cfg.OutputSchema,
		stateSchema:  cfg.StateSchema,
		retry:        cfg.Retry,
		steps:        make(map[string]*Step),
	}
	if w.inputSchema == nil {
		w.inputSchema = schema.Any()
	}
	if w.outputSchema == nil {
		w.outputSchema = schema.Any()
	}
	if w.stateSchema == nil {
		w.stateSchema = schema.Any()
	}
	return w
}

// ID returns the workflow id.
func (w *Workflow) ID() string { return w.id }

// Description returns the workflow description.
func (w *Workflow) Description() string { return w.description }

// InputSchema returns the compiled init-data validator.
func (w *Workflow) InputSchema() *schema.Validator { return w.inputSchema }

// OutputSchema returns the compiled result validator.
func (w *Workflow) OutputSchema() *schema.Validator { return w.outputSchema }

// StateSchema returns the compiled state validator.
func (w *Workflow) StateSchema() *schema.Validator { return w.stateSchema }

// Retry returns the pass-through retry policy, nil when undeclared.
func (w *Workflow) Retry() *definition.RetryConfig { return w.retry }

// Sealed reports whether Commit has run.
func (w *Workflow) Sealed() bool { return w.sealed }

// Step returns a registered step by id.
func (w *Workflow) Step(id string) (*Step, bool) {
	s, ok := w.steps[id]
	return s, ok
}

// Steps returns the registered steps keyed by id. The engine must treat
// the map as read-only.
func (w *Workflow) Steps() map[string]*Step { return w.steps }

// Nodes returns the ordered control-flow graph.
func (w *Workflow) Nodes() []GraphNode { return w.nodes }

// AddStep registers a resolved step for lookup by id.
func (w *Workflow) AddStep(step *Step) error {
	if w.sealed {
		return ErrSealed
	}
	if step == nil || step.ID == "" {
		return errors.New("step needs an id")
	}
	if _, exists := w.steps[step.ID]; exists {
		return fmt.Errorf("step %q already registered", step.ID)
	}
	w.steps[step.ID] = step
	return nil
}

// Then appends a sequential step node.
func (w *Workflow) Then(step *Step) error {
	if w.sealed {
		return ErrSealed
	}
	w.nodes = append(w.nodes, GraphNode{Kind: NodeStep, Steps: []*Step{step}})
	return nil
}

// Parallel appends a concurrent group. An empty group is a no-op.
func (w *Workflow) Parallel(steps []*Step) error {
	if w.sealed {
		return ErrSealed
	}
	if len(steps) == 0 {
		return nil
	}
	w.nodes = append(w.nodes, GraphNode{Kind: NodeParallel, Steps: steps})
	return nil
}

// Branch appends a conditional node; branches keep declaration order. An
// empty branch list is a no-op.
func (w *Workflow) Branch(branches []Branch) error {
	if w.sealed {
		return ErrSealed
	}
	if len(branches) == 0 {
		return nil
	}
	w.nodes = append(w.nodes, GraphNode{Kind: NodeBranch, Branches: branches})
	return nil
}

// DoWhile appends a loop that repeats step while guard holds.
func (w *Workflow) DoWhile(step *Step, guard GuardFunc) error {
	return w.loop(step, guard, definition.LoopWhile)
}

// DoUntil appends a loop that repeats step until guard holds.
func (w *Workflow) DoUntil(step *Step, guard GuardFunc) error {
	return w.loop(step, guard, definition.LoopUntil)
}

func (w *Workflow) loop(step *Step, guard GuardFunc, kind definition.LoopType) error {
	if w.sealed {
		return ErrSealed
	}
	w.nodes = append(w.nodes, GraphNode{
		Kind:  NodeLoop,
		Steps: []*Step{step},
		Guard: guard,
		Loop:  kind,
	})
	return nil
}

// Foreach appends a per-item node. Concurrency below one clamps to
// sequential.
func (w *Workflow) Foreach(step *Step, concurrency int) error {
	if w.sealed {
		return ErrSealed
	}
	if concurrency < 1 {
		concurrency = 1
	}
	w.nodes = append(w.nodes, GraphNode{Kind: NodeForeach, Steps: []*Step{step}, Concurrency: concurrency})
	return nil
}

// Sleep appends a fixed-duration pause.
func (w *Workflow) Sleep(d time.Duration) error {
	if w.sealed {
		return ErrSealed
	}
	w.nodes = append(w.nodes, GraphNode{Kind: NodeSleep, Duration: d})
	return nil
}

// SleepUntil appends a pause lasting until an absolute time.
func (w *Workflow) SleepUntil(at time.Time) error {
	if w.sealed {
		return ErrSealed
	}
	w.nodes = append(w.nodes, GraphNode{Kind: NodeSleepUntil, Until: at})
	return nil
}

// Commit seals the workflow against further graph mutation and returns
// it.
func (w *Workflow) Commit() *Workflow {
	w.sealed = true
	return w
}
