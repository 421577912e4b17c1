package workflow

import (
	"context"

	"github.com/weftlabs/weft/internal/eval"
	"github.com/weftlabs/weft/internal/schema"
)

// ExecuteFunc is a step's bound behavior.
type ExecuteFunc func(ctx context.Context, sc *StepContext) (any, error)

// GuardFunc decides whether a branch or loop arm runs.
type GuardFunc func(ctx context.Context, sc *StepContext) (bool, error)

// Step is one executable unit of a resolved workflow.
type Step struct {
	ID          string
	Description string

	// InputSchema and OutputSchema validate the step's boundary values
	// with parse semantics. ResumeSchema is set for suspend steps.
	InputSchema  *schema.Validator
	OutputSchema *schema.Validator
	ResumeSchema *schema.Validator

	Execute ExecuteFunc
}

// StepContext carries the per-invocation capabilities the execution
// engine supplies to steps and guards. Init data and prior step results
// come as lazy accessors; nothing is snapshotted up front.
type StepContext struct {
	// Input returns the workflow's init data.
	Input func() any

	// StepOutput returns a prior step's result by id.
	StepOutput func(id string) (any, bool)

	// State returns the live workflow state.
	State func() map[string]any

	// SetState merges updates into the workflow state.
	SetState func(updates map[string]any) error

	// Resume carries the resume payload delivered to a suspended step,
	// nil otherwise.
	Resume any

	// Suspend pauses the run, handing payload to the outside world.
	Suspend func(ctx context.Context, payload any) error

	// Runtime carries engine-scoped values passed through to agent and
	// tool invocations.
	Runtime map[string]any
}

// EvalContext assembles the evaluation triple from the invocation's
// accessors. Step results stay lazy: they are fetched only when a path
// or expression reads them.
func (sc *StepContext) EvalContext() eval.Context {
	ctx := eval.Context{}
	if sc == nil {
		return ctx
	}
	if sc.Input != nil {
		ctx.Input = sc.Input()
	}
	if sc.StepOutput != nil {
		ctx.Steps = eval.SourceFunc(sc.StepOutput)
	}
	if sc.State != nil {
		ctx.State = sc.State()
	}
	return ctx
}
