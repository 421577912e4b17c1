package workflow

import "context"

// RunStatus is a run's terminal (or current) status.
type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunSuccess   RunStatus = "success"
	RunFailed    RunStatus = "failed"
	RunSuspended RunStatus = "suspended"
)

// StepResult is one step's outcome within a run.
type StepResult struct {
	Status RunStatus `json:"status"`
	Output any       `json:"output,omitempty"`
	Error  string    `json:"error,omitempty"`
}

// RunResult reports a workflow run to its caller.
type RunResult struct {
	Status RunStatus
	Result any
	Err    error

	// Steps holds per-step results, keyed by step id. Nested workflow
	// steps surface this map when the nested run ends neither succeeded
	// nor failed.
	Steps map[string]StepResult
}

// Runner starts workflow runs. The execution engine implements it; the
// resolver consumes it to let workflow steps run nested workflows.
type Runner interface {
	Run(ctx context.Context, wf *Workflow, input any) (*RunResult, error)
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, wf *Workflow, input any) (*RunResult, error)

func (f RunnerFunc) Run(ctx context.Context, wf *Workflow, input any) (*RunResult, error) {
	return f(ctx, wf, input)
}
