// Package definition holds the stored, JSON-serializable workflow
// definition model: step declarations, the control-flow graph, schema
// documents, and value/condition descriptors. Definitions are plain data;
// binding them to runtime capabilities is the resolver's job.
package definition

// StepType identifies a step declaration's behavior family.
type StepType string

const (
	StepAgent     StepType = "agent"
	StepTool      StepType = "tool"
	StepWorkflow  StepType = "workflow"
	StepTransform StepType = "transform"
	StepSuspend   StepType = "suspend"
)

// Workflow is a complete stored workflow definition.
type Workflow struct {
	ID           string          `json:"id"`
	Description  string          `json:"description,omitempty"`
	InputSchema  map[string]any  `json:"inputSchema,omitempty"`
	OutputSchema map[string]any  `json:"outputSchema,omitempty"`
	StateSchema  map[string]any  `json:"stateSchema,omitempty"`
	Steps        map[string]Step `json:"steps"`
	StepGraph    []GraphEntry    `json:"stepGraph"`
	RetryConfig  *RetryConfig    `json:"retryConfig,omitempty"`

	// Source is the file the definition was loaded from, when loaded
	// from disk. Not part of the stored document.
	Source string `json:"-"`
}

// Step declares one step. Fields beyond Type are populated per step kind;
// unused fields stay zero.
type Step struct {
	Type        StepType `json:"type"`
	Description string   `json:"description,omitempty"`

	// agent
	AgentID          string         `json:"agentId,omitempty"`
	StructuredOutput map[string]any `json:"structuredOutput,omitempty"`

	// tool
	ToolID string `json:"toolId,omitempty"`

	// workflow
	WorkflowID string `json:"workflowId,omitempty"`

	// agent, tool, workflow
	Input map[string]Value `json:"input,omitempty"`

	// transform
	Output       map[string]Value `json:"output,omitempty"`
	OutputSchema map[string]any   `json:"outputSchema,omitempty"`
	StateUpdate  map[string]Value `json:"stateUpdate,omitempty"`

	// suspend
	ResumeSchema map[string]any   `json:"resumeSchema,omitempty"`
	Payload      map[string]Value `json:"payload,omitempty"`
}

// RetryConfig is engine retry policy, carried through resolution untouched.
type RetryConfig struct {
	// Attempts is the maximum number of attempts per step.
	Attempts int `json:"attempts"`

	// Delay is the pause between attempts in milliseconds.
	Delay int64 `json:"delay"`
}
