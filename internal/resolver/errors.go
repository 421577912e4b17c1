package resolver

import (
	"errors"
	"strings"
)

// Structural resolution failures. They abort resolution of the
// definition that raised them.
var (
	// ErrUnknownStepType marks a step declaration whose type tag is not
	// a known step kind.
	ErrUnknownStepType = errors.New("unknown step type")

	// ErrStepNotFoundInGraph marks a step graph entry referencing a step
	// id absent from the definition's steps.
	ErrStepNotFoundInGraph = errors.New("step not found in graph")

	// ErrWorkflowNotFound marks a nested workflow id that neither the
	// static registry nor the definition source could supply.
	ErrWorkflowNotFound = errors.New("workflow not found")
)

// Execute-time lookup failures. They fail the invoking step, not the
// resolution that produced it.
var (
	// ErrAgentNotFound marks an agent id missing from every configured
	// agent source.
	ErrAgentNotFound = errors.New("agent not found")

	// ErrToolNotFound marks a tool id that exhausted every lookup tier.
	ErrToolNotFound = errors.New("tool not found")

	// ErrPromptResolutionFailed marks an agent step whose input.prompt
	// resolved to nothing.
	ErrPromptResolutionFailed = errors.New("prompt resolution failed")
)

// CycleError reports a circular nested-definition dependency. Chain
// holds the definition ids in resolution order, ending with the id that
// closed the cycle.
type CycleError struct {
	Chain []string
}

func (e *CycleError) Error() string {
	return "circular definition dependency: " + strings.Join(e.Chain, " -> ")
}
