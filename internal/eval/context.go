// Package eval implements the read-only evaluation primitives shared by
// step resolution and graph guards: reference resolution over the
// input/steps/state namespaces, value-or-ref evaluation, input mappings,
// and serializable conditions including the sandboxed expression form.
package eval

// StepSource supplies prior step results on demand, keyed by step id.
// Lookups happen only when a path or expression actually reads a step,
// so implementations may be backed by live run state.
type StepSource interface {
	StepOutput(id string) (any, bool)
}

// Context is the read-only triple every evaluation runs against.
type Context struct {
	// Input is the workflow's init data.
	Input any

	// Steps supplies prior step results. May be nil.
	Steps StepSource

	// State is the live workflow state. May be nil.
	State any
}

// MapSource adapts a plain map of step id to step output.
type MapSource map[string]any

func (m MapSource) StepOutput(id string) (any, bool) {
	v, ok := m[id]
	return v, ok
}

// SourceFunc adapts a lookup function to StepSource.
type SourceFunc func(id string) (any, bool)

func (f SourceFunc) StepOutput(id string) (any, bool) { return f(id) }
