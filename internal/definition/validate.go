package definition

import (
	"fmt"
	"sort"
)

var validStepTypes = map[StepType]struct{}{
	StepAgent:     {},
	StepTool:      {},
	StepWorkflow:  {},
	StepTransform: {},
	StepSuspend:   {},
}

var validConditionTypes = map[ConditionType]struct{}{
	ConditionCompare: {},
	ConditionAnd:     {},
	ConditionOr:      {},
	ConditionNot:     {},
	ConditionExpr:    {},
}

var validOperators = func() map[string]struct{} {
	out := make(map[string]struct{}, len(Operators))
	for _, op := range Operators {
		out[op] = struct{}{}
	}
	return out
}()

var validSources = map[string]struct{}{
	SourceInput: {},
	SourceSteps: {},
	SourceState: {},
}

// Validate normalizes a definition in place and lints it: required fields
// per step kind, known types and operators, and graph references that
// resolve. It never executes anything; the resolver independently enforces
// its own errors at resolution time.
func Validate(wf *Workflow) (*Workflow, error) {
	if wf == nil {
		list := &ErrorList{}
		list.Add(Error{Code: ErrCodeMissingField, Message: "definition is required"})
		return nil, list
	}

	Normalize(wf)
	path := wf.Source
	list := &ErrorList{}

	if wf.ID == "" {
		list.Add(Error{
			Code:    ErrCodeMissingField,
			Message: "id is required",
			Path:    path,
			Field:   "id",
		})
	}

	stepIDs := make([]string, 0, len(wf.Steps))
	for id := range wf.Steps {
		stepIDs = append(stepIDs, id)
	}
	sort.Strings(stepIDs)

	for _, id := range stepIDs {
		step := wf.Steps[id]
		validateStep(id, step, path, list)
	}

	for i, entry := range wf.StepGraph {
		validateGraphEntry(wf, i, entry, path, list)
	}

	if list.Empty() {
		return wf, nil
	}
	return wf, list
}

func validateStep(id string, step Step, path string, list *ErrorList) {
	if step.Type == "" {
		list.Add(Error{
			Code:    ErrCodeMissingField,
			Message: "step type is required",
			Path:    path,
			StepID:  id,
			Field:   "type",
		})
		return
	}
	if _, ok := validStepTypes[step.Type]; !ok {
		list.Add(Error{
			Code:    ErrCodeUnknownType,
			Message: fmt.Sprintf("unknown step type %q", step.Type),
			Path:    path,
			StepID:  id,
			Field:   "type",
		})
		return
	}

	switch step.Type {
	case StepAgent:
		if step.AgentID == "" {
			list.Add(missingFieldError(path, id, "agentId"))
		}
	case StepTool:
		if step.ToolID == "" {
			list.Add(missingFieldError(path, id, "toolId"))
		}
	case StepWorkflow:
		if step.WorkflowID == "" {
			list.Add(missingFieldError(path, id, "workflowId"))
		}
	case StepTransform:
		if len(step.Output) == 0 {
			list.Add(missingFieldError(path, id, "output"))
		}
	}

	for _, field := range []struct {
		name    string
		mapping map[string]Value
	}{
		{"input", step.Input},
		{"output", step.Output},
		{"stateUpdate", step.StateUpdate},
		{"payload", step.Payload},
	} {
		validateMapping(field.name, field.mapping, path, id, list)
	}
}

func missingFieldError(path, stepID, field string) Error {
	return Error{
		Code:    ErrCodeMissingField,
		Message: fmt.Sprintf("%s is required", field),
		Path:    path,
		StepID:  stepID,
		Field:   field,
	}
}

func validateMapping(name string, mapping map[string]Value, path, stepID string, list *ErrorList) {
	keys := make([]string, 0, len(mapping))
	for key := range mapping {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		v := mapping[key]
		if !v.IsRef() {
			continue
		}
		if err := checkRefSource(v.RefPath()); err != "" {
			list.Add(Error{
				Code:    ErrCodeInvalidField,
				Message: err,
				Path:    path,
				StepID:  stepID,
				Field:   fmt.Sprintf("%s.%s", name, key),
			})
		}
	}
}

func checkRefSource(ref string) string {
	source := ref
	for i := 0; i < len(ref); i++ {
		if ref[i] == '.' {
			source = ref[:i]
			break
		}
	}
	if _, ok := validSources[source]; !ok {
		return fmt.Sprintf("reference %q does not start with a known namespace", ref)
	}
	return ""
}

func validateGraphEntry(wf *Workflow, i int, entry GraphEntry, path string, list *ErrorList) {
	index := i + 1
	field := fmt.Sprintf("stepGraph[%d]", i)

	requireStep := func(id, at string) {
		if id == "" {
			list.Add(Error{
				Code:    ErrCodeMissingField,
				Message: "step reference is required",
				Path:    path,
				Field:   at,
				Index:   index,
			})
			return
		}
		if _, ok := wf.Steps[id]; !ok {
			list.Add(Error{
				Code:    ErrCodeMissingStep,
				Message: fmt.Sprintf("step %q is not declared in steps", id),
				Path:    path,
				Field:   at,
				Index:   index,
			})
		}
	}

	switch entry.Type {
	case EntryStep:
		requireStep(entry.Step, field+".step")

	case EntryParallel:
		for j, id := range entry.Steps {
			requireStep(id, fmt.Sprintf("%s.steps[%d]", field, j))
		}

	case EntryConditional:
		if len(entry.Branches) == 0 && entry.Default == "" {
			list.Add(Error{
				Code:    ErrCodeMissingField,
				Message: "conditional entry needs branches or a default",
				Path:    path,
				Field:   field,
				Index:   index,
			})
		}
		for j, branch := range entry.Branches {
			at := fmt.Sprintf("%s.branches[%d]", field, j)
			requireStep(branch.Step, at+".step")
			if branch.When == nil {
				list.Add(Error{
					Code:    ErrCodeMissingField,
					Message: "branch condition is required",
					Path:    path,
					Field:   at + ".when",
					Index:   index,
				})
				continue
			}
			validateCondition(branch.When, at+".when", path, index, list)
		}
		if entry.Default != "" {
			requireStep(entry.Default, field+".default")
		}

	case EntryLoop:
		requireStep(entry.Step, field+".step")
		if entry.LoopType != LoopWhile && entry.LoopType != LoopUntil {
			list.Add(Error{
				Code:    ErrCodeInvalidField,
				Message: fmt.Sprintf("loopType must be %q or %q", LoopWhile, LoopUntil),
				Path:    path,
				Field:   field + ".loopType",
				Index:   index,
			})
		}
		if entry.Condition == nil {
			list.Add(Error{
				Code:    ErrCodeMissingField,
				Message: "loop condition is required",
				Path:    path,
				Field:   field + ".condition",
				Index:   index,
			})
		} else {
			validateCondition(entry.Condition, field+".condition", path, index, list)
		}

	case EntryForeach:
		requireStep(entry.Step, field+".step")
		if entry.Concurrency < 0 {
			list.Add(Error{
				Code:    ErrCodeInvalidField,
				Message: "concurrency cannot be negative",
				Path:    path,
				Field:   field + ".concurrency",
				Index:   index,
			})
		}

	case EntrySleep:
		if entry.Duration <= 0 {
			list.Add(Error{
				Code:    ErrCodeInvalidField,
				Message: "duration must be positive milliseconds",
				Path:    path,
				Field:   field + ".duration",
				Index:   index,
			})
		}

	case EntrySleepUntil:
		if entry.Until == nil {
			list.Add(Error{
				Code:    ErrCodeMissingField,
				Message: "until is required",
				Path:    path,
				Field:   field + ".until",
				Index:   index,
			})
			break
		}
		if entry.Until.IsRef() {
			if err := checkRefSource(entry.Until.RefPath()); err != "" {
				list.Add(Error{
					Code:    ErrCodeInvalidField,
					Message: err,
					Path:    path,
					Field:   field + ".until",
					Index:   index,
				})
			}
			break
		}
		if _, ok := TimeFromLiteral(entry.Until.Payload()); !ok {
			list.Add(Error{
				Code:    ErrCodeInvalidField,
				Message: "until must be an RFC 3339 string, epoch milliseconds, or a reference",
				Path:    path,
				Field:   field + ".until",
				Index:   index,
			})
		}

	case EntryMap:
		// Accepted and ignored.

	case "":
		list.Add(Error{
			Code:    ErrCodeMissingField,
			Message: "entry type is required",
			Path:    path,
			Field:   field + ".type",
			Index:   index,
		})

	default:
		list.Add(Error{
			Code:    ErrCodeUnknownType,
			Message: fmt.Sprintf("unknown graph entry type %q", entry.Type),
			Path:    path,
			Field:   field + ".type",
			Index:   index,
		})
	}
}

func validateCondition(cond *Condition, at, path string, index int, list *ErrorList) {
	if cond == nil {
		return
	}

	switch cond.Type {
	case ConditionCompare:
		if cond.Field == nil {
			list.Add(Error{
				Code:    ErrCodeMissingField,
				Message: "compare condition needs a field",
				Path:    path,
				Field:   at + ".field",
				Index:   index,
			})
		}
		if cond.Operator == "" {
			list.Add(Error{
				Code:    ErrCodeMissingField,
				Message: "compare condition needs an operator",
				Path:    path,
				Field:   at + ".operator",
				Index:   index,
			})
		} else if _, ok := validOperators[cond.Operator]; !ok {
			list.Add(Error{
				Code:    ErrCodeUnknownOperator,
				Message: fmt.Sprintf("unknown operator %q", cond.Operator),
				Path:    path,
				Field:   at + ".operator",
				Index:   index,
			})
		}

	case ConditionAnd, ConditionOr:
		for j, sub := range cond.Conditions {
			validateCondition(sub, fmt.Sprintf("%s.conditions[%d]", at, j), path, index, list)
		}

	case ConditionNot:
		if cond.Condition == nil {
			list.Add(Error{
				Code:    ErrCodeMissingField,
				Message: "not condition needs a nested condition",
				Path:    path,
				Field:   at + ".condition",
				Index:   index,
			})
			return
		}
		validateCondition(cond.Condition, at+".condition", path, index, list)

	case ConditionExpr:
		if cond.Expression == "" {
			list.Add(Error{
				Code:    ErrCodeMissingField,
				Message: "expr condition needs an expression",
				Path:    path,
				Field:   at + ".expression",
				Index:   index,
			})
		}

	case "":
		list.Add(Error{
			Code:    ErrCodeMissingField,
			Message: "condition type is required",
			Path:    path,
			Field:   at + ".type",
			Index:   index,
		})

	default:
		list.Add(Error{
			Code:    ErrCodeUnknownType,
			Message: fmt.Sprintf("unknown condition type %q", cond.Type),
			Path:    path,
			Field:   at + ".type",
			Index:   index,
		})
	}
}
