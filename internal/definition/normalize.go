package definition

import "strings"

// Normalize trims identifier fields and lowercases closed vocabularies
// (step and loop types). Graph entry tags are left verbatim; unrecognized
// tags are the resolver's to log and skip.
func Normalize(wf *Workflow) *Workflow {
	if wf == nil {
		return nil
	}

	wf.ID = strings.TrimSpace(wf.ID)
	wf.Description = strings.TrimSpace(wf.Description)

	for id, step := range wf.Steps {
		step.Type = StepType(strings.ToLower(strings.TrimSpace(string(step.Type))))
		step.AgentID = strings.TrimSpace(step.AgentID)
		step.ToolID = strings.TrimSpace(step.ToolID)
		step.WorkflowID = strings.TrimSpace(step.WorkflowID)
		wf.Steps[id] = step
	}

	for i := range wf.StepGraph {
		entry := &wf.StepGraph[i]
		entry.Step = strings.TrimSpace(entry.Step)
		entry.Steps = normalizeStringSlice(entry.Steps)
		entry.Default = strings.TrimSpace(entry.Default)
		entry.LoopType = LoopType(strings.ToLower(strings.TrimSpace(string(entry.LoopType))))
		for j := range entry.Branches {
			entry.Branches[j].Step = strings.TrimSpace(entry.Branches[j].Step)
		}
	}

	return wf
}

func normalizeStringSlice(items []string) []string {
	if len(items) == 0 {
		return nil
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		trimmed := strings.TrimSpace(item)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}

	if len(out) == 0 {
		return nil
	}
	return out
}
