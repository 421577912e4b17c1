package cli

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"github.com/weftlabs/weft/internal/definition"
)

func init() {
	rootCmd.AddCommand(inspectCmd)
}

type inspectStep struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	Target string `json:"target,omitempty"`
}

type inspectEntry struct {
	Index  int    `json:"index"`
	Kind   string `json:"kind"`
	Detail string `json:"detail,omitempty"`
}

type inspectResult struct {
	ID          string         `json:"id"`
	Description string         `json:"description,omitempty"`
	Source      string         `json:"source,omitempty"`
	Schemas     map[string]any `json:"schemas"`
	Steps       []inspectStep  `json:"steps"`
	Graph       []inspectEntry `json:"graph"`
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "Summarize a workflow definition file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		wf, err := definition.Load(args[0])
		if err != nil {
			return err
		}
		wf, err = definition.Validate(wf)
		if err != nil {
			return err
		}

		result := buildInspectResult(wf)

		if IsJSONOutput() || IsJSONLOutput() {
			return WriteOutput(os.Stdout, result)
		}

		fmt.Fprintf(os.Stdout, "id:          %s\n", result.ID)
		if result.Description != "" {
			fmt.Fprintf(os.Stdout, "description: %s\n", result.Description)
		}
		fmt.Fprintf(os.Stdout, "schemas:     input=%v output=%v state=%v\n",
			result.Schemas["input"], result.Schemas["output"], result.Schemas["state"])

		fmt.Fprintln(os.Stdout)
		rows := make([][]string, 0, len(result.Steps))
		for _, s := range result.Steps {
			rows = append(rows, []string{s.ID, s.Type, s.Target})
		}
		if err := writeTable(os.Stdout, []string{"STEP", "TYPE", "TARGET"}, rows); err != nil {
			return err
		}

		fmt.Fprintln(os.Stdout)
		rows = rows[:0]
		for _, e := range result.Graph {
			rows = append(rows, []string{fmt.Sprintf("%d", e.Index), e.Kind, e.Detail})
		}
		return writeTable(os.Stdout, []string{"#", "ENTRY", "DETAIL"}, rows)
	},
}

func buildInspectResult(wf *definition.Workflow) inspectResult {
	result := inspectResult{
		ID:          wf.ID,
		Description: wf.Description,
		Source:      wf.Source,
		Schemas: map[string]any{
			"input":  wf.InputSchema != nil,
			"output": wf.OutputSchema != nil,
			"state":  wf.StateSchema != nil,
		},
	}

	ids := make([]string, 0, len(wf.Steps))
	for id := range wf.Steps {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		step := wf.Steps[id]
		target := ""
		switch step.Type {
		case definition.StepAgent:
			target = step.AgentID
		case definition.StepTool:
			target = step.ToolID
		case definition.StepWorkflow:
			target = step.WorkflowID
		}
		result.Steps = append(result.Steps, inspectStep{
			ID:     id,
			Type:   string(step.Type),
			Target: target,
		})
	}

	for i, entry := range wf.StepGraph {
		result.Graph = append(result.Graph, inspectEntry{
			Index:  i,
			Kind:   string(entry.Type),
			Detail: graphEntryDetail(entry),
		})
	}

	return result
}

func graphEntryDetail(entry definition.GraphEntry) string {
	switch entry.Type {
	case definition.EntryStep:
		return entry.Step
	case definition.EntryParallel:
		return fmt.Sprintf("%d steps", len(entry.Steps))
	case definition.EntryConditional:
		detail := fmt.Sprintf("%d branches", len(entry.Branches))
		if entry.Default != "" {
			detail += ", default " + entry.Default
		}
		return detail
	case definition.EntryLoop:
		mode := "while"
		if entry.LoopType == definition.LoopUntil {
			mode = "until"
		}
		return fmt.Sprintf("%s (%s)", entry.Step, mode)
	case definition.EntryForeach:
		return fmt.Sprintf("%s (concurrency %d)", entry.Step, entry.Concurrency)
	case definition.EntrySleep:
		return fmt.Sprintf("%dms", entry.Duration)
	case definition.EntrySleepUntil:
		return "timestamp"
	case definition.EntryMap:
		return ""
	default:
		return "unrecognized"
	}
}
