package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/weftlabs/weft/internal/definition"
	"github.com/weftlabs/weft/internal/eval"
	"github.com/weftlabs/weft/internal/integration"
	"github.com/weftlabs/weft/internal/registry"
	"github.com/weftlabs/weft/internal/schema"
	"github.com/weftlabs/weft/internal/workflow"
)

// textOutputDoc is the output schema of agent steps without declared
// structured output.
var textOutputDoc = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"text": map[string]any{"type": "string"},
	},
	"required": []any{"text"},
}

// resolveAgentStep binds an agent step. Agent lookup happens at execute
// time so resolution does not depend on registry population order.
func (r *Resolver) resolveAgentStep(id string, def definition.Step) (*workflow.Step, error) {
	agentID := def.AgentID
	input := def.Input
	structured := def.StructuredOutput

	outputSchema := schema.Compile(textOutputDoc)
	if structured != nil {
		outputSchema = schema.Compile(structured)
	}

	execute := func(ctx context.Context, sc *workflow.StepContext) (any, error) {
		agent, err := r.lookupAgent(ctx, agentID)
		if err != nil {
			return nil, err
		}

		ectx := sc.EvalContext()
		prompt, err := resolvePrompt(input, ectx)
		if err != nil {
			return nil, err
		}
		instructions, err := resolveInstructions(input, ectx)
		if err != nil {
			return nil, err
		}

		result, err := agent.Generate(ctx, registry.GenerateRequest{
			Prompt:       prompt,
			Instructions: instructions,
			OutputSchema: structured,
			Runtime:      sc.Runtime,
		})
		if err != nil {
			return nil, err
		}

		if structured != nil && result.Object != nil {
			return result.Object, nil
		}
		return map[string]any{"text": result.Text}, nil
	}

	return &workflow.Step{
		ID:           id,
		Description:  def.Description,
		InputSchema:  schema.Any(),
		OutputSchema: outputSchema,
		Execute:      execute,
	}, nil
}

// lookupAgent walks the ordered agent sources. A miss moves to the next
// source; a source error propagates.
func (r *Resolver) lookupAgent(ctx context.Context, id string) (registry.Agent, error) {
	for _, src := range r.opts.Agents {
		a, ok, err := src.Agent(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("agent %q lookup: %w", id, err)
		}
		if ok {
			return a, nil
		}
	}
	return nil, fmt.Errorf("%w: %q after searching %d registries", ErrAgentNotFound, id, len(r.opts.Agents))
}

// resolvePrompt evaluates input.prompt. A missing key or a nil result
// fails, naming the input keys that were available.
func resolvePrompt(input map[string]definition.Value, ectx eval.Context) (string, error) {
	v, ok := input["prompt"]
	if !ok {
		return "", promptError(input)
	}
	out, err := eval.EvaluateValue(v, ectx)
	if err != nil {
		return "", err
	}
	if out == nil {
		return "", promptError(input)
	}
	return stringify(out), nil
}

func promptError(input map[string]definition.Value) error {
	keys := make([]string, 0, len(input))
	for k := range input {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	available := "none"
	if len(keys) > 0 {
		available = strings.Join(keys, ", ")
	}
	return fmt.Errorf("%w: input.prompt resolved to nothing (available input keys: %s)", ErrPromptResolutionFailed, available)
}

// resolveInstructions evaluates the optional input.instructions. Unlike
// every other mapping slot, a bare string is accepted here.
func resolveInstructions(input map[string]definition.Value, ectx eval.Context) (string, error) {
	v, ok := input["instructions"]
	if !ok {
		return "", nil
	}
	if !v.IsRef() && !v.IsLiteral() {
		if s, ok := v.Payload().(string); ok {
			return s, nil
		}
	}
	out, err := eval.EvaluateValue(v, ectx)
	if err != nil {
		return "", err
	}
	if out == nil {
		return "", nil
	}
	return stringify(out), nil
}

// stringify renders a resolved value as prompt text: strings pass
// through, everything else is JSON-encoded.
func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	if raw, err := json.Marshal(v); err == nil {
		return string(raw)
	}
	return fmt.Sprint(v)
}

// resolveToolStep binds a tool step. Tool lookup runs the ordered
// strategy list at execute time.
func (r *Resolver) resolveToolStep(id string, def definition.Step) (*workflow.Step, error) {
	toolID := def.ToolID
	input := def.Input

	execute := func(ctx context.Context, sc *workflow.StepContext) (any, error) {
		tool, err := r.lookupTool(ctx, toolID)
		if err != nil {
			return nil, err
		}
		args, err := eval.EvaluateMapping(input, sc.EvalContext())
		if err != nil {
			return nil, err
		}
		return tool.Execute(ctx, args, sc.Runtime)
	}

	return &workflow.Step{
		ID:           id,
		Description:  def.Description,
		InputSchema:  schema.Any(),
		OutputSchema: schema.Any(),
		Execute:      execute,
	}, nil
}

// toolStrategy is one tool lookup tier: a name for diagnostics and a
// lookup that reports found/miss.
type toolStrategy struct {
	name string
	fn   func(ctx context.Context, id string) (registry.Tool, bool, error)
}

// agentEnumerator is the optional enumeration surface of an agent
// source, consumed by the per-agent tool tier.
type agentEnumerator interface {
	Each(fn func(registry.Agent) bool)
}

// lookupTool tries each tier in order, swallowing misses. Exhaustion
// fails with ErrToolNotFound naming the tiers tried.
func (r *Resolver) lookupTool(ctx context.Context, id string) (registry.Tool, error) {
	strategies := r.toolStrategies()
	tried := make([]string, 0, len(strategies))
	for _, strat := range strategies {
		tried = append(tried, strat.name)
		tool, ok, err := strat.fn(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("tool %q: %s: %w", id, strat.name, err)
		}
		if ok {
			return tool, nil
		}
	}
	return nil, fmt.Errorf("%w: %q (tried %s)", ErrToolNotFound, id, strings.Join(tried, ", "))
}

func (r *Resolver) toolStrategies() []toolStrategy {
	return []toolStrategy{
		{"global registry by id", func(_ context.Context, id string) (registry.Tool, bool, error) {
			if r.opts.Tools == nil {
				return nil, false, nil
			}
			t, ok := r.opts.Tools.Get(id)
			return t, ok, nil
		}},
		{"global registry by name", func(_ context.Context, id string) (registry.Tool, bool, error) {
			if r.opts.Tools == nil {
				return nil, false, nil
			}
			t, ok := r.opts.Tools.GetByName(id)
			return t, ok, nil
		}},
		{"agent tool sets", func(_ context.Context, id string) (registry.Tool, bool, error) {
			t, ok := r.agentToolLookup(id)
			return t, ok, nil
		}},
		{"integration store", r.integrationLookup},
	}
}

// agentToolLookup scans every enumerable agent source's agents, checking
// each agent's tool set by key and then by tool id.
func (r *Resolver) agentToolLookup(id string) (registry.Tool, bool) {
	var found registry.Tool
	for _, src := range r.opts.Agents {
		en, ok := src.(agentEnumerator)
		if !ok {
			continue
		}
		en.Each(func(a registry.Agent) bool {
			tools := a.Tools()
			if t, ok := tools[id]; ok {
				found = t
				return false
			}
			for _, t := range tools {
				if t.ID() == id {
					found = t
					return false
				}
			}
			return true
		})
		if found != nil {
			return found, true
		}
	}
	return nil, false
}

// integrationLookup is the final tier: ids matching the integration
// grammar are resolved against the integration store and bound to the
// dispatcher. Uncached tools and unconfigured integrations are misses;
// store failures propagate.
func (r *Resolver) integrationLookup(ctx context.Context, id string) (registry.Tool, bool, error) {
	if r.opts.Integrations == nil {
		return nil, false, nil
	}
	toolID, ok := integration.ParseToolID(id)
	if !ok {
		return nil, false, nil
	}

	cached, err := r.opts.Integrations.CachedTool(ctx, toolID)
	if err != nil {
		if isIntegrationMiss(err) {
			return nil, false, nil
		}
		return nil, false, err
	}

	integ, err := r.opts.Integrations.Integration(ctx, toolID.Provider)
	if err != nil {
		if isIntegrationMiss(err) {
			return nil, false, nil
		}
		return nil, false, err
	}

	return integration.Bind(cached, integ, r.opts.Dispatcher), true, nil
}

// resolveWorkflowStep binds a nested workflow step. The nested workflow
// is located at resolve time, recursing into stored definitions; only
// the run happens at execute time.
func (r *Resolver) resolveWorkflowStep(ctx context.Context, id string, def definition.Step, chain []string) (*workflow.Step, error) {
	workflowID := def.WorkflowID

	nested, err := r.lookupWorkflow(ctx, workflowID, chain)
	if err != nil {
		return nil, err
	}

	input := def.Input
	runner := r.opts.Runner

	execute := func(ctx context.Context, sc *workflow.StepContext) (any, error) {
		args, err := eval.EvaluateMapping(input, sc.EvalContext())
		if err != nil {
			return nil, err
		}
		if runner == nil {
			return nil, fmt.Errorf("nested workflow %q: no runner configured", workflowID)
		}

		res, err := runner.Run(ctx, nested, args)
		if err != nil {
			return nil, err
		}
		switch res.Status {
		case workflow.RunSuccess:
			return res.Result, nil
		case workflow.RunFailed:
			if res.Err != nil {
				return nil, res.Err
			}
			return nil, fmt.Errorf("nested workflow %q failed", workflowID)
		default:
			// Suspended or still in flight: surface per-step results so
			// the outer graph can itself suspend or continue.
			return res.Steps, nil
		}
	}

	return &workflow.Step{
		ID:           id,
		Description:  def.Description,
		InputSchema:  schema.Any(),
		OutputSchema: schema.Any(),
		Execute:      execute,
	}, nil
}

// lookupWorkflow checks the static registry, then asks the definition
// source and recurses.
func (r *Resolver) lookupWorkflow(ctx context.Context, id string, chain []string) (*workflow.Workflow, error) {
	if r.opts.Workflows != nil {
		w, ok, err := r.opts.Workflows.Workflow(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("workflow %q lookup: %w", id, err)
		}
		if ok {
			return w, nil
		}
	}
	if r.opts.Definitions != nil {
		def, ok, err := r.opts.Definitions.Definition(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("workflow %q definition lookup: %w", id, err)
		}
		if ok {
			return r.resolve(ctx, def, chain)
		}
	}
	return nil, fmt.Errorf("%w: %q (not registered, no stored definition)", ErrWorkflowNotFound, id)
}

// resolveTransformStep binds a transform step: the output mapping is the
// step's result, and a declared state-update mapping merges into live
// workflow state.
func (r *Resolver) resolveTransformStep(id string, def definition.Step) (*workflow.Step, error) {
	output := def.Output
	stateUpdate := def.StateUpdate

	execute := func(_ context.Context, sc *workflow.StepContext) (any, error) {
		ectx := sc.EvalContext()

		out, err := eval.EvaluateMapping(output, ectx)
		if err != nil {
			return nil, err
		}

		if len(stateUpdate) > 0 {
			updates, err := eval.EvaluateMapping(stateUpdate, ectx)
			if err != nil {
				return nil, err
			}
			if sc.SetState != nil {
				if err := sc.SetState(updates); err != nil {
					return nil, err
				}
			}
		}
		return out, nil
	}

	return &workflow.Step{
		ID:           id,
		Description:  def.Description,
		InputSchema:  schema.Any(),
		OutputSchema: schema.Compile(def.OutputSchema),
		Execute:      execute,
	}, nil
}

// resolveSuspendStep binds a suspend step: resumed invocations
// short-circuit with the resume data; fresh invocations evaluate the
// optional payload mapping and hand it to the suspend callback.
func (r *Resolver) resolveSuspendStep(id string, def definition.Step) (*workflow.Step, error) {
	resumeSchema := schema.Compile(def.ResumeSchema)
	payload := def.Payload

	execute := func(ctx context.Context, sc *workflow.StepContext) (any, error) {
		if sc.Resume != nil {
			return sc.Resume, nil
		}

		var data map[string]any
		if len(payload) > 0 {
			out, err := eval.EvaluateMapping(payload, sc.EvalContext())
			if err != nil {
				return nil, err
			}
			data = out
		}
		if sc.Suspend != nil {
			if err := sc.Suspend(ctx, data); err != nil {
				return nil, err
			}
		}
		return nil, nil
	}

	return &workflow.Step{
		ID:           id,
		Description:  def.Description,
		InputSchema:  schema.Any(),
		OutputSchema: resumeSchema,
		ResumeSchema: resumeSchema,
		Execute:      execute,
	}, nil
}

func isIntegrationMiss(err error) bool {
	return errors.Is(err, integration.ErrNotCached) || errors.Is(err, integration.ErrNoIntegration)
}
