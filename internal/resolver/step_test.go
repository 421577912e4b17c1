package resolver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/weftlabs/weft/internal/definition"
	"github.com/weftlabs/weft/internal/integration"
	"github.com/weftlabs/weft/internal/registry"
	"github.com/weftlabs/weft/internal/workflow"
)

type fakeIntegrations struct {
	tools        map[string]*integration.CachedTool
	integrations map[string]*integration.Integration
}

func (s *fakeIntegrations) CachedTool(_ context.Context, id integration.ToolID) (*integration.CachedTool, error) {
	t, ok := s.tools[id.String()]
	if !ok {
		return nil, integration.ErrNotCached
	}
	return t, nil
}

func (s *fakeIntegrations) Integration(_ context.Context, provider string) (*integration.Integration, error) {
	i, ok := s.integrations[provider]
	if !ok {
		return nil, integration.ErrNoIntegration
	}
	return i, nil
}

func TestAgentStepLookupChain(t *testing.T) {
	static := registry.NewAgentRegistry()
	stored := registry.NewAgentRegistry()
	stored.MustRegister(&registry.FuncAgent{
		AgentID: "writer",
		GenerateFn: func(_ context.Context, req registry.GenerateRequest) (*registry.GenerateResult, error) {
			return &registry.GenerateResult{Text: "re: " + req.Prompt}, nil
		},
	})

	r := New(Options{Agents: []registry.AgentSource{static, stored}})
	step, err := r.ResolveStep(context.Background(), "draft", definition.Step{
		Type:    definition.StepAgent,
		AgentID: "writer",
		Input:   map[string]definition.Value{"prompt": definition.Ref("input.topic")},
	})
	if err != nil {
		t.Fatalf("ResolveStep: %v", err)
	}

	sc := stepContext(map[string]any{"topic": "tides"}, nil, nil)
	out, err := step.Execute(context.Background(), sc)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	m, _ := out.(map[string]any)
	if m["text"] != "re: tides" {
		t.Errorf("output = %v", out)
	}

	if err := step.OutputSchema.Validate(map[string]any{"text": "hi"}); err != nil {
		t.Errorf("text output schema: %v", err)
	}
	if err := step.OutputSchema.Validate(map[string]any{"text": 7}); err == nil {
		t.Error("text output schema should reject non-string text")
	}
}

func TestAgentStepNotFound(t *testing.T) {
	r := New(Options{Agents: []registry.AgentSource{
		registry.NewAgentRegistry(),
		registry.NewAgentRegistry(),
	}})
	step, err := r.ResolveStep(context.Background(), "draft", definition.Step{
		Type:    definition.StepAgent,
		AgentID: "ghost",
		Input:   map[string]definition.Value{"prompt": definition.Literal("x")},
	})
	if err != nil {
		t.Fatalf("ResolveStep: %v", err)
	}

	_, err = step.Execute(context.Background(), stepContext(nil, nil, nil))
	if !errors.Is(err, ErrAgentNotFound) {
		t.Fatalf("err = %v, want ErrAgentNotFound", err)
	}
	if !strings.Contains(err.Error(), "2 registries") {
		t.Errorf("message should count the registries searched: %v", err)
	}
}

func TestAgentStepPromptResolution(t *testing.T) {
	reg := registry.NewAgentRegistry()
	reg.MustRegister(&registry.FuncAgent{AgentID: "writer"})
	r := New(Options{Agents: []registry.AgentSource{reg}})

	tests := []struct {
		name  string
		input map[string]definition.Value
	}{
		{"prompt key missing", map[string]definition.Value{
			"topic": definition.Ref("input.topic"),
		}},
		{"prompt resolves to nothing", map[string]definition.Value{
			"prompt": definition.Ref("input.absent"),
			"topic":  definition.Ref("input.topic"),
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			step, err := r.ResolveStep(context.Background(), "draft", definition.Step{
				Type:    definition.StepAgent,
				AgentID: "writer",
				Input:   tt.input,
			})
			if err != nil {
				t.Fatalf("ResolveStep: %v", err)
			}
			_, err = step.Execute(context.Background(), stepContext(map[string]any{"topic": "x"}, nil, nil))
			if !errors.Is(err, ErrPromptResolutionFailed) {
				t.Fatalf("err = %v, want ErrPromptResolutionFailed", err)
			}
			if !strings.Contains(err.Error(), "topic") {
				t.Errorf("message should list available input keys: %v", err)
			}
		})
	}
}

func TestAgentStepInstructionsAndStructuredOutput(t *testing.T) {
	var gotReq registry.GenerateRequest
	reg := registry.NewAgentRegistry()
	reg.MustRegister(&registry.FuncAgent{
		AgentID: "extractor",
		GenerateFn: func(_ context.Context, req registry.GenerateRequest) (*registry.GenerateResult, error) {
			gotReq = req
			return &registry.GenerateResult{Text: "ignored", Object: map[string]any{"name": "Ada"}}, nil
		},
	})
	r := New(Options{Agents: []registry.AgentSource{reg}})

	structured := map[string]any{
		"type":       "object",
		"properties": map[string]any{"name": map[string]any{"type": "string"}},
		"required":   []any{"name"},
	}
	step, err := r.ResolveStep(context.Background(), "extract", definition.Step{
		Type:             definition.StepAgent,
		AgentID:          "extractor",
		StructuredOutput: structured,
		Input: map[string]definition.Value{
			"prompt":       definition.Literal("find the name"),
			"instructions": definition.Raw("be terse"),
		},
	})
	if err != nil {
		t.Fatalf("ResolveStep: %v", err)
	}

	out, err := step.Execute(context.Background(), stepContext(nil, nil, nil))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	m, _ := out.(map[string]any)
	if m["name"] != "Ada" {
		t.Errorf("structured output lost: %v", out)
	}
	if gotReq.Instructions != "be terse" {
		t.Errorf("bare-string instructions = %q", gotReq.Instructions)
	}
	if gotReq.OutputSchema == nil {
		t.Error("structured-output schema should reach the agent")
	}
	if err := step.OutputSchema.Validate(map[string]any{}); err == nil {
		t.Error("declared structured-output schema should require name")
	}
}

func TestToolStepLookupTiers(t *testing.T) {
	tools := registry.NewToolRegistry()
	tools.MustRegister(&registry.FuncTool{ToolID: "calc", Fn: func(context.Context, map[string]any, map[string]any) (any, error) {
		return "by-id", nil
	}})
	tools.MustRegister(&registry.FuncTool{ToolID: "tool-1", ToolName: "adder", Fn: func(context.Context, map[string]any, map[string]any) (any, error) {
		return "by-name", nil
	}})

	agents := registry.NewAgentRegistry()
	agents.MustRegister(&registry.FuncAgent{
		AgentID: "helper",
		ToolSet: map[string]registry.Tool{
			"fmt": &registry.FuncTool{ToolID: "tool-9", Fn: func(context.Context, map[string]any, map[string]any) (any, error) {
				return "by-agent", nil
			}},
		},
	})

	r := New(Options{
		Agents: []registry.AgentSource{agents},
		Tools:  tools,
	})

	tests := []struct {
		toolID string
		want   string
	}{
		{"calc", "by-id"},
		{"adder", "by-name"},
		{"fmt", "by-agent"},
		{"tool-9", "by-agent"},
	}
	for _, tt := range tests {
		step, err := r.ResolveStep(context.Background(), "use", definition.Step{
			Type:   definition.StepTool,
			ToolID: tt.toolID,
		})
		if err != nil {
			t.Fatalf("ResolveStep(%s): %v", tt.toolID, err)
		}
		out, err := step.Execute(context.Background(), stepContext(nil, nil, nil))
		if err != nil {
			t.Fatalf("Execute(%s): %v", tt.toolID, err)
		}
		if out != tt.want {
			t.Errorf("tool %q resolved via %v, want %v", tt.toolID, out, tt.want)
		}
	}
}

func TestToolStepArgumentsFromMapping(t *testing.T) {
	var gotArgs map[string]any
	tools := registry.NewToolRegistry()
	tools.MustRegister(&registry.FuncTool{
		ToolID: "echo",
		Fn: func(_ context.Context, args map[string]any, _ map[string]any) (any, error) {
			gotArgs = args
			return args, nil
		},
	})
	r := New(Options{Tools: tools})

	step, err := r.ResolveStep(context.Background(), "use", definition.Step{
		Type:   definition.StepTool,
		ToolID: "echo",
		Input: map[string]definition.Value{
			"q":     definition.Ref("input.query"),
			"limit": definition.Literal(5),
			"prev":  definition.Ref("steps.search.output.total"),
		},
	})
	if err != nil {
		t.Fatalf("ResolveStep: %v", err)
	}

	sc := stepContext(
		map[string]any{"query": "weather"},
		map[string]any{"search": map[string]any{"total": 9}},
		nil,
	)
	if _, err := step.Execute(context.Background(), sc); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if gotArgs["q"] != "weather" || gotArgs["limit"] != 5 || gotArgs["prev"] != 9 {
		t.Errorf("args = %v", gotArgs)
	}
}

func TestToolStepNotFoundNamesTiers(t *testing.T) {
	r := New(Options{})
	step, err := r.ResolveStep(context.Background(), "use", definition.Step{
		Type:   definition.StepTool,
		ToolID: "nope",
	})
	if err != nil {
		t.Fatalf("ResolveStep: %v", err)
	}

	_, err = step.Execute(context.Background(), stepContext(nil, nil, nil))
	if !errors.Is(err, ErrToolNotFound) {
		t.Fatalf("err = %v, want ErrToolNotFound", err)
	}
	for _, tier := range []string{
		"global registry by id",
		"global registry by name",
		"agent tool sets",
		"integration store",
	} {
		if !strings.Contains(err.Error(), tier) {
			t.Errorf("message should name tier %q: %v", tier, err)
		}
	}
}

func TestToolStepIntegrationTier(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/toolkits/gmail/tools/send/execute" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"delivered": true}`))
	}))
	defer srv.Close()

	store := &fakeIntegrations{
		tools: map[string]*integration.CachedTool{
			"composio_gmail_send": {
				ID:       "composio_gmail_send",
				Provider: "composio",
				Toolkit:  "gmail",
				Slug:     "send",
			},
		},
		integrations: map[string]*integration.Integration{
			"composio": {
				Provider:   "composio",
				Kind:       integration.KindHosted,
				BaseURL:    srv.URL,
				AuthType:   integration.AuthBearer,
				AuthFields: map[string]string{"token": "t"},
			},
		},
	}

	r := New(Options{
		Integrations: store,
		Dispatcher:   integration.NewDispatcher(integration.DispatcherConfig{HTTPClient: srv.Client()}),
	})

	step, err := r.ResolveStep(context.Background(), "send", definition.Step{
		Type:   definition.StepTool,
		ToolID: "composio_gmail_send",
		Input:  map[string]definition.Value{"to": definition.Literal("a@b.c")},
	})
	if err != nil {
		t.Fatalf("ResolveStep: %v", err)
	}

	out, err := step.Execute(context.Background(), stepContext(nil, nil, nil))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	m, _ := out.(map[string]any)
	if m["delivered"] != true {
		t.Errorf("result = %v", out)
	}

	// A grammar match that is not cached is one more exhausted tier.
	missing, err := r.ResolveStep(context.Background(), "send2", definition.Step{
		Type:   definition.StepTool,
		ToolID: "composio_gmail_archive",
	})
	if err != nil {
		t.Fatalf("ResolveStep: %v", err)
	}
	_, err = missing.Execute(context.Background(), stepContext(nil, nil, nil))
	if !errors.Is(err, ErrToolNotFound) {
		t.Errorf("uncached integration id = %v, want ErrToolNotFound", err)
	}
}

func TestWorkflowStepRunsNested(t *testing.T) {
	child := workflow.New(workflow.Config{ID: "child"}).Commit()
	workflows := registry.NewWorkflowRegistry()
	workflows.MustRegister(child)

	var gotInput any
	runner := workflow.RunnerFunc(func(_ context.Context, wf *workflow.Workflow, input any) (*workflow.RunResult, error) {
		gotInput = input
		return &workflow.RunResult{Status: workflow.RunSuccess, Result: map[string]any{"sum": 12}}, nil
	})

	r := New(Options{Workflows: workflows, Runner: runner})
	step, err := r.ResolveStep(context.Background(), "delegate", definition.Step{
		Type:       definition.StepWorkflow,
		WorkflowID: "child",
		Input:      map[string]definition.Value{"n": definition.Ref("input.n")},
	})
	if err != nil {
		t.Fatalf("ResolveStep: %v", err)
	}

	out, err := step.Execute(context.Background(), stepContext(map[string]any{"n": 6}, nil, nil))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	m, _ := out.(map[string]any)
	if m["sum"] != 12 {
		t.Errorf("result = %v", out)
	}
	in, _ := gotInput.(map[string]any)
	if in["n"] != 6 {
		t.Errorf("nested input = %v", gotInput)
	}
}

func TestWorkflowStepStatusMapping(t *testing.T) {
	child := workflow.New(workflow.Config{ID: "child"}).Commit()
	workflows := registry.NewWorkflowRegistry()
	workflows.MustRegister(child)

	nestedErr := fmt.Errorf("nested blew up")
	stepResults := map[string]workflow.StepResult{
		"wait": {Status: workflow.RunSuspended},
	}

	tests := []struct {
		name    string
		result  *workflow.RunResult
		wantOut any
		wantErr error
	}{
		{"failed re-raises", &workflow.RunResult{Status: workflow.RunFailed, Err: nestedErr}, nil, nestedErr},
		{"suspended surfaces step results", &workflow.RunResult{Status: workflow.RunSuspended, Steps: stepResults}, stepResults, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := workflow.RunnerFunc(func(context.Context, *workflow.Workflow, any) (*workflow.RunResult, error) {
				return tt.result, nil
			})
			r := New(Options{Workflows: workflows, Runner: runner})
			step, err := r.ResolveStep(context.Background(), "delegate", definition.Step{
				Type:       definition.StepWorkflow,
				WorkflowID: "child",
			})
			if err != nil {
				t.Fatalf("ResolveStep: %v", err)
			}

			out, err := step.Execute(context.Background(), stepContext(nil, nil, nil))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Execute: %v", err)
			}
			got, _ := out.(map[string]workflow.StepResult)
			if len(got) != len(stepResults) {
				t.Errorf("out = %v", out)
			}
		})
	}
}

func TestWorkflowStepNotFound(t *testing.T) {
	r := New(Options{Workflows: registry.NewWorkflowRegistry()})
	_, err := r.ResolveStep(context.Background(), "delegate", definition.Step{
		Type:       definition.StepWorkflow,
		WorkflowID: "ghost",
	})
	if !errors.Is(err, ErrWorkflowNotFound) {
		t.Fatalf("err = %v, want ErrWorkflowNotFound", err)
	}
}

func TestWorkflowStepResolvesStoredDefinition(t *testing.T) {
	source := DefinitionSourceFunc(func(_ context.Context, id string) (*definition.Workflow, bool, error) {
		if id != "stored" {
			return nil, false, nil
		}
		return &definition.Workflow{
			ID:    "stored",
			Steps: map[string]definition.Step{"only": transformStep("v", "input.v")},
			StepGraph: []definition.GraphEntry{
				{Type: definition.EntryStep, Step: "only"},
			},
		}, true, nil
	})

	var ranID string
	runner := workflow.RunnerFunc(func(_ context.Context, wf *workflow.Workflow, _ any) (*workflow.RunResult, error) {
		ranID = wf.ID()
		return &workflow.RunResult{Status: workflow.RunSuccess, Result: "ok"}, nil
	})

	r := New(Options{Definitions: source, Runner: runner})
	step, err := r.ResolveStep(context.Background(), "delegate", definition.Step{
		Type:       definition.StepWorkflow,
		WorkflowID: "stored",
	})
	if err != nil {
		t.Fatalf("ResolveStep: %v", err)
	}

	if out, err := step.Execute(context.Background(), stepContext(nil, nil, nil)); err != nil || out != "ok" {
		t.Fatalf("Execute = %v, %v", out, err)
	}
	if ranID != "stored" {
		t.Errorf("nested run used workflow %q", ranID)
	}
}

func TestTransformStep(t *testing.T) {
	r := New(Options{})
	step, err := r.ResolveStep(context.Background(), "shape", definition.Step{
		Type: definition.StepTransform,
		Output: map[string]definition.Value{
			"name":  definition.Ref("steps.fetch.output.user.name"),
			"phase": definition.Ref("state.phase"),
			"tag":   definition.Literal("v1"),
		},
		StateUpdate: map[string]definition.Value{
			"phase": definition.Literal("shaped"),
		},
		OutputSchema: map[string]any{
			"type":     "object",
			"required": []any{"name"},
		},
	})
	if err != nil {
		t.Fatalf("ResolveStep: %v", err)
	}

	state := map[string]any{"phase": "raw"}
	var merged map[string]any
	sc := stepContext(
		nil,
		map[string]any{"fetch": map[string]any{"user": map[string]any{"name": "Ada"}}},
		state,
	)
	sc.SetState = func(updates map[string]any) error {
		merged = updates
		return nil
	}

	out, err := step.Execute(context.Background(), sc)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	m, _ := out.(map[string]any)
	if m["name"] != "Ada" || m["phase"] != "raw" || m["tag"] != "v1" {
		t.Errorf("output = %v", out)
	}
	if merged["phase"] != "shaped" {
		t.Errorf("state update = %v", merged)
	}
	if err := step.OutputSchema.Validate(map[string]any{}); err == nil {
		t.Error("declared output schema should require name")
	}
}

func TestSuspendStep(t *testing.T) {
	r := New(Options{})
	step, err := r.ResolveStep(context.Background(), "approve", definition.Step{
		Type: definition.StepSuspend,
		ResumeSchema: map[string]any{
			"type":     "object",
			"required": []any{"approved"},
		},
		Payload: map[string]definition.Value{
			"question": definition.Literal("proceed?"),
			"total":    definition.Ref("steps.sum.output.total"),
		},
	})
	if err != nil {
		t.Fatalf("ResolveStep: %v", err)
	}

	var suspended any
	sc := stepContext(nil, map[string]any{"sum": map[string]any{"total": 3}}, nil)
	sc.Suspend = func(_ context.Context, payload any) error {
		suspended = payload
		return nil
	}

	out, err := step.Execute(context.Background(), sc)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out != nil {
		t.Errorf("fresh suspend should yield nil, got %v", out)
	}
	p, _ := suspended.(map[string]any)
	if p["question"] != "proceed?" || p["total"] != 3 {
		t.Errorf("suspend payload = %v", suspended)
	}

	resumed := stepContext(nil, nil, nil)
	resumed.Resume = map[string]any{"approved": true}
	out, err = step.Execute(context.Background(), resumed)
	if err != nil {
		t.Fatalf("resumed Execute: %v", err)
	}
	m, _ := out.(map[string]any)
	if m["approved"] != true {
		t.Errorf("resume data = %v", out)
	}

	if step.ResumeSchema == nil || step.ResumeSchema.Validate(map[string]any{}) == nil {
		t.Error("resume schema should require approved")
	}
	if step.OutputSchema.Validate(map[string]any{}) == nil {
		t.Error("output schema mirrors the resume schema")
	}
}
