package resolver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/weftlabs/weft/internal/definition"
	"github.com/weftlabs/weft/internal/workflow"
)

func vptr(v definition.Value) *definition.Value { return &v }

func stepContext(input map[string]any, stepOut map[string]any, state map[string]any) *workflow.StepContext {
	return &workflow.StepContext{
		Input: func() any { return input },
		StepOutput: func(id string) (any, bool) {
			v, ok := stepOut[id]
			return v, ok
		},
		State: func() map[string]any { return state },
	}
}

func transformStep(key, refPath string) definition.Step {
	return definition.Step{
		Type:   definition.StepTransform,
		Output: map[string]definition.Value{key: definition.Ref(refPath)},
	}
}

func TestResolveAssemblesGraph(t *testing.T) {
	def := &definition.Workflow{
		ID:          "pipeline",
		Description: "demo pipeline",
		InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{"count": map[string]any{"type": "number"}},
		},
		Steps: map[string]definition.Step{
			"prep":  transformStep("n", "input.count"),
			"left":  transformStep("n", "input.count"),
			"right": transformStep("n", "input.count"),
			"big":   transformStep("n", "input.count"),
			"small": transformStep("n", "input.count"),
			"again": transformStep("n", "input.count"),
			"each":  transformStep("n", "input.count"),
		},
		StepGraph: []definition.GraphEntry{
			{Type: definition.EntryStep, Step: "prep"},
			{Type: definition.EntryParallel, Steps: []string{"left", "right"}},
			{
				Type: definition.EntryConditional,
				Branches: []definition.Branch{
					{
						When: &definition.Condition{
							Type:     definition.ConditionCompare,
							Field:    vptr(definition.Ref("input.count")),
							Operator: definition.OpGt,
							Value:    vptr(definition.Literal(40)),
						},
						Step: "big",
					},
				},
				Default: "small",
			},
			{
				Type:     definition.EntryLoop,
				Step:     "again",
				LoopType: definition.LoopUntil,
				Condition: &definition.Condition{
					Type:     definition.ConditionCompare,
					Field:    vptr(definition.Ref("state.done")),
					Operator: definition.OpEquals,
					Value:    vptr(definition.Literal(true)),
				},
			},
			{Type: definition.EntryForeach, Step: "each"},
			{Type: definition.EntrySleep, Duration: 1500},
			{Type: definition.EntryMap},
			{Type: "teleport", Step: "prep"},
		},
		RetryConfig: &definition.RetryConfig{Attempts: 3, Delay: 250},
	}

	w, err := New(Options{}).Resolve(context.Background(), def)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if w.ID() != "pipeline" || w.Description() != "demo pipeline" {
		t.Errorf("identity lost: %q %q", w.ID(), w.Description())
	}
	if !w.Sealed() {
		t.Error("resolved workflow should be sealed")
	}
	if w.Retry() == nil || w.Retry().Attempts != 3 {
		t.Errorf("retry config lost: %+v", w.Retry())
	}
	if err := w.InputSchema().Validate(map[string]any{"count": 2}); err != nil {
		t.Errorf("input schema: %v", err)
	}
	if err := w.InputSchema().Validate(map[string]any{"count": "two"}); err == nil {
		t.Error("input schema should reject a string count")
	}

	nodes := w.Nodes()
	wantKinds := []workflow.NodeKind{
		workflow.NodeStep,
		workflow.NodeParallel,
		workflow.NodeBranch,
		workflow.NodeLoop,
		workflow.NodeForeach,
		workflow.NodeSleep,
	}
	if len(nodes) != len(wantKinds) {
		t.Fatalf("node count = %d, want %d (map and unknown tags must not attach)", len(nodes), len(wantKinds))
	}
	for i, kind := range wantKinds {
		if nodes[i].Kind != kind {
			t.Errorf("node %d kind = %s, want %s", i, nodes[i].Kind, kind)
		}
	}

	if len(nodes[1].Steps) != 2 {
		t.Errorf("parallel steps = %d", len(nodes[1].Steps))
	}
	if nodes[3].Loop != definition.LoopUntil {
		t.Errorf("loop kind = %s", nodes[3].Loop)
	}
	if nodes[4].Concurrency != 1 {
		t.Errorf("foreach concurrency should default to 1, got %d", nodes[4].Concurrency)
	}
	if nodes[5].Duration != 1500*time.Millisecond {
		t.Errorf("sleep duration = %s", nodes[5].Duration)
	}

	branches := nodes[2].Branches
	if len(branches) != 2 {
		t.Fatalf("branches = %d, want guarded + default", len(branches))
	}
	sc := stepContext(map[string]any{"count": 42}, nil, nil)
	for i, want := range []bool{true, true} {
		got, err := branches[i].When(context.Background(), sc)
		if err != nil || got != want {
			t.Errorf("branch %d guard = %v, %v", i, got, err)
		}
	}
	low := stepContext(map[string]any{"count": 7}, nil, nil)
	if got, _ := branches[0].When(context.Background(), low); got {
		t.Error("guarded branch should not admit count=7")
	}
	if got, _ := branches[1].When(context.Background(), low); !got {
		t.Error("default branch must always admit")
	}
}

func TestResolveTwiceIsIndependent(t *testing.T) {
	def := &definition.Workflow{
		ID:    "twice",
		Steps: map[string]definition.Step{"only": transformStep("v", "input.v")},
		StepGraph: []definition.GraphEntry{
			{Type: definition.EntryStep, Step: "only"},
		},
	}

	r := New(Options{})
	w1, err := r.Resolve(context.Background(), def)
	if err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	w2, err := r.Resolve(context.Background(), def)
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}

	if w1 == w2 {
		t.Fatal("resolutions must not share the workflow instance")
	}
	s1, _ := w1.Step("only")
	s2, _ := w2.Step("only")
	if s1 == s2 {
		t.Error("resolutions must not share step instances")
	}
}

func TestResolveDanglingGraphReference(t *testing.T) {
	def := &definition.Workflow{
		ID:    "dangling",
		Steps: map[string]definition.Step{"real": transformStep("v", "input.v")},
		StepGraph: []definition.GraphEntry{
			{Type: definition.EntryStep, Step: "ghost"},
		},
	}

	_, err := New(Options{}).Resolve(context.Background(), def)
	if !errors.Is(err, ErrStepNotFoundInGraph) {
		t.Fatalf("err = %v, want ErrStepNotFoundInGraph", err)
	}
}

func TestResolveUnknownStepType(t *testing.T) {
	def := &definition.Workflow{
		ID:    "bad",
		Steps: map[string]definition.Step{"odd": {Type: "quantum"}},
	}

	_, err := New(Options{}).Resolve(context.Background(), def)
	if !errors.Is(err, ErrUnknownStepType) {
		t.Fatalf("err = %v, want ErrUnknownStepType", err)
	}
}

func TestResolveCycleDetection(t *testing.T) {
	defA := &definition.Workflow{
		ID: "a",
		Steps: map[string]definition.Step{
			"callB": {Type: definition.StepWorkflow, WorkflowID: "b"},
		},
		StepGraph: []definition.GraphEntry{{Type: definition.EntryStep, Step: "callB"}},
	}
	defB := &definition.Workflow{
		ID: "b",
		Steps: map[string]definition.Step{
			"callA": {Type: definition.StepWorkflow, WorkflowID: "a"},
		},
		StepGraph: []definition.GraphEntry{{Type: definition.EntryStep, Step: "callA"}},
	}

	source := DefinitionSourceFunc(func(_ context.Context, id string) (*definition.Workflow, bool, error) {
		switch id {
		case "a":
			return defA, true, nil
		case "b":
			return defB, true, nil
		}
		return nil, false, nil
	})

	_, err := New(Options{Definitions: source}).Resolve(context.Background(), defA)

	var cycle *CycleError
	if !errors.As(err, &cycle) {
		t.Fatalf("err = %v, want CycleError", err)
	}
	want := []string{"a", "b", "a"}
	if len(cycle.Chain) != len(want) {
		t.Fatalf("chain = %v, want %v", cycle.Chain, want)
	}
	for i := range want {
		if cycle.Chain[i] != want[i] {
			t.Fatalf("chain = %v, want %v", cycle.Chain, want)
		}
	}
	if msg := cycle.Error(); msg != "circular definition dependency: a -> b -> a" {
		t.Errorf("message = %q", msg)
	}
}

func TestResolveSelfCycle(t *testing.T) {
	def := &definition.Workflow{
		ID: "self",
		Steps: map[string]definition.Step{
			"again": {Type: definition.StepWorkflow, WorkflowID: "self"},
		},
	}
	source := DefinitionSourceFunc(func(_ context.Context, id string) (*definition.Workflow, bool, error) {
		if id == "self" {
			return def, true, nil
		}
		return nil, false, nil
	})

	_, err := New(Options{Definitions: source}).Resolve(context.Background(), def)
	var cycle *CycleError
	if !errors.As(err, &cycle) {
		t.Fatalf("err = %v, want CycleError", err)
	}
}

func TestResolveSleepUntil(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		until definition.Value
		nodes int
	}{
		{"literal timestamp attaches", definition.Literal(at.Format(time.RFC3339)), 1},
		{"raw timestamp attaches", definition.Raw(at.Format(time.RFC3339)), 1},
		{"referenced timestamp is skipped", definition.Ref("input.wakeAt"), 0},
		{"unusable literal is skipped", definition.Literal(true), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			until := tt.until
			def := &definition.Workflow{
				ID:    "napper",
				Steps: map[string]definition.Step{},
				StepGraph: []definition.GraphEntry{
					{Type: definition.EntrySleepUntil, Until: &until},
				},
			}
			w, err := New(Options{}).Resolve(context.Background(), def)
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			nodes := w.Nodes()
			if len(nodes) != tt.nodes {
				t.Fatalf("nodes = %d, want %d", len(nodes), tt.nodes)
			}
			if tt.nodes == 1 {
				if nodes[0].Kind != workflow.NodeSleepUntil || !nodes[0].Until.Equal(at) {
					t.Errorf("node = %+v", nodes[0])
				}
			}
		})
	}
}

func TestResolveEmptyParallelIsNoOp(t *testing.T) {
	def := &definition.Workflow{
		ID:    "empty",
		Steps: map[string]definition.Step{},
		StepGraph: []definition.GraphEntry{
			{Type: definition.EntryParallel},
			{Type: definition.EntryConditional},
		},
	}
	w, err := New(Options{}).Resolve(context.Background(), def)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(w.Nodes()) != 0 {
		t.Errorf("empty parallel and conditional should not attach, got %d nodes", len(w.Nodes()))
	}
}
