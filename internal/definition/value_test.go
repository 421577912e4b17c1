package definition

import (
	"encoding/json"
	"testing"
)

func TestValueUnmarshalDiscriminatesByKeyPresence(t *testing.T) {
	tests := []struct {
		name string
		data string
		test func(t *testing.T, v Value)
	}{
		{
			name: "ref",
			data: `{"$ref":"steps.a.output.name"}`,
			test: func(t *testing.T, v Value) {
				if !v.IsRef() || v.RefPath() != "steps.a.output.name" {
					t.Fatalf("expected ref, got %+v", v)
				}
			},
		},
		{
			name: "literal",
			data: `{"$literal":{"nested":true}}`,
			test: func(t *testing.T, v Value) {
				if !v.IsLiteral() {
					t.Fatalf("expected literal, got %+v", v)
				}
				m, ok := v.Payload().(map[string]any)
				if !ok || m["nested"] != true {
					t.Fatalf("literal payload lost: %v", v.Payload())
				}
			},
		},
		{
			name: "literal null is still a literal",
			data: `{"$literal":null}`,
			test: func(t *testing.T, v Value) {
				if !v.IsLiteral() || v.Payload() != nil {
					t.Fatalf("expected nil literal, got %+v", v)
				}
			},
		},
		{
			name: "plain object is raw",
			data: `{"name":"x"}`,
			test: func(t *testing.T, v Value) {
				if v.IsRef() || v.IsLiteral() {
					t.Fatalf("expected raw, got %+v", v)
				}
			},
		},
		{
			name: "bare string is raw",
			data: `"be brief"`,
			test: func(t *testing.T, v Value) {
				if v.IsRef() || v.IsLiteral() {
					t.Fatalf("expected raw, got %+v", v)
				}
				if v.Payload() != "be brief" {
					t.Fatalf("raw payload lost: %v", v.Payload())
				}
			},
		},
		{
			name: "non-string ref degrades to raw",
			data: `{"$ref":42}`,
			test: func(t *testing.T, v Value) {
				if v.IsRef() {
					t.Fatal("non-string $ref must not become a reference")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var v Value
			if err := json.Unmarshal([]byte(tt.data), &v); err != nil {
				t.Fatalf("unmarshal %s: %v", tt.data, err)
			}
			tt.test(t, v)
		})
	}
}

func TestValueMarshalRoundTrip(t *testing.T) {
	for _, v := range []Value{
		Ref("input.topic"),
		Literal(40),
		Literal(nil),
		Raw("bare"),
	} {
		data, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal %+v: %v", v, err)
		}
		var back Value
		if err := json.Unmarshal(data, &back); err != nil {
			t.Fatalf("unmarshal %s: %v", data, err)
		}
		if back.IsRef() != v.IsRef() || back.IsLiteral() != v.IsLiteral() {
			t.Fatalf("round trip changed kind: %+v -> %s -> %+v", v, data, back)
		}
		if v.IsRef() && back.RefPath() != v.RefPath() {
			t.Fatalf("round trip changed ref path: %q", back.RefPath())
		}
	}
}

func TestValueInMappingDecodes(t *testing.T) {
	var step Step
	data := `{
		"type": "agent",
		"agentId": "writer",
		"input": {
			"prompt": {"$ref": "input.topic"},
			"instructions": "keep it short",
			"limit": {"$literal": 3}
		}
	}`
	if err := json.Unmarshal([]byte(data), &step); err != nil {
		t.Fatalf("unmarshal step: %v", err)
	}
	if step.Type != StepAgent || step.AgentID != "writer" {
		t.Fatalf("step fields lost: %+v", step)
	}
	if !step.Input["prompt"].IsRef() {
		t.Error("prompt should decode as a reference")
	}
	if step.Input["instructions"].IsRef() || step.Input["instructions"].IsLiteral() {
		t.Error("instructions should decode as raw")
	}
	if !step.Input["limit"].IsLiteral() {
		t.Error("limit should decode as a literal")
	}
}
