package eval

import (
	"errors"
	"strings"
	"testing"
)

func TestEvalExpr(t *testing.T) {
	ctx := Context{
		Input: map[string]any{"count": 42, "name": "ada"},
		Steps: MapSource{"a": map[string]any{"ok": true, "n": 3}},
		State: map[string]any{"phase": "warm"},
	}

	tests := []struct {
		name string
		expr string
		want bool
	}{
		{"numeric comparison", "input.count > 40", true},
		{"numeric comparison false", "input.count > 50", false},
		{"step output read", "steps.a.output.ok", true},
		{"combined bindings", "input.count > 40 and steps.a.output.n == 3", true},
		{"state read", `state.phase == "warm"`, true},
		{"missing input key is falsy", "input.missing", false},
		{"missing step yields empty entry", "steps.bogus.output", false},
		{"string library available", `string.upper(input.name) == "ADA"`, true},
		{"nil is falsy", "nil", false},
		{"strings are truthy", `"anything"`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EvalExpr(tt.expr, ctx)
			if err != nil {
				t.Fatalf("EvalExpr(%q): %v", tt.expr, err)
			}
			if got != tt.want {
				t.Fatalf("EvalExpr(%q) = %v, want %v", tt.expr, got, tt.want)
			}
		})
	}
}

func TestEvalExprLazySteps(t *testing.T) {
	calls := map[string]int{}
	src := SourceFunc(func(id string) (any, bool) {
		calls[id]++
		return map[string]any{"n": 1}, true
	})

	got, err := EvalExpr("steps.wanted.output.n == 1", Context{Steps: src})
	if err != nil || !got {
		t.Fatalf("got %v, %v", got, err)
	}
	if calls["wanted"] != 1 || len(calls) != 1 {
		t.Fatalf("expected exactly one lookup for %q, got %v", "wanted", calls)
	}
}

func TestEvalExprErrors(t *testing.T) {
	for _, expr := range []string{"", "   ", "input.count >", "1 +* 2"} {
		_, err := EvalExpr(expr, Context{})
		var exprErr *ExpressionError
		if !errors.As(err, &exprErr) {
			t.Errorf("EvalExpr(%q) error = %v, want *ExpressionError", expr, err)
			continue
		}
		if exprErr.Expression != expr {
			t.Errorf("ExpressionError should carry source text, got %q", exprErr.Expression)
		}
	}

	_, err := EvalExpr("bad syntax here", Context{})
	if err == nil || !strings.Contains(err.Error(), "bad syntax here") {
		t.Errorf("error message should include the expression, got %v", err)
	}
}

func TestEvalExprSandbox(t *testing.T) {
	tests := []struct {
		name string
		expr string
		want bool
	}{
		{"no os library", "os == nil", true},
		{"no io library", "io == nil", true},
		{"no load", "load == nil", true},
		{"no loadstring", "loadstring == nil", true},
		{"no dofile", "dofile == nil", true},
		{"no print", "print == nil", true},
		{"no math.random", "math.random == nil", true},
		{"math otherwise present", "math.floor(3.7) == 3", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EvalExpr(tt.expr, Context{})
			if err != nil {
				t.Fatalf("EvalExpr(%q): %v", tt.expr, err)
			}
			if got != tt.want {
				t.Fatalf("EvalExpr(%q) = %v, want %v", tt.expr, got, tt.want)
			}
		})
	}
}
