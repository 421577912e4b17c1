package cli

import (
	"errors"
	"fmt"
	"testing"

	"github.com/weftlabs/weft/internal/definition"
	"github.com/weftlabs/weft/internal/resolver"
)

func TestClassifyErrorDefinitionErrors(t *testing.T) {
	list := &definition.ErrorList{}
	list.Add(definition.Error{Code: "ERR_MISSING_FIELD", Message: "step requires a prompt", StepID: "draft", Field: "prompt"})
	list.Add(definition.Error{Code: "ERR_UNKNOWN_TYPE", Message: "unrecognized step type", StepID: "judge"})

	code, _, _, details, exitCode := classifyError(list)
	if code != "ERR_MISSING_FIELD" {
		t.Errorf("expected first error code, got %s", code)
	}
	if exitCode != 1 {
		t.Errorf("expected exit code 1, got %d", exitCode)
	}
	errs, ok := details["errors"].([]definition.Error)
	if !ok || len(errs) != 2 {
		t.Fatalf("expected 2 coded errors in details, got %v", details["errors"])
	}
}

func TestClassifyErrorCycle(t *testing.T) {
	cycle := &resolver.CycleError{Chain: []string{"a", "b", "a"}}
	err := fmt.Errorf("resolving workflow: %w", cycle)

	code, _, hint, details, _ := classifyError(err)
	if code != "ERR_CYCLE" {
		t.Errorf("expected ERR_CYCLE, got %s", code)
	}
	if hint == "" {
		t.Error("expected a hint for cycle errors")
	}
	chain, ok := details["chain"].([]string)
	if !ok || len(chain) != 3 {
		t.Fatalf("expected chain details, got %v", details["chain"])
	}
}

func TestClassifyErrorBySubstring(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		code     string
		exitCode int
	}{
		{
			name:     "not found",
			err:      errors.New("workflow definition not found"),
			code:     "ERR_NOT_FOUND",
			exitCode: 1,
		},
		{
			name:     "already exists",
			err:      errors.New("agent with this name already exists"),
			code:     "ERR_EXISTS",
			exitCode: 1,
		},
		{
			name:     "unknown flag",
			err:      errors.New("unknown flag: --frobnicate"),
			code:     "ERR_INVALID_FLAG",
			exitCode: 1,
		},
		{
			name:     "invalid input",
			err:      errors.New("invalid key=value pair \"x\""),
			code:     "ERR_INVALID",
			exitCode: 1,
		},
		{
			name:     "operation failure",
			err:      errors.New("failed to open database"),
			code:     "ERR_OPERATION_FAILED",
			exitCode: 2,
		},
		{
			name:     "unclassified",
			err:      errors.New("something odd happened"),
			code:     "ERR_UNKNOWN",
			exitCode: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, message, _, _, exitCode := classifyError(tt.err)
			if code != tt.code {
				t.Errorf("expected code %s, got %s", tt.code, code)
			}
			if exitCode != tt.exitCode {
				t.Errorf("expected exit code %d, got %d", tt.exitCode, exitCode)
			}
			if message != tt.err.Error() {
				t.Errorf("expected message %q, got %q", tt.err.Error(), message)
			}
		})
	}
}

func TestClassifyErrorNotFoundDetails(t *testing.T) {
	err := fmt.Errorf("definition %q not found", "daily-report")

	code, _, hint, details, _ := classifyError(err)
	if code != "ERR_NOT_FOUND" {
		t.Fatalf("expected ERR_NOT_FOUND, got %s", code)
	}
	if details["resource"] != "definition" {
		t.Errorf("expected definition resource, got %v", details["resource"])
	}
	if details["id"] != "daily-report" {
		t.Errorf("expected extracted id, got %v", details["id"])
	}
	if hint == "" {
		t.Error("expected a list hint for definitions")
	}
}

func TestExitCodeFromExitError(t *testing.T) {
	err := &ExitError{Code: 3, Err: errors.New("boom")}
	if got := exitCodeFromError(err); got != 3 {
		t.Errorf("expected explicit exit code 3, got %d", got)
	}
}
