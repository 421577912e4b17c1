// Package schema compiles JSON-Schema-like documents into runtime
// validators. Compilation never fails: unknown constructs, malformed
// fragments, and empty documents all degrade to the most permissive
// validator that still honors whatever could be understood.
package schema

import "fmt"

// Validator checks candidate values against a compiled schema document.
type Validator struct {
	check checkFunc
	doc   map[string]any
	desc  string
}

// checkFunc validates v at the given dotted path, returning nil on success.
type checkFunc func(path string, v any) error

// ValidationError reports a value that failed validation, with the dotted
// path to the offending element.
type ValidationError struct {
	Path    string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

func failf(path, format string, args ...any) error {
	return &ValidationError{Path: path, Message: fmt.Sprintf(format, args...)}
}

// Compile builds a Validator from a schema document. A nil or empty
// document, or one whose constructs are not understood, compiles to a
// validator that accepts anything.
func Compile(doc map[string]any) *Validator {
	v := &Validator{doc: doc, check: compileCheck(doc)}
	if d, ok := doc["description"].(string); ok {
		v.desc = d
	}
	return v
}

// Any returns a validator that accepts every value.
func Any() *Validator {
	return &Validator{check: acceptAll}
}

// Validate checks value against the compiled schema.
func (v *Validator) Validate(value any) error {
	return v.check("value", value)
}

// Parse validates value and returns it unchanged on success.
func (v *Validator) Parse(value any) (any, error) {
	if err := v.Validate(value); err != nil {
		return nil, err
	}
	return value, nil
}

// Description returns the document's description text, if any.
func (v *Validator) Description() string {
	return v.desc
}

// Document returns the original schema document the validator was compiled
// from. It is carried as metadata for tool-definition export and may be
// nil.
func (v *Validator) Document() map[string]any {
	return v.doc
}

// ToolParameters returns the schema document in the shape expected by a
// tool definition's input-schema field. A validator without a document
// yields an open object schema.
func ToolParameters(v *Validator) map[string]any {
	if v == nil || len(v.doc) == 0 {
		return map[string]any{"type": "object"}
	}
	return v.doc
}

func acceptAll(string, any) error { return nil }
