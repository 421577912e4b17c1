package schema

import (
	"fmt"
	"math"
	"net/url"
	"regexp"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// compileCheck is the compilation entry point. Combinators take priority
// over const, which takes priority over the type dispatch; a document
// without a type falls back to structural inference.
func compileCheck(doc map[string]any) checkFunc {
	if len(doc) == 0 {
		return acceptAll
	}

	if arms, ok := schemaList(doc["anyOf"]); ok {
		return compileUnion(arms)
	}
	// oneOf is treated as a plain union; exclusive-arm matching is not
	// enforced.
	if arms, ok := schemaList(doc["oneOf"]); ok {
		return compileUnion(arms)
	}
	if arms, ok := schemaList(doc["allOf"]); ok {
		return compileAll(arms)
	}

	if c, ok := doc["const"]; ok {
		return compileConst(c)
	}

	switch t := doc["type"].(type) {
	case string:
		return compileTyped(t, doc)
	case []any:
		checks := make([]checkFunc, 0, len(t))
		for _, raw := range t {
			name, ok := raw.(string)
			if !ok {
				return acceptAll
			}
			checks = append(checks, compileTyped(name, doc))
		}
		return unionOf(checks)
	}

	// No type: infer from structure.
	if _, ok := doc["properties"]; ok {
		return compileObject(doc)
	}
	if _, ok := doc["items"]; ok {
		return compileArray(doc)
	}
	if vals, ok := doc["enum"].([]any); ok {
		return compileEnum(vals)
	}
	return acceptAll
}

func compileTyped(name string, doc map[string]any) checkFunc {
	switch name {
	case "string":
		return compileString(doc)
	case "number":
		return compileNumber(doc, false)
	case "integer":
		return compileNumber(doc, true)
	case "boolean":
		return func(path string, v any) error {
			if _, ok := v.(bool); !ok {
				return failf(path, "expected boolean, got %s", typeName(v))
			}
			return nil
		}
	case "null":
		return func(path string, v any) error {
			if v != nil {
				return failf(path, "expected null, got %s", typeName(v))
			}
			return nil
		}
	case "array":
		return compileArray(doc)
	case "object":
		return compileObject(doc)
	default:
		// Unknown type names degrade to accept-anything.
		return acceptAll
	}
}

// schemaList extracts a combinator arm list; each arm must itself be a
// schema document.
func schemaList(raw any) ([]map[string]any, bool) {
	items, ok := raw.([]any)
	if !ok {
		return nil, false
	}
	arms := make([]map[string]any, 0, len(items))
	for _, it := range items {
		m, ok := asMap(it)
		if !ok {
			return nil, false
		}
		arms = append(arms, m)
	}
	return arms, true
}

func compileUnion(arms []map[string]any) checkFunc {
	checks := make([]checkFunc, 0, len(arms))
	for _, arm := range arms {
		checks = append(checks, compileCheck(arm))
	}
	return unionOf(checks)
}

func unionOf(checks []checkFunc) checkFunc {
	switch len(checks) {
	case 0:
		return acceptAll
	case 1:
		return checks[0]
	}
	return func(path string, v any) error {
		for _, check := range checks {
			if check(path, v) == nil {
				return nil
			}
		}
		return failf(path, "value matches none of %d allowed schemas", len(checks))
	}
}

func compileAll(arms []map[string]any) checkFunc {
	checks := make([]checkFunc, 0, len(arms))
	for _, arm := range arms {
		checks = append(checks, compileCheck(arm))
	}
	return func(path string, v any) error {
		for _, check := range checks {
			if err := check(path, v); err != nil {
				return err
			}
		}
		return nil
	}
}

func compileConst(want any) checkFunc {
	return func(path string, v any) error {
		if !valueEqual(v, want) {
			return failf(path, "expected constant %v", want)
		}
		return nil
	}
}

// compileEnum handles enums without a declared type: a union of
// exact-value matches. An explicit empty enum rejects everything.
func compileEnum(vals []any) checkFunc {
	if len(vals) == 0 {
		return rejectEnum
	}
	return func(path string, v any) error {
		for _, want := range vals {
			if valueEqual(v, want) {
				return nil
			}
		}
		return failf(path, "value is not one of %d enum values", len(vals))
	}
}

func rejectEnum(path string, _ any) error {
	return failf(path, "empty enum permits no values")
}

func compileString(doc map[string]any) checkFunc {
	if vals, ok := doc["enum"].([]any); ok {
		if len(vals) == 0 {
			return rejectEnum
		}
		return compileEnum(vals)
	}

	minLen, hasMin := intField(doc, "minLength")
	maxLen, hasMax := intField(doc, "maxLength")

	var pattern *regexp.Regexp
	if raw, ok := doc["pattern"].(string); ok {
		// A pattern that does not compile degrades to no pattern check.
		if re, err := regexp.Compile(raw); err == nil {
			pattern = re
		}
	}

	format, _ := doc["format"].(string)

	return func(path string, v any) error {
		s, ok := v.(string)
		if !ok {
			return failf(path, "expected string, got %s", typeName(v))
		}
		n := utf8.RuneCountInString(s)
		if hasMin && n < minLen {
			return failf(path, "string length %d is below minimum %d", n, minLen)
		}
		if hasMax && n > maxLen {
			return failf(path, "string length %d exceeds maximum %d", n, maxLen)
		}
		if pattern != nil && !pattern.MatchString(s) {
			return failf(path, "string does not match pattern %q", pattern.String())
		}
		return checkFormat(path, format, s)
	}
}

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

func checkFormat(path, format, s string) error {
	switch format {
	case "":
		return nil
	case "email":
		if !emailRe.MatchString(s) {
			return failf(path, "invalid email address")
		}
	case "url", "uri":
		u, err := url.Parse(s)
		if err != nil || u.Scheme == "" || (u.Host == "" && u.Opaque == "") {
			return failf(path, "invalid url")
		}
	case "uuid":
		if _, err := uuid.Parse(s); err != nil {
			return failf(path, "invalid uuid")
		}
	case "date-time":
		if _, err := time.Parse(time.RFC3339, s); err != nil {
			return failf(path, "invalid RFC 3339 timestamp")
		}
	}
	// Unrecognized formats are ignored.
	return nil
}

func compileNumber(doc map[string]any, integer bool) checkFunc {
	if vals, ok := doc["enum"].([]any); ok {
		if len(vals) == 0 {
			return rejectEnum
		}
		return compileEnum(vals)
	}

	minVal, hasMin := numField(doc, "minimum")
	maxVal, hasMax := numField(doc, "maximum")
	exMin, hasExMin := numField(doc, "exclusiveMinimum")
	exMax, hasExMax := numField(doc, "exclusiveMaximum")
	mult, hasMult := numField(doc, "multipleOf")

	return func(path string, v any) error {
		f, ok := numeric(v)
		if !ok {
			return failf(path, "expected number, got %s", typeName(v))
		}
		if integer && f != math.Trunc(f) {
			return failf(path, "expected integer, got %v", f)
		}
		if hasMin && f < minVal {
			return failf(path, "%v is below minimum %v", f, minVal)
		}
		if hasMax && f > maxVal {
			return failf(path, "%v exceeds maximum %v", f, maxVal)
		}
		if hasExMin && f <= exMin {
			return failf(path, "%v must be greater than %v", f, exMin)
		}
		if hasExMax && f >= exMax {
			return failf(path, "%v must be less than %v", f, exMax)
		}
		if hasMult && mult != 0 && !isMultiple(f, mult) {
			return failf(path, "%v is not a multiple of %v", f, mult)
		}
		return nil
	}
}

func isMultiple(f, mult float64) bool {
	const eps = 1e-9
	rem := math.Abs(math.Mod(f, mult))
	return rem < eps || math.Abs(rem-math.Abs(mult)) < eps
}

func compileArray(doc map[string]any) checkFunc {
	itemCheck := acceptAll
	if items, ok := asMap(doc["items"]); ok {
		itemCheck = compileCheck(items)
	}
	minItems, hasMin := intField(doc, "minItems")
	maxItems, hasMax := intField(doc, "maxItems")

	return func(path string, v any) error {
		items, ok := asSlice(v)
		if !ok {
			return failf(path, "expected array, got %s", typeName(v))
		}
		if hasMin && len(items) < minItems {
			return failf(path, "array length %d is below minimum %d", len(items), minItems)
		}
		if hasMax && len(items) > maxItems {
			return failf(path, "array length %d exceeds maximum %d", len(items), maxItems)
		}
		for i, item := range items {
			if err := itemCheck(fmt.Sprintf("%s[%d]", path, i), item); err != nil {
				return err
			}
		}
		return nil
	}
}

func compileObject(doc map[string]any) checkFunc {
	propChecks := map[string]checkFunc{}
	if props, ok := asMap(doc["properties"]); ok {
		for key, raw := range props {
			if sub, ok := asMap(raw); ok {
				propChecks[key] = compileCheck(sub)
			} else {
				propChecks[key] = acceptAll
			}
		}
	}

	required := map[string]bool{}
	if raw, ok := doc["required"].([]any); ok {
		for _, r := range raw {
			if s, ok := r.(string); ok {
				required[s] = true
			}
		}
	}

	closed := false
	extraCheck := acceptAll
	switch ap := doc["additionalProperties"].(type) {
	case bool:
		closed = !ap
	case map[string]any:
		extraCheck = compileCheck(ap)
	}

	return func(path string, v any) error {
		obj, ok := asMap(v)
		if !ok {
			return failf(path, "expected object, got %s", typeName(v))
		}
		for key := range required {
			if _, present := obj[key]; !present {
				return failf(joinPath(path, key), "missing required property")
			}
		}
		for key, val := range obj {
			check, declared := propChecks[key]
			if declared {
				if err := check(joinPath(path, key), val); err != nil {
					return err
				}
				continue
			}
			if closed {
				return failf(joinPath(path, key), "unexpected property")
			}
			if err := extraCheck(joinPath(path, key), val); err != nil {
				return err
			}
		}
		return nil
	}
}

func joinPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}
