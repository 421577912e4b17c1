package eval

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/weftlabs/weft/internal/definition"
)

// ErrUnknownReferenceSource marks a reference path whose first segment is
// not one of the known namespaces.
var ErrUnknownReferenceSource = errors.New("unknown reference source")

// ErrInvalidValueOrRef marks a value evaluated through EvaluateValue that
// carries neither a $ref nor a $literal key.
var ErrInvalidValueOrRef = errors.New("value must carry $ref or $literal")

// ResolveRef resolves a dotted path against the context. The first
// segment selects the namespace (input, steps, state); the remaining
// segments walk map keys, with numeric segments indexing arrays. Walking
// through missing keys, nil, or non-containers yields nil rather than an
// error. A path that is only a namespace returns the namespace value
// itself.
//
// For the steps namespace the second segment is the step id; its value is
// {"output": <result>}, materialized only when the path actually reads
// it.
func ResolveRef(path string, ctx Context) (any, error) {
	segments := strings.Split(path, ".")

	switch segments[0] {
	case definition.SourceInput:
		return walk(ctx.Input, segments[1:]), nil

	case definition.SourceState:
		return walk(ctx.State, segments[1:]), nil

	case definition.SourceSteps:
		if len(segments) == 1 {
			return ctx.Steps, nil
		}
		var out any
		if ctx.Steps != nil {
			if v, ok := ctx.Steps.StepOutput(segments[1]); ok {
				out = v
			}
		}
		entry := map[string]any{"output": out}
		return walk(entry, segments[2:]), nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownReferenceSource, segments[0])
	}
}

// EvaluateValue evaluates a definition value slot: references resolve
// through ResolveRef, explicit literals pass through as-is (nil
// included), and anything untagged fails with ErrInvalidValueOrRef.
func EvaluateValue(v definition.Value, ctx Context) (any, error) {
	switch {
	case v.IsRef():
		return ResolveRef(v.RefPath(), ctx)
	case v.IsLiteral():
		return v.Payload(), nil
	default:
		return nil, fmt.Errorf("%w (got %T)", ErrInvalidValueOrRef, v.Payload())
	}
}

// EvaluateMapping evaluates every entry of an input mapping
// independently. Missing references resolve to nil rather than erroring;
// structural problems (unknown namespace, untagged value) propagate.
func EvaluateMapping(m map[string]definition.Value, ctx Context) (map[string]any, error) {
	out := make(map[string]any, len(m))

	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		v, err := EvaluateValue(m[key], ctx)
		if err != nil {
			return nil, fmt.Errorf("mapping key %q: %w", key, err)
		}
		out[key] = v
	}
	return out, nil
}

func walk(current any, segments []string) any {
	for _, seg := range segments {
		if current == nil {
			return nil
		}
		if m, ok := asMap(current); ok {
			current = m[seg]
			continue
		}
		if items, ok := asSlice(current); ok {
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(items) {
				return nil
			}
			current = items[idx]
			continue
		}
		return nil
	}
	return current
}
