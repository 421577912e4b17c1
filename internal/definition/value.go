package definition

import "encoding/json"

// Reference namespaces a $ref path may start with.
const (
	SourceInput = "input"
	SourceSteps = "steps"
	SourceState = "state"
)

// Value is a definition-side value slot: a reference ({"$ref": path}), an
// explicit literal ({"$literal": v}), or a raw value retained verbatim.
// References and literals are distinguished by key presence, never by
// value type.
type Value struct {
	kind    valueKind
	ref     string
	payload any
}

type valueKind uint8

const (
	valueRaw valueKind = iota
	valueRef
	valueLiteral
)

// Ref builds a reference value for a dotted context path.
func Ref(path string) Value { return Value{kind: valueRef, ref: path} }

// Literal builds an explicit literal value.
func Literal(v any) Value { return Value{kind: valueLiteral, payload: v} }

// Raw builds an untagged value.
func Raw(v any) Value { return Value{kind: valueRaw, payload: v} }

// IsRef reports whether the value is a reference.
func (v Value) IsRef() bool { return v.kind == valueRef }

// RefPath returns the reference path; empty unless IsRef.
func (v Value) RefPath() string { return v.ref }

// IsLiteral reports whether the value is an explicit literal.
func (v Value) IsLiteral() bool { return v.kind == valueLiteral }

// Payload returns the literal or raw payload. A reference's payload is nil.
func (v Value) Payload() any { return v.payload }

func (v *Value) UnmarshalJSON(data []byte) error {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err == nil && probe != nil {
		if rawRef, present := probe["$ref"]; present {
			var path string
			if err := json.Unmarshal(rawRef, &path); err == nil {
				*v = Ref(path)
				return nil
			}
			// $ref carrying a non-string is retained raw and rejected
			// when evaluated.
		} else if rawLit, present := probe["$literal"]; present {
			var payload any
			if err := json.Unmarshal(rawLit, &payload); err != nil {
				return err
			}
			*v = Literal(payload)
			return nil
		}
	}

	var payload any
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}
	*v = Raw(payload)
	return nil
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case valueRef:
		return json.Marshal(map[string]string{"$ref": v.ref})
	case valueLiteral:
		return json.Marshal(map[string]any{"$literal": v.payload})
	default:
		return json.Marshal(v.payload)
	}
}
