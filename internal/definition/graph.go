package definition

import (
	"encoding/json"
	"time"
)

// EntryType tags a control-flow graph entry. Unrecognized tags survive
// decoding; the resolver logs and skips them.
type EntryType string

const (
	EntryStep        EntryType = "step"
	EntryParallel    EntryType = "parallel"
	EntryConditional EntryType = "conditional"
	EntryLoop        EntryType = "loop"
	EntryForeach     EntryType = "foreach"
	EntrySleep       EntryType = "sleep"
	EntrySleepUntil  EntryType = "sleepUntil"
	EntryMap         EntryType = "map"
)

// LoopType selects loop semantics.
type LoopType string

const (
	// LoopWhile repeats the step while the condition holds.
	LoopWhile LoopType = "dowhile"
	// LoopUntil repeats the step until the condition holds.
	LoopUntil LoopType = "dountil"
)

// GraphEntry is one element of a definition's control-flow graph. Fields
// beyond Type are populated per entry kind.
type GraphEntry struct {
	Type EntryType `json:"type"`

	// step, loop, foreach
	Step string `json:"step,omitempty"`

	// parallel
	Steps []string `json:"steps,omitempty"`

	// conditional
	Branches []Branch `json:"branches,omitempty"`
	Default  string   `json:"default,omitempty"`

	// loop
	LoopType  LoopType   `json:"loopType,omitempty"`
	Condition *Condition `json:"condition,omitempty"`

	// foreach
	Concurrency int `json:"concurrency,omitempty"`

	// sleep (milliseconds)
	Duration int64 `json:"duration,omitempty"`

	// sleepUntil: an RFC 3339 string, epoch milliseconds, or a reference
	Until *Value `json:"until,omitempty"`
}

// Branch pairs a guard condition with the step it admits.
type Branch struct {
	When *Condition `json:"when"`
	Step string     `json:"step"`
}

// TimeFromLiteral interprets a literal sleepUntil timestamp: an RFC 3339
// string or epoch milliseconds.
func TimeFromLiteral(v any) (time.Time, bool) {
	switch t := v.(type) {
	case string:
		ts, err := time.Parse(time.RFC3339, t)
		return ts, err == nil
	case float64:
		return time.UnixMilli(int64(t)), true
	case float32:
		return time.UnixMilli(int64(t)), true
	case int:
		return time.UnixMilli(int64(t)), true
	case int64:
		return time.UnixMilli(t), true
	case json.Number:
		ms, err := t.Int64()
		if err != nil {
			return time.Time{}, false
		}
		return time.UnixMilli(ms), true
	}
	return time.Time{}, false
}
