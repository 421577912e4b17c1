package resolver

import (
	"context"
	"fmt"
	"time"

	"github.com/weftlabs/weft/internal/definition"
	"github.com/weftlabs/weft/internal/eval"
	"github.com/weftlabs/weft/internal/workflow"
)

// attach wires one step graph entry into the workflow under assembly.
// Dangling step references are structural errors; unrecognized entry
// tags are logged and skipped.
func (r *Resolver) attach(w *workflow.Workflow, entry definition.GraphEntry) error {
	switch entry.Type {
	case definition.EntryStep:
		step, err := graphStep(w, entry.Step)
		if err != nil {
			return err
		}
		return w.Then(step)

	case definition.EntryParallel:
		steps := make([]*workflow.Step, 0, len(entry.Steps))
		for _, id := range entry.Steps {
			step, err := graphStep(w, id)
			if err != nil {
				return err
			}
			steps = append(steps, step)
		}
		return w.Parallel(steps)

	case definition.EntryConditional:
		branches := make([]workflow.Branch, 0, len(entry.Branches)+1)
		for _, b := range entry.Branches {
			step, err := graphStep(w, b.Step)
			if err != nil {
				return err
			}
			branches = append(branches, workflow.Branch{When: guard(b.When), Step: step})
		}
		if entry.Default != "" {
			step, err := graphStep(w, entry.Default)
			if err != nil {
				return err
			}
			branches = append(branches, workflow.Branch{When: alwaysTrue, Step: step})
		}
		return w.Branch(branches)

	case definition.EntryLoop:
		step, err := graphStep(w, entry.Step)
		if err != nil {
			return err
		}
		if entry.LoopType == definition.LoopUntil {
			return w.DoUntil(step, guard(entry.Condition))
		}
		return w.DoWhile(step, guard(entry.Condition))

	case definition.EntryForeach:
		step, err := graphStep(w, entry.Step)
		if err != nil {
			return err
		}
		return w.Foreach(step, entry.Concurrency)

	case definition.EntrySleep:
		return w.Sleep(time.Duration(entry.Duration) * time.Millisecond)

	case definition.EntrySleepUntil:
		return r.attachSleepUntil(w, entry)

	case definition.EntryMap:
		// Data shaping happens through transform steps.
		return nil

	default:
		r.log.Warn().
			Str("workflow", w.ID()).
			Str("type", string(entry.Type)).
			Msg("unrecognized step graph entry skipped")
		return nil
	}
}

// attachSleepUntil wires a literal timestamp. A referenced timestamp is
// valid data but has no attachment; it is skipped with a warning so the
// gap is visible.
func (r *Resolver) attachSleepUntil(w *workflow.Workflow, entry definition.GraphEntry) error {
	if entry.Until == nil {
		r.log.Warn().Str("workflow", w.ID()).Msg("sleepUntil without a timestamp skipped")
		return nil
	}
	if entry.Until.IsRef() {
		r.log.Warn().
			Str("workflow", w.ID()).
			Str("path", entry.Until.RefPath()).
			Msg("sleepUntil with a referenced timestamp is not attached")
		return nil
	}
	ts, ok := definition.TimeFromLiteral(entry.Until.Payload())
	if !ok {
		r.log.Warn().Str("workflow", w.ID()).Msg("sleepUntil timestamp not understood, skipped")
		return nil
	}
	return w.SleepUntil(ts)
}

func graphStep(w *workflow.Workflow, id string) (*workflow.Step, error) {
	step, ok := w.Step(id)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrStepNotFoundInGraph, id)
	}
	return step, nil
}

// guard wraps a condition into a GuardFunc evaluated against the run's
// live accessors.
func guard(cond *definition.Condition) workflow.GuardFunc {
	return func(_ context.Context, sc *workflow.StepContext) (bool, error) {
		return eval.EvaluateCondition(cond, sc.EvalContext())
	}
}

func alwaysTrue(context.Context, *workflow.StepContext) (bool, error) {
	return true, nil
}
