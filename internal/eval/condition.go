package eval

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/weftlabs/weft/internal/definition"
)

// ErrUnknownConditionType marks a condition whose type tag is not
// understood.
var ErrUnknownConditionType = errors.New("unknown condition type")

// ErrUnknownOperator marks a compare condition with an operator outside
// the supported set.
var ErrUnknownOperator = errors.New("unknown comparison operator")

// EvaluateCondition evaluates a serializable condition against the
// context. Comparisons over mismatched operand types are soft failures
// and yield false; unknown types and operators are structural errors.
func EvaluateCondition(cond *definition.Condition, ctx Context) (bool, error) {
	if cond == nil {
		return false, fmt.Errorf("%w: condition is nil", ErrUnknownConditionType)
	}

	switch cond.Type {
	case definition.ConditionCompare:
		return evalCompare(cond, ctx)

	case definition.ConditionAnd:
		// An empty conjunction holds.
		for _, sub := range cond.Conditions {
			ok, err := EvaluateCondition(sub, ctx)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil

	case definition.ConditionOr:
		// An empty disjunction does not hold.
		for _, sub := range cond.Conditions {
			ok, err := EvaluateCondition(sub, ctx)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil

	case definition.ConditionNot:
		ok, err := EvaluateCondition(cond.Condition, ctx)
		if err != nil {
			return false, err
		}
		return !ok, nil

	case definition.ConditionExpr:
		return EvalExpr(cond.Expression, ctx)

	default:
		return false, fmt.Errorf("%w: %q", ErrUnknownConditionType, cond.Type)
	}
}

func evalCompare(cond *definition.Condition, ctx Context) (bool, error) {
	var field any
	if cond.Field != nil {
		v, err := EvaluateValue(*cond.Field, ctx)
		if err != nil {
			return false, err
		}
		field = v
	}

	var value any
	if cond.Value != nil {
		v, err := EvaluateValue(*cond.Value, ctx)
		if err != nil {
			return false, err
		}
		value = v
	}

	switch cond.Operator {
	case definition.OpEquals:
		return strictEqual(field, value), nil
	case definition.OpNotEquals:
		return !strictEqual(field, value), nil

	case definition.OpGt, definition.OpGte, definition.OpLt, definition.OpLte:
		a, aok := numeric(field)
		b, bok := numeric(value)
		if !aok || !bok {
			return false, nil
		}
		switch cond.Operator {
		case definition.OpGt:
			return a > b, nil
		case definition.OpGte:
			return a >= b, nil
		case definition.OpLt:
			return a < b, nil
		default:
			return a <= b, nil
		}

	case definition.OpContains, definition.OpStartsWith, definition.OpEndsWith:
		a, aok := field.(string)
		b, bok := value.(string)
		if !aok || !bok {
			return false, nil
		}
		switch cond.Operator {
		case definition.OpContains:
			return strings.Contains(a, b), nil
		case definition.OpStartsWith:
			return strings.HasPrefix(a, b), nil
		default:
			return strings.HasSuffix(a, b), nil
		}

	case definition.OpMatches:
		a, aok := field.(string)
		pattern, bok := value.(string)
		if !aok || !bok {
			return false, nil
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			// An invalid pattern is a soft failure.
			return false, nil
		}
		return re.MatchString(a), nil

	case definition.OpIn:
		items, ok := asSlice(value)
		if !ok {
			return false, nil
		}
		for _, item := range items {
			if strictEqual(field, item) {
				return true, nil
			}
		}
		return false, nil

	case definition.OpIsNull:
		return field == nil, nil
	case definition.OpIsNotNull:
		return field != nil, nil

	default:
		return false, fmt.Errorf("%w: %q", ErrUnknownOperator, cond.Operator)
	}
}
