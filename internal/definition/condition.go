package definition

// ConditionType tags a condition descriptor.
type ConditionType string

const (
	ConditionCompare ConditionType = "compare"
	ConditionAnd     ConditionType = "and"
	ConditionOr      ConditionType = "or"
	ConditionNot     ConditionType = "not"
	ConditionExpr    ConditionType = "expr"
)

// Comparison operators for compare conditions.
const (
	OpEquals     = "equals"
	OpNotEquals  = "notEquals"
	OpGt         = "gt"
	OpGte        = "gte"
	OpLt         = "lt"
	OpLte        = "lte"
	OpContains   = "contains"
	OpStartsWith = "startsWith"
	OpEndsWith   = "endsWith"
	OpMatches    = "matches"
	OpIn         = "in"
	OpIsNull     = "isNull"
	OpIsNotNull  = "isNotNull"
)

// Operators lists every comparison operator the evaluator understands.
var Operators = []string{
	OpEquals, OpNotEquals,
	OpGt, OpGte, OpLt, OpLte,
	OpContains, OpStartsWith, OpEndsWith,
	OpMatches, OpIn,
	OpIsNull, OpIsNotNull,
}

// Condition is a recursive, serializable condition descriptor.
type Condition struct {
	Type ConditionType `json:"type"`

	// compare
	Field    *Value `json:"field,omitempty"`
	Operator string `json:"operator,omitempty"`
	Value    *Value `json:"value,omitempty"`

	// and, or
	Conditions []*Condition `json:"conditions,omitempty"`

	// not
	Condition *Condition `json:"condition,omitempty"`

	// expr
	Expression string `json:"expression,omitempty"`
}
