// internal/conditions/cost.go
package conditions

import "github.com/solatis/conditions/internal/types"

/*
 * Cost model for condition evaluation.
 *
 * Each entry of a CondList gets a cost estimate, reported by Validate so callers
 * can spot expensive trees. Cheap checks such as exists or boolean equality rank
 * below globbing, expressions and queries.
 *
 * Cost formula: lookup_cost + (operator_cost * type_multiplier * 8^wildcards)
 *
 * Combinator nodes cost the sum of their children plus CostCombinator.
 */

// Canonical cost constants
const (
	// Operator base costs
	CostExists   = 1
	CostEq       = 5
	CostOrdered  = 7
	CostIn       = 8
	CostString   = 10
	CostGlob     = 20
	CostFallback = 5

	// Conditions backed by an interpreter
	CostExpression = 2000
	CostQuery      = 4000

	// Key lookup cost per segment
	CostLookupPerSegment = 16

	// Field type multipliers
	MultiplierBool   = 1
	MultiplierFloat  = 4
	MultiplierString = 8
	MultiplierAny    = 12

	// Overhead per nested combinator node
	CostCombinator = 1
)

// CalculateConditionCost computes cost for a single keyed condition.
func CalculateConditionCost(path []types.PathSegment, operator string, fieldType FieldType) int {
	lookupCost := 0
	wildcardCount := 0
	for _, seg := range path {
		if seg.Wildcard {
			wildcardCount++
			continue
		}
		lookupCost += CostLookupPerSegment
	}

	execMult := 1
	for i := 0; i < wildcardCount; i++ {
		execMult *= 8
	}

	return lookupCost + (operatorCost(operator) * typeMultiplier(fieldType) * execMult)
}

// operatorCost returns base cost for an operator symbol.
// The empty symbol is used by non-compare conditions.
func operatorCost(op string) int {
	switch op {
	case "":
		return CostExists
	case OpEq, OpNe:
		return CostEq
	case OpLt, OpLte, OpGt, OpGte:
		return CostOrdered
	case OpIn, OpNotIn:
		return CostIn
	case OpPrefix, OpSuffix, OpContains:
		return CostString
	case OpGlob:
		return CostGlob
	default:
		return CostFallback
	}
}

// typeMultiplier returns cost multiplier based on field type complexity.
func typeMultiplier(ft FieldType) int {
	switch ft {
	case FieldTypeNumeric:
		return MultiplierFloat
	case FieldTypeBoolean:
		return MultiplierBool
	case FieldTypeText:
		return MultiplierString
	default:
		return MultiplierAny
	}
}

// entryCost returns the evaluation cost of a constructed condition.
func entryCost(cond Condition) int {
	if c, ok := cond.(costed); ok {
		return c.Cost()
	}
	return CostFallback * MultiplierAny
}
