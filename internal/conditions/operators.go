// internal/conditions/operators.go
package conditions

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/solatis/conditions/internal/types"
)

/*
 * Operator comparison functions.
 *
 * Compare condition types declare an operator table (symbol -> OperatorFunc).
 * Values reaching an OperatorFunc are already coerced to the type's FieldType.
 *
 * Operators:
 *   - eq/ne: Equality with numeric tolerance across int/uint/float widths
 *   - lt/lte/gt/gte: Numeric or string ordering
 *   - prefix/suffix/contains: String matching (contains also tests list membership)
 *   - glob: doublestar pattern matching
 *   - in/not_in: Membership in the operand list
 *
 * Type mismatches return ErrIncomparable instead of false so the caller sees
 * why a comparison could not be made.
 */

// OperatorFunc compares a resolved context value against a condition operand.
type OperatorFunc func(value, operand any) (bool, error)

// Operator symbols used by the built-in condition types.
const (
	OpEq       = "eq"
	OpNe       = "ne"
	OpLt       = "lt"
	OpLte      = "lte"
	OpGt       = "gt"
	OpGte      = "gte"
	OpPrefix   = "prefix"
	OpSuffix   = "suffix"
	OpContains = "contains"
	OpGlob     = "glob"
	OpIn       = "in"
	OpNotIn    = "not_in"
)

// Equal reports value == operand.
func Equal(value, operand any) (bool, error) {
	return compareEqual(value, operand), nil
}

// NotEqual reports value != operand.
func NotEqual(value, operand any) (bool, error) {
	return !compareEqual(value, operand), nil
}

// LessThan reports value < operand.
func LessThan(value, operand any) (bool, error) {
	c, err := compareOrdered(value, operand)
	return c < 0, err
}

// LessOrEqual reports value <= operand.
func LessOrEqual(value, operand any) (bool, error) {
	c, err := compareOrdered(value, operand)
	return c <= 0 && err == nil, err
}

// GreaterThan reports value > operand.
func GreaterThan(value, operand any) (bool, error) {
	c, err := compareOrdered(value, operand)
	return c > 0, err
}

// GreaterOrEqual reports value >= operand.
func GreaterOrEqual(value, operand any) (bool, error) {
	c, err := compareOrdered(value, operand)
	return c >= 0 && err == nil, err
}

// HasPrefix reports whether the string value starts with the string operand.
func HasPrefix(value, operand any) (bool, error) {
	vs, ps, err := asStrings(value, operand)
	if err != nil {
		return false, err
	}
	return strings.HasPrefix(vs, ps), nil
}

// HasSuffix reports whether the string value ends with the string operand.
func HasSuffix(value, operand any) (bool, error) {
	vs, ss, err := asStrings(value, operand)
	if err != nil {
		return false, err
	}
	return strings.HasSuffix(vs, ss), nil
}

// Contains reports substring containment for strings and element membership for lists.
func Contains(value, operand any) (bool, error) {
	if list, ok := value.([]any); ok {
		for _, elem := range list {
			if compareEqual(elem, operand) {
				return true, nil
			}
		}
		return false, nil
	}
	vs, ss, err := asStrings(value, operand)
	if err != nil {
		return false, err
	}
	return strings.Contains(vs, ss), nil
}

// Glob matches the string value against a doublestar pattern operand.
func Glob(value, operand any) (bool, error) {
	vs, pattern, err := asStrings(value, operand)
	if err != nil {
		return false, err
	}
	matched, err := doublestar.Match(pattern, vs)
	if err != nil {
		return false, fmt.Errorf("%w: %v", types.ErrIncomparable, err)
	}
	return matched, nil
}

// In reports whether value equals any element of the operand list.
func In(value, operand any) (bool, error) {
	return compareIn(value, operand)
}

// NotIn reports whether value equals no element of the operand list.
func NotIn(value, operand any) (bool, error) {
	found, err := compareIn(value, operand)
	return !found && err == nil, err
}

// compareEqual performs equality comparison with numeric type tolerance.
func compareEqual(a, b any) bool {
	if na, nb, ok := asNumbers(a, b); ok {
		return na == nb
	}
	return reflect.DeepEqual(a, b)
}

// compareOrdered performs three-way comparison (-1/0/1) on two numbers or two strings.
func compareOrdered(a, b any) (int, error) {
	if na, nb, ok := asNumbers(a, b); ok {
		switch {
		case na < nb:
			return -1, nil
		case na > nb:
			return 1, nil
		default:
			return 0, nil
		}
	}
	sa, oka := a.(string)
	sb, okb := b.(string)
	if oka && okb {
		return strings.Compare(sa, sb), nil
	}
	return 0, fmt.Errorf("%w: cannot order %T against %T", types.ErrIncomparable, a, b)
}

// compareIn checks membership using equality semantics.
// The operand may be []any or any other slice/array kind.
func compareIn(value, set any) (bool, error) {
	if arr, ok := set.([]any); ok {
		for _, elem := range arr {
			if compareEqual(value, elem) {
				return true, nil
			}
		}
		return false, nil
	}

	rv := reflect.ValueOf(set)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return false, fmt.Errorf("%w: membership operand must be a list, got %T", types.ErrIncomparable, set)
	}
	for i := 0; i < rv.Len(); i++ {
		if compareEqual(value, rv.Index(i).Interface()) {
			return true, nil
		}
	}
	return false, nil
}

func asStrings(value, operand any) (string, string, error) {
	vs, ok1 := value.(string)
	other, ok2 := operand.(string)
	if !ok1 || !ok2 {
		return "", "", fmt.Errorf("%w: string operator on %T and %T", types.ErrIncomparable, value, operand)
	}
	return vs, other, nil
}

// asNumbers attempts to convert both values to float64 for numeric comparison.
func asNumbers(a, b any) (float64, float64, bool) {
	na, oka := toFloat64(a)
	nb, okb := toFloat64(b)
	return na, nb, oka && okb
}

// toFloat64 converts value to float64 if it's a numeric type.
// Handles every Go integer and float width plus json.Number.
func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// isList reports whether v is a slice or array.
func isList(v any) bool {
	if _, ok := v.([]any); ok {
		return true
	}
	rv := reflect.ValueOf(v)
	return rv.IsValid() && (rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array)
}

func reflectLen(v any) int {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return 0
	}
	return rv.Len()
}
