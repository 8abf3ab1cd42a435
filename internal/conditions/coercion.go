// internal/conditions/coercion.go
package conditions

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/solatis/conditions/internal/types"
)

/*
 * Type coercion for condition evaluation.
 *
 * Compare conditions declare the FieldType their resolved context value is coerced
 * to before the operator runs. Coerce reports null as IsNull; compare conditions
 * with a typed FieldType treat a null value as a coercion failure for every
 * operator. Coercion failures surface as ErrCoercionFailed and become
 * EvaluationErrors. A failed coercion is never turned into a false result.
 *
 * Type modes:
 *   - NUMERIC: Strict - coerce numeric strings to float64, reject booleans, NaN and infinities
 *   - TEXT: Lenient - auto-coerce scalars to string, reject objects and arrays
 *   - BOOLEAN: Strict - boolean only, reject strings/numbers
 *   - ANY: Lenient - preserve original type
 */

// FieldType selects the coercion applied to a resolved value.
type FieldType int

const (
	FieldTypeAny FieldType = iota
	FieldTypeNumeric
	FieldTypeText
	FieldTypeBoolean
)

func (ft FieldType) String() string {
	switch ft {
	case FieldTypeNumeric:
		return "numeric"
	case FieldTypeText:
		return "text"
	case FieldTypeBoolean:
		return "boolean"
	default:
		return "any"
	}
}

// CoercionResult holds the coerced value or indicates null.
type CoercionResult struct {
	Value  any  // coerced value (valid only if !IsNull)
	IsNull bool // true if input was nil/null
}

// Coerce attempts to convert value to the expected field type.
// Returns CoercionResult with IsNull=true for nil input.
// Returns ErrCoercionFailed for impossible coercions.
func Coerce(value any, fieldType FieldType) (CoercionResult, error) {
	if value == nil {
		return CoercionResult{IsNull: true}, nil
	}

	switch fieldType {
	case FieldTypeNumeric:
		return coerceNumeric(value)
	case FieldTypeText:
		return coerceText(value)
	case FieldTypeBoolean:
		return coerceBoolean(value)
	case FieldTypeAny:
		return CoercionResult{Value: value}, nil
	default:
		return CoercionResult{}, types.ErrCoercionFailed
	}
}

// coerceNumeric converts value to float64 for numeric comparison.
// Whitespace-only strings and non-finite values return ErrCoercionFailed.
func coerceNumeric(value any) (CoercionResult, error) {
	f, ok := toFloat64(value)
	if !ok {
		s, isString := value.(string)
		if !isString {
			return CoercionResult{}, fmt.Errorf("%w: %T is not numeric", types.ErrCoercionFailed, value)
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return CoercionResult{}, fmt.Errorf("%w: empty string is not numeric", types.ErrCoercionFailed)
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return CoercionResult{}, fmt.Errorf("%w: %q is not numeric", types.ErrCoercionFailed, s)
		}
		f = parsed
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return CoercionResult{}, fmt.Errorf("%w: %v is not a finite number", types.ErrCoercionFailed, value)
	}
	return CoercionResult{Value: f}, nil
}

// coerceText converts scalars to their string representation.
func coerceText(value any) (CoercionResult, error) {
	switch v := value.(type) {
	case string:
		return CoercionResult{Value: v}, nil
	case bool:
		return CoercionResult{Value: strconv.FormatBool(v)}, nil
	case json.Number:
		return CoercionResult{Value: v.String()}, nil
	case map[string]any, Context, []any:
		return CoercionResult{}, fmt.Errorf("%w: %T is not text", types.ErrCoercionFailed, value)
	}
	if f, ok := toFloat64(value); ok {
		return CoercionResult{Value: strconv.FormatFloat(f, 'f', -1, 64)}, nil
	}
	return CoercionResult{Value: fmt.Sprintf("%v", value)}, nil
}

// coerceBoolean validates value is boolean type.
// Strict mode: rejects strings and numbers to avoid "true" vs 1 ambiguity.
func coerceBoolean(value any) (CoercionResult, error) {
	v, ok := value.(bool)
	if !ok {
		return CoercionResult{}, fmt.Errorf("%w: %T is not boolean", types.ErrCoercionFailed, value)
	}
	return CoercionResult{Value: v}, nil
}
