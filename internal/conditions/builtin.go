// internal/conditions/builtin.go
package conditions

import (
	"fmt"
	"maps"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/solatis/conditions/internal/types"
)

// Built-in condition kind names, as used by Builtins and definitions files.
const (
	KindNumber     = "number"
	KindText       = "text"
	KindBoolean    = "boolean"
	KindMembership = "membership"
	KindExists     = "exists"
	KindIsNull     = "is_null"
	KindAlways     = "always"
	KindNever      = "never"
	KindExpression = "expression"
	KindQuery      = "query"
)

// Number compares a numeric context value against a numeric operand.
var Number = &CompareKind{
	Required:    true,
	Example:     "score",
	Operand:     10,
	Help:        "Numeric comparison of the value at key.",
	Description: "Coerces the value at key to a number (numeric strings are accepted) and compares it with the operand using eq, ne, lt, lte, gt or gte. A null value, NaN or an infinity is an evaluation error for every operator.",
	FieldType:   FieldTypeNumeric,
	Ops: map[string]OperatorFunc{
		OpEq:  Equal,
		OpNe:  NotEqual,
		OpLt:  LessThan,
		OpLte: LessOrEqual,
		OpGt:  GreaterThan,
		OpGte: GreaterOrEqual,
	},
	CheckOperand: requireNumericOperand,
}

// Text compares a string context value against a string operand.
var Text = &CompareKind{
	Required:    true,
	Example:     "user.email",
	Operand:     "@example.com",
	Help:        "String comparison of the value at key.",
	Description: "Converts the value at key to text and compares it with the operand. A null value is an evaluation error. glob accepts doublestar patterns such as \"*.example.com\" or \"reports/**\".",
	FieldType:   FieldTypeText,
	Ops: map[string]OperatorFunc{
		OpEq:       Equal,
		OpNe:       NotEqual,
		OpLt:       LessThan,
		OpGt:       GreaterThan,
		OpPrefix:   HasPrefix,
		OpSuffix:   HasSuffix,
		OpContains: Contains,
		OpGlob:     Glob,
	},
	CheckOperand: requireTextOperand,
}

// Boolean compares a boolean context value against a boolean operand.
var Boolean = &CompareKind{
	Required:    true,
	Example:     "user.is_staff",
	Operand:     true,
	Help:        "Boolean comparison of the value at key.",
	Description: "The value at key must be a boolean; strings, numbers and null are rejected at evaluation.",
	FieldType:   FieldTypeBoolean,
	Ops: map[string]OperatorFunc{
		OpEq: Equal,
		OpNe: NotEqual,
	},
	CheckOperand: func(_ string, operand any, hasOperand bool) error {
		if _, ok := operand.(bool); !ok || !hasOperand {
			return fmt.Errorf("%w: boolean operand required, got %T", types.ErrInvalidOperand, operand)
		}
		return nil
	},
}

// Membership tests whether the context value is one of the operand values.
var Membership = &CompareKind{
	Required:    true,
	Example:     "user.country",
	Operand:     []any{"US", "CA"},
	Help:        "List membership of the value at key.",
	Description: "True when the value at key equals (in) or equals none of (not_in) the operand list. Numbers compare across integer and float representations.",
	FieldType:   FieldTypeAny,
	Ops: map[string]OperatorFunc{
		OpIn:    In,
		OpNotIn: NotIn,
	},
	CheckOperand: func(_ string, operand any, hasOperand bool) error {
		if !hasOperand || !isList(operand) {
			return fmt.Errorf("%w: list operand required, got %T", types.ErrInvalidOperand, operand)
		}
		if n := listLen(operand); n > types.MaxMembershipValues {
			return fmt.Errorf("%w: %d values (max %d)", types.ErrInvalidOperand, n, types.MaxMembershipValues)
		}
		return nil
	},
}

// Exists is true when the key resolves to a non-null value.
var Exists = &Kind{
	Required:    true,
	Example:     "user.id",
	Help:        "True when key is present and not null.",
	Description: "Never fails on a missing key; a missing or null value is simply false.",
	MissingOK:   true,
	Check: func(value any, found bool) (bool, error) {
		return found && value != nil, nil
	},
}

// IsNull is true when the key is missing or null.
var IsNull = &Kind{
	Required:    true,
	Example:     "user.deleted_at",
	Help:        "True when key is missing or null.",
	Description: "The inverse of exists.",
	MissingOK:   true,
	Check: func(value any, found bool) (bool, error) {
		return !found || value == nil, nil
	},
}

// Always is unconditionally true.
var Always = &Kind{
	Help:        "Always true.",
	Description: "Takes no key. Useful as a placeholder or to force an OR branch.",
	Check:       func(any, bool) (bool, error) { return true, nil },
}

// Never is unconditionally false.
var Never = &Kind{
	Help:        "Always false.",
	Description: "Takes no key. Useful to disable a branch without deleting it.",
	Check:       func(any, bool) (bool, error) { return false, nil },
}

// Builtins returns a fresh catalog of the built-in condition types keyed by kind name.
// The map is the caller's to modify; the types themselves are shared and immutable.
func Builtins() map[string]Type {
	return maps.Clone(builtins)
}

var builtins = map[string]Type{
	KindNumber:     Number,
	KindText:       Text,
	KindBoolean:    Boolean,
	KindMembership: Membership,
	KindExists:     Exists,
	KindIsNull:     IsNull,
	KindAlways:     Always,
	KindNever:      Never,
	KindExpression: Expression,
	KindQuery:      Query,
}

func requireNumericOperand(_ string, operand any, hasOperand bool) error {
	if !hasOperand {
		return fmt.Errorf("%w: numeric operand required", types.ErrInvalidOperand)
	}
	if _, err := coerceNumeric(operand); err != nil {
		return fmt.Errorf("%w: %v", types.ErrInvalidOperand, err)
	}
	return nil
}

func requireTextOperand(operator string, operand any, hasOperand bool) error {
	s, ok := operand.(string)
	if !ok || !hasOperand {
		return fmt.Errorf("%w: string operand required, got %T", types.ErrInvalidOperand, operand)
	}
	if operator == OpGlob && !doublestar.ValidatePattern(s) {
		return fmt.Errorf("%w: bad glob pattern %q", types.ErrInvalidOperand, s)
	}
	return nil
}

func listLen(v any) int {
	if arr, ok := v.([]any); ok {
		return len(arr)
	}
	return reflectLen(v)
}
