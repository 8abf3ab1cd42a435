// Package conditions implements a declarative, serializable boolean-condition language.
//
// Applications register condition types in a Definitions registry (group -> condstr ->
// Type). Encoded condition trees are decoded against that registry into a CondList,
// evaluated against a runtime Context, and encoded back for storage:
//
//	list, err := conditions.Decode(raw, defs)
//	ok, err := list.Evaluate(conditions.Context{"score": 15})
//	stored := list.Encode()
//
// Decode and construction failures are *types.InvalidConditionError; evaluation
// failures are *types.EvaluationError. Nothing in this package holds global state.
package conditions

import (
	"fmt"
	"slices"

	"github.com/solatis/conditions/internal/types"
)

// Context is the runtime mapping a condition tree is evaluated against.
type Context map[string]any

// Args carries the per-instance fields of a leaf node.
type Args struct {
	Key        string
	Operator   string
	Operand    any
	HasOperand bool // distinguishes an explicit null operand from no operand
}

// Condition is a constructed, validated predicate instance.
type Condition interface {
	Evaluate(ctx Context) (bool, error)
}

// Type is a pluggable condition kind registered under a condstr.
// Introspection methods carry no semantics for evaluation; adapters render them as help.
type Type interface {
	KeyRequired() bool
	// KeysAllowed restricts the key to the listed values; nil or empty means unrestricted.
	KeysAllowed() []string
	KeyExample() string
	HelpText() string
	FullDescription() string
	// Build constructs an instance. New validates the generic constraints first.
	Build(args Args) (Condition, error)
}

// CompareType is a Type whose instances carry an operator and operand.
type CompareType interface {
	Type
	Operators() map[string]OperatorFunc
	OperandExample() any
}

// costed is implemented by conditions that know their evaluation cost.
type costed interface {
	Cost() int
}

// New validates args against t and builds the condition.
//
// Validation order: key presence, key restriction, operator table, operator membership.
// Every failure, including errors returned by Build, is an *types.InvalidConditionError.
func New(t Type, args Args) (Condition, error) {
	if t == nil {
		return nil, &types.InvalidConditionError{Err: types.ErrUnknownCondition, Detail: "nil condition type"}
	}
	if err := validateArgs(t, args); err != nil {
		return nil, err
	}

	cond, err := t.Build(args)
	if err != nil {
		if _, ok := types.AsInvalidCondition(err); ok {
			return nil, err
		}
		return nil, &types.InvalidConditionError{Err: err}
	}
	return cond, nil
}

func validateArgs(t Type, args Args) error {
	if args.Key == "" {
		if t.KeyRequired() {
			return &types.InvalidConditionError{Field: "key", Err: types.ErrKeyRequired}
		}
	} else if allowed := t.KeysAllowed(); len(allowed) > 0 && !slices.Contains(allowed, args.Key) {
		return &types.InvalidConditionError{
			Field:  "key",
			Err:    types.ErrKeyNotAllowed,
			Detail: fmt.Sprintf("%q not in %v", args.Key, allowed),
		}
	}

	ct, ok := t.(CompareType)
	if !ok {
		if args.Operator != "" || args.HasOperand {
			return &types.InvalidConditionError{Field: "operator", Err: types.ErrOperatorNotSupported}
		}
		return nil
	}

	ops := ct.Operators()
	if len(ops) == 0 {
		return &types.InvalidConditionError{Field: "operator", Err: types.ErrNoOperators}
	}
	if _, ok := ops[args.Operator]; !ok {
		return &types.InvalidConditionError{
			Field:  "operator",
			Err:    types.ErrUnknownOperator,
			Detail: fmt.Sprintf("%q not in %v", args.Operator, OperatorNames(ct)),
		}
	}
	return nil
}

// OperatorNames returns the sorted operator symbols of a compare type.
func OperatorNames(ct CompareType) []string {
	ops := ct.Operators()
	names := make([]string, 0, len(ops))
	for name := range ops {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
