// internal/conditions/kinds.go
package conditions

import (
	"errors"
	"fmt"

	"github.com/solatis/conditions/internal/types"
)

/*
 * Declarative condition types.
 *
 * Kind and CompareKind let applications define condition types as data instead of
 * hand-writing Type implementations. Both parse the key into a path at Build time;
 * the path is resolved against the context on every Evaluate.
 *
 * Missing keys:
 *   - CompareKind: always an EvaluationError (ErrMissingKey)
 *   - Kind: an EvaluationError unless MissingOK, in which case Check sees found=false
 */

// CheckFunc decides a non-compare condition from the resolved value.
type CheckFunc func(value any, found bool) (bool, error)

// Kind is a declarative non-compare Type.
type Kind struct {
	Required    bool
	Allowed     []string
	Example     string
	Help        string
	Description string
	// MissingOK passes unresolved keys to Check instead of failing evaluation.
	MissingOK bool
	Check     CheckFunc
}

func (k *Kind) KeyRequired() bool       { return k.Required }
func (k *Kind) KeysAllowed() []string   { return k.Allowed }
func (k *Kind) KeyExample() string      { return k.Example }
func (k *Kind) HelpText() string        { return k.Help }
func (k *Kind) FullDescription() string { return k.Description }

// Build parses the key (if any) and binds the check function.
func (k *Kind) Build(args Args) (Condition, error) {
	if k.Check == nil {
		return nil, fmt.Errorf("%w: kind has no check function", types.ErrUnknownCondition)
	}
	cond := &keyCondition{key: args.Key, check: k.Check, missingOK: k.MissingOK}
	if args.Key != "" {
		path, err := ParseKey(args.Key)
		if err != nil {
			return nil, &types.InvalidConditionError{Field: "key", Err: err}
		}
		cond.path = path
	}
	return cond, nil
}

type keyCondition struct {
	key       string
	path      []types.PathSegment
	check     CheckFunc
	missingOK bool
}

func (c *keyCondition) Evaluate(ctx Context) (bool, error) {
	if c.path == nil {
		return c.check(nil, false)
	}
	resolved, err := Resolve(c.path, ctx)
	if err != nil && !errors.Is(err, types.ErrFieldNotFound) {
		return false, &types.EvaluationError{Key: c.key, Err: err}
	}
	if !resolved.Found && !c.missingOK {
		return false, &types.EvaluationError{Key: c.key, Err: types.ErrMissingKey}
	}
	matched, err := c.check(resolved.Value, resolved.Found)
	if err != nil {
		return false, &types.EvaluationError{Key: c.key, Err: err, Detail: resolvedDetail(c.key, resolved)}
	}
	return matched, nil
}

func (c *keyCondition) Cost() int {
	return CalculateConditionCost(c.path, "", FieldTypeAny)
}

// OperandCheck validates an operand at construction time.
type OperandCheck func(operator string, operand any, hasOperand bool) error

// CompareKind is a declarative CompareType.
type CompareKind struct {
	Required    bool
	Allowed     []string
	Example     string
	Operand     any
	Help        string
	Description string
	FieldType   FieldType
	Ops         map[string]OperatorFunc
	// CheckOperand, when set, rejects operands the operators cannot use.
	CheckOperand OperandCheck
}

func (k *CompareKind) KeyRequired() bool                  { return k.Required }
func (k *CompareKind) KeysAllowed() []string              { return k.Allowed }
func (k *CompareKind) KeyExample() string                 { return k.Example }
func (k *CompareKind) HelpText() string                   { return k.Help }
func (k *CompareKind) FullDescription() string            { return k.Description }
func (k *CompareKind) Operators() map[string]OperatorFunc { return k.Ops }
func (k *CompareKind) OperandExample() any                { return k.Operand }

// Build binds the operator function and operand after validating the operand.
func (k *CompareKind) Build(args Args) (Condition, error) {
	fn, ok := k.Ops[args.Operator]
	if !ok {
		return nil, &types.InvalidConditionError{Field: "operator", Err: types.ErrUnknownOperator}
	}
	if k.CheckOperand != nil {
		if err := k.CheckOperand(args.Operator, args.Operand, args.HasOperand); err != nil {
			return nil, &types.InvalidConditionError{Field: "operand", Err: err}
		}
	}

	operand := args.Operand
	if k.FieldType != FieldTypeAny && operand != nil {
		coerced, err := Coerce(operand, k.FieldType)
		if err != nil {
			return nil, &types.InvalidConditionError{Field: "operand", Err: types.ErrInvalidOperand, Detail: err.Error()}
		}
		operand = coerced.Value
	}

	cond := &compareCondition{
		key:       args.Key,
		operator:  args.Operator,
		fn:        fn,
		operand:   operand,
		fieldType: k.FieldType,
	}
	if args.Key != "" {
		path, err := ParseKey(args.Key)
		if err != nil {
			return nil, &types.InvalidConditionError{Field: "key", Err: err}
		}
		cond.path = path
	}
	return cond, nil
}

type compareCondition struct {
	key       string
	path      []types.PathSegment
	operator  string
	fn        OperatorFunc
	operand   any
	fieldType FieldType
}

// Evaluate orchestrates: resolve key -> coerce type -> apply operator.
// Without a key the whole context is the compared value. A null value fails
// every operator of a typed compare condition; FieldTypeAny passes it through.
func (c *compareCondition) Evaluate(ctx Context) (bool, error) {
	var (
		value  any = map[string]any(ctx)
		detail string
	)
	if c.path != nil {
		resolved, err := Resolve(c.path, ctx)
		if err != nil {
			if errors.Is(err, types.ErrFieldNotFound) {
				err = types.ErrMissingKey
			}
			return false, &types.EvaluationError{Key: c.key, Err: err}
		}
		value = resolved.Value
		detail = resolvedDetail(c.key, resolved)
	}

	coerced, err := Coerce(value, c.fieldType)
	if err != nil {
		return false, &types.EvaluationError{Key: c.key, Err: err, Detail: detail}
	}
	if coerced.IsNull && c.fieldType != FieldTypeAny {
		return false, &types.EvaluationError{Key: c.key, Err: fmt.Errorf("%w: null is not %s", types.ErrCoercionFailed, c.fieldType), Detail: detail}
	}

	matched, err := c.fn(coerced.Value, c.operand)
	if err != nil {
		return false, &types.EvaluationError{Key: c.key, Err: err, Detail: detail}
	}
	return matched, nil
}

// resolvedDetail names the concrete path a wildcard key matched; "" otherwise.
func resolvedDetail(key string, resolved ResolveResult) string {
	if !resolved.Found {
		return ""
	}
	if p := FormatPath(resolved.ResolvedPath); p != key {
		return "resolved " + p
	}
	return ""
}

func (c *compareCondition) Cost() int {
	return CalculateConditionCost(c.path, c.operator, c.fieldType)
}

// Restrict wraps t so that only the listed keys are accepted.
// Compare types stay compare types.
func Restrict(t Type, keys ...string) Type {
	base := restricted{Type: t, keys: keys}
	if ct, ok := t.(CompareType); ok {
		return restrictedCompare{restricted: base, compare: ct}
	}
	return base
}

type restricted struct {
	Type
	keys []string
}

func (r restricted) KeysAllowed() []string { return r.keys }

// KeyExample prefers the wrapped example when it is still allowed.
func (r restricted) KeyExample() string {
	example := r.Type.KeyExample()
	if len(r.keys) == 0 {
		return example
	}
	for _, k := range r.keys {
		if k == example {
			return example
		}
	}
	return r.keys[0]
}

type restrictedCompare struct {
	restricted
	compare CompareType
}

func (r restrictedCompare) Operators() map[string]OperatorFunc { return r.compare.Operators() }
func (r restrictedCompare) OperandExample() any                { return r.compare.OperandExample() }
