// internal/conditions/expression.go
package conditions

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/solatis/conditions/internal/types"
)

// Expression is a condition whose key is an expr-lang boolean expression evaluated
// with the context as environment, e.g. `score > 10 && user.plan in ["pro", "team"]`.
// The expression is compiled once at construction; syntax errors are construction errors.
var Expression Type = expressionType{}

type expressionType struct{}

func (expressionType) KeyRequired() bool     { return true }
func (expressionType) KeysAllowed() []string { return nil }
func (expressionType) KeyExample() string    { return `score > 10 && user.plan in ["pro", "team"]` }
func (expressionType) HelpText() string      { return "Boolean expression over the context." }
func (expressionType) FullDescription() string {
	return "The key is an expression in the expr language. Context keys are variables; undefined variables evaluate to nil. The expression must produce a boolean."
}

func (expressionType) Build(args Args) (Condition, error) {
	program, err := expr.Compile(args.Key,
		expr.AllowUndefinedVariables(),
		expr.AsBool(),
	)
	if err != nil {
		return nil, &types.InvalidConditionError{
			Field:  "key",
			Err:    types.ErrInvalidKey,
			Detail: fmt.Sprintf("failed to compile expression: %v", err),
		}
	}
	return &expressionCondition{source: args.Key, program: program}, nil
}

type expressionCondition struct {
	source  string
	program *vm.Program
}

// Evaluate runs the compiled program. Programs are safe for concurrent runs.
func (c *expressionCondition) Evaluate(ctx Context) (bool, error) {
	env := make(map[string]any, len(ctx))
	for k, v := range ctx {
		env[k] = v
	}

	result, err := expr.Run(c.program, env)
	if err != nil {
		return false, &types.EvaluationError{Key: c.source, Err: types.ErrExpressionFailed, Detail: err.Error()}
	}
	matched, ok := result.(bool)
	if !ok {
		return false, &types.EvaluationError{
			Key:    c.source,
			Err:    types.ErrExpressionFailed,
			Detail: fmt.Sprintf("expression must return boolean, got %T", result),
		}
	}
	return matched, nil
}

func (c *expressionCondition) Cost() int {
	return CostExpression
}
