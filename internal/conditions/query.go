// internal/conditions/query.go
package conditions

import (
	"encoding/json"
	"fmt"

	"github.com/itchyny/gojq"
	"github.com/solatis/conditions/internal/types"
)

// Query is a compare condition whose key is a jq query. The first value the query
// produces is compared with the operand; a query producing nothing is a missing key.
var Query CompareType = queryType{}

var queryOperators = map[string]OperatorFunc{
	OpEq:       Equal,
	OpNe:       NotEqual,
	OpLt:       LessThan,
	OpLte:      LessOrEqual,
	OpGt:       GreaterThan,
	OpGte:      GreaterOrEqual,
	OpContains: Contains,
	OpIn:       In,
}

type queryType struct{}

func (queryType) KeyRequired() bool                  { return true }
func (queryType) KeysAllowed() []string              { return nil }
func (queryType) KeyExample() string                 { return "[.orders[].total] | add" }
func (queryType) Operators() map[string]OperatorFunc { return queryOperators }
func (queryType) OperandExample() any                { return 100 }
func (queryType) HelpText() string                   { return "jq query result comparison." }
func (queryType) FullDescription() string {
	return "The key is a jq query run against the whole context. The first result is compared with the operand; a query without results fails evaluation as a missing key."
}

func (queryType) Build(args Args) (Condition, error) {
	query, err := gojq.Parse(args.Key)
	if err != nil {
		return nil, &types.InvalidConditionError{Field: "key", Err: types.ErrInvalidKey, Detail: fmt.Sprintf("parse error: %v", err)}
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return nil, &types.InvalidConditionError{Field: "key", Err: types.ErrInvalidKey, Detail: fmt.Sprintf("compile error: %v", err)}
	}
	if args.Operator == OpIn && !isList(args.Operand) {
		return nil, &types.InvalidConditionError{Field: "operand", Err: types.ErrInvalidOperand, Detail: "in requires a list operand"}
	}
	return &queryCondition{
		source:  args.Key,
		code:    code,
		fn:      queryOperators[args.Operator],
		operand: args.Operand,
	}, nil
}

type queryCondition struct {
	source  string
	code    *gojq.Code
	fn      OperatorFunc
	operand any
}

func (c *queryCondition) Evaluate(ctx Context) (bool, error) {
	input, err := normalizeJSON(ctx)
	if err != nil {
		return false, &types.EvaluationError{Key: c.source, Err: types.ErrExpressionFailed, Detail: err.Error()}
	}

	iter := c.code.Run(input)
	v, ok := iter.Next()
	if !ok {
		return false, &types.EvaluationError{Key: c.source, Err: types.ErrMissingKey, Detail: "query produced no result"}
	}
	if qerr, isErr := v.(error); isErr {
		return false, &types.EvaluationError{Key: c.source, Err: types.ErrExpressionFailed, Detail: qerr.Error()}
	}

	matched, err := c.fn(v, c.operand)
	if err != nil {
		return false, &types.EvaluationError{Key: c.source, Err: err}
	}
	return matched, nil
}

func (c *queryCondition) Cost() int {
	return CostQuery
}

// normalizeJSON converts a context to the plain JSON value types gojq accepts.
func normalizeJSON(ctx Context) (any, error) {
	data, err := json.Marshal(ctx)
	if err != nil {
		return nil, fmt.Errorf("context is not JSON-serializable: %w", err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
