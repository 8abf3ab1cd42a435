package types

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for condition decoding, construction and evaluation.
var (
	// ErrMalformedNode indicates a node does not match the condition grammar.
	ErrMalformedNode = errors.New("malformed condition node")

	// ErrUnknownCombinator indicates a combinator other than AND/OR.
	ErrUnknownCombinator = errors.New("unknown combinator")

	// ErrUnknownGroup indicates a leaf references a group missing from the definitions.
	ErrUnknownGroup = errors.New("unknown condition group")

	// ErrUnknownCondition indicates a leaf references a condstr missing from its group.
	ErrUnknownCondition = errors.New("unknown condition")

	// ErrKeyRequired indicates a condition type requires a key and none was given.
	ErrKeyRequired = errors.New("key required")

	// ErrKeyNotAllowed indicates the key is not in the type's allowed keys.
	ErrKeyNotAllowed = errors.New("key not allowed")

	// ErrInvalidKey indicates a key selector that cannot be parsed.
	ErrInvalidKey = errors.New("invalid key")

	// ErrUnknownOperator indicates an operator not declared by the condition type.
	ErrUnknownOperator = errors.New("unknown operator")

	// ErrNoOperators indicates a compare condition type declares no operators.
	ErrNoOperators = errors.New("condition type declares no operators")

	// ErrOperatorNotSupported indicates operator/operand given to a non-compare type.
	ErrOperatorNotSupported = errors.New("condition type does not take an operator")

	// ErrInvalidOperand indicates an operand the condition type cannot compare against.
	ErrInvalidOperand = errors.New("invalid operand")

	// ErrTooDeep indicates nesting deeper than MaxDepth.
	ErrTooDeep = errors.New("conditions nested too deeply")

	// ErrTooManyItems indicates a combinator node with more than MaxItems children.
	ErrTooManyItems = errors.New("combinator has too many items")

	// ErrMissingKey indicates the evaluation context lacks a required key.
	ErrMissingKey = errors.New("key missing from context")

	// ErrCoercionFailed indicates type coercion failed.
	ErrCoercionFailed = errors.New("type coercion failed")

	// ErrIncomparable indicates the resolved value and operand cannot be compared.
	ErrIncomparable = errors.New("values are not comparable")

	// ErrExpressionFailed indicates an expression or query failed at evaluation time.
	ErrExpressionFailed = errors.New("expression evaluation failed")

	// ErrFieldNotFound indicates a key path could not be resolved.
	ErrFieldNotFound = errors.New("field not found")

	// ErrSetNotFound indicates a stored condition set does not exist.
	ErrSetNotFound = errors.New("condition set not found")

	// ErrInvalidSetName indicates an empty or over-long condition set name.
	ErrInvalidSetName = errors.New("invalid condition set name")

	// ErrInvalidSetID indicates a condition set ID that is not a UUID.
	ErrInvalidSetID = errors.New("invalid condition set id")
)

// InvalidConditionError reports a decode-time or construction-time failure.
// Path locates the node inside the encoded tree ("" for the root).
type InvalidConditionError struct {
	Path    string
	Group   string
	Condstr string
	Field   string
	Detail  string
	Err     error
}

func (e *InvalidConditionError) Error() string {
	return formatConditionError("invalid condition", e.Path, e.Group, e.Condstr, e.Field, e.Detail, e.Err)
}

func (e *InvalidConditionError) Unwrap() error {
	return e.Err
}

// EvaluationError reports a runtime failure while evaluating against a context.
type EvaluationError struct {
	Path    string
	Group   string
	Condstr string
	Key     string
	Detail  string
	Err     error
}

func (e *EvaluationError) Error() string {
	field := ""
	if e.Key != "" {
		field = "key " + e.Key
	}
	return formatConditionError("evaluation failed", e.Path, e.Group, e.Condstr, field, e.Detail, e.Err)
}

func (e *EvaluationError) Unwrap() error {
	return e.Err
}

// formatConditionError renders: prefix at <path> (<group>/<condstr>) <field>: <err>: <detail>
func formatConditionError(prefix, path, group, condstr, field, detail string, err error) string {
	var b strings.Builder
	b.WriteString(prefix)
	if path != "" {
		fmt.Fprintf(&b, " at %s", path)
	}
	if group != "" || condstr != "" {
		fmt.Fprintf(&b, " (%s/%s)", group, condstr)
	}
	if field != "" {
		fmt.Fprintf(&b, " %s", field)
	}
	if err != nil {
		fmt.Fprintf(&b, ": %v", err)
	}
	if detail != "" {
		fmt.Fprintf(&b, ": %s", detail)
	}
	return b.String()
}

// AsInvalidCondition returns the first InvalidConditionError in err's chain.
func AsInvalidCondition(err error) (*InvalidConditionError, bool) {
	var target *InvalidConditionError
	ok := errors.As(err, &target)
	return target, ok
}

// AsEvaluationError returns the first EvaluationError in err's chain.
func AsEvaluationError(err error) (*EvaluationError, bool) {
	var target *EvaluationError
	ok := errors.As(err, &target)
	return target, ok
}
