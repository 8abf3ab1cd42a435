// internal/conditions/decode.go
package conditions

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/solatis/conditions/internal/types"
)

/*
 * Decoding: JSON-safe structure -> CondList.
 *
 * Grammar:
 *   node            := combinator_node | leaf_node
 *   combinator_node := { "combinator": "AND"|"OR", "items": [node, ...] }
 *   leaf_node       := { "group": str, "condstr": str, "key"?: str, "operator"?: str, "operand"?: any }
 *
 * Decoding is strict. Unknown fields, wrong types, missing fields, empty key or
 * operator strings and nodes mixing combinator and leaf fields are all rejected
 * with *types.InvalidConditionError carrying the node path ("items[2].items[0]").
 * The first error in document order wins.
 *
 * A leaf at the root is accepted; the resulting CondList remembers this and
 * encodes back to the bare leaf.
 */

var (
	combinatorFields = []string{"combinator", "items"}
	leafFields       = []string{"group", "condstr", "key", "operator", "operand"}
)

// DecodeJSON parses a JSON document and decodes it against defs.
func DecodeJSON(data []byte, defs Definitions) (*CondList, error) {
	if len(data) > types.MaxDocumentSize {
		return nil, &types.InvalidConditionError{
			Err:    types.ErrMalformedNode,
			Detail: fmt.Sprintf("document exceeds %d bytes", types.MaxDocumentSize),
		}
	}
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &types.InvalidConditionError{Err: types.ErrMalformedNode, Detail: fmt.Sprintf("invalid JSON: %v", err)}
	}
	return Decode(raw, defs)
}

// Decode validates data against the grammar and defs and builds the tree.
func Decode(data any, defs Definitions) (*CondList, error) {
	node, ok := data.(map[string]any)
	if !ok {
		return nil, malformed("", "", fmt.Sprintf("expected object, got %s", jsonKind(data)))
	}
	if isLeafNode(node) {
		leaf, err := decodeLeaf(node, "", defs)
		if err != nil {
			return nil, err
		}
		return &CondList{Combinator: And, Items: []Entry{leaf}, leafRoot: true}, nil
	}
	return decodeList(node, "", 1, defs)
}

func decodeNode(data any, path string, depth int, defs Definitions) (Entry, error) {
	node, ok := data.(map[string]any)
	if !ok {
		return nil, malformed(path, "", fmt.Sprintf("expected object, got %s", jsonKind(data)))
	}
	if isLeafNode(node) {
		return decodeLeaf(node, path, defs)
	}
	return decodeList(node, path, depth, defs)
}

func isLeafNode(node map[string]any) bool {
	_, hasGroup := node["group"]
	_, hasCondstr := node["condstr"]
	return hasGroup || hasCondstr
}

func decodeList(node map[string]any, path string, depth int, defs Definitions) (*CondList, error) {
	if depth > types.MaxDepth {
		return nil, &types.InvalidConditionError{Path: path, Err: types.ErrTooDeep, Detail: fmt.Sprintf("limit is %d", types.MaxDepth)}
	}
	if err := checkFields(node, path, combinatorFields); err != nil {
		return nil, err
	}

	rawComb, ok := node["combinator"]
	if !ok {
		return nil, malformed(path, "combinator", "missing required field")
	}
	name, ok := rawComb.(string)
	if !ok {
		return nil, malformed(path, "combinator", fmt.Sprintf("expected string, got %s", jsonKind(rawComb)))
	}
	comb := Combinator(name)
	if !comb.Valid() {
		return nil, &types.InvalidConditionError{
			Path:   path,
			Field:  "combinator",
			Err:    types.ErrUnknownCombinator,
			Detail: fmt.Sprintf("%q, want %q or %q", name, And, Or),
		}
	}

	rawItems, ok := node["items"]
	if !ok {
		return nil, malformed(path, "items", "missing required field")
	}
	items, ok := rawItems.([]any)
	if !ok {
		return nil, malformed(path, "items", fmt.Sprintf("expected array, got %s", jsonKind(rawItems)))
	}
	if len(items) > types.MaxItems {
		return nil, &types.InvalidConditionError{
			Path:   path,
			Field:  "items",
			Err:    types.ErrTooManyItems,
			Detail: fmt.Sprintf("%d items, limit is %d", len(items), types.MaxItems),
		}
	}

	list := &CondList{Combinator: comb, Items: make([]Entry, 0, len(items))}
	for i, raw := range items {
		entry, err := decodeNode(raw, itemPath(path, i), depth+1, defs)
		if err != nil {
			return nil, err
		}
		list.Items = append(list.Items, entry)
	}
	return list, nil
}

func decodeLeaf(node map[string]any, path string, defs Definitions) (*Leaf, error) {
	if err := checkFields(node, path, leafFields); err != nil {
		return nil, err
	}

	group, err := requiredString(node, path, "group")
	if err != nil {
		return nil, err
	}
	condstr, err := requiredString(node, path, "condstr")
	if err != nil {
		return nil, err
	}

	var args Args
	if args.Key, err = optionalString(node, path, "key"); err != nil {
		return nil, annotateInvalid(err, path, group, condstr)
	}
	if args.Operator, err = optionalString(node, path, "operator"); err != nil {
		return nil, annotateInvalid(err, path, group, condstr)
	}
	args.Operand, args.HasOperand = node["operand"]

	leaf, err := NewLeaf(defs, group, condstr, args)
	if err != nil {
		return nil, annotateInvalid(err, path, group, condstr)
	}
	return leaf, nil
}

func checkFields(node map[string]any, path string, allowed []string) error {
	var unknown []string
	for field := range node {
		if !slices.Contains(allowed, field) {
			unknown = append(unknown, field)
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	slices.Sort(unknown)
	return malformed(path, unknown[0], fmt.Sprintf("unexpected field, allowed: %v", allowed))
}

func requiredString(node map[string]any, path, field string) (string, error) {
	raw, ok := node[field]
	if !ok {
		return "", malformed(path, field, "missing required field")
	}
	s, ok := raw.(string)
	if !ok {
		return "", malformed(path, field, fmt.Sprintf("expected string, got %s", jsonKind(raw)))
	}
	return s, nil
}

// optionalString returns "" when the field is absent; present values must be
// non-empty strings.
func optionalString(node map[string]any, path, field string) (string, error) {
	raw, ok := node[field]
	if !ok {
		return "", nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", malformed(path, field, fmt.Sprintf("expected string, got %s", jsonKind(raw)))
	}
	if s == "" {
		return "", malformed(path, field, "must not be empty")
	}
	return s, nil
}

func malformed(path, field, detail string) error {
	return &types.InvalidConditionError{Path: path, Field: field, Err: types.ErrMalformedNode, Detail: detail}
}

// annotateInvalid fills in location fields the producer of err did not know.
func annotateInvalid(err error, path, group, condstr string) error {
	invalid, ok := types.AsInvalidCondition(err)
	if !ok {
		return &types.InvalidConditionError{Path: path, Group: group, Condstr: condstr, Err: err}
	}
	annotated := *invalid
	if annotated.Path == "" {
		annotated.Path = path
	}
	if annotated.Group == "" {
		annotated.Group = group
	}
	if annotated.Condstr == "" {
		annotated.Condstr = condstr
	}
	return &annotated
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case float64, float32, int, int64, int32, uint, uint64, json.Number:
		return "number"
	default:
		return fmt.Sprintf("%T", v)
	}
}
