// internal/conditions/encode.go
package conditions

import "encoding/json"

// Encode returns the JSON-safe form of the tree. It is the inverse of Decode:
// decoding the result with the same definitions yields an equivalent tree.
func (l *CondList) Encode() any {
	if l.leafRoot && len(l.Items) == 1 {
		return l.Items[0].Encode()
	}
	items := make([]any, 0, len(l.Items))
	for _, item := range l.Items {
		items = append(items, item.Encode())
	}
	return map[string]any{
		"combinator": string(l.Combinator),
		"items":      items,
	}
}

// Encode returns the leaf node; key, operator and operand appear only when set.
func (l *Leaf) Encode() any {
	node := map[string]any{
		"group":   l.Group,
		"condstr": l.Condstr,
	}
	if l.Args.Key != "" {
		node["key"] = l.Args.Key
	}
	if l.Args.Operator != "" {
		node["operator"] = l.Args.Operator
	}
	if l.Args.HasOperand {
		node["operand"] = l.Args.Operand
	}
	return node
}

func (l *CondList) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.Encode())
}

func (l *Leaf) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.Encode())
}
