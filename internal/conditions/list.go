// internal/conditions/list.go
package conditions

import (
	"fmt"

	"github.com/solatis/conditions/internal/types"
)

/*
 * CondList: the composite condition tree.
 *
 * An Entry is either a *CondList (combinator node) or a *Leaf (one condition
 * instance). The interface is sealed so the union stays closed.
 *
 * Combinator semantics, per node:
 *   - AND: true iff every item is true; an empty AND is true
 *   - OR:  true iff at least one item is true; an empty OR is false
 *
 * Mixed AND/OR nesting is allowed at any level. A tree owns its entries; nothing
 * is shared between trees, and a decoded tree is not mutated by any operation here.
 */

// Combinator joins the items of a CondList.
type Combinator string

const (
	And Combinator = "AND"
	Or  Combinator = "OR"
)

// Valid reports whether c is AND or OR (case-sensitive).
func (c Combinator) Valid() bool {
	return c == And || c == Or
}

// Entry is one item of a CondList.
type Entry interface {
	// Encode returns the JSON-safe form of the entry.
	Encode() any
	// Cost estimates evaluation cost for ordering.
	Cost() int
	evaluateAt(ctx Context, path string) (bool, error)
	depth() int
}

// CondList is an ordered collection of entries under one combinator.
type CondList struct {
	Combinator Combinator
	Items      []Entry

	// leafRoot marks a tree decoded from a bare leaf; it encodes back to that leaf.
	leafRoot bool
}

// Leaf binds a registered condition type instance to its encoded fields.
type Leaf struct {
	Group   string
	Condstr string
	Args    Args

	cond Condition
}

// NewCondList builds a combinator node after checking the combinator and limits.
func NewCondList(c Combinator, items ...Entry) (*CondList, error) {
	if !c.Valid() {
		return nil, &types.InvalidConditionError{Field: "combinator", Err: types.ErrUnknownCombinator, Detail: fmt.Sprintf("%q", c)}
	}
	if len(items) > types.MaxItems {
		return nil, &types.InvalidConditionError{Field: "items", Err: types.ErrTooManyItems}
	}
	for i, item := range items {
		if item == nil {
			return nil, &types.InvalidConditionError{Path: itemPath("", i), Err: types.ErrMalformedNode, Detail: "nil entry"}
		}
	}
	l := &CondList{Combinator: c, Items: items}
	if l.depth() > types.MaxDepth {
		return nil, &types.InvalidConditionError{Err: types.ErrTooDeep}
	}
	return l, nil
}

// All is shorthand for an AND node; it panics on invalid input and is meant for
// statically known trees.
func All(items ...Entry) *CondList {
	return must(NewCondList(And, items...))
}

// Any is shorthand for an OR node; see All.
func Any(items ...Entry) *CondList {
	return must(NewCondList(Or, items...))
}

func must(l *CondList, err error) *CondList {
	if err != nil {
		panic(err)
	}
	return l
}

// NewLeaf looks up group/condstr in defs and constructs the condition.
func NewLeaf(defs Definitions, group, condstr string, args Args) (*Leaf, error) {
	t, err := defs.Lookup(group, condstr)
	if err != nil {
		return nil, err
	}
	cond, err := New(t, args)
	if err != nil {
		return nil, annotateInvalid(err, "", group, condstr)
	}
	return &Leaf{Group: group, Condstr: condstr, Args: args, cond: cond}, nil
}

// Condition returns the constructed condition instance.
func (l *Leaf) Condition() Condition {
	return l.cond
}

func (l *Leaf) Cost() int {
	return entryCost(l.cond)
}

func (l *Leaf) depth() int {
	return 0
}

func (l *CondList) Cost() int {
	total := CostCombinator
	for _, item := range l.Items {
		total += item.Cost()
	}
	return total
}

func (l *CondList) depth() int {
	deepest := 0
	for _, item := range l.Items {
		if d := item.depth(); d > deepest {
			deepest = d
		}
	}
	return deepest + 1
}

// Len returns the number of leaves in the tree.
func (l *CondList) Len() int {
	n := 0
	for _, item := range l.Items {
		switch e := item.(type) {
		case *CondList:
			n += e.Len()
		case *Leaf:
			n++
		}
	}
	return n
}

// Walk visits every leaf in encoded order with its node path. A tree decoded
// from a bare leaf reports that leaf at the root path "".
func (l *CondList) Walk(fn func(path string, leaf *Leaf)) {
	if l.leafRoot && len(l.Items) == 1 {
		if leaf, ok := l.Items[0].(*Leaf); ok {
			fn("", leaf)
			return
		}
	}
	l.walk("", fn)
}

func (l *CondList) walk(prefix string, fn func(path string, leaf *Leaf)) {
	for i, item := range l.Items {
		path := itemPath(prefix, i)
		switch e := item.(type) {
		case *CondList:
			e.walk(path, fn)
		case *Leaf:
			fn(path, e)
		}
	}
}

func itemPath(prefix string, i int) string {
	return fmt.Sprintf("%sitems[%d]", joinPrefix(prefix), i)
}

func joinPrefix(prefix string) string {
	if prefix == "" {
		return ""
	}
	return prefix + "."
}
