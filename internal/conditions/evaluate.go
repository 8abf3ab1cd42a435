// internal/conditions/evaluate.go
package conditions

import "github.com/solatis/conditions/internal/types"

/*
 * Tree evaluation.
 *
 * Each node evaluates its items in document order and short-circuits:
 *   - AND stops at the first false item
 *   - OR stops at the first true item
 *
 * Items are never reordered: an item that errors is reached before any later
 * item could settle the node, so the error is returned exactly as a left-to-right
 * full evaluation would raise it. The error is annotated with the item path,
 * group and condstr. Cost is reported (Cost, Validate) but does not steer
 * evaluation.
 */

// Evaluate reports whether the tree holds for ctx.
func (l *CondList) Evaluate(ctx Context) (bool, error) {
	if l.leafRoot && len(l.Items) == 1 {
		return l.Items[0].evaluateAt(ctx, "")
	}
	return l.evaluateAt(ctx, "")
}

func (l *CondList) evaluateAt(ctx Context, path string) (bool, error) {
	if !l.Combinator.Valid() {
		return false, &types.InvalidConditionError{Path: path, Field: "combinator", Err: types.ErrUnknownCombinator}
	}
	if len(l.Items) == 0 {
		return l.Combinator == And, nil
	}

	// AND: continue while true. OR: continue while false.
	stopOn := l.Combinator == Or
	for idx, item := range l.Items {
		matched, err := item.evaluateAt(ctx, itemPath(path, idx))
		if err != nil {
			return false, err
		}
		if matched == stopOn {
			return stopOn, nil
		}
	}
	return !stopOn, nil
}

func (l *Leaf) evaluateAt(ctx Context, path string) (bool, error) {
	if l.cond == nil {
		return false, &types.InvalidConditionError{
			Path:    path,
			Group:   l.Group,
			Condstr: l.Condstr,
			Err:     types.ErrMalformedNode,
			Detail:  "leaf was not constructed with NewLeaf or Decode",
		}
	}
	matched, err := l.cond.Evaluate(ctx)
	if err != nil {
		return false, annotateEvaluation(err, path, l.Group, l.Condstr)
	}
	return matched, nil
}

func annotateEvaluation(err error, path, group, condstr string) error {
	evalErr, ok := types.AsEvaluationError(err)
	if !ok {
		return &types.EvaluationError{Path: path, Group: group, Condstr: condstr, Err: err}
	}
	annotated := *evalErr
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
