package conditions

import (
	"errors"
	"testing"

	"github.com/solatis/conditions/internal/types"
)

func TestQuery(t *testing.T) {
	ctx := Context{
		"orders": []any{
			map[string]any{"total": 40, "status": "paid"},
			map[string]any{"total": 75.5, "status": "open"},
		},
		"name": "acme",
	}

	tests := []struct {
		name    string
		args    Args
		want    bool
		wantErr error
	}{
		{name: "sum of totals", args: cmpArgs("[.orders[].total] | add", OpGt, 100), want: true},
		{name: "length", args: cmpArgs(".orders | length", OpEq, 2), want: true},
		{name: "first status", args: cmpArgs(".orders[0].status", OpEq, "paid"), want: true},
		{name: "collected statuses contain", args: cmpArgs("[.orders[].status]", OpContains, "open"), want: true},
		{name: "in list", args: cmpArgs(".name", OpIn, []any{"acme", "globex"}), want: true},
		{name: "no result", args: cmpArgs(".orders[] | select(.total > 1000)", OpEq, 1), wantErr: types.ErrMissingKey},
		{name: "runtime error", args: cmpArgs(".name.first", OpEq, "a"), wantErr: types.ErrExpressionFailed},
		{name: "incomparable", args: cmpArgs(".name", OpGt, 1), wantErr: types.ErrIncomparable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cond, err := New(Query, tt.args)
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			got, err := cond.Evaluate(ctx)
			if tt.wantErr != nil {
				if _, ok := types.AsEvaluationError(err); !ok || !errors.Is(err, tt.wantErr) {
					t.Fatalf("Evaluate() error = %v, want EvaluationError wrapping %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Evaluate() error = %v, want nil", err)
			}
			if got != tt.want {
				t.Errorf("Evaluate(%q) = %v, want %v", tt.args.Key, got, tt.want)
			}
		})
	}
}

func TestQuery_Construction(t *testing.T) {
	tests := []struct {
		name    string
		args    Args
		wantErr error
	}{
		{name: "parse error", args: cmpArgs(".orders[", OpEq, 1), wantErr: types.ErrInvalidKey},
		{name: "undefined function", args: cmpArgs("nosuchfn(1)", OpEq, 1), wantErr: types.ErrInvalidKey},
		{name: "unknown operator", args: cmpArgs(".a", OpGlob, "*"), wantErr: types.ErrUnknownOperator},
		{name: "in without list", args: cmpArgs(".a", OpIn, "x"), wantErr: types.ErrInvalidOperand},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(Query, tt.args)
			if _, ok := types.AsInvalidCondition(err); !ok || !errors.Is(err, tt.wantErr) {
				t.Errorf("New() error = %v, want InvalidConditionError wrapping %v", err, tt.wantErr)
			}
		})
	}
}
