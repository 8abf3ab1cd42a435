package api

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/solatis/conditions/internal/conditions"
	"github.com/solatis/conditions/internal/core/db"
	"github.com/solatis/conditions/internal/core/store"
	"github.com/solatis/conditions/internal/logging"
	"github.com/solatis/conditions/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

var scoreTree = map[string]any{
	"combinator": "AND",
	"items": []any{
		map[string]any{"group": "numbers", "condstr": "gt", "key": "score", "operator": "gt", "operand": 10},
	},
}

func testDefinitions() conditions.Definitions {
	return conditions.Definitions{
		"numbers": {"gt": conditions.Number},
		"flags":   {"always": conditions.Always, "never": conditions.Never},
	}
}

func newTestService(t *testing.T, withStore bool) (*ConditionService, *metrics.Metrics) {
	t.Helper()
	m := metrics.New()
	opts := []Option{WithMetrics(m), WithLogger(logging.Discard())}

	if withStore {
		ctx := context.Background()
		conn, err := db.Open(ctx, "sqlite://"+filepath.Join(t.TempDir(), "api.db"))
		require.NoError(t, err)
		t.Cleanup(func() { conn.Close() })
		require.NoError(t, db.MigrateUp(ctx, conn))
		q, err := db.LoadQueries(conn)
		require.NoError(t, err)
		opts = append(opts, WithStore(store.New(q, testDefinitions(), store.WithMetrics(m))))
	}

	svc, err := NewConditionService(testDefinitions(), opts...)
	require.NoError(t, err)
	return svc, m
}

func mustStruct(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	st, err := structpb.NewStruct(m)
	require.NoError(t, err)
	return st
}

func TestNewConditionService_RejectsEmptyDefinitions(t *testing.T) {
	_, err := NewConditionService(nil)
	assert.Error(t, err)

	_, err = NewConditionService(conditions.Definitions{"g": {"": conditions.Always}})
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	ctx := context.Background()
	svc, m := newTestService(t, false)

	resp, err := svc.Validate(ctx, mustStruct(t, map[string]any{"conditions": scoreTree}))
	require.NoError(t, err)
	fields := resp.AsMap()
	assert.Equal(t, true, fields["valid"])
	assert.Equal(t, 1.0, fields["leaves"])
	leaves := fields["leaf_conditions"].([]any)
	require.Len(t, leaves, 1)
	leaf := leaves[0].(map[string]any)
	assert.Equal(t, "items[0]", leaf["path"])
	assert.Equal(t, "score", leaf["key"])
	assert.Equal(t, "gt", leaf["operator"])
	assert.Equal(t, "AND", fields["conditions"].(map[string]any)["combinator"])

	bad := map[string]any{"combinator": "AND", "items": []any{
		map[string]any{"group": "flags", "condstr": "always"},
		map[string]any{"group": "strings", "condstr": "eq"},
	}}
	resp, err = svc.Validate(ctx, mustStruct(t, map[string]any{"conditions": bad}))
	require.NoError(t, err)
	fields = resp.AsMap()
	assert.Equal(t, false, fields["valid"])
	details := fields["error"].(map[string]any)
	assert.Equal(t, "items[1]", details["path"])
	assert.Equal(t, "group", details["field"])

	_, err = svc.Validate(ctx, mustStruct(t, map[string]any{}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.DecodesTotal.WithLabelValues(metrics.OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DecodesTotal.WithLabelValues(metrics.OutcomeInvalid)))
}

func TestEvaluate_Inline(t *testing.T) {
	ctx := context.Background()
	svc, m := newTestService(t, false)

	tests := []struct {
		name  string
		score any
		want  bool
	}{
		{"above threshold", 15, true},
		{"below threshold", 5, false},
		{"numeric string", "11", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := svc.Evaluate(ctx, mustStruct(t, map[string]any{
				"conditions": scoreTree,
				"context":    map[string]any{"score": tt.score},
			}))
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.AsMap()["result"])
		})
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.EvaluationsTotal.WithLabelValues("true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EvaluationsTotal.WithLabelValues("false")))
}

func TestEvaluate_Errors(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, false)

	t.Run("missing key is failed precondition", func(t *testing.T) {
		_, err := svc.Evaluate(ctx, mustStruct(t, map[string]any{
			"conditions": scoreTree,
			"context":    map[string]any{"other": 1},
		}))
		st := status.Convert(err)
		require.Equal(t, codes.FailedPrecondition, st.Code())
		require.Len(t, st.Details(), 1)
		info, ok := st.Details()[0].(*errdetails.ErrorInfo)
		require.True(t, ok)
		assert.Equal(t, "items[0]", info.Metadata["path"])
		assert.Equal(t, "score", info.Metadata["key"])
	})

	t.Run("invalid tree is invalid argument", func(t *testing.T) {
		_, err := svc.Evaluate(ctx, mustStruct(t, map[string]any{
			"conditions": map[string]any{"combinator": "XOR", "items": []any{}},
		}))
		st := status.Convert(err)
		require.Equal(t, codes.InvalidArgument, st.Code())
		require.Len(t, st.Details(), 1)
		br, ok := st.Details()[0].(*errdetails.BadRequest)
		require.True(t, ok)
		assert.Equal(t, "combinator", br.FieldViolations[0].Field)
	})

	t.Run("context must be an object", func(t *testing.T) {
		_, err := svc.Evaluate(ctx, mustStruct(t, map[string]any{"conditions": scoreTree, "context": "x"}))
		assert.Equal(t, codes.InvalidArgument, status.Code(err))
	})

	t.Run("exactly one source", func(t *testing.T) {
		_, err := svc.Evaluate(ctx, mustStruct(t, map[string]any{}))
		assert.Equal(t, codes.InvalidArgument, status.Code(err))

		_, err = svc.Evaluate(ctx, mustStruct(t, map[string]any{"conditions": scoreTree, "set_name": "x"}))
		assert.Equal(t, codes.InvalidArgument, status.Code(err))
	})

	t.Run("stored sets need a store", func(t *testing.T) {
		_, err := svc.Evaluate(ctx, mustStruct(t, map[string]any{"set_name": "x"}))
		assert.Equal(t, codes.Unimplemented, status.Code(err))
	})
}

func TestDescribe(t *testing.T) {
	svc, _ := newTestService(t, false)
	resp, err := svc.Describe(context.Background(), mustStruct(t, map[string]any{}))
	require.NoError(t, err)

	groups := resp.AsMap()["groups"].([]any)
	require.Len(t, groups, 2)
	first := groups[0].(map[string]any)
	assert.Equal(t, "flags", first["groupname"])
	second := groups[1].(map[string]any)
	gt := second["conditions"].([]any)[0].(map[string]any)
	assert.Equal(t, "gt", gt["condstr"])
	assert.Equal(t, true, gt["operator_required"])
}

func TestConditionSets(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, true)

	put, err := svc.PutConditionSet(ctx, mustStruct(t, map[string]any{"name": "high-score", "conditions": scoreTree}))
	require.NoError(t, err)
	id := put.AsMap()["id"].(string)
	require.NotEmpty(t, id)

	got, err := svc.GetConditionSet(ctx, mustStruct(t, map[string]any{"name": "high-score"}))
	require.NoError(t, err)
	assert.Equal(t, id, got.AsMap()["id"])
	assert.Equal(t, scoreTree["combinator"], got.AsMap()["conditions"].(map[string]any)["combinator"])

	resp, err := svc.Evaluate(ctx, mustStruct(t, map[string]any{"set_id": id, "context": map[string]any{"score": 50}}))
	require.NoError(t, err)
	assert.Equal(t, true, resp.AsMap()["result"])
	assert.Equal(t, id, resp.AsMap()["set_id"])

	list, err := svc.ListConditionSets(ctx, mustStruct(t, map[string]any{}))
	require.NoError(t, err)
	assert.Len(t, list.AsMap()["sets"], 1)

	_, err = svc.DeleteConditionSet(ctx, mustStruct(t, map[string]any{"id": id}))
	require.NoError(t, err)

	tests := []struct {
		name string
		call func() error
		want codes.Code
	}{
		{"get deleted", func() error {
			_, err := svc.GetConditionSet(ctx, mustStruct(t, map[string]any{"id": id}))
			return err
		}, codes.NotFound},
		{"evaluate deleted", func() error {
			_, err := svc.Evaluate(ctx, mustStruct(t, map[string]any{"set_id": id}))
			return err
		}, codes.NotFound},
		{"get malformed id", func() error {
			_, err := svc.GetConditionSet(ctx, mustStruct(t, map[string]any{"id": "nope"}))
			return err
		}, codes.InvalidArgument},
		{"get without reference", func() error {
			_, err := svc.GetConditionSet(ctx, mustStruct(t, map[string]any{}))
			return err
		}, codes.InvalidArgument},
		{"put empty name", func() error {
			_, err := svc.PutConditionSet(ctx, mustStruct(t, map[string]any{"conditions": scoreTree}))
			return err
		}, codes.InvalidArgument},
		{"put invalid tree", func() error {
			_, err := svc.PutConditionSet(ctx, mustStruct(t, map[string]any{"name": "x", "conditions": map[string]any{}}))
			return err
		}, codes.InvalidArgument},
		{"delete without id", func() error {
			_, err := svc.DeleteConditionSet(ctx, mustStruct(t, map[string]any{}))
			return err
		}, codes.InvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, status.Code(tt.call()))
		})
	}
}

func TestToStatus_StorageFailureIsUnavailable(t *testing.T) {
	err := toStatus(logging.Discard(), assert.AnError)
	assert.Equal(t, codes.Unavailable, status.Code(err))
	assert.NotContains(t, err.Error(), assert.AnError.Error())

	assert.Equal(t, codes.DeadlineExceeded, status.Code(toStatus(logging.Discard(), context.DeadlineExceeded)))
	assert.NoError(t, toStatus(logging.Discard(), nil))
}
