// Package api implements the conditions.v1.ConditionService gRPC service.
//
// Messages are google.protobuf.Struct values so the wire format mirrors the
// JSON condition grammar without a generated protobuf package. The service is
// a thin orchestration layer over the conditions engine and the store.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/solatis/conditions/internal/conditions"
	"github.com/solatis/conditions/internal/core/auth"
	"github.com/solatis/conditions/internal/core/store"
	"github.com/solatis/conditions/internal/logging"
	"github.com/solatis/conditions/internal/metrics"
	"github.com/solatis/conditions/internal/types"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// ConditionService implements ConditionServer.
type ConditionService struct {
	defs    conditions.Definitions
	store   *store.Store
	metrics *metrics.Metrics
	log     *slog.Logger
}

var _ ConditionServer = (*ConditionService)(nil)

// Option configures a ConditionService.
type Option func(*ConditionService)

// WithStore enables the condition set methods and set references in Evaluate.
func WithStore(s *store.Store) Option {
	return func(svc *ConditionService) { svc.store = s }
}

// WithMetrics records decode and evaluation outcomes in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(svc *ConditionService) { svc.metrics = m }
}

// WithLogger sets the service logger.
func WithLogger(log *slog.Logger) Option {
	return func(svc *ConditionService) { svc.log = log }
}

// NewConditionService creates a service decoding against defs.
func NewConditionService(defs conditions.Definitions, opts ...Option) (*ConditionService, error) {
	if len(defs) == 0 {
		return nil, fmt.Errorf("definitions cannot be empty")
	}
	if err := defs.Validate(); err != nil {
		return nil, fmt.Errorf("invalid definitions: %w", err)
	}

	svc := &ConditionService{defs: defs, log: logging.Discard()}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Validate decodes the "conditions" field. Invalid trees are reported in the
// response ("valid": false plus an "error" object) rather than as a status.
func (s *ConditionService) Validate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.AsMap()
	raw, ok := fields["conditions"]
	if !ok {
		return nil, status.Error(codes.InvalidArgument, "conditions required")
	}

	list, err := s.decode(raw)
	if err != nil {
		invalid, ok := types.AsInvalidCondition(err)
		if !ok {
			return nil, toStatus(s.log, err)
		}
		return newStruct(map[string]any{
			"valid": false,
			"error": invalidDetails(invalid),
		})
	}

	return newStruct(map[string]any{
		"valid":           true,
		"cost":            list.Cost(),
		"leaves":          list.Len(),
		"leaf_conditions": leafSummaries(list),
		"conditions":      list.Encode(),
	})
}

// Evaluate evaluates inline "conditions", or a stored set referenced by
// "set_id" or "set_name", against the "context" object.
func (s *ConditionService) Evaluate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.AsMap()

	evalCtx := conditions.Context{}
	if raw, ok := fields["context"]; ok {
		m, ok := raw.(map[string]any)
		if !ok {
			return nil, status.Error(codes.InvalidArgument, "context must be an object")
		}
		evalCtx = m
	}

	list, setID, err := s.resolve(ctx, fields)
	if err != nil {
		return nil, toStatus(s.log, err)
	}

	start := time.Now()
	result, err := list.Evaluate(evalCtx)
	if s.metrics != nil {
		s.metrics.RecordEvaluation(result, err, time.Since(start))
	}
	if err != nil {
		s.log.DebugContext(ctx, "evaluation failed", slog.String("set_id", setID), slog.Any("error", err))
		return nil, toStatus(s.log, err)
	}

	resp := map[string]any{"result": result}
	if setID != "" {
		resp["set_id"] = setID
	}
	return newStruct(resp)
}

// resolve returns the tree to evaluate and, for stored sets, its ID.
func (s *ConditionService) resolve(ctx context.Context, fields map[string]any) (*conditions.CondList, string, error) {
	raw, inline := fields["conditions"]
	id, err := optionalString(fields, "set_id")
	if err != nil {
		return nil, "", err
	}
	name, err := optionalString(fields, "set_name")
	if err != nil {
		return nil, "", err
	}

	sources := 0
	for _, present := range []bool{inline, id != "", name != ""} {
		if present {
			sources++
		}
	}
	if sources != 1 {
		return nil, "", status.Error(codes.InvalidArgument, "exactly one of conditions, set_id or set_name required")
	}

	if inline {
		list, err := s.decode(raw)
		return list, "", err
	}

	if s.store == nil {
		return nil, "", status.Error(codes.Unimplemented, "condition set storage not configured")
	}

	var set *types.ConditionSet
	if id != "" {
		set, err = s.store.Get(ctx, types.SetID(id))
	} else {
		set, err = s.store.GetByName(ctx, name)
	}
	if err != nil {
		return nil, "", err
	}

	list, err := conditions.DecodeJSON(set.Conditions, s.defs)
	s.recordDecode(err)
	return list, string(set.ID), err
}

// Describe returns the registry introspection under "groups".
func (s *ConditionService) Describe(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	groups, err := toJSONValue(s.defs.Describe())
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return newStruct(map[string]any{"groups": groups})
}

func (s *ConditionService) decode(raw any) (*conditions.CondList, error) {
	list, err := conditions.Decode(raw, s.defs)
	s.recordDecode(err)
	return list, err
}

func (s *ConditionService) recordDecode(err error) {
	if s.metrics != nil {
		s.metrics.RecordDecode(err)
	}
}

func (s *ConditionService) requireStore() error {
	if s.store == nil {
		return status.Error(codes.Unimplemented, "condition set storage not configured")
	}
	return nil
}

// principalName returns the authenticated key name for logging.
func principalName(ctx context.Context) string {
	if p, ok := auth.PrincipalFromContext(ctx); ok {
		return p.Name
	}
	return ""
}

// leafSummaries lists each leaf with its node path and evaluation cost.
func leafSummaries(list *conditions.CondList) []any {
	out := make([]any, 0, list.Len())
	list.Walk(func(path string, leaf *conditions.Leaf) {
		entry := map[string]any{
			"path":    path,
			"group":   leaf.Group,
			"condstr": leaf.Condstr,
			"cost":    leaf.Cost(),
		}
		if leaf.Args.Key != "" {
			entry["key"] = leaf.Args.Key
		}
		if leaf.Args.Operator != "" {
			entry["operator"] = leaf.Args.Operator
		}
		out = append(out, entry)
	})
	return out
}

func invalidDetails(e *types.InvalidConditionError) map[string]any {
	return map[string]any{
		"message": e.Error(),
		"path":    e.Path,
		"group":   e.Group,
		"condstr": e.Condstr,
		"field":   e.Field,
		"detail":  e.Detail,
	}
}

func optionalString(fields map[string]any, name string) (string, error) {
	raw, ok := fields[name]
	if !ok {
		return "", nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", status.Errorf(codes.InvalidArgument, "%s must be a string", name)
	}
	return s, nil
}

// toJSONValue converts v to the generic JSON form structpb accepts.
func toJSONValue(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func newStruct(m map[string]any) (*structpb.Struct, error) {
	st, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to build response: %v", err)
	}
	return st, nil
}
