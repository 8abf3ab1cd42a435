package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/solatis/conditions/internal/types"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// PutConditionSet stores "conditions" under "name", replacing any set with
// the same name.
func (s *ConditionService) PutConditionSet(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if err := s.requireStore(); err != nil {
		return nil, err
	}
	fields := req.AsMap()

	name, err := optionalString(fields, "name")
	if err != nil {
		return nil, err
	}
	raw, ok := fields["conditions"]
	if !ok {
		return nil, status.Error(codes.InvalidArgument, "conditions required")
	}

	list, err := s.decode(raw)
	if err != nil {
		return nil, toStatus(s.log, err)
	}

	set, err := s.store.Put(ctx, name, list)
	if err != nil {
		return nil, toStatus(s.log, err)
	}

	s.log.InfoContext(ctx, "stored condition set",
		slog.String("set_id", string(set.ID)),
		slog.String("name", set.Name),
		slog.String("principal", principalName(ctx)),
	)
	return setStruct(set)
}

// GetConditionSet returns the set referenced by "id" or "name".
func (s *ConditionService) GetConditionSet(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if err := s.requireStore(); err != nil {
		return nil, err
	}
	fields := req.AsMap()

	id, err := optionalString(fields, "id")
	if err != nil {
		return nil, err
	}
	name, err := optionalString(fields, "name")
	if err != nil {
		return nil, err
	}

	var set *types.ConditionSet
	switch {
	case id != "" && name != "":
		return nil, status.Error(codes.InvalidArgument, "only one of id or name allowed")
	case id != "":
		set, err = s.store.Get(ctx, types.SetID(id))
	case name != "":
		set, err = s.store.GetByName(ctx, name)
	default:
		return nil, status.Error(codes.InvalidArgument, "id or name required")
	}
	if err != nil {
		return nil, toStatus(s.log, err)
	}
	return setStruct(set)
}

// ListConditionSets returns all stored sets under "sets".
func (s *ConditionService) ListConditionSets(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if err := s.requireStore(); err != nil {
		return nil, err
	}
	sets, err := s.store.List(ctx)
	if err != nil {
		return nil, toStatus(s.log, err)
	}

	items := make([]any, 0, len(sets))
	for i := range sets {
		m, err := setMap(&sets[i])
		if err != nil {
			return nil, status.Error(codes.Internal, err.Error())
		}
		items = append(items, m)
	}
	return newStruct(map[string]any{"sets": items})
}

// DeleteConditionSet removes the set with the given "id".
func (s *ConditionService) DeleteConditionSet(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if err := s.requireStore(); err != nil {
		return nil, err
	}
	id, err := optionalString(req.AsMap(), "id")
	if err != nil {
		return nil, err
	}
	if id == "" {
		return nil, status.Error(codes.InvalidArgument, "id required")
	}
	if err := s.store.Delete(ctx, types.SetID(id)); err != nil {
		return nil, toStatus(s.log, err)
	}

	s.log.InfoContext(ctx, "deleted condition set",
		slog.String("set_id", id),
		slog.String("principal", principalName(ctx)),
	)
	return newStruct(map[string]any{"deleted": true})
}

func setStruct(set *types.ConditionSet) (*structpb.Struct, error) {
	m, err := setMap(set)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return newStruct(m)
}

func setMap(set *types.ConditionSet) (map[string]any, error) {
	var tree any
	if err := json.Unmarshal(set.Conditions, &tree); err != nil {
		return nil, err
	}
	return map[string]any{
		"id":         string(set.ID),
		"name":       set.Name,
		"conditions": tree,
		"created_at": set.CreatedAt.Format(time.RFC3339Nano),
		"updated_at": set.UpdatedAt.Format(time.RFC3339Nano),
	}, nil
}
