// Package store persists named condition sets.
//
// Condition sets are stored in their encoded JSON form and validated on the
// way in by decoding against the store's definitions. Reads decode again so
// callers always receive a tree built against the current definitions.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/solatis/conditions/internal/conditions"
	"github.com/solatis/conditions/internal/core/db"
	"github.com/solatis/conditions/internal/metrics"
	"github.com/solatis/conditions/internal/types"
)

// Operation labels recorded in store metrics.
const (
	opPut    = "put"
	opGet    = "get"
	opList   = "list"
	opDelete = "delete"
)

// Store reads and writes condition sets through named queries.
type Store struct {
	queries *db.Queries
	defs    conditions.Definitions
	metrics *metrics.Metrics
	now     func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithMetrics records every store operation in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates a Store that validates condition sets against defs.
func New(queries *db.Queries, defs conditions.Definitions, opts ...Option) *Store {
	s := &Store{queries: queries, defs: defs, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Definitions returns the definitions stored condition sets are decoded with.
func (s *Store) Definitions() conditions.Definitions {
	return s.defs
}

// row mirrors the condition_sets table. conditions is scanned as a string
// because SQLite returns TEXT and PostgreSQL returns JSONB bytes.
type row struct {
	ID         string    `db:"set_id"`
	Name       string    `db:"name"`
	Conditions string    `db:"conditions"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

func (r row) toSet() *types.ConditionSet {
	return &types.ConditionSet{
		ID:         types.SetID(r.ID),
		Name:       r.Name,
		Conditions: []byte(r.Conditions),
		CreatedAt:  r.CreatedAt.UTC(),
		UpdatedAt:  r.UpdatedAt.UTC(),
	}
}

// PutJSON decodes data against the store's definitions and stores it under name.
func (s *Store) PutJSON(ctx context.Context, name string, data []byte) (*types.ConditionSet, error) {
	list, err := conditions.DecodeJSON(data, s.defs)
	if err != nil {
		s.record(opPut, err)
		return nil, err
	}
	return s.Put(ctx, name, list)
}

// Put stores list under name, replacing the conditions of an existing set
// with the same name. The set keeps its ID across replacements.
func (s *Store) Put(ctx context.Context, name string, list *conditions.CondList) (set *types.ConditionSet, err error) {
	defer func() { s.record(opPut, err) }()

	if err := validateName(name); err != nil {
		return nil, err
	}
	if list == nil {
		return nil, &types.InvalidConditionError{Err: types.ErrMalformedNode, Detail: "condition list is nil"}
	}

	// Round-trip through decode so programmatically built trees are held to
	// the same definitions as documents.
	encoded, err := list.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to encode conditions: %w", err)
	}
	if _, err := conditions.DecodeJSON(encoded, s.defs); err != nil {
		return nil, err
	}

	now := s.now().UTC().Truncate(time.Microsecond)

	// One statement, so concurrent puts of a new name cannot both insert.
	// On conflict the stored set_id and created_at are kept.
	if _, err := s.queries.Exec(ctx, "upsert-condition-set", string(types.NewSetID()), name, string(encoded), now, now); err != nil {
		return nil, fmt.Errorf("failed to store condition set %q: %w", name, err)
	}
	return s.getOne(ctx, "get-condition-set-by-name", name)
}

// Get returns the stored condition set with the given ID.
func (s *Store) Get(ctx context.Context, id types.SetID) (set *types.ConditionSet, err error) {
	defer func() { s.record(opGet, err) }()

	if _, err := types.ParseSetID(string(id)); err != nil {
		return nil, fmt.Errorf("%w: %q", types.ErrInvalidSetID, id)
	}
	return s.getOne(ctx, "get-condition-set-by-id", string(id))
}

// GetByName returns the stored condition set with the given name.
func (s *Store) GetByName(ctx context.Context, name string) (set *types.ConditionSet, err error) {
	defer func() { s.record(opGet, err) }()

	if err := validateName(name); err != nil {
		return nil, err
	}
	return s.getOne(ctx, "get-condition-set-by-name", name)
}

func (s *Store) getOne(ctx context.Context, query, arg string) (*types.ConditionSet, error) {
	var r row
	if err := s.queries.Get(ctx, query, &r, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", types.ErrSetNotFound, arg)
		}
		return nil, fmt.Errorf("failed to read condition set %s: %w", arg, err)
	}
	return r.toSet(), nil
}

// Load fetches the condition set with the given ID and decodes it.
// A set that no longer decodes against the current definitions yields an
// InvalidConditionError.
func (s *Store) Load(ctx context.Context, id types.SetID) (*conditions.CondList, *types.ConditionSet, error) {
	set, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	list, err := conditions.DecodeJSON(set.Conditions, s.defs)
	if err != nil {
		return nil, set, err
	}
	return list, set, nil
}

// List returns all stored condition sets ordered by name.
func (s *Store) List(ctx context.Context) (sets []types.ConditionSet, err error) {
	defer func() { s.record(opList, err) }()

	var rows []row
	if err := s.queries.Select(ctx, "list-condition-sets", &rows); err != nil {
		return nil, fmt.Errorf("failed to list condition sets: %w", err)
	}
	sets = make([]types.ConditionSet, 0, len(rows))
	for _, r := range rows {
		sets = append(sets, *r.toSet())
	}
	return sets, nil
}

// Delete removes the condition set with the given ID.
func (s *Store) Delete(ctx context.Context, id types.SetID) (err error) {
	defer func() { s.record(opDelete, err) }()

	if _, err := types.ParseSetID(string(id)); err != nil {
		return fmt.Errorf("%w: %q", types.ErrInvalidSetID, id)
	}
	res, err := s.queries.Exec(ctx, "delete-condition-set", string(id))
	if err != nil {
		return fmt.Errorf("failed to delete condition set %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete condition set %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", types.ErrSetNotFound, id)
	}
	return nil
}

func (s *Store) record(op string, err error) {
	if s.metrics != nil {
		s.metrics.RecordStoreOp(op, err)
	}
}

func validateName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: name must not be empty", types.ErrInvalidSetName)
	case len(name) > types.MaxSetNameLength:
		return fmt.Errorf("%w: name exceeds %d bytes", types.ErrInvalidSetName, types.MaxSetNameLength)
	}
	return nil
}
