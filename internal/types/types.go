// Package types provides domain models shared across condition components.
//
// Zero-dependency design: types.go and errors.go use only the standard library so
// the condition engine can be embedded without pulling storage or transport deps.
// ID utilities in ids.go import uuid but are only used by the storage adapter.
package types

import (
	"encoding/json"
	"time"
)

// SetID represents a UUIDv7 condition set identifier.
// String alias enables type safety while maintaining JSON string serialization.
type SetID string

// PathSegment represents one component of a key path.
// String for object keys, int for array indices, wildcard for fan-out.
type PathSegment struct {
	Key      string // object key (mutually exclusive with Index/Wildcard)
	Index    int    // array index (mutually exclusive with Key/Wildcard)
	IsIndex  bool   // disambiguates Index=0 from unset
	Wildcard bool   // true = wildcard segment
}

// ConditionSet is a named, persisted condition tree.
// Conditions holds the encoded form; it is decoded against the caller's definitions on read.
type ConditionSet struct {
	ID         SetID           `json:"id" db:"set_id"`
	Name       string          `json:"name" db:"name"`
	Conditions json.RawMessage `json:"conditions" db:"conditions"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at" db:"updated_at"`
}

// Resource limits enforced by the condition engine to keep decode and evaluation bounded.
const (
	// MaxDepth bounds combinator nesting so recursive decode/evaluate stay stack-safe.
	MaxDepth = 32

	// MaxItems limits children per combinator node.
	MaxItems = 256

	// MaxKeyDepth limits the number of segments in a key path.
	MaxKeyDepth = 16

	// MaxKeyWildcards limits wildcard segments in a key path.
	MaxKeyWildcards = 2

	// MaxMembershipValues limits the operand list of membership conditions.
	MaxMembershipValues = 256

	// MaxDocumentSize limits encoded condition documents accepted by adapters.
	MaxDocumentSize = 1024 * 1024

	// MaxSetNameLength limits condition set names.
	MaxSetNameLength = 128
)
