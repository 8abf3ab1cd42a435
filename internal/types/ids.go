package types

import "github.com/google/uuid"

// NewSetID generates a UUIDv7 condition set identifier.
// Time-ordered IDs ensure sequential inserts cluster in B-tree pages.
// Panics on clock regression (uuid.Must); acceptable for ID generation.
func NewSetID() SetID {
	return SetID(uuid.Must(uuid.NewV7()).String())
}

// ParseSetID validates and converts a string to SetID.
// Rejects malformed UUIDs to prevent invalid IDs from reaching the database.
func ParseSetID(s string) (SetID, error) {
	_, err := uuid.Parse(s)
	if err != nil {
		return "", err
	}
	return SetID(s), nil
}
