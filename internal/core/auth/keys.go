package auth

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// KeyQueries defines database operations needed for key management.
// Implemented by *db.Queries.
type KeyQueries interface {
	Queries
	Select(ctx context.Context, name string, dest any, args ...any) error
}

// KeyInfo describes a stored API key. The key itself is not recoverable.
type KeyInfo struct {
	APIKeyID   string       `db:"api_key_id"`
	Name       string       `db:"name"`
	CreatedAt  time.Time    `db:"created_at"`
	LastUsedAt sql.NullTime `db:"last_used_at"`
	RevokedAt  sql.NullTime `db:"revoked_at"`
}

// Keys issues, lists and revokes API keys.
type Keys struct {
	secrets map[string][]byte
	queries KeyQueries
	now     func() time.Time
}

// NewKeys creates a key manager over the same secrets the Authenticator uses.
func NewKeys(secrets map[string][]byte, queries KeyQueries) *Keys {
	return &Keys{secrets: secrets, queries: queries, now: time.Now}
}

// Create issues a new key signed with the secret identified by secretID and
// returns the plaintext key. It is shown once and never stored.
func (k *Keys) Create(ctx context.Context, name, secretID string) (apiKey string, info KeyInfo, err error) {
	secret, ok := k.secrets[secretID]
	if !ok {
		return "", KeyInfo{}, ErrUnknownKey
	}
	if name == "" {
		return "", KeyInfo{}, fmt.Errorf("key name must not be empty")
	}

	apiKey, err = GenerateAPIKey(secretID)
	if err != nil {
		return "", KeyInfo{}, err
	}

	info = KeyInfo{
		APIKeyID:  uuid.Must(uuid.NewV7()).String(),
		Name:      name,
		CreatedAt: k.now().UTC().Truncate(time.Microsecond),
	}
	if _, err := k.queries.Exec(ctx, "insert-api-key", info.APIKeyID, info.Name, ComputeHMAC(secret, apiKey), info.CreatedAt); err != nil {
		return "", KeyInfo{}, fmt.Errorf("%w: %w", ErrDatabase, err)
	}
	return apiKey, info, nil
}

// Revoke marks a key as revoked. Revoking an already revoked key or an
// unknown key returns ErrKeyNotFound.
func (k *Keys) Revoke(ctx context.Context, apiKeyID string) error {
	res, err := k.queries.Exec(ctx, "revoke-api-key", k.now().UTC(), apiKeyID)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDatabase, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDatabase, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrKeyNotFound, apiKeyID)
	}
	return nil
}

// List returns all keys ordered by creation time.
func (k *Keys) List(ctx context.Context) ([]KeyInfo, error) {
	var keys []KeyInfo
	if err := k.queries.Select(ctx, "list-api-keys", &keys); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDatabase, err)
	}
	return keys, nil
}
