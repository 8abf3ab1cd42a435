// Package auth provides HMAC-based API key authentication for the condition
// gRPC service.
//
// Keys are never stored; the api_keys table holds HMAC-SHA256(secret, key)
// where the secret is selected by the secret ID embedded in the key.
package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/solatis/conditions/internal/metrics"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// contextKey is a typed key for context values to avoid collisions.
type contextKey string

// principalKey is the context key for the authenticated principal.
const principalKey = contextKey("principal")

// MetadataKey is the gRPC metadata header carrying the API key.
const MetadataKey = "x-api-key"

// healthServicePrefix is exempt from authentication so health checks need no key.
const healthServicePrefix = "/grpc.health.v1.Health/"

// Queries defines database operations needed for authentication.
// Implemented by *db.Queries.
type Queries interface {
	Get(ctx context.Context, name string, dest any, args ...any) error
	Exec(ctx context.Context, name string, args ...any) (sql.Result, error)
}

// Principal identifies the API key a request was authenticated with.
type Principal struct {
	APIKeyID string `db:"api_key_id"`
	Name     string `db:"name"`
}

// Authenticator validates API keys using HMAC-SHA256 signatures.
// Holds in-memory secret map for O(1) lookup and queries for key verification.
type Authenticator struct {
	secrets map[string][]byte
	queries Queries
	metrics *metrics.Metrics
	now     func() time.Time
}

// Option configures an Authenticator.
type Option func(*Authenticator)

// WithMetrics counts failed authentications in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Authenticator) { a.metrics = m }
}

// NewAuthenticator creates an authenticator with HMAC secrets and query interface.
func NewAuthenticator(secrets map[string][]byte, queries Queries, opts ...Option) *Authenticator {
	a := &Authenticator{
		secrets: secrets,
		queries: queries,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Authenticate validates an API key and returns its principal on success.
func (a *Authenticator) Authenticate(ctx context.Context, apiKey string) (Principal, error) {
	secretID, _, err := ParseAPIKey(apiKey)
	if err != nil {
		return Principal{}, err
	}

	secret, ok := a.secrets[secretID]
	if !ok {
		return Principal{}, ErrUnknownKey
	}

	var result struct {
		Principal
		KeyHash    []byte       `db:"key_hash"`
		RevokedAt  sql.NullTime `db:"revoked_at"`
		LastUsedAt sql.NullTime `db:"last_used_at"`
	}

	// key_hash is unique, so at most one row matches
	computedHash := ComputeHMAC(secret, apiKey)
	err = a.queries.Get(ctx, "get-api-key-by-hash", &result, computedHash)
	if errors.Is(err, sql.ErrNoRows) {
		return Principal{}, ErrInvalidKey
	}
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %w", ErrDatabase, err)
	}
	// The index lookup is not constant time; confirm the stored hash before trusting the row.
	if !VerifyHMAC(result.KeyHash, computedHash) {
		return Principal{}, ErrInvalidKey
	}

	if result.RevokedAt.Valid {
		return Principal{}, ErrKeyRevoked
	}

	// 1-minute throttle keeps busy clients from writing on every request
	now := a.now().UTC()
	if shouldUpdateLastUsed(result.LastUsedAt, now) {
		_, _ = a.queries.Exec(ctx, "update-last-used", now, result.APIKeyID)
	}

	return result.Principal, nil
}

func shouldUpdateLastUsed(lastUsed sql.NullTime, now time.Time) bool {
	if !lastUsed.Valid {
		return true
	}
	return now.Sub(lastUsed.Time) > time.Minute
}

// UnaryInterceptor returns a gRPC interceptor that authenticates requests.
func (a *Authenticator) UnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if strings.HasPrefix(info.FullMethod, healthServicePrefix) {
			return handler(ctx, req)
		}

		principal, err := a.authenticateIncoming(ctx)
		if err != nil {
			if a.metrics != nil {
				a.metrics.IncAuthFailures()
			}
			return nil, toStatus(err)
		}

		return handler(WithPrincipal(ctx, principal), req)
	}
}

func (a *Authenticator) authenticateIncoming(ctx context.Context) (Principal, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return Principal{}, ErrMissingKey
	}
	apiKeys := md.Get(MetadataKey)
	if len(apiKeys) == 0 {
		return Principal{}, ErrMissingKey
	}
	return a.Authenticate(ctx, apiKeys[0])
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, ErrKeyRevoked):
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, ErrDatabase):
		return status.Error(codes.Unavailable, ErrDatabase.Error())
	default:
		return status.Error(codes.Unauthenticated, err.Error())
	}
}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext extracts the authenticated principal from ctx.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}
