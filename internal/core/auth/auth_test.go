package auth

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/solatis/conditions/internal/core/db"
	"github.com/solatis/conditions/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const testSecretID = "0123456789abcdef0123456789abcdef"

var testSecrets = map[string][]byte{testSecretID: []byte("test-secret-with-enough-entropy!!")}

func newQueries(t *testing.T) *db.Queries {
	t.Helper()
	ctx := context.Background()
	conn, err := db.Open(ctx, "sqlite://"+filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, db.MigrateUp(ctx, conn))
	q, err := db.LoadQueries(conn)
	require.NoError(t, err)
	return q
}

func TestParseAPIKey(t *testing.T) {
	valid := FormatAPIKey(testSecretID, strings.Repeat("ab", 32))

	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{"valid", valid, false},
		{"wrong prefix", strings.Replace(valid, "ck-", "tk-", 1), true},
		{"wrong version", strings.Replace(valid, "-v1-", "-v2-", 1), true},
		{"too few parts", "ck-v1-" + testSecretID, true},
		{"short secret id", FormatAPIKey("0123", strings.Repeat("ab", 32)), true},
		{"short random", FormatAPIKey(testSecretID, "abcd"), true},
		{"uppercase hex", FormatAPIKey(strings.ToUpper(testSecretID), strings.Repeat("ab", 32)), true},
		{"empty", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			secretID, _, err := ParseAPIKey(tt.key)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidKeyFormat) {
					t.Errorf("ParseAPIKey(%q) error = %v, want ErrInvalidKeyFormat", tt.key, err)
				}
				return
			}
			if err != nil || secretID != testSecretID {
				t.Errorf("ParseAPIKey(%q) = %q, %v, want %q, nil", tt.key, secretID, err, testSecretID)
			}
		})
	}
}

func TestGenerateAPIKey(t *testing.T) {
	a, err := GenerateAPIKey(testSecretID)
	require.NoError(t, err)
	b, err := GenerateAPIKey(testSecretID)
	require.NoError(t, err)

	assert.Len(t, a, 102)
	assert.NotEqual(t, a, b)
	_, _, err = ParseAPIKey(a)
	assert.NoError(t, err)

	_, err = GenerateAPIKey("nope")
	assert.ErrorIs(t, err, ErrInvalidKeyFormat)
}

func TestVerifyHMAC(t *testing.T) {
	h := ComputeHMAC([]byte("s"), "key")
	assert.True(t, VerifyHMAC(h, ComputeHMAC([]byte("s"), "key")))
	assert.False(t, VerifyHMAC(h, ComputeHMAC([]byte("other"), "key")))
}

// rowQueries returns a fixed api_keys row for every lookup.
type rowQueries struct {
	keyHash []byte
}

func (q rowQueries) Get(_ context.Context, _ string, dest any, _ ...any) error {
	row := reflect.ValueOf(dest).Elem()
	row.FieldByName("APIKeyID").SetString("key-1")
	row.FieldByName("Name").SetString("ci")
	row.FieldByName("KeyHash").SetBytes(q.keyHash)
	return nil
}

func (rowQueries) Exec(context.Context, string, ...any) (sql.Result, error) {
	return nil, nil
}

func TestAuthenticate_StoredHashMismatch(t *testing.T) {
	ctx := context.Background()
	apiKey, err := GenerateAPIKey(testSecretID)
	require.NoError(t, err)

	matching := rowQueries{keyHash: ComputeHMAC(testSecrets[testSecretID], apiKey)}
	p, err := NewAuthenticator(testSecrets, matching).Authenticate(ctx, apiKey)
	require.NoError(t, err)
	assert.Equal(t, Principal{APIKeyID: "key-1", Name: "ci"}, p)

	mismatched := rowQueries{keyHash: ComputeHMAC([]byte("some-other-secret-of-enough-size!"), apiKey)}
	_, err = NewAuthenticator(testSecrets, mismatched).Authenticate(ctx, apiKey)
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()
	q := newQueries(t)
	keys := NewKeys(testSecrets, q)
	authn := NewAuthenticator(testSecrets, q)

	apiKey, info, err := keys.Create(ctx, "ci", testSecretID)
	require.NoError(t, err)

	principal, err := authn.Authenticate(ctx, apiKey)
	require.NoError(t, err)
	assert.Equal(t, Principal{APIKeyID: info.APIKeyID, Name: "ci"}, principal)

	listed, err := keys.List(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.True(t, listed[0].LastUsedAt.Valid, "last_used_at should be set on first use")

	otherKey, err := GenerateAPIKey(testSecretID)
	require.NoError(t, err)
	_, err = authn.Authenticate(ctx, otherKey)
	assert.ErrorIs(t, err, ErrInvalidKey)

	_, err = authn.Authenticate(ctx, FormatAPIKey(strings.Repeat("f", 32), strings.Repeat("ab", 32)))
	assert.ErrorIs(t, err, ErrUnknownKey)

	require.NoError(t, keys.Revoke(ctx, info.APIKeyID))
	_, err = authn.Authenticate(ctx, apiKey)
	assert.ErrorIs(t, err, ErrKeyRevoked)

	assert.ErrorIs(t, keys.Revoke(ctx, info.APIKeyID), ErrKeyNotFound)
}

func TestKeysCreate_UnknownSecret(t *testing.T) {
	_, _, err := NewKeys(testSecrets, newQueries(t)).Create(context.Background(), "ci", strings.Repeat("e", 32))
	assert.ErrorIs(t, err, ErrUnknownKey)
}

func TestShouldUpdateLastUsed(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name     string
		lastUsed sql.NullTime
		want     bool
	}{
		{"never used", sql.NullTime{}, true},
		{"just used", sql.NullTime{Time: now.Add(-10 * time.Second), Valid: true}, false},
		{"stale", sql.NullTime{Time: now.Add(-2 * time.Minute), Valid: true}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := shouldUpdateLastUsed(tt.lastUsed, now); got != tt.want {
				t.Errorf("shouldUpdateLastUsed() = %v, want %v", got, tt.want)
			}
		})
	}
}

type failingQueries struct{}

func (failingQueries) Get(context.Context, string, any, ...any) error {
	return errors.New("connection refused")
}

func (failingQueries) Exec(context.Context, string, ...any) (sql.Result, error) {
	return nil, errors.New("connection refused")
}

func TestUnaryInterceptor(t *testing.T) {
	ctx := context.Background()
	q := newQueries(t)
	apiKey, _, err := NewKeys(testSecrets, q).Create(ctx, "svc", testSecretID)
	require.NoError(t, err)

	m := metrics.New()
	interceptor := NewAuthenticator(testSecrets, q, WithMetrics(m)).UnaryInterceptor()
	info := &grpc.UnaryServerInfo{FullMethod: "/conditions.v1.ConditionService/Evaluate"}

	var seen Principal
	handler := func(ctx context.Context, req any) (any, error) {
		if p, ok := PrincipalFromContext(ctx); ok {
			seen = p
		}
		return "ok", nil
	}

	withKey := func(key string) context.Context {
		return metadata.NewIncomingContext(ctx, metadata.Pairs(MetadataKey, key))
	}

	tests := []struct {
		name     string
		ctx      context.Context
		method   string
		wantCode codes.Code
	}{
		{"valid key", withKey(apiKey), info.FullMethod, codes.OK},
		{"no metadata", ctx, info.FullMethod, codes.Unauthenticated},
		{"empty metadata", metadata.NewIncomingContext(ctx, metadata.MD{}), info.FullMethod, codes.Unauthenticated},
		{"malformed key", withKey("garbage"), info.FullMethod, codes.Unauthenticated},
		{"health exempt", ctx, "/grpc.health.v1.Health/Check", codes.OK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := interceptor(tt.ctx, nil, &grpc.UnaryServerInfo{FullMethod: tt.method}, handler)
			assert.Equal(t, tt.wantCode, status.Code(err))
		})
	}

	assert.Equal(t, "svc", seen.Name)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.AuthFailuresTotal))

	failing := NewAuthenticator(testSecrets, failingQueries{}).UnaryInterceptor()
	_, err = failing(withKey(apiKey), nil, info, handler)
	assert.Equal(t, codes.Unavailable, status.Code(err))
	assert.NotContains(t, err.Error(), "connection refused")
}
