package server

import (
	"bytes"
	"context"
	"net"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/solatis/conditions/internal/conditions"
	"github.com/solatis/conditions/internal/core/api"
	"github.com/solatis/conditions/internal/core/auth"
	"github.com/solatis/conditions/internal/core/config"
	"github.com/solatis/conditions/internal/core/db"
	"github.com/solatis/conditions/internal/logging"
	"github.com/solatis/conditions/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

const testSecretID = "0123456789abcdef0123456789abcdef"

type harness struct {
	client  *api.ConditionClient
	health  grpc_health_v1.HealthClient
	metrics *metrics.Metrics
	apiKey  string
	logs    *bytes.Buffer
}

func startServer(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()

	conn, err := db.Open(ctx, "sqlite://"+filepath.Join(t.TempDir(), "server.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, db.MigrateUp(ctx, conn))
	q, err := db.LoadQueries(conn)
	require.NoError(t, err)

	secrets := map[string][]byte{testSecretID: []byte("server-test-secret")}
	apiKey, _, err := auth.NewKeys(secrets, q).Create(ctx, "test", testSecretID)
	require.NoError(t, err)

	m := metrics.New()
	var logs bytes.Buffer
	log := logging.NewWithWriter("debug", "json", &logs)

	svc, err := api.NewConditionService(conditions.BuiltinDefinitions(), api.WithMetrics(m), api.WithLogger(log))
	require.NoError(t, err)

	cfg := config.DefaultConditionAPIConfig()
	srv, err := NewGRPCServer(cfg, svc,
		WithAuthenticator(auth.NewAuthenticator(secrets, q, auth.WithMetrics(m))),
		WithMetrics(m),
		WithLogger(log),
	)
	require.NoError(t, err)

	lis := bufconn.Listen(1024 * 1024)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	})

	cc, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { cc.Close() })

	return &harness{
		client:  api.NewConditionClient(cc),
		health:  grpc_health_v1.NewHealthClient(cc),
		metrics: m,
		apiKey:  apiKey,
		logs:    &logs,
	}
}

func (h *harness) authed(ctx context.Context) context.Context {
	return metadata.AppendToOutgoingContext(ctx, auth.MetadataKey, h.apiKey)
}

func TestNewGRPCServer_Validation(t *testing.T) {
	svc, err := api.NewConditionService(conditions.BuiltinDefinitions())
	require.NoError(t, err)

	_, err = NewGRPCServer(nil, svc)
	assert.Error(t, err)
	_, err = NewGRPCServer(config.DefaultConditionAPIConfig(), nil)
	assert.Error(t, err)
}

func TestGRPCServer_EvaluateRoundTrip(t *testing.T) {
	h := startServer(t)
	ctx := context.Background()

	req, err := structpb.NewStruct(map[string]any{
		"conditions": map[string]any{
			"combinator": "OR",
			"items": []any{
				map[string]any{"group": "builtin", "condstr": "never"},
				map[string]any{"group": "builtin", "condstr": "number", "key": "score", "operator": "gte", "operand": 10},
			},
		},
		"context": map[string]any{"score": 10},
	})
	require.NoError(t, err)

	resp, err := h.client.Evaluate(h.authed(ctx), req)
	require.NoError(t, err)
	assert.Equal(t, true, resp.AsMap()["result"])

	_, err = h.client.Evaluate(ctx, req)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.GRPCRequestsTotal.WithLabelValues("Evaluate", "OK")))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.GRPCRequestsTotal.WithLabelValues("Evaluate", "Unauthenticated")))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.AuthFailuresTotal))
	assert.Contains(t, h.logs.String(), `"method":"/conditions.v1.ConditionService/Evaluate"`)
}

func TestGRPCServer_SetsWithoutStore(t *testing.T) {
	h := startServer(t)
	_, err := h.client.GetConditionSet(h.authed(context.Background()), &structpb.Struct{})
	assert.Equal(t, codes.Unimplemented, status.Code(err))
}

func TestGRPCServer_HealthWithoutKey(t *testing.T) {
	h := startServer(t)
	resp, err := h.health.Check(context.Background(), &grpc_health_v1.HealthCheckRequest{Service: api.ServiceName})
	require.NoError(t, err)
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, resp.Status)
}

func TestGRPCServer_Describe(t *testing.T) {
	h := startServer(t)
	resp, err := h.client.Describe(h.authed(context.Background()), &structpb.Struct{})
	require.NoError(t, err)

	groups := resp.AsMap()["groups"].([]any)
	require.Len(t, groups, 1)
	assert.Equal(t, "builtin", groups[0].(map[string]any)["groupname"])
}

func TestUnaryTimeoutInterceptor(t *testing.T) {
	interceptor := UnaryTimeoutInterceptor(time.Second)
	info := &grpc.UnaryServerInfo{FullMethod: api.MethodEvaluate}

	_, err := interceptor(context.Background(), nil, info, func(ctx context.Context, req any) (any, error) {
		deadline, ok := ctx.Deadline()
		require.True(t, ok)
		assert.WithinDuration(t, time.Now().Add(time.Second), deadline, 100*time.Millisecond)
		return nil, nil
	})
	require.NoError(t, err)

	_, err = UnaryTimeoutInterceptor(0)(context.Background(), nil, info, func(ctx context.Context, req any) (any, error) {
		_, ok := ctx.Deadline()
		assert.False(t, ok)
		return nil, nil
	})
	require.NoError(t, err)
}

func TestUnaryLoggingInterceptor(t *testing.T) {
	var buf bytes.Buffer
	interceptor := UnaryLoggingInterceptor(logging.NewWithWriter("debug", "json", &buf))
	info := &grpc.UnaryServerInfo{FullMethod: api.MethodValidate}

	var reqID string
	_, _ = interceptor(context.Background(), nil, info, func(ctx context.Context, req any) (any, error) {
		reqID, _ = RequestIDFromContext(ctx)
		return nil, status.Error(codes.InvalidArgument, "bad")
	})

	require.NotEmpty(t, reqID)
	out := buf.String()
	assert.Contains(t, out, `"level":"WARN"`)
	assert.Contains(t, out, `"status_code":"InvalidArgument"`)
	assert.True(t, strings.Contains(out, reqID))
}
