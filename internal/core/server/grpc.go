// Package server provides gRPC and metrics server lifecycle management.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/solatis/conditions/internal/core/api"
	"github.com/solatis/conditions/internal/core/auth"
	"github.com/solatis/conditions/internal/core/config"
	"github.com/solatis/conditions/internal/logging"
	"github.com/solatis/conditions/internal/metrics"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// shutdownTimeout bounds graceful shutdown before a forced stop.
const shutdownTimeout = 30 * time.Second

// messageOverhead is the allowance on top of MaxDocumentBytes for the
// request envelope (context object, field names).
const messageOverhead = 64 * 1024

// GRPCServer manages gRPC and metrics server lifecycle.
type GRPCServer struct {
	server   *grpc.Server
	health   *health.Server
	metrics  *http.Server
	config   *config.ConditionAPIConfig
	log      *slog.Logger
	listener net.Listener
}

// Option configures a GRPCServer.
type Option func(*options)

type options struct {
	authenticator *auth.Authenticator
	metrics       *metrics.Metrics
	log           *slog.Logger
}

// WithAuthenticator requires an API key on every non-health request.
func WithAuthenticator(a *auth.Authenticator) Option {
	return func(o *options) { o.authenticator = a }
}

// WithMetrics records request metrics and serves them on cfg.MetricsPort.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithLogger sets the server logger.
func WithLogger(log *slog.Logger) Option {
	return func(o *options) { o.log = log }
}

// NewGRPCServer creates the gRPC server with its interceptor chain and
// registers the condition and health services.
func NewGRPCServer(cfg *config.ConditionAPIConfig, service api.ConditionServer, opts ...Option) (*GRPCServer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("cfg cannot be nil")
	}
	if service == nil {
		return nil, fmt.Errorf("service cannot be nil")
	}

	o := options{log: logging.Discard()}
	for _, opt := range opts {
		opt(&o)
	}

	// Outermost first: logging sees the final status of every call, metrics
	// include auth rejections, and the timeout covers only the handler.
	interceptors := []grpc.UnaryServerInterceptor{UnaryLoggingInterceptor(o.log)}
	if o.metrics != nil {
		interceptors = append(interceptors, o.metrics.UnaryServerInterceptor())
	}
	if o.authenticator != nil {
		interceptors = append(interceptors, o.authenticator.UnaryInterceptor())
	} else {
		o.log.Warn("authentication disabled")
	}
	interceptors = append(interceptors, UnaryTimeoutInterceptor(cfg.RequestTimeout))

	server := grpc.NewServer(
		grpc.ChainUnaryInterceptor(interceptors...),
		grpc.MaxRecvMsgSize(cfg.MaxDocumentBytes+messageOverhead),
		grpc.MaxConcurrentStreams(uint32(cfg.MaxConnections)),
	)
	api.RegisterConditionServer(server, service)

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(server, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(api.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	s := &GRPCServer{
		server: server,
		health: healthServer,
		config: cfg,
		log:    o.log,
	}

	if o.metrics != nil && cfg.MetricsPort != 0 {
		mux := http.NewServeMux()
		mux.Handle("/metrics", o.metrics.Handler())
		s.metrics = &http.Server{
			Addr:              net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.MetricsPort)),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
	}

	return s, nil
}

// Start binds the configured address and serves until Shutdown.
func (s *GRPCServer) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", addr, err)
	}
	return s.Serve(listener)
}

// Serve serves gRPC on listener and, when configured, metrics over HTTP.
// Blocks until Shutdown is called or the gRPC server fails.
func (s *GRPCServer) Serve(listener net.Listener) error {
	s.listener = listener

	if s.metrics != nil {
		go func() {
			s.log.Info("metrics server listening", slog.String("addr", s.metrics.Addr))
			if err := s.metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.log.Error("metrics server failed", slog.Any("error", err))
			}
		}()
	}

	s.log.Info("grpc server listening", slog.String("addr", listener.Addr().String()))
	return s.server.Serve(listener)
}

// Shutdown marks the service NOT_SERVING and gracefully stops both servers.
// Forces a stop when ctx ends or after 30 seconds.
func (s *GRPCServer) Shutdown(ctx context.Context) error {
	s.health.Shutdown()

	if s.metrics != nil {
		if err := s.metrics.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Warn("metrics server shutdown failed", slog.Any("error", err))
		}
	}

	stopped := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
		return nil
	case <-ctx.Done():
		s.server.Stop()
		return fmt.Errorf("shutdown cancelled by context: %w", ctx.Err())
	case <-time.After(shutdownTimeout):
		s.server.Stop()
		return fmt.Errorf("graceful shutdown timeout, forced stop")
	}
}
