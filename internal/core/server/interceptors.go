package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

type logContextKey string

const requestIDKey logContextKey = "request_id"

// RequestIDFromContext retrieves the request ID assigned by the logging interceptor.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey).(string)
	return id, ok
}

// UnaryLoggingInterceptor logs each call with a request ID, method, status
// code and duration. Failed calls log at warn.
func UnaryLoggingInterceptor(log *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		reqID := uuid.NewString()
		ctx = context.WithValue(ctx, requestIDKey, reqID)

		start := time.Now()
		resp, err := handler(ctx, req)
		duration := time.Since(start)

		level := slog.LevelDebug
		if err != nil {
			level = slog.LevelWarn
		}
		log.LogAttrs(ctx, level, "request completed",
			slog.String("request_id", reqID),
			slog.String("method", info.FullMethod),
			slog.String("status_code", status.Code(err).String()),
			slog.Float64("duration_ms", float64(duration.Nanoseconds())/1e6),
		)

		return resp, err
	}
}

// UnaryTimeoutInterceptor bounds each handler by timeout. A shorter client
// deadline still wins.
func UnaryTimeoutInterceptor(timeout time.Duration) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if timeout <= 0 {
			return handler(ctx, req)
		}
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return handler(ctx, req)
	}
}
