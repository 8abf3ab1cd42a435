// Package metrics provides Prometheus instrumentation for the condition service.
//
// All metrics are registered in a custom [prometheus.Registry] (not the global
// default) so that only condition service metrics appear on the /metrics endpoint.
package metrics

import (
	"context"
	"database/sql"
	"net/http"
	"path"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/solatis/conditions/internal/types"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// Decode and evaluation outcome labels.
const (
	OutcomeOK      = "ok"
	OutcomeInvalid = "invalid"
	OutcomeError   = "error"
)

// Metrics holds all Prometheus collectors used by the condition service.
type Metrics struct {
	Registry *prometheus.Registry

	GRPCRequestsTotal   *prometheus.CounterVec
	GRPCRequestDuration *prometheus.HistogramVec
	DecodesTotal        *prometheus.CounterVec
	EvaluationsTotal    *prometheus.CounterVec
	EvaluationDuration  prometheus.Histogram
	StoreOpsTotal       *prometheus.CounterVec
	AuthFailuresTotal   prometheus.Counter
}

// New creates and registers all condition service metrics in a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,

		GRPCRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "conditions_grpc_requests_total",
			Help: "Total number of gRPC requests.",
		}, []string{"method", "status"}),

		GRPCRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "conditions_grpc_request_duration_seconds",
			Help:    "gRPC request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "status"}),

		DecodesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "conditions_decodes_total",
			Help: "Total number of condition tree decodes by outcome.",
		}, []string{"outcome"}),

		EvaluationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "conditions_evaluations_total",
			Help: "Total number of condition tree evaluations by result.",
		}, []string{"result"}),

		EvaluationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "conditions_evaluation_duration_seconds",
			Help:    "Condition tree evaluation latency in seconds.",
			Buckets: []float64{.00001, .00005, .0001, .0005, .001, .005, .01, .05},
		}),

		StoreOpsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "conditions_store_operations_total",
			Help: "Total number of condition set store operations.",
		}, []string{"op", "outcome"}),

		AuthFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "conditions_auth_failures_total",
			Help: "Total number of failed authentication attempts.",
		}),
	}

	reg.MustRegister(
		m.GRPCRequestsTotal,
		m.GRPCRequestDuration,
		m.DecodesTotal,
		m.EvaluationsTotal,
		m.EvaluationDuration,
		m.StoreOpsTotal,
		m.AuthFailuresTotal,
	)

	return m
}

// RegisterDBStats registers live database/sql pool statistics, read on every scrape.
func (m *Metrics) RegisterDBStats(db *sql.DB, name string) {
	m.Registry.MustRegister(collectors.NewDBStatsCollector(db, name))
}

// Handler returns an [http.Handler] that serves Prometheus metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// UnaryServerInterceptor returns a gRPC unary interceptor that records
// request count and latency for each method.
func (m *Metrics) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		method := path.Base(info.FullMethod)
		st, _ := status.FromError(err)
		code := st.Code().String()
		m.GRPCRequestsTotal.WithLabelValues(method, code).Inc()
		m.GRPCRequestDuration.WithLabelValues(method, code).Observe(time.Since(start).Seconds())
		return resp, err
	}
}

// RecordDecode counts a decode by outcome: ok, invalid (InvalidConditionError)
// or error (anything else).
func (m *Metrics) RecordDecode(err error) {
	m.DecodesTotal.WithLabelValues(outcome(err)).Inc()
}

// RecordEvaluation counts an evaluation result; failed evaluations count as "error".
func (m *Metrics) RecordEvaluation(result bool, err error, elapsed time.Duration) {
	label := strconv.FormatBool(result)
	if err != nil {
		label = OutcomeError
	}
	m.EvaluationsTotal.WithLabelValues(label).Inc()
	m.EvaluationDuration.Observe(elapsed.Seconds())
}

// RecordStoreOp counts a store operation by outcome.
func (m *Metrics) RecordStoreOp(op string, err error) {
	m.StoreOpsTotal.WithLabelValues(op, outcome(err)).Inc()
}

// IncAuthFailures increments the authentication failure counter.
func (m *Metrics) IncAuthFailures() {
	m.AuthFailuresTotal.Inc()
}

func outcome(err error) string {
	if err == nil {
		return OutcomeOK
	}
	if _, invalid := types.AsInvalidCondition(err); invalid {
		return OutcomeInvalid
	}
	return OutcomeError
}
