package rolemetrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	sharedtypes "github.com/rolewarden/rolewarden/app/types/shared"
)

// RoleMetrics is the rolemessage module's metrics surface. Service
// operations record through this interface so tests and tooling can run
// with the NoOp implementation.
type RoleMetrics interface {
	RecordOperationAttempt(ctx context.Context, operation string, guildID sharedtypes.GuildID)
	RecordOperationSuccess(ctx context.Context, operation string, guildID sharedtypes.GuildID)
	RecordOperationFailure(ctx context.Context, operation string, guildID sharedtypes.GuildID)
	RecordOperationDuration(ctx context.Context, operation string, guildID sharedtypes.GuildID, duration time.Duration)
	RecordActivationRejected(ctx context.Context, guildID sharedtypes.GuildID, reason string)
	RecordRoleMutationFailure(ctx context.Context, guildID sharedtypes.GuildID, op string)
}

// PrometheusMetrics implements RoleMetrics on a prometheus registry.
type PrometheusMetrics struct {
	attempts         *prometheus.CounterVec
	successes        *prometheus.CounterVec
	failures         *prometheus.CounterVec
	durations        *prometheus.HistogramVec
	rejections       *prometheus.CounterVec
	mutationFailures *prometheus.CounterVec
}

var _ RoleMetrics = (*PrometheusMetrics)(nil)

// NewPrometheusMetrics registers the module's collectors on reg.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	m := &PrometheusMetrics{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rolemessage_operation_attempts_total",
			Help: "Role message operations started.",
		}, []string{"operation"}),
		successes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rolemessage_operation_successes_total",
			Help: "Role message operations completed without error.",
		}, []string{"operation"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rolemessage_operation_failures_total",
			Help: "Role message operations that returned an error.",
		}, []string{"operation"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rolemessage_operation_duration_seconds",
			Help:    "Role message operation latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rolemessage_activation_rejections_total",
			Help: "Activations turned away by a gate check.",
		}, []string{"reason"}),
		mutationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rolemessage_role_mutation_failures_total",
			Help: "Individual role mutations the platform refused.",
		}, []string{"op"}),
	}
	reg.MustRegister(m.attempts, m.successes, m.failures, m.durations, m.rejections, m.mutationFailures)
	return m
}

func (m *PrometheusMetrics) RecordOperationAttempt(_ context.Context, operation string, _ sharedtypes.GuildID) {
	m.attempts.WithLabelValues(operation).Inc()
}

func (m *PrometheusMetrics) RecordOperationSuccess(_ context.Context, operation string, _ sharedtypes.GuildID) {
	m.successes.WithLabelValues(operation).Inc()
}

func (m *PrometheusMetrics) RecordOperationFailure(_ context.Context, operation string, _ sharedtypes.GuildID) {
	m.failures.WithLabelValues(operation).Inc()
}

func (m *PrometheusMetrics) RecordOperationDuration(_ context.Context, operation string, _ sharedtypes.GuildID, duration time.Duration) {
	m.durations.WithLabelValues(operation).Observe(duration.Seconds())
}

func (m *PrometheusMetrics) RecordActivationRejected(_ context.Context, _ sharedtypes.GuildID, reason string) {
	m.rejections.WithLabelValues(reason).Inc()
}

func (m *PrometheusMetrics) RecordRoleMutationFailure(_ context.Context, _ sharedtypes.GuildID, op string) {
	m.mutationFailures.WithLabelValues(op).Inc()
}

// NoOpMetrics discards everything. Used by tests and offline tooling.
type NoOpMetrics struct{}

var _ RoleMetrics = (*NoOpMetrics)(nil)

func (NoOpMetrics) RecordOperationAttempt(context.Context, string, sharedtypes.GuildID) {}
func (NoOpMetrics) RecordOperationSuccess(context.Context, string, sharedtypes.GuildID) {}
func (NoOpMetrics) RecordOperationFailure(context.Context, string, sharedtypes.GuildID) {}
func (NoOpMetrics) RecordOperationDuration(context.Context, string, sharedtypes.GuildID, time.Duration) {
}
func (NoOpMetrics) RecordActivationRejected(context.Context, sharedtypes.GuildID, string) {}
func (NoOpMetrics) RecordRoleMutationFailure(context.Context, sharedtypes.GuildID, string) {}
