package telemetry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for the engine. A disabled instance is
// a safe no-op.
type Metrics struct {
	config MetricsConfig

	// Rollout metrics
	rolloutsStarted   *prometheus.CounterVec
	rolloutsCompleted *prometheus.CounterVec
	rolloutDuration   *prometheus.HistogramVec

	// Batch metrics
	batchesApplied *prometheus.CounterVec
	batchDuration  *prometheus.HistogramVec

	// Operation metrics
	operationsTotal *prometheus.CounterVec

	// Group metrics
	groupCapacity *prometheus.GaugeVec

	// Snapshot metrics
	snapshotsSaved *prometheus.CounterVec

	// System metrics
	activeRollouts prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		rolloutsStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rollouts_started_total",
				Help:      "Total number of rolling updates started",
			},
			[]string{"group"},
		),
		rolloutsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rollouts_completed_total",
				Help:      "Total number of rolling updates reaching a terminal status",
			},
			[]string{"group", "status"},
		),
		rolloutDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "rollout_duration_seconds",
				Help:      "Duration of rolling updates in seconds",
				Buckets:   buckets,
			},
			[]string{"status"},
		),

		batchesApplied: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "batches_applied_total",
				Help:      "Total number of update batches settled",
			},
			[]string{"group"},
		),
		batchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "batch_duration_seconds",
				Help:      "Duration of update batches in seconds",
				Buckets:   buckets,
			},
			[]string{"group"},
		),

		operationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Total number of lifecycle operations by terminal status",
			},
			[]string{"action", "status", "resource_type"},
		),

		groupCapacity: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "group_capacity",
				Help:      "Current member count per group",
			},
			[]string{"group"},
		),

		snapshotsSaved: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "snapshots_saved_total",
				Help:      "Total number of member snapshots persisted",
			},
			[]string{"group"},
		),

		activeRollouts: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_rollouts",
				Help:      "Current number of in-flight rolling updates",
			},
		),
	}

	registry.MustRegister(
		m.rolloutsStarted,
		m.rolloutsCompleted,
		m.rolloutDuration,
		m.batchesApplied,
		m.batchDuration,
		m.operationsTotal,
		m.groupCapacity,
		m.snapshotsSaved,
		m.activeRollouts,
	)

	return m, nil
}

// RecordRolloutStarted increments the counter for started rolling updates.
func (m *Metrics) RecordRolloutStarted(group string) {
	if m.rolloutsStarted == nil {
		return
	}
	m.rolloutsStarted.WithLabelValues(group).Inc()
	m.activeRollouts.Inc()
}

// RecordRolloutCompleted records a terminal rolling update with its duration.
func (m *Metrics) RecordRolloutCompleted(group, status string, duration time.Duration) {
	if m.rolloutsCompleted == nil {
		return
	}
	m.rolloutsCompleted.WithLabelValues(group, status).Inc()
	m.rolloutDuration.WithLabelValues(status).Observe(duration.Seconds())
	m.activeRollouts.Dec()
}

// RecordBatchApplied records one settled update batch.
func (m *Metrics) RecordBatchApplied(group string, duration time.Duration) {
	if m.batchesApplied == nil {
		return
	}
	m.batchesApplied.WithLabelValues(group).Inc()
	m.batchDuration.WithLabelValues(group).Observe(duration.Seconds())
}

// RecordOperation records one lifecycle operation reaching a terminal status.
func (m *Metrics) RecordOperation(action, status, resourceType string) {
	if m.operationsTotal == nil {
		return
	}
	m.operationsTotal.WithLabelValues(action, status, resourceType).Inc()
}

// SetGroupCapacity sets the current member count of a group.
func (m *Metrics) SetGroupCapacity(group string, count float64) {
	if m.groupCapacity == nil {
		return
	}
	m.groupCapacity.WithLabelValues(group).Set(count)
}

// RecordSnapshotSaved records a persisted member snapshot.
func (m *Metrics) RecordSnapshotSaved(group string) {
	if m.snapshotsSaved == nil {
		return
	}
	m.snapshotsSaved.WithLabelValues(group).Inc()
}

// Timer provides a convenient way to time operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer starts an HTTP server to expose metrics.
func (m *Metrics) StartMetricsServer() error {
	if !m.config.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(m.config.Path, m.Handler())

	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("metrics server error: %v\n", err)
		}
	}()

	return nil
}
