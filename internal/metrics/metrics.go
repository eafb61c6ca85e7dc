package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/felixgeelhaar/orchestra/internal/domain"
	"github.com/felixgeelhaar/orchestra/internal/errors"
)

// Metrics holds all Prometheus metrics for orchestra
type Metrics struct {
	// Agent pool metrics
	PoolCapacity    prometheus.Gauge
	PoolBusy        prometheus.Gauge
	PoolAcquireWait prometheus.Histogram

	// Work item metrics
	ItemExecutions *prometheus.CounterVec
	ItemDuration   *prometheus.HistogramVec

	// Run metrics
	Runs        *prometheus.CounterVec
	RunDuration *prometheus.HistogramVec

	// Checkpoint metrics
	CheckpointSaves        *prometheus.CounterVec
	CheckpointSaveDuration prometheus.Histogram

	// Gate metrics
	GateDecisions *prometheus.CounterVec

	// Error metrics (by error code from structured errors)
	Errors *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered
func NewMetrics(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		PoolCapacity: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "orchestra_pool_capacity",
				Help: "Number of agent slots in the pool",
			},
		),
		PoolBusy: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "orchestra_pool_busy",
				Help: "Number of agent slots currently executing a work item",
			},
		),
		PoolAcquireWait: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "orchestra_pool_acquire_wait_seconds",
				Help:    "Time spent waiting for a free agent slot",
				Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
			},
		),

		ItemExecutions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orchestra_item_executions_total",
				Help: "Total number of work item executions",
			},
			[]string{"success"},
		),
		ItemDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "orchestra_item_duration_seconds",
				Help:    "Work item execution duration in seconds",
				Buckets: []float64{0.1, 1.0, 5.0, 30.0, 60.0, 300.0, 900.0, 3600.0},
			},
			[]string{"success"},
		),

		Runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orchestra_runs_total",
				Help: "Total number of feature runs by final state",
			},
			[]string{"state"},
		),
		RunDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "orchestra_run_duration_seconds",
				Help:    "Feature run duration in seconds",
				Buckets: []float64{1.0, 10.0, 60.0, 300.0, 1800.0, 3600.0, 14400.0},
			},
			[]string{"state"},
		),

		CheckpointSaves: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orchestra_checkpoint_saves_total",
				Help: "Total number of checkpoint saves",
			},
			[]string{"success"},
		),
		CheckpointSaveDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "orchestra_checkpoint_save_duration_seconds",
				Help:    "Checkpoint save latency in seconds",
				Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
			},
		),

		GateDecisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orchestra_gate_decisions_total",
				Help: "Total number of gate transitions",
			},
			[]string{"gate", "status"},
		),

		Errors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orchestra_errors_total",
				Help: "Total number of errors by error code",
			},
			[]string{"error_code"},
		),
	}
}

// SetPoolCapacity records the configured pool size
func (m *Metrics) SetPoolCapacity(capacity int) {
	m.PoolCapacity.Set(float64(capacity))
}

// SetPoolBusy implements pool.Recorder
func (m *Metrics) SetPoolBusy(busy int) {
	m.PoolBusy.Set(float64(busy))
}

// ObserveAcquireWait implements pool.Recorder
func (m *Metrics) ObserveAcquireWait(d time.Duration) {
	m.PoolAcquireWait.Observe(d.Seconds())
}

// ObserveItem records one finished work item
func (m *Metrics) ObserveItem(success bool, d time.Duration) {
	label := strconv.FormatBool(success)
	m.ItemExecutions.WithLabelValues(label).Inc()
	m.ItemDuration.WithLabelValues(label).Observe(d.Seconds())
}

// ObserveRun records one finished run by its final state
func (m *Metrics) ObserveRun(state string, d time.Duration) {
	m.Runs.WithLabelValues(state).Inc()
	m.RunDuration.WithLabelValues(state).Observe(d.Seconds())
}

// ObserveCheckpointSave implements checkpoint.Recorder
func (m *Metrics) ObserveCheckpointSave(d time.Duration, err error) {
	m.CheckpointSaves.WithLabelValues(strconv.FormatBool(err == nil)).Inc()
	m.CheckpointSaveDuration.Observe(d.Seconds())
	if err != nil {
		m.RecordError(err)
	}
}

// RecordGateDecision implements gate.Recorder
func (m *Metrics) RecordGateDecision(t domain.GateType, s domain.GateStatus) {
	m.GateDecisions.WithLabelValues(t.String(), s.String()).Inc()
}

// RecordError counts err by its error code, or "unknown" when it has none
func (m *Metrics) RecordError(err error) {
	if err == nil {
		return
	}
	code := "unknown"
	if c, ok := errors.CodeOf(err); ok {
		code = string(c)
	}
	m.Errors.WithLabelValues(code).Inc()
}
