package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/felixgeelhaar/orchestra/internal/domain"
	orcherrors "github.com/felixgeelhaar/orchestra/internal/errors"
)

func TestNewMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	tests := []struct {
		name   string
		metric interface{}
	}{
		{"PoolCapacity", m.PoolCapacity},
		{"PoolBusy", m.PoolBusy},
		{"PoolAcquireWait", m.PoolAcquireWait},
		{"ItemExecutions", m.ItemExecutions},
		{"ItemDuration", m.ItemDuration},
		{"Runs", m.Runs},
		{"RunDuration", m.RunDuration},
		{"CheckpointSaves", m.CheckpointSaves},
		{"CheckpointSaveDuration", m.CheckpointSaveDuration},
		{"GateDecisions", m.GateDecisions},
		{"Errors", m.Errors},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotNil(t, tt.metric)
		})
	}
}

func TestPoolMetrics(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.SetPoolCapacity(3)
	m.SetPoolBusy(2)
	m.ObserveAcquireWait(10 * time.Millisecond)
	m.ObserveAcquireWait(0)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.PoolCapacity))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.PoolBusy))
	assert.Equal(t, 1, testutil.CollectAndCount(m.PoolAcquireWait))
}

func TestItemAndRunMetrics(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.ObserveItem(true, time.Second)
	m.ObserveItem(true, 2*time.Second)
	m.ObserveItem(false, time.Second)
	m.ObserveRun("COMPLETED", time.Minute)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ItemExecutions.WithLabelValues("true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ItemExecutions.WithLabelValues("false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Runs.WithLabelValues("COMPLETED")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.ItemDuration))
}

func TestCheckpointAndGateMetrics(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.ObserveCheckpointSave(time.Millisecond, nil)
	m.ObserveCheckpointSave(time.Millisecond, orcherrors.New(orcherrors.ErrCodeRepository, "disk full"))
	m.RecordGateDecision(domain.GateUAT, domain.GateSkipped)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CheckpointSaves.WithLabelValues("true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CheckpointSaves.WithLabelValues("false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Errors.WithLabelValues("STORE-001")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GateDecisions.WithLabelValues("UAT", "SKIPPED")))
}

func TestRecordError(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordError(nil)
	m.RecordError(errors.New("plain"))
	m.RecordError(orcherrors.New(orcherrors.ErrCodeGraphCycle, "cycle"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Errors.WithLabelValues("unknown")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Errors.WithLabelValues("GRAPH-001")))
}
