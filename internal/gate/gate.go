// Package gate manages human approval gates attached to a feature run.
//
// Each (feature, gate type) pair moves from PENDING to APPROVED, REJECTED or
// SKIPPED. A skipped gate is sticky with respect to approval: approving it
// leaves it skipped. Rejection and skip overwrite whatever was recorded.
// Gate records are stored on the feature's checkpoint.
package gate

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/orchestra/internal/checkpoint"
	"github.com/felixgeelhaar/orchestra/internal/domain"
	"github.com/felixgeelhaar/orchestra/internal/errors"
	"github.com/felixgeelhaar/orchestra/internal/log"
)

// AutoSkipComment is recorded on gates skipped by the skip directive.
const AutoSkipComment = "auto-skipped"

// GateManagerError reports a gate operation on a feature that has no
// checkpoint.
type GateManagerError struct {
	FeatureID string
	Op        string
}

func (e *GateManagerError) Error() string {
	return fmt.Sprintf("gate %s: no checkpoint for feature %s", e.Op, e.FeatureID)
}

// ErrorCode implements errors.Coded
func (e *GateManagerError) ErrorCode() errors.ErrorCode {
	return errors.ErrCodeGateNoRun
}

// SkipDirective decides which gate types are skipped without a human.
type SkipDirective interface {
	ShouldSkip(featureID string, t domain.GateType) bool
}

// StaticSkips skips the same gate types for every feature.
type StaticSkips []domain.GateType

// ShouldSkip implements SkipDirective
func (s StaticSkips) ShouldSkip(_ string, t domain.GateType) bool {
	for _, skip := range s {
		if skip == t {
			return true
		}
	}
	return false
}

// ParseSkips parses gate type names such as "uat" or "ARCHITECTURE".
func ParseSkips(names []string) (StaticSkips, error) {
	skips := make(StaticSkips, 0, len(names))
	for _, name := range names {
		t, err := domain.ParseGateType(name)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeGateInvalid, "invalid skip directive", err).
				WithSuggestion("Valid gate types: REQUIREMENTS, ARCHITECTURE, UAT")
		}
		skips = append(skips, t)
	}
	return skips, nil
}

// Recorder receives gate transitions. metrics.Metrics implements it.
type Recorder interface {
	RecordGateDecision(t domain.GateType, s domain.GateStatus)
}

// Manager applies gate decisions to checkpoints.
type Manager struct {
	store    *checkpoint.Store
	skips    SkipDirective
	logger   *log.Logger
	recorder Recorder
	now      func() time.Time
}

// Option configures a Manager
type Option func(*Manager)

// WithSkips sets the skip directive consulted by AutoSkipGates
func WithSkips(d SkipDirective) Option {
	return func(m *Manager) {
		m.skips = d
	}
}

// WithLogger sets the manager logger
func WithLogger(l *log.Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

// WithRecorder reports decisions to r
func WithRecorder(r Recorder) Option {
	return func(m *Manager) {
		m.recorder = r
	}
}

// WithClock overrides the time source, used by tests
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a gate manager over store
func NewManager(store *checkpoint.Store, opts ...Option) *Manager {
	m := &Manager{
		store: store,
		skips: StaticSkips(nil),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = log.OrDefault(m.logger).With("component", "gate")
	return m
}

// transition describes one requested decision. It returns the new
// record, or ok=false to leave the current one untouched.
type transition func(current checkpoint.GateRecord) (next checkpoint.GateRecord, ok bool)

func (m *Manager) update(ctx context.Context, featureID string, t domain.GateType, op string, fn transition) (checkpoint.GateRecord, bool, error) {
	if err := t.Validate(); err != nil {
		return checkpoint.GateRecord{}, false, errors.Wrap(errors.ErrCodeGateInvalid, "invalid gate type", err)
	}

	var result checkpoint.GateRecord
	var changed bool
	err := m.store.UpdateGates(ctx, featureID, func(gates []checkpoint.GateRecord) ([]checkpoint.GateRecord, error) {
		idx := -1
		current := checkpoint.GateRecord{Type: t, Status: domain.GatePending}
		for i, g := range gates {
			if g.Type == t {
				idx, current = i, g
				break
			}
		}

		next, ok := fn(current)
		if !ok {
			result = current
			return gates, nil
		}
		next.Type = t
		result, changed = next, true
		if idx >= 0 {
			gates[idx] = next
		} else {
			gates = append(gates, next)
		}
		return gates, nil
	})
	if stderrors.Is(err, checkpoint.ErrCheckpointNotFound) {
		return checkpoint.GateRecord{}, false, &GateManagerError{FeatureID: featureID, Op: op}
	}
	if err != nil {
		return checkpoint.GateRecord{}, false, err
	}

	if changed {
		m.logger.Info("gate decision",
			"feature", featureID,
			"gate", t.String(),
			"status", result.Status.String(),
			"approver", result.Approver,
		)
		if m.recorder != nil {
			m.recorder.RecordGateDecision(t, result.Status)
		}
	} else {
		m.logger.Debug("gate unchanged",
			"feature", featureID,
			"gate", t.String(),
			"op", op,
			"status", result.Status.String(),
		)
	}
	return result, changed, nil
}

func (m *Manager) decided(status domain.GateStatus, approver, comment string) checkpoint.GateRecord {
	at := m.now().UTC()
	return checkpoint.GateRecord{
		Status:    status,
		Approver:  approver,
		DecidedAt: &at,
		Comment:   comment,
	}
}

// Approve marks a gate APPROVED unless it was SKIPPED, in which case nothing
// changes. The resulting record is returned.
func (m *Manager) Approve(ctx context.Context, featureID string, t domain.GateType, approver, comment string) (checkpoint.GateRecord, error) {
	rec, _, err := m.update(ctx, featureID, t, "approve", func(cur checkpoint.GateRecord) (checkpoint.GateRecord, bool) {
		if cur.Status == domain.GateSkipped {
			return cur, false
		}
		return m.decided(domain.GateApproved, approver, comment), true
	})
	return rec, err
}

// Reject marks a gate REJECTED regardless of its current state.
func (m *Manager) Reject(ctx context.Context, featureID string, t domain.GateType, approver, comment string) (checkpoint.GateRecord, error) {
	rec, _, err := m.update(ctx, featureID, t, "reject", func(checkpoint.GateRecord) (checkpoint.GateRecord, bool) {
		return m.decided(domain.GateRejected, approver, comment), true
	})
	return rec, err
}

// Skip marks a gate SKIPPED regardless of its current state.
func (m *Manager) Skip(ctx context.Context, featureID string, t domain.GateType, reason string) (checkpoint.GateRecord, error) {
	rec, _, err := m.update(ctx, featureID, t, "skip", func(checkpoint.GateRecord) (checkpoint.GateRecord, bool) {
		return m.decided(domain.GateSkipped, "", reason), true
	})
	return rec, err
}

// AutoSkipGates skips every pending gate named by the skip directive and
// returns the types that changed.
func (m *Manager) AutoSkipGates(ctx context.Context, featureID string) ([]domain.GateType, error) {
	var skipped []domain.GateType
	for _, t := range domain.AllGateTypes() {
		if !m.skips.ShouldSkip(featureID, t) {
			continue
		}
		_, changed, err := m.update(ctx, featureID, t, "auto-skip", func(cur checkpoint.GateRecord) (checkpoint.GateRecord, bool) {
			if cur.Status != domain.GatePending {
				return cur, false
			}
			return m.decided(domain.GateSkipped, "", AutoSkipComment), true
		})
		if err != nil {
			return skipped, err
		}
		if changed {
			skipped = append(skipped, t)
		}
	}
	return skipped, nil
}

// Gate returns the record for one gate, synthesizing PENDING if none was
// ever written.
func (m *Manager) Gate(ctx context.Context, featureID string, t domain.GateType) (checkpoint.GateRecord, error) {
	cp, err := m.store.Get(ctx, featureID)
	if err != nil {
		return checkpoint.GateRecord{}, err
	}
	if cp == nil {
		return checkpoint.GateRecord{}, &GateManagerError{FeatureID: featureID, Op: "get"}
	}
	if rec, ok := cp.Gate(t); ok {
		return rec, nil
	}
	return checkpoint.GateRecord{Type: t, Status: domain.GatePending}, nil
}

// GateStatus returns the status of one gate
func (m *Manager) GateStatus(ctx context.Context, featureID string, t domain.GateType) (domain.GateStatus, error) {
	rec, err := m.Gate(ctx, featureID, t)
	if err != nil {
		return domain.GatePending, err
	}
	return rec.Status, nil
}

// AllGates returns one record per gate type in taxonomy order.
func (m *Manager) AllGates(ctx context.Context, featureID string) ([]checkpoint.GateRecord, error) {
	cp, err := m.store.Get(ctx, featureID)
	if err != nil {
		return nil, err
	}
	if cp == nil {
		return nil, &GateManagerError{FeatureID: featureID, Op: "list"}
	}
	return Complete(cp), nil
}

// Complete returns cp's gate records for the full taxonomy, with missing
// entries synthesized as PENDING.
func Complete(cp *checkpoint.Checkpoint) []checkpoint.GateRecord {
	all := make([]checkpoint.GateRecord, 0, len(domain.AllGateTypes()))
	for _, t := range domain.AllGateTypes() {
		rec, ok := cp.Gate(t)
		if !ok {
			rec = checkpoint.GateRecord{Type: t, Status: domain.GatePending}
		}
		all = append(all, rec)
	}
	return all
}
