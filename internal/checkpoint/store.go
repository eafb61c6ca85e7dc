package checkpoint

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"sort"
	"time"

	"github.com/felixgeelhaar/orchestra/internal/domain"
	"github.com/felixgeelhaar/orchestra/internal/log"
)

// ErrCheckpointNotFound is returned by gate updates for a feature that has
// never been checkpointed.
var ErrCheckpointNotFound = stderrors.New("checkpoint not found")

// Recorder receives checkpoint write observations. metrics.Metrics
// implements it.
type Recorder interface {
	ObserveCheckpointSave(d time.Duration, err error)
}

// Store persists checkpoints through a Repository.
type Store struct {
	repo     Repository
	logger   *log.Logger
	recorder Recorder
	now      func() time.Time
}

// StoreOption configures a Store
type StoreOption func(*Store)

// WithLogger sets the store logger
func WithLogger(l *log.Logger) StoreOption {
	return func(s *Store) {
		s.logger = l
	}
}

// WithRecorder reports save latencies to r
func WithRecorder(r Recorder) StoreOption {
	return func(s *Store) {
		s.recorder = r
	}
}

// WithClock overrides the time source, used by tests
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates a store over repo
func NewStore(repo Repository, opts ...StoreOption) *Store {
	s := &Store{
		repo: repo,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = log.OrDefault(s.logger).With("component", "checkpoint")
	return s
}

// Repository returns the underlying repository
func (s *Store) Repository() Repository {
	return s.repo
}

// Close closes the underlying repository
func (s *Store) Close() error {
	return s.repo.Close()
}

func decode(key string, data []byte) (*Checkpoint, error) {
	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, repoErr("decode", key, err)
	}
	if cp.Version > SchemaVersion {
		return nil, repoErr("decode", key, fmt.Errorf("unsupported checkpoint version %d", cp.Version))
	}
	return &cp, nil
}

func encode(key string, cp *Checkpoint) ([]byte, error) {
	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return nil, repoErr("encode", key, err)
	}
	return data, nil
}

// Save upserts the progress fields of a feature's checkpoint. StartedAt is
// kept when the existing record belongs to the same run, and the gate list is
// always carried over from the existing record.
func (s *Store) Save(ctx context.Context, req SaveRequest) error {
	start := s.now()
	key := req.FeatureID

	err := s.repo.Update(ctx, key, func(current []byte) ([]byte, error) {
		now := s.now().UTC()
		cp := &Checkpoint{
			Version:   SchemaVersion,
			FeatureID: req.FeatureID,
			AgentID:   req.AgentID,
			RunID:     req.RunID,
			PlanHash:  req.PlanHash,
			Order:     cloneStrings(req.Order),
			Completed: cloneStrings(req.Completed),
			Failed:    cloneFailed(req.Failed),
			Current:   req.Current,
			Status:    req.Status,
			StartedAt: now,
			UpdatedAt: now,
		}

		if current != nil {
			prev, err := decode(key, current)
			if err != nil {
				return nil, err
			}
			if prev.RunID == req.RunID && !prev.StartedAt.IsZero() {
				cp.StartedAt = prev.StartedAt
			}
			cp.Gates = prev.Gates
		}

		return encode(key, cp)
	})

	if s.recorder != nil {
		s.recorder.ObserveCheckpointSave(s.now().Sub(start), err)
	}
	if err != nil {
		return err
	}

	s.logger.Debug("checkpoint saved",
		"feature", req.FeatureID,
		"status", req.Status.String(),
		"completed", len(req.Completed),
		"failed", len(req.Failed),
	)
	return nil
}

// Get returns a feature's checkpoint regardless of status, or nil if absent.
func (s *Store) Get(ctx context.Context, featureID string) (*Checkpoint, error) {
	data, found, err := s.repo.Get(ctx, featureID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return decode(featureID, data)
}

// LoadLatest returns the checkpoint only if it is still in progress or failed.
func (s *Store) LoadLatest(ctx context.Context, featureID string) (*Checkpoint, error) {
	cp, err := s.Get(ctx, featureID)
	if err != nil || cp == nil {
		return nil, err
	}
	if !cp.Resumable() {
		return nil, nil
	}
	return cp, nil
}

// Resume returns the resumable checkpoint for featureID if agentID owns it.
// Absence, completion and foreign ownership all yield nil without error.
func (s *Store) Resume(ctx context.Context, featureID, agentID string) (*Checkpoint, error) {
	cp, err := s.LoadLatest(ctx, featureID)
	if err != nil || cp == nil {
		return nil, err
	}
	if cp.AgentID != agentID {
		s.logger.Debug("checkpoint owned by another agent",
			"feature", featureID,
			"owner", cp.AgentID,
			"agent", agentID,
		)
		return nil, nil
	}
	return cp, nil
}

// List returns every stored checkpoint sorted by feature ID.
func (s *Store) List(ctx context.Context) ([]*Checkpoint, error) {
	var all []*Checkpoint
	err := s.repo.List(ctx, func(key string, value []byte) error {
		cp, err := decode(key, value)
		if err != nil {
			return err
		}
		all = append(all, cp)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(all, func(i, j int) bool {
		return all[i].FeatureID < all[j].FeatureID
	})
	return all, nil
}

// ListActive returns every in-progress or failed checkpoint sorted by
// feature ID.
func (s *Store) ListActive(ctx context.Context) ([]*Checkpoint, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	active := all[:0]
	for _, cp := range all {
		if cp.Resumable() {
			active = append(active, cp)
		}
	}
	return active, nil
}

// Delete removes a feature's checkpoint
func (s *Store) Delete(ctx context.Context, featureID string) error {
	return s.repo.Delete(ctx, featureID)
}

// UpdateGates atomically rewrites the gate list of an existing checkpoint.
// fn receives a copy of the current list. ErrCheckpointNotFound is returned
// when the feature has no checkpoint.
func (s *Store) UpdateGates(ctx context.Context, featureID string, fn func(gates []GateRecord) ([]GateRecord, error)) error {
	return s.repo.Update(ctx, featureID, func(current []byte) ([]byte, error) {
		if current == nil {
			return nil, ErrCheckpointNotFound
		}
		cp, err := decode(featureID, current)
		if err != nil {
			return nil, err
		}

		gates, err := fn(append([]GateRecord(nil), cp.Gates...))
		if err != nil {
			return nil, err
		}
		sort.Slice(gates, func(i, j int) bool {
			return gates[i].Type < gates[j].Type
		})
		cp.Gates = gates
		cp.UpdatedAt = s.now().UTC()
		return encode(featureID, cp)
	})
}

// SaveGates replaces the gate list of an existing checkpoint.
func (s *Store) SaveGates(ctx context.Context, featureID string, gates []GateRecord) error {
	return s.UpdateGates(ctx, featureID, func([]GateRecord) ([]GateRecord, error) {
		return append([]GateRecord(nil), gates...), nil
	})
}

// Summary is a one-line description of a checkpoint for listings.
func Summary(cp *Checkpoint) string {
	s := fmt.Sprintf("%s [%s] %d/%d completed", cp.FeatureID, cp.Status, len(cp.Completed), len(cp.Order))
	if len(cp.Failed) > 0 {
		s += fmt.Sprintf(", %d failed", len(cp.Failed))
	}
	var waiting []string
	for _, g := range cp.Gates {
		if g.Status == domain.GatePending {
			waiting = append(waiting, g.Type.String())
		}
	}
	if len(waiting) > 0 {
		s += fmt.Sprintf(", gates pending: %v", waiting)
	}
	return s
}

func cloneStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	return append([]string(nil), in...)
}

func cloneFailed(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
