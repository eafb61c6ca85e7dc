// Package checkpoint persists the progress of feature runs so that an
// interrupted run can be resumed by the agent that owns it.
//
// A Checkpoint is keyed by feature ID and overwritten on every save. Gate
// decisions live in a nested list on the same record; they are written by the
// gate manager and carried across progress saves.
package checkpoint

import (
	"time"

	"github.com/felixgeelhaar/orchestra/internal/domain"
)

// SchemaVersion is the version of the persisted record shape.
const SchemaVersion = 1

// Checkpoint is the durable snapshot of one feature run.
type Checkpoint struct {
	Version   int                     `json:"version"`
	FeatureID string                  `json:"feature_id"`
	AgentID   string                  `json:"agent_id"`
	RunID     string                  `json:"run_id"`
	PlanHash  string                  `json:"plan_hash,omitempty"`
	Order     []string                `json:"order"`
	Completed []string                `json:"completed"`
	Failed    map[string]string       `json:"failed,omitempty"`
	Current   string                  `json:"current,omitempty"`
	Status    domain.CheckpointStatus `json:"status"`
	Gates     []GateRecord            `json:"gates,omitempty"`
	StartedAt time.Time               `json:"started_at"`
	UpdatedAt time.Time               `json:"updated_at"`
}

// GateRecord is the persisted state of one approval gate.
type GateRecord struct {
	Type      domain.GateType   `json:"type"`
	Status    domain.GateStatus `json:"status"`
	Approver  string            `json:"approver,omitempty"`
	DecidedAt *time.Time        `json:"decided_at,omitempty"`
	Comment   string            `json:"comment,omitempty"`
}

// CompletedSet returns the completed items as a set.
func (c *Checkpoint) CompletedSet() map[string]bool {
	set := make(map[string]bool, len(c.Completed))
	for _, id := range c.Completed {
		set[id] = true
	}
	return set
}

// Pending returns the items of the planned order that have not completed.
func (c *Checkpoint) Pending() []string {
	done := c.CompletedSet()
	var pending []string
	for _, id := range c.Order {
		if !done[id] {
			pending = append(pending, id)
		}
	}
	return pending
}

// Progress returns the completed fraction of the planned order (0.0 to 1.0).
func (c *Checkpoint) Progress() float64 {
	if len(c.Order) == 0 {
		return 0.0
	}
	return float64(len(c.Completed)) / float64(len(c.Order))
}

// Resumable reports whether the run may be picked up again.
func (c *Checkpoint) Resumable() bool {
	return c.Status.IsResumable()
}

// Gate returns the stored record for a gate type, if any was ever written.
func (c *Checkpoint) Gate(t domain.GateType) (GateRecord, bool) {
	for _, g := range c.Gates {
		if g.Type == t {
			return g, true
		}
	}
	return GateRecord{}, false
}

// SaveRequest carries the progress fields of a save.
type SaveRequest struct {
	FeatureID string
	AgentID   string
	RunID     string
	PlanHash  string
	Order     []string
	Completed []string
	Failed    map[string]string
	Current   string
	Status    domain.CheckpointStatus
}
