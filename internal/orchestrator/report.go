package orchestrator

import (
	"time"

	"github.com/felixgeelhaar/orchestra/internal/domain"
)

// State is the lifecycle state of a run
type State string

// Run states
const (
	StateInitializing State = "INITIALIZING"
	StateRunning      State = "RUNNING"
	StateCompleted    State = "COMPLETED"
	StateFailed       State = "FAILED"
	// StateBlocked means the run stopped with gated items awaiting a decision.
	StateBlocked State = "BLOCKED"
	// StateAborted means the context ended; in-flight items were finished.
	StateAborted State = "ABORTED"
)

// IsTerminal reports whether the run cannot be resumed
func (s State) IsTerminal() bool {
	return s == StateCompleted
}

// AwaitingGate is a ready item held by an undecided gate
type AwaitingGate struct {
	ItemID string          `json:"item_id"`
	Gate   domain.GateType `json:"gate"`
}

// Report summarizes a finished run
type Report struct {
	FeatureID     string            `json:"feature_id"`
	RunID         string            `json:"run_id"`
	AgentID       string            `json:"agent_id"`
	Resumed       bool              `json:"resumed"`
	State         State             `json:"state"`
	Completed     []string          `json:"completed"`
	Failed        map[string]string `json:"failed,omitempty"`
	Unreached     []string          `json:"unreached,omitempty"`
	AwaitingGates []AwaitingGate    `json:"awaiting_gates,omitempty"`
	Duration      time.Duration     `json:"duration"`
}

// GateNames returns the distinct gate types the run is waiting on, in
// taxonomy order.
func (r *Report) GateNames() []string {
	seen := make(map[domain.GateType]bool)
	for _, a := range r.AwaitingGates {
		seen[a.Gate] = true
	}
	var names []string
	for _, t := range domain.AllGateTypes() {
		if seen[t] {
			names = append(names, t.String())
		}
	}
	return names
}
