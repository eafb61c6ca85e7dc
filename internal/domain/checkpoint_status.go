package domain

import (
	"fmt"
	"strings"
)

// CheckpointStatus is the persisted status of a feature run.
type CheckpointStatus int

// Checkpoint statuses
const (
	StatusInProgress CheckpointStatus = iota + 1
	StatusCompleted
	StatusFailed
)

// AllCheckpointStatuses returns every checkpoint status.
func AllCheckpointStatuses() []CheckpointStatus {
	return []CheckpointStatus{StatusInProgress, StatusCompleted, StatusFailed}
}

// String returns the canonical upper-case name
func (s CheckpointStatus) String() string {
	switch s {
	case StatusInProgress:
		return "IN_PROGRESS"
	case StatusCompleted:
		return "COMPLETED"
	case StatusFailed:
		return "FAILED"
	default:
		return fmt.Sprintf("CheckpointStatus(%d)", int(s))
	}
}

// IsResumable reports whether a run in this status may be picked up again.
// Completed runs are never resumed.
func (s CheckpointStatus) IsResumable() bool {
	switch s {
	case StatusInProgress, StatusFailed:
		return true
	default:
		return false
	}
}

// ParseCheckpointStatus parses a status name, case-insensitively.
func ParseCheckpointStatus(s string) (CheckpointStatus, error) {
	for _, st := range AllCheckpointStatuses() {
		if strings.EqualFold(s, st.String()) {
			return st, nil
		}
	}
	return 0, fmt.Errorf("invalid checkpoint status %q", s)
}

// MarshalText implements encoding.TextMarshaler
func (s CheckpointStatus) MarshalText() ([]byte, error) {
	switch s {
	case StatusInProgress, StatusCompleted, StatusFailed:
		return []byte(s.String()), nil
	default:
		return nil, fmt.Errorf("invalid checkpoint status %d", int(s))
	}
}

// UnmarshalText implements encoding.TextUnmarshaler
func (s *CheckpointStatus) UnmarshalText(text []byte) error {
	parsed, err := ParseCheckpointStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
