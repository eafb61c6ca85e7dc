package domain

import (
	"fmt"
	"strings"
)

// GateType is one of the fixed approval checkpoints of a feature run.
type GateType int

// Gate types. The zero value is deliberately invalid.
const (
	GateRequirements GateType = iota + 1
	GateArchitecture
	GateUAT
)

// AllGateTypes returns every gate type in taxonomy order.
func AllGateTypes() []GateType {
	return []GateType{GateRequirements, GateArchitecture, GateUAT}
}

// String returns the canonical upper-case name
func (g GateType) String() string {
	switch g {
	case GateRequirements:
		return "REQUIREMENTS"
	case GateArchitecture:
		return "ARCHITECTURE"
	case GateUAT:
		return "UAT"
	default:
		return fmt.Sprintf("GateType(%d)", int(g))
	}
}

// Validate checks if the gate type is part of the taxonomy
func (g GateType) Validate() error {
	switch g {
	case GateRequirements, GateArchitecture, GateUAT:
		return nil
	default:
		return fmt.Errorf("invalid gate type %d", int(g))
	}
}

// ParseGateType parses a gate type name, case-insensitively.
func ParseGateType(s string) (GateType, error) {
	for _, g := range AllGateTypes() {
		if strings.EqualFold(s, g.String()) {
			return g, nil
		}
	}
	return 0, fmt.Errorf("invalid gate type %q: must be one of REQUIREMENTS, ARCHITECTURE, UAT", s)
}

// MarshalText implements encoding.TextMarshaler
func (g GateType) MarshalText() ([]byte, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return []byte(g.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (g *GateType) UnmarshalText(text []byte) error {
	parsed, err := ParseGateType(string(text))
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}

// GateStatus is the decision state of a gate.
type GateStatus int

// Gate statuses. PENDING is the zero value so unset gates read as pending.
const (
	GatePending GateStatus = iota
	GateApproved
	GateRejected
	GateSkipped
)

// AllGateStatuses returns every gate status.
func AllGateStatuses() []GateStatus {
	return []GateStatus{GatePending, GateApproved, GateRejected, GateSkipped}
}

// String returns the canonical upper-case name
func (s GateStatus) String() string {
	switch s {
	case GatePending:
		return "PENDING"
	case GateApproved:
		return "APPROVED"
	case GateRejected:
		return "REJECTED"
	case GateSkipped:
		return "SKIPPED"
	default:
		return fmt.Sprintf("GateStatus(%d)", int(s))
	}
}

// IsTerminal reports whether the gate has left PENDING.
func (s GateStatus) IsTerminal() bool {
	return s != GatePending
}

// AllowsProgress reports whether work behind the gate may be dispatched.
func (s GateStatus) AllowsProgress() bool {
	switch s {
	case GateApproved, GateSkipped:
		return true
	default:
		return false
	}
}

// ParseGateStatus parses a gate status name, case-insensitively.
func ParseGateStatus(s string) (GateStatus, error) {
	for _, st := range AllGateStatuses() {
		if strings.EqualFold(s, st.String()) {
			return st, nil
		}
	}
	return 0, fmt.Errorf("invalid gate status %q", s)
}

// MarshalText implements encoding.TextMarshaler
func (s GateStatus) MarshalText() ([]byte, error) {
	switch s {
	case GatePending, GateApproved, GateRejected, GateSkipped:
		return []byte(s.String()), nil
	default:
		return nil, fmt.Errorf("invalid gate status %d", int(s))
	}
}

// UnmarshalText implements encoding.TextUnmarshaler
func (s *GateStatus) UnmarshalText(text []byte) error {
	parsed, err := ParseGateStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
