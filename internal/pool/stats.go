package pool

import "time"

// Stats summarizes pool occupancy.
type Stats struct {
	Total     int `json:"total"`
	Busy      int `json:"busy"`
	Available int `json:"available"`
}

// AgentInfo is a snapshot of one slot.
type AgentInfo struct {
	ID          string        `json:"id"`
	Busy        bool          `json:"busy"`
	CurrentItem string        `json:"current_item,omitempty"`
	StartedAt   time.Time     `json:"started_at,omitzero"`
	Elapsed     time.Duration `json:"elapsed"`
	Completed   int           `json:"completed"`
}

// Stats returns current occupancy.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	busy := len(p.slots) - p.idleLocked()
	return Stats{
		Total:     len(p.slots),
		Busy:      busy,
		Available: len(p.slots) - busy,
	}
}

// Agents returns a snapshot of every slot in slot order.
func (p *Pool) Agents() []AgentInfo {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	out := make([]AgentInfo, len(p.slots))
	for i, s := range p.slots {
		out[i] = snapshot(s, now)
	}
	return out
}

// Agent returns a snapshot of one slot.
func (p *Pool) Agent(id string) (AgentInfo, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := p.findLocked(id)
	if s == nil {
		return AgentInfo{}, false
	}
	return snapshot(s, p.now()), true
}

func snapshot(s *slot, now time.Time) AgentInfo {
	info := AgentInfo{
		ID:          s.id,
		Busy:        s.busy,
		CurrentItem: s.itemID,
		StartedAt:   s.startedAt,
		Completed:   s.completed,
	}
	if s.busy {
		info.Elapsed = now.Sub(s.startedAt)
	}
	return info
}
