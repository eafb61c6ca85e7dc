// Package pool manages a fixed number of agent slots that work items are
// dispatched into.
//
// Slots are accounting units, not goroutines: a caller acquires a slot,
// does its work on its own goroutine, and releases the slot. Selection
// prefers the idle slot that has completed the least work so that load
// spreads across slots over a long run.
package pool

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Recorder receives pool occupancy changes. metrics.Metrics implements it.
type Recorder interface {
	SetPoolBusy(busy int)
	ObserveAcquireWait(d time.Duration)
}

type slot struct {
	id        string
	busy      bool
	itemID    string
	startedAt time.Time
	completed int
}

type waiter struct {
	ready chan struct{}
}

// Pool is a fixed-capacity set of agent slots. It is safe for concurrent use.
type Pool struct {
	mu    sync.Mutex
	slots []*slot

	// waiters is the FIFO of suspended Acquire callers.
	waiters []*waiter
	// handoffs counts idle slots already promised to woken waiters that have
	// not claimed yet. New callers may only claim beyond this reservation.
	handoffs int

	recorder Recorder
	now      func() time.Time
}

// Option configures a Pool
type Option func(*Pool)

// WithRecorder reports occupancy changes to r
func WithRecorder(r Recorder) Option {
	return func(p *Pool) {
		p.recorder = r
	}
}

// WithClock overrides the time source, used by tests
func WithClock(now func() time.Time) Option {
	return func(p *Pool) {
		p.now = now
	}
}

// New creates a pool with capacity slots named agent-1 … agent-N.
// A capacity below one is treated as one.
func New(capacity int, opts ...Option) *Pool {
	if capacity < 1 {
		capacity = 1
	}

	p := &Pool{
		slots: make([]*slot, capacity),
		now:   time.Now,
	}
	for i := range p.slots {
		p.slots[i] = &slot{id: fmt.Sprintf("agent-%d", i+1)}
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Capacity returns the number of slots
func (p *Pool) Capacity() int {
	return len(p.slots)
}

// Acquire claims an idle slot for workItemID, suspending until one is
// available. Waiters are served in arrival order. It returns the slot ID, or
// ctx.Err() if the context ends first.
func (p *Pool) Acquire(ctx context.Context, workItemID string) (string, error) {
	start := p.now()

	p.mu.Lock()
	if len(p.waiters) == 0 && p.idleLocked() > p.handoffs {
		id := p.claimLocked(workItemID)
		p.mu.Unlock()
		p.observeWait(start)
		return id, nil
	}

	w := &waiter{ready: make(chan struct{})}
	p.waiters = append(p.waiters, w)
	p.mu.Unlock()

	select {
	case <-w.ready:
		p.mu.Lock()
		p.handoffs--
		id := p.claimLocked(workItemID)
		p.mu.Unlock()
		p.observeWait(start)
		return id, nil

	case <-ctx.Done():
		p.mu.Lock()
		defer p.mu.Unlock()
		if !p.removeWaiterLocked(w) {
			// Release already handed us a slot; pass it on.
			p.handoffs--
			p.wakeLocked()
		}
		return "", ctx.Err()
	}
}

// Release returns a slot to the pool. On success the slot's completed count
// is incremented. The longest-waiting Acquire caller, if any, is woken and
// re-runs slot selection.
func (p *Pool) Release(agentID string, success bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := p.findLocked(agentID)
	if s == nil {
		return fmt.Errorf("unknown agent %s", agentID)
	}
	if !s.busy {
		return fmt.Errorf("agent %s is not busy", agentID)
	}

	s.busy = false
	s.itemID = ""
	s.startedAt = time.Time{}
	if success {
		s.completed++
	}

	p.recordBusyLocked()
	p.wakeLocked()
	return nil
}

// idleLocked counts idle slots. Caller holds p.mu.
func (p *Pool) idleLocked() int {
	idle := 0
	for _, s := range p.slots {
		if !s.busy {
			idle++
		}
	}
	return idle
}

// claimLocked picks the idle slot with the fewest completions, lowest slot
// number first on ties, and marks it busy. Caller holds p.mu and has
// established that an idle slot exists.
func (p *Pool) claimLocked(workItemID string) string {
	var best *slot
	for _, s := range p.slots {
		if s.busy {
			continue
		}
		if best == nil || s.completed < best.completed {
			best = s
		}
	}

	best.busy = true
	best.itemID = workItemID
	best.startedAt = p.now()
	p.recordBusyLocked()
	return best.id
}

// wakeLocked hands one unreserved idle slot to the head waiter.
func (p *Pool) wakeLocked() {
	if len(p.waiters) == 0 || p.idleLocked() <= p.handoffs {
		return
	}
	w := p.waiters[0]
	p.waiters = p.waiters[1:]
	p.handoffs++
	close(w.ready)
}

func (p *Pool) removeWaiterLocked(target *waiter) bool {
	for i, w := range p.waiters {
		if w == target {
			p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
			return true
		}
	}
	return false
}

func (p *Pool) findLocked(agentID string) *slot {
	for _, s := range p.slots {
		if s.id == agentID {
			return s
		}
	}
	return nil
}

func (p *Pool) recordBusyLocked() {
	if p.recorder == nil {
		return
	}
	busy := 0
	for _, s := range p.slots {
		if s.busy {
			busy++
		}
	}
	p.recorder.SetPoolBusy(busy)
}

func (p *Pool) observeWait(start time.Time) {
	if p.recorder != nil {
		p.recorder.ObserveAcquireWait(p.now().Sub(start))
	}
}
