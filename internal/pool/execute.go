package pool

import (
	"context"
	"fmt"
	"time"
)

// Work is the delegated unit of execution for one work item. A non-nil error
// marks the item failed; the error text becomes the result's diagnostic.
type Work func(ctx context.Context) error

// Result is the outcome of one work item executed in the pool.
type Result struct {
	ItemID   string
	AgentID  string
	Success  bool
	Error    string
	Duration time.Duration
}

// Execute acquires a slot, runs work, and releases the slot regardless of the
// outcome. Failures of work, including panics, are returned as an
// unsuccessful Result and never propagated, so one item cannot disturb the
// pool or its siblings. The only unsuccessful result not caused by work is a
// context that ended while waiting for a slot.
func (p *Pool) Execute(ctx context.Context, workItemID string, work Work) Result {
	agentID, err := p.Acquire(ctx, workItemID)
	if err != nil {
		return Result{
			ItemID: workItemID,
			Error:  fmt.Sprintf("acquire agent: %v", err),
		}
	}

	start := p.now()
	runErr := runIsolated(ctx, work)
	duration := p.now().Sub(start)

	success := runErr == nil
	// Release can only fail for unknown or idle slots, which Acquire rules out.
	_ = p.Release(agentID, success)

	res := Result{
		ItemID:   workItemID,
		AgentID:  agentID,
		Success:  success,
		Duration: duration,
	}
	if runErr != nil {
		res.Error = runErr.Error()
	}
	return res
}

func runIsolated(ctx context.Context, work Work) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("work panicked: %v", r)
		}
	}()
	if work == nil {
		return fmt.Errorf("no work supplied")
	}
	return work(ctx)
}
