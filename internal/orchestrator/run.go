package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/felixgeelhaar/orchestra/internal/checkpoint"
	"github.com/felixgeelhaar/orchestra/internal/domain"
	"github.com/felixgeelhaar/orchestra/internal/graph"
	"github.com/felixgeelhaar/orchestra/internal/log"
	"github.com/felixgeelhaar/orchestra/internal/plan"
	"github.com/felixgeelhaar/orchestra/internal/pool"
	"github.com/felixgeelhaar/orchestra/internal/telemetry"
)

// run holds the state of one Run or Resume call. Only the loop goroutine
// touches it; work goroutines report through results.
type run struct {
	o          *Orchestrator
	plan       *plan.Plan
	graph      *graph.Graph
	order      []string
	planHash   string
	runID      string
	resumed    bool
	state      State
	logger     *log.Logger
	persistCtx context.Context

	completed map[string]bool
	// done is completed in completion order, for the checkpoint.
	done     []string
	failed   map[string]string
	inFlight map[string]bool
	held     map[string]domain.GateType
	// announced remembers held items already logged.
	announced map[string]bool
	current   string

	results chan pool.Result
}

func (o *Orchestrator) newRun(p *plan.Plan, g *graph.Graph, order []string, hash, runID string, resumed bool) *run {
	return &run{
		o:         o,
		plan:      p,
		graph:     g,
		order:     order,
		planHash:  hash,
		runID:     runID,
		resumed:   resumed,
		logger:    o.logger.With("feature", p.Feature, "run_id", runID),
		completed: make(map[string]bool),
		failed:    make(map[string]string),
		inFlight:  make(map[string]bool),
		held:      make(map[string]domain.GateType),
		announced: make(map[string]bool),
		// Every item is dispatched at most once per run, so senders never
		// block even if the loop has returned.
		results: make(chan pool.Result, len(order)),
	}
}

// loop dispatches and collects until nothing more can happen. It returns the
// final state, or an error if persistence failed.
func (r *run) loop(ctx context.Context) (State, error) {
	var poll *time.Timer
	defer func() {
		if poll != nil {
			poll.Stop()
		}
	}()

	for {
		if ctx.Err() != nil {
			if len(r.inFlight) == 0 {
				return StateAborted, nil
			}
			// Aborting: dispatch nothing new and drain what is running.
			if err := r.complete(<-r.results); err != nil {
				return "", err
			}
			continue
		}

		if err := r.dispatch(ctx); err != nil {
			return "", err
		}

		if len(r.inFlight) == 0 {
			if len(r.completed) == len(r.order) {
				return StateCompleted, nil
			}
			if len(r.held) == 0 {
				return StateFailed, nil
			}
			if r.o.cfg.GatePollInterval <= 0 {
				return StateBlocked, nil
			}

			if poll == nil {
				poll = time.NewTimer(r.o.cfg.GatePollInterval)
			} else {
				poll.Reset(r.o.cfg.GatePollInterval)
			}
			select {
			case <-poll.C:
			case <-ctx.Done():
			}
			continue
		}

		select {
		case res := <-r.results:
			if err := r.complete(res); err != nil {
				return "", err
			}
		case <-ctx.Done():
		}
	}
}

// dispatch starts ready items up to pool capacity. Gated items start only
// once their gate is approved or skipped; a rejected gate fails the item.
func (r *run) dispatch(ctx context.Context) error {
	capacity := r.o.pool.Capacity()
	r.held = make(map[string]domain.GateType)

	for _, id := range r.graph.Ready(r.completed) {
		if r.inFlight[id] {
			continue
		}
		if _, failed := r.failed[id]; failed {
			continue
		}

		if t, gated := r.plan.RequiredGate(id); gated {
			status, err := r.o.gates.GateStatus(r.persistCtx, r.plan.Feature, t)
			if err != nil {
				return err
			}
			switch status {
			case domain.GatePending:
				r.held[id] = t
				if !r.announced[id] {
					r.announced[id] = true
					r.logger.Info("item awaiting gate", "item", id, "gate", t.String())
				}
				continue
			case domain.GateRejected:
				r.failed[id] = fmt.Sprintf("gate %s rejected", t)
				r.logger.Warn("item failed by rejected gate", "item", id, "gate", t.String())
				if err := r.save(domain.StatusInProgress); err != nil {
					return err
				}
				continue
			}
		}

		if len(r.inFlight) >= capacity {
			continue
		}
		if err := r.launch(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// launch records id as the current item and starts it. The checkpoint naming
// it is written before the work begins.
func (r *run) launch(ctx context.Context, id string) error {
	r.inFlight[id] = true
	r.current = id
	r.logger.Debug("dispatching item", "item", id)
	if err := r.save(domain.StatusInProgress); err != nil {
		delete(r.inFlight, id)
		return err
	}

	// Work is not cancelled by an abort; timeouts belong to the executor.
	workCtx := context.WithoutCancel(ctx)
	go func() {
		itemCtx, span := telemetry.StartItemSpan(workCtx, id)
		res := r.o.pool.Execute(itemCtx, id, func(ctx context.Context) error {
			return r.o.executor.Execute(ctx, id)
		})
		if res.Success {
			telemetry.RecordSuccess(span, attribute.String("agent", res.AgentID))
		} else {
			telemetry.RecordError(span, fmt.Errorf("%s", res.Error))
		}
		span.End()
		r.results <- res
	}()
	return nil
}

func (r *run) complete(res pool.Result) error {
	delete(r.inFlight, res.ItemID)
	if r.current == res.ItemID {
		r.current = ""
		for id := range r.inFlight {
			if r.current == "" || id < r.current {
				r.current = id
			}
		}
	}

	if res.Success {
		r.completed[res.ItemID] = true
		r.done = append(r.done, res.ItemID)
		r.logger.Info("item completed", "item", res.ItemID, "agent", res.AgentID, "duration", res.Duration)
	} else {
		r.failed[res.ItemID] = res.Error
		r.logger.Warn("item failed", "item", res.ItemID, "agent", res.AgentID, "error", res.Error)
	}
	if r.o.recorder != nil {
		r.o.recorder.ObserveItem(res.Success, res.Duration)
	}

	return r.save(domain.StatusInProgress)
}

// statusFor maps a run state to the persisted checkpoint status. Blocked and
// aborted runs stay in progress so they can be resumed.
func (r *run) statusFor(s State) domain.CheckpointStatus {
	switch s {
	case StateCompleted:
		return domain.StatusCompleted
	case StateFailed:
		return domain.StatusFailed
	default:
		return domain.StatusInProgress
	}
}

func (r *run) save(status domain.CheckpointStatus) error {
	return r.o.store.Save(r.persistCtx, checkpoint.SaveRequest{
		FeatureID: r.plan.Feature,
		AgentID:   r.o.cfg.AgentID,
		RunID:     r.runID,
		PlanHash:  r.planHash,
		Order:     r.order,
		Completed: r.done,
		Failed:    r.failed,
		Current:   r.current,
		Status:    status,
	})
}

func (r *run) report(d time.Duration) *Report {
	rep := &Report{
		FeatureID: r.plan.Feature,
		RunID:     r.runID,
		AgentID:   r.o.cfg.AgentID,
		Resumed:   r.resumed,
		State:     r.state,
		Completed: append([]string{}, r.done...),
		Duration:  d,
	}
	if len(r.failed) > 0 {
		rep.Failed = make(map[string]string, len(r.failed))
		for id, msg := range r.failed {
			rep.Failed[id] = msg
		}
	}
	for _, id := range r.order {
		if _, failed := r.failed[id]; !r.completed[id] && !failed {
			rep.Unreached = append(rep.Unreached, id)
		}
	}
	for id, t := range r.held {
		rep.AwaitingGates = append(rep.AwaitingGates, AwaitingGate{ItemID: id, Gate: t})
	}
	sort.Slice(rep.AwaitingGates, func(i, j int) bool {
		return rep.AwaitingGates[i].ItemID < rep.AwaitingGates[j].ItemID
	})
	return rep
}
