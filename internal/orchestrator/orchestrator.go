// Package orchestrator drives a feature run: it walks the dependency graph,
// dispatches ready work items into the agent pool, holds gated items until a
// decision exists, and checkpoints progress after every completion so that
// the owning agent can resume an interrupted run.
package orchestrator

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/felixgeelhaar/orchestra/internal/checkpoint"
	"github.com/felixgeelhaar/orchestra/internal/errors"
	"github.com/felixgeelhaar/orchestra/internal/gate"
	"github.com/felixgeelhaar/orchestra/internal/graph"
	"github.com/felixgeelhaar/orchestra/internal/log"
	"github.com/felixgeelhaar/orchestra/internal/plan"
	"github.com/felixgeelhaar/orchestra/internal/pool"
	"github.com/felixgeelhaar/orchestra/internal/telemetry"
)

// ErrNothingToResume is the cause of the error Resume returns when no
// in-progress checkpoint owned by this agent exists.
var ErrNothingToResume = stderrors.New("nothing to resume")

// Executor performs the delegated work of one item. runner.Runner
// implements it.
type Executor interface {
	Execute(ctx context.Context, itemID string) error
}

// ExecutorFunc adapts a function to Executor
type ExecutorFunc func(ctx context.Context, itemID string) error

// Execute implements Executor
func (f ExecutorFunc) Execute(ctx context.Context, itemID string) error {
	return f(ctx, itemID)
}

// Recorder receives run and item outcomes. metrics.Metrics implements it.
type Recorder interface {
	ObserveItem(success bool, d time.Duration)
	ObserveRun(state string, d time.Duration)
}

// Config controls orchestration behaviour
type Config struct {
	// AgentID identifies this process as the owner of the checkpoints it
	// writes. Only the owner may resume a run.
	AgentID string

	// GatePollInterval re-reads held gates at this interval while nothing
	// else can run. Zero stops the run as BLOCKED instead.
	GatePollInterval time.Duration
}

// Orchestrator runs feature plans
type Orchestrator struct {
	cfg      Config
	pool     *pool.Pool
	store    *checkpoint.Store
	gates    *gate.Manager
	executor Executor
	logger   *log.Logger
	recorder Recorder
	newRunID func() string
	now      func() time.Time
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithLogger sets the orchestrator logger
func WithLogger(l *log.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = l
	}
}

// WithRecorder reports outcomes to r
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) {
		o.recorder = r
	}
}

// WithRunIDs overrides run id generation, used by tests
func WithRunIDs(fn func() string) Option {
	return func(o *Orchestrator) {
		o.newRunID = fn
	}
}

// WithClock overrides the time source, used by tests
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// New creates an orchestrator. An empty AgentID gets a generated one.
func New(cfg Config, p *pool.Pool, store *checkpoint.Store, gates *gate.Manager, executor Executor, opts ...Option) *Orchestrator {
	if cfg.AgentID == "" {
		cfg.AgentID = "agent-" + uuid.NewString()[:8]
	}
	o := &Orchestrator{
		cfg:      cfg,
		pool:     p,
		store:    store,
		gates:    gates,
		executor: executor,
		newRunID: uuid.NewString,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = log.OrDefault(o.logger).With("component", "orchestrator", "agent", cfg.AgentID)
	return o
}

// AgentID returns the identity checkpoints are written under
func (o *Orchestrator) AgentID() string {
	return o.cfg.AgentID
}

// prepare validates the plan and computes its order and fingerprint.
// Structural problems are reported here, before anything is persisted.
func prepare(p *plan.Plan) (*graph.Graph, []string, string, error) {
	if err := p.Validate(); err != nil {
		return nil, nil, "", errors.Wrap(errors.ErrCodePlanInvalid, "validate plan", err)
	}

	g, err := graph.Build(p.IDs(), p)
	if err != nil {
		return nil, nil, "", err
	}
	order, err := g.ExecutionOrder()
	if err != nil {
		return nil, nil, "", err
	}

	hash, err := plan.Fingerprint(p)
	if err != nil {
		return nil, nil, "", err
	}
	return g, order, hash, nil
}

// Run starts a new run of p. The previous checkpoint of the feature, if any,
// is replaced.
//
// The returned error covers structural and persistence failures only. Item
// failures, held gates and cancellation are reported through Report.State.
func (o *Orchestrator) Run(ctx context.Context, p *plan.Plan) (*Report, error) {
	g, order, hash, err := prepare(p)
	if err != nil {
		return nil, err
	}

	r := o.newRun(p, g, order, hash, o.newRunID(), false)
	return o.execute(ctx, r)
}

// Resume continues the in-progress or failed run of p owned by this agent.
// Completed items are kept; previously failed items are retried.
func (o *Orchestrator) Resume(ctx context.Context, p *plan.Plan) (*Report, error) {
	g, order, hash, err := prepare(p)
	if err != nil {
		return nil, err
	}

	cp, err := o.store.Resume(ctx, p.Feature, o.cfg.AgentID)
	if err != nil {
		return nil, err
	}
	if cp == nil {
		e := errors.NewNothingToResumeError(p.Feature, o.cfg.AgentID)
		e.Cause = ErrNothingToResume
		return nil, e
	}
	if cp.PlanHash != "" && cp.PlanHash != hash {
		return nil, errors.NewPlanDriftError(p.Feature, cp.PlanHash, hash)
	}

	r := o.newRun(p, g, order, hash, cp.RunID, true)
	for _, id := range cp.Completed {
		if g.Has(id) && !r.completed[id] {
			r.completed[id] = true
			r.done = append(r.done, id)
		}
	}
	if len(cp.Failed) > 0 {
		r.logger.Info("retrying failed items", "count", len(cp.Failed))
	}
	return o.execute(ctx, r)
}

func (o *Orchestrator) execute(ctx context.Context, r *run) (*Report, error) {
	ctx, span := telemetry.StartRunSpan(ctx, r.plan.Feature, r.runID, r.resumed)
	defer span.End()

	start := o.now()
	r.state = StateInitializing
	r.logger.Info("run starting",
		"items", len(r.order),
		"already_completed", len(r.done),
		"capacity", o.pool.Capacity(),
	)

	// Persistence must outlive cancellation so an aborted run still records
	// the items that finished.
	r.persistCtx = context.WithoutCancel(ctx)

	if err := r.save(r.statusFor(StateRunning)); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	skipped, err := o.gates.AutoSkipGates(r.persistCtx, r.plan.Feature)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("auto-skip gates: %w", err)
	}
	for _, t := range skipped {
		r.logger.Info("gate auto-skipped", "gate", t.String())
	}

	r.state = StateRunning
	state, err := r.loop(ctx)
	if err != nil {
		r.logger.WithError(err).Error("run stopped on persistence error")
		telemetry.RecordError(span, err)
		return nil, err
	}
	r.state = state

	if err := r.save(r.statusFor(state)); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	report := r.report(o.now().Sub(start))
	if o.recorder != nil {
		o.recorder.ObserveRun(string(state), report.Duration)
	}
	telemetry.RecordSuccess(span,
		attribute.String("state", string(state)),
		attribute.Int("completed", len(report.Completed)),
		attribute.Int("failed", len(report.Failed)),
	)

	r.logger.Info("run finished",
		"state", string(state),
		"completed", len(report.Completed),
		"failed", len(report.Failed),
		"unreached", len(report.Unreached),
		"awaiting_gates", len(report.AwaitingGates),
		"duration", report.Duration,
	)
	return report, nil
}
