package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/orchestra/internal/config"
	"github.com/felixgeelhaar/orchestra/internal/errors"
	"github.com/felixgeelhaar/orchestra/internal/orchestrator"
	"github.com/felixgeelhaar/orchestra/internal/plan"
	"github.com/felixgeelhaar/orchestra/internal/pool"
	"github.com/felixgeelhaar/orchestra/internal/runner"
	"github.com/felixgeelhaar/orchestra/internal/telemetry"
)

// runOptions are the flags shared by run, resume and recover --resume
type runOptions struct {
	planPath     string
	capacity     int
	skipGates    []string
	pollInterval time.Duration
	command      string
	timeout      time.Duration
	jsonOutput   bool
}

func (o *runOptions) addFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVarP(&o.planPath, "plan", "p", "plan.yaml", "plan file")
	flags.IntVar(&o.capacity, "capacity", 0, "number of agents (default from config)")
	flags.StringSliceVar(&o.skipGates, "skip-gate", nil, "gate types to skip without a decision (repeatable)")
	flags.DurationVar(&o.pollInterval, "poll-interval", 0, "wait for gate decisions, re-checking at this interval, instead of stopping as BLOCKED")
	flags.StringVar(&o.command, "command", "", "command for items that do not set their own")
	flags.DurationVar(&o.timeout, "timeout", 0, "per-item timeout")
	flags.BoolVar(&o.jsonOutput, "json", false, "print the run report as JSON")
}

// overrides applies the flags that were set explicitly
func (o *runOptions) overrides(cmd *cobra.Command) func(*config.Config) {
	flags := cmd.Flags()
	return func(cfg *config.Config) {
		if flags.Changed("capacity") {
			cfg.Pool.Capacity = o.capacity
		}
		if flags.Changed("skip-gate") {
			cfg.Gates.Skip = append(cfg.Gates.Skip, o.skipGates...)
		}
		if flags.Changed("poll-interval") {
			cfg.Gates.PollInterval = o.pollInterval
		}
		if flags.Changed("command") {
			cfg.Runner.Command = o.command
		}
		if flags.Changed("timeout") {
			cfg.Runner.Timeout = o.timeout
		}
	}
}

func newRunCommand() *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start a new run of a feature plan",
		Long: `Start a new run of a feature plan, replacing any previous checkpoint of the
feature. Gate decisions already recorded for the feature are kept.

Exit status is 0 when every item completed, 3 when items failed, 4 when the
run stopped on an undecided gate, and 130 when interrupted.

Examples:
  orchestra run --plan plan.yaml
  orchestra run --plan plan.yaml --capacity 8 --skip-gate uat
  orchestra run --plan plan.yaml --poll-interval 30s`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return executePlan(cmd, opts, false)
		},
	}
	opts.addFlags(cmd)
	return cmd
}

func newResumeCommand() *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "resume",
		Short: "Resume this agent's interrupted, blocked or failed run",
		Long: `Resume the checkpointed run of a feature owned by this agent. Completed items
are not run again; failed items are retried. The plan must be unchanged since
the checkpoint was written.

Examples:
  orchestra resume --plan plan.yaml
  orchestra resume --plan plan.yaml --agent-id build-01`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return executePlan(cmd, opts, true)
		},
	}
	opts.addFlags(cmd)
	return cmd
}

func executePlan(cmd *cobra.Command, opts *runOptions, resume bool) error {
	a, err := newApp(cmd, opts.overrides(cmd))
	if err != nil {
		return err
	}
	defer a.Close()

	p, err := plan.Load(opts.planPath)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	cleanup := setupTelemetry(ctx, a.cfg, cmd.ErrOrStderr(), a.logger)
	defer cleanup()
	ctx, span := telemetry.StartCommandSpan(ctx, cmd.Name())
	defer span.End()

	startMetrics(ctx, a.cfg.Metrics.Addr, a.registry, a.logger)

	report, err := runPlan(ctx, a, p, resume)
	if err != nil {
		a.metrics.RecordError(err)
		telemetry.RecordError(span, err)
		return err
	}
	telemetry.RecordSuccess(span)

	if err := writeReport(cmd.OutOrStdout(), report, opts.jsonOutput, a.styles); err != nil {
		return err
	}
	return outcomeError(report)
}

// runPlan wires the pool, runner and orchestrator for one run of p.
func runPlan(ctx context.Context, a *app, p *plan.Plan, resume bool) (*orchestrator.Report, error) {
	cfg := a.cfg
	a.metrics.SetPoolCapacity(cfg.Pool.Capacity)

	agents := pool.New(cfg.Pool.Capacity, pool.WithRecorder(a.metrics))
	executor := runner.New(runner.Config{
		Shell:   cfg.Runner.Shell,
		Timeout: cfg.Runner.Timeout,
		Command: cfg.Runner.Command,
	}, p.Feature, p, a.logger)

	orch := orchestrator.New(orchestrator.Config{
		AgentID:          cfg.AgentID,
		GatePollInterval: cfg.Gates.PollInterval,
	}, agents, a.store, a.gates, executor,
		orchestrator.WithLogger(a.logger),
		orchestrator.WithRecorder(a.metrics),
	)

	if resume {
		return orch.Resume(ctx, p)
	}
	return orch.Run(ctx, p)
}

// outcomeError turns a non-successful report into an error carrying the
// matching code, so the exit status reflects the run state.
func outcomeError(r *orchestrator.Report) error {
	switch r.State {
	case orchestrator.StateCompleted:
		return nil
	case orchestrator.StateBlocked:
		return errors.NewRunBlockedError(r.FeatureID, r.GateNames())
	case orchestrator.StateAborted:
		return errors.New(errors.ErrCodeRunAborted, fmt.Sprintf("run of feature %s aborted with %d item(s) completed", r.FeatureID, len(r.Completed))).
			WithSuggestion("Continue with 'orchestra resume --plan <file>'")
	default:
		return errors.New(errors.ErrCodeRunFailed, fmt.Sprintf("run of feature %s failed: %d item(s) failed, %d unreached", r.FeatureID, len(r.Failed), len(r.Unreached))).
			WithSuggestion("Fix the failing items, then retry them with 'orchestra resume --plan <file>'")
	}
}
