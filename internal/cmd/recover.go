package cmd

import (
	stderrors "errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/orchestra/internal/checkpoint"
	"github.com/felixgeelhaar/orchestra/internal/plan"
)

func newRecoverCommand() *cobra.Command {
	var (
		resume bool
		plans  []string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "recover",
		Short: "List unfinished runs and optionally resume the ones this agent owns",
		Long: `List every checkpoint that can still be resumed, with its owning agent.

With --resume, each plan given with --plan whose feature has a resumable
checkpoint owned by this agent is resumed in turn. Checkpoints owned by other
agents are listed and left alone.

Examples:
  orchestra recover
  orchestra recover --resume --plan checkout.yaml --plan search.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			active, err := a.store.ListActive(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list checkpoints: %w", err)
			}

			if !resume {
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), active)
				}
				return writeRecoverList(cmd, a, active)
			}

			if err := writeRecoverList(cmd, a, active); err != nil {
				return err
			}
			return resumeOwned(cmd, a, active, plans, asJSON)
		},
	}
	cmd.Flags().BoolVar(&resume, "resume", false, "resume checkpoints owned by this agent")
	cmd.Flags().StringSliceVarP(&plans, "plan", "p", nil, "plan files of the features to resume (repeatable)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}

func writeRecoverList(cmd *cobra.Command, a *app, active []*checkpoint.Checkpoint) error {
	out := cmd.OutOrStdout()
	if len(active) == 0 {
		_, err := fmt.Fprintln(out, "No unfinished runs.")
		return err
	}
	for _, cp := range active {
		owner := a.styles.Muted.Render("owned by " + cp.AgentID)
		if cp.AgentID == a.cfg.AgentID {
			owner = a.styles.Success.Render("owned by this agent")
		}
		if _, err := fmt.Fprintf(out, "%s  %s\n", checkpoint.Summary(cp), owner); err != nil {
			return err
		}
	}
	return nil
}

// resumeOwned resumes, in plan order, every listed plan whose active
// checkpoint belongs to this agent. All plans are attempted; the errors are
// joined.
func resumeOwned(cmd *cobra.Command, a *app, active []*checkpoint.Checkpoint, plans []string, asJSON bool) error {
	owned := make(map[string]bool)
	for _, cp := range active {
		if cp.AgentID == a.cfg.AgentID {
			owned[cp.FeatureID] = true
		}
	}

	var errs []error
	for _, path := range plans {
		p, err := plan.Load(path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !owned[p.Feature] {
			a.logger.Info("nothing to recover for plan", "plan", path, "feature", p.Feature)
			continue
		}

		report, err := runPlan(cmd.Context(), a, p, true)
		if err != nil {
			a.metrics.RecordError(err)
			errs = append(errs, fmt.Errorf("resume %s: %w", p.Feature, err))
			continue
		}
		if err := writeReport(cmd.OutOrStdout(), report, asJSON, a.styles); err != nil {
			return err
		}
		if err := outcomeError(report); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}
