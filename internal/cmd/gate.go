package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/orchestra/internal/checkpoint"
	"github.com/felixgeelhaar/orchestra/internal/domain"
	"github.com/felixgeelhaar/orchestra/internal/errors"
	"github.com/felixgeelhaar/orchestra/internal/gate"
	"github.com/felixgeelhaar/orchestra/internal/plan"
	"github.com/felixgeelhaar/orchestra/internal/tui"
)

func newGateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gate",
		Short: "Review and decide approval gates",
		Long: `Review and decide the approval gates of a feature.

Gate types are REQUIREMENTS, ARCHITECTURE and UAT. A gate is PENDING until it is
approved, rejected or skipped. Approving a skipped gate leaves it skipped.
Items behind a pending gate are held; items behind a rejected gate fail.

Examples:
  orchestra gate list checkout-flow
  orchestra gate approve checkout-flow uat --approver alice
  orchestra gate reject checkout-flow architecture --approver bob --comment "needs ADR"
  orchestra gate skip checkout-flow requirements --reason hotfix
  orchestra gate review checkout-flow --plan plan.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(
		newGateListCommand(),
		newGateDecisionCommand("approve", "Approve a gate"),
		newGateDecisionCommand("reject", "Reject a gate"),
		newGateDecisionCommand("skip", "Skip a gate without a decision"),
		newGateReviewCommand(),
	)
	return cmd
}

func newGateListCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list <feature-id>",
		Short: "Show every gate of a feature",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			gates, err := a.gates.AllGates(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), gates)
			}

			var b strings.Builder
			fmt.Fprintf(&b, "Gates of %s:\n", args[0])
			writeGates(&b, gates, a.styles)
			_, err = fmt.Fprint(cmd.OutOrStdout(), b.String())
			return err
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output gates as JSON")
	return cmd
}

func newGateDecisionCommand(op, short string) *cobra.Command {
	var approver, comment string
	cmd := &cobra.Command{
		Use:   op + " <feature-id> <gate>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			featureID := args[0]
			t, err := parseGate(args[1])
			if err != nil {
				return err
			}

			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			var rec checkpoint.GateRecord
			switch op {
			case "approve":
				rec, err = a.gates.Approve(ctx, featureID, t, approver, comment)
			case "reject":
				rec, err = a.gates.Reject(ctx, featureID, t, approver, comment)
			default:
				rec, err = a.gates.Skip(ctx, featureID, t, comment)
			}
			if err != nil {
				return err
			}

			status := rec.Status.String()
			fmt.Fprintf(cmd.OutOrStdout(), "%s gate of %s is %s\n", t, featureID, a.styles.GateStatusStyle(rec.Status).Render(status))
			if op == "approve" && rec.Status == domain.GateSkipped {
				fmt.Fprintln(cmd.OutOrStdout(), a.styles.Muted.Render("The gate was skipped earlier; approval leaves it skipped."))
			}
			return nil
		},
	}

	if op == "skip" {
		cmd.Flags().StringVar(&comment, "reason", "", "why the gate is skipped")
	} else {
		cmd.Flags().StringVar(&approver, "approver", defaultApprover(), "who decides")
		cmd.Flags().StringVar(&comment, "comment", "", "decision comment")
	}
	return cmd
}

func newGateReviewCommand() *cobra.Command {
	var approver, planPath string
	cmd := &cobra.Command{
		Use:   "review <feature-id>",
		Short: "Decide gates interactively",
		Long: `Open an interactive view of a feature's gates. With --plan, the items held by
each gate are shown.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			featureID := args[0]
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			gates, err := a.gates.AllGates(cmd.Context(), featureID)
			if err != nil {
				return err
			}

			opts := tui.ReviewOptions{Approver: approver}
			if planPath != "" {
				p, err := plan.Load(planPath)
				if err != nil {
					return err
				}
				if p.Feature != featureID {
					return planForFeature(planPath, featureID, p.Feature)
				}
				opts.Waiting = itemsByGate(p)
			}

			res, err := tui.RunGateReview(cmd.Context(), featureID, gates, a.gates, opts)
			if err != nil {
				return err
			}
			a.logger.Debug("gate review finished", "feature", featureID, "decisions", res.Decisions)
			return nil
		},
	}
	cmd.Flags().StringVar(&approver, "approver", defaultApprover(), "who decides")
	cmd.Flags().StringVarP(&planPath, "plan", "p", "", "plan file, to show the items each gate holds")
	return cmd
}

// itemsByGate lists the items of p behind each gate type
func itemsByGate(p *plan.Plan) map[domain.GateType][]string {
	out := make(map[domain.GateType][]string)
	for _, id := range p.IDs() {
		if t, ok := p.RequiredGate(id); ok {
			out[t] = append(out[t], id)
		}
	}
	return out
}

func parseGate(name string) (domain.GateType, error) {
	t, err := domain.ParseGateType(name)
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeGateInvalid, "invalid gate", err).
			WithSuggestion("Valid gate types: REQUIREMENTS, ARCHITECTURE, UAT")
	}
	return t, nil
}

func defaultApprover() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "unknown"
}

var _ tui.Decider = (*gate.Manager)(nil)
