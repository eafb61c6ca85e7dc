package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/felixgeelhaar/orchestra/internal/checkpoint"
	"github.com/felixgeelhaar/orchestra/internal/gate"
	"github.com/felixgeelhaar/orchestra/internal/orchestrator"
	"github.com/felixgeelhaar/orchestra/internal/tui"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	return nil
}

func writeReport(w io.Writer, r *orchestrator.Report, asJSON bool, s tui.Styles) error {
	if asJSON {
		return writeJSON(w, r)
	}

	var b strings.Builder
	verb := "Run"
	if r.Resumed {
		verb = "Resumed run"
	}
	fmt.Fprintf(&b, "%s of %s: %s\n", verb, r.FeatureID, s.StateStyle(string(r.State)).Render(string(r.State)))
	fmt.Fprintf(&b, "  Agent:     %s\n", r.AgentID)
	fmt.Fprintf(&b, "  Run ID:    %s\n", r.RunID)
	fmt.Fprintf(&b, "  Duration:  %s\n", r.Duration.Round(time.Millisecond))
	fmt.Fprintf(&b, "  Completed: %d\n", len(r.Completed))

	if len(r.Failed) > 0 {
		fmt.Fprintf(&b, "\n%s\n", s.Error.Render("Failed:"))
		ids := make([]string, 0, len(r.Failed))
		for id := range r.Failed {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			fmt.Fprintf(&b, "  ✗ %s: %s\n", id, r.Failed[id])
		}
	}
	if len(r.AwaitingGates) > 0 {
		fmt.Fprintf(&b, "\n%s\n", s.Warning.Render("Awaiting gates:"))
		for _, a := range r.AwaitingGates {
			fmt.Fprintf(&b, "  ⏳ %s behind %s\n", a.ItemID, a.Gate)
		}
	}
	if len(r.Unreached) > 0 {
		fmt.Fprintf(&b, "\n%s %s\n", s.Muted.Render("Not run:"), strings.Join(r.Unreached, ", "))
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func statusIcon(status string) string {
	switch status {
	case "COMPLETED", "APPROVED":
		return "✅"
	case "FAILED", "REJECTED":
		return "✗"
	case "SKIPPED":
		return "↷"
	default:
		return "⏳"
	}
}

func writeCheckpointList(w io.Writer, cps []*checkpoint.Checkpoint, s tui.Styles) error {
	if len(cps) == 0 {
		_, err := fmt.Fprintln(w, "No checkpoints found.")
		return err
	}

	var b strings.Builder
	for _, cp := range cps {
		status := cp.Status.String()
		fmt.Fprintf(&b, "%s %s\n", statusIcon(status), cp.FeatureID)
		fmt.Fprintf(&b, "   Status:   %s\n", s.StateStyle(status).Render(status))
		fmt.Fprintf(&b, "   Agent:    %s\n", cp.AgentID)
		fmt.Fprintf(&b, "   Updated:  %s\n", cp.UpdatedAt.Format("2006-01-02 15:04:05"))
		fmt.Fprintf(&b, "   Progress: %d/%d items", len(cp.Completed), len(cp.Order))
		if len(cp.Failed) > 0 {
			fmt.Fprintf(&b, " (%d failed)", len(cp.Failed))
		}
		b.WriteString("\n\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func writeCheckpoint(w io.Writer, cp *checkpoint.Checkpoint, s tui.Styles) error {
	var b strings.Builder
	status := cp.Status.String()
	fmt.Fprintf(&b, "Checkpoint: %s\n\n", cp.FeatureID)
	fmt.Fprintf(&b, "Status:     %s\n", s.StateStyle(status).Render(status))
	fmt.Fprintf(&b, "Agent:      %s\n", cp.AgentID)
	fmt.Fprintf(&b, "Run ID:     %s\n", cp.RunID)
	if cp.PlanHash != "" {
		fmt.Fprintf(&b, "Plan:       %s\n", cp.PlanHash)
	}
	fmt.Fprintf(&b, "Started:    %s\n", cp.StartedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Updated:    %s\n", cp.UpdatedAt.Format("2006-01-02 15:04:05"))
	if cp.Current != "" {
		fmt.Fprintf(&b, "Current:    %s\n", cp.Current)
	}

	completed := cp.CompletedSet()
	b.WriteString("\nItems:\n")
	for _, id := range cp.Order {
		switch msg, failed := cp.Failed[id]; {
		case completed[id]:
			fmt.Fprintf(&b, "  ✓ %s\n", id)
		case failed:
			fmt.Fprintf(&b, "  ✗ %s: %s\n", id, msg)
		default:
			fmt.Fprintf(&b, "  ○ %s\n", id)
		}
	}

	b.WriteString("\nGates:\n")
	writeGates(&b, gate.Complete(cp), s)

	_, err := io.WriteString(w, b.String())
	return err
}

func writeGates(b *strings.Builder, gates []checkpoint.GateRecord, s tui.Styles) {
	for _, g := range gates {
		status := g.Status.String()
		fmt.Fprintf(b, "  %s %-13s %s", statusIcon(status), g.Type, s.GateStatusStyle(g.Status).Render(status))
		if g.Approver != "" {
			fmt.Fprintf(b, " by %s", g.Approver)
		}
		if g.DecidedAt != nil {
			fmt.Fprintf(b, " at %s", g.DecidedAt.Format("2006-01-02 15:04:05"))
		}
		if g.Comment != "" {
			fmt.Fprintf(b, " (%s)", g.Comment)
		}
		b.WriteString("\n")
	}
}
