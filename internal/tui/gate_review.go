// Package tui provides the interactive terminal views of orchestra.
package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/felixgeelhaar/orchestra/internal/checkpoint"
	"github.com/felixgeelhaar/orchestra/internal/domain"
)

// Decider applies gate decisions. gate.Manager implements it.
type Decider interface {
	Approve(ctx context.Context, featureID string, t domain.GateType, approver, comment string) (checkpoint.GateRecord, error)
	Reject(ctx context.Context, featureID string, t domain.GateType, approver, comment string) (checkpoint.GateRecord, error)
	Skip(ctx context.Context, featureID string, t domain.GateType, reason string) (checkpoint.GateRecord, error)
}

// ReviewResult holds the outcome of a gate review session
type ReviewResult struct {
	Gates     []checkpoint.GateRecord
	Decisions int
}

type inputMode int

const (
	inputNone inputMode = iota
	inputReject
	inputSkip
)

// decisionMsg carries the outcome of an asynchronous decision back into Update
type decisionMsg struct {
	record checkpoint.GateRecord
	err    error
}

// gateReviewModel is the BubbleTea model for gate review
type gateReviewModel struct {
	ctx       context.Context
	featureID string
	approver  string
	decider   Decider
	// waiting lists items held by each gate, when known
	waiting map[domain.GateType][]string

	gates     []checkpoint.GateRecord
	cursor    int
	mode      inputMode
	input     string
	busy      bool
	decisions int
	lastErr   string
	done      bool
	width     int
	styles    Styles
}

func newGateReviewModel(ctx context.Context, featureID, approver string, gates []checkpoint.GateRecord, waiting map[domain.GateType][]string, decider Decider) gateReviewModel {
	return gateReviewModel{
		ctx:       ctx,
		featureID: featureID,
		approver:  approver,
		decider:   decider,
		waiting:   waiting,
		gates:     append([]checkpoint.GateRecord(nil), gates...),
		styles:    DefaultStyles(),
	}
}

// Init initializes the model
func (m gateReviewModel) Init() tea.Cmd {
	return nil
}

// Update handles messages and updates the model
func (m gateReviewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case decisionMsg:
		m.busy = false
		if msg.err != nil {
			m.lastErr = msg.err.Error()
			return m, nil
		}
		m.lastErr = ""
		m.decisions++
		for i := range m.gates {
			if m.gates[i].Type == msg.record.Type {
				m.gates[i] = msg.record
			}
		}
		return m, nil

	case tea.KeyMsg:
		if m.mode != inputNone {
			return m.updateInput(msg)
		}
		return m.updateNavigation(msg)
	}

	return m, nil
}

func (m gateReviewModel) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		mode, text := m.mode, strings.TrimSpace(m.input)
		m.mode, m.input = inputNone, ""
		if mode == inputReject {
			return m.decide(func(ctx context.Context, t domain.GateType) (checkpoint.GateRecord, error) {
				return m.decider.Reject(ctx, m.featureID, t, m.approver, text)
			})
		}
		return m.decide(func(ctx context.Context, t domain.GateType) (checkpoint.GateRecord, error) {
			return m.decider.Skip(ctx, m.featureID, t, text)
		})
	case tea.KeyEsc:
		m.mode, m.input = inputNone, ""
	case tea.KeyBackspace:
		if r := []rune(m.input); len(r) > 0 {
			m.input = string(r[:len(r)-1])
		}
	case tea.KeySpace:
		m.input += " "
	case tea.KeyRunes:
		m.input += string(msg.Runes)
	case tea.KeyCtrlC:
		m.done = true
		return m, tea.Quit
	}
	return m, nil
}

func (m gateReviewModel) updateNavigation(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q", "esc":
		m.done = true
		return m, tea.Quit

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}

	case "down", "j":
		if m.cursor < len(m.gates)-1 {
			m.cursor++
		}

	case "a", "A":
		return m.decide(func(ctx context.Context, t domain.GateType) (checkpoint.GateRecord, error) {
			return m.decider.Approve(ctx, m.featureID, t, m.approver, "")
		})

	case "r", "R":
		if !m.busy {
			m.mode = inputReject
		}

	case "s", "S":
		if !m.busy {
			m.mode = inputSkip
		}
	}
	return m, nil
}

// decide runs one decision on the selected gate outside the update loop.
func (m gateReviewModel) decide(fn func(context.Context, domain.GateType) (checkpoint.GateRecord, error)) (tea.Model, tea.Cmd) {
	if m.busy || len(m.gates) == 0 {
		return m, nil
	}
	m.busy = true
	ctx, t := m.ctx, m.gates[m.cursor].Type
	return m, func() tea.Msg {
		rec, err := fn(ctx, t)
		return decisionMsg{record: rec, err: err}
	}
}

// View renders the current state
func (m gateReviewModel) View() string {
	if m.done {
		return m.styles.Muted.Render(fmt.Sprintf("\n%d decision(s) recorded for %s\n\n", m.decisions, m.featureID))
	}

	var b strings.Builder
	b.WriteString(m.styles.Title.Render("🚦 Gate Review"))
	b.WriteString("\n\n")
	b.WriteString(m.styles.Header.Render("Feature: " + m.featureID))
	b.WriteString("\n\n")

	for i, g := range m.gates {
		style, cursor := m.styles.Item, "  "
		if i == m.cursor {
			style, cursor = m.styles.Selected, "→ "
		}
		line := fmt.Sprintf("%s%-13s %s", cursor, g.Type, m.styles.GateStatusStyle(g.Status).Render(g.Status.String()))
		b.WriteString(style.Render(line))
		b.WriteString("\n")
	}

	if len(m.gates) > 0 {
		b.WriteString("\n")
		b.WriteString(m.renderDetail(m.gates[m.cursor]))
	}

	if m.lastErr != "" {
		b.WriteString("\n")
		b.WriteString(m.styles.Error.Render("✗ " + m.lastErr))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	switch m.mode {
	case inputReject, inputSkip:
		label := "Rejection comment:"
		if m.mode == inputSkip {
			label = "Skip reason:"
		}
		b.WriteString(m.styles.Warning.Render(label))
		b.WriteString("\n  ")
		b.WriteString(m.input)
		b.WriteString("_\n")
		b.WriteString(m.styles.Help.Render("enter: submit | esc: cancel"))
	default:
		b.WriteString(m.styles.Help.Render("↑/↓: navigate | a: approve | r: reject | s: skip | q: quit"))
	}
	return b.String()
}

func (m gateReviewModel) renderDetail(g checkpoint.GateRecord) string {
	details := []struct {
		key   string
		value string
	}{
		{"Approver", g.Approver},
		{"Comment", g.Comment},
	}
	if g.DecidedAt != nil {
		details = append(details, struct {
			key   string
			value string
		}{"Decided", g.DecidedAt.Format("2006-01-02 15:04:05")})
	}
	if items := m.waiting[g.Type]; len(items) > 0 {
		details = append(details, struct {
			key   string
			value string
		}{"Waiting", strings.Join(items, ", ")})
	}

	var b strings.Builder
	for _, d := range details {
		if d.value == "" {
			continue
		}
		b.WriteString("  ")
		b.WriteString(m.styles.Key.Render(fmt.Sprintf("%-9s:", d.key)))
		b.WriteString(" ")
		b.WriteString(m.styles.Value.Render(d.value))
		b.WriteString("\n")
	}
	return b.String()
}

// ReviewOptions configures RunGateReview
type ReviewOptions struct {
	// Approver is recorded on approvals and rejections
	Approver string
	// Waiting lists items held by each gate
	Waiting map[domain.GateType][]string
	// ProgramOptions are passed to tea.NewProgram, used by tests
	ProgramOptions []tea.ProgramOption
}

// RunGateReview launches an interactive TUI for deciding a feature's gates
func RunGateReview(ctx context.Context, featureID string, gates []checkpoint.GateRecord, decider Decider, opts ReviewOptions) (*ReviewResult, error) {
	if len(gates) == 0 {
		return &ReviewResult{}, nil
	}

	model := newGateReviewModel(ctx, featureID, opts.Approver, gates, opts.Waiting, decider)
	programOpts := append([]tea.ProgramOption{tea.WithContext(ctx)}, opts.ProgramOptions...)
	finalModel, err := tea.NewProgram(model, programOpts...).Run()
	if err != nil {
		return nil, fmt.Errorf("running gate review UI: %w", err)
	}

	m, ok := finalModel.(gateReviewModel)
	if !ok {
		return nil, fmt.Errorf("unexpected model type: %T", finalModel)
	}
	return &ReviewResult{Gates: m.gates, Decisions: m.decisions}, nil
}
