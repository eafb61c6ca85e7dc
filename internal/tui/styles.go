package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/felixgeelhaar/orchestra/internal/domain"
)

// Styles contains lipgloss styles shared by the review UI and CLI output
type Styles struct {
	Title    lipgloss.Style
	Header   lipgloss.Style
	Selected lipgloss.Style
	Item     lipgloss.Style
	Key      lipgloss.Style
	Value    lipgloss.Style
	Muted    lipgloss.Style
	Help     lipgloss.Style
	Success  lipgloss.Style
	Warning  lipgloss.Style
	Error    lipgloss.Style
	Border   lipgloss.Style
}

// DefaultStyles returns the default lipgloss styles
func DefaultStyles() Styles {
	return Styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			MarginLeft(2).
			MarginTop(1),
		Header: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("99")).
			MarginLeft(2),
		Selected: lipgloss.NewStyle().
			Foreground(lipgloss.Color("170")).
			Bold(true).
			PaddingLeft(2),
		Item: lipgloss.NewStyle().
			PaddingLeft(4),
		Key: lipgloss.NewStyle().
			Foreground(lipgloss.Color("99")).
			Bold(true),
		Value: lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")),
		Muted: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")),
		Help: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			MarginLeft(2).
			MarginTop(1),
		Success: lipgloss.NewStyle().
			Foreground(lipgloss.Color("10")).
			Bold(true),
		Warning: lipgloss.NewStyle().
			Foreground(lipgloss.Color("226")).
			Bold(true),
		Error: lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true),
		Border: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1),
	}
}

// GateStatusStyle picks the style for a gate status
func (s Styles) GateStatusStyle(status domain.GateStatus) lipgloss.Style {
	switch status {
	case domain.GateApproved:
		return s.Success
	case domain.GateRejected:
		return s.Error
	case domain.GateSkipped:
		return s.Muted
	default:
		return s.Warning
	}
}

// StateStyle picks the style for a run or checkpoint state name
func (s Styles) StateStyle(state string) lipgloss.Style {
	switch state {
	case "COMPLETED":
		return s.Success
	case "FAILED", "ABORTED":
		return s.Error
	case "BLOCKED", "IN_PROGRESS":
		return s.Warning
	default:
		return s.Value
	}
}
