package styles

import (
	"nathanbeddoewebdev/linops/internal/domain"

	"github.com/charmbracelet/lipgloss"
)

var (
	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(White)

	// Label is used for field names in detail views.
	Label = lipgloss.NewStyle().
		Foreground(Gray).
		Bold(true)

	MutedText = lipgloss.NewStyle().
			Foreground(Muted)

	AccentText = lipgloss.NewStyle().
			Foreground(Blue)

	ErrorText = lipgloss.NewStyle().
			Foreground(Red).
			Bold(true)

	SuccessText = lipgloss.NewStyle().
			Foreground(Green).
			Bold(true)

	WarningText = lipgloss.NewStyle().
			Foreground(Yellow).
			Bold(true)
)

// LinodeStatus returns the display name of a Linode status code.
func LinodeStatus(status int) string {
	switch status {
	case domain.LinodeStatusBeingCreated:
		return "being created"
	case domain.LinodeStatusNew:
		return "brand new"
	case domain.LinodeStatusRunning:
		return "running"
	case domain.LinodeStatusPoweredOff:
		return "powered off"
	default:
		return "unknown"
	}
}

// StatusStyle returns the style for a Linode status code.
func StatusStyle(status int) lipgloss.Style {
	switch status {
	case domain.LinodeStatusRunning:
		return lipgloss.NewStyle().Foreground(Green).Bold(true)
	case domain.LinodeStatusBeingCreated, domain.LinodeStatusNew:
		return lipgloss.NewStyle().Foreground(Yellow)
	case domain.LinodeStatusPoweredOff:
		return lipgloss.NewStyle().Foreground(Red)
	default:
		return lipgloss.NewStyle().Foreground(Gray)
	}
}

// OutcomeStyle returns the style for a job outcome.
func OutcomeStyle(o domain.JobOutcome) lipgloss.Style {
	switch o {
	case domain.OutcomeSucceeded:
		return lipgloss.NewStyle().Foreground(Green)
	case domain.OutcomeFailed:
		return lipgloss.NewStyle().Foreground(Red).Bold(true)
	default:
		return lipgloss.NewStyle().Foreground(Yellow)
	}
}
