package theme

import (
	"charm.land/lipgloss/v2"

	"github.com/abhisek/leetbuddy/internal/catalog"
	"github.com/abhisek/leetbuddy/internal/enforce"
)

// Color palette
var (
	Primary   = lipgloss.Color("#F59E0B") // Amber
	Secondary = lipgloss.Color("#14B8A6") // Teal
	Success   = lipgloss.Color("#22C55E") // Green
	Warning   = lipgloss.Color("#EAB308") // Yellow
	Error     = lipgloss.Color("#F43F5E") // Rose
	Text      = lipgloss.Color("#F8FAFC") // White
	TextDim   = lipgloss.Color("#94A3B8") // Slate
	Border    = lipgloss.Color("#334155") // Slate
)

// Typography
var (
	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(Primary)

	Label = lipgloss.NewStyle().
		Foreground(TextDim)

	Body = lipgloss.NewStyle().
		Foreground(Text)

	Hint = lipgloss.NewStyle().
		Foreground(TextDim).
		Italic(true)
)

// Layout
var (
	Card = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(Border).
		Padding(0, 2)
)

// States
var (
	Blocked = lipgloss.NewStyle().
		Foreground(Error).
		Bold(true)

	Unblocked = lipgloss.NewStyle().
			Foreground(Success).
			Bold(true)

	Bypassed = lipgloss.NewStyle().
			Foreground(Warning).
			Bold(true)
)

// Components
var (
	ProgressFilled = lipgloss.NewStyle().
			Background(Secondary)

	ProgressEmpty = lipgloss.NewStyle().
			Background(Border)
)

// StateStyle returns the style for an enforcement state.
func StateStyle(s enforce.State) lipgloss.Style {
	switch s {
	case enforce.StateUnblockedBySolve:
		return Unblocked
	case enforce.StateUnblockedByBypass:
		return Bypassed
	default:
		return Blocked
	}
}

// DifficultyStyle colors a difficulty the way the problem site does.
func DifficultyStyle(d catalog.Difficulty) lipgloss.Style {
	switch d {
	case catalog.DifficultyEasy:
		return lipgloss.NewStyle().Foreground(Secondary)
	case catalog.DifficultyMedium:
		return lipgloss.NewStyle().Foreground(Warning)
	case catalog.DifficultyHard:
		return lipgloss.NewStyle().Foreground(Error)
	default:
		return Label
	}
}
