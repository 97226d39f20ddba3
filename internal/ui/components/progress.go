package components

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/leetbuddy/internal/ui/theme"
)

// ProgressBar displays a horizontal progress bar.
type ProgressBar struct {
	Label      string
	LabelWidth int
	Solved     int
	Total      int
	Width      int
}

// NewProgressBar creates a progress bar for solved out of total.
func NewProgressBar(label string, solved, total, width int) ProgressBar {
	return ProgressBar{
		Label:  label,
		Solved: solved,
		Total:  total,
		Width:  width,
	}
}

// Fraction returns solved/total clamped to [0, 1].
func (p ProgressBar) Fraction() float64 {
	if p.Total <= 0 {
		return 0
	}
	return min(max(float64(p.Solved)/float64(p.Total), 0), 1)
}

// View renders the progress bar.
func (p ProgressBar) View() string {
	var result string

	if p.Label != "" {
		label := p.Label
		if pad := p.LabelWidth - lipgloss.Width(label); pad > 0 {
			label += strings.Repeat(" ", pad)
		}
		result += theme.Body.Render(label) + "  "
	}

	counts := fmt.Sprintf("  %d/%d", p.Solved, p.Total)
	barWidth := max(p.Width-lipgloss.Width(result)-len(counts), 4)

	filled := int(float64(barWidth) * p.Fraction())
	empty := barWidth - filled

	result += theme.ProgressFilled.Render(strings.Repeat(" ", filled))
	result += theme.ProgressEmpty.Render(strings.Repeat(" ", empty))
	result += theme.Label.Render(counts)
	return result
}
