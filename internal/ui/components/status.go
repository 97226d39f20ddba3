package components

import (
	"fmt"
	"strings"
	"time"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/leetbuddy/internal/engine"
	"github.com/abhisek/leetbuddy/internal/enforce"
	"github.com/abhisek/leetbuddy/internal/ui/theme"
)

const barWidth = 48

// StatusCard renders the assignment summary shown by `leetbuddy status`.
func StatusCard(v engine.AssignmentView) string {
	var b strings.Builder

	b.WriteString(theme.Title.Render("leetbuddy") + "  " + theme.Label.Render(v.SetID+" · "+string(v.Policy)) + "\n\n")

	if !v.Available || v.Problem == nil {
		b.WriteString(theme.Hint.Render("No problem available. The catalog could not be loaded."))
		return theme.Card.Render(b.String())
	}

	b.WriteString(theme.StateStyle(v.State).Render(StateLine(v.State, v.Bypass)) + "\n\n")

	b.WriteString(theme.Label.Render("Problem   ") + theme.Body.Bold(true).Render(v.Problem.Title) + "  " +
		theme.DifficultyStyle(v.Problem.Difficulty).Render(string(v.Problem.Difficulty)) + "\n")
	b.WriteString(theme.Label.Render("Category  ") + theme.Body.Render(v.CategoryName) + "\n")
	b.WriteString(theme.Label.Render("Link      ") + theme.Body.Render(v.Problem.URL()) + "\n")
	if v.SolutionURL != "" {
		b.WriteString(theme.Label.Render("Solution  ") + theme.Body.Render(v.SolutionURL) + "\n")
	}
	if v.AllSolved {
		b.WriteString("\n" + theme.Unblocked.Render("Every problem in this set is solved.") + "\n")
	}

	b.WriteString("\n" + NewProgressBar("Overall", v.SolvedCount, v.TotalProblems, barWidth).View() + "\n")

	b.WriteString("\n" + theme.Label.Render(BypassLine(v.Bypass)))
	return theme.Card.Render(b.String())
}

// StateLine describes the enforcement state in words.
func StateLine(s enforce.State, bp enforce.BypassStatus) string {
	switch s {
	case enforce.StateUnblockedBySolve:
		return "✓ Solved today. Browsing is unblocked."
	case enforce.StateUnblockedByBypass:
		return fmt.Sprintf("⏸ Bypass active for %s.", FormatMs(bp.RemainingMs))
	default:
		return "✗ Blocked until today's problem is solved."
	}
}

// BypassLine describes bypass availability.
func BypassLine(bp enforce.BypassStatus) string {
	if bp.CanBypass {
		return "Bypass available."
	}
	return "Next bypass in " + FormatMs(bp.NextAllowedMs) + "."
}

// FormatMs renders a millisecond duration as minutes and seconds.
func FormatMs(ms int64) string {
	d := (time.Duration(ms) * time.Millisecond).Round(time.Second)
	m := int(d / time.Minute)
	s := int((d % time.Minute) / time.Second)
	if m == 0 {
		return fmt.Sprintf("%ds", s)
	}
	return fmt.Sprintf("%dm %02ds", m, s)
}

// ProgressTable renders per-category progress with each problem listed.
func ProgressTable(v engine.ProgressView, showProblems bool) string {
	if !v.Available {
		return theme.Hint.Render("No progress available. The catalog could not be loaded.")
	}

	width := 0
	for _, c := range v.Categories {
		width = max(width, lipgloss.Width(c.Name))
	}

	var b strings.Builder
	b.WriteString(theme.Title.Render(v.SetID) + "  " + theme.Label.Render(string(v.Policy)) + "\n\n")
	for _, c := range v.Categories {
		bar := NewProgressBar(c.Name, c.Solved, c.Total, barWidth+width)
		bar.LabelWidth = width
		b.WriteString(bar.View() + "\n")
		if !showProblems {
			continue
		}
		for _, p := range c.Problems {
			mark := theme.Label.Render("·")
			if p.Solved {
				mark = theme.Unblocked.Render("✓")
			}
			line := fmt.Sprintf("  %s %s  %s", mark, p.Title, theme.DifficultyStyle(p.Difficulty).Render(string(p.Difficulty)))
			if p.IsCurrent {
				line += "  " + theme.Title.Render("← current")
			}
			b.WriteString(line + "\n")
		}
	}
	return b.String()
}
