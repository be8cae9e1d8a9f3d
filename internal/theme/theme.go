// Package theme holds the colors and table styles of the arena CLI.
package theme

import (
	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/table"
)

// Palette
var (
	Primary = lipgloss.Color("#8B5CF6")
	Accent  = lipgloss.Color("#F97316")
	Success = lipgloss.Color("#22C55E")
	Error   = lipgloss.Color("#F43F5E")
	Text    = lipgloss.Color("#F8FAFC")
	TextDim = lipgloss.Color("#94A3B8")
	Border  = lipgloss.Color("#334155")
)

var (
	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(Primary)

	Hint = lipgloss.NewStyle().
		Foreground(TextDim).
		Italic(true)

	Label = lipgloss.NewStyle().
		Foreground(TextDim).
		Width(11)

	Correct = lipgloss.NewStyle().
		Foreground(Success).
		Bold(true)

	Incorrect = lipgloss.NewStyle().
			Foreground(Error).
			Bold(true)

	headerCell = lipgloss.NewStyle().
			Foreground(Primary).
			Bold(true).
			Padding(0, 1)

	cell = lipgloss.NewStyle().
		Foreground(Text).
		Padding(0, 1)

	footerCell = cell.
			Foreground(Accent).
			Bold(true)
)

// Table returns a rounded table with the arena header style. When
// footer is true the last row is styled as a totals line.
func Table(headers []string, rows [][]string, footer bool) *table.Table {
	last := len(rows) - 1
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(Border)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerCell
			case footer && row == last:
				return footerCell
			default:
				return cell
			}
		})
}

// Check renders a success mark.
func Check(ok bool) string {
	if ok {
		return Correct.Render("✓")
	}
	return Incorrect.Render("✗")
}
