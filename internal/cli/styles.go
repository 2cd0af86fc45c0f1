// Package cli provides styled terminal output using lipgloss.
package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Palette. Greens for balanced books, amber for anything still open.
var (
	PrimaryColor = lipgloss.Color("#2E8B57")
	SuccessColor = lipgloss.Color("#3CB371")
	WarningColor = lipgloss.Color("#E0A526")
	ErrorColor   = lipgloss.Color("#D9534F")
	InfoColor    = lipgloss.Color("#7FB3D5")
	SubtleColor  = lipgloss.Color("#7A7A7A")
)

var (
	TitleStyle   = lipgloss.NewStyle().Bold(true).Foreground(PrimaryColor).MarginBottom(1)
	SuccessStyle = lipgloss.NewStyle().Foreground(SuccessColor)
	WarningStyle = lipgloss.NewStyle().Foreground(WarningColor)
	ErrorStyle   = lipgloss.NewStyle().Foreground(ErrorColor)
	InfoStyle    = lipgloss.NewStyle().Foreground(InfoColor)
	SubtleStyle  = lipgloss.NewStyle().Foreground(SubtleColor)
	BoldStyle    = lipgloss.NewStyle().Bold(true)
	PromptStyle  = lipgloss.NewStyle().Bold(true).Foreground(PrimaryColor)

	// BoxStyle frames summaries such as import and bulk-apply results.
	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(PrimaryColor).
			Padding(0, 1)

	// TableHeaderStyle and TableCellStyle pad columns for RenderTable.
	TableHeaderStyle = lipgloss.NewStyle().Bold(true).Underline(true).PaddingRight(2)
	TableCellStyle   = lipgloss.NewStyle().PaddingRight(2)
)

const (
	SuccessIcon = "✓"
	ErrorIcon   = "✗"
	WarningIcon = "!"
	InfoIcon    = "•"
	LedgerIcon  = "📒"
	ScaleIcon   = "⚖️"
)

func iconLine(style lipgloss.Style, icon, message string) string {
	return style.Render(icon + " " + message)
}

// FormatSuccess, FormatError, FormatWarning and FormatInfo prefix a one-line
// message with its status icon.
func FormatSuccess(message string) string { return iconLine(SuccessStyle, SuccessIcon, message) }

func FormatError(message string) string { return iconLine(ErrorStyle, ErrorIcon, message) }

func FormatWarning(message string) string { return iconLine(WarningStyle, WarningIcon, message) }

func FormatInfo(message string) string { return iconLine(InfoStyle, InfoIcon, message) }

// FormatTitle prefixes a heading with the ledger icon.
func FormatTitle(title string) string {
	return TitleStyle.Render(LedgerIcon + " " + title)
}

// FormatPrompt styles a question awaiting input.
func FormatPrompt(prompt string) string {
	return PromptStyle.Render(prompt + " ")
}

// FormatBalanced renders the balance state of a transaction.
func FormatBalanced(balanced bool) string {
	if balanced {
		return SuccessStyle.Render(ScaleIcon + " balanced")
	}
	return WarningStyle.Render(ScaleIcon + " unbalanced")
}

// RenderBox frames content under a heading line.
func RenderBox(title, content string) string {
	heading := TitleStyle.UnsetMargins().Render(title)
	return BoxStyle.Render(heading + "\n" + content)
}

// RenderTable lays out rows in left-aligned columns sized to their widest cell.
func RenderTable(headers []string, rows [][]string) string {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i := 0; i < len(row) && i < len(widths); i++ {
			if w := lipgloss.Width(row[i]); w > widths[i] {
				widths[i] = w
			}
		}
	}

	var b strings.Builder
	cells := make([]string, len(headers))
	for i, h := range headers {
		cells[i] = TableHeaderStyle.Width(widths[i] + 2).Render(h)
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cells...))
	for _, row := range rows {
		b.WriteString("\n")
		cells = cells[:0]
		for i := range headers {
			var value string
			if i < len(row) {
				value = row[i]
			}
			cells = append(cells, TableCellStyle.Width(widths[i]+2).Render(value))
		}
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cells...))
	}
	return b.String()
}

// FormatCount renders "n noun" with a naive English plural.
func FormatCount(n int, noun string) string {
	switch {
	case n == 1:
		return fmt.Sprintf("%d %s", n, noun)
	case strings.HasSuffix(noun, "y"):
		return fmt.Sprintf("%d %sies", n, strings.TrimSuffix(noun, "y"))
	default:
		return fmt.Sprintf("%d %ss", n, noun)
	}
}
