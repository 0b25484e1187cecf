// Package cli renders the operator's terminal: the approval prompter, ledger
// tables, and status lines.
package cli

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/Veraticus/invoice-chaser/internal/model"
)

var (
	ledgerBlue = lipgloss.Color("#5DA9E9")
	paidTeal   = lipgloss.Color("#4ECDC4")
	dueAmber   = lipgloss.Color("#FFE66D")
	failRed    = lipgloss.Color("#FF6B6B")
	noteTeal   = lipgloss.Color("#95E1D3")
	mutedGray  = lipgloss.Color("#666666")
	ruleGray   = lipgloss.Color("#333")
)

var (
	// HeadingStyle renders box titles and report section headings.
	HeadingStyle = lipgloss.NewStyle().Bold(true).Foreground(ledgerBlue)

	// LabelStyle renders field names inside an item box.
	LabelStyle = lipgloss.NewStyle().Bold(true)

	// Outcome styles for status lines and list headings.
	SuccessStyle = lipgloss.NewStyle().Foreground(paidTeal)
	WarningStyle = lipgloss.NewStyle().Foreground(dueAmber)
	ErrorStyle   = lipgloss.NewStyle().Foreground(failRed)
	InfoStyle    = lipgloss.NewStyle().Foreground(noteTeal)

	// TableHeaderStyle underlines the header row of RenderTable.
	TableHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				BorderStyle(lipgloss.NormalBorder()).
				BorderBottom(true).
				BorderForeground(ruleGray)

	// TableCellStyle pads every column by two spaces.
	TableCellStyle = lipgloss.NewStyle().PaddingRight(2)

	mutedStyle  = lipgloss.NewStyle().Foreground(mutedGray)
	promptStyle = lipgloss.NewStyle().Bold(true).Foreground(ledgerBlue)
	boxStyle    = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ruleGray).
			Padding(1, 2)
)

// Icons.
const (
	SuccessIcon = "✓"
	ErrorIcon   = "✗"
	WarningIcon = "⚠️"
	InfoIcon    = "ℹ️"
	MailIcon    = "📨"
	ChartIcon   = "📊"
	InvoiceIcon = "🧾"
)

// FormatSuccess prefixes message with a check mark.
func FormatSuccess(message string) string {
	return SuccessStyle.Render(SuccessIcon + " " + message)
}

// FormatError prefixes message with a cross.
func FormatError(message string) string {
	return ErrorStyle.Render(ErrorIcon + " " + message)
}

// FormatWarning prefixes message with a warning sign.
func FormatWarning(message string) string {
	return WarningStyle.Render(WarningIcon + " " + message)
}

// FormatInfo prefixes message with an info sign.
func FormatInfo(message string) string {
	return InfoStyle.Render(InfoIcon + " " + message)
}

// FormatHeading renders a top-level heading for a command's output.
func FormatHeading(title string) string {
	return HeadingStyle.MarginBottom(1).Render(MailIcon + " " + title)
}

// FormatPrompt renders the question before operator input.
func FormatPrompt(prompt string) string {
	return promptStyle.Render(prompt + " → ")
}

// RenderBox draws content in a rounded box under title.
func RenderBox(title, content string) string {
	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, HeadingStyle.Render(title), content))
}

// RenderList renders identifiers as a bulleted list, or "none".
func RenderList(items []string) string {
	if len(items) == 0 {
		return mutedStyle.Render("  none")
	}
	lines := make([]string, len(items))
	for i, item := range items {
		lines[i] = "  • " + item
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// RecordStatus colours a ledger status: amber while awaiting, teal once
// satisfied.
func RecordStatus(status model.RecordStatus) string {
	if status == model.StatusAwaiting {
		return WarningStyle.Render(string(status))
	}
	return SuccessStyle.Render(string(status))
}

// ItemKind colours a report item kind so manual-review items stand out in
// queue listings.
func ItemKind(kind model.ItemKind) string {
	switch kind {
	case model.ItemDraft:
		return InfoStyle.Render(string(kind))
	case model.ItemManualReview:
		return WarningStyle.Render(string(kind))
	default:
		return mutedStyle.Render(string(kind))
	}
}
