package cli

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// RenderTable lays rows out in left-aligned columns under a bold header.
// Short rows are padded with empty cells.
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

	renderRow := func(cells []string) string {
		out := make([]string, len(widths))
		for i, w := range widths {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			out[i] = TableCellStyle.Width(w + TableCellStyle.GetPaddingRight()).Render(cell)
		}
		return strings.TrimRight(lipgloss.JoinHorizontal(lipgloss.Top, out...), " ")
	}

	lines := make([]string, 0, len(rows)+1)
	lines = append(lines, TableHeaderStyle.Render(renderRow(headers)))
	for _, row := range rows {
		lines = append(lines, renderRow(row))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}
