package printer

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var headerStyle = lipgloss.NewStyle().Bold(true)

// TablePrinter renders rows under a bold header with column-aligned padding.
type TablePrinter struct {
	w       io.Writer
	headers []string
	rows    [][]string
}

func NewTablePrinter(w io.Writer) *TablePrinter {
	return &TablePrinter{w: w}
}

func (t *TablePrinter) SetHeaders(headers ...string) {
	t.headers = headers
}

func (t *TablePrinter) AddRow(cells ...string) {
	t.rows = append(t.rows, cells)
}

func (t *TablePrinter) Render() error {
	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = len(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	if len(t.headers) > 0 {
		if _, err := fmt.Fprintln(t.w, headerStyle.Render(formatRow(t.headers, widths))); err != nil {
			return err
		}
	}
	for _, row := range t.rows {
		if _, err := fmt.Fprintln(t.w, formatRow(row, widths)); err != nil {
			return err
		}
	}
	return nil
}

func formatRow(cells []string, widths []int) string {
	parts := make([]string, len(cells))
	for i, cell := range cells {
		width := len(cell)
		if i < len(widths) {
			width = widths[i]
		}
		parts[i] = cell + strings.Repeat(" ", width-len(cell))
	}
	return strings.TrimRight(strings.Join(parts, "  "), " ")
}
