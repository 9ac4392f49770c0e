// Package printer provides styled terminal output helpers shared by all CLI
// commands: status lines, JSON output, and simple tables.
package printer

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
)

// infoWidth bounds info blocks so long messages stay readable in narrow
// terminals.
const infoWidth = 100

type OutputType string

const (
	OutputTypeText OutputType = "text"
	OutputTypeJSON OutputType = "json"
)

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	infoStyle    = lipgloss.NewStyle()
)

// Printer writes structured or plain output depending on the selected type.
type Printer struct {
	outputType OutputType
	quiet      bool
}

func New(outputType OutputType, quiet bool) *Printer {
	return &Printer{outputType: outputType, quiet: quiet}
}

// PrintJSON writes v as indented JSON to stdout.
func (p *Printer) PrintJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func PrintSuccess(msg string) {
	fmt.Println(successStyle.Render("✓ " + msg))
}

func PrintError(msg string) {
	fmt.Fprintln(os.Stderr, errorStyle.Render("✗ "+msg))
}

func PrintWarning(msg string) {
	fmt.Println(warningStyle.Render("! " + msg))
}

func PrintInfo(msg string) {
	fmt.Println(infoStyle.Render(wordwrap.String(msg, infoWidth)))
}

// TruncateString shortens s to max runes, appending "..." when truncated.
func TruncateString(s string, max int) string {
	if max <= 3 {
		max = 3
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}
