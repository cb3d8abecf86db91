// Package cli provides the command-line interface for the trading terminal.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// Output handles formatted output for the CLI.
type Output struct {
	writer       io.Writer
	jsonMode     bool
	colorEnabled bool
}

// NewOutput creates a new Output instance.
func NewOutput(cmd *cobra.Command) *Output {
	jsonMode, _ := cmd.Flags().GetBool("json")
	return &Output{
		writer:       cmd.OutOrStdout(),
		jsonMode:     jsonMode,
		colorEnabled: !jsonMode && isTerminal(),
	}
}

// isTerminal checks if stdout is a terminal.
func isTerminal() bool {
	fileInfo, _ := os.Stdout.Stat()
	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}

// IsJSON returns true if JSON output mode is enabled.
func (o *Output) IsJSON() bool {
	return o.jsonMode
}

// JSON outputs data as JSON.
func (o *Output) JSON(data interface{}) error {
	encoder := json.NewEncoder(o.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// Println prints a message with newline.
func (o *Output) Println(args ...interface{}) {
	fmt.Fprintln(o.writer, args...)
}

// Printf prints a formatted message.
func (o *Output) Printf(format string, args ...interface{}) {
	fmt.Fprintf(o.writer, format, args...)
}

var (
	greenSprint  = color.New(color.FgGreen).SprintFunc()
	redSprint    = color.New(color.FgRed).SprintFunc()
	yellowSprint = color.New(color.FgYellow).SprintFunc()
	cyanSprint   = color.New(color.FgCyan).SprintFunc()
	boldSprint   = color.New(color.Bold).SprintFunc()
	dimSprint    = color.New(color.Faint).SprintFunc()
)

// Success prints a success message in green.
func (o *Output) Success(format string, args ...interface{}) {
	o.colored(greenSprint, format, args...)
}

// Error prints an error message in red.
func (o *Output) Error(format string, args ...interface{}) {
	o.colored(redSprint, format, args...)
}

// Warning prints a warning message in yellow.
func (o *Output) Warning(format string, args ...interface{}) {
	o.colored(yellowSprint, format, args...)
}

// Info prints an info message in cyan.
func (o *Output) Info(format string, args ...interface{}) {
	o.colored(cyanSprint, format, args...)
}

// Bold prints a bold message.
func (o *Output) Bold(format string, args ...interface{}) {
	o.colored(boldSprint, format, args...)
}

// Dim prints a dimmed message.
func (o *Output) Dim(format string, args ...interface{}) {
	o.colored(dimSprint, format, args...)
}

func (o *Output) colored(sprint func(a ...interface{}) string, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if o.colorEnabled {
		fmt.Fprintln(o.writer, sprint(msg))
	} else {
		fmt.Fprintln(o.writer, msg)
	}
}

// Green returns green colored text.
func (o *Output) Green(text string) string {
	if !o.colorEnabled {
		return text
	}
	return greenSprint(text)
}

// Red returns red colored text.
func (o *Output) Red(text string) string {
	if !o.colorEnabled {
		return text
	}
	return redSprint(text)
}

// Yellow returns yellow colored text.
func (o *Output) Yellow(text string) string {
	if !o.colorEnabled {
		return text
	}
	return yellowSprint(text)
}

// DimText returns dimmed text.
func (o *Output) DimText(text string) string {
	if !o.colorEnabled {
		return text
	}
	return dimSprint(text)
}

// ChangeColor colors text red for gains and green for losses, following
// mainland market convention.
func (o *Output) ChangeColor(value float64, text string) string {
	if value > 0 {
		return o.Red(text)
	}
	if value < 0 {
		return o.Green(text)
	}
	return text
}

// FormatChangePercent formats a signed percentage with market coloring.
func (o *Output) FormatChangePercent(pct float64) string {
	return o.ChangeColor(pct, FormatPercent(pct))
}

// ConnStatus renders an online/offline indicator.
func (o *Output) ConnStatus(online bool) string {
	if online {
		return o.Green("● online")
	}
	return o.Red("● offline")
}

// Table represents a simple aligned table for output.
type Table struct {
	headers []string
	rows    [][]string
	output  *Output
}

// NewTable creates a new table.
func NewTable(output *Output, headers ...string) *Table {
	return &Table{
		headers: headers,
		rows:    make([][]string, 0),
		output:  output,
	}
}

// AddRow adds a row to the table.
func (t *Table) AddRow(cells ...string) {
	t.rows = append(t.rows, cells)
}

// Render renders the table.
func (t *Table) Render() {
	if len(t.headers) == 0 {
		return
	}

	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = displayWidth(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if i < len(widths) {
				if w := displayWidth(cell); w > widths[i] {
					widths[i] = w
				}
			}
		}
	}

	t.printRow(t.headers, widths, true)
	t.printSeparator(widths)
	for _, row := range t.rows {
		t.printRow(row, widths, false)
	}
}

func (t *Table) printRow(cells []string, widths []int, isHeader bool) {
	var parts []string
	for i, cell := range cells {
		if i < len(widths) {
			padding := widths[i] - displayWidth(cell)
			if padding < 0 {
				padding = 0
			}
			padded := cell + strings.Repeat(" ", padding)
			if isHeader && t.output.colorEnabled {
				padded = boldSprint(padded)
			}
			parts = append(parts, padded)
		}
	}
	t.output.Println(strings.Join(parts, "  "))
}

func (t *Table) printSeparator(widths []int) {
	var parts []string
	for _, w := range widths {
		parts = append(parts, strings.Repeat("─", w))
	}
	sep := strings.Join(parts, "──")
	if t.output.colorEnabled {
		sep = dimSprint(sep)
	}
	t.output.Println(sep)
}

// displayWidth approximates terminal cell width: CJK runes occupy two
// columns, ANSI escapes occupy none.
func displayWidth(s string) int {
	width := 0
	inEscape := false
	for _, r := range s {
		switch {
		case inEscape:
			if r == 'm' {
				inEscape = false
			}
		case r == '\x1b':
			inEscape = true
		case r >= 0x2E80 && r <= 0x9FFF || r >= 0xFF00 && r <= 0xFFEF:
			width += 2
		default:
			width++
		}
	}
	return width
}
