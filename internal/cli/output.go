package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"chan-analyzer/internal/models"
)

// Output handles formatted output for the CLI.
type Output struct {
	writer       io.Writer
	jsonMode     bool
	yamlMode     bool
	colorEnabled bool

	green, red, yellow, cyan, bold, dim *color.Color
}

// NewOutput creates a new Output instance. Colors are used only when writing
// text to a terminal and the configuration allows it.
func NewOutput(cmd *cobra.Command, colorAllowed bool) *Output {
	jsonMode, _ := cmd.Flags().GetBool("json")
	yamlMode, _ := cmd.Flags().GetBool("yaml")
	noColor, _ := cmd.Flags().GetBool("no-color")

	w := cmd.OutOrStdout()
	o := &Output{
		writer:       w,
		jsonMode:     jsonMode,
		yamlMode:     yamlMode && !jsonMode,
		colorEnabled: colorAllowed && !noColor && !jsonMode && !yamlMode && isTerminal(w),
	}

	o.green = o.newColor(color.FgGreen)
	o.red = o.newColor(color.FgRed)
	o.yellow = o.newColor(color.FgYellow)
	o.cyan = o.newColor(color.FgCyan)
	o.bold = o.newColor(color.Bold)
	o.dim = o.newColor(color.Faint)
	return o
}

func (o *Output) newColor(attrs ...color.Attribute) *color.Color {
	c := color.New(attrs...)
	if o.colorEnabled {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return c
}

// isTerminal checks if w is a terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fileInfo, err := f.Stat()
	if err != nil {
		return false
	}
	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}

// IsJSON returns true if JSON output mode is enabled.
func (o *Output) IsJSON() bool {
	return o.jsonMode
}

// IsYAML returns true if YAML output mode is enabled.
func (o *Output) IsYAML() bool {
	return o.yamlMode
}

// IsStructured reports whether output is JSON or YAML rather than text.
func (o *Output) IsStructured() bool {
	return o.jsonMode || o.yamlMode
}

// JSON outputs data as JSON.
func (o *Output) JSON(data interface{}) error {
	encoder := json.NewEncoder(o.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// YAML outputs data as YAML.
func (o *Output) YAML(data interface{}) error {
	encoder := yaml.NewEncoder(o.writer)
	encoder.SetIndent(2)
	if err := encoder.Encode(data); err != nil {
		return err
	}
	return encoder.Close()
}

// Structured writes data in whichever structured mode is active.
func (o *Output) Structured(data interface{}) error {
	if o.yamlMode {
		return o.YAML(data)
	}
	return o.JSON(data)
}

// Println prints a message with newline.
func (o *Output) Println(args ...interface{}) {
	fmt.Fprintln(o.writer, args...)
}

// Printf prints a formatted message.
func (o *Output) Printf(format string, args ...interface{}) {
	fmt.Fprintf(o.writer, format, args...)
}

// Success prints a success message in green.
func (o *Output) Success(format string, args ...interface{}) {
	o.Println(o.green.Sprintf(format, args...))
}

// Error prints an error message in red.
func (o *Output) Error(format string, args ...interface{}) {
	o.Println(o.red.Sprintf(format, args...))
}

// Warning prints a warning message in yellow.
func (o *Output) Warning(format string, args ...interface{}) {
	o.Println(o.yellow.Sprintf(format, args...))
}

// Info prints an info message in cyan.
func (o *Output) Info(format string, args ...interface{}) {
	o.Println(o.cyan.Sprintf(format, args...))
}

// Bold prints a bold message.
func (o *Output) Bold(format string, args ...interface{}) {
	o.Println(o.bold.Sprintf(format, args...))
}

// Dim prints a dimmed message.
func (o *Output) Dim(format string, args ...interface{}) {
	o.Println(o.dim.Sprintf(format, args...))
}

// Green returns green colored text.
func (o *Output) Green(text string) string {
	return o.green.Sprint(text)
}

// Red returns red colored text.
func (o *Output) Red(text string) string {
	return o.red.Sprint(text)
}

// Yellow returns yellow colored text.
func (o *Output) Yellow(text string) string {
	return o.yellow.Sprint(text)
}

// DimText returns dimmed text.
func (o *Output) DimText(text string) string {
	return o.dim.Sprint(text)
}

// SignalTag renders a signal kind, green for buys and red for sells.
// First-class points are bold.
func (o *Output) SignalTag(kind models.SignalKind) string {
	text := string(kind)
	if kind.Class() == 1 {
		text = o.bold.Sprint(text)
	}
	if kind.IsBuy() {
		return o.Green(text)
	}
	return o.Red(text)
}

// DirectionTag renders a stroke or segment direction.
func (o *Output) DirectionTag(d models.Direction) string {
	switch d {
	case models.DirectionUp:
		return o.Green("↑ up")
	case models.DirectionDown:
		return o.Red("↓ down")
	default:
		return o.DimText("-")
	}
}

// Table represents a simple table for output.
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
			if isHeader {
				padded = t.output.bold.Sprint(padded)
			}
			parts = append(parts, padded)
		}
	}
	t.output.Println(strings.TrimRight(strings.Join(parts, "  "), " "))
}

func (t *Table) printSeparator(widths []int) {
	var parts []string
	for _, w := range widths {
		parts = append(parts, strings.Repeat("─", w))
	}
	t.output.Println(t.output.DimText(strings.Join(parts, "──")))
}

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// stripANSI removes ANSI escape codes from a string.
func stripANSI(s string) string {
	return ansiPattern.ReplaceAllString(s, "")
}

func displayWidth(s string) int {
	return len([]rune(stripANSI(s)))
}
