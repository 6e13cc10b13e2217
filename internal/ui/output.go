// Package ui prints formatted, colored progress output for the import
// workflow.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
)

const headerWidth = 64

var (
	out io.Writer = os.Stdout

	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow, color.Bold)
	blue   = color.New(color.FgBlue)
	red    = color.New(color.FgRed)
)

// SetOutput redirects all ui output, used by tests.
func SetOutput(w io.Writer) {
	out = w
}

// Header prints a banner around a section title.
func Header(text string) {
	rule := strings.Repeat("=", headerWidth)
	green.Fprintf(out, "\n%s\n", rule)
	green.Fprintf(out, "%s\n", center(text, headerWidth))
	green.Fprintf(out, "%s\n\n", rule)
}

// Step prints a numbered stage indicator.
func Step(n, total int, format string, args ...interface{}) {
	yellow.Fprintf(out, "[%d/%d] %s\n", n, total, fmt.Sprintf(format, args...))
}

// Success prints an indented completion message.
func Success(format string, args ...interface{}) {
	green.Fprintf(out, "  → %s\n", fmt.Sprintf(format, args...))
}

// Info prints an indented neutral message.
func Info(format string, args ...interface{}) {
	fmt.Fprintf(out, "  → %s\n", fmt.Sprintf(format, args...))
}

// Warning prints an indented warning.
func Warning(format string, args ...interface{}) {
	yellow.Fprintf(out, "  ⚠ %s\n", fmt.Sprintf(format, args...))
}

// Error prints an error line.
func Error(format string, args ...interface{}) {
	red.Fprintf(out, "Error: %s\n", fmt.Sprintf(format, args...))
}

// BlueText prints a highlighted line, used for list headings.
func BlueText(format string, args ...interface{}) {
	blue.Fprintln(out, fmt.Sprintf(format, args...))
}

// YellowText prints an emphasized line.
func YellowText(format string, args ...interface{}) {
	yellow.Fprintln(out, fmt.Sprintf(format, args...))
}

func center(text string, width int) string {
	if len(text) >= width {
		return text
	}
	pad := (width - len(text)) / 2
	return strings.Repeat(" ", pad) + text
}
