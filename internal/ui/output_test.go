package ui

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/fatih/color"
)

// capture redirects ui output to a buffer with colors disabled so the
// assertions see plain text.
func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	prev := color.NoColor
	color.NoColor = true
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() {
		color.NoColor = prev
		SetOutput(os.Stdout)
	})
	return &buf
}

func TestStep(t *testing.T) {
	buf := capture(t)
	Step(2, 3, "Parsing %d files", 4)
	if got := buf.String(); got != "[2/3] Parsing 4 files\n" {
		t.Errorf("Step output = %q", got)
	}
}

func TestMessagePrefixes(t *testing.T) {
	tests := []struct {
		name string
		fn   func()
		want string
	}{
		{"Success", func() { Success("imported %d", 7) }, "  → imported 7\n"},
		{"Info", func() { Info("detected account") }, "  → detected account\n"},
		{"Warning", func() { Warning("skipped file") }, "  ⚠ skipped file\n"},
		{"Error", func() { Error("bad input") }, "Error: bad input\n"},
		{"BlueText", func() { BlueText("Holiday Fund") }, "Holiday Fund\n"},
		{"YellowText", func() { YellowText("dry run") }, "dry run\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := capture(t)
			tt.fn()
			if got := buf.String(); got != tt.want {
				t.Errorf("%s output = %q; want %q", tt.name, got, tt.want)
			}
		})
	}
}

func TestHeader(t *testing.T) {
	buf := capture(t)
	Header("Importing Bank Statements")

	lines := strings.Split(buf.String(), "\n")
	// Leading blank line, rule, title, rule, trailing blank.
	if len(lines) < 4 {
		t.Fatalf("Header produced %d lines", len(lines))
	}
	rule := strings.Repeat("=", headerWidth)
	if lines[1] != rule || lines[3] != rule {
		t.Errorf("Header rules = %q / %q", lines[1], lines[3])
	}
	if !strings.Contains(lines[2], "Importing Bank Statements") {
		t.Errorf("Header title line = %q", lines[2])
	}
	if !strings.HasPrefix(lines[2], " ") {
		t.Errorf("Header title not centered: %q", lines[2])
	}
}

func TestCenter(t *testing.T) {
	tests := []struct {
		text  string
		width int
		want  string
	}{
		{"Hello", 15, "     Hello"},
		{"Hello", 5, "Hello"},
		{"Hello World", 5, "Hello World"},
		{"Test", 10, "   Test"},
	}

	for _, tt := range tests {
		if got := center(tt.text, tt.width); got != tt.want {
			t.Errorf("center(%q, %d) = %q; want %q", tt.text, tt.width, got, tt.want)
		}
	}
}
