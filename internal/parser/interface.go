// Package parser defines the strategy interface implemented by every
// statement format parser, plus the metadata and trace types they share.
package parser

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/rumor-ml/commons.systems/bankbuckets/internal/domain"
)

// Parser is the strategy interface for all statement format parsers.
type Parser interface {
	// Name returns the parser identifier (e.g., "csv", "pdf-text", "ofx")
	Name() string

	// CanParse checks if this parser can handle the file, given its path
	// and the first bytes of content
	CanParse(path string, header []byte) bool

	// Parse extracts normalized transactions from the file.
	// A Result with zero transactions and a non-empty trace is not an
	// error; parse failures that invalidate the whole file are.
	Parse(ctx context.Context, r io.Reader, meta *Metadata) (*Result, error)
}

// Result is the output of a single file parse.
type Result struct {
	Transactions []domain.Transaction
	Trace        Trace
}

// Trace records what a parser saw while working through a file. It exists
// for diagnostics: when a statement yields no transactions the trace shows
// which stage went quiet.
type Trace struct {
	Accounts     []string // account numbers discovered in the file
	Sections     int      // account sections or row groups examined
	Transactions int      // candidate rows examined, Skipped included
	Skipped      int      // candidate rows dropped by validity checks
	Notes        []string // free-form stage annotations
}

// Notef appends a formatted annotation to the trace.
func (t *Trace) Notef(format string, args ...interface{}) {
	t.Notes = append(t.Notes, fmt.Sprintf(format, args...))
}

// ParseError reports a file that was recognized but cannot be imported,
// such as a CSV missing required header columns. It is a terminal
// per-file failure: the pipeline reports it and moves to the next file.
type ParseError struct {
	File    string
	Missing []string // required header columns not found, when applicable
	Reason  string
}

func (e *ParseError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("cannot parse %s: missing required columns: %s",
			e.File, strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("cannot parse %s: %s", e.File, e.Reason)
}
