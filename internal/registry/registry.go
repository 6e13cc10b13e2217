// Package registry dispatches statement files to the parser that can
// handle them.
package registry

import (
	"fmt"
	"io"
	"os"

	"github.com/rumor-ml/commons.systems/bankbuckets/internal/parser"
	"github.com/rumor-ml/commons.systems/bankbuckets/internal/parsers/csv"
	"github.com/rumor-ml/commons.systems/bankbuckets/internal/parsers/ofx"
	"github.com/rumor-ml/commons.systems/bankbuckets/internal/parsers/pdftext"
)

// Registry holds all registered parsers.
type Registry struct {
	parsers []parser.Parser
}

// New creates a registry with all built-in parsers. Order matters: the
// first parser whose CanParse accepts a file wins, and the OFX sniff is
// the most specific so it goes first.
func New() *Registry {
	return &Registry{
		parsers: []parser.Parser{
			ofx.NewParser(),
			csv.NewParser(),
			pdftext.NewParser(),
		},
	}
}

// Register adds a custom parser.
func (r *Registry) Register(p parser.Parser) {
	r.parsers = append(r.parsers, p)
}

// ByName returns the parser with the given name, used when the caller
// forces a format instead of sniffing.
func (r *Registry) ByName(name string) (parser.Parser, error) {
	for _, p := range r.parsers {
		if p.Name() == name {
			return p, nil
		}
	}
	return nil, fmt.Errorf("unknown parser %q (available: %v)", name, r.ListParsers())
}

// FindParser returns the best parser for this file. It reads the first
// 512 bytes for header inspection, which is enough to spot OFX magic,
// CSV header rows and statement text markers.
func (r *Registry) FindParser(path string) (parser.Parser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	header := make([]byte, 512)
	n, err := f.Read(header)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to read header from %s: %w", path, err)
	}
	// Short files are fine; parsers see whatever was read.
	header = header[:n]

	for _, p := range r.parsers {
		if p.CanParse(path, header) {
			return p, nil
		}
	}

	return nil, fmt.Errorf("no parser found for file: %s", path)
}

// ParserFor resolves the parser for a scan result, honoring a format hint
// when one is set.
func (r *Registry) ParserFor(path string, meta *parser.Metadata) (parser.Parser, error) {
	if hint := meta.FormatHint(); hint != "" {
		return r.ByName(hint)
	}
	return r.FindParser(path)
}

// ListParsers returns the names of all registered parsers.
func (r *Registry) ListParsers() []string {
	names := make([]string, len(r.parsers))
	for i, p := range r.parsers {
		names[i] = p.Name()
	}
	return names
}
