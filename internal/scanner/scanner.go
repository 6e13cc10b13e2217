// Package scanner finds statement files to import.
package scanner

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rumor-ml/commons.systems/bankbuckets/internal/parser"
)

// Scanner walks a directory tree (or takes a single file) and yields every
// statement file with its parse metadata.
type Scanner struct {
	root       string
	formatHint string
}

// New creates a scanner rooted at a directory or a single statement file.
func New(root string) *Scanner {
	return &Scanner{root: root}
}

// SetFormatHint forces a specific parser for every scanned file instead of
// content sniffing.
func (s *Scanner) SetFormatHint(hint string) {
	s.formatHint = hint
}

// ScanResult is a found file with the metadata its parser will receive.
type ScanResult struct {
	Path     string
	Metadata *parser.Metadata
}

// Scan returns all statement files under the root in walk order. Files in
// one batch are later imported strictly sequentially, so a stable order
// here makes duplicate detection reproducible.
func (s *Scanner) Scan() ([]ScanResult, error) {
	root := expandHome(s.root)

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("scan failed: %w", err)
	}

	if !info.IsDir() {
		result, err := s.newResult(root)
		if err != nil {
			return nil, err
		}
		return []ScanResult{result}, nil
	}

	var results []ScanResult
	err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !isStatementFile(path) {
			return nil
		}

		result, err := s.newResult(path)
		if err != nil {
			return err
		}
		results = append(results, result)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan failed: %w", err)
	}

	return results, nil
}

func (s *Scanner) newResult(path string) (ScanResult, error) {
	meta, err := parser.NewMetadata(path, time.Now())
	if err != nil {
		return ScanResult{}, fmt.Errorf("scan failed for %s: %w", path, err)
	}
	if s.formatHint != "" {
		meta.SetFormatHint(s.formatHint)
	}
	return ScanResult{Path: path, Metadata: meta}, nil
}

// isStatementFile checks for the known statement extensions. PDF
// statements arrive as pre-extracted .txt files.
func isStatementFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt", ".ofx", ".qfx":
		return true
	}
	return false
}

// expandHome expands a leading ~ to the user's home directory.
func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}
