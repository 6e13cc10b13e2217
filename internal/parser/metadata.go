package parser

import (
	"fmt"
	"path/filepath"
	"time"
)

// Metadata carries context about the file being parsed that does not come
// from the file content itself: the original filename (some formats encode
// the account number there) and an optional account number supplied by the
// caller out of band.
//
// Create instances with NewMetadata(filePath, detectedAt); required fields
// are validated there. Optional fields are set after construction.
//
// An empty AccountNumber() is not an error: parsers that cannot recover an
// account from content or filename fall back to the unknown-account
// sentinel, and the review workflow prompts the user later.
type Metadata struct {
	filePath      string
	accountNumber string // supplied out of band, overrides filename inference
	formatHint    string // optional parser name forced by the caller
	detectedAt    time.Time
}

// NewMetadata creates a Metadata with validated required fields.
func NewMetadata(filePath string, detectedAt time.Time) (*Metadata, error) {
	if filePath == "" {
		return nil, fmt.Errorf("file path cannot be empty")
	}
	if detectedAt.IsZero() {
		return nil, fmt.Errorf("detected time cannot be zero")
	}
	return &Metadata{
		filePath:   filePath,
		detectedAt: detectedAt,
	}, nil
}

// FilePath returns the absolute file path.
func (m *Metadata) FilePath() string {
	return m.filePath
}

// SourceFile returns the base filename, recorded on every transaction the
// file produces.
func (m *Metadata) SourceFile() string {
	return filepath.Base(m.filePath)
}

// AccountNumber returns the caller-supplied account number, or empty when
// none was given.
func (m *Metadata) AccountNumber() string {
	return m.accountNumber
}

// FormatHint returns the parser name forced by the caller, or empty for
// automatic detection.
func (m *Metadata) FormatHint() string {
	return m.formatHint
}

// DetectedAt returns the timestamp when the file was detected.
func (m *Metadata) DetectedAt() time.Time {
	return m.detectedAt
}

// SetAccountNumber sets the out-of-band account number.
func (m *Metadata) SetAccountNumber(accountNumber string) {
	m.accountNumber = accountNumber
}

// SetFormatHint forces a specific parser by name.
func (m *Metadata) SetFormatHint(hint string) {
	m.formatHint = hint
}
