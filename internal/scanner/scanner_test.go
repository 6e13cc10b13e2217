package scanner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("data"), 0o644))
	return path
}

func TestScanDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "Statement_12345678.csv")
	writeFile(t, dir, "nested/statement.txt")
	writeFile(t, dir, "export.ofx")
	writeFile(t, dir, "export.QFX")
	writeFile(t, dir, "notes.md")   // ignored
	writeFile(t, dir, "backup.zip") // ignored

	s := New(dir)
	results, err := s.Scan()
	require.NoError(t, err)
	require.Len(t, results, 4)

	var names []string
	for _, r := range results {
		names = append(names, filepath.Base(r.Path))
		assert.Equal(t, filepath.Base(r.Path), r.Metadata.SourceFile())
		assert.Empty(t, r.Metadata.FormatHint())
	}
	assert.Contains(t, names, "Statement_12345678.csv")
	assert.Contains(t, names, "statement.txt")
	assert.Contains(t, names, "export.ofx")
	assert.Contains(t, names, "export.QFX")
}

func TestScanSingleFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "Statement_12345678.csv")

	results, err := New(path).Scan()
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, path, results[0].Path)
}

func TestScanFormatHint(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "statement.txt")

	s := New(dir)
	s.SetFormatHint("pdf-text")
	results, err := s.Scan()
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "pdf-text", results[0].Metadata.FormatHint())
}

func TestScanMissingRoot(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "nope")).Scan()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scan failed")
}

func TestScanEmptyDirectory(t *testing.T) {
	results, err := New(t.TempDir()).Scan()
	require.NoError(t, err)
	assert.Empty(t, results)
}
