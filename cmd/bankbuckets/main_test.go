package main

import (
	"path/filepath"
	"testing"

	"github.com/rumor-ml/commons.systems/bankbuckets/internal/buckets"
	"github.com/rumor-ml/commons.systems/bankbuckets/internal/store"
)

func TestPrintStorageInfo(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer st.Close()

	if err := st.SaveWorkflowPhase("buckets"); err != nil {
		t.Fatalf("SaveWorkflowPhase failed: %v", err)
	}

	if err := printStorageInfo(st); err != nil {
		t.Errorf("printStorageInfo failed: %v", err)
	}
}

func TestPrintSuggestions_Empty(t *testing.T) {
	// Must not panic on an empty result.
	printSuggestions(nil)
	printSuggestions([]buckets.Suggestion{{Name: "Holiday Fund", MatchCount: 2, Keywords: []string{"holiday"}}})
}
