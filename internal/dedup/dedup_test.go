package dedup

import (
	"testing"

	"github.com/rumor-ml/commons.systems/bankbuckets/internal/domain"
)

func TestExtractRefID(t *testing.T) {
	tests := []struct {
		name        string
		description string
		expected    string
	}{
		{"net token", "Internet Transfer NET# 12345", "NET#12345"},
		{"app token", "Mobile App# 999 payment", "APP#999"},
		{"ref hash token", "Payment Ref#4421", "REF#4421"},
		{"ref dot token", "Payment ref. 4421", "REF.4421"},
		{"no token", "WOOLWORTHS 1234 SYDNEY", ""},
		{"empty description", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractRefID(tt.description); got != tt.expected {
				t.Errorf("ExtractRefID(%q) = %q, want %q", tt.description, got, tt.expected)
			}
		})
	}
}

func TestAreDuplicates_RefTokenPath(t *testing.T) {
	tx1 := domain.Transaction{
		Description:     "Internet Transfer NET# 12345",
		Amount:          -100.00,
		TransactionDate: "2024-01-01",
	}
	tx2 := domain.Transaction{
		Description:     "NET#12345 completely different wording",
		Amount:          100.04,
		TransactionDate: "2024-06-30", // ref token overrides the date gate
	}

	if !AreDuplicates(&tx1, &tx2) {
		t.Error("expected duplicate via shared reference token")
	}
	// Symmetry: argument order must not matter on the ref path.
	if !AreDuplicates(&tx2, &tx1) {
		t.Error("expected ref-token duplicate detection to be symmetric")
	}
}

func TestAreDuplicates_RefTokenAmountMismatch(t *testing.T) {
	tx1 := domain.Transaction{Description: "NET# 12345", Amount: -100.00, TransactionDate: "2024-01-01"}
	tx2 := domain.Transaction{Description: "NET#12345", Amount: -150.00, TransactionDate: "2024-01-01"}

	// Token matches but amounts diverge beyond both tolerances; descriptions
	// still agree by containment, so this only fails on the amount gate.
	if AreDuplicates(&tx1, &tx2) {
		t.Error("expected amount gate to reject despite matching tokens")
	}
}

func TestAreDuplicates_StandardPath(t *testing.T) {
	base := domain.Transaction{
		Description:     "Transfer to Holiday Fund",
		Amount:          -50.00,
		TransactionDate: "2024-03-15",
		AccountNumber:   "301234567",
	}

	tests := []struct {
		name     string
		other    domain.Transaction
		expected bool
	}{
		{
			name: "same movement from another export",
			other: domain.Transaction{
				Description:     "Transfer to Holiday Fund Ref#89",
				Amount:          50.00, // magnitude comparison ignores sign
				TransactionDate: "2024-03-16",
				AccountNumber:   "xxxx4567",
			},
			expected: true,
		},
		{
			name: "amount differs",
			other: domain.Transaction{
				Description:     "Transfer to Holiday Fund",
				Amount:          -50.02,
				TransactionDate: "2024-03-15",
				AccountNumber:   "301234567",
			},
			expected: false,
		},
		{
			name: "date too far apart",
			other: domain.Transaction{
				Description:     "Transfer to Holiday Fund",
				Amount:          -50.00,
				TransactionDate: "2024-03-18",
				AccountNumber:   "301234567",
			},
			expected: false,
		},
		{
			name: "different account",
			other: domain.Transaction{
				Description:     "Transfer to Holiday Fund",
				Amount:          -50.00,
				TransactionDate: "2024-03-15",
				AccountNumber:   "444555666",
			},
			expected: false,
		},
		{
			name: "unrelated description",
			other: domain.Transaction{
				Description:     "Grocery shopping Melbourne",
				Amount:          -50.00,
				TransactionDate: "2024-03-15",
				AccountNumber:   "301234567",
			},
			expected: false,
		},
		{
			name: "high word overlap without containment",
			other: domain.Transaction{
				Description:     "Transfer Holiday Account Fund",
				Amount:          -50.00,
				TransactionDate: "2024-03-15",
				AccountNumber:   "301234567",
			},
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AreDuplicates(&base, &tt.other); got != tt.expected {
				t.Errorf("AreDuplicates() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestAreDuplicates_EmptyDescriptionsFallThrough(t *testing.T) {
	tx1 := domain.Transaction{Amount: -10, TransactionDate: "2024-01-01", AccountNumber: "301234567"}
	tx2 := domain.Transaction{Amount: -10, TransactionDate: "2024-01-01", AccountNumber: "301234567"}

	if !AreDuplicates(&tx1, &tx2) {
		t.Error("expected identical amount/date/account with no descriptions to match")
	}
}

func TestAreDuplicates_PostedDateFallback(t *testing.T) {
	tx1 := domain.Transaction{Description: "Coffee", Amount: -4.5, PostedDate: "2024-01-01"}
	tx2 := domain.Transaction{Description: "Coffee", Amount: -4.5, TransactionDate: "2024-01-02"}

	if !AreDuplicates(&tx1, &tx2) {
		t.Error("expected posted date to stand in for a missing transaction date")
	}
}

func TestAccountsCompatible(t *testing.T) {
	tests := []struct {
		name     string
		account1 string
		account2 string
		expected bool
	}{
		{"either empty passes", "", "301234567", true},
		{"identical", "301234567", "301234567", true},
		{"masked suffix matches", "xxxx4567", "301234567", true},
		{"suffix match reversed", "301234567", "4567", true},
		{"different suffixes", "111222333", "444555666", false},
		{"short digits equal", "12", "12", true},
		{"short digits differ", "12", "34", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := accountsCompatible(tt.account1, tt.account2); got != tt.expected {
				t.Errorf("accountsCompatible(%q, %q) = %v, want %v", tt.account1, tt.account2, got, tt.expected)
			}
		})
	}
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		str1     string
		str2     string
		expected float64
	}{
		{"identical", "coffee shop", "coffee shop", 1.0},
		{"empty side", "", "coffee", 0.0},
		{"no overlap", "woolworths sydney store", "plumber invoice", 0.0},
		{"partial overlap", "woolworths 123 sydney", "woolworths 999 sydney", 2.0 / 3.0},
		{"short words with containment", "ab", "ab cd", 0.6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Similarity(tt.str1, tt.str2); got != tt.expected {
				t.Errorf("Similarity(%q, %q) = %v, want %v", tt.str1, tt.str2, got, tt.expected)
			}
		})
	}
}

func TestMerge_EmptyBatch(t *testing.T) {
	existing := []domain.Transaction{
		{TransactionID: "tx_1", Description: "Coffee", Amount: -4.5, TransactionDate: "2024-01-01"},
	}

	merged, stats := Merge(existing, nil)
	if len(merged) != 1 {
		t.Fatalf("got %d transactions, want 1", len(merged))
	}
	if stats.Duplicates != 0 || stats.Unique != 0 || stats.Total != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestMerge_Idempotence(t *testing.T) {
	existing := []domain.Transaction{
		{TransactionID: "tx_1", Description: "Coffee Shop", Amount: -4.5, TransactionDate: "2024-01-01", AccountNumber: "301234567"},
	}
	batch := []domain.Transaction{
		{TransactionID: "tx_2", Description: "Salary Payment", Amount: 2000, TransactionDate: "2024-01-02", AccountNumber: "301234567"},
		{TransactionID: "tx_3", Description: "Rent Transfer", Amount: -800, TransactionDate: "2024-01-03", AccountNumber: "301234567"},
	}

	merged, stats := Merge(existing, batch)
	if stats.Unique != 2 || stats.Duplicates != 0 {
		t.Fatalf("first merge stats: %+v", stats)
	}
	if len(merged) != 3 {
		t.Fatalf("got %d transactions after first merge, want 3", len(merged))
	}

	again, stats2 := Merge(merged, batch)
	if stats2.Duplicates != len(batch) {
		t.Errorf("second merge duplicates = %d, want %d", stats2.Duplicates, len(batch))
	}
	if len(again) != len(merged) {
		t.Errorf("second merge changed length: %d -> %d", len(merged), len(again))
	}
}

func TestMerge_DoesNotMutateExisting(t *testing.T) {
	existing := []domain.Transaction{
		{TransactionID: "tx_1", Description: "Short", Amount: -4.5, TransactionDate: "2024-01-01"},
	}
	batch := []domain.Transaction{
		{TransactionID: "tx_2", Description: "Short and much longer now", Amount: -4.5, TransactionDate: "2024-01-01"},
	}

	_, _ = Merge(existing, batch)
	if existing[0].Description != "Short" {
		t.Error("Merge mutated the existing slice")
	}
}

func TestMerge_EnrichesDescription(t *testing.T) {
	existing := []domain.Transaction{
		{
			TransactionID:   "tx_1",
			Description:     "Transfer",
			UserDescription: "Transfer",
			Amount:          -50,
			TransactionDate: "2024-01-01",
		},
	}
	batch := []domain.Transaction{
		{
			TransactionID:   "tx_9",
			Description:     "Transfer to Holiday Fund NET# 99",
			Amount:          -50,
			TransactionDate: "2024-01-01",
		},
	}

	merged, stats := Merge(existing, batch)
	if stats.Duplicates != 1 {
		t.Fatalf("expected 1 duplicate, got stats: %+v", stats)
	}
	kept := merged[0]
	if kept.Description != "Transfer to Holiday Fund NET# 99" {
		t.Errorf("Description = %q, want the longer one", kept.Description)
	}
	if kept.UserDescription != "Transfer to Holiday Fund NET# 99" {
		t.Errorf("UserDescription = %q, want it to follow the description", kept.UserDescription)
	}
}

func TestMerge_PreservesCustomUserDescription(t *testing.T) {
	existing := []domain.Transaction{
		{
			TransactionID:   "tx_1",
			Description:     "Transfer",
			UserDescription: "Monthly rent",
			Amount:          -800,
			TransactionDate: "2024-01-01",
		},
	}
	batch := []domain.Transaction{
		{
			TransactionID:   "tx_9",
			Description:     "Transfer to Landlord Ref#77",
			Amount:          -800,
			TransactionDate: "2024-01-01",
		},
	}

	merged, _ := Merge(existing, batch)
	if merged[0].UserDescription != "Monthly rent" {
		t.Errorf("UserDescription = %q, want user edit preserved", merged[0].UserDescription)
	}
}

func TestMerge_UnmasksAccountNumber(t *testing.T) {
	tests := []struct {
		name     string
		oldAcc   string
		newAcc   string
		expected string
	}{
		{"unknown replaced by explicit", "unknown", "301234567", "301234567"},
		{"masked replaced by explicit", "xxxx4567", "301234567", "301234567"},
		{"explicit never downgraded", "301234567", "xxxx4567", "301234567"},
		{"explicit not replaced by explicit", "4567", "301234567", "4567"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			existing := []domain.Transaction{
				{Description: "Coffee", Amount: -4.5, TransactionDate: "2024-01-01", AccountNumber: tt.oldAcc},
			}
			batch := []domain.Transaction{
				{Description: "Coffee", Amount: -4.5, TransactionDate: "2024-01-01", AccountNumber: tt.newAcc},
			}

			merged, stats := Merge(existing, batch)
			if stats.Duplicates != 1 {
				t.Fatalf("expected duplicate, got stats: %+v", stats)
			}
			if merged[0].AccountNumber != tt.expected {
				t.Errorf("AccountNumber = %q, want %q", merged[0].AccountNumber, tt.expected)
			}
		})
	}
}

func TestMerge_FirstMatchWins(t *testing.T) {
	// Two existing rows would both match the incoming one; the earliest
	// must take the enrichment.
	existing := []domain.Transaction{
		{TransactionID: "tx_a", Description: "Coffee", Amount: -4.5, TransactionDate: "2024-01-01"},
		{TransactionID: "tx_b", Description: "Coffee", Amount: -4.5, TransactionDate: "2024-01-01"},
	}
	batch := []domain.Transaction{
		{TransactionID: "tx_c", Description: "Coffee Shop Sydney", Amount: -4.5, TransactionDate: "2024-01-01"},
	}

	merged, _ := Merge(existing, batch)
	if merged[0].Description != "Coffee Shop Sydney" {
		t.Errorf("first candidate not enriched: %q", merged[0].Description)
	}
	if merged[1].Description != "Coffee" {
		t.Errorf("second candidate should be untouched: %q", merged[1].Description)
	}
}
