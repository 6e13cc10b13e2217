package dedup

import (
	"strings"

	"github.com/rumor-ml/commons.systems/bankbuckets/internal/domain"
)

// Stats summarizes one merge pass.
type Stats struct {
	Existing   int `json:"existing"`
	New        int `json:"new"`
	Unique     int `json:"unique"`
	Duplicates int `json:"duplicates"`
	Total      int `json:"total"`
}

// Merge folds a batch of incoming transactions into the existing set.
// The existing set is cloned, never mutated. Each incoming transaction is
// compared against the working set in order and the first duplicate match
// wins; non-duplicates are appended, so a batch can match transactions
// appended earlier in the same pass.
//
// A matched pair is enriched in place rather than dropped outright:
// the longer description wins, and an explicit account number replaces a
// masked or unknown one. This is how a bank export upgrades the skeletal
// rows a PDF import produced.
func Merge(existing, incoming []domain.Transaction) ([]domain.Transaction, Stats) {
	merged := make([]domain.Transaction, len(existing))
	copy(merged, existing)

	stats := Stats{
		Existing: len(existing),
		New:      len(incoming),
	}

	for i := range incoming {
		newTx := &incoming[i]

		matchIndex := -1
		for j := range merged {
			if AreDuplicates(newTx, &merged[j]) {
				matchIndex = j
				break
			}
		}

		if matchIndex >= 0 {
			stats.Duplicates++
			enrich(&merged[matchIndex], newTx)
		} else {
			merged = append(merged, *newTx)
			stats.Unique++
		}
	}

	stats.Total = len(merged)
	return merged, stats
}

// enrich copies better data from a duplicate onto the kept transaction.
func enrich(kept *domain.Transaction, dup *domain.Transaction) {
	oldDesc := kept.Description
	if len(dup.Description) > len(oldDesc) {
		kept.Description = dup.Description
		// Follow the user description along unless the user already
		// customized it.
		if kept.UserDescription == oldDesc || kept.UserDescription == "" {
			kept.UserDescription = dup.Description
		}
	}

	if isMaskedAccount(kept.AccountNumber) && isExplicitAccount(dup.AccountNumber) {
		kept.AccountNumber = dup.AccountNumber
	}
}

// isMaskedAccount reports an absent, unknown, or partially redacted account
// number (masked exports use "x" placeholders, e.g. "xxxx4567").
func isMaskedAccount(account string) bool {
	return account == "" ||
		account == domain.UnknownAccount ||
		strings.Contains(strings.ToLower(account), "x")
}

func isExplicitAccount(account string) bool {
	return account != "" && !strings.Contains(strings.ToLower(account), "x")
}
