package buckets

import (
	"strings"

	"github.com/rumor-ml/commons.systems/bankbuckets/internal/domain"
)

// AutoAssign fills the classification map for unclassified transactions
// whose description contains a keyword of a bucket on the same account.
// Existing entries are never overwritten; the first matching bucket in
// slice order wins. Returns the number of assignments made.
//
// Unlike keyword-mode balance matching this compares the parsed
// description before any user override, and only considers buckets whose
// account matches the transaction's.
func AutoAssign(txs []domain.Transaction, bkts []domain.Bucket, classifications map[string]string) int {
	assigned := 0
	for i := range txs {
		tx := &txs[i]
		if classifications[tx.TransactionID] != "" {
			continue
		}
		desc := strings.ToLower(tx.PrimaryDescription())
		if desc == "" {
			continue
		}
		account := tx.EffectiveAccountNumber()

		for _, b := range bkts {
			if b.AccountNumber != account {
				continue
			}
			if keywordMatches(desc, b.Keywords) {
				classifications[tx.TransactionID] = b.ID
				assigned++
				break
			}
		}
	}
	return assigned
}

func keywordMatches(desc string, keywords []string) bool {
	for _, kw := range keywords {
		kw = strings.TrimSpace(strings.ToLower(kw))
		if kw == "" {
			continue
		}
		if strings.Contains(desc, kw) {
			return true
		}
	}
	return false
}

// Remove deletes the bucket with the given id and cascades to the
// classification map, dropping entries that pointed at it. Returns the
// filtered bucket slice.
func Remove(bkts []domain.Bucket, classifications map[string]string, id string) []domain.Bucket {
	out := bkts[:0:0]
	for _, b := range bkts {
		if b.ID != id {
			out = append(out, b)
		}
	}
	for txID, bucketID := range classifications {
		if bucketID == id {
			delete(classifications, txID)
		}
	}
	return out
}
