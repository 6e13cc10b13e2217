// Package buckets classifies transactions into user-defined buckets by
// keyword matching, loads bucket definitions from YAML, and suggests new
// buckets from recurring description patterns.
package buckets

import (
	"strings"

	"github.com/rumor-ml/commons.systems/bankbuckets/internal/domain"
)

// FindMatching returns every bucket whose keywords appear in the
// transaction's description. The user-edited description takes precedence
// over the statement description; a transaction with neither matches
// nothing. Keywords are compared lowercased as substrings, so a single
// transaction can land in several buckets.
func FindMatching(tx *domain.Transaction, all []domain.Bucket) []*domain.Bucket {
	desc := strings.ToLower(tx.MatchDescription())
	if desc == "" {
		return nil
	}

	var matched []*domain.Bucket
	for i := range all {
		for _, kw := range all[i].Keywords {
			kw = strings.ToLower(kw)
			if kw != "" && strings.Contains(desc, kw) {
				matched = append(matched, &all[i])
				break
			}
		}
	}
	return matched
}

// MatchesAny reports whether the transaction lands in at least one bucket.
func MatchesAny(tx *domain.Transaction, all []domain.Bucket) bool {
	return len(FindMatching(tx, all)) > 0
}
