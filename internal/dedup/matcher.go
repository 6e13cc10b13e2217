// Package dedup detects duplicate transactions across statement imports and
// merges incoming batches against the persisted set.
//
// The same money movement often arrives twice: once from a bank CSV export
// and once from an aggregator export or a PDF statement, with differing
// descriptions, masked account numbers and settlement-shifted dates. The
// matcher is therefore deliberately fuzzy, a ladder of checks from strongest
// evidence (shared reference token) to weakest (word-overlap similarity).
package dedup

import (
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/rumor-ml/commons.systems/bankbuckets/internal/domain"
)

const (
	// refAmountTolerance is the amount slack allowed when a reference
	// token already ties two transactions together.
	refAmountTolerance = 0.05
	// amountTolerance absorbs float rounding between export formats.
	amountTolerance = 0.01
	// maxDateDriftDays allows settlement-date shift between sources.
	maxDateDriftDays = 1.0
	// minSimilarity is the word-overlap score below which descriptions
	// are considered unrelated.
	minSimilarity = 0.5
)

var refIDRe = regexp.MustCompile(`(?i)(?:NET|APP|Ref)[#.]\s*(\d+)`)

// ExtractRefID pulls a bank reference token (NET#123, APP#123, Ref#123,
// Ref.123) out of a description. Returns the normalized token, or empty when
// none is present. Matching tokens are the strongest duplicate evidence.
func ExtractRefID(description string) string {
	m := refIDRe.FindString(description)
	if m == "" {
		return ""
	}
	return strings.Join(strings.Fields(strings.ToUpper(m)), "")
}

// AreDuplicates reports whether two transactions describe the same money
// movement. The ladder:
//
//  1. Shared reference token with amounts within 0.05: duplicate.
//  2. Amount magnitudes differing by more than 0.01: distinct.
//  3. Effective dates more than one day apart: distinct.
//  4. Incompatible account numbers (suffix comparison for masked forms):
//     distinct.
//  5. Description containment or word-overlap similarity >= 0.5: duplicate.
//
// The check is symmetric on the reference-token path; later rungs compare
// normalized values so order of arguments does not change the outcome.
func AreDuplicates(tx1, tx2 *domain.Transaction) bool {
	ref1 := ExtractRefID(tx1.PrimaryDescription())
	ref2 := ExtractRefID(tx2.PrimaryDescription())
	if ref1 != "" && ref2 != "" && ref1 == ref2 {
		if math.Abs(math.Abs(tx1.Amount)-math.Abs(tx2.Amount)) < refAmountTolerance {
			return true
		}
	}

	if math.Abs(math.Abs(tx1.Amount)-math.Abs(tx2.Amount)) > amountTolerance {
		return false
	}

	date1 := normalizeDate(tx1)
	date2 := normalizeDate(tx2)
	if math.Abs(date1.Sub(date2).Hours())/24 > maxDateDriftDays {
		return false
	}

	if !accountsCompatible(tx1.AccountNumber, tx2.AccountNumber) {
		return false
	}

	desc1 := strings.TrimSpace(strings.ToLower(tx1.PrimaryDescription()))
	desc2 := strings.TrimSpace(strings.ToLower(tx2.PrimaryDescription()))
	if desc1 != "" && desc2 != "" {
		if strings.Contains(desc1, desc2) || strings.Contains(desc2, desc1) {
			return true
		}
		if Similarity(desc1, desc2) < minSimilarity {
			return false
		}
	}

	return true
}

// normalizeDate resolves the comparison date: transaction date, then posted
// date, then the epoch so two undated transactions still compare equal.
func normalizeDate(tx *domain.Transaction) time.Time {
	return tx.EffectiveDate()
}

var nonDigitRe = regexp.MustCompile(`\D`)

// accountsCompatible decides whether two account numbers could refer to the
// same account. Masked exports truncate or star out leading digits, so when
// both sides have at least three digits the comparison is by suffix in
// either direction. Short suffixes can collide across unrelated accounts;
// that looseness is retained deliberately, tightening it would stop masked
// exports from merging.
func accountsCompatible(account1, account2 string) bool {
	account1 = strings.TrimSpace(account1)
	account2 = strings.TrimSpace(account2)
	if account1 == "" || account2 == "" {
		return true
	}

	clean1 := nonDigitRe.ReplaceAllString(account1, "")
	clean2 := nonDigitRe.ReplaceAllString(account2, "")

	if len(clean1) >= 3 && len(clean2) >= 3 {
		return strings.HasSuffix(clean1, clean2) || strings.HasSuffix(clean2, clean1)
	}
	return clean1 == clean2 || account1 == account2
}

// Similarity scores two lowercased descriptions by word overlap: the share
// of significant words (longer than two characters) in one that have a
// substring relation to some word in the other, over the larger word count.
// When either side has no significant words, containment alone scores 0.6.
func Similarity(str1, str2 string) float64 {
	if str1 == str2 {
		return 1.0
	}
	if str1 == "" || str2 == "" {
		return 0.0
	}

	words1 := significantWords(str1)
	words2 := significantWords(str2)

	if len(words1) == 0 || len(words2) == 0 {
		if strings.Contains(str1, str2) || strings.Contains(str2, str1) {
			return 0.6
		}
		return 0.0
	}

	matches := 0
	for _, w1 := range words1 {
		for _, w2 := range words2 {
			if strings.Contains(w1, w2) || strings.Contains(w2, w1) {
				matches++
				break
			}
		}
	}

	larger := len(words1)
	if len(words2) > larger {
		larger = len(words2)
	}
	return float64(matches) / float64(larger)
}

func significantWords(s string) []string {
	var words []string
	for _, w := range strings.Fields(s) {
		if len(w) > 2 {
			words = append(words, w)
		}
	}
	return words
}
