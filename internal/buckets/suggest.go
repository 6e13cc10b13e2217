package buckets

import (
	"regexp"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/rumor-ml/commons.systems/bankbuckets/internal/domain"
)

// Suggestion is a candidate bucket derived from recurring description
// patterns. It carries enough context (examples, match count) for a user
// to decide whether to accept it.
type Suggestion struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Keywords   []string `json:"keywords"`
	MatchCount int      `json:"matchCount"`
	Examples   []string `json:"examples"`
	Suggested  bool     `json:"suggested"`
}

const (
	minOccurrences = 2
	maxKeywords    = 10
	maxExamples    = 3

	// Patterns within this edit distance are treated as the same bucket
	// candidate ("holiday" vs "holidays").
	foldDistance = 1
)

// patternRes capture the recurring shapes of bank transfer descriptions.
// The first capture group names the bucket candidate.
var patternRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)transfer\s+to\s+(\w+)`),
	regexp.MustCompile(`(?i)transfer\s+from\s+(\w+)`),
	regexp.MustCompile(`(?i)(\w+)\s+fund`),
	regexp.MustCompile(`(?i)(\w+)\s+buffer`),
	regexp.MustCompile(`(?i)(\w+)\s+savings`),
	regexp.MustCompile(`(?i)(\w+)\s+account`),
	regexp.MustCompile(`(?i)loan\s+(\w+)`),
	regexp.MustCompile(`(?i)(\w+)\s+repayment`),
	regexp.MustCompile(`(?i)(\w+)\s+payment`),
	regexp.MustCompile(`(?i)(\w+)\s+deposit`),
}

// stopWords never become a bucket candidate on their own.
var stopWords = map[string]bool{
	"transfer":   true,
	"payment":    true,
	"deposit":    true,
	"withdrawal": true,
}

type patternEntry struct {
	pattern  string
	keywords []string
	seen     map[string]bool
	count    int
	examples []string
}

func (e *patternEntry) addKeyword(kw string) {
	if !e.seen[kw] {
		e.seen[kw] = true
		e.keywords = append(e.keywords, kw)
	}
}

// Suggest analyses transactions for recurring description patterns and
// returns bucket candidates seen at least twice, most frequent first.
// Patterns that differ only by a single edit are folded together.
func Suggest(txs []domain.Transaction) []Suggestion {
	entries := make(map[string]*patternEntry)
	var order []string

	for i := range txs {
		descText := strings.ToLower(txs[i].MatchDescription())
		if descText == "" {
			continue
		}

		for _, pattern := range extractPatterns(descText) {
			entry, ok := entries[pattern]
			if !ok {
				entry = &patternEntry{pattern: pattern, seen: make(map[string]bool)}
				entries[pattern] = entry
				order = append(order, pattern)
			}

			entry.count++
			entry.addKeyword(pattern)
			for _, w := range strings.Fields(descText) {
				if len(w) > 3 {
					entry.addKeyword(w)
				}
			}
			if len(entry.examples) < maxExamples {
				entry.examples = append(entry.examples, txs[i].MatchDescription())
			}
		}
	}

	folded := foldEntries(entries, order)

	var suggestions []Suggestion
	for _, entry := range folded {
		if entry.count < minOccurrences {
			continue
		}
		kws := entry.keywords
		if len(kws) > maxKeywords {
			kws = kws[:maxKeywords]
		}
		suggestions = append(suggestions, Suggestion{
			ID:         NewRuntimeID(),
			Name:       bucketName(entry.pattern),
			Keywords:   kws,
			MatchCount: entry.count,
			Examples:   entry.examples,
			Suggested:  true,
		})
	}

	sort.SliceStable(suggestions, func(i, j int) bool {
		return suggestions[i].MatchCount > suggestions[j].MatchCount
	})
	return suggestions
}

// extractPatterns pulls bucket candidates out of a lowercased description.
// When no known shape matches, the first significant word stands in.
func extractPatterns(text string) []string {
	var patterns []string
	for _, re := range patternRes {
		if m := re.FindStringSubmatch(text); m != nil && m[1] != "" {
			patterns = append(patterns, strings.ToLower(m[1]))
		}
	}
	if len(patterns) > 0 {
		return patterns
	}

	for _, w := range strings.Fields(text) {
		if len(w) > 3 && !stopWords[w] {
			return []string{w}
		}
	}
	return nil
}

// foldEntries merges pattern entries whose keys are within foldDistance of
// an already-kept entry. Entries are considered in frequency order so the
// more common spelling wins the name.
func foldEntries(entries map[string]*patternEntry, order []string) []*patternEntry {
	sorted := make([]string, len(order))
	copy(sorted, order)
	sort.SliceStable(sorted, func(i, j int) bool {
		return entries[sorted[i]].count > entries[sorted[j]].count
	})

	var kept []*patternEntry
	for _, pattern := range sorted {
		entry := entries[pattern]

		var target *patternEntry
		for _, k := range kept {
			if levenshtein.ComputeDistance(k.pattern, pattern) <= foldDistance {
				target = k
				break
			}
		}
		if target == nil {
			kept = append(kept, entry)
			continue
		}

		target.count += entry.count
		for _, kw := range entry.keywords {
			target.addKeyword(kw)
		}
		for _, ex := range entry.examples {
			if len(target.examples) >= maxExamples {
				break
			}
			target.examples = append(target.examples, ex)
		}
	}
	return kept
}

// bucketName turns a lowercased pattern into a display name.
func bucketName(pattern string) string {
	if pattern == "" {
		return "Fund"
	}
	return strings.ToUpper(pattern[:1]) + pattern[1:] + " Fund"
}

// Accept converts a suggestion into a bucket scoped to the given account.
// Buckets are account-scoped, so the caller names the account the new
// bucket belongs to; domain.UnknownAccount is valid for transactions whose
// source never reported one.
func (s Suggestion) Accept(accountNumber string) (*domain.Bucket, error) {
	return domain.NewBucket(s.ID, s.Name, accountNumber, s.Keywords)
}
