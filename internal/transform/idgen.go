// Package transform provides deterministic identifier generation and the
// description-based enrichment applied to parsed transactions.
package transform

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf16"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// TransactionID creates a deterministic transaction ID from the fields that
// identify a row. Identical inputs always yield the same ID; distinct rows
// that share all four fields collide, which is accepted (such rows would be
// indistinguishable anyway).
//
// The hash is a 32-bit polynomial rolling hash over the joined string
// "{date}-{description}-{amount}-{account}", formatted as "tx_{abs(hash)}".
func TransactionID(date, description string, amount float64, accountNumber string) string {
	return HashID(fmt.Sprintf("%s-%s-%s-%s", date, description, FormatAmount(amount), accountNumber))
}

// HashID hashes an arbitrary key string into the "tx_{abs(hash)}" form.
// The hash is computed over UTF-16 code units with 32-bit wraparound so IDs
// stay stable against historical data.
func HashID(str string) string {
	var hash int32
	for _, c := range utf16.Encode([]rune(str)) {
		hash = (hash << 5) - hash + int32(c)
	}
	// Widen before negating so the minimum int32 does not overflow.
	abs := int64(hash)
	if abs < 0 {
		abs = -abs
	}
	return fmt.Sprintf("tx_%d", abs)
}

// FormatAmount renders an amount with the shortest decimal representation
// that round-trips, so 25.5 stays "25.5" and 100 stays "100". Used inside
// transaction IDs, where the textual form must be stable.
func FormatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// InferTransactionType classifies a transaction from description keywords.
// First match wins; unrecognized descriptions are "other".
func InferTransactionType(description string) string {
	desc := strings.ToLower(description)
	switch {
	case strings.Contains(desc, "transfer"):
		return "transfer"
	case strings.Contains(desc, "direct debit"):
		return "direct_debit"
	case strings.Contains(desc, "bpay"):
		return "bpay"
	case strings.Contains(desc, "payto"):
		return "payto"
	case strings.Contains(desc, "interest"):
		return "interest"
	default:
		return "other"
	}
}

var (
	directDebitRe = regexp.MustCompile(`(?i)Direct Debit\s+([^-]+)`)
	paytoRe       = regexp.MustCompile(`(?i)PayTo:\s+([^R]+)`)
	bpayRe        = regexp.MustCompile(`(?i)Bpay\s+[^\s]+\s+to\s+([^\d]+)`)
)

// ExtractMerchantName pulls the merchant or payee out of the structured
// description formats some banks use. Falls back to the full description.
func ExtractMerchantName(description string) string {
	if m := directDebitRe.FindStringSubmatch(description); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := paytoRe.FindStringSubmatch(description); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := bpayRe.FindStringSubmatch(description); m != nil {
		return strings.TrimSpace(m[1])
	}
	return description
}

// SlugifyName converts a display name to a URL-safe slug, used for
// deterministic bucket IDs loaded from config files.
// Examples: "Holiday Fund" → "holiday-fund", "Café" → "cafe"
func SlugifyName(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("name cannot be empty")
	}

	// Normalize unicode (e.g., accented characters)
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	normalized, _, err := transform.String(t, name)
	if err != nil {
		return "", fmt.Errorf("failed to normalize name %q: %w", name, err)
	}

	if normalized == "" {
		return "", fmt.Errorf("name %q contains only non-displayable unicode characters", name)
	}

	slug := strings.ToLower(normalized)

	reg := regexp.MustCompile(`[^a-z0-9]+`)
	slug = reg.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")

	if slug == "" {
		return "", fmt.Errorf("name %q contains no alphanumeric characters", name)
	}

	return slug, nil
}
