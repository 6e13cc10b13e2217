// Package csv provides CSV statement parsing for bankbuckets.
//
// Two dialects are supported and auto-detected from the header row: the
// bank-direct export produced by Qudos Bank internet banking, and the
// aggregator export produced by Frollo with one column per Transaction
// field.
package csv

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/rumor-ml/commons.systems/bankbuckets/internal/domain"
	"github.com/rumor-ml/commons.systems/bankbuckets/internal/parser"
	"github.com/rumor-ml/commons.systems/bankbuckets/internal/transform"
)

// Dialect identifiers returned by detectDialect.
const (
	dialectQudos  = "qudos_bank"
	dialectFrollo = "frollo"
)

// qudosHeaders are the header fragments scored during dialect detection.
// Fragments are compared with their first underscore removed because the
// bank export writes headers like "EffectiveDate" without separators.
var qudosHeaders = []string{"effective_date", "entered_date", "transaction_description", "amount", "balance"}

// frolloRequired are the columns the aggregator dialect cannot work without.
var frolloRequired = []string{"amount", "transaction_date", "account_number", "account_name"}

// Parser implements CSV statement parsing with a stateless design.
// The struct has no fields because CSV parsing requires no configuration
// state. Each method operates solely on the input data provided, making the
// parser safe for concurrent use without locking.
type Parser struct{}

var parserInstance = &Parser{}

// NewParser returns the shared CSV parser instance.
// Safe for concurrent use due to stateless design.
func NewParser() *Parser {
	return parserInstance
}

// Name returns the parser identifier
func (p *Parser) Name() string {
	return "csv"
}

// CanParse checks if this parser can handle the file based on extension and header
func (p *Parser) CanParse(path string, header []byte) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".csv" {
		return false
	}
	// PDF or OFX content saved with a .csv extension is not ours.
	head := strings.TrimSpace(string(header))
	if strings.HasPrefix(head, "%PDF") || strings.HasPrefix(head, "<OFX") || strings.HasPrefix(head, "OFXHEADER") {
		return false
	}
	return true
}

// Parse extracts transactions from a CSV statement. The dialect is detected
// from the header row; rows with unparseable amounts or dates are skipped
// rather than failing the file.
func (p *Parser) Parse(ctx context.Context, r io.Reader, meta *parser.Metadata) (*parser.Result, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV content from %s: %w", meta.FilePath(), err)
	}

	lines := splitLines(string(data))
	if len(lines) < 2 {
		return nil, &parser.ParseError{
			File:   meta.SourceFile(),
			Reason: "CSV file must contain at least a header row and one data row",
		}
	}

	headers := normalizeHeaders(tokenizeLine(lines[0]))
	dialect := detectDialect(headers)

	result := &parser.Result{}
	result.Trace.Notef("detected CSV dialect: %s", dialect)
	result.Trace.Sections = 1

	switch dialect {
	case dialectQudos:
		err = p.parseQudos(lines, headers, meta, result)
	default:
		err = p.parseFrollo(lines, headers, meta, result)
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// detectDialect scores the normalized headers against both dialects.
// Three or more bank-export header fragments select the bank dialect; an
// account_number column selects the aggregator dialect; entered/description
// headers catch bank exports with sparse headers; aggregator is the default.
func detectDialect(headers []string) string {
	matches := 0
	for _, want := range qudosHeaders {
		fragment := strings.Replace(want, "_", "", 1)
		for _, h := range headers {
			if strings.Contains(h, fragment) {
				matches++
				break
			}
		}
	}
	if matches >= 3 {
		return dialectQudos
	}

	for _, h := range headers {
		if strings.Contains(h, "account_number") {
			return dialectFrollo
		}
	}
	for _, h := range headers {
		if strings.Contains(h, "entered") || strings.Contains(h, "transaction_description") {
			return dialectQudos
		}
	}
	return dialectFrollo
}

var (
	statementFileRe = regexp.MustCompile(`(?i)Statement_(\d{8,10})_`)
	accountDigitsRe = regexp.MustCompile(`(\d{8,10})`)
)

// accountFromFilename recovers the account number encoded in bank export
// filenames like "Statement_301234567_01.02.24-29.02.24.csv". Returns empty
// when the filename carries no 8 to 10 digit run.
func accountFromFilename(filename string) string {
	if filename == "" {
		return ""
	}
	if m := statementFileRe.FindStringSubmatch(filename); m != nil {
		return m[1]
	}
	if m := accountDigitsRe.FindStringSubmatch(filename); m != nil {
		return m[1]
	}
	return ""
}

// parseQudos handles the bank-direct dialect: day-first dates, currency
// symbols in amounts, a running balance column, and no account column. The
// account number comes from caller metadata or the filename.
func (p *Parser) parseQudos(lines, headers []string, meta *parser.Metadata, result *parser.Result) error {
	accountNumber := meta.AccountNumber()
	if accountNumber == "" {
		accountNumber = accountFromFilename(meta.SourceFile())
	}
	if accountNumber == "" {
		accountNumber = domain.UnknownAccount
	}
	accountName := fmt.Sprintf("Account %s", accountNumber)
	result.Trace.Accounts = append(result.Trace.Accounts, accountNumber)

	enteredIdx := findHeader(headers, "entered")
	effectiveIdx := findHeader(headers, "effective")
	descriptionIdx := findHeader(headers, "description")
	amountIdx := indexOf(headers, "amount")
	balanceIdx := indexOf(headers, "balance")

	for _, line := range lines[1:] {
		if strings.TrimSpace(line) == "" {
			continue
		}
		result.Trace.Transactions++
		values := tokenizeLine(line)

		// Prefer the entered date: it is when the money moved, the
		// effective date is when the bank settled it.
		dateStr := fieldAt(values, enteredIdx)
		if dateStr == "" {
			dateStr = fieldAt(values, effectiveIdx)
		}
		description := strings.TrimSpace(fieldAt(values, descriptionIdx))

		amount, amountOK := parseAmount(fieldAt(values, amountIdx))
		txDate := parseDateDayFirst(dateStr)
		if !amountOK || txDate == "" {
			result.Trace.Skipped++
			continue
		}

		creditDebit := domain.Credit
		if amount < 0 {
			creditDebit = domain.Debit
		}

		tx := domain.Transaction{
			TransactionID:   transform.TransactionID(txDate, description, amount, accountNumber),
			Description:     description,
			UserDescription: description,
			Amount:          amount,
			Currency:        domain.DefaultCurrency,
			TransactionDate: txDate,
			PostedDate:      txDate,
			AccountNumber:   accountNumber,
			AccountName:     accountName,
			CreditDebit:     creditDebit,
			TransactionType: transform.InferTransactionType(description),
			ProviderName:    "Qudos Bank",
			MerchantName:    transform.ExtractMerchantName(description),
			Included:        true,
			Source:          domain.SourceCSV,
			SourceFile:      meta.SourceFile(),
		}
		if balance, ok := parseAmount(fieldAt(values, balanceIdx)); ok {
			tx.Balance = &balance
		}
		result.Transactions = append(result.Transactions, tx)
	}
	return nil
}

// parseFrollo handles the aggregator dialect: one column per Transaction
// field with light type coercion. Missing required columns fail the file.
func (p *Parser) parseFrollo(lines, headers []string, meta *parser.Metadata, result *parser.Result) error {
	var missing []string
	for _, want := range frolloRequired {
		found := false
		for _, h := range headers {
			if strings.Contains(h, want) {
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, want)
		}
	}
	if len(missing) > 0 {
		return &parser.ParseError{File: meta.SourceFile(), Missing: missing}
	}

	for _, line := range lines[1:] {
		if strings.TrimSpace(line) == "" {
			continue
		}
		result.Trace.Transactions++
		values := tokenizeLine(line)

		tx := domain.Transaction{
			Included: true,
			Source:   domain.SourceCSV,
		}
		amountOK := false

		for i, header := range headers {
			value := strings.TrimSpace(fieldAt(values, i))
			switch header {
			case "transaction_id":
				tx.TransactionID = value
			case "description":
				tx.Description = value
			case "user_description":
				tx.UserDescription = value
			case "amount":
				tx.Amount, amountOK = parseAmount(value)
			case "currency":
				tx.Currency = value
			case "transaction_date":
				tx.TransactionDate = parseDateFlexible(value)
			case "posted_date":
				tx.PostedDate = parseDateFlexible(value)
			case "account_number":
				tx.AccountNumber = value
			case "account_name":
				tx.AccountName = value
			case "credit_debit":
				tx.CreditDebit = domain.CreditDebit(strings.ToLower(value))
			case "transaction_type":
				tx.TransactionType = value
			case "provider_name":
				tx.ProviderName = value
			case "merchant_name":
				tx.MerchantName = value
			case "budget_category":
				tx.BudgetCategory = value
			case "category_name":
				tx.CategoryName = value
			case "user_tags":
				tx.UserTags = value
			case "notes":
				tx.Notes = value
			case "included":
				lower := strings.ToLower(value)
				tx.Included = lower == "true" || value == "1"
			}
		}

		if !amountOK || tx.TransactionDate == "" {
			result.Trace.Skipped++
			continue
		}
		if tx.TransactionID == "" {
			tx.TransactionID = transform.TransactionID(tx.TransactionDate, tx.Description, tx.Amount, tx.AccountNumber)
		}
		tx.SourceFile = meta.SourceFile()
		if !containsString(result.Trace.Accounts, tx.AccountNumber) && tx.AccountNumber != "" {
			result.Trace.Accounts = append(result.Trace.Accounts, tx.AccountNumber)
		}
		result.Transactions = append(result.Transactions, tx)
	}
	return nil
}

// tokenizeLine splits a single CSV line, handling quoted fields, escaped
// quotes ("") and commas inside quotes. Hand rolled rather than
// encoding/csv because rows are processed line by line: a malformed row is
// skipped without poisoning the rest of the file.
func tokenizeLine(line string) []string {
	var values []string
	var current strings.Builder
	inQuotes := false

	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case c == '"':
			if inQuotes && i+1 < len(line) && line[i+1] == '"' {
				current.WriteByte('"')
				i++
			} else {
				inQuotes = !inQuotes
			}
		case c == ',' && !inQuotes:
			values = append(values, current.String())
			current.Reset()
		default:
			current.WriteByte(c)
		}
	}
	values = append(values, current.String())
	return values
}

// splitLines breaks the file into lines, tolerating CRLF endings and
// trimming outer whitespace from the whole document first.
func splitLines(text string) []string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}

// normalizeHeaders lowercases headers and joins words with underscores so
// "Entered Date" and "entered_date" compare equal.
func normalizeHeaders(raw []string) []string {
	normalized := make([]string, len(raw))
	for i, h := range raw {
		h = strings.ToLower(strings.TrimSpace(h))
		normalized[i] = strings.Join(strings.Fields(h), "_")
	}
	return normalized
}

var nonAmountRe = regexp.MustCompile(`[^\d.]`)

// parseAmount converts amount strings like "$1,234.56", "-$1,234.56" and
// "1234.56" to a float. The sign is detected before stripping symbols so
// "-$5.00" stays negative. Returns false for empty or non-numeric input.
func parseAmount(value string) (float64, bool) {
	if value == "" {
		return 0, false
	}
	negative := strings.Contains(value, "-")
	cleaned := nonAmountRe.ReplaceAllString(value, "")
	num, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	if negative {
		num = -num
	}
	return num, true
}

var dayFirstRe = regexp.MustCompile(`(\d{1,2})/(\d{1,2})/(\d{4})`)

// parseDateDayFirst converts DD/MM/YYYY (anywhere in the value) to ISO
// YYYY-MM-DD. Returns empty when no match.
func parseDateDayFirst(value string) string {
	m := dayFirstRe.FindStringSubmatch(value)
	if m == nil {
		return ""
	}
	return fmt.Sprintf("%s-%s-%s", m[3], pad2(m[2]), pad2(m[1]))
}

// pad2 left-pads a one-digit day or month with a zero.
func pad2(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}

// parseDateFlexible tries the day-first form then the generic layouts.
// Returns empty when nothing parses.
func parseDateFlexible(value string) string {
	if iso := parseDateDayFirst(value); iso != "" {
		return iso
	}
	if d, ok := domain.ParseDate(value); ok {
		return d.Format("2006-01-02")
	}
	return ""
}

// findHeader returns the index of the first header containing the fragment,
// or -1.
func findHeader(headers []string, fragment string) int {
	for i, h := range headers {
		if strings.Contains(h, fragment) {
			return i
		}
	}
	return -1
}

// indexOf returns the index of the exact header, or -1.
func indexOf(headers []string, want string) int {
	for i, h := range headers {
		if h == want {
			return i
		}
	}
	return -1
}

// fieldAt returns values[idx], tolerating short rows and -1 indices.
func fieldAt(values []string, idx int) string {
	if idx < 0 || idx >= len(values) {
		return ""
	}
	return values[idx]
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
