// Package pdftext parses bank statement text extracted from PDF files.
//
// Text extraction itself is an upstream concern: this parser consumes the
// per-line text a PDF extractor produces (lines approximated from glyph
// positions) and applies layered heuristics over it. The structured pass
// locates an account summary, splits the document into per-account sections
// and walks each section's transaction table. If that yields nothing, an
// aggressive whole-document line scan runs as a fallback. A zero-transaction
// result is valid output, not an error; the trace shows which stage went
// quiet.
package pdftext

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rumor-ml/commons.systems/bankbuckets/internal/domain"
	"github.com/rumor-ml/commons.systems/bankbuckets/internal/parser"
	"github.com/rumor-ml/commons.systems/bankbuckets/internal/transform"
)

// Parser implements statement-text parsing with a stateless design, safe for
// concurrent use.
type Parser struct{}

var parserInstance = &Parser{}

// NewParser returns the shared statement-text parser instance.
func NewParser() *Parser {
	return parserInstance
}

// Name returns the parser identifier
func (p *Parser) Name() string {
	return "pdf-text"
}

var (
	summaryStartRe = regexp.MustCompile(`(?i)account\s+summary`)
	summaryEndRe   = regexp.MustCompile(`(?i)posting\s+effective`)
	summaryLineRe  = regexp.MustCompile(`([A-Z]{2,3})\s*\|?\s*(\d{8,10})\s*\|?\s*([^|]+?)(?:\s*\|?\s*\$[\d,]+\.\d{2})?$`)

	accountLabelRe  = regexp.MustCompile(`(?i)AC No:|Account No\.|Account Number`)
	inlineAccountRe = regexp.MustCompile(`(?i)AC No:\s*(\d{8,10})`)

	tableHeaderPipeRe = regexp.MustCompile(`(?i)date\s*\|.*balance`)
	tableHeaderWideRe = regexp.MustCompile(`(?i)date\s+.*(?:description|details|transaction)\s+.*(debit|credit|amount|withdrawal|deposit)`)
	pageFooterRe      = regexp.MustCompile(`(?i)^page\s+\d+\s+of\s+\d+$`)
	pageRefRe         = regexp.MustCompile(`(?i)page\s+\d+`)

	dateStartRe = regexp.MustCompile(`^(\d{1,2}[/\-.]\d{1,2}[/\-.]\d{2,4}|\d{1,2}\s+[a-zA-Z]{3})`)
	amountRe    = regexp.MustCompile(`-?\$?([\d,]+\.\d{2})`)
	amountAnyRe = regexp.MustCompile(`-?\$?[\d,]+\.\d{2}`)

	trailingAmountRe = regexp.MustCompile(`\|?\s*-?\$?[\d,]+\.\d{2}.*$`)

	yearBeginsRe  = regexp.MustCompile(`(?i)statement\s+begins\s+.*?(\d{4})`)
	yearPeriodRe  = regexp.MustCompile(`(?i)period\s+.*?(\d{4})`)
	yearDateRe    = regexp.MustCompile(`(?i)date\s+.*?(\d{4})`)
	yearGenericRe = regexp.MustCompile(`\b(20\d{2})\b`)

	slashDateRe = regexp.MustCompile(`(\d{1,2})[/\-.](\d{1,2})[/\-.](\d{2,4})`)
	monDateRe   = regexp.MustCompile(`(\d{1,2})\s+([a-zA-Z]{3})`)
)

// CanParse accepts pre-extracted statement text: .txt files whose content
// shows statement structure (an account label or a dated line with an
// amount). Raw .pdf binaries are rejected, text extraction happens upstream.
func (p *Parser) CanParse(path string, header []byte) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".txt" {
		return false
	}
	head := string(header)
	if summaryStartRe.MatchString(head) || accountLabelRe.MatchString(head) {
		return true
	}
	for _, line := range strings.Split(head, "\n") {
		if dateStartRe.MatchString(line) && amountAnyRe.MatchString(line) {
			return true
		}
	}
	return false
}

// summaryAccount is an account learned from the statement's summary block.
type summaryAccount struct {
	accType string
	number  string
	name    string
}

// section is a per-account slice of the document.
type section struct {
	text          string
	accountNumber string
	accountName   string
}

// Parse runs the layered heuristics over the extracted statement text.
func (p *Parser) Parse(ctx context.Context, r io.Reader, meta *parser.Metadata) (*parser.Result, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read statement text from %s: %w", meta.FilePath(), err)
	}
	text := string(data)

	result := &parser.Result{}

	accounts := extractAccountsFromSummary(text)
	for _, acc := range accounts {
		result.Trace.Accounts = append(result.Trace.Accounts, acc.number)
	}
	result.Trace.Notef("summary accounts found: %d", len(accounts))

	sections := splitIntoAccountSections(text, accounts)
	result.Trace.Sections = len(sections)

	var transactions []domain.Transaction
	for _, sec := range sections {
		transactions = append(transactions, p.parseAccountSection(sec, meta)...)
	}

	if len(transactions) == 0 {
		result.Trace.Notef("section parse yielded nothing, running aggressive line scan")
		fallbackAccount := meta.AccountNumber()
		if fallbackAccount == "" && len(accounts) > 0 {
			fallbackAccount = accounts[0].number
		}
		transactions = p.aggressiveLineScan(text, fallbackAccount, meta)
	}

	// Every dated candidate line becomes a transaction here; lines that
	// fail the date or amount gates never become candidates, so the
	// candidate count equals the parsed count and nothing is skipped.
	result.Trace.Transactions = len(transactions)
	result.Transactions = transactions
	return result, nil
}

// extractAccountsFromSummary walks the "Account Summary" block, collecting
// account type, number and name from each row until the transaction listing
// header appears.
func extractAccountsFromSummary(text string) []summaryAccount {
	var accounts []summaryAccount
	inSummary := false

	for _, line := range strings.Split(text, "\n") {
		if summaryStartRe.MatchString(line) {
			inSummary = true
			continue
		}
		if !inSummary {
			continue
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		if summaryEndRe.MatchString(line) {
			break
		}
		if m := summaryLineRe.FindStringSubmatch(line); m != nil {
			accounts = append(accounts, summaryAccount{
				accType: m[1],
				number:  m[2],
				name:    strings.TrimSpace(m[3]),
			})
		}
	}
	return accounts
}

// splitIntoAccountSections cuts the document at lines that name a known
// account number next to an account label. Without known accounts, any
// "AC No: <digits>" line starts a section.
func splitIntoAccountSections(text string, known []summaryAccount) []section {
	var sections []section
	current := section{}

	for _, line := range strings.Split(text, "\n") {
		var found *summaryAccount
		for i := range known {
			if strings.Contains(line, known[i].number) && accountLabelRe.MatchString(line) {
				found = &known[i]
				break
			}
		}
		if found == nil && len(known) == 0 {
			if m := inlineAccountRe.FindStringSubmatch(line); m != nil {
				found = &summaryAccount{number: m[1], name: "Account " + m[1]}
			}
		}

		if found != nil {
			if current.text != "" && current.accountNumber != "" {
				sections = append(sections, current)
			}
			current = section{
				text:          line + "\n",
				accountNumber: found.number,
				accountName:   found.name,
			}
		} else {
			current.text += line + "\n"
		}
	}

	if current.text != "" && current.accountNumber != "" {
		sections = append(sections, current)
	}
	return sections
}

// statementYear recovers the year transactions belong to, since table rows
// often carry day and month only. Explicit period phrasing in the section
// header wins, then any plausible 20xx year, then the current year.
func statementYear(sectionText string, now time.Time) int {
	header := sectionText
	if len(header) > 1000 {
		header = header[:1000]
	}
	for _, re := range []*regexp.Regexp{yearBeginsRe, yearPeriodRe, yearDateRe} {
		if m := re.FindStringSubmatch(header); m != nil {
			if y, err := strconv.Atoi(m[1]); err == nil && y >= 2000 && y <= 2100 {
				return y
			}
		}
	}
	if m := yearGenericRe.FindStringSubmatch(header); m != nil {
		y, _ := strconv.Atoi(m[1])
		return y
	}
	return now.Year()
}

// candidate accumulates one transaction while its continuation lines arrive.
type candidate struct {
	date             time.Time
	hasDate          bool
	amount           float64
	descriptionLines []string
}

// parseAccountSection walks one account section line by line: table header
// detection arms the scan, dated lines start transactions, undated lines
// extend the open transaction's description, page footers close it.
func (p *Parser) parseAccountSection(sec section, meta *parser.Metadata) []domain.Transaction {
	var transactions []domain.Transaction
	inTable := false
	var current *candidate

	year := statementYear(sec.text, time.Now())

	flush := func() {
		if current != nil {
			transactions = append(transactions, p.finalize(*current, sec, meta))
			current = nil
		}
	}

	for _, line := range strings.Split(sec.text, "\n") {
		if tableHeaderPipeRe.MatchString(line) || tableHeaderWideRe.MatchString(line) {
			inTable = true
			continue
		}
		if pageFooterRe.MatchString(line) {
			inTable = false
			flush()
			continue
		}

		dateMatch := dateStartRe.FindString(line)
		hasAmount := amountAnyRe.MatchString(line)

		if dateMatch != "" && (inTable || hasAmount) {
			flush()

			date, hasDate := parseStatementDate(dateMatch, year)
			amount := 0.0
			if m := amountRe.FindStringSubmatch(line); m != nil {
				amount = signAmount(line, m[0], m[1])
			}

			description := strings.TrimSpace(line[len(dateMatch):])
			description = strings.TrimSpace(trailingAmountRe.ReplaceAllString(description, ""))
			description = strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(description, "|"), "|"))

			current = &candidate{
				date:             date,
				hasDate:          hasDate,
				amount:           amount,
				descriptionLines: []string{description},
			}
		} else if current != nil {
			if !strings.Contains(line, "$") && !pageRefRe.MatchString(line) {
				current.descriptionLines = append(current.descriptionLines, strings.TrimSpace(line))
			}
		}
	}
	flush()

	return transactions
}

// signAmount resolves the sign of the first amount on a dated line. An
// explicit minus on the match always wins; otherwise direction keywords
// decide; otherwise the amount defaults to a debit. The debit default is a
// known heuristic weakness for statements that list credits without
// keywords, kept for compatibility with existing imports.
func signAmount(line, matched, digits string) float64 {
	value, err := strconv.ParseFloat(strings.ReplaceAll(digits, ",", ""), 64)
	if err != nil {
		return 0
	}
	if strings.HasPrefix(matched, "-") {
		return -value
	}

	lower := strings.ToLower(line)
	isCredit := strings.Contains(lower, "payment from") ||
		strings.Contains(lower, "deposit") ||
		strings.Contains(lower, "transfer from") ||
		strings.Contains(lower, "interest")
	isDebit := strings.Contains(lower, "purchase") ||
		strings.Contains(lower, "payment to") ||
		strings.Contains(lower, "transfer to") ||
		strings.Contains(lower, "withdrawal") ||
		strings.Contains(lower, "loan payment")

	switch {
	case isCredit:
		return value
	case isDebit:
		return -value
	default:
		return -value
	}
}

var monthMap = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

// parseStatementDate handles "DD/MM/YYYY" (with - or . separators, two-digit
// years meaning 20xx) and "DD Mon" forms, the latter taking the statement
// year.
func parseStatementDate(dateStr string, defaultYear int) (time.Time, bool) {
	if m := slashDateRe.FindStringSubmatch(dateStr); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		if year < 100 {
			year += 2000
		}
		return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC), true
	}
	if m := monDateRe.FindStringSubmatch(dateStr); m != nil {
		month, ok := monthMap[strings.ToLower(m[2])]
		if !ok {
			return time.Time{}, false
		}
		day, _ := strconv.Atoi(m[1])
		return time.Date(defaultYear, month, day, 0, 0, 0, 0, time.UTC), true
	}
	return time.Time{}, false
}

// finalize turns an accumulated candidate into a normalized transaction.
func (p *Parser) finalize(c candidate, sec section, meta *parser.Metadata) domain.Transaction {
	description := strings.TrimSpace(strings.Join(c.descriptionLines, " "))
	if description == "" {
		description = "Transaction"
	}

	var txDate, dateKey string
	if c.hasDate {
		txDate = c.date.Format("2006-01-02")
		dateKey = c.date.Format("2006-01-02T15:04:05.000Z")
	}

	accountNumber := sec.accountNumber
	if accountNumber == "" {
		accountNumber = meta.AccountNumber()
	}
	if accountNumber == "" {
		accountNumber = domain.UnknownAccount
	}
	accountName := sec.accountName
	if accountName == "" {
		accountName = "Bank Account"
	}

	creditDebit := domain.Credit
	if c.amount < 0 {
		creditDebit = domain.Debit
	}

	return domain.Transaction{
		TransactionID:   transform.HashID(fmt.Sprintf("%s-%s-%s", dateKey, description, transform.FormatAmount(c.amount))),
		Description:     description,
		UserDescription: description,
		Amount:          c.amount,
		Currency:        domain.DefaultCurrency,
		TransactionDate: txDate,
		PostedDate:      txDate,
		AccountNumber:   accountNumber,
		AccountName:     accountName,
		CreditDebit:     creditDebit,
		TransactionType: inferType(description),
		ProviderName:    "Qudos Bank",
		MerchantName:    extractMerchant(description),
		Included:        true,
		Source:          domain.SourcePDF,
		SourceFile:      meta.SourceFile(),
	}
}

// inferType classifies from statement wording. This vocabulary differs from
// the CSV one because statements describe the mechanism ("purchase",
// "withdrawal") rather than the channel.
func inferType(description string) string {
	desc := strings.ToLower(description)
	switch {
	case strings.Contains(desc, "transfer"):
		return "transfer"
	case strings.Contains(desc, "purchase"):
		return "purchase"
	case strings.Contains(desc, "payment"):
		return "payment"
	case strings.Contains(desc, "deposit"):
		return "deposit"
	case strings.Contains(desc, "withdrawal"):
		return "withdrawal"
	case strings.Contains(desc, "interest"):
		return "interest"
	case strings.Contains(desc, "fee"):
		return "fee"
	default:
		return "unknown"
	}
}

var visaRe = regexp.MustCompile(`(?i)visa-([^(]+)`)

// extractMerchant pulls the merchant from card-purchase lines like
// "Visa-WOOLWORTHS (ref)". Falls back to the full description.
func extractMerchant(description string) string {
	if m := visaRe.FindStringSubmatch(description); m != nil {
		return strings.TrimSpace(m[1])
	}
	return description
}

// aggressiveLineScan is the fallback for statements whose layout defeats
// section parsing: any line starting with a date and containing an amount
// becomes a transaction. Sign evidence here is weaker, a minus anywhere in
// the line or the word "debit" flips the amount negative.
func (p *Parser) aggressiveLineScan(text, accountNumber string, meta *parser.Metadata) []domain.Transaction {
	var transactions []domain.Transaction
	year := time.Now().Year()

	sec := section{accountNumber: accountNumber}

	for _, line := range strings.Split(text, "\n") {
		dateMatch := dateStartRe.FindString(line)
		if dateMatch == "" {
			continue
		}
		m := amountRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		value, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
		if err != nil {
			continue
		}
		if strings.Contains(line, "-") || strings.Contains(strings.ToLower(line), "debit") {
			value = -value
		}

		date, hasDate := parseStatementDate(dateMatch, year)
		transactions = append(transactions, p.finalize(candidate{
			date:             date,
			hasDate:          hasDate,
			amount:           value,
			descriptionLines: []string{strings.TrimSpace(line[len(dateMatch):])},
		}, sec, meta))
	}
	return transactions
}
