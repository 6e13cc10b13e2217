// Package ofx provides OFX/QFX statement parsing for bankbuckets.
package ofx

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/aclindsa/ofxgo"

	"github.com/rumor-ml/commons.systems/bankbuckets/internal/domain"
	"github.com/rumor-ml/commons.systems/bankbuckets/internal/parser"
	"github.com/rumor-ml/commons.systems/bankbuckets/internal/transform"
)

// Parser implements OFX/QFX parsing with a stateless design.
// Safe for concurrent use; all behavior is determined by the OFX file
// content and optional Metadata.
type Parser struct{}

var parserInstance = &Parser{}

// NewParser returns the shared OFX parser instance.
func NewParser() *Parser {
	return parserInstance
}

// Name returns the parser identifier
func (p *Parser) Name() string {
	return "ofx"
}

// CanParse checks if this parser can handle the file based on extension and header
func (p *Parser) CanParse(path string, header []byte) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".ofx" && ext != ".qfx" {
		return false
	}

	// Look for OFX header markers (both v1 SGML and v2 XML formats)
	headerUpper := strings.ToUpper(string(header))
	return strings.Contains(headerUpper, "OFXHEADER") ||
		strings.Contains(headerUpper, "<?OFX") ||
		strings.Contains(headerUpper, "<OFX>")
}

// Parse extracts normalized transactions from an OFX/QFX file. Bank and
// credit card statements are supported; investment statements contribute
// their cash movements only.
func (p *Parser) Parse(ctx context.Context, r io.Reader, meta *parser.Metadata) (*parser.Result, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read OFX content from %s: %w", meta.FilePath(), err)
	}

	// ofxgo.ParseResponse does not support context cancellation, so this
	// check only catches cancellation between file read and parsing.
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	response, err := ofxgo.ParseResponse(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse OFX file %s (%d bytes): %w", meta.FilePath(), len(content), err)
	}

	provider := response.Signon.Org.String()

	result := &parser.Result{}
	switch {
	case len(response.CreditCard) > 0:
		err = p.parseCreditCard(response, provider, meta, result)
	case len(response.Bank) > 0:
		err = p.parseBank(response, provider, meta, result)
	case len(response.InvStmt) > 0:
		err = p.parseInvestment(response, provider, meta, result)
	default:
		return nil, &parser.ParseError{
			File:   meta.SourceFile(),
			Reason: "no supported statement type found (expected credit card, bank, or investment statement)",
		}
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// parseBank extracts transactions from a bank account statement.
func (p *Parser) parseBank(resp *ofxgo.Response, provider string, meta *parser.Metadata, result *parser.Result) error {
	bankStmt, ok := resp.Bank[0].(*ofxgo.StatementResponse)
	if !ok {
		return fmt.Errorf("failed to type assert bank statement: expected *ofxgo.StatementResponse, got %T", resp.Bank[0])
	}

	accountNumber := bankStmt.BankAcctFrom.AcctID.String()
	if accountNumber == "" {
		return &parser.ParseError{File: meta.SourceFile(), Reason: "missing account ID in bank statement"}
	}
	if bankStmt.BankTranList == nil {
		return &parser.ParseError{File: meta.SourceFile(), Reason: "missing transaction list in bank statement"}
	}

	currency := bankStmt.CurDef.String()
	p.collectTransactions(bankStmt.BankTranList.Transactions, accountNumber, provider, currency, meta, result)
	return nil
}

// parseCreditCard extracts transactions from a credit card statement.
func (p *Parser) parseCreditCard(resp *ofxgo.Response, provider string, meta *parser.Metadata, result *parser.Result) error {
	ccStmt, ok := resp.CreditCard[0].(*ofxgo.CCStatementResponse)
	if !ok {
		return fmt.Errorf("failed to type assert credit card statement: expected *ofxgo.CCStatementResponse, got %T", resp.CreditCard[0])
	}

	accountNumber := ccStmt.CCAcctFrom.AcctID.String()
	if accountNumber == "" {
		return &parser.ParseError{File: meta.SourceFile(), Reason: "missing account ID in credit card statement"}
	}
	if ccStmt.BankTranList == nil {
		return &parser.ParseError{File: meta.SourceFile(), Reason: "missing transaction list in credit card statement"}
	}

	currency := ccStmt.CurDef.String()
	p.collectTransactions(ccStmt.BankTranList.Transactions, accountNumber, provider, currency, meta, result)
	return nil
}

// parseInvestment extracts the cash movements (dividends, interest, fees)
// from an investment statement. Security transactions carry units and
// prices that do not fit the transaction schema and are skipped with a
// trace note.
func (p *Parser) parseInvestment(resp *ofxgo.Response, provider string, meta *parser.Metadata, result *parser.Result) error {
	invStmt, ok := resp.InvStmt[0].(*ofxgo.InvStatementResponse)
	if !ok {
		return fmt.Errorf("failed to type assert investment statement: expected *ofxgo.InvStatementResponse, got %T", resp.InvStmt[0])
	}

	accountNumber := invStmt.InvAcctFrom.AcctID.String()
	if accountNumber == "" {
		return &parser.ParseError{File: meta.SourceFile(), Reason: "missing account ID in investment statement"}
	}
	if invStmt.InvTranList == nil {
		return &parser.ParseError{File: meta.SourceFile(), Reason: "missing transaction list in investment statement"}
	}

	currency := invStmt.CurDef.String()
	for _, invBankTxn := range invStmt.InvTranList.BankTransactions {
		p.collectTransactions(invBankTxn.Transactions, accountNumber, provider, currency, meta, result)
	}
	if skipped := len(invStmt.InvTranList.InvTransactions); skipped > 0 {
		result.Trace.Notef("skipped %d security transactions (only cash movements are imported)", skipped)
	}
	return nil
}

// collectTransactions normalizes one OFX transaction list. Transactions
// missing a date or description are skipped with a trace note rather than
// failing the file.
func (p *Parser) collectTransactions(txns []ofxgo.Transaction, accountNumber, provider, currency string, meta *parser.Metadata, result *parser.Result) {
	result.Trace.Sections++
	result.Trace.Accounts = append(result.Trace.Accounts, accountNumber)
	if currency == "" {
		currency = domain.DefaultCurrency
	}

	for _, txn := range txns {
		result.Trace.Transactions++

		postedDate := txn.DtPosted.Time
		var txDate time.Time
		if txn.DtUser != nil {
			txDate = txn.DtUser.Time
		}
		if txDate.IsZero() {
			txDate = postedDate
		}
		if txDate.IsZero() {
			result.Trace.Skipped++
			result.Trace.Notef("skipped transaction %s: no date", txn.FiTID.String())
			continue
		}

		description := strings.TrimSpace(txn.Name.String())
		if description == "" {
			description = strings.TrimSpace(txn.Memo.String())
		}
		if description == "" {
			result.Trace.Skipped++
			result.Trace.Notef("skipped transaction %s: no description", txn.FiTID.String())
			continue
		}

		// OFX amounts arrive already signed: debits negative.
		amount, _ := txn.TrnAmt.Float64()

		dateStr := txDate.Format("2006-01-02")
		postedStr := dateStr
		if !postedDate.IsZero() {
			postedStr = postedDate.Format("2006-01-02")
		}

		creditDebit := domain.Debit
		if isOFXCredit(txn, amount) {
			creditDebit = domain.Credit
		}

		tx := domain.Transaction{
			TransactionID:   transform.TransactionID(dateStr, description, amount, accountNumber),
			Description:     description,
			UserDescription: description,
			Amount:          amount,
			Currency:        currency,
			TransactionDate: dateStr,
			PostedDate:      postedStr,
			AccountNumber:   accountNumber,
			AccountName:     fmt.Sprintf("Account %s", accountNumber),
			CreditDebit:     creditDebit,
			TransactionType: mapTransactionType(txn.TrnType),
			ProviderName:    provider,
			MerchantName:    transform.ExtractMerchantName(description),
			Included:        true,
			Source:          domain.SourceOFX,
			SourceFile:      meta.SourceFile(),
		}
		if memo := strings.TrimSpace(txn.Memo.String()); memo != "" && memo != description {
			tx.Notes = memo
		}
		result.Transactions = append(result.Transactions, tx)
	}
}

// isOFXCredit resolves direction from the OFX transaction type when it is
// explicit, falling back to the amount sign.
func isOFXCredit(txn ofxgo.Transaction, amount float64) bool {
	switch txn.TrnType {
	case ofxgo.TrnTypeCredit, ofxgo.TrnTypeDep, ofxgo.TrnTypeInt:
		return true
	case ofxgo.TrnTypeDebit:
		return false
	default:
		return amount > 0
	}
}

// mapTransactionType maps OFX transaction types onto the vocabulary the
// rest of the system uses.
// The ofxgo transaction-type enum is an unexported type, so the parameter
// is taken as fmt.Stringer, which the enum satisfies.
func mapTransactionType(trnType fmt.Stringer) string {
	switch trnType {
	case ofxgo.TrnTypeXfer:
		return "transfer"
	case ofxgo.TrnTypeFee:
		return "fee"
	case ofxgo.TrnTypeInt:
		return "interest"
	case ofxgo.TrnTypeDep:
		return "deposit"
	case ofxgo.TrnTypePayment, ofxgo.TrnTypeCheck:
		return "payment"
	case ofxgo.TrnTypePOS:
		return "purchase"
	case ofxgo.TrnTypeATM:
		return "withdrawal"
	default:
		return "other"
	}
}
