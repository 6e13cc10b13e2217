// Package domain defines the normalized transaction schema and the bucket
// model shared by every parser and engine in bankbuckets.
package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// Source identifies which statement format produced a transaction.
type Source string

const (
	SourceCSV Source = "csv"
	SourcePDF Source = "pdf"
	SourceOFX Source = "ofx"
)

// CreditDebit is the explicit direction flag carried by some export formats.
// Empty means "not reported"; callers resolve direction from the numeric sign
// instead (see Transaction.IsCredit).
type CreditDebit string

const (
	Credit CreditDebit = "credit"
	Debit  CreditDebit = "debit"
)

// AccountType classifies a confirmed account.
type AccountType string

const (
	AccountTypeSavings  AccountType = "savings"
	AccountTypeDayToDay AccountType = "day_to_day"
)

// UnknownAccount is the sentinel account number used when the source file
// carries no account information.
const UnknownAccount = "unknown"

// DefaultCurrency is applied by parsers whose formats do not report one.
const DefaultCurrency = "AUD"

var validAccountTypes = map[AccountType]struct{}{
	AccountTypeSavings:  {},
	AccountTypeDayToDay: {},
}

// ValidAccountType reports whether t is one of the known account types.
func ValidAccountType(t AccountType) bool {
	_, ok := validAccountTypes[t]
	return ok
}

// Transaction is the canonical record produced by every parser.
//
// Sign convention: positive Amount = credit (money in), negative = debit.
// Some formats report an unsigned magnitude plus CreditDebit instead; use
// SignedAmount/IsCredit rather than reading Amount directly when direction
// matters. CreditDebit wins over the numeric sign when present.
type Transaction struct {
	// TransactionID is a deterministic hash of date, description, amount
	// and account. Identical fields always produce the same id; collisions
	// across unrelated rows are an accepted simplification.
	TransactionID   string      `json:"transaction_id"`
	Description     string      `json:"description"`
	UserDescription string      `json:"user_description,omitempty"`
	Amount          float64     `json:"amount"`
	Currency        string      `json:"currency,omitempty"`
	TransactionDate string      `json:"transaction_date"` // ISO YYYY-MM-DD, authoritative for ordering
	PostedDate      string      `json:"posted_date,omitempty"`
	AccountNumber   string      `json:"account_number"`
	AccountName     string      `json:"account_name,omitempty"`
	CreditDebit     CreditDebit `json:"credit_debit,omitempty"`
	TransactionType string      `json:"transaction_type,omitempty"`
	ProviderName    string      `json:"provider_name,omitempty"`
	MerchantName    string      `json:"merchant_name,omitempty"`
	BudgetCategory  string      `json:"budget_category,omitempty"`
	CategoryName    string      `json:"category_name,omitempty"`
	UserTags        string      `json:"user_tags,omitempty"`
	Notes           string      `json:"notes,omitempty"`
	// Included defaults to true; false is a soft delete that excludes the
	// transaction from all balance computation.
	Included bool     `json:"included"`
	Balance  *float64 `json:"balance,omitempty"` // running balance, when the export reports one
	Source   Source   `json:"source"`
	// SourceFile is the original filename, kept for diagnostics.
	SourceFile string `json:"source_file,omitempty"`
}

// UnmarshalJSON defaults Included to true when the field is absent; only an
// explicit false excludes a transaction.
func (t *Transaction) UnmarshalJSON(data []byte) error {
	type alias Transaction
	aux := &struct {
		*alias
		Included *bool `json:"included"`
	}{alias: (*alias)(t)}
	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}
	if aux.Included == nil {
		t.Included = true
	} else {
		t.Included = *aux.Included
	}
	return nil
}

// IsCredit resolves the transaction direction, preferring the explicit
// CreditDebit flag over the numeric sign.
func (t *Transaction) IsCredit() bool {
	if strings.EqualFold(string(t.CreditDebit), string(Credit)) {
		return true
	}
	return t.Amount > 0
}

// SignedAmount returns the amount with the resolved direction applied:
// positive magnitude for credits, negative for debits.
func (t *Transaction) SignedAmount() float64 {
	mag := math.Abs(t.Amount)
	if t.IsCredit() {
		return mag
	}
	return -mag
}

// MatchDescription is the text used for bucket keyword matching.
// Resolution order: user_description, then description.
func (t *Transaction) MatchDescription() string {
	if t.UserDescription != "" {
		return t.UserDescription
	}
	return t.Description
}

// PrimaryDescription is the text used for duplicate comparison.
// Resolution order: description, then user_description.
func (t *Transaction) PrimaryDescription() string {
	if t.Description != "" {
		return t.Description
	}
	return t.UserDescription
}

// EffectiveDate resolves the date used for ordering and allocation-floor
// comparisons: transaction_date, then posted_date, then the Unix epoch when
// neither parses. Epoch rather than an error keeps undated rows sortable.
func (t *Transaction) EffectiveDate() time.Time {
	if d, ok := ParseDate(t.TransactionDate); ok {
		return d
	}
	if d, ok := ParseDate(t.PostedDate); ok {
		return d
	}
	return time.Unix(0, 0).UTC()
}

// EffectiveAccountNumber returns the account number with the unknown sentinel
// substituted for empty.
func (t *Transaction) EffectiveAccountNumber() string {
	if strings.TrimSpace(t.AccountNumber) == "" {
		return UnknownAccount
	}
	return t.AccountNumber
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"02/01/2006",
}

// ParseDate parses the date representations stored on transactions and
// allocations. Returns false for empty or unparseable values.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			return d.UTC(), true
		}
	}
	return time.Time{}, false
}

// Bucket is a user-defined spending category scoped to a single account.
// A bucket never matches transactions from a different account; callers
// enforce the scoping by passing per-account bucket and transaction sets.
type Bucket struct {
	ID            string `json:"id" yaml:"id"`
	Name          string `json:"name" yaml:"name"`
	AccountNumber string `json:"account_number" yaml:"account_number"`
	// Keywords are compared lowercased as substrings of the transaction
	// description. The bucket name conventionally seeds the first keyword.
	Keywords []string `json:"keywords" yaml:"keywords"`
}

// NewBucket creates a validated bucket. The name is seeded as the first
// keyword when none are given.
func NewBucket(id, name, accountNumber string, keywords []string) (*Bucket, error) {
	if id == "" {
		return nil, fmt.Errorf("bucket ID cannot be empty")
	}
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("bucket name cannot be empty")
	}
	if strings.TrimSpace(accountNumber) == "" {
		return nil, fmt.Errorf("bucket account number cannot be empty")
	}
	if len(keywords) == 0 {
		keywords = []string{name}
	}
	return &Bucket{
		ID:            id,
		Name:          name,
		AccountNumber: accountNumber,
		Keywords:      append([]string(nil), keywords...),
	}, nil
}

// StartingAllocation anchors a bucket balance: the balance was exactly Amount
// as of Date, and transactions dated strictly before Date are excluded from
// that bucket. At most one allocation exists per bucket.
type StartingAllocation struct {
	Amount float64 `json:"amount"`
	Date   string  `json:"date,omitempty"` // ISO YYYY-MM-DD; empty means no date floor
}

// SavedAccount is user-confirmed account metadata, persisted independently of
// the transaction set so resets can preserve it.
type SavedAccount struct {
	AccountNumber string      `json:"account_number"`
	AccountName   string      `json:"account_name"`
	BSB           string      `json:"bsb,omitempty"`
	AccountType   AccountType `json:"account_type,omitempty"`
}
