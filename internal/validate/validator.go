package validate

import (
	"fmt"
	"time"

	"github.com/rumor-ml/commons.systems/bankbuckets/internal/domain"
)

// Validation bounds. Dates outside the year range are almost always parse
// artifacts (a two-digit year, a swapped day/month), and amounts above the
// cap are malformed rows rather than real money movements.
const (
	MinYear   = 2000
	MaxYear   = 2100
	MaxAmount = 1_000_000_000
)

// Result contains all validation errors and warnings for a dataset.
type Result struct {
	Errors   []Issue
	Warnings []Issue
}

// Issue describes one validation finding on a specific entity field.
type Issue struct {
	Entity  string // "transaction", "bucket", "classification", "allocation"
	ID      string
	Field   string
	Value   string
	Message string
}

// Valid reports whether the dataset had no errors. Warnings do not affect
// validity.
func (r *Result) Valid() bool {
	return len(r.Errors) == 0
}

func (r *Result) addError(entity, id, field, value, message string) {
	r.Errors = append(r.Errors, Issue{Entity: entity, ID: id, Field: field, Value: value, Message: message})
}

func (r *Result) addWarning(entity, id, field, value, message string) {
	r.Warnings = append(r.Warnings, Issue{Entity: entity, ID: id, Field: field, Value: value, Message: message})
}

// ValidateDataset checks every entity constraint and the referential
// integrity between transactions, buckets, classifications and starting
// allocations. Returns all findings rather than stopping at the first.
func ValidateDataset(txs []domain.Transaction, bkts []domain.Bucket, classifications map[string]string, allocations map[string]domain.StartingAllocation) *Result {
	result := &Result{
		Errors:   []Issue{},
		Warnings: []Issue{},
	}

	transactionIDs := make(map[string]bool, len(txs))
	bucketIDs := make(map[string]bool, len(bkts))

	for i := range txs {
		validateTransaction(result, &txs[i], transactionIDs)
	}
	for i := range bkts {
		validateBucket(result, &bkts[i], bucketIDs)
	}

	for txID, bucketID := range classifications {
		if txID == "" || !transactionIDs[txID] {
			result.addError("classification", txID, "TransactionID", txID,
				fmt.Sprintf("references non-existent transaction: %s", txID))
		}
		if bucketID == "" || !bucketIDs[bucketID] {
			result.addError("classification", txID, "BucketID", bucketID,
				fmt.Sprintf("references non-existent bucket: %s", bucketID))
		}
	}

	for bucketID, alloc := range allocations {
		if !bucketIDs[bucketID] {
			result.addError("allocation", bucketID, "BucketID", bucketID,
				fmt.Sprintf("references non-existent bucket: %s", bucketID))
		}
		if alloc.Date != "" {
			validateDate(result, "allocation", bucketID, "Date", alloc.Date)
		}
	}

	return result
}

func validateTransaction(result *Result, tx *domain.Transaction, seen map[string]bool) {
	if tx.TransactionID == "" {
		result.addError("transaction", "", "TransactionID", "", "transaction ID cannot be empty")
	} else {
		// Hash collisions across formats are a known simplification, so a
		// repeated ID is suspicious but not fatal.
		if seen[tx.TransactionID] {
			result.addWarning("transaction", tx.TransactionID, "TransactionID", tx.TransactionID,
				"duplicate transaction ID")
		}
		seen[tx.TransactionID] = true
	}

	if tx.TransactionDate != "" {
		validateDate(result, "transaction", tx.TransactionID, "TransactionDate", tx.TransactionDate)
	}
	if tx.PostedDate != "" {
		validateDate(result, "transaction", tx.TransactionID, "PostedDate", tx.PostedDate)
	}
	if tx.TransactionDate == "" && tx.PostedDate == "" {
		result.addWarning("transaction", tx.TransactionID, "TransactionDate", "",
			"no transaction or posted date; ordering falls back to epoch")
	}

	if tx.Amount > MaxAmount || tx.Amount < -MaxAmount {
		result.addError("transaction", tx.TransactionID, "Amount", fmt.Sprintf("%f", tx.Amount),
			fmt.Sprintf("amount magnitude exceeds %d", int64(MaxAmount)))
	}

	if tx.CreditDebit != "" && tx.CreditDebit != domain.Credit && tx.CreditDebit != domain.Debit {
		result.addError("transaction", tx.TransactionID, "CreditDebit", string(tx.CreditDebit),
			fmt.Sprintf("invalid credit_debit: %s (must be credit or debit)", tx.CreditDebit))
	}

	if tx.AccountNumber == "" {
		result.addWarning("transaction", tx.TransactionID, "AccountNumber", "",
			"empty account number; treated as unknown")
	}
}

func validateBucket(result *Result, b *domain.Bucket, seen map[string]bool) {
	if b.ID == "" {
		result.addError("bucket", "", "ID", "", "bucket ID cannot be empty")
	} else {
		if seen[b.ID] {
			result.addError("bucket", b.ID, "ID", b.ID, "duplicate bucket ID")
		}
		seen[b.ID] = true
	}

	if b.Name == "" {
		result.addError("bucket", b.ID, "Name", "", "bucket name cannot be empty")
	}

	if len(b.Keywords) == 0 {
		result.addWarning("bucket", b.ID, "Keywords", "",
			"bucket has no keywords and will never match a transaction")
	}
}

func validateDate(result *Result, entity, id, field, value string) {
	parsed, err := time.Parse("2006-01-02", value)
	if err != nil {
		result.addError(entity, id, field, value,
			fmt.Sprintf("invalid date format (expected YYYY-MM-DD): %v", err))
		return
	}
	if year := parsed.Year(); year < MinYear || year > MaxYear {
		result.addWarning(entity, id, field, value,
			fmt.Sprintf("year %d outside expected range [%d, %d]", year, MinYear, MaxYear))
	}
}
