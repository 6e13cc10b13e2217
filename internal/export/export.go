// Package export renders bucket balances and transaction diagnostics for
// use outside the tool.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rumor-ml/commons.systems/bankbuckets/internal/accounts"
	"github.com/rumor-ml/commons.systems/bankbuckets/internal/balance"
	"github.com/rumor-ml/commons.systems/bankbuckets/internal/domain"
)

// WriteBalancesCSV writes one row per bucket in definition order plus a
// Total row. Bucket names are always quoted; balances are formatted to two
// decimal places. Buckets absent from the balances map report 0.
func WriteBalancesCSV(w io.Writer, bkts []domain.Bucket, balances map[string]float64) error {
	if len(bkts) == 0 {
		return fmt.Errorf("no buckets to export")
	}

	if _, err := fmt.Fprint(w, "Bucket Name,Balance\n"); err != nil {
		return fmt.Errorf("failed to write balances CSV: %w", err)
	}
	for _, b := range bkts {
		if _, err := fmt.Fprintf(w, "%s,%.2f\n", quote(b.Name), balances[b.ID]); err != nil {
			return fmt.Errorf("failed to write balances CSV: %w", err)
		}
	}
	if _, err := fmt.Fprintf(w, "%s,%.2f\n", quote("Total"), balance.Total(balances)); err != nil {
		return fmt.Errorf("failed to write balances CSV: %w", err)
	}
	return nil
}

// WriteBalancesCSVFile writes the balances CSV to a file, or stdout when
// path is empty.
func WriteBalancesCSVFile(path string, bkts []domain.Bucket, balances map[string]float64) (err error) {
	if path == "" {
		return WriteBalancesCSV(os.Stdout, bkts, balances)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file %s: %w", path, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close output file %s: %w", path, closeErr)
		}
	}()

	return WriteBalancesCSV(f, bkts, balances)
}

// WriteSummary writes a plain-text balance summary suitable for pasting
// into a note or message.
func WriteSummary(w io.Writer, bkts []domain.Bucket, balances map[string]float64) error {
	if len(bkts) == 0 {
		return fmt.Errorf("no buckets to summarize")
	}

	var sb strings.Builder
	sb.WriteString("Bank Buckets Summary\n")
	sb.WriteString("===================\n\n")
	for _, b := range bkts {
		fmt.Fprintf(&sb, "%s: $%.2f\n", b.Name, balances[b.ID])
	}
	fmt.Fprintf(&sb, "\nTotal: $%.2f\n", balance.Total(balances))

	if _, err := io.WriteString(w, sb.String()); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}
	return nil
}

var diagnosticsHeader = []string{
	"transaction_id", "transaction_date", "posted_date", "description",
	"amount", "credit_debit", "account_number", "account_type", "bucket",
	"source", "source_file", "included",
}

// Diagnostics is the dataset dumped by WriteDiagnosticsCSV: the
// transactions plus the derived state resolved into each row. Buckets
// resolve classification ids to names; Accounts supply the account type
// for each transaction's account number.
type Diagnostics struct {
	Transactions    []domain.Transaction
	Buckets         []domain.Bucket
	Classifications map[string]string
	Accounts        []accounts.Summary
}

// bucketName resolves a classified bucket id to its display name, falling
// back to the raw id for a dangling classification.
func (d *Diagnostics) bucketName(txID string) string {
	id := d.Classifications[txID]
	if id == "" {
		return ""
	}
	for i := range d.Buckets {
		if d.Buckets[i].ID == id {
			return d.Buckets[i].Name
		}
	}
	return id
}

func (d *Diagnostics) accountType(accountNumber string) string {
	for i := range d.Accounts {
		if d.Accounts[i].AccountNumber == accountNumber {
			return string(d.Accounts[i].AccountType)
		}
	}
	return ""
}

// WriteDiagnosticsCSV dumps every transaction with its provenance fields
// and the state the pipeline derived for it, for inspecting what the
// parsers produced, which rows were excluded, and where each row landed.
func WriteDiagnosticsCSV(w io.Writer, d Diagnostics) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(diagnosticsHeader); err != nil {
		return fmt.Errorf("failed to write diagnostics CSV: %w", err)
	}
	for i := range d.Transactions {
		tx := &d.Transactions[i]
		record := []string{
			tx.TransactionID,
			tx.TransactionDate,
			tx.PostedDate,
			tx.Description,
			strconv.FormatFloat(tx.Amount, 'f', -1, 64),
			string(tx.CreditDebit),
			tx.AccountNumber,
			d.accountType(tx.EffectiveAccountNumber()),
			d.bucketName(tx.TransactionID),
			string(tx.Source),
			tx.SourceFile,
			strconv.FormatBool(tx.Included),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write diagnostics CSV: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to write diagnostics CSV: %w", err)
	}
	return nil
}

// WriteDiagnosticsCSVFile writes the diagnostics CSV to a file, or stdout
// when path is empty.
func WriteDiagnosticsCSVFile(path string, d Diagnostics) (err error) {
	if path == "" {
		return WriteDiagnosticsCSV(os.Stdout, d)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file %s: %w", path, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close output file %s: %w", path, closeErr)
		}
	}()

	return WriteDiagnosticsCSV(f, d)
}

// quote wraps a field in double quotes, doubling any embedded quotes.
func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
