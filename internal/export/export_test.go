package export

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rumor-ml/commons.systems/bankbuckets/internal/accounts"
	"github.com/rumor-ml/commons.systems/bankbuckets/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBuckets() []domain.Bucket {
	return []domain.Bucket{
		{ID: "holiday", Name: "Holiday Fund"},
		{ID: "emergency", Name: "Emergency Buffer"},
	}
}

func TestWriteBalancesCSV(t *testing.T) {
	var buf bytes.Buffer
	err := WriteBalancesCSV(&buf, testBuckets(), map[string]float64{
		"holiday":   120.5,
		"emergency": -20,
	})
	require.NoError(t, err)

	want := "Bucket Name,Balance\n" +
		"\"Holiday Fund\",120.50\n" +
		"\"Emergency Buffer\",-20.00\n" +
		"\"Total\",100.50\n"
	assert.Equal(t, want, buf.String())
}

func TestWriteBalancesCSVMissingBucketDefaultsToZero(t *testing.T) {
	var buf bytes.Buffer
	err := WriteBalancesCSV(&buf, testBuckets(), nil)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "\"Holiday Fund\",0.00\n")
	assert.Contains(t, buf.String(), "\"Total\",0.00\n")
}

func TestWriteBalancesCSVQuotesEmbeddedQuotes(t *testing.T) {
	var buf bytes.Buffer
	bkts := []domain.Bucket{{ID: "a", Name: `The "Fun" Bucket`}}
	require.NoError(t, WriteBalancesCSV(&buf, bkts, nil))
	assert.Contains(t, buf.String(), `"The ""Fun"" Bucket",0.00`)
}

func TestWriteBalancesCSVNoBuckets(t *testing.T) {
	var buf bytes.Buffer
	err := WriteBalancesCSV(&buf, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no buckets")
}

func TestWriteBalancesCSVFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "balances.csv")
	err := WriteBalancesCSVFile(path, testBuckets(), map[string]float64{"holiday": 5})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "Bucket Name,Balance\n"))
	assert.Contains(t, string(data), "\"Total\",5.00\n")
}

func TestWriteSummary(t *testing.T) {
	var buf bytes.Buffer
	err := WriteSummary(&buf, testBuckets(), map[string]float64{
		"holiday":   120.5,
		"emergency": -20,
	})
	require.NoError(t, err)

	want := "Bank Buckets Summary\n" +
		"===================\n\n" +
		"Holiday Fund: $120.50\n" +
		"Emergency Buffer: $-20.00\n" +
		"\nTotal: $100.50\n"
	assert.Equal(t, want, buf.String())
}

func TestWriteSummaryNoBuckets(t *testing.T) {
	var buf bytes.Buffer
	require.Error(t, WriteSummary(&buf, nil, nil))
}

func TestWriteDiagnosticsCSV(t *testing.T) {
	txs := []domain.Transaction{
		{
			TransactionID:   "tx_1",
			TransactionDate: "2024-01-10",
			Description:     "Coffee, with milk",
			Amount:          -4.5,
			CreditDebit:     domain.Debit,
			AccountNumber:   "11112222",
			Source:          domain.SourceCSV,
			SourceFile:      "Statement_11112222.csv",
			Included:        true,
		},
		{
			TransactionID: "tx_2",
			Description:   "Excluded row",
			Amount:        10,
			Included:      false,
		},
	}

	d := Diagnostics{
		Transactions: txs,
		Buckets: []domain.Bucket{
			{ID: "coffee", Name: "Coffee Money", Keywords: []string{"coffee"}},
		},
		Classifications: map[string]string{"tx_1": "coffee"},
		Accounts: []accounts.Summary{
			{AccountNumber: "11112222", AccountName: "Everyday", AccountType: domain.AccountTypeDayToDay},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteDiagnosticsCSV(&buf, d))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "transaction_id,transaction_date,posted_date,description,amount,credit_debit,account_number,account_type,bucket,source,source_file,included", lines[0])
	// Comma in the description forces quoting
	assert.Contains(t, lines[1], `"Coffee, with milk"`)
	assert.Contains(t, lines[1], "-4.5")
	// Derived state resolves: account type from the summary, bucket name
	// from the classification.
	assert.Contains(t, lines[1], "day_to_day")
	assert.Contains(t, lines[1], "Coffee Money")
	assert.True(t, strings.HasSuffix(lines[1], "true"))
	// The unclassified row on an unknown account leaves both blank.
	assert.Contains(t, lines[2], ",,")
	assert.True(t, strings.HasSuffix(lines[2], "false"))
}

func TestWriteDiagnosticsCSV_DanglingClassification(t *testing.T) {
	d := Diagnostics{
		Transactions: []domain.Transaction{
			{TransactionID: "tx_1", Description: "orphaned", Amount: -1, Included: true},
		},
		Classifications: map[string]string{"tx_1": "deleted-bucket"},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteDiagnosticsCSV(&buf, d))

	// A classification pointing at a missing bucket falls back to the id.
	assert.Contains(t, buf.String(), "deleted-bucket")
}

func TestWriteDiagnosticsCSVFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "diag.csv")
	require.NoError(t, WriteDiagnosticsCSVFile(path, Diagnostics{}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "transaction_id,transaction_date,posted_date,description,amount,credit_debit,account_number,account_type,bucket,source,source_file,included\n", string(data))
}
