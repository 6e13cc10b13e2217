package csv

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rumor-ml/commons.systems/bankbuckets/internal/domain"
	"github.com/rumor-ml/commons.systems/bankbuckets/internal/parser"
)

func testMeta(t *testing.T, path string) *parser.Metadata {
	t.Helper()
	meta, err := parser.NewMetadata(path, time.Now())
	require.NoError(t, err)
	return meta
}

func TestCanParse(t *testing.T) {
	p := NewParser()

	tests := []struct {
		name     string
		path     string
		header   []byte
		expected bool
	}{
		{"csv extension", "statement.csv", []byte("Entered Date,Amount"), true},
		{"uppercase extension", "STATEMENT.CSV", []byte("amount,date"), true},
		{"pdf extension", "statement.pdf", []byte("%PDF-1.4"), false},
		{"pdf content with csv extension", "statement.csv", []byte("%PDF-1.4"), false},
		{"ofx content with csv extension", "export.csv", []byte("OFXHEADER:100"), false},
		{"ofx extension", "export.ofx", []byte("<OFX>"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.CanParse(tt.path, tt.header); got != tt.expected {
				t.Errorf("CanParse(%q) = %v, want %v", tt.path, got, tt.expected)
			}
		})
	}
}

func TestTokenizeLine(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		expected []string
	}{
		{
			name:     "plain fields",
			line:     "a,b,c",
			expected: []string{"a", "b", "c"},
		},
		{
			name:     "quoted field with comma and escaped quotes",
			line:     `"Smith, John",100.00,"Note with ""quotes"""`,
			expected: []string{"Smith, John", "100.00", `Note with "quotes"`},
		},
		{
			name:     "empty fields preserved",
			line:     "a,,c,",
			expected: []string{"a", "", "c", ""},
		},
		{
			name:     "single field",
			line:     "only",
			expected: []string{"only"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tokenizeLine(tt.line))
		})
	}
}

func TestDetectDialect(t *testing.T) {
	tests := []struct {
		name     string
		headers  []string
		expected string
	}{
		{
			name:     "bank export headers",
			headers:  []string{"entered_date", "transaction_description", "amount", "balance"},
			expected: dialectQudos,
		},
		{
			name:     "aggregator headers",
			headers:  []string{"transaction_id", "account_number", "amount", "transaction_date"},
			expected: dialectFrollo,
		},
		{
			name:     "sparse bank headers fall through on entered",
			headers:  []string{"entered_date", "amount"},
			expected: dialectQudos,
		},
		{
			name:     "unrecognized defaults to aggregator",
			headers:  []string{"foo", "bar"},
			expected: dialectFrollo,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := detectDialect(tt.headers); got != tt.expected {
				t.Errorf("detectDialect(%v) = %s, want %s", tt.headers, got, tt.expected)
			}
		})
	}
}

func TestAccountFromFilename(t *testing.T) {
	tests := []struct {
		filename string
		expected string
	}{
		{"Statement_301234567_01.02.24-29.02.24.csv", "301234567"},
		{"statement_12345678_export.csv", "12345678"},
		{"export-987654321.csv", "987654321"},
		{"transactions.csv", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			if got := accountFromFilename(tt.filename); got != tt.expected {
				t.Errorf("accountFromFilename(%q) = %q, want %q", tt.filename, got, tt.expected)
			}
		})
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		input    string
		expected float64
		ok       bool
	}{
		{"$1,234.56", 1234.56, true},
		{"-$1,234.56", -1234.56, true},
		{"1234.56", 1234.56, true},
		{"-50.00", -50, true},
		{"100", 100, true},
		{"", 0, false},
		{"n/a", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := parseAmount(tt.input)
			if ok != tt.ok {
				t.Fatalf("parseAmount(%q) ok = %v, want %v", tt.input, ok, tt.ok)
			}
			if ok && got != tt.expected {
				t.Errorf("parseAmount(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestParseDateDayFirst(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"15/01/2024", "2024-01-15"},
		{"5/1/2024", "2024-01-05"},
		{"31/12/2023", "2023-12-31"},
		{"2024-01-15", ""},
		{"", ""},
	}

	for _, tt := range tests {
		if got := parseDateDayFirst(tt.input); got != tt.expected {
			t.Errorf("parseDateDayFirst(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestParse_QudosEndToEnd(t *testing.T) {
	content := strings.Join([]string{
		"Effective Date,Entered Date,Transaction Description,Amount,Balance",
		`16/01/2024,15/01/2024,"WOOLWORTHS 1234, SYDNEY",-$50.00,$1950.00`,
		"17/01/2024,16/01/2024,Salary Payment,$100.00,$2050.00",
	}, "\n")

	meta := testMeta(t, "/statements/Statement_12345678_01.01.24-31.01.24.csv")
	result, err := NewParser().Parse(context.Background(), strings.NewReader(content), meta)
	require.NoError(t, err)
	require.Len(t, result.Transactions, 2)

	first := result.Transactions[0]
	assert.Equal(t, "12345678", first.AccountNumber)
	assert.Equal(t, "Account 12345678", first.AccountName)
	assert.Equal(t, -50.0, first.Amount)
	assert.Equal(t, domain.Debit, first.CreditDebit)
	assert.Equal(t, "2024-01-15", first.TransactionDate)
	assert.Equal(t, "WOOLWORTHS 1234, SYDNEY", first.Description)
	assert.Equal(t, "Qudos Bank", first.ProviderName)
	assert.Equal(t, domain.SourceCSV, first.Source)
	assert.True(t, first.Included)
	require.NotNil(t, first.Balance)
	assert.Equal(t, 1950.0, *first.Balance)
	assert.True(t, strings.HasPrefix(first.TransactionID, "tx_"))

	second := result.Transactions[1]
	assert.Equal(t, 100.0, second.Amount)
	assert.Equal(t, domain.Credit, second.CreditDebit)
	assert.Equal(t, "2024-01-16", second.TransactionDate)
}

func TestParse_QudosMetadataAccountOverridesFilename(t *testing.T) {
	content := "Entered Date,Transaction Description,Amount,Balance\n15/01/2024,Coffee,-4.50,100.00"
	meta := testMeta(t, "/statements/Statement_12345678_01.01.24.csv")
	meta.SetAccountNumber("999888777")

	result, err := NewParser().Parse(context.Background(), strings.NewReader(content), meta)
	require.NoError(t, err)
	require.Len(t, result.Transactions, 1)
	assert.Equal(t, "999888777", result.Transactions[0].AccountNumber)
}

func TestParse_QudosUnknownAccount(t *testing.T) {
	content := "Entered Date,Transaction Description,Amount,Balance\n15/01/2024,Coffee,-4.50,100.00"
	meta := testMeta(t, "/statements/transactions.csv")

	result, err := NewParser().Parse(context.Background(), strings.NewReader(content), meta)
	require.NoError(t, err)
	require.Len(t, result.Transactions, 1)
	assert.Equal(t, domain.UnknownAccount, result.Transactions[0].AccountNumber)
}

func TestParse_QudosSkipsInvalidRows(t *testing.T) {
	content := strings.Join([]string{
		"Entered Date,Transaction Description,Amount,Balance",
		"15/01/2024,Valid row,-4.50,100.00",
		"not-a-date,Bad date,-4.50,95.50",
		"16/01/2024,Bad amount,n/a,95.50",
		"",
		"17/01/2024,Second valid,10.00,105.50",
	}, "\n")

	meta := testMeta(t, "/statements/Statement_12345678_x.csv")
	result, err := NewParser().Parse(context.Background(), strings.NewReader(content), meta)
	require.NoError(t, err)
	require.Len(t, result.Transactions, 2)
	assert.Equal(t, "Valid row", result.Transactions[0].Description)
	assert.Equal(t, "Second valid", result.Transactions[1].Description)

	// The trace counts every candidate row and records the dropped ones.
	assert.Equal(t, 4, result.Trace.Transactions)
	assert.Equal(t, 2, result.Trace.Skipped)
}

func TestParse_FrolloEndToEnd(t *testing.T) {
	content := strings.Join([]string{
		"transaction_id,description,user_description,amount,currency,transaction_date,posted_date,account_number,account_name,credit_debit,included",
		"tx_111,WOOLWORTHS,Groceries,-25.50,AUD,2024-03-15,2024-03-16,301234567,Everyday Account,debit,true",
		"tx_222,SALARY,,2000.00,AUD,2024-03-14,2024-03-14,301234567,Everyday Account,credit,1",
		",NO ID ROW,,-5.00,AUD,2024-03-13,2024-03-13,301234567,Everyday Account,debit,false",
	}, "\n")

	meta := testMeta(t, "/statements/frollo-export.csv")
	result, err := NewParser().Parse(context.Background(), strings.NewReader(content), meta)
	require.NoError(t, err)
	require.Len(t, result.Transactions, 3)

	first := result.Transactions[0]
	assert.Equal(t, "tx_111", first.TransactionID)
	assert.Equal(t, "Groceries", first.UserDescription)
	assert.Equal(t, -25.5, first.Amount)
	assert.Equal(t, "2024-03-15", first.TransactionDate)
	assert.Equal(t, "2024-03-16", first.PostedDate)
	assert.Equal(t, domain.Debit, first.CreditDebit)
	assert.True(t, first.Included)
	assert.Equal(t, domain.SourceCSV, first.Source)
	assert.Equal(t, "frollo-export.csv", first.SourceFile)

	// "1" counts as included
	assert.True(t, result.Transactions[1].Included)

	// Missing ID generated deterministically; explicit false respected.
	third := result.Transactions[2]
	assert.True(t, strings.HasPrefix(third.TransactionID, "tx_"))
	assert.False(t, third.Included)
}

func TestParse_FrolloSkipsInvalidRows(t *testing.T) {
	content := strings.Join([]string{
		"transaction_id,description,amount,transaction_date,account_number,account_name",
		"tx_1,Valid,-5.00,2024-03-15,301234567,Everyday Account",
		"tx_2,Bad amount,n/a,2024-03-15,301234567,Everyday Account",
		"tx_3,Bad date,-5.00,sometime,301234567,Everyday Account",
	}, "\n")

	meta := testMeta(t, "/statements/frollo-export.csv")
	result, err := NewParser().Parse(context.Background(), strings.NewReader(content), meta)
	require.NoError(t, err)
	require.Len(t, result.Transactions, 1)
	assert.Equal(t, "tx_1", result.Transactions[0].TransactionID)
	assert.Equal(t, 3, result.Trace.Transactions)
	assert.Equal(t, 2, result.Trace.Skipped)
}

func TestParse_FrolloMissingRequiredHeaders(t *testing.T) {
	content := "transaction_id,description,currency\ntx_1,Coffee,AUD"
	meta := testMeta(t, "/statements/broken.csv")

	_, err := NewParser().Parse(context.Background(), strings.NewReader(content), meta)
	require.Error(t, err)

	var parseErr *parser.ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Contains(t, parseErr.Missing, "amount")
	assert.Contains(t, parseErr.Missing, "transaction_date")
	assert.Contains(t, parseErr.Missing, "account_number")
	assert.Contains(t, parseErr.Missing, "account_name")
}

func TestParse_HeaderOnly(t *testing.T) {
	meta := testMeta(t, "/statements/empty.csv")
	_, err := NewParser().Parse(context.Background(), strings.NewReader("amount,transaction_date"), meta)

	var parseErr *parser.ParseError
	require.True(t, errors.As(err, &parseErr))
}

func TestParse_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	meta := testMeta(t, "/statements/file.csv")
	_, err := NewParser().Parse(ctx, strings.NewReader("a,b\n1,2"), meta)
	assert.ErrorIs(t, err, context.Canceled)
}
