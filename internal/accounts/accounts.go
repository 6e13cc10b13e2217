// Package accounts aggregates transactions into per-account summaries used
// for import-time account detection and export.
package accounts

import (
	"sort"

	"github.com/rumor-ml/commons.systems/bankbuckets/internal/domain"
)

// Summary describes one account observed in a transaction set. When the
// account matches a saved account the user has already confirmed, the saved
// name, BSB and type take precedence over anything observed in the data.
type Summary struct {
	AccountNumber    string             `json:"account_number"`
	AccountName      string             `json:"account_name"`
	BSB              string             `json:"bsb,omitempty"`
	TransactionCount int                `json:"transaction_count"`
	Balance          float64            `json:"balance"`
	AccountType      domain.AccountType `json:"account_type,omitempty"`
	Suggested        bool               `json:"suggested"`
	IsSaved          bool               `json:"is_saved"`
}

// Extract groups transactions by account number and computes per-account
// counts and net balances, with no saved-account cross-referencing.
func Extract(txs []domain.Transaction) []Summary {
	return Detect(txs, nil)
}

// Detect groups transactions by account number, cross-referencing the
// saved-accounts list: a summary whose number appears there carries the
// saved details and is flagged IsSaved; the rest are flagged Suggested and
// need user confirmation. The balance is always recomputed from the
// transactions, never taken from saved data. Results are sorted by
// transaction count descending so the most active account surfaces first.
func Detect(txs []domain.Transaction, saved []domain.SavedAccount) []Summary {
	byNumber := make(map[string]*Summary)
	var order []string

	for i := range txs {
		number := txs[i].EffectiveAccountNumber()

		s, ok := byNumber[number]
		if !ok {
			s = &Summary{AccountNumber: number}

			if sa := findSaved(saved, number); sa != nil {
				s.AccountName = sa.AccountName
				s.BSB = sa.BSB
				s.AccountType = sa.AccountType
				s.IsSaved = true
			} else {
				s.Suggested = true
			}
			if s.AccountName == "" {
				s.AccountName = txs[i].AccountName
			}
			if s.AccountName == "" {
				s.AccountName = "Account " + number
			}

			byNumber[number] = s
			order = append(order, number)
		}

		s.TransactionCount++
		s.Balance += txs[i].SignedAmount()
	}

	summaries := make([]Summary, 0, len(order))
	for _, number := range order {
		summaries = append(summaries, *byNumber[number])
	}
	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].TransactionCount > summaries[j].TransactionCount
	})
	return summaries
}

// findSaved matches saved accounts by exact account number.
func findSaved(saved []domain.SavedAccount, number string) *domain.SavedAccount {
	for i := range saved {
		if saved[i].AccountNumber == number {
			return &saved[i]
		}
	}
	return nil
}

// IsValid reports whether a summary identifies a confirmable account: a
// known number with at least one transaction behind it.
func (s Summary) IsValid() bool {
	return s.AccountNumber != "" &&
		s.AccountNumber != domain.UnknownAccount &&
		s.TransactionCount > 0
}
