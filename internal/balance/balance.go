// Package balance computes running bucket balances from transactions and
// starting allocations.
package balance

import (
	"sort"
	"time"

	"github.com/rumor-ml/commons.systems/bankbuckets/internal/buckets"
	"github.com/rumor-ml/commons.systems/bankbuckets/internal/domain"
)

// Calculate computes each bucket's balance by keyword matching: a
// transaction contributes its signed amount to every bucket whose keywords
// match its description. Balances start at the bucket's allocation amount
// (or 0), and transactions dated strictly before a bucket's allocation
// date are excluded from that bucket only.
func Calculate(bkts []domain.Bucket, txs []domain.Transaction, allocations map[string]domain.StartingAllocation) map[string]float64 {
	balances, floors := initBalances(bkts, allocations)

	for _, tx := range sortedByDate(txs) {
		if !tx.Included || tx.Amount == 0 {
			continue
		}
		signed := tx.SignedAmount()
		txDate := tx.EffectiveDate()

		for _, bucket := range buckets.FindMatching(&tx, bkts) {
			if floor, ok := floors[bucket.ID]; ok && txDate.Before(floor) {
				continue
			}
			balances[bucket.ID] += signed
		}
	}

	return balances
}

// CalculateClassified computes balances from an explicit transaction to
// bucket assignment instead of keyword matching. Each transaction
// contributes to at most one bucket; entries pointing at buckets outside
// the given set are ignored. Allocation date floors apply as in Calculate.
func CalculateClassified(bkts []domain.Bucket, txs []domain.Transaction, allocations map[string]domain.StartingAllocation, classifications map[string]string) map[string]float64 {
	balances, floors := initBalances(bkts, allocations)

	for _, tx := range sortedByDate(txs) {
		if !tx.Included || tx.Amount == 0 {
			continue
		}
		bucketID, ok := classifications[tx.TransactionID]
		if !ok {
			continue
		}
		if _, known := balances[bucketID]; !known {
			continue
		}
		if floor, ok := floors[bucketID]; ok && tx.EffectiveDate().Before(floor) {
			continue
		}
		balances[bucketID] += tx.SignedAmount()
	}

	return balances
}

// Total sums all bucket balances.
func Total(balances map[string]float64) float64 {
	var total float64
	for _, b := range balances {
		total += b
	}
	return total
}

// initBalances seeds each bucket at its allocation amount (or 0) and
// resolves allocation dates once up front. Allocations without a parseable
// date impose no floor.
func initBalances(bkts []domain.Bucket, allocations map[string]domain.StartingAllocation) (map[string]float64, map[string]time.Time) {
	balances := make(map[string]float64, len(bkts))
	floors := make(map[string]time.Time)

	for _, b := range bkts {
		balances[b.ID] = 0
		if alloc, ok := allocations[b.ID]; ok {
			balances[b.ID] = alloc.Amount
			if alloc.Date != "" {
				if floor, ok := domain.ParseDate(alloc.Date); ok {
					floors[b.ID] = floor
				}
			}
		}
	}

	return balances, floors
}

// sortedByDate returns a copy of the transactions in ascending date order.
func sortedByDate(txs []domain.Transaction) []domain.Transaction {
	sorted := make([]domain.Transaction, len(txs))
	copy(sorted, txs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].EffectiveDate().Before(sorted[j].EffectiveDate())
	})
	return sorted
}
