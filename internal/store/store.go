// Package store persists application state in a local SQLite database
// behind a key-value interface. Readers get empty collections, never an
// error, when a key has not been written yet.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rumor-ml/commons.systems/bankbuckets/internal/accounts"
	"github.com/rumor-ml/commons.systems/bankbuckets/internal/domain"
	_ "modernc.org/sqlite"
)

// Storage keys. Kept stable so a database can be inspected or migrated by
// hand.
const (
	KeyTransactions    = "bank_buckets_transactions"
	KeyBuckets         = "bank_buckets_buckets"
	KeyAllocations     = "bank_buckets_starting_allocations"
	KeyAccounts        = "bank_buckets_accounts"
	KeyConfirmed       = "bank_buckets_confirmed_accounts"
	KeyWorkflowPhase   = "bank_buckets_workflow_phase"
	KeyClassifications = "bank_buckets_transaction_classifications"
	KeySavedAccounts   = "bank_buckets_saved_accounts"
)

var allKeys = []string{
	KeyTransactions,
	KeyBuckets,
	KeyAllocations,
	KeyAccounts,
	KeyConfirmed,
	KeyWorkflowPhase,
	KeyClassifications,
	KeySavedAccounts,
}

// DefaultWorkflowPhase is where a fresh session starts.
const DefaultWorkflowPhase = "accounts"

// ErrCapacity indicates the underlying database is out of space. Callers
// should prompt the user to export and reset rather than retry.
var ErrCapacity = errors.New("storage capacity exceeded")

const schema = `
CREATE TABLE IF NOT EXISTS kv (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TEXT NOT NULL DEFAULT (datetime('now'))
);
`

// Store is a SQLite-backed key-value store. It is safe for the
// single-writer access pattern the import pipeline uses; there is no
// optimistic concurrency check, so the last writer wins.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and ensures the schema
// exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// save marshals v and upserts it under key, translating out-of-space
// failures to ErrCapacity.
func (s *Store) save(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("serialize %s: %w", key, err)
	}
	return s.put(key, string(data))
}

func (s *Store) put(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, datetime('now'))
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value,
	)
	if err != nil {
		if isCapacityErr(err) {
			return fmt.Errorf("save %s: %w", key, ErrCapacity)
		}
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// load unmarshals the value under key into out. A missing key leaves out
// untouched and returns false.
func (s *Store) load(key string, out any) (bool, error) {
	var raw string
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return false, fmt.Errorf("deserialize %s: %w", key, err)
	}
	return true, nil
}

// isCapacityErr recognizes SQLITE_FULL, which the driver surfaces as a
// "database or disk is full" message.
func isCapacityErr(err error) bool {
	return err != nil && strings.Contains(err.Error(), "database or disk is full")
}

// Transactions returns the persisted transaction set, empty when none has
// been saved.
func (s *Store) Transactions() ([]domain.Transaction, error) {
	txs := []domain.Transaction{}
	if _, err := s.load(KeyTransactions, &txs); err != nil {
		return nil, err
	}
	return txs, nil
}

func (s *Store) SaveTransactions(txs []domain.Transaction) error {
	return s.save(KeyTransactions, txs)
}

func (s *Store) Buckets() ([]domain.Bucket, error) {
	bkts := []domain.Bucket{}
	if _, err := s.load(KeyBuckets, &bkts); err != nil {
		return nil, err
	}
	return bkts, nil
}

func (s *Store) SaveBuckets(bkts []domain.Bucket) error {
	return s.save(KeyBuckets, bkts)
}

func (s *Store) StartingAllocations() (map[string]domain.StartingAllocation, error) {
	allocations := map[string]domain.StartingAllocation{}
	if _, err := s.load(KeyAllocations, &allocations); err != nil {
		return nil, err
	}
	return allocations, nil
}

func (s *Store) SaveStartingAllocations(allocations map[string]domain.StartingAllocation) error {
	return s.save(KeyAllocations, allocations)
}

// Accounts returns account summaries detected during the last import.
func (s *Store) Accounts() ([]accounts.Summary, error) {
	summaries := []accounts.Summary{}
	if _, err := s.load(KeyAccounts, &summaries); err != nil {
		return nil, err
	}
	return summaries, nil
}

func (s *Store) SaveAccounts(summaries []accounts.Summary) error {
	return s.save(KeyAccounts, summaries)
}

// ConfirmedAccounts returns accounts the user approved this session.
func (s *Store) ConfirmedAccounts() ([]accounts.Summary, error) {
	summaries := []accounts.Summary{}
	if _, err := s.load(KeyConfirmed, &summaries); err != nil {
		return nil, err
	}
	return summaries, nil
}

func (s *Store) SaveConfirmedAccounts(summaries []accounts.Summary) error {
	return s.save(KeyConfirmed, summaries)
}

// SavedAccounts returns user-managed account details, which survive a
// data reset.
func (s *Store) SavedAccounts() ([]domain.SavedAccount, error) {
	saved := []domain.SavedAccount{}
	if _, err := s.load(KeySavedAccounts, &saved); err != nil {
		return nil, err
	}
	return saved, nil
}

func (s *Store) SaveSavedAccounts(saved []domain.SavedAccount) error {
	return s.save(KeySavedAccounts, saved)
}

// Classifications returns the explicit transaction to bucket assignments.
func (s *Store) Classifications() (map[string]string, error) {
	classifications := map[string]string{}
	if _, err := s.load(KeyClassifications, &classifications); err != nil {
		return nil, err
	}
	return classifications, nil
}

func (s *Store) SaveClassifications(classifications map[string]string) error {
	return s.save(KeyClassifications, classifications)
}

// WorkflowPhase returns the saved workflow phase, defaulting to
// DefaultWorkflowPhase. The phase is stored as a bare string, not JSON.
func (s *Store) WorkflowPhase() (string, error) {
	var raw string
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, KeyWorkflowPhase).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && raw == "") {
		return DefaultWorkflowPhase, nil
	}
	if err != nil {
		return "", fmt.Errorf("load %s: %w", KeyWorkflowPhase, err)
	}
	return raw, nil
}

func (s *Store) SaveWorkflowPhase(phase string) error {
	return s.put(KeyWorkflowPhase, phase)
}

// ClearAll removes every known key.
func (s *Store) ClearAll() error {
	for _, key := range allKeys {
		if _, err := s.db.Exec(`DELETE FROM kv WHERE key = ?`, key); err != nil {
			return fmt.Errorf("clear %s: %w", key, err)
		}
	}
	return nil
}

// ResetImportedData clears imported transactions and session state while
// preserving the user's configuration: saved accounts, bucket definitions
// and starting allocations.
func (s *Store) ResetImportedData() error {
	saved, err := s.SavedAccounts()
	if err != nil {
		return err
	}
	bkts, err := s.Buckets()
	if err != nil {
		return err
	}
	allocations, err := s.StartingAllocations()
	if err != nil {
		return err
	}

	if err := s.ClearAll(); err != nil {
		return err
	}

	if len(saved) > 0 {
		if err := s.SaveSavedAccounts(saved); err != nil {
			return err
		}
	}
	if len(bkts) > 0 {
		if err := s.SaveBuckets(bkts); err != nil {
			return err
		}
	}
	if len(allocations) > 0 {
		if err := s.SaveStartingAllocations(allocations); err != nil {
			return err
		}
	}
	return nil
}

// RemoveAccount deletes an account's saved and confirmed records, its
// buckets, and the classifications of its transactions. The imported
// transactions themselves are kept.
func (s *Store) RemoveAccount(accountNumber string) error {
	saved, err := s.SavedAccounts()
	if err != nil {
		return err
	}
	kept := saved[:0:0]
	for _, acc := range saved {
		if acc.AccountNumber != accountNumber {
			kept = append(kept, acc)
		}
	}
	if err := s.SaveSavedAccounts(kept); err != nil {
		return err
	}

	confirmed, err := s.ConfirmedAccounts()
	if err != nil {
		return err
	}
	keptConfirmed := confirmed[:0:0]
	for _, acc := range confirmed {
		if acc.AccountNumber != accountNumber {
			keptConfirmed = append(keptConfirmed, acc)
		}
	}
	if err := s.SaveConfirmedAccounts(keptConfirmed); err != nil {
		return err
	}

	bkts, err := s.Buckets()
	if err != nil {
		return err
	}
	keptBuckets := bkts[:0:0]
	for _, b := range bkts {
		if b.AccountNumber != accountNumber {
			keptBuckets = append(keptBuckets, b)
		}
	}
	if err := s.SaveBuckets(keptBuckets); err != nil {
		return err
	}

	txs, err := s.Transactions()
	if err != nil {
		return err
	}
	classifications, err := s.Classifications()
	if err != nil {
		return err
	}
	for i := range txs {
		if txs[i].EffectiveAccountNumber() == accountNumber {
			delete(classifications, txs[i].TransactionID)
		}
	}
	return s.SaveClassifications(classifications)
}

// Usage reports approximate storage consumption per key.
type Usage struct {
	TotalBytes int64            `json:"totalBytes"`
	Breakdown  map[string]int64 `json:"breakdown"`
}

// Info sizes each key's stored value in bytes. Unwritten keys report 0.
func (s *Store) Info() (*Usage, error) {
	usage := &Usage{Breakdown: make(map[string]int64, len(allKeys))}

	for _, key := range allKeys {
		var size int64
		err := s.db.QueryRow(`SELECT length(value) FROM kv WHERE key = ?`, key).Scan(&size)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("size %s: %w", key, err)
		}
		usage.Breakdown[key] = size
		usage.TotalBytes += size
	}

	return usage, nil
}
