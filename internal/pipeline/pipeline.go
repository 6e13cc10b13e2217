// Package pipeline orchestrates statement import: parse each file, merge
// against the persisted transaction set, persist, and detect accounts.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/rumor-ml/commons.systems/bankbuckets/internal/accounts"
	"github.com/rumor-ml/commons.systems/bankbuckets/internal/dedup"
	"github.com/rumor-ml/commons.systems/bankbuckets/internal/domain"
	"github.com/rumor-ml/commons.systems/bankbuckets/internal/parser"
	"github.com/rumor-ml/commons.systems/bankbuckets/internal/registry"
	"github.com/rumor-ml/commons.systems/bankbuckets/internal/scanner"
	"github.com/rumor-ml/commons.systems/bankbuckets/internal/store"
)

// FileReport records the outcome of one imported file. A file that failed
// carries Err; the batch continues regardless.
type FileReport struct {
	FileName string
	Parser   string
	Stats    dedup.Stats
	Trace    parser.Trace
	Err      error
}

// ImportReport summarizes a whole import batch.
type ImportReport struct {
	Files    []FileReport
	Total    int // transactions in the store after the batch
	Accounts []accounts.Summary
}

// Failed returns the number of files that could not be imported.
func (r *ImportReport) Failed() int {
	n := 0
	for i := range r.Files {
		if r.Files[i].Err != nil {
			n++
		}
	}
	return n
}

// Pipeline imports statement files sequentially. Each file's
// parse-merge-persist cycle completes before the next file starts, so
// duplicate detection always sees the previous file's results.
type Pipeline struct {
	registry *registry.Registry
	store    *store.Store
	dryRun   bool
}

// New creates an import pipeline over the given parser registry and store.
func New(reg *registry.Registry, st *store.Store) *Pipeline {
	return &Pipeline{registry: reg, store: st}
}

// SetDryRun makes Import merge in memory without persisting anything.
func (p *Pipeline) SetDryRun(dryRun bool) {
	p.dryRun = dryRun
}

// Import runs the batch. Per-file failures are recorded and skipped; only
// context cancellation or a failure to read the initial store state aborts
// the whole batch.
func (p *Pipeline) Import(ctx context.Context, files []scanner.ScanResult) (*ImportReport, error) {
	working, err := p.store.Transactions()
	if err != nil {
		return nil, fmt.Errorf("load existing transactions: %w", err)
	}

	report := &ImportReport{}

	for _, file := range files {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		fileReport := p.importFile(ctx, file, &working)
		report.Files = append(report.Files, fileReport)
		if fileReport.Err != nil {
			log.Printf("ERROR: failed to import %s: %v", fileReport.FileName, fileReport.Err)
		}
	}

	report.Total = len(working)

	saved, err := p.store.SavedAccounts()
	if err != nil {
		return nil, fmt.Errorf("load saved accounts: %w", err)
	}
	report.Accounts = accounts.Detect(working, saved)

	if !p.dryRun {
		if err := p.store.SaveAccounts(report.Accounts); err != nil {
			return nil, err
		}
	}

	return report, nil
}

// importFile parses one file and folds its transactions into the working
// set, persisting after a successful merge.
func (p *Pipeline) importFile(ctx context.Context, file scanner.ScanResult, working *[]domain.Transaction) FileReport {
	report := FileReport{FileName: file.Metadata.SourceFile()}

	prs, err := p.registry.ParserFor(file.Path, file.Metadata)
	if err != nil {
		report.Err = err
		return report
	}
	report.Parser = prs.Name()

	f, err := os.Open(file.Path)
	if err != nil {
		report.Err = fmt.Errorf("failed to open file: %w", err)
		return report
	}
	defer f.Close()

	result, err := prs.Parse(ctx, f, file.Metadata)
	if err != nil {
		report.Err = err
		return report
	}
	report.Trace = result.Trace

	merged, stats := dedup.Merge(*working, result.Transactions)
	report.Stats = stats

	if !p.dryRun {
		if err := p.store.SaveTransactions(merged); err != nil {
			report.Err = err
			return report
		}
	}

	*working = merged
	return report
}
