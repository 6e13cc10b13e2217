package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/rumor-ml/commons.systems/bankbuckets/internal/balance"
	"github.com/rumor-ml/commons.systems/bankbuckets/internal/buckets"
	"github.com/rumor-ml/commons.systems/bankbuckets/internal/domain"
	"github.com/rumor-ml/commons.systems/bankbuckets/internal/export"
	"github.com/rumor-ml/commons.systems/bankbuckets/internal/pipeline"
	"github.com/rumor-ml/commons.systems/bankbuckets/internal/registry"
	"github.com/rumor-ml/commons.systems/bankbuckets/internal/scanner"
	"github.com/rumor-ml/commons.systems/bankbuckets/internal/store"
	"github.com/rumor-ml/commons.systems/bankbuckets/internal/ui"
	"github.com/rumor-ml/commons.systems/bankbuckets/internal/validate"
)

const version = "0.1.0"

var (
	versionFlag = flag.Bool("version", false, "Show version")

	inputPath  = flag.String("input", "", "Statement file or directory to import")
	dbPath     = flag.String("db", "bankbuckets.db", "Path to the SQLite database")
	bucketFile = flag.String("buckets", "", "Bucket definitions YAML (persisted to the database)")
	formatHint = flag.String("format", "", "Force a parser for imported files: csv, pdf-text, ofx")
	mode       = flag.String("mode", "keywords", "Balance mode: keywords or classified")

	suggest       = flag.Bool("suggest", false, "Suggest buckets from recurring transaction patterns")
	autoAssign    = flag.Bool("auto-assign", false, "Classify unassigned transactions by bucket keywords")
	removeAccount = flag.String("remove-account", "", "Remove a saved account, its buckets and its classifications")
	exportFile    = flag.String("export", "", "Write bucket balances CSV to this path")
	diagnostics   = flag.String("diagnostics", "", "Write a per-transaction diagnostics CSV to this path")
	reset         = flag.Bool("reset", false, "Delete imported transactions, keeping saved accounts, buckets and allocations")
	info          = flag.Bool("info", false, "Show storage usage and exit")
	dryRun        = flag.Bool("dry-run", false, "Import without persisting anything")
	verbose       = flag.Bool("verbose", false, "Show detailed import logs")
)

func main() {
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, `bankbuckets - bank statement import and bucket balance tracking

Usage:
  bankbuckets [flags]

Flags:
`)
		flag.PrintDefaults()
		fmt.Fprint(os.Stderr, `
Examples:
  # Import a folder of statements
  bankbuckets -input ~/statements -db buckets.db

  # Load bucket definitions and print balances
  bankbuckets -db buckets.db -buckets buckets.yaml

  # Export balances to CSV in manual classification mode
  bankbuckets -db buckets.db -mode classified -export balances.csv

`)
	}

	flag.Parse()

	if *versionFlag {
		fmt.Printf("bankbuckets version %s\n", version)
		os.Exit(0)
	}

	if *mode != "keywords" && *mode != "classified" {
		fmt.Fprintf(os.Stderr, "Error: -mode must be keywords or classified\n\n")
		flag.Usage()
		os.Exit(1)
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	st, err := store.Open(*dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	if *info {
		return printStorageInfo(st)
	}

	if *reset {
		if err := st.ResetImportedData(); err != nil {
			return fmt.Errorf("reset failed: %w", err)
		}
		ui.Success("Imported data cleared; saved accounts, buckets and allocations preserved")
		return nil
	}

	if *removeAccount != "" {
		if err := st.RemoveAccount(*removeAccount); err != nil {
			return err
		}
		ui.Success("Account %s removed", *removeAccount)
		return nil
	}

	if *bucketFile != "" {
		cfg, err := buckets.LoadConfig(*bucketFile)
		if err != nil {
			return err
		}
		if err := st.SaveBuckets(cfg.Buckets); err != nil {
			return err
		}
		if len(cfg.Allocations) > 0 {
			if err := st.SaveStartingAllocations(cfg.Allocations); err != nil {
				return err
			}
		}
		ui.Success("Loaded %d buckets from %s", len(cfg.Buckets), *bucketFile)
	}

	if *inputPath != "" {
		if err := runImport(ctx, st); err != nil {
			return err
		}
	}

	txs, err := st.Transactions()
	if err != nil {
		return err
	}

	if *diagnostics != "" {
		if err := writeDiagnostics(st, txs); err != nil {
			return err
		}
		ui.Success("Diagnostics written to %s", *diagnostics)
	}

	if *suggest {
		printSuggestions(buckets.Suggest(txs))
	}

	if *autoAssign {
		if err := runAutoAssign(st, txs); err != nil {
			return err
		}
	}

	return printBalances(st, txs)
}

// runImport scans the input path and feeds every statement file through
// the import pipeline.
func runImport(ctx context.Context, st *store.Store) error {
	ui.Header("Importing Bank Statements")
	ui.Step(1, 3, "Scanning for statement files")

	s := scanner.New(*inputPath)
	if *formatHint != "" {
		s.SetFormatHint(*formatHint)
	}
	files, err := s.Scan()
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no statement files found in %s (supported: .csv, .txt, .ofx, .qfx)", *inputPath)
	}
	ui.Success("Found %d statement files", len(files))

	ui.Step(2, 3, "Parsing and merging")
	p := pipeline.New(registry.New(), st)
	p.SetDryRun(*dryRun)

	report, err := p.Import(ctx, files)
	if err != nil {
		return err
	}

	for _, fr := range report.Files {
		if fr.Err != nil {
			ui.Warning("%s: %v", fr.FileName, fr.Err)
			continue
		}
		ui.Success("%s: %d new, %d duplicates", fr.FileName, fr.Stats.Unique, fr.Stats.Duplicates)
		if *verbose {
			if fr.Trace.Skipped > 0 {
				ui.Info("%d of %d rows skipped by validity checks", fr.Trace.Skipped, fr.Trace.Transactions)
			}
			for _, note := range fr.Trace.Notes {
				ui.Info("%s", note)
			}
		}
	}
	if failed := report.Failed(); failed > 0 {
		ui.Warning("%d of %d files could not be imported", failed, len(report.Files))
	}

	ui.Step(3, 3, "Detecting accounts")
	for _, acct := range report.Accounts {
		label := "suggested"
		if acct.IsSaved {
			label = "saved"
		}
		ui.Info("%s (%s): %d transactions, net %.2f [%s]",
			acct.AccountName, acct.AccountNumber, acct.TransactionCount, acct.Balance, label)
	}
	if *dryRun {
		ui.Warning("Dry run: nothing was persisted")
	}

	warnDatasetIssues(st)
	return nil
}

// warnDatasetIssues runs dataset validation and reports findings without
// blocking the import.
func warnDatasetIssues(st *store.Store) {
	txs, err := st.Transactions()
	if err != nil {
		return
	}
	bkts, err := st.Buckets()
	if err != nil {
		return
	}
	classifications, err := st.Classifications()
	if err != nil {
		return
	}
	allocations, err := st.StartingAllocations()
	if err != nil {
		return
	}

	result := validate.ValidateDataset(txs, bkts, classifications, allocations)
	for _, issue := range result.Errors {
		ui.Error("%s %s [%s]: %s", issue.Entity, issue.ID, issue.Field, issue.Message)
	}
	if *verbose {
		for _, issue := range result.Warnings {
			ui.Warning("%s %s [%s]: %s", issue.Entity, issue.ID, issue.Field, issue.Message)
		}
	} else if len(result.Warnings) > 0 {
		ui.Warning("%d validation warnings (run with -verbose to see them)", len(result.Warnings))
	}
}

// writeDiagnostics dumps the transaction set with its derived state. The
// confirmed accounts are listed first so their account types win over the
// detected summaries.
func writeDiagnostics(st *store.Store, txs []domain.Transaction) error {
	bkts, err := st.Buckets()
	if err != nil {
		return err
	}
	classifications, err := st.Classifications()
	if err != nil {
		return err
	}
	confirmed, err := st.ConfirmedAccounts()
	if err != nil {
		return err
	}
	detected, err := st.Accounts()
	if err != nil {
		return err
	}

	return export.WriteDiagnosticsCSVFile(*diagnostics, export.Diagnostics{
		Transactions:    txs,
		Buckets:         bkts,
		Classifications: classifications,
		Accounts:        append(confirmed, detected...),
	})
}

// runAutoAssign classifies unassigned transactions by bucket keywords and
// persists any new assignments.
func runAutoAssign(st *store.Store, txs []domain.Transaction) error {
	bkts, err := st.Buckets()
	if err != nil {
		return err
	}
	classifications, err := st.Classifications()
	if err != nil {
		return err
	}

	n := buckets.AutoAssign(txs, bkts, classifications)
	if n == 0 {
		ui.Info("No transactions auto-assigned")
		return nil
	}
	if err := st.SaveClassifications(classifications); err != nil {
		return err
	}
	ui.Success("Auto-assigned %d transactions", n)
	return nil
}

// printBalances computes bucket balances in the selected mode and writes
// the summary, plus the CSV export when requested.
func printBalances(st *store.Store, txs []domain.Transaction) error {
	bkts, err := st.Buckets()
	if err != nil {
		return err
	}
	if len(bkts) == 0 {
		ui.Info("No buckets defined; use -buckets to load definitions")
		return nil
	}
	allocations, err := st.StartingAllocations()
	if err != nil {
		return err
	}

	var balances map[string]float64
	switch *mode {
	case "classified":
		classifications, err := st.Classifications()
		if err != nil {
			return err
		}
		balances = balance.CalculateClassified(bkts, txs, allocations, classifications)
	default:
		balances = balance.Calculate(bkts, txs, allocations)
	}

	fmt.Println()
	if err := export.WriteSummary(os.Stdout, bkts, balances); err != nil {
		return err
	}

	if *exportFile != "" {
		if err := export.WriteBalancesCSVFile(*exportFile, bkts, balances); err != nil {
			return err
		}
		ui.Success("Balances written to %s", *exportFile)
	}
	return nil
}

func printSuggestions(suggestions []buckets.Suggestion) {
	if len(suggestions) == 0 {
		ui.Info("No bucket suggestions; need at least two similar transactions")
		return
	}

	ui.Header("Suggested Buckets")
	for _, s := range suggestions {
		ui.BlueText("%s (%d matches)", s.Name, s.MatchCount)
		ui.Info("keywords: %v", s.Keywords)
		for _, example := range s.Examples {
			ui.Info("  e.g. %s", example)
		}
	}
}

func printStorageInfo(st *store.Store) error {
	usage, err := st.Info()
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(usage.Breakdown))
	for key := range usage.Breakdown {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	fmt.Printf("Storage usage: %d bytes\n", usage.TotalBytes)
	for _, key := range keys {
		fmt.Printf("  %-45s %d\n", key, usage.Breakdown[key])
	}
	return nil
}
