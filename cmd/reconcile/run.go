package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"ledger-reconciliation-backend/internal/export"
	"ledger-reconciliation-backend/internal/ingest"
	"ledger-reconciliation-backend/internal/models"
	"ledger-reconciliation-backend/internal/services/reconciliation"
)

type runOptions struct {
	LedgerDir           string
	RegisterDir         string
	OutputDir           string
	Workers             int
	DropZeroGroupTotals bool
	RegisterSheet       string
	RegisterSkipRows    int
}

type fileSummary struct {
	Name          string
	Records       int
	Discrepancies int
	Removed       int
	Total         float64
	Output        string
}

// run reads every register first so the lookup is complete, then reconciles
// every file name found in either folder and writes <output>/<name>.xlsx.
// Files left without records get no workbook.
func run(ctx context.Context, opts runOptions) ([]fileSummary, error) {
	register, err := readRegisters(opts)
	if err != nil {
		return nil, err
	}
	lookup := reconciliation.BuildLookup(register)

	ledgerFiles, err := workbooks(opts.LedgerDir)
	if err != nil {
		return nil, fmt.Errorf("list ledger folder: %w", err)
	}

	ledger := make(map[string][]models.Sheet, len(ledgerFiles))
	for _, path := range ledgerFiles {
		sheets, err := readLedger(path)
		if err != nil {
			slog.Error("skipping unreadable ledger", "file", path, "error", err)
			continue
		}
		ledger[ingest.FileStem(path)] = sheets
	}

	stems := make([]string, 0, len(ledger)+len(register))
	for stem := range ledger {
		stems = append(stems, stem)
	}
	for stem := range register {
		if _, ok := ledger[stem]; !ok {
			stems = append(stems, stem)
		}
	}
	if len(stems) == 0 {
		return nil, fmt.Errorf("no workbooks in %s or %s", opts.LedgerDir, opts.RegisterDir)
	}
	sort.Strings(stems)

	inputs := make([]reconciliation.FileInput, len(stems))
	for i, stem := range stems {
		inputs[i] = reconciliation.FileInput{Name: stem, Ledger: ledger[stem], Register: register[stem]}
	}

	results, err := reconciliation.ProcessAll(ctx, inputs, lookup,
		reconciliation.PipelineOptions{DropZeroGroupTotals: opts.DropZeroGroupTotals}, opts.Workers)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output folder: %w", err)
	}

	summaries := make([]fileSummary, 0, len(results))
	for _, res := range results {
		if len(res.Records) == 0 {
			slog.Info("no reconciled records, skipping workbook", "file", res.Name)
			continue
		}
		out := filepath.Join(opts.OutputDir, res.Name+".xlsx")
		if err := export.WriteWorkbookFile(out, res.Records, res.Total); err != nil {
			return nil, err
		}
		summaries = append(summaries, fileSummary{
			Name:          res.Name,
			Records:       len(res.Records),
			Discrepancies: res.Stats.Discrepancies,
			Removed:       len(res.Decisions),
			Total:         res.Total,
			Output:        out,
		})
	}
	return summaries, nil
}

func readRegisters(opts runOptions) (map[string][]models.RawRecord, error) {
	register := make(map[string][]models.RawRecord)
	files, err := workbooks(opts.RegisterDir)
	if os.IsNotExist(err) {
		slog.Warn("register folder not found, reconciling without contract register", "dir", opts.RegisterDir)
		return register, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list register folder: %w", err)
	}

	regOpts := ingest.RegisterOptions{Sheet: opts.RegisterSheet, SkipRows: opts.RegisterSkipRows}
	for _, path := range files {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		rows, err := ingest.ReadContractRegister(f, regOpts)
		f.Close()
		if err != nil {
			slog.Error("skipping unreadable register", "file", path, "error", err)
			continue
		}
		register[ingest.FileStem(path)] = rows
	}
	return register, nil
}

func readLedger(path string) ([]models.Sheet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ingest.ReadLedgerWorkbook(f)
}

// workbooks lists the workbook files of dir in name order.
func workbooks(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		if !e.IsDir() && ingest.IsWorkbook(e.Name()) {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}
