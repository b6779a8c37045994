package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"ledger-reconciliation-backend/internal/export"
)

func writeWorkbook(t *testing.T, path, sheet string, rows [][]interface{}) {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		t.Fatalf("SetSheetName failed: %v", err)
	}
	for i, row := range rows {
		cellRef, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("CoordinatesToCellName failed: %v", err)
		}
		if err := f.SetSheetRow(sheet, cellRef, &row); err != nil {
			t.Fatalf("SetSheetRow failed: %v", err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("SaveAs failed: %v", err)
	}
}

func TestRun(t *testing.T) {
	root := t.TempDir()
	opts := runOptions{
		LedgerDir:           filepath.Join(root, "excel"),
		RegisterDir:         filepath.Join(root, "composicoes"),
		OutputDir:           filepath.Join(root, "output"),
		Workers:             2,
		DropZeroGroupTotals: true,
		RegisterSheet:       "Fornecedores",
		RegisterSkipRows:    0,
	}
	for _, dir := range []string{opts.LedgerDir, opts.RegisterDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("MkdirAll failed: %v", err)
		}
	}

	writeWorkbook(t, filepath.Join(opts.LedgerDir, "janeiro.xlsx"), "Plan1", [][]interface{}{
		{"Data", "Complemento", "Débito", "Crédito"},
		{"01/01/2024", "FATURA 10 - ACME LTDA", 0, 100},
		{"02/01/2024", "FATURA 20 - BETA EPP", 0, 30},
		{"03/01/2024", "FATURA 20 - BETA EPP", 30, 0},
	})
	writeWorkbook(t, filepath.Join(opts.LedgerDir, "~$janeiro.xlsx"), "Plan1", nil)
	writeWorkbook(t, filepath.Join(opts.RegisterDir, "janeiro.xlsx"), "Fornecedores", [][]interface{}{
		{"NF-s", "Descriçao", "Valor"},
		{"10", "ACME LTDA", 100},
	})

	summaries, err := run(context.Background(), opts)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("expected 1 summary, got %d: %+v", len(summaries), summaries)
	}

	s := summaries[0]
	if s.Name != "janeiro" || s.Records != 1 || s.Total != 100 {
		t.Errorf("unexpected summary: %+v", s)
	}

	f, err := excelize.OpenFile(s.Output)
	if err != nil {
		t.Fatalf("output workbook not readable: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows(export.SheetName)
	if err != nil {
		t.Fatalf("GetRows failed: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header, one record and a total row, got %v", rows)
	}
	if rows[1][0] != "10" || rows[1][1] != "ACME LTDA" {
		t.Errorf("unexpected record row: %v", rows[1])
	}
	if last := rows[2]; len(last) != 5 || last[4] != "100" {
		t.Errorf("unexpected total row: %v", last)
	}
}

func TestRunWithoutLedgerFiles(t *testing.T) {
	root := t.TempDir()
	_, err := run(context.Background(), runOptions{
		LedgerDir:   root,
		RegisterDir: filepath.Join(root, "missing"),
		OutputDir:   filepath.Join(root, "output"),
	})
	if err == nil {
		t.Fatal("expected an error for an empty ledger folder")
	}
}

func testOptions(t *testing.T) runOptions {
	t.Helper()
	root := t.TempDir()
	opts := runOptions{
		LedgerDir:           filepath.Join(root, "excel"),
		RegisterDir:         filepath.Join(root, "composicoes"),
		OutputDir:           filepath.Join(root, "output"),
		Workers:             2,
		DropZeroGroupTotals: true,
		RegisterSheet:       "Fornecedores",
	}
	for _, dir := range []string{opts.LedgerDir, opts.RegisterDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("MkdirAll failed: %v", err)
		}
	}
	return opts
}

func TestRunReconcilesRegisterOnlyFiles(t *testing.T) {
	opts := testOptions(t)
	writeWorkbook(t, filepath.Join(opts.LedgerDir, "janeiro.xlsx"), "Plan1", [][]interface{}{
		{"Data", "Complemento", "Débito", "Crédito"},
		{"01/01/2024", "FATURA 10 - ACME LTDA", 0, 100},
	})
	writeWorkbook(t, filepath.Join(opts.RegisterDir, "fevereiro.xlsx"), "Fornecedores", [][]interface{}{
		{"NF-s", "Descriçao", "Valor"},
		{"77", "GAMA LTDA", 250},
	})

	summaries, err := run(context.Background(), opts)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected 2 summaries, got %d: %+v", len(summaries), summaries)
	}

	feb := summaries[0]
	if feb.Name != "fevereiro" || feb.Records != 1 || feb.Total != 250 {
		t.Errorf("unexpected register-only summary: %+v", feb)
	}
	if _, err := os.Stat(filepath.Join(opts.OutputDir, "fevereiro.xlsx")); err != nil {
		t.Errorf("register-only workbook not written: %v", err)
	}
	if summaries[1].Name != "janeiro" {
		t.Errorf("second summary = %q, want janeiro", summaries[1].Name)
	}
}

func TestRunSkipsFilesWithoutRecords(t *testing.T) {
	opts := testOptions(t)
	writeWorkbook(t, filepath.Join(opts.LedgerDir, "janeiro.xlsx"), "Plan1", [][]interface{}{
		{"Data", "Complemento", "Débito", "Crédito"},
		{"01/01/2024", "FATURA 10 - ACME LTDA", 0, 100},
	})
	writeWorkbook(t, filepath.Join(opts.LedgerDir, "marco.xlsx"), "Plan1", [][]interface{}{
		{"Data", "Complemento", "Débito", "Crédito"},
		{"02/03/2024", "FATURA 20 - BETA EPP", 0, 30},
		{"03/03/2024", "FATURA 20 - BETA EPP", 30, 0},
	})

	summaries, err := run(context.Background(), opts)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if len(summaries) != 1 || summaries[0].Name != "janeiro" {
		t.Fatalf("expected only janeiro, got %+v", summaries)
	}
	if _, err := os.Stat(filepath.Join(opts.OutputDir, "marco.xlsx")); !os.IsNotExist(err) {
		t.Errorf("workbook for a file without records should not exist, stat error: %v", err)
	}
}
