// Command reconcile processes folders of ledger workbooks against their
// contract registers and writes one reconciled workbook per file.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"text/tabwriter"

	"ledger-reconciliation-backend/internal/config"
	"ledger-reconciliation-backend/internal/logging"
)

func main() {
	cfg := config.LoadConfig()

	opts := runOptions{}
	flag.StringVar(&opts.LedgerDir, "ledger", "excel", "folder with ledger workbooks")
	flag.StringVar(&opts.RegisterDir, "register", "composicoes", "folder with contract register workbooks")
	flag.StringVar(&opts.OutputDir, "output", "output", "folder for reconciled workbooks")
	flag.IntVar(&opts.Workers, "workers", cfg.PipelineWorkers, "files processed concurrently")
	keepZero := flag.Bool("keep-zero-totals", !cfg.DropZeroGroupTotals, "keep ledger rows whose group nets to zero")
	logLevel := flag.String("log-level", cfg.LogLevel, "debug, info, warn or error")
	flag.Parse()

	logging.Setup(*logLevel)
	opts.DropZeroGroupTotals = !*keepZero
	opts.RegisterSheet = cfg.RegisterSheet
	opts.RegisterSkipRows = cfg.RegisterSkipRows

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	summaries, err := run(ctx, opts)
	if err != nil {
		slog.Error("reconciliation failed", "error", err)
		os.Exit(1)
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tRECORDS\tDISCREPANCIES\tREMOVED\tTOTAL\tOUTPUT")
	for _, s := range summaries {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%.2f\t%s\n", s.Name, s.Records, s.Discrepancies, s.Removed, s.Total, s.Output)
	}
	tw.Flush()
}
