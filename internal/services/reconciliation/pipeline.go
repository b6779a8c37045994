package reconciliation

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"ledger-reconciliation-backend/internal/models"
	"ledger-reconciliation-backend/internal/services/grouping"
	"ledger-reconciliation-backend/internal/services/matching"
)

// FileInput holds everything read for one logical file: the ledger workbook
// sheets and the contract register rows sharing its name.
type FileInput struct {
	Name     string
	Ledger   []models.Sheet
	Register []models.RawRecord
}

type PipelineOptions struct {
	// DropZeroGroupTotals removes ledger rows whose group nets to exactly zero
	// before grouping.
	DropZeroGroupTotals bool

	// OnFileDone, when set, is called from the worker goroutine after each
	// file finishes. It must be safe for concurrent use.
	OnFileDone func(FileResult)
}

type FileStats struct {
	LedgerRows      int `json:"ledger_rows"`
	RegisterRows    int `json:"register_rows"`
	Unresolved      int `json:"unresolved"`
	ZeroTotals      int `json:"zero_totals"`
	Grouped         int `json:"grouped"`
	Discrepancies   int `json:"discrepancies"`
	Suppressed      int `json:"suppressed"`
	Deduplicated    int `json:"deduplicated"`
	Conflicts       int `json:"conflicts"`
	Cancelled       int `json:"cancelled"`
	NegativeDropped int `json:"negative_dropped"`
}

type FileResult struct {
	Name      string
	Records   []models.GroupedRecord
	Decisions []matching.Decision
	Total     float64
	Stats     FileStats
}

// ProcessFile runs one file through enrichment, grouping, reconciliation and
// the negative total filter. It never fails; unresolvable rows are counted
// and skipped.
func ProcessFile(in FileInput, lookup matching.Lookup, opts PipelineOptions) FileResult {
	res := FileResult{Name: in.Name}

	var enriched []models.EnrichedRecord
	for _, sheet := range in.Ledger {
		res.Stats.LedgerRows += len(sheet.Records)
		for _, rec := range grouping.EnrichLedger(sheet.Records) {
			if !rec.Groupable() {
				res.Stats.Unresolved++
			}
			if opts.DropZeroGroupTotals && rec.GroupTotal != nil && *rec.GroupTotal == 0 {
				res.Stats.ZeroTotals++
				continue
			}
			enriched = append(enriched, rec)
		}
	}

	res.Stats.RegisterRows = len(in.Register)
	for _, rec := range grouping.EnrichContractRegister(in.Register) {
		if !rec.Groupable() {
			res.Stats.Unresolved++
		}
		enriched = append(enriched, rec)
	}

	grouped := grouping.Group(enriched)
	res.Stats.Grouped = len(grouped)

	reconciled := matching.Reconcile(grouped, lookup)
	res.Decisions = reconciled.Decisions
	for _, d := range reconciled.Decisions {
		switch d.Pass {
		case matching.PassSuppression:
			res.Stats.Suppressed++
		case matching.PassDeduplication:
			res.Stats.Deduplicated++
		case matching.PassConflict:
			res.Stats.Conflicts++
		case matching.PassCancellation:
			res.Stats.Cancelled++
		}
	}

	res.Records = matching.FilterNegative(reconciled.Records)
	res.Stats.NegativeDropped = len(reconciled.Records) - len(res.Records)
	for _, r := range res.Records {
		if r.Discrepancy() {
			res.Stats.Discrepancies++
		}
	}
	res.Total = matching.Total(res.Records)

	slog.Info("file reconciled",
		"file", in.Name,
		"ledger_rows", res.Stats.LedgerRows,
		"register_rows", res.Stats.RegisterRows,
		"records", len(res.Records),
		"discrepancies", res.Stats.Discrepancies,
		"total", res.Total)
	return res
}

// BuildLookup indexes every contract register file. It must be built before
// any ledger file is processed.
func BuildLookup(register map[string][]models.RawRecord) matching.Lookup {
	var all []models.EnrichedRecord
	for _, rows := range register {
		all = append(all, grouping.EnrichContractRegister(rows)...)
	}
	lookup := matching.NewLookup(all)
	slog.Debug("contract register lookup built", "pairs", lookup.Len())
	return lookup
}

// ProcessAll processes files concurrently, at most workers at a time. Results
// keep the order of inputs.
func ProcessAll(ctx context.Context, inputs []FileInput, lookup matching.Lookup, opts PipelineOptions, workers int) ([]FileResult, error) {
	results := make([]FileResult, len(inputs))
	g, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i, in := range inputs {
		i, in := i, in
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = ProcessFile(in, lookup, opts)
			if opts.OnFileDone != nil {
				opts.OnFileDone(results[i])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
