package reconciliation

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"

	"ledger-reconciliation-backend/internal/models"
)

func amount(v float64) *float64 { return &v }

func ledgerRow(description string, debit, credit float64) models.RawRecord {
	return models.RawRecord{
		Source:      models.SourceLedger,
		Sheet:       "Plan1",
		Description: description,
		Debit:       amount(debit),
		Credit:      amount(credit),
	}
}

func registerRow(counterparty, reference string, value float64) models.RawRecord {
	return models.RawRecord{
		Source:      models.SourceContractRegister,
		Sheet:       "Fornecedores",
		Description: counterparty,
		Reference:   reference,
		Amount:      amount(value),
	}
}

func TestProcessFile(t *testing.T) {
	in := FileInput{
		Name: "obra-01",
		Ledger: []models.Sheet{{
			Name: "Plan1",
			Records: []models.RawRecord{
				ledgerRow("FATURA 100 - ACME LTDA", 0, 100),
				ledgerRow("FATURA 100 - ACME LTDA", 0, 100),
				ledgerRow("FATURA 100 - ACME LTDA", 0, 100),
				ledgerRow("FATURA 200 - BETA EPP", 5, 0),
				ledgerRow("FATURA 300 - DELTA LTDA", 0, 10),
				ledgerRow("FATURA 300 - DELTA LTDA", 10, 0),
				ledgerRow("Tarifa bancaria", 3, 0),
			},
		}},
		Register: []models.RawRecord{registerRow("GAMA SERVICOS ME", "NF 300", 50)},
	}

	res := ProcessFile(in, BuildLookup(nil), PipelineOptions{DropZeroGroupTotals: true})

	if len(res.Records) != 4 {
		t.Fatalf("expected 4 records, got %d: %+v", len(res.Records), res.Records)
	}
	for _, r := range res.Records {
		if r.TotalValue < 0 {
			t.Errorf("negative total reached the output: %+v", r)
		}
		if r.Counterparty == "DELTA LTDA" {
			t.Errorf("zero group total should have been dropped: %+v", r)
		}
	}
	if math.Abs(res.Total-950) > 0.001 {
		t.Errorf("Total = %v, want 950", res.Total)
	}

	want := FileStats{
		LedgerRows:      7,
		RegisterRows:    1,
		Unresolved:      1,
		ZeroTotals:      2,
		Grouped:         5,
		NegativeDropped: 1,
	}
	if res.Stats != want {
		t.Errorf("Stats = %+v, want %+v", res.Stats, want)
	}
}

func TestProcessFileSuppressesRegisteredZeroSumCounterparty(t *testing.T) {
	in := FileInput{
		Name: "obra-02",
		Ledger: []models.Sheet{{
			Name: "Plan1",
			Records: []models.RawRecord{
				ledgerRow("FATURA 1 - X LTDA", 0, 20),
				ledgerRow("FATURA 2 - X LTDA", 20, 0),
			},
		}},
	}
	lookup := BuildLookup(map[string][]models.RawRecord{
		"obra-02": {registerRow("x ltda", "1", 20)},
	})

	res := ProcessFile(in, lookup, PipelineOptions{})
	if len(res.Records) != 0 {
		t.Errorf("expected X LTDA to be suppressed, got %+v", res.Records)
	}
	if res.Stats.Suppressed != 2 {
		t.Errorf("Suppressed = %d, want 2", res.Stats.Suppressed)
	}
}

func TestProcessAll(t *testing.T) {
	inputs := []FileInput{
		{Name: "a", Register: []models.RawRecord{registerRow("ACME LTDA", "1", 10)}},
		{Name: "b", Register: []models.RawRecord{registerRow("BETA EPP", "2", 20)}},
		{Name: "c"},
	}

	var done atomic.Int32
	opts := PipelineOptions{OnFileDone: func(FileResult) { done.Add(1) }}
	results, err := ProcessAll(context.Background(), inputs, BuildLookup(nil), opts, 2)
	if err != nil {
		t.Fatalf("ProcessAll failed: %v", err)
	}
	if got := done.Load(); got != int32(len(inputs)) {
		t.Errorf("OnFileDone called %d times, want %d", got, len(inputs))
	}
	for i, r := range results {
		if r.Name != inputs[i].Name {
			t.Errorf("result %d is %q, want %q", i, r.Name, inputs[i].Name)
		}
	}
	if results[1].Total != 20 || len(results[2].Records) != 0 {
		t.Errorf("unexpected results: %+v", results)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := ProcessAll(ctx, inputs, BuildLookup(nil), PipelineOptions{}, 1); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
