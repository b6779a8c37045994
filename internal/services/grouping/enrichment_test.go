package grouping

import (
	"math"
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

func TestEnrichLedger(t *testing.T) {
	rows := []models.RawRecord{
		ledgerRow("FATURA 10 - ACME LTDA", 0, 100),
		ledgerRow("FATURA 10 - ACME LTDA", 0, 50.5),
		ledgerRow("FATURA 10 - BETA EPP", 30, 0),
		ledgerRow("FATURA 010", 0, 20),
		ledgerRow("Tarifa bancaria", 5, 0),
	}

	got := EnrichLedger(rows)
	if len(got) != len(rows) {
		t.Fatalf("expected %d records, got %d", len(rows), len(got))
	}

	tests := []struct {
		name             string
		index            int
		wantDocumentID   string
		wantCounterparty string
		wantNet          float64
		wantGroupTotal   float64
	}{
		{"first ACME row", 0, "10", "ACME LTDA", 100, 150.5},
		{"second ACME row", 1, "10", "ACME LTDA", 50.5, 150.5},
		{"BETA is totalled on its own", 2, "10", "BETA EPP", -30, -30},
		{"no counterparty groups by document only", 3, "10", "", 20, 140.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := got[tt.index]
			if rec.DocumentID != tt.wantDocumentID {
				t.Errorf("DocumentID = %q, want %q", rec.DocumentID, tt.wantDocumentID)
			}
			if rec.Counterparty != tt.wantCounterparty {
				t.Errorf("Counterparty = %q, want %q", rec.Counterparty, tt.wantCounterparty)
			}
			if rec.NetAmount == nil || math.Abs(*rec.NetAmount-tt.wantNet) > 0.001 {
				t.Errorf("NetAmount = %v, want %v", rec.NetAmount, tt.wantNet)
			}
			if rec.GroupTotal == nil || math.Abs(*rec.GroupTotal-tt.wantGroupTotal) > 0.001 {
				t.Errorf("GroupTotal = %v, want %v", rec.GroupTotal, tt.wantGroupTotal)
			}
		})
	}

	t.Run("unresolved document leaves amounts absent", func(t *testing.T) {
		rec := got[4]
		if rec.DocumentID != "" || rec.NetAmount != nil || rec.GroupTotal != nil {
			t.Errorf("expected no document, net or total, got %q %v %v", rec.DocumentID, rec.NetAmount, rec.GroupTotal)
		}
		if rec.Groupable() {
			t.Error("record without document id must not be groupable")
		}
	})
}

func TestNetAmountMissingSide(t *testing.T) {
	rec := models.RawRecord{Credit: amount(10)}
	if got := NetAmount(rec); got != 0 {
		t.Errorf("NetAmount with missing debit = %v, want 0", got)
	}
}

func TestEnrichContractRegister(t *testing.T) {
	rows := []models.RawRecord{
		{Source: models.SourceContractRegister, Sheet: "Fornecedores", Description: " GAMA SERVICOS ", Reference: "NF-00123", Amount: amount(99.9)},
		{Source: models.SourceContractRegister, Sheet: "Fornecedores", Description: "DELTA", Reference: "s/n", Amount: amount(10)},
	}

	got := EnrichContractRegister(rows)

	if got[0].DocumentID != "123" || got[0].Counterparty != "GAMA SERVICOS" {
		t.Errorf("got (%q, %q), want (123, GAMA SERVICOS)", got[0].DocumentID, got[0].Counterparty)
	}
	if got[0].NetAmount == nil || *got[0].NetAmount != 99.9 {
		t.Errorf("NetAmount = %v, want 99.9", got[0].NetAmount)
	}
	if got[0].GroupTotal != nil {
		t.Error("register rows never carry a group total")
	}
	if got[1].DocumentID != "" {
		t.Errorf("expected absent document id, got %q", got[1].DocumentID)
	}
}

func TestDocumentIDFromReference(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"123", "123", true},
		{"NF-00123", "123", true},
		{"12/34", "1234", true},
		{"000", "0", true},
		{"", "", false},
		{"sem numero", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := DocumentIDFromReference(tt.in)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("DocumentIDFromReference(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}
