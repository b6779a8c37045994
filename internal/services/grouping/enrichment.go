package grouping

import (
	"strings"

	"ledger-reconciliation-backend/internal/models"
	"ledger-reconciliation-backend/internal/services/parsing"
	"ledger-reconciliation-backend/internal/utils"
)

// EnrichLedger parses and resolves every description of one ledger sheet and
// fills in net amounts and per-(document, counterparty) group totals.
// Records must all come from the same sheet.
func EnrichLedger(records []models.RawRecord) []models.EnrichedRecord {
	enriched := make([]models.EnrichedRecord, len(records))
	for i, rec := range records {
		ref := parsing.Resolve(rec.Description)
		e := models.EnrichedRecord{
			RawRecord:    rec,
			Segments:     ref.Segments,
			Counterparty: ref.Counterparty,
		}
		if id, ok := DocumentIDFromReference(ref.DocumentID); ok {
			e.DocumentID = id
			net := NetAmount(rec)
			e.NetAmount = &net
		}
		enriched[i] = e
	}

	byDocument := make(map[string][]float64)
	byPair := make(map[pairKey][]float64)
	for _, e := range enriched {
		if e.DocumentID == "" {
			continue
		}
		byDocument[e.DocumentID] = append(byDocument[e.DocumentID], *e.NetAmount)
		if e.Counterparty != "" {
			k := pairKey{documentID: e.DocumentID, counterparty: e.Counterparty}
			byPair[k] = append(byPair[k], *e.NetAmount)
		}
	}

	for i := range enriched {
		e := &enriched[i]
		if e.DocumentID == "" {
			continue
		}
		amounts := byDocument[e.DocumentID]
		if e.Counterparty != "" {
			amounts = byPair[pairKey{documentID: e.DocumentID, counterparty: e.Counterparty}]
		}
		total := utils.Round2(utils.SumFloats(amounts...))
		e.GroupTotal = &total
	}
	return enriched
}

// EnrichContractRegister maps register rows onto the enriched shape. The
// identifier column carries the document id and the description is the
// counterparty name. Register rows never get a group total.
func EnrichContractRegister(records []models.RawRecord) []models.EnrichedRecord {
	enriched := make([]models.EnrichedRecord, len(records))
	for i, rec := range records {
		e := models.EnrichedRecord{
			RawRecord:    rec,
			Counterparty: strings.TrimSpace(rec.Description),
		}
		if id, ok := DocumentIDFromReference(rec.Reference); ok {
			e.DocumentID = id
		}
		if rec.Amount != nil {
			amount := *rec.Amount
			e.NetAmount = &amount
		}
		enriched[i] = e
	}
	return enriched
}

// NetAmount is credit minus debit. A row missing either side nets to zero.
func NetAmount(rec models.RawRecord) float64 {
	if rec.Debit == nil || rec.Credit == nil {
		return 0
	}
	return utils.SumFloats(*rec.Credit, -*rec.Debit)
}

// DocumentIDFromReference keeps only the digits of s and drops leading zeros,
// so "NF-00123" and "123" resolve to the same document.
func DocumentIDFromReference(s string) (string, bool) {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
	if digits == "" {
		return "", false
	}
	if trimmed := strings.TrimLeft(digits, "0"); trimmed != "" {
		return trimmed, true
	}
	return "0", true
}

type pairKey struct {
	documentID   string
	counterparty string
}
