package matching

import (
	"fmt"
	"strings"

	"ledger-reconciliation-backend/internal/models"
	"ledger-reconciliation-backend/internal/utils"
)

type Pass string

const (
	PassSuppression   Pass = "cross_source_suppression"
	PassDeduplication Pass = "exact_value_deduplication"
	PassConflict      Pass = "same_key_conflict"
	PassCancellation  Pass = "opposing_value_cancellation"
)

// Decision records why a grouped record was removed.
type Decision struct {
	Pass   Pass                 `json:"pass"`
	Action string               `json:"action"`
	Record models.GroupedRecord `json:"record"`
	Detail string               `json:"detail"`
}

type Result struct {
	Records   []models.GroupedRecord
	Decisions []Decision
}

// Reconcile runs the four reconciliation passes over the grouped records of
// one file. The lookup is only read.
func Reconcile(records []models.GroupedRecord, lookup Lookup) Result {
	var res Result
	kept := records

	var decisions []Decision
	kept, decisions = suppressZeroSumCounterparties(kept, lookup)
	res.Decisions = append(res.Decisions, decisions...)

	kept, decisions = deduplicateExactValues(kept)
	res.Decisions = append(res.Decisions, decisions...)

	kept, decisions = resolveSameKeyConflicts(kept)
	res.Decisions = append(res.Decisions, decisions...)

	kept, decisions = cancelOpposingValues(kept)
	res.Decisions = append(res.Decisions, decisions...)

	res.Records = kept
	return res
}

// suppressZeroSumCounterparties drops every ledger record of a counterparty
// whose ledger values net to zero when the contract register already lists
// one of its documents.
func suppressZeroSumCounterparties(records []models.GroupedRecord, lookup Lookup) ([]models.GroupedRecord, []Decision) {
	values := make(map[string][]float64)
	registered := make(map[string]bool)
	for _, r := range records {
		if r.Source != models.SourceLedger {
			continue
		}
		key := normalizeCounterparty(r.Counterparty)
		values[key] = append(values[key], r.UnitValue)
		if lookup.Contains(r.Counterparty, r.DocumentID) {
			registered[key] = true
		}
	}

	suppressed := make(map[string]bool)
	for key, vals := range values {
		if registered[key] && utils.NearlyZero(utils.SumFloats(vals...)) {
			suppressed[key] = true
		}
	}
	if len(suppressed) == 0 {
		return records, nil
	}

	kept := make([]models.GroupedRecord, 0, len(records))
	var decisions []Decision
	for _, r := range records {
		if r.Source == models.SourceLedger && suppressed[normalizeCounterparty(r.Counterparty)] {
			decisions = append(decisions, Decision{
				Pass:   PassSuppression,
				Action: "suppressed",
				Record: r,
				Detail: "ledger values net to zero and a document is in the contract register",
			})
			continue
		}
		kept = append(kept, r)
	}
	return kept, decisions
}

type dedupKey struct {
	documentID   string
	counterparty string
	unit         float64
	total        float64
}

// deduplicateExactValues keeps one record per exact (document, counterparty,
// unit, total) key, preferring the ledger. Only records whose unit and total
// are identical take part.
func deduplicateExactValues(records []models.GroupedRecord) ([]models.GroupedRecord, []Decision) {
	chosen := make(map[dedupKey]int)
	for i, r := range records {
		if r.UnitValue != r.TotalValue {
			continue
		}
		k := dedupKeyOf(r)
		j, seen := chosen[k]
		if !seen || (records[j].Source != models.SourceLedger && r.Source == models.SourceLedger) {
			chosen[k] = i
		}
	}

	kept := make([]models.GroupedRecord, 0, len(records))
	var decisions []Decision
	for i, r := range records {
		if r.UnitValue == r.TotalValue {
			if j := chosen[dedupKeyOf(r)]; j != i {
				decisions = append(decisions, Decision{
					Pass:   PassDeduplication,
					Action: "deduplicated",
					Record: r,
					Detail: fmt.Sprintf("duplicate of %s record from sheet %q", records[j].Source, records[j].Sheet),
				})
				continue
			}
		}
		kept = append(kept, r)
	}
	return kept, decisions
}

func dedupKeyOf(r models.GroupedRecord) dedupKey {
	return dedupKey{
		documentID:   r.DocumentID,
		counterparty: strings.ToUpper(strings.TrimSpace(r.Counterparty)),
		unit:         r.UnitValue,
		total:        r.TotalValue,
	}
}

type conflictKey struct {
	documentID string
	unit       float64
}

var legalEntitySuffixes = []string{"LTDA", "S.A", "S/A"}

func hasLegalEntitySuffix(counterparty string) bool {
	upper := strings.ToUpper(counterparty)
	for _, s := range legalEntitySuffixes {
		if strings.Contains(upper, s) {
			return true
		}
	}
	return false
}

// resolveSameKeyConflicts collapses records sharing a document id and unit
// value but spelled with different counterparty names. The first name without
// a legal-entity suffix wins, otherwise the first record.
func resolveSameKeyConflicts(records []models.GroupedRecord) ([]models.GroupedRecord, []Decision) {
	groups := make(map[conflictKey][]int)
	for i, r := range records {
		k := conflictKey{documentID: r.DocumentID, unit: r.UnitValue}
		groups[k] = append(groups[k], i)
	}

	drop := make(map[int]int)
	for _, members := range groups {
		if len(members) < 2 {
			continue
		}
		names := make(map[string]struct{})
		for _, i := range members {
			names[strings.ToUpper(strings.TrimSpace(records[i].Counterparty))] = struct{}{}
		}
		if len(names) <= 1 {
			continue
		}

		winner := -1
		for _, i := range members {
			if !hasLegalEntitySuffix(records[i].Counterparty) {
				winner = i
				break
			}
		}
		if winner < 0 {
			winner = members[0]
		}
		for _, i := range members {
			if i != winner {
				drop[i] = winner
			}
		}
	}
	if len(drop) == 0 {
		return records, nil
	}

	kept := make([]models.GroupedRecord, 0, len(records)-len(drop))
	var decisions []Decision
	for i, r := range records {
		if w, ok := drop[i]; ok {
			decisions = append(decisions, Decision{
				Pass:   PassConflict,
				Action: "conflict_dropped",
				Record: r,
				Detail: fmt.Sprintf("same document and value kept under %q", records[w].Counterparty),
			})
			continue
		}
		kept = append(kept, r)
	}
	return kept, decisions
}

// cancelOpposingValues removes pairs of records of the same counterparty whose
// values cancel out. Pairing is greedy: each record takes the first later
// partner that offsets it. Division records are set aside and appended back
// untouched.
func cancelOpposingValues(records []models.GroupedRecord) ([]models.GroupedRecord, []Decision) {
	var divisions []models.GroupedRecord
	groups := make(map[string][]int)
	var order []string
	for i, r := range records {
		if r.Rule == models.RuleEqualValuesDivision {
			continue
		}
		key := normalizeCounterparty(r.Counterparty)
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], i)
	}

	cancelled := make(map[int]bool)
	var decisions []Decision
	for _, key := range order {
		members := groups[key]
		for a := 0; a < len(members); a++ {
			i := members[a]
			if cancelled[i] {
				continue
			}
			for b := a + 1; b < len(members); b++ {
				j := members[b]
				if cancelled[j] || !utils.NearlyZero(records[i].UnitValue+records[j].UnitValue) {
					continue
				}
				cancelled[i], cancelled[j] = true, true
				detail := fmt.Sprintf("%.2f offsets %.2f", records[i].UnitValue, records[j].UnitValue)
				decisions = append(decisions,
					Decision{Pass: PassCancellation, Action: "cancelled", Record: records[i], Detail: detail},
					Decision{Pass: PassCancellation, Action: "cancelled", Record: records[j], Detail: detail},
				)
				break
			}
		}
	}

	kept := make([]models.GroupedRecord, 0, len(records))
	for i, r := range records {
		switch {
		case r.Rule == models.RuleEqualValuesDivision:
			divisions = append(divisions, r)
		case !cancelled[i]:
			kept = append(kept, r)
		}
	}
	return append(kept, divisions...), decisions
}

// FilterNegative drops records whose total value is below zero.
func FilterNegative(records []models.GroupedRecord) []models.GroupedRecord {
	kept := make([]models.GroupedRecord, 0, len(records))
	for _, r := range records {
		if r.TotalValue >= 0 {
			kept = append(kept, r)
		}
	}
	return kept
}

// Total is the file-level sum of total values, rounded to cents.
func Total(records []models.GroupedRecord) float64 {
	values := make([]float64, len(records))
	for i, r := range records {
		values[i] = r.TotalValue
	}
	return utils.Round2(utils.SumFloats(values...))
}
