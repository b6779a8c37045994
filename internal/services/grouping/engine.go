package grouping

import (
	"cmp"
	"log/slog"
	"math"
	"slices"

	"ledger-reconciliation-backend/internal/models"
	"ledger-reconciliation-backend/internal/utils"
)

type partitionKey struct {
	counterparty string
	documentID   string
}

// Group partitions records by (counterparty, document id) and applies one
// aggregation rule per partition. Records missing either key are skipped.
// Partitions are emitted in key order.
func Group(records []models.EnrichedRecord) []models.GroupedRecord {
	partitions := make(map[partitionKey][]models.EnrichedRecord)
	var keys []partitionKey
	for _, rec := range records {
		if !rec.Groupable() {
			continue
		}
		k := partitionKey{counterparty: rec.Counterparty, documentID: rec.DocumentID}
		if _, ok := partitions[k]; !ok {
			keys = append(keys, k)
		}
		partitions[k] = append(partitions[k], rec)
	}

	slices.SortFunc(keys, func(a, b partitionKey) int {
		if c := cmp.Compare(a.counterparty, b.counterparty); c != 0 {
			return c
		}
		return compareDocumentIDs(a.documentID, b.documentID)
	})

	var grouped []models.GroupedRecord
	for _, k := range keys {
		grouped = append(grouped, groupPartition(k, partitions[k])...)
	}
	return grouped
}

// compareDocumentIDs orders canonical digit strings numerically.
func compareDocumentIDs(a, b string) int {
	if c := cmp.Compare(len(a), len(b)); c != 0 {
		return c
	}
	return cmp.Compare(a, b)
}

func groupPartition(k partitionKey, recs []models.EnrichedRecord) []models.GroupedRecord {
	nets := make([]float64, len(recs))
	for i, r := range recs {
		nets[i] = utils.Deref(r.NetAmount)
	}

	first := recs[0]
	base := models.GroupedRecord{
		DocumentID:   k.documentID,
		Counterparty: k.counterparty,
		Source:       first.Source,
		Sheet:        first.Sheet,
	}

	if len(recs) == 1 {
		base.Rule = models.RuleSingleRecord
		base.UnitValue = utils.Round2(nets[0])
		base.TotalValue = base.UnitValue
		return []models.GroupedRecord{base}
	}

	sum := utils.SumFloats(nets...)
	recorded, ok := recordedTotal(recs)
	if !ok {
		recorded = sum
	}

	if unit, equal := commonTruncatedValue(nets); equal {
		if unit == 0 {
			slog.Debug("skipping division with zero unit value",
				"counterparty", k.counterparty, "document_id", k.documentID)
			return nil
		}
		count := int(math.Floor(math.Abs(recorded / unit)))
		base.Rule = models.RuleEqualValuesDivision
		base.UnitValue = utils.Round2(nets[0])
		base.TotalValue = utils.Round2(recorded)
		out := make([]models.GroupedRecord, count)
		for i := range out {
			out[i] = base
		}
		return out
	}

	base.UnitValue = utils.Round2(sum)
	base.TotalValue = utils.Round2(recorded)
	base.Rule = models.RuleDifferentValuesSum
	if !utils.NearlyEqual(sum, recorded) {
		base.Rule = models.RuleDifferentValuesSumDiscrepancy
		slog.Debug("partition sum does not match recorded total",
			"counterparty", k.counterparty, "document_id", k.documentID,
			"sum", base.UnitValue, "recorded", base.TotalValue)
	} else {
		base.TotalValue = base.UnitValue
	}
	return []models.GroupedRecord{base}
}

// commonTruncatedValue reports whether every value has the same integer part.
func commonTruncatedValue(values []float64) (float64, bool) {
	unit := math.Trunc(values[0])
	for _, v := range values[1:] {
		if math.Trunc(v) != unit {
			return 0, false
		}
	}
	return unit, true
}

// recordedTotal is the first group total present in the partition.
func recordedTotal(recs []models.EnrichedRecord) (float64, bool) {
	for _, r := range recs {
		if r.GroupTotal != nil {
			return *r.GroupTotal, true
		}
	}
	return 0, false
}
