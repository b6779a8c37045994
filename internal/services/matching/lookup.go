package matching

import (
	"strings"

	"ledger-reconciliation-backend/internal/models"
)

type lookupKey struct {
	counterparty string
	documentID   string
}

// Lookup is the set of (counterparty, document id) pairs known to the
// contract register. It is built once and never mutated afterwards.
type Lookup struct {
	pairs map[lookupKey]struct{}
}

// NewLookup indexes the register records that resolved both keys.
func NewLookup(records []models.EnrichedRecord) Lookup {
	pairs := make(map[lookupKey]struct{}, len(records))
	for _, r := range records {
		if !r.Groupable() {
			continue
		}
		pairs[lookupKey{normalizeCounterparty(r.Counterparty), r.DocumentID}] = struct{}{}
	}
	return Lookup{pairs: pairs}
}

// Contains matches counterparty names case-insensitively.
func (l Lookup) Contains(counterparty, documentID string) bool {
	if l.pairs == nil {
		return false
	}
	_, ok := l.pairs[lookupKey{normalizeCounterparty(counterparty), documentID}]
	return ok
}

func (l Lookup) Len() int {
	return len(l.pairs)
}

func normalizeCounterparty(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
