package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	RecordStatusReconciled  = "reconciled"
	RecordStatusDiscrepancy = "discrepancy"
)

// ReconciledRecord is a persisted GroupedRecord. Position keeps the order the
// record had in its file so exports reproduce it.
type ReconciledRecord struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	BatchID      uuid.UUID `gorm:"index"`
	FileName     string    `gorm:"index"`
	Position     int
	DocumentID   string `gorm:"index"`
	Counterparty string `gorm:"index"`
	UnitValue    float64
	TotalValue   float64
	Source       string
	Sheet        string
	Rule         string `gorm:"index"`
	Status       string `gorm:"index"`
	CreatedAt    time.Time
}

func NewReconciledRecord(batchID uuid.UUID, fileName string, position int, g GroupedRecord) ReconciledRecord {
	status := RecordStatusReconciled
	if g.Discrepancy() {
		status = RecordStatusDiscrepancy
	}
	return ReconciledRecord{
		ID:           uuid.New(),
		BatchID:      batchID,
		FileName:     fileName,
		Position:     position,
		DocumentID:   g.DocumentID,
		Counterparty: g.Counterparty,
		UnitValue:    g.UnitValue,
		TotalValue:   g.TotalValue,
		Source:       string(g.Source),
		Sheet:        g.Sheet,
		Rule:         string(g.Rule),
		Status:       status,
		CreatedAt:    time.Now(),
	}
}

// Grouped converts the row back to the value emitted by the engine.
func (r ReconciledRecord) Grouped() GroupedRecord {
	return GroupedRecord{
		DocumentID:   r.DocumentID,
		Counterparty: r.Counterparty,
		UnitValue:    r.UnitValue,
		TotalValue:   r.TotalValue,
		Source:       Source(r.Source),
		Sheet:        r.Sheet,
		Rule:         Rule(r.Rule),
	}
}
