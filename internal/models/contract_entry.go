package models

import (
	"time"

	"github.com/google/uuid"
)

// ContractEntry is one contract register row with resolved keys. Entries
// across all uploaded registers back the cross-source lookup.
type ContractEntry struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey"`
	FileName        string    `gorm:"uniqueIndex:idx_contract_entry_key"`
	DocumentID      string    `gorm:"uniqueIndex:idx_contract_entry_key"`
	CounterpartyKey string    `gorm:"uniqueIndex:idx_contract_entry_key"`
	Counterparty    string
	Description     string
	Reference       string
	Amount          float64
	CreatedAt       time.Time
}
