package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// MatchAuditLog records one record removed by the reconciliation engine.
type MatchAuditLog struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	BatchID      uuid.UUID `gorm:"index"`
	FileName     string
	Pass         string `gorm:"index"`
	Action       string
	DocumentID   string
	Counterparty string
	Reason       string
	Details      datatypes.JSON
	CreatedAt    time.Time
}
