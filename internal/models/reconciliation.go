package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	BatchStatusProcessing = "processing"
	BatchStatusCompleted  = "completed"
	BatchStatusFailed     = "failed"
)

type ReconciliationBatch struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey"`
	Filename         string
	TotalFiles       int
	ProcessedFiles   int
	RecordCount      int
	DiscrepancyCount int
	Status           string `gorm:"index"`
	Error            string
	StartedAt        time.Time
	CompletedAt      *time.Time
	CreatedAt        time.Time
}
