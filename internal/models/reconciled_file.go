package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ReconciledFile is the per-file summary of a batch: the file total written
// to the export and the pipeline counters.
type ReconciledFile struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	BatchID       uuid.UUID `gorm:"uniqueIndex:idx_reconciled_file"`
	FileName      string    `gorm:"uniqueIndex:idx_reconciled_file"`
	RecordCount   int
	Discrepancies int
	Total         float64
	Stats         datatypes.JSON
	CreatedAt     time.Time
}
