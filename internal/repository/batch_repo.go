package repository

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"ledger-reconciliation-backend/internal/models"
)

type BatchRepository struct {
	db *gorm.DB
}

func NewBatchRepository(db *gorm.DB) *BatchRepository {
	return &BatchRepository{db: db}
}

func (r *BatchRepository) Create(batch *models.ReconciliationBatch) error {
	return r.db.Create(batch).Error
}

// GetByID returns gorm.ErrRecordNotFound when the batch does not exist.
func (r *BatchRepository) GetByID(id uuid.UUID) (*models.ReconciliationBatch, error) {
	var batch models.ReconciliationBatch
	if err := r.db.First(&batch, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &batch, nil
}

func (r *BatchRepository) UpdateProgress(id uuid.UUID, processedFiles int) error {
	return r.db.Model(&models.ReconciliationBatch{}).
		Where("id = ?", id).
		Update("processed_files", processedFiles).
		Error
}

func (r *BatchRepository) MarkCompleted(id uuid.UUID, processedFiles, records, discrepancies int) error {
	return r.db.Model(&models.ReconciliationBatch{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"processed_files":   processedFiles,
			"record_count":      records,
			"discrepancy_count": discrepancies,
			"status":            models.BatchStatusCompleted,
			"completed_at":      time.Now(),
		}).Error
}

func (r *BatchRepository) MarkFailed(id uuid.UUID, reason string) error {
	return r.db.Model(&models.ReconciliationBatch{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":       models.BatchStatusFailed,
			"error":        reason,
			"completed_at": time.Now(),
		}).Error
}
