package repository

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"ledger-reconciliation-backend/internal/models"
)

type RecordRepository struct {
	db *gorm.DB
}

func NewRecordRepository(db *gorm.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

// WithTx returns a repository bound to an open transaction.
func (r *RecordRepository) WithTx(tx *gorm.DB) *RecordRepository {
	return &RecordRepository{db: tx}
}

func (r *RecordRepository) CreateRecords(records []models.ReconciledRecord) error {
	if len(records) == 0 {
		return nil
	}
	return r.db.CreateInBatches(records, 500).Error
}

func (r *RecordRepository) CreateFile(file *models.ReconciledFile) error {
	return r.db.Create(file).Error
}

func (r *RecordRepository) CreateAuditLogs(logs []models.MatchAuditLog) error {
	if len(logs) == 0 {
		return nil
	}
	return r.db.CreateInBatches(logs, 500).Error
}

type RecordFilter struct {
	Status string
	Rule   string
	Cursor string
	Search string
	Limit  int
}

// List pages through the records of a batch ordered by id. The returned
// cursor is empty when there are no more pages.
func (r *RecordRepository) List(batchID uuid.UUID, f RecordFilter) ([]models.ReconciledRecord, string, bool, error) {
	var records []models.ReconciledRecord
	query := r.db.
		Where("batch_id = ?", batchID).
		Order("id ASC").
		Limit(f.Limit + 1)

	if f.Status != "" && f.Status != "all" {
		query = query.Where("status = ?", f.Status)
	}
	if f.Rule != "" {
		query = query.Where("rule = ?", f.Rule)
	}
	if f.Cursor != "" {
		query = query.Where("id > ?", f.Cursor)
	}
	if f.Search != "" {
		likeQuery := "%" + f.Search + "%"
		query = query.Where(
			"counterparty ILIKE ? OR document_id LIKE ? OR CAST(total_value AS TEXT) LIKE ?",
			likeQuery, likeQuery, likeQuery,
		)
	}

	if err := query.Find(&records).Error; err != nil {
		return nil, "", false, err
	}

	hasMore := false
	var nextCursor string
	if len(records) > f.Limit {
		hasMore = true
		nextCursor = records[f.Limit-1].ID.String()
		records = records[:f.Limit]
	}
	return records, nextCursor, hasMore, nil
}

// ListForFile returns the records of one file in their original order.
func (r *RecordRepository) ListForFile(batchID uuid.UUID, fileName string) ([]models.ReconciledRecord, error) {
	var records []models.ReconciledRecord
	err := r.db.
		Where("batch_id = ? AND file_name = ?", batchID, fileName).
		Order("position ASC").
		Find(&records).Error
	return records, err
}

// GetFile returns gorm.ErrRecordNotFound when the batch has no such file.
func (r *RecordRepository) GetFile(batchID uuid.UUID, fileName string) (*models.ReconciledFile, error) {
	var file models.ReconciledFile
	if err := r.db.First(&file, "batch_id = ? AND file_name = ?", batchID, fileName).Error; err != nil {
		return nil, err
	}
	return &file, nil
}

func (r *RecordRepository) ListFiles(batchID uuid.UUID) ([]models.ReconciledFile, error) {
	var files []models.ReconciledFile
	err := r.db.Where("batch_id = ?", batchID).Order("file_name ASC").Find(&files).Error
	return files, err
}

func (r *RecordRepository) ListAuditLogs(batchID uuid.UUID) ([]models.MatchAuditLog, error) {
	var logs []models.MatchAuditLog
	err := r.db.Where("batch_id = ?", batchID).Order("created_at ASC, file_name ASC").Find(&logs).Error
	return logs, err
}

type RuleStat struct {
	Rule  string
	Count int64
	Sum   float64
}

func (r *RecordRepository) StatsByRule(batchID uuid.UUID) ([]RuleStat, error) {
	var rows []RuleStat
	err := r.db.Model(&models.ReconciledRecord{}).
		Where("batch_id = ?", batchID).
		Select("rule, COUNT(*) as count, COALESCE(SUM(total_value),0) as sum").
		Group("rule").
		Scan(&rows).Error
	return rows, err
}
