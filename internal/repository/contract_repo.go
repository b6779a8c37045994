package repository

import (
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ledger-reconciliation-backend/internal/models"
)

type ContractRepository struct {
	db *gorm.DB
}

func NewContractRepository(db *gorm.DB) *ContractRepository {
	return &ContractRepository{db: db}
}

// UpsertEntries inserts register entries, refreshing the amount and text of
// entries already stored under the same (file, document, counterparty) key.
// Keys must be unique within entries.
func (r *ContractRepository) UpsertEntries(entries []models.ContractEntry) (int64, error) {
	if len(entries) == 0 {
		return 0, nil
	}
	result := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "file_name"}, {Name: "document_id"}, {Name: "counterparty_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"counterparty", "description", "reference", "amount"}),
	}).CreateInBatches(entries, 500)
	return result.RowsAffected, result.Error
}

func (r *ContractRepository) GetAll() ([]models.ContractEntry, error) {
	var entries []models.ContractEntry
	err := r.db.Order("file_name, document_id").Find(&entries).Error
	return entries, err
}

// FindByCounterparty performs a case-insensitive substring search.
func (r *ContractRepository) FindByCounterparty(name string) ([]models.ContractEntry, error) {
	var entries []models.ContractEntry
	likeName := "%" + strings.ToLower(strings.TrimSpace(name)) + "%"
	err := r.db.Where("counterparty_key LIKE ?", likeName).
		Order("document_id").
		Find(&entries).Error
	return entries, err
}
