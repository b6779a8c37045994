package reconciliation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"gorm.io/gorm"

	"ledger-reconciliation-backend/internal/export"
	"ledger-reconciliation-backend/internal/ingest"
	"ledger-reconciliation-backend/internal/metrics"
	"ledger-reconciliation-backend/internal/models"
	"ledger-reconciliation-backend/internal/repository"
	"ledger-reconciliation-backend/internal/services/grouping"
	"ledger-reconciliation-backend/internal/services/matching"
)

var (
	ErrBatchNotFound = errors.New("batch not found")
	ErrFileNotFound  = errors.New("file not found in batch")
	ErrNoLedgerFiles = errors.New("no ledger workbook uploaded")
)

const lookupCacheKey = "contract-lookup"

// UploadedFile is a workbook held in memory until the background run reads it.
type UploadedFile struct {
	Name    string
	Content []byte
}

type ServiceOptions struct {
	Register ingest.RegisterOptions
	Pipeline PipelineOptions
	Workers  int
	CacheTTL time.Duration
}

type Progress struct {
	ProcessedFiles int    `json:"processed_files"`
	TotalFiles     int    `json:"total_files"`
	Status         string `json:"status"`
}

type ReconciliationService struct {
	batchRepo     *repository.BatchRepository
	contractRepo  *repository.ContractRepository
	recordRepo    *repository.RecordRepository
	db            *gorm.DB
	opts          ServiceOptions
	cache         *cache.Cache // stats and contract lookup
	progressCache sync.Map     // batchID -> *Progress
	progressMu    sync.Mutex
}

func NewReconciliationService(
	batchRepo *repository.BatchRepository,
	contractRepo *repository.ContractRepository,
	recordRepo *repository.RecordRepository,
	db *gorm.DB,
	opts ServiceOptions,
) *ReconciliationService {
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &ReconciliationService{
		batchRepo:    batchRepo,
		contractRepo: contractRepo,
		recordRepo:   recordRepo,
		db:           db,
		opts:         opts,
		cache:        cache.New(ttl, 2*ttl),
	}
}

// CreateBatch creates a new ReconciliationBatch in DB
func (s *ReconciliationService) CreateBatch(filename string, totalFiles int) (*models.ReconciliationBatch, error) {
	now := time.Now()
	batch := &models.ReconciliationBatch{
		ID:         uuid.New(),
		Filename:   filename,
		TotalFiles: totalFiles,
		Status:     models.BatchStatusProcessing,
		StartedAt:  now,
		CreatedAt:  now,
	}
	if err := s.batchRepo.Create(batch); err != nil {
		return nil, fmt.Errorf("create batch: %w", err)
	}
	s.progressCache.Store(batch.ID, &Progress{TotalFiles: totalFiles, Status: models.BatchStatusProcessing})
	return batch, nil
}

// LoadContractLookup builds the cross-source lookup from every persisted
// register entry. The result is cached until the next register import.
func (s *ReconciliationService) LoadContractLookup() (matching.Lookup, error) {
	if v, ok := s.cache.Get(lookupCacheKey); ok {
		return v.(matching.Lookup), nil
	}
	entries, err := s.contractRepo.GetAll()
	if err != nil {
		return matching.Lookup{}, fmt.Errorf("load contract entries: %w", err)
	}
	lookup := lookupFromEntries(entries)
	s.cache.SetDefault(lookupCacheKey, lookup)
	slog.Info("contract lookup loaded", "entries", len(entries), "pairs", lookup.Len())
	return lookup, nil
}

// ImportContractRegister reads one register workbook and persists its
// resolvable rows. It returns the raw rows for use in the same run.
func (s *ReconciliationService) ImportContractRegister(file UploadedFile) ([]models.RawRecord, int64, error) {
	rows, err := ingest.ReadContractRegister(bytes.NewReader(file.Content), s.opts.Register)
	if err != nil {
		return nil, 0, fmt.Errorf("read contract register %q: %w", file.Name, err)
	}
	entries := contractEntries(ingest.FileStem(file.Name), rows)
	n, err := s.contractRepo.UpsertEntries(entries)
	if err != nil {
		return nil, 0, fmt.Errorf("save contract entries of %q: %w", file.Name, err)
	}
	s.cache.Delete(lookupCacheKey)
	slog.Info("contract register imported", "file", file.Name, "rows", len(rows), "entries", len(entries))
	return rows, n, nil
}

// ProcessUpload runs a whole batch: register files are imported first so the
// lookup covers them, then every ledger file goes through the pipeline and its
// results are stored. The batch is marked completed or failed before return.
func (s *ReconciliationService) ProcessUpload(ctx context.Context, batchID uuid.UUID, ledger, register []UploadedFile) error {
	start := time.Now()
	defer func() { metrics.BatchDuration.Observe(time.Since(start).Seconds()) }()

	err := s.processUpload(ctx, batchID, ledger, register)
	if err != nil {
		slog.Error("batch failed", "batch_id", batchID, "error", err)
		if markErr := s.MarkBatchFailed(batchID, err.Error()); markErr != nil {
			slog.Error("could not mark batch failed", "batch_id", batchID, "error", markErr)
		}
		return err
	}
	slog.Debug("batch timing", "batch_id", batchID, "duration_ms", time.Since(start).Milliseconds())
	return nil
}

func (s *ReconciliationService) processUpload(ctx context.Context, batchID uuid.UUID, ledger, register []UploadedFile) error {
	registerByStem := make(map[string][]models.RawRecord, len(register))
	for _, f := range register {
		rows, _, err := s.ImportContractRegister(f)
		if err != nil {
			return err
		}
		stem := ingest.FileStem(f.Name)
		registerByStem[stem] = append(registerByStem[stem], rows...)
	}

	lookup, err := s.LoadContractLookup()
	if err != nil {
		return err
	}

	inputs := make([]FileInput, 0, len(ledger))
	for _, f := range ledger {
		sheets, err := ingest.ReadLedgerWorkbook(bytes.NewReader(f.Content))
		if err != nil {
			metrics.FilesProcessed.WithLabelValues("failed").Inc()
			return fmt.Errorf("read ledger %q: %w", f.Name, err)
		}
		stem := ingest.FileStem(f.Name)
		inputs = append(inputs, FileInput{Name: stem, Ledger: sheets, Register: registerByStem[stem]})
	}
	if len(inputs) == 0 {
		return ErrNoLedgerFiles
	}

	var done atomic.Int32
	opts := s.opts.Pipeline
	opts.OnFileDone = func(FileResult) {
		s.UpdateBatchProgressCache(batchID, int(done.Add(1)))
	}
	results, err := ProcessAll(ctx, inputs, lookup, opts, s.opts.Workers)
	if err != nil {
		return fmt.Errorf("reconcile files: %w", err)
	}

	var records, discrepancies int
	for i, res := range results {
		if err := s.saveFileResult(batchID, res); err != nil {
			metrics.FilesProcessed.WithLabelValues("failed").Inc()
			return err
		}
		metrics.FilesProcessed.WithLabelValues("ok").Inc()
		records += len(res.Records)
		discrepancies += res.Stats.Discrepancies
		if err := s.batchRepo.UpdateProgress(batchID, i+1); err != nil {
			slog.Warn("could not update batch progress", "batch_id", batchID, "error", err)
		}
	}

	if err := s.MarkBatchCompleted(batchID, len(results), records, discrepancies); err != nil {
		return fmt.Errorf("complete batch: %w", err)
	}
	slog.Info("batch completed",
		"batch_id", batchID,
		"files", len(results),
		"records", records,
		"discrepancies", discrepancies)
	return nil
}

func (s *ReconciliationService) saveFileResult(batchID uuid.UUID, res FileResult) error {
	rows := make([]models.ReconciledRecord, len(res.Records))
	for i, r := range res.Records {
		rows[i] = models.NewReconciledRecord(batchID, res.Name, i, r)
		metrics.RecordsReconciled.WithLabelValues(string(r.Rule)).Inc()
	}
	for _, d := range res.Decisions {
		metrics.Decisions.WithLabelValues(string(d.Pass)).Inc()
	}

	stats, err := json.Marshal(res.Stats)
	if err != nil {
		return fmt.Errorf("encode stats of %q: %w", res.Name, err)
	}
	file := &models.ReconciledFile{
		ID:            uuid.New(),
		BatchID:       batchID,
		FileName:      res.Name,
		RecordCount:   len(res.Records),
		Discrepancies: res.Stats.Discrepancies,
		Total:         res.Total,
		Stats:         stats,
		CreatedAt:     time.Now(),
	}
	logs := auditLogs(batchID, res)

	err = s.db.Transaction(func(tx *gorm.DB) error {
		repo := s.recordRepo.WithTx(tx)
		if err := repo.CreateFile(file); err != nil {
			return err
		}
		if err := repo.CreateRecords(rows); err != nil {
			return err
		}
		return repo.CreateAuditLogs(logs)
	})
	if err != nil {
		return fmt.Errorf("save results of %q: %w", res.Name, err)
	}
	return nil
}

func (s *ReconciliationService) GetBatch(batchID uuid.UUID) (*models.ReconciliationBatch, error) {
	batch, err := s.batchRepo.GetByID(batchID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrBatchNotFound
	}
	return batch, err
}

// GetProgress prefers the in-memory progress of a running batch and falls
// back to the stored batch.
func (s *ReconciliationService) GetProgress(batchID uuid.UUID) (Progress, error) {
	if val, ok := s.progressCache.Load(batchID); ok {
		return *val.(*Progress), nil
	}
	batch, err := s.GetBatch(batchID)
	if err != nil {
		return Progress{}, err
	}
	return Progress{
		ProcessedFiles: batch.ProcessedFiles,
		TotalFiles:     batch.TotalFiles,
		Status:         batch.Status,
	}, nil
}

// UpdateBatchProgressCache is called from pipeline workers. The processed
// count never moves backwards.
func (s *ReconciliationService) UpdateBatchProgressCache(batchID uuid.UUID, processed int) {
	s.progressMu.Lock()
	defer s.progressMu.Unlock()

	val, _ := s.progressCache.LoadOrStore(batchID, &Progress{Status: models.BatchStatusProcessing})
	p := *val.(*Progress)
	if processed <= p.ProcessedFiles {
		return
	}
	p.ProcessedFiles = processed
	s.progressCache.Store(batchID, &p)
}

// MarkBatchCompleted persists the final counters and drops cached state.
func (s *ReconciliationService) MarkBatchCompleted(batchID uuid.UUID, files, records, discrepancies int) error {
	s.progressCache.Delete(batchID)
	s.cache.Delete(statsCacheKey(batchID))
	return s.batchRepo.MarkCompleted(batchID, files, records, discrepancies)
}

func (s *ReconciliationService) MarkBatchFailed(batchID uuid.UUID, reason string) error {
	s.progressCache.Delete(batchID)
	s.cache.Delete(statsCacheKey(batchID))
	return s.batchRepo.MarkFailed(batchID, reason)
}

func (s *ReconciliationService) ListRecords(batchID uuid.UUID, filter repository.RecordFilter) ([]models.ReconciledRecord, string, bool, error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	return s.recordRepo.List(batchID, filter)
}

func (s *ReconciliationService) ListFiles(batchID uuid.UUID) ([]models.ReconciledFile, error) {
	return s.recordRepo.ListFiles(batchID)
}

func (s *ReconciliationService) ListAuditLogs(batchID uuid.UUID) ([]models.MatchAuditLog, error) {
	return s.recordRepo.ListAuditLogs(batchID)
}

// ExportFile writes the workbook of one reconciled file to w.
func (s *ReconciliationService) ExportFile(batchID uuid.UUID, fileName string, w io.Writer) error {
	file, err := s.recordRepo.GetFile(batchID, fileName)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrFileNotFound
	}
	if err != nil {
		return err
	}
	rows, err := s.recordRepo.ListForFile(batchID, fileName)
	if err != nil {
		return err
	}
	grouped := make([]models.GroupedRecord, len(rows))
	for i, r := range rows {
		grouped[i] = r.Grouped()
	}
	return export.WriteWorkbook(w, grouped, file.Total)
}

type BatchStats struct {
	Total       int64   `json:"total"`
	TotalAmount float64 `json:"total_amount"`

	SingleRecordCount int64   `json:"single_record_count"`
	SingleRecordSum   float64 `json:"single_record_sum"`

	DivisionCount int64   `json:"equal_values_division_count"`
	DivisionSum   float64 `json:"equal_values_division_sum"`

	SumCount int64   `json:"different_values_sum_count"`
	SumSum   float64 `json:"different_values_sum_sum"`

	DiscrepancyCount int64   `json:"discrepancy_count"`
	DiscrepancySum   float64 `json:"discrepancy_sum"`
}

func (s *ReconciliationService) GetBatchStats(batchID uuid.UUID) (BatchStats, error) {
	rows, err := s.recordRepo.StatsByRule(batchID)
	if err != nil {
		return BatchStats{}, err
	}
	return buildStats(rows), nil
}

func (s *ReconciliationService) GetBatchStatsCache(batchID uuid.UUID) BatchStats {
	key := statsCacheKey(batchID)
	if val, ok := s.cache.Get(key); ok {
		return val.(BatchStats)
	}

	stats, err := s.GetBatchStats(batchID)
	if err != nil {
		slog.Warn("could not compute batch stats", "batch_id", batchID, "error", err)
		return BatchStats{}
	}
	s.cache.SetDefault(key, stats)
	return stats
}

func statsCacheKey(batchID uuid.UUID) string {
	return "stats:" + batchID.String()
}

func buildStats(rows []repository.RuleStat) BatchStats {
	var stats BatchStats
	for _, r := range rows {
		stats.Total += r.Count
		stats.TotalAmount += r.Sum

		switch models.Rule(r.Rule) {
		case models.RuleSingleRecord:
			stats.SingleRecordCount, stats.SingleRecordSum = r.Count, r.Sum
		case models.RuleEqualValuesDivision:
			stats.DivisionCount, stats.DivisionSum = r.Count, r.Sum
		case models.RuleDifferentValuesSum:
			stats.SumCount, stats.SumSum = r.Count, r.Sum
		case models.RuleDifferentValuesSumDiscrepancy:
			stats.DiscrepancyCount, stats.DiscrepancySum = r.Count, r.Sum
		}
	}
	return stats
}

// contractEntries keeps the register rows that resolve both keys, one entry
// per key with amounts summed.
func contractEntries(fileName string, rows []models.RawRecord) []models.ContractEntry {
	var entries []models.ContractEntry
	index := make(map[[2]string]int)
	for _, rec := range grouping.EnrichContractRegister(rows) {
		if !rec.Groupable() {
			continue
		}
		key := [2]string{rec.DocumentID, strings.ToLower(rec.Counterparty)}
		amount := 0.0
		if rec.NetAmount != nil {
			amount = *rec.NetAmount
		}
		if i, ok := index[key]; ok {
			entries[i].Amount += amount
			continue
		}
		index[key] = len(entries)
		entries = append(entries, models.ContractEntry{
			ID:              uuid.New(),
			FileName:        fileName,
			DocumentID:      rec.DocumentID,
			CounterpartyKey: key[1],
			Counterparty:    rec.Counterparty,
			Description:     rec.Description,
			Reference:       rec.Reference,
			Amount:          amount,
			CreatedAt:       time.Now(),
		})
	}
	return entries
}

func lookupFromEntries(entries []models.ContractEntry) matching.Lookup {
	records := make([]models.EnrichedRecord, len(entries))
	for i, e := range entries {
		records[i] = models.EnrichedRecord{
			RawRecord:    models.RawRecord{Source: models.SourceContractRegister},
			DocumentID:   e.DocumentID,
			Counterparty: e.Counterparty,
		}
	}
	return matching.NewLookup(records)
}

func auditLogs(batchID uuid.UUID, res FileResult) []models.MatchAuditLog {
	logs := make([]models.MatchAuditLog, 0, len(res.Decisions))
	now := time.Now()
	for _, d := range res.Decisions {
		details, err := json.Marshal(d.Record)
		if err != nil {
			slog.Warn("could not encode audit details", "file", res.Name, "error", err)
		}
		logs = append(logs, models.MatchAuditLog{
			ID:           uuid.New(),
			BatchID:      batchID,
			FileName:     res.Name,
			Pass:         string(d.Pass),
			Action:       d.Action,
			DocumentID:   d.Record.DocumentID,
			Counterparty: d.Record.Counterparty,
			Reason:       d.Detail,
			Details:      details,
			CreatedAt:    now,
		})
	}
	return logs
}
