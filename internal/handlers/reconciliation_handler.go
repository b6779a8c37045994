package handler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"ledger-reconciliation-backend/internal/ingest"
	"ledger-reconciliation-backend/internal/models"
	"ledger-reconciliation-backend/internal/repository"
	service "ledger-reconciliation-backend/internal/services/reconciliation"
)

const (
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	defaultPageSize = 50
	maxPageSize     = 500
)

// ReconciliationService is the part of the reconciliation service the HTTP
// layer depends on.
type ReconciliationService interface {
	CreateBatch(filename string, totalFiles int) (*models.ReconciliationBatch, error)
	ProcessUpload(ctx context.Context, batchID uuid.UUID, ledger, register []service.UploadedFile) error
	ImportContractRegister(file service.UploadedFile) ([]models.RawRecord, int64, error)
	GetProgress(batchID uuid.UUID) (service.Progress, error)
	ListRecords(batchID uuid.UUID, filter repository.RecordFilter) ([]models.ReconciledRecord, string, bool, error)
	ListFiles(batchID uuid.UUID) ([]models.ReconciledFile, error)
	ListAuditLogs(batchID uuid.UUID) ([]models.MatchAuditLog, error)
	GetBatchStatsCache(batchID uuid.UUID) service.BatchStats
	ExportFile(batchID uuid.UUID, fileName string, w io.Writer) error
}

type ReconciliationHandler struct {
	service       ReconciliationService
	maxUploadSize int64
}

func NewReconciliationHandler(s ReconciliationService, maxUploadSize int64) *ReconciliationHandler {
	return &ReconciliationHandler{service: s, maxUploadSize: maxUploadSize}
}

// Upload accepts ledger workbooks (form field "ledger") and optional contract
// register workbooks ("register"), creates a batch and reconciles it in the
// background.
func (h *ReconciliationHandler) Upload(c *gin.Context) {
	form, err := h.multipartForm(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ledger, err := readUploadedFiles(form.File["ledger"])
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(ledger) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "at least one ledger file required"})
		return
	}
	register, err := readUploadedFiles(form.File["register"])
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	batch, err := h.service.CreateBatch(ledger[0].Name, len(ledger))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	go func() {
		if err := h.service.ProcessUpload(context.Background(), batch.ID, ledger, register); err != nil {
			slog.Error("background reconciliation failed", "batch_id", batch.ID, "error", err)
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{
		"batch_id": batch.ID.String(),
		"status":   batch.Status,
		"files":    len(ledger),
	})
}

// UploadContracts imports a contract register workbook (form field "file").
func (h *ReconciliationHandler) UploadContracts(c *gin.Context) {
	form, err := h.multipartForm(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	files, err := readUploadedFiles(form.File["file"])
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(files) != 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "exactly one file required"})
		return
	}

	rows, saved, err := h.service.ImportContractRegister(files[0])
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ingest.ErrSheetNotFound) || errors.Is(err, ingest.ErrMissingColumn) {
			status = http.StatusUnprocessableEntity
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"file":          files[0].Name,
		"rows":          len(rows),
		"entries_saved": saved,
	})
}

func (h *ReconciliationHandler) GetBatchProgress(c *gin.Context) {
	batchID, ok := parseBatchID(c)
	if !ok {
		return
	}
	progress, err := h.service.GetProgress(batchID)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := gin.H{
		"processed_files": progress.ProcessedFiles,
		"total_files":     progress.TotalFiles,
		"status":          progress.Status,
	}
	if progress.Status == models.BatchStatusCompleted {
		files, err := h.service.ListFiles(batchID)
		if err != nil {
			respondError(c, err)
			return
		}
		resp["files"] = files
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ReconciliationHandler) ListRecords(c *gin.Context) {
	batchID, ok := parseBatchID(c)
	if !ok {
		return
	}

	limit := defaultPageSize
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = min(n, maxPageSize)
	}

	items, nextCursor, hasMore, err := h.service.ListRecords(batchID, repository.RecordFilter{
		Status: c.Query("status"),
		Rule:   c.Query("rule"),
		Cursor: c.Query("cursor"),
		Search: c.Query("search"),
		Limit:  limit,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"items":       items,
		"next_cursor": nextCursor,
		"has_more":    hasMore,
		"stats":       h.service.GetBatchStatsCache(batchID),
	})
}

func (h *ReconciliationHandler) ListAuditLogs(c *gin.Context) {
	batchID, ok := parseBatchID(c)
	if !ok {
		return
	}
	logs, err := h.service.ListAuditLogs(batchID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": logs})
}

// ExportFile downloads the reconciled workbook of one file of a batch.
func (h *ReconciliationHandler) ExportFile(c *gin.Context) {
	batchID, ok := parseBatchID(c)
	if !ok {
		return
	}
	fileName := c.Param("file")

	var buf bytes.Buffer
	if err := h.service.ExportFile(batchID, fileName, &buf); err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName+".xlsx"))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

func (h *ReconciliationHandler) multipartForm(c *gin.Context) (*multipart.Form, error) {
	if h.maxUploadSize > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadSize)
	}
	form, err := c.MultipartForm()
	if err != nil {
		return nil, fmt.Errorf("invalid multipart upload: %w", err)
	}
	return form, nil
}

func readUploadedFiles(headers []*multipart.FileHeader) ([]service.UploadedFile, error) {
	files := make([]service.UploadedFile, 0, len(headers))
	for _, fh := range headers {
		if !ingest.IsWorkbook(fh.Filename) {
			return nil, fmt.Errorf("%s is not an .xlsx workbook", fh.Filename)
		}
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", fh.Filename, err)
		}
		content, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", fh.Filename, err)
		}
		slog.Debug("received file", "file", fh.Filename, "size", fh.Size)
		files = append(files, service.UploadedFile{Name: fh.Filename, Content: content})
	}
	return files, nil
}

func parseBatchID(c *gin.Context) (uuid.UUID, bool) {
	batchID, err := uuid.Parse(c.Param("batchId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid batch ID"})
		return uuid.Nil, false
	}
	return batchID, true
}

func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrBatchNotFound), errors.Is(err, service.ErrFileNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
