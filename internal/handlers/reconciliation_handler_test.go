package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"ledger-reconciliation-backend/internal/models"
	"ledger-reconciliation-backend/internal/repository"
	service "ledger-reconciliation-backend/internal/services/reconciliation"
)

type fakeService struct {
	batch     *models.ReconciliationBatch
	processed chan []service.UploadedFile
	progress  map[uuid.UUID]service.Progress
	filter    repository.RecordFilter
	exportErr error
}

func (f *fakeService) CreateBatch(filename string, totalFiles int) (*models.ReconciliationBatch, error) {
	f.batch = &models.ReconciliationBatch{ID: uuid.New(), Filename: filename, TotalFiles: totalFiles, Status: models.BatchStatusProcessing}
	return f.batch, nil
}

func (f *fakeService) ProcessUpload(_ context.Context, _ uuid.UUID, ledger, register []service.UploadedFile) error {
	f.processed <- append(ledger, register...)
	return nil
}

func (f *fakeService) ImportContractRegister(file service.UploadedFile) ([]models.RawRecord, int64, error) {
	return make([]models.RawRecord, 3), 2, nil
}

func (f *fakeService) GetProgress(batchID uuid.UUID) (service.Progress, error) {
	p, ok := f.progress[batchID]
	if !ok {
		return service.Progress{}, service.ErrBatchNotFound
	}
	return p, nil
}

func (f *fakeService) ListRecords(_ uuid.UUID, filter repository.RecordFilter) ([]models.ReconciledRecord, string, bool, error) {
	f.filter = filter
	return []models.ReconciledRecord{{DocumentID: "10"}}, "", false, nil
}

func (f *fakeService) ListFiles(uuid.UUID) ([]models.ReconciledFile, error) {
	return []models.ReconciledFile{{FileName: "janeiro", Total: 10}}, nil
}

func (f *fakeService) ListAuditLogs(uuid.UUID) ([]models.MatchAuditLog, error) {
	return nil, nil
}

func (f *fakeService) GetBatchStatsCache(uuid.UUID) service.BatchStats {
	return service.BatchStats{Total: 1}
}

func (f *fakeService) ExportFile(_ uuid.UUID, _ string, w io.Writer) error {
	if f.exportErr != nil {
		return f.exportErr
	}
	_, err := w.Write([]byte("xlsx"))
	return err
}

func newTestRouter(svc *fakeService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewReconciliationHandler(svc, 1<<20)
	r := gin.New()
	r.POST("/upload", h.Upload)
	r.POST("/contracts", h.UploadContracts)
	r.GET("/:batchId", h.GetBatchProgress)
	r.GET("/:batchId/records", h.ListRecords)
	r.GET("/:batchId/export/:file", h.ExportFile)
	return r
}

func multipartRequest(t *testing.T, url string, files map[string][]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for field, names := range files {
		for _, name := range names {
			part, err := w.CreateFormFile(field, name)
			if err != nil {
				t.Fatalf("create form file: %v", err)
			}
			fmt.Fprintf(part, "content of %s", name)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, url, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestUpload(t *testing.T) {
	t.Run("accepts ledger and register files", func(t *testing.T) {
		svc := &fakeService{processed: make(chan []service.UploadedFile, 1)}
		r := newTestRouter(svc)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, multipartRequest(t, "/upload", map[string][]string{
			"ledger":   {"janeiro.xlsx", "fevereiro.xlsx"},
			"register": {"janeiro.xlsx"},
		}))

		if w.Code != http.StatusAccepted {
			t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusAccepted, w.Body)
		}
		var resp struct {
			BatchID string `json:"batch_id"`
			Files   int    `json:"files"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if resp.BatchID != svc.batch.ID.String() || resp.Files != 2 {
			t.Errorf("unexpected response: %+v", resp)
		}

		select {
		case files := <-svc.processed:
			if len(files) != 3 {
				t.Errorf("background run got %d files, want 3", len(files))
			}
		case <-time.After(time.Second):
			t.Fatal("background processing was not started")
		}
	})

	t.Run("requires a ledger file", func(t *testing.T) {
		r := newTestRouter(&fakeService{})
		w := httptest.NewRecorder()
		r.ServeHTTP(w, multipartRequest(t, "/upload", map[string][]string{"register": {"janeiro.xlsx"}}))
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
		}
	})

	t.Run("rejects other file types", func(t *testing.T) {
		r := newTestRouter(&fakeService{})
		w := httptest.NewRecorder()
		r.ServeHTTP(w, multipartRequest(t, "/upload", map[string][]string{"ledger": {"janeiro.csv"}}))
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
		}
	})
}

func TestUploadContracts(t *testing.T) {
	r := newTestRouter(&fakeService{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, multipartRequest(t, "/contracts", map[string][]string{"file": {"composicoes.xlsx"}}))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusOK, w.Body)
	}
	var resp struct {
		Rows  int `json:"rows"`
		Saved int `json:"entries_saved"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Rows != 3 || resp.Saved != 2 {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestGetBatchProgress(t *testing.T) {
	known := uuid.New()
	svc := &fakeService{progress: map[uuid.UUID]service.Progress{
		known: {ProcessedFiles: 2, TotalFiles: 2, Status: models.BatchStatusCompleted},
	}}
	r := newTestRouter(svc)

	tests := []struct {
		name string
		path string
		want int
	}{
		{"known batch", "/" + known.String(), http.StatusOK},
		{"unknown batch", "/" + uuid.New().String(), http.StatusNotFound},
		{"malformed id", "/not-a-uuid", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/"+known.String(), nil))
	if !bytes.Contains(w.Body.Bytes(), []byte(`"files"`)) {
		t.Errorf("completed batch should list its files: %s", w.Body)
	}
}

func TestListRecords(t *testing.T) {
	svc := &fakeService{}
	r := newTestRouter(svc)
	batchID := uuid.New().String()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/"+batchID+"/records?rule=single_record&status=reconciled&search=acme&limit=1000", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	want := repository.RecordFilter{Status: "reconciled", Rule: "single_record", Search: "acme", Limit: maxPageSize}
	if svc.filter != want {
		t.Errorf("filter = %+v, want %+v", svc.filter, want)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/"+batchID+"/records?limit=abc", nil))
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid limit: status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestExportFile(t *testing.T) {
	batchID := uuid.New().String()

	t.Run("downloads workbook", func(t *testing.T) {
		r := newTestRouter(&fakeService{})
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/"+batchID+"/export/janeiro", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
		}
		if got := w.Header().Get("Content-Type"); got != xlsxContentType {
			t.Errorf("Content-Type = %q", got)
		}
		if got := w.Header().Get("Content-Disposition"); got != `attachment; filename="janeiro.xlsx"` {
			t.Errorf("Content-Disposition = %q", got)
		}
	})

	t.Run("unknown file", func(t *testing.T) {
		r := newTestRouter(&fakeService{exportErr: service.ErrFileNotFound})
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/"+batchID+"/export/fevereiro", nil))
		if w.Code != http.StatusNotFound {
			t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
		}
	})
}
