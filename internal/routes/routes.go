package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"ledger-reconciliation-backend/internal/config"
	handler "ledger-reconciliation-backend/internal/handlers"
	"ledger-reconciliation-backend/internal/ingest"
	"ledger-reconciliation-backend/internal/metrics"
	"ledger-reconciliation-backend/internal/repository"
	service "ledger-reconciliation-backend/internal/services/reconciliation"
)

func RegisterRoutes(r *gin.Engine, db *gorm.DB, cfg *config.AppConfig) {
	batchRepo := repository.NewBatchRepository(db)
	contractRepo := repository.NewContractRepository(db)
	recordRepo := repository.NewRecordRepository(db)

	reconService := service.NewReconciliationService(
		batchRepo,
		contractRepo,
		recordRepo,
		db,
		service.ServiceOptions{
			Register: ingest.RegisterOptions{Sheet: cfg.RegisterSheet, SkipRows: cfg.RegisterSkipRows},
			Pipeline: service.PipelineOptions{DropZeroGroupTotals: cfg.DropZeroGroupTotals},
			Workers:  cfg.PipelineWorkers,
			CacheTTL: cfg.StatsCacheTTL,
		},
	)

	reconHandler := handler.NewReconciliationHandler(reconService, cfg.MaxUploadSizeBytes)

	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := r.Group("/api")

	// Health check
	api.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Reconciliation batch routes
	recon := api.Group("/reconciliation")
	recon.POST("/upload", reconHandler.Upload)
	recon.GET("/:batchId", reconHandler.GetBatchProgress)
	recon.GET("/:batchId/records", reconHandler.ListRecords)
	recon.GET("/:batchId/audit", reconHandler.ListAuditLogs)
	recon.GET("/:batchId/export/:file", reconHandler.ExportFile)

	// Contract register routes
	contracts := api.Group("/contracts")
	{
		contracts.POST("/upload", reconHandler.UploadContracts)
	}
}
