package main

import (
	"log/slog"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"ledger-reconciliation-backend/internal/config"
	"ledger-reconciliation-backend/internal/logging"
	"ledger-reconciliation-backend/internal/middleware"
	"ledger-reconciliation-backend/internal/models"
	"ledger-reconciliation-backend/internal/routes"
)

func main() {
	cfg := config.LoadConfig()
	logging.Setup(cfg.LogLevel)

	db, err := config.InitDB(cfg.DatabaseURL)
	if err != nil {
		slog.Error("database unavailable", "error", err)
		os.Exit(1)
	}

	if err := db.AutoMigrate(
		&models.ReconciliationBatch{},
		&models.ContractEntry{},
		&models.ReconciledFile{},
		&models.ReconciledRecord{},
		&models.MatchAuditLog{},
	); err != nil {
		slog.Error("migration failed", "error", err)
		os.Exit(1)
	}

	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger())
	// CORS config
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	r.Use(middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))

	routes.RegisterRoutes(r, db, cfg)

	slog.Info("server listening", "port", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
