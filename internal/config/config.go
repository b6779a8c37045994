package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	Port        string
	DatabaseURL string
	LogLevel    string

	AllowedOrigins     []string
	MaxUploadSizeBytes int64

	RegisterSheet       string
	RegisterSkipRows    int
	DropZeroGroupTotals bool
	PipelineWorkers     int

	RateLimitRPS   float64
	RateLimitBurst int

	StatsCacheTTL time.Duration
}

var Cfg *AppConfig

// LoadConfig reads .env (if present) and the process environment.
func LoadConfig() *AppConfig {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file loaded, relying on environment variables and defaults", "error", err)
	}

	Cfg = &AppConfig{
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: getEnv("DATABASE_URL", "host=localhost user=postgres password=postgres dbname=reconciliation port=5432 sslmode=disable"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		AllowedOrigins:     splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
		MaxUploadSizeBytes: int64(getEnvAsInt("MAX_UPLOAD_SIZE_BYTES", 20*1024*1024)),

		RegisterSheet:       getEnv("REGISTER_SHEET", "Fornecedores"),
		RegisterSkipRows:    getEnvAsInt("REGISTER_SKIP_ROWS", 11),
		DropZeroGroupTotals: getEnvAsBool("DROP_ZERO_GROUP_TOTALS", true),
		PipelineWorkers:     getEnvAsInt("PIPELINE_WORKERS", 4),

		RateLimitRPS:   getEnvAsFloat("RATE_LIMIT_RPS", 10),
		RateLimitBurst: getEnvAsInt("RATE_LIMIT_BURST", 30),

		StatsCacheTTL: getEnvAsDuration("STATS_CACHE_TTL", 15*time.Minute),
	}

	slog.Info("configuration loaded",
		"port", Cfg.Port,
		"log_level", Cfg.LogLevel,
		"register_sheet", Cfg.RegisterSheet,
		"pipeline_workers", Cfg.PipelineWorkers)
	return Cfg
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	slog.Debug("environment variable not set, using default", "key", key, "default", fallback)
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	slog.Warn("invalid integer value, using default", "key", key, "value", valueStr, "default", fallback)
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	slog.Warn("invalid float value, using default", "key", key, "value", valueStr, "default", fallback)
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	slog.Warn("invalid boolean value, using default", "key", key, "value", valueStr, "default", fallback)
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	slog.Warn("invalid duration value, using default", "key", key, "value", valueStr, "default", fallback.String())
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
