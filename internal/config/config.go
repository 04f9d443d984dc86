package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config captures the runtime configuration for the transcript harvester service.
type Config struct {
	AppPort      int
	DataDir      string
	DatabasePath string
	MigrationDir string
	LogLevel     string

	ExtractorBinary string
	ExtractorTimeout time.Duration

	DefaultMaxWorkers    int
	DefaultMaxRetries    int
	DefaultBackoffFactor float64
	DefaultOutputDir     string

	LockWaitBudget     time.Duration
	WorkerPollInterval time.Duration
	ShutdownBudget     time.Duration

	LogRetentionDays int
}

// Load reads configuration from environment variables, applying sensible
// defaults for local development while allowing overrides through
// environment variables.
func Load() (Config, error) {
	dataDir := getString("HARVESTER_DATA_DIR", "data")

	cfg := Config{
		AppPort:      getInt("HARVESTER_PORT", 8080),
		DataDir:      dataDir,
		DatabasePath: getString("HARVESTER_DATABASE_PATH", filepath.Join(dataDir, "app.db")),
		MigrationDir: getString("HARVESTER_MIGRATIONS", "migrations"),
		LogLevel:     getString("HARVESTER_LOG_LEVEL", "info"),

		ExtractorBinary:  getString("HARVESTER_EXTRACTOR_PATH", "yt-dlp"),
		ExtractorTimeout: getDuration("HARVESTER_EXTRACTOR_TIMEOUT", 30*time.Second),

		DefaultMaxWorkers:    getInt("HARVESTER_DEFAULT_MAX_WORKERS", 5),
		DefaultMaxRetries:    getInt("HARVESTER_DEFAULT_MAX_RETRIES", 3),
		DefaultBackoffFactor: getFloat("HARVESTER_DEFAULT_BACKOFF_FACTOR", 2.0),
		DefaultOutputDir:     getString("HARVESTER_DEFAULT_OUTPUT_DIR", "./subtitles"),

		LockWaitBudget:     getDuration("HARVESTER_LOCK_WAIT_BUDGET", 20*time.Second),
		WorkerPollInterval: getDuration("HARVESTER_WORKER_POLL_INTERVAL", time.Second),
		ShutdownBudget:     getDuration("HARVESTER_SHUTDOWN_BUDGET", 30*time.Second),

		LogRetentionDays: getInt("HARVESTER_LOG_RETENTION_DAYS", 30),
	}

	return cfg, nil
}

func getString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return i
}

func getFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return f
}

func getDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}
