// Package config provides configuration management functionality.
//
// Configuration is loaded from environment variables (.env file supported via
// godotenv). The data directory is always resolved to an absolute path and
// created on load so every component can assume it exists.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	DataDir  string // Base directory for the store and staging files (always absolute)
	Port     int    // HTTP server port (default: 8080)
	LogLevel string // Log level (debug, info, warn, error)
	DevMode  bool   // Development mode flag

	// LLM collaborator. The system runs fully without it; every capability
	// has a deterministic fallback.
	AnthropicAPIKey string
	LLMModel        string

	// Quote provider for the price monitor.
	QuotesAPIKey  string
	QuotesBaseURL string

	// Per-source API keys for the supplemental (L3) news providers,
	// keyed by registry source name.
	SourceAPIKeys map[string]string

	// Monitoring.
	MonitorSchedule         string // cron expression for the monitor tasks
	MaxDailyPushes          int    // per-user daily push budget (default 5)
	EnableMockNotifications bool   // log pushes instead of delivering them

	// Pipeline.
	FetchLimit      int      // upper bound on raw articles per pipeline run
	TickerVocabFile string   // optional override for the ticker vocabulary
	SourceListFile  string   // optional override for the source catalog
	SocialForums    []string // forums scanned by the social monitor

	// Store backup (S3-compatible, e.g. Cloudflare R2). Disabled unless the
	// bucket is configured.
	Backup *BackupConfig
}

// BackupConfig holds S3-compatible backup configuration.
type BackupConfig struct {
	Endpoint      string // S3 endpoint URL (empty for AWS)
	Bucket        string
	AccessKey     string
	SecretKey     string
	RetentionDays int // backups older than this are pruned
}

// Enabled reports whether backups are configured.
func (b *BackupConfig) Enabled() bool {
	return b != nil && b.Bucket != ""
}

// Load reads configuration from environment variables.
//
// A .env file is loaded first if present; explicit environment variables take
// precedence over it (godotenv does not override existing variables).
func Load(dataDirOverride ...string) (*Config, error) {
	_ = godotenv.Load()

	// Data directory priority: CLI override, RABBIT_DATA_DIR, ./data.
	var dataDir string
	if len(dataDirOverride) > 0 && dataDirOverride[0] != "" {
		dataDir = dataDirOverride[0]
	} else {
		dataDir = getEnv("RABBIT_DATA_DIR", "./data")
	}

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:  absDataDir,
		Port:     getEnvAsInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		DevMode:  getEnvAsBool("DEV_MODE", false),

		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		LLMModel:        getEnv("LLM_MODEL", "claude-3-5-haiku-latest"),

		QuotesAPIKey:  getEnv("QUOTES_API_KEY", ""),
		QuotesBaseURL: getEnv("QUOTES_BASE_URL", "https://www.alphavantage.co/query"),

		SourceAPIKeys: map[string]string{
			"Benzinga": getEnv("BENZINGA_API_KEY", ""),
			"Finnhub":  getEnv("FINNHUB_API_KEY", ""),
		},

		// Off the top of the hour so a fleet of deployments doesn't hit the
		// providers at the same instant.
		MonitorSchedule:         getEnv("MONITOR_SCHEDULE", "13 * * * *"),
		MaxDailyPushes:          getEnvAsInt("MAX_DAILY_PUSHES", 5),
		EnableMockNotifications: getEnvAsBool("ENABLE_MOCK_NOTIFICATIONS", false),

		FetchLimit:      getEnvAsInt("FETCH_LIMIT", 120),
		TickerVocabFile: getEnv("TICKER_VOCAB_FILE", ""),
		SourceListFile:  getEnv("SOURCE_LIST_FILE", ""),
		SocialForums:    getEnvAsList("SOCIAL_FORUMS", []string{"wallstreetbets", "stocks", "investing"}),

		Backup: &BackupConfig{
			Endpoint:      getEnv("BACKUP_S3_ENDPOINT", ""),
			Bucket:        getEnv("BACKUP_S3_BUCKET", ""),
			AccessKey:     getEnv("BACKUP_S3_ACCESS_KEY", ""),
			SecretKey:     getEnv("BACKUP_S3_SECRET_KEY", ""),
			RetentionDays: getEnvAsInt("BACKUP_RETENTION_DAYS", 14),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present.
//
// Credentials are optional: without an LLM key the deterministic fallbacks
// carry the pipeline, and without a quotes key the price monitor is skipped.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.MaxDailyPushes < 1 {
		return fmt.Errorf("MAX_DAILY_PUSHES must be at least 1, got %d", c.MaxDailyPushes)
	}
	return nil
}

// ==========================================
// Helper Functions
// ==========================================

// getEnv retrieves an environment variable with a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer with a default value.
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean with a default value.
func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// getEnvAsList retrieves a comma-separated environment variable as a list.
func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
