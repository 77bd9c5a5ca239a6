// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/bull/oncodoc/internal/clinical"
	"github.com/bull/oncodoc/internal/storage"
)

// Store backends.
const (
	BackendQdrant = "qdrant"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Config is the full process configuration.
type Config struct {
	StoreBackend     string `mapstructure:"STORE_BACKEND"`
	QdrantHost       string `mapstructure:"QDRANT_HOST"`
	QdrantPort       int    `mapstructure:"QDRANT_PORT"`
	QdrantAPIKey     string `mapstructure:"QDRANT_API_KEY"`
	QdrantUseTLS     bool   `mapstructure:"QDRANT_USE_TLS"`
	QdrantCollection string `mapstructure:"QDRANT_COLLECTION"`
	SQLitePath       string `mapstructure:"SQLITE_PATH"`

	OpenAIAPIKey       string        `mapstructure:"OPENAI_API_KEY"`
	EmbeddingModel     string        `mapstructure:"EMBEDDING_MODEL"`
	EmbeddingDimension int           `mapstructure:"EMBEDDING_DIMENSION"`
	EmbeddingTimeout   time.Duration `mapstructure:"EMBEDDING_TIMEOUT"`
	EmbeddingRPS       float64       `mapstructure:"EMBEDDING_RPS"`

	StoreTimeout        time.Duration `mapstructure:"STORE_TIMEOUT"`
	Workers             int           `mapstructure:"WORKERS"`
	SimilarityThreshold float64       `mapstructure:"SIMILARITY_THRESHOLD"`
	VocabularyPath      string        `mapstructure:"VOCABULARY_PATH"`

	WBCAlertCutoff  float64 `mapstructure:"WBC_ALERT_CUTOFF"`
	ANCAlertCutoff  float64 `mapstructure:"ANC_ALERT_CUTOFF"`
	HemoglobinAlert float64 `mapstructure:"HEMOGLOBIN_ALERT"`
	PlateletAlert   float64 `mapstructure:"PLATELET_ALERT"`

	GitHubToken string `mapstructure:"GITHUB_TOKEN"`

	LogLevel   string `mapstructure:"LOG_LEVEL"`
	Port       string `mapstructure:"PORT"`
	ServerMode bool   `mapstructure:"SERVER_MODE"`
}

var defaults = map[string]any{
	"STORE_BACKEND":        BackendQdrant,
	"QDRANT_HOST":          "localhost",
	"QDRANT_PORT":          6334,
	"QDRANT_API_KEY":       "",
	"QDRANT_USE_TLS":       false,
	"QDRANT_COLLECTION":    storage.DefaultCollection,
	"SQLITE_PATH":          "./data/oncodoc.db",
	"OPENAI_API_KEY":       "",
	"EMBEDDING_MODEL":      "text-embedding-3-small",
	"EMBEDDING_DIMENSION":  1536,
	"EMBEDDING_TIMEOUT":    "10s",
	"EMBEDDING_RPS":        5,
	"STORE_TIMEOUT":        "15s",
	"WORKERS":              4,
	"SIMILARITY_THRESHOLD": 0.7,
	"VOCABULARY_PATH":      "",
	"WBC_ALERT_CUTOFF":     4000,
	"ANC_ALERT_CUTOFF":     1000,
	"HEMOGLOBIN_ALERT":     10.0,
	"PLATELET_ALERT":       150000,
	"GITHUB_TOKEN":         "",
	"LOG_LEVEL":            "info",
	"PORT":                 "8080",
	"SERVER_MODE":          false,
}

// Load reads configuration from the environment. Callers load .env first.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	// Bind every key explicitly so Unmarshal picks them up
	for key, value := range defaults {
		v.SetDefault(key, value)
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.StoreBackend = strings.ToLower(strings.TrimSpace(cfg.StoreBackend))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings no component can run with.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendQdrant, BackendSQLite, BackendMemory:
	default:
		return fmt.Errorf("STORE_BACKEND must be one of qdrant, sqlite, memory, got %q", c.StoreBackend)
	}
	if c.EmbeddingDimension <= 0 {
		return fmt.Errorf("EMBEDDING_DIMENSION must be positive, got %d", c.EmbeddingDimension)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("WORKERS must be positive, got %d", c.Workers)
	}
	if c.SimilarityThreshold < -1 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("SIMILARITY_THRESHOLD must be within [-1, 1], got %v", c.SimilarityThreshold)
	}
	if c.StoreBackend == BackendSQLite && c.SQLitePath == "" {
		return fmt.Errorf("SQLITE_PATH is required for the sqlite backend")
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// Thresholds returns the clinical alert cutoffs.
func (c *Config) Thresholds() clinical.Thresholds {
	return clinical.Thresholds{
		WBC:        c.WBCAlertCutoff,
		ANC:        c.ANCAlertCutoff,
		Hemoglobin: c.HemoglobinAlert,
		Platelets:  c.PlateletAlert,
	}
}

// ParseLogLevel maps debug|info|warn|error to a slog level.
func ParseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return level, nil
}
