// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Embedding provider names recognized by EMBEDDING_PROVIDER.
const (
	ProviderDisabled = "disabled"
	ProviderOpenAI   = "openai"
	ProviderLocal    = "local"
)

// Config holds all application configuration.
type Config struct {
	Port        string
	DBPath      string
	CORSOrigins []string

	Embedding EmbeddingConfig
	MapTool   MapToolConfig

	// ReindexInterval is the cadence of the background embedding reindex
	// worker; zero disables it.
	ReindexInterval time.Duration

	// MapWatchInterval is how often the websocket map watcher polls the
	// remote map service.
	MapWatchInterval time.Duration
}

// EmbeddingConfig selects and configures the embedding backend.
type EmbeddingConfig struct {
	Provider   string // "disabled", "openai" or "local"
	APIKey     string
	Model      string // remote model name
	LocalURL   string // local embedding server base URL
	LocalModel string // local model name
	BatchSize  int
}

// MapToolConfig holds connection settings for the remote MapTool service.
type MapToolConfig struct {
	BaseURL       string
	Username      string
	Password      string
	Timeout       time.Duration
	MaxRetries    int
	BackoffFactor time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		DBPath:      getEnv("DB_PATH", "./data/dma.db"),
		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:5173")),
		Embedding: EmbeddingConfig{
			Provider:   strings.ToLower(getEnv("EMBEDDING_PROVIDER", ProviderDisabled)),
			APIKey:     getEnv("OPENAI_API_KEY", ""),
			Model:      getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
			LocalURL:   getEnv("LOCAL_EMBEDDING_URL", "http://localhost:11434"),
			LocalModel: getEnv("LOCAL_EMBEDDING_MODEL", "all-minilm"),
			BatchSize:  getEnvInt("MAX_EMBEDDING_BATCH_SIZE", 100),
		},
		MapTool: MapToolConfig{
			BaseURL:       getEnv("MAPTOOL_BASE_URL", "http://localhost:8765"),
			Username:      getEnv("MAPTOOL_USERNAME", ""),
			Password:      getEnv("MAPTOOL_PASSWORD", ""),
			Timeout:       getEnvSeconds("MAPTOOL_TIMEOUT_SECONDS", 10*time.Second),
			MaxRetries:    getEnvInt("MAPTOOL_MAX_RETRIES", 3),
			BackoffFactor: getEnvSeconds("MAPTOOL_BACKOFF_SECONDS", 200*time.Millisecond),
		},
		ReindexInterval:  getEnvSeconds("REINDEX_INTERVAL_SECONDS", 0),
		MapWatchInterval: getEnvSeconds("MAP_WATCH_INTERVAL_SECONDS", 5*time.Second),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	switch c.Embedding.Provider {
	case ProviderDisabled, ProviderOpenAI, ProviderLocal:
	default:
		return fmt.Errorf("EMBEDDING_PROVIDER must be one of disabled, openai, local (got %q)", c.Embedding.Provider)
	}
	if c.MapTool.BaseURL == "" {
		return fmt.Errorf("MAPTOOL_BASE_URL cannot be empty")
	}
	if c.MapTool.MaxRetries < 1 {
		return fmt.Errorf("MAPTOOL_MAX_RETRIES must be >= 1")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

// getEnvSeconds reads a duration expressed in (possibly fractional) seconds.
func getEnvSeconds(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || f < 0 {
		return fallback
	}
	return time.Duration(f * float64(time.Second))
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
