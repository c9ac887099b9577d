package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Storage     StorageConfig   `toml:"storage"`
	Crawler     CrawlerConfig   `toml:"crawler"`
	Splitter    SplitterConfig  `toml:"splitter"`
	Search      SearchConfig    `toml:"search"`
	Embedder    EmbedderConfig  `toml:"embedder"`
	Jobs        JobsConfig      `toml:"jobs"`
	Browser     BrowserConfig   `toml:"browser"`
	Logging     LoggingConfig   `toml:"logging"`
	Scheduler   SchedulerConfig `toml:"scheduler"`
}

type StorageConfig struct {
	Badger  BadgerConfig  `toml:"badger"`
	Vectors VectorsConfig `toml:"vectors"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

// VectorsConfig configures the embedded vector index
type VectorsConfig struct {
	Path string `toml:"path"` // Persistence directory; empty keeps vectors in memory only
}

// CrawlerConfig contains crawl behaviour defaults; per-job options override these
type CrawlerConfig struct {
	UserAgent       string        `toml:"user_agent"`       // Fixed user agent; empty enables fingerprint rotation
	MaxPages        int           `toml:"max_pages"`        // Default page budget per job
	MaxDepth        int           `toml:"max_depth"`        // Default crawl depth
	MaxConcurrency  int           `toml:"max_concurrency"`  // Default workers per job
	RequestTimeout  time.Duration `toml:"request_timeout"`  // HTTP request timeout
	RequestsPerHost float64       `toml:"requests_per_host"` // Politeness rate limit, requests/second per host
	RetryAttempts   int           `toml:"retry_attempts"`   // Max fetch attempts for transient failures
	RetryBaseDelay  time.Duration `toml:"retry_base_delay"` // Initial backoff for fetch retries
	GitHubToken     string        `toml:"github_token"`     // Optional token for the source-host fetcher
}

// SplitterConfig bounds chunk sizes produced by the semantic splitter
type SplitterConfig struct {
	PreferredSize int `toml:"preferred_size"` // Target chunk size in bytes
	MaxSize       int `toml:"max_size"`       // Hard upper bound per chunk
}

type SearchConfig struct {
	CandidateMultiplier int `toml:"candidate_multiplier"` // Vector recall fan-out relative to limit
	DefaultLimit        int `toml:"default_limit"`
}

// EmbedderConfig configures the embeddings provider client
type EmbedderConfig struct {
	BaseURL    string        `toml:"base_url"`   // Ollama-compatible endpoint
	Model      string        `toml:"model"`      // Embedding model name
	Dimensions int           `toml:"dimensions"` // Fixed vector dimensionality
	Timeout    time.Duration `toml:"timeout"`
}

// JobsConfig configures the pipeline manager
type JobsConfig struct {
	Concurrency int `toml:"concurrency"` // Global concurrent job limit
}

// BrowserConfig configures headless rendering
type BrowserConfig struct {
	Headless       bool          `toml:"headless"`
	NoSandbox      bool          `toml:"no_sandbox"`
	RenderTimeout  time.Duration `toml:"render_timeout"`
	SettleInterval time.Duration `toml:"settle_interval"` // Poll interval for loading-indicator checks
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
	Dir    string   `toml:"dir"`    // Log directory; empty derives from executable path
}

// SchedulerConfig lists scopes to re-index on a cron schedule
type SchedulerConfig struct {
	Enabled  bool            `toml:"enabled"`
	Refreshes []RefreshConfig `toml:"refreshes"`
}

// RefreshConfig is one scheduled re-index of a library scope
type RefreshConfig struct {
	Library  string `toml:"library" validate:"required"`
	Version  string `toml:"version"`
	URL      string `toml:"url" validate:"required,url"`
	Schedule string `toml:"schedule" validate:"required"` // Cron expression
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Storage: StorageConfig{
			Badger:  BadgerConfig{Path: "./data/quill"},
			Vectors: VectorsConfig{Path: "./data/vectors"},
		},
		Crawler: CrawlerConfig{
			MaxPages:        1000,
			MaxDepth:        3,
			MaxConcurrency:  3,
			RequestTimeout:  30 * time.Second,
			RequestsPerHost: 4,
			RetryAttempts:   6,
			RetryBaseDelay:  time.Second,
		},
		Splitter: SplitterConfig{
			PreferredSize: 1500,
			MaxSize:       2000,
		},
		Search: SearchConfig{
			CandidateMultiplier: 2,
			DefaultLimit:        10,
		},
		Embedder: EmbedderConfig{
			BaseURL:    "http://localhost:11434",
			Model:      "nomic-embed-text",
			Dimensions: 768,
			Timeout:    60 * time.Second,
		},
		Jobs: JobsConfig{Concurrency: 3},
		Browser: BrowserConfig{
			Headless:       true,
			NoSandbox:      false,
			RenderTimeout:  45 * time.Second,
			SettleInterval: 250 * time.Millisecond,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout"},
		},
	}
}

// LoadFromFile loads configuration from a TOML file, layering it over defaults
// and applying environment variable overrides last.
func LoadFromFile(path string) (*Config, error) {
	config := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if err := Validate(config); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks configuration invariants
func Validate(config *Config) error {
	if config.Crawler.MaxPages < 1 {
		return fmt.Errorf("crawler.max_pages must be >= 1, got %d", config.Crawler.MaxPages)
	}
	if config.Crawler.MaxDepth < 0 {
		return fmt.Errorf("crawler.max_depth must be >= 0, got %d", config.Crawler.MaxDepth)
	}
	if config.Crawler.MaxConcurrency < 1 {
		return fmt.Errorf("crawler.max_concurrency must be >= 1, got %d", config.Crawler.MaxConcurrency)
	}
	if config.Jobs.Concurrency < 1 {
		return fmt.Errorf("jobs.concurrency must be >= 1, got %d", config.Jobs.Concurrency)
	}
	if config.Splitter.MaxSize < config.Splitter.PreferredSize {
		return fmt.Errorf("splitter.max_size (%d) must be >= splitter.preferred_size (%d)",
			config.Splitter.MaxSize, config.Splitter.PreferredSize)
	}

	validate := validator.New()
	for i := range config.Scheduler.Refreshes {
		if err := validate.Struct(&config.Scheduler.Refreshes[i]); err != nil {
			return fmt.Errorf("scheduler.refreshes[%d]: %w", i, err)
		}
	}

	return nil
}

// applyEnvOverrides applies QUILL_* environment variables over the loaded config
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("QUILL_STORAGE_PATH"); v != "" {
		config.Storage.Badger.Path = v
	}
	if v := os.Getenv("QUILL_VECTORS_PATH"); v != "" {
		config.Storage.Vectors.Path = v
	}
	if v := os.Getenv("QUILL_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
	if v := os.Getenv("QUILL_EMBEDDER_URL"); v != "" {
		config.Embedder.BaseURL = v
	}
	if v := os.Getenv("QUILL_EMBEDDER_MODEL"); v != "" {
		config.Embedder.Model = v
	}
	if v := os.Getenv("QUILL_EMBEDDER_DIMENSIONS"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
			config.Embedder.Dimensions = n
		}
	}
	if v := os.Getenv("QUILL_GITHUB_TOKEN"); v != "" {
		config.Crawler.GitHubToken = v
	}
	if v := os.Getenv("QUILL_JOBS_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
			config.Jobs.Concurrency = n
		}
	}
}
