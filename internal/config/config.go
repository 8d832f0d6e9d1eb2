package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the AdScope service. Provider keys keep
// their upstream names so existing installer tooling and .env files work
// unchanged; everything else uses the ADSCOPE_ prefix.
type Config struct {
	// HTTP server
	HTTPPort  string `env:"ADSCOPE_HTTP_PORT" envDefault:"8094"`
	LogLevel  string `env:"ADSCOPE_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"ADSCOPE_LOG_FORMAT" envDefault:"json"` // json or console

	// Ad-library provider (ScrapeCreators)
	ScrapeCreatorsAPIKey  string        `env:"SCRAPECREATORS_API_KEY"`
	ScrapeCreatorsBaseURL string        `env:"SCRAPECREATORS_BASE_URL" envDefault:"https://api.scrapecreators.com"`
	AdLibraryTimeout      time.Duration `env:"ADSCOPE_ADLIBRARY_TIMEOUT" envDefault:"30s"`
	AdLibraryMaxPages     int           `env:"ADSCOPE_ADLIBRARY_MAX_PAGES" envDefault:"10"`

	// Analysis provider (Gemini)
	GeminiAPIKey         string        `env:"GEMINI_API_KEY"`
	GeminiBaseURL        string        `env:"GEMINI_BASE_URL" envDefault:"https://generativelanguage.googleapis.com"`
	GeminiModel          string        `env:"ADSCOPE_GEMINI_MODEL" envDefault:"gemini-2.0-flash-exp"`
	AnalysisTimeout      time.Duration `env:"ADSCOPE_ANALYSIS_TIMEOUT" envDefault:"300s"`
	UploadPollDelay      time.Duration `env:"ADSCOPE_UPLOAD_POLL_DELAY" envDefault:"2s"`
	RefreshOnModelChange bool          `env:"ADSCOPE_REFRESH_ON_MODEL_CHANGE" envDefault:"false"`

	// Media cache
	CacheRoot         string        `env:"ADSCOPE_CACHE_ROOT" envDefault:".adscope/media" validate:"required"`
	IndexPath         string        `env:"ADSCOPE_INDEX_PATH" envDefault:".adscope/index.db" validate:"required"`
	MaxMediaBytes     int64         `env:"ADSCOPE_MAX_MEDIA_BYTES" envDefault:"209715200" validate:"gt=0"` // 200 MiB
	DownloadTimeout   time.Duration `env:"ADSCOPE_DOWNLOAD_TIMEOUT" envDefault:"60s"`
	DefaultMaxAgeDays int           `env:"ADSCOPE_CLEANUP_MAX_AGE_DAYS" envDefault:"30" validate:"gt=0"`

	// Batch orchestration
	DefaultBatchConcurrency int `env:"ADSCOPE_BATCH_CONCURRENCY" envDefault:"3" validate:"min=1"`
	MaxBatchConcurrency     int `env:"ADSCOPE_MAX_BATCH_CONCURRENCY" envDefault:"8" validate:"gtefield=DefaultBatchConcurrency"`

	// Retry behavior for provider calls
	RetryMaxAttempts   int           `env:"ADSCOPE_RETRY_MAX_ATTEMPTS" envDefault:"3"`
	RetryInitialDelay  time.Duration `env:"ADSCOPE_RETRY_INITIAL_DELAY" envDefault:"250ms"`
	RetryMaxDelay      time.Duration `env:"ADSCOPE_RETRY_MAX_DELAY" envDefault:"5s"`
	RetryBackoffFactor float64       `env:"ADSCOPE_RETRY_BACKOFF_FACTOR" envDefault:"1.5"`
}

// LoadConfig loads configuration from the environment, reading a .env file
// first when one is present next to the binary.
func LoadConfig() (*Config, error) {
	// Missing .env is the normal case for container deployments.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// AnalysisConfigured reports whether the Gemini provider can be called.
func (c *Config) AnalysisConfigured() bool {
	return strings.TrimSpace(c.GeminiAPIKey) != ""
}

// AdLibraryConfigured reports whether the ad-library provider can be called.
func (c *Config) AdLibraryConfigured() bool {
	return strings.TrimSpace(c.ScrapeCreatorsAPIKey) != ""
}
