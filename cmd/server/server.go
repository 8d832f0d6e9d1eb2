package main

import (
	"time"

	"github.com/rs/zerolog/log"

	"adscope/internal/config"
	"adscope/internal/domain/ads"
	"adscope/internal/domain/creative"
	"adscope/internal/infrastructure/adlibrary"
	"adscope/internal/infrastructure/database"
	"adscope/internal/infrastructure/gemini"
	_ "adscope/internal/infrastructure/metrics" // register Prometheus metrics
	"adscope/internal/infrastructure/retry"
	cacherepo "adscope/internal/infrastructure/repository/cache"
	"adscope/internal/infrastructure/storage"
	"adscope/internal/interfaces/httpserver"
	"adscope/internal/interfaces/httpserver/routes/mcp"
	"adscope/internal/logger"
)

func init() {
	logger.Init("info", "json")
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	logger.Init(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("http_port", cfg.HTTPPort).
		Str("log_level", cfg.LogLevel).
		Bool("ad_library", cfg.AdLibraryConfigured()).
		Bool("analysis", cfg.AnalysisConfigured()).
		Msg("starting AdScope service")

	app, err := buildApplication(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build application")
	}

	if err := app.Run(); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func buildApplication(cfg *config.Config) (*httpserver.HTTPServer, error) {
	retryCfg := retry.Config{
		MaxAttempts:   cfg.RetryMaxAttempts,
		InitialDelay:  cfg.RetryInitialDelay,
		MaxDelay:      cfg.RetryMaxDelay,
		BackoffFactor: cfg.RetryBackoffFactor,
	}

	db, err := database.Open(cfg.IndexPath, log.Logger)
	if err != nil {
		return nil, err
	}
	repo := cacherepo.NewRepository(db)

	store, err := storage.NewContentStore(cfg.CacheRoot, log.Logger)
	if err != nil {
		return nil, err
	}

	analyzer := gemini.NewClient(gemini.ClientConfig{
		APIKey:          cfg.GeminiAPIKey,
		BaseURL:         cfg.GeminiBaseURL,
		Model:           cfg.GeminiModel,
		AnalysisTimeout: cfg.AnalysisTimeout,
		UploadPollDelay: cfg.UploadPollDelay,
		Retry:           retryCfg,
	}, log.Logger)

	creativeService := creative.NewService(repo, store, analyzer, creative.ServiceConfig{
		MaxMediaBytes:           cfg.MaxMediaBytes,
		DownloadTimeout:         cfg.DownloadTimeout,
		RefreshOnModelChange:    cfg.RefreshOnModelChange,
		DefaultBatchConcurrency: cfg.DefaultBatchConcurrency,
		MaxBatchConcurrency:     cfg.MaxBatchConcurrency,
		DefaultMaxAge:           time.Duration(cfg.DefaultMaxAgeDays) * 24 * time.Hour,
	}, log.Logger)

	// The ad-library tools are only registered when the provider key is set;
	// analysis tools stay registered and report ANALYSIS_UNAVAILABLE instead.
	var adsMCP *mcp.AdsMCP
	if cfg.AdLibraryConfigured() {
		adClient := adlibrary.NewClient(adlibrary.ClientConfig{
			APIKey:   cfg.ScrapeCreatorsAPIKey,
			BaseURL:  cfg.ScrapeCreatorsBaseURL,
			Timeout:  cfg.AdLibraryTimeout,
			MaxPages: cfg.AdLibraryMaxPages,
			Retry:    retryCfg,
		}, log.Logger)
		adsMCP = mcp.NewAdsMCP(ads.NewService(adClient, log.Logger))
	} else {
		log.Warn().Msg("SCRAPECREATORS_API_KEY not set; ad-library tools disabled")
	}

	mcpRoute := mcp.NewMCPRoute(
		adsMCP,
		mcp.NewMediaMCP(creativeService),
		mcp.NewCacheMCP(creativeService),
	)

	return httpserver.NewHTTPServer(cfg, mcpRoute, creativeService), nil
}
