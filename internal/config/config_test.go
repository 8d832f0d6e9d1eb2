package config_test

import (
	"testing"

	"adscope/internal/config"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")

	cfg, err := config.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.HTTPPort != "8094" {
		t.Errorf("HTTPPort=%q, want 8094", cfg.HTTPPort)
	}
	if cfg.DefaultBatchConcurrency != 3 || cfg.MaxBatchConcurrency != 8 {
		t.Errorf("batch concurrency=%d/%d, want 3/8", cfg.DefaultBatchConcurrency, cfg.MaxBatchConcurrency)
	}
	if cfg.AnalysisConfigured() {
		t.Error("analysis should not be configured without GEMINI_API_KEY")
	}
}

func TestLoadConfigRejectsBadConcurrency(t *testing.T) {
	t.Setenv("ADSCOPE_BATCH_CONCURRENCY", "5")
	t.Setenv("ADSCOPE_MAX_BATCH_CONCURRENCY", "2")

	if _, err := config.LoadConfig(); err == nil {
		t.Fatal("want error when max concurrency is below the default")
	}
}

func TestLoadConfigRejectsZeroMediaCap(t *testing.T) {
	t.Setenv("ADSCOPE_MAX_MEDIA_BYTES", "0")

	if _, err := config.LoadConfig(); err == nil {
		t.Fatal("want error for zero media size cap")
	}
}

func TestProviderFlags(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "k1")
	t.Setenv("SCRAPECREATORS_API_KEY", "k2")

	cfg, err := config.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if !cfg.AnalysisConfigured() || !cfg.AdLibraryConfigured() {
		t.Error("provider flags should report configured keys")
	}
}
