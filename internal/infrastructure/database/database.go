package database

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"adscope/internal/infrastructure/database/entities"
)

// Open opens (creating if needed) the sqlite cache index at path and runs
// migrations. The index is the durable source of truth for cache metadata;
// every mutation is a transactional sqlite write, so metadata survives a
// crash without divergence.
func Open(path string, log zerolog.Logger) (*gorm.DB, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create index directory: %w", err)
		}
	}

	// busy_timeout keeps concurrent fingerprint operations from surfacing
	// spurious SQLITE_BUSY errors.
	dsn := fmt.Sprintf("%s?_busy_timeout=5000&_journal_mode=WAL", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open cache index: %w", err)
	}

	if err := db.AutoMigrate(&entities.CreativeAsset{}, &entities.AnalysisRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate cache index: %w", err)
	}

	log.Info().Str("path", path).Msg("cache index opened")
	return db, nil
}
