package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	domain "adscope/internal/domain/creative"
	"adscope/internal/infrastructure/database/entities"
	"adscope/utils/platformerrors"
)

// Repository implements the cache index on gorm/sqlite.
type Repository struct {
	db *gorm.DB
}

var _ domain.Repository = (*Repository)(nil)

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) FindAssetByFingerprint(ctx context.Context, fingerprint string) (*domain.Asset, error) {
	var entity entities.CreativeAsset
	err := r.db.WithContext(ctx).Where("fingerprint = ?", fingerprint).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, r.dbError(ctx, "failed to find asset by fingerprint", err)
	}
	asset := mapAsset(entity)
	return &asset, nil
}

func (r *Repository) FindAssetBySourceURL(ctx context.Context, urlHash string) (*domain.Asset, error) {
	var entity entities.CreativeAsset
	err := r.db.WithContext(ctx).Where("source_url_hash = ?", urlHash).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, r.dbError(ctx, "failed to find asset by source url", err)
	}
	asset := mapAsset(entity)
	return &asset, nil
}

func (r *Repository) CreateAsset(ctx context.Context, asset *domain.Asset) error {
	entity := entities.CreativeAsset{
		Fingerprint:    asset.Fingerprint,
		SourceURLHash:  domain.HashSourceURL(asset.SourceURL),
		SourceURL:      asset.SourceURL,
		PlatformAdID:   asset.PlatformAdID,
		Brand:          asset.Brand,
		MediaType:      string(asset.MediaType),
		MimeType:       asset.MimeType,
		SizeBytes:      asset.SizeBytes,
		LocalPath:      asset.LocalPath,
		DownloadedAt:   asset.DownloadedAt,
		LastAccessedAt: asset.LastAccessedAt,
	}
	// A concurrent writer that lost the per-fingerprint race may already
	// have registered the row; treat that as success.
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&entity).Error
	if err != nil {
		return r.dbError(ctx, "failed to create asset", err)
	}
	return nil
}

func (r *Repository) TouchAsset(ctx context.Context, fingerprint string, accessedAt time.Time) error {
	err := r.db.WithContext(ctx).
		Model(&entities.CreativeAsset{}).
		Where("fingerprint = ?", fingerprint).
		Update("last_accessed_at", accessedAt).Error
	if err != nil {
		return r.dbError(ctx, "failed to touch asset", err)
	}
	return nil
}

func (r *Repository) FindAnalysis(ctx context.Context, fingerprint string, kind domain.AnalysisKind) (*domain.AnalysisRecord, error) {
	var entity entities.AnalysisRecord
	err := r.db.WithContext(ctx).
		Where("fingerprint = ? AND kind = ?", fingerprint, string(kind)).
		First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, r.dbError(ctx, "failed to find analysis record", err)
	}
	record := mapAnalysis(entity)
	return &record, nil
}

func (r *Repository) SaveAnalysis(ctx context.Context, record *domain.AnalysisRecord) error {
	entity := entities.AnalysisRecord{
		Fingerprint:  record.Fingerprint,
		Kind:         string(record.Kind),
		Payload:      string(record.Payload),
		ModelVersion: record.ModelVersion,
		ComputedAt:   record.ComputedAt,
	}
	// Upsert so a newer model version supersedes the previous record while
	// the (fingerprint, kind) uniqueness invariant holds.
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "fingerprint"}, {Name: "kind"}},
		DoUpdates: clause.AssignmentColumns([]string{"payload", "model_version", "computed_at"}),
	}).Create(&entity).Error
	if err != nil {
		return r.dbError(ctx, "failed to save analysis record", err)
	}
	return nil
}

func (r *Repository) Search(ctx context.Context, filter domain.SearchFilter) ([]domain.Asset, error) {
	query := r.db.WithContext(ctx).Model(&entities.CreativeAsset{})
	if filter.Brand != "" {
		query = query.Where("brand = ?", filter.Brand)
	}
	if filter.MediaType != "" {
		query = query.Where("media_type = ?", string(filter.MediaType))
	}
	if !filter.DownloadedAfter.IsZero() {
		query = query.Where("downloaded_at > ?", filter.DownloadedAfter)
	}
	if !filter.AccessedAfter.IsZero() {
		query = query.Where("last_accessed_at > ?", filter.AccessedAfter)
	}
	// Stable order across repeated calls on unchanged state.
	query = query.Order("downloaded_at DESC").Order("fingerprint")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var rows []entities.CreativeAsset
	if err := query.Find(&rows).Error; err != nil {
		return nil, r.dbError(ctx, "failed to search assets", err)
	}

	assets := make([]domain.Asset, 0, len(rows))
	for _, row := range rows {
		assets = append(assets, mapAsset(row))
	}
	return assets, nil
}

func (r *Repository) Stats(ctx context.Context) (*domain.Stats, error) {
	stats := &domain.Stats{
		ByBrand:     make(map[string]int64),
		ByMediaType: make(map[string]int64),
	}

	type aggregate struct {
		Key   string
		Count int64
		Bytes int64
	}

	row := r.db.WithContext(ctx).Model(&entities.CreativeAsset{}).
		Select("COUNT(*) AS count, COALESCE(SUM(size_bytes), 0) AS bytes")
	var totals aggregate
	if err := row.Scan(&totals).Error; err != nil {
		return nil, r.dbError(ctx, "failed to compute cache totals", err)
	}
	stats.TotalAssets = totals.Count
	stats.TotalBytes = totals.Bytes

	var byBrand []aggregate
	err := r.db.WithContext(ctx).Model(&entities.CreativeAsset{}).
		Select("brand AS key, COUNT(*) AS count").
		Where("brand <> ''").
		Group("brand").
		Scan(&byBrand).Error
	if err != nil {
		return nil, r.dbError(ctx, "failed to compute per-brand stats", err)
	}
	for _, agg := range byBrand {
		stats.ByBrand[agg.Key] = agg.Count
	}

	var byType []aggregate
	err = r.db.WithContext(ctx).Model(&entities.CreativeAsset{}).
		Select("media_type AS key, COUNT(*) AS count").
		Group("media_type").
		Scan(&byType).Error
	if err != nil {
		return nil, r.dbError(ctx, "failed to compute per-type stats", err)
	}
	for _, agg := range byType {
		stats.ByMediaType[agg.Key] = agg.Count
	}

	err = r.db.WithContext(ctx).Model(&entities.AnalysisRecord{}).
		Distinct("fingerprint").
		Count(&stats.AnalyzedCount).Error
	if err != nil {
		return nil, r.dbError(ctx, "failed to count analyzed assets", err)
	}

	return stats, nil
}

func (r *Repository) ListOlderThan(ctx context.Context, cutoff time.Time) ([]domain.Asset, error) {
	var rows []entities.CreativeAsset
	err := r.db.WithContext(ctx).
		Where("last_accessed_at < ?", cutoff).
		Order("last_accessed_at").
		Find(&rows).Error
	if err != nil {
		return nil, r.dbError(ctx, "failed to list stale assets", err)
	}

	assets := make([]domain.Asset, 0, len(rows))
	for _, row := range rows {
		assets = append(assets, mapAsset(row))
	}
	return assets, nil
}

func (r *Repository) ListByLeastRecentUse(ctx context.Context) ([]domain.Asset, error) {
	var rows []entities.CreativeAsset
	err := r.db.WithContext(ctx).
		Order("last_accessed_at").
		Find(&rows).Error
	if err != nil {
		return nil, r.dbError(ctx, "failed to list assets by recency", err)
	}

	assets := make([]domain.Asset, 0, len(rows))
	for _, row := range rows {
		assets = append(assets, mapAsset(row))
	}
	return assets, nil
}

func (r *Repository) DeleteAssetCascade(ctx context.Context, fingerprint string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("fingerprint = ?", fingerprint).Delete(&entities.AnalysisRecord{}).Error; err != nil {
			return err
		}
		return tx.Where("fingerprint = ?", fingerprint).Delete(&entities.CreativeAsset{}).Error
	})
	if err != nil {
		return r.dbError(ctx, "failed to delete asset cascade", err)
	}
	return nil
}

func (r *Repository) dbError(ctx context.Context, message string, err error) error {
	return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, message, err)
}

func mapAsset(entity entities.CreativeAsset) domain.Asset {
	return domain.Asset{
		Fingerprint:    entity.Fingerprint,
		SourceURL:      entity.SourceURL,
		PlatformAdID:   entity.PlatformAdID,
		Brand:          entity.Brand,
		MediaType:      domain.MediaType(entity.MediaType),
		MimeType:       entity.MimeType,
		SizeBytes:      entity.SizeBytes,
		LocalPath:      entity.LocalPath,
		DownloadedAt:   entity.DownloadedAt,
		LastAccessedAt: entity.LastAccessedAt,
	}
}

func mapAnalysis(entity entities.AnalysisRecord) domain.AnalysisRecord {
	return domain.AnalysisRecord{
		Fingerprint:  entity.Fingerprint,
		Kind:         domain.AnalysisKind(entity.Kind),
		Payload:      json.RawMessage(entity.Payload),
		ModelVersion: entity.ModelVersion,
		ComputedAt:   entity.ComputedAt,
	}
}
