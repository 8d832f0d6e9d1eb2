package cache_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	creative "adscope/internal/domain/creative"
	"adscope/internal/infrastructure/database/entities"
	cacherepo "adscope/internal/infrastructure/repository/cache"
)

func newTestRepo(t *testing.T) *cacherepo.Repository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&entities.CreativeAsset{}, &entities.AnalysisRecord{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return cacherepo.NewRepository(db)
}

func sampleAsset(fingerprint, url, brand string, mediaType creative.MediaType, downloadedAt time.Time) *creative.Asset {
	return &creative.Asset{
		Fingerprint:    fingerprint,
		SourceURL:      url,
		Brand:          brand,
		MediaType:      mediaType,
		MimeType:       "image/png",
		SizeBytes:      100,
		LocalPath:      "/cache/" + fingerprint + ".png",
		DownloadedAt:   downloadedAt,
		LastAccessedAt: downloadedAt,
	}
}

func TestFindAssetAbsentReturnsNilNil(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	asset, err := repo.FindAssetByFingerprint(ctx, "missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if asset != nil {
		t.Fatal("want nil asset for missing fingerprint")
	}
}

func TestCreateAndLookupBySourceURL(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	asset := sampleAsset("fp1", "https://cdn/a.png", "acme", creative.MediaTypeImage, now)
	if err := repo.CreateAsset(ctx, asset); err != nil {
		t.Fatalf("CreateAsset: %v", err)
	}

	found, err := repo.FindAssetBySourceURL(ctx, creative.HashSourceURL("https://cdn/a.png"))
	if err != nil {
		t.Fatalf("FindAssetBySourceURL: %v", err)
	}
	if found == nil || found.Fingerprint != "fp1" || found.Brand != "acme" {
		t.Fatalf("found=%+v", found)
	}
}

func TestCreateAssetIdempotentOnConflict(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	asset := sampleAsset("fp1", "https://cdn/a.png", "acme", creative.MediaTypeImage, now)
	if err := repo.CreateAsset(ctx, asset); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if err := repo.CreateAsset(ctx, asset); err != nil {
		t.Fatalf("duplicate create should be a no-op, got %v", err)
	}
}

func TestSaveAnalysisSupersedesInPlace(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	first := &creative.AnalysisRecord{
		Fingerprint:  "fp1",
		Kind:         creative.AnalysisKindVideo,
		Payload:      json.RawMessage(`{"analysis":"v1"}`),
		ModelVersion: "m1",
		ComputedAt:   now,
	}
	if err := repo.SaveAnalysis(ctx, first); err != nil {
		t.Fatalf("first save: %v", err)
	}

	second := &creative.AnalysisRecord{
		Fingerprint:  "fp1",
		Kind:         creative.AnalysisKindVideo,
		Payload:      json.RawMessage(`{"analysis":"v2"}`),
		ModelVersion: "m2",
		ComputedAt:   now.Add(time.Hour),
	}
	if err := repo.SaveAnalysis(ctx, second); err != nil {
		t.Fatalf("supersede: %v", err)
	}

	found, err := repo.FindAnalysis(ctx, "fp1", creative.AnalysisKindVideo)
	if err != nil {
		t.Fatalf("FindAnalysis: %v", err)
	}
	if found.ModelVersion != "m2" {
		t.Fatalf("model=%s, want m2 (superseded)", found.ModelVersion)
	}
	if string(found.Payload) != `{"analysis":"v2"}` {
		t.Fatalf("payload=%s", found.Payload)
	}
}

func TestSearchOrderingIsStable(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)

	// Two assets share a download time; fingerprint breaks the tie.
	for _, spec := range []struct {
		fingerprint string
		offset      time.Duration
	}{
		{"bbb", 0},
		{"aaa", 0},
		{"ccc", 30 * time.Minute},
	} {
		asset := sampleAsset(spec.fingerprint, "https://cdn/"+spec.fingerprint, "acme", creative.MediaTypeImage, base.Add(spec.offset))
		if err := repo.CreateAsset(ctx, asset); err != nil {
			t.Fatalf("CreateAsset(%s): %v", spec.fingerprint, err)
		}
	}

	for run := 0; run < 3; run++ {
		assets, err := repo.Search(ctx, creative.SearchFilter{})
		if err != nil {
			t.Fatalf("Search: %v", err)
		}
		got := []string{assets[0].Fingerprint, assets[1].Fingerprint, assets[2].Fingerprint}
		want := []string{"ccc", "aaa", "bbb"}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("run %d order=%v, want %v", run, got, want)
			}
		}
	}
}

func TestSearchFilters(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	specs := []struct {
		fingerprint string
		brand       string
		mediaType   creative.MediaType
	}{
		{"f1", "acme", creative.MediaTypeImage},
		{"f2", "acme", creative.MediaTypeVideo},
		{"f3", "globex", creative.MediaTypeVideo},
	}
	for _, spec := range specs {
		if err := repo.CreateAsset(ctx, sampleAsset(spec.fingerprint, "https://cdn/"+spec.fingerprint, spec.brand, spec.mediaType, now)); err != nil {
			t.Fatalf("CreateAsset: %v", err)
		}
	}

	byBrand, err := repo.Search(ctx, creative.SearchFilter{Brand: "acme"})
	if err != nil {
		t.Fatalf("Search brand: %v", err)
	}
	if len(byBrand) != 2 {
		t.Fatalf("brand filter len=%d, want 2", len(byBrand))
	}

	videos, err := repo.Search(ctx, creative.SearchFilter{MediaType: creative.MediaTypeVideo})
	if err != nil {
		t.Fatalf("Search media type: %v", err)
	}
	if len(videos) != 2 {
		t.Fatalf("media filter len=%d, want 2", len(videos))
	}

	both, err := repo.Search(ctx, creative.SearchFilter{Brand: "acme", MediaType: creative.MediaTypeVideo})
	if err != nil {
		t.Fatalf("Search combined: %v", err)
	}
	if len(both) != 1 || both[0].Fingerprint != "f2" {
		t.Fatalf("combined filter=%v", both)
	}
}

func TestStatsAggregation(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if err := repo.CreateAsset(ctx, sampleAsset("f1", "u1", "acme", creative.MediaTypeImage, now)); err != nil {
		t.Fatal(err)
	}
	if err := repo.CreateAsset(ctx, sampleAsset("f2", "u2", "acme", creative.MediaTypeVideo, now)); err != nil {
		t.Fatal(err)
	}
	if err := repo.SaveAnalysis(ctx, &creative.AnalysisRecord{
		Fingerprint: "f1", Kind: creative.AnalysisKindImage,
		Payload: json.RawMessage(`{}`), ComputedAt: now,
	}); err != nil {
		t.Fatal(err)
	}

	stats, err := repo.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.TotalAssets != 2 || stats.TotalBytes != 200 {
		t.Fatalf("totals=%d/%d, want 2/200", stats.TotalAssets, stats.TotalBytes)
	}
	if stats.ByBrand["acme"] != 2 {
		t.Fatalf("ByBrand=%v", stats.ByBrand)
	}
	if stats.ByMediaType["image"] != 1 || stats.ByMediaType["video"] != 1 {
		t.Fatalf("ByMediaType=%v", stats.ByMediaType)
	}
	if stats.AnalyzedCount != 1 {
		t.Fatalf("AnalyzedCount=%d, want 1", stats.AnalyzedCount)
	}
}

func TestDeleteAssetCascadeRemovesAnalyses(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if err := repo.CreateAsset(ctx, sampleAsset("f1", "u1", "acme", creative.MediaTypeVideo, now)); err != nil {
		t.Fatal(err)
	}
	if err := repo.SaveAnalysis(ctx, &creative.AnalysisRecord{
		Fingerprint: "f1", Kind: creative.AnalysisKindVideo,
		Payload: json.RawMessage(`{}`), ComputedAt: now,
	}); err != nil {
		t.Fatal(err)
	}

	if err := repo.DeleteAssetCascade(ctx, "f1"); err != nil {
		t.Fatalf("DeleteAssetCascade: %v", err)
	}

	asset, err := repo.FindAssetByFingerprint(ctx, "f1")
	if err != nil || asset != nil {
		t.Fatalf("asset=%v err=%v, want nil/nil", asset, err)
	}
	record, err := repo.FindAnalysis(ctx, "f1", creative.AnalysisKindVideo)
	if err != nil || record != nil {
		t.Fatalf("record=%v err=%v, want nil/nil (cascade)", record, err)
	}
}

func TestTouchAssetUpdatesRecency(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	old := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)

	if err := repo.CreateAsset(ctx, sampleAsset("f1", "u1", "", creative.MediaTypeImage, old)); err != nil {
		t.Fatal(err)
	}

	touched := old.Add(time.Hour)
	if err := repo.TouchAsset(ctx, "f1", touched); err != nil {
		t.Fatalf("TouchAsset: %v", err)
	}

	stale, err := repo.ListOlderThan(ctx, old.Add(30*time.Minute))
	if err != nil {
		t.Fatalf("ListOlderThan: %v", err)
	}
	if len(stale) != 0 {
		t.Fatalf("touched asset still listed as stale: %v", stale)
	}
}
