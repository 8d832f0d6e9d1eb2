package creative

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"adscope/internal/infrastructure/metrics"
	"adscope/utils/platformerrors"
)

// ServiceConfig carries the tunables for the media cache and batch
// orchestration.
type ServiceConfig struct {
	MaxMediaBytes           int64
	DownloadTimeout         time.Duration
	RefreshOnModelChange    bool
	DefaultBatchConcurrency int
	MaxBatchConcurrency     int
	DefaultMaxAge           time.Duration
}

// RequestMeta is caller-supplied context recorded alongside a cached asset.
type RequestMeta struct {
	Brand        string
	PlatformAdID string
}

// Service owns the local media cache and the analysis result cache. All tool
// operations that touch creatives flow through here.
type Service struct {
	repo     Repository
	store    ContentStore
	analyzer Analyzer
	http     *resty.Client
	cfg      ServiceConfig
	log      zerolog.Logger

	// downloads collapses concurrent fetches of the same source URL into
	// one network call.
	downloads singleflight.Group
	// analyses collapses concurrent computations for one (fingerprint, kind).
	analyses singleflight.Group

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewService(repo Repository, store ContentStore, analyzer Analyzer, cfg ServiceConfig, log zerolog.Logger) *Service {
	if cfg.DefaultBatchConcurrency < 1 {
		cfg.DefaultBatchConcurrency = 3
	}
	if cfg.MaxBatchConcurrency < cfg.DefaultBatchConcurrency {
		cfg.MaxBatchConcurrency = cfg.DefaultBatchConcurrency
	}

	return &Service{
		repo:     repo,
		store:    store,
		analyzer: analyzer,
		http:     resty.New().SetTimeout(cfg.DownloadTimeout),
		cfg:      cfg,
		log:      log.With().Str("component", "creative-service").Logger(),
		locks:    make(map[string]*sync.Mutex),
	}
}

// fingerprintLock serializes index registration per fingerprint so two
// downloads that produce identical bytes cannot race the content store.
func (s *Service) fingerprintLock(fingerprint string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[fingerprint]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[fingerprint] = lock
	}
	return lock
}

// EnsureLocal returns the cached asset for sourceURL, downloading it first
// when absent. The second return reports whether the asset was already
// cached.
func (s *Service) EnsureLocal(ctx context.Context, sourceURL string, want MediaType, meta RequestMeta) (*Asset, bool, error) {
	sourceURL = strings.TrimSpace(sourceURL)
	if sourceURL == "" {
		return nil, false, platformerrors.NewError(ctx, platformerrors.LayerDomain,
			platformerrors.ErrorTypeValidation, "media url must not be empty", nil)
	}

	urlHash := HashSourceURL(sourceURL)
	asset, err := s.repo.FindAssetBySourceURL(ctx, urlHash)
	if err != nil {
		return nil, false, err
	}
	if asset != nil {
		if s.store.Exists(asset.LocalPath) {
			s.touch(ctx, asset)
			metrics.RecordCacheLookup("media", true)
			return asset, true, nil
		}
		// Index row without a file. Self-heal by forgetting the asset and
		// downloading again.
		corruption := platformerrors.NewErrorWithContext(ctx, platformerrors.LayerDomain,
			platformerrors.ErrorTypeCacheCorruption, "cached file missing, re-downloading", nil,
			map[string]any{"fingerprint": asset.Fingerprint, "path": asset.LocalPath})
		platformerrors.LogError(s.log, corruption)
		if err := s.repo.DeleteAssetCascade(ctx, asset.Fingerprint); err != nil {
			return nil, false, err
		}
	}
	metrics.RecordCacheLookup("media", false)

	result, err, _ := s.downloads.Do(sourceURL, func() (any, error) {
		return s.downloadAndRegister(ctx, sourceURL, want, meta)
	})
	if err != nil {
		return nil, false, err
	}
	return result.(*Asset), false, nil
}

func (s *Service) downloadAndRegister(ctx context.Context, sourceURL string, want MediaType, meta RequestMeta) (*Asset, error) {
	data, err := s.fetchBytes(ctx, sourceURL)
	if err != nil {
		return nil, err
	}

	mtype := mimetype.Detect(data)
	detected, err := classify(mtype.String())
	if err != nil {
		return nil, platformerrors.NewErrorWithContext(ctx, platformerrors.LayerDomain,
			platformerrors.ErrorTypeValidation, "unsupported media content", err,
			map[string]any{"url": sourceURL, "mime_type": mtype.String()})
	}
	if want != "" && detected != want {
		return nil, platformerrors.NewErrorWithContext(ctx, platformerrors.LayerDomain,
			platformerrors.ErrorTypeValidation,
			fmt.Sprintf("url resolves to %s content, expected %s", detected, want), nil,
			map[string]any{"url": sourceURL, "mime_type": mtype.String()})
	}

	fingerprint := Fingerprint(data)

	lock := s.fingerprintLock(fingerprint)
	lock.Lock()
	defer lock.Unlock()

	// Identical bytes may already be registered under another source URL.
	existing, err := s.repo.FindAssetByFingerprint(ctx, fingerprint)
	if err != nil {
		return nil, err
	}
	if existing != nil && s.store.Exists(existing.LocalPath) {
		s.touch(ctx, existing)
		s.log.Debug().
			Str("fingerprint", fingerprint).
			Str("url", sourceURL).
			Msg("download deduplicated by fingerprint")
		return existing, nil
	}

	path, err := s.store.Write(ctx, fingerprint, detected, mtype.Extension(), data)
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain,
			platformerrors.ErrorTypeInternal, "failed to persist downloaded media", err)
	}

	now := time.Now().UTC()
	asset := &Asset{
		Fingerprint:    fingerprint,
		SourceURL:      sourceURL,
		PlatformAdID:   meta.PlatformAdID,
		Brand:          meta.Brand,
		MediaType:      detected,
		MimeType:       mtype.String(),
		SizeBytes:      int64(len(data)),
		LocalPath:      path,
		DownloadedAt:   now,
		LastAccessedAt: now,
	}
	if err := s.repo.CreateAsset(ctx, asset); err != nil {
		return nil, err
	}

	metrics.DownloadedBytesTotal.Add(float64(len(data)))
	s.log.Info().
		Str("fingerprint", fingerprint).
		Str("media_type", string(detected)).
		Int64("bytes", asset.SizeBytes).
		Msg("media downloaded and cached")

	return asset, nil
}

func (s *Service) fetchBytes(ctx context.Context, sourceURL string) ([]byte, error) {
	resp, err := s.http.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(sourceURL)
	if err != nil {
		return nil, platformerrors.NewErrorWithContext(ctx, platformerrors.LayerDomain,
			platformerrors.ErrorTypeFetchFailed, "media download failed", err,
			map[string]any{"url": sourceURL})
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.StatusCode() >= 400 {
		return nil, platformerrors.NewErrorWithContext(ctx, platformerrors.LayerDomain,
			platformerrors.ErrorTypeFetchFailed,
			fmt.Sprintf("media download returned status %d", resp.StatusCode()), nil,
			map[string]any{"url": sourceURL})
	}

	// Read one byte past the cap to distinguish at-limit from over-limit.
	data, err := io.ReadAll(io.LimitReader(body, s.cfg.MaxMediaBytes+1))
	if err != nil {
		return nil, platformerrors.NewErrorWithContext(ctx, platformerrors.LayerDomain,
			platformerrors.ErrorTypeFetchFailed, "media download interrupted", err,
			map[string]any{"url": sourceURL})
	}
	if int64(len(data)) > s.cfg.MaxMediaBytes {
		return nil, platformerrors.NewErrorWithContext(ctx, platformerrors.LayerDomain,
			platformerrors.ErrorTypeValidation,
			fmt.Sprintf("media exceeds the %d byte limit", s.cfg.MaxMediaBytes), nil,
			map[string]any{"url": sourceURL})
	}
	if len(data) == 0 {
		return nil, platformerrors.NewErrorWithContext(ctx, platformerrors.LayerDomain,
			platformerrors.ErrorTypeFetchFailed, "media download returned an empty body", nil,
			map[string]any{"url": sourceURL})
	}
	return data, nil
}

func (s *Service) touch(ctx context.Context, asset *Asset) {
	now := time.Now().UTC()
	if err := s.repo.TouchAsset(ctx, asset.Fingerprint, now); err != nil {
		// Recency is advisory; a failed touch never fails the caller.
		s.log.Warn().Err(err).Str("fingerprint", asset.Fingerprint).Msg("failed to update last access time")
		return
	}
	asset.LastAccessedAt = now
}

func classify(mime string) (MediaType, error) {
	switch {
	case strings.HasPrefix(mime, "image/"):
		return MediaTypeImage, nil
	case strings.HasPrefix(mime, "video/"):
		return MediaTypeVideo, nil
	default:
		return "", fmt.Errorf("mime type %q is neither image nor video", mime)
	}
}

// getOrCompute returns the cached analysis for (asset, kind), calling the
// provider at most once per key even under concurrent requests.
func (s *Service) getOrCompute(ctx context.Context, asset *Asset, kind AnalysisKind) (*AnalysisRecord, bool, error) {
	record, err := s.repo.FindAnalysis(ctx, asset.Fingerprint, kind)
	if err != nil {
		return nil, false, err
	}
	if record != nil && !s.stale(record) {
		metrics.RecordCacheLookup("analysis", true)
		return record, true, nil
	}
	metrics.RecordCacheLookup("analysis", false)

	key := asset.Fingerprint + "|" + string(kind)
	result, err, _ := s.analyses.Do(key, func() (any, error) {
		// Another caller may have finished while this one waited.
		existing, err := s.repo.FindAnalysis(ctx, asset.Fingerprint, kind)
		if err != nil {
			return nil, err
		}
		if existing != nil && !s.stale(existing) {
			return existing, nil
		}
		return s.compute(ctx, asset, kind)
	})
	if err != nil {
		return nil, false, err
	}
	return result.(*AnalysisRecord), false, nil
}

func (s *Service) stale(record *AnalysisRecord) bool {
	return s.cfg.RefreshOnModelChange && record.ModelVersion != s.analyzer.ModelVersion()
}

func (s *Service) compute(ctx context.Context, asset *Asset, kind AnalysisKind) (*AnalysisRecord, error) {
	var payload []byte
	var err error

	switch kind {
	case AnalysisKindImage:
		var data []byte
		data, err = s.readAsset(ctx, asset)
		if err == nil {
			payload, err = s.analyzer.AnalyzeImage(ctx, data, asset.MimeType)
		}
	case AnalysisKindVideo:
		payload, err = s.analyzer.AnalyzeVideo(ctx, asset.LocalPath, asset.MimeType)
	default:
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain,
			platformerrors.ErrorTypeInternal, fmt.Sprintf("unknown analysis kind %q", kind), nil)
	}
	if err != nil {
		return nil, err
	}

	record := &AnalysisRecord{
		Fingerprint:  asset.Fingerprint,
		Kind:         kind,
		Payload:      payload,
		ModelVersion: s.analyzer.ModelVersion(),
		ComputedAt:   time.Now().UTC(),
	}
	if err := s.repo.SaveAnalysis(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

func (s *Service) readAsset(ctx context.Context, asset *Asset) ([]byte, error) {
	if !s.store.Exists(asset.LocalPath) {
		return nil, platformerrors.NewErrorWithContext(ctx, platformerrors.LayerDomain,
			platformerrors.ErrorTypeCacheCorruption, "cached file disappeared before analysis", nil,
			map[string]any{"fingerprint": asset.Fingerprint})
	}
	data, err := os.ReadFile(asset.LocalPath)
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain,
			platformerrors.ErrorTypeCacheCorruption, "failed to read cached file", err)
	}
	return data, nil
}

// AnalyzeImage downloads (or reuses) the image at url and returns its
// analysis, computing it only when no cached record exists.
func (s *Service) AnalyzeImage(ctx context.Context, url string, meta RequestMeta) (*AnalysisRecord, bool, error) {
	asset, _, err := s.EnsureLocal(ctx, url, MediaTypeImage, meta)
	if err != nil {
		return nil, false, err
	}
	return s.getOrCompute(ctx, asset, AnalysisKindImage)
}

// AnalyzeVideo downloads (or reuses) the video at url and returns its
// analysis, computing it only when no cached record exists.
func (s *Service) AnalyzeVideo(ctx context.Context, url string, meta RequestMeta) (*AnalysisRecord, bool, error) {
	asset, _, err := s.EnsureLocal(ctx, url, MediaTypeVideo, meta)
	if err != nil {
		return nil, false, err
	}
	return s.getOrCompute(ctx, asset, AnalysisKindVideo)
}

// AnalyzeVideosBatch analyzes every url with bounded concurrency. One item
// failing never aborts the rest, and results come back in input order. metas
// must be empty or align one-to-one with urls.
func (s *Service) AnalyzeVideosBatch(ctx context.Context, urls []string, metas []RequestMeta, concurrency int) (*BatchResult, error) {
	if len(urls) == 0 {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain,
			platformerrors.ErrorTypeValidation, "batch requires at least one video url", nil)
	}
	if len(metas) != 0 && len(metas) != len(urls) {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain,
			platformerrors.ErrorTypeValidation, "metadata lists must match the video url list length", nil)
	}

	if concurrency < 1 {
		concurrency = s.cfg.DefaultBatchConcurrency
	}
	if concurrency > s.cfg.MaxBatchConcurrency {
		concurrency = s.cfg.MaxBatchConcurrency
	}

	items := make([]AnalysisOutcome, len(urls))
	sem := semaphore.NewWeighted(int64(concurrency))
	var wg sync.WaitGroup

	var infraMu sync.Mutex
	var infraErr error

	for i, url := range urls {
		items[i].MediaURL = url

		if err := sem.Acquire(ctx, 1); err != nil {
			// Cancelled before this item started; report it failed and move
			// on so every input has an outcome.
			items[i].Err = fmt.Sprintf("cancelled before start: %v", err)
			continue
		}

		meta := RequestMeta{}
		if len(metas) == len(urls) {
			meta = metas[i]
		}

		wg.Add(1)
		go func(idx int, mediaURL string, meta RequestMeta) {
			defer wg.Done()
			defer sem.Release(1)

			record, cached, err := s.AnalyzeVideo(ctx, mediaURL, meta)
			if err != nil {
				items[idx].Err = err.Error()
				// A broken index or unwritable store would fail every
				// remaining item the same way; surface it to the caller
				// instead of reporting N copies of it.
				switch platformerrors.TypeOf(err) {
				case platformerrors.ErrorTypeDatabaseError, platformerrors.ErrorTypeInternal:
					infraMu.Lock()
					if infraErr == nil {
						infraErr = err
					}
					infraMu.Unlock()
				}
				return
			}
			items[idx].Record = record
			items[idx].Cached = cached
		}(i, url, meta)
	}

	wg.Wait()

	if infraErr != nil {
		return nil, infraErr
	}

	result := &BatchResult{Items: items}
	for _, item := range items {
		if item.Err == "" {
			result.Succeeded++
		} else {
			result.Failed++
		}
	}

	s.log.Info().
		Int("total", len(urls)).
		Int("succeeded", result.Succeeded).
		Int("failed", result.Failed).
		Int("concurrency", concurrency).
		Msg("batch video analysis finished")

	return result, nil
}

// Stats reports cache totals and per-brand/per-type breakdowns.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	return s.repo.Stats(ctx)
}

// Search lists cached assets matching filter, newest first.
func (s *Service) Search(ctx context.Context, filter SearchFilter) ([]Asset, error) {
	return s.repo.Search(ctx, filter)
}

// Cleanup evicts assets per policy. Each eviction removes the file first and
// the index rows second, so a crash mid-run leaves at worst an orphan row
// that the next access self-heals.
func (s *Service) Cleanup(ctx context.Context, policy CleanupPolicy) (*CleanupReport, error) {
	if policy.MaxAge <= 0 && policy.MaxTotalBytes <= 0 {
		policy.MaxAge = s.cfg.DefaultMaxAge
	}

	var victims []Asset
	var err error

	switch {
	case policy.MaxAge > 0:
		cutoff := time.Now().UTC().Add(-policy.MaxAge)
		victims, err = s.repo.ListOlderThan(ctx, cutoff)
		if err != nil {
			return nil, err
		}
	case policy.MaxTotalBytes > 0:
		stats, err := s.repo.Stats(ctx)
		if err != nil {
			return nil, err
		}
		if stats.TotalBytes <= policy.MaxTotalBytes {
			return &CleanupReport{}, nil
		}
		candidates, err := s.repo.ListByLeastRecentUse(ctx)
		if err != nil {
			return nil, err
		}
		excess := stats.TotalBytes - policy.MaxTotalBytes
		for _, asset := range candidates {
			if excess <= 0 {
				break
			}
			victims = append(victims, asset)
			excess -= asset.SizeBytes
		}
	}

	report := &CleanupReport{}
	for _, victim := range victims {
		if err := ctx.Err(); err != nil {
			report.Failures = append(report.Failures, fmt.Sprintf("%s: %v", victim.Fingerprint, err))
			continue
		}

		lock := s.fingerprintLock(victim.Fingerprint)
		lock.Lock()
		err := s.evict(ctx, victim)
		lock.Unlock()

		if err != nil {
			report.Failures = append(report.Failures, fmt.Sprintf("%s: %v", victim.Fingerprint, err))
			continue
		}
		report.RemovedCount++
		report.FreedBytes += victim.SizeBytes
		metrics.EvictedAssetsTotal.Inc()
	}

	s.log.Info().
		Int("removed", report.RemovedCount).
		Int64("freed_bytes", report.FreedBytes).
		Int("failures", len(report.Failures)).
		Msg("cache cleanup finished")

	return report, nil
}

func (s *Service) evict(ctx context.Context, asset Asset) error {
	// A file already gone is fine; the index rows still need to go.
	if err := s.store.Remove(ctx, asset.LocalPath); err != nil {
		return fmt.Errorf("remove file: %w", err)
	}
	if err := s.repo.DeleteAssetCascade(ctx, asset.Fingerprint); err != nil {
		return fmt.Errorf("remove index rows: %w", err)
	}
	return nil
}

// Health verifies the cache backing stores are usable.
func (s *Service) Health(ctx context.Context) error {
	return s.store.Health(ctx)
}
