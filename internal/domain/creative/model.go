package creative

import (
	"encoding/json"
	"time"
)

// MediaType classifies a cached creative.
type MediaType string

const (
	MediaTypeImage MediaType = "image"
	MediaTypeVideo MediaType = "video"
)

// AnalysisKind is the category of AI analysis for a creative.
type AnalysisKind string

const (
	AnalysisKindImage AnalysisKind = "image-analysis"
	AnalysisKindVideo AnalysisKind = "video-analysis"
)

// Asset is a downloaded ad creative, identified by the sha256 fingerprint of
// its bytes. Multiple ads may reference the same fingerprint; exactly one
// file is stored per fingerprint.
type Asset struct {
	Fingerprint    string    `json:"fingerprint"`
	SourceURL      string    `json:"source_url"`
	PlatformAdID   string    `json:"platform_ad_id,omitempty"`
	Brand          string    `json:"brand,omitempty"`
	MediaType      MediaType `json:"media_type"`
	MimeType       string    `json:"mime_type"`
	SizeBytes      int64     `json:"size_bytes"`
	LocalPath      string    `json:"local_path"`
	DownloadedAt   time.Time `json:"downloaded_at"`
	LastAccessedAt time.Time `json:"last_accessed_at"`
}

// AnalysisRecord is a cached AI analysis output for one (fingerprint, kind).
// Records are never mutated, only superseded or evicted with their asset.
type AnalysisRecord struct {
	Fingerprint  string          `json:"fingerprint"`
	Kind         AnalysisKind    `json:"kind"`
	Payload      json.RawMessage `json:"payload"`
	ModelVersion string          `json:"model_version,omitempty"`
	ComputedAt   time.Time       `json:"computed_at"`
}

// SearchFilter selects cached assets. Zero values mean "no constraint".
type SearchFilter struct {
	Brand           string
	MediaType       MediaType
	DownloadedAfter time.Time
	AccessedAfter   time.Time
	Limit           int
}

// Stats summarizes the cache contents.
type Stats struct {
	TotalAssets   int64            `json:"total_assets"`
	TotalBytes    int64            `json:"total_bytes"`
	AnalyzedCount int64            `json:"analyzed_count"`
	ByBrand       map[string]int64 `json:"by_brand"`
	ByMediaType   map[string]int64 `json:"by_media_type"`
}

// CleanupPolicy is either age-based (MaxAge > 0) or size-based
// (MaxTotalBytes > 0, least-recently-used evicted first).
type CleanupPolicy struct {
	MaxAge        time.Duration
	MaxTotalBytes int64
}

// CleanupReport tallies one cleanup run. A failed deletion does not abort
// the run; it is recorded here instead.
type CleanupReport struct {
	RemovedCount int      `json:"removed_count"`
	FreedBytes   int64    `json:"freed_bytes"`
	Failures     []string `json:"failures,omitempty"`
}

// AnalysisOutcome is one item of a batch result: either a record or the
// reason the item failed. Exactly one of the two is set.
type AnalysisOutcome struct {
	MediaURL string          `json:"media_url"`
	Record   *AnalysisRecord `json:"record,omitempty"`
	Cached   bool            `json:"cached"`
	Err      string          `json:"error,omitempty"`
}

// BatchResult aggregates a batch run in caller order.
// Succeeded + Failed always equals len(Items).
type BatchResult struct {
	Items     []AnalysisOutcome `json:"items"`
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
}
