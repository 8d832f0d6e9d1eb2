package creative

import (
	"context"
	"encoding/json"
	"time"
)

// Repository defines persistence operations for the cache index. Lookups
// return (nil, nil) when no row matches.
type Repository interface {
	FindAssetByFingerprint(ctx context.Context, fingerprint string) (*Asset, error)
	FindAssetBySourceURL(ctx context.Context, urlHash string) (*Asset, error)
	CreateAsset(ctx context.Context, asset *Asset) error
	TouchAsset(ctx context.Context, fingerprint string, accessedAt time.Time) error

	FindAnalysis(ctx context.Context, fingerprint string, kind AnalysisKind) (*AnalysisRecord, error)
	SaveAnalysis(ctx context.Context, record *AnalysisRecord) error

	Search(ctx context.Context, filter SearchFilter) ([]Asset, error)
	Stats(ctx context.Context) (*Stats, error)
	ListOlderThan(ctx context.Context, cutoff time.Time) ([]Asset, error)
	ListByLeastRecentUse(ctx context.Context) ([]Asset, error)

	// DeleteAssetCascade removes the asset row and every analysis record
	// keyed to its fingerprint in a single transaction.
	DeleteAssetCascade(ctx context.Context, fingerprint string) error
}

// ContentStore persists creative bytes addressed by fingerprint.
type ContentStore interface {
	// Write promotes data into the store and returns the final path.
	// The write is atomic: a crash never leaves a partial file at the
	// addressed location.
	Write(ctx context.Context, fingerprint string, mediaType MediaType, ext string, data []byte) (string, error)
	Remove(ctx context.Context, path string) error
	Exists(path string) bool
	Health(ctx context.Context) error
}

// Analyzer is the vision/video AI provider capability. Implementations
// return platformerrors.ErrorTypeAnalysisUnavailable when unconfigured,
// without attempting a call.
type Analyzer interface {
	AnalyzeImage(ctx context.Context, data []byte, mimeType string) (json.RawMessage, error)
	AnalyzeVideo(ctx context.Context, localPath, mimeType string) (json.RawMessage, error)
	ModelVersion() string
}
