package ads

import "context"

// MediaType classifies an ad creative.
type MediaType string

const (
	MediaTypeImage MediaType = "image"
	MediaTypeVideo MediaType = "video"
)

// BrandMatch is one ad-library search hit for a brand query.
type BrandMatch struct {
	Name       string `json:"name"`
	PlatformID string `json:"platform_id"`
}

// Ad is a canonical ad record normalized from the ad-library provider.
type Ad struct {
	AdID      string    `json:"ad_id"`
	StartDate string    `json:"start_date,omitempty"`
	EndDate   string    `json:"end_date,omitempty"`
	MediaURL  string    `json:"media_url"`
	Body      string    `json:"body"`
	MediaType MediaType `json:"media_type"`

	// Extended fields, populated when the caller disables trimming.
	PageID             string   `json:"page_id,omitempty"`
	PageName           string   `json:"page_name,omitempty"`
	Currency           string   `json:"currency,omitempty"`
	FundingEntity      string   `json:"funding_entity,omitempty"`
	Languages          []string `json:"languages,omitempty"`
	PublisherPlatforms []string `json:"publisher_platforms,omitempty"`
	EffectiveStatus    string   `json:"effective_status,omitempty"`
}

// FetchOptions controls ad retrieval for one platform ID.
type FetchOptions struct {
	Limit   int
	Country string
	Trim    bool
}

// FetchClient is the ad-library provider capability. Implementations surface
// credit exhaustion and rate limiting as distinct error types.
type FetchClient interface {
	SearchCompanies(ctx context.Context, query string) ([]BrandMatch, error)
	GetAds(ctx context.Context, platformID string, opts FetchOptions) ([]Ad, error)
}

// BatchInfo summarizes per-input outcomes of a batch fetch.
type BatchInfo struct {
	TotalRequested int `json:"total_requested"`
	Successful     int `json:"successful"`
	Failed         int `json:"failed"`
	APICallsUsed   int `json:"api_calls_used"`
}
