package adlibrary

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"adscope/internal/domain/ads"
	"adscope/internal/infrastructure/metrics"
	"adscope/internal/infrastructure/retry"
)

const (
	searchCompaniesPath = "/v1/facebook/adLibrary/search/companies"
	companyAdsPath      = "/v1/facebook/adLibrary/company/ads"

	defaultTopupURL = "https://scrapecreators.com/dashboard"

	// The provider caps page size at 100 regardless of the requested limit.
	maxPageSize = 100
)

// ClientConfig captures the knobs exposed to operators for the ad-library client.
type ClientConfig struct {
	APIKey   string
	BaseURL  string
	Timeout  time.Duration
	MaxPages int
	Retry    retry.Config
}

// Client talks to the ScrapeCreators Facebook Ad Library API.
type Client struct {
	cfg  ClientConfig
	http *resty.Client
	log  zerolog.Logger
}

var _ ads.FetchClient = (*Client)(nil)

// NewClient wires the HTTP client for the ad-library provider.
func NewClient(cfg ClientConfig, log zerolog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 10
	}

	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
	}

	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetHeader("User-Agent", "AdScope/1.0").
		SetHeader("x-api-key", cfg.APIKey).
		SetTimeout(cfg.Timeout).
		SetRetryCount(0). // retries are handled by retry.WithRetry
		SetTransport(transport)

	return &Client{
		cfg:  cfg,
		http: httpClient,
		log:  log.With().Str("component", "adlibrary-client").Logger(),
	}
}

// SearchCompanies looks up brands in the ad library by name.
func (c *Client) SearchCompanies(ctx context.Context, query string) ([]ads.BrandMatch, error) {
	started := time.Now()
	body, err := retry.WithRetry(ctx, c.cfg.Retry, "adlibrary.search_companies", func() (searchResponse, error) {
		var parsed searchResponse
		resp, err := c.http.R().
			SetContext(ctx).
			SetQueryParam("query", query).
			SetResult(&parsed).
			Get(searchCompaniesPath)
		if err != nil {
			return searchResponse{}, err
		}
		if err := c.checkStatus(resp); err != nil {
			return searchResponse{}, err
		}
		return parsed, nil
	})
	metrics.RecordProviderLatency("scrapecreators", time.Since(started).Seconds())
	if err != nil {
		return nil, err
	}

	matches := make([]ads.BrandMatch, 0, len(body.SearchResults))
	for _, result := range body.SearchResults {
		if result.Name == "" || result.PageID == "" {
			continue
		}
		matches = append(matches, ads.BrandMatch{Name: result.Name, PlatformID: result.PageID})
	}

	c.log.Debug().Str("query", query).Int("matches", len(matches)).Msg("company search completed")
	return matches, nil
}

// GetAds retrieves ads for a platform ID, following pagination cursors up to
// the configured page cap.
func (c *Client) GetAds(ctx context.Context, platformID string, opts ads.FetchOptions) ([]ads.Ad, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	var collected []ads.Ad
	cursor := ""

	for page := 0; len(collected) < limit && page < c.cfg.MaxPages; page++ {
		started := time.Now()
		body, err := retry.WithRetry(ctx, c.cfg.Retry, "adlibrary.company_ads", func() (adsResponse, error) {
			req := c.http.R().
				SetContext(ctx).
				SetQueryParam("pageId", platformID).
				SetQueryParam("limit", strconv.Itoa(min(limit, maxPageSize)))
			if opts.Country != "" {
				req.SetQueryParam("country", opts.Country)
			}
			if opts.Trim {
				req.SetQueryParam("trim", "true")
			}
			if cursor != "" {
				req.SetQueryParam("cursor", cursor)
			}

			var parsed adsResponse
			resp, err := req.SetResult(&parsed).Get(companyAdsPath)
			if err != nil {
				return adsResponse{}, err
			}
			if err := c.checkStatus(resp); err != nil {
				return adsResponse{}, err
			}
			return parsed, nil
		})
		metrics.RecordProviderLatency("scrapecreators", time.Since(started).Seconds())
		if err != nil {
			// Partial pages already collected are kept only when the error is
			// not provider-wide; the caller sees either ads or the failure.
			if len(collected) > 0 && !ads.IsProviderExhausted(err) {
				c.log.Warn().Err(err).Str("platform_id", platformID).Int("collected", len(collected)).
					Msg("pagination aborted, returning partial results")
				break
			}
			return nil, err
		}

		pageAds := normalizeAds(body.Results, opts.Trim, c.log)
		if len(pageAds) == 0 {
			break
		}
		collected = append(collected, pageAds...)

		cursor = body.Cursor
		if cursor == "" {
			break
		}
	}

	if len(collected) > limit {
		collected = collected[:limit]
	}
	return collected, nil
}

// checkStatus maps provider status codes to typed errors. Credit exhaustion
// and rate limiting are terminal for the calling operation and must not be
// retried blindly.
func (c *Client) checkStatus(resp *resty.Response) error {
	switch resp.StatusCode() {
	case http.StatusOK:
		return nil
	case http.StatusPaymentRequired:
		return retry.MarkPermanent(&ads.CreditExhaustedError{TopupURL: defaultTopupURL})
	case http.StatusTooManyRequests:
		var retryAfter time.Duration
		if raw := resp.Header().Get("Retry-After"); raw != "" {
			if secs, err := strconv.Atoi(raw); err == nil {
				retryAfter = time.Duration(secs) * time.Second
			}
		}
		return retry.MarkPermanent(&ads.RateLimitedError{RetryAfter: retryAfter})
	case http.StatusForbidden:
		// A 403 can be credit-related on this provider; surface it as such so
		// callers stop burning requests.
		return retry.MarkPermanent(&ads.CreditExhaustedError{TopupURL: defaultTopupURL})
	default:
		return fmt.Errorf("ad-library request failed: %d %s", resp.StatusCode(), resp.Status())
	}
}
