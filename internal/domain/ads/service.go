package ads

import (
	"context"

	"github.com/rs/zerolog"
)

// Service exposes single and batch ad-library operations on top of a
// FetchClient. Batch operations deduplicate inputs while preserving order
// and isolate per-input failures; credit exhaustion and rate limiting abort
// the whole batch since every further call would fail the same way.
type Service struct {
	client FetchClient
	log    zerolog.Logger
}

func NewService(client FetchClient, log zerolog.Logger) *Service {
	return &Service{
		client: client,
		log:    log.With().Str("component", "ads-service").Logger(),
	}
}

// SearchBrands returns ad-library matches for one brand query.
func (s *Service) SearchBrands(ctx context.Context, query string) ([]BrandMatch, error) {
	matches, err := s.client.SearchCompanies(ctx, query)
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("query", query).Int("matches", len(matches)).Msg("brand search completed")
	return matches, nil
}

// SearchBrandsBatch searches for several brands, deduplicating the inputs.
// The result maps each requested brand to its matches; a brand whose lookup
// failed maps to an empty slice unless the failure is a provider-wide
// condition (credit exhaustion, rate limit), which is returned immediately.
func (s *Service) SearchBrandsBatch(ctx context.Context, queries []string) (map[string][]BrandMatch, *BatchInfo, error) {
	unique := dedupe(queries)
	results := make(map[string][]BrandMatch, len(unique))
	info := &BatchInfo{TotalRequested: len(unique), APICallsUsed: len(unique)}

	for _, query := range unique {
		matches, err := s.client.SearchCompanies(ctx, query)
		if err != nil {
			if IsProviderExhausted(err) {
				return results, info, err
			}
			s.log.Warn().Err(err).Str("query", query).Msg("brand search failed in batch")
			results[query] = []BrandMatch{}
			info.Failed++
			continue
		}
		results[query] = matches
		info.Successful++
	}

	return results, info, nil
}

// GetAds retrieves ads for one platform ID.
func (s *Service) GetAds(ctx context.Context, platformID string, opts FetchOptions) ([]Ad, error) {
	adsFound, err := s.client.GetAds(ctx, platformID, opts)
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("platform_id", platformID).Int("ads", len(adsFound)).Msg("ads retrieved")
	return adsFound, nil
}

// GetAdsBatch retrieves ads for several platform IDs with input dedup and
// per-input failure isolation.
func (s *Service) GetAdsBatch(ctx context.Context, platformIDs []string, opts FetchOptions) (map[string][]Ad, *BatchInfo, error) {
	unique := dedupe(platformIDs)
	results := make(map[string][]Ad, len(unique))
	info := &BatchInfo{TotalRequested: len(unique), APICallsUsed: len(unique)}

	for _, platformID := range unique {
		adsFound, err := s.client.GetAds(ctx, platformID, opts)
		if err != nil {
			if IsProviderExhausted(err) {
				return results, info, err
			}
			s.log.Warn().Err(err).Str("platform_id", platformID).Msg("ad retrieval failed in batch")
			results[platformID] = []Ad{}
			info.Failed++
			continue
		}
		results[platformID] = adsFound
		info.Successful++
	}

	return results, info, nil
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
