package ads_test

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"adscope/internal/domain/ads"
)

type fakeFetchClient struct {
	searchCalls int
	adsCalls    int
	searchFunc  func(query string) ([]ads.BrandMatch, error)
	adsFunc     func(platformID string) ([]ads.Ad, error)
}

func (f *fakeFetchClient) SearchCompanies(_ context.Context, query string) ([]ads.BrandMatch, error) {
	f.searchCalls++
	return f.searchFunc(query)
}

func (f *fakeFetchClient) GetAds(_ context.Context, platformID string, _ ads.FetchOptions) ([]ads.Ad, error) {
	f.adsCalls++
	return f.adsFunc(platformID)
}

func TestSearchBrandsBatchDeduplicatesInputs(t *testing.T) {
	client := &fakeFetchClient{
		searchFunc: func(query string) ([]ads.BrandMatch, error) {
			return []ads.BrandMatch{{Name: query, PlatformID: "id-" + query}}, nil
		},
	}
	svc := ads.NewService(client, zerolog.Nop())

	results, info, err := svc.SearchBrandsBatch(context.Background(), []string{"nike", "adidas", "nike"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.searchCalls != 2 {
		t.Fatalf("searchCalls=%d, want 2 (deduped)", client.searchCalls)
	}
	if len(results) != 2 {
		t.Fatalf("len(results)=%d, want 2", len(results))
	}
	if info.TotalRequested != 2 || info.Successful != 2 || info.Failed != 0 {
		t.Fatalf("info=%+v, want 2/2/0", info)
	}
}

func TestSearchBrandsBatchIsolatesFailures(t *testing.T) {
	client := &fakeFetchClient{
		searchFunc: func(query string) ([]ads.BrandMatch, error) {
			if query == "broken" {
				return nil, errors.New("upstream hiccup")
			}
			return []ads.BrandMatch{{Name: query, PlatformID: "id"}}, nil
		},
	}
	svc := ads.NewService(client, zerolog.Nop())

	results, info, err := svc.SearchBrandsBatch(context.Background(), []string{"nike", "broken", "adidas"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.Successful != 2 || info.Failed != 1 {
		t.Fatalf("info=%+v, want successful=2 failed=1", info)
	}
	if got := results["broken"]; got == nil || len(got) != 0 {
		t.Fatalf("failed brand should map to empty slice, got %v", got)
	}
}

func TestSearchBrandsBatchAbortsOnCreditExhaustion(t *testing.T) {
	client := &fakeFetchClient{
		searchFunc: func(query string) ([]ads.BrandMatch, error) {
			if query == "second" {
				return nil, &ads.CreditExhaustedError{TopupURL: "https://example.com"}
			}
			return []ads.BrandMatch{{Name: query, PlatformID: "id"}}, nil
		},
	}
	svc := ads.NewService(client, zerolog.Nop())

	_, _, err := svc.SearchBrandsBatch(context.Background(), []string{"first", "second", "third"})
	var exhausted *ads.CreditExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("err=%v, want CreditExhaustedError", err)
	}
	if client.searchCalls != 2 {
		t.Fatalf("searchCalls=%d, want 2 (no calls after exhaustion)", client.searchCalls)
	}
}

func TestGetAdsBatchIsolatesFailures(t *testing.T) {
	client := &fakeFetchClient{
		adsFunc: func(platformID string) ([]ads.Ad, error) {
			if platformID == "bad" {
				return nil, errors.New("not found")
			}
			return []ads.Ad{{AdID: "ad-" + platformID, MediaURL: "https://cdn/x", Body: "copy", MediaType: ads.MediaTypeImage}}, nil
		},
	}
	svc := ads.NewService(client, zerolog.Nop())

	results, info, err := svc.GetAdsBatch(context.Background(), []string{"one", "bad"}, ads.FetchOptions{Limit: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results["one"]) != 1 || len(results["bad"]) != 0 {
		t.Fatalf("results=%v, want one hit and one empty", results)
	}
	if info.Successful != 1 || info.Failed != 1 {
		t.Fatalf("info=%+v, want 1/1", info)
	}
}

func TestIsProviderExhausted(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"credit exhausted", &ads.CreditExhaustedError{}, true},
		{"rate limited", &ads.RateLimitedError{}, true},
		{"wrapped rate limit", errors.Join(errors.New("ctx"), &ads.RateLimitedError{}), true},
		{"plain error", errors.New("boom"), false},
		{"nil", nil, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := ads.IsProviderExhausted(tc.err); got != tc.want {
				t.Errorf("IsProviderExhausted() = %v, want %v", got, tc.want)
			}
		})
	}
}
