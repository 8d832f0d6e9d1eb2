package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog/log"

	"adscope/internal/domain/ads"
	"adscope/internal/infrastructure/metrics"
	"adscope/utils/mcp"
)

const maxAdsPerPage = 500

// PlatformIDArgs defines the arguments for the get_meta_platform_id tool
type PlatformIDArgs struct {
	BrandNames []string `json:"brand_names" jsonschema:"required,description=Brand or company names to look up in the Meta Ad Library (one or more)"`
}

// GetAdsArgs defines the arguments for the get_meta_ads tool
type GetAdsArgs struct {
	PlatformIDs []string `json:"platform_ids" jsonschema:"required,description=Meta platform IDs returned by get_meta_platform_id (one or more)"`
	Limit       *int     `json:"limit,omitempty" jsonschema:"description=Maximum ads per platform ID (default 50, max 500)"`
	Country     *string  `json:"country,omitempty" jsonschema:"description=Optional 2-letter country code filter (e.g. 'US')"`
	Trim        *bool    `json:"trim,omitempty" jsonschema:"description=Return only core ad fields (default true)"`
}

// AdsMCP registers ad-library tools.
type AdsMCP struct {
	service *ads.Service
}

func NewAdsMCP(service *ads.Service) *AdsMCP {
	return &AdsMCP{service: service}
}

func (a *AdsMCP) RegisterTools(server *mcpserver.MCPServer) {
	server.AddTool(
		mcpgo.NewTool("get_meta_platform_id",
			mcp.ReflectToMCPOptions(
				"Find Meta Ad Library platform IDs for one or more brand names. Returns matches per brand with a batch summary.",
				PlatformIDArgs{},
			)...,
		),
		a.handleGetPlatformID,
	)

	server.AddTool(
		mcpgo.NewTool("get_meta_ads",
			mcp.ReflectToMCPOptions(
				"Retrieve currently running ads from the Meta Ad Library for one or more platform IDs, with media URLs suitable for the analysis tools.",
				GetAdsArgs{},
			)...,
		),
		a.handleGetAds,
	)
}

func (a *AdsMCP) handleGetPlatformID(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	started := time.Now()

	brandNames := req.GetStringSlice("brand_names", nil)
	brandNames = compact(brandNames)
	if len(brandNames) == 0 {
		metrics.RecordToolCall("get_meta_platform_id", "validation_error", time.Since(started).Seconds())
		return mcpgo.NewToolResultError("brand_names must contain at least one non-empty name"), nil
	}

	results, info, err := a.service.SearchBrandsBatch(ctx, brandNames)
	if err != nil {
		metrics.RecordToolCall("get_meta_platform_id", "error", time.Since(started).Seconds())
		return toolErrorResult(err), nil
	}

	payload := map[string]any{
		"results":    results,
		"batch_info": info,
	}
	jsonBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	metrics.RecordToolCall("get_meta_platform_id", "success", time.Since(started).Seconds())
	return mcpgo.NewToolResultText(string(jsonBytes)), nil
}

func (a *AdsMCP) handleGetAds(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	started := time.Now()

	platformIDs := compact(req.GetStringSlice("platform_ids", nil))
	if len(platformIDs) == 0 {
		metrics.RecordToolCall("get_meta_ads", "validation_error", time.Since(started).Seconds())
		return mcpgo.NewToolResultError("platform_ids must contain at least one non-empty ID"), nil
	}

	limit := req.GetInt("limit", 50)
	if limit < 1 || limit > maxAdsPerPage {
		metrics.RecordToolCall("get_meta_ads", "validation_error", time.Since(started).Seconds())
		return mcpgo.NewToolResultError("limit must be between 1 and 500"), nil
	}

	country := strings.ToUpper(strings.TrimSpace(req.GetString("country", "")))
	if country != "" && len(country) != 2 {
		metrics.RecordToolCall("get_meta_ads", "validation_error", time.Since(started).Seconds())
		return mcpgo.NewToolResultError("country must be a 2-letter code, e.g. 'US'"), nil
	}

	opts := ads.FetchOptions{
		Limit:   limit,
		Country: country,
		Trim:    req.GetBool("trim", true),
	}

	results, info, err := a.service.GetAdsBatch(ctx, platformIDs, opts)
	if err != nil {
		metrics.RecordToolCall("get_meta_ads", "error", time.Since(started).Seconds())
		return toolErrorResult(err), nil
	}

	payload := map[string]any{
		"results":    results,
		"batch_info": info,
	}
	jsonBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	metrics.RecordToolCall("get_meta_ads", "success", time.Since(started).Seconds())
	return mcpgo.NewToolResultText(string(jsonBytes)), nil
}

// toolErrorResult renders provider failures as structured tool errors so MCP
// clients can react to credit exhaustion and rate limits.
func toolErrorResult(err error) *mcpgo.CallToolResult {
	var exhausted *ads.CreditExhaustedError
	if errors.As(err, &exhausted) {
		payload, _ := json.Marshal(map[string]any{
			"error":             "api_credits_exhausted",
			"credits_remaining": exhausted.CreditsRemaining,
			"topup_url":         exhausted.TopupURL,
		})
		return mcpgo.NewToolResultError(string(payload))
	}

	var limited *ads.RateLimitedError
	if errors.As(err, &limited) {
		payload, _ := json.Marshal(map[string]any{
			"error":       "rate_limited",
			"retry_after": limited.RetryAfter.String(),
		})
		return mcpgo.NewToolResultError(string(payload))
	}

	log.Error().Err(err).Msg("ad library tool call failed")
	return mcpgo.NewToolResultError(err.Error())
}

func compact(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
