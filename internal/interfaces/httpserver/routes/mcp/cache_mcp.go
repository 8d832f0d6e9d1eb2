package mcp

import (
	"context"
	"encoding/json"
	"time"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"adscope/internal/domain/creative"
	"adscope/internal/infrastructure/metrics"
	"adscope/utils/mcp"
	"adscope/utils/platformerrors"
)

// SearchCachedMediaArgs defines the arguments for the search_cached_media tool
type SearchCachedMediaArgs struct {
	BrandName      *string `json:"brand_name,omitempty" jsonschema:"description=Filter by brand name"`
	MediaType      *string `json:"media_type,omitempty" jsonschema:"description=Filter by media type ('image' or 'video')"`
	DownloadedDays *int    `json:"downloaded_within_days,omitempty" jsonschema:"description=Only assets downloaded within the last N days"`
	AccessedDays   *int    `json:"accessed_within_days,omitempty" jsonschema:"description=Only assets accessed within the last N days"`
	Limit          *int    `json:"limit,omitempty" jsonschema:"description=Maximum results to return (default 50)"`
}

// CleanupCacheArgs defines the arguments for the cleanup_media_cache tool
type CleanupCacheArgs struct {
	MaxAgeDays *int `json:"max_age_days,omitempty" jsonschema:"description=Evict assets not accessed in this many days"`
	MaxTotalMB *int `json:"max_total_mb,omitempty" jsonschema:"description=Evict least-recently-used assets until the cache fits this size"`
}

// CacheMCP registers cache inspection and maintenance tools.
type CacheMCP struct {
	service *creative.Service
}

func NewCacheMCP(service *creative.Service) *CacheMCP {
	return &CacheMCP{service: service}
}

func (c *CacheMCP) RegisterTools(server *mcpserver.MCPServer) {
	server.AddTool(
		mcpgo.NewTool("get_cache_stats",
			mcpgo.WithDescription("Report media cache totals: asset count, bytes on disk, analyzed count, and per-brand and per-type breakdowns."),
		),
		c.handleStats,
	)

	server.AddTool(
		mcpgo.NewTool("search_cached_media",
			mcp.ReflectToMCPOptions(
				"List cached creatives matching the given filters, newest first. Repeat calls on an unchanged cache return identical ordering.",
				SearchCachedMediaArgs{},
			)...,
		),
		c.handleSearch,
	)

	server.AddTool(
		mcpgo.NewTool("cleanup_media_cache",
			mcp.ReflectToMCPOptions(
				"Evict cached creatives by age or by total size (least recently used first). Each eviction removes the file and its index rows together; failures are reported per asset without aborting the run.",
				CleanupCacheArgs{},
			)...,
		),
		c.handleCleanup,
	)
}

func (c *CacheMCP) handleStats(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	started := time.Now()

	stats, err := c.service.Stats(ctx)
	if err != nil {
		metrics.RecordToolCall("get_cache_stats", string(platformerrors.TypeOf(err)), time.Since(started).Seconds())
		return analysisErrorResult(err), nil
	}

	payload, err := json.Marshal(stats)
	if err != nil {
		return nil, err
	}

	metrics.RecordToolCall("get_cache_stats", "success", time.Since(started).Seconds())
	return mcpgo.NewToolResultText(string(payload)), nil
}

func (c *CacheMCP) handleSearch(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	started := time.Now()

	filter := creative.SearchFilter{
		Brand: req.GetString("brand_name", ""),
		Limit: req.GetInt("limit", 50),
	}

	if mediaType := req.GetString("media_type", ""); mediaType != "" {
		switch creative.MediaType(mediaType) {
		case creative.MediaTypeImage, creative.MediaTypeVideo:
			filter.MediaType = creative.MediaType(mediaType)
		default:
			metrics.RecordToolCall("search_cached_media", "validation_error", time.Since(started).Seconds())
			return mcpgo.NewToolResultError("media_type must be 'image' or 'video'"), nil
		}
	}
	if filter.Limit < 1 {
		metrics.RecordToolCall("search_cached_media", "validation_error", time.Since(started).Seconds())
		return mcpgo.NewToolResultError("limit must be at least 1"), nil
	}

	now := time.Now().UTC()
	if days := req.GetInt("downloaded_within_days", 0); days > 0 {
		filter.DownloadedAfter = now.AddDate(0, 0, -days)
	}
	if days := req.GetInt("accessed_within_days", 0); days > 0 {
		filter.AccessedAfter = now.AddDate(0, 0, -days)
	}

	assets, err := c.service.Search(ctx, filter)
	if err != nil {
		metrics.RecordToolCall("search_cached_media", string(platformerrors.TypeOf(err)), time.Since(started).Seconds())
		return analysisErrorResult(err), nil
	}

	payload, err := json.Marshal(map[string]any{
		"total":  len(assets),
		"assets": assets,
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordToolCall("search_cached_media", "success", time.Since(started).Seconds())
	return mcpgo.NewToolResultText(string(payload)), nil
}

func (c *CacheMCP) handleCleanup(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	started := time.Now()

	maxAgeDays := req.GetInt("max_age_days", 0)
	maxTotalMB := req.GetInt("max_total_mb", 0)
	if maxAgeDays < 0 || maxTotalMB < 0 {
		metrics.RecordToolCall("cleanup_media_cache", "validation_error", time.Since(started).Seconds())
		return mcpgo.NewToolResultError("max_age_days and max_total_mb must not be negative"), nil
	}
	if maxAgeDays > 0 && maxTotalMB > 0 {
		metrics.RecordToolCall("cleanup_media_cache", "validation_error", time.Since(started).Seconds())
		return mcpgo.NewToolResultError("specify either max_age_days or max_total_mb, not both"), nil
	}

	policy := creative.CleanupPolicy{
		MaxAge:        time.Duration(maxAgeDays) * 24 * time.Hour,
		MaxTotalBytes: int64(maxTotalMB) * 1024 * 1024,
	}

	report, err := c.service.Cleanup(ctx, policy)
	if err != nil {
		metrics.RecordToolCall("cleanup_media_cache", string(platformerrors.TypeOf(err)), time.Since(started).Seconds())
		return analysisErrorResult(err), nil
	}

	payload, err := json.Marshal(report)
	if err != nil {
		return nil, err
	}

	metrics.RecordToolCall("cleanup_media_cache", "success", time.Since(started).Seconds())
	return mcpgo.NewToolResultText(string(payload)), nil
}
