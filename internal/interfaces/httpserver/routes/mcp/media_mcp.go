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

// AnalyzeImageArgs defines the arguments for the analyze_ad_image tool
type AnalyzeImageArgs struct {
	MediaURL  string  `json:"media_url" jsonschema:"required,description=URL of the ad image to analyze"`
	BrandName *string `json:"brand_name,omitempty" jsonschema:"description=Brand name recorded with the cached creative"`
	AdID      *string `json:"ad_id,omitempty" jsonschema:"description=Platform ad ID recorded with the cached creative"`
}

// AnalyzeVideoArgs defines the arguments for the analyze_ad_video tool
type AnalyzeVideoArgs struct {
	MediaURL  string  `json:"media_url" jsonschema:"required,description=URL of the ad video to analyze"`
	BrandName *string `json:"brand_name,omitempty" jsonschema:"description=Brand name recorded with the cached creative"`
	AdID      *string `json:"ad_id,omitempty" jsonschema:"description=Platform ad ID recorded with the cached creative"`
}

// AnalyzeVideosBatchArgs defines the arguments for the analyze_ad_videos_batch tool
type AnalyzeVideosBatchArgs struct {
	MediaURLs   []string `json:"media_urls" jsonschema:"required,description=URLs of the ad videos to analyze"`
	BrandNames  []string `json:"brand_names,omitempty" jsonschema:"description=Optional per-video brand names, must match media_urls length"`
	AdIDs       []string `json:"ad_ids,omitempty" jsonschema:"description=Optional per-video platform ad IDs, must match media_urls length"`
	Concurrency *int     `json:"concurrency,omitempty" jsonschema:"description=Parallel analysis cap (default 3, bounded by server config)"`
}

// MediaMCP registers creative analysis tools.
type MediaMCP struct {
	service *creative.Service
}

func NewMediaMCP(service *creative.Service) *MediaMCP {
	return &MediaMCP{service: service}
}

func (m *MediaMCP) RegisterTools(server *mcpserver.MCPServer) {
	server.AddTool(
		mcpgo.NewTool("analyze_ad_image",
			mcp.ReflectToMCPOptions(
				"Download an ad image (reusing the local cache when possible) and return an AI analysis of its text, people, brand elements and composition. Repeat calls for the same creative are served from cache without a paid provider call.",
				AnalyzeImageArgs{},
			)...,
		),
		m.handleAnalyzeImage,
	)

	server.AddTool(
		mcpgo.NewTool("analyze_ad_video",
			mcp.ReflectToMCPOptions(
				"Download an ad video (reusing the local cache when possible) and return an AI analysis of its hook, scenes, pacing and call to action. Repeat calls for the same creative are served from cache without a paid provider call.",
				AnalyzeVideoArgs{},
			)...,
		),
		m.handleAnalyzeVideo,
	)

	server.AddTool(
		mcpgo.NewTool("analyze_ad_videos_batch",
			mcp.ReflectToMCPOptions(
				"Analyze several ad videos concurrently with bounded parallelism. One video failing never aborts the rest; results come back in input order with per-item cache status.",
				AnalyzeVideosBatchArgs{},
			)...,
		),
		m.handleAnalyzeVideosBatch,
	)
}

func (m *MediaMCP) handleAnalyzeImage(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return m.handleAnalyzeSingle(ctx, req, "analyze_ad_image", m.service.AnalyzeImage)
}

func (m *MediaMCP) handleAnalyzeVideo(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return m.handleAnalyzeSingle(ctx, req, "analyze_ad_video", m.service.AnalyzeVideo)
}

func (m *MediaMCP) handleAnalyzeSingle(
	ctx context.Context,
	req mcpgo.CallToolRequest,
	toolName string,
	analyze func(context.Context, string, creative.RequestMeta) (*creative.AnalysisRecord, bool, error),
) (*mcpgo.CallToolResult, error) {
	started := time.Now()

	mediaURL, err := req.RequireString("media_url")
	if err != nil {
		metrics.RecordToolCall(toolName, "validation_error", time.Since(started).Seconds())
		return mcpgo.NewToolResultError(err.Error()), nil
	}

	meta := creative.RequestMeta{
		Brand:        req.GetString("brand_name", ""),
		PlatformAdID: req.GetString("ad_id", ""),
	}

	record, cached, err := analyze(ctx, mediaURL, meta)
	if err != nil {
		metrics.RecordToolCall(toolName, string(platformerrors.TypeOf(err)), time.Since(started).Seconds())
		return analysisErrorResult(err), nil
	}

	payload, err := json.Marshal(map[string]any{
		"media_url":     mediaURL,
		"fingerprint":   record.Fingerprint,
		"analysis":      record.Payload,
		"model_version": record.ModelVersion,
		"computed_at":   record.ComputedAt,
		"cached":        cached,
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordToolCall(toolName, "success", time.Since(started).Seconds())
	return mcpgo.NewToolResultText(string(payload)), nil
}

func (m *MediaMCP) handleAnalyzeVideosBatch(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	started := time.Now()

	mediaURLs := req.GetStringSlice("media_urls", nil)
	brandNames := req.GetStringSlice("brand_names", nil)
	adIDs := req.GetStringSlice("ad_ids", nil)

	if len(mediaURLs) == 0 {
		metrics.RecordToolCall("analyze_ad_videos_batch", "validation_error", time.Since(started).Seconds())
		return mcpgo.NewToolResultError("media_urls must contain at least one URL"), nil
	}
	if len(brandNames) != 0 && len(brandNames) != len(mediaURLs) {
		metrics.RecordToolCall("analyze_ad_videos_batch", "validation_error", time.Since(started).Seconds())
		return mcpgo.NewToolResultError("brand_names must match media_urls length"), nil
	}
	if len(adIDs) != 0 && len(adIDs) != len(mediaURLs) {
		metrics.RecordToolCall("analyze_ad_videos_batch", "validation_error", time.Since(started).Seconds())
		return mcpgo.NewToolResultError("ad_ids must match media_urls length"), nil
	}

	metas := make([]creative.RequestMeta, len(mediaURLs))
	for i := range mediaURLs {
		if len(brandNames) == len(mediaURLs) {
			metas[i].Brand = brandNames[i]
		}
		if len(adIDs) == len(mediaURLs) {
			metas[i].PlatformAdID = adIDs[i]
		}
	}

	result, err := m.service.AnalyzeVideosBatch(ctx, mediaURLs, metas, req.GetInt("concurrency", 0))
	if err != nil {
		metrics.RecordToolCall("analyze_ad_videos_batch", string(platformerrors.TypeOf(err)), time.Since(started).Seconds())
		return analysisErrorResult(err), nil
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}

	metrics.RecordToolCall("analyze_ad_videos_batch", "success", time.Since(started).Seconds())
	return mcpgo.NewToolResultText(string(payload)), nil
}

// analysisErrorResult surfaces the error classification so callers can tell a
// retryable provider failure from a configuration problem.
func analysisErrorResult(err error) *mcpgo.CallToolResult {
	payload, marshalErr := json.Marshal(map[string]any{
		"error_type": platformerrors.TypeOf(err),
		"error":      err.Error(),
		"retryable":  platformerrors.Retryable(err),
	})
	if marshalErr != nil {
		return mcpgo.NewToolResultError(err.Error())
	}
	return mcpgo.NewToolResultError(string(payload))
}
