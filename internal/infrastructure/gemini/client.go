package gemini

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"adscope/internal/domain/creative"
	"adscope/internal/infrastructure/metrics"
	"adscope/internal/infrastructure/retry"
	"adscope/utils/platformerrors"
)

const (
	filesUploadPath   = "/upload/v1beta/files"
	filesStatusPath   = "/v1beta/files/%s"
	generatePath      = "/v1beta/models/%s:generateContent"
	openaiCompatPath  = "/v1beta/openai/"
	fileStateActive   = "ACTIVE"
	fileStateFailed   = "FAILED"
	defaultPollDelay  = 2 * time.Second
	maxUploadWaitTime = 10 * time.Minute
)

const imagePrompt = `Analyze this ad creative image. Describe:
1. All visible text (headlines, body copy, CTA buttons) verbatim.
2. People: count, demographics, expressions, what they are doing.
3. Brand elements: logos, product shots, colors.
4. Composition: layout, focal point, visual hierarchy.
5. The likely target audience and the emotional appeal used.`

const videoPrompt = `Analyze this video ad. Describe:
1. The hook: what happens in the first 3 seconds to stop the scroll.
2. Scene-by-scene breakdown with approximate timestamps.
3. All spoken and on-screen text verbatim.
4. Pacing, music/audio mood, and editing style.
5. The call to action and when it appears.
6. The likely target audience and the persuasion tactics used.`

// ClientConfig carries Gemini provider configuration.
type ClientConfig struct {
	APIKey          string
	BaseURL         string
	Model           string
	AnalysisTimeout time.Duration
	UploadPollDelay time.Duration
	Retry           retry.Config
}

// Client talks to Gemini two ways: videos go through the Files API
// (upload, poll, generate, delete), images go through the
// OpenAI-compatible chat endpoint as inline data URLs.
type Client struct {
	cfg    ClientConfig
	http   *resty.Client
	openai *openai.Client
	log    zerolog.Logger
}

var _ creative.Analyzer = (*Client)(nil)

func NewClient(cfg ClientConfig, log zerolog.Logger) *Client {
	logger := log.With().Str("component", "gemini-client").Logger()

	if cfg.UploadPollDelay <= 0 {
		cfg.UploadPollDelay = defaultPollDelay
	}

	httpClient := resty.New().
		SetBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")).
		SetQueryParam("key", cfg.APIKey).
		SetTimeout(cfg.AnalysisTimeout)

	oaCfg := openai.DefaultConfig(cfg.APIKey)
	oaCfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/") + openaiCompatPath

	return &Client{
		cfg:    cfg,
		http:   httpClient,
		openai: openai.NewClientWithConfig(oaCfg),
		log:    logger,
	}
}

func (c *Client) ModelVersion() string {
	return c.cfg.Model
}

func (c *Client) configured() bool {
	return strings.TrimSpace(c.cfg.APIKey) != ""
}

// analysisPayload is the shape stored in the analysis cache.
type analysisPayload struct {
	Model    string `json:"model"`
	Analysis string `json:"analysis"`
}

func (c *Client) AnalyzeImage(ctx context.Context, data []byte, mimeType string) (json.RawMessage, error) {
	if !c.configured() {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerInfrastructure,
			platformerrors.ErrorTypeAnalysisUnavailable,
			"image analysis requires GEMINI_API_KEY", nil)
	}

	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data))

	start := time.Now()
	text, err := retry.WithRetry(ctx, c.cfg.Retry, "gemini.analyze_image", func() (string, error) {
		resp, err := c.openai.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: c.cfg.Model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role: openai.ChatMessageRoleUser,
					MultiContent: []openai.ChatMessagePart{
						{Type: openai.ChatMessagePartTypeText, Text: imagePrompt},
						{
							Type: openai.ChatMessagePartTypeImageURL,
							ImageURL: &openai.ChatMessageImageURL{
								URL:    dataURL,
								Detail: openai.ImageURLDetailAuto,
							},
						},
					},
				},
			},
		})
		if err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 {
			return "", retry.MarkPermanent(fmt.Errorf("empty completion response"))
		}
		return resp.Choices[0].Message.Content, nil
	})
	metrics.RecordProviderLatency("gemini", time.Since(start).Seconds())
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerInfrastructure,
			platformerrors.ErrorTypeAnalysisFailed, "image analysis failed", err)
	}

	return marshalPayload(ctx, c.cfg.Model, text)
}

func (c *Client) AnalyzeVideo(ctx context.Context, localPath, mimeType string) (json.RawMessage, error) {
	if !c.configured() {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerInfrastructure,
			platformerrors.ErrorTypeAnalysisUnavailable,
			"video analysis requires GEMINI_API_KEY", nil)
	}

	data, err := os.ReadFile(localPath)
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerInfrastructure,
			platformerrors.ErrorTypeAnalysisFailed, "failed to read cached video", err)
	}

	start := time.Now()
	file, err := c.uploadFile(ctx, filepath.Base(localPath), mimeType, data)
	if err != nil {
		metrics.RecordProviderLatency("gemini", time.Since(start).Seconds())
		return nil, platformerrors.NewError(ctx, platformerrors.LayerInfrastructure,
			platformerrors.ErrorTypeAnalysisFailed, "video upload failed", err)
	}
	// Uploaded files count against provider storage quota; always clean up.
	defer c.deleteFile(file.Name)

	if err := c.waitUntilActive(ctx, file.Name); err != nil {
		metrics.RecordProviderLatency("gemini", time.Since(start).Seconds())
		return nil, platformerrors.NewError(ctx, platformerrors.LayerInfrastructure,
			platformerrors.ErrorTypeAnalysisFailed, "video processing failed", err)
	}

	text, err := retry.WithRetry(ctx, c.cfg.Retry, "gemini.analyze_video", func() (string, error) {
		return c.generateFromFile(ctx, file.URI, mimeType)
	})
	metrics.RecordProviderLatency("gemini", time.Since(start).Seconds())
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerInfrastructure,
			platformerrors.ErrorTypeAnalysisFailed, "video analysis failed", err)
	}

	return marshalPayload(ctx, c.cfg.Model, text)
}

type uploadedFile struct {
	Name  string `json:"name"`
	URI   string `json:"uri"`
	State string `json:"state"`
}

type fileEnvelope struct {
	File uploadedFile `json:"file"`
}

func (c *Client) uploadFile(ctx context.Context, displayName, mimeType string, data []byte) (*uploadedFile, error) {
	// Resumable upload, single chunk. Start the session first to get the
	// upload URL, then send the bytes.
	startResp, err := c.http.R().
		SetContext(ctx).
		SetHeader("X-Goog-Upload-Protocol", "resumable").
		SetHeader("X-Goog-Upload-Command", "start").
		SetHeader("X-Goog-Upload-Header-Content-Length", fmt.Sprintf("%d", len(data))).
		SetHeader("X-Goog-Upload-Header-Content-Type", mimeType).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]any{"file": map[string]any{"display_name": displayName}}).
		Post(filesUploadPath)
	if err != nil {
		return nil, fmt.Errorf("failed to start upload session: %w", err)
	}
	if startResp.IsError() {
		return nil, fmt.Errorf("upload session rejected: status %d: %s", startResp.StatusCode(), startResp.String())
	}

	uploadURL := startResp.Header().Get("X-Goog-Upload-URL")
	if uploadURL == "" {
		return nil, fmt.Errorf("upload session response missing upload URL")
	}

	var envelope fileEnvelope
	uploadResp, err := c.http.R().
		SetContext(ctx).
		SetHeader("X-Goog-Upload-Command", "upload, finalize").
		SetHeader("X-Goog-Upload-Offset", "0").
		SetBody(data).
		SetResult(&envelope).
		Post(uploadURL)
	if err != nil {
		return nil, fmt.Errorf("failed to upload video bytes: %w", err)
	}
	if uploadResp.IsError() {
		return nil, fmt.Errorf("video upload rejected: status %d: %s", uploadResp.StatusCode(), uploadResp.String())
	}
	if envelope.File.Name == "" {
		return nil, fmt.Errorf("upload response missing file name")
	}

	c.log.Debug().
		Str("file", envelope.File.Name).
		Int("bytes", len(data)).
		Msg("video uploaded to files API")

	return &envelope.File, nil
}

func (c *Client) waitUntilActive(ctx context.Context, name string) error {
	deadline := time.Now().Add(maxUploadWaitTime)
	shortName := strings.TrimPrefix(name, "files/")

	for {
		var file uploadedFile
		resp, err := c.http.R().
			SetContext(ctx).
			SetResult(&file).
			Get(fmt.Sprintf(filesStatusPath, shortName))
		if err != nil {
			return fmt.Errorf("failed to poll file state: %w", err)
		}
		if resp.IsError() {
			return fmt.Errorf("file state poll rejected: status %d", resp.StatusCode())
		}

		switch file.State {
		case fileStateActive:
			return nil
		case fileStateFailed:
			return fmt.Errorf("provider failed to process video %s", name)
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("video %s still processing after %s", name, maxUploadWaitTime)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.cfg.UploadPollDelay):
		}
	}
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text     string    `json:"text,omitempty"`
	FileData *fileData `json:"file_data,omitempty"`
}

type fileData struct {
	MimeType string `json:"mime_type"`
	FileURI  string `json:"file_uri"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (c *Client) generateFromFile(ctx context.Context, fileURI, mimeType string) (string, error) {
	body := generateRequest{
		Contents: []content{{
			Parts: []part{
				{FileData: &fileData{MimeType: mimeType, FileURI: fileURI}},
				{Text: videoPrompt},
			},
		}},
	}

	var result generateResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		SetResult(&result).
		Post(fmt.Sprintf(generatePath, c.cfg.Model))
	if err != nil {
		return "", fmt.Errorf("generate request failed: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("generate request rejected: status %d: %s", resp.StatusCode(), resp.String())
	}

	var sb strings.Builder
	for _, candidate := range result.Candidates {
		for _, p := range candidate.Content.Parts {
			sb.WriteString(p.Text)
		}
	}
	if sb.Len() == 0 {
		return "", retry.MarkPermanent(fmt.Errorf("empty generation response"))
	}
	return sb.String(), nil
}

func (c *Client) deleteFile(name string) {
	shortName := strings.TrimPrefix(name, "files/")
	// Best effort, runs after the analysis context may be done.
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	resp, err := c.http.R().
		SetContext(ctx).
		Delete(fmt.Sprintf(filesStatusPath, shortName))
	if err != nil || resp.IsError() {
		c.log.Warn().Str("file", name).Msg("failed to delete uploaded video, provider will expire it")
	}
}

func marshalPayload(ctx context.Context, model, text string) (json.RawMessage, error) {
	payload, err := json.Marshal(analysisPayload{Model: model, Analysis: text})
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerInfrastructure,
			platformerrors.ErrorTypeInternal, "failed to encode analysis payload", err)
	}
	return payload, nil
}
