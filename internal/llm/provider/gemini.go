package provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/lessonforge/lessonforge/internal/config"
	"github.com/lessonforge/lessonforge/internal/message"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com"

type clientOptions struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	model      func(ctx context.Context) config.Model
	genConfig  func(ctx context.Context) config.GenerationConfig
	sleep      func(ctx context.Context, d time.Duration) error
}

type ClientOption func(*clientOptions)

func WithBaseURL(baseURL string) ClientOption {
	return func(o *clientOptions) { o.baseURL = baseURL }
}

func WithHTTPClient(c *http.Client) ClientOption {
	return func(o *clientOptions) { o.httpClient = c }
}

func WithModelResolver(f func(ctx context.Context) config.Model) ClientOption {
	return func(o *clientOptions) { o.model = f }
}

func WithGenerationConfig(f func(ctx context.Context) config.GenerationConfig) ClientOption {
	return func(o *clientOptions) { o.genConfig = f }
}

// WithSleep replaces the backoff wait. Tests inject a recorder here.
func WithSleep(f func(ctx context.Context, d time.Duration) error) ClientOption {
	return func(o *clientOptions) { o.sleep = f }
}

type geminiClient struct {
	opts clientOptions
}

// NewClient builds the request orchestrator for the generative-language API.
// cfg supplies the credential plus the persisted model and generation-config
// resolution; options override transport details.
func NewClient(cfg *config.Config, opts ...ClientOption) Provider {
	o := clientOptions{
		apiKey:     cfg.APIKey(),
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
		model:      cfg.Model,
		genConfig:  cfg.GenerationConfig,
		sleep: func(ctx context.Context, d time.Duration) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d):
				return nil
			}
		},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &geminiClient{opts: o}
}

func (c *geminiClient) Model(ctx context.Context) config.Model {
	return c.opts.model(ctx)
}

// BuildUserContent assembles one user turn in wire order: text part first,
// then document attachments, then image attachments.
func BuildUserContent(text string, attachments []message.Attachment) Content {
	parts := []Part{{Text: text}}
	for _, att := range attachments {
		if !att.IsImage() {
			parts = append(parts, inlinePart(att))
		}
	}
	for _, att := range attachments {
		if att.IsImage() {
			parts = append(parts, inlinePart(att))
		}
	}
	return Content{Role: "user", Parts: parts}
}

// ModelContent wraps a reply so callers can mirror it into provider history.
func ModelContent(text string) Content {
	return Content{Role: "model", Parts: []Part{{Text: text}}}
}

func inlinePart(att message.Attachment) Part {
	return Part{InlineData: &InlineData{
		MIMEType: att.MimeType,
		Data:     base64.StdEncoding.EncodeToString(att.Content),
	}}
}

func (c *geminiClient) buildRequest(ctx context.Context, model config.Model, opts SendOptions) generateContentRequest {
	contents := make([]Content, 0, len(opts.History)+1)
	contents = append(contents, opts.History...)
	contents = append(contents, BuildUserContent(opts.UserText, opts.Attachments))

	req := generateContentRequest{Contents: contents}

	if opts.SystemInstruction != "" {
		req.SystemInstruction = &SystemInstruction{Parts: []Part{{Text: opts.SystemInstruction}}}
	}

	gc := c.opts.genConfig(ctx).Clamped()
	wireGC := &GenerationConfig{
		Temperature:     gc.Temperature,
		TopP:            gc.TopP,
		TopK:            gc.TopK,
		MaxOutputTokens: gc.MaxOutputTokens,
	}
	if model.CanReason {
		wireGC.ThinkingConfig = &ThinkingConfig{}
	}
	if wireGC.Temperature != nil || wireGC.TopP != nil || wireGC.TopK != nil ||
		wireGC.MaxOutputTokens != nil || wireGC.ThinkingConfig != nil {
		req.GenerationConfig = wireGC
	}

	if gc.EnableSearchGrounding {
		req.Tools = []Tool{{GoogleSearch: &GoogleSearch{}}}
	}

	if gc.ImageSize != "" && model.CanImageSize {
		req.ImageConfig = &ImageConfig{ImageSize: gc.ImageSize}
	}

	return req
}

func (c *geminiClient) Send(ctx context.Context, opts SendOptions) (*Response, error) {
	if c.opts.apiKey == "" {
		return nil, ErrNoCredential
	}

	// The model is resolved once; retries never fall back to another model.
	model := c.opts.model(ctx)
	payload := c.buildRequest(ctx, model, opts)

	attempts := 0
	for {
		attempts++
		var resp generateContentResponse
		err := c.post(ctx, model.ID, "generateContent", payload, &resp)
		if err != nil {
			retry, after, retryErr := c.shouldRetry(attempts, err)
			if !retry {
				return nil, retryErr
			}
			slog.Warn("Retrying due to overloaded provider",
				"attempt", attempts, "max_retries", maxRetries, "error", err)
			if err := c.opts.sleep(ctx, time.Duration(after)*time.Millisecond); err != nil {
				return nil, err
			}
			continue
		}

		return normalizeResponse(&resp)
	}
}

// shouldRetry implements the bounded retry policy: up to 3 attempts total,
// only for overload-classified errors, waiting min(2000*2^(attempt-1), 10000)
// ms before the next attempt.
func (c *geminiClient) shouldRetry(attempts int, err error) (bool, int64, error) {
	if !IsOverloaded(err) {
		return false, 0, err
	}
	if attempts >= maxRetries {
		return false, 0, err
	}
	backoffMs := int64(2000) << (attempts - 1)
	if backoffMs > 10_000 {
		backoffMs = 10_000
	}
	return true, backoffMs, nil
}

func normalizeResponse(resp *generateContentResponse) (*Response, error) {
	if resp.Error != nil {
		return nil, &StatusError{Code: resp.Error.Code, Message: resp.Error.Message}
	}
	if len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("provider returned no candidates")
	}

	text := ""
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" {
			text = part.Text
			break
		}
	}
	if text == "" {
		return nil, fmt.Errorf("provider candidate contained no text part")
	}

	out := &Response{Content: text}
	if resp.UsageMetadata != nil {
		out.Usage = TokenUsage{
			InputTokens:  resp.UsageMetadata.PromptTokenCount,
			OutputTokens: resp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:  resp.UsageMetadata.TotalTokenCount,
		}
	}
	return out, nil
}

func (c *geminiClient) CountTokens(ctx context.Context, history []Content, systemInstruction string) (int64, error) {
	if c.opts.apiKey == "" {
		return 0, ErrNoCredential
	}

	model := c.opts.model(ctx)
	payload := countTokensRequest{Contents: history}
	if systemInstruction != "" {
		payload.SystemInstruction = &SystemInstruction{Parts: []Part{{Text: systemInstruction}}}
	}

	var resp countTokensResponse
	if err := c.post(ctx, model.ID, "countTokens", payload, &resp); err != nil {
		return 0, err
	}
	if resp.Error != nil {
		return 0, &StatusError{Code: resp.Error.Code, Message: resp.Error.Message}
	}
	return resp.TotalTokens, nil
}

// post issues one JSON round-trip. Non-2xx responses are mapped onto
// StatusError with the embedded error message when the body carries one.
func (c *geminiClient) post(ctx context.Context, modelID, method string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:%s?key=%s",
		c.opts.baseURL, modelID, method, url.QueryEscape(c.opts.apiKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.opts.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var errResp struct {
			Error *apiError `json:"error"`
		}
		msg := resp.Status
		if json.Unmarshal(bodyBytes, &errResp) == nil && errResp.Error != nil {
			msg = errResp.Error.Message
		}
		return &StatusError{Code: resp.StatusCode, Message: msg}
	}

	if err := json.Unmarshal(bodyBytes, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
