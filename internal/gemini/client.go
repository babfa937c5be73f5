// Package gemini is a small client for the Gemini generateContent REST API.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/accionlabs/intelhub/internal/config"
	"github.com/accionlabs/intelhub/pkg/utils"
)

// ErrNoAPIKey is returned by NewClient when no API key is configured.
var ErrNoAPIKey = errors.New("model API key not configured (set ai.api_key or GEMINI_API_KEY)")

// Generator produces model output for a request. Client implements it; tests substitute fakes.
type Generator interface {
	Generate(ctx context.Context, req *Request) (*Response, error)
}

// Client calls a hosted Gemini model over HTTP.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets a logger for request diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithLimiter replaces the requests-per-minute limiter derived from config.
func WithLimiter(l *rate.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// NewClient creates a client from the AI config.
func NewClient(cfg *config.AIConfig, opts ...Option) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    newLimiter(cfg.RequestsPerMinute),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func newLimiter(rpm int) *rate.Limiter {
	if rpm <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := rpm / 12
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(float64(rpm)/60.0), burst)
}

// Model returns the model name requests are sent to.
func (c *Client) Model() string {
	return c.model
}

// Generate sends one generateContent request. API error statuses come back as *APIError.
func (c *Client) Generate(ctx context.Context, req *Request) (*Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := json.Marshal(buildRequest(req))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, url.PathEscape(c.model))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	c.logger.Debug("model call",
		zap.String("model", c.model),
		zap.Int("status", resp.StatusCode),
		zap.Bool("grounded", req.GoogleSearch),
		zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode != http.StatusOK {
		return nil, parseAPIError(resp.StatusCode, raw)
	}

	var gr generateResponse
	if err := json.Unmarshal(raw, &gr); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return convertResponse(&gr), nil
}

func buildRequest(req *Request) *generateRequest {
	gr := &generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: req.Prompt}}}},
	}
	if req.SystemInstruction != "" {
		gr.SystemInstruction = &content{Parts: []part{{Text: req.SystemInstruction}}}
	}
	if req.GoogleSearch {
		gr.Tools = []tool{{GoogleSearch: &struct{}{}}}
	}
	if req.ResponseSchema != nil {
		gr.GenerationConfig = &generationConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema:   req.ResponseSchema,
		}
	}
	return gr
}

func convertResponse(gr *generateResponse) *Response {
	out := &Response{}
	if gr.PromptFeedback != nil {
		out.BlockReason = gr.PromptFeedback.BlockReason
	}
	if len(gr.Candidates) == 0 {
		return out
	}
	cand := gr.Candidates[0]
	out.FinishReason = cand.FinishReason
	var sb strings.Builder
	for _, p := range cand.Content.Parts {
		if p.Thought {
			continue
		}
		sb.WriteString(p.Text)
	}
	out.Text = sb.String()
	if cand.GroundingMetadata != nil {
		for _, ch := range cand.GroundingMetadata.GroundingChunks {
			if ch.Web == nil {
				continue
			}
			out.Sources = append(out.Sources, GroundingSource{URI: ch.Web.URI, Title: ch.Web.Title})
		}
	}
	return out
}

func parseAPIError(httpStatus int, raw []byte) error {
	apiErr := &APIError{HTTPStatus: httpStatus, Code: httpStatus}
	var env errorEnvelope
	if err := json.Unmarshal(raw, &env); err == nil && env.Error.Code != 0 {
		apiErr.Code = env.Error.Code
		apiErr.Status = env.Error.Status
		apiErr.Message = env.Error.Message
	} else {
		apiErr.Message = utils.Truncate(strings.TrimSpace(string(raw)), 300)
	}
	return apiErr
}
