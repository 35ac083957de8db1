// Package anthropic implements generation.Provider against the Anthropic
// Messages API.
//
// The Messages API has no JSON mode, so the assistant turn is prefilled with
// an opening brace and the provider prepends it to the returned text before
// parsing.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/phrazzld/goalforge/internal/config"
	"github.com/phrazzld/goalforge/internal/generation"
	"github.com/phrazzld/goalforge/internal/output"
)

// Defaults used when the configuration leaves them empty.
const (
	DefaultModel     = "claude-3-5-haiku-latest"
	DefaultBaseURL   = "https://api.anthropic.com"
	DefaultMaxTokens = 4096
	APIVersion       = "2023-06-01"
)

const (
	maxErrorBody = 512
	prefill      = "{"
)

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesRequest struct {
	Model       string    `json:"model"`
	System      string    `json:"system,omitempty"`
	Messages    []message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature *float64  `json:"temperature,omitempty"`
	TopP        *float64  `json:"top_p,omitempty"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type messagesResponse struct {
	Content    []contentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// Provider implements generation.Provider for Anthropic.
type Provider struct {
	logger  *slog.Logger
	client  *http.Client
	apiKey  string
	baseURL string
	model   string
	retry   generation.RetryPolicy
}

var _ generation.Provider = (*Provider)(nil)

// New creates an Anthropic provider. A nil client gets one with the
// configured timeout.
func New(logger *slog.Logger, cfg config.LLMConfig, client *http.Client) (*Provider, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.AnthropicAPIKey == "" {
		return nil, fmt.Errorf("%w: anthropic API key cannot be empty", generation.ErrInvalidConfig)
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &Provider{
		logger:  logger.With("component", "anthropic_provider", "model", model),
		client:  client,
		apiKey:  cfg.AnthropicAPIKey,
		baseURL: baseURL,
		model:   model,
		retry:   generation.RetryPolicy{MaxRetries: cfg.MaxRetries, BaseDelay: time.Second},
	}, nil
}

// Name implements generation.Provider.
func (p *Provider) Name() generation.ProviderName {
	return generation.ProviderAnthropic
}

// GenerateStructured implements generation.Provider.
func (p *Provider) GenerateStructured(ctx context.Context, prompt, systemPrompt string, opts generation.Options) (*generation.Result, error) {
	if prompt == "" {
		return nil, fmt.Errorf("%w: prompt cannot be empty", generation.ErrGenerationFailed)
	}

	req := messagesRequest{
		Model:     p.model,
		System:    systemPrompt,
		MaxTokens: opts.MaxTokens,
		Messages: []message{
			{Role: "user", Content: prompt},
			{Role: "assistant", Content: prefill},
		},
	}
	if req.MaxTokens <= 0 {
		req.MaxTokens = DefaultMaxTokens
	}
	if opts.Temperature > 0 {
		req.Temperature = &opts.Temperature
	}
	if opts.TopP > 0 {
		req.TopP = &opts.TopP
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to encode request: %v", generation.ErrGenerationFailed, err)
	}

	start := time.Now()
	resp, err := generation.WithRetry(ctx, p.logger, p.retry, func(ctx context.Context) (*messagesResponse, error) {
		return p.do(ctx, body)
	})
	latency := time.Since(start)
	if err != nil {
		p.logger.ErrorContext(ctx, "Anthropic API call failed", "error", err, "latency_ms", latency.Milliseconds())
		return nil, err
	}

	if resp.StopReason == "refusal" {
		return nil, fmt.Errorf("%w: model refused the request", generation.ErrContentBlocked)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return nil, fmt.Errorf("%w: response has no text blocks", generation.ErrInvalidResponse)
	}
	text := sb.String()
	if !strings.HasPrefix(strings.TrimSpace(text), prefill) {
		text = prefill + text
	}

	tokens := generation.NormalizeTokens(generation.Tokens{
		Input:  resp.Usage.InputTokens,
		Output: resp.Usage.OutputTokens,
	}, prompt, systemPrompt, text)

	data, err := output.ParseJSON(text)
	if err != nil {
		return nil, &generation.InvalidResponseError{RawOutput: text, Tokens: tokens, Err: err}
	}

	p.logger.DebugContext(ctx, "Anthropic API call successful",
		"input_tokens", tokens.Input,
		"output_tokens", tokens.Output,
		"estimated_tokens", tokens.Estimated,
		"latency_ms", latency.Milliseconds())

	return &generation.Result{Data: data, RawOutput: text, Tokens: tokens, Latency: latency}, nil
}

func (p *Provider) do(ctx context.Context, body []byte) (*messagesResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to build request: %v", generation.ErrGenerationFailed, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.apiKey)
	httpReq.Header.Set("anthropic-version", APIVersion)

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("%w: %v", generation.ErrGenerationFailed, err)
		}
		return nil, fmt.Errorf("%w: %v", generation.ErrTransientFailure, err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", generation.ErrTransientFailure, err)
	}

	switch {
	case httpResp.StatusCode == http.StatusOK:
	case httpResp.StatusCode == 529: // overloaded
		return nil, fmt.Errorf("%w: status 529: %s", generation.ErrTransientFailure, truncate(string(raw)))
	default:
		return nil, generation.ClassifyStatus(httpResp.StatusCode, truncate(string(raw)))
	}

	var resp messagesResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response envelope: %v", generation.ErrInvalidResponse, err)
	}
	return &resp, nil
}

func truncate(s string) string {
	if len(s) <= maxErrorBody {
		return s
	}
	return s[:maxErrorBody] + "..."
}
