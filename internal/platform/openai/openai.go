// Package openai implements generation.Provider against the OpenAI chat
// completions API using JSON mode.
package openai

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
	DefaultModel   = "gpt-4o-mini"
	DefaultBaseURL = "https://api.openai.com"
)

// maxErrorBody bounds how much of an error response is kept in messages.
const maxErrorBody = 512

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	MaxTokens      int            `json:"max_tokens,omitempty"`
	Temperature    *float64       `json:"temperature,omitempty"`
	TopP           *float64       `json:"top_p,omitempty"`
	ResponseFormat responseFormat `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Provider implements generation.Provider for OpenAI.
type Provider struct {
	logger  *slog.Logger
	client  *http.Client
	apiKey  string
	baseURL string
	model   string
	retry   generation.RetryPolicy
}

var _ generation.Provider = (*Provider)(nil)

// New creates an OpenAI provider. A nil client gets one with the configured
// timeout.
func New(logger *slog.Logger, cfg config.LLMConfig, client *http.Client) (*Provider, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("%w: openai API key cannot be empty", generation.ErrInvalidConfig)
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
		logger:  logger.With("component", "openai_provider", "model", model),
		client:  client,
		apiKey:  cfg.OpenAIAPIKey,
		baseURL: baseURL,
		model:   model,
		retry:   generation.RetryPolicy{MaxRetries: cfg.MaxRetries, BaseDelay: time.Second},
	}, nil
}

// Name implements generation.Provider.
func (p *Provider) Name() generation.ProviderName {
	return generation.ProviderOpenAI
}

// GenerateStructured implements generation.Provider.
func (p *Provider) GenerateStructured(ctx context.Context, prompt, systemPrompt string, opts generation.Options) (*generation.Result, error) {
	if prompt == "" {
		return nil, fmt.Errorf("%w: prompt cannot be empty", generation.ErrGenerationFailed)
	}

	req := chatRequest{
		Model:          p.model,
		MaxTokens:      opts.MaxTokens,
		ResponseFormat: responseFormat{Type: "json_object"},
	}
	if systemPrompt != "" {
		req.Messages = append(req.Messages, chatMessage{Role: "system", Content: systemPrompt})
	}
	req.Messages = append(req.Messages, chatMessage{Role: "user", Content: prompt})
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
	resp, err := generation.WithRetry(ctx, p.logger, p.retry, func(ctx context.Context) (*chatResponse, error) {
		return p.do(ctx, body)
	})
	latency := time.Since(start)
	if err != nil {
		p.logger.ErrorContext(ctx, "OpenAI API call failed", "error", err, "latency_ms", latency.Milliseconds())
		return nil, err
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices in response", generation.ErrInvalidResponse)
	}
	choice := resp.Choices[0]
	if choice.FinishReason == "content_filter" {
		return nil, fmt.Errorf("%w: response removed by content filter", generation.ErrContentBlocked)
	}
	text := choice.Message.Content

	tokens := generation.NormalizeTokens(generation.Tokens{
		Input:  resp.Usage.PromptTokens,
		Output: resp.Usage.CompletionTokens,
		Total:  resp.Usage.TotalTokens,
	}, prompt, systemPrompt, text)

	data, err := output.ParseJSON(text)
	if err != nil {
		return nil, &generation.InvalidResponseError{RawOutput: text, Tokens: tokens, Err: err}
	}

	p.logger.DebugContext(ctx, "OpenAI API call successful",
		"input_tokens", tokens.Input,
		"output_tokens", tokens.Output,
		"estimated_tokens", tokens.Estimated,
		"latency_ms", latency.Milliseconds())

	return &generation.Result{Data: data, RawOutput: text, Tokens: tokens, Latency: latency}, nil
}

func (p *Provider) do(ctx context.Context, body []byte) (*chatResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to build request: %v", generation.ErrGenerationFailed, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

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
	if httpResp.StatusCode != http.StatusOK {
		return nil, generation.ClassifyStatus(httpResp.StatusCode, truncate(string(raw)))
	}

	var resp chatResponse
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
