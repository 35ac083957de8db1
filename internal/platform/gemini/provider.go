package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/goalforge/internal/config"
	"github.com/phrazzld/goalforge/internal/generation"
	"github.com/phrazzld/goalforge/internal/output"
	"google.golang.org/genai"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.0-flash"

// contentGenerator is the subset of *genai.Models the provider uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Provider implements generation.Provider using the Gemini API.
type Provider struct {
	logger  *slog.Logger
	models  contentGenerator
	model   string
	timeout time.Duration
	retry   generation.RetryPolicy
}

var _ generation.Provider = (*Provider)(nil)

// New creates a Gemini provider from the LLM configuration.
func New(ctx context.Context, logger *slog.Logger, cfg config.LLMConfig) (*Provider, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", generation.ErrInvalidConfig)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      cfg.GeminiAPIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: cfg.BaseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v", generation.ErrInvalidConfig, err)
	}

	return newProvider(logger, client.Models, cfg), nil
}

func newProvider(logger *slog.Logger, models contentGenerator, cfg config.LLMConfig) *Provider {
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	return &Provider{
		logger:  logger.With("component", "gemini_provider", "model", model),
		models:  models,
		model:   model,
		timeout: cfg.Timeout,
		retry:   generation.RetryPolicy{MaxRetries: cfg.MaxRetries, BaseDelay: time.Second},
	}
}

// Name implements generation.Provider.
func (p *Provider) Name() generation.ProviderName {
	return generation.ProviderGemini
}

// GenerateStructured implements generation.Provider.
func (p *Provider) GenerateStructured(ctx context.Context, prompt, systemPrompt string, opts generation.Options) (*generation.Result, error) {
	if prompt == "" {
		return nil, fmt.Errorf("%w: prompt cannot be empty", generation.ErrGenerationFailed)
	}

	genConfig := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	}
	if systemPrompt != "" {
		genConfig.SystemInstruction = genai.NewContentFromText(systemPrompt, genai.RoleUser)
	}
	if opts.MaxTokens > 0 {
		genConfig.MaxOutputTokens = int32(opts.MaxTokens)
	}
	if opts.Temperature > 0 {
		genConfig.Temperature = genai.Ptr(float32(opts.Temperature))
	}
	if opts.TopP > 0 {
		genConfig.TopP = genai.Ptr(float32(opts.TopP))
	}
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}

	start := time.Now()
	resp, err := generation.WithRetry(ctx, p.logger, p.retry, func(ctx context.Context) (*genai.GenerateContentResponse, error) {
		callCtx := ctx
		if p.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, p.timeout)
			defer cancel()
		}
		resp, err := p.models.GenerateContent(callCtx, p.model, contents, genConfig)
		if err != nil {
			return nil, classifyError(err)
		}
		return resp, nil
	})
	latency := time.Since(start)
	if err != nil {
		p.logger.ErrorContext(ctx, "Gemini API call failed", "error", err, "latency_ms", latency.Milliseconds())
		return nil, err
	}

	text, err := responseText(resp)
	if err != nil {
		return nil, err
	}

	tokens := generation.NormalizeTokens(usage(resp), prompt, systemPrompt, text)

	data, err := output.ParseJSON(text)
	if err != nil {
		return nil, &generation.InvalidResponseError{RawOutput: text, Tokens: tokens, Err: err}
	}

	p.logger.DebugContext(ctx, "Gemini API call successful",
		"input_tokens", tokens.Input,
		"output_tokens", tokens.Output,
		"estimated_tokens", tokens.Estimated,
		"latency_ms", latency.Milliseconds())

	return &generation.Result{
		Data:      data,
		RawOutput: text,
		Tokens:    tokens,
		Latency:   latency,
	}, nil
}

// responseText extracts the candidate text, rejecting blocked or empty
// responses.
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", fmt.Errorf("%w: nil response", generation.ErrInvalidResponse)
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" &&
		resp.PromptFeedback.BlockReason != genai.BlockedReasonUnspecified {
		return "", fmt.Errorf("%w: prompt blocked (%s)", generation.ErrContentBlocked, resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("%w: no content generated", generation.ErrInvalidResponse)
	}
	if resp.Candidates[0].FinishReason == genai.FinishReasonSafety {
		return "", fmt.Errorf("%w: response blocked by safety filters", generation.ErrContentBlocked)
	}
	if resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("%w: empty content in response", generation.ErrInvalidResponse)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("%w: response has no text parts", generation.ErrInvalidResponse)
	}
	return text, nil
}

func usage(resp *genai.GenerateContentResponse) generation.Tokens {
	if resp.UsageMetadata == nil {
		return generation.Tokens{}
	}
	return generation.Tokens{
		Input:  int(resp.UsageMetadata.PromptTokenCount),
		Output: int(resp.UsageMetadata.CandidatesTokenCount),
		Total:  int(resp.UsageMetadata.TotalTokenCount),
	}
}

// classifyError maps SDK errors onto generation errors.
func classifyError(err error) error {
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", generation.ErrGenerationFailed, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", generation.ErrTransientFailure, err)
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return generation.ClassifyStatus(apiErr.Code, apiErr.Message)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return generation.ClassifyStatus(apiErrPtr.Code, apiErrPtr.Message)
	}

	// Anything else is a transport problem.
	return fmt.Errorf("%w: %v", generation.ErrTransientFailure, err)
}
