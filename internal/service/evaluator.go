package service

import (
	"context"
	"errors"
	"log/slog"
	"regexp"

	"github.com/phrazzld/goalforge/internal/generation"
	"github.com/phrazzld/goalforge/internal/prompts"
)

var evaluatorOptions = generation.Options{MaxTokens: 512, Temperature: 0.5}

// Fixed texts used by the evaluation rules.
const (
	SplitTaskSuggestion = "Consider breaking this task into smaller parts next time."
	QuickEncouragement  = "Every completed task is progress toward your goal!"
)

var superlatives = regexp.MustCompile(`(?i)exceptional|exceeded`)

// EvaluationRequest describes a finished task.
type EvaluationRequest struct {
	TaskTitle       string
	TaskDescription string
	ExpectedMinutes int
	ActualMinutes   int
	UserNotes       string
}

// timeRatio is actual over expected time. An unknown estimate counts as
// on time.
func (r EvaluationRequest) timeRatio() float64 {
	if r.ExpectedMinutes <= 0 {
		return 1
	}
	return float64(r.ActualMinutes) / float64(r.ExpectedMinutes)
}

// Evaluator scores completed tasks.
type Evaluator struct {
	provider generation.Provider
	logger   *slog.Logger
}

// NewEvaluator creates an Evaluator backed by provider.
func NewEvaluator(provider generation.Provider, logger *slog.Logger) (*Evaluator, error) {
	if provider == nil {
		return nil, errors.New("provider cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	return &Evaluator{provider: provider, logger: logger.With("component", "evaluator")}, nil
}

// PromptVersion identifies the prompt template in provenance records.
func (s *Evaluator) PromptVersion() string { return prompts.EvaluatorVersion }

// ProviderName identifies the backend in provenance records.
func (s *Evaluator) ProviderName() generation.ProviderName { return s.provider.Name() }

// Prompt renders the prompt for req without calling the provider.
func (s *Evaluator) Prompt(req EvaluationRequest) (Prompt, error) {
	user, err := prompts.BuildEvaluator(prompts.EvaluatorParams{
		TaskTitle:       req.TaskTitle,
		TaskDescription: req.TaskDescription,
		ExpectedMinutes: req.ExpectedMinutes,
		ActualMinutes:   req.ActualMinutes,
		UserNotes:       req.UserNotes,
	})
	if err != nil {
		return Prompt{}, err
	}
	return Prompt{User: user, System: prompts.EvaluatorSystem}, nil
}

// Evaluate asks the provider to score the task and applies the time-based
// corrections.
func (s *Evaluator) Evaluate(ctx context.Context, req EvaluationRequest, prompt Prompt) (*Generation[EvaluationOutput], error) {
	gen, err := generate[EvaluationOutput](ctx, s.provider, s.logger, prompt, evaluatorOptions, EvaluatorSchema)
	if err != nil {
		return nil, err
	}
	adjustEvaluation(&gen.Output, req.timeRatio())
	return gen, nil
}

func adjustEvaluation(ev *EvaluationOutput, ratio float64) {
	if ratio > 2 && ev.QualityScore > 3 && ev.Improvement == "" {
		ev.Improvement = SplitTaskSuggestion
	}
	if ratio < 0.3 && ev.QualityScore == 5 {
		ev.QualityScore = 4
		ev.Feedback = superlatives.ReplaceAllString(ev.Feedback, "Good")
	}
	ev.QualityScore = clampScore(ev.QualityScore)
}

func clampScore(score int) int {
	return max(1, min(5, score))
}

// QuickEvaluate scores a task from its timing alone, without a provider
// call.
func QuickEvaluate(req EvaluationRequest) EvaluationOutput {
	ratio := req.timeRatio()

	var score int
	var feedback string
	switch {
	case ratio >= 0.8 && ratio <= 1.2:
		score, feedback = 4, "Task completed within expected time. Good job!"
	case ratio < 0.8:
		score, feedback = 3, "Task completed quickly. Make sure quality was not compromised."
	case ratio <= 1.5:
		score, feedback = 4, "Task took a bit longer but that shows thoroughness."
	default:
		score, feedback = 3, "Task took significantly longer than expected. Consider if it needs to be broken down."
	}

	return EvaluationOutput{
		QualityScore:  score,
		Feedback:      feedback,
		Encouragement: QuickEncouragement,
	}
}
