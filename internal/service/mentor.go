package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/phrazzld/goalforge/internal/generation"
	"github.com/phrazzld/goalforge/internal/prompts"
)

var mentorOptions = generation.Options{MaxTokens: 1024, Temperature: 0.8}

// MaxActionItems caps the action items kept from mentor feedback.
const MaxActionItems = 3

// RecentTask is one entry of the history shown to the mentor.
type RecentTask struct {
	Title       string
	Status      string
	CompletedAt *time.Time
}

// MentorRequest describes the progress to comment on.
type MentorRequest struct {
	GoalTitle  string
	StreakDays int
	// CompletionRate is a percentage in [0, 100].
	CompletionRate float64
	RecentTasks    []RecentTask
	Context        string
}

// Mentor generates feedback on recent progress.
type Mentor struct {
	provider generation.Provider
	logger   *slog.Logger
}

// NewMentor creates a Mentor backed by provider.
func NewMentor(provider generation.Provider, logger *slog.Logger) (*Mentor, error) {
	if provider == nil {
		return nil, errors.New("provider cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	return &Mentor{provider: provider, logger: logger.With("component", "mentor")}, nil
}

// PromptVersion identifies the prompt template in provenance records.
func (s *Mentor) PromptVersion() string { return prompts.MentorVersion }

// ProviderName identifies the backend in provenance records.
func (s *Mentor) ProviderName() generation.ProviderName { return s.provider.Name() }

// Prompt renders the prompt for req without calling the provider.
func (s *Mentor) Prompt(req MentorRequest) (Prompt, error) {
	recent := make([]prompts.RecentTask, 0, len(req.RecentTasks))
	for _, t := range req.RecentTasks {
		recent = append(recent, prompts.RecentTask{Title: t.Title, Status: t.Status, CompletedAt: t.CompletedAt})
	}
	user, err := prompts.BuildMentor(prompts.MentorParams{
		GoalTitle:      req.GoalTitle,
		StreakDays:     req.StreakDays,
		CompletionRate: req.CompletionRate,
		RecentTasks:    recent,
		Context:        req.Context,
	})
	if err != nil {
		return Prompt{}, err
	}
	return Prompt{User: user, System: prompts.MentorSystem}, nil
}

// GenerateFeedback asks the provider for feedback and adjusts its tone to
// the measured progress.
func (s *Mentor) GenerateFeedback(ctx context.Context, req MentorRequest, prompt Prompt) (*Generation[MentorOutput], error) {
	gen, err := generate[MentorOutput](ctx, s.provider, s.logger, prompt, mentorOptions, MentorSchema)
	if err != nil {
		return nil, err
	}
	adjustTone(&gen.Output, req.StreakDays, req.CompletionRate)
	return gen, nil
}

func adjustTone(fb *MentorOutput, streakDays int, completionRate float64) {
	if completionRate < 30 && fb.Tone == ToneChallenging {
		fb.Tone = ToneSupportive
	}
	if streakDays > 14 && completionRate > 90 && fb.Tone == ToneSupportive {
		fb.Tone = ToneMotivating
	}
	if len(fb.ActionItems) > MaxActionItems {
		fb.ActionItems = fb.ActionItems[:MaxActionItems]
	}
}
