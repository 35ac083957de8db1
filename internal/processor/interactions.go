package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/goalforge/internal/domain"
	"github.com/phrazzld/goalforge/internal/generation"
	"github.com/phrazzld/goalforge/internal/queue"
	"github.com/phrazzld/goalforge/internal/redact"
	"github.com/phrazzld/goalforge/internal/service"
	"github.com/phrazzld/goalforge/internal/store"
)

// Output types recorded on AIOutput rows.
const (
	OutputPlan       = "plan"
	OutputTasks      = "tasks"
	OutputFeedback   = "feedback"
	OutputEvaluation = "evaluation"
)

// GenerationObserver is told about every provider answer, valid or not.
type GenerationObserver interface {
	GenerationFinished(provider, role string, tokens int, latency time.Duration)
}

type noopObserver struct{}

func (noopObserver) GenerationFinished(string, string, int, time.Duration) {}

// interactionSpec describes the interaction a job is about to open.
type interactionSpec struct {
	userID        uuid.UUID
	goalID        *uuid.UUID
	role          domain.AIRole
	provider      generation.ProviderName
	promptVersion string
}

// beginInteraction opens the interaction of the current delivery. done is
// true when an earlier delivery of the same run already completed, in which
// case nothing must be repeated. Rows of earlier runs are ignored: a
// requeued or re-enqueued job starts over.
func (p *AIJobs) beginInteraction(ctx context.Context, job *queue.Job, spec interactionSpec) (in *domain.AIInteraction, done bool, err error) {
	existing, err := p.stores.Interactions.ListByJobKey(ctx, job.ID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load interactions of %s: %w", job.ID, err)
	}
	existing = slices.DeleteFunc(existing, func(i domain.AIInteraction) bool {
		return i.JobRun != job.Run
	})

	for i := range existing {
		if existing[i].Status == domain.InteractionCompleted {
			return nil, true, nil
		}
	}
	for i := range existing {
		if existing[i].Attempt != job.Attempt {
			continue
		}
		if existing[i].Status.Closed() {
			return nil, false, fmt.Errorf("%w: %s attempt %d", ErrAttemptClosed, job.ID, job.Attempt)
		}
		reused := existing[i]
		return &reused, false, nil
	}

	in = domain.NewAIInteraction(spec.userID, spec.goalID, spec.role, string(spec.provider), spec.promptVersion, job.ID, job.Attempt)
	in.JobRun = job.Run
	in.CreatedAt = p.now().UTC()
	if err := p.stores.Interactions.Create(ctx, in); err != nil {
		return nil, false, fmt.Errorf("failed to create interaction: %w", err)
	}
	return in, false, nil
}

// failInteraction closes in as failed. Errors are logged: the caller is
// already returning the original failure.
func (p *AIJobs) failInteraction(ctx context.Context, in *domain.AIInteraction, cause error) {
	log := p.log(ctx)
	if err := in.Fail(redact.Error(cause), p.now().UTC()); err != nil {
		log.WarnContext(ctx, "interaction already closed", "interaction_id", in.ID, "error", err)
		return
	}
	if err := p.stores.Interactions.Close(ctx, in); err != nil {
		log.ErrorContext(ctx, "failed to close interaction as failed",
			"interaction_id", in.ID,
			"error", err)
	}
}

// checkBudget rejects the job permanently when the prompt alone would push
// the user over the daily budget.
func (p *AIJobs) checkBudget(ctx context.Context, in *domain.AIInteraction, user *domain.User, prompt service.Prompt) error {
	used := user.TokensUsedOn(p.now())
	estimated := prompt.EstimatedTokens()
	if !generation.WouldExceedBudget(estimated, used, user.AITokenBudget) {
		return nil
	}

	err := fmt.Errorf("%w: needs about %s tokens, %s of %s left",
		ErrBudgetExceeded,
		generation.FormatTokens(estimated),
		generation.FormatTokens(generation.RemainingBudget(used, user.AITokenBudget)),
		generation.FormatTokens(user.AITokenBudget))
	p.failInteraction(ctx, in, err)
	return queue.Permanent(err)
}

func totalTokens(t generation.Tokens) int {
	return max(t.Total, t.Input+t.Output)
}

// generate runs one service call under the interaction. On failure the
// interaction is closed as failed; an unparseable answer is still stored for
// replay and its tokens are charged.
func generate[T any](
	ctx context.Context,
	p *AIJobs,
	in *domain.AIInteraction,
	outputType string,
	call func(context.Context) (*service.Generation[T], error),
) (*service.Generation[T], error) {
	gen, err := call(ctx)
	if err != nil {
		var invalid *generation.InvalidResponseError
		if errors.As(err, &invalid) {
			p.recordInvalid(ctx, in, outputType, invalid)
		}
		p.failInteraction(ctx, in, err)
		return nil, fmt.Errorf("%s generation failed: %w", in.Role, err)
	}

	p.observer.GenerationFinished(in.Provider, string(in.Role), totalTokens(gen.Tokens), gen.Latency)
	return gen, nil
}

func (p *AIJobs) recordInvalid(ctx context.Context, in *domain.AIInteraction, outputType string, invalid *generation.InvalidResponseError) {
	log := p.log(ctx)
	in.InputTokens = invalid.Tokens.Input
	in.OutputTokens = invalid.Tokens.Output
	p.observer.GenerationFinished(in.Provider, string(in.Role), totalTokens(invalid.Tokens), 0)

	out := &domain.AIOutput{
		ID:            uuid.New(),
		InteractionID: in.ID,
		OutputType:    outputType,
		RawOutput:     invalid.RawOutput,
		CreatedAt:     p.now().UTC(),
	}
	if err := p.stores.Interactions.SaveOutput(ctx, out); err != nil {
		log.ErrorContext(ctx, "failed to save invalid output", "interaction_id", in.ID, "error", err)
	}

	if tokens := totalTokens(invalid.Tokens); tokens > 0 {
		if _, err := p.stores.Users.AddTokenUsage(ctx, in.UserID, tokens, p.now()); err != nil {
			log.ErrorContext(ctx, "failed to charge tokens of invalid output", "user_id", in.UserID, "error", err)
		}
	}
}

// completeGeneration stores the output, charges the tokens and closes the
// interaction, all on s. It does not modify in, so a rolled back
// transaction leaves it open for failInteraction.
func completeGeneration[T any](ctx context.Context, p *AIJobs, s store.Stores, in *domain.AIInteraction, outputType string, gen *service.Generation[T]) error {
	now := p.now().UTC()

	validated, err := json.Marshal(gen.Output)
	if err != nil {
		return fmt.Errorf("failed to encode %s output: %w", outputType, err)
	}
	out := &domain.AIOutput{
		ID:              uuid.New(),
		InteractionID:   in.ID,
		OutputType:      outputType,
		RawOutput:       gen.RawOutput,
		ValidatedOutput: validated,
		CreatedAt:       now,
	}
	if err := s.Interactions.SaveOutput(ctx, out); err != nil {
		return fmt.Errorf("failed to save %s output: %w", outputType, err)
	}

	if _, err := s.Users.AddTokenUsage(ctx, in.UserID, totalTokens(gen.Tokens), now); err != nil {
		return fmt.Errorf("failed to add token usage: %w", err)
	}

	closed := *in
	if err := closed.Complete(gen.Tokens.Input, gen.Tokens.Output, gen.Latency, now); err != nil {
		return err
	}
	if err := s.Interactions.Close(ctx, &closed); err != nil {
		return fmt.Errorf("failed to complete interaction: %w", err)
	}
	return nil
}
