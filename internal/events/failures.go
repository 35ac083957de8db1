package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/goalforge/internal/queue"
	"github.com/phrazzld/goalforge/internal/redact"
)

// FailureReporter is a queue.Observer that publishes a job.failed event for
// every failed delivery.
type FailureReporter struct {
	publisher Publisher
	logger    *slog.Logger
}

var _ queue.Observer = (*FailureReporter)(nil)

// NewFailureReporter creates a FailureReporter.
func NewFailureReporter(publisher Publisher, logger *slog.Logger) *FailureReporter {
	return &FailureReporter{
		publisher: publisher,
		logger:    logger.With("component", "job_failure_reporter"),
	}
}

// JobFinished implements queue.Observer.
func (r *FailureReporter) JobFinished(ctx context.Context, job *queue.Job, outcome queue.Outcome, err error, _ time.Duration) {
	if outcome == queue.OutcomeCompleted {
		return
	}

	payload := JobFailed{
		Queue:       job.Queue,
		Job:         job.Name,
		JobID:       job.ID,
		Attempt:     job.Attempt,
		MaxAttempts: job.MaxAttempts,
		Final:       outcome == queue.OutcomeDeadLetter,
	}
	if err != nil {
		payload.Error = redact.Error(err)
	}

	if pubErr := Emit(ctx, r.publisher, TypeJobFailed, payloadUser(job.Payload), payload); pubErr != nil {
		r.logger.WarnContext(ctx, "failed to publish job failure",
			"error", pubErr,
			"job_id", job.ID,
			"job_name", job.Name)
	}
}

// payloadUser extracts the userId most job payloads carry.
func payloadUser(payload json.RawMessage) uuid.UUID {
	var p struct {
		UserID uuid.UUID `json:"userId"`
	}
	if err := json.Unmarshal(payload, &p); err != nil {
		return uuid.Nil
	}
	return p.UserID
}
