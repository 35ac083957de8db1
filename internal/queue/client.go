package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Defaults are the per-queue attempt budget and backoff applied when
// EnqueueOptions leaves them zero.
type Defaults struct {
	Attempts int
	Backoff  Backoff
}

// EnqueueOptions tunes one enqueue call.
type EnqueueOptions struct {
	// ID is the idempotency key. A random ID is used when empty.
	ID       string
	Priority int
	Attempts int
	Backoff  Backoff
	// Delay postpones the first run.
	Delay time.Duration
}

// Client enqueues jobs on a Backend.
type Client struct {
	backend  Backend
	defaults map[string]Defaults
	logger   *slog.Logger
	now      func() time.Time
}

// NewClient creates a client. defaults is keyed by queue name.
func NewClient(backend Backend, defaults map[string]Defaults, logger *slog.Logger) *Client {
	return &Client{
		backend:  backend,
		defaults: defaults,
		logger:   logger.With("component", "queue_client"),
		now:      time.Now,
	}
}

// Backend returns the backend the client writes to.
func (c *Client) Backend() Backend {
	return c.backend
}

// Enqueue adds a job to queue. payload is encoded as JSON. When a live job
// with the same ID exists, it is returned unchanged.
func (c *Client) Enqueue(ctx context.Context, queue, name string, payload any, opts EnqueueOptions) (*Job, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding %s payload: %w", name, err)
	}

	d := c.defaults[queue]
	job := &Job{
		ID:          opts.ID,
		Queue:       queue,
		Name:        name,
		Payload:     data,
		Priority:    opts.Priority,
		Attempt:     1,
		MaxAttempts: opts.Attempts,
		Backoff:     opts.Backoff,
		EnqueuedAt:  c.now().UTC(),
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.MaxAttempts <= 0 {
		job.MaxAttempts = max(1, d.Attempts)
	}
	if job.Backoff == (Backoff{}) {
		job.Backoff = d.Backoff
	}

	stored, created, err := c.backend.Enqueue(ctx, job, c.now().Add(opts.Delay))
	if err != nil {
		return nil, fmt.Errorf("enqueueing %s on %s: %w", name, queue, err)
	}

	if created {
		c.logger.DebugContext(ctx, "job enqueued",
			"queue", queue,
			"job_name", name,
			"job_id", stored.ID,
			"priority", stored.Priority)
	} else {
		c.logger.DebugContext(ctx, "job already enqueued",
			"queue", queue,
			"job_name", name,
			"job_id", stored.ID)
	}
	return stored, nil
}
