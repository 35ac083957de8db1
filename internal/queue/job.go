package queue

import (
	"encoding/json"
	"fmt"
	"time"
)

// MaxPriority bounds the aging offset a priority can add.
const MaxPriority = 10

// DefaultMaxStalls is how many expired leases a job survives before the
// reaper dead-letters it.
const DefaultMaxStalls = 1

// Backoff is an exponential retry policy.
type Backoff struct {
	Base time.Duration `json:"base"`
	Max  time.Duration `json:"max"`
}

// Delay returns the wait before the retry that follows a failed attempt:
// Base * 2^(attempt-1), capped at Max when Max is set.
func (b Backoff) Delay(attempt int) time.Duration {
	if b.Base <= 0 {
		return 0
	}
	if attempt < 1 {
		attempt = 1
	}
	d := b.Base
	for i := 1; i < attempt; i++ {
		d *= 2
		if b.Max > 0 && d >= b.Max {
			return b.Max
		}
		// Overflow guard for absurd attempt counts.
		if d <= 0 {
			return b.Max
		}
	}
	if b.Max > 0 && d > b.Max {
		return b.Max
	}
	return d
}

// Job is one unit of background work.
type Job struct {
	ID          string          `json:"id"`
	Queue       string          `json:"queue"`
	Name        string          `json:"name"`
	Payload     json.RawMessage `json:"payload"`
	Priority    int             `json:"priority"`
	Attempt     int             `json:"attempt"`
	MaxAttempts int             `json:"max_attempts"`
	Backoff     Backoff         `json:"backoff"`
	EnqueuedAt  time.Time       `json:"enqueued_at"`
	LastError   string          `json:"last_error,omitempty"`
	FailedAt    *time.Time      `json:"failed_at,omitempty"`

	// Run changes every time the backend starts the job from scratch: on
	// a fresh enqueue and on RequeueDead. Redeliveries and retries keep it.
	Run string `json:"run,omitempty"`

	// Stalls counts deliveries whose lease expired before the job was
	// settled.
	Stalls int `json:"stalls,omitempty"`

	// LeaseToken identifies the reservation that delivered the job. It is
	// set by Reserve and required to settle the job.
	LeaseToken string `json:"-"`
}

// Validate checks the fields every backend relies on.
func (j *Job) Validate() error {
	switch {
	case j.ID == "":
		return fmt.Errorf("%w: missing id", ErrInvalidJob)
	case j.Queue == "":
		return fmt.Errorf("%w: missing queue", ErrInvalidJob)
	case j.Name == "":
		return fmt.Errorf("%w: missing name", ErrInvalidJob)
	case j.MaxAttempts < 1:
		return fmt.Errorf("%w: max attempts must be positive", ErrInvalidJob)
	}
	return nil
}

// Exhausted reports whether the current attempt is the last one allowed.
func (j *Job) Exhausted() bool {
	return j.Attempt >= j.MaxAttempts
}

// DecodePayload unmarshals the payload into v.
func (j *Job) DecodePayload(v any) error {
	if err := json.Unmarshal(j.Payload, v); err != nil {
		return fmt.Errorf("decoding %s payload: %w", j.Name, err)
	}
	return nil
}

// PriorityOffset converts a priority into the aging offset added to a job's
// ready time when ordering the waiting set.
func PriorityOffset(priority int, step time.Duration) time.Duration {
	priority = max(0, min(MaxPriority, priority))
	return time.Duration(priority) * step
}

// Reaped is the result of one ReapExpired pass.
type Reaped struct {
	// Requeued jobs had an expired lease and went back to waiting.
	Requeued int
	// Stalled jobs exceeded the stall bound and were dead-lettered.
	Stalled []Job
}

// StalledError is the LastError of a job the reaper dead-lettered.
func StalledError(stalls int) string {
	return fmt.Sprintf("%s: lease expired %d times", ErrStalled, stalls)
}

// Stats counts a queue's jobs by state.
type Stats struct {
	Waiting   int64
	Delayed   int64
	Active    int64
	Completed int64
	Dead      int64
}
