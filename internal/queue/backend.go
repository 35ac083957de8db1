package queue

import (
	"context"
	"time"
)

// Backend stores jobs and hands them out under leases. Implementations must
// be safe for concurrent use.
type Backend interface {
	// Enqueue stores job to become ready at runAt. If a live job with the
	// same queue and ID exists it is returned with created=false and
	// nothing changes. Dead-lettered jobs are not live and are replaced.
	// A created job gets a new Run.
	Enqueue(ctx context.Context, job *Job, runAt time.Time) (stored *Job, created bool, err error)

	// Reserve leases the next ready job of queue for lease. It returns
	// (nil, nil) when nothing is ready.
	Reserve(ctx context.Context, queue string, lease time.Duration) (*Job, error)

	// Ack marks a reserved job completed.
	Ack(ctx context.Context, job *Job) error

	// Retry releases a reserved job to run again at runAt. The job's
	// Attempt and LastError are stored as given.
	Retry(ctx context.Context, job *Job, runAt time.Time) error

	// DeadLetter moves a reserved job to the dead-letter set.
	DeadLetter(ctx context.Context, job *Job) error

	// ReapExpired returns jobs whose lease expired to the waiting set and
	// purges completed jobs past retention. Each expiry counts as a stall;
	// a job with more than maxStalls stalls is dead-lettered instead.
	ReapExpired(ctx context.Context, queue string, maxStalls int) (Reaped, error)

	// DeadLetters lists dead jobs of queue, most recent first.
	DeadLetters(ctx context.Context, queue string, limit int) ([]Job, error)

	// RequeueDead moves a dead job back to waiting with a fresh attempt
	// budget, no stalls and a new Run. Returns ErrJobNotFound if id is not
	// dead-lettered.
	RequeueDead(ctx context.Context, queue, id string) error

	// Stats counts queue's jobs by state.
	Stats(ctx context.Context, queue string) (Stats, error)
}
