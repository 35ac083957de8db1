package queue

import (
	"context"
	"time"
)

// Outcome is how a delivery ended.
type Outcome string

// Delivery outcomes
const (
	OutcomeCompleted  Outcome = "completed"
	OutcomeRetried    Outcome = "retried"
	OutcomeDeadLetter Outcome = "dead_letter"
)

// Observer is notified after every delivery. Calls happen on worker
// goroutines and must not block for long.
type Observer interface {
	JobFinished(ctx context.Context, job *Job, outcome Outcome, err error, elapsed time.Duration)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, job *Job, outcome Outcome, err error, elapsed time.Duration)

// JobFinished implements Observer.
func (f ObserverFunc) JobFinished(ctx context.Context, job *Job, outcome Outcome, err error, elapsed time.Duration) {
	f(ctx, job, outcome, err, elapsed)
}

// Observers fans a notification out to several observers.
type Observers []Observer

// JobFinished implements Observer.
func (o Observers) JobFinished(ctx context.Context, job *Job, outcome Outcome, err error, elapsed time.Duration) {
	for _, obs := range o {
		if obs != nil {
			obs.JobFinished(ctx, job, outcome, err, elapsed)
		}
	}
}
