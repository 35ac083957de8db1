package events

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
)

// Emitter delivers events to in-process subscribers, in subscription order,
// on the publishing goroutine. It backs tests and single-process runs.
type Emitter struct {
	mu     sync.RWMutex
	subs   []Handler
	logger *slog.Logger
}

var _ Publisher = (*Emitter)(nil)

// NewEmitter creates an Emitter with no subscribers.
func NewEmitter(logger *slog.Logger) *Emitter {
	return &Emitter{logger: logger.With("component", "emitter")}
}

// Subscribe registers h for every event published after the call.
func (e *Emitter) Subscribe(h Handler) {
	e.mu.Lock()
	e.subs = append(e.subs, h)
	e.mu.Unlock()
}

// Publish delivers event to every subscriber even when some fail; the
// failures are joined into the returned error.
func (e *Emitter) Publish(ctx context.Context, event *Event) error {
	e.mu.RLock()
	subs := slices.Clone(e.subs)
	e.mu.RUnlock()

	var errs []error
	for i, h := range subs {
		if err := h.HandleEvent(ctx, event); err != nil {
			e.logger.WarnContext(ctx, "subscriber rejected event",
				"subscriber", i,
				"event_type", event.Type,
				"event_id", event.ID,
				"error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Recorder is a Handler that keeps every event it receives. It is safe for
// concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// HandleEvent implements Handler.
func (r *Recorder) HandleEvent(_ context.Context, event *Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, *event)
	return nil
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// OfType returns the recorded events of one type.
func (r *Recorder) OfType(typ Type) []Event {
	var out []Event
	for _, ev := range r.Events() {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}
