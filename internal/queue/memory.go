package queue

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type jobState int

const (
	stateWaiting jobState = iota
	stateActive
	stateCompleted
	stateDead
)

type memEntry struct {
	job        Job
	state      jobState
	readyAt    time.Time // waiting: when the job becomes eligible
	leaseUntil time.Time
	doneAt     time.Time
	seq        uint64
}

// MemoryBackend is an in-process Backend. Jobs do not survive a restart.
type MemoryBackend struct {
	mu        sync.Mutex
	entries   map[string]*memEntry
	seq       uint64
	step      time.Duration
	retention time.Duration
	now       func() time.Time
}

var _ Backend = (*MemoryBackend)(nil)

// MemoryOption configures a MemoryBackend.
type MemoryOption func(*MemoryBackend)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(b *MemoryBackend) { b.now = now }
}

// NewMemoryBackend creates an empty in-memory backend. priorityStep is the
// aging offset per priority unit; retention is how long completed jobs keep
// blocking duplicates.
func NewMemoryBackend(priorityStep, retention time.Duration, opts ...MemoryOption) *MemoryBackend {
	b := &MemoryBackend{
		entries:   make(map[string]*memEntry),
		step:      priorityStep,
		retention: retention,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func memKey(queue, id string) string {
	return queue + "\x00" + id
}

func (b *MemoryBackend) live(e *memEntry, now time.Time) bool {
	switch e.state {
	case stateDead:
		return false
	case stateCompleted:
		return now.Sub(e.doneAt) < b.retention
	}
	return true
}

// Enqueue implements Backend.
func (b *MemoryBackend) Enqueue(_ context.Context, job *Job, runAt time.Time) (*Job, bool, error) {
	if err := job.Validate(); err != nil {
		return nil, false, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	key := memKey(job.Queue, job.ID)
	if e, ok := b.entries[key]; ok && b.live(e, now) {
		existing := e.job
		return &existing, false, nil
	}

	stored := *job
	stored.LeaseToken = ""
	if stored.Attempt < 1 {
		stored.Attempt = 1
	}
	if stored.EnqueuedAt.IsZero() {
		stored.EnqueuedAt = now
	}
	stored.Run = uuid.NewString()
	stored.Stalls = 0
	if runAt.Before(now) {
		runAt = now
	}

	b.seq++
	b.entries[key] = &memEntry{job: stored, state: stateWaiting, readyAt: runAt, seq: b.seq}
	out := stored
	return &out, true, nil
}

// Reserve implements Backend.
func (b *MemoryBackend) Reserve(_ context.Context, queue string, lease time.Duration) (*Job, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	var best *memEntry
	var bestScore time.Time
	for _, e := range b.entries {
		if e.job.Queue != queue || e.state != stateWaiting || e.readyAt.After(now) {
			continue
		}
		score := e.readyAt.Add(PriorityOffset(e.job.Priority, b.step))
		if best == nil || score.Before(bestScore) || (score.Equal(bestScore) && e.seq < best.seq) {
			best, bestScore = e, score
		}
	}
	if best == nil {
		return nil, nil
	}

	best.state = stateActive
	best.leaseUntil = now.Add(lease)
	best.job.LeaseToken = uuid.NewString()
	out := best.job
	return &out, nil
}

func (b *MemoryBackend) leased(job *Job) (*memEntry, error) {
	e, ok := b.entries[memKey(job.Queue, job.ID)]
	if !ok {
		return nil, ErrJobNotFound
	}
	if e.state != stateActive || e.job.LeaseToken != job.LeaseToken {
		return nil, ErrLeaseLost
	}
	return e, nil
}

// Ack implements Backend.
func (b *MemoryBackend) Ack(_ context.Context, job *Job) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, err := b.leased(job)
	if err != nil {
		return err
	}
	e.state = stateCompleted
	e.doneAt = b.now()
	e.job.LeaseToken = ""
	return nil
}

// Retry implements Backend.
func (b *MemoryBackend) Retry(_ context.Context, job *Job, runAt time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, err := b.leased(job)
	if err != nil {
		return err
	}
	e.job = *job
	e.job.LeaseToken = ""
	e.state = stateWaiting
	e.readyAt = runAt
	return nil
}

// DeadLetter implements Backend.
func (b *MemoryBackend) DeadLetter(_ context.Context, job *Job) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, err := b.leased(job)
	if err != nil {
		return err
	}
	e.job = *job
	e.job.LeaseToken = ""
	e.state = stateDead
	e.doneAt = b.now()
	return nil
}

// ReapExpired implements Backend.
func (b *MemoryBackend) ReapExpired(_ context.Context, queue string, maxStalls int) (Reaped, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	var r Reaped
	for key, e := range b.entries {
		if e.job.Queue != queue {
			continue
		}
		switch {
		case e.state == stateActive && e.leaseUntil.Before(now):
			e.job.LeaseToken = ""
			e.job.Stalls++
			if e.job.Stalls > maxStalls {
				failedAt := now.UTC()
				e.job.LastError = StalledError(e.job.Stalls)
				e.job.FailedAt = &failedAt
				e.state = stateDead
				e.doneAt = now
				r.Stalled = append(r.Stalled, e.job)
				continue
			}
			e.state = stateWaiting
			e.readyAt = now
			r.Requeued++
		case e.state == stateCompleted && !b.live(e, now):
			delete(b.entries, key)
		}
	}
	return r, nil
}

// DeadLetters implements Backend.
func (b *MemoryBackend) DeadLetters(_ context.Context, queue string, limit int) ([]Job, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var dead []*memEntry
	for _, e := range b.entries {
		if e.job.Queue == queue && e.state == stateDead {
			dead = append(dead, e)
		}
	}
	sort.Slice(dead, func(i, j int) bool {
		return dead[i].doneAt.After(dead[j].doneAt)
	})
	if limit > 0 && len(dead) > limit {
		dead = dead[:limit]
	}

	out := make([]Job, 0, len(dead))
	for _, e := range dead {
		out = append(out, e.job)
	}
	return out, nil
}

// RequeueDead implements Backend.
func (b *MemoryBackend) RequeueDead(_ context.Context, queue, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.entries[memKey(queue, id)]
	if !ok || e.state != stateDead {
		return ErrJobNotFound
	}
	e.job.Attempt = 1
	e.job.Stalls = 0
	e.job.Run = uuid.NewString()
	e.job.FailedAt = nil
	e.state = stateWaiting
	e.readyAt = b.now()
	return nil
}

// Stats implements Backend.
func (b *MemoryBackend) Stats(_ context.Context, queue string) (Stats, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	var s Stats
	for _, e := range b.entries {
		if e.job.Queue != queue {
			continue
		}
		switch e.state {
		case stateWaiting:
			if e.readyAt.After(now) {
				s.Delayed++
			} else {
				s.Waiting++
			}
		case stateActive:
			s.Active++
		case stateCompleted:
			s.Completed++
		case stateDead:
			s.Dead++
		}
	}
	return s, nil
}
