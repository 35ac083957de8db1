package redisqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/goalforge/internal/queue"
	"github.com/redis/go-redis/v9"
)

// Backend stores queues in Redis.
type Backend struct {
	rdb       redis.UniversalClient
	prefix    string
	step      time.Duration
	retention time.Duration
	now       func() time.Time
}

var _ queue.Backend = (*Backend)(nil)

// Option configures a Backend.
type Option func(*Backend)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(b *Backend) { b.now = now }
}

// New creates a Backend whose keys live under prefix. priorityStep and
// retention mean the same as for queue.NewMemoryBackend.
func New(rdb redis.UniversalClient, prefix string, priorityStep, retention time.Duration, opts ...Option) *Backend {
	b := &Backend{
		rdb:       rdb,
		prefix:    prefix,
		step:      priorityStep,
		retention: retention,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

type keys struct {
	jobs, waiting, delayed, active, completed, dead, leases, prio, stalls string
}

func (b *Backend) keys(q string) keys {
	base := b.prefix + ":queue:" + q + ":"
	return keys{
		jobs:      base + "jobs",
		waiting:   base + "waiting",
		delayed:   base + "delayed",
		active:    base + "active",
		completed: base + "completed",
		dead:      base + "dead",
		leases:    base + "leases",
		prio:      base + "prio",
		stalls:    base + "stalls",
	}
}

func ms(t time.Time) int64 {
	return t.UnixMilli()
}

func encode(job *queue.Job) (string, error) {
	doc, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("encoding job %s: %w", job.ID, err)
	}
	return string(doc), nil
}

func decode(doc string) (*queue.Job, error) {
	var job queue.Job
	if err := json.Unmarshal([]byte(doc), &job); err != nil {
		return nil, fmt.Errorf("decoding job document: %w", err)
	}
	return &job, nil
}

// Enqueue implements queue.Backend.
func (b *Backend) Enqueue(ctx context.Context, job *queue.Job, runAt time.Time) (*queue.Job, bool, error) {
	if err := job.Validate(); err != nil {
		return nil, false, err
	}

	now := b.now()
	stored := *job
	stored.LeaseToken = ""
	if stored.Attempt < 1 {
		stored.Attempt = 1
	}
	if stored.EnqueuedAt.IsZero() {
		stored.EnqueuedAt = now.UTC()
	}
	stored.Run = uuid.NewString()
	stored.Stalls = 0
	if runAt.Before(now) {
		runAt = now
	}

	doc, err := encode(&stored)
	if err != nil {
		return nil, false, err
	}

	k := b.keys(job.Queue)
	res, err := enqueueScript.Run(ctx, b.rdb,
		[]string{k.jobs, k.waiting, k.delayed, k.completed, k.dead, k.prio, k.stalls},
		stored.ID, doc, ms(runAt), ms(now), b.retention.Milliseconds(),
		queue.PriorityOffset(stored.Priority, b.step).Milliseconds(),
	).Slice()
	if err != nil {
		return nil, false, fmt.Errorf("enqueue %s/%s: %w", job.Queue, job.ID, err)
	}

	if len(res) == 2 {
		existing, ok := res[1].(string)
		if !ok {
			return nil, false, fmt.Errorf("enqueue %s/%s: unexpected reply %v", job.Queue, job.ID, res)
		}
		prev, err := decode(existing)
		if err != nil {
			return nil, false, err
		}
		return prev, false, nil
	}
	return &stored, true, nil
}

// Reserve implements queue.Backend.
func (b *Backend) Reserve(ctx context.Context, q string, lease time.Duration) (*queue.Job, error) {
	now := b.now()
	token := uuid.NewString()
	k := b.keys(q)

	res, err := reserveScript.Run(ctx, b.rdb,
		[]string{k.jobs, k.waiting, k.delayed, k.active, k.leases, k.prio, k.stalls},
		ms(now), ms(now.Add(lease)), token,
	).Slice()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reserve on %s: %w", q, err)
	}
	if len(res) != 2 {
		return nil, fmt.Errorf("reserve on %s: unexpected reply %v", q, res)
	}
	doc, ok := res[0].(string)
	if !ok {
		return nil, fmt.Errorf("reserve on %s: unexpected reply %v", q, res)
	}
	stalls, _ := res[1].(int64)

	job, err := decode(doc)
	if err != nil {
		return nil, err
	}
	job.LeaseToken = token
	job.Stalls = int(stalls)
	return job, nil
}

func settled(op string, job *queue.Job, res int64, err error) error {
	if err != nil {
		return fmt.Errorf("%s %s/%s: %w", op, job.Queue, job.ID, err)
	}
	if res < 0 {
		return queue.ErrLeaseLost
	}
	return nil
}

// Ack implements queue.Backend.
func (b *Backend) Ack(ctx context.Context, job *queue.Job) error {
	k := b.keys(job.Queue)
	res, err := ackScript.Run(ctx, b.rdb,
		[]string{k.active, k.leases, k.completed},
		job.ID, job.LeaseToken, ms(b.now()),
	).Int64()
	return settled("ack", job, res, err)
}

// Retry implements queue.Backend.
func (b *Backend) Retry(ctx context.Context, job *queue.Job, runAt time.Time) error {
	doc, err := encode(job)
	if err != nil {
		return err
	}
	k := b.keys(job.Queue)
	res, err := retryScript.Run(ctx, b.rdb,
		[]string{k.jobs, k.active, k.leases, k.waiting, k.delayed, k.prio},
		job.ID, job.LeaseToken, doc, ms(runAt), ms(b.now()),
	).Int64()
	return settled("retry", job, res, err)
}

// DeadLetter implements queue.Backend.
func (b *Backend) DeadLetter(ctx context.Context, job *queue.Job) error {
	doc, err := encode(job)
	if err != nil {
		return err
	}
	k := b.keys(job.Queue)
	res, err := deadLetterScript.Run(ctx, b.rdb,
		[]string{k.jobs, k.active, k.leases, k.dead},
		job.ID, job.LeaseToken, doc, ms(b.now()),
	).Int64()
	return settled("dead-letter", job, res, err)
}

// ReapExpired implements queue.Backend. Stall counts live in their own hash
// so the script never rewrites job documents; the documents of stalled jobs
// are updated afterwards.
func (b *Backend) ReapExpired(ctx context.Context, q string, maxStalls int) (queue.Reaped, error) {
	now := b.now()
	k := b.keys(q)
	res, err := reapScript.Run(ctx, b.rdb,
		[]string{k.jobs, k.active, k.leases, k.waiting, k.completed, k.prio, k.stalls, k.dead},
		ms(now), ms(now.Add(-b.retention)), maxStalls,
	).Slice()
	if err != nil {
		return queue.Reaped{}, fmt.Errorf("reap %s: %w", q, err)
	}
	if len(res) == 0 {
		return queue.Reaped{}, fmt.Errorf("reap %s: empty reply", q)
	}

	requeued, _ := res[0].(int64)
	r := queue.Reaped{Requeued: int(requeued)}
	for _, v := range res[1:] {
		id, ok := v.(string)
		if !ok {
			continue
		}
		job, err := b.markStalled(ctx, k, id, now)
		if err != nil {
			return r, err
		}
		if job != nil {
			r.Stalled = append(r.Stalled, *job)
		}
	}
	return r, nil
}

func (b *Backend) markStalled(ctx context.Context, k keys, id string, now time.Time) (*queue.Job, error) {
	doc, err := b.rdb.HGet(ctx, k.jobs, id).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading stalled job %s: %w", id, err)
	}
	job, err := decode(doc)
	if err != nil {
		return nil, err
	}

	stalls, err := b.rdb.HGet(ctx, k.stalls, id).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("loading stalls of %s: %w", id, err)
	}
	failedAt := now.UTC()
	job.Stalls = stalls
	job.LastError = queue.StalledError(stalls)
	job.FailedAt = &failedAt
	job.LeaseToken = ""

	updated, err := encode(job)
	if err != nil {
		return nil, err
	}
	if err := markDeadScript.Run(ctx, b.rdb, []string{k.jobs, k.dead}, id, updated).Err(); err != nil {
		return nil, fmt.Errorf("marking %s stalled: %w", id, err)
	}
	return job, nil
}

// DeadLetters implements queue.Backend.
func (b *Backend) DeadLetters(ctx context.Context, q string, limit int) ([]queue.Job, error) {
	k := b.keys(q)
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}
	ids, err := b.rdb.ZRevRange(ctx, k.dead, 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("listing dead letters on %s: %w", q, err)
	}
	if len(ids) == 0 {
		return []queue.Job{}, nil
	}

	docs, err := b.rdb.HMGet(ctx, k.jobs, ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("loading dead letters on %s: %w", q, err)
	}

	jobs := make([]queue.Job, 0, len(docs))
	for _, d := range docs {
		doc, ok := d.(string)
		if !ok {
			continue
		}
		job, err := decode(doc)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, nil
}

// RequeueDead implements queue.Backend.
func (b *Backend) RequeueDead(ctx context.Context, q, id string) error {
	k := b.keys(q)
	doc, err := b.rdb.HGet(ctx, k.jobs, id).Result()
	if errors.Is(err, redis.Nil) {
		return queue.ErrJobNotFound
	}
	if err != nil {
		return fmt.Errorf("loading %s/%s: %w", q, id, err)
	}

	job, err := decode(doc)
	if err != nil {
		return err
	}
	job.Attempt = 1
	job.Stalls = 0
	job.Run = uuid.NewString()
	job.FailedAt = nil
	fresh, err := encode(job)
	if err != nil {
		return err
	}

	n, err := requeueDeadScript.Run(ctx, b.rdb,
		[]string{k.jobs, k.dead, k.waiting, k.prio, k.stalls},
		id, fresh, ms(b.now()),
	).Int()
	if err != nil {
		return fmt.Errorf("requeue %s/%s: %w", q, id, err)
	}
	if n == 0 {
		return queue.ErrJobNotFound
	}
	return nil
}

// Stats implements queue.Backend.
func (b *Backend) Stats(ctx context.Context, q string) (queue.Stats, error) {
	k := b.keys(q)
	pipe := b.rdb.Pipeline()
	waiting := pipe.ZCard(ctx, k.waiting)
	delayed := pipe.ZCard(ctx, k.delayed)
	active := pipe.ZCard(ctx, k.active)
	completed := pipe.ZCard(ctx, k.completed)
	dead := pipe.ZCard(ctx, k.dead)
	if _, err := pipe.Exec(ctx); err != nil {
		return queue.Stats{}, fmt.Errorf("stats for %s: %w", q, err)
	}
	return queue.Stats{
		Waiting:   waiting.Val(),
		Delayed:   delayed.Val(),
		Active:    active.Val(),
		Completed: completed.Val(),
		Dead:      dead.Val(),
	}, nil
}
