// Package queue implements durable, at-least-once background job processing.
//
// A Job is identified by its ID, which doubles as the idempotency key:
// enqueuing a job whose ID is already waiting, delayed, running or recently
// completed returns the existing job instead of creating new work.
//
// Workers reserve jobs under a lease. When a worker dies mid-job its lease
// expires and the reaper returns the job to the waiting set, so the job is
// delivered again with the same attempt number. Handlers therefore have to
// be idempotent.
//
// A failed job is retried after an exponential backoff (base * 2^(attempt-1),
// capped) until MaxAttempts is reached, after which it moves to the
// dead-letter set and stays there until an operator requeues it. Errors
// wrapped with Permanent skip the remaining attempts.
//
// Priority is advisory: lower values run first, but a job's priority only
// shifts its position by a bounded offset (at most MaxPriority steps), so
// low-priority work is never starved.
//
// Backends: MemoryBackend for tests and single-process use, and the Redis
// backend in internal/platform/redisqueue for production.
package queue
