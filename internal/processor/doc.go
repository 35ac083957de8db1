// Package processor implements the job handlers behind the worker's three
// queues.
//
// AIJobs runs generation jobs (plans, daily tasks, mentor feedback and task
// evaluation). Each generation is recorded as an AIInteraction keyed by the
// queue job ID and attempt, so a redelivered job that already completed is
// acknowledged without repeating its side effects. Maintenance runs the
// scheduled housekeeping jobs and Notifications delivers persisted
// notifications on external channels.
//
// The handlers satisfy the visitor interfaces of package jobs, which decode
// and validate payloads before calling them.
package processor
