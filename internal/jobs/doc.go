// Package jobs defines the closed set of background jobs the worker runs:
// queue and job names, payloads, idempotency keys and the typed Enqueuer.
//
// Each queue has a visitor interface listing one method per job name.
// Dispatch decodes the payload and calls the matching method, so a
// processor that forgets a job fails to compile instead of silently
// dropping work. Unknown names and undecodable payloads are permanent
// failures.
package jobs
