// Package events publishes out-of-band notifications about finished work.
//
// Processors describe what happened (a plan was generated, a task was
// evaluated, a job failed) as an Event and hand it to a Publisher. The API
// layer subscribes to the Redis channel to push updates to connected
// clients; tests and local runs use the in-memory Emitter.
//
// Publishing is best effort. A lost event never undoes the persisted result
// it describes, so callers log publish errors instead of failing the job.
package events
