// Package redisqueue implements queue.Backend on Redis.
//
// Each queue owns a handful of keys under a shared prefix: a hash of job
// documents, sorted sets for the waiting, delayed, active, completed and
// dead states, a hash of lease tokens and a hash of priority offsets. Every
// state transition runs as a single Lua script so concurrent workers in
// separate processes never observe a half-moved job. The caller's clock is
// passed into each script, which keeps the backend testable against
// miniredis.
package redisqueue
