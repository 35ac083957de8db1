// Package service contains the generation services: the planner, the mentor,
// the task evaluator and the daily task generator.
//
// Each service turns a request into a prompt, calls a generation.Provider,
// validates the JSON answer against the service's schema and then applies
// the business rules that keep the result consistent even when the model
// drifts (sorting milestones, softening tone, clamping scores and minutes).
//
// Services are stateless apart from the provider they wrap and may be shared
// between goroutines. They never touch the store; persisting results and
// recording provenance is the job of the processor that called them.
//
// Error handling:
//
//   - Provider failures are returned unchanged so callers can tell transient
//     problems (generation.ErrTransientFailure) from fatal ones.
//   - Output that fails schema validation or the business rules is returned
//     as a *generation.InvalidResponseError wrapping the *output.ValidationError
//     or ErrDegenerateOutput, carrying the raw text and token usage so the
//     caller can keep an AIOutput record and charge the tokens.
package service
