// Package generation defines the boundary between the worker and external
// AI/LLM backends. A Provider turns a prompt and a system prompt into one
// JSON document plus token usage and latency, hiding whether the answer came
// from Gemini, OpenAI or Anthropic.
//
// The package also carries the token arithmetic used for budget enforcement:
// a character-based estimate for pre-flight checks and helpers for comparing
// usage against a daily budget.
package generation
