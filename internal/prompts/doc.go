// Package prompts holds the versioned prompt templates for every generation
// role. Each role has a system prompt constant, a version string recorded on
// every AI interaction, and a builder that renders the user prompt from
// typed parameters.
//
// Changing the wording of a template means bumping its version so stored
// interactions stay attributable to the prompt that produced them.
package prompts
