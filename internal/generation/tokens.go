package generation

import (
	"fmt"
	"math"
	"unicode"
	"unicode/utf8"
)

const (
	charsPerToken = 4

	// promptOverhead covers role markers and message framing.
	promptOverhead = 10
)

// EstimateTokens approximates the token count of text at about four
// characters per token, shaved slightly for whitespace-heavy text.
func EstimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}

	spaces := 0
	for _, r := range text {
		if unicode.IsSpace(r) {
			spaces++
		}
	}

	base := math.Ceil(float64(n) / charsPerToken)
	ratio := float64(spaces) / float64(n)
	return int(math.Ceil(base * (1 - ratio*0.1)))
}

// EstimatePrompt estimates the input tokens of a request.
func EstimatePrompt(prompt, systemPrompt string) int {
	return EstimateTokens(prompt) + EstimateTokens(systemPrompt) + promptOverhead
}

// WouldExceedBudget reports whether spending estimated more tokens on top of
// used goes over budget.
func WouldExceedBudget(estimated, used, budget int) bool {
	return used+estimated > budget
}

// RemainingBudget is what is left of budget, never negative.
func RemainingBudget(used, budget int) int {
	return max(0, budget-used)
}

// FormatTokens renders a count for humans: 950, 12.5K, 1.2M.
func FormatTokens(tokens int) string {
	switch {
	case tokens >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(tokens)/1_000_000)
	case tokens >= 1_000:
		return fmt.Sprintf("%.1fK", float64(tokens)/1_000)
	default:
		return fmt.Sprintf("%d", tokens)
	}
}

// NormalizeTokens cleans up reported usage. Missing or negative counts stay
// zero rather than being guessed; a missing total is the sum of the parts.
// Estimated is filled in from the texts.
func NormalizeTokens(t Tokens, prompt, systemPrompt, output string) Tokens {
	t.Input = max(0, t.Input)
	t.Output = max(0, t.Output)
	t.Total = max(t.Total, t.Input+t.Output)
	t.Estimated = EstimatePrompt(prompt, systemPrompt) + EstimateTokens(output)
	return t
}
