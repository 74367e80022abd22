package conversation

import "unicode/utf8"

// defaultCharsPerToken is the fixed character-to-token ratio used when
// none is configured. Roughly four characters per token for English text.
const defaultCharsPerToken = 4

// TokenEstimator approximates token counts without invoking a model.
// Estimates are deterministic, non-negative, and monotonically
// non-decreasing in text length.
type TokenEstimator struct {
	charsPerToken int
}

// NewTokenEstimator creates an estimator with the given ratio.
// A ratio <= 0 selects the default.
func NewTokenEstimator(charsPerToken int) *TokenEstimator {
	if charsPerToken <= 0 {
		charsPerToken = defaultCharsPerToken
	}
	return &TokenEstimator{charsPerToken: charsPerToken}
}

// Estimate returns the approximate token cost of text, rounded up.
// Empty text yields 0.
func (e *TokenEstimator) Estimate(text string) int {
	chars := utf8.RuneCountInString(text)
	return (chars + e.charsPerToken - 1) / e.charsPerToken
}

// EstimateMessages returns the summed estimate over message contents.
func (e *TokenEstimator) EstimateMessages(messages []Message) int {
	total := 0
	for _, msg := range messages {
		total += e.Estimate(msg.Content)
	}
	return total
}
