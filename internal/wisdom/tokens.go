package wisdom

import "unicode/utf8"

// =============================================================================
// Token Counting
// =============================================================================
// Deterministic token estimation for budget management. The heuristic is
// calibrated at ~4 characters per token; rune counting keeps the estimate
// stable for text the model tokenizer would reject.

// Per-message framing overhead charged by chat completion APIs.
const (
	messageOverheadTokens = 3
	namedFieldTokens      = 1
)

// TokenCounter estimates how many model-context tokens text consumes.
type TokenCounter struct {
	charsPerToken float64
}

// NewTokenCounter creates a token counter with default calibration.
func NewTokenCounter() *TokenCounter {
	return &TokenCounter{
		charsPerToken: 4.0,
	}
}

// CountString estimates tokens in a string.
func (tc *TokenCounter) CountString(s string) int {
	if s == "" {
		return 0
	}
	runeCount := utf8.RuneCountInString(s)
	return int(float64(runeCount) / tc.charsPerToken)
}

// CountMessage estimates tokens for a message, including the fixed framing
// overhead and the extra token charged for a named speaker.
func (tc *TokenCounter) CountMessage(m Message) int {
	tokens := messageOverheadTokens + tc.CountString(m.Content)
	if m.SpeakerName != "" {
		tokens += namedFieldTokens + tc.CountString(m.SpeakerName)
	}
	return tokens
}

// CountMessages estimates tokens for a slice of messages.
func (tc *TokenCounter) CountMessages(msgs []Message) int {
	total := 0
	for _, m := range msgs {
		total += tc.CountMessage(m)
	}
	return total
}
