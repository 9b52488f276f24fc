package assembler

import (
	"strings"
	"unicode/utf8"
)

// =============================================================================
// Token estimation
// =============================================================================
// Budgets are enforced against an estimate, not a real tokenizer: roughly
// four characters per token, cross-checked against 1.3 tokens per word so
// long-word text (paths, identifiers) is not undercounted.

// TokenCounter estimates token counts for budget management.
type TokenCounter struct {
	charsPerToken float64
	tokensPerWord float64
}

// NewTokenCounter returns a counter with the default calibration.
func NewTokenCounter() *TokenCounter {
	return &TokenCounter{
		charsPerToken: 4.0,
		tokensPerWord: 1.3,
	}
}

// Count estimates the tokens in s.
func (tc *TokenCounter) Count(s string) int {
	if s == "" {
		return 0
	}
	byChars := int(float64(utf8.RuneCountInString(s)) / tc.charsPerToken)
	byWords := int(float64(len(strings.Fields(s))) * tc.tokensPerWord)
	if byWords > byChars {
		return byWords
	}
	if byChars == 0 {
		return 1
	}
	return byChars
}
