package ragdoc

import (
	"context"
	"unicode/utf8"
)

// CharsPerToken is the character-to-token ratio used for estimates.
const CharsPerToken = 4

// TokenCounter counts tokens in text for a specific model.
type TokenCounter interface {
	CountTokens(ctx context.Context, text string) (int, error)
}

// EstimateTokens approximates the token count of text without a model
// round-trip. It is the budget unit for chunking.
func EstimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + CharsPerToken - 1) / CharsPerToken
}
