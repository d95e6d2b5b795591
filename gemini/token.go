package gemini

import (
	"context"
	"strings"

	"github.com/fwojciec/ragdoc"
	"google.golang.org/genai"
	"google.golang.org/genai/tokenizer"
)

var _ ragdoc.TokenCounter = (*TokenCounter)(nil)

// TokenCounter counts chunk tokens offline with the tokenizer of a Gemini
// model, so chunk sizes can be reported without API calls.
type TokenCounter struct {
	model string
	tok   *tokenizer.LocalTokenizer
}

// NewTokenCounter loads the local tokenizer for model. Models without a
// published tokenizer return EINVALID.
func NewTokenCounter(model string) (*TokenCounter, error) {
	tok, err := tokenizer.NewLocalTokenizer(model)
	if err != nil {
		return nil, ragdoc.Errorf(ragdoc.EINVALID, "no local tokenizer for %q: %v", model, err)
	}
	return &TokenCounter{model: model, tok: tok}, nil
}

// CountTokens returns the number of tokens in text. Blank text counts as
// zero.
func (tc *TokenCounter) CountTokens(_ context.Context, text string) (int, error) {
	if strings.TrimSpace(text) == "" {
		return 0, nil
	}

	contents := []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}
	result, err := tc.tok.CountTokens(contents, nil)
	if err != nil {
		return 0, ragdoc.Errorf(ragdoc.EINTERNAL, "%s tokenizer failed: %v", tc.model, err)
	}
	return int(result.TotalTokens), nil
}
