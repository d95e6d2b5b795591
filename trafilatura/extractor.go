// Package trafilatura recovers the main text of documentation pages that
// carry no usable heading structure, using go-trafilatura.
package trafilatura

import (
	"strings"

	"github.com/fwojciec/ragdoc"
	"github.com/markusmobius/go-trafilatura"
	"golang.org/x/net/html"
)

var _ ragdoc.Extractor = (*Extractor)(nil)

// Extractor wraps go-trafilatura to pull the main text out of a page.
type Extractor struct {
	opts trafilatura.Options
}

// NewExtractor creates a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{
		opts: trafilatura.Options{
			EnableFallback: true,
			ExcludeTables:  false,
		},
	}
}

// Extract returns the page's main text and title. Pages with no
// identifiable main content return EPARSE.
func (e *Extractor) Extract(rawHTML string) (*ragdoc.Extraction, error) {
	if strings.TrimSpace(rawHTML) == "" {
		return nil, ragdoc.Errorf(ragdoc.EPARSE, "empty HTML input")
	}

	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return nil, ragdoc.Errorf(ragdoc.EPARSE, "failed to parse HTML: %v", err)
	}

	result, err := trafilatura.ExtractDocument(doc, e.opts)
	if err != nil {
		return nil, ragdoc.Errorf(ragdoc.EPARSE, "failed to extract content: %v", err)
	}

	text := strings.TrimSpace(result.ContentText)
	if text == "" {
		return nil, ragdoc.Errorf(ragdoc.EPARSE, "no main content found")
	}

	return &ragdoc.Extraction{
		Title: ragdoc.NormalizeSpace(result.Metadata.Title),
		Text:  text,
	}, nil
}
