package mock

import "github.com/fwojciec/ragdoc"

var _ ragdoc.Extractor = (*Extractor)(nil)

// Extractor is a mock implementation of ragdoc.Extractor.
type Extractor struct {
	ExtractFn func(html string) (*ragdoc.Extraction, error)
}

func (e *Extractor) Extract(html string) (*ragdoc.Extraction, error) {
	return e.ExtractFn(html)
}
