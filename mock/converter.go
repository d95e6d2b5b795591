package mock

import "github.com/fwojciec/ragdoc"

var _ ragdoc.Converter = (*Converter)(nil)

// Converter is a mock implementation of ragdoc.Converter.
type Converter struct {
	ConvertFn func(html string) (string, error)
}

func (c *Converter) Convert(html string) (string, error) {
	return c.ConvertFn(html)
}
