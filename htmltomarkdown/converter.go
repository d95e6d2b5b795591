// Package htmltomarkdown renders HTML fragments such as tables as
// Markdown using html-to-markdown.
package htmltomarkdown

import (
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/fwojciec/ragdoc"
)

var _ ragdoc.Converter = (*Converter)(nil)

// Converter turns HTML fragments into Markdown so that tables keep their
// row and column structure inside section text.
type Converter struct {
	conv *converter.Converter
}

// NewConverter creates a Converter with table support.
func NewConverter() *Converter {
	return &Converter{
		conv: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
	}
}

// Convert returns the Markdown rendering of fragment. Empty fragments
// return EINVALID and conversion failures return EPARSE.
func (c *Converter) Convert(fragment string) (string, error) {
	if strings.TrimSpace(fragment) == "" {
		return "", ragdoc.Errorf(ragdoc.EINVALID, "empty HTML input")
	}

	md, err := c.conv.ConvertString(fragment)
	if err != nil {
		return "", ragdoc.Errorf(ragdoc.EPARSE, "failed to convert HTML: %v", err)
	}
	return strings.TrimSpace(md), nil
}
