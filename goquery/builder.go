package goquery

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/fwojciec/ragdoc"
)

var _ ragdoc.SectionBuilder = (*SectionBuilder)(nil)

const headingSelector = "h1, h2, h3"

var headingLevels = map[string]int{"h1": 1, "h2": 2, "h3": 3}

// containerSelectors locate the main content when no framework-specific
// container applies. The whole body is used when none match.
var containerSelectors = []string{"div#main-content", "main", "article", "[role='main']"}

// noise is removed before parsing. Permalink anchors would otherwise end
// up in section titles.
const noise = "script, style, noscript, a.headerlink, a.hash-link, a.header-anchor"

// SectionBuilder builds section trees from HTML documentation pages.
type SectionBuilder struct {
	detector   *Detector
	thresholds ragdoc.WarningThresholds
	fallback   ragdoc.Extractor
	converter  ragdoc.Converter
}

// Option configures a SectionBuilder.
type Option func(*SectionBuilder)

// WithThresholds sets the content lengths that trigger warnings.
func WithThresholds(t ragdoc.WarningThresholds) Option {
	return func(b *SectionBuilder) {
		b.thresholds = t
	}
}

// WithFallback sets the extractor used for pages without headings. The
// extracted text becomes a single section titled after the page.
func WithFallback(e ragdoc.Extractor) Option {
	return func(b *SectionBuilder) {
		b.fallback = e
	}
}

// WithConverter sets the converter used to render tables.
func WithConverter(c ragdoc.Converter) Option {
	return func(b *SectionBuilder) {
		b.converter = c
	}
}

// NewSectionBuilder creates a SectionBuilder with default thresholds.
func NewSectionBuilder(opts ...Option) *SectionBuilder {
	b := &SectionBuilder{
		detector:   NewDetector(),
		thresholds: ragdoc.DefaultWarningThresholds(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build parses markup into a page with its section tree.
func (b *SectionBuilder) Build(markup string, baseURL string) (*ragdoc.Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, ragdoc.Errorf(ragdoc.EPARSE, "failed to parse HTML: %v", err)
	}
	doc.Find(noise).Remove()

	page := &ragdoc.Page{
		URL:   baseURL,
		Title: ragdoc.NormalizeSpace(doc.Find("title").First().Text()),
	}
	if page.Title == "" {
		page.Title = baseURL
	}

	container := b.container(doc)
	var tree ragdoc.TreeBuilder
	container.Find(headingSelector).Each(func(_ int, h *goquery.Selection) {
		title := ragdoc.NormalizeSpace(h.Text())
		if title == "" {
			return
		}
		s := tree.Add(headingLevels[goquery.NodeName(h)], title, anchor(h, container), b.content(h, container))
		if w, ok := b.thresholds.Check(s.Title, s.Content); ok {
			page.Warnings = append(page.Warnings, w)
		}
	})
	page.Sections = tree.Sections()

	if len(page.Sections) == 0 && b.fallback != nil {
		b.applyFallback(markup, page)
	}
	return page, nil
}

func (b *SectionBuilder) container(doc *goquery.Document) *goquery.Selection {
	if sel := contentSelector(b.detector.detect(doc)); sel != "" {
		if c := doc.Find(sel).First(); c.Find(headingSelector).Length() > 0 {
			return c
		}
	}
	for _, sel := range containerSelectors {
		if c := doc.Find(sel).First(); c.Length() > 0 {
			return c
		}
	}
	return doc.Find("body")
}

// content collects the blocks following a heading up to the next heading,
// including blocks that open a wrapper before a heading nested in it. A
// heading that is the last child of a wrapper holding no other heading
// continues from the wrapper's siblings.
func (b *SectionBuilder) content(h, container *goquery.Selection) string {
	start := h
	for start.Next().Length() == 0 {
		parent := start.Parent()
		if parent.Length() == 0 || parent.IsSelection(container) || parent.Find(headingSelector).Length() > 1 {
			break
		}
		start = parent
	}

	var lines []string
	for sib := start.Next(); sib.Length() > 0; sib = sib.Next() {
		if isHeading(sib) {
			break
		}
		if sib.Find(headingSelector).Length() > 0 {
			lines = b.appendUntilHeading(lines, sib)
			break
		}
		lines = b.appendBlock(lines, sib)
	}
	return strings.Join(lines, "\n")
}

// appendUntilHeading adds the blocks of a wrapper that precede the first
// heading nested anywhere inside it.
func (b *SectionBuilder) appendUntilHeading(lines []string, wrapper *goquery.Selection) []string {
	wrapper.Children().EachWithBreak(func(_ int, child *goquery.Selection) bool {
		if isHeading(child) {
			return false
		}
		if child.Find(headingSelector).Length() > 0 {
			lines = b.appendUntilHeading(lines, child)
			return false
		}
		lines = b.appendBlock(lines, child)
		return true
	})
	return lines
}

func (b *SectionBuilder) appendBlock(lines []string, sel *goquery.Selection) []string {
	switch goquery.NodeName(sel) {
	case "p", "dt", "dd", "h4", "h5", "h6":
		if text := ragdoc.NormalizeSpace(sel.Text()); text != "" {
			lines = append(lines, text)
		}
	case "ul", "ol":
		sel.ChildrenFiltered("li").Each(func(_ int, li *goquery.Selection) {
			if text := ragdoc.NormalizeSpace(li.Text()); text != "" {
				lines = append(lines, "• "+text)
			}
		})
	case "pre":
		code := strings.Trim(sel.Text(), "\n")
		if strings.TrimSpace(code) != "" {
			lines = append(lines, "```\n"+code+"\n```")
		}
	case "code":
		if text := ragdoc.NormalizeSpace(sel.Text()); text != "" {
			lines = append(lines, "`"+text+"`")
		}
	case "table":
		if text := b.table(sel); text != "" {
			lines = append(lines, text)
		}
	case "div", "section", "article", "blockquote", "dl", "figure", "details":
		sel.Children().Each(func(_ int, child *goquery.Selection) {
			lines = b.appendBlock(lines, child)
		})
	}
	return lines
}

// table renders a table through the converter, or as pipe-separated rows
// when no converter is configured or conversion fails.
func (b *SectionBuilder) table(sel *goquery.Selection) string {
	if b.converter != nil {
		if html, err := goquery.OuterHtml(sel); err == nil {
			if md, err := b.converter.Convert(html); err == nil {
				return strings.TrimSpace(md)
			}
		}
	}

	var rows []string
	sel.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		var cells []string
		tr.Find("th, td").Each(func(_ int, cell *goquery.Selection) {
			cells = append(cells, ragdoc.NormalizeSpace(cell.Text()))
		})
		if len(cells) > 0 {
			rows = append(rows, strings.Join(cells, " | "))
		}
	})
	return strings.Join(rows, "\n")
}

func (b *SectionBuilder) applyFallback(markup string, page *ragdoc.Page) {
	ex, err := b.fallback.Extract(markup)
	if err != nil {
		return
	}
	text := ragdoc.NormalizeSpace(ex.Text)
	if text == "" {
		return
	}
	title := page.Title
	if ex.Title != "" {
		title = ex.Title
	}

	var tree ragdoc.TreeBuilder
	s := tree.Add(1, title, "", text)
	if w, ok := b.thresholds.Check(s.Title, s.Content); ok {
		page.Warnings = append(page.Warnings, w)
	}
	page.Sections = tree.Sections()
}

// anchor returns the heading's own id, the id of an anchor inside it, or
// the id of its nearest ancestor within the container.
func anchor(h, container *goquery.Selection) string {
	if id, ok := h.Attr("id"); ok && id != "" {
		return id
	}
	if id, ok := h.Find("a[id]").First().Attr("id"); ok && id != "" {
		return id
	}
	if id, ok := h.Find("a[name]").First().Attr("name"); ok && id != "" {
		return id
	}
	id, _ := h.ParentsUntilSelection(container).Filter("[id]").First().Attr("id")
	return id
}

func isHeading(sel *goquery.Selection) bool {
	_, ok := headingLevels[goquery.NodeName(sel)]
	return ok
}
