package ragdoc

// Extraction is the main content of a page with boilerplate removed.
type Extraction struct {
	Title string
	Text  string
}

// Extractor recovers the main text of pages that carry no recognized
// headings, so they can still be indexed as a single section.
type Extractor interface {
	// Extract returns EPARSE when no main content can be identified.
	Extract(html string) (*Extraction, error)
}
