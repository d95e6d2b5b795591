package ragdoc

// Converter renders HTML fragments that have no plain-text section rule,
// such as tables, as Markdown.
type Converter interface {
	Convert(html string) (string, error)
}
