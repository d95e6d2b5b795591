package ragdoc

import (
	"context"
	"fmt"
	"strings"
)

// PathSeparator joins ancestor titles in a section path.
const PathSeparator = " > "

// Section is a titled region of a page delimited by a heading.
// Sections form a tree through ParentID; a zero ParentID marks a root.
type Section struct {
	ID       int64  `json:"id"`
	SourceID string `json:"sourceId,omitempty"`
	ParentID int64  `json:"parentId,omitempty"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	Level    int    `json:"level"`
	Fragment string `json:"fragment,omitempty"`
	Order    int    `json:"order"`
	Path     string `json:"path"`
}

// Page is the result of building a section tree from fetched markup.
type Page struct {
	URL      string
	Title    string
	Sections []*Section

	// Warnings holds oversized-section notices for the caller to consume.
	Warnings []ContentWarning
}

// SectionBuilder parses page markup into an ordered section tree.
type SectionBuilder interface {
	// Build returns the page title and its sections in document order.
	// A page without recognized headings yields an empty section list.
	Build(markup string, baseURL string) (*Page, error)
}

// SectionService persists section trees per source.
type SectionService interface {
	// ReplaceSections removes the source's sections and stores the given
	// tree. Section IDs are reassigned; parent links are remapped.
	ReplaceSections(ctx context.Context, sourceID string, sections []*Section) error

	// FindSections returns the source's sections in hierarchical order
	// with Path computed from the ancestor chain.
	FindSections(ctx context.Context, sourceID string) ([]*Section, error)
}

// TreeBuilder assembles sections from a linear heading scan. It keeps a
// stack of open ancestors: a new heading closes every open section whose
// level is greater than or equal to its own.
type TreeBuilder struct {
	sections []*Section
	open     []*Section
}

// Add appends a heading to the tree and returns the created section.
// IDs are assigned sequentially starting at 1.
func (b *TreeBuilder) Add(level int, title, fragment, content string) *Section {
	for len(b.open) > 0 && b.open[len(b.open)-1].Level >= level {
		b.open = b.open[:len(b.open)-1]
	}

	s := &Section{
		ID:       int64(len(b.sections) + 1),
		Title:    title,
		Content:  content,
		Level:    level,
		Fragment: fragment,
		Order:    len(b.sections),
		Path:     title,
	}
	if len(b.open) > 0 {
		parent := b.open[len(b.open)-1]
		s.ParentID = parent.ID
		s.Path = parent.Path + PathSeparator + title
	}

	b.sections = append(b.sections, s)
	b.open = append(b.open, s)
	return s
}

// Sections returns the sections added so far in document order.
func (b *TreeBuilder) Sections() []*Section {
	return b.sections
}

// Roots returns the sections without a parent, in order.
func Roots(sections []*Section) []*Section {
	return Children(sections, 0)
}

// Children returns the direct children of the section with the given ID.
func Children(sections []*Section, parentID int64) []*Section {
	var out []*Section
	for _, s := range sections {
		if s.ParentID == parentID {
			out = append(out, s)
		}
	}
	return out
}

// WarningLevel grades how far a section exceeds the size thresholds.
type WarningLevel string

// Warning levels, from least to most severe.
const (
	WarningInfo     WarningLevel = "info"
	WarningWarn     WarningLevel = "warning"
	WarningCritical WarningLevel = "critical"
)

// ContentWarning flags a section whose content is large enough to
// degrade retrieval unless it is chunked.
type ContentWarning struct {
	Level   WarningLevel
	Title   string
	Length  int
	Message string
}

// WarningThresholds are content lengths, in characters, at which a
// section triggers a warning of the corresponding level.
type WarningThresholds struct {
	Info     int `yaml:"info"`
	Warning  int `yaml:"warning"`
	Critical int `yaml:"critical"`
}

// DefaultWarningThresholds returns the standard thresholds.
func DefaultWarningThresholds() WarningThresholds {
	return WarningThresholds{Info: 1700, Warning: 2500, Critical: 4000}
}

// Check returns a warning when content is longer than a threshold.
func (t WarningThresholds) Check(title, content string) (ContentWarning, bool) {
	n := len(content)
	w := ContentWarning{Title: title, Length: n}
	switch {
	case t.Critical > 0 && n > t.Critical:
		w.Level = WarningCritical
		w.Message = fmt.Sprintf("Section '%s' is very large (%d chars) and may need chunking", title, n)
	case t.Warning > 0 && n > t.Warning:
		w.Level = WarningWarn
		w.Message = fmt.Sprintf("Section '%s' is large (%d chars) and may need chunking", title, n)
	case t.Info > 0 && n > t.Info:
		w.Level = WarningInfo
		w.Message = fmt.Sprintf("Section '%s' is approaching size limit (%d chars)", title, n)
	default:
		return ContentWarning{}, false
	}
	return w, true
}

// NormalizeSpace collapses runs of whitespace into single spaces and trims
// the result.
func NormalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
