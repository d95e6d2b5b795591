// Package goquery implements HTML parsing for ragdoc using
// github.com/PuerkitoBio/goquery.
package goquery

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/fwojciec/ragdoc"
)

var _ ragdoc.FrameworkDetector = (*Detector)(nil)

// profile describes how to recognize a documentation framework and where
// it places the page's main content.
type profile struct {
	framework ragdoc.Framework
	generator string
	markers   []string
	content   string
}

// profiles are checked in order. VitePress precedes VuePress because it
// reuses some VuePress class names.
var profiles = []profile{
	{
		framework: ragdoc.FrameworkDocusaurus,
		generator: "docusaurus",
		markers:   []string{"#__docusaurus_skipToContent_fallback", ".theme-doc-sidebar-container"},
		content:   ".theme-doc-markdown",
	},
	{
		framework: ragdoc.FrameworkMkDocs,
		generator: "mkdocs",
		markers:   []string{"[data-md-color-scheme]", "[data-md-component]", ".md-nav--primary"},
		content:   ".md-content__inner",
	},
	{
		framework: ragdoc.FrameworkSphinx,
		generator: "sphinx",
		markers:   []string{".toctree-wrapper", ".wy-nav-side", ".wy-menu-vertical", ".sphinxsidebar"},
		content:   "div[role='main']",
	},
	{
		framework: ragdoc.FrameworkVitePress,
		generator: "vitepress",
		markers:   []string{"#VPContent", ".VPDoc", ".VPDocAsideOutline"},
		content:   ".vp-doc",
	},
	{
		framework: ragdoc.FrameworkVuePress,
		generator: "vuepress",
		markers:   []string{".theme-default-content", ".sidebar-links", ".vuepress-navbar"},
		content:   ".theme-default-content",
	},
	{
		framework: ragdoc.FrameworkGitBook,
		generator: "gitbook",
		markers:   []string{"[data-testid='space.sidebar']", "[data-testid='page.desktopTableOfContents']"},
		content:   "main",
	},
	{
		framework: ragdoc.FrameworkNextra,
		generator: "nextra",
		markers:   []string{".nextra-navbar", ".nextra-sidebar", ".nextra-toc"},
		content:   "article",
	},
}

// Detector identifies documentation frameworks from meta generator tags
// and framework-specific markup.
type Detector struct{}

// NewDetector creates a new Detector.
func NewDetector() *Detector {
	return &Detector{}
}

// Detect analyzes HTML and returns the identified framework.
func (d *Detector) Detect(html string) ragdoc.Framework {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ragdoc.FrameworkUnknown
	}
	return d.detect(doc)
}

func (d *Detector) detect(doc *goquery.Document) ragdoc.Framework {
	// Generator tags are the most reliable signal when present.
	generator := strings.ToLower(doc.Find("meta[name='generator']").Last().AttrOr("content", ""))
	if generator != "" {
		for _, p := range profiles {
			if strings.Contains(generator, p.generator) {
				return p.framework
			}
		}
	}

	for _, p := range profiles {
		for _, m := range p.markers {
			if doc.Find(m).Length() > 0 {
				return p.framework
			}
		}
	}

	if hasGitBookClasses(doc) {
		return ragdoc.FrameworkGitBook
	}
	return ragdoc.FrameworkUnknown
}

// contentSelector returns the main content selector for a framework.
func contentSelector(f ragdoc.Framework) string {
	for _, p := range profiles {
		if p.framework == f {
			return p.content
		}
	}
	return ""
}

// hasGitBookClasses reports whether the html element carries at least two
// of GitBook's theme classes.
func hasGitBookClasses(doc *goquery.Document) bool {
	class := doc.Find("html").AttrOr("class", "")
	count := 0
	for _, c := range []string{"circular-corners", "theme-clean", "tint"} {
		if strings.Contains(class, c) {
			count++
		}
	}
	return count >= 2
}
