package ragdoc

import (
	"context"
	"regexp"
)

// SitemapService discovers page URLs from website sitemaps. It lets a
// whole documentation site be registered as sources in one step.
type SitemapService interface {
	// DiscoverURLs returns page URLs under baseURL listed in the site's
	// sitemaps. Sitemap directives in robots.txt are preferred over
	// /sitemap.xml, and sitemap indexes are resolved recursively.
	DiscoverURLs(ctx context.Context, baseURL string, filter *URLFilter) ([]string, error)
}

// URLFilter selects URLs by pattern.
type URLFilter struct {
	// Include keeps only URLs matching at least one pattern, when set.
	Include []*regexp.Regexp

	// Exclude drops URLs matching any pattern. Applied after Include.
	Exclude []*regexp.Regexp
}

// Match reports whether the URL passes the filter. A nil filter passes
// everything.
func (f *URLFilter) Match(url string) bool {
	if f == nil {
		return true
	}
	if len(f.Include) > 0 && !matchAny(f.Include, url) {
		return false
	}
	return !matchAny(f.Exclude, url)
}

func matchAny(patterns []*regexp.Regexp, s string) bool {
	for _, re := range patterns {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}
