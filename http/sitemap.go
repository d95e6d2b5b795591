package http

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/beevik/etree"
	"github.com/fwojciec/ragdoc"
)

var _ ragdoc.SitemapService = (*SitemapService)(nil)

// SitemapService discovers page URLs from sitemaps over HTTP.
type SitemapService struct {
	client *http.Client
}

// NewSitemapService creates a SitemapService. A nil client uses
// http.DefaultClient.
func NewSitemapService(client *http.Client) *SitemapService {
	if client == nil {
		client = http.DefaultClient
	}
	return &SitemapService{client: client}
}

// DiscoverURLs returns the unique sitemap URLs under baseURL's path that
// pass filter. A site without sitemaps yields an empty, non-nil slice.
func (s *SitemapService) DiscoverURLs(ctx context.Context, baseURL string, filter *ragdoc.URLFilter) ([]string, error) {
	base, err := url.Parse(baseURL)
	if err != nil || base.Host == "" {
		return nil, ragdoc.Errorf(ragdoc.EINVALID, "invalid base URL: %q", baseURL)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	prefix := strings.TrimSuffix(base.Path, "/")
	root := &url.URL{Scheme: base.Scheme, Host: base.Host}

	w := &sitemapWalker{svc: s, visited: map[string]bool{}, found: map[string]bool{}}
	for _, sm := range s.locate(ctx, root) {
		if err := w.walk(ctx, sm); err != nil {
			return nil, err
		}
	}

	urls := []string{}
	for _, u := range w.urls {
		if prefix != "" && !underPath(u, prefix) {
			continue
		}
		if filter.Match(u) {
			urls = append(urls, u)
		}
	}
	return urls, nil
}

// locate returns sitemap URLs listed in robots.txt, or /sitemap.xml when
// robots.txt names none and that file exists.
func (s *SitemapService) locate(ctx context.Context, root *url.URL) []string {
	var sitemaps []string
	if body, err := s.get(ctx, root.JoinPath("robots.txt").String()); err == nil {
		scanner := bufio.NewScanner(body)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if len(line) > 8 && strings.EqualFold(line[:8], "sitemap:") {
				if u := strings.TrimSpace(line[8:]); u != "" {
					sitemaps = append(sitemaps, u)
				}
			}
		}
		body.Close()
	}
	if len(sitemaps) > 0 {
		return sitemaps
	}

	fallback := root.JoinPath("sitemap.xml").String()
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, fallback, nil)
	if err != nil {
		return nil
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil
	}
	return []string{fallback}
}

func (s *SitemapService) get(ctx context.Context, target string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, ragdoc.Errorf(ragdoc.EFETCH, "invalid request for %s: %v", target, err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, ragdoc.Errorf(ragdoc.EFETCH, "failed to fetch %s: %v", target, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, ragdoc.Errorf(ragdoc.EFETCH, "HTTP %d for %s", resp.StatusCode, target)
	}
	return resp.Body, nil
}

// sitemapWalker resolves sitemap indexes depth-first, visiting each
// sitemap once and keeping page URLs in first-seen order.
type sitemapWalker struct {
	svc     *SitemapService
	visited map[string]bool
	found   map[string]bool
	urls    []string
}

func (w *sitemapWalker) walk(ctx context.Context, sitemapURL string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if w.visited[sitemapURL] {
		return nil
	}
	w.visited[sitemapURL] = true

	body, err := w.svc.get(ctx, sitemapURL)
	if err != nil {
		return err
	}
	defer body.Close()

	doc := etree.NewDocument()
	if _, err := doc.ReadFrom(body); err != nil {
		return ragdoc.Errorf(ragdoc.EPARSE, "invalid sitemap %s: %v", sitemapURL, err)
	}
	root := doc.Root()
	if root == nil {
		return ragdoc.Errorf(ragdoc.EPARSE, "empty sitemap %s", sitemapURL)
	}

	if root.Tag == "sitemapindex" {
		for _, loc := range locs(root, "sitemap") {
			if err := w.walk(ctx, loc); err != nil {
				return err
			}
		}
		return nil
	}

	for _, loc := range locs(root, "url") {
		if !w.found[loc] {
			w.found[loc] = true
			w.urls = append(w.urls, loc)
		}
	}
	return nil
}

// locs returns the trimmed <loc> text of each child element with tag.
func locs(root *etree.Element, tag string) []string {
	var out []string
	for _, el := range root.SelectElements(tag) {
		if loc := el.SelectElement("loc"); loc != nil {
			if u := strings.TrimSpace(loc.Text()); u != "" {
				out = append(out, u)
			}
		}
	}
	return out
}

// underPath reports whether rawURL's path equals prefix or lies below it
// on a segment boundary.
func underPath(rawURL, prefix string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return u.Path == prefix || strings.HasPrefix(u.Path, prefix+"/")
}
