// Package ingest turns registered sources into indexed chunks. It
// fetches each page, builds its section tree, stores the tree, splits the
// sections into chunks and replaces the source's chunks in the index.
package ingest

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/fwojciec/ragdoc"
	"github.com/fwojciec/ragdoc/bloom"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is the number of sources indexed at once.
const DefaultConcurrency = 4

// Queue sizing for deduplication.
const (
	expectedURLs      = 10000
	falsePositiveRate = 0.001
)

// Ingester indexes documentation sources.
type Ingester struct {
	Sources     ragdoc.SourceService
	Sections    ragdoc.SectionService
	Index       ragdoc.ChunkIndex
	Fetcher     ragdoc.Fetcher
	Builder     ragdoc.SectionBuilder
	Sitemaps    ragdoc.SitemapService
	RateLimiter ragdoc.DomainLimiter
	Chunking    ragdoc.ChunkOptions

	// TokenCounter counts chunk tokens for reporting. Estimates are used
	// when it is nil or fails.
	TokenCounter ragdoc.TokenCounter

	Concurrency int

	// Force re-indexes sources whose content is unchanged.
	Force bool

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// SourceResult is the outcome of indexing one source.
type SourceResult struct {
	URL       string
	Title     string
	Sections  int
	Chunks    int
	Tokens    int
	Unchanged bool
	Warnings  []ragdoc.ContentWarning
}

// Result summarizes a batch of sources.
type Result struct {
	Indexed   int
	Unchanged int
	Failed    int
	Sections  int
	Chunks    int
	Tokens    int
}

// ProgressEvent reports progress while indexing a batch.
type ProgressEvent struct {
	Type      ProgressType
	Completed int
	Total     int
	URL       string
	Source    *SourceResult
	Error     error
}

// ProgressType indicates the type of progress event.
type ProgressType int

const (
	ProgressStarted ProgressType = iota
	ProgressIndexed
	ProgressUnchanged
	ProgressFailed
	ProgressFinished
)

// ProgressFunc is a callback for reporting indexing progress.
type ProgressFunc func(event ProgressEvent)

type indexResult struct {
	url    string
	source *SourceResult
	err    error
}

// IndexSources indexes sources concurrently, each page at most once, in
// queue order: never-indexed sources first. Individual failures are
// counted and reported through progress; the batch continues. The error
// return is reserved for cancellation.
func (ing *Ingester) IndexSources(ctx context.Context, sources []*ragdoc.Source, progress ProgressFunc) (*Result, error) {
	queue := NewQueue(expectedURLs, falsePositiveRate)
	for _, src := range sources {
		queue.Push(src)
	}
	ordered := queue.Drain()
	total := len(ordered)

	concurrency := ing.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	if progress != nil {
		progress(ProgressEvent{Type: ProgressStarted, Total: total})
	}

	resultCh := make(chan indexResult, total)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	go func() {
		for _, src := range ordered {
			g.Go(func() error {
				res, err := ing.IndexSource(gctx, src)
				resultCh <- indexResult{url: src.URL, source: res, err: err}
				return nil
			})
		}
		_ = g.Wait()
		close(resultCh)
	}()

	var result Result
	var completed atomic.Int64
	for r := range resultCh {
		event := ProgressEvent{
			Completed: int(completed.Add(1)),
			Total:     total,
			URL:       r.url,
			Source:    r.source,
			Error:     r.err,
		}
		switch {
		case r.err != nil:
			result.Failed++
			event.Type = ProgressFailed
		case r.source.Unchanged:
			result.Unchanged++
			event.Type = ProgressUnchanged
		default:
			result.Indexed++
			result.Sections += r.source.Sections
			result.Chunks += r.source.Chunks
			result.Tokens += r.source.Tokens
			event.Type = ProgressIndexed
		}
		if progress != nil {
			progress(event)
		}
	}

	if progress != nil {
		progress(ProgressEvent{Type: ProgressFinished, Completed: total, Total: total})
	}
	if err := ctx.Err(); err != nil {
		return &result, err
	}
	return &result, nil
}

// IndexSource fetches one source and replaces its sections and chunks.
// When the page's sections hash to the stored content hash the source is
// left as is, unless Force is set.
func (ing *Ingester) IndexSource(ctx context.Context, src *ragdoc.Source) (*SourceResult, error) {
	if ing.RateLimiter != nil {
		u, err := url.Parse(src.URL)
		if err != nil {
			return nil, ragdoc.Errorf(ragdoc.EINVALID, "invalid source URL %q: %v", src.URL, err)
		}
		if err := ing.RateLimiter.Wait(ctx, u.Host); err != nil {
			return nil, err
		}
	}

	html, err := ing.Fetcher.Fetch(ctx, src.URL)
	if err != nil {
		return nil, err
	}
	page, err := ing.Builder.Build(html, src.URL)
	if err != nil {
		return nil, err
	}

	res := &SourceResult{
		URL:      src.URL,
		Title:    page.Title,
		Sections: len(page.Sections),
		Warnings: page.Warnings,
	}

	hash := sectionsHash(page.Sections)
	if !ing.Force && src.Indexed() && src.ContentHash == hash {
		res.Unchanged = true
		return res, nil
	}

	opts := ing.Chunking
	if opts.MaxTokens <= 0 {
		opts = ragdoc.DefaultChunkOptions()
	}
	chunks := ragdoc.ChunkSections(src.ID, src.URL, page.Sections, opts)
	res.Chunks = len(chunks)
	for _, c := range chunks {
		res.Tokens += ing.countTokens(ctx, c)
	}

	// Chunks go first: an embedding failure leaves the stored chunks and
	// sections untouched. The content hash is only recorded once both are
	// written.
	if err := ing.Index.Replace(ctx, src.ID, chunks); err != nil {
		return nil, err
	}
	if err := ing.Sections.ReplaceSections(ctx, src.ID, page.Sections); err != nil {
		return nil, fmt.Errorf("failed to store sections: %w", err)
	}

	now := ing.now().UTC()
	if _, err := ing.Sources.UpdateSource(ctx, src.ID, ragdoc.SourceUpdate{
		Title:       &page.Title,
		ContentHash: &hash,
		IndexedAt:   &now,
	}); err != nil {
		return nil, fmt.Errorf("failed to update source: %w", err)
	}
	return res, nil
}

// Discover lists the pages under baseURL found in the site's sitemaps,
// sorted and without duplicates. Fragments are dropped.
func (ing *Ingester) Discover(ctx context.Context, baseURL string, filter *ragdoc.URLFilter) ([]string, error) {
	urls, err := ing.Sitemaps.DiscoverURLs(ctx, baseURL, filter)
	if err != nil {
		return nil, fmt.Errorf("sitemap discovery: %w", err)
	}

	seen := bloom.NewFilter(max(uint(len(urls)), 1), falsePositiveRate)
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		u = pageURL(u)
		if seen.TestAndAdd(u) {
			continue
		}
		out = append(out, u)
	}
	sort.Strings(out)
	return out, nil
}

func (ing *Ingester) countTokens(ctx context.Context, c *ragdoc.Chunk) int {
	if ing.TokenCounter != nil {
		if n, err := ing.TokenCounter.CountTokens(ctx, c.Content); err == nil {
			return n
		}
	}
	return c.Metadata.TokenCount
}

func (ing *Ingester) now() time.Time {
	if ing.Now != nil {
		return ing.Now()
	}
	return time.Now()
}

// sectionsHash fingerprints a section tree by level, title, anchor and
// content so that markup-only changes do not trigger re-indexing.
func sectionsHash(sections []*ragdoc.Section) string {
	d := xxhash.New()
	for _, s := range sections {
		fmt.Fprintf(d, "%d\x00%s\x00%s\x00%s\x00", s.Level, s.Title, s.Fragment, s.Content)
	}
	return fmt.Sprintf("%016x", d.Sum64())
}
