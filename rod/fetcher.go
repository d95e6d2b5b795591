// Package rod implements a JavaScript-rendering ragdoc.Fetcher using
// headless Chrome via github.com/go-rod/rod.
package rod

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/fwojciec/ragdoc"
	"github.com/go-rod/rod/lib/proto"
)

var _ ragdoc.Fetcher = (*Fetcher)(nil)

// DefaultFetchTimeout bounds a single page render.
const DefaultFetchTimeout = 30 * time.Second

// Fetcher retrieves rendered HTML for pages that build their content
// client-side. It is safe for concurrent use.
type Fetcher struct {
	manager      *BrowserManager
	fetchTimeout time.Duration
	maxPages     int64
	closed       atomic.Bool
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithFetchTimeout sets the per-page render timeout.
func WithFetchTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		f.fetchTimeout = d
	}
}

// WithRecycleAfter sets how many pages a browser renders before it is
// replaced.
func WithRecycleAfter(n int64) Option {
	return func(f *Fetcher) {
		f.maxPages = n
	}
}

// NewFetcher launches a headless browser. Close must be called when the
// Fetcher is no longer needed.
func NewFetcher(opts ...Option) (*Fetcher, error) {
	f := &Fetcher{
		fetchTimeout: DefaultFetchTimeout,
		maxPages:     DefaultMaxPages,
	}
	for _, opt := range opts {
		opt(f)
	}

	m, err := NewBrowserManager(WithMaxPages(f.maxPages))
	if err != nil {
		return nil, ragdoc.Errorf(ragdoc.EFETCH, "failed to start browser: %v", err)
	}
	f.manager = m
	return f, nil
}

// Fetch navigates to url, waits for the load event and returns the
// rendered document. Context errors are returned unwrapped; every other
// failure returns EFETCH.
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	if f.closed.Load() {
		return "", ragdoc.Errorf(ragdoc.EINVALID, "fetcher is closed")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, f.fetchTimeout)
	defer cancel()

	html, err := f.render(ctx, url)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}
		return "", ragdoc.Errorf(ragdoc.EFETCH, "failed to render %s: %v", url, err)
	}
	return html, nil
}

func (f *Fetcher) render(ctx context.Context, url string) (string, error) {
	browser, release, err := f.manager.Acquire()
	if err != nil {
		return "", err
	}
	defer release()

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return "", err
	}
	defer page.Close()

	page = page.Context(ctx)
	if err := page.Navigate(url); err != nil {
		return "", err
	}
	if err := page.WaitLoad(); err != nil {
		return "", err
	}
	return page.HTML()
}

// Close releases browser resources. It is safe to call more than once.
func (f *Fetcher) Close() error {
	if !f.closed.CompareAndSwap(false, true) {
		return nil
	}
	return f.manager.Close()
}

// LauncherPID returns the process ID of the running browser launcher.
func (f *Fetcher) LauncherPID() int {
	return f.manager.LauncherPID()
}
