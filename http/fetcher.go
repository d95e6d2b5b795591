// Package http implements ragdoc page retrieval over plain HTTP for
// documentation sites that serve their content without JavaScript.
package http

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/fwojciec/ragdoc"
)

// Fetch defaults.
const (
	DefaultFetchTimeout = 30 * time.Second
	DefaultUserAgent    = "ragdoc/1.0 (+https://github.com/fwojciec/ragdoc)"
	DefaultMaxBodySize  = 10 << 20
)

var _ ragdoc.Fetcher = (*Fetcher)(nil)

// Fetcher retrieves page markup with GET requests.
type Fetcher struct {
	client    *http.Client
	timeout   time.Duration
	userAgent string
	maxBody   int64
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithTimeout sets the timeout for a whole request, body included.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		f.timeout = d
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		f.userAgent = ua
	}
}

// WithMaxBodySize caps the number of body bytes read. Longer bodies are
// truncated.
func WithMaxBodySize(n int64) Option {
	return func(f *Fetcher) {
		f.maxBody = n
	}
}

// NewFetcher creates a new HTTP-based Fetcher.
func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		timeout:   DefaultFetchTimeout,
		userAgent: DefaultUserAgent,
		maxBody:   DefaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(f)
	}

	f.client = &http.Client{
		Timeout: f.timeout,
	}

	return f
}

// Fetch returns the body of the page at url. Transport failures and any
// non-2xx status return EFETCH.
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", ragdoc.Errorf(ragdoc.EFETCH, "invalid request for %s: %v", url, err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", ragdoc.Errorf(ragdoc.EFETCH, "failed to fetch %s: %v", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", ragdoc.Errorf(ragdoc.EFETCH, "HTTP %d for %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody))
	if err != nil {
		return "", ragdoc.Errorf(ragdoc.EFETCH, "failed to read %s: %v", url, err)
	}

	return string(body), nil
}

// Close is a no-op; http.Client needs no cleanup.
func (f *Fetcher) Close() error {
	return nil
}
