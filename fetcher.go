package ragdoc

import "context"

// Fetcher retrieves page markup from URLs.
type Fetcher interface {
	// Fetch returns the page markup. Network failures and non-success
	// responses return EFETCH. The context controls timeout and
	// cancellation.
	Fetch(ctx context.Context, url string) (html string, err error)

	// Close releases resources held by the fetcher.
	Close() error
}
