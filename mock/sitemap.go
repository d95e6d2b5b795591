package mock

import (
	"context"

	"github.com/fwojciec/ragdoc"
)

var _ ragdoc.SitemapService = (*SitemapService)(nil)

// SitemapService is a mock implementation of ragdoc.SitemapService.
type SitemapService struct {
	DiscoverURLsFn func(ctx context.Context, baseURL string, filter *ragdoc.URLFilter) ([]string, error)
}

func (s *SitemapService) DiscoverURLs(ctx context.Context, baseURL string, filter *ragdoc.URLFilter) ([]string, error) {
	return s.DiscoverURLsFn(ctx, baseURL, filter)
}
