package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/fwojciec/ragdoc"
)

// Ensure LoggingSitemapService implements ragdoc.SitemapService.
var _ ragdoc.SitemapService = (*LoggingSitemapService)(nil)

// LoggingSitemapService logs sitemap discovery.
type LoggingSitemapService struct {
	next   ragdoc.SitemapService
	logger *slog.Logger
}

// NewLoggingSitemapService wraps next.
func NewLoggingSitemapService(next ragdoc.SitemapService, logger *slog.Logger) *LoggingSitemapService {
	return &LoggingSitemapService{next: next, logger: logger}
}

// DiscoverURLs delegates to the wrapped service and logs the operation.
func (s *LoggingSitemapService) DiscoverURLs(ctx context.Context, baseURL string, filter *ragdoc.URLFilter) (urls []string, err error) {
	defer func(begin time.Time) {
		s.logger.Info("sitemap discovery",
			"url", baseURL,
			"filtered", filter != nil,
			"count", len(urls),
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return s.next.DiscoverURLs(ctx, baseURL, filter)
}
