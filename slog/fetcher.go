// Package slog provides logging decorators for ragdoc services using the
// standard log/slog package.
package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/fwojciec/ragdoc"
)

var _ ragdoc.Fetcher = (*LoggingFetcher)(nil)

// LoggingFetcher logs every fetch with its size and duration.
type LoggingFetcher struct {
	next   ragdoc.Fetcher
	logger *slog.Logger
}

// NewLoggingFetcher wraps next.
func NewLoggingFetcher(next ragdoc.Fetcher, logger *slog.Logger) *LoggingFetcher {
	return &LoggingFetcher{next: next, logger: logger}
}

func (f *LoggingFetcher) Fetch(ctx context.Context, url string) (html string, err error) {
	defer func(begin time.Time) {
		f.logger.Info("fetch",
			"url", url,
			"bytes", len(html),
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return f.next.Fetch(ctx, url)
}

func (f *LoggingFetcher) Close() error {
	return f.next.Close()
}
