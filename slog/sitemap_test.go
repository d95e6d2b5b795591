package slog_test

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/fwojciec/ragdoc"
	"github.com/fwojciec/ragdoc/mock"
	ragslog "github.com/fwojciec/ragdoc/slog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggingSitemapService(t *testing.T) {
	t.Parallel()

	t.Run("logs the number of discovered URLs", func(t *testing.T) {
		t.Parallel()

		logger, buf := newLogger()
		var gotFilter *ragdoc.URLFilter
		svc := ragslog.NewLoggingSitemapService(&mock.SitemapService{
			DiscoverURLsFn: func(ctx context.Context, baseURL string, filter *ragdoc.URLFilter) ([]string, error) {
				gotFilter = filter
				return []string{"https://x/docs/a", "https://x/docs/b"}, nil
			},
		}, logger)
		filter := &ragdoc.URLFilter{Include: []*regexp.Regexp{regexp.MustCompile(`/docs/`)}}

		urls, err := svc.DiscoverURLs(context.Background(), "https://x/docs", filter)

		require.NoError(t, err)
		assert.Len(t, urls, 2)
		assert.Same(t, filter, gotFilter)
		assert.Contains(t, buf.String(), `msg="sitemap discovery"`)
		assert.Contains(t, buf.String(), "count=2")
		assert.Contains(t, buf.String(), "filtered=true")
	})

	t.Run("logs the failure", func(t *testing.T) {
		t.Parallel()

		logger, buf := newLogger()
		svc := ragslog.NewLoggingSitemapService(&mock.SitemapService{
			DiscoverURLsFn: func(ctx context.Context, baseURL string, filter *ragdoc.URLFilter) ([]string, error) {
				return nil, errors.New("connection refused")
			},
		}, logger)

		_, err := svc.DiscoverURLs(context.Background(), "https://x", nil)

		require.Error(t, err)
		assert.Contains(t, buf.String(), `err="connection refused"`)
		assert.Contains(t, buf.String(), "filtered=false")
	})
}
