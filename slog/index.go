package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/fwojciec/ragdoc"
)

var _ ragdoc.ChunkIndex = (*LoggingIndex)(nil)

// LoggingIndex logs index writes and searches. Stats is not logged.
type LoggingIndex struct {
	next   ragdoc.ChunkIndex
	logger *slog.Logger
}

// NewLoggingIndex wraps next.
func NewLoggingIndex(next ragdoc.ChunkIndex, logger *slog.Logger) *LoggingIndex {
	return &LoggingIndex{next: next, logger: logger}
}

func (i *LoggingIndex) Upsert(ctx context.Context, sourceID string, chunks []*ragdoc.Chunk) (err error) {
	defer func(begin time.Time) {
		i.logger.Info("index upsert",
			"source", sourceID,
			"chunks", len(chunks),
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return i.next.Upsert(ctx, sourceID, chunks)
}

func (i *LoggingIndex) Replace(ctx context.Context, sourceID string, chunks []*ragdoc.Chunk) (err error) {
	defer func(begin time.Time) {
		i.logger.Info("index replace",
			"source", sourceID,
			"chunks", len(chunks),
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return i.next.Replace(ctx, sourceID, chunks)
}

func (i *LoggingIndex) Search(ctx context.Context, query string, opts ragdoc.SearchOptions) (results []ragdoc.SearchResult, err error) {
	defer func(begin time.Time) {
		var top float64
		if len(results) > 0 {
			top = results[0].Relevance
		}
		i.logger.Info("index search",
			"query_len", len(query),
			"source", opts.SourceID,
			"results", len(results),
			"top_relevance", top,
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return i.next.Search(ctx, query, opts)
}

func (i *LoggingIndex) Delete(ctx context.Context, sourceID string) (err error) {
	defer func(begin time.Time) {
		i.logger.Info("index delete",
			"source", sourceID,
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return i.next.Delete(ctx, sourceID)
}

func (i *LoggingIndex) Stats(ctx context.Context) (ragdoc.IndexStats, error) {
	return i.next.Stats(ctx)
}
