// Package vector implements ragdoc.ChunkIndex on top of an embedding model
// and a vector store.
package vector

import (
	"context"
	"strings"
	"time"

	"github.com/fwojciec/ragdoc"
	"golang.org/x/sync/errgroup"
)

var _ ragdoc.ChunkIndex = (*Index)(nil)

const (
	// DefaultBatchSize is the number of texts sent per embedding request.
	DefaultBatchSize = 100

	// DefaultConcurrency is the number of embedding requests in flight.
	DefaultConcurrency = 4

	// DefaultSearchLimit applies when SearchOptions.Limit is not set.
	DefaultSearchLimit = 5
)

// Index embeds chunks and ranks stored neighbors by relevance.
type Index struct {
	store       ragdoc.VectorStore
	embedder    ragdoc.Embedder
	policy      ragdoc.RankingPolicy
	batchSize   int
	concurrency int
	now         func() time.Time
}

// Option configures an Index.
type Option func(*Index)

// WithRankingPolicy overrides the relevance transform and size boost.
func WithRankingPolicy(p ragdoc.RankingPolicy) Option {
	return func(i *Index) {
		i.policy = p
	}
}

// WithBatchSize sets how many texts go into one embedding request.
func WithBatchSize(n int) Option {
	return func(i *Index) {
		if n > 0 {
			i.batchSize = n
		}
	}
}

// WithConcurrency sets how many embedding requests run at once.
func WithConcurrency(n int) Option {
	return func(i *Index) {
		if n > 0 {
			i.concurrency = n
		}
	}
}

// WithClock sets the time source used to stamp indexed chunks.
func WithClock(now func() time.Time) Option {
	return func(i *Index) {
		i.now = now
	}
}

// NewIndex creates an Index over store using embedder for vectors. With a
// nil embedder the index can delete and count; writes and searches return
// EINDEX.
func NewIndex(store ragdoc.VectorStore, embedder ragdoc.Embedder, opts ...Option) *Index {
	i := &Index{
		store:       store,
		embedder:    embedder,
		policy:      ragdoc.DefaultRankingPolicy(),
		batchSize:   DefaultBatchSize,
		concurrency: DefaultConcurrency,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Upsert embeds and stores chunks, replacing any with the same ID. The
// stored copies carry sourceID and the indexing time in their metadata.
func (i *Index) Upsert(ctx context.Context, sourceID string, chunks []*ragdoc.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	stamped, vectors, err := i.prepare(ctx, sourceID, chunks)
	if err != nil {
		return err
	}
	return i.store.Upsert(ctx, stamped, vectors)
}

// Replace embeds chunks and then swaps them in for the source's stored
// chunks. Nothing is written when embedding fails. Empty input removes
// the source's chunks.
func (i *Index) Replace(ctx context.Context, sourceID string, chunks []*ragdoc.Chunk) error {
	stamped, vectors, err := i.prepare(ctx, sourceID, chunks)
	if err != nil {
		return err
	}
	return i.store.Replace(ctx, sourceID, stamped, vectors)
}

// prepare stamps copies of chunks with sourceID and the indexing time and
// embeds their content.
func (i *Index) prepare(ctx context.Context, sourceID string, chunks []*ragdoc.Chunk) ([]*ragdoc.Chunk, [][]float32, error) {
	if len(chunks) == 0 {
		return nil, nil, nil
	}

	indexedAt := i.now().UTC().Truncate(time.Second)
	stamped := make([]*ragdoc.Chunk, len(chunks))
	texts := make([]string, len(chunks))
	for n, c := range chunks {
		cp := *c
		cp.SourceID = sourceID
		cp.Metadata.SourceID = sourceID
		cp.Metadata.IndexedAt = indexedAt
		stamped[n] = &cp
		texts[n] = cp.Content
	}

	vectors, err := i.embed(ctx, texts)
	if err != nil {
		return nil, nil, err
	}
	return stamped, vectors, nil
}

// embed computes vectors for texts in batches on a bounded worker pool.
func (i *Index) embed(ctx context.Context, texts []string) ([][]float32, error) {
	if i.embedder == nil {
		return nil, errNoEmbedder()
	}
	vectors := make([][]float32, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(i.concurrency)
	for lo := 0; lo < len(texts); lo += i.batchSize {
		hi := min(lo+i.batchSize, len(texts))
		g.Go(func() error {
			batch, err := i.embedder.Embed(gctx, texts[lo:hi])
			if err != nil {
				return ragdoc.Errorf(ragdoc.EINDEX, "failed to embed chunks: %v", err)
			}
			if len(batch) != hi-lo {
				return ragdoc.Errorf(ragdoc.EINDEX, "embedder returned %d vectors for %d texts", len(batch), hi-lo)
			}
			copy(vectors[lo:hi], batch)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

func errNoEmbedder() error {
	return ragdoc.Errorf(ragdoc.EINDEX, "no embedder configured")
}

// Search embeds query and returns stored chunks ranked by relevance. An
// empty query returns no results.
func (i *Index) Search(ctx context.Context, query string, opts ragdoc.SearchOptions) ([]ragdoc.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	if i.embedder == nil {
		return nil, errNoEmbedder()
	}
	vectors, err := i.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, ragdoc.Errorf(ragdoc.EINDEX, "failed to embed query: %v", err)
	}
	if len(vectors) != 1 {
		return nil, ragdoc.Errorf(ragdoc.EINDEX, "embedder returned %d vectors for 1 query", len(vectors))
	}

	neighbors, err := i.store.Query(ctx, vectors[0], i.policy.FetchSize(limit), opts.SourceID)
	if err != nil {
		return nil, err
	}
	return i.policy.Rank(neighbors, opts.MinRelevance, limit), nil
}

// Delete removes every chunk of the source.
func (i *Index) Delete(ctx context.Context, sourceID string) error {
	return i.store.DeleteBySource(ctx, sourceID)
}

// Stats reports the stored chunk count and the embedding dimension.
// Dimensions is zero for an index opened without an embedder.
func (i *Index) Stats(ctx context.Context) (ragdoc.IndexStats, error) {
	n, err := i.store.Count(ctx)
	if err != nil {
		return ragdoc.IndexStats{}, err
	}
	stats := ragdoc.IndexStats{ChunkCount: n}
	if i.embedder != nil {
		stats.Dimensions = i.embedder.Dimension()
	}
	return stats, nil
}
