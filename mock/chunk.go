package mock

import (
	"context"

	"github.com/fwojciec/ragdoc"
)

var _ ragdoc.ChunkIndex = (*ChunkIndex)(nil)

// ChunkIndex is a mock implementation of ragdoc.ChunkIndex.
type ChunkIndex struct {
	UpsertFn  func(ctx context.Context, sourceID string, chunks []*ragdoc.Chunk) error
	ReplaceFn func(ctx context.Context, sourceID string, chunks []*ragdoc.Chunk) error
	SearchFn  func(ctx context.Context, query string, opts ragdoc.SearchOptions) ([]ragdoc.SearchResult, error)
	DeleteFn  func(ctx context.Context, sourceID string) error
	StatsFn   func(ctx context.Context) (ragdoc.IndexStats, error)
}

func (i *ChunkIndex) Upsert(ctx context.Context, sourceID string, chunks []*ragdoc.Chunk) error {
	return i.UpsertFn(ctx, sourceID, chunks)
}

func (i *ChunkIndex) Replace(ctx context.Context, sourceID string, chunks []*ragdoc.Chunk) error {
	return i.ReplaceFn(ctx, sourceID, chunks)
}

func (i *ChunkIndex) Search(ctx context.Context, query string, opts ragdoc.SearchOptions) ([]ragdoc.SearchResult, error) {
	return i.SearchFn(ctx, query, opts)
}

func (i *ChunkIndex) Delete(ctx context.Context, sourceID string) error {
	return i.DeleteFn(ctx, sourceID)
}

func (i *ChunkIndex) Stats(ctx context.Context) (ragdoc.IndexStats, error) {
	return i.StatsFn(ctx)
}

var _ ragdoc.Embedder = (*Embedder)(nil)

// Embedder is a mock implementation of ragdoc.Embedder.
type Embedder struct {
	EmbedFn     func(ctx context.Context, texts []string) ([][]float32, error)
	DimensionFn func() int
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return e.EmbedFn(ctx, texts)
}

func (e *Embedder) Dimension() int {
	return e.DimensionFn()
}

var _ ragdoc.VectorStore = (*VectorStore)(nil)

// VectorStore is a mock implementation of ragdoc.VectorStore.
type VectorStore struct {
	UpsertFn         func(ctx context.Context, chunks []*ragdoc.Chunk, vectors [][]float32) error
	ReplaceFn        func(ctx context.Context, sourceID string, chunks []*ragdoc.Chunk, vectors [][]float32) error
	QueryFn          func(ctx context.Context, vector []float32, k int, sourceID string) ([]ragdoc.Neighbor, error)
	DeleteBySourceFn func(ctx context.Context, sourceID string) error
	CountFn          func(ctx context.Context) (int, error)
}

func (s *VectorStore) Upsert(ctx context.Context, chunks []*ragdoc.Chunk, vectors [][]float32) error {
	return s.UpsertFn(ctx, chunks, vectors)
}

func (s *VectorStore) Replace(ctx context.Context, sourceID string, chunks []*ragdoc.Chunk, vectors [][]float32) error {
	return s.ReplaceFn(ctx, sourceID, chunks, vectors)
}

func (s *VectorStore) Query(ctx context.Context, vector []float32, k int, sourceID string) ([]ragdoc.Neighbor, error) {
	return s.QueryFn(ctx, vector, k, sourceID)
}

func (s *VectorStore) DeleteBySource(ctx context.Context, sourceID string) error {
	return s.DeleteBySourceFn(ctx, sourceID)
}

func (s *VectorStore) Count(ctx context.Context) (int, error) {
	return s.CountFn(ctx)
}
