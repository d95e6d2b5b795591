package ragdoc

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"
)

// Chunk is a bounded slice of section text prepared for embedding and
// retrieval.
type Chunk struct {
	ID       string        `json:"id"`
	SourceID string        `json:"sourceId"`
	Content  string        `json:"content"`
	Metadata ChunkMetadata `json:"metadata"`
}

// ChunkMetadata carries the section context a chunk came from.
type ChunkMetadata struct {
	Title string `json:"title"`

	// SectionID is the section's ID in the page it was chunked from. For
	// built pages that is its 1-based position in document order.
	SectionID   int64     `json:"sectionId"`
	Level       int       `json:"level"`
	Path        string    `json:"path"`
	URL         string    `json:"url"`
	ChunkIndex  int       `json:"chunkIndex"`
	TotalChunks int       `json:"totalChunks"`
	TokenCount  int       `json:"tokenCount"`
	SourceID    string    `json:"sourceId,omitempty"`
	IndexedAt   time.Time `json:"indexedAt"`
}

// Metadata keys used by Map and ParseChunkMetadata.
const (
	MetaTitle       = "title"
	MetaSectionID   = "section_id"
	MetaLevel       = "level"
	MetaPath        = "path"
	MetaURL         = "url"
	MetaChunkIndex  = "chunk_index"
	MetaTotalChunks = "total_chunks"
	MetaTokenCount  = "token_count"
	MetaSourceID    = "source_id"
	MetaIndexedAt   = "indexed_at"
)

// Map returns the metadata as a map of stringified primitives, the form
// vector backends store.
func (m ChunkMetadata) Map() map[string]string {
	out := map[string]string{
		MetaTitle:       m.Title,
		MetaSectionID:   strconv.FormatInt(m.SectionID, 10),
		MetaLevel:       strconv.Itoa(m.Level),
		MetaPath:        m.Path,
		MetaURL:         m.URL,
		MetaChunkIndex:  strconv.Itoa(m.ChunkIndex),
		MetaTotalChunks: strconv.Itoa(m.TotalChunks),
		MetaTokenCount:  strconv.Itoa(m.TokenCount),
		MetaSourceID:    m.SourceID,
	}
	if !m.IndexedAt.IsZero() {
		out[MetaIndexedAt] = m.IndexedAt.UTC().Format(time.RFC3339)
	}
	return out
}

// ParseChunkMetadata reverses Map. Missing keys leave zero values.
func ParseChunkMetadata(m map[string]string) (ChunkMetadata, error) {
	md := ChunkMetadata{
		Title:    m[MetaTitle],
		Path:     m[MetaPath],
		URL:      m[MetaURL],
		SourceID: m[MetaSourceID],
	}

	var err error
	if v := m[MetaSectionID]; v != "" {
		if md.SectionID, err = strconv.ParseInt(v, 10, 64); err != nil {
			return md, fmt.Errorf("failed to parse %s: %w", MetaSectionID, err)
		}
	}
	for key, dst := range map[string]*int{
		MetaLevel:       &md.Level,
		MetaChunkIndex:  &md.ChunkIndex,
		MetaTotalChunks: &md.TotalChunks,
		MetaTokenCount:  &md.TokenCount,
	} {
		v := m[key]
		if v == "" {
			continue
		}
		if *dst, err = strconv.Atoi(v); err != nil {
			return md, fmt.Errorf("failed to parse %s: %w", key, err)
		}
	}
	if v := m[MetaIndexedAt]; v != "" {
		if md.IndexedAt, err = time.Parse(time.RFC3339, v); err != nil {
			return md, fmt.Errorf("failed to parse %s: %w", MetaIndexedAt, err)
		}
	}
	return md, nil
}

// ChunkID returns the stable identity of the chunk at ordinal within a
// source's chunk list.
func ChunkID(sourceID string, ordinal int) string {
	return fmt.Sprintf("%s_%d", sourceID, ordinal)
}

// ChunkOptions controls chunk sizing, in estimated tokens.
type ChunkOptions struct {
	MaxTokens     int `yaml:"max_tokens"`
	OverlapTokens int `yaml:"overlap_tokens"`
}

// DefaultChunkOptions returns the standard chunk sizing.
func DefaultChunkOptions() ChunkOptions {
	return ChunkOptions{MaxTokens: DefaultMaxTokens, OverlapTokens: DefaultOverlapTokens}
}

// ChunkSections converts a page's sections into chunks. Sections are
// visited in path order and empty sections are skipped. Each chunk text
// is prefixed with its section path so it stays meaningful out of context.
func ChunkSections(sourceID, pageURL string, sections []*Section, opts ChunkOptions) []*Chunk {
	ordered := make([]*Section, len(sections))
	copy(ordered, sections)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Path < ordered[j].Path })

	var chunks []*Chunk
	for _, s := range ordered {
		if NormalizeSpace(s.Content) == "" {
			continue
		}

		path := s.Path
		if path == "" {
			path = s.Title
		}
		url := pageURL
		if s.Fragment != "" {
			url += "#" + s.Fragment
		}

		parts := SplitText(s.Content, opts.MaxTokens, opts.OverlapTokens)
		for i, part := range parts {
			content := path + "\n\n" + part
			chunks = append(chunks, &Chunk{
				ID:       ChunkID(sourceID, len(chunks)),
				SourceID: sourceID,
				Content:  content,
				Metadata: ChunkMetadata{
					Title:       s.Title,
					SectionID:   s.ID,
					Level:       s.Level,
					Path:        path,
					URL:         url,
					ChunkIndex:  i,
					TotalChunks: len(parts),
					TokenCount:  EstimateTokens(content),
					SourceID:    sourceID,
				},
			})
		}
	}
	return chunks
}

// ChunkIndex stores chunks for semantic retrieval, scoped by source.
type ChunkIndex interface {
	// Upsert inserts or replaces chunks by ID. Empty input is a no-op.
	// Returns EINDEX on backend failure.
	Upsert(ctx context.Context, sourceID string, chunks []*Chunk) error

	// Replace makes chunks the source's complete set. Every chunk is
	// embedded before anything is written, and the swap is atomic, so on
	// failure the previous chunks stay searchable. Returns EINDEX on
	// failure.
	Replace(ctx context.Context, sourceID string, chunks []*Chunk) error

	// Search returns chunks ordered by descending relevance.
	// Returns EINDEX on backend failure.
	Search(ctx context.Context, query string, opts SearchOptions) ([]SearchResult, error)

	// Delete removes every chunk belonging to the source.
	Delete(ctx context.Context, sourceID string) error

	// Stats reports the size of the index.
	Stats(ctx context.Context) (IndexStats, error)
}

// SearchOptions configures a search.
type SearchOptions struct {
	// SourceID restricts results to one source when set.
	SourceID string `json:"sourceId,omitempty"`

	// Limit is the maximum number of results.
	Limit int `json:"limit,omitempty"`

	// MinRelevance drops results scoring below it.
	MinRelevance float64 `json:"minRelevance,omitempty"`
}

// SearchResult is a chunk with its relevance in [0,1].
type SearchResult struct {
	Chunk     *Chunk  `json:"chunk"`
	Relevance float64 `json:"relevance"`
}

// IndexStats summarizes an index.
type IndexStats struct {
	ChunkCount int `json:"chunkCount"`
	Dimensions int `json:"dimensions"`
}

// Embedder converts texts to dense vectors.
type Embedder interface {
	// Embed returns one vector per input text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension is the length of every returned vector.
	Dimension() int
}

// Neighbor is a stored chunk and its distance from a query vector.
type Neighbor struct {
	Chunk    *Chunk
	Distance float64
}

// VectorStore persists chunk vectors and answers nearest-neighbor queries.
// Distances are cosine distances in [0,2].
type VectorStore interface {
	Upsert(ctx context.Context, chunks []*Chunk, vectors [][]float32) error
	// Replace deletes the source's chunks and stores the given ones in one
	// transaction.
	Replace(ctx context.Context, sourceID string, chunks []*Chunk, vectors [][]float32) error
	Query(ctx context.Context, vector []float32, k int, sourceID string) ([]Neighbor, error)
	DeleteBySource(ctx context.Context, sourceID string) error
	Count(ctx context.Context) (int, error)
}
