package gemini

import (
	"context"
	"fmt"

	"github.com/fwojciec/ragdoc"
	"google.golang.org/genai"
)

const (
	// DefaultEmbeddingModel is the embedding model used when none is
	// configured.
	DefaultEmbeddingModel = "gemini-embedding-001"

	// DefaultDimension is the requested embedding length.
	DefaultDimension = 768

	// maxBatch is the most texts the API accepts per request.
	maxBatch = 100
)

var _ ragdoc.Embedder = (*Embedder)(nil)

// Embedder implements ragdoc.Embedder using Gemini embeddings.
type Embedder struct {
	client *genai.Client
	model  string
	dim    int
}

// NewEmbedder creates an Embedder. Zero values select the defaults.
func NewEmbedder(client *genai.Client, model string, dim int) *Embedder {
	if model == "" {
		model = DefaultEmbeddingModel
	}
	if dim <= 0 {
		dim = DefaultDimension
	}
	return &Embedder{client: client, model: model, dim: dim}
}

// Dimension returns the embedding length.
func (e *Embedder) Dimension() int {
	return e.dim
}

// Embed returns one vector per text, in input order.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	dim := int32(e.dim)
	config := &genai.EmbedContentConfig{OutputDimensionality: &dim}

	vectors := make([][]float32, 0, len(texts))
	for lo := 0; lo < len(texts); lo += maxBatch {
		batch := texts[lo:min(lo+maxBatch, len(texts))]
		contents := make([]*genai.Content, len(batch))
		for i, text := range batch {
			contents[i] = genai.NewContentFromText(text, genai.RoleUser)
		}

		res, err := e.client.Models.EmbedContent(ctx, e.model, contents, config)
		if err != nil {
			return nil, fmt.Errorf("failed to embed texts: %w", err)
		}
		if len(res.Embeddings) != len(batch) {
			return nil, fmt.Errorf("embedding count mismatch: got %d, expected %d", len(res.Embeddings), len(batch))
		}
		for _, emb := range res.Embeddings {
			vectors = append(vectors, emb.Values)
		}
	}
	return vectors, nil
}
