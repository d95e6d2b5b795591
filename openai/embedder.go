package openai

import (
	"context"

	"github.com/fwojciec/ragdoc"
	openai "github.com/sashabaranov/go-openai"
)

// Embedding defaults.
const (
	DefaultEmbeddingModel = "text-embedding-3-small"
	DefaultDimension      = 1536
)

var _ ragdoc.Embedder = (*Embedder)(nil)

// Embedder implements ragdoc.Embedder using the embeddings endpoint.
type Embedder struct {
	client *openai.Client
	model  string
	dim    int
}

// NewEmbedder creates an Embedder. An empty model selects
// DefaultEmbeddingModel and a non-positive dim selects DefaultDimension.
func NewEmbedder(client *openai.Client, model string, dim int) *Embedder {
	if model == "" {
		model = DefaultEmbeddingModel
	}
	if dim <= 0 {
		dim = DefaultDimension
	}
	return &Embedder{client: client, model: model, dim: dim}
}

// Dimension returns the length of every returned vector.
func (e *Embedder) Dimension() int {
	return e.dim
}

// Embed returns one vector per text, in input order.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model:      openai.EmbeddingModel(e.model),
		Input:      texts,
		Dimensions: e.dim,
	})
	if err != nil {
		return nil, ragdoc.Errorf(ragdoc.EINDEX, "embedding request failed: %v", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, ragdoc.Errorf(ragdoc.EINDEX, "expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, ragdoc.Errorf(ragdoc.EINDEX, "embedding index %d out of range", d.Index)
		}
		v := make([]float32, len(d.Embedding))
		for i := range d.Embedding {
			v[i] = float32(d.Embedding[i])
		}
		vectors[d.Index] = v
	}
	return vectors, nil
}
