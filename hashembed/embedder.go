// Package hashembed provides an offline ragdoc.Embedder based on feature
// hashing. It needs no model or network access, which makes it suitable
// for tests and for indexing without an API key. Similarity reflects
// shared vocabulary rather than meaning.
package hashembed

import (
	"context"
	"math"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
	"github.com/fwojciec/ragdoc"
)

var _ ragdoc.Embedder = (*Embedder)(nil)

// DefaultDimension is the vector length used when none is configured.
const DefaultDimension = 512

// Embedder hashes word unigrams and bigrams into a fixed number of signed
// buckets and L2-normalizes the result.
type Embedder struct {
	dim int
}

// NewEmbedder creates an Embedder producing vectors of length dim.
// Non-positive values select DefaultDimension.
func NewEmbedder(dim int) *Embedder {
	if dim <= 0 {
		dim = DefaultDimension
	}
	return &Embedder{dim: dim}
}

// Dimension returns the vector length.
func (e *Embedder) Dimension() int {
	return e.dim
}

// Embed returns one vector per text. Texts without words map to the zero
// vector.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vectors[i] = e.vector(text)
	}
	return vectors, nil
}

func (e *Embedder) vector(text string) []float32 {
	v := make([]float32, e.dim)
	words := tokenize(text)
	for i, w := range words {
		e.add(v, w, 1)
		if i > 0 {
			e.add(v, words[i-1]+" "+w, 0.5)
		}
	}

	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		return v
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range v {
		v[i] *= scale
	}
	return v
}

// add accumulates a feature into its bucket. The top hash bit picks the
// sign so that collisions cancel out on average.
func (e *Embedder) add(v []float32, feature string, weight float32) {
	h := xxhash.Sum64String(feature)
	if h>>63 == 1 {
		weight = -weight
	}
	v[h%uint64(e.dim)] += weight
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
