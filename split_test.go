package ragdoc_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/fwojciec/ragdoc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sentences builds a period-delimited paragraph of roughly n characters
// made of distinct sentences.
func sentences(n int) string {
	var sb strings.Builder
	for i := 0; sb.Len() < n; i++ {
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "Sentence number %03d explains a detail.", i)
	}
	return sb.String()[:n]
}

// assertCovers checks that chunks appear in order in text, overlap or
// touch their predecessor, and together span the whole text.
func assertCovers(t *testing.T, text string, chunks []string) {
	t.Helper()

	require.NotEmpty(t, chunks)
	assert.True(t, strings.HasPrefix(text, chunks[0]), "first chunk must start the text")
	assert.True(t, strings.HasSuffix(text, chunks[len(chunks)-1]), "last chunk must end the text")

	prevStart, prevEnd := -1, 0
	for i, c := range chunks {
		idx := strings.Index(text[prevStart+1:], c)
		require.GreaterOrEqual(t, idx, 0, "chunk %d not found in order", i)
		start := prevStart + 1 + idx
		assert.LessOrEqual(t, start, prevEnd+1, "gap before chunk %d", i)
		prevStart, prevEnd = start, start+len(c)
	}
	assert.Equal(t, len(text), prevEnd)
}

func TestSplitText(t *testing.T) {
	t.Parallel()

	t.Run("returns text unchanged when it fits the budget", func(t *testing.T) {
		t.Parallel()

		chunks := ragdoc.SplitText("A short   section.\n", 100, 10)

		assert.Equal(t, []string{"A short section."}, chunks)
	})

	t.Run("returns nil for blank text", func(t *testing.T) {
		t.Parallel()

		assert.Nil(t, ragdoc.SplitText(" \n\t ", 100, 10))
	})

	t.Run("splits a long paragraph at sentence boundaries", func(t *testing.T) {
		t.Parallel()

		text := sentences(1500)

		chunks := ragdoc.SplitText(text, 125, 0)

		assert.GreaterOrEqual(t, len(chunks), 3)
		assert.LessOrEqual(t, len(chunks), 4)
		for _, c := range chunks[:len(chunks)-1] {
			assert.True(t, strings.HasSuffix(c, "."), "chunk %q should end a sentence", c)
		}
		assertCovers(t, text, chunks)
	})

	t.Run("overlaps consecutive chunks", func(t *testing.T) {
		t.Parallel()

		text := sentences(3000)

		chunks := ragdoc.SplitText(text, 100, 20)

		require.Greater(t, len(chunks), 1)
		assertCovers(t, text, chunks)
		first := strings.Index(text, chunks[1])
		assert.Less(t, first, len(chunks[0]), "second chunk should begin inside the first")
	})

	t.Run("keeps every chunk within one and a half times the budget", func(t *testing.T) {
		t.Parallel()

		for _, budget := range []int{8, 25, 64, 200} {
			text := sentences(5000)
			for _, c := range ragdoc.SplitText(text, budget, budget/5) {
				assert.LessOrEqual(t, float64(ragdoc.EstimateTokens(c)), 1.5*float64(budget))
			}
		}
	})

	t.Run("terminates on text without whitespace or periods", func(t *testing.T) {
		t.Parallel()

		text := strings.Repeat("x", 10000)

		chunks := ragdoc.SplitText(text, 50, 10)

		require.Len(t, chunks, 63)
		for _, c := range chunks {
			assert.LessOrEqual(t, len(c), 200)
			assert.Equal(t, strings.Repeat("x", len(c)), c)
		}
		assert.Len(t, chunks[len(chunks)-1], 80)
	})

	t.Run("terminates when overlap exceeds the budget", func(t *testing.T) {
		t.Parallel()

		text := sentences(2000)

		chunks := ragdoc.SplitText(text, 20, 100)

		assertCovers(t, text, chunks)
	})

	t.Run("is deterministic", func(t *testing.T) {
		t.Parallel()

		text := sentences(4000)

		assert.Equal(t, ragdoc.SplitText(text, 90, 15), ragdoc.SplitText(text, 90, 15))
	})

	t.Run("handles multibyte text", func(t *testing.T) {
		t.Parallel()

		text := strings.Repeat("Ünïcödé wörds hërë. ", 200)

		chunks := ragdoc.SplitText(text, 40, 5)

		require.Greater(t, len(chunks), 1)
		for _, c := range chunks {
			assert.True(t, strings.Contains(ragdoc.NormalizeSpace(text), c))
		}
	})
}
