package rag_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/fwojciec/ragdoc"
	"github.com/fwojciec/ragdoc/mock"
	"github.com/fwojciec/ragdoc/rag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func result(title, content string, relevance float64) ragdoc.SearchResult {
	return ragdoc.SearchResult{
		Chunk: &ragdoc.Chunk{
			ID:      title,
			Content: content,
			Metadata: ragdoc.ChunkMetadata{
				Title: title,
				Path:  "Guide > " + title,
				URL:   "https://docs.example.com/guide#" + strings.ToLower(title),
			},
		},
		Relevance: relevance,
	}
}

func fixedIndex(results ...ragdoc.SearchResult) *mock.ChunkIndex {
	return &mock.ChunkIndex{
		SearchFn: func(context.Context, string, ragdoc.SearchOptions) ([]ragdoc.SearchResult, error) {
			return results, nil
		},
	}
}

// recordingGenerator captures the messages of every call and answers with
// the given text.
type recordingGenerator struct {
	calls [][]ragdoc.Message
	text  string
}

func (g *recordingGenerator) generator() *mock.Generator {
	return &mock.Generator{
		GenerateFn: func(_ context.Context, messages []ragdoc.Message) (string, error) {
			g.calls = append(g.calls, messages)
			return g.text, nil
		},
	}
}

func (g *recordingGenerator) last() string {
	msgs := g.calls[len(g.calls)-1]
	return msgs[len(msgs)-1].Content
}

func TestSession_Ask(t *testing.T) {
	t.Parallel()

	t.Run("grounds the answer on retrieved chunks", func(t *testing.T) {
		t.Parallel()

		gen := &recordingGenerator{text: "Set it in the console [Timeouts]."}
		index := fixedIndex(result("Timeouts", "The default timeout is 3 seconds.", 0.8), result("Memory", "Memory ranges up to 10 GB.", 0.6))
		s := rag.NewSession(index, gen.generator())

		answer, err := s.Ask(context.Background(), "What is the default timeout?", ragdoc.AskOptions{})
		require.NoError(t, err)

		require.NoError(t, answer.Err)
		assert.Equal(t, "Set it in the console [Timeouts](https://docs.example.com/guide#timeouts).", answer.Text)
		assert.InDelta(t, 0.7, answer.Confidence, 1e-9)
		require.Len(t, answer.Sources, 2)
		assert.False(t, answer.Sources[0].Seen)
		assert.Equal(t, "Guide > Timeouts", answer.Sources[0].Path)

		require.Len(t, gen.calls, 1)
		msgs := gen.calls[0]
		require.Len(t, msgs, 2)
		assert.Equal(t, ragdoc.RoleSystem, msgs[0].Role)
		assert.Equal(t, rag.DefaultSystemPrompt, msgs[0].Content)
		assert.Equal(t, ragdoc.RoleUser, msgs[1].Role)
		assert.Contains(t, msgs[1].Content, "[Timeouts]\nThe default timeout is 3 seconds.\n\n[Memory]\nMemory ranges up to 10 GB.")
		assert.Contains(t, msgs[1].Content, "What is the default timeout?")
	})

	t.Run("passes retrieval options to the index", func(t *testing.T) {
		t.Parallel()

		var got ragdoc.SearchOptions
		index := &mock.ChunkIndex{
			SearchFn: func(_ context.Context, _ string, opts ragdoc.SearchOptions) ([]ragdoc.SearchResult, error) {
				got = opts
				return nil, nil
			},
		}
		s := rag.NewSession(index, &mock.Generator{}, rag.WithDefaults(ragdoc.AskOptions{MinRelevance: 0.4, MaxChunks: 8}))

		_, err := s.Ask(context.Background(), "q", ragdoc.AskOptions{SourceID: "src"})
		require.NoError(t, err)

		assert.Equal(t, ragdoc.SearchOptions{SourceID: "src", Limit: 8, MinRelevance: 0.4}, got)
	})

	t.Run("answers with insufficient context when nothing is retrieved", func(t *testing.T) {
		t.Parallel()

		s := rag.NewSession(fixedIndex(), &mock.Generator{})

		answer, err := s.Ask(context.Background(), "Unrelated?", ragdoc.AskOptions{})
		require.NoError(t, err)

		assert.Equal(t, rag.InsufficientContextAnswer, answer.Text)
		assert.Zero(t, answer.Confidence)
		assert.Empty(t, answer.Sources)
		assert.NoError(t, answer.Err)
		assert.Len(t, s.Turns(), 2, "the turn is still recorded")
	})

	t.Run("excludes chunks shown earlier from grounding but lists them", func(t *testing.T) {
		t.Parallel()

		gen := &recordingGenerator{text: "ok"}
		index := fixedIndex(result("Timeouts", "The default timeout is 3 seconds.", 0.9))
		s := rag.NewSession(index, gen.generator())
		ctx := context.Background()

		first, err := s.Ask(ctx, "What is the timeout?", ragdoc.AskOptions{})
		require.NoError(t, err)
		require.False(t, first.Sources[0].Seen)

		second, err := s.Ask(ctx, "What is the timeout again?", ragdoc.AskOptions{})
		require.NoError(t, err)

		require.Len(t, second.Sources, 1)
		assert.True(t, second.Sources[0].Seen)
		assert.InDelta(t, 0.9, second.Confidence, 1e-9)
		assert.NotContains(t, gen.last(), "The default timeout is 3 seconds.")
		assert.Contains(t, gen.last(), "supplied earlier")

		// The first exchange is replayed with its original excerpts.
		msgs := gen.calls[1]
		require.Len(t, msgs, 4)
		assert.Contains(t, msgs[1].Content, "The default timeout is 3 seconds.")
		assert.Equal(t, ragdoc.RoleAssistant, msgs[2].Role)
	})

	t.Run("records only new chunk hashes on the assistant turn", func(t *testing.T) {
		t.Parallel()

		gen := &recordingGenerator{text: "ok"}
		a := result("A", "alpha", 0.9)
		b := result("B", "beta", 0.7)
		calls := 0
		index := &mock.ChunkIndex{
			SearchFn: func(context.Context, string, ragdoc.SearchOptions) ([]ragdoc.SearchResult, error) {
				calls++
				if calls == 1 {
					return []ragdoc.SearchResult{a}, nil
				}
				return []ragdoc.SearchResult{a, b}, nil
			},
		}
		s := rag.NewSession(index, gen.generator())
		ctx := context.Background()

		_, err := s.Ask(ctx, "first", ragdoc.AskOptions{})
		require.NoError(t, err)
		answer, err := s.Ask(ctx, "second", ragdoc.AskOptions{})
		require.NoError(t, err)

		turns := s.Turns()
		require.Len(t, turns, 4)
		assert.Equal(t, []string{rag.ContentHash(b.Chunk)}, turns[3].ChunkHashes)
		assert.True(t, answer.Sources[0].Seen)
		assert.False(t, answer.Sources[1].Seen)
		assert.Contains(t, gen.last(), "[B]\nbeta")
		assert.NotContains(t, gen.last(), "[A]\nalpha")
	})

	t.Run("returns an apology when generation fails", func(t *testing.T) {
		t.Parallel()

		gen := &mock.Generator{
			GenerateFn: func(context.Context, []ragdoc.Message) (string, error) {
				return "", errors.New("upstream unavailable")
			},
		}
		s := rag.NewSession(fixedIndex(result("A", "alpha", 0.9)), gen)

		answer, err := s.Ask(context.Background(), "q", ragdoc.AskOptions{})
		require.NoError(t, err)

		assert.Equal(t, rag.ErrorAnswer, answer.Text)
		assert.Zero(t, answer.Confidence)
		assert.Equal(t, ragdoc.EGENERATION, ragdoc.ErrorCode(answer.Err))
		turns := s.Turns()
		require.Len(t, turns, 2)
		assert.Equal(t, rag.ErrorAnswer, turns[1].Content)
		assert.Empty(t, turns[1].ChunkHashes)
	})

	t.Run("does not mark chunks as seen after a failed generation", func(t *testing.T) {
		t.Parallel()

		fail := true
		gen := &mock.Generator{
			GenerateFn: func(context.Context, []ragdoc.Message) (string, error) {
				if fail {
					return "", errors.New("boom")
				}
				return "ok", nil
			},
		}
		s := rag.NewSession(fixedIndex(result("A", "alpha", 0.9)), gen)
		ctx := context.Background()

		_, err := s.Ask(ctx, "q", ragdoc.AskOptions{})
		require.NoError(t, err)
		fail = false
		answer, err := s.Ask(ctx, "q", ragdoc.AskOptions{})
		require.NoError(t, err)

		assert.False(t, answer.Sources[0].Seen)
	})

	t.Run("times out slow generation", func(t *testing.T) {
		t.Parallel()

		gen := &mock.Generator{
			GenerateFn: func(ctx context.Context, _ []ragdoc.Message) (string, error) {
				<-ctx.Done()
				return "", ctx.Err()
			},
		}
		s := rag.NewSession(fixedIndex(result("A", "alpha", 0.9)), gen, rag.WithTimeout(10*time.Millisecond))

		answer, err := s.Ask(context.Background(), "q", ragdoc.AskOptions{})
		require.NoError(t, err)

		assert.Equal(t, ragdoc.EGENERATION, ragdoc.ErrorCode(answer.Err))
		assert.Contains(t, ragdoc.ErrorMessage(answer.Err), "timed out")
	})

	t.Run("returns an apology when retrieval fails", func(t *testing.T) {
		t.Parallel()

		index := &mock.ChunkIndex{
			SearchFn: func(context.Context, string, ragdoc.SearchOptions) ([]ragdoc.SearchResult, error) {
				return nil, ragdoc.Errorf(ragdoc.EINDEX, "store offline")
			},
		}
		s := rag.NewSession(index, &mock.Generator{})

		answer, err := s.Ask(context.Background(), "q", ragdoc.AskOptions{})
		require.NoError(t, err)

		assert.Equal(t, rag.ErrorAnswer, answer.Text)
		assert.Equal(t, ragdoc.EINDEX, ragdoc.ErrorCode(answer.Err))
		assert.Equal(t, rag.StateIdle, s.State())
	})

	t.Run("rejects empty questions", func(t *testing.T) {
		t.Parallel()

		s := rag.NewSession(&mock.ChunkIndex{}, &mock.Generator{})

		_, err := s.Ask(context.Background(), "   ", ragdoc.AskOptions{})

		assert.Equal(t, ragdoc.EINVALID, ragdoc.ErrorCode(err))
		assert.Empty(t, s.Turns())
	})

	t.Run("is generating while the model runs", func(t *testing.T) {
		t.Parallel()

		var s *rag.Session
		var during rag.State
		gen := &mock.Generator{
			GenerateFn: func(context.Context, []ragdoc.Message) (string, error) {
				during = s.State()
				return "ok", nil
			},
		}
		s = rag.NewSession(fixedIndex(result("A", "alpha", 0.9)), gen)

		_, err := s.Ask(context.Background(), "q", ragdoc.AskOptions{})
		require.NoError(t, err)

		assert.Equal(t, rag.StateGenerating, during)
		assert.Equal(t, rag.StateIdle, s.State())
	})
}

func TestSession_History(t *testing.T) {
	t.Parallel()

	t.Run("keeps the most recent turns", func(t *testing.T) {
		t.Parallel()

		gen := &recordingGenerator{text: "ok"}
		s := rag.NewSession(fixedIndex(result("A", "alpha", 0.9)), gen.generator(), rag.WithMaxTurns(2))
		ctx := context.Background()

		for _, q := range []string{"q1", "q2", "q3"} {
			_, err := s.Ask(ctx, q, ragdoc.AskOptions{})
			require.NoError(t, err)
		}

		turns := s.Turns()
		require.Len(t, turns, 4)
		assert.Equal(t, "q2", turns[0].Content)
		assert.Equal(t, "q3", turns[2].Content)

		_, err := s.Ask(ctx, "q4", ragdoc.AskOptions{})
		require.NoError(t, err)
		msgs := gen.calls[len(gen.calls)-1]
		assert.Equal(t, ragdoc.RoleSystem, msgs[0].Role)
		assert.Len(t, msgs, 6)
	})

	t.Run("pruning keeps chunks marked as seen", func(t *testing.T) {
		t.Parallel()

		gen := &recordingGenerator{text: "ok"}
		s := rag.NewSession(fixedIndex(result("A", "alpha", 0.9)), gen.generator(), rag.WithMaxTurns(1))
		ctx := context.Background()

		for i := 0; i < 3; i++ {
			_, err := s.Ask(ctx, "q", ragdoc.AskOptions{})
			require.NoError(t, err)
		}
		answer, err := s.Ask(ctx, "q", ragdoc.AskOptions{})
		require.NoError(t, err)

		assert.True(t, answer.Sources[0].Seen)
	})

	t.Run("clearing history resets seen annotations", func(t *testing.T) {
		t.Parallel()

		gen := &recordingGenerator{text: "ok"}
		s := rag.NewSession(fixedIndex(result("A", "alpha", 0.9)), gen.generator())
		ctx := context.Background()

		_, err := s.Ask(ctx, "q", ragdoc.AskOptions{})
		require.NoError(t, err)

		s.ClearHistory()

		assert.Empty(t, s.Turns())
		answer, err := s.Ask(ctx, "q", ragdoc.AskOptions{})
		require.NoError(t, err)
		assert.False(t, answer.Sources[0].Seen)
		assert.Contains(t, gen.last(), "[A]\nalpha")
		assert.Len(t, gen.calls[len(gen.calls)-1], 2)
	})
}

func TestSession_Recorder(t *testing.T) {
	t.Parallel()

	t.Run("persists both turns of an exchange", func(t *testing.T) {
		t.Parallel()

		var recorded []*ragdoc.Turn
		svc := &mock.ConversationService{
			AppendTurnFn: func(_ context.Context, id string, turn *ragdoc.Turn) error {
				assert.Equal(t, "conv-1", id)
				recorded = append(recorded, turn)
				return nil
			},
		}
		gen := &recordingGenerator{text: "ok"}
		s := rag.NewSession(fixedIndex(result("A", "alpha", 0.9)), gen.generator(),
			rag.WithRecorder(&rag.ConversationRecorder{Service: svc, ConversationID: "conv-1"}))

		_, err := s.Ask(context.Background(), "q", ragdoc.AskOptions{})
		require.NoError(t, err)

		require.Len(t, recorded, 2)
		assert.Equal(t, ragdoc.RoleUser, recorded[0].Role)
		assert.Contains(t, recorded[0].Context, "[A]\nalpha")
		assert.Equal(t, ragdoc.RoleAssistant, recorded[1].Role)
		assert.Len(t, recorded[1].ChunkHashes, 1)
	})

	t.Run("reports persistence failures with the answer", func(t *testing.T) {
		t.Parallel()

		svc := &mock.ConversationService{
			AppendTurnFn: func(context.Context, string, *ragdoc.Turn) error {
				return errors.New("disk full")
			},
		}
		gen := &recordingGenerator{text: "ok"}
		s := rag.NewSession(fixedIndex(result("A", "alpha", 0.9)), gen.generator(),
			rag.WithRecorder(&rag.ConversationRecorder{Service: svc, ConversationID: "c"}))

		answer, err := s.Ask(context.Background(), "q", ragdoc.AskOptions{})

		require.Error(t, err)
		require.NotNil(t, answer)
		assert.Equal(t, "ok", answer.Text)
	})
}

func TestContentHash(t *testing.T) {
	t.Parallel()

	t.Run("depends on content and metadata", func(t *testing.T) {
		t.Parallel()

		a := result("A", "alpha", 0.9).Chunk
		same := result("A", "alpha", 0.1).Chunk
		otherURL := result("A", "alpha", 0.9).Chunk
		otherURL.Metadata.URL = "https://elsewhere"
		otherContent := result("A", "beta", 0.9).Chunk

		assert.Equal(t, rag.ContentHash(a), rag.ContentHash(same))
		assert.NotEqual(t, rag.ContentHash(a), rag.ContentHash(otherURL))
		assert.NotEqual(t, rag.ContentHash(a), rag.ContentHash(otherContent))
		assert.Len(t, rag.ContentHash(a), 16)
	})
}
