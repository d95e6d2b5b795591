//go:build integration

package gemini_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/fwojciec/ragdoc"
	"github.com/fwojciec/ragdoc/gemini"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func newClient(t *testing.T) *genai.Client {
	t.Helper()
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		t.Skip("GEMINI_API_KEY not set")
	}
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	require.NoError(t, err)
	return client
}

func TestGenerator_Integration_CitesExcerpts(t *testing.T) {
	t.Parallel()

	client := newClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	g := gemini.NewGenerator(client, "", gemini.DefaultTemperature)
	answer, err := g.Generate(ctx, []ragdoc.Message{
		{Role: ragdoc.RoleSystem, Content: "Answer only from the excerpts and cite them as [Title]."},
		{Role: ragdoc.RoleUser, Content: "[Timeouts]\nThe default function timeout is 3 seconds.\n\nQuestion: What is the default timeout?"},
	})

	require.NoError(t, err)
	assert.Contains(t, answer, "3")
}

func TestEmbedder_Integration_ReturnsVectors(t *testing.T) {
	t.Parallel()

	client := newClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	e := gemini.NewEmbedder(client, "", 256)
	vectors, err := e.Embed(ctx, []string{"function timeout", "memory size"})

	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Len(t, vectors[0], 256)
}
