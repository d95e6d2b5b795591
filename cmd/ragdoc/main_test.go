package main_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fwojciec/ragdoc"
	main "github.com/fwojciec/ragdoc/cmd/ragdoc"
	"github.com/fwojciec/ragdoc/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const lambdaPage = `<!DOCTYPE html>
<html><head><title>AWS Lambda</title></head>
<body><main>
<h1 id="welcome">What is AWS Lambda?</h1>
<p>Lambda runs your code without provisioning or managing servers.</p>
<h2 id="timeouts">Configuring timeouts</h2>
<p>The default function timeout is 3 seconds. You can raise the timeout to 900 seconds.</p>
<h2 id="memory">Memory and computing power</h2>
<p>Memory can be set between 128 MB and 10,240 MB.</p>
</main></body></html>`

type cliRun struct {
	t      *testing.T
	m      *main.Main
	config string
}

func newCLI(t *testing.T) *cliRun {
	t.Helper()
	dir := t.TempDir()
	cfg := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte(`
embedding:
  provider: hash
  dimensions: 256
generation:
  provider: openai
fetch:
  rate_per_second: 100
`), 0o600))

	m := main.NewMain()
	m.DBPath = filepath.Join(dir, "ragdoc.db")
	m.Env = func(string) string { return "" }
	m.Generator = &mock.Generator{
		GenerateFn: func(_ context.Context, messages []ragdoc.Message) (string, error) {
			return "The default is 3 seconds [Configuring timeouts].", nil
		},
	}
	return &cliRun{t: t, m: m, config: cfg}
}

func (c *cliRun) run(args ...string) (string, string, error) {
	c.t.Helper()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	err := c.m.Run(context.Background(), append([]string{"--config", c.config}, args...), stdout, stderr)
	return stdout.String(), stderr.String(), err
}

func TestMain_Run_EndToEnd(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/lambda/welcome.html" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(lambdaPage))
	}))
	defer srv.Close()
	pageURL := srv.URL + "/lambda/welcome.html"

	cli := newCLI(t)

	out, _, err := cli.run("add", pageURL)
	require.NoError(t, err)
	assert.Contains(t, out, "Added "+pageURL)

	out, _, err = cli.run("list")
	require.NoError(t, err)
	assert.Contains(t, out, pageURL+"  not indexed")

	out, stderr, err := cli.run("index")
	require.NoError(t, err, stderr)
	assert.Contains(t, out, "Indexing 1 sources")
	assert.Contains(t, out, "3 sections, 3 chunks")
	assert.Contains(t, out, "Indexed 1, unchanged 0, failed 0")

	out, _, err = cli.run("index", pageURL)
	require.NoError(t, err)
	assert.Contains(t, out, "unchanged")

	out, _, err = cli.run("sections", pageURL)
	require.NoError(t, err)
	assert.Contains(t, out, "AWS Lambda (3 sections)")
	assert.Contains(t, out, "  Configuring timeouts")
	assert.Contains(t, out, "#timeouts")

	out, _, err = cli.run("ask", "How do I configure the function timeout?")
	require.NoError(t, err)
	assert.Contains(t, out, "[Configuring timeouts]("+pageURL+"#timeouts)")
	assert.Contains(t, out, "Sources (confidence")

	out, _, err = cli.run("stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Sources:        1 (1 indexed)")
	assert.Contains(t, out, "Chunks:         3")
	assert.Contains(t, out, "Embedding:      hash (256 dimensions)")

	out, _, err = cli.run("delete", pageURL, "--force")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted "+pageURL)

	out, _, err = cli.run("stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Chunks:         0")
}

func TestMain_Run_Chat(t *testing.T) {
	t.Parallel()

	cli := newCLI(t)
	cli.m.Stdin = strings.NewReader("What is the timeout?\n/quit\n")

	out, stderr, err := cli.run("chat")

	require.NoError(t, err, stderr)
	assert.Contains(t, out, "I don't have enough context")
}

func TestMain_Run_MissingAPIKey(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfg := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("embedding:\n  provider: gemini\n"), 0o600))
	m := main.NewMain()
	m.DBPath = filepath.Join(dir, "ragdoc.db")
	m.Env = func(string) string { return "" }
	stderr := &bytes.Buffer{}

	err := m.Run(context.Background(), []string{"--config", cfg, "ask", "anything"}, &bytes.Buffer{}, stderr)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "GEMINI_API_KEY")
	assert.Contains(t, stderr.String(), "aistudio.google.com")
}
