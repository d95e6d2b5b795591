package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/fwojciec/ragdoc"
	"github.com/fwojciec/ragdoc/config"
	"github.com/fwojciec/ragdoc/gemini"
	"github.com/fwojciec/ragdoc/goquery"
	"github.com/fwojciec/ragdoc/hashembed"
	"github.com/fwojciec/ragdoc/htmltomarkdown"
	ragdochttp "github.com/fwojciec/ragdoc/http"
	"github.com/fwojciec/ragdoc/ingest"
	ragdocopenai "github.com/fwojciec/ragdoc/openai"
	"github.com/fwojciec/ragdoc/rod"
	ragslog "github.com/fwojciec/ragdoc/slog"
	"github.com/fwojciec/ragdoc/sqlite"
	"github.com/fwojciec/ragdoc/trafilatura"
	"github.com/fwojciec/ragdoc/vector"
	openai "github.com/sashabaranov/go-openai"
	"google.golang.org/genai"
)

func main() {
	ctx := context.Background()

	m := NewMain()

	if err := m.Run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// tokenizerModel is the model whose local tokenizer counts chunk tokens.
const tokenizerModel = "gemini-2.5-flash"

// Main represents the program.
type Main struct {
	// DBPath overrides the configured database path when set.
	DBPath string

	// Env looks up environment variables. Defaults to os.Getenv.
	Env config.Env

	// Stdin feeds the chat command.
	Stdin io.Reader

	// SQLite database used by SQLite service implementations.
	DB *sqlite.DB

	// Config is the loaded configuration, available after Run.
	Config *config.Config

	// Providers for end-to-end testing. When set they replace the
	// configured ones.
	Embedder  ragdoc.Embedder
	Generator ragdoc.Generator
	Fetcher   ragdoc.Fetcher

	genaiClient *genai.Client
}

// NewMain returns a new instance of Main with defaults.
func NewMain() *Main {
	return &Main{
		Env:   os.Getenv,
		Stdin: os.Stdin,
	}
}

// Close gracefully stops the program.
func (m *Main) Close() error {
	if m.DB != nil {
		return m.DB.Close()
	}
	return nil
}

// Run executes the CLI with the given arguments.
func (m *Main) Run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	deps := &Dependencies{
		Ctx:    ctx,
		Stdin:  m.Stdin,
		Stdout: stdout,
		Stderr: stderr,
	}

	cli := &CLI{}
	parser, err := kong.New(cli,
		kong.Name("ragdoc"),
		kong.Description("Index documentation pages and ask questions about them."),
		kong.Writers(stdout, stderr),
		kong.Exit(func(int) {}),
		kong.Bind(deps),
	)
	if err != nil {
		return fmt.Errorf("failed to create parser: %w", err)
	}

	if len(args) == 0 {
		_, _ = parser.Parse([]string{"--help"})
		return fmt.Errorf("no command specified. Run 'ragdoc --help' to see available commands")
	}
	if args[0] == "help" || args[0] == "--help" || args[0] == "-h" {
		_, _ = parser.Parse([]string{"--help"})
		return nil
	}

	kongCtx, err := parser.Parse(args)
	if err != nil {
		return err
	}
	cmd := strings.Fields(kongCtx.Command())[0]

	env, err := config.DotEnv(".env", m.Env)
	if err != nil {
		return err
	}
	cfg, err := config.Load(cli.Config, env)
	if err != nil {
		fmt.Fprintf(stderr, "Hint: Set RAGDOC_CONFIG or pass --config to use a different config file\n")
		return fmt.Errorf("failed to load config: %w", err)
	}
	if m.DBPath != "" {
		cfg.Storage.Path = m.DBPath
	}
	if cli.Index.Render {
		cfg.Fetch.Render = true
	}
	m.Config = cfg
	deps.Config = cfg

	level := slog.LevelWarn
	if cli.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	if dir := filepath.Dir(cfg.Storage.Path); cfg.Storage.Path != ":memory:" && dir != "." {
		_ = os.MkdirAll(dir, 0o755)
	}
	m.DB = sqlite.NewDB(cfg.Storage.Path)
	if err := m.DB.Open(); err != nil {
		fmt.Fprintf(stderr, "Hint: Set RAGDOC_DB to use a different database path\n")
		return fmt.Errorf("failed to open database at %q: %w", cfg.Storage.Path, err)
	}
	defer m.Close()

	deps.Sources = sqlite.NewSourceService(m.DB)
	deps.Sections = sqlite.NewSectionService(m.DB)
	deps.Conversations = sqlite.NewConversationService(m.DB)
	store := sqlite.NewVectorStore(m.DB)

	// Only commands that embed need a provider; the rest get an index
	// that can delete and count.
	var embedder ragdoc.Embedder
	if cmd == "index" || cmd == "ask" || cmd == "chat" {
		embedder, err = m.newEmbedder(ctx, cfg, stderr)
		if err != nil {
			return err
		}
	}
	deps.Index = ragslog.NewLoggingIndex(vector.NewIndex(store, embedder,
		vector.WithRankingPolicy(cfg.Retrieval.Ranking),
		vector.WithBatchSize(cfg.Embedding.BatchSize),
		vector.WithConcurrency(cfg.Embedding.Concurrency),
	), logger)

	sitemaps := ragslog.NewLoggingSitemapService(ragdochttp.NewSitemapService(nil), logger)

	switch cmd {
	case "add":
		deps.Ingester = &ingest.Ingester{Sources: deps.Sources, Sitemaps: sitemaps}

	case "index":
		fetcher, err := m.newFetcher(cfg, stderr)
		if err != nil {
			return err
		}
		defer fetcher.Close()

		deps.Ingester = &ingest.Ingester{
			Sources:  deps.Sources,
			Sections: deps.Sections,
			Index:    deps.Index,
			Fetcher:  ragslog.NewLoggingFetcher(fetcher, logger),
			Builder: goquery.NewSectionBuilder(
				goquery.WithThresholds(cfg.Warnings),
				goquery.WithFallback(trafilatura.NewExtractor()),
				goquery.WithConverter(htmltomarkdown.NewConverter()),
			),
			Sitemaps:     sitemaps,
			RateLimiter:  ingest.NewDomainLimiter(cfg.Fetch.RatePerSecond),
			Chunking:     cfg.Chunking,
			TokenCounter: m.newTokenCounter(cfg, logger),
			Concurrency:  cfg.Fetch.Concurrency,
		}

	case "ask", "chat":
		generator, err := m.newGenerator(ctx, cfg, stderr)
		if err != nil {
			return err
		}
		deps.Generator = ragslog.NewLoggingGenerator(generator, logger)
	}

	return kongCtx.Run(deps)
}

func (m *Main) newEmbedder(ctx context.Context, cfg *config.Config, stderr io.Writer) (ragdoc.Embedder, error) {
	if m.Embedder != nil {
		return m.Embedder, nil
	}
	switch cfg.Embedding.Provider {
	case config.ProviderHash:
		return hashembed.NewEmbedder(cfg.Embedding.Dimensions), nil
	case config.ProviderOpenAI:
		client, err := m.openaiClient(cfg, stderr)
		if err != nil {
			return nil, err
		}
		return ragdocopenai.NewEmbedder(client, cfg.Embedding.Model, cfg.Embedding.Dimensions), nil
	default:
		client, err := m.geminiClient(ctx, cfg, stderr)
		if err != nil {
			return nil, err
		}
		return gemini.NewEmbedder(client, cfg.Embedding.Model, cfg.Embedding.Dimensions), nil
	}
}

func (m *Main) newGenerator(ctx context.Context, cfg *config.Config, stderr io.Writer) (ragdoc.Generator, error) {
	if m.Generator != nil {
		return m.Generator, nil
	}
	switch cfg.Generation.Provider {
	case config.ProviderOpenAI:
		client, err := m.openaiClient(cfg, stderr)
		if err != nil {
			return nil, err
		}
		return ragdocopenai.NewGenerator(client, cfg.Generation.Model, cfg.Generation.Temperature), nil
	default:
		client, err := m.geminiClient(ctx, cfg, stderr)
		if err != nil {
			return nil, err
		}
		return gemini.NewGenerator(client, cfg.Generation.Model, cfg.Generation.Temperature), nil
	}
}

func (m *Main) newFetcher(cfg *config.Config, stderr io.Writer) (ragdoc.Fetcher, error) {
	if m.Fetcher != nil {
		return m.Fetcher, nil
	}
	if cfg.Fetch.Render {
		fetcher, err := rod.NewFetcher(rod.WithFetchTimeout(cfg.Fetch.Timeout))
		if err != nil {
			fmt.Fprintln(stderr, "Hint: Chrome or Chromium must be installed for --render")
			return nil, fmt.Errorf("failed to start browser: %w", err)
		}
		return fetcher, nil
	}
	opts := []ragdochttp.Option{ragdochttp.WithTimeout(cfg.Fetch.Timeout)}
	if cfg.Fetch.UserAgent != "" {
		opts = append(opts, ragdochttp.WithUserAgent(cfg.Fetch.UserAgent))
	}
	return ragdochttp.NewFetcher(opts...), nil
}

// newTokenCounter returns nil when the local tokenizer is unavailable;
// chunk estimates are reported instead.
func (m *Main) newTokenCounter(cfg *config.Config, logger *slog.Logger) ragdoc.TokenCounter {
	if cfg.Generation.Provider != config.ProviderGemini {
		return nil
	}
	tc, err := gemini.NewTokenCounter(tokenizerModel)
	if err != nil {
		logger.Warn("token counter unavailable, using estimates", "err", err)
		return nil
	}
	return tc
}

func (m *Main) geminiClient(ctx context.Context, cfg *config.Config, stderr io.Writer) (*genai.Client, error) {
	if m.genaiClient != nil {
		return m.genaiClient, nil
	}
	if cfg.GeminiAPIKey == "" {
		fmt.Fprintln(stderr, "GEMINI_API_KEY environment variable not set. Get an API key at https://aistudio.google.com/apikey")
		return nil, fmt.Errorf("GEMINI_API_KEY not set. Get a key at https://aistudio.google.com/apikey")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		fmt.Fprintln(stderr, "Hint: Check your GEMINI_API_KEY is valid")
		return nil, fmt.Errorf("failed to connect to Gemini API: %w", err)
	}
	m.genaiClient = client
	return client, nil
}

func (m *Main) openaiClient(cfg *config.Config, stderr io.Writer) (*openai.Client, error) {
	if cfg.OpenAIAPIKey == "" {
		fmt.Fprintln(stderr, "OPENAI_API_KEY environment variable not set")
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}
	return openai.NewClient(cfg.OpenAIAPIKey), nil
}
