package main_test

import (
	"bytes"
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/fwojciec/ragdoc"
	main "github.com/fwojciec/ragdoc/cmd/ragdoc"
	"github.com/fwojciec/ragdoc/config"
	"github.com/fwojciec/ragdoc/ingest"
	"github.com/fwojciec/ragdoc/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDeps() (*main.Dependencies, *bytes.Buffer, *bytes.Buffer) {
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	return &main.Dependencies{
		Ctx:    context.Background(),
		Stdout: stdout,
		Stderr: stderr,
		Config: config.Default(),
	}, stdout, stderr
}

// sourcesByURL serves FindSources from a fixed set keyed by URL.
func sourcesByURL(sources ...*ragdoc.Source) *mock.SourceService {
	return &mock.SourceService{
		FindSourcesFn: func(_ context.Context, f ragdoc.SourceFilter) ([]*ragdoc.Source, error) {
			if f.URL == nil {
				return sources, nil
			}
			for _, s := range sources {
				if s.URL == *f.URL {
					return []*ragdoc.Source{s}, nil
				}
			}
			return nil, nil
		},
	}
}

func TestListCmd_Run(t *testing.T) {
	t.Parallel()

	t.Run("lists sources with their index status", func(t *testing.T) {
		t.Parallel()

		deps, stdout, _ := newDeps()
		deps.Sources = sourcesByURL(
			&ragdoc.Source{ID: "s1", URL: "https://docs.aws.amazon.com/lambda/", Title: "What is AWS Lambda?", IndexedAt: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)},
			&ragdoc.Source{ID: "s2", URL: "https://go.dev/doc/effective_go"},
		)

		require.NoError(t, (&main.ListCmd{}).Run(deps))

		out := stdout.String()
		assert.Contains(t, out, "s1  https://docs.aws.amazon.com/lambda/  indexed ")
		assert.Contains(t, out, "What is AWS Lambda?")
		assert.Contains(t, out, "s2  https://go.dev/doc/effective_go  not indexed")
	})

	t.Run("suggests add when nothing is registered", func(t *testing.T) {
		t.Parallel()

		deps, stdout, _ := newDeps()
		deps.Sources = sourcesByURL()

		require.NoError(t, (&main.ListCmd{}).Run(deps))

		assert.Contains(t, stdout.String(), "ragdoc add")
	})
}

func TestAddCmd_Run(t *testing.T) {
	t.Parallel()

	t.Run("registers a single page", func(t *testing.T) {
		t.Parallel()

		deps, stdout, _ := newDeps()
		var created *ragdoc.Source
		deps.Sources = &mock.SourceService{
			CreateSourceFn: func(_ context.Context, s *ragdoc.Source) error {
				s.ID = "s1"
				created = s
				return nil
			},
		}

		err := (&main.AddCmd{URL: "https://x/docs", Description: "X docs"}).Run(deps)

		require.NoError(t, err)
		require.NotNil(t, created)
		assert.Equal(t, "X docs", created.Description)
		assert.Contains(t, stdout.String(), "Added https://x/docs (s1)")
	})

	t.Run("reports invalid URLs", func(t *testing.T) {
		t.Parallel()

		deps, _, stderr := newDeps()
		deps.Sources = &mock.SourceService{
			CreateSourceFn: func(_ context.Context, s *ragdoc.Source) error {
				return ragdoc.Errorf(ragdoc.EINVALID, "source URL must be an absolute http(s) URL")
			},
		}

		err := (&main.AddCmd{URL: "docs"}).Run(deps)

		assert.Equal(t, ragdoc.EINVALID, ragdoc.ErrorCode(err))
		assert.Contains(t, stderr.String(), "absolute http(s) URL")
	})

	t.Run("registers new sitemap pages and skips known ones", func(t *testing.T) {
		t.Parallel()

		deps, stdout, _ := newDeps()
		var gotFilter *ragdoc.URLFilter
		var created []string
		svc := sourcesByURL(&ragdoc.Source{ID: "s1", URL: "https://x/docs/a"})
		svc.CreateSourceFn = func(_ context.Context, s *ragdoc.Source) error {
			created = append(created, s.URL)
			return nil
		}
		deps.Sources = svc
		deps.Ingester = &ingest.Ingester{Sitemaps: &mock.SitemapService{
			DiscoverURLsFn: func(_ context.Context, _ string, f *ragdoc.URLFilter) ([]string, error) {
				gotFilter = f
				return []string{"https://x/docs/b", "https://x/docs/a", "https://x/docs/b#part"}, nil
			},
		}}

		err := (&main.AddCmd{URL: "https://x/docs", Sitemap: true, Filter: []string{`/docs/`}}).Run(deps)

		require.NoError(t, err)
		assert.Equal(t, []string{"https://x/docs/b"}, created)
		require.NotNil(t, gotFilter)
		assert.Len(t, gotFilter.Include, 1)
		assert.Contains(t, stdout.String(), "Added 1 sources from https://x/docs (1 already registered)")
	})

	t.Run("previews sitemap pages without registering", func(t *testing.T) {
		t.Parallel()

		deps, stdout, _ := newDeps()
		deps.Sources = &mock.SourceService{}
		deps.Ingester = &ingest.Ingester{Sitemaps: &mock.SitemapService{
			DiscoverURLsFn: func(context.Context, string, *ragdoc.URLFilter) ([]string, error) {
				return []string{"https://x/docs/a", "https://x/docs/b"}, nil
			},
		}}

		err := (&main.AddCmd{URL: "https://x/docs", Sitemap: true, Preview: true}).Run(deps)

		require.NoError(t, err)
		assert.Equal(t, "https://x/docs/a\nhttps://x/docs/b\n", stdout.String())
	})

	t.Run("rejects an invalid filter", func(t *testing.T) {
		t.Parallel()

		deps, _, stderr := newDeps()

		err := (&main.AddCmd{URL: "https://x", Sitemap: true, Filter: []string{"("}}).Run(deps)

		assert.Equal(t, ragdoc.EINVALID, ragdoc.ErrorCode(err))
		assert.Contains(t, stderr.String(), "invalid filter pattern")
	})

	t.Run("requires --sitemap for preview", func(t *testing.T) {
		t.Parallel()

		deps, _, _ := newDeps()

		err := (&main.AddCmd{URL: "https://x", Preview: true}).Run(deps)

		assert.Equal(t, ragdoc.EINVALID, ragdoc.ErrorCode(err))
	})
}

func TestDeleteCmd_Run(t *testing.T) {
	t.Parallel()

	t.Run("requires --force", func(t *testing.T) {
		t.Parallel()

		deps, _, stderr := newDeps()

		err := (&main.DeleteCmd{URL: "https://x"}).Run(deps)

		assert.Equal(t, ragdoc.EINVALID, ragdoc.ErrorCode(err))
		assert.Contains(t, stderr.String(), "--force")
	})

	t.Run("removes chunks before the source", func(t *testing.T) {
		t.Parallel()

		deps, stdout, _ := newDeps()
		var calls []string
		svc := sourcesByURL(&ragdoc.Source{ID: "s1", URL: "https://x/docs"})
		svc.DeleteSourceFn = func(_ context.Context, id string) error {
			calls = append(calls, "source:"+id)
			return nil
		}
		deps.Sources = svc
		deps.Index = &mock.ChunkIndex{
			DeleteFn: func(_ context.Context, id string) error {
				calls = append(calls, "chunks:"+id)
				return nil
			},
		}

		err := (&main.DeleteCmd{URL: "https://x/docs", Force: true}).Run(deps)

		require.NoError(t, err)
		assert.Equal(t, []string{"chunks:s1", "source:s1"}, calls)
		assert.Contains(t, stdout.String(), "Deleted https://x/docs")
	})

	t.Run("reports an unknown source", func(t *testing.T) {
		t.Parallel()

		deps, _, stderr := newDeps()
		deps.Sources = sourcesByURL()

		err := (&main.DeleteCmd{URL: "https://x/missing", Force: true}).Run(deps)

		assert.Equal(t, ragdoc.ENOTFOUND, ragdoc.ErrorCode(err))
		assert.Contains(t, stderr.String(), "ragdoc list")
	})
}

func TestSectionsCmd_Run(t *testing.T) {
	t.Parallel()

	lambda := &ragdoc.Source{ID: "s1", URL: "https://x/lambda", Title: "AWS Lambda"}

	t.Run("prints the tree indented by level", func(t *testing.T) {
		t.Parallel()

		deps, stdout, _ := newDeps()
		deps.Sources = sourcesByURL(lambda)
		deps.Sections = &mock.SectionService{
			FindSectionsFn: func(context.Context, string) ([]*ragdoc.Section, error) {
				return []*ragdoc.Section{
					{ID: 1, Title: "What is AWS Lambda?", Level: 1, Fragment: "welcome", Content: "Lambda runs code.", Path: "What is AWS Lambda?"},
					{ID: 2, ParentID: 1, Title: "Configuring timeouts", Level: 2, Content: "Default is 3 seconds.", Path: "What is AWS Lambda? > Configuring timeouts"},
				}, nil
			},
		}

		require.NoError(t, (&main.SectionsCmd{URL: lambda.URL}).Run(deps))

		lines := strings.Split(stdout.String(), "\n")
		assert.Equal(t, "AWS Lambda (2 sections)", lines[0])
		assert.Regexp(t, regexp.MustCompile(`^What is AWS Lambda\?  \(~\d+ tokens\)  #welcome$`), lines[2])
		assert.Regexp(t, regexp.MustCompile(`^  Configuring timeouts  \(~\d+ tokens\)$`), lines[3])
	})

	t.Run("prints content with --full", func(t *testing.T) {
		t.Parallel()

		deps, stdout, _ := newDeps()
		deps.Sources = sourcesByURL(lambda)
		deps.Sections = &mock.SectionService{
			FindSectionsFn: func(context.Context, string) ([]*ragdoc.Section, error) {
				return []*ragdoc.Section{{ID: 1, Title: "Intro", Level: 1, Content: "Body text.", Path: "Intro"}}, nil
			},
		}

		require.NoError(t, (&main.SectionsCmd{URL: lambda.URL, Full: true}).Run(deps))

		assert.Contains(t, stdout.String(), "## Intro\n\nBody text.")
	})

	t.Run("suggests indexing when no sections are stored", func(t *testing.T) {
		t.Parallel()

		deps, _, stderr := newDeps()
		deps.Sources = sourcesByURL(lambda)
		deps.Sections = &mock.SectionService{
			FindSectionsFn: func(context.Context, string) ([]*ragdoc.Section, error) { return nil, nil },
		}

		err := (&main.SectionsCmd{URL: lambda.URL}).Run(deps)

		assert.Equal(t, ragdoc.ENOTFOUND, ragdoc.ErrorCode(err))
		assert.Contains(t, stderr.String(), "ragdoc index https://x/lambda")
	})
}

func timeoutsIndex(gotOpts *ragdoc.SearchOptions) *mock.ChunkIndex {
	return &mock.ChunkIndex{
		SearchFn: func(_ context.Context, _ string, opts ragdoc.SearchOptions) ([]ragdoc.SearchResult, error) {
			if gotOpts != nil {
				*gotOpts = opts
			}
			return []ragdoc.SearchResult{{
				Chunk: &ragdoc.Chunk{
					ID:      "s1_0",
					Content: "Configuring timeouts\n\nThe default timeout is 3 seconds.",
					Metadata: ragdoc.ChunkMetadata{
						Title: "Configuring timeouts",
						Path:  "What is AWS Lambda? > Configuring timeouts",
						URL:   "https://x/lambda#timeouts",
					},
				},
				Relevance: 0.9,
			}}, nil
		},
	}
}

func TestAskCmd_Run(t *testing.T) {
	t.Parallel()

	t.Run("prints the answer with linked citations and sources", func(t *testing.T) {
		t.Parallel()

		deps, stdout, _ := newDeps()
		var opts ragdoc.SearchOptions
		deps.Sources = sourcesByURL(&ragdoc.Source{ID: "s1", URL: "https://x/lambda"})
		deps.Index = timeoutsIndex(&opts)
		deps.Generator = &mock.Generator{
			GenerateFn: func(context.Context, []ragdoc.Message) (string, error) {
				return "It is 3 seconds [Configuring timeouts].", nil
			},
		}

		err := (&main.AskCmd{Question: "What is the default timeout?", Source: "https://x/lambda", MaxChunks: 3}).Run(deps)

		require.NoError(t, err)
		out := stdout.String()
		assert.Contains(t, out, "It is 3 seconds [Configuring timeouts](https://x/lambda#timeouts).")
		assert.Contains(t, out, "Sources (confidence 0.90):")
		assert.Contains(t, out, "- [Configuring timeouts](https://x/lambda#timeouts)")
		assert.Equal(t, "s1", opts.SourceID)
		assert.Equal(t, 3, opts.Limit)
	})

	t.Run("prints the apology and fails when generation fails", func(t *testing.T) {
		t.Parallel()

		deps, stdout, stderr := newDeps()
		deps.Index = timeoutsIndex(nil)
		deps.Generator = &mock.Generator{
			GenerateFn: func(context.Context, []ragdoc.Message) (string, error) {
				return "", errors.New("quota exceeded")
			},
		}

		err := (&main.AskCmd{Question: "What is the default timeout?"}).Run(deps)

		require.Error(t, err)
		assert.Equal(t, ragdoc.EGENERATION, ragdoc.ErrorCode(err))
		assert.Contains(t, stdout.String(), "Sorry, I encountered an error")
		assert.Contains(t, stderr.String(), "quota exceeded")
	})

	t.Run("reports an unknown source", func(t *testing.T) {
		t.Parallel()

		deps, _, _ := newDeps()
		deps.Sources = sourcesByURL()

		err := (&main.AskCmd{Question: "q", Source: "https://x/missing"}).Run(deps)

		assert.Equal(t, ragdoc.ENOTFOUND, ragdoc.ErrorCode(err))
	})
}

func TestChatCmd_Run(t *testing.T) {
	t.Parallel()

	t.Run("answers each line and records turns", func(t *testing.T) {
		t.Parallel()

		deps, stdout, _ := newDeps()
		deps.Stdin = strings.NewReader("What is the default timeout?\n\n/clear\nAnd the maximum?\n/quit\nignored\n")
		deps.Index = timeoutsIndex(nil)
		var prompts [][]ragdoc.Message
		deps.Generator = &mock.Generator{
			GenerateFn: func(_ context.Context, messages []ragdoc.Message) (string, error) {
				prompts = append(prompts, messages)
				return "Answer.", nil
			},
		}
		var turns []*ragdoc.Turn
		deps.Conversations = &mock.ConversationService{
			CreateConversationFn: func(_ context.Context, c *ragdoc.Conversation) error {
				c.ID = "conv-1"
				return nil
			},
			AppendTurnFn: func(_ context.Context, id string, turn *ragdoc.Turn) error {
				assert.Equal(t, "conv-1", id)
				turns = append(turns, turn)
				return nil
			},
		}

		require.NoError(t, (&main.ChatCmd{}).Run(deps))

		require.Len(t, prompts, 2)
		assert.Len(t, prompts[1], 2, "history was cleared before the second question")
		require.Len(t, turns, 4)
		assert.Equal(t, ragdoc.RoleUser, turns[0].Role)
		assert.Equal(t, ragdoc.RoleAssistant, turns[1].Role)
		assert.Contains(t, stdout.String(), "Conversation cleared.")
		assert.NotContains(t, stdout.String(), "ignored")
	})

	t.Run("keeps going after a failed save", func(t *testing.T) {
		t.Parallel()

		deps, stdout, stderr := newDeps()
		deps.Stdin = strings.NewReader("q1\nq2\n")
		deps.Index = timeoutsIndex(nil)
		deps.Generator = &mock.Generator{
			GenerateFn: func(context.Context, []ragdoc.Message) (string, error) { return "A.", nil },
		}
		deps.Conversations = &mock.ConversationService{
			CreateConversationFn: func(_ context.Context, c *ragdoc.Conversation) error {
				c.ID = "conv-1"
				return nil
			},
			AppendTurnFn: func(context.Context, string, *ragdoc.Turn) error {
				return errors.New("disk full")
			},
		}

		require.NoError(t, (&main.ChatCmd{}).Run(deps))

		assert.Equal(t, 2, strings.Count(stdout.String(), "A.\n"))
		assert.Contains(t, stderr.String(), "failed to save conversation")
	})
}

func TestStatsCmd_Run(t *testing.T) {
	t.Parallel()

	deps, stdout, _ := newDeps()
	deps.Config.Embedding.Provider = config.ProviderHash
	deps.Sources = sourcesByURL(
		&ragdoc.Source{ID: "s1", URL: "https://x/a", IndexedAt: time.Now()},
		&ragdoc.Source{ID: "s2", URL: "https://x/b"},
	)
	deps.Index = &mock.ChunkIndex{
		StatsFn: func(context.Context) (ragdoc.IndexStats, error) {
			return ragdoc.IndexStats{ChunkCount: 12, Dimensions: 512}, nil
		},
	}
	deps.Conversations = &mock.ConversationService{
		FindConversationsFn: func(context.Context, int) ([]*ragdoc.Conversation, error) {
			return []*ragdoc.Conversation{{ID: "c1"}}, nil
		},
	}

	require.NoError(t, (&main.StatsCmd{}).Run(deps))

	out := stdout.String()
	assert.Contains(t, out, "Sources:        2 (1 indexed)")
	assert.Contains(t, out, "Chunks:         12")
	assert.Contains(t, out, "Embedding:      hash (512 dimensions)")
	assert.Contains(t, out, "Conversations:  1")
}
