package main

import (
	"context"
	"fmt"
	"io"

	"github.com/fwojciec/ragdoc"
	"github.com/fwojciec/ragdoc/config"
	"github.com/fwojciec/ragdoc/ingest"
	"github.com/fwojciec/ragdoc/rag"
)

// Dependencies holds all services and configuration for command execution.
type Dependencies struct {
	Ctx    context.Context
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Config *config.Config

	Sources       ragdoc.SourceService
	Sections      ragdoc.SectionService
	Conversations ragdoc.ConversationService
	Index         ragdoc.ChunkIndex
	Generator     ragdoc.Generator
	Ingester      *ingest.Ingester
}

// CLI defines the command-line interface structure for Kong.
type CLI struct {
	Config  string `help:"Path to the YAML config file (default ~/.ragdoc/config.yaml)" type:"path"`
	Verbose bool   `short:"v" help:"Log service calls to stderr"`

	Add      AddCmd      `cmd:"" help:"Register a documentation page or a whole site"`
	List     ListCmd     `cmd:"" help:"List registered sources"`
	Delete   DeleteCmd   `cmd:"" help:"Delete a source with its sections and chunks"`
	Index    IndexCmd    `cmd:"" help:"Fetch, split and embed sources"`
	Sections SectionsCmd `cmd:"" help:"Show the section tree of an indexed source"`
	Ask      AskCmd      `cmd:"" help:"Ask a single question"`
	Chat     ChatCmd     `cmd:"" help:"Start an interactive conversation"`
	Stats    StatsCmd    `cmd:"" help:"Show index statistics"`
}

// AddCmd is the "add" subcommand.
type AddCmd struct {
	URL         string   `arg:"" help:"Documentation page URL, or site root with --sitemap"`
	Description string   `short:"d" help:"Short description of the source"`
	Sitemap     bool     `short:"s" help:"Register every sitemap page under URL"`
	Filter      []string `short:"F" name:"filter" help:"Keep sitemap URLs matching regex (repeatable)"`
	Preview     bool     `short:"p" help:"Show sitemap URLs without registering them"`
}

// ListCmd is the "list" subcommand.
type ListCmd struct{}

// DeleteCmd is the "delete" subcommand.
type DeleteCmd struct {
	URL   string `arg:"" help:"Source URL"`
	Force bool   `help:"Confirm deletion"`
}

// IndexCmd is the "index" subcommand.
type IndexCmd struct {
	URLs        []string `arg:"" optional:"" name:"url" help:"Source URLs to index (all when omitted)"`
	Render      bool     `short:"r" help:"Render pages in headless Chrome before parsing"`
	Force       bool     `short:"f" help:"Re-index sources whose content is unchanged"`
	Concurrency int      `short:"c" help:"Sources indexed at once"`
}

// SectionsCmd is the "sections" subcommand.
type SectionsCmd struct {
	URL  string `arg:"" help:"Source URL"`
	Full bool   `help:"Show section content"`
}

// AskCmd is the "ask" subcommand.
type AskCmd struct {
	Question     string  `arg:"" help:"Question about the documentation"`
	Source       string  `help:"Restrict retrieval to one source URL"`
	MinRelevance float64 `help:"Drop excerpts scoring below this relevance"`
	MaxChunks    int     `help:"Maximum number of excerpts"`
}

// ChatCmd is the "chat" subcommand.
type ChatCmd struct {
	Source string `help:"Restrict retrieval to one source URL"`
}

// StatsCmd is the "stats" subcommand.
type StatsCmd struct{}

func (d *Dependencies) config() *config.Config {
	if d.Config == nil {
		d.Config = config.Default()
	}
	return d.Config
}

// fail prints the error the way every command reports it and returns it.
func (d *Dependencies) fail(err error) error {
	fmt.Fprintf(d.Stderr, "error: %s\n", ragdoc.ErrorMessage(err))
	return err
}

// findSource looks up a registered source by URL.
func (d *Dependencies) findSource(url string) (*ragdoc.Source, error) {
	sources, err := d.Sources.FindSources(d.Ctx, ragdoc.SourceFilter{URL: &url})
	if err != nil {
		return nil, d.fail(err)
	}
	if len(sources) == 0 {
		fmt.Fprintf(d.Stderr, "error: source %q not found. Use 'ragdoc list' to see registered sources.\n", url)
		return nil, ragdoc.Errorf(ragdoc.ENOTFOUND, "source %q not found", url)
	}
	return sources[0], nil
}

// newSession creates a question-answering session configured from the
// loaded settings.
func (d *Dependencies) newSession(recorder rag.Recorder) *rag.Session {
	cfg := d.config()
	opts := []rag.Option{
		rag.WithMaxTurns(cfg.Conversation.MaxTurns),
		rag.WithTimeout(cfg.Generation.Timeout),
		rag.WithDefaults(ragdoc.AskOptions{
			MinRelevance: cfg.Retrieval.MinRelevance,
			MaxChunks:    cfg.Retrieval.MaxChunks,
		}),
	}
	if recorder != nil {
		opts = append(opts, rag.WithRecorder(recorder))
	}
	return rag.NewSession(d.Index, d.Generator, opts...)
}

// sourceID resolves an optional --source flag.
func (d *Dependencies) sourceID(url string) (string, error) {
	if url == "" {
		return "", nil
	}
	src, err := d.findSource(url)
	if err != nil {
		return "", err
	}
	return src.ID, nil
}
