package main

import (
	"fmt"

	"github.com/fwojciec/ragdoc"
	"github.com/fwojciec/ragdoc/ingest"
)

// Run executes the index command.
func (c *IndexCmd) Run(deps *Dependencies) error {
	var sources []*ragdoc.Source
	if len(c.URLs) == 0 {
		all, err := deps.Sources.FindSources(deps.Ctx, ragdoc.SourceFilter{})
		if err != nil {
			return deps.fail(err)
		}
		sources = all
	} else {
		for _, u := range c.URLs {
			src, err := deps.findSource(u)
			if err != nil {
				return err
			}
			sources = append(sources, src)
		}
	}

	if len(sources) == 0 {
		fmt.Fprintln(deps.Stdout, "No sources to index. Use 'ragdoc add' to register one.")
		return nil
	}

	deps.Ingester.Force = c.Force
	if c.Concurrency > 0 {
		deps.Ingester.Concurrency = c.Concurrency
	}

	progress := func(event ingest.ProgressEvent) {
		switch event.Type {
		case ingest.ProgressStarted:
			fmt.Fprintf(deps.Stdout, "Indexing %d sources\n", event.Total)
		case ingest.ProgressIndexed:
			fmt.Fprintf(deps.Stdout, "  [%d/%d] %s: %d sections, %d chunks\n",
				event.Completed, event.Total, event.URL, event.Source.Sections, event.Source.Chunks)
			for _, w := range event.Source.Warnings {
				fmt.Fprintf(deps.Stderr, "    %s: %s\n", w.Level, w.Message)
			}
		case ingest.ProgressUnchanged:
			fmt.Fprintf(deps.Stdout, "  [%d/%d] %s: unchanged\n", event.Completed, event.Total, event.URL)
		case ingest.ProgressFailed:
			fmt.Fprintf(deps.Stderr, "  [%d/%d] %s: %v\n", event.Completed, event.Total, event.URL, event.Error)
		}
	}

	result, err := deps.Ingester.IndexSources(deps.Ctx, sources, progress)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error indexing: %v\n", err)
		return err
	}

	fmt.Fprintf(deps.Stdout, "Indexed %d, unchanged %d, failed %d (%d sections, %d chunks, %s tokens)\n",
		result.Indexed, result.Unchanged, result.Failed, result.Sections, result.Chunks, formatTokens(result.Tokens))
	if result.Failed > 0 {
		return fmt.Errorf("%d of %d sources failed to index", result.Failed, len(sources))
	}
	return nil
}

// formatTokens abbreviates large counts: 950, 12.3k, 4.1M.
func formatTokens(n int) string {
	switch {
	case n >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	case n >= 1_000:
		return fmt.Sprintf("%.1fk", float64(n)/1_000)
	}
	return fmt.Sprintf("%d", n)
}
