package main

import (
	"fmt"

	"github.com/fwojciec/ragdoc"
)

// Run executes the stats command.
func (c *StatsCmd) Run(deps *Dependencies) error {
	sources, err := deps.Sources.FindSources(deps.Ctx, ragdoc.SourceFilter{})
	if err != nil {
		return deps.fail(err)
	}
	indexed := 0
	for _, s := range sources {
		if s.Indexed() {
			indexed++
		}
	}

	stats, err := deps.Index.Stats(deps.Ctx)
	if err != nil {
		return deps.fail(err)
	}
	convs, err := deps.Conversations.FindConversations(deps.Ctx, 0)
	if err != nil {
		return deps.fail(err)
	}

	cfg := deps.config()
	embedding := cfg.Embedding.Provider
	if cfg.Embedding.Model != "" {
		embedding += "/" + cfg.Embedding.Model
	}
	dims := stats.Dimensions
	if dims == 0 {
		dims = cfg.Embedding.Dimensions
	}

	fmt.Fprintf(deps.Stdout, "Sources:        %d (%d indexed)\n", len(sources), indexed)
	fmt.Fprintf(deps.Stdout, "Chunks:         %d\n", stats.ChunkCount)
	if dims > 0 {
		fmt.Fprintf(deps.Stdout, "Embedding:      %s (%d dimensions)\n", embedding, dims)
	} else {
		fmt.Fprintf(deps.Stdout, "Embedding:      %s\n", embedding)
	}
	fmt.Fprintf(deps.Stdout, "Conversations:  %d\n", len(convs))
	return nil
}
