package main

import (
	"fmt"
	"time"

	"github.com/fwojciec/ragdoc"
)

// Run executes the list command.
func (c *ListCmd) Run(deps *Dependencies) error {
	sources, err := deps.Sources.FindSources(deps.Ctx, ragdoc.SourceFilter{})
	if err != nil {
		return deps.fail(err)
	}

	if len(sources) == 0 {
		fmt.Fprintln(deps.Stdout, "No sources found. Use 'ragdoc add' to register one.")
		return nil
	}

	for _, s := range sources {
		status := "not indexed"
		if s.Indexed() {
			status = "indexed " + s.IndexedAt.Local().Format(time.DateTime)
		}
		fmt.Fprintf(deps.Stdout, "%s  %s  %s\n", s.ID, s.URL, status)
		if s.Title != "" {
			fmt.Fprintf(deps.Stdout, "    %s\n", s.Title)
		}
	}
	return nil
}
