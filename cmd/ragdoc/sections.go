package main

import (
	"fmt"
	"strings"

	"github.com/fwojciec/ragdoc"
)

// Run executes the sections command.
func (c *SectionsCmd) Run(deps *Dependencies) error {
	src, err := deps.findSource(c.URL)
	if err != nil {
		return err
	}

	sections, err := deps.Sections.FindSections(deps.Ctx, src.ID)
	if err != nil {
		return deps.fail(err)
	}
	if len(sections) == 0 {
		fmt.Fprintf(deps.Stderr, "error: %s has no sections. Run 'ragdoc index %s' first.\n", src.URL, src.URL)
		return ragdoc.Errorf(ragdoc.ENOTFOUND, "source %q has no sections", src.URL)
	}

	title := src.Title
	if title == "" {
		title = src.URL
	}
	fmt.Fprintf(deps.Stdout, "%s (%d sections)\n\n", title, len(sections))

	for _, s := range sections {
		if c.Full {
			fmt.Fprintf(deps.Stdout, "## %s\n\n%s\n\n", s.Path, s.Content)
			continue
		}
		indent := strings.Repeat("  ", max(s.Level-1, 0))
		line := fmt.Sprintf("%s%s  (~%d tokens)", indent, s.Title, ragdoc.EstimateTokens(s.Content))
		if s.Fragment != "" {
			line += "  #" + s.Fragment
		}
		fmt.Fprintln(deps.Stdout, line)
	}
	return nil
}
