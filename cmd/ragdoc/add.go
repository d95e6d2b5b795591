package main

import (
	"fmt"
	"regexp"

	"github.com/fwojciec/ragdoc"
)

// Run executes the add command.
func (c *AddCmd) Run(deps *Dependencies) error {
	if !c.Sitemap {
		if c.Preview || len(c.Filter) > 0 {
			return deps.fail(ragdoc.Errorf(ragdoc.EINVALID, "--preview and --filter require --sitemap"))
		}
		src := &ragdoc.Source{URL: c.URL, Description: c.Description}
		if err := deps.Sources.CreateSource(deps.Ctx, src); err != nil {
			return deps.fail(err)
		}
		fmt.Fprintf(deps.Stdout, "Added %s (%s)\n", src.URL, src.ID)
		return nil
	}

	var filter *ragdoc.URLFilter
	if len(c.Filter) > 0 {
		filter = &ragdoc.URLFilter{}
		for _, pattern := range c.Filter {
			re, err := regexp.Compile(pattern)
			if err != nil {
				fmt.Fprintf(deps.Stderr, "error: invalid filter pattern %q: %v\n", pattern, err)
				return ragdoc.Errorf(ragdoc.EINVALID, "invalid filter pattern %q", pattern)
			}
			filter.Include = append(filter.Include, re)
		}
	}

	urls, err := deps.Ingester.Discover(deps.Ctx, c.URL, filter)
	if err != nil {
		return deps.fail(err)
	}
	if c.Preview {
		for _, u := range urls {
			fmt.Fprintln(deps.Stdout, u)
		}
		return nil
	}
	if len(urls) == 0 {
		fmt.Fprintf(deps.Stderr, "error: no sitemap pages found under %s\n", c.URL)
		return ragdoc.Errorf(ragdoc.ENOTFOUND, "no sitemap pages found under %s", c.URL)
	}

	var added, existing int
	for _, u := range urls {
		found, err := deps.Sources.FindSources(deps.Ctx, ragdoc.SourceFilter{URL: &u, Limit: 1})
		if err != nil {
			return deps.fail(err)
		}
		if len(found) > 0 {
			existing++
			continue
		}
		if err := deps.Sources.CreateSource(deps.Ctx, &ragdoc.Source{URL: u, Description: c.Description}); err != nil {
			return deps.fail(err)
		}
		added++
	}

	fmt.Fprintf(deps.Stdout, "Added %d sources from %s (%d already registered)\n", added, c.URL, existing)
	return nil
}
