package main

import (
	"fmt"

	"github.com/fwojciec/ragdoc"
)

// Run executes the delete command.
func (c *DeleteCmd) Run(deps *Dependencies) error {
	if !c.Force {
		fmt.Fprintf(deps.Stderr, "error: use --force to confirm deletion\n")
		return ragdoc.Errorf(ragdoc.EINVALID, "use --force to confirm deletion")
	}

	src, err := deps.findSource(c.URL)
	if err != nil {
		return err
	}

	if err := deps.Index.Delete(deps.Ctx, src.ID); err != nil {
		return deps.fail(err)
	}
	if err := deps.Sources.DeleteSource(deps.Ctx, src.ID); err != nil {
		return deps.fail(err)
	}

	fmt.Fprintf(deps.Stdout, "Deleted %s\n", src.URL)
	return nil
}
