package main

import (
	"fmt"

	"github.com/fwojciec/ragdoc"
	"github.com/fwojciec/ragdoc/rag"
)

// Run executes the ask command.
func (c *AskCmd) Run(deps *Dependencies) error {
	sourceID, err := deps.sourceID(c.Source)
	if err != nil {
		return err
	}

	session := deps.newSession(nil)
	answer, err := session.Ask(deps.Ctx, c.Question, ragdoc.AskOptions{
		SourceID:     sourceID,
		MinRelevance: c.MinRelevance,
		MaxChunks:    c.MaxChunks,
	})
	if err != nil {
		return deps.fail(err)
	}

	printAnswer(deps, answer)
	if answer.Err != nil {
		fmt.Fprintf(deps.Stderr, "error: %v\n", answer.Err)
		return answer.Err
	}
	return nil
}

func printAnswer(deps *Dependencies, answer *ragdoc.Answer) {
	fmt.Fprintln(deps.Stdout, answer.Text)
	if len(answer.Sources) == 0 {
		return
	}
	fmt.Fprintf(deps.Stdout, "\nSources (confidence %.2f):\n%s\n", answer.Confidence, rag.FormatSources(answer.Sources))
}
