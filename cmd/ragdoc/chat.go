package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/fwojciec/ragdoc"
	"github.com/fwojciec/ragdoc/rag"
)

// Run executes the chat command. Each line read from stdin is a question;
// "/clear" resets the history and "/quit" ends the conversation.
func (c *ChatCmd) Run(deps *Dependencies) error {
	sourceID, err := deps.sourceID(c.Source)
	if err != nil {
		return err
	}

	conv := &ragdoc.Conversation{Title: "chat", SourceID: sourceID}
	if err := deps.Conversations.CreateConversation(deps.Ctx, conv); err != nil {
		return deps.fail(err)
	}
	session := deps.newSession(&rag.ConversationRecorder{
		Service:        deps.Conversations,
		ConversationID: conv.ID,
	})
	opts := ragdoc.AskOptions{SourceID: sourceID}

	fmt.Fprintln(deps.Stdout, "Ask about your documentation. /clear resets the conversation, /quit exits.")
	scanner := bufio.NewScanner(deps.Stdin)
	for {
		fmt.Fprint(deps.Stdout, "> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/clear":
			session.ClearHistory()
			fmt.Fprintln(deps.Stdout, "Conversation cleared.")
			continue
		}

		answer, err := session.Ask(deps.Ctx, line, opts)
		if answer == nil {
			fmt.Fprintf(deps.Stderr, "error: %s\n", ragdoc.ErrorMessage(err))
			continue
		}
		printAnswer(deps, answer)
		if answer.Err != nil {
			fmt.Fprintf(deps.Stderr, "error: %v\n", answer.Err)
		}
		if err != nil {
			fmt.Fprintf(deps.Stderr, "warning: failed to save conversation: %v\n", err)
		}
		fmt.Fprintln(deps.Stdout)
	}
	if err := scanner.Err(); err != nil {
		return deps.fail(err)
	}
	fmt.Fprintln(deps.Stdout)
	return nil
}
