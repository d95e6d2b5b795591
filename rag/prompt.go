package rag

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/fwojciec/ragdoc"
)

// DefaultSystemPrompt instructs the model to stay within the supplied
// documentation and to cite it by bracketed section title.
const DefaultSystemPrompt = `You are a documentation assistant. Answer questions using only the documentation excerpts supplied with each question and earlier in this conversation.

Rules:
- If the excerpts do not contain the answer, say that the documentation does not cover it.
- Include code examples from the excerpts when they help.
- Cite every excerpt you rely on by its section title in square brackets, exactly as it appears in the excerpt header, for example [Configuring timeouts].
- Do not write links yourself. Citations are turned into links automatically.`

// Fixed answers.
const (
	InsufficientContextAnswer = "I don't have enough context in my knowledge base to answer this question."
	ErrorAnswer               = "Sorry, I encountered an error while processing your question."
)

// previouslySupplied replaces the grounding block when every retrieved
// chunk was already shown earlier in the conversation.
const previouslySupplied = "(No new excerpts. Use the documentation excerpts supplied earlier in this conversation.)"

// grounding formats chunks as "[title]\ncontent" blocks separated by blank
// lines.
func grounding(chunks []*ragdoc.Chunk) string {
	if len(chunks) == 0 {
		return previouslySupplied
	}
	blocks := make([]string, len(chunks))
	for i, c := range chunks {
		blocks[i] = fmt.Sprintf("[%s]\n%s", title(c), c.Content)
	}
	return strings.Join(blocks, "\n\n")
}

// userPrompt is the message content for a question and its grounding.
func userPrompt(context, question string) string {
	var b strings.Builder
	b.WriteString("Documentation excerpts:\n---\n")
	b.WriteString(context)
	b.WriteString("\n---\n\nQuestion: ")
	b.WriteString(question)
	b.WriteString("\n\nCite the excerpts you use with [Title] notation. If the excerpts do not answer the question, say so.")
	return b.String()
}

func title(c *ragdoc.Chunk) string {
	if c.Metadata.Title != "" {
		return c.Metadata.Title
	}
	return "Untitled section"
}

var (
	// existingLink matches a bracketed title followed by a link target,
	// including empty targets and URLs missing the closing parenthesis.
	existingLink = regexp.MustCompile(`\[([^\[\]\n]+)\]\s?\((?:[^()\s]*\)|(?:https?://|#|/)[^()\s]*)`)

	bracketed = regexp.MustCompile(`\[([^\[\]\n]+)\]`)
)

// linkCitations strips any link syntax the model attached to bracketed
// titles and links every title found in urls. Unknown titles stay plain
// bracketed text.
func linkCitations(answer string, urls map[string]string) string {
	answer = existingLink.ReplaceAllString(answer, "[$1]")
	return bracketed.ReplaceAllStringFunc(answer, func(m string) string {
		t := strings.TrimSpace(m[1 : len(m)-1])
		if url, ok := urls[t]; ok && url != "" {
			return "[" + t + "](" + url + ")"
		}
		return m
	})
}

// FormatSources renders answer sources as a Markdown list with relevance
// and a marker for chunks shown in earlier turns.
func FormatSources(sources []ragdoc.AnswerSource) string {
	lines := make([]string, 0, len(sources))
	for _, s := range sources {
		var b strings.Builder
		b.WriteString("- ")
		if s.URL != "" {
			fmt.Fprintf(&b, "[%s](%s)", s.Title, s.URL)
		} else {
			b.WriteString(s.Title)
		}
		if s.Path != "" && s.Path != s.Title {
			fmt.Fprintf(&b, " *%s*", s.Path)
		}
		fmt.Fprintf(&b, " (%.2f)", s.Relevance)
		if s.Seen {
			b.WriteString(" (seen earlier)")
		}
		lines = append(lines, b.String())
	}
	return strings.Join(lines, "\n")
}
