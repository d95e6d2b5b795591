package ragdoc

import "context"

// Answer is the outcome of a question.
type Answer struct {
	Text       string         `json:"text"`
	Sources    []AnswerSource `json:"sources"`
	Confidence float64        `json:"confidence"`

	// Err is set when retrieval or generation failed. Text then holds
	// an apology suitable for display.
	Err error `json:"-"`
}

// AnswerSource is a retrieved chunk as presented alongside an answer.
type AnswerSource struct {
	Title     string  `json:"title"`
	URL       string  `json:"url"`
	Path      string  `json:"path"`
	Content   string  `json:"content"`
	Relevance float64 `json:"relevance"`
	Hash      string  `json:"hash"`

	// Seen marks chunks already supplied earlier in the conversation.
	Seen bool `json:"seen"`
}

// AskOptions narrows retrieval for a question.
type AskOptions struct {
	SourceID     string  `json:"sourceId,omitempty"`
	MinRelevance float64 `json:"minRelevance,omitempty"`
	MaxChunks    int     `json:"maxChunks,omitempty"`
}

// Asker answers natural language questions over indexed documentation.
type Asker interface {
	// Ask answers a question. Returns EINVALID for an empty question.
	// Retrieval and generation failures are reported through Answer.Err.
	Ask(ctx context.Context, question string, opts AskOptions) (*Answer, error)
}
