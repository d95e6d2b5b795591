package ragdoc

import (
	"context"
	"time"
)

// Role identifies the author of a conversation turn.
type Role string

// Conversation roles.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single entry of a prompt sent to a language model.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Generator produces a completion for a message sequence.
type Generator interface {
	// Generate returns the model's reply. Timeouts, transport failures
	// and empty responses return EGENERATION.
	Generate(ctx context.Context, messages []Message) (string, error)
}

// Turn is one recorded entry of a conversation.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`

	// Context is the grounding text supplied with a user turn.
	Context string `json:"context,omitempty"`

	// ChunkHashes identifies the chunks an assistant turn was grounded on.
	ChunkHashes []string `json:"chunkHashes,omitempty"`

	// Confidence and Sources are set on assistant turns.
	Confidence float64        `json:"confidence,omitempty"`
	Sources    []AnswerSource `json:"sources,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

// Conversation is a persisted question-answering session.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	SourceID  string    `json:"sourceId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ConversationService persists conversations and their turns.
type ConversationService interface {
	// CreateConversation creates a new conversation with a generated ID.
	CreateConversation(ctx context.Context, conv *Conversation) error

	// FindConversationByID returns ENOTFOUND if the conversation does not
	// exist.
	FindConversationByID(ctx context.Context, id string) (*Conversation, error)

	// FindConversations returns conversations, most recently updated first.
	FindConversations(ctx context.Context, limit int) ([]*Conversation, error)

	// AppendTurn stores a turn after the conversation's existing turns.
	AppendTurn(ctx context.Context, conversationID string, turn *Turn) error

	// FindTurns returns the conversation's turns in recorded order.
	FindTurns(ctx context.Context, conversationID string) ([]*Turn, error)

	// DeleteConversation removes a conversation and its turns.
	DeleteConversation(ctx context.Context, id string) error
}
