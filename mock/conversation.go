package mock

import (
	"context"

	"github.com/fwojciec/ragdoc"
)

var _ ragdoc.ConversationService = (*ConversationService)(nil)

// ConversationService is a mock implementation of ragdoc.ConversationService.
type ConversationService struct {
	CreateConversationFn   func(ctx context.Context, conv *ragdoc.Conversation) error
	FindConversationByIDFn func(ctx context.Context, id string) (*ragdoc.Conversation, error)
	FindConversationsFn    func(ctx context.Context, limit int) ([]*ragdoc.Conversation, error)
	AppendTurnFn           func(ctx context.Context, conversationID string, turn *ragdoc.Turn) error
	FindTurnsFn            func(ctx context.Context, conversationID string) ([]*ragdoc.Turn, error)
	DeleteConversationFn   func(ctx context.Context, id string) error
}

func (s *ConversationService) CreateConversation(ctx context.Context, conv *ragdoc.Conversation) error {
	return s.CreateConversationFn(ctx, conv)
}

func (s *ConversationService) FindConversationByID(ctx context.Context, id string) (*ragdoc.Conversation, error) {
	return s.FindConversationByIDFn(ctx, id)
}

func (s *ConversationService) FindConversations(ctx context.Context, limit int) ([]*ragdoc.Conversation, error) {
	return s.FindConversationsFn(ctx, limit)
}

func (s *ConversationService) AppendTurn(ctx context.Context, conversationID string, turn *ragdoc.Turn) error {
	return s.AppendTurnFn(ctx, conversationID, turn)
}

func (s *ConversationService) FindTurns(ctx context.Context, conversationID string) ([]*ragdoc.Turn, error) {
	return s.FindTurnsFn(ctx, conversationID)
}

func (s *ConversationService) DeleteConversation(ctx context.Context, id string) error {
	return s.DeleteConversationFn(ctx, id)
}

var _ ragdoc.Generator = (*Generator)(nil)

// Generator is a mock implementation of ragdoc.Generator.
type Generator struct {
	GenerateFn func(ctx context.Context, messages []ragdoc.Message) (string, error)
}

func (g *Generator) Generate(ctx context.Context, messages []ragdoc.Message) (string, error) {
	return g.GenerateFn(ctx, messages)
}
