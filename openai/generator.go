// Package openai implements ragdoc generation and embedding on the OpenAI
// API via github.com/sashabaranov/go-openai.
package openai

import (
	"context"

	"github.com/fwojciec/ragdoc"
	openai "github.com/sashabaranov/go-openai"
)

// DefaultModel is the chat model used when none is configured.
const DefaultModel = "gpt-4o-mini"

var _ ragdoc.Generator = (*Generator)(nil)

// Generator implements ragdoc.Generator using chat completions.
type Generator struct {
	client      *openai.Client
	model       string
	temperature float32
}

// NewGenerator creates a Generator. An empty model selects DefaultModel.
func NewGenerator(client *openai.Client, model string, temperature float32) *Generator {
	if model == "" {
		model = DefaultModel
	}
	return &Generator{client: client, model: model, temperature: temperature}
}

// Generate answers the conversation in messages.
func (g *Generator) Generate(ctx context.Context, messages []ragdoc.Message) (string, error) {
	if len(messages) == 0 {
		return "", ragdoc.Errorf(ragdoc.EINVALID, "no messages")
	}

	req := openai.ChatCompletionRequest{
		Model:       g.model,
		Temperature: g.temperature,
		Messages:    make([]openai.ChatCompletionMessage, 0, len(messages)),
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    chatRole(m.Role),
			Content: m.Content,
		})
	}

	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", ragdoc.Errorf(ragdoc.EGENERATION, "chat completion failed: %v", err)
	}
	if len(resp.Choices) == 0 {
		return "", ragdoc.Errorf(ragdoc.EGENERATION, "chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func chatRole(r ragdoc.Role) string {
	switch r {
	case ragdoc.RoleSystem:
		return openai.ChatMessageRoleSystem
	case ragdoc.RoleAssistant:
		return openai.ChatMessageRoleAssistant
	default:
		return openai.ChatMessageRoleUser
	}
}
