// Package gemini implements ragdoc generation, embedding and token
// counting on Google Gemini via google.golang.org/genai.
package gemini

import (
	"context"
	"strings"

	"github.com/fwojciec/ragdoc"
	"google.golang.org/genai"
)

// DefaultModel is the generation model used when none is configured.
const DefaultModel = "gemini-2.5-flash"

// DefaultTemperature keeps answers close to the supplied documentation.
const DefaultTemperature = 0.2

var _ ragdoc.Generator = (*Generator)(nil)

// Generator implements ragdoc.Generator using Gemini.
type Generator struct {
	client      *genai.Client
	model       string
	temperature float32
}

// NewGenerator creates a Generator. An empty model selects DefaultModel.
func NewGenerator(client *genai.Client, model string, temperature float32) *Generator {
	if model == "" {
		model = DefaultModel
	}
	return &Generator{client: client, model: model, temperature: temperature}
}

// Generate answers the conversation in messages.
func (g *Generator) Generate(ctx context.Context, messages []ragdoc.Message) (string, error) {
	contents, config := BuildRequest(messages, g.temperature)
	if len(contents) == 0 {
		return "", ragdoc.Errorf(ragdoc.EINVALID, "no user or assistant messages")
	}

	result, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return "", err
	}
	if result == nil {
		return "", ragdoc.Errorf(ragdoc.EGENERATION, "gemini returned nil result")
	}
	return result.Text(), nil
}

// BuildRequest converts messages into Gemini contents. System messages are
// joined into the system instruction; assistant turns use the model role.
func BuildRequest(messages []ragdoc.Message, temperature float32) ([]*genai.Content, *genai.GenerateContentConfig) {
	var system []string
	var contents []*genai.Content
	for _, m := range messages {
		switch m.Role {
		case ragdoc.RoleSystem:
			system = append(system, m.Content)
		case ragdoc.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}

	config := &genai.GenerateContentConfig{Temperature: &temperature}
	if len(system) > 0 {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: strings.Join(system, "\n\n")}},
		}
	}
	return contents, config
}
