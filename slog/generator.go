package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/fwojciec/ragdoc"
)

var _ ragdoc.Generator = (*LoggingGenerator)(nil)

// LoggingGenerator logs model calls. Message contents are not logged.
type LoggingGenerator struct {
	next   ragdoc.Generator
	logger *slog.Logger
}

// NewLoggingGenerator wraps next.
func NewLoggingGenerator(next ragdoc.Generator, logger *slog.Logger) *LoggingGenerator {
	return &LoggingGenerator{next: next, logger: logger}
}

func (g *LoggingGenerator) Generate(ctx context.Context, messages []ragdoc.Message) (answer string, err error) {
	defer func(begin time.Time) {
		g.logger.Info("generate",
			"messages", len(messages),
			"prompt_tokens", estimatePrompt(messages),
			"answer_bytes", len(answer),
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return g.next.Generate(ctx, messages)
}

func estimatePrompt(messages []ragdoc.Message) int {
	n := 0
	for _, m := range messages {
		n += ragdoc.EstimateTokens(m.Content)
	}
	return n
}
