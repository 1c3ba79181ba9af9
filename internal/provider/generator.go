package provider

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/docqa-go/internal/budget"
	"github.com/54b3r/docqa-go/internal/logging"
)

// runInfo labels model calls for callback handlers such as Langfuse.
var runInfo = &callbacks.RunInfo{
	Name:      "docqa.answer",
	Component: components.ComponentOfChatModel,
}

// Generator sends a single prompt to a chat model and returns the answer as
// an incremental text stream.
type Generator struct {
	model model.BaseChatModel
}

// NewGenerator wraps m.
func NewGenerator(m model.BaseChatModel) *Generator {
	return &Generator{model: m}
}

// Generate starts streaming the model's answer to prompt. The stream is
// bound to ctx: cancelling ctx aborts the upstream request. Globally
// registered callback handlers observe the call.
func (g *Generator) Generate(ctx context.Context, prompt string) (*Stream, error) {
	msgs := []*schema.Message{schema.UserMessage(prompt)}
	logging.FromContext(ctx).Debug("provider: stream start", slog.Int("prompt_tokens_est", budget.EstimateMessages(msgs)))

	ctx = callbacks.InitCallbacks(ctx, runInfo)
	sr, err := g.model.Stream(ctx, msgs)
	if err != nil {
		return nil, fmt.Errorf("provider: start stream: %w", err)
	}
	return &Stream{reader: sr}, nil
}

// Stream yields the text increments of one model answer. Recv returns
// io.EOF after the last increment.
type Stream struct {
	reader *schema.StreamReader[*schema.Message]
}

// Recv returns the next non-empty text increment.
func (s *Stream) Recv() (string, error) {
	for {
		msg, err := s.reader.Recv()
		if err != nil {
			return "", err //nolint:wrapcheck // io.EOF must pass through unwrapped
		}
		if msg != nil && msg.Content != "" {
			return msg.Content, nil
		}
	}
}

// Close releases the underlying stream.
func (s *Stream) Close() {
	s.reader.Close()
}
