// Package chat answers a question from the caller's own documents and
// streams the answer as citation events.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/54b3r/docqa-go/internal/citation"
	"github.com/54b3r/docqa-go/internal/logging"
	"github.com/54b3r/docqa-go/internal/provider"
)

// ErrEmptyQuestion is returned when the question is blank.
var ErrEmptyQuestion = errors.New("chat: question is required")

// Retriever renders the context block for a question.
type Retriever interface {
	Assemble(ctx context.Context, ownerID, question string, topK int) (string, error)
}

// Generator streams a model answer for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (*provider.Stream, error)
}

// Service wires retrieval, generation and citation demultiplexing.
type Service struct {
	retriever Retriever
	generator Generator
	topK      int
}

// NewService constructs a Service. topK <= 0 uses the retriever's default.
func NewService(retriever Retriever, generator Generator, topK int) (*Service, error) {
	if retriever == nil || generator == nil {
		return nil, fmt.Errorf("chat: retriever and generator are required")
	}
	return &Service{retriever: retriever, generator: generator, topK: topK}, nil
}

// Stream retrieves context for question from ownerID's documents, starts
// the model and returns the event channel. Errors before the first event
// are returned directly; a model that fails to start yields an error
// wrapping citation.ErrModelStreamFailed. Cancelling ctx stops the model
// and closes the channel.
func (s *Service) Stream(ctx context.Context, ownerID, question string) (<-chan citation.Event, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	docContext, err := s.retriever.Assemble(ctx, ownerID, question, s.topK)
	if err != nil {
		return nil, fmt.Errorf("chat: retrieve context: %w", err)
	}
	logging.FromContext(ctx).Debug("chat: context assembled",
		slog.String("owner_id", ownerID),
		slog.Int("context_chars", len(docContext)),
	)

	stream, err := s.generator.Generate(ctx, BuildPrompt(docContext, question))
	if err != nil {
		return nil, fmt.Errorf("chat: %w: %w", citation.ErrModelStreamFailed, err)
	}
	return citation.Demux(ctx, stream), nil
}

// Answer runs Stream to completion and returns every event.
func (s *Service) Answer(ctx context.Context, ownerID, question string) ([]citation.Event, error) {
	events, err := s.Stream(ctx, ownerID, question)
	if err != nil {
		return nil, err
	}
	var out []citation.Event
	for ev := range events {
		out = append(out, ev)
	}
	return out, nil
}
