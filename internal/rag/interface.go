// Package rag implements the retrieval side of the system: an owner-scoped
// vector index adapter over pluggable similarity backends (Qdrant,
// Postgres/pgvector, in-memory) and the assembler that turns retrieved
// fragments into a prompt context block.
//
// Every read and delete is scoped to a single owner. Backends apply the
// owner filter inside the similarity engine, never as a post-filter.
package rag

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrIndexUnavailable is returned for any transport or service failure of
// the embedding or similarity backend. The adapter does not retry.
var ErrIndexUnavailable = errors.New("index unavailable")

// ErrOwnerRequired is returned when an operation is called without an owner.
var ErrOwnerRequired = errors.New("rag: owner id is required")

// fragmentNamespace seeds the deterministic fragment point ids.
var fragmentNamespace = uuid.MustParse("6f1f8a0e-5c1b-4a57-9a0e-2d7f0c3b9e41")

// Point is one fragment as stored by a VectorStore backend.
type Point struct {
	// ID is the backend key derived from (OwnerID, DocumentID, Index).
	ID string

	OwnerID    string
	DocumentID string
	Filename   string

	// Index is the fragment's position within its document.
	Index int

	// Text is the fragment text.
	Text string

	// Vector is the fragment embedding.
	Vector []float32
}

// Result is one ranked fragment returned by a query.
type Result struct {
	OwnerID    string
	DocumentID string
	Filename   string
	Index      int
	Text       string

	// Score is the similarity assigned by the backend. Higher is closer.
	Score float32
}

// VectorStore is a similarity backend. Implementations must be safe to call
// from multiple goroutines.
type VectorStore interface {
	// Upsert stores or replaces points by ID.
	Upsert(ctx context.Context, points []Point) error

	// Search returns at most topK points owned by ownerID, nearest first.
	Search(ctx context.Context, ownerID string, vector []float32, topK int) ([]Result, error)

	// DeleteByDocument removes every point of (ownerID, documentID).
	// Deleting an absent document is not an error.
	DeleteByDocument(ctx context.Context, ownerID, documentID string) error

	// Close releases any resources held by the store.
	Close() error
}

// Embedder converts text into dense vector embeddings.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts into embeddings, parallel to texts.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// QueryEmbedder is implemented by embedders that treat a retrieval question
// differently from document fragments, e.g. by caching it. Adapter.Query
// prefers it over Embed.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Index is the owner-scoped fragment index used by ingestion, retrieval and
// deletion. Every error it returns for a backend failure wraps
// ErrIndexUnavailable.
type Index interface {
	// Upsert assigns each fragment its identifier and stores it tagged with
	// {owner, document, filename}.
	Upsert(ctx context.Context, ownerID, documentID, filename string, fragments []string) error

	// Query returns at most topK fragments belonging only to ownerID, ranked
	// by similarity to question.
	Query(ctx context.Context, ownerID, question string, topK int) ([]Result, error)

	// DeleteByDocument removes every fragment of the document. Idempotent.
	DeleteByDocument(ctx context.Context, ownerID, documentID string) error
}

// FragmentID returns the stable point id of fragment index of a document.
// The composite key is hashed into a UUID because Qdrant only accepts
// UUIDs or integers as point ids.
func FragmentID(ownerID, documentID string, index int) string {
	key := fmt.Sprintf("%s\x1f%s\x1f%d", ownerID, documentID, index)
	return uuid.NewSHA1(fragmentNamespace, []byte(key)).String()
}

// unavailable wraps a backend failure in ErrIndexUnavailable.
func unavailable(op string, err error) error {
	return fmt.Errorf("rag: %s: %w: %w", op, ErrIndexUnavailable, err)
}
