//go:build integration

package rag

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"
)

// Run with:
//
//	QDRANT_HOST=localhost go test -tags=integration ./internal/rag/
//	PGVECTOR_DSN=postgres://... go test -tags=integration ./internal/rag/

func TestQdrantStore_Integration(t *testing.T) {
	host := os.Getenv("QDRANT_HOST")
	if host == "" {
		t.Skip("QDRANT_HOST not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s, err := NewQdrantStore(ctx, &QdrantConfig{
		Host:       host,
		Port:       6334,
		Collection: fmt.Sprintf("docqa-it-%d", time.Now().UnixNano()),
		VectorSize: 64,
	})
	if err != nil {
		t.Fatalf("NewQdrantStore: %v", err)
	}
	defer s.Close()

	exerciseStore(ctx, t, s)
}

func TestPgvectorStore_Integration(t *testing.T) {
	dsn := os.Getenv("PGVECTOR_DSN")
	if dsn == "" {
		t.Skip("PGVECTOR_DSN not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s, err := NewPgvectorStore(ctx, &PgvectorConfig{
		DSN:        dsn,
		Table:      fmt.Sprintf("docqa_it_%d", time.Now().UnixNano()),
		VectorSize: 64,
	})
	if err != nil {
		t.Fatalf("NewPgvectorStore: %v", err)
	}
	defer s.Close()
	if err := s.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}

	exerciseStore(ctx, t, s)
}

// exerciseStore checks owner isolation and document deletion against a live
// backend.
func exerciseStore(ctx context.Context, t *testing.T, store VectorStore) {
	t.Helper()
	a := newTestAdapter(t, store)

	fragments := []string{"the cat is fluffy", "invoices are due in thirty days", "the dog barks"}
	if err := a.Upsert(ctx, "alice", "doc-a", "a.md", fragments); err != nil {
		t.Fatalf("Upsert alice: %v", err)
	}
	if err := a.Upsert(ctx, "bob", "doc-b", "b.md", fragments); err != nil {
		t.Fatalf("Upsert bob: %v", err)
	}

	results, err := a.Query(ctx, "alice", "is the cat fluffy", 2)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	for _, r := range results {
		if r.OwnerID != "alice" || r.DocumentID != "doc-a" {
			t.Errorf("result leaked across owners: %+v", r)
		}
	}
	if results[0].Text != "the cat is fluffy" {
		t.Errorf("top result %q", results[0].Text)
	}

	if err := a.DeleteByDocument(ctx, "alice", "doc-a"); err != nil {
		t.Fatalf("DeleteByDocument: %v", err)
	}
	results, err = a.Query(ctx, "alice", "is the cat fluffy", 2)
	if err != nil {
		t.Fatalf("Query after delete: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("got %d results after delete", len(results))
	}
	results, err = a.Query(ctx, "bob", "is the cat fluffy", 2)
	if err != nil {
		t.Fatalf("Query bob: %v", err)
	}
	if len(results) == 0 {
		t.Error("deleting alice's document removed bob's fragments")
	}
}
