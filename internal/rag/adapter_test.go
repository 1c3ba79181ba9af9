package rag

import (
	"context"
	"errors"
	"testing"
)

func TestNewAdapter_NilDependencies(t *testing.T) {
	t.Parallel()

	if _, err := NewAdapter(nil, NewMemoryStore(), nil); err == nil {
		t.Error("expected error for nil embedder")
	}
	if _, err := NewAdapter(&wordEmbedder{dims: 8}, nil, nil); err == nil {
		t.Error("expected error for nil store")
	}
}

func TestAdapter_UpsertAssignsFragmentIDs(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	a := newTestAdapter(t, store)
	ctx := context.Background()

	fragments := []string{"alpha", "beta", "gamma", "delta", "epsilon"}
	if err := a.Upsert(ctx, "owner-a", "doc-1", "a.pdf", fragments); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if store.Len() != len(fragments) {
		t.Fatalf("stored %d points, want %d", store.Len(), len(fragments))
	}
	for i := range fragments {
		id := FragmentID("owner-a", "doc-1", i)
		p, ok := store.points[id]
		if !ok {
			t.Fatalf("fragment %d not stored under its id", i)
		}
		if p.Index != i || p.Text != fragments[i] || p.Filename != "a.pdf" {
			t.Errorf("fragment %d stored as %+v", i, p)
		}
	}

	// Re-ingesting the same document replaces rather than duplicates.
	if err := a.Upsert(ctx, "owner-a", "doc-1", "a.pdf", fragments); err != nil {
		t.Fatalf("second Upsert: %v", err)
	}
	if store.Len() != len(fragments) {
		t.Errorf("re-upsert grew the store to %d points", store.Len())
	}
}

func TestFragmentID_Stable(t *testing.T) {
	t.Parallel()

	a := FragmentID("o", "d", 3)
	if a != FragmentID("o", "d", 3) {
		t.Error("FragmentID is not deterministic")
	}
	for _, other := range []string{FragmentID("o", "d", 4), FragmentID("o2", "d", 3), FragmentID("o", "d2", 3)} {
		if other == a {
			t.Errorf("FragmentID collision: %s", a)
		}
	}
}

func TestAdapter_BackendErrorsAreIndexUnavailable(t *testing.T) {
	t.Parallel()

	a := newTestAdapter(t, failingStore{err: errBackendDown})
	ctx := context.Background()

	checks := map[string]error{
		"upsert": a.Upsert(ctx, "o", "d", "f", []string{"x", "y", "z"}),
		"delete": a.DeleteByDocument(ctx, "o", "d"),
	}
	_, checks["query"] = a.Query(ctx, "o", "question", 3)

	for op, err := range checks {
		if !errors.Is(err, ErrIndexUnavailable) {
			t.Errorf("%s: err = %v, want ErrIndexUnavailable", op, err)
		}
		if !errors.Is(err, errBackendDown) {
			t.Errorf("%s: cause not preserved: %v", op, err)
		}
	}
}

func TestAdapter_EmbedderErrorIsIndexUnavailable(t *testing.T) {
	t.Parallel()

	a, err := NewAdapter(&wordEmbedder{dims: 8, err: errBackendDown}, NewMemoryStore(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := a.Query(context.Background(), "o", "q", 1); !errors.Is(err, ErrIndexUnavailable) {
		t.Errorf("err = %v, want ErrIndexUnavailable", err)
	}
}

// questionEmbedder counts EmbedQuery calls separately from batch embeds.
type questionEmbedder struct {
	wordEmbedder
	questions int
}

func (e *questionEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	e.questions++
	out, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func TestAdapter_QueryUsesEmbedQuery(t *testing.T) {
	t.Parallel()

	emb := &questionEmbedder{wordEmbedder: wordEmbedder{dims: 16}}
	a, err := NewAdapter(emb, NewMemoryStore(), nil)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if err := a.Upsert(ctx, "o", "d", "lease.txt", []string{"sixty days notice"}); err != nil {
		t.Fatal(err)
	}
	if emb.questions != 0 {
		t.Fatalf("Upsert used EmbedQuery %d times", emb.questions)
	}
	if _, err := a.Query(ctx, "o", "how much notice?", 1); err != nil {
		t.Fatal(err)
	}
	if emb.questions != 1 {
		t.Errorf("Query used EmbedQuery %d times, want 1", emb.questions)
	}
}

func TestAdapter_OwnerRequired(t *testing.T) {
	t.Parallel()

	a := newTestAdapter(t, NewMemoryStore())
	ctx := context.Background()
	if err := a.Upsert(ctx, "", "d", "f", []string{"x"}); !errors.Is(err, ErrOwnerRequired) {
		t.Errorf("Upsert err = %v", err)
	}
	if _, err := a.Query(ctx, "", "q", 1); !errors.Is(err, ErrOwnerRequired) {
		t.Errorf("Query err = %v", err)
	}
	if err := a.DeleteByDocument(ctx, "", "d"); !errors.Is(err, ErrOwnerRequired) {
		t.Errorf("DeleteByDocument err = %v", err)
	}
}

func TestAdapter_OwnerIsolation(t *testing.T) {
	t.Parallel()

	a := newTestAdapter(t, NewMemoryStore())
	ctx := context.Background()
	shared := []string{"the cat is fluffy", "the cat sleeps all day", "cats purr when happy"}

	if err := a.Upsert(ctx, "owner-a", "doc-a", "a.txt", shared); err != nil {
		t.Fatal(err)
	}
	if err := a.Upsert(ctx, "owner-b", "doc-b", "b.txt", shared); err != nil {
		t.Fatal(err)
	}

	for _, owner := range []string{"owner-a", "owner-b"} {
		results, err := a.Query(ctx, owner, "is the cat fluffy?", 10)
		if err != nil {
			t.Fatalf("Query(%s): %v", owner, err)
		}
		if len(results) != len(shared) {
			t.Errorf("Query(%s) returned %d results, want %d", owner, len(results), len(shared))
		}
		for _, r := range results {
			if r.OwnerID != owner {
				t.Fatalf("Query(%s) leaked fragment of %s", owner, r.OwnerID)
			}
		}
	}

	results, err := a.Query(ctx, "owner-c", "is the cat fluffy?", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("owner without documents got %d results", len(results))
	}
}

func TestAdapter_QueryRanksAndLimits(t *testing.T) {
	t.Parallel()

	a := newTestAdapter(t, NewMemoryStore())
	ctx := context.Background()
	fragments := []string{
		"invoices are due in thirty days",
		"the cat is fluffy and white",
		"shipping takes five business days",
	}
	if err := a.Upsert(ctx, "o", "doc-1", "notes.txt", fragments); err != nil {
		t.Fatal(err)
	}

	results, err := a.Query(ctx, "o", "fluffy cat", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Index != 1 {
		t.Errorf("top result index = %d, want 1", results[0].Index)
	}
	if results[0].Score < results[1].Score {
		t.Error("results are not ranked by score")
	}
	for _, r := range results {
		if r.DocumentID != "doc-1" {
			t.Errorf("result tagged with document %q", r.DocumentID)
		}
	}
}

func TestAdapter_DeleteByDocumentIsIdempotent(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	a := newTestAdapter(t, store)
	ctx := context.Background()

	if err := a.Upsert(ctx, "o", "keep", "k.txt", []string{"keep me"}); err != nil {
		t.Fatal(err)
	}
	if err := a.Upsert(ctx, "o", "drop", "d.txt", []string{"drop me", "and me"}); err != nil {
		t.Fatal(err)
	}
	// Another owner's document with the same id must survive.
	if err := a.Upsert(ctx, "other", "drop", "d.txt", []string{"not yours"}); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 2; i++ {
		if err := a.DeleteByDocument(ctx, "o", "drop"); err != nil {
			t.Fatalf("DeleteByDocument #%d: %v", i+1, err)
		}
	}
	if store.Len() != 2 {
		t.Errorf("store has %d points after delete, want 2", store.Len())
	}
}
