package rag

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// AdapterConfig tunes how the Adapter talks to its backends.
type AdapterConfig struct {
	// BatchSize is the number of fragments embedded and upserted per call.
	// Defaults to 32.
	BatchSize int

	// Concurrency bounds the number of in-flight batches. Defaults to 4.
	Concurrency int

	// DefaultTopK is used when Query is called with topK <= 0. Defaults to 6.
	DefaultTopK int
}

// Adapter implements Index by pairing an Embedder with a VectorStore.
type Adapter struct {
	embedder Embedder
	store    VectorStore
	cfg      AdapterConfig
}

// NewAdapter constructs an Adapter. cfg may be nil.
func NewAdapter(embedder Embedder, store VectorStore, cfg *AdapterConfig) (*Adapter, error) {
	if embedder == nil {
		return nil, fmt.Errorf("rag: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("rag: store must not be nil")
	}
	resolved := AdapterConfig{}
	if cfg != nil {
		resolved = *cfg
	}
	if resolved.BatchSize <= 0 {
		resolved.BatchSize = 32
	}
	if resolved.Concurrency <= 0 {
		resolved.Concurrency = 4
	}
	if resolved.DefaultTopK <= 0 {
		resolved.DefaultTopK = 6
	}
	return &Adapter{embedder: embedder, store: store, cfg: resolved}, nil
}

// Upsert embeds and stores fragments in batches. Batches run concurrently;
// the first failure cancels the rest and is returned, so a partial insert
// always surfaces as an error of the whole call.
func (a *Adapter) Upsert(ctx context.Context, ownerID, documentID, filename string, fragments []string) error {
	if ownerID == "" {
		return ErrOwnerRequired
	}
	if documentID == "" {
		return fmt.Errorf("rag: document id is required")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.Concurrency)

	for start := 0; start < len(fragments); start += a.cfg.BatchSize {
		end := min(start+a.cfg.BatchSize, len(fragments))
		g.Go(func() error {
			return a.upsertBatch(gctx, ownerID, documentID, filename, start, fragments[start:end])
		})
	}
	return g.Wait()
}

func (a *Adapter) upsertBatch(ctx context.Context, ownerID, documentID, filename string, offset int, batch []string) error {
	vectors, err := a.embedder.Embed(ctx, batch)
	if err != nil {
		return unavailable("embed fragments", err)
	}
	if len(vectors) != len(batch) {
		return unavailable("embed fragments",
			fmt.Errorf("embedder returned %d vectors for %d fragments", len(vectors), len(batch)))
	}

	points := make([]Point, len(batch))
	for i, text := range batch {
		idx := offset + i
		points[i] = Point{
			ID:         FragmentID(ownerID, documentID, idx),
			OwnerID:    ownerID,
			DocumentID: documentID,
			Filename:   filename,
			Index:      idx,
			Text:       text,
			Vector:     vectors[i],
		}
	}

	if err := a.store.Upsert(ctx, points); err != nil {
		return unavailable("upsert", err)
	}
	return nil
}

// Query embeds question and returns the owner's nearest fragments.
func (a *Adapter) Query(ctx context.Context, ownerID, question string, topK int) ([]Result, error) {
	if ownerID == "" {
		return nil, ErrOwnerRequired
	}
	if topK <= 0 {
		topK = a.cfg.DefaultTopK
	}

	vector, err := a.embedQuery(ctx, question)
	if err != nil {
		return nil, unavailable("embed query", err)
	}

	results, err := a.store.Search(ctx, ownerID, vector, topK)
	if err != nil {
		return nil, unavailable("search", err)
	}
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func (a *Adapter) embedQuery(ctx context.Context, question string) ([]float32, error) {
	if qe, ok := a.embedder.(QueryEmbedder); ok {
		return qe.EmbedQuery(ctx, question)
	}
	vectors, err := a.embedder.Embed(ctx, []string{question})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embedder returned no vector")
	}
	return vectors[0], nil
}

// DeleteByDocument removes all fragments of one owner's document.
func (a *Adapter) DeleteByDocument(ctx context.Context, ownerID, documentID string) error {
	if ownerID == "" {
		return ErrOwnerRequired
	}
	if err := a.store.DeleteByDocument(ctx, ownerID, documentID); err != nil {
		return unavailable("delete", err)
	}
	return nil
}
