package rag

import (
	"context"
	"errors"
	"hash/fnv"
	"strings"
	"sync"
)

// wordEmbedder hashes lowercase words into a fixed number of buckets, so
// texts sharing words are close under cosine similarity.
type wordEmbedder struct {
	dims int

	mu    sync.Mutex
	calls int
	err   error
}

func (e *wordEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.calls++
	err := e.err
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, e.dims)
		for _, w := range strings.Fields(strings.ToLower(t)) {
			h := fnv.New32a()
			_, _ = h.Write([]byte(strings.Trim(w, ".,?!")))
			v[h.Sum32()%uint32(e.dims)]++
		}
		out[i] = v
	}
	return out, nil
}

// failingStore fails every call with err.
type failingStore struct{ err error }

func (s failingStore) Upsert(context.Context, []Point) error { return s.err }
func (s failingStore) Search(context.Context, string, []float32, int) ([]Result, error) {
	return nil, s.err
}
func (s failingStore) DeleteByDocument(context.Context, string, string) error { return s.err }
func (s failingStore) Close() error                                         { return nil }

var errBackendDown = errors.New("connection refused")

func newTestAdapter(t interface{ Fatalf(string, ...any) }, store VectorStore) *Adapter {
	a, err := NewAdapter(&wordEmbedder{dims: 64}, store, &AdapterConfig{BatchSize: 2, Concurrency: 3})
	if err != nil {
		t.Fatalf("NewAdapter: %v", err)
	}
	return a
}
