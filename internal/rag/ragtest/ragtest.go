// Package ragtest provides a deterministic embedder for tests that need a
// working vector index without a model server.
package ragtest

import (
	"context"
	"hash/fnv"
	"strings"
	"sync"
)

// WordEmbedder hashes lowercase words into Dims buckets, so texts sharing
// words are close under cosine similarity. Setting Err makes every call
// fail.
type WordEmbedder struct {
	Dims int

	mu    sync.Mutex
	calls int
	Err   error
}

// NewWordEmbedder returns a WordEmbedder with 64 dimensions.
func NewWordEmbedder() *WordEmbedder {
	return &WordEmbedder{Dims: 64}
}

// Embed implements rag.Embedder.
func (e *WordEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.calls++
	err := e.Err
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, e.Dims)
		for _, w := range strings.Fields(strings.ToLower(t)) {
			h := fnv.New32a()
			_, _ = h.Write([]byte(strings.Trim(w, ".,?!")))
			v[h.Sum32()%uint32(e.Dims)]++
		}
		out[i] = v
	}
	return out, nil
}

// Calls returns the number of Embed calls so far.
func (e *WordEmbedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}
