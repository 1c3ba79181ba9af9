package rag

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// MemoryStore is an in-process VectorStore using brute-force cosine
// similarity. It is intended for local development and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	points map[string]Point
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{points: make(map[string]Point)}
}

// Upsert stores or replaces points by ID.
func (s *MemoryStore) Upsert(_ context.Context, points []Point) error {
	for _, p := range points {
		if p.ID == "" || p.OwnerID == "" {
			return fmt.Errorf("memory: point id and owner are required")
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range points {
		p.Vector = append([]float32(nil), p.Vector...)
		s.points[p.ID] = p
	}
	return nil
}

// Search scores only ownerID's points. Ties keep a stable (document, index)
// order so results are deterministic.
func (s *MemoryStore) Search(ctx context.Context, ownerID string, vector []float32, topK int) ([]Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]Result, 0)
	for _, p := range s.points {
		if p.OwnerID != ownerID {
			continue
		}
		results = append(results, Result{
			OwnerID:    p.OwnerID,
			DocumentID: p.DocumentID,
			Filename:   p.Filename,
			Index:      p.Index,
			Text:       p.Text,
			Score:      cosine(p.Vector, vector),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].DocumentID != results[j].DocumentID {
			return results[i].DocumentID < results[j].DocumentID
		}
		return results[i].Index < results[j].Index
	})
	if topK >= 0 && len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// DeleteByDocument removes every point of (ownerID, documentID).
func (s *MemoryStore) DeleteByDocument(_ context.Context, ownerID, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, p := range s.points {
		if p.OwnerID == ownerID && p.DocumentID == documentID {
			delete(s.points, id)
		}
	}
	return nil
}

// Len reports how many points are stored.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.points)
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

func cosine(a, b []float32) float32 {
	n := min(len(a), len(b))
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
