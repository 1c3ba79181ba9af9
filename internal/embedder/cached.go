package embedder

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/54b3r/docqa-go/internal/rag"
)

// Cached memoizes retrieval questions. Only EmbedQuery, which rag.Adapter
// uses for Query, reads or fills the cache; Embed serves ingestion and
// always passes through, so document fragments never enter it.
type Cached struct {
	inner rag.Embedder
	cache *cache.Cache
}

// NewCached returns a Cached embedder whose entries expire after ttl.
func NewCached(inner rag.Embedder, ttl time.Duration) *Cached {
	return &Cached{
		inner: inner,
		cache: cache.New(ttl, 2*ttl),
	}
}

// Embed delegates to the wrapped embedder without caching.
func (c *Cached) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return c.inner.Embed(ctx, texts)
}

// EmbedQuery returns the cached vector for a repeated question.
func (c *Cached) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if v, ok := c.cache.Get(text); ok {
		return v.([]float32), nil
	}
	out, err := c.inner.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for one text", len(out))
	}
	c.cache.SetDefault(text, out[0])
	return out[0], nil
}

// Len reports the number of cached entries, including expired ones not yet
// evicted.
func (c *Cached) Len() int {
	return c.cache.ItemCount()
}
