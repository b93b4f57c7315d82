package cache

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"kosera-ai-service/internal/domain"
)

// EmbeddingCache is a fixed-size LRU of text → vector. Vectors are copied on
// the way in and out so callers cannot mutate cached entries.
type EmbeddingCache struct {
	entries *lru.Cache[string, []float32]
}

func NewEmbeddingCache(size int) (*EmbeddingCache, error) {
	entries, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding cache: %w", err)
	}
	return &EmbeddingCache{entries: entries}, nil
}

func (c *EmbeddingCache) Get(text string) ([]float32, bool) {
	vec, ok := c.entries.Get(text)
	if !ok {
		return nil, false
	}
	return clone(vec), true
}

func (c *EmbeddingCache) Add(text string, vector []float32) {
	c.entries.Add(text, clone(vector))
}

func (c *EmbeddingCache) Len() int {
	return c.entries.Len()
}

func clone(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}

var _ domain.EmbeddingCache = (*EmbeddingCache)(nil)
