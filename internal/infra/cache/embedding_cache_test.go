package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddingCache_GetAdd(t *testing.T) {
	c, err := NewEmbeddingCache(4)
	require.NoError(t, err)

	_, ok := c.Get("kos murah")
	assert.False(t, ok)

	c.Add("kos murah", []float32{0.1, 0.2})
	got, ok := c.Get("kos murah")
	require.True(t, ok)
	assert.Equal(t, []float32{0.1, 0.2}, got)
	assert.Equal(t, 1, c.Len())
}

func TestEmbeddingCache_CopiesVectors(t *testing.T) {
	c, err := NewEmbeddingCache(4)
	require.NoError(t, err)

	in := []float32{1, 2, 3}
	c.Add("a", in)
	in[0] = 99

	out, _ := c.Get("a")
	assert.Equal(t, float32(1), out[0])

	out[1] = 42
	again, _ := c.Get("a")
	assert.Equal(t, float32(2), again[1])
}

func TestEmbeddingCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c, err := NewEmbeddingCache(2)
	require.NoError(t, err)

	c.Add("a", []float32{1})
	c.Add("b", []float32{2})
	_, _ = c.Get("a")
	c.Add("c", []float32{3})

	_, okA := c.Get("a")
	_, okB := c.Get("b")
	_, okC := c.Get("c")
	assert.True(t, okA)
	assert.False(t, okB)
	assert.True(t, okC)
}

func TestNewEmbeddingCache_InvalidSize(t *testing.T) {
	_, err := NewEmbeddingCache(0)
	assert.Error(t, err)
}
