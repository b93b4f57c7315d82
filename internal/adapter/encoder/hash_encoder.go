package encoder

import (
	"context"
	"hash/fnv"
	"math"

	"kosera-ai-service/internal/domain"
)

// HashEncoder returns deterministic unit vectors seeded from an FNV hash of
// the text. It carries no semantics and exists for local runs without model
// weights.
type HashEncoder struct {
	dim int
}

func NewHashEncoder(dim int) *HashEncoder {
	if dim <= 0 {
		dim = 384
	}
	return &HashEncoder{dim: dim}
}

func (e *HashEncoder) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, s := range texts {
		out[i] = hashVector(s, e.dim)
	}
	return out, nil
}

func (e *HashEncoder) Version() string {
	return "hash"
}

func (e *HashEncoder) ConcurrentSafe() bool {
	return true
}

func (e *HashEncoder) Close() error {
	return nil
}

func hashVector(s string, dim int) []float32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	seed := h.Sum32()

	v := make([]float32, dim)
	var norm float64
	for i := range v {
		seed = seed*1664525 + 1013904223
		v[i] = float32(seed%20000)/10000.0 - 1.0
		norm += float64(v[i]) * float64(v[i])
	}
	if norm == 0 {
		return v
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range v {
		v[i] *= scale
	}
	return v
}

var (
	_ domain.VectorEncoder     = (*HashEncoder)(nil)
	_ domain.ConcurrentEncoder = (*HashEncoder)(nil)
)
