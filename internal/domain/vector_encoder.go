package domain

import (
	"context"
)

// VectorEncoder is the loaded model capability: encode(texts) -> vectors.
// Implementations must return exactly one vector per input, in input order.
type VectorEncoder interface {
	Encode(ctx context.Context, texts []string) ([][]float32, error)
	Version() string
	Close() error
}

// ConcurrentEncoder is implemented by encoders verified safe for concurrent
// Encode calls. Encoders that do not implement it are serialized.
type ConcurrentEncoder interface {
	ConcurrentSafe() bool
}

// EncoderLoader builds the model once at startup.
type EncoderLoader func(ctx context.Context) (VectorEncoder, error)

// Embedder is the request-facing side of the encoder handle.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// EmbeddingCache stores vectors keyed by their exact input text.
type EmbeddingCache interface {
	Get(text string) ([]float32, bool)
	Add(text string, vector []float32)
	Len() int
}
