// Package embedding defines the text embedding abstraction used by similarity
// search and the decision executor. The embedding model itself is an external
// collaborator; this package ships a deterministic local embedder for tests
// and development plus a caching decorator for production wiring.
package embedding

import (
	"context"
	"hash/fnv"
	"math"
)

// Embedder converts text to vector embeddings. Implementations are safe for
// concurrent use.
type Embedder interface {
	// Embed converts a single text to an embedding vector.
	Embed(ctx context.Context, modelID, text string) ([]float32, error)

	// Dimensions returns the embedding vector size.
	Dimensions() int
}

// HashEmbedder generates deterministic embeddings from a text hash. Useful
// for tests and local development: identical texts map to identical vectors,
// so similarity search stays meaningful without a real model.
type HashEmbedder struct {
	dimensions int
}

// NewHashEmbedder creates a deterministic embedder with the given dimensions
// (default 384 when <= 0).
func NewHashEmbedder(dimensions int) *HashEmbedder {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &HashEmbedder{dimensions: dimensions}
}

// Embed creates a deterministic embedding from the text hash.
func (e *HashEmbedder) Embed(ctx context.Context, modelID, text string) ([]float32, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	h := fnv.New64a()
	h.Write([]byte(modelID))
	h.Write([]byte{0})
	h.Write([]byte(text))
	seed := h.Sum64()

	vec := make([]float32, e.dimensions)
	for i := range vec {
		// LCG over the hash keeps the vector reproducible.
		seed = seed*6364136223846793005 + 1442695040888963407
		vec[i] = float32(int64(seed)) / float32(math.MaxInt64)
	}

	return normalize(vec), nil
}

// Dimensions returns the embedding size.
func (e *HashEmbedder) Dimensions() int { return e.dimensions }

// normalize converts the vector to unit length.
func normalize(vec []float32) []float32 {
	var norm float32
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return vec
	}
	norm = float32(math.Sqrt(float64(norm)))
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = v / norm
	}
	return out
}
