package embedding

import (
	"context"
	"fmt"

	"github.com/dgraph-io/ristretto"
)

// CachedEmbedder decorates another Embedder with a ristretto cache keyed by
// model id and text. Similarity search re-embeds the same facts across
// pipeline runs; the cache keeps those calls off the wire.
type CachedEmbedder struct {
	inner Embedder
	cache *ristretto.Cache
}

// CacheOptions tunes the underlying ristretto cache.
type CacheOptions struct {
	// MaxEntries bounds the number of cached vectors.
	MaxEntries int64
}

// NewCachedEmbedder wraps inner with an embedding cache.
func NewCachedEmbedder(inner Embedder, optFns ...func(o *CacheOptions)) (*CachedEmbedder, error) {
	opts := CacheOptions{MaxEntries: 10_000}
	for _, fn := range optFns {
		fn(&opts)
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: opts.MaxEntries * 10,
		MaxCost:     opts.MaxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}

	return &CachedEmbedder{inner: inner, cache: cache}, nil
}

// Embed returns the cached vector when present, delegating otherwise.
func (e *CachedEmbedder) Embed(ctx context.Context, modelID, text string) ([]float32, error) {
	key := modelID + "\x00" + text
	if v, ok := e.cache.Get(key); ok {
		if vec, ok := v.([]float32); ok {
			return vec, nil
		}
	}

	vec, err := e.inner.Embed(ctx, modelID, text)
	if err != nil {
		return nil, err
	}

	e.cache.Set(key, vec, 1)

	return vec, nil
}

// Dimensions returns the inner embedder's vector size.
func (e *CachedEmbedder) Dimensions() int { return e.inner.Dimensions() }

// Wait blocks until pending cache admissions are applied. Ristretto admits
// entries asynchronously; callers that need read-after-write (tests, mostly)
// wait explicitly.
func (e *CachedEmbedder) Wait() { e.cache.Wait() }

// Close releases cache resources.
func (e *CachedEmbedder) Close() { e.cache.Close() }
