package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// VectorCache is the read-through cache the CachedEmbedder stores vectors in.
// The Redis cache satisfies it.
type VectorCache interface {
	GetOrSet(ctx context.Context, key string, dest interface{}, ttl time.Duration, loader func(ctx context.Context) (interface{}, error)) error
}

// CachedEmbedder memoizes a genuine Embedder. Keys hash the model name and
// the text, so changing models never serves stale vectors.
type CachedEmbedder struct {
	inner Embedder
	cache VectorCache
	model string
	ttl   time.Duration
}

// NewCachedEmbedder wraps inner. The cache should be namespaced under
// "embedding".
func NewCachedEmbedder(inner Embedder, cache VectorCache, model string, ttl time.Duration) *CachedEmbedder {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &CachedEmbedder{inner: inner, cache: cache, model: model, ttl: ttl}
}

func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var vec []float32
	err := c.cache.GetOrSet(ctx, c.key(text), &vec, c.ttl, func(ctx context.Context) (interface{}, error) {
		return c.inner.Embed(ctx, text)
	})
	if err != nil {
		return nil, err
	}
	return vec, nil
}

func (c *CachedEmbedder) key(text string) string {
	sum := sha256.Sum256([]byte(c.model + "\x00" + text))
	return hex.EncodeToString(sum[:])
}
