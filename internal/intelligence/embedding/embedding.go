// Package embedding defines the text-embedding and similarity capabilities the
// engine consumes, plus their implementations: an HTTP client for an external
// embeddings endpoint, a Redis-cached decorator, and the deterministic
// keyword-overlap strategy used when no genuine provider is reachable.
package embedding

import (
	"context"
	"math"
)

// Embedder converts text to a dense vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Similarity scores two texts in [0,1].
type Similarity interface {
	Similarity(ctx context.Context, a, b string) (float64, error)
	// Degraded reports whether the strategy is the keyword-overlap fallback.
	Degraded() bool
}

// Cosine returns the cosine similarity of a and b clamped to [0,1]. Vectors of
// different length or zero norm give 0.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(na) * math.Sqrt(nb))
	if sim < 0 {
		return 0
	}
	if sim > 1 {
		return 1
	}
	return sim
}

// Centroid returns the element-wise mean of vecs. Vectors whose length differs
// from the first are ignored.
func Centroid(vecs [][]float32) []float32 {
	if len(vecs) == 0 {
		return nil
	}
	dim := len(vecs[0])
	out := make([]float32, dim)
	n := 0
	for _, v := range vecs {
		if len(v) != dim {
			continue
		}
		for i := range v {
			out[i] += v[i]
		}
		n++
	}
	if n == 0 {
		return nil
	}
	for i := range out {
		out[i] /= float32(n)
	}
	return out
}

// EmbeddingSimilarity scores texts with a genuine Embedder. It is itself an
// Embedder so callers can precompute reference vectors.
type EmbeddingSimilarity struct {
	embedder Embedder
}

// NewEmbeddingSimilarity wraps e.
func NewEmbeddingSimilarity(e Embedder) *EmbeddingSimilarity {
	return &EmbeddingSimilarity{embedder: e}
}

func (s *EmbeddingSimilarity) Similarity(ctx context.Context, a, b string) (float64, error) {
	va, err := s.embedder.Embed(ctx, a)
	if err != nil {
		return 0, err
	}
	vb, err := s.embedder.Embed(ctx, b)
	if err != nil {
		return 0, err
	}
	return Cosine(va, vb), nil
}

func (s *EmbeddingSimilarity) Embed(ctx context.Context, text string) ([]float32, error) {
	return s.embedder.Embed(ctx, text)
}

func (s *EmbeddingSimilarity) Degraded() bool { return false }
