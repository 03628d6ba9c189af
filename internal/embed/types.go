// Package embed implements the Embedder interface and the bounded-queue
// worker pool that fans batches of chunk text out across it.
package embed

import (
	"context"
	"math"
)

// HybridEmbedding is the dense + multi-vector output for one piece of text.
type HybridEmbedding struct {
	Dense   []float32   // DenseDim-length unit vector
	Colbert [][]float32 // one ColbertDim-length unit vector per token
	Scale   float32     // ColBERT score scale factor, carried through to storage
}

// Embedder is the narrow interface the search engine and indexer depend on.
// EncodeQuery runs outside the worker pool (queries are latency-sensitive,
// one-at-a-time); ComputeHybrid is the batch path used during indexing.
type Embedder interface {
	EncodeQuery(ctx context.Context, query string) (HybridEmbedding, error)
	ComputeHybrid(ctx context.Context, texts []string) ([]HybridEmbedding, error)
	IsReady() bool
}

// normalizeVector normalizes a vector to unit length.
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}

	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v
	}

	normalized := make([]float32, len(v))
	for i, val := range v {
		normalized[i] = float32(float64(val) / magnitude)
	}
	return normalized
}
