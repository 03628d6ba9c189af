// Package store persists VectorRecords per indexed repository and answers
// hybrid (dense ANN + ColBERT rerank) search queries against them.
package store

import (
	"context"
	"fmt"
)

// ChunkType classifies a VectorRecord for the structural boost applied
// during search ranking.
type ChunkType string

const (
	ChunkTypeClass     ChunkType = "class"
	ChunkTypeInterface ChunkType = "interface"
	ChunkTypeTypeAlias ChunkType = "type_alias"
	ChunkTypeBlock     ChunkType = "block"
	ChunkTypeOther     ChunkType = "other"
)

// VectorRecord is one indexed chunk: its source location, content, and the
// dense + ColBERT vectors computed for it.
type VectorRecord struct {
	ID          string // "{path}:{chunk_index}"
	Path        string // repo-relative
	Hash        string // SHA-256 of the file's bytes at index time
	Content     string
	StartLine   int // 0-based, inclusive
	EndLine     int // 0-based, exclusive
	ChunkIndex  int
	IsAnchor    bool
	ChunkType   ChunkType
	ContextPrev string
	ContextNext string

	Dense        []float32   // exactly DenseDim entries
	Colbert      [][]float32 // <= ColbertMaxLength rows, each ColbertDim entries
	ColbertScale float32
}

// ErrDimensionMismatch indicates the query or stored vector dimensions
// don't match the store's configured dimensions. The store that raised it
// is considered corrupt (StoreCorrupt) until cleaned and rebuilt.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}

// SearchParams configures a two-stage hybrid search.
type SearchParams struct {
	DenseQuery   []float32
	ColbertQuery [][]float32
	Limit        int
	PathFilter   string  // repo-relative prefix match; empty means no filter
	Oversampling int     // recall multiplier for stage 1, default 2
	MinRecall    int     // floor for stage 1 candidate count, default 100
	ColbertBlend float32 // weight given to the ColBERT score, default 0.7
}

// SearchResult is one ranked hit: the record plus its blended score.
type SearchResult struct {
	Record  *VectorRecord
	Dense   float32
	Colbert float32
	Blended float32
}

// VectorResult is a single ANN recall hit, as returned by the underlying
// HNSW graph before ColBERT reranking or structural boosting.
type VectorResult struct {
	ID       string
	Distance float32
	Score    float32
}

// VectorStoreConfig configures the in-memory HNSW ANN index over dense
// vectors.
type VectorStoreConfig struct {
	Dimensions int
	Metric     string // "cos" or "l2", default "cos"
	M          int    // max connections per layer, default 16
	EfSearch   int    // query-time search width, default 20
}

// DefaultVectorStoreConfig returns sensible defaults for a dense ANN index.
func DefaultVectorStoreConfig(dimensions int) VectorStoreConfig {
	return VectorStoreConfig{
		Dimensions: dimensions,
		Metric:     "cos",
		M:          16,
		EfSearch:   20,
	}
}

// VectorStore provides approximate nearest-neighbor recall over dense
// vectors, keyed by the same string IDs as the VectorRecord table.
type VectorStore interface {
	Add(ctx context.Context, ids []string, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)
	Delete(ctx context.Context, ids []string) error
	AllIDs() []string
	Contains(id string) bool
	Count() int
	Close() error
}
