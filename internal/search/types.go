// Package search composes the embedder and vector store into the ranked
// search pipeline: encode the query, recall and rerank from the store,
// apply a structural boost, cap results per file, and truncate to the
// requested limit.
package search

// Result is one ranked hit returned to a caller.
type Result struct {
	Path      string
	Content   string
	Score     float32
	StartLine int
	NumLines  int
	ChunkType string
	IsAnchor  bool
}
