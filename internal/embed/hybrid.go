package embed

import (
	"context"
	"strings"
)

// HybridEmbedder is the deterministic stand-in for the real dense +
// ColBERT models named by Config.DenseModel/ColbertModel. Real model
// inference is external to this daemon; this embedder exists so the rest
// of the pipeline (worker pool, store, search, structural boost) has a
// concrete, always-available implementation to run against.
type HybridEmbedder struct {
	denseDim    int
	colbertDim  int
	maxTokens   int
	queryPrefix string
}

// NewHybridEmbedder builds an embedder producing denseDim-length dense
// vectors and colbertDim-length per-token vectors (capped at maxTokens
// tokens per text). queryPrefix is prepended to queries only, matching
// instruction-tuned embedding models that distinguish query vs. passage
// encoding.
func NewHybridEmbedder(denseDim, colbertDim, maxTokens int, queryPrefix string) *HybridEmbedder {
	if denseDim <= 0 {
		denseDim = 384
	}
	if colbertDim <= 0 {
		colbertDim = 96
	}
	if maxTokens <= 0 {
		maxTokens = 256
	}
	return &HybridEmbedder{
		denseDim:    denseDim,
		colbertDim:  colbertDim,
		maxTokens:   maxTokens,
		queryPrefix: queryPrefix,
	}
}

// EncodeQuery embeds a single search query.
func (e *HybridEmbedder) EncodeQuery(ctx context.Context, query string) (HybridEmbedding, error) {
	text := query
	if e.queryPrefix != "" {
		text = e.queryPrefix + query
	}
	return e.encode(text), nil
}

// ComputeHybrid embeds a batch of chunk texts, in order.
func (e *HybridEmbedder) ComputeHybrid(ctx context.Context, texts []string) ([]HybridEmbedding, error) {
	out := make([]HybridEmbedding, len(texts))
	for i, t := range texts {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		out[i] = e.encode(t)
	}
	return out, nil
}

// IsReady always returns true: there is no remote model to warm up or
// connect to.
func (e *HybridEmbedder) IsReady() bool { return true }

func (e *HybridEmbedder) encode(text string) HybridEmbedding {
	dense := denseVector(text, e.denseDim)
	colbert := tokenVectors(text, e.colbertDim, e.maxTokens)
	return HybridEmbedding{
		Dense:   dense,
		Colbert: colbert,
		Scale:   1.0,
	}
}

// MaxSim computes the ColBERT late-interaction score between a query's
// token vectors and a document's token vectors: for every query token,
// take its best-matching document token (max cosine similarity, since all
// vectors are unit length), then sum across query tokens. A document with
// no token vectors scores 0.
func MaxSim(query, doc [][]float32) float32 {
	if len(doc) == 0 {
		return 0
	}
	var total float32
	for _, q := range query {
		best := dot(q, doc[0])
		for _, d := range doc[1:] {
			if s := dot(q, d); s > best {
				best = s
			}
		}
		total += best
	}
	return total
}

func dot(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float32
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}

// joinForEmbedding joins the non-blank parts (for example a chunk's context
// crumbs plus its content) with newlines into one composite embedding text.
// Nothing in the indexing pipeline calls it; chunks are embedded from their
// content alone.
func joinForEmbedding(parts ...string) string {
	nonEmpty := parts[:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, "\n")
}
