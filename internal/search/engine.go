package search

import (
	"context"
	"sort"

	"github.com/aman-cerp/smgrep/internal/embed"
	"github.com/aman-cerp/smgrep/internal/store"
)

// structural boost tiers. Each bonus is a fraction applied multiplicatively
// to a candidate's blended score; the largest (classBonus) is capped at 5%
// so it can never flip the order of two results whose blended scores
// already differ by more than that margin.
const (
	anchorBonus    = 0.01
	classBonus     = 0.05
	interfaceBonus = 0.035
	typeAliasBonus = 0.03
	blockBonus     = 0.02
	otherBonus     = 0.0
)

// EngineConfig configures an Engine's recall widening and reranking blend,
// normally sourced from config.Config.
type EngineConfig struct {
	Embedder     embed.Embedder
	Store        *store.Store
	Oversampling int
	MinRecall    int
	ColbertBlend float32
	PerFileLimit int
}

// Engine composes the embedder and vector store into the ranked search
// pipeline described in spec.md §4.5.
type Engine struct {
	cfg EngineConfig
}

// NewEngine builds an Engine from cfg.
func NewEngine(cfg EngineConfig) *Engine {
	return &Engine{cfg: cfg}
}

// Search encodes query, asks the store for 2×limit reranked candidates,
// applies the structural boost, re-sorts, caps results per file, and
// truncates to limit.
func (e *Engine) Search(ctx context.Context, query string, limit int, pathFilter string, rerank bool) ([]Result, error) {
	if limit <= 0 {
		return nil, nil
	}

	emb, err := e.cfg.Embedder.EncodeQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	params := store.SearchParams{
		DenseQuery:   emb.Dense,
		Limit:        limit * 2,
		PathFilter:   pathFilter,
		Oversampling: e.cfg.Oversampling,
		MinRecall:    e.cfg.MinRecall,
		ColbertBlend: e.cfg.ColbertBlend,
	}
	if rerank {
		params.ColbertQuery = emb.Colbert
	}

	candidates, err := e.cfg.Store.Search(ctx, params)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(candidates))
	for _, c := range candidates {
		results = append(results, Result{
			Path:      c.Record.Path,
			Content:   c.Record.Content,
			Score:     structuralBoost(c.Blended, c.Record),
			StartLine: c.Record.StartLine,
			NumLines:  c.Record.EndLine - c.Record.StartLine,
			ChunkType: string(c.Record.ChunkType),
			IsAnchor:  c.Record.IsAnchor,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if e.cfg.PerFileLimit > 0 {
		results = capPerFile(results, e.cfg.PerFileLimit)
	}

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func structuralBoost(score float32, rec *store.VectorRecord) float32 {
	bonus := float32(0)
	switch rec.ChunkType {
	case store.ChunkTypeClass:
		bonus = classBonus
	case store.ChunkTypeInterface:
		bonus = interfaceBonus
	case store.ChunkTypeTypeAlias:
		bonus = typeAliasBonus
	case store.ChunkTypeBlock:
		bonus = blockBonus
	default:
		bonus = otherBonus
	}
	if rec.IsAnchor {
		bonus += anchorBonus
	}
	return score * (1 + bonus)
}

// capPerFile walks results in order, keeping at most limit entries per path
// and preserving the overall ranking order.
func capPerFile(results []Result, limit int) []Result {
	counts := make(map[string]int, len(results))
	out := make([]Result, 0, len(results))
	for _, r := range results {
		if counts[r.Path] >= limit {
			continue
		}
		counts[r.Path]++
		out = append(out, r)
	}
	return out
}
