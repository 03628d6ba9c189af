package store

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/aman-cerp/smgrep/internal/embed"
)

// Store composes the durable VectorRecord table with an in-memory HNSW
// index over its dense column. There is one Store per StoreId; writes are
// serialized by the caller (the daemon's single indexing task per store).
type Store struct {
	table *Table
	ann   VectorStore
	cfg   VectorStoreConfig
}

// Open opens (or creates) the table at path and rebuilds the ANN index
// from its current contents.
func Open(ctx context.Context, path string, cfg VectorStoreConfig) (*Store, error) {
	table, err := OpenTable(path)
	if err != nil {
		return nil, err
	}

	ann, err := NewHNSWStore(cfg)
	if err != nil {
		table.Close()
		return nil, fmt.Errorf("create ann index: %w", err)
	}

	s := &Store{table: table, ann: ann, cfg: cfg}
	if err := s.rebuild(ctx); err != nil {
		table.Close()
		ann.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) rebuild(ctx context.Context) error {
	ids, vectors, err := s.table.AllForRebuild(ctx)
	if err != nil {
		return fmt.Errorf("rebuild ann index: %w", err)
	}
	if len(ids) == 0 {
		return nil
	}
	return s.ann.Add(ctx, ids, vectors)
}

// IsEmpty reports whether the store holds no records at all.
func (s *Store) IsEmpty(ctx context.Context) (bool, error) {
	return s.table.Empty(ctx)
}

// InsertBatch atomically replaces every record for each path represented
// in records, in both the durable table and the ANN index.
func (s *Store) InsertBatch(ctx context.Context, records []*VectorRecord) error {
	if len(records) == 0 {
		return nil
	}

	paths := map[string]struct{}{}
	for _, r := range records {
		paths[r.Path] = struct{}{}
	}
	for p := range paths {
		if existing, err := s.table.DeleteByPath(ctx, p); err == nil {
			s.ann.Delete(ctx, existing)
		}
	}

	if err := s.table.Upsert(ctx, records); err != nil {
		return err
	}

	ids := make([]string, len(records))
	vectors := make([][]float32, len(records))
	for i, r := range records {
		ids[i] = r.ID
		vectors[i] = r.Dense
	}
	return s.ann.Add(ctx, ids, vectors)
}

// DeleteFile removes every record for path.
func (s *Store) DeleteFile(ctx context.Context, path string) error {
	ids, err := s.table.DeleteByPath(ctx, path)
	if err != nil {
		return err
	}
	return s.ann.Delete(ctx, ids)
}

// Search runs the two-stage hybrid retrieval algorithm: ANN dense recall,
// an optional path-prefix filter (retried once at a wider recall if it
// starves the result set), then an optional ColBERT MaxSim rerank blended
// with the dense score.
func (s *Store) Search(ctx context.Context, params SearchParams) ([]*SearchResult, error) {
	if params.Limit <= 0 {
		return nil, nil
	}
	oversampling := params.Oversampling
	if oversampling <= 0 {
		oversampling = 2
	}
	minRecall := params.MinRecall
	if minRecall <= 0 {
		minRecall = 100
	}
	blendAlpha := params.ColbertBlend
	if blendAlpha <= 0 {
		blendAlpha = 0.7
	}

	k1 := params.Limit * oversampling
	if k1 < minRecall {
		k1 = minRecall
	}

	results, err := s.searchOnce(ctx, params, k1, blendAlpha)
	if err != nil {
		return nil, err
	}
	if params.PathFilter != "" && len(results) < params.Limit {
		results, err = s.searchOnce(ctx, params, k1*4, blendAlpha)
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}

func (s *Store) searchOnce(ctx context.Context, params SearchParams, k1 int, blendAlpha float32) ([]*SearchResult, error) {
	candidates, err := s.ann.Search(ctx, params.DenseQuery, k1)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	ids := make([]string, len(candidates))
	scoreByID := make(map[string]float32, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ID
		scoreByID[c.ID] = c.Score
	}

	records, err := s.table.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}

	var filtered []*VectorRecord
	if params.PathFilter != "" {
		for _, r := range records {
			if strings.HasPrefix(r.Path, params.PathFilter) {
				filtered = append(filtered, r)
			}
		}
	} else {
		filtered = records
	}

	out := make([]*SearchResult, 0, len(filtered))
	rerank := params.ColbertQuery != nil
	for _, r := range filtered {
		denseScore := scoreByID[r.ID]
		var colbertScore, blended float32
		if rerank {
			colbertScore = embed.MaxSim(params.ColbertQuery, r.Colbert)
			blended = blendAlpha*colbertScore + (1-blendAlpha)*denseScore
		} else {
			blended = denseScore
		}
		out = append(out, &SearchResult{
			Record:  r,
			Dense:   denseScore,
			Colbert: colbertScore,
			Blended: blended,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Blended != out[j].Blended {
			return out[i].Blended > out[j].Blended
		}
		if out[i].Record.Path != out[j].Record.Path {
			return out[i].Record.Path < out[j].Record.Path
		}
		return out[i].Record.StartLine < out[j].Record.StartLine
	})

	if len(out) > params.Limit {
		out = out[:params.Limit]
	}
	return out, nil
}

// Close releases both the table and the ANN index.
func (s *Store) Close() error {
	annErr := s.ann.Close()
	tableErr := s.table.Close()
	if annErr != nil {
		return annErr
	}
	return tableErr
}
