package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recordWithVector(path string, idx int, dense []float32, colbert [][]float32) *VectorRecord {
	return &VectorRecord{
		ID:           path + ":" + string(rune('0'+idx)),
		Path:         path,
		Hash:         "h",
		Content:      "content",
		StartLine:    1,
		EndLine:      2,
		ChunkIndex:   idx,
		ChunkType:    ChunkTypeOther,
		Dense:        dense,
		Colbert:      colbert,
		ColbertScale: 1.0,
	}
}

func TestStoreIsEmptyInitially(t *testing.T) {
	s, err := Open(context.Background(), "", DefaultVectorStoreConfig(3))
	require.NoError(t, err)
	defer s.Close()

	empty, err := s.IsEmpty(context.Background())
	require.NoError(t, err)
	assert.True(t, empty)
}

func TestStoreInsertBatchAndSearchReturnsClosest(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, "", DefaultVectorStoreConfig(3))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.InsertBatch(ctx, []*VectorRecord{
		recordWithVector("a.go", 0, []float32{1, 0, 0}, nil),
		recordWithVector("b.go", 0, []float32{0, 1, 0}, nil),
	}))

	results, err := s.Search(ctx, SearchParams{
		DenseQuery: []float32{1, 0, 0},
		Limit:      1,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a.go", results[0].Record.Path)
}

func TestStoreInsertBatchReplacesExistingRecordsForPath(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, "", DefaultVectorStoreConfig(2))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.InsertBatch(ctx, []*VectorRecord{
		recordWithVector("a.go", 0, []float32{1, 0}, nil),
		recordWithVector("a.go", 1, []float32{0, 1}, nil),
	}))
	require.NoError(t, s.InsertBatch(ctx, []*VectorRecord{
		recordWithVector("a.go", 0, []float32{1, 0}, nil),
	}))

	empty, err := s.IsEmpty(ctx)
	require.NoError(t, err)
	assert.False(t, empty)

	results, err := s.Search(ctx, SearchParams{DenseQuery: []float32{1, 0}, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestStoreDeleteFileRemovesRecords(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, "", DefaultVectorStoreConfig(2))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.InsertBatch(ctx, []*VectorRecord{recordWithVector("a.go", 0, []float32{1, 0}, nil)}))
	require.NoError(t, s.DeleteFile(ctx, "a.go"))

	empty, err := s.IsEmpty(ctx)
	require.NoError(t, err)
	assert.True(t, empty)
}

func TestStoreSearchAppliesPathFilter(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, "", DefaultVectorStoreConfig(2))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.InsertBatch(ctx, []*VectorRecord{
		recordWithVector("pkg/a.go", 0, []float32{1, 0}, nil),
		recordWithVector("other/b.go", 0, []float32{1, 0}, nil),
	}))

	results, err := s.Search(ctx, SearchParams{
		DenseQuery: []float32{1, 0},
		Limit:      10,
		PathFilter: "pkg/",
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "pkg/a.go", results[0].Record.Path)
}

func TestStoreSearchRerankBlendsColbertScore(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, "", DefaultVectorStoreConfig(2))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.InsertBatch(ctx, []*VectorRecord{
		recordWithVector("close-dense.go", 0, []float32{1, 0}, [][]float32{{0, 1}}),
		recordWithVector("close-colbert.go", 0, []float32{0.9, 0.1}, [][]float32{{1, 0}}),
	}))

	results, err := s.Search(ctx, SearchParams{
		DenseQuery:   []float32{1, 0},
		ColbertQuery: [][]float32{{1, 0}},
		Limit:        10,
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "close-colbert.go", results[0].Record.Path)
}

func TestStoreSearchRebuildsFromExistingTable(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, "", DefaultVectorStoreConfig(2))
	require.NoError(t, err)

	require.NoError(t, s.InsertBatch(ctx, []*VectorRecord{recordWithVector("a.go", 0, []float32{1, 0}, nil)}))

	ids, vectors, err := s.table.AllForRebuild(ctx)
	require.NoError(t, err)
	require.Len(t, ids, 1)
	require.Len(t, vectors, 1)
	s.Close()
}

func TestStoreSearchReturnsNilForZeroLimit(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, "", DefaultVectorStoreConfig(2))
	require.NoError(t, err)
	defer s.Close()

	results, err := s.Search(ctx, SearchParams{DenseQuery: []float32{1, 0}, Limit: 0})
	require.NoError(t, err)
	assert.Nil(t, results)
}
