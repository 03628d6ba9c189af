package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHNSWAddAndSearchFindsClosestVector(t *testing.T) {
	s, err := NewHNSWStore(DefaultVectorStoreConfig(3))
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.Add(ctx, []string{"a", "b", "c"}, [][]float32{
		{1, 0, 0},
		{0, 1, 0},
		{0, 0, 1},
	}))

	results, err := s.Search(ctx, []float32{1, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].ID)
}

func TestHNSWAddRejectsDimensionMismatch(t *testing.T) {
	s, err := NewHNSWStore(DefaultVectorStoreConfig(3))
	require.NoError(t, err)
	defer s.Close()

	err = s.Add(context.Background(), []string{"a"}, [][]float32{{1, 0}})
	assert.Error(t, err)
	var dimErr ErrDimensionMismatch
	assert.ErrorAs(t, err, &dimErr)
}

func TestHNSWReAddSameIDReplaces(t *testing.T) {
	s, err := NewHNSWStore(DefaultVectorStoreConfig(2))
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.Add(ctx, []string{"a"}, [][]float32{{1, 0}}))
	require.NoError(t, s.Add(ctx, []string{"a"}, [][]float32{{0, 1}}))

	assert.Equal(t, 1, s.Count())
	results, err := s.Search(ctx, []float32{0, 1}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].ID)
}

func TestHNSWDeleteRemovesFromResults(t *testing.T) {
	s, err := NewHNSWStore(DefaultVectorStoreConfig(2))
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.Add(ctx, []string{"a", "b"}, [][]float32{{1, 0}, {0, 1}}))
	require.NoError(t, s.Delete(ctx, []string{"a"}))

	assert.False(t, s.Contains("a"))
	assert.Equal(t, 1, s.Count())
}

func TestHNSWSearchOnEmptyGraphReturnsEmpty(t *testing.T) {
	s, err := NewHNSWStore(DefaultVectorStoreConfig(2))
	require.NoError(t, err)
	defer s.Close()

	results, err := s.Search(context.Background(), []float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}
