package embed

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeBatchPreservesOrder(t *testing.T) {
	e := NewHybridEmbedder(32, 8, 16, "")
	p := NewPool(e, 3, 4, time.Second)
	defer p.Shutdown()

	texts := []string{"alpha", "beta", "gamma", "delta", "epsilon", "zeta", "eta"}
	out, err := p.ComputeBatch(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, out, len(texts))

	direct, err := e.ComputeHybrid(context.Background(), texts)
	require.NoError(t, err)
	for i := range texts {
		assert.Equal(t, direct[i].Dense, out[i].Dense)
	}
}

func TestComputeBatchEmptyInput(t *testing.T) {
	e := NewHybridEmbedder(32, 8, 16, "")
	p := NewPool(e, 2, 4, time.Second)
	defer p.Shutdown()

	out, err := p.ComputeBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestComputeBatchRespectsContextCancellation(t *testing.T) {
	e := NewHybridEmbedder(32, 8, 16, "")
	p := NewPool(e, 1, 4, time.Second)
	defer p.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.ComputeBatch(ctx, []string{"a", "b", "c"})
	assert.Error(t, err)
}

func TestShutdownStopsWorkers(t *testing.T) {
	e := NewHybridEmbedder(32, 8, 16, "")
	p := NewPool(e, 2, 4, time.Second)
	p.Shutdown()

	select {
	case <-p.done:
	default:
		t.Fatal("expected pool run loop to have exited after Shutdown")
	}
}
