package embed

import (
	"context"
	"fmt"
	"time"
)

// job is one sub-batch of texts dispatched to a worker, with a channel for
// the ordered reply.
type job struct {
	texts []string
	reply chan jobResult
}

type jobResult struct {
	embeddings []HybridEmbedding
	err        error
}

// Pool is a bounded-queue worker pool that fans ComputeHybrid batches out
// across a fixed number of goroutines, each wrapping the same Embedder.
// Queries (EncodeQuery) bypass the pool entirely: they're latency
// sensitive and cheap enough to run inline on the calling goroutine.
type Pool struct {
	embedder      Embedder
	batchSize     int
	workerTimeout time.Duration

	jobs   chan job
	cancel context.CancelFunc
	done   chan struct{}
}

// NewPool starts numWorkers goroutines, each serving from the same bounded
// job queue (capacity 2x numWorkers, mirroring the original worker pool's
// channel sizing).
func NewPool(embedder Embedder, numWorkers, batchSize int, workerTimeout time.Duration) *Pool {
	if numWorkers < 1 {
		numWorkers = 1
	}
	if batchSize < 1 {
		batchSize = 32
	}
	if workerTimeout <= 0 {
		workerTimeout = 60 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		embedder:      embedder,
		batchSize:     batchSize,
		workerTimeout: workerTimeout,
		jobs:          make(chan job, numWorkers*2),
		cancel:        cancel,
		done:          make(chan struct{}),
	}

	go p.run(ctx, numWorkers)
	return p
}

func (p *Pool) run(ctx context.Context, numWorkers int) {
	defer close(p.done)
	workerDone := make(chan struct{}, numWorkers)
	for i := 0; i < numWorkers; i++ {
		go p.worker(ctx, workerDone)
	}
	for i := 0; i < numWorkers; i++ {
		<-workerDone
	}
}

func (p *Pool) worker(ctx context.Context, done chan<- struct{}) {
	defer func() { done <- struct{}{} }()
	for {
		select {
		case <-ctx.Done():
			return
		case j, ok := <-p.jobs:
			if !ok {
				return
			}
			jctx, cancel := context.WithTimeout(ctx, p.workerTimeout)
			embs, err := p.embedder.ComputeHybrid(jctx, j.texts)
			cancel()
			j.reply <- jobResult{embeddings: embs, err: err}
		}
	}
}

// ComputeBatch splits texts into batchSize-sized sub-batches, dispatches
// each to the pool, and reassembles the results in their original order.
func (p *Pool) ComputeBatch(ctx context.Context, texts []string) ([]HybridEmbedding, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	type pending struct {
		offset int
		reply  chan jobResult
	}
	var pendings []pending

	for offset := 0; offset < len(texts); offset += p.batchSize {
		end := offset + p.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		reply := make(chan jobResult, 1)
		j := job{texts: texts[offset:end], reply: reply}

		select {
		case p.jobs <- j:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		pendings = append(pendings, pending{offset: offset, reply: reply})
	}

	out := make([]HybridEmbedding, len(texts))
	for _, pd := range pendings {
		select {
		case res := <-pd.reply:
			if res.err != nil {
				return nil, fmt.Errorf("embedding sub-batch at offset %d: %w", pd.offset, res.err)
			}
			copy(out[pd.offset:], res.embeddings)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return out, nil
}

// Shutdown stops every worker goroutine and waits for them to exit.
func (p *Pool) Shutdown() {
	p.cancel()
	<-p.done
}
