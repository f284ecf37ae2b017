package embeddings

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// batchFunc embeds one request worth of texts
type batchFunc func(ctx context.Context, texts []string) ([][]float32, error)

// batcher splits texts into requests of at most size texts and runs up to
// concurrency of them at once. A limiter, when set, paces request starts.
type batcher struct {
	size        int
	concurrency int
	limiter     *rate.Limiter
}

func newBatcher(size, concurrency int, requestsPerSecond float64) *batcher {
	if size <= 0 {
		size = 1
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	b := &batcher{size: size, concurrency: concurrency}
	if requestsPerSecond > 0 {
		b.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), concurrency)
	}
	return b
}

// run returns one vector per text in input order. The first failure cancels
// the remaining requests and is returned.
func (b *batcher) run(ctx context.Context, texts []string, fn batchFunc) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		start   int
		vectors [][]float32
		err     error
	}

	batches := (len(texts) + b.size - 1) / b.size
	results := make(chan result, batches)
	sem := make(chan struct{}, b.concurrency)

	for start := 0; start < len(texts); start += b.size {
		end := min(start+b.size, len(texts))
		go func(start, end int) {
			sem <- struct{}{}
			defer func() { <-sem }()

			if b.limiter != nil {
				if err := b.limiter.Wait(ctx); err != nil {
					results <- result{start: start, err: err}
					return
				}
			}
			if err := ctx.Err(); err != nil {
				results <- result{start: start, err: err}
				return
			}

			vectors, err := fn(ctx, texts[start:end])
			if err == nil && len(vectors) != end-start {
				err = fmt.Errorf("backend returned %d vectors for %d texts", len(vectors), end-start)
			}
			results <- result{start: start, vectors: vectors, err: err}
		}(start, end)
	}

	out := make([][]float32, len(texts))
	var firstErr error
	for i := 0; i < batches; i++ {
		r := <-results
		if r.err != nil {
			if firstErr == nil {
				firstErr = r.err
				cancel()
			}
			continue
		}
		copy(out[r.start:], r.vectors)
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}
