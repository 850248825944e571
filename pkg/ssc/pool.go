package ssc

import "golang.org/x/sync/errgroup"

// WorkerPool bounds the number of chunks processed concurrently during
// Split/Combine, sized from configuration's thread_number: a bounded
// worker pool, not one goroutine per chunk.
type WorkerPool struct {
	limit int
}

// NewWorkerPool builds a pool that runs at most n chunks at a time. n
// <= 0 means unbounded (errgroup's default SetLimit(-1) semantics).
func NewWorkerPool(n int) *WorkerPool {
	if n <= 0 {
		n = -1
	}
	return &WorkerPool{limit: n}
}

// runOverChunks fans work(idx) out across pool.limit goroutines (or
// runs sequentially if pool is nil) and returns the first error
// encountered. With a pool, the remaining chunks still run; without
// one, processing stops at the first error.
func runOverChunks(pool *WorkerPool, n int, work func(idx int) error) error {
	if pool == nil {
		for i := 0; i < n; i++ {
			if err := work(i); err != nil {
				return err
			}
		}
		return nil
	}

	var g errgroup.Group
	g.SetLimit(pool.limit)
	for i := 0; i < n; i++ {
		idx := i
		g.Go(func() error { return work(idx) })
	}
	return g.Wait()
}
