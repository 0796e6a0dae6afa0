// Package parallel splits index ranges across goroutines.
package parallel

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Workers returns n if positive, otherwise the number of CPUs
func Workers(n int) int {
	if n > 0 {
		return n
	}
	return runtime.NumCPU()
}

// Chunks splits [0, n) into at most workers contiguous [start, end) ranges of
// near-equal size. Empty ranges are not returned.
func Chunks(n, workers int) [][2]int {
	workers = Workers(workers)
	if n <= 0 {
		return nil
	}
	if workers > n {
		workers = n
	}
	perWorker := (n + workers - 1) / workers

	chunks := make([][2]int, 0, workers)
	for start := 0; start < n; start += perWorker {
		end := start + perWorker
		if end > n {
			end = n
		}
		chunks = append(chunks, [2]int{start, end})
	}
	return chunks
}

// ForEachChunk runs fn once per chunk of [0, n), each chunk on its own
// goroutine. The context passed to fn is cancelled as soon as one call fails
// or the parent context is done. fn receives the chunk's position so callers
// can keep per-chunk results without locking.
func ForEachChunk(ctx context.Context, n, workers int, fn func(ctx context.Context, chunk, start, end int) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	g, gctx := errgroup.WithContext(ctx)
	for i, c := range Chunks(n, workers) {
		i, c := i, c
		g.Go(func() error {
			return fn(gctx, i, c[0], c[1])
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// ForEachRow runs fn for every index in [0, n), distributing contiguous blocks
// over the workers. Cancellation is checked before each index.
func ForEachRow(ctx context.Context, n, workers int, fn func(i int)) error {
	return ForEachChunk(ctx, n, workers, func(ctx context.Context, _, start, end int) error {
		for i := start; i < end; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			fn(i)
		}
		return nil
	})
}
