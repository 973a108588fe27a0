// Package parallel runs row loops and independent jobs on several
// goroutines. Estimators use it for prediction over large matrices and for
// growing forest members.
package parallel

import (
	"context"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/YuminosukeSato/molpipe/pkg/errors"
)

// Chunks splits [0, items) into at most workers contiguous half-open ranges
// of near-equal size.
func Chunks(items, workers int) [][2]int {
	if items <= 0 {
		return nil
	}
	workers = min(max(workers, 1), items)
	size := (items + workers - 1) / workers
	out := make([][2]int, 0, workers)
	for start := 0; start < items; start += size {
		out = append(out, [2]int{start, min(start+size, items)})
	}
	return out
}

// parallelizeN runs fn once per chunk, concurrently, and waits.
func parallelizeN(items, workers int, fn func(start, end int)) {
	var wg sync.WaitGroup
	for _, c := range Chunks(items, workers) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn(c[0], c[1])
		}()
	}
	wg.Wait()
}

// ParallelizeWithThreshold runs fn inline for small inputs and over
// GOMAXPROCS chunks otherwise.
func ParallelizeWithThreshold(items, threshold int, fn func(start, end int)) {
	if items <= threshold {
		fn(0, items)
		return
	}
	parallelizeN(items, runtime.GOMAXPROCS(0), fn)
}

// Each calls fn(i) for i in [0, n) with at most jobs calls in flight
// (jobs <= 0 means GOMAXPROCS). A panic in fn becomes a *errors.PanicError.
// The first error cancels ctx for the remaining calls and is returned.
func Each(ctx context.Context, n, jobs int, op string, fn func(ctx context.Context, i int) error) error {
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for i := 0; i < n; i++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			return errors.SafeExecute(op, func() error { return fn(gctx, i) })
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
