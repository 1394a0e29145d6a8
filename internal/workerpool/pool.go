// Package workerpool sizes bulk-ingest scoring concurrency to the
// host's CPU count. Scoring is a pure function and safe to parallelize
// per property; persistence stays serialized per property to avoid
// interleaved writes to the same golden record.
package workerpool

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Run executes fn(item) for every item in items, bounded to
// runtime.NumCPU() concurrent goroutines. It returns the first error
// encountered; the errgroup context is cancelled at that point, so
// in-flight work may be abandoned.
func Run[T any](ctx context.Context, items []T, fn func(context.Context, T) error) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(runtime.NumCPU(), 1))

	for _, item := range items {
		item := item
		g.Go(func() error {
			return fn(ctx, item)
		})
	}
	return g.Wait()
}

// RunCollect is Run's counterpart for fan-out/fan-in: it runs fn(item)
// for every item with the same CPU-sized bound and returns the ordered
// results alongside the first error.
func RunCollect[T, R any](ctx context.Context, items []T, fn func(context.Context, T) (R, error)) ([]R, error) {
	results := make([]R, len(items))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(runtime.NumCPU(), 1))

	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			r, err := fn(ctx, item)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
