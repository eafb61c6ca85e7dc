package pool

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// ItemFunc executes one work item by ID.
type ItemFunc func(ctx context.Context, id string) error

// RunBatch executes ids through the pool and streams results as they
// complete. Up to Capacity items are in flight at any time, and the next
// queued id starts as soon as a slot frees. The channel is closed after the
// last result. RunBatch knows nothing about dependencies: ids must already be
// safe to run in any order.
//
// If ctx ends, ids not yet started are not dispatched; in-flight items run to
// completion and are still reported.
func (p *Pool) RunBatch(ctx context.Context, ids []string, fn ItemFunc) <-chan Result {
	results := make(chan Result, len(ids))

	g := new(errgroup.Group)
	g.SetLimit(p.Capacity())

	go func() {
		defer close(results)
		for _, id := range ids {
			if ctx.Err() != nil {
				break
			}
			id := id
			g.Go(func() error {
				if ctx.Err() != nil {
					return nil
				}
				results <- p.Execute(ctx, id, func(context.Context) error {
					return fn(context.WithoutCancel(ctx), id)
				})
				return nil
			})
		}
		_ = g.Wait()
	}()

	return results
}
