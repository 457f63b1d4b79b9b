package provider

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Worker pool bounds.
const (
	MinWorkers = 3
	MaxWorkers = 50
)

// DefaultWorkers sizes the pool from the host: four workers per CPU,
// clamped to [MinWorkers, MaxWorkers].
func DefaultWorkers() int {
	return min(max(runtime.NumCPU()*4, MinWorkers), MaxWorkers)
}

// Outcome is the result of one fan-out task.
type Outcome[T any] struct {
	Value T
	Err   error
}

// FanOut runs fn for every index in [0,n) on at most workers goroutines.
// Outcomes are returned in index order whatever the completion order, and
// one failure does not cancel the others.
func FanOut[T any](ctx context.Context, workers, n int, fn func(ctx context.Context, i int) (T, error)) []Outcome[T] {
	out := make([]Outcome[T], n)
	if n == 0 {
		return out
	}
	if workers <= 0 {
		workers = DefaultWorkers()
	}
	var g errgroup.Group
	g.SetLimit(workers)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				out[i].Err = err
				return nil
			}
			out[i].Value, out[i].Err = fn(ctx, i)
			return nil
		})
	}
	_ = g.Wait()
	return out
}
