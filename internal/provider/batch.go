package provider

import (
	"context"
	"encoding/json"
	"errors"
)

// Chunk splits items into slices of at most size elements.
func Chunk[T any](items []T, size int) [][]T {
	if len(items) == 0 {
		return nil
	}
	if size <= 0 || len(items) <= size {
		return [][]T{items}
	}
	out := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		out = append(out, items[start:end])
	}
	return out
}

// AppendBatch fetches a detail resource with sub-resources appended, for
// upstreams that bound how many can ride on one call. The sub-resources are
// chunked by limit, the chunks fetched concurrently and the returned objects
// merged by key union; earlier chunks win on conflicting keys. Failed chunks
// are reported through the joined error while the others are still merged.
func AppendBatch(ctx context.Context, workers int, subs []string, limit int, fetch func(ctx context.Context, chunk []string) (map[string]json.RawMessage, error)) (map[string]json.RawMessage, error) {
	chunks := Chunk(subs, limit)
	if len(chunks) == 0 {
		chunks = [][]string{nil}
	}
	outcomes := FanOut(ctx, workers, len(chunks), func(ctx context.Context, i int) (map[string]json.RawMessage, error) {
		return fetch(ctx, chunks[i])
	})

	merged := make(map[string]json.RawMessage)
	var errs []error
	for _, o := range outcomes {
		if o.Err != nil {
			errs = append(errs, o.Err)
			continue
		}
		for k, v := range o.Value {
			if _, seen := merged[k]; !seen {
				merged[k] = v
			}
		}
	}
	if len(errs) == len(outcomes) {
		return nil, errors.Join(errs...)
	}
	return merged, errors.Join(errs...)
}
