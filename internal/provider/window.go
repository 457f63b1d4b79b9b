package provider

import (
	"context"
	"errors"

	"github.com/gaiakodi/gaiasource/internal/media"
)

// MaxReleaseDays is the widest window a single release call covers.
const MaxReleaseDays = 31

// ReleaseChunks splits w into blocks of at most size days, fetches the
// blocks in parallel and returns their union sorted newest first with
// duplicates merged. complete is false when a block failed; an error is
// returned only when every block failed.
func ReleaseChunks(ctx context.Context, workers int, w media.Window, size int, fetch func(ctx context.Context, block media.Window) ([]media.Record, error)) ([]media.Record, bool, error) {
	if size <= 0 {
		size = MaxReleaseDays
	}
	blocks := w.Chunks(size)
	outcomes := FanOut(ctx, workers, len(blocks), func(ctx context.Context, i int) ([]media.Record, error) {
		return fetch(ctx, blocks[i])
	})

	var all []media.Record
	var errs []error
	for _, o := range outcomes {
		if o.Err != nil {
			errs = append(errs, o.Err)
			continue
		}
		all = append(all, o.Value...)
	}
	if len(errs) == len(blocks) {
		return nil, false, errors.Join(errs...)
	}
	numbers := len(all) > 0 && all[0].Media == media.Episode
	all = media.Dedup(all, media.KeepMerge, numbers)
	media.SortRecords(all, media.SortNewest, media.Descending)
	return all, len(errs) == 0, nil
}
