package provider

import (
	"context"
	"fmt"

	csmap "github.com/mhmtszr/concurrent-swiss-map"

	"github.com/gaiakodi/gaiasource/internal/media"
)

// Memo holds records fetched earlier in one operation.
type Memo interface {
	Get(key string) (*media.Record, bool)
	Set(key string, r *media.Record)
}

type memo struct {
	m *csmap.CsMap[string, media.Record]
}

// NewMemo returns a concurrency-safe Memo. Records are copied in and out.
func NewMemo() Memo {
	return &memo{m: csmap.Create[string, media.Record]()}
}

func (m *memo) Get(key string) (*media.Record, bool) {
	r, ok := m.m.Load(key)
	if !ok {
		return nil, false
	}
	c := r.Clone()
	return &c, true
}

func (m *memo) Set(key string, r *media.Record) {
	if r != nil {
		m.m.Store(key, r.Clone())
	}
}

// MemoKey creates a unique key for a title lookup.
func MemoKey(m media.Media, title string, year, season, episode int) string {
	switch m {
	case media.Movie, media.Set, media.Show:
		return fmt.Sprintf("%s:%s:%d", m, media.Fold(title), year)
	case media.Season:
		return fmt.Sprintf("season:%s:%d:%d", media.Fold(title), year, season)
	case media.Episode:
		return fmt.Sprintf("episode:%s:%d:%d:%d", media.Fold(title), year, season, episode)
	default:
		return ""
	}
}

// MetadataWithShow fetches metadata, resolving the containing show first
// when a season or episode is requested by show title only. The show record
// is memoized so sibling requests of one operation share it.
func MetadataWithShow(ctx context.Context, d Describer, req media.Request, memo Memo) (*media.Record, error) {
	if d == nil {
		return nil, ErrUnsupported
	}
	if req.Media != media.Season && req.Media != media.Episode || !req.IDs.Empty() || req.Title == "" {
		return d.Metadata(ctx, req)
	}

	key := MemoKey(media.Show, req.Title, req.Year, 0, 0)
	var show *media.Record
	if memo != nil {
		show, _ = memo.Get(key)
	}
	if show == nil {
		showReq := media.Request{
			Kind:  media.KindMetadata,
			Media: media.Show,
			Title: req.Title,
			Year:  req.Year,
			What:  []media.Facet{media.FacetSummary},
		}
		var err error
		show, err = d.Metadata(ctx, showReq)
		if err != nil {
			return nil, err
		}
		if show == nil {
			return nil, nil
		}
		if memo != nil {
			memo.Set(key, show)
		}
	}

	child := req
	child.IDs = show.IDs.Clone()
	if show.Title != "" {
		child.Title = show.Title
	}
	if show.Year != 0 {
		child.Year = show.Year
	}
	r, err := d.Metadata(ctx, child)
	if err != nil || r == nil {
		return r, err
	}
	if r.Show.Empty() {
		r.Show = show.IDs.Clone()
	}
	return r, nil
}
