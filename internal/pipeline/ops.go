package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/gaiakodi/gaiasource/internal/media"
	"github.com/gaiakodi/gaiasource/internal/provider"
)

// Metadata returns the merged details of one title. Asking for the pack
// facet of a show attaches its pack; a pack failure only clears Complete.
func (e *Engine) Metadata(ctx context.Context, req media.Request) (rec *media.Record, err error) {
	req, err = e.prepare(media.KindMetadata, req)
	ctx, o := e.begin(ctx, req)
	defer func() {
		items, complete := 0, false
		if rec != nil {
			items, complete = 1, rec.Complete
		}
		e.end(o, items, complete, err)
	}()
	if err != nil {
		return nil, err
	}
	return cached(ctx, e, req, func(r *media.Record) bool { return r != nil && r.Complete }, func(ctx context.Context) (*media.Record, error) {
		r, err := e.agg.Describe(ctx, req)
		if err != nil {
			return nil, err
		}
		if req.Wants(media.FacetPack) && req.Media == media.Show {
			p, perr := e.packs.Build(ctx, r.IDs)
			if perr != nil {
				o.logger.Warn("pack failed", "ids", r.IDs.String(), "err", perr)
				e.recordFailures(o.id, req, map[string]error{"pack": perr})
				r.Complete = false
			} else {
				r.Pack = p
				r.Complete = r.Complete && p.Complete
			}
		}
		out := r.Clone()
		out.StripExtras()
		return &out, nil
	})
}

// Pack returns the season and episode structure of the show in req.IDs.
func (e *Engine) Pack(ctx context.Context, req media.Request) (p *media.Pack, err error) {
	req, err = e.prepare(media.KindPack, req)
	ctx, o := e.begin(ctx, req)
	defer func() {
		items, complete := 0, false
		if p != nil {
			items, complete = p.Count.Episode.Total, p.Complete
		}
		e.end(o, items, complete, err)
	}()
	if err != nil {
		return nil, err
	}
	return e.packs.Build(ctx, req.IDs)
}

// Resolve completes the id tuple of the title described by req. complete
// is false when some upstream failed and the tuple may lack ids.
func (e *Engine) Resolve(ctx context.Context, req media.Request) (ids media.IDs, complete bool, err error) {
	req, err = e.prepare(media.KindResolve, req)
	ctx, o := e.begin(ctx, req)
	defer func() {
		e.end(o, len(ids), complete, err)
	}()
	if err != nil {
		return nil, false, err
	}
	r := e.agg.Resolver()
	if r == nil {
		return nil, false, fmt.Errorf("%w: no id resolver configured", provider.ErrUnsupported)
	}
	return r.Lookup(ctx, req)
}

// Run executes req and wraps the outcome in a tagged result. It never
// fails; errors become the result's failure record.
func (e *Engine) Run(ctx context.Context, req media.Request) media.Result {
	res := media.Result{Kind: req.Kind}
	var err error
	switch req.Kind {
	case media.KindSearch, media.KindDiscover, media.KindRelease, media.KindRecommend, media.KindList:
		res.Page, err = e.paged(ctx, req.Kind, req)
		res.Complete = res.Page != nil && res.Page.Complete
	case media.KindMetadata:
		res.Record, err = e.Metadata(ctx, req)
		res.Complete = res.Record != nil && res.Record.Complete
	case media.KindPack:
		res.Pack, err = e.Pack(ctx, req)
		res.Complete = res.Pack != nil && res.Pack.Complete
	case media.KindResolve:
		res.IDs, res.Complete, err = e.Resolve(ctx, req)
	default:
		err = fmt.Errorf("%w: unknown operation %q", media.ErrInvalidRequest, req.Kind)
	}
	if err != nil {
		res.Complete = false
		res.Error = failure(err)
	}
	return res
}

// failure converts err into the boundary record. Requests no provider can
// serve and malformed requests are reported as unknown with their message.
func failure(err error) *media.Failure {
	f := provider.FailureOf(err)
	if errors.Is(err, media.ErrInvalidRequest) || errors.Is(err, provider.ErrUnsupported) {
		f.Code = media.CodeUnknown
	}
	return f
}
