package pipeline

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"slices"

	"github.com/gaiakodi/gaiasource/internal/aggregate"
	"github.com/gaiakodi/gaiasource/internal/media"
	"github.com/gaiakodi/gaiasource/internal/provider"
)

// Search finds titles matching a free-text query.
func (e *Engine) Search(ctx context.Context, req media.Request) (*media.PageResult, error) {
	return e.paged(ctx, media.KindSearch, req)
}

// Discover browses titles by filters and sort.
func (e *Engine) Discover(ctx context.Context, req media.Request) (*media.PageResult, error) {
	return e.paged(ctx, media.KindDiscover, req)
}

// Release lists titles released inside the request window.
func (e *Engine) Release(ctx context.Context, req media.Request) (*media.PageResult, error) {
	return e.paged(ctx, media.KindRelease, req)
}

// Recommend returns titles the providers recommend.
func (e *Engine) Recommend(ctx context.Context, req media.Request) (*media.PageResult, error) {
	return e.paged(ctx, media.KindRecommend, req)
}

// List reads a list: items of a given list, or a user's watchlist,
// collection or favorites.
func (e *Engine) List(ctx context.Context, req media.Request) (*media.PageResult, error) {
	return e.paged(ctx, media.KindList, req)
}

func (e *Engine) paged(ctx context.Context, kind media.Kind, req media.Request) (res *media.PageResult, err error) {
	req, err = e.prepare(kind, req)
	ctx, o := e.begin(ctx, req)
	defer func() {
		items, complete := 0, false
		if res != nil {
			items, complete = len(res.Items), res.Complete
		}
		e.end(o, items, complete, err)
	}()
	if err != nil {
		return nil, err
	}
	return cached(ctx, e, req, func(p *media.PageResult) bool { return p != nil && p.Complete }, func(ctx context.Context) (*media.PageResult, error) {
		res, err := e.fetchPage(ctx, o, req)
		if wantsSets(req, res, err) {
			return e.withSets(ctx, o, req, res, err)
		}
		return res, err
	})
}

// collectionWords mark a movie query that names a collection.
var collectionWords = regexp.MustCompile(`(?i)\b(collection|saga|trilogy|quadrilogy|anthology)\b`)

// wantsSets reports whether a movie search should also look at sets: the
// query names a collection, or the first page found no movie.
func wantsSets(req media.Request, res *media.PageResult, err error) bool {
	if req.Kind != media.KindSearch || req.Media != media.Movie || req.Page > 1 {
		return false
	}
	if collectionWords.MatchString(req.Query + " " + req.Title) {
		return true
	}
	return err == nil && res != nil && len(res.Items) == 0
}

// withSets runs req again as a set search and puts the collections ahead
// of the movies. The movie outcome stands when no set is found.
func (e *Engine) withSets(ctx context.Context, o *op, req media.Request, movies *media.PageResult, moviesErr error) (*media.PageResult, error) {
	setReq := req
	setReq.Media = media.Set
	setReq.Year = 0
	sets, err := e.fetchPage(ctx, o, setReq)
	if err != nil || len(sets.Items) == 0 {
		if err != nil && !errors.Is(err, provider.ErrUnsupported) {
			o.logger.Debug("set fallback failed", "query", req.Query, "err", err)
		}
		return movies, moviesErr
	}
	o.logger.Debug("movie search extended to sets", "query", req.Query, "sets", len(sets.Items))
	if moviesErr != nil {
		sets.Complete = false
		return sets, nil
	}

	out := *movies
	out.Items = append(slices.Clone(sets.Items), movies.Items...)
	out.More = movies.More || sets.More
	out.Complete = movies.Complete && sets.Complete
	out.Count = media.Counts{
		Limit:      movies.Count.Limit,
		Initial:    movies.Count.Initial + sets.Count.Initial,
		Filtered:   movies.Count.Filtered + sets.Count.Filtered,
		Structured: movies.Count.Structured + sets.Count.Structured,
	}
	if limit := out.Count.Limit; limit > 0 && len(out.Items) > limit {
		out.Items = out.Items[:limit]
		out.More = true
	}
	out.Count.Final = len(out.Items)
	return &out, nil
}

// call is the work one provider does for a paged request.
type call struct {
	kind media.Kind
	req  media.Request
}

// plan decides how c serves req. A discover with a query falls back to
// search when c cannot apply the requested sort, and set discovery always
// goes through search since no upstream browses collections. Sorts c cannot
// apply are dropped from its request and applied afterwards.
func plan(c provider.Client, req media.Request) (call, bool) {
	caps := c.Capabilities()
	out := call{kind: req.Kind, req: req}
	if req.Kind == media.KindDiscover {
		switch {
		case req.Media == media.Set && req.Query != "":
			out.kind = media.KindSearch
		case req.Media == media.Set:
			return out, false
		case req.Query != "" && !caps.SortsNatively(req.Sort):
			out.kind = media.KindSearch
		}
		if out.kind == media.KindSearch && !caps.Supports(media.KindSearch, req.Media) {
			return out, false
		}
	}
	if !caps.SortsNatively(out.req.Sort) {
		out.req.Sort, out.req.Order = "", ""
	}
	if out.req.Limit == 0 && caps.PageSize > 0 {
		out.req.Limit = caps.PageSize
	}
	out.req.Kind = out.kind
	return out, true
}

func dispatch(ctx context.Context, c provider.Client, cl call) (*media.PageResult, error) {
	var p *media.PageResult
	var err error
	switch cl.kind {
	case media.KindSearch:
		s, ok := c.(provider.Searcher)
		if !ok {
			return nil, provider.ErrUnsupported
		}
		p, err = s.Search(ctx, cl.req)
	case media.KindDiscover:
		d, ok := c.(provider.Discoverer)
		if !ok {
			return nil, provider.ErrUnsupported
		}
		p, err = d.Discover(ctx, cl.req)
	case media.KindRelease:
		r, ok := c.(provider.Releaser)
		if !ok {
			return nil, provider.ErrUnsupported
		}
		p, err = r.Release(ctx, cl.req)
	case media.KindRecommend:
		r, ok := c.(provider.Recommender)
		if !ok {
			return nil, provider.ErrUnsupported
		}
		p, err = r.Recommend(ctx, cl.req)
	case media.KindList:
		l, ok := c.(provider.Lister)
		if !ok {
			return nil, provider.ErrUnsupported
		}
		p, err = l.List(ctx, cl.req)
	default:
		return nil, fmt.Errorf("%w: %s is not a paged operation", media.ErrInvalidRequest, cl.kind)
	}
	if err == nil && p == nil {
		err = provider.NotFound(c.Name(), string(cl.kind))
	}
	return p, err
}

// clients returns the providers that take part in req with their calls.
func (e *Engine) clients(req media.Request) ([]provider.Client, map[string]call) {
	candidates := e.agg.Registry().Serving(req.Kind, req.Media)
	if req.Kind == media.KindDiscover {
		for _, c := range e.agg.Registry().Serving(media.KindSearch, req.Media) {
			if !containsClient(candidates, c) {
				candidates = append(candidates, c)
			}
		}
	}
	out := make([]provider.Client, 0, len(candidates))
	calls := make(map[string]call, len(candidates))
	for _, c := range candidates {
		if req.Kind == media.KindDiscover && !c.Capabilities().Supports(media.KindDiscover, req.Media) {
			// search-only providers join a discover only through the fallback
			cl, ok := plan(c, req)
			if !ok || cl.kind != media.KindSearch {
				continue
			}
			out = append(out, c)
			calls[c.Name()] = cl
			continue
		}
		cl, ok := plan(c, req)
		if !ok {
			continue
		}
		out = append(out, c)
		calls[c.Name()] = cl
	}
	return out, calls
}

func containsClient(list []provider.Client, c provider.Client) bool {
	for _, x := range list {
		if x.Name() == c.Name() {
			return true
		}
	}
	return false
}

func (e *Engine) fetchPage(ctx context.Context, o *op, req media.Request) (*media.PageResult, error) {
	clients, calls := e.clients(req)
	if len(clients) == 0 {
		return nil, fmt.Errorf("%w: no provider serves %s for %s", provider.ErrUnsupported, req.Kind, req.Media)
	}

	pages, failures := aggregate.Collect(ctx, e.agg.Workers(), clients, func(ctx context.Context, c provider.Client) (*media.PageResult, error) {
		return dispatch(ctx, c, calls[c.Name()])
	})
	e.recordFailures(o.id, req, failures)
	for name, err := range failures {
		o.logger.Warn("provider failed", "provider", name, "err", err)
	}
	if len(pages) == 0 {
		if len(failures) == 0 {
			return nil, fmt.Errorf("%w: every provider declined %s", provider.ErrUnsupported, req.Kind)
		}
		return nil, aggregate.Failed(failures)
	}

	more, complete, whole := false, len(failures) == 0, true
	limit := req.Limit
	for name, p := range pages {
		more = more || p.More
		complete = complete && p.Complete
		whole = whole && p.Whole
		if req.Limit == 0 {
			limit = max(limit, calls[name].req.Limit)
			if !p.Whole {
				limit = max(limit, len(p.Items))
			}
		}
	}
	if ctx.Err() != nil {
		complete = false
	}

	records := make(map[string][]media.Record, len(pages))
	for name, p := range pages {
		items := p.Items
		if p.Whole && !whole {
			// mixed with paged providers: cut this provider's share here
			var rest bool
			items, rest = pageWindow(items, req.Page, limit)
			more = more || rest
		}
		records[name] = items
	}

	out := e.finish(req, e.agg.Combine(req.Media, records), limit, more, whole)
	out.Complete = complete
	return out, nil
}

// pageWindow returns the items of page (1-indexed) of size limit and
// whether items continue past it.
func pageWindow(items []media.Record, page, limit int) ([]media.Record, bool) {
	if limit <= 0 {
		return items, false
	}
	start := min((max(page, 1)-1)*limit, len(items))
	end := min(start+limit, len(items))
	return items[start:end], end < len(items)
}

// finish post-processes merged records: filter, sort, dedup, interleave,
// then cut the page. whole means records hold every page, so the requested
// page is cut out of them. Returned records are copies without extras.
func (e *Engine) finish(req media.Request, records []media.Record, limit int, more, whole bool) *media.PageResult {
	counts := media.Counts{Limit: limit, Initial: len(records)}

	records = req.Filters.Apply(records)
	counts.Filtered = len(records)

	media.SortRecords(records, req.Sort, req.Order)
	numbers := req.Media == media.Episode || req.Media == media.Season
	records = media.Dedup(records, req.Dedup, numbers)
	if req.Media == media.Episode {
		records = media.Interleave(records, e.mode, e.within)
	}
	counts.Structured = len(records)

	if whole {
		records, more = pageWindow(records, req.Page, limit)
	} else if limit > 0 && len(records) > limit {
		records = records[:limit]
		more = true
	}
	counts.Final = len(records)
	if !whole && counts.Filtered < counts.Initial && limit > 0 && counts.Final < limit {
		more = true
	}
	return &media.PageResult{Items: stripped(records), More: more, Page: max(req.Page, 1), Count: counts}
}

// stripped copies records without their provider extras.
func stripped(records []media.Record) []media.Record {
	out := make([]media.Record, len(records))
	for i, r := range records {
		out[i] = r.Clone()
		out[i].StripExtras()
	}
	return out
}
