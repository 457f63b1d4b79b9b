package trakt

import (
	"context"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/gaiakodi/gaiasource/internal/media"
	"github.com/gaiakodi/gaiasource/internal/provider"
)

func first(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func pageOf(items []media.Record, pageNum int, more bool, initial int, complete bool) *media.PageResult {
	return &media.PageResult{
		Items: items,
		More:  more,
		Page:  pageNum,
		Count: media.Counts{
			Limit:      pageSize,
			Initial:    initial,
			Filtered:   len(items),
			Structured: len(items),
			Final:      len(items),
		},
		Complete: complete,
	}
}

// listing fetches one page of rows and converts them. more comes from the
// pagination headers.
func (p *Provider) listing(ctx context.Context, call provider.Call, m media.Media, pageNum int) ([]media.Record, bool, error) {
	var rows provider.Rows[row]
	call.TTL = p.deps.Lifetimes().List
	resp, err := p.api.Get(ctx, call, &rows)
	if err != nil {
		return nil, false, err
	}
	rows.Log(p.logger, call.Path)
	offset := (max(pageNum, 1) - 1) * pageSize
	out := make([]media.Record, 0, len(rows.Items))
	for i, rw := range rows.Items {
		r, ok := fromRow(rw, m, offset+i+1)
		if !ok {
			p.logger.Debug("dropping row without ids", "path", call.Path)
			continue
		}
		out = append(out, r)
	}
	more := resp.HeaderInt("X-Pagination-Page") < resp.HeaderInt("X-Pagination-Page-Count")
	return out, more, nil
}

// Search runs a text search. Keywords in the filters are folded into the
// query as an OR clause.
func (p *Provider) Search(ctx context.Context, req media.Request) (*media.PageResult, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	query := strings.TrimSpace(first(req.Query, req.Title))
	if query == "" {
		return nil, fmt.Errorf("%w: empty query", media.ErrInvalidRequest)
	}
	_, singular, err := typePath(req.Media)
	if err != nil {
		return nil, err
	}
	pageNum := max(req.Page, 1)
	q := baseQuery(pageNum, req.Limit)
	q.Set("query", augmentQuery(query, req.Filters.Keyword))
	rest := req.Filters
	if singular != "person" {
		if req.Year > 0 && req.Filters.Year == nil {
			q.Set("years", strconv.Itoa(req.Year))
		}
		rest = lowerFilters(q, req.Media, req.Filters)
	}
	rest.Keyword = nil

	records, more, err := p.listing(ctx, provider.Call{Path: "search/" + singular, Query: q}, req.Media, pageNum)
	if err != nil {
		return nil, err
	}
	initial := len(records)
	records = rest.Apply(records)
	return pageOf(records, pageNum, more, initial, true), nil
}

// Discover reads the listing endpoint of the requested sort. A query with
// a sort Trakt has no listing for is served by search instead.
func (p *Provider) Discover(ctx context.Context, req media.Request) (*media.PageResult, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	path, native, err := discoverPath(req)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Query) != "" && !native {
		return p.Search(ctx, req)
	}
	pageNum := max(req.Page, 1)
	q := baseQuery(pageNum, req.Limit)
	if req.Query != "" {
		q.Set("query", escapeQuery(req.Query))
	}
	rest := lowerFilters(q, req.Media, req.Filters)

	records, more, err := p.listing(ctx, provider.Call{Path: path, Query: q}, req.Media, pageNum)
	if err != nil {
		return nil, err
	}
	initial := len(records)
	records = rest.Apply(records)
	return pageOf(records, pageNum, more, initial, true), nil
}

// Release reads the calendars over the request window in blocks of at most
// provider.MaxReleaseDays.
func (p *Provider) Release(ctx context.Context, req media.Request) (*media.PageResult, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	if req.Window == nil {
		return nil, fmt.Errorf("%w: release needs a window", media.ErrInvalidRequest)
	}
	if _, _, err := typePath(req.Media); err != nil || req.Media == media.Person {
		return nil, provider.ErrUnsupported
	}
	path, event := releasePath(req.Media, req.Release)
	window := *req.Window

	base := url.Values{"extended": {"full"}}
	rest := lowerFilters(base, req.Media, req.Filters)
	records, complete, err := provider.ReleaseChunks(ctx, p.deps.Workers, window, provider.MaxReleaseDays, func(ctx context.Context, block media.Window) ([]media.Record, error) {
		var rows provider.Rows[row]
		call := provider.Call{
			Path:  fmt.Sprintf("%s/%s/%d", path, block.Start.Format(media.DateLayout), block.Length()),
			Query: base,
			TTL:   p.deps.Lifetimes().List,
		}
		if _, err := p.api.Get(ctx, call, &rows); err != nil {
			return nil, err
		}
		rows.Log(p.logger, call.Path)
		return calendarRecords(rows.Items, req.Media, event, window), nil
	})
	if err != nil {
		return nil, err
	}
	initial := len(records)
	records = rest.Apply(records)
	out := pageOf(records, 1, false, initial, complete)
	out.Whole = true
	return out, nil
}

// calendarRecords converts calendar rows, keeping the events inside w.
// Show calendars carry an episode per row; for show requests the episode
// is folded into its show.
func calendarRecords(rows []row, m media.Media, event media.ReleaseKind, w media.Window) []media.Record {
	var out []media.Record
	for _, rw := range rows {
		switch {
		case rw.Movie != nil:
			when := media.ParseTime(rw.Released)
			if !w.Contains(when) {
				continue
			}
			r := fromTitle(*rw.Movie, media.Movie)
			r.SetTime(event, when)
			out = append(out, r)
		case rw.Show != nil:
			when := media.ParseTime(rw.FirstAired)
			if !w.Contains(when) {
				continue
			}
			show := fromTitle(*rw.Show, media.Show)
			if m == media.Episode && rw.Episode != nil {
				r := fromEpisode(*rw.Episode, show.IDs)
				r.SetTime(event, when)
				r.SetExtra(providerName, "show_title", show.Title)
				out = append(out, r)
				continue
			}
			show.SetTime(event, when)
			if rw.Episode != nil {
				show.SetExtra(providerName, "episode", fmt.Sprintf("S%02dE%02d", rw.Episode.Season, rw.Episode.Number))
			}
			out = append(out, show)
		}
	}
	return out
}

// Recommend returns titles related to the seed in req.IDs. Without a seed
// it returns the user's personal recommendations when a token is set and
// the trending list otherwise.
func (p *Provider) Recommend(ctx context.Context, req media.Request) (*media.PageResult, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	plural, _, err := typePath(req.Media)
	if err != nil || req.Media == media.Person || req.Media == media.Season || req.Media == media.Episode {
		return nil, provider.ErrUnsupported
	}
	pageNum := max(req.Page, 1)
	call := provider.Call{Path: plural + "/trending", Query: baseQuery(pageNum, req.Limit)}
	switch {
	case !req.IDs.Empty():
		seed, err := p.traktID(ctx, req.IDs, req.Media)
		if err != nil {
			return nil, err
		}
		call.Path = plural + "/" + seed + "/related"
	case p.authed():
		call.Path = "recommendations/" + plural
		call.Query.Set("ignore_collected", "true")
		call.Auth = true
	}

	records, more, err := p.listing(ctx, call, req.Media, pageNum)
	if err != nil {
		return nil, err
	}
	initial := len(records)
	records = req.Filters.Apply(records)
	return pageOf(records, pageNum, more, initial, true), nil
}

// List reads curated lists and user collections. The current user ("me"
// or empty) needs the access token.
func (p *Provider) List(ctx context.Context, req media.Request) (*media.PageResult, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	user := strings.TrimSpace(req.User)
	self := user == "" || user == "me"
	if self {
		user = "me"
	}
	kind := listType(req.Media)

	var path string
	switch req.List {
	case media.ListItems, "":
		if req.ListID == "" {
			return nil, fmt.Errorf("%w: list needs a list id", media.ErrInvalidRequest)
		}
		if req.User == "" {
			path = "lists/" + url.PathEscape(req.ListID) + "/items"
			self = false
		} else {
			path = "users/" + url.PathEscape(user) + "/lists/" + url.PathEscape(req.ListID) + "/items"
		}
	case media.ListWatchlist, media.ListCollection, media.ListFavorites:
		if kind == "" {
			return nil, provider.ErrUnsupported
		}
		path = "users/" + url.PathEscape(user) + "/" + string(req.List)
	default:
		return nil, provider.ErrUnsupported
	}
	if kind != "" {
		path += "/" + kind
	}
	if self && !p.authed() {
		return nil, &provider.ProviderError{Provider: providerName, Code: media.CodeUnknown, Message: "user lists need an access token"}
	}

	pageNum := max(req.Page, 1)
	records, more, err := p.listing(ctx, provider.Call{Path: path, Query: baseQuery(pageNum, req.Limit), Auth: self}, media.Movie, pageNum)
	if err != nil {
		return nil, err
	}
	if req.Media != "" && req.Media != media.Mixed {
		records = slices.DeleteFunc(records, func(r media.Record) bool { return r.Media != req.Media })
	}
	initial := len(records)
	records = req.Filters.Apply(records)
	return pageOf(records, pageNum, more, initial, true), nil
}

// traktID returns an id Trakt accepts in paths: the trakt id or slug when
// known, an imdb id as is, otherwise a lookup through Resolve.
func (p *Provider) traktID(ctx context.Context, ids media.IDs, m media.Media) (string, error) {
	for _, kind := range []string{media.IDTrakt, media.IDSlug, media.IDImdb} {
		if v := ids.Get(kind); v != "" {
			return v, nil
		}
	}
	found, err := p.Resolve(ctx, ids, m)
	if err != nil {
		return "", err
	}
	for _, r := range found {
		if v := r.IDs.Get(media.IDTrakt); v != "" {
			return v, nil
		}
	}
	return "", provider.NotFound(providerName, ids.String())
}

// lookup finds the Trakt id of a title when no id is known.
func (p *Provider) lookup(ctx context.Context, req media.Request) (string, error) {
	m := req.Media
	if m == media.Season || m == media.Episode {
		m = media.Show
	}
	if !req.IDs.Empty() {
		return p.traktID(ctx, req.IDs, m)
	}
	if req.Title == "" {
		return "", fmt.Errorf("%w: metadata needs ids or a title", media.ErrInvalidRequest)
	}
	res, err := p.Search(ctx, media.Request{Kind: media.KindSearch, Media: m, Query: req.Title, Year: req.Year})
	if err != nil {
		return "", err
	}
	if best, ok := provider.BestMatch(res.Items, req.Title, req.Year, req.Deviation); ok {
		return best.IDs.Get(media.IDTrakt), nil
	}
	return "", provider.NotFound(providerName, fmt.Sprintf("%s %q", m, req.Title))
}

// facet is one sub-resource fetched alongside a summary.
type facet struct {
	path  string
	out   any
	apply func(r *media.Record)
}

// Metadata fetches a summary and the requested facets in parallel. A
// failing facet clears Complete without failing the call.
func (p *Provider) Metadata(ctx context.Context, req media.Request) (*media.Record, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	req = req.Normalized()
	plural, _, err := typePath(req.Media)
	if err != nil {
		return nil, err
	}
	id, err := p.lookup(ctx, req)
	if err != nil {
		return nil, err
	}
	detail := p.deps.Lifetimes().Detail
	full := url.Values{"extended": {"full"}}

	switch req.Media {
	case media.Person:
		var pr person
		if _, err := p.api.Get(ctx, provider.Call{Path: "people/" + id, Query: full, TTL: detail}, &pr); err != nil {
			return nil, err
		}
		r := fromPerson(pr)
		return &r, nil

	case media.Season, media.Episode:
		show, err := p.showIDs(ctx, id)
		if err != nil {
			return nil, err
		}
		if req.Media == media.Episode {
			var e episode
			path := fmt.Sprintf("shows/%s/seasons/%d/episodes/%d", id, req.Season, req.Episode)
			if _, err := p.api.Get(ctx, provider.Call{Path: path, Query: full, TTL: detail}, &e); err != nil {
				return nil, err
			}
			r := fromEpisode(e, show)
			return &r, nil
		}
		var seasons []season
		if _, err := p.api.Get(ctx, provider.Call{Path: "shows/" + id + "/seasons", Query: full, TTL: detail}, &seasons); err != nil {
			return nil, err
		}
		for _, s := range seasons {
			if s.Number == req.Season {
				r := fromSeason(s, show)
				return &r, nil
			}
		}
		return nil, provider.NotFound(providerName, fmt.Sprintf("season %d of %s", req.Season, id))
	}

	var t title
	if _, err := p.api.Get(ctx, provider.Call{Path: plural + "/" + id, Query: full, TTL: detail}, &t); err != nil {
		return nil, err
	}
	r := fromTitle(t, req.Media)

	facets := p.facets(plural+"/"+id, req)
	outcomes := provider.FanOut(ctx, p.deps.Workers, len(facets), func(ctx context.Context, i int) (struct{}, error) {
		_, err := p.api.Get(ctx, provider.Call{Path: facets[i].path, TTL: detail}, facets[i].out)
		return struct{}{}, err
	})
	for i, o := range outcomes {
		if o.Err != nil {
			p.logger.Debug("facet failed", "path", facets[i].path, "err", o.Err)
			r.Complete = false
			continue
		}
		facets[i].apply(&r)
	}
	return &r, nil
}

func (p *Provider) facets(base string, req media.Request) []facet {
	var out []facet
	if req.Wants(media.FacetPeople) {
		var pp people
		out = append(out, facet{base + "/people", &pp, func(r *media.Record) { applyPeople(r, pp) }})
	}
	if req.Wants(media.FacetStudios) {
		var ss []studio
		out = append(out, facet{base + "/studios", &ss, func(r *media.Record) { applyStudios(r, ss) }})
	}
	if req.Wants(media.FacetTranslations) {
		var ts []translation
		out = append(out, facet{base + "/translations/" + p.language, &ts, func(r *media.Record) { applyTranslations(r, ts, p.language) }})
	}
	if req.Wants(media.FacetAliases) {
		var as []alias
		out = append(out, facet{base + "/aliases", &as, func(r *media.Record) { applyAliases(r, as) }})
	}
	if req.Wants(media.FacetRatings) {
		var rt ratings
		out = append(out, facet{base + "/ratings", &rt, func(r *media.Record) { applyRatings(r, rt) }})
	}
	if req.Wants(media.FacetReleases) && req.Media == media.Movie {
		var rel []release
		out = append(out, facet{base + "/releases/" + p.country, &rel, func(r *media.Record) { applyReleases(r, rel, p.country) }})
	}
	return out
}

// showIDs reads the id block of a show.
func (p *Provider) showIDs(ctx context.Context, id string) (media.IDs, error) {
	var t title
	if _, err := p.api.Get(ctx, provider.Call{Path: "shows/" + id, TTL: p.deps.Lifetimes().IDs}, &t); err != nil {
		return nil, err
	}
	return t.IDs.toIDs(), nil
}

// Pack lists seasons and episodes in one call; Trakt nests the episodes in
// the season objects when asked to.
func (p *Provider) Pack(ctx context.Context, show media.IDs, seasons []int) (*provider.Listing, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	id, err := p.traktID(ctx, show, media.Show)
	if err != nil {
		return nil, err
	}
	detail := p.deps.Lifetimes().Detail

	var t title
	if _, err := p.api.Get(ctx, provider.Call{Path: "shows/" + id, Query: url.Values{"extended": {"full"}}, TTL: detail}, &t); err != nil {
		return nil, err
	}
	showRec := fromTitle(t, media.Show)
	showIDs := showRec.IDs.Clone()
	showIDs.Fill(show)

	var all []season
	if _, err := p.api.Get(ctx, provider.Call{Path: "shows/" + id + "/seasons", Query: url.Values{"extended": {"full,episodes"}}, TTL: detail}, &all); err != nil {
		return nil, err
	}
	listing := &provider.Listing{Provider: providerName, Show: showRec, Complete: true}
	for _, s := range all {
		if len(seasons) > 0 && !slices.Contains(seasons, s.Number) {
			continue
		}
		listing.Seasons = append(listing.Seasons, fromSeason(s, showIDs))
		for _, e := range s.Episodes {
			if e.Season == 0 && s.Number != 0 {
				e.Season = s.Number
			}
			listing.Episodes = append(listing.Episodes, fromEpisode(e, showIDs))
		}
	}
	return listing, nil
}

// Resolve looks ids up through the id search endpoint. A slug alone is
// resolved through the summary.
func (p *Provider) Resolve(ctx context.Context, ids media.IDs, m media.Media) ([]media.Record, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	if m == media.Season || m == media.Episode {
		m = media.Show
	}
	plural, singular, err := typePath(m)
	if err != nil || m == media.Person {
		return nil, provider.ErrUnsupported
	}
	lifetime := p.deps.Lifetimes().IDs

	var source, value string
	for _, kind := range []string{media.IDTrakt, media.IDImdb, media.IDTmdb, media.IDTvdb} {
		if v := ids.Get(kind); v != "" {
			source, value = kind, v
			break
		}
	}
	if source == "" {
		slug := ids.Get(media.IDSlug)
		if slug == "" {
			return nil, provider.ErrUnsupported
		}
		var t title
		if _, err := p.api.Get(ctx, provider.Call{Path: plural + "/" + url.PathEscape(slug), TTL: lifetime}, &t); err != nil {
			return nil, err
		}
		r := media.Record{Media: m, IDs: t.IDs.toIDs(), Title: t.Title, Year: t.Year, Complete: true}
		r.IDs.Fill(ids)
		return []media.Record{r}, nil
	}

	var rows provider.Rows[row]
	call := provider.Call{Path: "search/" + source + "/" + url.PathEscape(value), Query: url.Values{"type": {singular}}, TTL: lifetime}
	if _, err := p.api.Get(ctx, call, &rows); err != nil {
		return nil, err
	}
	rows.Log(p.logger, call.Path)
	var out []media.Record
	for _, rw := range rows.Items {
		t, rm := rw.subject(m)
		if t == nil || rm != m {
			continue
		}
		r := media.Record{Media: m, IDs: t.IDs.toIDs(), Title: t.Title, Year: t.Year, Complete: true}
		r.IDs.Fill(ids)
		out = append(out, r)
	}
	if len(out) == 0 {
		return nil, provider.NotFound(providerName, source+" "+value)
	}
	return out, nil
}
