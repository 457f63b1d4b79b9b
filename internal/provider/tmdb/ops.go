package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/gaiakodi/gaiasource/internal/media"
	"github.com/gaiakodi/gaiasource/internal/provider"
)

func kindPath(m media.Media) (string, error) {
	switch m {
	case media.Movie:
		return "movie", nil
	case media.Show:
		return "tv", nil
	}
	return "", provider.ErrUnsupported
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

func (p *Provider) rows(items provider.Rows[item], m media.Media, pageNum int) []media.Record {
	for _, err := range items.Dropped {
		p.logger.Warn("dropping malformed row", "media", m, "err", err)
	}
	offset := (max(pageNum, 1) - 1) * pageSize
	out := make([]media.Record, 0, len(items.Items))
	for i, it := range items.Items {
		if it.ID <= 0 {
			p.logger.Debug("dropping row without id", "media", m)
			continue
		}
		out = append(out, fromItem(it, m, offset+i+1))
	}
	return out
}

func (p *Provider) getPage(ctx context.Context, path string, q url.Values, m media.Media) ([]media.Record, *page, error) {
	var pg page
	if _, err := p.api.Get(ctx, provider.Call{Path: path, Query: q, TTL: p.deps.Lifetimes().List}, &pg); err != nil {
		return nil, nil, err
	}
	return p.rows(pg.Results, m, pg.Page), &pg, nil
}

// Search runs a text search. Movies and shows go through the SDK,
// collections and people through the JSON API.
func (p *Provider) Search(ctx context.Context, req media.Request) (*media.PageResult, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	query := strings.TrimSpace(first(req.Query, req.Title))
	if query == "" {
		return nil, fmt.Errorf("%w: empty query", media.ErrInvalidRequest)
	}
	pageNum := max(req.Page, 1)
	opts := p.options("page", strconv.Itoa(pageNum), "include_adult", "false")

	var records []media.Record
	var err error
	switch req.Media {
	case media.Movie:
		if req.Year > 0 {
			opts["year"] = strconv.Itoa(req.Year)
		}
		records, err = p.searchMovies(ctx, query, opts)
	case media.Show:
		if req.Year > 0 {
			opts["first_air_date_year"] = strconv.Itoa(req.Year)
		}
		records, err = p.searchShows(ctx, query, opts)
	case media.Set:
		records, err = p.searchCollections(ctx, query, pageNum)
	case media.Person:
		q := url.Values{"query": {query}, "page": {strconv.Itoa(pageNum)}, "language": {p.language}}
		records, _, err = p.getPage(ctx, "search/person", q, media.Person)
	default:
		return nil, provider.ErrUnsupported
	}
	if err != nil {
		return nil, err
	}
	initial := len(records)
	records = req.Filters.Apply(records)
	return pageOf(records, pageNum, initial >= pageSize, initial, true), nil
}

// searchCollections finds sets by name. Slug forms such as
// "the-harry-potter-collection" are accepted; exact name matches are moved
// to the front.
func (p *Provider) searchCollections(ctx context.Context, query string, pageNum int) ([]media.Record, error) {
	name := strings.ReplaceAll(media.BareSlug(query), "-", " ")
	search := func(text string) ([]media.Record, error) {
		q := url.Values{"query": {text}, "page": {strconv.Itoa(pageNum)}, "language": {p.language}}
		records, _, err := p.getPage(ctx, "search/collection", q, media.Set)
		return records, err
	}
	records, err := search(name)
	if err == nil && len(records) == 0 && !strings.Contains(name, "collection") {
		records, err = search(name + " collection")
	}
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(records, func(a, b media.Record) int {
		ea := media.Similarity(media.BareSlug(a.Title), media.BareSlug(query)) >= provider.ExactTitleMatch
		eb := media.Similarity(media.BareSlug(b.Title), media.BareSlug(query)) >= provider.ExactTitleMatch
		switch {
		case ea && !eb:
			return -1
		case eb && !ea:
			return 1
		}
		return 0
	})
	return records, nil
}

// Discover lists titles through /discover. Sets have no discover endpoint
// and free text cannot be sent to it, so both fall back to search.
func (p *Provider) Discover(ctx context.Context, req media.Request) (*media.PageResult, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	if req.Media == media.Set || strings.TrimSpace(req.Query) != "" {
		if strings.TrimSpace(first(req.Query, req.Title)) == "" {
			return nil, provider.ErrUnsupported
		}
		return p.Search(ctx, req)
	}
	path, err := kindPath(req.Media)
	if err != nil {
		return nil, err
	}

	q, rest, _ := lowerDiscover(req, p.language, p.region)
	records, pg, err := p.getPage(ctx, "discover/"+path, q, req.Media)
	if err != nil {
		return nil, err
	}
	initial := len(records)
	records = rest.Apply(records)
	return pageOf(records, max(pg.Page, 1), pg.Page < pg.TotalPages, initial, true), nil
}

// Release lists titles released inside the request window. TMDb takes the
// whole window in one call.
func (p *Provider) Release(ctx context.Context, req media.Request) (*media.PageResult, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	if req.Window == nil {
		return nil, fmt.Errorf("%w: release needs a window", media.ErrInvalidRequest)
	}
	path, err := kindPath(req.Media)
	if err != nil {
		return nil, err
	}

	q, rest := lowerRelease(req, p.language, p.region)
	records, pg, err := p.getPage(ctx, "discover/"+path, q, req.Media)
	if err != nil {
		return nil, err
	}
	initial := len(records)
	for i := range records {
		if kind := req.Release; kind != "" && kind != media.ReleaseUnknown && !records[i].Premiered.IsZero() {
			records[i].SetTime(kind, records[i].Premiered)
		}
	}
	records = rest.Apply(records)
	return pageOf(records, max(pg.Page, 1), pg.Page < pg.TotalPages, initial, true), nil
}

// Recommend returns titles similar to the seed in req.IDs, or the weekly
// trending list without a seed.
func (p *Provider) Recommend(ctx context.Context, req media.Request) (*media.PageResult, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	path, err := kindPath(req.Media)
	if err != nil {
		return nil, err
	}
	q := url.Values{"language": {p.language}, "page": {strconv.Itoa(max(req.Page, 1))}}

	endpoint := "trending/" + path + "/week"
	if !req.IDs.Empty() {
		seed, err := p.tmdbID(ctx, req.IDs, req.Media)
		if err != nil {
			return nil, err
		}
		endpoint = path + "/" + seed + "/recommendations"
	}
	records, pg, err := p.getPage(ctx, endpoint, q, req.Media)
	if err != nil {
		return nil, err
	}
	initial := len(records)
	records = req.Filters.Apply(records)
	return pageOf(records, max(pg.Page, 1), pg.Page < pg.TotalPages, initial, true), nil
}

// List reads a public TMDb list. User lists need a session TMDb does not
// grant to API keys.
func (p *Provider) List(ctx context.Context, req media.Request) (*media.PageResult, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	if req.List != media.ListItems || req.ListID == "" {
		return nil, provider.ErrUnsupported
	}
	pageNum := max(req.Page, 1)
	q := url.Values{"language": {p.language}, "page": {strconv.Itoa(pageNum)}}

	var list listResponse
	if _, err := p.api.Get(ctx, provider.Call{Path: "list/" + url.PathEscape(req.ListID), Query: q, TTL: p.deps.Lifetimes().List}, &list); err != nil {
		return nil, err
	}
	records := p.rows(list.Items, media.Movie, pageNum)
	if req.Media != "" && req.Media != media.Mixed {
		records = slices.DeleteFunc(records, func(r media.Record) bool { return r.Media != req.Media })
	}
	initial := len(records)
	records = req.Filters.Apply(records)
	return pageOf(records, pageNum, pageNum < list.TotalPages, initial, true), nil
}

// tmdbID returns the TMDb id for ids, translating foreign ids through /find.
func (p *Provider) tmdbID(ctx context.Context, ids media.IDs, m media.Media) (string, error) {
	if v := ids.Get(media.IDTmdb); v != "" {
		return v, nil
	}
	found, err := p.Resolve(ctx, ids, m)
	if err != nil {
		return "", err
	}
	for _, r := range found {
		if v := r.IDs.Get(media.IDTmdb); v != "" {
			return v, nil
		}
	}
	return "", provider.NotFound(providerName, ids.String())
}

// lookup finds the TMDb id of a title when no id is known.
func (p *Provider) lookup(ctx context.Context, req media.Request) (string, error) {
	if !req.IDs.Empty() {
		return p.tmdbID(ctx, req.IDs, req.Media)
	}
	m := req.Media
	if m == media.Season || m == media.Episode {
		m = media.Show
	}
	res, err := p.Search(ctx, media.Request{Kind: media.KindSearch, Media: m, Query: req.Title, Year: req.Year})
	if err != nil {
		return "", err
	}
	if best, ok := provider.BestMatch(res.Items, req.Title, req.Year, req.Deviation); ok {
		return best.IDs.Get(media.IDTmdb), nil
	}
	return "", provider.NotFound(providerName, fmt.Sprintf("%s %q", m, req.Title))
}

// appends lists the detail sub-resources needed for the requested facets.
func appends(m media.Media, req media.Request) []string {
	subs := []string{"external_ids", "keywords", "videos"}
	if req.Wants(media.FacetPeople) {
		subs = append(subs, "credits")
	}
	if req.Wants(media.FacetTranslations) {
		subs = append(subs, "translations")
	}
	if req.Wants(media.FacetAliases) {
		subs = append(subs, "alternative_titles")
	}
	if req.Wants(media.FacetReleases) {
		if m == media.Show {
			subs = append(subs, "content_ratings")
		} else {
			subs = append(subs, "release_dates")
		}
	}
	return subs
}

func summaryOnly(req media.Request) bool {
	for _, f := range req.What {
		if f != media.FacetSummary && f != media.FacetRatings && f != media.FacetStudios {
			return false
		}
	}
	return true
}

// detail fetches a movie or show with its sub-resources appended, split
// into batches of at most appendLimit. complete is false when a batch
// failed.
func (p *Provider) detail(ctx context.Context, path, tmdbID string, subs []string) (detail, bool, error) {
	merged, err := provider.AppendBatch(ctx, p.deps.Workers, subs, appendLimit, func(ctx context.Context, chunk []string) (map[string]json.RawMessage, error) {
		q := url.Values{"language": {p.language}}
		if len(chunk) > 0 {
			q.Set("append_to_response", strings.Join(chunk, ","))
		}
		var out map[string]json.RawMessage
		_, err := p.api.Get(ctx, provider.Call{Path: path + "/" + tmdbID, Query: q, TTL: p.deps.Lifetimes().Detail}, &out)
		return out, err
	})
	if merged == nil {
		return detail{}, false, err
	}
	if err != nil {
		p.logger.Debug("detail batch failed", "path", path, "id", tmdbID, "err", err)
	}
	raw, _ := json.Marshal(merged)
	var d detail
	if uerr := json.Unmarshal(raw, &d); uerr != nil {
		return detail{}, false, provider.ServerError(providerName, 0, uerr)
	}
	return d, err == nil, nil
}

// Metadata fetches one record with the requested facets. Seasons and
// episodes are addressed by their show's ids plus numbers.
func (p *Provider) Metadata(ctx context.Context, req media.Request) (*media.Record, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	req = req.Normalized()

	switch req.Media {
	case media.Movie, media.Show:
		tmdbID, err := p.lookup(ctx, req)
		if err != nil {
			return nil, err
		}
		n, _ := strconv.Atoi(tmdbID)
		if summaryOnly(req) {
			if req.Media == media.Movie {
				return p.movieSummary(ctx, n)
			}
			return p.showSummary(ctx, n)
		}
		path, _ := kindPath(req.Media)
		d, complete, err := p.detail(ctx, path, tmdbID, appends(req.Media, req))
		if err != nil {
			return nil, err
		}
		r := fromDetail(d, req.Media, p.region)
		r.Complete = complete
		if req.Wants(media.FacetParts) {
			if setID, ok := r.Extra(providerName, "collection"); ok {
				if set, err := p.collection(ctx, fmt.Sprint(setID)); err == nil {
					r.Parts = set.Parts
				} else {
					r.Complete = false
				}
			}
		}
		return &r, nil

	case media.Set:
		setID := req.IDs.Get(media.IDTmdb)
		if setID == "" {
			if req.Title == "" {
				return nil, provider.ErrUnsupported
			}
			found, err := p.searchCollections(ctx, req.Title, 1)
			if err != nil {
				return nil, err
			}
			if len(found) == 0 {
				return nil, provider.NotFound(providerName, fmt.Sprintf("set %q", req.Title))
			}
			setID = found[0].IDs.Get(media.IDTmdb)
		}
		return p.collection(ctx, setID)

	case media.Season, media.Episode:
		showID, err := p.lookup(ctx, req)
		if err != nil {
			return nil, err
		}
		n, _ := strconv.Atoi(showID)
		show := req.IDs.Clone()
		if show == nil {
			show = media.IDs{}
		}
		show.Set(media.IDTmdb, showID)
		if req.Media == media.Season {
			return p.seasonInfo(ctx, n, show, req.Season)
		}
		return p.episodeInfo(ctx, n, show, req.Season, req.Episode)

	case media.Person:
		personID := req.IDs.Get(media.IDTmdb)
		if personID == "" {
			res, err := p.Search(ctx, media.Request{Kind: media.KindSearch, Media: media.Person, Query: req.Title})
			if err != nil {
				return nil, err
			}
			best, ok := provider.BestMatch(res.Items, req.Title, 0, false)
			if !ok {
				return nil, provider.NotFound(providerName, fmt.Sprintf("person %q", req.Title))
			}
			personID = best.IDs.Get(media.IDTmdb)
		}
		var pr person
		if _, err := p.api.Get(ctx, provider.Call{Path: "person/" + personID, Query: url.Values{"language": {p.language}}, TTL: p.deps.Lifetimes().Detail}, &pr); err != nil {
			return nil, err
		}
		r := fromPerson(pr)
		return &r, nil
	}
	return nil, provider.ErrUnsupported
}

func (p *Provider) collection(ctx context.Context, setID string) (*media.Record, error) {
	var c collection
	if _, err := p.api.Get(ctx, provider.Call{Path: "collection/" + setID, Query: url.Values{"language": {p.language}}, TTL: p.deps.Lifetimes().Detail}, &c); err != nil {
		return nil, err
	}
	r := fromCollection(c)
	return &r, nil
}

// Pack lists the seasons and episodes of a show. Seasons are fetched in
// parallel; seasons limits the fetch to those numbers.
func (p *Provider) Pack(ctx context.Context, show media.IDs, seasons []int) (*provider.Listing, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	showID, err := p.tmdbID(ctx, show, media.Show)
	if err != nil {
		return nil, err
	}
	d, _, err := p.detail(ctx, "tv", showID, []string{"external_ids"})
	if err != nil {
		return nil, err
	}
	showRec := fromDetail(d, media.Show, p.region)
	showIDs := showRec.IDs.Clone()
	showIDs.Fill(show)

	var numbers []int
	for _, s := range d.Seasons {
		if len(seasons) == 0 || slices.Contains(seasons, s.SeasonNumber) {
			numbers = append(numbers, s.SeasonNumber)
		}
	}

	outcomes := provider.FanOut(ctx, p.deps.Workers, len(numbers), func(ctx context.Context, i int) (season, error) {
		var s season
		path := fmt.Sprintf("tv/%s/season/%d", showID, numbers[i])
		_, err := p.api.Get(ctx, provider.Call{Path: path, Query: url.Values{"language": {p.language}}, TTL: p.deps.Lifetimes().Detail}, &s)
		return s, err
	})

	listing := &provider.Listing{Provider: providerName, Show: showRec, Complete: true}
	var errs []error
	for i, o := range outcomes {
		if o.Err != nil {
			p.logger.Warn("season fetch failed", "show", showID, "season", numbers[i], "err", o.Err)
			errs = append(errs, o.Err)
			listing.Complete = false
			continue
		}
		listing.Seasons = append(listing.Seasons, fromSeason(o.Value, showIDs))
		for _, e := range o.Value.Episodes {
			listing.Episodes = append(listing.Episodes, fromEpisode(e, showIDs))
		}
	}
	if len(numbers) > 0 && len(errs) == len(numbers) {
		return nil, errors.Join(errs...)
	}
	return listing, nil
}

// Resolve translates ids through /external_ids when a TMDb id is known and
// through /find otherwise.
func (p *Provider) Resolve(ctx context.Context, ids media.IDs, m media.Media) ([]media.Record, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	path, err := kindPath(m)
	if err != nil {
		return nil, err
	}

	if tmdbID := ids.Get(media.IDTmdb); tmdbID != "" {
		r, err := p.externalIDs(ctx, path, tmdbID, m)
		if err != nil {
			return nil, err
		}
		return []media.Record{r}, nil
	}

	var source, value string
	switch {
	case ids.Get(media.IDImdb) != "":
		source, value = "imdb_id", ids.Get(media.IDImdb)
	case ids.Get(media.IDTvdb) != "":
		source, value = "tvdb_id", ids.Get(media.IDTvdb)
	default:
		return nil, provider.ErrUnsupported
	}

	var found findResult
	q := url.Values{"external_source": {source}, "language": {p.language}}
	if _, err := p.api.Get(ctx, provider.Call{Path: "find/" + value, Query: q, TTL: p.deps.Lifetimes().IDs}, &found); err != nil {
		return nil, err
	}
	rows := found.MovieResults
	if m == media.Show {
		rows = found.TvResults
	}
	records := p.rows(rows, m, 1)
	if len(records) == 0 {
		return nil, provider.NotFound(providerName, fmt.Sprintf("%s %s", source, value))
	}
	for i := range records {
		records[i].IDs.Fill(ids)
		records[i].Rank = 0
	}
	// /find returns no imdb id for shows found by tvdb id
	if m == media.Show && records[0].IDs.Get(media.IDImdb) == "" {
		if ext, err := p.externalIDs(ctx, path, records[0].IDs.Get(media.IDTmdb), m); err == nil {
			records[0].IDs.Fill(ext.IDs)
		} else {
			records[0].Complete = false
		}
	}
	return records, nil
}

func (p *Provider) externalIDs(ctx context.Context, path, tmdbID string, m media.Media) (media.Record, error) {
	var ext externalIDs
	if _, err := p.api.Get(ctx, provider.Call{Path: path + "/" + tmdbID + "/external_ids", TTL: p.deps.Lifetimes().IDs}, &ext); err != nil {
		return media.Record{}, err
	}
	r := media.Record{Media: m, IDs: media.IDs{}, Complete: true}
	r.IDs.Set(media.IDTmdb, tmdbID)
	r.IDs.Set(media.IDImdb, ext.ImdbID)
	r.IDs.Set(media.IDTvdb, id(ext.TvdbID))
	return r, nil
}
