package tvdb

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	tvdbapi "github.com/dashotv/tvdb"
	"github.com/dashotv/tvdb/openapi/models/operations"
	"github.com/dashotv/tvdb/openapi/models/shared"

	"github.com/gaiakodi/gaiasource/internal/media"
	"github.com/gaiakodi/gaiasource/internal/provider"
)

const pageSize = 50

func searchType(m media.Media) (string, error) {
	switch m {
	case media.Movie:
		return "movie", nil
	case media.Show, media.Season, media.Episode:
		return "series", nil
	}
	return "", provider.ErrUnsupported
}

// search runs the search endpoint and keeps hits of the wanted type.
func (p *Provider) search(ctx context.Context, query, kind string, year int) ([]searchRecord, error) {
	req := operations.GetSearchResultsRequest{Query: &query}
	req.Type = &kind
	params := map[string]any{"query": query, "type": kind}
	if year > 0 {
		yf := float64(year)
		req.Year = &yf
		params["year"] = year
	}

	resp, err := provider.SDKCall(ctx, p.deps, providerName, "sdk/search", params, p.deps.Lifetimes().List,
		func() (*tvdbapi.GetSearchResultsResponse, error) { return p.client.GetSearchResults(req) }, classify)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, nil
	}
	var out []searchRecord
	for _, candidate := range resp.Data {
		r := toSearchRecord(candidate)
		if r.ID == 0 || (r.Type != "" && r.Type != kind) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// Search finds movies and series by title.
func (p *Provider) Search(ctx context.Context, req media.Request) (*media.PageResult, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	kind, err := searchType(req.Media)
	if err != nil || req.Media != media.Movie && req.Media != media.Show {
		return nil, provider.ErrUnsupported
	}
	query := strings.TrimSpace(firstNonEmptyString(req.Query, req.Title))
	if query == "" {
		return nil, fmt.Errorf("%w: empty query", media.ErrInvalidRequest)
	}
	if req.Page > 1 {
		return &media.PageResult{Page: req.Page, Complete: true}, nil
	}

	hits, err := p.search(ctx, query, kind, req.Year)
	if err != nil {
		return nil, err
	}
	records := make([]media.Record, 0, len(hits))
	for i, h := range hits {
		records = append(records, h.record(req.Media, i+1))
	}
	initial := len(records)
	records = req.Filters.Apply(records)
	return &media.PageResult{
		Items: records,
		Page:  1,
		Count: media.Counts{
			Limit:      pageSize,
			Initial:    initial,
			Filtered:   len(records),
			Structured: len(records),
			Final:      len(records),
		},
		Complete: true,
	}, nil
}

// tvdbID returns the TVDB id of a title from its ids, through Resolve for
// foreign ids or a title search.
func (p *Provider) tvdbID(ctx context.Context, req media.Request) (int64, error) {
	m := req.Media
	if m == media.Season || m == media.Episode {
		m = media.Show
	}
	if v := req.IDs.Get(media.IDTvdb); v != "" {
		return parseInt64(v), nil
	}
	if !req.IDs.Empty() {
		if found, err := p.Resolve(ctx, req.IDs, m); err == nil && len(found) > 0 {
			return parseInt64(found[0].IDs.Get(media.IDTvdb)), nil
		} else if req.Title == "" {
			if err == nil {
				err = provider.NotFound(providerName, req.IDs.String())
			}
			return 0, err
		}
	}
	if req.Title == "" {
		return 0, fmt.Errorf("%w: %s lookup needs ids or a title", media.ErrInvalidRequest, m)
	}
	kind, _ := searchType(m)
	hits, err := p.search(ctx, req.Title, kind, req.Year)
	if err != nil {
		return 0, err
	}
	candidates := make([]media.Record, 0, len(hits))
	for i, h := range hits {
		candidates = append(candidates, h.record(m, i+1))
	}
	best, ok := provider.BestMatch(candidates, req.Title, req.Year, req.Deviation)
	if !ok {
		return 0, provider.NotFound(providerName, fmt.Sprintf("%s %q", m, req.Title))
	}
	return parseInt64(best.IDs.Get(media.IDTvdb)), nil
}

func (p *Provider) series(ctx context.Context, id int64, translations bool) (*tvdbapi.GetSeriesExtendedResponse, error) {
	var meta *operations.GetSeriesExtendedQueryParamMeta
	if translations {
		m := operations.GetSeriesExtendedQueryParamMetaTranslations
		meta = &m
	}
	resp, err := provider.SDKCall(ctx, p.deps, providerName, fmt.Sprintf("sdk/series/%d", id), map[string]any{"translations": translations}, p.deps.Lifetimes().Detail,
		func() (*tvdbapi.GetSeriesExtendedResponse, error) { return p.client.GetSeriesExtended(float64(id), meta, nil) }, classify)
	if err != nil {
		return nil, err
	}
	if resp == nil || resp.Data == nil {
		return nil, provider.NotFound(providerName, fmt.Sprintf("series %d", id))
	}
	return resp, nil
}

func (p *Provider) showRecord(ctx context.Context, id int64) (media.Record, error) {
	resp, err := p.series(ctx, id, true)
	if err != nil {
		return media.Record{}, err
	}
	series := resp.Data
	r := media.Record{
		Media:    media.Show,
		IDs:      remoteIDs(series.RemoteIds),
		Title:    pointerToString(series.Name),
		Plot:     pointerToString(series.Overview),
		Duration: int(pointerToInt64(series.AverageRuntime)) * 60,
		Complete: true,
	}
	r.IDs.Set(media.IDTvdb, strconv.FormatInt(id, 10))
	r.Year, _ = strconv.Atoi(pointerToString(series.Year))
	r.Premiered = media.ParseTime(pointerToString(series.FirstAired))
	r.SetTime(media.ReleasePremiere, r.Premiered)
	if r.Year == 0 && !r.Premiered.IsZero() {
		r.Year = r.Premiered.Year()
	}

	var genres []*string
	for _, g := range series.Genres {
		genres = append(genres, g.Name)
	}
	r.Genres = genreNames(genres)
	if n := series.OriginalNetwork; n != nil && pointerToString(n.Name) != "" {
		r.Networks = append(r.Networks, pointerToString(n.Name))
	}
	if n := series.LatestNetwork; n != nil && pointerToString(n.Name) != "" {
		r.Networks = media.Union(r.Networks, pointerToString(n.Name))
	}
	if c := isoCountry(pointerToString(series.Country)); c != "" {
		r.Countries = []string{c}
	}
	if l := isoLanguage(pointerToString(series.OriginalLanguage)); l != "" {
		r.Languages = []string{l}
	}
	if series.Status != nil {
		r.Status = statuses[strings.ToLower(pointerToString(series.Status.Name))]
	}
	if score := pointerToFloat(series.Score); score > 0 {
		r.SetExtra(providerName, "score", score)
	}
	return r, nil
}

func (p *Provider) movieRecord(ctx context.Context, id int64) (media.Record, error) {
	meta := operations.QueryParamMetaTranslations
	resp, err := provider.SDKCall(ctx, p.deps, providerName, fmt.Sprintf("sdk/movie/%d", id), nil, p.deps.Lifetimes().Detail,
		func() (*tvdbapi.GetMovieExtendedResponse, error) { return p.client.GetMovieExtended(float64(id), &meta, nil) }, classify)
	if err != nil {
		return media.Record{}, err
	}
	if resp == nil || resp.Data == nil {
		return media.Record{}, provider.NotFound(providerName, fmt.Sprintf("movie %d", id))
	}
	movie := resp.Data
	r := media.Record{
		Media:    media.Movie,
		IDs:      remoteIDs(movie.RemoteIds),
		Title:    pointerToString(movie.Name),
		Duration: int(pointerToInt64(movie.Runtime)) * 60,
		Complete: true,
	}
	r.IDs.Set(media.IDTvdb, strconv.FormatInt(id, 10))
	r.Year, _ = strconv.Atoi(pointerToString(movie.Year))
	var genres []*string
	for _, g := range movie.Genres {
		genres = append(genres, g.Name)
	}
	r.Genres = genreNames(genres)
	if score := pointerToFloat(movie.Score); score > 0 {
		r.SetExtra(providerName, "score", score)
	}
	return r, nil
}

// episodes lists the official-order episodes of a series, optionally of
// one season or one episode.
func (p *Provider) episodes(ctx context.Context, id int64, season, episode int) ([]shared.EpisodeBaseRecord, error) {
	req := operations.GetSeriesEpisodesRequest{
		ID:         float64(id),
		SeasonType: "official",
		Page:       0,
	}
	if season >= 0 {
		s := int64(season)
		req.Season = &s
	}
	if episode > 0 {
		e := int64(episode)
		req.EpisodeNumber = &e
	}
	path := fmt.Sprintf("sdk/series/%d/episodes", id)
	resp, err := provider.SDKCall(ctx, p.deps, providerName, path, map[string]int{"season": season, "episode": episode}, p.deps.Lifetimes().Detail,
		func() (*tvdbapi.GetSeriesEpisodesResponse, error) { return p.client.GetSeriesEpisodes(req) }, classify)
	if err != nil {
		return nil, err
	}
	if resp == nil || resp.Data == nil {
		return nil, provider.NotFound(providerName, fmt.Sprintf("episodes of series %d", id))
	}
	out := resp.Data.Episodes
	for i := range out {
		if out[i].SeasonNumber == nil && season >= 0 {
			s := int64(season)
			out[i].SeasonNumber = &s
		}
	}
	return out, nil
}

// Metadata fetches one movie, show, season or episode. Seasons are built
// from their episode list.
func (p *Provider) Metadata(ctx context.Context, req media.Request) (*media.Record, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	req = req.Normalized()
	if _, err := searchType(req.Media); err != nil {
		return nil, err
	}
	id, err := p.tvdbID(ctx, req)
	if err != nil {
		return nil, err
	}

	switch req.Media {
	case media.Movie:
		r, err := p.movieRecord(ctx, id)
		if err != nil {
			return nil, err
		}
		return &r, nil
	case media.Show:
		r, err := p.showRecord(ctx, id)
		if err != nil {
			return nil, err
		}
		return &r, nil
	}

	show, err := p.showIDs(ctx, id, req.IDs)
	if err != nil {
		return nil, err
	}
	if req.Media == media.Season {
		eps, err := p.episodes(ctx, id, req.Season, 0)
		if err != nil {
			return nil, err
		}
		if len(eps) == 0 {
			return nil, provider.NotFound(providerName, fmt.Sprintf("season %d of series %d", req.Season, id))
		}
		records := make([]media.Record, 0, len(eps))
		for _, e := range eps {
			records = append(records, fromEpisode(e, show))
		}
		r := seasonRecord(req.Season, records, show)
		return &r, nil
	}

	if req.Season < 0 || req.Episode <= 0 {
		return nil, fmt.Errorf("%w: episode needs season and episode numbers", media.ErrInvalidRequest)
	}
	eps, err := p.episodes(ctx, id, req.Season, req.Episode)
	if err != nil {
		return nil, err
	}
	for _, e := range eps {
		if int(pointerToInt64(e.Number)) == req.Episode {
			r := fromEpisode(e, show)
			return &r, nil
		}
	}
	return nil, provider.NotFound(providerName, fmt.Sprintf("S%02dE%02d of series %d", req.Season, req.Episode, id))
}

// showIDs returns the ids of a series, keeping the caller's ids.
func (p *Provider) showIDs(ctx context.Context, id int64, known media.IDs) (media.IDs, error) {
	resp, err := p.series(ctx, id, false)
	if err != nil {
		return nil, err
	}
	ids := remoteIDs(resp.Data.RemoteIds)
	ids.Set(media.IDTvdb, strconv.FormatInt(id, 10))
	ids.Fill(known)
	return ids, nil
}

// Pack lists the official-order seasons and episodes of a series in one
// episodes call.
func (p *Provider) Pack(ctx context.Context, show media.IDs, seasons []int) (*provider.Listing, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	id, err := p.tvdbID(ctx, media.Request{Media: media.Show, IDs: show.Normalize()})
	if err != nil {
		return nil, err
	}
	showRec, err := p.showRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	showIDs := showRec.IDs.Clone()
	showIDs.Fill(show)

	eps, err := p.episodes(ctx, id, -1, 0)
	if err != nil {
		return nil, err
	}
	bySeason := make(map[int][]media.Record)
	listing := &provider.Listing{Provider: providerName, Show: showRec, Complete: true}
	for _, e := range eps {
		r := fromEpisode(e, showIDs)
		if len(seasons) > 0 && !slices.Contains(seasons, r.Season) {
			continue
		}
		bySeason[r.Season] = append(bySeason[r.Season], r)
		listing.Episodes = append(listing.Episodes, r)
	}
	numbers := make([]int, 0, len(bySeason))
	for n := range bySeason {
		numbers = append(numbers, n)
	}
	slices.Sort(numbers)
	for _, n := range numbers {
		listing.Seasons = append(listing.Seasons, seasonRecord(n, bySeason[n], showIDs))
	}
	return listing, nil
}

// Resolve reads remote ids from the extended record when a TVDB id is
// known. Foreign ids are searched as text, which TVDB matches against its
// remote ids.
func (p *Provider) Resolve(ctx context.Context, ids media.IDs, m media.Media) ([]media.Record, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	if m == media.Season || m == media.Episode {
		m = media.Show
	}
	kind, err := searchType(m)
	if err != nil {
		return nil, err
	}

	if v := ids.Get(media.IDTvdb); v != "" {
		id := parseInt64(v)
		var r media.Record
		if m == media.Movie {
			r, err = p.movieRecord(ctx, id)
		} else {
			r, err = p.showRecord(ctx, id)
		}
		if err != nil {
			return nil, err
		}
		r.IDs.Fill(ids)
		return []media.Record{r}, nil
	}

	query := firstNonEmptyString(ids.Get(media.IDImdb), ids.Get(media.IDTmdb))
	if query == "" {
		return nil, provider.ErrUnsupported
	}
	hits, err := p.search(ctx, query, kind, 0)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return nil, provider.NotFound(providerName, ids.String())
	}
	out := make([]media.Record, 0, len(hits))
	for _, h := range hits {
		r := h.record(m, 0)
		r.IDs.Fill(ids)
		out = append(out, r)
	}
	return out, nil
}
