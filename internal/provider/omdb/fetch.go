package omdb

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/Digital-Shane/omdb"

	"github.com/gaiakodi/gaiasource/internal/media"
	"github.com/gaiakodi/gaiasource/internal/provider"
)

// lookup runs one omdb client query and keeps the answer when it has the
// wanted result type. Queries with an imdb id go by id, the rest by title.
func lookup[T any](ctx context.Context, p *Provider, what string, q omdb.QueryData) (*T, error) {
	path := "sdk/" + what
	return provider.SDKCall(ctx, p.deps, providerName, path, q, p.deps.Lifetimes().Detail, func() (*T, error) {
		var result any
		var err error
		if q.ImdbID != "" {
			result, err = p.client.SearchByImdbID(q)
		} else {
			result, err = p.client.SearchByTitle(q)
		}
		if err != nil {
			return nil, err
		}
		switch v := result.(type) {
		case T:
			return &v, nil
		case *T:
			if v != nil {
				return v, nil
			}
		}
		return nil, provider.NotFound(providerName, what)
	}, classify)
}

// titleQuery builds the lookup of a movie or show from ids or a title.
func titleQuery(req media.Request, searchType string) (omdb.QueryData, error) {
	q := omdb.QueryData{SearchType: searchType, Plot: "full"}
	if id := req.IDs.Get(media.IDImdb); id != "" {
		q.ImdbID = id
		return q, nil
	}
	q.Title = strings.TrimSpace(req.Title)
	if q.Title == "" {
		return q, fmt.Errorf("%w: %s lookup needs an imdb id or a title", media.ErrInvalidRequest, req.Media)
	}
	if req.Year > 0 {
		q.Year = strconv.Itoa(req.Year)
	}
	return q, nil
}

// showQuery addresses a season or episode through the show's imdb id or
// title; season and episode requests carry the show ids.
func showQuery(req media.Request) (omdb.QueryData, error) {
	q := omdb.QueryData{}
	if id := req.IDs.Get(media.IDImdb); id != "" {
		q.ImdbID = id
	} else if q.Title = strings.TrimSpace(req.Title); q.Title == "" {
		return q, fmt.Errorf("%w: %s lookup needs the show imdb id or title", media.ErrInvalidRequest, req.Media)
	} else if req.Year > 0 {
		q.Year = strconv.Itoa(req.Year)
	}
	return q, nil
}

func (p *Provider) fetchMovie(ctx context.Context, req media.Request) (*media.Record, error) {
	q, err := titleQuery(req, "movie")
	if err != nil {
		return nil, err
	}
	if q.ImdbID == "" {
		movie, err := lookup[omdb.MovieResult](ctx, p, "movie", q)
		if err != nil {
			return nil, err
		}
		if movie.ImdbID == "" {
			r := movieRecord(*movie)
			return &r, nil
		}
		q.ImdbID = movie.ImdbID
	}
	return p.describe(ctx, q.ImdbID, media.Movie)
}

func (p *Provider) fetchShow(ctx context.Context, req media.Request) (*media.Record, error) {
	q, err := titleQuery(req, "series")
	if err != nil {
		return nil, err
	}
	if q.ImdbID == "" {
		series, err := lookup[omdb.SeriesResult](ctx, p, "series", q)
		if err != nil {
			return nil, err
		}
		if series.ImdbID == "" {
			r := seriesRecord(*series)
			return &r, nil
		}
		q.ImdbID = series.ImdbID
	}
	return p.describe(ctx, q.ImdbID, media.Show)
}

func (p *Provider) fetchSeason(ctx context.Context, req media.Request) (*media.Record, error) {
	if req.Season < 0 {
		return nil, fmt.Errorf("%w: season fetch requires a valid season number", media.ErrInvalidRequest)
	}
	q, err := showQuery(req)
	if err != nil {
		return nil, err
	}
	q.Season = strconv.Itoa(req.Season)

	season, err := lookup[omdb.SeasonResult](ctx, p, "season", q)
	if err != nil {
		return nil, err
	}
	r := media.Record{
		Media:    media.Season,
		IDs:      media.IDs{},
		Show:     media.IDs{},
		Title:    season.Title,
		Season:   req.Season,
		Count:    map[string]int{"episodes": len(season.Episodes)},
		Complete: true,
	}
	if r.Title == "" {
		r.Title = req.Title
	}
	r.Year, _ = strconv.Atoi(omdb.FirstYearFromEpisodes(season.Episodes))
	r.Show.Set(media.IDImdb, q.ImdbID)
	// OMDb has no season ids; the show id keeps the record addressable.
	r.IDs.Set(media.IDImdb, q.ImdbID)
	return &r, nil
}

func (p *Provider) fetchEpisode(ctx context.Context, req media.Request) (*media.Record, error) {
	if req.Season < 0 || req.Episode <= 0 {
		return nil, fmt.Errorf("%w: episode fetch requires valid season and episode numbers", media.ErrInvalidRequest)
	}
	q, err := showQuery(req)
	if err != nil {
		return nil, err
	}
	q.Season = strconv.Itoa(req.Season)
	q.Episode = strconv.Itoa(req.Episode)
	q.Plot = "full"

	episode, err := lookup[omdb.EpisodeResult](ctx, p, "episode", q)
	if err != nil {
		return nil, err
	}
	r := episodeRecord(*episode, req.Season, req.Episode)
	if r.Show.Get(media.IDImdb) == "" {
		r.Show.Set(media.IDImdb, q.ImdbID)
	}
	if r.IDs.Empty() {
		return nil, provider.NotFound(providerName, fmt.Sprintf("episode S%02dE%02d", req.Season, req.Episode))
	}
	return &r, nil
}

func movieRecord(result omdb.MovieResult) media.Record {
	r := media.Record{
		Media:    media.Movie,
		IDs:      media.IDs{},
		Title:    clean(result.Title),
		Plot:     clean(result.Plot),
		Genres:   media.NormalizeGenres(omdb.SplitAndTrim(clean(result.Genre))...),
		Duration: parseRuntime(result.Runtime) * 60,
		Complete: true,
	}
	r.IDs.Set(media.IDImdb, result.ImdbID)
	r.Year, _ = strconv.Atoi(omdb.FirstYear(result.Year))
	r.SetVote(voteSource, parseRating(result.ImdbRating), 0)
	setNames(&r, result.Language, result.Country)
	return r
}

func seriesRecord(result omdb.SeriesResult) media.Record {
	r := media.Record{
		Media:    media.Show,
		IDs:      media.IDs{},
		Title:    clean(result.Title),
		Plot:     clean(result.Plot),
		Genres:   media.NormalizeGenres(omdb.SplitAndTrim(clean(result.Genre))...),
		Duration: parseRuntime(result.Runtime) * 60,
		Complete: true,
	}
	r.IDs.Set(media.IDImdb, result.ImdbID)
	r.Year, _ = strconv.Atoi(omdb.FirstYear(result.Year))
	r.SetVote(voteSource, parseRating(result.ImdbRating), 0)
	if n, err := strconv.Atoi(result.TotalSeasons); err == nil && n > 0 {
		r.Count = map[string]int{"seasons": n}
	}
	setNames(&r, result.Language, result.Country)
	return r
}

func episodeRecord(result omdb.EpisodeResult, season, number int) media.Record {
	r := media.Record{
		Media:    media.Episode,
		IDs:      media.IDs{},
		Show:     media.IDs{},
		Title:    clean(result.Title),
		Season:   season,
		Episode:  number,
		Type:     media.EpisodeStandard,
		Plot:     clean(result.Plot),
		Genres:   media.NormalizeGenres(omdb.SplitAndTrim(clean(result.Genre))...),
		Duration: parseRuntime(result.Runtime) * 60,
		Complete: true,
	}
	r.IDs.Set(media.IDImdb, result.ImdbID)
	r.Show.Set(media.IDImdb, clean(result.SeriesID))
	r.Aired = parseDate(result.Released)
	r.Premiered = r.Aired
	r.Year, _ = strconv.Atoi(omdb.FirstYear(result.Released))
	if r.Year == 0 && !r.Aired.IsZero() {
		r.Year = r.Aired.Year()
	}
	r.SetVote(voteSource, parseRating(result.ImdbRating), 0)
	setNames(&r, result.Language, result.Country)
	return r
}
