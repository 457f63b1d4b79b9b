package tmdb

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/ryanbradynd05/go-tmdb"

	"github.com/gaiakodi/gaiasource/internal/media"
	"github.com/gaiakodi/gaiasource/internal/provider"
)

// SDK-backed lookups. Every call passes the governor and the result cache
// through provider.SDKCall.

func (p *Provider) options(extra ...string) map[string]string {
	opts := map[string]string{"language": p.language}
	for i := 0; i+1 < len(extra); i += 2 {
		if extra[i+1] != "" {
			opts[extra[i]] = extra[i+1]
		}
	}
	return opts
}

func cacheParams(opts map[string]string, extra ...string) map[string]string {
	out := make(map[string]string, len(opts)+len(extra)/2)
	for k, v := range opts {
		out[k] = v
	}
	for i := 0; i+1 < len(extra); i += 2 {
		out[extra[i]] = extra[i+1]
	}
	return out
}

func (p *Provider) searchMovies(ctx context.Context, query string, opts map[string]string) ([]media.Record, error) {
	res, err := provider.SDKCall(ctx, p.deps, providerName, "sdk/search/movie", cacheParams(opts, "query", query), p.deps.Lifetimes().List,
		func() (*tmdb.MovieSearchResults, error) { return p.sdk.SearchMovie(query, opts) }, classify)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, nil
	}
	offset := pageOffset(opts)
	records := make([]media.Record, 0, len(res.Results))
	for i := range res.Results {
		records = append(records, movieShortToRecord(&res.Results[i], offset+i+1))
	}
	return records, nil
}

func (p *Provider) searchShows(ctx context.Context, query string, opts map[string]string) ([]media.Record, error) {
	res, err := provider.SDKCall(ctx, p.deps, providerName, "sdk/search/tv", cacheParams(opts, "query", query), p.deps.Lifetimes().List,
		func() (*tmdb.TvSearchResults, error) { return p.sdk.SearchTv(query, opts) }, classify)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, nil
	}
	offset := pageOffset(opts)
	records := make([]media.Record, 0, len(res.Results))
	for i, s := range res.Results {
		r := media.Record{Media: media.Show, IDs: media.IDs{}, Title: s.Name, Rank: offset + i + 1, Complete: true}
		r.IDs.Set(media.IDTmdb, id(s.ID))
		if s.OriginalName != s.Name {
			r.OriginalTitle = s.OriginalName
		}
		r.Premiered = media.ParseTime(s.FirstAirDate)
		r.Year = yearOf(s.FirstAirDate)
		r.SetTime(media.ReleasePremiere, r.Premiered)
		for _, c := range s.OriginCountry {
			r.Countries = append(r.Countries, strings.ToLower(c))
		}
		r.Rating, r.Votes = float64(s.VoteAverage), int(s.VoteCount)
		r.SetVote(providerName, r.Rating, r.Votes)
		if s.Popularity > 0 {
			r.SetExtra(providerName, "popularity", float64(s.Popularity))
		}
		records = append(records, r)
	}
	return records, nil
}

func pageOffset(opts map[string]string) int {
	n, err := strconv.Atoi(opts["page"])
	if err != nil || n < 1 {
		return 0
	}
	return (n - 1) * pageSize
}

// movieSummary fetches movie details through the SDK.
func (p *Provider) movieSummary(ctx context.Context, movieID int) (*media.Record, error) {
	opts := p.options()
	movie, err := provider.SDKCall(ctx, p.deps, providerName, fmt.Sprintf("sdk/movie/%d", movieID), opts, p.deps.Lifetimes().Detail,
		func() (*tmdb.Movie, error) { return p.sdk.GetMovieInfo(movieID, opts) }, classify)
	if err != nil {
		return nil, err
	}
	if movie == nil {
		return nil, provider.NotFound(providerName, fmt.Sprintf("movie %d", movieID))
	}
	r := movieToRecord(movie)
	return &r, nil
}

// showSummary fetches show details with external ids through the SDK.
func (p *Provider) showSummary(ctx context.Context, showID int) (*media.Record, error) {
	opts := p.options("append_to_response", "external_ids")
	show, err := provider.SDKCall(ctx, p.deps, providerName, fmt.Sprintf("sdk/tv/%d", showID), opts, p.deps.Lifetimes().Detail,
		func() (*tmdb.TV, error) { return p.sdk.GetTvInfo(showID, opts) }, classify)
	if err != nil {
		return nil, err
	}
	if show == nil {
		return nil, provider.NotFound(providerName, fmt.Sprintf("show %d", showID))
	}
	r := tvToRecord(show)
	return &r, nil
}

func (p *Provider) seasonInfo(ctx context.Context, showID int, show media.IDs, number int) (*media.Record, error) {
	opts := p.options()
	season, err := provider.SDKCall(ctx, p.deps, providerName, fmt.Sprintf("sdk/tv/%d/season/%d", showID, number), opts, p.deps.Lifetimes().Detail,
		func() (*tmdb.TvSeason, error) { return p.sdk.GetTvSeasonInfo(showID, number, opts) }, classify)
	if err != nil {
		return nil, err
	}
	if season == nil {
		return nil, provider.NotFound(providerName, fmt.Sprintf("season %d", number))
	}
	r := seasonToRecord(season, show)
	return &r, nil
}

func (p *Provider) episodeInfo(ctx context.Context, showID int, show media.IDs, seasonNum, episodeNum int) (*media.Record, error) {
	opts := p.options()
	ep, err := provider.SDKCall(ctx, p.deps, providerName, fmt.Sprintf("sdk/tv/%d/season/%d/episode/%d", showID, seasonNum, episodeNum), opts, p.deps.Lifetimes().Detail,
		func() (*tmdb.TvEpisode, error) { return p.sdk.GetTvEpisodeInfo(showID, seasonNum, episodeNum, opts) }, classify)
	if err != nil {
		return nil, err
	}
	if ep == nil {
		return nil, provider.NotFound(providerName, fmt.Sprintf("episode S%02dE%02d", seasonNum, episodeNum))
	}
	r := episodeToRecord(ep, show)
	return &r, nil
}

// Conversion functions

func movieShortToRecord(movie *tmdb.MovieShort, rank int) media.Record {
	r := media.Record{
		Media:    media.Movie,
		IDs:      media.IDs{},
		Title:    movie.Title,
		Year:     yearOf(movie.ReleaseDate),
		Plot:     movie.Overview,
		Rank:     rank,
		Complete: true,
	}
	r.IDs.Set(media.IDTmdb, id(int(movie.ID)))
	r.Premiered = media.ParseTime(movie.ReleaseDate)
	r.SetTime(media.ReleasePremiere, r.Premiered)
	r.Rating, r.Votes = float64(movie.VoteAverage), int(movie.VoteCount)
	r.SetVote(providerName, r.Rating, r.Votes)
	if movie.Popularity > 0 {
		r.SetExtra(providerName, "popularity", float64(movie.Popularity))
	}
	return r
}

func movieToRecord(movie *tmdb.Movie) media.Record {
	genres := make([]string, 0, len(movie.Genres))
	for _, g := range movie.Genres {
		genres = append(genres, g.Name)
	}

	r := media.Record{
		Media:    media.Movie,
		IDs:      media.IDs{},
		Title:    movie.Title,
		Year:     yearOf(movie.ReleaseDate),
		Plot:     movie.Overview,
		Tagline:  movie.Tagline,
		Homepage: movie.Homepage,
		Genres:   media.NormalizeGenres(genres...),
		Duration: int(movie.Runtime) * 60,
		Complete: true,
	}
	r.IDs.Set(media.IDTmdb, id(int(movie.ID)))
	r.IDs.Set(media.IDImdb, movie.ImdbID)
	r.Premiered = media.ParseTime(movie.ReleaseDate)
	r.SetTime(media.ReleasePremiere, r.Premiered)
	r.Rating, r.Votes = float64(movie.VoteAverage), int(movie.VoteCount)
	r.SetVote(providerName, r.Rating, r.Votes)

	for _, c := range movie.ProductionCompanies {
		r.Studios = append(r.Studios, c.Name)
	}
	if movie.Popularity > 0 {
		r.SetExtra(providerName, "popularity", float64(movie.Popularity))
	}
	if movie.Budget > 0 {
		r.SetExtra(providerName, "budget", int64(movie.Budget))
	}
	if movie.Revenue > 0 {
		r.SetExtra(providerName, "revenue", int64(movie.Revenue))
	}
	return r
}

func tvToRecord(show *tmdb.TV) media.Record {
	genres := make([]string, 0, len(show.Genres))
	for _, g := range show.Genres {
		genres = append(genres, g.Name)
	}

	r := media.Record{
		Media:    media.Show,
		IDs:      media.IDs{},
		Title:    show.Name,
		Year:     yearOf(show.FirstAirDate),
		Plot:     show.Overview,
		Homepage: show.Homepage,
		Genres:   media.NormalizeGenres(genres...),
		Count: map[string]int{
			"seasons":  int(show.NumberOfSeasons),
			"episodes": int(show.NumberOfEpisodes),
		},
		Complete: true,
	}
	r.IDs.Set(media.IDTmdb, id(int(show.ID)))
	if show.ExternalIDs != nil {
		r.IDs.Set(media.IDImdb, show.ExternalIDs.ImdbID)
	}
	r.Premiered = media.ParseTime(show.FirstAirDate)
	r.SetTime(media.ReleasePremiere, r.Premiered)
	if len(show.EpisodeRunTime) > 0 {
		r.Duration = int(show.EpisodeRunTime[0]) * 60
	}
	if show.InProduction {
		r.Status = media.StatusContinuing
	}
	r.Rating, r.Votes = float64(show.VoteAverage), int(show.VoteCount)
	r.SetVote(providerName, r.Rating, r.Votes)

	for _, n := range show.Networks {
		r.Networks = append(r.Networks, n.Name)
	}
	for _, c := range show.ProductionCompanies {
		r.Studios = append(r.Studios, c.Name)
	}
	if show.Popularity > 0 {
		r.SetExtra(providerName, "popularity", float64(show.Popularity))
	}
	return r
}

func seasonToRecord(season *tmdb.TvSeason, show media.IDs) media.Record {
	r := media.Record{
		Media:    media.Season,
		IDs:      media.IDs{},
		Show:     show.Clone(),
		Title:    season.Name,
		Season:   int(season.SeasonNumber),
		Plot:     season.Overview,
		Year:     yearOf(season.AirDate),
		Count:    map[string]int{"episodes": len(season.Episodes)},
		Complete: true,
	}
	r.IDs.Set(media.IDTmdb, id(int(season.ID)))
	r.Premiered = media.ParseTime(season.AirDate)
	return r
}

func episodeToRecord(ep *tmdb.TvEpisode, show media.IDs) media.Record {
	r := media.Record{
		Media:    media.Episode,
		IDs:      media.IDs{},
		Show:     show.Clone(),
		Title:    ep.Name,
		Season:   int(ep.SeasonNumber),
		Episode:  int(ep.EpisodeNumber),
		Plot:     ep.Overview,
		Year:     yearOf(ep.AirDate),
		Complete: true,
	}
	r.IDs.Set(media.IDTmdb, id(int(ep.ID)))
	r.Aired = media.ParseTime(ep.AirDate)
	r.Premiered = r.Aired
	r.SetTime(media.ReleaseTelevision, r.Aired)
	r.Rating, r.Votes = float64(ep.VoteAverage), int(ep.VoteCount)
	r.SetVote(providerName, r.Rating, r.Votes)
	if ep.ProductionCode != "" {
		r.SetExtra(providerName, "production_code", ep.ProductionCode)
	}

	for i, s := range ep.GuestStars {
		r.Cast = append(r.Cast, media.CastMember{Name: s.Name, Order: i})
	}
	for _, c := range ep.Crew {
		switch c.Job {
		case "Director":
			r.Director = media.Union(r.Director, c.Name)
		case "Writer", "Screenplay", "Teleplay", "Story":
			r.Writer = media.Union(r.Writer, c.Name)
		}
	}
	return r
}
