package tmdb

import (
	"strconv"
	"strings"
	"time"

	"github.com/gaiakodi/gaiasource/internal/media"
	"github.com/gaiakodi/gaiasource/internal/provider"
)

// JSON shapes of the endpoints read without the SDK.

type named struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// item is one row of a search, discover, trending, recommendation or list
// response. Movies fill Title and ReleaseDate, shows Name and FirstAirDate.
type item struct {
	ID               int      `json:"id"`
	MediaType        string   `json:"media_type"`
	Title            string   `json:"title"`
	OriginalTitle    string   `json:"original_title"`
	Name             string   `json:"name"`
	OriginalName     string   `json:"original_name"`
	Overview         string   `json:"overview"`
	ReleaseDate      string   `json:"release_date"`
	FirstAirDate     string   `json:"first_air_date"`
	OriginalLanguage string   `json:"original_language"`
	OriginCountry    []string `json:"origin_country"`
	GenreIDs         []int    `json:"genre_ids"`
	Popularity       float64  `json:"popularity"`
	VoteAverage      float64  `json:"vote_average"`
	VoteCount        int      `json:"vote_count"`
	KnownFor         string   `json:"known_for_department"`
	ProfilePath      string   `json:"profile_path"`
}

type page struct {
	Page         int                 `json:"page"`
	Results      provider.Rows[item] `json:"results"`
	TotalPages   int                 `json:"total_pages"`
	TotalResults int                 `json:"total_results"`
}

type externalIDs struct {
	ID     int    `json:"id"`
	ImdbID string `json:"imdb_id"`
	TvdbID int    `json:"tvdb_id"`
}

type findResult struct {
	MovieResults provider.Rows[item] `json:"movie_results"`
	TvResults    provider.Rows[item] `json:"tv_results"`
}

type castCredit struct {
	Name        string `json:"name"`
	Character   string `json:"character"`
	Order       int    `json:"order"`
	ProfilePath string `json:"profile_path"`
}

type crewCredit struct {
	Name       string `json:"name"`
	Job        string `json:"job"`
	Department string `json:"department"`
}

type credits struct {
	Cast []castCredit `json:"cast"`
	Crew []crewCredit `json:"crew"`
}

type releaseDates struct {
	Results []struct {
		Country string `json:"iso_3166_1"`
		Dates   []struct {
			Certification string `json:"certification"`
			ReleaseDate   string `json:"release_date"`
			Type          int    `json:"type"`
		} `json:"release_dates"`
	} `json:"results"`
}

type contentRatings struct {
	Results []struct {
		Country string `json:"iso_3166_1"`
		Rating  string `json:"rating"`
	} `json:"results"`
}

// movies and shows name the inner lists of these differently
type keywords struct {
	Keywords []named `json:"keywords"`
	Results  []named `json:"results"`
}

type altTitles struct {
	Titles []struct {
		Title string `json:"title"`
	} `json:"titles"`
	Results []struct {
		Title string `json:"title"`
	} `json:"results"`
}

type translations struct {
	Translations []struct {
		Language string `json:"iso_639_1"`
		Country  string `json:"iso_3166_1"`
		Data     struct {
			Title string `json:"title"`
			Name  string `json:"name"`
		} `json:"data"`
	} `json:"translations"`
}

type videos struct {
	Results []struct {
		Key      string `json:"key"`
		Site     string `json:"site"`
		Type     string `json:"type"`
		Official bool   `json:"official"`
	} `json:"results"`
}

type seasonSummary struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	SeasonNumber int    `json:"season_number"`
	EpisodeCount int    `json:"episode_count"`
	AirDate      string `json:"air_date"`
}

// detail is a movie or show detail response with any appended
// sub-resources.
type detail struct {
	item
	ImdbID              string          `json:"imdb_id"`
	Runtime             int             `json:"runtime"`
	EpisodeRunTime      []int           `json:"episode_run_time"`
	Genres              []named         `json:"genres"`
	Tagline             string          `json:"tagline"`
	Homepage            string          `json:"homepage"`
	Status              string          `json:"status"`
	ProductionCompanies []named         `json:"production_companies"`
	Networks            []named         `json:"networks"`
	CreatedBy           []named         `json:"created_by"`
	BelongsTo           *named          `json:"belongs_to_collection"`
	NumberOfSeasons     int             `json:"number_of_seasons"`
	NumberOfEpisodes    int             `json:"number_of_episodes"`
	LastAirDate         string          `json:"last_air_date"`
	Seasons             []seasonSummary `json:"seasons"`
	ProductionCountries []struct {
		Code string `json:"iso_3166_1"`
	} `json:"production_countries"`
	SpokenLanguages []struct {
		Code string `json:"iso_639_1"`
	} `json:"spoken_languages"`

	Credits           *credits        `json:"credits"`
	ReleaseDates      *releaseDates   `json:"release_dates"`
	ContentRatings    *contentRatings `json:"content_ratings"`
	ExternalIDs       *externalIDs    `json:"external_ids"`
	Keywords          *keywords       `json:"keywords"`
	AlternativeTitles *altTitles      `json:"alternative_titles"`
	Translations      *translations   `json:"translations"`
	Videos            *videos         `json:"videos"`
}

type collection struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Overview string `json:"overview"`
	Parts    []item `json:"parts"`
}

type episode struct {
	ID             int     `json:"id"`
	Name           string  `json:"name"`
	Overview       string  `json:"overview"`
	AirDate        string  `json:"air_date"`
	EpisodeNumber  int     `json:"episode_number"`
	SeasonNumber   int     `json:"season_number"`
	EpisodeType    string  `json:"episode_type"`
	Runtime        int     `json:"runtime"`
	VoteAverage    float64 `json:"vote_average"`
	VoteCount      int     `json:"vote_count"`
	ProductionCode string  `json:"production_code"`
}

type season struct {
	ID           int       `json:"id"`
	Name         string    `json:"name"`
	Overview     string    `json:"overview"`
	AirDate      string    `json:"air_date"`
	SeasonNumber int       `json:"season_number"`
	Episodes     []episode `json:"episodes"`
}

type person struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Biography   string `json:"biography"`
	Birthday    string `json:"birthday"`
	ImdbID      string `json:"imdb_id"`
	Homepage    string `json:"homepage"`
	ProfilePath string `json:"profile_path"`
	KnownFor    string `json:"known_for_department"`
}

type listResponse struct {
	ID         string              `json:"id"`
	Name       string              `json:"name"`
	Items      provider.Rows[item] `json:"items"`
	ItemCount  int                 `json:"item_count"`
	TotalPages int                 `json:"total_pages"`
}

const imageBase = "https://image.tmdb.org/t/p/original"

var statusNames = map[string]media.Status{
	"rumored":          media.StatusRumored,
	"planned":          media.StatusPlanned,
	"in production":    media.StatusProduction,
	"post production":  media.StatusProduction,
	"released":         media.StatusReleased,
	"returning series": media.StatusContinuing,
	"ended":            media.StatusEnded,
	"canceled":         media.StatusCanceled,
	"cancelled":        media.StatusCanceled,
	"pilot":            media.StatusPilot,
}

var releaseKinds = map[int]media.ReleaseKind{
	1: media.ReleasePremiere,
	2: media.ReleaseLimited,
	3: media.ReleaseTheatrical,
	4: media.ReleaseDigital,
	5: media.ReleasePhysical,
	6: media.ReleaseTelevision,
}

func id(n int) string {
	if n <= 0 {
		return ""
	}
	return strconv.Itoa(n)
}

func yearOf(date string) int {
	if len(date) < 4 {
		return 0
	}
	y, _ := strconv.Atoi(date[:4])
	return y
}

func image(path string) string {
	if path == "" {
		return ""
	}
	return imageBase + path
}

// itemMedia decides the media of a row from its media_type or, on typed
// endpoints, from the fallback.
func itemMedia(it item, fallback media.Media) media.Media {
	switch it.MediaType {
	case "movie":
		return media.Movie
	case "tv":
		return media.Show
	case "person":
		return media.Person
	case "collection":
		return media.Set
	}
	return fallback
}

// fromItem converts one listing row. rank is its 1-based position across
// pages.
func fromItem(it item, m media.Media, rank int) media.Record {
	m = itemMedia(it, m)
	r := media.Record{Media: m, IDs: media.IDs{}, Rank: rank, Complete: true}
	r.IDs.Set(media.IDTmdb, id(it.ID))
	r.Plot = it.Overview

	switch m {
	case media.Show:
		r.Title, r.OriginalTitle = it.Name, it.OriginalName
		r.Premiered = media.ParseTime(it.FirstAirDate)
		r.Year = yearOf(it.FirstAirDate)
		r.SetTime(media.ReleasePremiere, r.Premiered)
	case media.Person, media.Set:
		r.Title = first(it.Name, it.Title)
	default:
		r.Title, r.OriginalTitle = it.Title, it.OriginalTitle
		r.Premiered = media.ParseTime(it.ReleaseDate)
		r.Year = yearOf(it.ReleaseDate)
		r.SetTime(media.ReleasePremiere, r.Premiered)
	}
	if r.OriginalTitle == r.Title {
		r.OriginalTitle = ""
	}
	r.Genres = genreNames(m, it.GenreIDs)
	if it.OriginalLanguage != "" {
		r.Languages = []string{it.OriginalLanguage}
	}
	for _, c := range it.OriginCountry {
		r.Countries = append(r.Countries, strings.ToLower(c))
	}
	r.Rating, r.Votes = it.VoteAverage, it.VoteCount
	r.SetVote(providerName, it.VoteAverage, it.VoteCount)
	if it.Popularity > 0 {
		r.SetExtra(providerName, "popularity", it.Popularity)
	}
	return r
}

func first(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// fromDetail converts a detail response with whatever sub-resources were
// appended. region picks certificates and regional release dates.
func fromDetail(d detail, m media.Media, region string) media.Record {
	r := fromItem(d.item, m, 0)
	r.Media = m
	r.IDs.Set(media.IDImdb, d.ImdbID)
	if ext := d.ExternalIDs; ext != nil {
		r.IDs.Set(media.IDImdb, ext.ImdbID)
		r.IDs.Set(media.IDTvdb, id(ext.TvdbID))
	}

	names := make([]string, 0, len(d.Genres))
	for _, g := range d.Genres {
		names = append(names, g.Name)
	}
	if len(names) > 0 {
		r.Genres = media.NormalizeGenres(names...)
	}
	r.Tagline = d.Tagline
	r.Homepage = d.Homepage
	r.Status = statusNames[strings.ToLower(d.Status)]

	if d.Runtime > 0 {
		r.Duration = d.Runtime * 60
	} else if len(d.EpisodeRunTime) > 0 {
		r.Duration = d.EpisodeRunTime[0] * 60
	}
	for _, c := range d.ProductionCompanies {
		r.Studios = append(r.Studios, c.Name)
	}
	for _, n := range d.Networks {
		r.Networks = append(r.Networks, n.Name)
	}
	for _, c := range d.CreatedBy {
		r.Creator = append(r.Creator, c.Name)
	}
	for _, c := range d.ProductionCountries {
		r.Countries = media.Union(r.Countries, strings.ToLower(c.Code))
	}
	for _, l := range d.SpokenLanguages {
		r.Languages = media.Union(r.Languages, l.Code)
	}
	if d.BelongsTo != nil && d.BelongsTo.ID > 0 {
		r.SetExtra(providerName, "collection", id(d.BelongsTo.ID))
	}

	if m == media.Show {
		r.Count = map[string]int{"seasons": d.NumberOfSeasons, "episodes": d.NumberOfEpisodes}
		r.Premiered = media.ParseTime(d.FirstAirDate)
		if last := media.ParseTime(d.LastAirDate); !last.IsZero() && r.Status == media.StatusEnded {
			r.SetTime(media.ReleaseFinale, last)
		}
	}

	if c := d.Credits; c != nil {
		for _, cast := range c.Cast {
			r.Cast = append(r.Cast, media.CastMember{Name: cast.Name, Role: cast.Character, Order: cast.Order, Thumbnail: image(cast.ProfilePath)})
		}
		for _, crew := range c.Crew {
			switch {
			case crew.Job == "Director":
				r.Director = media.Union(r.Director, crew.Name)
			case crew.Department == "Writing":
				r.Writer = media.Union(r.Writer, crew.Name)
			}
		}
	}
	if rd := d.ReleaseDates; rd != nil {
		for _, country := range rd.Results {
			for _, rel := range country.Dates {
				kind, ok := releaseKinds[rel.Type]
				if !ok {
					continue
				}
				r.SetTime(kind, media.ParseTime(rel.ReleaseDate))
				if strings.EqualFold(country.Country, region) && r.Certificate == "" {
					r.Certificate = rel.Certification
				}
			}
		}
	}
	if cr := d.ContentRatings; cr != nil {
		for _, c := range cr.Results {
			if strings.EqualFold(c.Country, region) {
				r.Certificate = c.Rating
				break
			}
		}
	}
	if kw := d.Keywords; kw != nil {
		for _, k := range append(kw.Keywords, kw.Results...) {
			r.Keywords = media.Union(r.Keywords, strings.ToLower(k.Name))
		}
	}
	if at := d.AlternativeTitles; at != nil {
		for _, t := range at.Titles {
			r.Aliases = media.Union(r.Aliases, t.Title)
		}
		for _, t := range at.Results {
			r.Aliases = media.Union(r.Aliases, t.Title)
		}
	}
	if tr := d.Translations; tr != nil {
		for _, t := range tr.Translations {
			if title := first(t.Data.Title, t.Data.Name); title != "" && title != r.Title {
				r.Aliases = media.Union(r.Aliases, title)
			}
		}
	}
	if v := d.Videos; v != nil {
		for _, vid := range v.Results {
			if vid.Site == "YouTube" && vid.Type == "Trailer" && vid.Key != "" {
				r.Trailer = "https://www.youtube.com/watch?v=" + vid.Key
				break
			}
		}
	}
	return r
}

func fromCollection(c collection) media.Record {
	r := media.Record{Media: media.Set, IDs: media.IDs{}, Title: c.Name, Plot: c.Overview, Complete: true}
	r.IDs.Set(media.IDTmdb, id(c.ID))
	for _, part := range c.Parts {
		ids := media.IDs{}
		ids.Set(media.IDTmdb, id(part.ID))
		r.Parts = append(r.Parts, ids)
		if y := yearOf(part.ReleaseDate); y > 0 && (r.Year == 0 || y < r.Year) {
			r.Year = y
			r.Premiered = media.ParseTime(part.ReleaseDate)
		}
	}
	r.Count = map[string]int{"parts": len(c.Parts)}
	return r
}

// episodeType derives premiere and finale markers from TMDb's
// episode_type and the episode's position.
func episodeType(e episode) media.EpisodeType {
	switch e.EpisodeType {
	case "finale":
		return media.EpisodeSeasonFinale
	case "mid_season":
		return media.EpisodeMidSeasonFinale
	}
	switch {
	case e.SeasonNumber == 1 && e.EpisodeNumber == 1:
		return media.EpisodeSeriesPremiere
	case e.SeasonNumber > 0 && e.EpisodeNumber == 1:
		return media.EpisodeSeasonPremiere
	}
	return media.EpisodeStandard
}

func fromEpisode(e episode, show media.IDs) media.Record {
	r := media.Record{
		Media:    media.Episode,
		IDs:      media.IDs{},
		Show:     show.Clone(),
		Title:    e.Name,
		Plot:     e.Overview,
		Season:   e.SeasonNumber,
		Episode:  e.EpisodeNumber,
		Type:     episodeType(e),
		Duration: e.Runtime * 60,
		Complete: true,
	}
	r.IDs.Set(media.IDTmdb, id(e.ID))
	r.Aired = media.ParseTime(e.AirDate)
	r.Premiered = r.Aired
	r.Year = yearOf(e.AirDate)
	r.SetTime(media.ReleaseTelevision, r.Aired)
	r.Rating, r.Votes = e.VoteAverage, e.VoteCount
	r.SetVote(providerName, e.VoteAverage, e.VoteCount)
	if e.ProductionCode != "" {
		r.SetExtra(providerName, "production_code", e.ProductionCode)
	}
	return r
}

func fromSeason(s season, show media.IDs) media.Record {
	r := media.Record{
		Media:    media.Season,
		IDs:      media.IDs{},
		Show:     show.Clone(),
		Title:    s.Name,
		Plot:     s.Overview,
		Season:   s.SeasonNumber,
		Complete: true,
	}
	r.IDs.Set(media.IDTmdb, id(s.ID))
	r.Premiered = media.ParseTime(s.AirDate)
	r.Year = yearOf(s.AirDate)
	r.Count = map[string]int{"episodes": len(s.Episodes)}
	return r
}

func fromPerson(p person) media.Record {
	r := media.Record{Media: media.Person, IDs: media.IDs{}, Title: p.Name, Plot: p.Biography, Homepage: p.Homepage, Complete: true}
	r.IDs.Set(media.IDTmdb, id(p.ID))
	r.IDs.Set(media.IDImdb, p.ImdbID)
	if b := media.ParseTime(p.Birthday); !b.IsZero() {
		r.Year = b.Year()
		r.SetExtra(providerName, "birthday", b.Format(time.DateOnly))
	}
	if p.KnownFor != "" {
		r.SetExtra(providerName, "known_for", p.KnownFor)
	}
	if p.ProfilePath != "" {
		r.SetExtra(providerName, "thumbnail", image(p.ProfilePath))
	}
	return r
}
