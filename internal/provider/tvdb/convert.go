package tvdb

import (
	"strconv"
	"strings"

	"github.com/dashotv/tvdb/openapi/models/shared"
	"golang.org/x/text/language"

	"github.com/gaiakodi/gaiasource/internal/media"
)

// searchRecord is one usable hit of the search endpoint.
type searchRecord struct {
	ID   int64
	Name string
	Year string
	Type string
}

func toSearchRecord(result shared.SearchResult) searchRecord {
	id := parseInt64(pointerToString(result.TvdbID))
	if id == 0 {
		id = parseInt64(strings.TrimLeft(pointerToString(result.ID), "seriesmovie-"))
	}

	name := firstNonEmptyString(pointerToString(result.Name), pointerToString(result.NameTranslated), pointerToString(result.Title))
	return searchRecord{ID: id, Name: name, Year: pointerToString(result.Year), Type: strings.ToLower(pointerToString(result.Type))}
}

func (s searchRecord) record(m media.Media, rank int) media.Record {
	r := media.Record{Media: m, IDs: media.IDs{}, Title: s.Name, Rank: rank, Complete: true}
	r.IDs.Set(media.IDTvdb, strconv.FormatInt(s.ID, 10))
	r.Year, _ = strconv.Atoi(s.Year)
	return r
}

// remoteIDs collects the imdb and tmdb ids TVDB links to.
func remoteIDs(ids []shared.RemoteID) media.IDs {
	out := media.IDs{}
	out.Set(media.IDImdb, findRemoteID(ids, "imdb"))
	out.Set(media.IDTmdb, findRemoteID(ids, "themoviedb"))
	return out
}

func findRemoteID(ids []shared.RemoteID, source string) string {
	needle := strings.ToLower(strings.TrimSpace(source))
	for _, remote := range ids {
		sourceName := strings.ToLower(strings.TrimSpace(pointerToString(remote.SourceName)))
		if strings.Contains(sourceName, needle) {
			return strings.TrimSpace(pointerToString(remote.ID))
		}
	}
	return ""
}

// isoLanguage turns TVDB's three-letter codes into ISO 639-1 where one
// exists.
func isoLanguage(code string) string {
	if code == "" {
		return ""
	}
	b, err := language.ParseBase(code)
	if err != nil {
		return strings.ToLower(code)
	}
	return b.String()
}

// isoCountry turns TVDB's three-letter country codes into lower case ISO
// 3166-1 alpha-2.
func isoCountry(code string) string {
	if code == "" {
		return ""
	}
	r, err := language.ParseRegion(code)
	if err != nil {
		return strings.ToLower(code)
	}
	return strings.ToLower(r.String())
}

var statuses = map[string]media.Status{
	"continuing": media.StatusContinuing,
	"ended":      media.StatusEnded,
	"upcoming":   media.StatusUpcoming,
	"released":   media.StatusReleased,
}

// episodeType derives the episode type from its position and TVDB's
// finale marker.
func episodeType(season, number int, finale string) media.EpisodeType {
	switch strings.ToLower(finale) {
	case "series":
		return media.EpisodeSeriesFinale
	case "season":
		return media.EpisodeSeasonFinale
	case "midseason":
		return media.EpisodeMidSeasonFinale
	}
	if number == 1 && season == 1 {
		return media.EpisodeSeriesPremiere
	}
	if number == 1 && season > 1 {
		return media.EpisodeSeasonPremiere
	}
	return media.EpisodeStandard
}

func genreNames(names []*string) []string {
	var out []string
	for _, n := range names {
		if v := pointerToString(n); v != "" {
			out = append(out, v)
		}
	}
	return media.NormalizeGenres(out...)
}

func fromEpisode(e shared.EpisodeBaseRecord, show media.IDs) media.Record {
	season, number := int(pointerToInt64(e.SeasonNumber)), int(pointerToInt64(e.Number))
	r := media.Record{
		Media:    media.Episode,
		IDs:      media.IDs{},
		Show:     show.Clone(),
		Title:    pointerToString(e.Name),
		Plot:     pointerToString(e.Overview),
		Season:   season,
		Episode:  number,
		Type:     episodeType(season, number, pointerToString(e.FinaleType)),
		Duration: int(pointerToInt64(e.Runtime)) * 60,
		Complete: true,
	}
	if id := pointerToInt64(e.ID); id > 0 {
		r.IDs.Set(media.IDTvdb, strconv.FormatInt(id, 10))
	}
	r.Aired = media.ParseTime(pointerToString(e.Aired))
	r.Premiered = r.Aired
	r.SetTime(media.ReleaseTelevision, r.Aired)
	if !r.Aired.IsZero() {
		r.Year = r.Aired.Year()
	} else {
		r.Year, _ = strconv.Atoi(pointerToString(e.Year))
	}
	return r
}

// seasonRecord summarizes the episodes of one season.
func seasonRecord(number int, episodes []media.Record, show media.IDs) media.Record {
	r := media.Record{
		Media:    media.Season,
		IDs:      media.IDs{},
		Show:     show.Clone(),
		Title:    "Season " + strconv.Itoa(number),
		Season:   number,
		Count:    map[string]int{"episodes": len(episodes)},
		Complete: true,
	}
	if number == 0 {
		r.Title = "Specials"
	}
	for _, e := range episodes {
		if e.Aired.IsZero() {
			continue
		}
		if r.Premiered.IsZero() || e.Aired.Before(r.Premiered) {
			r.Premiered = e.Aired
		}
	}
	r.SetTime(media.ReleasePremiere, r.Premiered)
	if !r.Premiered.IsZero() {
		r.Year = r.Premiered.Year()
	}
	return r
}

func pointerToString(value *string) string {
	if value == nil {
		return ""
	}
	return strings.TrimSpace(*value)
}

func pointerToFloat(value *float64) float64 {
	if value == nil {
		return 0
	}
	return *value
}

func pointerToInt64(value *int64) int64 {
	if value == nil {
		return 0
	}
	return *value
}

func parseInt64(value string) int64 {
	parsed, _ := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	return parsed
}

func firstNonEmptyString(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}
