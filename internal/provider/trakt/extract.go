package trakt

import (
	"strconv"
	"strings"

	"github.com/gaiakodi/gaiasource/internal/media"
)

// Wire shapes. Listing endpoints return either bare titles or wrapper rows
// carrying the title under "movie", "show", "episode" or "person"; row
// embeds title so both decode into it.

type ids struct {
	Trakt int    `json:"trakt"`
	Slug  string `json:"slug"`
	Imdb  string `json:"imdb"`
	Tmdb  int    `json:"tmdb"`
	Tvdb  int    `json:"tvdb"`
}

func (i ids) toIDs() media.IDs {
	out := media.IDs{}
	out.Set(media.IDTrakt, num(i.Trakt))
	out.Set(media.IDSlug, i.Slug)
	out.Set(media.IDImdb, i.Imdb)
	out.Set(media.IDTmdb, num(i.Tmdb))
	out.Set(media.IDTvdb, num(i.Tvdb))
	return out
}

// title is a movie or show object.
type title struct {
	Title         string   `json:"title"`
	Year          int      `json:"year"`
	IDs           ids      `json:"ids"`
	Tagline       string   `json:"tagline"`
	Overview      string   `json:"overview"`
	Released      string   `json:"released"`
	FirstAired    string   `json:"first_aired"`
	Runtime       int      `json:"runtime"`
	Country       string   `json:"country"`
	Trailer       string   `json:"trailer"`
	Homepage      string   `json:"homepage"`
	Status        string   `json:"status"`
	Rating        float64  `json:"rating"`
	Votes         int      `json:"votes"`
	Language      string   `json:"language"`
	Languages     []string `json:"languages"`
	Genres        []string `json:"genres"`
	Certification string   `json:"certification"`
	Network       string   `json:"network"`
	AiredEpisodes int      `json:"aired_episodes"`
}

type episode struct {
	Season      int     `json:"season"`
	Number      int     `json:"number"`
	Title       string  `json:"title"`
	IDs         ids     `json:"ids"`
	NumberAbs   int     `json:"number_abs"`
	Overview    string  `json:"overview"`
	Rating      float64 `json:"rating"`
	Votes       int     `json:"votes"`
	FirstAired  string  `json:"first_aired"`
	Runtime     int     `json:"runtime"`
	EpisodeType string  `json:"episode_type"`
}

type season struct {
	Number        int       `json:"number"`
	IDs           ids       `json:"ids"`
	Title         string    `json:"title"`
	Overview      string    `json:"overview"`
	Rating        float64   `json:"rating"`
	Votes         int       `json:"votes"`
	EpisodeCount  int       `json:"episode_count"`
	AiredEpisodes int       `json:"aired_episodes"`
	FirstAired    string    `json:"first_aired"`
	Network       string    `json:"network"`
	Episodes      []episode `json:"episodes"`
}

type person struct {
	Name      string `json:"name"`
	IDs       ids    `json:"ids"`
	Biography string `json:"biography"`
	Birthday  string `json:"birthday"`
	Homepage  string `json:"homepage"`
	KnownFor  string `json:"known_for_department"`
}

type row struct {
	title

	Type           string   `json:"type"`
	Score          float64  `json:"score"`
	Rank           int      `json:"rank"`
	Watchers       int      `json:"watchers"`
	ListCount      int      `json:"list_count"`
	Revenue        int64    `json:"revenue"`
	WatcherCount   int      `json:"watcher_count"`
	PlayCount      int      `json:"play_count"`
	CollectedCount int      `json:"collected_count"`
	Movie          *title   `json:"movie"`
	Show           *title   `json:"show"`
	Episode        *episode `json:"episode"`
	Person         *person  `json:"person"`
}

type castMember struct {
	Character  string   `json:"character"`
	Characters []string `json:"characters"`
	Person     person   `json:"person"`
}

type crewMember struct {
	Job    string   `json:"job"`
	Jobs   []string `json:"jobs"`
	Person person   `json:"person"`
}

type people struct {
	Cast []castMember           `json:"cast"`
	Crew map[string][]crewMember `json:"crew"`
}

type alias struct {
	Title   string `json:"title"`
	Country string `json:"country"`
}

type translation struct {
	Title    string `json:"title"`
	Overview string `json:"overview"`
	Tagline  string `json:"tagline"`
	Language string `json:"language"`
	Country  string `json:"country"`
}

type ratings struct {
	Rating       float64        `json:"rating"`
	Votes        int            `json:"votes"`
	Distribution map[string]int `json:"distribution"`
}

type release struct {
	Country       string `json:"country"`
	Certification string `json:"certification"`
	ReleaseDate   string `json:"release_date"`
	ReleaseType   string `json:"release_type"`
}

type studio struct {
	Name    string `json:"name"`
	Country string `json:"country"`
}

var statuses = map[string]media.Status{
	"rumored":          media.StatusRumored,
	"planned":          media.StatusPlanned,
	"in production":    media.StatusProduction,
	"post production":  media.StatusProduction,
	"upcoming":         media.StatusUpcoming,
	"released":         media.StatusReleased,
	"returning series": media.StatusContinuing,
	"continuing":       media.StatusContinuing,
	"ended":            media.StatusEnded,
	"canceled":         media.StatusCanceled,
	"pilot":            media.StatusPilot,
}

var episodeTypes = map[string]media.EpisodeType{
	"standard":            media.EpisodeStandard,
	"series_premiere":     media.EpisodeSeriesPremiere,
	"season_premiere":     media.EpisodeSeasonPremiere,
	"mid_season_premiere": media.EpisodeMidSeasonPremiere,
	"mid_season_finale":   media.EpisodeMidSeasonFinale,
	"season_finale":       media.EpisodeSeasonFinale,
	"series_finale":       media.EpisodeSeriesFinale,
}

var releaseTypes = map[string]media.ReleaseKind{
	"unknown":    media.ReleaseUnknown,
	"premiere":   media.ReleasePremiere,
	"limited":    media.ReleaseLimited,
	"theatrical": media.ReleaseTheatrical,
	"digital":    media.ReleaseDigital,
	"physical":   media.ReleasePhysical,
	"tv":         media.ReleaseTelevision,
}

func num(n int) string {
	if n <= 0 {
		return ""
	}
	return strconv.Itoa(n)
}

// subject returns the title a row carries and its media. Bare rows take
// the fallback media.
func (r row) subject(fallback media.Media) (*title, media.Media) {
	switch {
	case r.Movie != nil:
		return r.Movie, media.Movie
	case r.Show != nil:
		return r.Show, media.Show
	case r.IDs.Trakt > 0 || r.IDs.Slug != "":
		t := r.title
		return &t, fallback
	}
	return nil, fallback
}

// fromTitle converts a movie or show object.
func fromTitle(t title, m media.Media) media.Record {
	r := media.Record{Media: m, IDs: t.IDs.toIDs(), Title: t.Title, Year: t.Year, Complete: true}
	r.Plot = t.Overview
	r.Tagline = t.Tagline
	r.Homepage = t.Homepage
	r.Trailer = t.Trailer
	r.Certificate = t.Certification
	r.Status = statuses[strings.ToLower(t.Status)]
	r.Genres = media.NormalizeGenres(t.Genres...)
	r.Duration = t.Runtime * 60
	if t.Language != "" {
		r.Languages = []string{t.Language}
	}
	r.Languages = media.Union(r.Languages, t.Languages...)
	if t.Country != "" {
		r.Countries = []string{strings.ToLower(t.Country)}
	}
	if t.Network != "" {
		r.Networks = []string{t.Network}
	}
	r.Rating, r.Votes = t.Rating, t.Votes
	r.SetVote(providerName, t.Rating, t.Votes)

	if m == media.Show {
		r.Premiered = media.ParseTime(t.FirstAired)
		r.SetTime(media.ReleasePremiere, r.Premiered)
		if t.AiredEpisodes > 0 {
			r.Count = map[string]int{"episodes": t.AiredEpisodes}
		}
	} else {
		r.Premiered = media.ParseTime(t.Released)
		r.SetTime(media.ReleaseTheatrical, r.Premiered)
	}
	if r.Year == 0 && !r.Premiered.IsZero() {
		r.Year = r.Premiered.Year()
	}
	return r
}

// fromRow converts one listing row; rank is its 1-based position across
// pages. Popularity signals ride in the extras.
func fromRow(rw row, fallback media.Media, rank int) (media.Record, bool) {
	if rw.Person != nil {
		r := fromPerson(*rw.Person)
		r.Rank = rank
		return r, len(r.IDs) > 0
	}
	if rw.Episode != nil && rw.Show != nil && fallback == media.Episode {
		show := rw.Show.IDs.toIDs()
		r := fromEpisode(*rw.Episode, show)
		r.Rank = rank
		return r, len(r.IDs) > 0
	}
	t, m := rw.subject(fallback)
	if t == nil {
		return media.Record{}, false
	}
	r := fromTitle(*t, m)
	r.Rank = rank
	if rw.Rank > 0 {
		r.Rank = rw.Rank
	}
	for key, v := range map[string]int{
		"watchers":  max(rw.Watchers, rw.WatcherCount),
		"lists":     rw.ListCount,
		"plays":     rw.PlayCount,
		"collected": rw.CollectedCount,
	} {
		if v > 0 {
			r.SetExtra(providerName, key, v)
		}
	}
	if rw.Revenue > 0 {
		r.SetExtra(providerName, "revenue", rw.Revenue)
	}
	if rw.Score > 0 {
		r.SetExtra(providerName, "score", rw.Score)
	}
	return r, len(r.IDs) > 0
}

func fromEpisode(e episode, show media.IDs) media.Record {
	r := media.Record{
		Media:    media.Episode,
		IDs:      e.IDs.toIDs(),
		Show:     show.Clone(),
		Title:    e.Title,
		Plot:     e.Overview,
		Season:   e.Season,
		Episode:  e.Number,
		Absolute: e.NumberAbs,
		Type:     episodeTypes[e.EpisodeType],
		Duration: e.Runtime * 60,
		Complete: true,
	}
	r.Aired = media.ParseTime(e.FirstAired)
	r.Premiered = r.Aired
	if !r.Aired.IsZero() {
		r.Year = r.Aired.Year()
	}
	r.SetTime(media.ReleaseTelevision, r.Aired)
	r.Rating, r.Votes = e.Rating, e.Votes
	r.SetVote(providerName, e.Rating, e.Votes)
	return r
}

func fromSeason(s season, show media.IDs) media.Record {
	r := media.Record{
		Media:    media.Season,
		IDs:      s.IDs.toIDs(),
		Show:     show.Clone(),
		Title:    s.Title,
		Plot:     s.Overview,
		Season:   s.Number,
		Complete: true,
	}
	r.Premiered = media.ParseTime(s.FirstAired)
	if !r.Premiered.IsZero() {
		r.Year = r.Premiered.Year()
	}
	r.SetTime(media.ReleasePremiere, r.Premiered)
	if s.Network != "" {
		r.Networks = []string{s.Network}
	}
	count := s.EpisodeCount
	if len(s.Episodes) > count {
		count = len(s.Episodes)
	}
	r.Count = map[string]int{"episodes": count}
	r.Rating, r.Votes = s.Rating, s.Votes
	r.SetVote(providerName, s.Rating, s.Votes)
	return r
}

func fromPerson(p person) media.Record {
	r := media.Record{Media: media.Person, IDs: p.IDs.toIDs(), Title: p.Name, Plot: p.Biography, Homepage: p.Homepage, Complete: true}
	if b := media.ParseTime(p.Birthday); !b.IsZero() {
		r.Year = b.Year()
	}
	if p.KnownFor != "" {
		r.SetExtra(providerName, "known_for", p.KnownFor)
	}
	return r
}

// applyPeople fills cast and crew. Trakt groups crew by department.
func applyPeople(r *media.Record, pp people) {
	for i, c := range pp.Cast {
		role := c.Character
		if role == "" && len(c.Characters) > 0 {
			role = strings.Join(c.Characters, " / ")
		}
		r.Cast = append(r.Cast, media.CastMember{Name: c.Person.Name, Role: role, Order: i})
	}
	for _, c := range pp.Crew["directing"] {
		if hasJob(c, "Director") {
			r.Director = media.Union(r.Director, c.Person.Name)
		}
	}
	for _, c := range pp.Crew["writing"] {
		r.Writer = media.Union(r.Writer, c.Person.Name)
	}
	for _, c := range pp.Crew["created by"] {
		r.Creator = media.Union(r.Creator, c.Person.Name)
	}
}

func hasJob(c crewMember, job string) bool {
	if c.Job == job {
		return true
	}
	for _, j := range c.Jobs {
		if j == job {
			return true
		}
	}
	return false
}

// applyRatings records the vote with its 11-slot distribution.
func applyRatings(r *media.Record, rt ratings) {
	r.Rating, r.Votes = rt.Rating, rt.Votes
	r.SetVote(providerName, rt.Rating, rt.Votes)
	if len(rt.Distribution) == 0 {
		return
	}
	dist := make([]int, 11)
	for k, v := range rt.Distribution {
		if n, err := strconv.Atoi(k); err == nil && n >= 0 && n <= 10 {
			dist[n] = v
		}
	}
	r.Voting.Distribution = dist
}

// applyReleases records release events of every country and takes the
// certificate of country.
func applyReleases(r *media.Record, rel []release, country string) {
	for _, x := range rel {
		kind, ok := releaseTypes[x.ReleaseType]
		if !ok || kind == media.ReleaseUnknown {
			continue
		}
		r.SetTime(kind, media.ParseTime(x.ReleaseDate))
		if strings.EqualFold(x.Country, country) && x.Certification != "" && r.Certificate == "" {
			r.Certificate = x.Certification
		}
	}
}

func applyAliases(r *media.Record, as []alias) {
	for _, a := range as {
		if a.Title != "" && a.Title != r.Title {
			r.Aliases = media.Union(r.Aliases, a.Title)
		}
	}
}

// applyTranslations adds translated titles as aliases and, for language,
// fills a missing plot and tagline.
func applyTranslations(r *media.Record, ts []translation, language string) {
	for _, t := range ts {
		if t.Title != "" && t.Title != r.Title {
			r.Aliases = media.Union(r.Aliases, t.Title)
		}
		if strings.EqualFold(t.Language, language) {
			if r.Plot == "" {
				r.Plot = t.Overview
			}
			if r.Tagline == "" {
				r.Tagline = t.Tagline
			}
		}
	}
}

func applyStudios(r *media.Record, ss []studio) {
	for _, s := range ss {
		r.Studios = media.Union(r.Studios, s.Name)
	}
}
