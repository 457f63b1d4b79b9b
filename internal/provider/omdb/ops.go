package omdb

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Digital-Shane/omdb"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/gaiakodi/gaiasource/internal/media"
	"github.com/gaiakodi/gaiasource/internal/provider"
)

// envelope is the status part of every OMDb answer.
type envelope struct {
	Response string `json:"Response"`
	Error    string `json:"Error"`
}

func (e envelope) err() error {
	if strings.EqualFold(e.Response, "false") {
		msg := e.Error
		if msg == "" {
			msg = "request failed"
		}
		return classify(fmt.Errorf("%s", msg))
	}
	return nil
}

type hit struct {
	Title  string `json:"Title"`
	Year   string `json:"Year"`
	ImdbID string `json:"imdbID"`
	Type   string `json:"Type"`
	Poster string `json:"Poster"`
}

type searchPage struct {
	envelope
	Search       []hit  `json:"Search"`
	TotalResults string `json:"totalResults"`
}

type rating struct {
	Source string `json:"Source"`
	Value  string `json:"Value"`
}

// detail is the full title answer of ?i=, shared by movies, series and
// episodes.
type detail struct {
	envelope
	Title        string   `json:"Title"`
	Year         string   `json:"Year"`
	Rated        string   `json:"Rated"`
	Released     string   `json:"Released"`
	Runtime      string   `json:"Runtime"`
	Genre        string   `json:"Genre"`
	Director     string   `json:"Director"`
	Writer       string   `json:"Writer"`
	Actors       string   `json:"Actors"`
	Plot         string   `json:"Plot"`
	Language     string   `json:"Language"`
	Country      string   `json:"Country"`
	Awards       string   `json:"Awards"`
	Ratings      []rating `json:"Ratings"`
	Metascore    string   `json:"Metascore"`
	ImdbRating   string   `json:"imdbRating"`
	ImdbVotes    string   `json:"imdbVotes"`
	ImdbID       string   `json:"imdbID"`
	Type         string   `json:"Type"`
	DVD          string   `json:"DVD"`
	BoxOffice    string   `json:"BoxOffice"`
	Production   string   `json:"Production"`
	Website      string   `json:"Website"`
	TotalSeasons string   `json:"totalSeasons"`
	SeriesID     string   `json:"seriesID"`
	Season       string   `json:"Season"`
	Episode      string   `json:"Episode"`
}

var kinds = map[media.Media]string{
	media.Movie:   "movie",
	media.Show:    "series",
	media.Season:  "series",
	media.Episode: "episode",
}

var mediaOf = map[string]media.Media{
	"movie":   media.Movie,
	"series":  media.Show,
	"episode": media.Episode,
}

// Search pages through OMDb's title search, ten hits per page.
func (p *Provider) Search(ctx context.Context, req media.Request) (*media.PageResult, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	if req.Media != media.Movie && req.Media != media.Show {
		return nil, provider.ErrUnsupported
	}
	query := strings.TrimSpace(req.Query)
	if query == "" {
		query = strings.TrimSpace(req.Title)
	}
	if query == "" {
		return nil, fmt.Errorf("%w: empty query", media.ErrInvalidRequest)
	}
	page := max(req.Page, 1)

	q := url.Values{}
	q.Set("s", query)
	q.Set("type", kinds[req.Media])
	q.Set("page", strconv.Itoa(page))
	if req.Year > 0 {
		q.Set("y", strconv.Itoa(req.Year))
	}
	var out searchPage
	if _, err := p.api.Get(ctx, provider.Call{Path: "/", Query: q, TTL: p.deps.Lifetimes().List}, &out); err != nil {
		return nil, err
	}
	if err := out.err(); err != nil {
		if provider.CodeOf(err) == media.CodeNotFound {
			return &media.PageResult{Page: page, Complete: true}, nil
		}
		return nil, err
	}

	records := make([]media.Record, 0, len(out.Search))
	for i, h := range out.Search {
		r := media.Record{
			Media:    req.Media,
			IDs:      media.IDs{},
			Title:    clean(h.Title),
			Rank:     (page-1)*pageSize + i + 1,
			Complete: true,
		}
		r.IDs.Set(media.IDImdb, h.ImdbID)
		r.Year, _ = strconv.Atoi(omdb.FirstYear(h.Year))
		if r.IDs.Empty() {
			continue
		}
		records = append(records, r)
	}
	total, _ := strconv.Atoi(out.TotalResults)
	initial := len(records)
	records = req.Filters.Apply(records)
	return &media.PageResult{
		Items: records,
		More:  page*pageSize < total,
		Page:  page,
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

// fetchDetail reads the full record of an imdb id.
func (p *Provider) fetchDetail(ctx context.Context, imdbID string) (*detail, error) {
	q := url.Values{}
	q.Set("i", imdbID)
	q.Set("plot", "full")
	var out detail
	if _, err := p.api.Get(ctx, provider.Call{Path: "/", Query: q, TTL: p.deps.Lifetimes().Detail}, &out); err != nil {
		return nil, err
	}
	if err := out.err(); err != nil {
		return nil, err
	}
	return &out, nil
}

// describe builds the full record of an imdb id and checks its type.
func (p *Provider) describe(ctx context.Context, imdbID string, m media.Media) (*media.Record, error) {
	d, err := p.fetchDetail(ctx, imdbID)
	if err != nil {
		return nil, err
	}
	got, ok := mediaOf[strings.ToLower(d.Type)]
	if !ok || got != m {
		return nil, provider.NotFound(providerName, fmt.Sprintf("%s %s", m, imdbID))
	}
	r := d.record(got)
	return &r, nil
}

// Metadata returns the OMDb view of a movie, show, season or episode.
func (p *Provider) Metadata(ctx context.Context, req media.Request) (*media.Record, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	switch req.Media {
	case media.Movie:
		return p.fetchMovie(ctx, req)
	case media.Show:
		return p.fetchShow(ctx, req)
	case media.Season:
		return p.fetchSeason(ctx, req)
	case media.Episode:
		return p.fetchEpisode(ctx, req)
	}
	return nil, provider.ErrUnsupported
}

// Resolve confirms an imdb id and reports the title behind it. OMDb knows
// no other id system.
func (p *Provider) Resolve(ctx context.Context, ids media.IDs, m media.Media) ([]media.Record, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	id := ids.Get(media.IDImdb)
	if id == "" {
		return nil, provider.ErrUnsupported
	}
	if m == media.Season {
		m = media.Show
	}
	r, err := p.describe(ctx, id, m)
	if err != nil {
		return nil, err
	}
	return []media.Record{*r}, nil
}

func (d *detail) record(m media.Media) media.Record {
	r := media.Record{
		Media:       m,
		IDs:         media.IDs{},
		Title:       clean(d.Title),
		Certificate: clean(d.Rated),
		Plot:        clean(d.Plot),
		Genres:      media.NormalizeGenres(omdb.SplitAndTrim(clean(d.Genre))...),
		Duration:    parseRuntime(d.Runtime) * 60,
		Director:    omdb.SplitAndTrim(clean(d.Director)),
		Writer:      writers(d.Writer),
		Homepage:    clean(d.Website),
		Complete:    true,
	}
	r.IDs.Set(media.IDImdb, d.ImdbID)
	r.Year, _ = strconv.Atoi(omdb.FirstYear(d.Year))
	for i, name := range omdb.SplitAndTrim(clean(d.Actors)) {
		r.Cast = append(r.Cast, media.CastMember{Name: name, Order: i})
	}
	if studio := clean(d.Production); studio != "" {
		r.Studios = []string{studio}
	}

	released := parseDate(d.Released)
	switch m {
	case media.Episode:
		r.Show = media.IDs{}
		r.Show.Set(media.IDImdb, clean(d.SeriesID))
		r.Season, _ = strconv.Atoi(d.Season)
		r.Episode, _ = strconv.Atoi(d.Episode)
		r.Type = media.EpisodeStandard
		r.Aired = released
		r.Premiered = released
	case media.Show:
		r.Premiered = released
		r.SetTime(media.ReleasePremiere, released)
		if n, err := strconv.Atoi(d.TotalSeasons); err == nil && n > 0 {
			r.Count = map[string]int{"seasons": n}
		}
	default:
		r.Premiered = released
		r.SetTime(media.ReleaseTheatrical, released)
		r.SetTime(media.ReleasePhysical, parseDate(d.DVD))
	}
	if r.Year == 0 && !released.IsZero() {
		r.Year = released.Year()
	}

	votes, _ := strconv.Atoi(strings.ReplaceAll(clean(d.ImdbVotes), ",", ""))
	r.SetVote(voteSource, parseRating(d.ImdbRating), votes)
	if n, err := strconv.Atoi(clean(d.Metascore)); err == nil {
		r.SetExtra(providerName, "metascore", n)
	}
	for _, rt := range d.Ratings {
		switch rt.Source {
		case "Rotten Tomatoes":
			if n, err := strconv.Atoi(strings.TrimSuffix(rt.Value, "%")); err == nil {
				r.SetExtra(providerName, "rottentomatoes", n)
			}
		case "Metacritic":
			if n, err := strconv.Atoi(strings.TrimSuffix(rt.Value, "/100")); err == nil {
				r.SetExtra(providerName, "metacritic", n)
			}
		}
	}
	if awards := clean(d.Awards); awards != "" {
		r.SetExtra(providerName, "awards", awards)
	}
	if box := strings.NewReplacer("$", "", ",", "").Replace(clean(d.BoxOffice)); box != "" {
		if n, err := strconv.ParseInt(box, 10, 64); err == nil {
			r.SetExtra(providerName, "revenue", n)
		}
	}
	setNames(&r, d.Language, d.Country)
	return r
}

// writers drops the role notes of "Name (screenplay)" entries.
func writers(s string) []string {
	var out []string
	for _, w := range omdb.SplitAndTrim(clean(s)) {
		if i := strings.Index(w, " ("); i > 0 {
			w = w[:i]
		}
		out = media.Union(out, w)
	}
	return out
}

// clean maps OMDb's "N/A" placeholder to "".
func clean(s string) string {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "N/A") {
		return ""
	}
	return s
}

// parseDate reads OMDb's "02 Jan 2006" dates.
func parseDate(s string) time.Time {
	t, err := time.Parse("02 Jan 2006", clean(s))
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

// Codes looked up when mapping OMDb's English names back to ISO codes.
var (
	languageCodes = []string{"en", "fr", "de", "es", "it", "pt", "nl", "sv", "da", "no", "fi", "pl", "ru", "uk", "cs", "hu", "el", "tr", "ar", "he", "hi", "ta", "te", "th", "vi", "id", "ja", "ko", "zh", "fa"}
	countryCodes  = []string{"US", "GB", "CA", "AU", "NZ", "IE", "FR", "DE", "ES", "IT", "PT", "NL", "BE", "SE", "DK", "NO", "FI", "PL", "RU", "UA", "CZ", "HU", "GR", "TR", "IL", "IN", "TH", "VN", "ID", "JP", "KR", "CN", "HK", "TW", "BR", "MX", "AR", "ZA", "IR", "AT", "CH"}

	namesOnce sync.Once
	languages map[string]string
	countries map[string]string
)

func loadNames() {
	namer := display.English.Languages()
	languages = make(map[string]string, len(languageCodes))
	for _, code := range languageCodes {
		if name := namer.Name(language.MustParseBase(code)); name != "" {
			languages[strings.ToLower(name)] = code
		}
	}
	regions := display.English.Regions()
	countries = make(map[string]string, len(countryCodes)+2)
	for _, code := range countryCodes {
		if name := regions.Name(language.MustParseRegion(code)); name != "" {
			countries[strings.ToLower(name)] = strings.ToLower(code)
		}
	}
	countries["usa"] = "us"
	countries["uk"] = "gb"
	languages["mandarin"] = "zh"
	languages["cantonese"] = "zh"
}

// setNames converts OMDb's English language and country names to ISO codes;
// unknown names are kept as extras.
func setNames(r *media.Record, langs, ctrs string) {
	namesOnce.Do(loadNames)
	var unknown []string
	for _, name := range omdb.SplitAndTrim(clean(langs)) {
		if code, ok := languages[strings.ToLower(name)]; ok {
			r.Languages = media.Union(r.Languages, code)
		} else {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		r.SetExtra(providerName, "languages", unknown)
	}
	unknown = nil
	for _, name := range omdb.SplitAndTrim(clean(ctrs)) {
		if code, ok := countries[strings.ToLower(name)]; ok {
			r.Countries = media.Union(r.Countries, code)
		} else {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		r.SetExtra(providerName, "countries", unknown)
	}
}
