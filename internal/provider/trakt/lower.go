package trakt

import (
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/gaiakodi/gaiasource/internal/media"
	"github.com/gaiakodi/gaiasource/internal/provider"
)

// Open bounds of Trakt's range filters.
const (
	minYear  = 1870
	maxYear  = 2100
	maxVotes = 100000000
	maxMins  = 1000
)

// typePath returns the plural path segment and the singular search type
// of a media.
func typePath(m media.Media) (plural, singular string, err error) {
	switch m {
	case media.Movie:
		return "movies", "movie", nil
	case media.Show, media.Season, media.Episode:
		return "shows", "show", nil
	case media.Person:
		return "people", "person", nil
	}
	return "", "", provider.ErrUnsupported
}

// listType is the type segment of user and curated list endpoints.
func listType(m media.Media) string {
	switch m {
	case media.Movie:
		return "movies"
	case media.Show:
		return "shows"
	case media.Season:
		return "seasons"
	case media.Episode:
		return "episodes"
	case media.Person:
		return "people"
	}
	return ""
}

var queryEscaper = strings.NewReplacer(
	`\`, `\\`, `+`, `\+`, `-`, `\-`, `&`, `\&`, `|`, `\|`, `!`, `\!`,
	`(`, `\(`, `)`, `\)`, `{`, `\{`, `}`, `\}`, `[`, `\[`, `]`, `\]`,
	`^`, `\^`, `"`, `\"`, `~`, `\~`, `*`, `\*`, `?`, `\?`, `:`, `\:`, `/`, `\/`,
)

// boolWords are the operators Trakt only recognizes in upper case.
var boolWords = regexp.MustCompile(`\b(AND|OR|NOT)\b`)

// escapeQuery neutralizes the operators of Trakt's search syntax. The
// boolean words are lowercased so they match as plain words.
func escapeQuery(q string) string {
	q = queryEscaper.Replace(strings.TrimSpace(q))
	return boolWords.ReplaceAllStringFunc(q, strings.ToLower)
}

// augmentQuery appends keyword clauses to an escaped user query. Escaping
// runs first, so the user text cannot open or close a clause.
func augmentQuery(q string, keywords []string) string {
	out := escapeQuery(q)
	var clauses []string
	for _, k := range keywords {
		if k = strings.TrimSpace(k); k != "" {
			clauses = append(clauses, `"`+escapeQuery(k)+`"`)
		}
	}
	if len(clauses) == 0 {
		return out
	}
	return out + " AND (" + strings.Join(clauses, " OR ") + ")"
}

func intRange(r *media.Range, scale, lo, hi float64) string {
	from, to := lo, hi
	if r.Min != nil {
		from = math.Floor(*r.Min * scale)
	}
	if r.Max != nil {
		to = math.Ceil(*r.Max * scale)
	}
	return strconv.Itoa(int(from)) + "-" + strconv.Itoa(int(to))
}

// minutes converts a range of seconds.
func minutes(r *media.Range) *media.Range {
	out := &media.Range{}
	if r.Min != nil {
		v := *r.Min / 60
		out.Min = &v
	}
	if r.Max != nil {
		v := *r.Max / 60
		out.Max = &v
	}
	return out
}

var statusNames = map[media.Status]string{
	media.StatusContinuing: "returning series",
	media.StatusProduction: "in production",
	media.StatusPlanned:    "planned",
	media.StatusUpcoming:   "upcoming",
	media.StatusPilot:      "pilot",
	media.StatusCanceled:   "canceled",
	media.StatusEnded:      "ended",
}

// lowerFilters pushes the filters Trakt understands into v and returns the
// rest for post-filtering. Trakt filters by whole years and whole minutes,
// so day windows and runtimes are also kept for the post-filter.
func lowerFilters(v url.Values, m media.Media, f media.Filters) media.Filters {
	rest := f.Clone()

	switch {
	case f.Year != nil:
		v.Set("years", intRange(f.Year, 1, minYear, maxYear))
		rest.Year = nil
	case f.Date != nil:
		v.Set("years", strconv.Itoa(f.Date.Start.Year())+"-"+strconv.Itoa(f.Date.End.Year()))
	}

	if g := f.Genre; g != nil {
		var genres []string
		for _, s := range g.Include {
			genres = append(genres, strings.ToLower(s))
		}
		for _, s := range g.Exclude {
			genres = append(genres, "-"+strings.ToLower(s))
		}
		if len(genres) > 0 {
			v.Set("genres", strings.Join(genres, ","))
		}
		if !g.Primary {
			rest.Genre = nil
		}
	}
	if f.Duration != nil {
		v.Set("runtimes", intRange(minutes(f.Duration), 1, 0, maxMins))
	}
	if len(f.Language) > 0 {
		v.Set("languages", strings.ToLower(strings.Join(f.Language, ",")))
		rest.Language = nil
	}
	if len(f.Country) > 0 {
		v.Set("countries", strings.ToLower(strings.Join(f.Country, ",")))
		rest.Country = nil
	}
	if len(f.Certificate) > 0 {
		v.Set("certifications", strings.ToLower(strings.Join(f.Certificate, ",")))
	}
	if f.Rating != nil {
		v.Set("ratings", intRange(f.Rating, 10, 0, 100))
		rest.Rating = nil
	}
	if f.Votes != nil {
		v.Set("votes", intRange(f.Votes, 1, 0, maxVotes))
		rest.Votes = nil
	}
	if m.Television() && len(f.Status) > 0 {
		var names []string
		all := true
		for _, s := range f.Status {
			name, ok := statusNames[s]
			if !ok {
				all = false
				continue
			}
			names = append(names, name)
		}
		if all {
			v.Set("status", strings.Join(names, ","))
			rest.Status = nil
		}
	}
	return rest
}

// listings maps the sorts Trakt serves natively to their endpoints.
var listings = map[media.Sort]string{
	"":                    "popular",
	media.SortPopular:     "popular",
	media.SortTrending:    "trending",
	media.SortAnticipated: "anticipated",
	media.SortPlayed:      "played/weekly",
	media.SortWatched:     "watched/weekly",
	media.SortCollected:   "collected/weekly",
}

// discoverPath picks the listing endpoint for a discover request. native is
// false when the sort has no endpoint and the popular list stands in.
// Movies tagged "boxoffice" in Extended read the weekend box office.
func discoverPath(req media.Request) (path string, native bool, err error) {
	plural, _, err := typePath(req.Media)
	if err != nil || req.Media == media.Person || req.Media == media.Season || req.Media == media.Episode {
		return "", false, provider.ErrUnsupported
	}
	if req.Media == media.Movie {
		for _, e := range req.Extended {
			if e == "boxoffice" {
				return plural + "/boxoffice", true, nil
			}
		}
	}
	endpoint, native := listings[req.Sort]
	if !native {
		endpoint = listings[""]
	}
	return plural + "/" + endpoint, native, nil
}

// releasePath picks the calendar of a release kind.
func releasePath(m media.Media, kind media.ReleaseKind) (path string, event media.ReleaseKind) {
	if !m.Television() {
		switch kind {
		case media.ReleaseHome, media.ReleaseDigital, media.ReleasePhysical:
			return "calendars/all/dvd", media.ReleasePhysical
		}
		return "calendars/all/movies", media.ReleaseTheatrical
	}
	switch kind {
	case media.ReleasePremiere:
		return "calendars/all/shows/premieres", media.ReleasePremiere
	case media.ReleaseNew:
		return "calendars/all/shows/new", media.ReleasePremiere
	case media.ReleaseFinale:
		return "calendars/all/shows/finales", media.ReleaseFinale
	}
	return "calendars/all/shows", media.ReleaseTelevision
}

// baseQuery holds the parameters shared by every listing call.
func baseQuery(page, limit int) url.Values {
	v := url.Values{"extended": {"full"}}
	if page > 0 {
		v.Set("page", strconv.Itoa(page))
	}
	if limit > 0 {
		v.Set("limit", strconv.Itoa(min(limit, maxLimit)))
	}
	return v
}
