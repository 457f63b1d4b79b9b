package tmdb

import (
	"math"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/gaiakodi/gaiasource/internal/media"
)

// TMDb genre ids and their upstream names.
var (
	movieGenres = map[int]string{
		28: "Action", 12: "Adventure", 16: "Animation", 35: "Comedy", 80: "Crime",
		99: "Documentary", 18: "Drama", 10751: "Family", 14: "Fantasy", 36: "History",
		27: "Horror", 10402: "Music", 9648: "Mystery", 10749: "Romance",
		878: "Science Fiction", 10770: "TV Movie", 53: "Thriller", 10752: "War", 37: "Western",
	}
	tvGenres = map[int]string{
		10759: "Action & Adventure", 16: "Animation", 35: "Comedy", 80: "Crime",
		99: "Documentary", 18: "Drama", 10751: "Family", 10762: "Kids", 9648: "Mystery",
		10763: "News", 10764: "Reality", 10765: "Sci-Fi & Fantasy", 10766: "Soap",
		10767: "Talk", 10768: "War & Politics", 37: "Western",
	}

	movieGenreIDs = genreIndex(movieGenres)
	tvGenreIDs    = genreIndex(tvGenres)
)

// genreIndex maps canonical genre slugs to upstream ids. Anime has no TMDb
// genre and lowers to animation.
func genreIndex(names map[int]string) map[string]int {
	out := make(map[string]int, len(names)+1)
	for id, name := range names {
		for _, slug := range media.NormalizeGenres(name) {
			out[slug] = id
		}
	}
	out[media.GenreAnime] = out[media.GenreAnimation]
	return out
}

func genreTable(m media.Media) (map[int]string, map[string]int) {
	if m.Television() {
		return tvGenres, tvGenreIDs
	}
	return movieGenres, movieGenreIDs
}

// genreNames turns upstream genre ids into canonical slugs.
func genreNames(m media.Media, ids []int) []string {
	names, _ := genreTable(m)
	list := make([]string, 0, len(ids))
	for _, id := range ids {
		if name, ok := names[id]; ok {
			list = append(list, name)
		}
	}
	return media.NormalizeGenres(list...)
}

// genreIDs lowers slugs to a sorted, deduplicated id list. ok is false when
// some slug has no upstream id.
func genreIDs(m media.Media, slugs []string) (ids []string, ok bool) {
	_, index := genreTable(m)
	ok = true
	seen := make(map[int]bool)
	var nums []int
	for _, s := range slugs {
		id, found := index[strings.ToLower(s)]
		if !found {
			ok = false
			continue
		}
		if !seen[id] {
			seen[id] = true
			nums = append(nums, id)
		}
	}
	slices.Sort(nums)
	for _, n := range nums {
		ids = append(ids, strconv.Itoa(n))
	}
	return ids, ok
}

// Movie release types of /discover/movie.
var releaseTypes = map[media.ReleaseKind][]string{
	media.ReleasePremiere:   {"1"},
	media.ReleaseLimited:    {"2"},
	media.ReleaseTheatrical: {"3"},
	media.ReleaseDigital:    {"4"},
	media.ReleasePhysical:   {"5"},
	media.ReleaseTelevision: {"6"},
	media.ReleaseNew:        {"2", "3"},
	media.ReleaseFuture:     {"2", "3"},
	media.ReleaseHome:       {"4", "5"},
}

// Show statuses of /discover/tv.
var statusCodes = map[media.Status]string{
	media.StatusContinuing: "0",
	media.StatusPlanned:    "1",
	media.StatusProduction: "2",
	media.StatusEnded:      "3",
	media.StatusCanceled:   "4",
	media.StatusPilot:      "5",
}

// ratingSortVotes keeps one-vote titles out of rating sorts when the caller
// set no votes floor.
const ratingSortVotes = 200

func dateField(m media.Media) string {
	if m.Television() {
		return "first_air_date"
	}
	return "primary_release_date"
}

// sortBy lowers a sort to the sort_by parameter. ok is false when TMDb
// cannot order by s.
func sortBy(m media.Media, s media.Sort, o media.Order) (string, bool) {
	var field string
	switch s {
	case "", media.SortPopular:
		field = "popularity"
		if s == "" {
			o = media.Descending
		}
	case media.SortRating:
		field = "vote_average"
	case media.SortVotes:
		field = "vote_count"
	case media.SortNewest, media.SortOldest:
		field = dateField(m)
	case media.SortTitle:
		field = "title"
		if m.Television() {
			field = "name"
		}
	default:
		return "popularity.desc", false
	}
	if o == "" {
		o = media.DefaultOrder(s)
	}
	if o == media.Ascending {
		return field + ".asc", true
	}
	return field + ".desc", true
}

func joinOr(values []string) string { return strings.Join(values, "|") }

func setRange(v url.Values, field string, r *media.Range, scale float64, format func(float64) string) {
	if r == nil {
		return
	}
	if r.Min != nil {
		v.Set(field+".gte", format(*r.Min/scale))
	}
	if r.Max != nil {
		v.Set(field+".lte", format(*r.Max/scale))
	}
}

func decimal(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
func whole(f float64) string   { return strconv.Itoa(int(math.Round(f))) }

// lowerFilters pushes the filters /discover understands into v and returns
// the rest for post-filtering.
func lowerFilters(v url.Values, m media.Media, f media.Filters, region string) media.Filters {
	rest := f.Clone()
	tv := m.Television()

	field := dateField(m)
	switch {
	case f.Date != nil:
		v.Set(field+".gte", media.Day(f.Date.Start).Format(media.DateLayout))
		v.Set(field+".lte", media.Day(f.Date.End).Format(media.DateLayout))
		rest.Date = nil
	case f.Year != nil:
		if f.Year.Min != nil {
			v.Set(field+".gte", whole(*f.Year.Min)+"-01-01")
		}
		if f.Year.Max != nil {
			v.Set(field+".lte", whole(*f.Year.Max)+"-12-31")
		}
		rest.Year = nil
	}

	if g := f.Genre; g != nil {
		include, allIn := genreIDs(m, g.Include)
		if allIn && len(include) > 0 {
			v.Set("with_genres", joinOr(include))
		}
		exclude, allOut := genreIDs(m, g.Exclude)
		if len(exclude) > 0 {
			v.Set("without_genres", strings.Join(exclude, ","))
		}
		if allIn && allOut && !g.Primary {
			rest.Genre = nil
		}
	}

	// minutes upstream, seconds here; bounds are rounded so the post-filter
	// stays exact
	setRange(v, "with_runtime", f.Duration, 60, whole)

	if len(f.Language) > 0 {
		v.Set("with_original_language", joinOr(f.Language))
	}
	if len(f.Country) > 0 {
		v.Set("with_origin_country", strings.ToUpper(joinOr(f.Country)))
	}
	if len(f.Certificate) > 0 && !tv {
		v.Set("certification_country", region)
		v.Set("certification", joinOr(f.Certificate))
		rest.Certificate = nil
	}

	setRange(v, "vote_average", f.Rating, 1, decimal)
	setRange(v, "vote_count", f.Votes, 1, whole)
	rest.Rating, rest.Votes = nil, nil

	if tv && len(f.Status) > 0 {
		var codes []string
		all := true
		for _, s := range f.Status {
			code, ok := statusCodes[s]
			if !ok {
				all = false
				continue
			}
			codes = append(codes, code)
		}
		if all {
			v.Set("with_status", joinOr(codes))
			rest.Status = nil
		}
	}

	if !tv && len(f.Release) > 0 {
		var types []string
		for _, k := range f.Release {
			types = append(types, releaseTypes[k]...)
		}
		if len(types) > 0 {
			slices.Sort(types)
			v.Set("with_release_type", joinOr(slices.Compact(types)))
		}
	}
	return rest
}

// lowerDiscover builds /discover parameters for req. native is false when
// the requested sort had to be replaced by popularity.
func lowerDiscover(req media.Request, language, region string) (v url.Values, rest media.Filters, native bool) {
	v = url.Values{}
	v.Set("language", language)
	v.Set("include_adult", "false")
	v.Set("page", strconv.Itoa(max(req.Page, 1)))
	rest = lowerFilters(v, req.Media, req.Filters, region)

	sort, native := sortBy(req.Media, req.Sort, req.Order)
	v.Set("sort_by", sort)
	if req.Sort == media.SortRating && req.Filters.Votes == nil {
		v.Set("vote_count.gte", strconv.Itoa(ratingSortVotes))
	}
	return v, rest, native
}

// lowerRelease builds /discover parameters for a release window. Movies
// filter on regional release dates of the requested kinds; shows filter on
// premieres or on any episode airing inside the window.
func lowerRelease(req media.Request, language, region string) (url.Values, media.Filters) {
	base := req
	base.Filters = req.Filters.Clone()
	base.Filters.Date, base.Filters.Year = nil, nil
	base.Sort = ""
	v, rest, _ := lowerDiscover(base, language, region)

	w := *req.Window
	start := media.Day(w.Start).Format(media.DateLayout)
	end := media.Day(w.End).Format(media.DateLayout)

	if !req.Media.Television() {
		v.Set("region", region)
		v.Set("release_date.gte", start)
		v.Set("release_date.lte", end)
		if types := releaseTypes[req.Release]; len(types) > 0 {
			v.Set("with_release_type", joinOr(types))
		}
		v.Set("sort_by", "primary_release_date.desc")
		return v, rest
	}

	if req.Release == media.ReleasePremiere {
		v.Set("first_air_date.gte", start)
		v.Set("first_air_date.lte", end)
		v.Set("sort_by", "first_air_date.desc")
		return v, rest
	}
	v.Set("air_date.gte", start)
	v.Set("air_date.lte", end)
	v.Set("sort_by", "popularity.desc")
	return v, rest
}
