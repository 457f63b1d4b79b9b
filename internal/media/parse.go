package media

import (
	"regexp"
	"strconv"
	"strings"
)

// Free-text query parsing.
//
// Callers type things like "Breaking Bad (2008)", "Breaking.Bad.S01E02" or
// "tt0903747". These helpers split such input into a title, a year, episode
// numbers and any id that can be recognized, so a search or a metadata
// lookup can start from structured fields.
var (
	// seasonEpisodeRe matches combined season/episode forms: S01E02, 1x02, s1e2.
	seasonEpisodeRe = regexp.MustCompile(`(?i)\b[s]?(\d{1,3})[ex](\d{1,4})\b`)

	// seasonRe matches season tokens like "Season 01", "S01".
	seasonRe = regexp.MustCompile(`(?i)\b(?:s|season)\.? *(\d{1,3})\b`)

	// yearRangeRe extracts a year or year range; only the first year is used.
	yearRangeRe = regexp.MustCompile(`\(?\b((19|20)\d{2})(?:[\s\-–—]+(?:19|20)\d{2})?\b\)?`)

	// imdbRe recognizes IMDb ids, including the tripled "ttt" artifact.
	imdbRe = regexp.MustCompile(`(?i)^t{2,3}\d{5,}$`)

	// prefixedIDRe recognizes "tmdb:278", "tvdb=81189", "trakt 481".
	prefixedIDRe = regexp.MustCompile(`(?i)^(imdb|tmdb|tvdb|trakt|slug)[:= ]+(\S+)$`)

	// separatorRe collapses dots and underscores used as word separators.
	separatorRe = regexp.MustCompile(`[._]+`)
)

// Query is the structured form of free text.
type Query struct {
	Title   string
	Year    int
	Season  int
	Episode int
	IDs     IDs
}

// ParseQuery splits free text into a title, year, numbers and ids. Input
// that is only an id yields an empty title.
func ParseQuery(input string) Query {
	q := Query{IDs: IDs{}}
	s := strings.TrimSpace(input)
	if s == "" {
		return q
	}
	if imdbRe.MatchString(s) {
		q.IDs.Set(IDImdb, s)
		return q
	}
	if m := prefixedIDRe.FindStringSubmatch(s); m != nil {
		q.IDs.Set(strings.ToLower(m[1]), m[2])
		return q
	}

	s = separatorRe.ReplaceAllString(s, " ")
	if m := seasonEpisodeRe.FindStringSubmatchIndex(s); m != nil {
		q.Season, _ = strconv.Atoi(s[m[2]:m[3]])
		q.Episode, _ = strconv.Atoi(s[m[4]:m[5]])
		s = s[:m[0]] + " " + s[m[1]:]
	} else if m := seasonRe.FindStringSubmatchIndex(s); m != nil {
		q.Season, _ = strconv.Atoi(s[m[2]:m[3]])
		s = s[:m[0]] + " " + s[m[1]:]
	}
	// a year only counts when something precedes it, so "1917" stays a title
	if locs := yearRangeRe.FindAllStringSubmatchIndex(s, -1); len(locs) > 0 {
		m := locs[len(locs)-1]
		if strings.TrimSpace(s[:m[0]]) != "" {
			q.Year, _ = strconv.Atoi(s[m[2]:m[3]])
			s = s[:m[0]] + " " + s[m[1]:]
		}
	}
	q.Title = strings.Join(strings.Fields(strings.Trim(s, " -–—")), " ")
	return q
}
