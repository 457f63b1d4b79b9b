package aggregate

import (
	"slices"

	"github.com/gaiakodi/gaiasource/internal/media"
)

// CallerSource marks ids supplied with the request. They outrank every
// provider.
const CallerSource = "caller"

// Authority lists, per id kind, the sources trusted for it, best first.
type Authority map[string][]string

// DefaultAuthority trusts each catalog for its own ids, OMDb for imdb ids
// and Trakt as the broadest cross-reference.
func DefaultAuthority() Authority {
	return Authority{
		media.IDImdb:  {"omdb", "trakt", "tvdb", "tmdb"},
		media.IDTmdb:  {"tmdb", "trakt", "tvdb"},
		media.IDTvdb:  {"tvdb", "trakt", "tmdb"},
		media.IDTrakt: {"trakt"},
		media.IDSlug:  {"trakt"},
	}
}

// Rank is the position of source in the authority list of kind. The caller
// ranks first and unlisted sources last.
func (a Authority) Rank(kind, source string) int {
	if source == CallerSource {
		return -1
	}
	if i := slices.Index(a[kind], source); i >= 0 {
		return i
	}
	return len(a[kind])
}

// Authoritative returns the most trusted source for kind, "" when none is
// listed.
func (a Authority) Authoritative(kind string) string {
	if list := a[kind]; len(list) > 0 {
		return list[0]
	}
	return ""
}

// Priorities lists, per media, the providers whose scalar values win.
type Priorities map[media.Media][]string

// DefaultPriorities puts TMDb first for titles and TVDb first for seasons
// and episodes.
func DefaultPriorities() Priorities {
	titles := []string{"tmdb", "trakt", "tvdb", "omdb"}
	episodes := []string{"tvdb", "trakt", "tmdb", "omdb"}
	return Priorities{
		media.Movie:   titles,
		media.Set:     titles,
		media.Show:    titles,
		media.Person:  titles,
		media.Season:  episodes,
		media.Episode: episodes,
	}
}

// Order sorts provider names by priority for m; unlisted names follow in
// name order.
func (p Priorities) Order(m media.Media, names []string) []string {
	list := p[m]
	out := slices.Clone(names)
	slices.SortStableFunc(out, func(a, b string) int {
		ia, ib := slices.Index(list, a), slices.Index(list, b)
		if ia < 0 {
			ia = len(list)
		}
		if ib < 0 {
			ib = len(list)
		}
		if ia != ib {
			return ia - ib
		}
		switch {
		case a < b:
			return -1
		case a > b:
			return 1
		}
		return 0
	})
	return out
}

// Input is one provider's record of a title.
type Input struct {
	Provider string
	Record   media.Record
}

// IDSources tracks which source each id came from.
type IDSources map[string]string

// Merger combines the records several providers return for one title.
type Merger struct {
	Priorities Priorities
	Authority  Authority
}

// Merge folds inputs into one record. Scalars come from the first provider
// in priority order, sets are unioned and every id kind takes the value of
// its most authoritative source, with caller ids above all. The result does
// not depend on the order of inputs.
func (mg Merger) Merge(m media.Media, caller media.IDs, inputs []Input) media.Record {
	if len(inputs) == 0 {
		return media.Record{}
	}
	byName := make(map[string][]media.Record, len(inputs))
	names := make([]string, 0, len(inputs))
	for _, in := range inputs {
		if _, ok := byName[in.Provider]; !ok {
			names = append(names, in.Provider)
		}
		byName[in.Provider] = append(byName[in.Provider], in.Record)
	}
	ordered := mg.Priorities.Order(m, names)

	var out media.Record
	started := false
	for _, name := range ordered {
		for _, r := range byName[name] {
			if !started {
				out = r.Clone()
				started = true
				continue
			}
			out = media.Merge(out, r)
		}
	}
	if out.Media == "" {
		out.Media = m
	}

	out.IDs = mg.pick(caller, ordered, byName, func(r media.Record) media.IDs { return r.IDs })
	if out.Media == media.Season || out.Media == media.Episode {
		out.Show = mg.pick(nil, ordered, byName, func(r media.Record) media.IDs { return r.Show })
	}
	return out
}

// pick resolves id conflicts by authority.
func (mg Merger) pick(caller media.IDs, ordered []string, byName map[string][]media.Record, ids func(media.Record) media.IDs) media.IDs {
	out := media.IDs{}
	src := IDSources{}
	offer := func(kind, value, source string) {
		if value == "" {
			return
		}
		cur, ok := out[kind]
		if !ok || (cur != value && mg.Authority.Rank(kind, source) < mg.Authority.Rank(kind, src[kind])) {
			out[kind] = value
			src[kind] = source
		}
	}
	for kind, value := range caller.Normalize() {
		offer(kind, value, CallerSource)
	}
	for _, name := range ordered {
		for _, r := range byName[name] {
			for kind, value := range ids(r) {
				offer(kind, value, name)
			}
		}
	}
	return out
}
