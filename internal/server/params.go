package server

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gaiakodi/gaiasource/internal/media"
)

// operation names accepted in URLs
var operations = map[string]media.Kind{
	"search":     media.KindSearch,
	"discover":   media.KindDiscover,
	"release":    media.KindRelease,
	"recommend":  media.KindRecommend,
	"list":       media.KindList,
	"metadata":   media.KindMetadata,
	"pack":       media.KindPack,
	"resolve":    media.KindResolve,
	"resolve_id": media.KindResolve,
}

// ParseValues builds a request for op from query parameters. Ranges are
// written "lo..hi" with either bound optional, sets as comma separated or
// repeated values and excluded genres with a leading "-". Free text in
// query is split into title, year, numbers and ids for the lookup
// operations.
func ParseValues(op string, v url.Values, now time.Time) (media.Request, error) {
	kind, ok := operations[strings.ToLower(op)]
	if !ok {
		return media.Request{}, fmt.Errorf("unknown operation %q", op)
	}
	req := media.Request{
		Kind:    kind,
		Media:   media.Media(strings.ToLower(v.Get("media"))),
		Query:   strings.TrimSpace(v.Get("query")),
		Title:   strings.TrimSpace(v.Get("title")),
		Sort:    media.Sort(v.Get("sort")),
		Order:   media.Order(v.Get("order")),
		Release: media.ReleaseKind(v.Get("release")),
		List:    media.ListKind(v.Get("list")),
		User:    v.Get("user"),
		ListID:  v.Get("list_id"),
		Dedup:   media.DedupPolicy(v.Get("dedup")),
		Niche:   list(v, "niche"),

		Extended: list(v, "extended"),
	}
	for _, f := range list(v, "what") {
		req.What = append(req.What, media.Facet(f))
	}

	var err error
	ints := map[string]*int{
		"year":    &req.Year,
		"season":  &req.Season,
		"episode": &req.Episode,
		"page":    &req.Page,
		"limit":   &req.Limit,
	}
	for name, dst := range ints {
		if *dst, err = integer(v, name); err != nil {
			return media.Request{}, err
		}
	}
	if req.Deviation, err = boolean(v, "deviation"); err != nil {
		return media.Request{}, err
	}

	ids := media.IDs{}
	for _, kind := range media.IDKinds {
		if id := strings.TrimSpace(v.Get(kind)); id != "" {
			ids.Set(kind, id)
		}
	}
	if kind == media.KindMetadata || kind == media.KindResolve || kind == media.KindPack {
		if req.Query != "" {
			q := media.ParseQuery(req.Query)
			ids.Fill(q.IDs)
			if req.Title == "" {
				req.Title = q.Title
			}
			if req.Year == 0 {
				req.Year = q.Year
			}
			if req.Season == 0 && req.Episode == 0 {
				req.Season, req.Episode = q.Season, q.Episode
			}
			req.Query = ""
		}
	}
	if !ids.Empty() {
		req.IDs = ids
	}

	if w := v.Get("window"); w != "" {
		window, err := media.ParseWindow(w, now)
		if err != nil {
			return media.Request{}, fmt.Errorf("window: %w", err)
		}
		req.Window = &window
	}

	if req.Filters, err = filters(v, now); err != nil {
		return media.Request{}, err
	}
	return req, nil
}

func filters(v url.Values, now time.Time) (media.Filters, error) {
	var f media.Filters
	var err error
	ranges := map[string]**media.Range{
		"years":    &f.Year,
		"duration": &f.Duration,
		"rating":   &f.Rating,
		"votes":    &f.Votes,
		"seasons":  &f.Seasons,
	}
	for name, dst := range ranges {
		if *dst, err = rangeOf(v, name); err != nil {
			return f, err
		}
	}
	if d := v.Get("date"); d != "" {
		window, err := media.ParseWindow(d, now)
		if err != nil {
			return f, fmt.Errorf("date: %w", err)
		}
		f.Date = &window
	}
	if genres := list(v, "genre"); len(genres) > 0 {
		g := &media.GenreFilter{Primary: v.Has("primary")}
		for _, name := range genres {
			if ex, ok := strings.CutPrefix(name, "-"); ok {
				g.Exclude = append(g.Exclude, strings.ToLower(ex))
				continue
			}
			g.Include = append(g.Include, strings.ToLower(name))
		}
		f.Genre = g
	}
	f.Language = list(v, "language")
	f.Country = list(v, "country")
	f.Certificate = list(v, "certificate")
	f.Company = list(v, "company")
	f.Studio = list(v, "studio")
	f.Network = list(v, "network")
	f.Award = list(v, "award")
	f.Keyword = list(v, "keyword")
	f.Action = list(v, "action")
	for _, s := range list(v, "status") {
		f.Status = append(f.Status, media.Status(s))
	}
	for _, e := range list(v, "episode_type") {
		f.EpisodeType = append(f.EpisodeType, media.EpisodeType(e))
	}
	for _, r := range list(v, "release_type") {
		f.Release = append(f.Release, media.ReleaseKind(r))
	}
	f.RatingTier = v.Get("rating_tier")
	return f, nil
}

// list reads a comma separated or repeated parameter.
func list(v url.Values, name string) []string {
	var out []string
	for _, raw := range v[name] {
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

func integer(v url.Values, name string) (int, error) {
	s := strings.TrimSpace(v.Get(name))
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not a number", name, s)
	}
	return n, nil
}

func boolean(v url.Values, name string) (bool, error) {
	s := strings.TrimSpace(v.Get(name))
	if s == "" {
		return v.Has(name), nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("%s: %q is not a boolean", name, s)
	}
	return b, nil
}

// rangeOf reads "lo..hi", "lo.." or "..hi"; a single number is exact.
func rangeOf(v url.Values, name string) (*media.Range, error) {
	s := strings.TrimSpace(v.Get(name))
	if s == "" {
		return nil, nil
	}
	lo, hi, isRange := strings.Cut(s, "..")
	if !isRange {
		hi = lo
	}
	parse := func(p string) (*float64, error) {
		p = strings.TrimSpace(p)
		if p == "" {
			return nil, nil
		}
		f, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: %q is not a number", name, p)
		}
		return &f, nil
	}
	r := &media.Range{}
	var err error
	if r.Min, err = parse(lo); err != nil {
		return nil, err
	}
	if r.Max, err = parse(hi); err != nil {
		return nil, err
	}
	if r.Min == nil && r.Max == nil {
		return nil, fmt.Errorf("%s: empty range", name)
	}
	return r, nil
}
