// Package pack consolidates the season and episode listings of a show into
// one numbered structure.
package pack

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/charmbracelet/log"

	"github.com/gaiakodi/gaiasource/internal/aggregate"
	"github.com/gaiakodi/gaiasource/internal/cache"
	"github.com/gaiakodi/gaiasource/internal/media"
	"github.com/gaiakodi/gaiasource/internal/provider"
)

// Builder produces packs from the listings of every provider that can list
// a show.
type Builder struct {
	agg    *aggregate.Aggregator
	cache  *cache.Cache
	ttl    time.Duration
	logger *log.Logger
	now    func() time.Time
}

// Option configures a Builder.
type Option func(*Builder)

// WithCache stores built packs in c for ttl.
func WithCache(c *cache.Cache, ttl time.Duration) Option {
	return func(b *Builder) {
		b.cache = c
		b.ttl = ttl
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(b *Builder) { b.logger = l }
}

// WithClock replaces time.Now when deriving statuses.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) { b.now = now }
}

// New creates a builder on top of agg.
func New(agg *aggregate.Aggregator, opts ...Option) *Builder {
	b := &Builder{agg: agg, ttl: cache.TTLWeek, logger: log.Default(), now: time.Now}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Key is the cache key of the pack of show.
func Key(show media.IDs) string {
	return cache.Key("pack", show.Normalize().String())
}

// Build returns the pack of show, from the cache when it holds one. Complete
// listings in known are used without fetching them again.
func (b *Builder) Build(ctx context.Context, show media.IDs, known ...*provider.Listing) (*media.Pack, error) {
	if show.Normalize().Empty() {
		return nil, media.ErrInvalidRequest
	}
	fetch := func(ctx context.Context) (*media.Pack, error) {
		return b.build(ctx, show, known)
	}
	if b.cache == nil {
		return fetch(ctx)
	}
	p, err := cache.Fetch(ctx, b.cache, Key(show), b.ttl, fetch)
	if errors.Is(err, cache.ErrKnownMissing) {
		return nil, provider.NotFound("pack", show.String())
	}
	if err == nil && !p.Complete {
		// partial packs are served once, then rebuilt
		if ierr := b.cache.Invalidate(ctx, Key(show)); ierr != nil {
			b.logger.Warn("pack invalidate failed", "show", show.String(), "err", ierr)
		}
	}
	return p, err
}

// Invalidate drops the cached pack of show so the next Build refetches it.
func (b *Builder) Invalidate(ctx context.Context, show media.IDs) error {
	return b.cache.Invalidate(ctx, Key(show))
}

func (b *Builder) build(ctx context.Context, show media.IDs, known []*provider.Listing) (*media.Pack, error) {
	have := make(map[string]*provider.Listing, len(known))
	for _, l := range known {
		if l != nil && l.Provider != "" {
			have[l.Provider] = l
		}
	}
	listings, failures := b.agg.Listings(ctx, show, nil, have)
	for name, err := range failures {
		b.logger.Warn("listing failed", "provider", name, "show", show.String(), "err", err)
	}
	if len(listings) == 0 {
		if len(failures) == 0 {
			return nil, provider.ErrUnsupported
		}
		return nil, aggregate.Failed(failures)
	}

	names := make([]string, 0, len(listings))
	for name := range listings {
		names = append(names, name)
	}
	names = b.agg.Priorities().Order(media.Episode, names)
	ordered := make([]*provider.Listing, 0, len(names))
	for _, name := range names {
		l := listings[name]
		if l.Provider == "" {
			l.Provider = name
		}
		ordered = append(ordered, l)
	}

	p := Assemble(b.agg, show, ordered, b.now())
	if len(failures) > 0 {
		p.Complete = false
	}
	b.logger.Debug("pack built", "show", p.IDs.String(), "seasons", p.Count.Season.Total, "episodes", p.Count.Episode.Total, "sources", names)
	return p, nil
}

// Assemble builds a pack from listings given in priority order. The first
// listing fixes the structure; the others are aligned into it.
func Assemble(agg *aggregate.Aggregator, show media.IDs, listings []*provider.Listing, now time.Time) *media.Pack {
	shows := make([]aggregate.Input, 0, len(listings))
	for _, l := range listings {
		if !l.Show.IDs.Empty() || l.Show.Title != "" {
			r := l.Show
			r.Media = media.Show
			shows = append(shows, aggregate.Input{Provider: l.Provider, Record: r})
		}
	}
	var showRec media.Record
	if len(shows) > 0 {
		showRec = agg.Merge(media.Show, show.Normalize(), shows)
	} else {
		showRec = media.Record{Media: media.Show, IDs: show.Normalize()}
	}

	t := newTable()
	complete := true
	for _, l := range listings {
		t.absorb(l)
		complete = complete && l.Complete
	}

	p := &media.Pack{IDs: showRec.IDs, Complete: complete}
	if p.IDs.Empty() {
		p.IDs = show.Normalize()
	}
	p.Seasons = t.seasons()
	number(p.Seasons)
	summarize(p, showRec.Status, now)
	classify(p)
	return p
}

// table collects episodes per standard season while listings are aligned.
type table struct {
	meta     map[int]media.Record
	episodes map[int][]*slot
}

type slot struct {
	rec     media.Record
	sources []string
}

func newTable() *table {
	return &table{meta: make(map[int]media.Record), episodes: make(map[int][]*slot)}
}

func (t *table) absorb(l *provider.Listing) {
	for _, s := range l.Seasons {
		if cur, ok := t.meta[s.Season]; ok {
			t.meta[s.Season] = media.Merge(cur, s)
		} else {
			t.meta[s.Season] = s.Clone()
		}
	}

	bySeason := make(map[int][]media.Record)
	for _, e := range l.Episodes {
		if e.Season < 0 || e.Episode < 0 {
			continue
		}
		bySeason[e.Season] = append(bySeason[e.Season], e)
	}
	for season, eps := range bySeason {
		slices.SortStableFunc(eps, func(a, b media.Record) int { return a.Episode - b.Episode })
		t.episodes[season] = align(t.episodes[season], eps, l.Provider)
		if _, ok := t.meta[season]; !ok {
			t.meta[season] = media.Record{Media: media.Season, Season: season}
		}
	}
}

// seasons returns the collected seasons ordered by number, each with its
// episodes ordered by number.
func (t *table) seasons() []media.PackSeason {
	numbers := make([]int, 0, len(t.meta))
	for n := range t.meta {
		numbers = append(numbers, n)
	}
	slices.Sort(numbers)

	out := make([]media.PackSeason, 0, len(numbers))
	for _, n := range numbers {
		meta := t.meta[n]
		slots := t.episodes[n]
		slices.SortStableFunc(slots, func(a, b *slot) int { return a.rec.Episode - b.rec.Episode })
		s := media.PackSeason{
			IDs:      meta.IDs.Clone(),
			Title:    meta.Title,
			Status:   meta.Status,
			Episodes: make([]media.PackEpisode, 0, len(slots)),
		}
		s.Number.Standard = media.Number{Season: n}
		for _, sl := range slots {
			s.Episodes = append(s.Episodes, episode(sl))
		}
		s.Count = len(s.Episodes)
		out = append(out, s)
	}
	return out
}

func episode(sl *slot) media.PackEpisode {
	r := sl.rec
	e := media.PackEpisode{
		IDs:      r.IDs.Clone(),
		Title:    r.Title,
		Type:     r.Type,
		Duration: r.Duration,
		Year:     r.Year,
		Sources:  slices.Clone(sl.sources),
	}
	e.Number.Standard = media.Number{Season: r.Season, Episode: r.Episode}
	if t := r.Released(); !t.IsZero() {
		e.Time = t.Unix()
		if e.Year == 0 {
			e.Year = t.UTC().Year()
		}
	}
	return e
}
