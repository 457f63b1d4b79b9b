package aggregate

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/charmbracelet/log"

	"github.com/gaiakodi/gaiasource/internal/cache"
	"github.com/gaiakodi/gaiasource/internal/media"
	"github.com/gaiakodi/gaiasource/internal/provider"
)

const resolverName = "resolver"

// Steps lists, per media, the providers asked to translate ids, in the
// order most likely to return the missing ones.
type Steps map[media.Media][]string

// DefaultSteps asks Trakt then TMDb for movies and TVDb, Trakt then TMDb
// for shows.
func DefaultSteps() Steps {
	shows := []string{"tvdb", "trakt", "tmdb"}
	return Steps{
		media.Movie:   {"trakt", "tmdb"},
		media.Set:     {"tmdb"},
		media.Person:  {"trakt", "tmdb"},
		media.Show:    shows,
		media.Season:  shows,
		media.Episode: shows,
	}
}

// sought is the id tuple a complete resolution carries.
func sought(m media.Media) []string {
	switch m {
	case media.Movie, media.Person:
		return []string{media.IDImdb, media.IDTmdb, media.IDTrakt}
	case media.Set:
		return []string{media.IDTmdb}
	}
	return []string{media.IDImdb, media.IDTmdb, media.IDTvdb, media.IDTrakt}
}

// Resolver completes id tuples across providers.
type Resolver struct {
	registry  *provider.Registry
	cache     *cache.Cache
	steps     Steps
	authority Authority
	ttl       time.Duration
	logger    *log.Logger
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithSteps replaces the lookup order.
func WithSteps(s Steps) ResolverOption {
	return func(r *Resolver) { r.steps = s }
}

// WithAuthority replaces the id authority table.
func WithAuthority(a Authority) ResolverOption {
	return func(r *Resolver) { r.authority = a }
}

// WithResolverCache caches resolutions, positive or negative, for ttl.
func WithResolverCache(c *cache.Cache, ttl time.Duration) ResolverOption {
	return func(r *Resolver) {
		r.cache = c
		r.ttl = ttl
	}
}

// WithResolverLogger sets the logger.
func WithResolverLogger(l *log.Logger) ResolverOption {
	return func(r *Resolver) { r.logger = l }
}

// NewResolver creates a resolver over the enabled providers of registry.
func NewResolver(registry *provider.Registry, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		registry:  registry,
		steps:     DefaultSteps(),
		authority: DefaultAuthority(),
		ttl:       cache.TTLWeek,
		logger:    log.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// resolution is what the resolver caches. Partial tuples, learned while
// some step failed, are returned but never kept.
type resolution struct {
	IDs     media.IDs `json:"ids"`
	Found   bool      `json:"found"`
	Partial bool      `json:"partial,omitempty"`
}

// Resolve returns the complete id tuple of the title described by req
// (Media, IDs, Title, Year, Deviation). Season and episode requests resolve
// their show. A partial tuple is returned when some upstreams fail; not
// found is reported only when nothing beyond the request could be learned.
func (r *Resolver) Resolve(ctx context.Context, req media.Request) (media.IDs, error) {
	ids, _, err := r.Lookup(ctx, req)
	return ids, err
}

// Lookup is Resolve that also reports whether every consulted upstream
// answered. An incomplete tuple is dropped from the cache so the failed
// upstreams are asked again next time.
func (r *Resolver) Lookup(ctx context.Context, req media.Request) (media.IDs, bool, error) {
	m := req.Media
	if m == media.Season || m == media.Episode {
		m = media.Show
	}
	ids := req.IDs.Normalize()
	if ids.Empty() && req.Title == "" {
		return nil, false, fmt.Errorf("%w: resolve needs ids or a title", media.ErrInvalidRequest)
	}

	key := cache.Key(resolverName, string(m), map[string]any{
		"ids":       map[string]string(ids),
		"title":     media.Fold(req.Title),
		"year":      req.Year,
		"deviation": req.Deviation,
	})
	res, err := cache.Fetch(ctx, r.cache, key, r.ttl, func(ctx context.Context) (resolution, error) {
		return r.resolve(ctx, m, ids, req)
	})
	if err != nil {
		return nil, false, err
	}
	if res.Partial {
		if ierr := r.cache.Invalidate(ctx, key); ierr != nil {
			r.logger.Warn("resolver cache invalidate failed", "key", key, "err", ierr)
		}
	}
	if !res.Found {
		return nil, false, provider.NotFound(resolverName, fmt.Sprintf("%s %s %q", m, ids, req.Title))
	}
	return res.IDs, !res.Partial, nil
}

// state is one resolution in progress.
type state struct {
	m         media.Media
	ids       media.IDs
	src       IDSources
	consulted map[string]bool
	learned   bool
	failed    error
	authority Authority
}

func (s *state) absorb(found media.IDs, source string) {
	for kind, value := range found.Normalize() {
		cur, ok := s.ids[kind]
		switch {
		case !ok:
			s.ids[kind] = value
			s.src[kind] = source
			s.learned = true
		case cur == value:
			if s.authority.Rank(kind, source) < s.authority.Rank(kind, s.src[kind]) {
				s.src[kind] = source
			}
		case s.authority.Rank(kind, source) < s.authority.Rank(kind, s.src[kind]):
			s.ids[kind] = value
			s.src[kind] = source
			s.learned = true
		}
	}
}

// needs reports whether asking source can still improve the tuple: a sought
// id is missing, or source is the authority for an id only known second-hand.
func (s *state) needs(source string) bool {
	for _, kind := range sought(s.m) {
		cur, ok := s.ids[kind]
		if !ok || cur == "" {
			return true
		}
		if s.authority.Authoritative(kind) == source && s.src[kind] != source && s.src[kind] != CallerSource {
			return true
		}
	}
	return false
}

func (s *state) complete() bool {
	return len(s.ids.Missing(sought(s.m))) == 0
}

func (r *Resolver) resolve(ctx context.Context, m media.Media, ids media.IDs, req media.Request) (resolution, error) {
	s := &state{m: m, ids: ids.Clone(), src: IDSources{}, consulted: map[string]bool{}, authority: r.authority}
	if s.ids == nil {
		s.ids = media.IDs{}
	}
	for kind := range s.ids {
		s.src[kind] = CallerSource
	}

	r.byIDs(ctx, s, req)
	if !s.complete() && req.Title != "" && r.byTitle(ctx, s, req) {
		r.byIDs(ctx, s, req)
	}
	if err := ctx.Err(); err != nil {
		return resolution{}, provider.NetworkError(resolverName, err)
	}
	if !s.learned && !s.complete() {
		// transient failures must not be remembered as not found
		if s.failed != nil {
			return resolution{}, s.failed
		}
		return resolution{}, nil
	}
	return resolution{IDs: s.ids, Found: true, Partial: s.failed != nil}, nil
}

// byIDs walks the lookup steps while they can add something.
func (r *Resolver) byIDs(ctx context.Context, s *state, req media.Request) {
	for _, name := range r.steps[s.m] {
		if s.consulted[name] || s.ids.Empty() || !s.needs(name) || ctx.Err() != nil {
			continue
		}
		client, ok := r.client(name, media.KindResolve, s.m)
		if !ok {
			continue
		}
		res, ok := client.(provider.Resolver)
		if !ok {
			continue
		}
		s.consulted[name] = true
		found, err := res.Resolve(ctx, s.ids.Clone(), s.m)
		if err != nil {
			r.logger.Debug("resolve step failed", "provider", name, "ids", s.ids.String(), "err", err)
			if !errors.Is(err, provider.ErrUnsupported) && provider.CodeOf(err) != media.CodeNotFound {
				s.failed = err
			}
			continue
		}
		if best, ok := choose(found, s.ids, req); ok {
			s.absorb(best.IDs, name)
		}
	}
}

// byTitle searches the step providers by title and year, once more without
// the year when deviation is allowed.
func (r *Resolver) byTitle(ctx context.Context, s *state, req media.Request) bool {
	for _, name := range r.steps[s.m] {
		client, ok := r.client(name, media.KindSearch, s.m)
		if !ok {
			continue
		}
		searcher, ok := client.(provider.Searcher)
		if !ok {
			continue
		}
		years := []int{req.Year}
		if req.Deviation && req.Year > 0 {
			years = append(years, 0)
		}
		for _, year := range years {
			page, err := searcher.Search(ctx, media.Request{Kind: media.KindSearch, Media: s.m, Query: req.Title, Year: year, Page: 1})
			if err != nil {
				r.logger.Debug("resolve search failed", "provider", name, "title", req.Title, "err", err)
				break
			}
			if page == nil {
				continue
			}
			best, ok := match(page.Items, s.m, req.Title, req.Year, req.Deviation)
			if !ok {
				continue
			}
			s.absorb(best.IDs, name)
			return true
		}
	}
	return false
}

func (r *Resolver) client(name string, kind media.Kind, m media.Media) (provider.Client, bool) {
	if r.registry == nil || !r.registry.IsEnabled(name) {
		return nil, false
	}
	c, ok := r.registry.Get(name)
	if !ok || !c.Capabilities().Supports(kind, m) {
		return nil, false
	}
	return c, true
}

// match picks the search hit for title. Sets have no year and need a near
// exact name.
func match(items []media.Record, m media.Media, title string, year int, deviation bool) (media.Record, bool) {
	if m != media.Set {
		return provider.BestMatch(items, title, year, deviation)
	}
	for _, r := range items {
		if provider.TitleScore(r, title, 0, false) >= provider.ExactTitleMatch {
			return r, true
		}
	}
	return media.Record{}, false
}

// choose picks among the candidates an upstream returned for one id. Rows
// sharing an id with the tuple are preferred, then the best title match.
func choose(found []media.Record, ids media.IDs, req media.Request) (media.Record, bool) {
	if len(found) == 0 {
		return media.Record{}, false
	}
	if len(found) == 1 {
		return found[0], true
	}
	sharing := slices.DeleteFunc(slices.Clone(found), func(r media.Record) bool { return !r.IDs.Shares(ids) })
	if len(sharing) == 0 {
		sharing = found
	}
	if req.Title != "" {
		if best, ok := provider.BestMatch(sharing, req.Title, req.Year, req.Deviation); ok {
			return best, true
		}
	}
	return sharing[0], true
}
