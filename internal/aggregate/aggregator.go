package aggregate

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/charmbracelet/log"
	csmap "github.com/mhmtszr/concurrent-swiss-map"

	"github.com/gaiakodi/gaiasource/internal/media"
	"github.com/gaiakodi/gaiasource/internal/provider"
)

// Aggregator fans equivalent requests out to providers and merges what
// they return.
type Aggregator struct {
	registry *provider.Registry
	merger   Merger
	policy   Policy
	resolver *Resolver
	workers  int
	logger   *log.Logger
	now      func() time.Time
}

// Options configures an Aggregator. Zero fields take the defaults.
type Options struct {
	Priorities Priorities
	Authority  Authority
	Rating     Policy
	Resolver   *Resolver
	Workers    int
	Logger     *log.Logger
	Now        func() time.Time
}

// New creates an aggregator over the enabled providers of registry.
func New(registry *provider.Registry, opts Options) *Aggregator {
	a := &Aggregator{
		registry: registry,
		merger: Merger{
			Priorities: opts.Priorities,
			Authority:  opts.Authority,
		},
		policy:   opts.Rating,
		resolver: opts.Resolver,
		workers:  opts.Workers,
		logger:   opts.Logger,
		now:      opts.Now,
	}
	if a.merger.Priorities == nil {
		a.merger.Priorities = DefaultPriorities()
	}
	if a.merger.Authority == nil {
		a.merger.Authority = DefaultAuthority()
	}
	if a.policy.Main == "" {
		a.policy = DefaultPolicy()
	}
	if a.workers <= 0 {
		a.workers = provider.DefaultWorkers()
	}
	if a.logger == nil {
		a.logger = log.Default()
	}
	if a.now == nil {
		a.now = time.Now
	}
	return a
}

// Registry returns the provider registry.
func (a *Aggregator) Registry() *provider.Registry { return a.registry }

// Resolver returns the id resolver, nil when none is set.
func (a *Aggregator) Resolver() *Resolver { return a.resolver }

// Workers returns the fan-out width.
func (a *Aggregator) Workers() int { return a.workers }

// Priorities returns the merge priorities.
func (a *Aggregator) Priorities() Priorities { return a.merger.Priorities }

// Collect runs fn on every client in parallel and gathers the values and
// errors by provider name. Clients answering ErrUnsupported appear in
// neither map.
func Collect[T any](ctx context.Context, workers int, clients []provider.Client, fn func(ctx context.Context, c provider.Client) (T, error)) (map[string]T, map[string]error) {
	values := csmap.Create[string, T]()
	failures := csmap.Create[string, error]()
	provider.FanOut(ctx, workers, len(clients), func(ctx context.Context, i int) (struct{}, error) {
		c := clients[i]
		v, err := fn(ctx, c)
		switch {
		case errors.Is(err, provider.ErrUnsupported):
		case err != nil:
			failures.Store(c.Name(), err)
		default:
			values.Store(c.Name(), v)
		}
		return struct{}{}, nil
	})

	outV := make(map[string]T, values.Count())
	values.Range(func(k string, v T) bool {
		outV[k] = v
		return false
	})
	outE := make(map[string]error, failures.Count())
	failures.Range(func(k string, err error) bool {
		outE[k] = err
		return false
	})
	return outV, outE
}

// Failed joins provider failures in name order.
func Failed(failures map[string]error) error {
	names := make([]string, 0, len(failures))
	for name := range failures {
		names = append(names, name)
	}
	slices.Sort(names)
	errs := make([]error, 0, len(names))
	for _, name := range names {
		errs = append(errs, failures[name])
	}
	return errors.Join(errs...)
}

// Merge folds the records of one title and reconciles its rating.
func (a *Aggregator) Merge(m media.Media, caller media.IDs, inputs []Input) media.Record {
	r := a.merger.Merge(m, caller, inputs)
	a.policy.Apply(&r, a.now())
	return r
}

// Combine merges the per-provider results of a listing: records sharing an
// id across providers become one, ranked by their best position. Provider
// order breaks rank ties. Records failing Validate are dropped.
func (a *Aggregator) Combine(m media.Media, pages map[string][]media.Record) []media.Record {
	names := make([]string, 0, len(pages))
	for name := range pages {
		names = append(names, name)
	}
	names = a.merger.Priorities.Order(m, names)

	var all []media.Record
	var owners []string
	for _, name := range names {
		for _, r := range pages[name] {
			if err := r.Validate(); err != nil {
				a.logger.Warn("dropping record", "provider", name, "title", r.Title, "err", err)
				continue
			}
			all = append(all, r)
			owners = append(owners, name)
		}
	}
	numbers := m == media.Season || m == media.Episode
	groups := media.Group(all, numbers)

	type ranked struct {
		record media.Record
		rank   int
		first  int
	}
	out := make([]ranked, 0, len(groups))
	for _, members := range groups {
		inputs := make([]Input, 0, len(members))
		best := 0
		for _, i := range members {
			inputs = append(inputs, Input{Provider: owners[i], Record: all[i]})
			if rk := all[i].Rank; rk > 0 && (best == 0 || rk < best) {
				best = rk
			}
		}
		rec := a.Merge(all[members[0]].Media, nil, inputs)
		rec.Rank = best
		out = append(out, ranked{record: rec, rank: best, first: members[0]})
	}
	slices.SortStableFunc(out, func(x, y ranked) int {
		xr, yr := x.rank, y.rank
		if xr == 0 {
			xr = int(^uint(0) >> 1)
		}
		if yr == 0 {
			yr = int(^uint(0) >> 1)
		}
		if xr != yr {
			if xr < yr {
				return -1
			}
			return 1
		}
		return x.first - y.first
	})
	records := make([]media.Record, len(out))
	for i, r := range out {
		records[i] = r.record
	}
	return records
}

// complete resolves the ids of req before the fan-out so every provider can
// look the title up by its own id.
func (a *Aggregator) complete(ctx context.Context, req media.Request) media.Request {
	if a.resolver == nil || req.IDs.Empty() || req.Media == media.Person {
		return req
	}
	ids, err := a.resolver.Resolve(ctx, media.Request{Media: req.Media, IDs: req.IDs, Title: req.Title, Year: req.Year, Deviation: req.Deviation})
	if err != nil {
		a.logger.Debug("id resolution failed", "ids", req.IDs.String(), "err", err)
		return req
	}
	out := req
	out.IDs = req.IDs.Normalize()
	for kind, value := range ids {
		if out.IDs.Get(kind) == "" {
			out.IDs.Set(kind, value)
		}
	}
	return out
}

// Describe fetches the details of one title from every provider that can
// describe it and merges them. Providers that fail only clear Complete;
// the call fails when all of them do.
func (a *Aggregator) Describe(ctx context.Context, req media.Request) (*media.Record, error) {
	clients := a.registry.Serving(media.KindMetadata, req.Media)
	if len(clients) == 0 {
		return nil, provider.ErrUnsupported
	}
	caller := req.IDs.Normalize()
	req = a.complete(ctx, req)
	memo := provider.NewMemo()

	records, failures := Collect(ctx, a.workers, clients, func(ctx context.Context, c provider.Client) (*media.Record, error) {
		d, ok := c.(provider.Describer)
		if !ok {
			return nil, provider.ErrUnsupported
		}
		r, err := provider.MetadataWithShow(ctx, d, req, memo)
		if err == nil && r == nil {
			err = provider.NotFound(c.Name(), fmt.Sprintf("%s %s", req.Media, req.IDs))
		}
		return r, err
	})
	for name, err := range failures {
		a.logger.Warn("metadata failed", "provider", name, "media", req.Media, "err", err)
	}
	if len(records) == 0 {
		if len(failures) == 0 {
			return nil, provider.ErrUnsupported
		}
		return nil, Failed(failures)
	}

	inputs := make([]Input, 0, len(records))
	for name, r := range records {
		inputs = append(inputs, Input{Provider: name, Record: *r})
	}
	if req.Media == media.Season || req.Media == media.Episode {
		// the request ids are the show's
		caller = nil
	}
	out := a.Merge(req.Media, caller, inputs)
	if len(failures) > 0 {
		out.Complete = false
	}
	return &out, nil
}

// Listings gathers the season and episode structure of a show from every
// provider that can list it. Complete listings in known are used as they are
// instead of being fetched again. Failures are returned by provider name.
func (a *Aggregator) Listings(ctx context.Context, show media.IDs, seasons []int, known map[string]*provider.Listing) (map[string]*provider.Listing, map[string]error) {
	clients := a.registry.Serving(media.KindPack, media.Show)
	req := a.complete(ctx, media.Request{Media: media.Show, IDs: show})
	return Collect(ctx, a.workers, clients, func(ctx context.Context, c provider.Client) (*provider.Listing, error) {
		if l, ok := known[c.Name()]; ok && l != nil && l.Complete {
			return l, nil
		}
		p, ok := c.(provider.Packer)
		if !ok {
			return nil, provider.ErrUnsupported
		}
		l, err := p.Pack(ctx, req.IDs.Clone(), seasons)
		if err == nil && l == nil {
			err = provider.NotFound(c.Name(), "pack "+req.IDs.String())
		}
		return l, err
	})
}
