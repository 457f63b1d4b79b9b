// Package pipeline turns caller requests into aggregated provider calls and
// shapes what comes back into pages, records, packs and id tuples.
package pipeline

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/gaiakodi/gaiasource/internal/aggregate"
	"github.com/gaiakodi/gaiasource/internal/cache"
	journal "github.com/gaiakodi/gaiasource/internal/log"
	"github.com/gaiakodi/gaiasource/internal/media"
	"github.com/gaiakodi/gaiasource/internal/pack"
	"github.com/gaiakodi/gaiasource/internal/provider"
)

// maxFailures bounds the failure snapshot.
const maxFailures = 100

// Engine runs operations over the enabled providers.
type Engine struct {
	agg     *aggregate.Aggregator
	packs   *pack.Builder
	cache   *cache.Cache
	pageTTL time.Duration
	niche   media.Niche
	mode    media.InterleaveMode
	within  time.Duration
	journal *journal.Journal
	logger  *log.Logger
	now     func() time.Time

	summaryMu sync.RWMutex
	summary   Summary

	failuresMu sync.Mutex
	failures   []Failure
}

// Summary counts the operations an engine has run.
type Summary struct {
	Operations int
	Incomplete int
	Failed     int
	Active     int
	Last       string
}

// Failure records one provider failing during an operation.
type Failure struct {
	RequestID string
	Provider  string
	Kind      media.Kind
	Media     media.Media
	Err       error
}

// Config configures an Engine. Aggregator is required.
type Config struct {
	Aggregator *aggregate.Aggregator
	Packs      *pack.Builder
	Cache      *cache.Cache
	// PageTTL is how long finished pages are kept; zero disables the page
	// cache.
	PageTTL    time.Duration
	Tiers      media.TierTable
	Factors    map[string]float64
	Interleave media.InterleaveMode
	Within     time.Duration
	Journal    *journal.Journal
	Logger     *log.Logger
	Now        func() time.Time
}

// New creates an engine with defaults applied.
func New(cfg Config) *Engine {
	e := &Engine{
		agg:     cfg.Aggregator,
		packs:   cfg.Packs,
		cache:   cfg.Cache,
		pageTTL: cfg.PageTTL,
		niche:   media.Niche{Tiers: cfg.Tiers, Factors: cfg.Factors},
		mode:    cfg.Interleave,
		within:  cfg.Within,
		journal: cfg.Journal,
		logger:  cfg.Logger,
		now:     cfg.Now,
	}
	if e.logger == nil {
		e.logger = log.Default()
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.packs == nil {
		e.packs = pack.New(e.agg, pack.WithCache(e.cache, cache.TTLWeek), pack.WithLogger(e.logger), pack.WithClock(e.now))
	}
	if e.mode == "" {
		e.mode = media.InterleaveNone
	}
	return e
}

// Aggregator returns the aggregator the engine dispatches through.
func (e *Engine) Aggregator() *aggregate.Aggregator { return e.agg }

// Summary returns a snapshot of the operation counters.
func (e *Engine) Summary() Summary {
	e.summaryMu.RLock()
	defer e.summaryMu.RUnlock()
	return e.summary
}

// Failures returns the most recent provider failures, oldest first. The
// slice is a copy.
func (e *Engine) Failures() []Failure {
	e.failuresMu.Lock()
	defer e.failuresMu.Unlock()
	if len(e.failures) == 0 {
		return nil
	}
	return slices.Clone(e.failures)
}

func (e *Engine) recordFailures(id string, req media.Request, failures map[string]error) {
	if len(failures) == 0 {
		return
	}
	names := make([]string, 0, len(failures))
	for name := range failures {
		names = append(names, name)
	}
	slices.Sort(names)

	e.failuresMu.Lock()
	defer e.failuresMu.Unlock()
	for _, name := range names {
		err := failures[name]
		if errors.Is(err, context.Canceled) {
			continue
		}
		e.failures = append(e.failures, Failure{RequestID: id, Provider: name, Kind: req.Kind, Media: req.Media, Err: err})
	}
	if over := len(e.failures) - maxFailures; over > 0 {
		e.failures = slices.Delete(e.failures, 0, over)
	}
}

// op is the bookkeeping around one operation: request id, logger, journal
// entry and counters.
type op struct {
	id     string
	req    media.Request
	logger *log.Logger
	start  time.Time
}

func (e *Engine) begin(ctx context.Context, req media.Request) (context.Context, *op) {
	o := &op{id: uuid.NewString(), req: req, start: e.now()}
	o.logger = e.logger.With("request_id", o.id, "op", string(req.Kind))
	e.summaryMu.Lock()
	e.summary.Active++
	e.summaryMu.Unlock()
	o.logger.Debug("operation started", "media", req.Media)
	return journal.WithLogger(ctx, o.logger), o
}

func (e *Engine) end(o *op, items int, complete bool, err error) {
	elapsed := e.now().Sub(o.start)
	e.summaryMu.Lock()
	e.summary.Active--
	e.summary.Operations++
	e.summary.Last = string(o.req.Kind) + " " + string(o.req.Media)
	switch {
	case err != nil:
		e.summary.Failed++
	case !complete:
		e.summary.Incomplete++
	}
	e.summaryMu.Unlock()

	entry := journal.OperationLog{
		Kind:      string(o.req.Kind),
		Media:     string(o.req.Media),
		RequestID: o.id,
		Duration:  elapsed,
		Items:     items,
		Complete:  complete && err == nil,
	}
	if err != nil {
		entry.Error = err.Error()
		o.logger.Warn("operation failed", "media", o.req.Media, "duration", elapsed, "err", err)
	} else {
		o.logger.Debug("operation finished", "media", o.req.Media, "items", items, "complete", complete, "duration", elapsed)
	}
	e.journal.Record(entry)
}

// prepare validates req and expands its niche tags into filters and a sort.
func (e *Engine) prepare(kind media.Kind, req media.Request) (media.Request, error) {
	req.Kind = kind
	req = req.Normalized()
	if err := req.Validate(); err != nil {
		return req, err
	}
	if len(req.Niche) > 0 {
		n := e.niche
		n.Now = e.now()
		filters, sort, err := n.Expand(req.Niche, req.Media)
		if err != nil {
			return req, errors.Join(media.ErrInvalidRequest, err)
		}
		req.Filters = req.Filters.Merge(filters)
		if req.Sort == "" {
			req.Sort = sort
		}
	}
	if req.Kind == media.KindDiscover && req.Sort == "" {
		req.Sort = media.SortPopular
	}
	if req.Filters.RatingTier != "" {
		if err := req.Filters.ResolveTier(req.Media, e.niche.Tiers); err != nil {
			return req, errors.Join(media.ErrInvalidRequest, err)
		}
	}
	return req, nil
}

// cached serves fetch through the page cache. Results that are incomplete,
// and keys whose fetch failed, are dropped so the next call retries.
func cached[T any](ctx context.Context, e *Engine, req media.Request, complete func(T) bool, fetch func(context.Context) (T, error)) (T, error) {
	if e.cache == nil || e.pageTTL <= 0 {
		return fetch(ctx)
	}
	key := cache.Key("pipeline", string(req.Kind), req)
	v, err := cache.Fetch(ctx, e.cache, key, e.pageTTL, fetch)
	if err != nil || !complete(v) {
		if ierr := e.cache.Invalidate(ctx, key); ierr != nil {
			e.logger.Warn("page cache invalidate failed", "key", key, "err", ierr)
		}
	}
	if errors.Is(err, cache.ErrKnownMissing) {
		return v, provider.NotFound("pipeline", string(req.Kind))
	}
	return v, err
}
