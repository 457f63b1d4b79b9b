// Package ratelimit gates outbound provider calls.
//
// Every provider has two pools, one for unauthenticated and one for
// authenticated calls. A pool is a sliding window of N calls over W, with
// optional token-bucket smoothing so a full budget is not spent in one burst.
// The governor is advisory: it answers proceed, wait or switch, and Acquire
// implements the default policy of honoring that answer.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	csmap "github.com/mhmtszr/concurrent-swiss-map"
	"golang.org/x/time/rate"
)

// Budget is a soft limit of Limit calls per Window. Burst > 0 adds a token
// bucket refilling at Limit/Window with that burst size.
type Budget struct {
	Limit  int           `json:"limit"`
	Window time.Duration `json:"window"`
	Burst  int           `json:"burst"`
}

// Action is the governor's advice.
type Action int

const (
	Proceed Action = iota
	Wait
	Switch
)

func (a Action) String() string {
	switch a {
	case Proceed:
		return "proceed"
	case Wait:
		return "wait"
	case Switch:
		return "switch"
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// Advice is returned by Reserve. Wait is set for the Wait action.
type Advice struct {
	Action Action
	Wait   time.Duration
}

// Default pool switching thresholds.
const (
	DefaultSwitchAt  = 0.95
	DefaultAuthBelow = 0.90
)

// WaitError reports that a call could not be admitted before the deadline.
type WaitError struct {
	Provider string
	Wait     time.Duration
}

func (e *WaitError) Error() string {
	return fmt.Sprintf("%s: rate budget exhausted, retry in %s", e.Provider, e.Wait.Round(time.Millisecond))
}

// Governor tracks all pools. It is safe for concurrent use.
type Governor struct {
	budgets   map[string]Budget
	fallback  Budget
	pools     *csmap.CsMap[string, *pool]
	mu        sync.Mutex
	switchAt  float64
	authBelow float64
	now       func() time.Time
	sleep     func(context.Context, time.Duration) error
	logger    *log.Logger
}

// Option configures a Governor.
type Option func(*Governor)

// WithThresholds overrides the pool switching thresholds.
func WithThresholds(switchAt, authBelow float64) Option {
	return func(g *Governor) {
		if switchAt > 0 {
			g.switchAt = switchAt
		}
		if authBelow > 0 {
			g.authBelow = authBelow
		}
	}
}

// WithLogger sets the logger for waits and pool switches.
func WithLogger(l *log.Logger) Option {
	return func(g *Governor) { g.logger = l }
}

// WithClock replaces time.Now and the sleep used by Acquire.
func WithClock(now func() time.Time, sleep func(context.Context, time.Duration) error) Option {
	return func(g *Governor) {
		if now != nil {
			g.now = now
		}
		if sleep != nil {
			g.sleep = sleep
		}
	}
}

// New creates a governor. budgets is keyed by PoolKey(provider, auth); a
// plain provider name applies to both pools. Unknown providers get a
// permissive default.
func New(budgets map[string]Budget, opts ...Option) *Governor {
	g := &Governor{
		budgets:   make(map[string]Budget, len(budgets)),
		fallback:  Budget{Limit: 40, Window: 10 * time.Second},
		pools:     csmap.Create[string, *pool](),
		switchAt:  DefaultSwitchAt,
		authBelow: DefaultAuthBelow,
		now:       time.Now,
		sleep:     sleepContext,
		logger:    log.Default(),
	}
	for k, b := range budgets {
		g.budgets[k] = b
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// PoolKey names the pool of provider for the given authentication state.
func PoolKey(provider string, auth bool) string {
	if auth {
		return provider + "/auth"
	}
	return provider + "/anon"
}

func (g *Governor) pool(provider string, auth bool) *pool {
	key := PoolKey(provider, auth)
	if p, ok := g.pools.Load(key); ok {
		return p
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if p, ok := g.pools.Load(key); ok {
		return p
	}
	b, ok := g.budgets[key]
	if !ok {
		if b, ok = g.budgets[provider]; !ok {
			b = g.fallback
		}
	}
	p := newPool(b, g.now())
	g.pools.Store(key, p)
	return p
}

// Reserve consults the pool. On Proceed the call is recorded. Switch is
// advised when the unauthenticated pool is nearly spent, the authenticated
// pool still has headroom and the caller may authenticate.
func (g *Governor) Reserve(provider string, auth, eligible bool) Advice {
	now := g.now()
	if !auth && eligible {
		anon := g.pool(provider, false)
		authed := g.pool(provider, true)
		if anon.usage(now) >= g.switchAt && authed.usage(now) < g.authBelow {
			g.logger.Debug("rate pool switch", "provider", provider)
			return Advice{Action: Switch}
		}
	}
	wait := g.pool(provider, auth).reserve(now)
	if wait > 0 {
		return Advice{Action: Wait, Wait: wait}
	}
	return Advice{Action: Proceed}
}

// Release forgets the most recent reservation of a pool, for calls that
// were cancelled before reaching the upstream.
func (g *Governor) Release(provider string, auth bool) {
	g.pool(provider, auth).release(g.now())
}

// Usage is the spent fraction of a pool in [0,1].
func (g *Governor) Usage(provider string, auth bool) float64 {
	return g.pool(provider, auth).usage(g.now())
}

// Acquire follows the advice until the call is admitted. It returns the
// pool actually used. When the required wait would pass the context
// deadline a *WaitError is returned without sleeping.
func (g *Governor) Acquire(ctx context.Context, provider string, auth, eligible bool) (bool, error) {
	for {
		if err := ctx.Err(); err != nil {
			return auth, err
		}
		advice := g.Reserve(provider, auth, eligible)
		switch advice.Action {
		case Proceed:
			return auth, nil
		case Switch:
			auth, eligible = true, false
			continue
		}
		if deadline, ok := ctx.Deadline(); ok && g.now().Add(advice.Wait).After(deadline) {
			return auth, &WaitError{Provider: provider, Wait: advice.Wait}
		}
		g.logger.Debug("rate wait", "provider", provider, "auth", auth, "wait", advice.Wait)
		if err := g.sleep(ctx, advice.Wait); err != nil {
			return auth, err
		}
	}
}

// Snapshot reports the usage of every pool touched so far.
func (g *Governor) Snapshot() map[string]float64 {
	now := g.now()
	out := make(map[string]float64, g.pools.Count())
	g.pools.Range(func(key string, p *pool) bool {
		out[key] = p.usage(now)
		return false
	})
	return out
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// pool is a sliding window of call times.
type pool struct {
	mu       sync.Mutex
	requests []time.Time
	limit    int
	window   time.Duration
	limiter  *rate.Limiter
	last     *rate.Reservation
}

func newPool(b Budget, now time.Time) *pool {
	if b.Limit <= 0 {
		b.Limit = 1
	}
	if b.Window <= 0 {
		b.Window = time.Second
	}
	p := &pool{
		limit:    b.Limit,
		window:   b.Window,
		requests: make([]time.Time, 0, b.Limit),
	}
	if b.Burst > 0 {
		every := rate.Every(b.Window / time.Duration(b.Limit))
		p.limiter = rate.NewLimiter(every, b.Burst)
		// start with a full bucket relative to the injected clock
		p.limiter.SetBurstAt(now, b.Burst)
	}
	return p
}

// prune drops calls outside the window. Caller holds mu.
func (p *pool) prune(now time.Time) {
	cutoff := now.Add(-p.window)
	valid := p.requests[:0]
	for _, req := range p.requests {
		if req.After(cutoff) {
			valid = append(valid, req)
		}
	}
	p.requests = valid
}

func (p *pool) reserve(now time.Time) time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prune(now)

	var wait time.Duration
	if len(p.requests) >= p.limit {
		wait = p.window - now.Sub(p.requests[0])
	}
	if p.limiter != nil && wait == 0 {
		r := p.limiter.ReserveN(now, 1)
		if d := r.DelayFrom(now); d > 0 {
			r.CancelAt(now)
			wait = d
		} else {
			p.last = r
		}
	}
	if wait > 0 {
		return wait
	}
	p.requests = append(p.requests, now)
	return 0
}

func (p *pool) release(now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n := len(p.requests); n > 0 {
		p.requests = p.requests[:n-1]
	}
	if p.last != nil {
		p.last.CancelAt(now)
		p.last = nil
	}
}

func (p *pool) usage(now time.Time) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prune(now)
	u := float64(len(p.requests)) / float64(p.limit)
	if p.limiter != nil {
		if b := p.limiter.Burst(); b > 0 {
			tokens := p.limiter.TokensAt(now)
			if spent := 1 - tokens/float64(b); spent > u {
				u = spent
			}
		}
	}
	return min(max(u, 0), 1)
}
