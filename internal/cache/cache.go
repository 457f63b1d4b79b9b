// Package cache memoizes provider responses.
//
// A Store is a dumb key/TTL byte store. Cache layers single-flight fetches,
// JSON copy-on-read and negative entries on top of any Store, so disabling
// caching (NullStore) changes only latency, never results.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"
)

// Store is the persistence contract behind Cache.
type Store interface {
	// Get returns (data, true, nil) on hit and (nil, false, nil) on miss.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// ErrKnownMissing is returned for keys whose last fetch reported a
// not-found that is still within its negative TTL.
var ErrKnownMissing = errors.New("known missing")

// TTL classes shared by providers and the engine.
const (
	TTLShort    = 3 * time.Hour
	TTLDay      = 24 * time.Hour
	TTLWeek     = 7 * 24 * time.Hour
	TTLMonth    = 30 * 24 * time.Hour
	TTLNegative = 6 * time.Hour
)

// entry markers
const (
	markValue   byte = 'v'
	markMissing byte = 'n'
)

type negative interface {
	Negative() bool
}

// Cache wraps a Store with single-flight and negative caching. A nil *Cache
// is valid and never caches.
type Cache struct {
	store       Store
	group       singleflight.Group
	negativeTTL time.Duration
	logger      *log.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithNegativeTTL sets how long not-found results are remembered. Zero
// disables negative caching.
func WithNegativeTTL(ttl time.Duration) Option {
	return func(c *Cache) { c.negativeTTL = ttl }
}

// WithLogger sets the logger used for store failures.
func WithLogger(l *log.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

// New wraps store. A nil store behaves like NullStore.
func New(store Store, opts ...Option) *Cache {
	if store == nil {
		store = NullStore{}
	}
	c := &Cache{store: store, negativeTTL: TTLNegative, logger: log.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Store returns the underlying store.
func (c *Cache) Store() Store {
	if c == nil {
		return NullStore{}
	}
	return c.store
}

// GetOrFetch returns the cached bytes for key or runs fetch once across all
// concurrent callers and stores its result for ttl. Errors from fetch are
// not cached unless they report themselves as negative. The shared fetch
// keeps the first caller's deadline but not its cancellation; every caller
// stops waiting when its own context ends.
func (c *Cache) GetOrFetch(ctx context.Context, key string, ttl time.Duration, fetch func(context.Context) ([]byte, error)) ([]byte, error) {
	if c == nil {
		return fetch(ctx)
	}
	if data, ok, err := c.lookup(ctx, key); ok || err != nil {
		return data, err
	}

	flight := detach(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		fctx, cancel := flight()
		defer cancel()
		// a concurrent flight may have filled the key between lookup and Do
		if data, ok, err := c.lookup(fctx, key); ok || err != nil {
			return data, err
		}
		return c.fill(fctx, key, ttl, fetch)
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		// the flight ran out of another caller's time; this caller still has some
		if res.Shared && isContextErr(res.Err) && ctx.Err() == nil {
			return c.fill(ctx, key, ttl, fetch)
		}
		return nil, res.Err
	}
	data := res.Val.([]byte)
	// singleflight shares one slice between callers
	return append([]byte(nil), data...), nil
}

// fill runs fetch and stores its outcome under key.
func (c *Cache) fill(ctx context.Context, key string, ttl time.Duration, fetch func(context.Context) ([]byte, error)) ([]byte, error) {
	data, err := fetch(ctx)
	if err != nil {
		var neg negative
		if c.negativeTTL > 0 && errors.As(err, &neg) && neg.Negative() {
			c.put(ctx, key, append([]byte{markMissing}, err.Error()...), c.negativeTTL)
		}
		return nil, err
	}
	c.put(ctx, key, append([]byte{markValue}, data...), ttl)
	return data, nil
}

// detach returns a constructor for a context that carries the values and
// deadline of ctx but ignores its cancellation.
func detach(ctx context.Context) func() (context.Context, context.CancelFunc) {
	return func() (context.Context, context.CancelFunc) {
		base := context.WithoutCancel(ctx)
		if deadline, ok := ctx.Deadline(); ok {
			return context.WithDeadline(base, deadline)
		}
		return context.WithCancel(base)
	}
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (c *Cache) lookup(ctx context.Context, key string) ([]byte, bool, error) {
	raw, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Warn("cache read failed", "key", key, "err", err)
		return nil, false, nil
	}
	if !ok || len(raw) == 0 {
		return nil, false, nil
	}
	switch raw[0] {
	case markValue:
		return append([]byte(nil), raw[1:]...), true, nil
	case markMissing:
		return nil, false, fmt.Errorf("%w: %s", ErrKnownMissing, raw[1:])
	}
	// unknown layout, drop it
	_ = c.store.Delete(ctx, key)
	return nil, false, nil
}

func (c *Cache) put(ctx context.Context, key string, data []byte, ttl time.Duration) {
	if err := c.store.Set(ctx, key, data, ttl); err != nil {
		c.logger.Warn("cache write failed", "key", key, "err", err)
	}
}

// Invalidate removes key.
func (c *Cache) Invalidate(ctx context.Context, key string) error {
	if c == nil {
		return nil
	}
	c.logger.Debug("cache invalidate", "key", key)
	return c.store.Delete(ctx, key)
}

// Close closes the store.
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.store.Close()
}

// Fetch is the typed form of GetOrFetch. Values round-trip through JSON, so
// every caller receives its own copy.
func Fetch[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, fetch func(context.Context) (T, error)) (T, error) {
	var zero T
	data, err := c.GetOrFetch(ctx, key, ttl, func(ctx context.Context) ([]byte, error) {
		v, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(v)
	})
	if err != nil {
		return zero, err
	}
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		_ = c.Invalidate(ctx, key)
		return zero, fmt.Errorf("decode cached %s: %w", key, err)
	}
	return out, nil
}

// Key builds "<namespace>:<path>:<sha256 of parts>". Maps marshal with
// sorted keys, so the fingerprint is stable under parameter reordering; nil
// entries of map parameters are dropped first.
func Key(namespace, path string, parts ...any) string {
	clean := make([]any, 0, len(parts))
	for _, p := range parts {
		clean = append(clean, dropNil(p))
	}
	data, err := json.Marshal(clean)
	if err != nil {
		// values JSON cannot express still get a stable fingerprint
		data = fmt.Appendf(nil, "%#v", clean)
	}
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%s:%s:%s", namespace, path, hex.EncodeToString(sum[:]))
}

func dropNil(p any) any {
	switch m := p.(type) {
	case map[string]any:
		out := make(map[string]any, len(m))
		for k, v := range m {
			if v != nil {
				out[k] = v
			}
		}
		return out
	case url.Values:
		return dropNil(map[string][]string(m))
	case map[string][]string:
		out := make(map[string][]string, len(m))
		for k, v := range m {
			if len(v) > 0 {
				out[k] = v
			}
		}
		return out
	case map[string]string:
		out := make(map[string]string, len(m))
		for k, v := range m {
			if v != "" {
				out[k] = v
			}
		}
		return out
	}
	return p
}
