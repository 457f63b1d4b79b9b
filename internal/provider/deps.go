package provider

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"

	"github.com/gaiakodi/gaiasource/internal/cache"
	"github.com/gaiakodi/gaiasource/internal/media"
	"github.com/gaiakodi/gaiasource/internal/ratelimit"
)

// TTL holds the cache lifetimes of the three classes of upstream data.
type TTL struct {
	List   time.Duration `json:"list"`
	Detail time.Duration `json:"detail"`
	IDs    time.Duration `json:"ids"`
}

// DefaultTTL returns the built-in lifetimes.
func DefaultTTL() TTL {
	return TTL{List: cache.TTLShort, Detail: cache.TTLDay * 3, IDs: cache.TTLWeek}
}

// Deps is the shared infrastructure a provider is built with. Zero fields
// fall back to working defaults: no governor, no cache, the default HTTP
// client and logger.
type Deps struct {
	HTTP     *http.Client
	Governor *ratelimit.Governor
	Cache    *cache.Cache
	Logger   *log.Logger
	Workers  int
	TTL      TTL
	Now      func() time.Time
}

// Log returns the logger, tagged with the provider name.
func (d Deps) Log(name string) *log.Logger {
	l := d.Logger
	if l == nil {
		l = log.Default()
	}
	return l.With("provider", name)
}

// Clock returns the current time.
func (d Deps) Clock() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// Lifetimes returns TTL with unset classes defaulted.
func (d Deps) Lifetimes() TTL {
	def := DefaultTTL()
	t := d.TTL
	if t.List <= 0 {
		t.List = def.List
	}
	if t.Detail <= 0 {
		t.Detail = def.Detail
	}
	if t.IDs <= 0 {
		t.IDs = def.IDs
	}
	return t
}

// API builds the JSON transport of one provider.
func (d Deps) API(name, baseURL string) *API {
	return &API{
		Name:     name,
		BaseURL:  baseURL,
		HTTP:     d.HTTP,
		Governor: d.Governor,
		Cache:    d.Cache,
		Logger:   d.Log(name),
	}
}

// SDKCall runs fn, a call into a third-party client library, under the
// same governor and cache discipline as API calls. classify maps the
// library's errors onto ProviderError.
func SDKCall[T any](ctx context.Context, d Deps, name, path string, params any, ttl time.Duration, fn func() (T, error), classify func(error) error) (T, error) {
	run := func(ctx context.Context) (T, error) {
		var zero T
		if d.Governor != nil {
			if _, err := d.Governor.Acquire(ctx, name, false, false); err != nil {
				var we *ratelimit.WaitError
				if errors.As(err, &we) {
					return zero, RateLimited(name, we.Wait, err)
				}
				return zero, NetworkError(name, err)
			}
		} else if err := ctx.Err(); err != nil {
			return zero, NetworkError(name, err)
		}
		v, err := fn()
		if err != nil {
			if classify != nil {
				err = classify(err)
			}
			return zero, err
		}
		return v, nil
	}
	if ttl <= 0 || d.Cache == nil {
		return run(ctx)
	}

	key := cache.Key(name, path, params)
	v, err := cache.Fetch(ctx, d.Cache, key, ttl, run)
	if err == nil {
		return v, nil
	}
	if errors.Is(err, cache.ErrKnownMissing) {
		return v, &ProviderError{Provider: name, Code: media.CodeNotFound, Message: path + " not found", Err: err}
	}
	if CodeOf(err) == media.CodeNetwork {
		if ierr := d.Cache.Invalidate(ctx, key); ierr != nil {
			d.Log(name).Warn("cache invalidate failed", "err", ierr)
		}
	}
	return v, err
}
