package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/gaiakodi/gaiasource/internal/cache"
	"github.com/gaiakodi/gaiasource/internal/media"
	"github.com/gaiakodi/gaiasource/internal/ratelimit"
)

const (
	maxBody           = 16 << 20
	defaultRetryDelay = 10 * time.Second
)

// API is the JSON transport shared by the providers that speak HTTP
// directly. Every call passes the rate governor, goes through the result
// cache when it has a TTL and is retried once on transport failures and
// once after an upstream 429.
type API struct {
	Name     string
	BaseURL  string
	HTTP     *http.Client
	Governor *ratelimit.Governor
	Cache    *cache.Cache
	Logger   *log.Logger

	// Sign adds credentials for the chosen pool.
	Sign func(req *http.Request, auth bool)
	// CanAuth allows unauthenticated calls to borrow the authenticated pool.
	CanAuth bool
	// RetryDelay is the 429 wait when the upstream sends no Retry-After.
	RetryDelay time.Duration
	// Keep lists response headers preserved in the Response, e.g. pagination.
	Keep []string
	// Sleep replaces the context-aware sleep between retries.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Call is one upstream request.
type Call struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
	// Extra is folded into the cache key without being sent.
	Extra map[string]any
	// TTL > 0 caches the response.
	TTL time.Duration
	// Auth requires the authenticated pool.
	Auth bool
}

// Response is a decoded upstream answer as it is cached.
type Response struct {
	Status int               `json:"status"`
	Header map[string]string `json:"header,omitempty"`
	Body   json.RawMessage   `json:"body"`
}

// Decode unmarshals the body into out.
func (r *Response) Decode(out any) error {
	if len(r.Body) == 0 {
		return nil
	}
	return json.Unmarshal(r.Body, out)
}

// HeaderInt reads a kept header as an integer, 0 when absent.
func (r *Response) HeaderInt(name string) int {
	n, _ := strconv.Atoi(r.Header[http.CanonicalHeaderKey(name)])
	return n
}

func (a *API) logger() *log.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return log.Default()
}

// Key is the cache key of a call.
func (a *API) Key(call Call) string {
	parts := []any{call.Query}
	if call.Method != "" && call.Method != http.MethodGet {
		parts = append(parts, call.Method, call.Body)
	}
	if len(call.Extra) > 0 {
		parts = append(parts, call.Extra)
	}
	return cache.Key(a.Name, strings.Trim(call.Path, "/"), parts...)
}

// Do performs call, consulting the cache first when call.TTL is set.
func (a *API) Do(ctx context.Context, call Call) (*Response, error) {
	if call.TTL <= 0 || a.Cache == nil {
		return a.fetch(ctx, call)
	}
	key := a.Key(call)
	resp, err := cache.Fetch(ctx, a.Cache, key, call.TTL, func(ctx context.Context) (*Response, error) {
		return a.fetch(ctx, call)
	})
	if err == nil {
		return resp, nil
	}
	if errors.Is(err, cache.ErrKnownMissing) {
		return nil, &ProviderError{Provider: a.Name, Code: media.CodeNotFound, Message: strings.Trim(call.Path, "/") + " not found", Err: err}
	}
	if CodeOf(err) == media.CodeNetwork {
		if ierr := a.Cache.Invalidate(ctx, key); ierr != nil {
			a.logger().Warn("cache invalidate failed", "provider", a.Name, "err", ierr)
		}
	}
	return nil, err
}

// Get performs call and decodes the body into out. A body that does not
// decode is dropped from the cache.
func (a *API) Get(ctx context.Context, call Call, out any) (*Response, error) {
	resp, err := a.Do(ctx, call)
	if err != nil {
		return nil, err
	}
	if out != nil {
		if err := resp.Decode(out); err != nil {
			if call.TTL > 0 && a.Cache != nil {
				if ierr := a.Cache.Invalidate(ctx, a.Key(call)); ierr != nil {
					a.logger().Warn("cache invalidate failed", "provider", a.Name, "err", ierr)
				}
			}
			return nil, ServerError(a.Name, resp.Status, fmt.Errorf("decoding %s: %w", call.Path, err))
		}
	}
	return resp, nil
}

func (a *API) fetch(ctx context.Context, call Call) (*Response, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		auth, err := a.acquire(ctx, call.Auth)
		if err != nil {
			return nil, err
		}
		req, err := a.request(ctx, call, auth)
		if err != nil {
			return nil, err
		}

		resp, err := a.client().Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, NetworkError(a.Name, ctx.Err())
			}
			lastErr = NetworkError(a.Name, err)
			a.logger().Debug("request failed", "provider", a.Name, "path", call.Path, "attempt", attempt+1, "err", err)
			continue
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
		resp.Body.Close()
		if err != nil {
			lastErr = NetworkError(a.Name, fmt.Errorf("reading body: %w", err))
			continue
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			wait := retryAfter(resp.Header, a.retryDelay())
			lastErr = RateLimited(a.Name, wait, nil)
			if attempt > 0 || !fits(ctx, wait) {
				return nil, lastErr
			}
			a.logger().Debug("upstream rate limit", "provider", a.Name, "wait", wait)
			if err := a.sleep(ctx, wait); err != nil {
				return nil, lastErr
			}
			continue
		case resp.StatusCode == http.StatusNotFound:
			return nil, NotFound(a.Name, strings.Trim(call.Path, "/"))
		case resp.StatusCode >= 500:
			return nil, ServerError(a.Name, resp.StatusCode, nil)
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return nil, &ProviderError{Provider: a.Name, Code: media.CodeUnknown, Message: fmt.Sprintf("unauthorized (HTTP %d)", resp.StatusCode)}
		case resp.StatusCode < 200 || resp.StatusCode > 299:
			return nil, &ProviderError{Provider: a.Name, Code: media.CodeUnknown, Message: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, snippet(body))}
		}

		if len(bytes.TrimSpace(body)) == 0 {
			body = []byte("null")
		}
		if !json.Valid(body) {
			return nil, ServerError(a.Name, resp.StatusCode, errors.New("response is not JSON"))
		}
		out := &Response{Status: resp.StatusCode, Body: body}
		for _, h := range a.Keep {
			if v := resp.Header.Get(h); v != "" {
				if out.Header == nil {
					out.Header = make(map[string]string, len(a.Keep))
				}
				out.Header[http.CanonicalHeaderKey(h)] = v
			}
		}
		return out, nil
	}
	return nil, lastErr
}

func (a *API) acquire(ctx context.Context, auth bool) (bool, error) {
	if a.Governor == nil {
		return auth, ctx.Err()
	}
	used, err := a.Governor.Acquire(ctx, a.Name, auth, !auth && a.CanAuth)
	if err != nil {
		var we *ratelimit.WaitError
		if errors.As(err, &we) {
			return used, RateLimited(a.Name, we.Wait, err)
		}
		return used, NetworkError(a.Name, err)
	}
	return used, nil
}

func (a *API) request(ctx context.Context, call Call, auth bool) (*http.Request, error) {
	method := call.Method
	if method == "" {
		method = http.MethodGet
	}
	u := strings.TrimRight(a.BaseURL, "/") + "/" + strings.TrimLeft(call.Path, "/")
	if len(call.Query) > 0 {
		u += "?" + call.Query.Encode()
	}
	var body io.Reader
	if call.Body != nil {
		data, err := json.Marshal(call.Body)
		if err != nil {
			return nil, fmt.Errorf("encoding %s body: %w", call.Path, err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "gaiasource/1.0")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if a.Sign != nil {
		a.Sign(req, auth)
	}
	return req, nil
}

func (a *API) client() *http.Client {
	if a.HTTP != nil {
		return a.HTTP
	}
	return http.DefaultClient
}

func (a *API) retryDelay() time.Duration {
	if a.RetryDelay > 0 {
		return a.RetryDelay
	}
	return defaultRetryDelay
}

func (a *API) sleep(ctx context.Context, d time.Duration) error {
	if a.Sleep != nil {
		return a.Sleep(ctx, d)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// retryAfter reads a Retry-After header in seconds or HTTP-date form.
func retryAfter(h http.Header, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(h.Get("Retry-After"))
	if v == "" {
		return fallback
	}
	if n, err := strconv.Atoi(v); err == nil && n >= 0 {
		return time.Duration(n) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
		return 0
	}
	return fallback
}

// fits reports whether waiting d leaves the context deadline intact.
func fits(ctx context.Context, d time.Duration) bool {
	deadline, ok := ctx.Deadline()
	return !ok || time.Now().Add(d).Before(deadline)
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
