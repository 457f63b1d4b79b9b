package provider

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/gaiakodi/gaiasource/internal/cache"
	"github.com/gaiakodi/gaiasource/internal/media"
	"github.com/gaiakodi/gaiasource/internal/ratelimit"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": {"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func newTestAPI(srv *httptest.Server) *API {
	return &API{
		Name:    "test",
		BaseURL: srv.URL,
		HTTP:    srv.Client(),
		Cache:   cache.New(cache.NewMemoryStore("")),
		Sleep:   func(context.Context, time.Duration) error { return nil },
	}
}

func TestAPIGetCachesResponses(t *testing.T) {
	t.Parallel()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path != "/movie/603" || r.URL.Query().Get("language") != "en-US" {
			t.Errorf("unexpected request %s", r.URL)
		}
		w.Header().Set("X-Pagination-Page-Count", "4")
		io.WriteString(w, `{"title":"The Matrix"}`)
	}))
	defer srv.Close()
	api := newTestAPI(srv)
	api.Keep = []string{"X-Pagination-Page-Count"}

	call := Call{Path: "movie/603", Query: url.Values{"language": {"en-US"}}, TTL: time.Hour}
	for i := 0; i < 2; i++ {
		var out struct{ Title string }
		resp, err := api.Get(context.Background(), call, &out)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if out.Title != "The Matrix" {
			t.Errorf("title = %q", out.Title)
		}
		if got := resp.HeaderInt("x-pagination-page-count"); got != 4 {
			t.Errorf("page count header = %d, want 4", got)
		}
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("server hit %d times, want 1", got)
	}
}

func TestAPIRetriesOnceAfter429(t *testing.T) {
	t.Parallel()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.Header().Set("Retry-After", "2")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		io.WriteString(w, `[]`)
	}))
	defer srv.Close()
	api := newTestAPI(srv)
	var slept []time.Duration
	api.Sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	if _, err := api.Do(context.Background(), Call{Path: "trending"}); err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if diff := cmp.Diff([]time.Duration{2 * time.Second}, slept); diff != "" {
		t.Errorf("sleeps mismatch (-want +got):\n%s", diff)
	}
}

func TestAPISecond429IsRateLimited(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "3")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()
	api := newTestAPI(srv)

	_, err := api.Do(context.Background(), Call{Path: "trending", TTL: time.Hour})
	if CodeOf(err) != media.CodeRateLimited {
		t.Fatalf("CodeOf(%v) = %s, want rate-limited", err, CodeOf(err))
	}
	if got := RetryAfterOf(err); got != 3*time.Second {
		t.Errorf("RetryAfterOf() = %v, want 3s", got)
	}
}

func TestAPINotFoundIsCachedNegative(t *testing.T) {
	t.Parallel()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()
	api := newTestAPI(srv)

	call := Call{Path: "movie/0", TTL: time.Hour}
	for i := 0; i < 2; i++ {
		if _, err := api.Do(context.Background(), call); CodeOf(err) != media.CodeNotFound {
			t.Fatalf("call %d: CodeOf(%v) = %s, want not-found", i, err, CodeOf(err))
		}
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("server hit %d times, want 1", got)
	}
}

func TestAPIServerErrorsAreNotCached(t *testing.T) {
	t.Parallel()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()
	api := newTestAPI(srv)

	call := Call{Path: "show/1", TTL: time.Hour}
	for i := 0; i < 2; i++ {
		if _, err := api.Do(context.Background(), call); CodeOf(err) != media.CodeServer {
			t.Fatalf("CodeOf(%v) = %s, want server", err, CodeOf(err))
		}
	}
	if got := hits.Load(); got != 2 {
		t.Errorf("server hit %d times, want 2", got)
	}
}

func TestAPIInvalidJSONIsServerError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "<html>maintenance</html>")
	}))
	defer srv.Close()
	_, err := newTestAPI(srv).Do(context.Background(), Call{Path: "x"})
	if CodeOf(err) != media.CodeServer {
		t.Errorf("CodeOf(%v) = %s, want server", err, CodeOf(err))
	}
}

func TestAPIUndecodableBodyIsNotCached(t *testing.T) {
	t.Parallel()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		io.WriteString(w, `{"title":5}`)
	}))
	defer srv.Close()
	api := newTestAPI(srv)

	call := Call{Path: "movie/1", TTL: time.Hour}
	for i := 0; i < 2; i++ {
		var out struct{ Title string }
		if _, err := api.Get(context.Background(), call, &out); CodeOf(err) != media.CodeServer {
			t.Fatalf("CodeOf(%v) = %s, want server", err, CodeOf(err))
		}
	}
	if got := hits.Load(); got != 2 {
		t.Errorf("server hit %d times, want 2", got)
	}
}

func TestAPINetworkRetry(t *testing.T) {
	t.Parallel()
	tests := map[string]struct {
		failures int
		wantCode media.ErrorCode
		wantHits int32
	}{
		"recovers on retry": {failures: 1, wantHits: 2},
		"fails twice":       {failures: 2, wantCode: media.CodeNetwork, wantHits: 2},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			var hits atomic.Int32
			api := &API{
				Name:    "test",
				BaseURL: "https://example.test/3",
				Cache:   cache.New(cache.NewMemoryStore("")),
				HTTP: &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
					if int(hits.Add(1)) <= tc.failures {
						return nil, errors.New("connection reset")
					}
					return jsonResponse(http.StatusOK, `{"ok":true}`), nil
				})},
			}
			_, err := api.Do(context.Background(), Call{Path: "genre/movie/list", TTL: time.Hour})
			if got := CodeOf(err); got != tc.wantCode {
				t.Errorf("CodeOf(%v) = %q, want %q", err, got, tc.wantCode)
			}
			if got := hits.Load(); got != tc.wantHits {
				t.Errorf("transport hit %d times, want %d", got, tc.wantHits)
			}
		})
	}
}

func TestAPIGovernorDeadline(t *testing.T) {
	t.Parallel()
	var hits atomic.Int32
	api := &API{
		Name:     "test",
		BaseURL:  "https://example.test",
		Governor: ratelimit.New(map[string]ratelimit.Budget{"test": {Limit: 1, Window: time.Hour}}),
		HTTP: &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			hits.Add(1)
			return jsonResponse(http.StatusOK, `{}`), nil
		})},
	}
	if _, err := api.Do(context.Background(), Call{Path: "a"}); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := api.Do(ctx, Call{Path: "b"})
	if CodeOf(err) != media.CodeRateLimited {
		t.Fatalf("CodeOf(%v) = %s, want rate-limited", err, CodeOf(err))
	}
	if RetryAfterOf(err) <= 0 {
		t.Error("rate limited error should carry a retry hint")
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("transport hit %d times, want 1", got)
	}
}

func TestAPISignAndKey(t *testing.T) {
	t.Parallel()
	var gotAuth string
	api := &API{
		Name:    "trakt",
		BaseURL: "https://api.example.test/",
		Sign: func(req *http.Request, auth bool) {
			req.Header.Set("trakt-api-key", "client")
			if auth {
				req.Header.Set("Authorization", "Bearer token")
			}
		},
		HTTP: &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			gotAuth = req.Header.Get("Authorization")
			if req.URL.String() != "https://api.example.test/users/me/watchlist?page=2" {
				t.Errorf("url = %s", req.URL)
			}
			return jsonResponse(http.StatusOK, `[]`), nil
		})},
	}
	if _, err := api.Do(context.Background(), Call{Path: "/users/me/watchlist", Query: url.Values{"page": {"2"}}, Auth: true}); err != nil {
		t.Fatal(err)
	}
	if gotAuth != "Bearer token" {
		t.Errorf("Authorization = %q", gotAuth)
	}

	a := api.Key(Call{Path: "search/movie", Query: url.Values{"query": {"x"}, "page": {"1"}}})
	b := api.Key(Call{Path: "/search/movie/", Query: url.Values{"page": {"1"}, "query": {"x"}}})
	if a != b {
		t.Errorf("keys differ: %s vs %s", a, b)
	}
	if !strings.HasPrefix(a, "trakt:search/movie:") {
		t.Errorf("key %q lacks provider prefix", a)
	}
}

func TestRetryAfter(t *testing.T) {
	t.Parallel()
	tests := map[string]struct {
		header string
		want   time.Duration
	}{
		"seconds": {header: "7", want: 7 * time.Second},
		"missing": {header: "", want: 10 * time.Second},
		"garbage": {header: "soon", want: 10 * time.Second},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			h := http.Header{}
			if tc.header != "" {
				h.Set("Retry-After", tc.header)
			}
			if got := retryAfter(h, 10*time.Second); got != tc.want {
				t.Errorf("retryAfter() = %v, want %v", got, tc.want)
			}
		})
	}
}
