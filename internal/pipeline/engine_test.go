package pipeline

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/gaiakodi/gaiasource/internal/aggregate"
	"github.com/gaiakodi/gaiasource/internal/cache"
	journal "github.com/gaiakodi/gaiasource/internal/log"
	"github.com/gaiakodi/gaiasource/internal/media"
	"github.com/gaiakodi/gaiasource/internal/provider"
	"github.com/gaiakodi/gaiasource/internal/provider/providertest"
)

var now = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func newEngine(t *testing.T, cfg Config, fakes ...*providertest.Fake) *Engine {
	t.Helper()
	reg := provider.NewRegistry()
	if err := providertest.Register(reg, fakes...); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	clock := func() time.Time { return now }
	cfg.Aggregator = aggregate.New(reg, aggregate.Options{Now: clock, Workers: 4, Resolver: aggregate.NewResolver(reg)})
	cfg.Logger = journal.Discard()
	cfg.Now = clock
	return New(cfg)
}

func pageOf(items ...media.Record) *media.PageResult {
	return &media.PageResult{Items: items, Page: 1, Complete: true}
}

func searchers() (*providertest.Fake, *providertest.Fake) {
	tmdb := providertest.New("tmdb", []media.Kind{media.KindSearch}, media.Movie)
	tmdb.SearchFunc = func(context.Context, media.Request) (*media.PageResult, error) {
		return pageOf(
			media.Record{Media: media.Movie, IDs: media.IDs{"tmdb": "1"}, Title: "Alpha", Rank: 1},
			media.Record{Media: media.Movie, IDs: media.IDs{"tmdb": "2"}, Title: "Bravo", Rank: 2},
		), nil
	}
	trakt := providertest.New("trakt", []media.Kind{media.KindSearch}, media.Movie)
	trakt.SearchFunc = func(context.Context, media.Request) (*media.PageResult, error) {
		return pageOf(
			media.Record{Media: media.Movie, IDs: media.IDs{"tmdb": "2", "trakt": "20"}, Title: "Bravo", Rank: 1},
			media.Record{Media: media.Movie, IDs: media.IDs{"trakt": "30"}, Title: "Charlie", Rank: 2},
		), nil
	}
	return tmdb, trakt
}

func titles(p *media.PageResult) []string {
	var out []string
	for _, r := range p.Items {
		out = append(out, r.Title)
	}
	return out
}

func TestSearchMergesProviders(t *testing.T) {
	t.Parallel()
	tmdb, trakt := searchers()
	e := newEngine(t, Config{}, tmdb, trakt)

	got, err := e.Search(context.Background(), media.Request{Media: media.Movie, Query: "alpha"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if diff := cmp.Diff([]string{"Alpha", "Bravo", "Charlie"}, titles(got)); diff != "" {
		t.Errorf("titles mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(media.Counts{Limit: 20, Initial: 3, Filtered: 3, Structured: 3, Final: 3}, got.Count); diff != "" {
		t.Errorf("Count mismatch (-want +got):\n%s", diff)
	}
	if !got.Complete || got.More {
		t.Errorf("complete/more = %v/%v, want true/false", got.Complete, got.More)
	}
	if got.Items[1].IDs.Get("trakt") != "20" {
		t.Errorf("merged ids = %v", got.Items[1].IDs)
	}
}

func TestPageCacheIsIdempotent(t *testing.T) {
	t.Parallel()
	tmdb, trakt := searchers()
	e := newEngine(t, Config{Cache: cache.New(cache.NewMemoryStore("")), PageTTL: cache.TTLShort}, tmdb, trakt)
	req := media.Request{Kind: media.KindSearch, Media: media.Movie, Query: "alpha"}

	first := e.Run(context.Background(), req)
	second := e.Run(context.Background(), req)
	if !first.OK() {
		t.Fatalf("Run() failed: %+v", first.Error)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("second run differs (-first +second):\n%s", diff)
	}
	if got := tmdb.Calls(media.KindSearch); got != 1 {
		t.Errorf("tmdb search calls = %d, want 1", got)
	}
}

func TestPartialFailureIsIncompleteAndNotCached(t *testing.T) {
	t.Parallel()
	tmdb, trakt := searchers()
	trakt.SearchFunc = func(context.Context, media.Request) (*media.PageResult, error) {
		return nil, provider.ServerError("trakt", 503, nil)
	}
	e := newEngine(t, Config{Cache: cache.New(cache.NewMemoryStore("")), PageTTL: cache.TTLShort}, tmdb, trakt)

	for i := 0; i < 2; i++ {
		got, err := e.Search(context.Background(), media.Request{Media: media.Movie, Query: "alpha"})
		if err != nil {
			t.Fatalf("Search() error = %v", err)
		}
		if got.Complete {
			t.Error("Complete = true, want false")
		}
		if diff := cmp.Diff([]string{"Alpha", "Bravo"}, titles(got)); diff != "" {
			t.Errorf("titles mismatch (-want +got):\n%s", diff)
		}
	}
	if got := tmdb.Calls(media.KindSearch); got != 2 {
		t.Errorf("tmdb search calls = %d, want 2", got)
	}
	failures := e.Failures()
	if len(failures) != 2 || failures[0].Provider != "trakt" || failures[0].Kind != media.KindSearch {
		t.Errorf("Failures() = %+v", failures)
	}
	if s := e.Summary(); s.Operations != 2 || s.Incomplete != 2 || s.Active != 0 {
		t.Errorf("Summary() = %+v", s)
	}
}

func TestAllProvidersFailing(t *testing.T) {
	t.Parallel()
	tmdb, trakt := searchers()
	tmdb.SearchFunc = func(context.Context, media.Request) (*media.PageResult, error) {
		return nil, provider.RateLimited("tmdb", 3*time.Second, nil)
	}
	trakt.SearchFunc = func(context.Context, media.Request) (*media.PageResult, error) {
		return nil, provider.RateLimited("trakt", 2*time.Second, nil)
	}
	e := newEngine(t, Config{Cache: cache.New(cache.NewMemoryStore("")), PageTTL: cache.TTLShort}, tmdb, trakt)
	req := media.Request{Kind: media.KindSearch, Media: media.Movie, Query: "alpha"}

	for i := 0; i < 2; i++ {
		res := e.Run(context.Background(), req)
		if res.OK() || res.Page != nil {
			t.Fatalf("Run() = %+v, want a failure", res)
		}
		if res.Error.Code != media.CodeRateLimited || res.Error.RetryAfter != 3 {
			t.Errorf("Error = %+v, want rate-limited with a 3s hint", res.Error)
		}
	}
	if got := tmdb.Calls(media.KindSearch); got != 2 {
		t.Errorf("tmdb search calls = %d, want 2 after a failed key is cleared", got)
	}
}

func TestDiscoverFallsBackToSearch(t *testing.T) {
	t.Parallel()
	tmdb := providertest.New("tmdb", []media.Kind{media.KindDiscover, media.KindSearch}, media.Movie, media.Set)
	tmdb.Caps.Sorts = []media.Sort{media.SortPopular}
	var seen media.Request
	tmdb.SearchFunc = func(_ context.Context, req media.Request) (*media.PageResult, error) {
		seen = req
		return pageOf(media.Record{Media: media.Movie, IDs: media.IDs{"tmdb": "1"}, Title: "Heat", Rating: 8.3, Rank: 1}), nil
	}
	tmdb.DiscoverFunc = func(context.Context, media.Request) (*media.PageResult, error) {
		return pageOf(), nil
	}
	e := newEngine(t, Config{}, tmdb)

	tests := map[string]struct {
		req        media.Request
		wantSearch int
		wantSort   media.Sort
	}{
		"unsupported sort with query": {req: media.Request{Media: media.Movie, Query: "heat", Sort: media.SortRating}, wantSearch: 1},
		"supported sort with query":   {req: media.Request{Media: media.Movie, Query: "heat", Sort: media.SortPopular}},
		"sets always search":          {req: media.Request{Media: media.Set, Query: "heat"}, wantSearch: 1, wantSort: media.SortPopular},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			before := tmdb.Calls(media.KindSearch)
			if _, err := e.Discover(context.Background(), tc.req); err != nil {
				t.Fatalf("Discover() error = %v", err)
			}
			if got := tmdb.Calls(media.KindSearch) - before; got != tc.wantSearch {
				t.Errorf("search calls = %d, want %d", got, tc.wantSearch)
			}
			if tc.wantSearch > 0 && (seen.Kind != media.KindSearch || seen.Sort != tc.wantSort) {
				t.Errorf("fallback request = kind %q sort %q, want search sorted by %q", seen.Kind, seen.Sort, tc.wantSort)
			}
		})
	}
}

func TestDiscoverExpandsNiche(t *testing.T) {
	t.Parallel()
	tmdb := providertest.New("tmdb", []media.Kind{media.KindDiscover}, media.Show)
	var seen media.Request
	tmdb.DiscoverFunc = func(_ context.Context, req media.Request) (*media.PageResult, error) {
		seen = req
		return pageOf(
			media.Record{Media: media.Show, IDs: media.IDs{"tmdb": "1"}, Title: "Frieren", Genres: []string{"animation"}, Rating: 9.0, Votes: 2000, Rank: 1},
			media.Record{Media: media.Show, IDs: media.IDs{"tmdb": "2"}, Title: "Filler", Genres: []string{"animation"}, Rating: 7.0, Votes: 2000, Rank: 2},
		), nil
	}
	e := newEngine(t, Config{}, tmdb)

	got, err := e.Discover(context.Background(), media.Request{Media: media.Show, Niche: []string{"best", "anime"}, Limit: 50})
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if seen.Filters.Genre == nil || !slices.Contains(seen.Filters.Genre.Include, media.GenreAnimation) {
		t.Errorf("genre filter = %+v, want animation included", seen.Filters.Genre)
	}
	if seen.Filters.Rating == nil || *seen.Filters.Rating.Min != 8.0 {
		t.Errorf("rating floor = %+v, want 8.0", seen.Filters.Rating)
	}
	if seen.Filters.Votes == nil || *seen.Filters.Votes.Min != 1000 {
		t.Errorf("votes floor = %+v, want 1000", seen.Filters.Votes)
	}
	if seen.Sort != media.SortPopular {
		t.Errorf("sort = %q, want popular", seen.Sort)
	}
	if diff := cmp.Diff([]string{"Frieren"}, titles(got)); diff != "" {
		t.Errorf("titles mismatch (-want +got):\n%s", diff)
	}
	if !got.More {
		t.Error("More = false, want true after filtering left the page short")
	}
}

func TestFinish(t *testing.T) {
	t.Parallel()
	e := New(Config{Interleave: media.InterleaveNearest})
	day := func(d int) time.Time { return time.Date(2023, 1, d, 0, 0, 0, 0, time.UTC) }
	eps := []media.Record{
		{Media: media.Episode, IDs: media.IDs{"tvdb": "1"}, Season: 1, Episode: 1, Title: "One", Aired: day(1), Rank: 1},
		{Media: media.Episode, IDs: media.IDs{"tvdb": "2"}, Season: 1, Episode: 2, Title: "Two", Aired: day(8), Rank: 2},
		{Media: media.Episode, IDs: media.IDs{"tvdb": "3"}, Season: 1, Episode: 3, Title: "Three", Aired: day(15), Rank: 3},
		{Media: media.Episode, IDs: media.IDs{"tvdb": "9"}, Season: 0, Episode: 1, Title: "Special", Aired: day(9), Rank: 4},
	}

	got := e.finish(media.Request{Media: media.Episode, Page: 1, Dedup: media.KeepMerge}, eps, 3, false, false)
	if diff := cmp.Diff([]string{"One", "Two", "Special"}, titles(got)); diff != "" {
		t.Errorf("titles mismatch (-want +got):\n%s", diff)
	}
	if !got.More || got.Count.Final != 3 || got.Count.Structured != 4 {
		t.Errorf("more/count = %v/%+v", got.More, got.Count)
	}
}

func TestRunRejectsInvalidRequests(t *testing.T) {
	t.Parallel()
	tmdb, trakt := searchers()
	e := newEngine(t, Config{}, tmdb, trakt)

	tests := map[string]media.Request{
		"search without query": {Kind: media.KindSearch, Media: media.Movie},
		"unknown operation":    {Kind: "teleport", Media: media.Movie},
		"unknown rating tier":  {Kind: media.KindDiscover, Media: media.Movie, Filters: media.Filters{RatingTier: "legendary"}},
	}
	for name, req := range tests {
		t.Run(name, func(t *testing.T) {
			res := e.Run(context.Background(), req)
			if res.OK() {
				t.Fatalf("Run() succeeded, want a failure")
			}
			if res.Error.Code != media.CodeUnknown || !strings.Contains(res.Error.Message, "invalid request") {
				t.Errorf("Error = %+v", res.Error)
			}
		})
	}
	if got := tmdb.Calls(media.KindSearch); got != 0 {
		t.Errorf("search calls = %d, want 0", got)
	}
}

func TestRunWithoutProviders(t *testing.T) {
	t.Parallel()
	e := newEngine(t, Config{})
	res := e.Run(context.Background(), media.Request{Kind: media.KindRecommend, Media: media.Movie})
	if res.OK() || res.Error.Code != media.CodeUnknown {
		t.Errorf("Run() = %+v, want an unknown failure", res)
	}
}

func TestMetadataAttachesPack(t *testing.T) {
	t.Parallel()
	tvdb := providertest.New("tvdb", []media.Kind{media.KindMetadata, media.KindPack}, media.Show)
	tvdb.MetadataFunc = func(context.Context, media.Request) (*media.Record, error) {
		return &media.Record{Media: media.Show, IDs: media.IDs{"tvdb": "81189"}, Title: "Breaking Bad", Complete: true}, nil
	}
	tvdb.PackFunc = func(context.Context, media.IDs, []int) (*provider.Listing, error) {
		return &provider.Listing{
			Provider: "tvdb",
			Complete: true,
			Episodes: []media.Record{
				{Media: media.Episode, Season: 1, Episode: 1, Title: "Pilot"},
				{Media: media.Episode, Season: 1, Episode: 2, Title: "Cat's in the Bag..."},
				{Media: media.Episode, Season: 0, Episode: 1, Title: "Good Cop Bad Cop"},
			},
		}, nil
	}
	e := newEngine(t, Config{}, tvdb)

	rec, err := e.Metadata(context.Background(), media.Request{Media: media.Show, IDs: media.IDs{"tvdb": "81189"}, What: []media.Facet{media.FacetPack, media.FacetSummary}})
	if err != nil {
		t.Fatalf("Metadata() error = %v", err)
	}
	if rec.Pack == nil {
		t.Fatal("Pack = nil, want the show pack")
	}
	if rec.Pack.Count.Episode.Main != 2 || rec.Pack.Count.Special != 1 {
		t.Errorf("pack count = %+v", rec.Pack.Count)
	}
	if !rec.Complete {
		t.Error("Complete = false, want true")
	}
}

func TestResolve(t *testing.T) {
	t.Parallel()
	trakt := providertest.New("trakt", []media.Kind{media.KindResolve}, media.Movie)
	trakt.ResolveFunc = func(_ context.Context, ids media.IDs, m media.Media) ([]media.Record, error) {
		return []media.Record{{Media: m, IDs: media.IDs{"imdb": "tt0111161", "tmdb": "278", "trakt": "481"}}}, nil
	}
	j := journal.NewJournal(t.TempDir(), true)
	j.Start("resolve", nil)
	e := newEngine(t, Config{Journal: j}, trakt)

	res := e.Run(context.Background(), media.Request{Kind: media.KindResolve, Media: media.Movie, IDs: media.IDs{"imdb": "tt0111161"}})
	if !res.OK() {
		t.Fatalf("Run() failed: %+v", res.Error)
	}
	if res.IDs.Get("tmdb") != "278" || res.IDs.Get("trakt") != "481" {
		t.Errorf("IDs = %v", res.IDs)
	}

	ops := j.Session().Operations
	if len(ops) != 1 || ops[0].Kind != "resolve_id" || ops[0].RequestID == "" || !ops[0].Complete {
		t.Errorf("journal = %+v", ops)
	}
}

func TestFailureCodes(t *testing.T) {
	t.Parallel()
	tests := map[string]struct {
		err  error
		want media.ErrorCode
	}{
		"not found":   {err: provider.NotFound("tmdb", "movie"), want: media.CodeNotFound},
		"server":      {err: provider.ServerError("trakt", 500, nil), want: media.CodeServer},
		"unsupported": {err: provider.ErrUnsupported, want: media.CodeUnknown},
		"invalid":     {err: errors.Join(media.ErrInvalidRequest, errors.New("bad")), want: media.CodeUnknown},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			if got := failure(tc.err).Code; got != tc.want {
				t.Errorf("failure().Code = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestResultsLeaveWithoutExtras(t *testing.T) {
	t.Parallel()
	tmdb := providertest.New("tmdb", []media.Kind{media.KindSearch, media.KindMetadata}, media.Movie)
	tmdb.SearchFunc = func(context.Context, media.Request) (*media.PageResult, error) {
		r := media.Record{Media: media.Movie, IDs: media.IDs{"tmdb": "1"}, Title: "Alpha"}
		r.SetExtra("tmdb", "popularity", 12.5)
		return pageOf(r), nil
	}
	tmdb.MetadataFunc = func(context.Context, media.Request) (*media.Record, error) {
		r := media.Record{Media: media.Movie, IDs: media.IDs{"tmdb": "1"}, Title: "Alpha", Complete: true}
		r.SetExtra("tmdb", "popularity", 12.5)
		return &r, nil
	}
	e := newEngine(t, Config{}, tmdb)

	page, err := e.Search(context.Background(), media.Request{Media: media.Movie, Query: "alpha"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	for _, r := range page.Items {
		if r.Extras != nil {
			t.Errorf("Search() item %q extras = %v, want none", r.Title, r.Extras)
		}
	}

	rec, err := e.Metadata(context.Background(), media.Request{Media: media.Movie, IDs: media.IDs{"tmdb": "1"}})
	if err != nil {
		t.Fatalf("Metadata() error = %v", err)
	}
	if rec.Extras != nil {
		t.Errorf("Metadata() extras = %v, want none", rec.Extras)
	}
}

func TestWholeResultsArePaged(t *testing.T) {
	t.Parallel()
	trakt := providertest.New("trakt", []media.Kind{media.KindRelease}, media.Movie)
	trakt.ReleaseFunc = func(context.Context, media.Request) (*media.PageResult, error) {
		p := &media.PageResult{Page: 1, Complete: true, Whole: true}
		for i := 0; i < 25; i++ {
			p.Items = append(p.Items, media.Record{
				Media: media.Movie,
				IDs:   media.IDs{"trakt": strconv.Itoa(i)},
				Title: fmt.Sprintf("T%d", i),
				Rank:  i + 1,
			})
		}
		return p, nil
	}
	e := newEngine(t, Config{}, trakt)
	window := &media.Window{Start: now.AddDate(0, 0, -30), End: now}

	tests := map[string]struct {
		page      int
		wantFirst string
		wantLen   int
		wantMore  bool
	}{
		"first page":   {page: 1, wantFirst: "T0", wantLen: 10, wantMore: true},
		"second page":  {page: 2, wantFirst: "T10", wantLen: 10, wantMore: true},
		"last page":    {page: 3, wantFirst: "T20", wantLen: 5, wantMore: false},
		"past the end": {page: 4, wantLen: 0, wantMore: false},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			got, err := e.Release(context.Background(), media.Request{Media: media.Movie, Window: window, Page: tc.page, Limit: 10})
			if err != nil {
				t.Fatalf("Release() error = %v", err)
			}
			if len(got.Items) != tc.wantLen || got.More != tc.wantMore {
				t.Fatalf("Release() len/more = %d/%v, want %d/%v", len(got.Items), got.More, tc.wantLen, tc.wantMore)
			}
			if tc.wantLen > 0 && got.Items[0].Title != tc.wantFirst {
				t.Errorf("first item = %q, want %q", got.Items[0].Title, tc.wantFirst)
			}
		})
	}
}

func TestMovieSearchFallsBackToSets(t *testing.T) {
	t.Parallel()
	collection := media.Record{Media: media.Set, IDs: media.IDs{"tmdb": "1241"}, Title: "Harry Potter Collection", Rank: 1}
	stone := media.Record{Media: media.Movie, IDs: media.IDs{"tmdb": "671"}, Title: "Harry Potter and the Philosopher's Stone", Rank: 1}

	tests := map[string]struct {
		query     string
		movies    []media.Record
		want      []string
		wantCalls []media.Media
	}{
		"query names a collection": {
			query:     "Harry Potter Collection",
			want:      []string{"Harry Potter Collection"},
			wantCalls: []media.Media{media.Movie, media.Set},
		},
		"collection ahead of movies": {
			query:     "harry potter saga",
			movies:    []media.Record{stone},
			want:      []string{"Harry Potter Collection", "Harry Potter and the Philosopher's Stone"},
			wantCalls: []media.Media{media.Movie, media.Set},
		},
		"no movie hits": {
			query:     "Harry Potter",
			want:      []string{"Harry Potter Collection"},
			wantCalls: []media.Media{media.Movie, media.Set},
		},
		"movie hits only": {
			query:     "philosopher's stone",
			movies:    []media.Record{stone},
			want:      []string{"Harry Potter and the Philosopher's Stone"},
			wantCalls: []media.Media{media.Movie},
		},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			var mu sync.Mutex
			var calls []media.Media
			tmdb := providertest.New("tmdb", []media.Kind{media.KindSearch}, media.Movie, media.Set)
			tmdb.SearchFunc = func(_ context.Context, req media.Request) (*media.PageResult, error) {
				mu.Lock()
				calls = append(calls, req.Media)
				mu.Unlock()
				if req.Media == media.Set {
					return pageOf(collection), nil
				}
				return pageOf(tt.movies...), nil
			}
			e := newEngine(t, Config{}, tmdb)

			got, err := e.Search(context.Background(), media.Request{Media: media.Movie, Query: tt.query})
			if err != nil {
				t.Fatalf("Search() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, titles(got)); diff != "" {
				t.Errorf("titles mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantCalls, calls); diff != "" {
				t.Errorf("searched media mismatch (-want +got):\n%s", diff)
			}
			if got.Items[0].IDs.Get("tmdb") == "1241" && got.Items[0].Media != media.Set {
				t.Errorf("collection media = %q, want set", got.Items[0].Media)
			}
		})
	}
}
