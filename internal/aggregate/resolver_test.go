package aggregate

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/gaiakodi/gaiasource/internal/cache"
	"github.com/gaiakodi/gaiasource/internal/media"
	"github.com/gaiakodi/gaiasource/internal/provider"
	"github.com/gaiakodi/gaiasource/internal/provider/providertest"
)

var resolveOps = []media.Kind{media.KindResolve, media.KindSearch}

// shawshank answers id lookups the way Trakt and TMDb do for the film.
func shawshank(t *testing.T) (*providertest.Fake, *providertest.Fake) {
	t.Helper()
	trakt := providertest.New("trakt", resolveOps, media.Movie, media.Show)
	trakt.ResolveFunc = func(_ context.Context, ids media.IDs, m media.Media) ([]media.Record, error) {
		if ids.Get("imdb") == "tt0111161" || ids.Get("tmdb") == "278" {
			return []media.Record{{Media: m, IDs: media.IDs{"imdb": "tt0111161", "tmdb": "278", "trakt": "481", "slug": "the-shawshank-redemption-1994"}}}, nil
		}
		return nil, provider.NotFound("trakt", ids.String())
	}
	tmdb := providertest.New("tmdb", resolveOps, media.Movie, media.Show, media.Set)
	tmdb.ResolveFunc = func(_ context.Context, ids media.IDs, m media.Media) ([]media.Record, error) {
		if ids.Get("tmdb") == "278" || ids.Get("imdb") == "tt0111161" {
			return []media.Record{{Media: m, IDs: media.IDs{"imdb": "tt0111161", "tmdb": "278"}}}, nil
		}
		return nil, provider.NotFound("tmdb", ids.String())
	}
	return trakt, tmdb
}

func newRegistry(t *testing.T, fakes ...*providertest.Fake) *provider.Registry {
	t.Helper()
	reg := provider.NewRegistry()
	if err := providertest.Register(reg, fakes...); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	return reg
}

func TestResolveMovieByImdb(t *testing.T) {
	t.Parallel()
	trakt, tmdb := shawshank(t)
	c := cache.New(cache.NewMemoryStore(""))
	r := NewResolver(newRegistry(t, trakt, tmdb), WithResolverCache(c, cache.TTLWeek))

	want := media.IDs{"imdb": "tt0111161", "tmdb": "278", "trakt": "481", "slug": "the-shawshank-redemption-1994"}
	for i := 0; i < 2; i++ {
		got, err := r.Resolve(context.Background(), media.Request{Media: media.Movie, IDs: media.IDs{"imdb": "tt0111161"}})
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("Resolve() mismatch (-want +got):\n%s", diff)
		}
	}
	if diff := cmp.Diff([]int{1, 1}, []int{trakt.Calls(media.KindResolve), tmdb.Calls(media.KindResolve)}); diff != "" {
		t.Errorf("round trips mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveIsTransitive(t *testing.T) {
	t.Parallel()
	trakt, tmdb := shawshank(t)
	r := NewResolver(newRegistry(t, trakt, tmdb))

	fromImdb, err := r.Resolve(context.Background(), media.Request{Media: media.Movie, IDs: media.IDs{"imdb": "tt0111161"}})
	if err != nil {
		t.Fatalf("Resolve(imdb) error = %v", err)
	}
	fromTmdb, err := r.Resolve(context.Background(), media.Request{Media: media.Movie, IDs: media.IDs{"tmdb": fromImdb.Get("tmdb")}})
	if err != nil {
		t.Fatalf("Resolve(tmdb) error = %v", err)
	}
	if fromTmdb.Get("imdb") != "tt0111161" {
		t.Errorf("imdb round trip = %q, want tt0111161", fromTmdb.Get("imdb"))
	}
}

func TestResolveNormalizesImdb(t *testing.T) {
	t.Parallel()
	trakt, tmdb := shawshank(t)
	r := NewResolver(newRegistry(t, trakt, tmdb))
	got, err := r.Resolve(context.Background(), media.Request{Media: media.Movie, IDs: media.IDs{"imdb": "ttt0111161"}})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got.Get("tmdb") != "278" {
		t.Errorf("tmdb = %q, want 278", got.Get("tmdb"))
	}
}

func TestResolveAuthorityBreaksConflicts(t *testing.T) {
	t.Parallel()
	tvdb := providertest.New("tvdb", resolveOps, media.Show)
	tvdb.ResolveFunc = func(_ context.Context, ids media.IDs, m media.Media) ([]media.Record, error) {
		return []media.Record{{Media: m, IDs: media.IDs{"tvdb": "81189", "imdb": "tt0000001", "tmdb": "1396"}}}, nil
	}
	trakt := providertest.New("trakt", resolveOps, media.Show)
	trakt.ResolveFunc = func(_ context.Context, ids media.IDs, m media.Media) ([]media.Record, error) {
		return []media.Record{{Media: m, IDs: media.IDs{"tvdb": "81189", "imdb": "tt0903747", "tmdb": "1396", "trakt": "1388"}}}, nil
	}
	tmdb := providertest.New("tmdb", resolveOps, media.Show)
	tmdb.ResolveFunc = func(_ context.Context, ids media.IDs, m media.Media) ([]media.Record, error) {
		return []media.Record{{Media: m, IDs: media.IDs{"tvdb": "81189", "imdb": "tt0903747", "tmdb": "1396"}}}, nil
	}
	r := NewResolver(newRegistry(t, tvdb, trakt, tmdb))

	got, err := r.Resolve(context.Background(), media.Request{Media: media.Episode, IDs: media.IDs{"tvdb": "81189"}})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	want := media.IDs{"tvdb": "81189", "imdb": "tt0903747", "tmdb": "1396", "trakt": "1388"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Resolve() mismatch (-want +got):\n%s", diff)
	}
	if n := tmdb.Calls(media.KindResolve); n != 1 {
		t.Errorf("tmdb calls = %d, want 1 to confirm its own id", n)
	}
}

func TestResolveNotFoundIsCached(t *testing.T) {
	t.Parallel()
	trakt, tmdb := shawshank(t)
	c := cache.New(cache.NewMemoryStore(""))
	r := NewResolver(newRegistry(t, trakt, tmdb), WithResolverCache(c, cache.TTLWeek))

	for i := 0; i < 2; i++ {
		_, err := r.Resolve(context.Background(), media.Request{Media: media.Movie, IDs: media.IDs{"imdb": "tt0000000"}})
		if provider.CodeOf(err) != media.CodeNotFound {
			t.Fatalf("Resolve() error = %v, want not found", err)
		}
	}
	if n := trakt.Calls(media.KindResolve); n != 1 {
		t.Errorf("trakt calls = %d, want 1", n)
	}
}

func TestResolveTransientFailureIsNotCached(t *testing.T) {
	t.Parallel()
	trakt := providertest.New("trakt", resolveOps, media.Movie)
	trakt.ResolveFunc = func(context.Context, media.IDs, media.Media) ([]media.Record, error) {
		return nil, provider.ServerError("trakt", 502, nil)
	}
	c := cache.New(cache.NewMemoryStore(""))
	r := NewResolver(newRegistry(t, trakt), WithResolverCache(c, cache.TTLWeek))

	for i := 0; i < 2; i++ {
		_, err := r.Resolve(context.Background(), media.Request{Media: media.Movie, IDs: media.IDs{"imdb": "tt0111161"}})
		if provider.CodeOf(err) != media.CodeServer {
			t.Fatalf("Resolve() error = %v, want server", err)
		}
	}
	if n := trakt.Calls(media.KindResolve); n != 2 {
		t.Errorf("trakt calls = %d, want 2", n)
	}
}

func TestResolvePartialTupleIsNotCached(t *testing.T) {
	t.Parallel()
	trakt, tmdb := shawshank(t)
	healthy := trakt.ResolveFunc
	var calls int
	trakt.ResolveFunc = func(ctx context.Context, ids media.IDs, m media.Media) ([]media.Record, error) {
		calls++
		if calls == 1 {
			return nil, provider.NetworkError("trakt", errors.New("connection reset"))
		}
		return healthy(ctx, ids, m)
	}
	c := cache.New(cache.NewMemoryStore(""))
	r := NewResolver(newRegistry(t, trakt, tmdb), WithResolverCache(c, cache.TTLWeek))
	req := media.Request{Media: media.Movie, IDs: media.IDs{"imdb": "tt0111161"}}

	first, complete, err := r.Lookup(context.Background(), req)
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if complete {
		t.Errorf("Lookup() complete = true after a network failure")
	}
	if diff := cmp.Diff(media.IDs{"imdb": "tt0111161", "tmdb": "278"}, first); diff != "" {
		t.Errorf("partial ids mismatch (-want +got):\n%s", diff)
	}

	second, complete, err := r.Lookup(context.Background(), req)
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if !complete || second.Get("trakt") != "481" {
		t.Errorf("Lookup() = %v, complete %v, want the trakt id once trakt recovers", second, complete)
	}
	if n := trakt.Calls(media.KindResolve); n != 2 {
		t.Errorf("trakt calls = %d, want 2", n)
	}
}

func TestResolveByTitleWithDeviation(t *testing.T) {
	t.Parallel()
	trakt, tmdb := shawshank(t)
	trakt.SearchFunc = func(_ context.Context, req media.Request) (*media.PageResult, error) {
		if req.Year != 0 {
			return &media.PageResult{}, nil
		}
		return &media.PageResult{Items: []media.Record{
			{Media: media.Movie, IDs: media.IDs{"trakt": "1"}, Title: "Shawshank Redemption: The Documentary", Year: 2001},
			{Media: media.Movie, IDs: media.IDs{"trakt": "481", "imdb": "tt0111161"}, Title: "The Shawshank Redemption", Year: 1994},
		}}, nil
	}
	r := NewResolver(newRegistry(t, trakt, tmdb))

	if _, err := r.Resolve(context.Background(), media.Request{Media: media.Movie, Title: "The Shawshank Redemption", Year: 1995}); provider.CodeOf(err) != media.CodeNotFound {
		t.Fatalf("without deviation error = %v, want not found", err)
	}
	got, err := r.Resolve(context.Background(), media.Request{Media: media.Movie, Title: "The Shawshank Redemption", Year: 1995, Deviation: true})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got.Get("tmdb") != "278" || got.Get("trakt") != "481" {
		t.Errorf("Resolve() = %v, want tmdb 278 and trakt 481", got)
	}
}

func TestResolveSetByName(t *testing.T) {
	t.Parallel()
	tmdb := providertest.New("tmdb", []media.Kind{media.KindSearch}, media.Set)
	tmdb.SearchFunc = func(_ context.Context, req media.Request) (*media.PageResult, error) {
		return &media.PageResult{Items: []media.Record{
			{Media: media.Set, IDs: media.IDs{"tmdb": "1241"}, Title: "Harry Potter Collection"},
		}}, nil
	}
	r := NewResolver(newRegistry(t, tmdb))

	got, err := r.Resolve(context.Background(), media.Request{Media: media.Set, Title: "harry potter collection"})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got.Get("tmdb") != "1241" {
		t.Errorf("tmdb = %q, want 1241", got.Get("tmdb"))
	}
	if _, err := r.Resolve(context.Background(), media.Request{Media: media.Set, Title: "Fantastic Beasts"}); provider.CodeOf(err) != media.CodeNotFound {
		t.Errorf("unmatched set error = %v, want not found", err)
	}
}
