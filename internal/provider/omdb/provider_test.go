package omdb

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/gaiakodi/gaiasource/internal/media"
	"github.com/gaiakodi/gaiasource/internal/provider"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func newTestClient(fn roundTripFunc) *http.Client {
	return &http.Client{Transport: fn}
}

func jsonResponse(status int, body string) *http.Response {
	resp := &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
	}
	resp.Header.Set("Content-Type", "application/json")
	return resp
}

// recorder keeps the query of every request it answers.
type recorder struct {
	mu      sync.Mutex
	queries []url.Values
}

func (r *recorder) add(q url.Values) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queries = append(r.queries, q)
}

func (r *recorder) with(key string) []url.Values {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []url.Values
	for _, q := range r.queries {
		if q.Get(key) != "" {
			out = append(out, q)
		}
	}
	return out
}

func newTestProvider(t *testing.T, fn roundTripFunc) *Provider {
	t.Helper()
	prov := New(provider.Deps{HTTP: newTestClient(fn)})
	if err := prov.Configure(map[string]interface{}{"api_key": "testing"}); err != nil {
		t.Fatalf("Configure() error = %v", err)
	}
	return prov
}

const interstellar = `{
	"Title": "Interstellar",
	"Year": "2014",
	"Rated": "PG-13",
	"Released": "07 Nov 2014",
	"Runtime": "169 min",
	"Genre": "Adventure, Drama, Sci-Fi",
	"Director": "Christopher Nolan",
	"Writer": "Jonathan Nolan, Christopher Nolan (screenplay)",
	"Actors": "Matthew McConaughey, Anne Hathaway, Jessica Chastain",
	"Plot": "A team of explorers travel through a wormhole in space in an attempt to ensure humanity's survival.",
	"Language": "English, Klingon",
	"Country": "United States, United Kingdom, Canada",
	"Awards": "Won 1 Oscar. 44 wins & 148 nominations total",
	"Ratings": [
		{"Source": "Internet Movie Database", "Value": "8.7/10"},
		{"Source": "Rotten Tomatoes", "Value": "73%"},
		{"Source": "Metacritic", "Value": "74/100"}
	],
	"Metascore": "74",
	"imdbRating": "8.7",
	"imdbVotes": "2,145,009",
	"imdbID": "tt0816692",
	"Type": "movie",
	"DVD": "N/A",
	"BoxOffice": "$188,020,017",
	"Production": "N/A",
	"Website": "N/A",
	"Response": "True"
}`

func TestConfigureRequiresAPIKey(t *testing.T) {
	t.Parallel()
	prov := New(provider.Deps{})
	if err := prov.Configure(map[string]interface{}{}); err == nil {
		t.Fatal("expected error when api_key is missing")
	}
	if err := prov.Configure(map[string]interface{}{"api_key": "   "}); err == nil {
		t.Fatal("expected error when api_key is blank")
	}
	if _, err := prov.Metadata(context.Background(), media.Request{Media: media.Movie, Title: "Interstellar"}); err == nil {
		t.Fatal("expected error from an unconfigured provider")
	}
}

func TestMetadata_MovieByTitle(t *testing.T) {
	t.Parallel()
	rec := &recorder{}
	prov := newTestProvider(t, func(req *http.Request) (*http.Response, error) {
		rec.add(req.URL.Query())
		return jsonResponse(200, interstellar), nil
	})

	got, err := prov.Metadata(context.Background(), media.Request{Media: media.Movie, Title: "Interstellar", Year: 2014})
	if err != nil {
		t.Fatalf("Metadata() error = %v", err)
	}

	details := rec.with("i")
	if len(details) == 0 {
		t.Fatal("expected a detail request by imdb id")
	}
	if diff := cmp.Diff([]string{"tt0816692", "testing", "full"}, []string{details[0].Get("i"), details[0].Get("apikey"), details[0].Get("plot")}); diff != "" {
		t.Errorf("detail query mismatch (-want +got):\n%s", diff)
	}

	if got.IDs.Get(media.IDImdb) != "tt0816692" {
		t.Errorf("imdb = %q, want tt0816692", got.IDs.Get(media.IDImdb))
	}
	if got.Title != "Interstellar" || got.Year != 2014 {
		t.Errorf("title/year = %q/%d, want Interstellar/2014", got.Title, got.Year)
	}
	if got.Duration != 169*60 {
		t.Errorf("Duration = %d, want %d", got.Duration, 169*60)
	}
	if got.Certificate != "PG-13" {
		t.Errorf("Certificate = %q, want PG-13", got.Certificate)
	}
	if diff := cmp.Diff([]string{"adventure", "drama", "science-fiction"}, got.Genres); diff != "" {
		t.Errorf("Genres mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Christopher Nolan"}, got.Director); diff != "" {
		t.Errorf("Director mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Jonathan Nolan", "Christopher Nolan"}, got.Writer); diff != "" {
		t.Errorf("Writer mismatch (-want +got):\n%s", diff)
	}
	if len(got.Cast) != 3 || got.Cast[0].Name != "Matthew McConaughey" || got.Cast[2].Order != 2 {
		t.Errorf("Cast = %+v", got.Cast)
	}
	if diff := cmp.Diff(map[string]media.Vote{"imdb": {Rating: 8.7, Votes: 2145009}}, got.Voting.Providers); diff != "" {
		t.Errorf("votes mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"en"}, got.Languages); diff != "" {
		t.Errorf("Languages mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"us", "gb", "ca"}, got.Countries); diff != "" {
		t.Errorf("Countries mismatch (-want +got):\n%s", diff)
	}
	if v, _ := got.Extra(providerName, "languages"); !cmp.Equal(v, []string{"Klingon"}) {
		t.Errorf("unknown languages extra = %v, want [Klingon]", v)
	}
	if v, _ := got.Extra(providerName, "rottentomatoes"); v != 73 {
		t.Errorf("rottentomatoes = %v, want 73", v)
	}
	if v, _ := got.Extra(providerName, "revenue"); v != int64(188020017) {
		t.Errorf("revenue = %v, want 188020017", v)
	}
	want := time.Date(2014, 11, 7, 0, 0, 0, 0, time.UTC)
	if !got.Premiered.Equal(want) || !got.Time[media.ReleaseTheatrical].Equal(want) {
		t.Errorf("Premiered = %v, theatrical = %v, want %v", got.Premiered, got.Time[media.ReleaseTheatrical], want)
	}
	if _, ok := got.Time[media.ReleasePhysical]; ok {
		t.Error("N/A DVD date should not set a physical release")
	}
	if got.Homepage != "" || len(got.Studios) != 0 {
		t.Errorf("N/A fields leaked: homepage %q studios %v", got.Homepage, got.Studios)
	}
}

func TestMetadata_ShowByID(t *testing.T) {
	t.Parallel()
	rec := &recorder{}
	prov := newTestProvider(t, func(req *http.Request) (*http.Response, error) {
		rec.add(req.URL.Query())
		return jsonResponse(200, `{
			"Title": "Game of Thrones",
			"Year": "2011–2019",
			"Released": "17 Apr 2011",
			"Runtime": "57 min",
			"Genre": "Action, Adventure, Drama",
			"imdbRating": "9.2",
			"imdbVotes": "2,300,000",
			"imdbID": "tt0944947",
			"Type": "series",
			"totalSeasons": "8",
			"Response": "True"
		}`), nil
	})

	got, err := prov.Metadata(context.Background(), media.Request{Media: media.Show, IDs: media.IDs{media.IDImdb: "tt0944947"}})
	if err != nil {
		t.Fatalf("Metadata() error = %v", err)
	}
	if n := len(rec.with("t")); n != 0 {
		t.Errorf("title lookups = %d, want 0 when the imdb id is known", n)
	}
	if got.Media != media.Show || got.Year != 2011 {
		t.Errorf("media/year = %s/%d, want show/2011", got.Media, got.Year)
	}
	if got.Count["seasons"] != 8 {
		t.Errorf("seasons = %d, want 8", got.Count["seasons"])
	}
	if !got.Time[media.ReleasePremiere].Equal(time.Date(2011, 4, 17, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("premiere = %v", got.Time[media.ReleasePremiere])
	}
}

func TestMetadata_WrongType(t *testing.T) {
	t.Parallel()
	prov := newTestProvider(t, func(req *http.Request) (*http.Response, error) {
		return jsonResponse(200, interstellar), nil
	})
	_, err := prov.Metadata(context.Background(), media.Request{Media: media.Show, IDs: media.IDs{media.IDImdb: "tt0816692"}})
	if provider.CodeOf(err) != media.CodeNotFound {
		t.Fatalf("error = %v, want not found", err)
	}
}

func TestMetadata_Episode(t *testing.T) {
	t.Parallel()
	prov := newTestProvider(t, func(req *http.Request) (*http.Response, error) {
		q := req.URL.Query()
		if q.Get("Episode") == "1" {
			return jsonResponse(200, `{
				"Title": "Winter Is Coming",
				"Year": "2011",
				"Released": "17 Apr 2011",
				"Runtime": "62 min",
				"Genre": "Action, Adventure, Drama",
				"Plot": "Episode plot",
				"Language": "English",
				"Country": "United States",
				"imdbRating": "8.9",
				"imdbID": "tt1480055",
				"seriesID": "tt0944947",
				"Type": "episode",
				"Response": "True"
			}`), nil
		}
		return jsonResponse(200, `{"Response": "False", "Error": "Episode not found"}`), nil
	})

	got, err := prov.Metadata(context.Background(), media.Request{
		Media:   media.Episode,
		IDs:     media.IDs{media.IDImdb: "tt0944947"},
		Season:  1,
		Episode: 1,
	})
	if err != nil {
		t.Fatalf("Metadata() error = %v", err)
	}
	if got.Title != "Winter Is Coming" {
		t.Errorf("Title = %q, want Winter Is Coming", got.Title)
	}
	if diff := cmp.Diff([]string{"tt1480055", "tt0944947"}, []string{got.IDs.Get(media.IDImdb), got.Show.Get(media.IDImdb)}); diff != "" {
		t.Errorf("ids mismatch (-want +got):\n%s", diff)
	}
	if got.Season != 1 || got.Episode != 1 || got.Duration != 62*60 {
		t.Errorf("S%dE%d duration %d", got.Season, got.Episode, got.Duration)
	}
	if !got.Aired.Equal(time.Date(2011, 4, 17, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Aired = %v", got.Aired)
	}

	_, err = prov.Metadata(context.Background(), media.Request{
		Media:   media.Episode,
		IDs:     media.IDs{media.IDImdb: "tt0944947"},
		Season:  1,
		Episode: 2,
	})
	if err == nil {
		t.Fatal("expected an error for a missing episode")
	}
}

func TestMetadata_EpisodeNeedsShow(t *testing.T) {
	t.Parallel()
	prov := newTestProvider(t, func(req *http.Request) (*http.Response, error) {
		t.Errorf("unexpected request %s", req.URL)
		return jsonResponse(500, `{}`), nil
	})
	_, err := prov.Metadata(context.Background(), media.Request{Media: media.Episode, Season: 1, Episode: 1})
	if !errors.Is(err, media.ErrInvalidRequest) {
		t.Fatalf("error = %v, want invalid request", err)
	}
}

func TestSearch(t *testing.T) {
	t.Parallel()
	rec := &recorder{}
	prov := newTestProvider(t, func(req *http.Request) (*http.Response, error) {
		q := req.URL.Query()
		rec.add(q)
		if q.Get("s") == "nothing" {
			return jsonResponse(200, `{"Response": "False", "Error": "Movie not found!"}`), nil
		}
		return jsonResponse(200, `{
			"Search": [
				{"Title": "The Matrix", "Year": "1999", "imdbID": "tt0133093", "Type": "movie"},
				{"Title": "The Matrix Reloaded", "Year": "2003", "imdbID": "tt0234215", "Type": "movie"},
				{"Title": "Broken", "Year": "N/A", "imdbID": "N/A", "Type": "movie"}
			],
			"totalResults": "25",
			"Response": "True"
		}`), nil
	})

	got, err := prov.Search(context.Background(), media.Request{Kind: media.KindSearch, Media: media.Movie, Query: "matrix", Page: 2})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	queries := rec.with("s")
	if len(queries) != 1 {
		t.Fatalf("search requests = %d, want 1", len(queries))
	}
	if diff := cmp.Diff([]string{"matrix", "movie", "2"}, []string{queries[0].Get("s"), queries[0].Get("type"), queries[0].Get("page")}); diff != "" {
		t.Errorf("search query mismatch (-want +got):\n%s", diff)
	}

	var ranks []int
	var names []string
	for _, r := range got.Items {
		ranks = append(ranks, r.Rank)
		names = append(names, r.Title)
	}
	if diff := cmp.Diff([]string{"The Matrix", "The Matrix Reloaded"}, names); diff != "" {
		t.Errorf("titles mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{11, 12}, ranks); diff != "" {
		t.Errorf("ranks mismatch (-want +got):\n%s", diff)
	}
	if !got.More || got.Page != 2 {
		t.Errorf("More/Page = %v/%d, want true/2", got.More, got.Page)
	}

	empty, err := prov.Search(context.Background(), media.Request{Kind: media.KindSearch, Media: media.Movie, Query: "nothing"})
	if err != nil {
		t.Fatalf("Search() empty error = %v", err)
	}
	if len(empty.Items) != 0 || empty.More {
		t.Errorf("empty search = %+v", empty)
	}

	if _, err := prov.Search(context.Background(), media.Request{Kind: media.KindSearch, Media: media.Person, Query: "nolan"}); !errors.Is(err, provider.ErrUnsupported) {
		t.Errorf("person search error = %v, want unsupported", err)
	}
}

func TestResolve(t *testing.T) {
	t.Parallel()
	prov := newTestProvider(t, func(req *http.Request) (*http.Response, error) {
		if req.URL.Query().Get("i") == "tt0000000" {
			return jsonResponse(200, `{"Response": "False", "Error": "Incorrect IMDb ID."}`), nil
		}
		return jsonResponse(200, interstellar), nil
	})

	tests := map[string]struct {
		ids      media.IDs
		m        media.Media
		wantIMDb string
		wantErr  func(error) bool
	}{
		"confirms imdb": {
			ids:      media.IDs{media.IDImdb: "tt0816692"},
			m:        media.Movie,
			wantIMDb: "tt0816692",
		},
		"type mismatch": {
			ids:     media.IDs{media.IDImdb: "tt0816692"},
			m:       media.Show,
			wantErr: func(err error) bool { return provider.CodeOf(err) == media.CodeNotFound },
		},
		"unknown imdb": {
			ids:     media.IDs{media.IDImdb: "tt0000000"},
			m:       media.Movie,
			wantErr: func(err error) bool { return provider.CodeOf(err) == media.CodeNotFound },
		},
		"foreign ids": {
			ids:     media.IDs{media.IDTmdb: "157336"},
			m:       media.Movie,
			wantErr: func(err error) bool { return errors.Is(err, provider.ErrUnsupported) },
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := prov.Resolve(context.Background(), tc.ids, tc.m)
			if tc.wantErr != nil {
				if !tc.wantErr(err) {
					t.Fatalf("Resolve() error = %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if len(got) != 1 || got[0].IDs.Get(media.IDImdb) != tc.wantIMDb {
				t.Errorf("Resolve() = %+v, want imdb %s", got, tc.wantIMDb)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()
	tests := map[string]struct {
		err  error
		want media.ErrorCode
	}{
		"not found":   {err: errors.New("Movie not found!"), want: media.CodeNotFound},
		"bad id":      {err: errors.New("Incorrect IMDb ID."), want: media.CodeNotFound},
		"limit":       {err: errors.New("Request limit reached!"), want: media.CodeRateLimited},
		"bad key":     {err: errors.New("Invalid API key!"), want: media.CodeUnknown},
		"timeout":     {err: errors.New("dial tcp: i/o timeout"), want: media.CodeNetwork},
		"canceled":    {err: context.Canceled, want: media.CodeNetwork},
		"passthrough": {err: provider.ServerError(providerName, 503, nil), want: media.CodeServer},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			if got := provider.CodeOf(classify(tc.err)); got != tc.want {
				t.Errorf("classify(%v) code = %s, want %s", tc.err, got, tc.want)
			}
		})
	}
}

func TestParseHelpers(t *testing.T) {
	t.Parallel()
	if got := parseRuntime("136 min"); got != 136 {
		t.Errorf("parseRuntime = %d, want 136", got)
	}
	if got := parseRuntime("N/A"); got != 0 {
		t.Errorf("parseRuntime(N/A) = %d, want 0", got)
	}
	if got := parseRating("8.6"); got != 8.6 {
		t.Errorf("parseRating = %v, want 8.6", got)
	}
	if got := parseDate("17 Apr 2011"); !got.Equal(time.Date(2011, 4, 17, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("parseDate = %v", got)
	}
	if diff := cmp.Diff([]string{"Jonathan Nolan", "Christopher Nolan"}, writers("Jonathan Nolan (screenplay), Christopher Nolan (screenplay), Jonathan Nolan")); diff != "" {
		t.Errorf("writers mismatch (-want +got):\n%s", diff)
	}
}
