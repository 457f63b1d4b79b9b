package render

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	journal "github.com/gaiakodi/gaiasource/internal/log"
	"github.com/gaiakodi/gaiasource/internal/media"
)

func TestResultTable(t *testing.T) {
	t.Parallel()
	tests := map[string]struct {
		res  media.Result
		want []string
	}{
		"page": {
			res: media.Result{Kind: media.KindSearch, Complete: true, Page: &media.PageResult{
				Page:  1,
				More:  true,
				Count: media.Counts{Initial: 3, Final: 1},
				Items: []media.Record{{Media: media.Movie, Title: "Heat", Year: 1995, Rating: 8.3, Votes: 700000, IDs: media.IDs{"imdb": "tt0113277"}}},
			}},
			want: []string{"Heat", "1995", "8.3", "imdb:tt0113277", "page 1: 1 of 3 items, more available"},
		},
		"episode numbers": {
			res: media.Result{Kind: media.KindRelease, Complete: true, Page: &media.PageResult{
				Page:  1,
				Items: []media.Record{{Media: media.Episode, Title: "Pilot", Season: 1, Episode: 1}},
			}},
			want: []string{"S01E01 Pilot"},
		},
		"incomplete record": {
			res: media.Result{Kind: media.KindMetadata, Record: &media.Record{
				Media:     media.Show,
				Title:     "Breaking Bad",
				Premiered: time.Date(2008, 1, 20, 0, 0, 0, 0, time.UTC),
				Genres:    []string{"drama", "crime"},
				Duration:  2820,
			}},
			want: []string{"Breaking Bad", "2008-01-20", "drama, crime", "47m0s", "[incomplete]"},
		},
		"pack": {
			res: media.Result{Kind: media.KindPack, Complete: true, Pack: &media.Pack{
				IDs: media.IDs{"tvdb": "81189"},
				Seasons: []media.PackSeason{
					{Number: media.Numbering{Standard: media.Number{Season: 1}}, Title: "Season 1", Count: 7, Year: media.Span{Start: 2008}},
				},
				Count:  media.PackCount{Season: media.Tally{Total: 1, Main: 1}, Episode: media.Tally{Total: 7, Main: 7}},
				Year:   media.Span{Start: 2008, End: 2013},
				Status: media.StatusEnded,
			}},
			want: []string{"Season 1", "1 seasons (1 main), 7 episodes (7 main, 0 specials), 2008-2013, ended"},
		},
		"ids": {
			res:  media.Result{Kind: media.KindResolve, Complete: true, IDs: media.IDs{"imdb": "tt0111161", "tmdb": "278"}},
			want: []string{"imdb", "tt0111161", "278"},
		},
		"failure": {
			res:  media.Result{Kind: media.KindSearch, Error: &media.Failure{Code: media.CodeRateLimited, Message: "tmdb: rate limited", RetryAfter: 3}},
			want: []string{"[rate-limited] tmdb: rate limited", "retry after 3s"},
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			var buf bytes.Buffer
			if err := New(&buf, FormatTable, true).Result(tc.res); err != nil {
				t.Fatalf("Result() error = %v", err)
			}
			for _, want := range tc.want {
				if !strings.Contains(buf.String(), want) {
					t.Errorf("output missing %q:\n%s", want, buf.String())
				}
			}
		})
	}
}

func TestResultJSON(t *testing.T) {
	t.Parallel()
	res := media.Result{Kind: media.KindResolve, Complete: true, IDs: media.IDs{"imdb": "tt0111161"}}

	var buf bytes.Buffer
	if err := New(&buf, FormatJSON, false).Result(res); err != nil {
		t.Fatalf("Result() error = %v", err)
	}
	var got media.Result
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if diff := cmp.Diff(res, got); diff != "" {
		t.Errorf("JSON mismatch (-want +got):\n%s", diff)
	}
}

func TestProvidersAndSessions(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	r := New(&buf, FormatTable, true)
	if err := r.Providers([]Provider{{Name: "tmdb", Enabled: true, Priority: 40, Operations: []string{"search"}, Usage: 0.5}}); err != nil {
		t.Fatalf("Providers() error = %v", err)
	}
	err := r.Sessions([]*journal.Session{{Metadata: journal.SessionMetadata{
		CommandArgs: []string{"search", "heat"},
		TotalOps:    2,
		CompleteOps: 1,
		FailedOps:   1,
	}}})
	if err != nil {
		t.Fatalf("Sessions() error = %v", err)
	}
	for _, want := range []string{"tmdb", "[on]", "50%", "search heat"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("output missing %q:\n%s", want, buf.String())
		}
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()
	tests := map[string]struct {
		in    string
		width int
		want  string
	}{
		"short":      {in: "Heat", width: 10, want: "Heat"},
		"ascii":      {in: "The Lord of the Rings", width: 8, want: "The Lor…"},
		"wide runes": {in: "千と千尋の神隠し", width: 7, want: "千と千…"},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			if got := Truncate(tc.in, tc.width); got != tc.want {
				t.Errorf("Truncate(%q, %d) = %q, want %q", tc.in, tc.width, got, tc.want)
			}
		})
	}
}
