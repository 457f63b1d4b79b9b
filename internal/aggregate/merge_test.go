package aggregate

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/gaiakodi/gaiasource/internal/media"
)

func movieInputs() []Input {
	return []Input{
		{Provider: "trakt", Record: media.Record{
			Media:    media.Movie,
			IDs:      media.IDs{"imdb": "tt0111161", "tmdb": "278", "trakt": "481", "slug": "the-shawshank-redemption-1994"},
			Title:    "The Shawshank Redemption (Trakt)",
			Year:     1994,
			Genres:   []string{"drama", "crime"},
			Complete: true,
		}},
		{Provider: "tmdb", Record: media.Record{
			Media:    media.Movie,
			IDs:      media.IDs{"imdb": "tt9999999", "tmdb": "278"},
			Title:    "The Shawshank Redemption",
			Duration: 8520,
			Genres:   []string{"drama"},
			Cast:     []media.CastMember{{Name: "Tim Robbins", Order: 0}},
			Complete: true,
		}},
		{Provider: "omdb", Record: media.Record{
			Media:       media.Movie,
			IDs:         media.IDs{"imdb": "tt0111161"},
			Title:       "Shawshank",
			Certificate: "R",
			Cast:        []media.CastMember{{Name: "Morgan Freeman", Order: 0}},
			Complete:    false,
		}},
	}
}

func TestMergeIsOrderIndependent(t *testing.T) {
	t.Parallel()
	mg := Merger{Priorities: DefaultPriorities(), Authority: DefaultAuthority()}
	in := movieInputs()
	want := mg.Merge(media.Movie, nil, in)

	perms := [][]int{{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0}}
	for _, perm := range perms {
		shuffled := []Input{in[perm[0]], in[perm[1]], in[perm[2]]}
		if diff := cmp.Diff(want, mg.Merge(media.Movie, nil, shuffled)); diff != "" {
			t.Errorf("Merge(%v) mismatch (-want +got):\n%s", perm, diff)
		}
	}
}

func TestMergePriorityAndAuthority(t *testing.T) {
	t.Parallel()
	mg := Merger{Priorities: DefaultPriorities(), Authority: DefaultAuthority()}
	got := mg.Merge(media.Movie, nil, movieInputs())

	if got.Title != "The Shawshank Redemption" {
		t.Errorf("Title = %q, want the TMDb title", got.Title)
	}
	if got.Year != 1994 || got.Duration != 8520 || got.Certificate != "R" {
		t.Errorf("scalars = %d/%d/%q", got.Year, got.Duration, got.Certificate)
	}
	wantIDs := media.IDs{"imdb": "tt0111161", "tmdb": "278", "trakt": "481", "slug": "the-shawshank-redemption-1994"}
	if diff := cmp.Diff(wantIDs, got.IDs); diff != "" {
		t.Errorf("IDs mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"drama", "crime"}, got.Genres); diff != "" {
		t.Errorf("Genres mismatch (-want +got):\n%s", diff)
	}
	if got.Cast[0].Name != "Tim Robbins" || len(got.Cast) != 2 {
		t.Errorf("Cast = %+v", got.Cast)
	}
	if got.Complete {
		t.Error("Complete = true, want the conjunction of the inputs")
	}
}

func TestMergeCallerIDsWin(t *testing.T) {
	t.Parallel()
	mg := Merger{Priorities: DefaultPriorities(), Authority: DefaultAuthority()}
	got := mg.Merge(media.Movie, media.IDs{"imdb": "ttt0000001"}, movieInputs())
	if got.IDs.Get(media.IDImdb) != "tt0000001" {
		t.Errorf("imdb = %q, want the normalized caller id", got.IDs.Get(media.IDImdb))
	}
}

func TestMergeEpisodes(t *testing.T) {
	t.Parallel()
	mg := Merger{Priorities: DefaultPriorities(), Authority: DefaultAuthority()}
	got := mg.Merge(media.Episode, nil, []Input{
		{Provider: "tmdb", Record: media.Record{Media: media.Episode, IDs: media.IDs{"tmdb": "62085"}, Show: media.IDs{"tmdb": "1396", "tvdb": "1"}, Title: "Pilot (TMDb)", Season: 1, Episode: 1}},
		{Provider: "tvdb", Record: media.Record{Media: media.Episode, IDs: media.IDs{"tvdb": "349232"}, Show: media.IDs{"tvdb": "81189"}, Title: "Pilot", Season: 1, Episode: 1}},
	})
	if got.Title != "Pilot" {
		t.Errorf("Title = %q, want the TVDb title for episodes", got.Title)
	}
	if diff := cmp.Diff(media.IDs{"tmdb": "1396", "tvdb": "81189"}, got.Show); diff != "" {
		t.Errorf("Show mismatch (-want +got):\n%s", diff)
	}
}

func TestPrioritiesOrder(t *testing.T) {
	t.Parallel()
	p := DefaultPriorities()
	if diff := cmp.Diff([]string{"tmdb", "trakt", "omdb", "zeta"}, p.Order(media.Movie, []string{"zeta", "omdb", "trakt", "tmdb"})); diff != "" {
		t.Errorf("movie order mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"tvdb", "tmdb"}, p.Order(media.Episode, []string{"tmdb", "tvdb"})); diff != "" {
		t.Errorf("episode order mismatch (-want +got):\n%s", diff)
	}
}

func TestAuthorityRank(t *testing.T) {
	t.Parallel()
	a := DefaultAuthority()
	tests := map[string]struct {
		kind, source string
		want         int
	}{
		"caller":       {kind: "imdb", source: CallerSource, want: -1},
		"omdb on imdb": {kind: "imdb", source: "omdb", want: 0},
		"tmdb on imdb": {kind: "imdb", source: "tmdb", want: 3},
		"omdb on tmdb": {kind: "tmdb", source: "omdb", want: 3},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			if got := a.Rank(tc.kind, tc.source); got != tc.want {
				t.Errorf("Rank(%s, %s) = %d, want %d", tc.kind, tc.source, got, tc.want)
			}
		})
	}
}
