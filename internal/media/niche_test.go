package media

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestNicheExpand(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	lastYear := Window{Start: date(2023, 6, 15), End: date(2024, 6, 15)}
	tests := map[string]struct {
		tags     []string
		media    Media
		want     Filters
		wantSort Sort
	}{
		"best anime shows scale the vote floor": {
			tags:  []string{"best", "anime"},
			media: Show,
			want: Filters{
				Genre:    &GenreFilter{Include: []string{GenreAnimation}},
				Language: []string{"ja"},
				Country:  []string{"jp"},
				Rating:   AtLeast(8),
				Votes:    AtLeast(1000),
			},
		},
		"best movies": {
			tags:  []string{"Best"},
			media: Movie,
			want:  Filters{Rating: AtLeast(8), Votes: AtLeast(10000)},
		},
		"episodes use the show table": {
			tags:  []string{"prestige"},
			media: Episode,
			want:  Filters{Rating: AtLeast(7), Votes: AtLeast(5000)},
		},
		"mini series": {
			tags:  []string{"mini"},
			media: Show,
			want:  Filters{Seasons: AtMost(1), Status: []Status{StatusEnded}},
		},
		"new": {
			tags:  []string{"new"},
			media: Movie,
			want:  Filters{Date: &lastYear},
		},
		"home release": {
			tags:     []string{"home"},
			media:    Movie,
			want:     Filters{Release: []ReleaseKind{ReleaseDigital, ReleasePhysical}},
			wantSort: SortHome,
		},
		"viewed": {
			tags:     []string{"viewed"},
			media:    Show,
			wantSort: SortPlayed,
		},
		"unknown tags become keywords": {
			tags:  []string{"zombie", " "},
			media: Movie,
			want:  Filters{Keyword: []string{"zombie"}},
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			got, gotSort, err := Niche{Now: now}.Expand(tc.tags, tc.media)
			if err != nil {
				t.Fatalf("Expand(%v) unexpected error: %v", tc.tags, err)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("Expand(%v) filters mismatch (-want +got):\n%s", tc.tags, diff)
			}
			if gotSort != tc.wantSort {
				t.Errorf("Expand(%v) sort = %q, want %q", tc.tags, gotSort, tc.wantSort)
			}
		})
	}
}

func TestNicheExpandIsOrderIndependent(t *testing.T) {
	t.Parallel()
	n := Niche{Now: time.Now()}
	a, _, err := n.Expand([]string{"docu", "best", "short"}, Movie)
	if err != nil {
		t.Fatal(err)
	}
	b, _, err := n.Expand([]string{"short", "docu", "best"}, Movie)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("tag order changed the expansion (-first +second):\n%s", diff)
	}
}

func TestResolveTier(t *testing.T) {
	t.Parallel()
	f := Filters{RatingTier: "normal", Rating: AtLeast(7.5)}
	if err := f.ResolveTier(Season, nil); err != nil {
		t.Fatal(err)
	}
	want := Filters{Rating: AtLeast(7.5), Votes: AtLeast(500)}
	if diff := cmp.Diff(want, f); diff != "" {
		t.Errorf("ResolveTier mismatch (-want +got):\n%s", diff)
	}

	bad := Filters{RatingTier: "legendary"}
	if err := bad.ResolveTier(Movie, nil); err == nil {
		t.Error("expected error for an unknown tier")
	}
}
