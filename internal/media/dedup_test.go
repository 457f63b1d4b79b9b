package media

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func titles(records []Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Title
	}
	return out
}

func TestDedup(t *testing.T) {
	t.Parallel()
	records := []Record{
		{Media: Movie, Title: "a", IDs: IDs{IDImdb: "tt1", IDTmdb: "1"}, Complete: true},
		{Media: Movie, Title: "b", IDs: IDs{IDTmdb: "1", IDTrakt: "5"}, Complete: true},
		{Media: Movie, Title: "d", IDs: IDs{IDImdb: "tt9"}, Complete: true},
		{Media: Movie, Title: "c", IDs: IDs{IDTrakt: "5"}, Genres: []string{"drama"}, Complete: true},
	}
	tests := map[string]struct {
		policy DedupPolicy
		want   []string
	}{
		"keep all":   {policy: KeepAll, want: []string{"a", "b", "d", "c"}},
		"keep first": {policy: KeepFirst, want: []string{"a", "d"}},
		"keep last":  {policy: KeepLast, want: []string{"c", "d"}},
		"merge":      {policy: KeepMerge, want: []string{"a", "d"}},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			got := Dedup(records, tc.policy, false)
			if diff := cmp.Diff(tc.want, titles(got)); diff != "" {
				t.Errorf("Dedup(%s) mismatch (-want +got):\n%s", tc.policy, diff)
			}
		})
	}
}

func TestDedupMergeIsTransitive(t *testing.T) {
	t.Parallel()
	records := []Record{
		{Media: Movie, Title: "a", IDs: IDs{IDImdb: "tt1"}},
		{Media: Movie, Title: "b", IDs: IDs{IDTmdb: "2"}},
		{Media: Movie, Title: "c", IDs: IDs{IDImdb: "TT1", IDTmdb: "2"}, Genres: []string{"drama"}},
	}
	got := Dedup(records, KeepMerge, false)
	if len(got) != 1 {
		t.Fatalf("expected one group, got %d: %v", len(got), titles(got))
	}
	want := IDs{IDImdb: "tt1", IDTmdb: "2"}
	if diff := cmp.Diff(want, got[0].IDs); diff != "" {
		t.Errorf("merged ids mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"drama"}, got[0].Genres); diff != "" {
		t.Errorf("merged genres mismatch (-want +got):\n%s", diff)
	}
}

func TestDedupEpisodeNumbers(t *testing.T) {
	t.Parallel()
	episodes := []Record{
		{Media: Episode, Title: "one", IDs: IDs{IDTvdb: "81189"}, Season: 1, Episode: 1},
		{Media: Episode, Title: "two", IDs: IDs{IDTvdb: "81189"}, Season: 1, Episode: 2},
		{Media: Episode, Title: "one again", IDs: IDs{IDTvdb: "81189"}, Season: 1, Episode: 1},
	}
	got := Dedup(episodes, KeepFirst, true)
	if diff := cmp.Diff([]string{"one", "two"}, titles(got)); diff != "" {
		t.Errorf("numbered dedup mismatch (-want +got):\n%s", diff)
	}
	got = Dedup(episodes, KeepFirst, false)
	if diff := cmp.Diff([]string{"one"}, titles(got)); diff != "" {
		t.Errorf("unnumbered dedup mismatch (-want +got):\n%s", diff)
	}
}

func TestDedupKeys(t *testing.T) {
	t.Parallel()
	r := Record{Media: Episode, IDs: IDs{IDTvdb: "7", IDImdb: "TT5"}, Season: 2, Episode: 3}
	want := []string{"imdb:tt5:2:3", "tvdb:7:2:3"}
	if diff := cmp.Diff(want, DedupKeys(r, true)); diff != "" {
		t.Errorf("DedupKeys mismatch (-want +got):\n%s", diff)
	}
}
