package media

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNormalizeImdb(t *testing.T) {
	t.Parallel()
	tests := map[string]string{
		"tt0111161":   "tt0111161",
		"ttt0111161":  "tt0111161",
		"tttt0111161": "tt0111161",
		"TT0111161":   "tt0111161",
		"0111161":     "tt0111161",
		" tt42 ":      "tt42",
		"":            "",
	}
	for in, want := range tests {
		if got := NormalizeImdb(in); got != want {
			t.Errorf("NormalizeImdb(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestIDs(t *testing.T) {
	t.Parallel()
	ids := IDs{}
	ids.Set(IDImdb, "ttt0903747")
	ids.Set(IDTmdb, "0")
	ids.Set(IDTvdb, " ")
	ids.Set(IDTrakt, "1388")
	want := IDs{IDImdb: "tt0903747", IDTrakt: "1388"}
	if diff := cmp.Diff(want, ids); diff != "" {
		t.Errorf("Set mismatch (-want +got):\n%s", diff)
	}
	if got := ids.String(); got != "imdb:tt0903747,trakt:1388" {
		t.Errorf("String() = %q", got)
	}
	if diff := cmp.Diff([]string{IDTmdb, IDTvdb}, ids.Missing([]string{IDImdb, IDTmdb, IDTvdb})); diff != "" {
		t.Errorf("Missing mismatch (-want +got):\n%s", diff)
	}
	if !ids.Shares(IDs{IDTrakt: "1388", IDTmdb: "1396"}) {
		t.Error("expected ids to share the trakt id")
	}
	if ids.Shares(IDs{IDTrakt: "1"}) {
		t.Error("unexpected shared id")
	}
	ids.Fill(IDs{IDTmdb: "1396", IDTrakt: "9"})
	if ids[IDTmdb] != "1396" || ids[IDTrakt] != "1388" {
		t.Errorf("Fill should only add missing ids: %v", ids)
	}
}

func TestIDsNormalize(t *testing.T) {
	t.Parallel()
	got := IDs{" IMDB ": "0111161", "tmdb": "", "Tvdb": "81189"}.Normalize()
	want := IDs{IDImdb: "tt0111161", IDTvdb: "81189"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Normalize mismatch (-want +got):\n%s", diff)
	}
	if !(IDs{IDTmdb: ""}).Empty() {
		t.Error("ids with only empty values should be empty")
	}
}
