package tmdb

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/gaiakodi/gaiasource/internal/media"
)

func TestEpisodeType(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		ep   episode
		want media.EpisodeType
	}{
		"series premiere":   {ep: episode{SeasonNumber: 1, EpisodeNumber: 1}, want: media.EpisodeSeriesPremiere},
		"season premiere":   {ep: episode{SeasonNumber: 3, EpisodeNumber: 1}, want: media.EpisodeSeasonPremiere},
		"finale wins":       {ep: episode{SeasonNumber: 1, EpisodeNumber: 1, EpisodeType: "finale"}, want: media.EpisodeSeasonFinale},
		"mid-season finale": {ep: episode{SeasonNumber: 2, EpisodeNumber: 8, EpisodeType: "mid_season"}, want: media.EpisodeMidSeasonFinale},
		"special":           {ep: episode{SeasonNumber: 0, EpisodeNumber: 1}, want: media.EpisodeStandard},
		"standard":          {ep: episode{SeasonNumber: 2, EpisodeNumber: 4, EpisodeType: "standard"}, want: media.EpisodeStandard},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			if got := episodeType(tc.ep); got != tc.want {
				t.Errorf("episodeType() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestFromDetailShow(t *testing.T) {
	t.Parallel()

	raw := `{
		"id":1399,"name":"Game of Thrones","original_name":"Game of Thrones",
		"first_air_date":"2011-04-17","last_air_date":"2019-05-19","status":"Ended",
		"episode_run_time":[60],"number_of_seasons":8,"number_of_episodes":73,
		"genres":[{"id":10765,"name":"Sci-Fi & Fantasy"},{"id":18,"name":"Drama"}],
		"networks":[{"id":49,"name":"HBO"}],
		"created_by":[{"id":9813,"name":"David Benioff"}],
		"origin_country":["US"],"original_language":"en",
		"external_ids":{"imdb_id":"tt0944947","tvdb_id":121361},
		"content_ratings":{"results":[{"iso_3166_1":"DE","rating":"16"},{"iso_3166_1":"US","rating":"TV-MA"}]},
		"keywords":{"results":[{"id":1,"name":"Dragon"}]},
		"alternative_titles":{"results":[{"title":"GoT"}]},
		"translations":{"translations":[
			{"iso_639_1":"de","iso_3166_1":"DE","data":{"name":"Game of Thrones"}},
			{"iso_639_1":"fr","iso_3166_1":"FR","data":{"name":"Le Trône de fer"}}]}
	}`
	var d detail
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	got := fromDetail(d, media.Show, "US")

	if diff := cmp.Diff(media.IDs{media.IDTmdb: "1399", media.IDImdb: "tt0944947", media.IDTvdb: "121361"}, got.IDs); diff != "" {
		t.Errorf("ids mismatch (-want +got):\n%s", diff)
	}
	if got.Status != media.StatusEnded || got.Certificate != "TV-MA" || got.Duration != 3600 {
		t.Errorf("status=%q certificate=%q duration=%d", got.Status, got.Certificate, got.Duration)
	}
	if diff := cmp.Diff(map[string]int{"seasons": 8, "episodes": 73}, got.Count); diff != "" {
		t.Errorf("counts mismatch (-want +got):\n%s", diff)
	}
	if finale := got.Time[media.ReleaseFinale]; !finale.Equal(time.Date(2019, 5, 19, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("finale = %v", finale)
	}
	if diff := cmp.Diff([]string{"science-fiction", "fantasy", "drama"}, got.Genres); diff != "" {
		t.Errorf("genres mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"GoT", "Le Trône de fer"}, got.Aliases); diff != "" {
		t.Errorf("aliases mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"HBO"}, got.Networks); diff != "" {
		t.Errorf("networks mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"David Benioff"}, got.Creator); diff != "" {
		t.Errorf("creator mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"dragon"}, got.Keywords); diff != "" {
		t.Errorf("keywords mismatch (-want +got):\n%s", diff)
	}
}

func TestFromCollection(t *testing.T) {
	t.Parallel()

	got := fromCollection(collection{
		ID:   1241,
		Name: "Harry Potter Collection",
		Parts: []item{
			{ID: 672, Title: "Harry Potter and the Chamber of Secrets", ReleaseDate: "2002-11-13"},
			{ID: 671, Title: "Harry Potter and the Philosopher's Stone", ReleaseDate: "2001-11-16"},
			{ID: 12445, Title: "Harry Potter and the Deathly Hallows: Part 2"},
		},
	})

	want := []media.IDs{{media.IDTmdb: "672"}, {media.IDTmdb: "671"}, {media.IDTmdb: "12445"}}
	if diff := cmp.Diff(want, got.Parts); diff != "" {
		t.Errorf("parts mismatch (-want +got):\n%s", diff)
	}
	if got.Year != 2001 || got.Count["parts"] != 3 {
		t.Errorf("year=%d parts=%d, want 2001 and 3", got.Year, got.Count["parts"])
	}
}
