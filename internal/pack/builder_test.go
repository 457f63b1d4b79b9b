package pack

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/gaiakodi/gaiasource/internal/aggregate"
	"github.com/gaiakodi/gaiasource/internal/cache"
	"github.com/gaiakodi/gaiasource/internal/media"
	"github.com/gaiakodi/gaiasource/internal/provider"
	"github.com/gaiakodi/gaiasource/internal/provider/providertest"
)

var now = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

var breakingBadSeasons = map[int]int{1: 7, 2: 13, 3: 13, 4: 13, 5: 16}

func aired(season, ep int) time.Time {
	year := 2007 + season
	if season == 5 && ep > 8 {
		year = 2013
	}
	return time.Date(year, time.Month(1+(ep-1)%12), 10, 0, 0, 0, 0, time.UTC)
}

// breakingBad lists the show the way one provider does. specials are the
// season 0 titles in order.
func breakingBad(source string, specials ...string) *provider.Listing {
	l := &provider.Listing{
		Provider: source,
		Show:     media.Record{Media: media.Show, IDs: media.IDs{"tvdb": "81189", "imdb": "tt0903747"}, Title: "Breaking Bad", Status: media.StatusEnded},
		Complete: true,
	}
	for season := 0; season <= 5; season++ {
		l.Seasons = append(l.Seasons, media.Record{Media: media.Season, Season: season, IDs: media.IDs{source: fmt.Sprintf("%s-s%d", source, season)}})
	}
	for season, n := range breakingBadSeasons {
		for ep := 1; ep <= n; ep++ {
			l.Episodes = append(l.Episodes, media.Record{
				Media:    media.Episode,
				IDs:      media.IDs{source: fmt.Sprintf("%s-%d-%d", source, season, ep)},
				Title:    fmt.Sprintf("Chapter %d of season %d", ep, season),
				Season:   season,
				Episode:  ep,
				Duration: 2820,
				Aired:    aired(season, ep),
			})
		}
	}
	for i, title := range specials {
		l.Episodes = append(l.Episodes, media.Record{
			Media:   media.Episode,
			IDs:     media.IDs{source: fmt.Sprintf("%s-0-%d", source, i+1)},
			Title:   title,
			Season:  0,
			Episode: i + 1,
			Aired:   time.Date(2009, 2, 17, 0, 0, 0, 0, time.UTC),
		})
	}
	return l
}

func newAggregator(t *testing.T, fakes ...*providertest.Fake) *aggregate.Aggregator {
	t.Helper()
	reg := provider.NewRegistry()
	if err := providertest.Register(reg, fakes...); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	return aggregate.New(reg, aggregate.Options{Now: func() time.Time { return now }})
}

func packer(name string, l *provider.Listing) *providertest.Fake {
	f := providertest.New(name, []media.Kind{media.KindPack}, media.Show)
	f.PackFunc = func(context.Context, media.IDs, []int) (*provider.Listing, error) {
		return l, nil
	}
	return f
}

func checkInvariants(t *testing.T, p *media.Pack) {
	t.Helper()
	sum := 0
	for _, s := range p.Seasons {
		sum += s.Count
		for _, e := range s.Episodes {
			idx := e.Number.Sequential.Index
			inRange := idx > 0 && idx <= p.Count.Episode.Main
			if inRange != (e.Number.Standard.Season > 0) {
				t.Errorf("episode %+v: sequential index %d out of range", e.Number.Standard, idx)
			}
		}
	}
	if sum != p.Count.Episode.Total {
		t.Errorf("season counts sum to %d, episode total is %d", sum, p.Count.Episode.Total)
	}
	if p.Count.Episode.Total != p.Count.Episode.Main+p.Count.Special {
		t.Errorf("episode total %d != main %d + special %d", p.Count.Episode.Total, p.Count.Episode.Main, p.Count.Special)
	}
}

func TestAssembleAlignsSpecials(t *testing.T) {
	t.Parallel()
	tvdb := breakingBad("tvdb", "Good Cop Bad Cop", "Wedding Day")
	trakt := breakingBad("trakt", "Wedding Day", "Good Cop / Bad Cop", "Breaking Bad: Original Minisodes")
	agg := newAggregator(t)

	p := Assemble(agg, media.IDs{"tvdb": "81189"}, []*provider.Listing{tvdb, trakt}, now)
	checkInvariants(t, p)

	want := media.PackCount{
		Season:  media.Tally{Total: 6, Main: 5},
		Episode: media.Tally{Total: 65, Main: 62},
		Mean:    media.MeanTally{Total: 65.0 / 6, Main: 62.0 / 5},
		Special: 3,
	}
	if diff := cmp.Diff(want, p.Count); diff != "" {
		t.Errorf("Count mismatch (-want +got):\n%s", diff)
	}
	if p.Year.Start != 2008 || p.Year.End != 2013 {
		t.Errorf("Year = %d..%d, want 2008..2013", p.Year.Start, p.Year.End)
	}
	if p.Status != media.StatusEnded {
		t.Errorf("Status = %q, want ended", p.Status)
	}

	specials, _ := p.Season(0)
	var got []string
	for _, e := range specials.Episodes {
		got = append(got, fmt.Sprintf("%d %s %v", e.Number.Standard.Episode, e.Title, e.Sources))
	}
	wantSpecials := []string{
		"1 Good Cop Bad Cop [tvdb trakt]",
		"2 Wedding Day [tvdb trakt]",
		"3 Breaking Bad: Original Minisodes [trakt]",
	}
	if diff := cmp.Diff(wantSpecials, got); diff != "" {
		t.Errorf("specials mismatch (-want +got):\n%s", diff)
	}
	if specials.Episodes[0].IDs.Get("trakt") != "trakt-0-2" {
		t.Errorf("special ids = %v, want the trakt id of the matching title", specials.Episodes[0].IDs)
	}
}

func TestAssembleNumbering(t *testing.T) {
	t.Parallel()
	l := &provider.Listing{
		Provider: "tvdb",
		Complete: true,
		Episodes: []media.Record{
			{Media: media.Episode, Season: 0, Episode: 1, Title: "Special"},
			{Media: media.Episode, Season: 1, Episode: 1, Title: "One"},
			{Media: media.Episode, Season: 1, Episode: 2, Title: "Two"},
			{Media: media.Episode, Season: 2, Episode: 1, Title: "Three", Absolute: 7},
		},
	}
	p := Assemble(newAggregator(t), media.IDs{"tvdb": "1"}, []*provider.Listing{l}, now)
	checkInvariants(t, p)

	var got []media.Numbering
	for _, s := range p.Seasons {
		for _, e := range s.Episodes {
			got = append(got, e.Number)
		}
	}
	want := []media.Numbering{
		{Standard: media.Number{Season: 0, Episode: 1}, Absolute: media.Number{Season: 0, Episode: 1}, Sequential: media.Number{Season: 1, Episode: 0}},
		{Standard: media.Number{Season: 1, Episode: 1}, Absolute: media.Number{Season: 1, Episode: 1, Index: 1}, Sequential: media.Number{Season: 1, Episode: 1, Index: 1}},
		{Standard: media.Number{Season: 1, Episode: 2}, Absolute: media.Number{Season: 1, Episode: 2, Index: 2}, Sequential: media.Number{Season: 1, Episode: 2, Index: 2}},
		{Standard: media.Number{Season: 2, Episode: 1}, Absolute: media.Number{Season: 1, Episode: 3, Index: 3}, Sequential: media.Number{Season: 1, Episode: 3, Index: 3}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("numbering mismatch (-want +got):\n%s", diff)
	}

	var types []media.EpisodeType
	for _, s := range p.Seasons[1:] {
		for _, e := range s.Episodes {
			types = append(types, e.Type)
		}
	}
	wantTypes := []media.EpisodeType{media.EpisodeSeriesPremiere, media.EpisodeSeasonFinale, media.EpisodeSeasonPremiere}
	if diff := cmp.Diff(wantTypes, types); diff != "" {
		t.Errorf("types mismatch (-want +got):\n%s", diff)
	}
	if p.Status != media.StatusUpcoming {
		t.Errorf("Status = %q, want upcoming when nothing has aired", p.Status)
	}
}

func TestAssembleAbsoluteAfterAlignment(t *testing.T) {
	t.Parallel()
	tvdb := &provider.Listing{
		Provider: "tvdb",
		Complete: true,
		Episodes: []media.Record{
			{Media: media.Episode, IDs: media.IDs{"tvdb": "11"}, Season: 1, Episode: 1, Title: "Pilot", Absolute: 1},
			{Media: media.Episode, IDs: media.IDs{"tvdb": "12"}, Season: 1, Episode: 2, Title: "Cat in the Bag", Absolute: 2},
			{Media: media.Episode, IDs: media.IDs{"tvdb": "21"}, Season: 2, Episode: 1, Title: "Seven Thirty-Seven", Absolute: 3},
		},
	}
	trakt := &provider.Listing{
		Provider: "trakt",
		Complete: true,
		Episodes: []media.Record{
			{Media: media.Episode, IDs: media.IDs{"trakt": "11"}, Season: 1, Episode: 1, Title: "Pilot"},
			{Media: media.Episode, IDs: media.IDs{"trakt": "12"}, Season: 1, Episode: 2, Title: "Cat in the Bag"},
			{Media: media.Episode, IDs: media.IDs{"trakt": "13"}, Season: 1, Episode: 3, Title: "Bonus Cut"},
			{Media: media.Episode, IDs: media.IDs{"trakt": "21"}, Season: 2, Episode: 1, Title: "Seven Thirty-Seven"},
		},
	}
	p := Assemble(newAggregator(t), media.IDs{"tvdb": "1"}, []*provider.Listing{tvdb, trakt}, now)
	checkInvariants(t, p)

	var got []int
	for _, s := range p.Seasons {
		for _, e := range s.Episodes {
			got = append(got, e.Number.Absolute.Index)
		}
	}
	if diff := cmp.Diff([]int{1, 2, 3, 4}, got); diff != "" {
		t.Errorf("absolute numbers mismatch (-want +got):\n%s", diff)
	}
}

func TestSeasonStats(t *testing.T) {
	t.Parallel()
	day := func(d int) time.Time { return time.Date(2023, 12, d, 0, 0, 0, 0, time.UTC) }
	l := &provider.Listing{
		Provider: "trakt",
		Complete: true,
		Episodes: []media.Record{
			{Media: media.Episode, Season: 1, Episode: 1, Duration: 1200, Aired: day(1)},
			{Media: media.Episode, Season: 1, Episode: 2, Duration: 1800, Aired: day(8)},
			{Media: media.Episode, Season: 1, Episode: 3, Aired: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)},
		},
	}
	p := Assemble(newAggregator(t), media.IDs{"trakt": "1"}, []*provider.Listing{l}, now)
	s := p.Seasons[0]

	if diff := cmp.Diff(media.Stats{Total: 3000, Mean: 1500, Min: 1200, Max: 1800, Range: 600}, s.Duration); diff != "" {
		t.Errorf("Duration mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(media.Span{Start: 2023, End: 2024, List: []int64{2023, 2024}}, s.Year); diff != "" {
		t.Errorf("Year mismatch (-want +got):\n%s", diff)
	}
	if s.Time.Start != day(1).Unix() || len(s.Time.List) != 3 {
		t.Errorf("Time = %+v", s.Time)
	}
	if s.Status != media.StatusContinuing {
		t.Errorf("Status = %q, want continuing", s.Status)
	}
}

func TestDerive(t *testing.T) {
	t.Parallel()
	past, future := now.Add(-time.Hour).Unix(), now.Add(time.Hour).Unix()
	tests := map[string]struct {
		times   []int64
		unknown bool
		want    media.Status
	}{
		"nothing known":   {want: media.StatusUpcoming},
		"all aired":       {times: []int64{past, past}, want: media.StatusEnded},
		"one to come":     {times: []int64{past, future}, want: media.StatusContinuing},
		"unknown pending": {times: []int64{past}, unknown: true, want: media.StatusContinuing},
		"first to come":   {times: []int64{future}, want: media.StatusUpcoming},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			if got := derive(tc.times, tc.unknown, now); got != tc.want {
				t.Errorf("derive() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestBuildCachesAndMergesSources(t *testing.T) {
	t.Parallel()
	tvdb := packer("tvdb", breakingBad("tvdb", "Good Cop Bad Cop"))
	trakt := packer("trakt", breakingBad("trakt", "Good Cop / Bad Cop"))
	c := cache.New(cache.NewMemoryStore(""))
	b := New(newAggregator(t, tvdb, trakt), WithCache(c, cache.TTLWeek), WithClock(func() time.Time { return now }))

	for i := 0; i < 2; i++ {
		p, err := b.Build(context.Background(), media.IDs{"tvdb": "81189"})
		if err != nil {
			t.Fatalf("Build() error = %v", err)
		}
		checkInvariants(t, p)
		if !p.Complete || p.Count.Episode.Main != 62 || p.Count.Special != 1 {
			t.Errorf("pack = complete %v, %d main, %d specials", p.Complete, p.Count.Episode.Main, p.Count.Special)
		}
		if p.IDs.Get("imdb") != "tt0903747" {
			t.Errorf("IDs = %v", p.IDs)
		}
	}
	if tvdb.Calls(media.KindPack) != 1 || trakt.Calls(media.KindPack) != 1 {
		t.Errorf("pack calls = %d/%d, want 1/1", tvdb.Calls(media.KindPack), trakt.Calls(media.KindPack))
	}
}

func TestBuildPartialIsNotKept(t *testing.T) {
	t.Parallel()
	tvdb := packer("tvdb", breakingBad("tvdb"))
	trakt := providertest.New("trakt", []media.Kind{media.KindPack}, media.Show)
	trakt.PackFunc = func(context.Context, media.IDs, []int) (*provider.Listing, error) {
		return nil, provider.ServerError("trakt", 502, nil)
	}
	c := cache.New(cache.NewMemoryStore(""))
	b := New(newAggregator(t, tvdb, trakt), WithCache(c, cache.TTLWeek))

	for i := 0; i < 2; i++ {
		p, err := b.Build(context.Background(), media.IDs{"tvdb": "81189"})
		if err != nil {
			t.Fatalf("Build() error = %v", err)
		}
		if p.Complete {
			t.Error("Complete = true, want false with a failed provider")
		}
	}
	if got := tvdb.Calls(media.KindPack); got != 2 {
		t.Errorf("tvdb pack calls = %d, want 2", got)
	}
}

func TestBuildUsesKnownListings(t *testing.T) {
	t.Parallel()
	tvdb := packer("tvdb", breakingBad("tvdb"))
	b := New(newAggregator(t, tvdb))

	p, err := b.Build(context.Background(), media.IDs{"tvdb": "81189"}, breakingBad("tvdb"))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if p.Count.Episode.Main != 62 {
		t.Errorf("main episodes = %d, want 62", p.Count.Episode.Main)
	}
	if got := tvdb.Calls(media.KindPack); got != 0 {
		t.Errorf("tvdb pack calls = %d, want 0", got)
	}
}

func TestBuildRequiresIDs(t *testing.T) {
	t.Parallel()
	b := New(newAggregator(t))
	if _, err := b.Build(context.Background(), nil); err != media.ErrInvalidRequest {
		t.Errorf("Build(nil) error = %v, want ErrInvalidRequest", err)
	}
	if _, err := b.Build(context.Background(), media.IDs{"tvdb": "1"}); err != provider.ErrUnsupported {
		t.Errorf("Build() with no packers error = %v, want ErrUnsupported", err)
	}
}
