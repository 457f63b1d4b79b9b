package pack

import (
	"slices"
	"time"

	"github.com/gaiakodi/gaiasource/internal/media"
)

// number fills the absolute and sequential schemes. Regular episodes count
// contiguously across the non-special seasons; specials get sequential
// [1, 0] and are not counted. Absolute numbers follow the aligned order, so
// upstream absolute numbers are replaced.
func number(seasons []media.PackSeason) {
	running := 0
	for i := range seasons {
		s := &seasons[i]
		n := s.Number.Standard.Season
		if n == 0 {
			s.Number.Absolute = media.Number{Season: 0}
			s.Number.Sequential = media.Number{Season: 1}
			for j := range s.Episodes {
				e := &s.Episodes[j]
				e.Number.Absolute = media.Number{Season: 0, Episode: e.Number.Standard.Episode}
				e.Number.Sequential = media.Number{Season: 1, Episode: 0}
			}
			continue
		}
		s.Number.Absolute = media.Number{Season: 1}
		s.Number.Sequential = media.Number{Season: 1}
		for j := range s.Episodes {
			e := &s.Episodes[j]
			running++
			e.Number.Absolute = media.Number{Season: 1, Episode: running, Index: running}
			e.Number.Sequential = media.Number{Season: 1, Episode: running, Index: running}
		}
	}
}

// summarize computes the per-season and show-level counts, durations, time
// spans and statuses. Show-level spans cover the regular seasons only,
// unless the show has nothing but specials.
func summarize(p *media.Pack, status media.Status, now time.Time) {
	var (
		mainDur, allDur     []int
		mainTime, allTime   []int64
		mainYears, allYears []int64
		mainUnknown         bool
	)
	for i := range p.Seasons {
		s := &p.Seasons[i]
		var durations []int
		var times, years []int64
		unknown := false
		for _, e := range s.Episodes {
			if e.Duration > 0 {
				durations = append(durations, e.Duration)
			}
			if e.Time != 0 {
				times = append(times, e.Time)
			} else {
				unknown = true
			}
			if e.Year > 0 {
				years = append(years, int64(e.Year))
			}
		}
		s.Duration = stats(durations)
		s.Time = span(times)
		s.Year = span(years)
		if s.Status == "" {
			s.Status = derive(times, unknown, now)
		}

		allDur = append(allDur, durations...)
		allTime = append(allTime, times...)
		allYears = append(allYears, years...)
		p.Count.Season.Total++
		p.Count.Episode.Total += s.Count
		if s.Number.Standard.Season == 0 {
			p.Count.Special += s.Count
			continue
		}
		p.Count.Season.Main++
		p.Count.Episode.Main += s.Count
		mainDur = append(mainDur, durations...)
		mainTime = append(mainTime, times...)
		mainYears = append(mainYears, years...)
		mainUnknown = mainUnknown || unknown
	}

	if p.Count.Season.Total > 0 {
		p.Count.Mean.Total = float64(p.Count.Episode.Total) / float64(p.Count.Season.Total)
	}
	if p.Count.Season.Main > 0 {
		p.Count.Mean.Main = float64(p.Count.Episode.Main) / float64(p.Count.Season.Main)
	}

	if p.Count.Season.Main == 0 {
		mainDur, mainTime, mainYears = allDur, allTime, allYears
		mainUnknown = p.Count.Episode.Total > len(allTime)
	}
	p.Duration = stats(mainDur)
	p.Time = span(mainTime)
	p.Year = span(mainYears)
	p.Status = status
	if p.Status == "" {
		p.Status = derive(mainTime, mainUnknown, now)
	}
}

// classify marks premieres and finales on episodes the upstreams left
// untyped. The last episode of the show is a series finale only once the
// show has ended.
func classify(p *media.Pack) {
	lastMain := -1
	for i, s := range p.Seasons {
		if s.Number.Standard.Season > 0 && len(s.Episodes) > 0 {
			lastMain = i
		}
	}
	first := true
	for i := range p.Seasons {
		s := &p.Seasons[i]
		if s.Number.Standard.Season == 0 || len(s.Episodes) == 0 {
			continue
		}
		for j := range s.Episodes {
			e := &s.Episodes[j]
			if e.Type != "" {
				continue
			}
			e.Type = media.EpisodeStandard
			switch {
			case j == 0 && first:
				e.Type = media.EpisodeSeriesPremiere
			case j == 0:
				e.Type = media.EpisodeSeasonPremiere
			case j == len(s.Episodes)-1 && i == lastMain && ended(p.Status):
				e.Type = media.EpisodeSeriesFinale
			case j == len(s.Episodes)-1 && (i != lastMain || ended(s.Status)):
				e.Type = media.EpisodeSeasonFinale
			}
		}
		first = false
	}
}

func ended(s media.Status) bool {
	return s == media.StatusEnded || s == media.StatusCanceled
}

// derive infers a status from release times: nothing aired yet is
// upcoming, everything aired is ended, anything else is continuing.
func derive(times []int64, unknown bool, now time.Time) media.Status {
	if len(times) == 0 {
		return media.StatusUpcoming
	}
	cut := now.Unix()
	if slices.Min(times) > cut {
		return media.StatusUpcoming
	}
	if unknown || slices.Max(times) > cut {
		return media.StatusContinuing
	}
	return media.StatusEnded
}

func stats(values []int) media.Stats {
	if len(values) == 0 {
		return media.Stats{}
	}
	s := media.Stats{Min: values[0], Max: values[0]}
	for _, v := range values {
		s.Total += v
		s.Min = min(s.Min, v)
		s.Max = max(s.Max, v)
	}
	s.Mean = s.Total / len(values)
	s.Range = s.Max - s.Min
	return s
}

func span(values []int64) media.Span {
	if len(values) == 0 {
		return media.Span{}
	}
	list := slices.Clone(values)
	slices.Sort(list)
	list = slices.Compact(list)
	return media.Span{Start: list[0], End: list[len(list)-1], List: list}
}
