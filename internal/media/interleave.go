package media

import (
	"sort"
	"time"
)

// InterleaveMode places specials inside an episode list.
type InterleaveMode string

const (
	InterleaveNone    InterleaveMode = "none"
	InterleaveNearest InterleaveMode = "nearest"
	InterleaveWithin  InterleaveMode = "within"
)

// Interleave moves season-0 episodes next to their chronologically closest
// regular episodes. In within mode a special only moves when its air date is
// no further than within from a neighbor. Specials without an air date, and
// specials that do not qualify, keep their position.
func Interleave(episodes []Record, mode InterleaveMode, within time.Duration) []Record {
	if mode == "" || mode == InterleaveNone || len(episodes) < 2 {
		return episodes
	}

	var movers []Record
	rest := make([]Record, 0, len(episodes))
	for _, e := range episodes {
		if e.Media == Episode && e.Season == 0 && !e.Aired.IsZero() {
			movers = append(movers, e)
			continue
		}
		rest = append(rest, e)
	}
	if len(movers) == 0 {
		return episodes
	}
	sort.SliceStable(movers, func(i, j int) bool { return movers[i].Aired.Before(movers[j].Aired) })

	out := rest
	var stay []Record
	for _, sp := range movers {
		idx, prev, next := insertionPoint(out, sp.Aired)
		if mode == InterleaveWithin && !near(sp.Aired, prev, next, within) {
			stay = append(stay, sp)
			continue
		}
		out = append(out, Record{})
		copy(out[idx+1:], out[idx:])
		out[idx] = sp
	}
	if len(stay) == 0 {
		return out
	}

	// Non-qualifying specials return to their declared positions relative to
	// the specials that surround them in the input.
	result := make([]Record, 0, len(episodes))
	stayed := make(map[int]bool)
	for _, s := range stay {
		for i, e := range episodes {
			if !stayed[i] && sameEpisode(e, s) {
				stayed[i] = true
				break
			}
		}
	}
	j := 0
	for i := range episodes {
		if stayed[i] {
			result = append(result, episodes[i])
			continue
		}
		if j < len(out) {
			result = append(result, out[j])
			j++
		}
	}
	return append(result, out[j:]...)
}

// insertionPoint finds where t belongs among the dated regular episodes and
// returns the air dates of the regular neighbors on either side.
func insertionPoint(list []Record, t time.Time) (int, time.Time, time.Time) {
	idx := len(list)
	var prev, next time.Time
	for i, e := range list {
		if e.Aired.IsZero() {
			continue
		}
		if e.Aired.After(t) {
			idx = i
			next = e.Aired
			break
		}
		if e.Season != 0 {
			prev = e.Aired
		}
		idx = i + 1
	}
	return idx, prev, next
}

func near(t, prev, next time.Time, within time.Duration) bool {
	if !prev.IsZero() && t.Sub(prev) <= within {
		return true
	}
	return !next.IsZero() && next.Sub(t) <= within
}

func sameEpisode(a, b Record) bool {
	return a.Season == b.Season && a.Episode == b.Episode && a.Title == b.Title && a.Aired.Equal(b.Aired)
}
