package pack

import (
	"regexp"
	"slices"

	"github.com/gaiakodi/gaiasource/internal/media"
)

const (
	// titleMatch is the similarity at which two episode titles are the same
	// episode whatever their numbers.
	titleMatch = 0.8
	// numberMatch is the similarity below which equal numbers are not
	// trusted when both episodes carry a real title.
	numberMatch = 0.5
)

var genericTitle = regexp.MustCompile(`(?i)^\s*(episode|ep\.?|chapter|part)\s*#?\d+\s*$`)

// align folds the episodes one provider lists for a season into the slots
// already collected. Episodes pair by title similarity first and by number
// second; unmatched episodes are appended under their own number, or after
// the last one when that number is taken.
func align(slots []*slot, eps []media.Record, source string) []*slot {
	if len(slots) == 0 {
		out := make([]*slot, 0, len(eps))
		for _, e := range eps {
			out = append(out, &slot{rec: e.Clone(), sources: []string{source}})
		}
		return out
	}

	matched := make([]bool, len(slots))
	pending := make([]media.Record, 0, len(eps))
	pairs := make(map[int]int, len(eps))

	for i, e := range eps {
		if j := byTitle(slots, matched, e); j >= 0 {
			matched[j] = true
			pairs[i] = j
		}
	}
	for i, e := range eps {
		if _, ok := pairs[i]; ok {
			continue
		}
		if j := byNumber(slots, matched, e); j >= 0 {
			matched[j] = true
			pairs[i] = j
			continue
		}
		pending = append(pending, e)
	}

	for i, e := range eps {
		j, ok := pairs[i]
		if !ok {
			continue
		}
		sl := slots[j]
		sl.rec = media.Merge(sl.rec, e)
		if !slices.Contains(sl.sources, source) {
			sl.sources = append(sl.sources, source)
		}
	}

	taken := make(map[int]bool, len(slots))
	last := 0
	for _, sl := range slots {
		taken[sl.rec.Episode] = true
		last = max(last, sl.rec.Episode)
	}
	for _, e := range pending {
		r := e.Clone()
		if taken[r.Episode] {
			last++
			r.Episode = last
		}
		taken[r.Episode] = true
		last = max(last, r.Episode)
		slots = append(slots, &slot{rec: r, sources: []string{source}})
	}
	return slots
}

func byTitle(slots []*slot, matched []bool, e media.Record) int {
	if !named(e.Title) {
		return -1
	}
	best, at := 0.0, -1
	for j, sl := range slots {
		if matched[j] || !named(sl.rec.Title) {
			continue
		}
		if sim := media.Similarity(e.Title, sl.rec.Title); sim >= titleMatch && sim > best {
			best, at = sim, j
		}
	}
	return at
}

func byNumber(slots []*slot, matched []bool, e media.Record) int {
	for j, sl := range slots {
		if matched[j] || sl.rec.Episode != e.Episode {
			continue
		}
		if named(e.Title) && named(sl.rec.Title) && media.Similarity(e.Title, sl.rec.Title) < numberMatch {
			return -1
		}
		return j
	}
	return -1
}

// named reports whether a title names the episode rather than its position.
func named(title string) bool {
	return media.Fold(title) != "" && !genericTitle.MatchString(title)
}
