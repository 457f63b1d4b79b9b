package provider

import (
	"strings"

	"github.com/gaiakodi/gaiasource/internal/media"
)

// Thresholds of title matching.
const (
	// MinTitleMatch is the similarity below which a candidate is rejected.
	MinTitleMatch = 0.6
	// ExactTitleMatch treats near-identical folded titles as the same.
	ExactTitleMatch = 0.95
)

// TitleScore rates how well r matches title and year. Original titles and
// aliases count as well as the main title; a matching year adds a bonus,
// a year one off adds a smaller one when deviation is allowed and any other
// mismatch is a penalty.
func TitleScore(r media.Record, title string, year int, deviation bool) float64 {
	want := bare(title)
	best := 0.0
	for _, t := range append([]string{r.Title, r.OriginalTitle}, r.Aliases...) {
		if t == "" {
			continue
		}
		best = max(best, media.Similarity(bare(t), want))
	}
	if year <= 0 || r.Year <= 0 {
		return best
	}
	switch d := r.Year - year; {
	case d == 0:
		return best + 0.1
	case deviation && (d == 1 || d == -1):
		return best + 0.05
	default:
		return best - 0.2
	}
}

func bare(s string) string {
	return strings.ReplaceAll(media.BareSlug(s), "-", " ")
}

// BestMatch picks the candidate that best matches title and year. Ties keep
// upstream order. ok is false when nothing reaches MinTitleMatch.
func BestMatch(candidates []media.Record, title string, year int, deviation bool) (media.Record, bool) {
	bestIdx, bestScore := -1, 0.0
	for i, r := range candidates {
		score := TitleScore(r, title, year, deviation)
		if score > bestScore {
			bestIdx, bestScore = i, score
		}
	}
	if bestIdx < 0 || bestScore < MinTitleMatch {
		return media.Record{}, false
	}
	return candidates[bestIdx], true
}
