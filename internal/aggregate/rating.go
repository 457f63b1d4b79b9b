package aggregate

import (
	"math"
	"slices"
	"sort"
	"time"

	"github.com/gaiakodi/gaiasource/internal/media"
)

// Method is a rating reconciliation method. Any value that is not one of the
// averages names a single vote source, e.g. "imdb" or "tmdb".
type Method string

const (
	MethodAverage  Method = "average"
	MethodWeighted Method = "average_weighted"
	MethodLimited  Method = "average_limited"
)

const (
	// assumedVotes weighs a rating reported without a vote count.
	assumedVotes = 10
	// placeholderWindow is how long after a premiere a 1.0 rating with a
	// single vote is ignored.
	placeholderWindow = 7 * 24 * time.Hour
	limitFloor        = 500
	limitTrigger      = 1000
)

// Policy selects how the per-source votes of a record become its headline
// rating.
type Policy struct {
	Main     Method `toml:"main" json:"main"`
	Fallback Method `toml:"fallback" json:"fallback"`
	// User attaches the user's own rating when one is known.
	User bool `toml:"user" json:"user"`
	// UserReplace makes the user rating the headline rating.
	UserReplace bool `toml:"user_replace" json:"user_replace"`
}

// DefaultPolicy is the weighted average with the plain average as fallback.
func DefaultPolicy() Policy {
	return Policy{Main: MethodWeighted, Fallback: MethodAverage, User: true}
}

// IsAverage reports whether m is one of the averaging methods.
func (m Method) IsAverage() bool {
	return m == MethodAverage || m == MethodWeighted || m == MethodLimited
}

// Reconcile applies one method to a vote set. ok is false when no vote
// could be used.
func Reconcile(votes map[string]media.Vote, m Method) (rating float64, count int, ok bool) {
	if len(votes) == 0 {
		return 0, 0, false
	}
	switch m {
	case MethodAverage:
		var sum float64
		for _, v := range votes {
			sum += v.Rating
			count += v.Votes
		}
		return clamp(sum / float64(len(votes))), count, true
	case MethodWeighted:
		return weighted(votes, false)
	case MethodLimited:
		return weighted(votes, true)
	case "":
		return 0, 0, false
	}
	v, found := votes[string(m)]
	if !found {
		return 0, 0, false
	}
	return clamp(v.Rating), v.Votes, true
}

func weighted(votes map[string]media.Vote, limited bool) (float64, int, bool) {
	// fixed iteration order keeps float sums reproducible
	names := make([]string, 0, len(votes))
	for name := range votes {
		names = append(names, name)
	}
	sort.Strings(names)

	weights := make([]float64, len(names))
	total := 0
	for i, name := range names {
		v := votes[name]
		total += v.Votes
		weights[i] = float64(v.Votes)
		if v.Votes <= 0 {
			weights[i] = assumedVotes
		}
	}
	if limited && len(weights) > 1 {
		limit(weights)
	}

	var num, den float64
	for i, name := range names {
		num += votes[name].Rating * weights[i]
		den += weights[i]
	}
	if den == 0 {
		return 0, 0, false
	}
	return clamp(num / den), total, true
}

// limit caps the largest weight at twice the second largest when both are
// large enough to matter.
func limit(weights []float64) {
	order := make([]int, len(weights))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		switch {
		case weights[a] > weights[b]:
			return -1
		case weights[a] < weights[b]:
			return 1
		}
		return 0
	})
	largest, second := weights[order[0]], weights[order[1]]
	if second >= limitFloor && largest >= limitTrigger {
		weights[order[0]] = math.Min(largest, 2*second)
	}
}

func clamp(r float64) float64 {
	return math.Max(0, math.Min(10, r))
}

// usable drops placeholder votes: exactly 1.0 from exactly one voter on a
// title that premiered less than a week ago or not yet.
func usable(r media.Record, now time.Time) map[string]media.Vote {
	released := r.Released()
	if released.IsZero() || now.Sub(released) >= placeholderWindow {
		return r.Voting.Providers
	}
	out := make(map[string]media.Vote, len(r.Voting.Providers))
	for name, v := range r.Voting.Providers {
		if v.Rating == 1 && v.Votes == 1 {
			continue
		}
		out[name] = v
	}
	return out
}

// Rate reconciles the votes of r with the main method, then the fallback,
// then the weighted average.
func (p Policy) Rate(r media.Record, now time.Time) (float64, int, bool) {
	votes := usable(r, now)
	for _, m := range []Method{p.Main, p.Fallback, MethodWeighted} {
		if rating, count, ok := Reconcile(votes, m); ok {
			return rating, count, true
		}
	}
	return 0, 0, false
}

// Apply sets the headline rating and votes of r.
func (p Policy) Apply(r *media.Record, now time.Time) {
	if rating, count, ok := p.Rate(*r, now); ok {
		r.Rating = rating
		r.Votes = count
	}
	if !p.User {
		r.Voting.User = nil
		return
	}
	if p.UserReplace && r.Voting.User != nil {
		r.Rating = clamp(*r.Voting.User)
	}
}
