package media

import (
	"sort"
	"time"
)

// metric names read from provider temp bags by the server-side sorts
var sortMetric = map[Sort]string{
	SortPopular:     "popularity",
	SortTrending:    "watchers",
	SortPlayed:      "plays",
	SortWatched:     "watched",
	SortCollected:   "collected",
	SortAnticipated: "lists",
}

// SortRecords orders records in place. Ties fall back to rank and then to
// title so the result never depends on input arrival order. Server-side
// sorts use the upstream metric when every record carries it and the merged
// rank otherwise.
func SortRecords(records []Record, s Sort, o Order) {
	if s == "" {
		s = SortRank
	}
	if o == "" {
		o = DefaultOrder(s)
	}
	desc := o == Descending

	var key func(Record) (float64, bool)
	switch s {
	case SortNewest, SortOldest:
		key = timeKey(Record.Released)
	case SortLaunched:
		key = timeKey(Record.Launched)
	case SortHome:
		key = timeKey(Record.HomeRelease)
	case SortRating:
		key = func(r Record) (float64, bool) { return r.Rating, r.Rating > 0 }
	case SortVotes:
		key = func(r Record) (float64, bool) { return float64(r.Votes), r.Votes > 0 }
	case SortTitle:
		sort.SliceStable(records, func(i, j int) bool {
			a, b := Fold(records[i].Title), Fold(records[j].Title)
			if a == b {
				return rankLess(records[i], records[j])
			}
			if desc {
				return a > b
			}
			return a < b
		})
		return
	default:
		if name, ok := sortMetric[s]; ok && allHave(records, name) {
			key = func(r Record) (float64, bool) { return r.Metric(name) }
		} else {
			sort.SliceStable(records, func(i, j int) bool { return rankLess(records[i], records[j]) })
			return
		}
	}

	sort.SliceStable(records, func(i, j int) bool {
		a, okA := key(records[i])
		b, okB := key(records[j])
		switch {
		case okA && !okB:
			return true
		case !okA && okB:
			return false
		case a == b:
			return rankLess(records[i], records[j])
		case desc:
			return a > b
		default:
			return a < b
		}
	})
}

func timeKey(fn func(Record) time.Time) func(Record) (float64, bool) {
	return func(r Record) (float64, bool) {
		t := fn(r)
		return float64(t.Unix()), !t.IsZero()
	}
}

func allHave(records []Record, metric string) bool {
	for _, r := range records {
		if _, ok := r.Metric(metric); !ok {
			return false
		}
	}
	return len(records) > 0
}

func rankLess(a, b Record) bool {
	ra, rb := a.Rank, b.Rank
	if ra == 0 {
		ra = int(^uint(0) >> 1)
	}
	if rb == 0 {
		rb = int(^uint(0) >> 1)
	}
	if ra != rb {
		return ra < rb
	}
	return Fold(a.Title) < Fold(b.Title)
}
