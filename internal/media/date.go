package media

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	// DateLayout is the wire format of calendar dates.
	DateLayout = "2006-01-02"
	day        = 24 * time.Hour
	// integers with a smaller magnitude are day offsets, larger ones are
	// unix seconds
	dayOffsetLimit = 100000
)

// Day truncates t to midnight UTC.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseTime accepts RFC 3339 timestamps and ISO dates. Empty input yields the
// zero time.
func ParseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", DateLayout} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	if len(s) == 4 {
		if y, err := strconv.Atoi(s); err == nil && y > 1800 {
			return time.Date(y, 1, 1, 0, 0, 0, 0, time.UTC)
		}
	}
	return time.Time{}
}

// ParseDate converts a caller supplied date into a time. Integers below the
// offset limit are days relative to today, larger integers are unix seconds,
// strings are ISO dates or timestamps.
func ParseDate(v any, now time.Time) (time.Time, error) {
	switch x := v.(type) {
	case time.Time:
		return x.UTC(), nil
	case int:
		return fromNumber(int64(x), now), nil
	case int64:
		return fromNumber(x, now), nil
	case float64:
		if x != math.Trunc(x) {
			return time.Time{}, fmt.Errorf("date %v is not integral", x)
		}
		return fromNumber(int64(x), now), nil
	case json.Number:
		n, err := x.Int64()
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid date %q: %w", x, err)
		}
		return fromNumber(n, now), nil
	case string:
		s := strings.TrimSpace(x)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return fromNumber(n, now), nil
		}
		t := ParseTime(s)
		if t.IsZero() {
			return time.Time{}, fmt.Errorf("invalid date %q", x)
		}
		return t, nil
	}
	return time.Time{}, fmt.Errorf("unsupported date value %T", v)
}

func fromNumber(n int64, now time.Time) time.Time {
	if n > -dayOffsetLimit && n < dayOffsetLimit {
		return Day(now).Add(time.Duration(n) * day)
	}
	return time.Unix(n, 0).UTC()
}

// Window is an inclusive range of calendar days.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// ParseWindow accepts a [start, end] pair, a single date (one-day window) or
// a day count: positive counts look back from today, negative counts look
// forward.
func ParseWindow(v any, now time.Time) (Window, error) {
	switch x := v.(type) {
	case Window:
		return x.normalize(), nil
	case []any:
		if len(x) != 2 {
			return Window{}, fmt.Errorf("window needs two bounds, got %d", len(x))
		}
		return pair(x[0], x[1], now)
	case []string:
		if len(x) != 2 {
			return Window{}, fmt.Errorf("window needs two bounds, got %d", len(x))
		}
		return pair(x[0], x[1], now)
	case int:
		return Days(x, now), nil
	case string:
		if parts := strings.Split(x, ".."); len(parts) == 2 {
			return pair(parts[0], parts[1], now)
		}
		if n, err := strconv.Atoi(strings.TrimSpace(x)); err == nil && n > -dayOffsetLimit && n < dayOffsetLimit {
			return Days(n, now), nil
		}
	}
	t, err := ParseDate(v, now)
	if err != nil {
		return Window{}, err
	}
	return Window{Start: Day(t), End: Day(t)}, nil
}

func pair(a, b any, now time.Time) (Window, error) {
	start, err := ParseDate(a, now)
	if err != nil {
		return Window{}, err
	}
	end, err := ParseDate(b, now)
	if err != nil {
		return Window{}, err
	}
	return Window{Start: start, End: end}.normalize(), nil
}

// Days builds a window of n days ending today (n > 0) or starting today
// (n < 0).
func Days(n int, now time.Time) Window {
	today := Day(now)
	if n >= 0 {
		return Window{Start: today.Add(-time.Duration(n) * day), End: today}
	}
	return Window{Start: today, End: today.Add(time.Duration(-n) * day)}
}

func (w Window) normalize() Window {
	w.Start, w.End = Day(w.Start), Day(w.End)
	if w.End.Before(w.Start) {
		w.Start, w.End = w.End, w.Start
	}
	return w
}

// Length is the number of calendar days covered, both ends included.
func (w Window) Length() int {
	return int(Day(w.End).Sub(Day(w.Start))/day) + 1
}

// Contains reports whether t falls on one of the window's days.
func (w Window) Contains(t time.Time) bool {
	d := Day(t)
	return !d.Before(Day(w.Start)) && !d.After(Day(w.End))
}

// ExclusiveEnd is the day after End, for upstreams that treat the upper
// bound exclusively.
func (w Window) ExclusiveEnd() time.Time {
	return Day(w.End).Add(day)
}

// Chunks splits the window into blocks of at most size days, walking back
// from End. The final block is not clipped to Start.
func (w Window) Chunks(size int) []Window {
	w = w.normalize()
	if size <= 0 || w.Length() <= size {
		return []Window{w}
	}
	var out []Window
	end := w.End
	for {
		start := end.Add(-time.Duration(size-1) * day)
		out = append(out, Window{Start: start, End: end})
		if !start.After(w.Start) {
			break
		}
		end = start.Add(-day)
	}
	return out
}

func (w Window) String() string {
	return w.Start.Format(DateLayout) + ".." + w.End.Format(DateLayout)
}
