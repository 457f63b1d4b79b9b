package media

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sort"
	"time"
)

// CastMember is one credited performer.
type CastMember struct {
	Name      string `json:"name"`
	Role      string `json:"role,omitempty"`
	Order     int    `json:"order"`
	Thumbnail string `json:"thumbnail,omitempty"`
}

// Vote is one provider's rating.
type Vote struct {
	Rating float64 `json:"rating"`
	Votes  int     `json:"votes"`
}

// Voting keeps per-provider ratings apart until reconciliation.
type Voting struct {
	Providers    map[string]Vote `json:"providers,omitempty"`
	User         *float64        `json:"user,omitempty"`
	Distribution []int           `json:"distribution,omitempty"`
}

// Record is the normalized representation of a catalog entry. Seasons and
// episodes reference their show through Show ids, never through pointers.
type Record struct {
	Media         Media                     `json:"media"`
	IDs           IDs                       `json:"ids"`
	Show          IDs                       `json:"show,omitempty"`
	Title         string                    `json:"title,omitempty"`
	OriginalTitle string                    `json:"original_title,omitempty"`
	Year          int                       `json:"year,omitempty"`
	Premiered     time.Time                 `json:"premiered,omitzero"`
	Aired         time.Time                 `json:"aired,omitzero"`
	Season        int                       `json:"season,omitempty"`
	Episode       int                       `json:"episode,omitempty"`
	Absolute      int                       `json:"absolute,omitempty"`
	Type          EpisodeType               `json:"type,omitempty"`
	Genres        []string                  `json:"genres,omitempty"`
	Languages     []string                  `json:"languages,omitempty"`
	Countries     []string                  `json:"countries,omitempty"`
	Duration      int                       `json:"duration,omitempty"`
	Status        Status                    `json:"status,omitempty"`
	Studios       []string                  `json:"studios,omitempty"`
	Networks      []string                  `json:"networks,omitempty"`
	Certificate   string                    `json:"certificate,omitempty"`
	Plot          string                    `json:"plot,omitempty"`
	Tagline       string                    `json:"tagline,omitempty"`
	Rating        float64                   `json:"rating,omitempty"`
	Votes         int                       `json:"votes,omitempty"`
	Voting        Voting                    `json:"voting,omitzero"`
	Cast          []CastMember              `json:"cast,omitempty"`
	Director      []string                  `json:"director,omitempty"`
	Writer        []string                  `json:"writer,omitempty"`
	Creator       []string                  `json:"creator,omitempty"`
	Trailer       string                    `json:"trailer,omitempty"`
	Homepage      string                    `json:"homepage,omitempty"`
	Time          map[ReleaseKind]time.Time `json:"time,omitempty"`
	Count         map[string]int            `json:"count,omitempty"`
	Aliases       []string                  `json:"aliases,omitempty"`
	Keywords      []string                  `json:"keywords,omitempty"`
	Parts         []IDs                     `json:"parts,omitempty"`
	Action        string                    `json:"action,omitempty"`
	Rank          int                       `json:"rank,omitempty"`
	Pack          *Pack                     `json:"pack,omitempty"`
	Complete      bool                      `json:"complete"`
	Extras        map[string]map[string]any `json:"extras,omitempty"`
}

var (
	ErrNoIDs   = errors.New("record has no ids")
	ErrNoMedia = errors.New("record has no media")
)

// Validate checks the structural invariants every returned record obeys.
func (r Record) Validate() error {
	if !r.Media.Valid() {
		return ErrNoMedia
	}
	if r.IDs.Empty() {
		return ErrNoIDs
	}
	if r.Media == Season || r.Media == Episode {
		if r.Season < 0 {
			return fmt.Errorf("season %d out of range", r.Season)
		}
	}
	if r.Media == Episode && r.Episode < 0 {
		return fmt.Errorf("episode %d out of range", r.Episode)
	}
	return nil
}

// Released is the primary release time: premiere, then air date, then the
// earliest known release event.
func (r Record) Released() time.Time {
	if !r.Premiered.IsZero() {
		return r.Premiered
	}
	if !r.Aired.IsZero() {
		return r.Aired
	}
	return r.Launched()
}

// Launched is the earliest release of any kind.
func (r Record) Launched() time.Time {
	var first time.Time
	for _, t := range r.Time {
		if t.IsZero() {
			continue
		}
		if first.IsZero() || t.Before(first) {
			first = t
		}
	}
	if !r.Premiered.IsZero() && (first.IsZero() || r.Premiered.Before(first)) {
		first = r.Premiered
	}
	return first
}

// HomeRelease is the earliest digital or physical release.
func (r Record) HomeRelease() time.Time {
	var first time.Time
	for _, k := range []ReleaseKind{ReleaseDigital, ReleasePhysical} {
		t := r.Time[k]
		if t.IsZero() {
			continue
		}
		if first.IsZero() || t.Before(first) {
			first = t
		}
	}
	return first
}

// SetTime records a release event, keeping the earliest per kind.
func (r *Record) SetTime(kind ReleaseKind, t time.Time) {
	if t.IsZero() {
		return
	}
	if r.Time == nil {
		r.Time = make(map[ReleaseKind]time.Time)
	}
	if cur, ok := r.Time[kind]; !ok || t.Before(cur) {
		r.Time[kind] = t
	}
}

// SetExtra stores a provider-specific value in the temp bag.
func (r *Record) SetExtra(provider, key string, value any) {
	if r.Extras == nil {
		r.Extras = make(map[string]map[string]any)
	}
	if r.Extras[provider] == nil {
		r.Extras[provider] = make(map[string]any)
	}
	r.Extras[provider][key] = value
}

// Extra reads a provider-specific value.
func (r Record) Extra(provider, key string) (any, bool) {
	bag, ok := r.Extras[provider]
	if !ok {
		return nil, false
	}
	v, ok := bag[key]
	return v, ok
}

// Metric returns the first numeric extra named key across providers in name
// order.
func (r Record) Metric(key string) (float64, bool) {
	names := make([]string, 0, len(r.Extras))
	for name := range r.Extras {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		switch v := r.Extras[name][key].(type) {
		case float64:
			return v, true
		case float32:
			return float64(v), true
		case int:
			return float64(v), true
		case int64:
			return float64(v), true
		}
	}
	return 0, false
}

// StripExtras drops the temp bags before a record leaves the core.
func (r *Record) StripExtras() {
	r.Extras = nil
}

// Clone returns a deep copy.
func (r Record) Clone() Record {
	out := r
	out.IDs = r.IDs.Clone()
	out.Show = r.Show.Clone()
	out.Genres = slices.Clone(r.Genres)
	out.Languages = slices.Clone(r.Languages)
	out.Countries = slices.Clone(r.Countries)
	out.Studios = slices.Clone(r.Studios)
	out.Networks = slices.Clone(r.Networks)
	out.Cast = slices.Clone(r.Cast)
	out.Director = slices.Clone(r.Director)
	out.Writer = slices.Clone(r.Writer)
	out.Creator = slices.Clone(r.Creator)
	out.Aliases = slices.Clone(r.Aliases)
	out.Keywords = slices.Clone(r.Keywords)
	out.Time = maps.Clone(r.Time)
	out.Count = maps.Clone(r.Count)
	out.Voting.Providers = maps.Clone(r.Voting.Providers)
	out.Voting.Distribution = slices.Clone(r.Voting.Distribution)
	if r.Voting.User != nil {
		u := *r.Voting.User
		out.Voting.User = &u
	}
	if r.Parts != nil {
		out.Parts = make([]IDs, len(r.Parts))
		for i, p := range r.Parts {
			out.Parts[i] = p.Clone()
		}
	}
	if r.Extras != nil {
		out.Extras = make(map[string]map[string]any, len(r.Extras))
		for k, bag := range r.Extras {
			out.Extras[k] = maps.Clone(bag)
		}
	}
	if r.Pack != nil {
		p := r.Pack.Clone()
		out.Pack = &p
	}
	return out
}

// SetVote records a provider's rating, ignoring out-of-range values.
func (r *Record) SetVote(provider string, rating float64, votes int) {
	if rating <= 0 || rating > 10 || votes < 0 {
		return
	}
	if r.Voting.Providers == nil {
		r.Voting.Providers = make(map[string]Vote)
	}
	r.Voting.Providers[provider] = Vote{Rating: rating, Votes: votes}
}
