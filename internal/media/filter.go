package media

import (
	"slices"
	"strings"
)

// Range is a numeric interval with optional bounds.
type Range struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

func Between(lo, hi float64) *Range { return &Range{Min: &lo, Max: &hi} }
func AtLeast(lo float64) *Range     { return &Range{Min: &lo} }
func AtMost(hi float64) *Range      { return &Range{Max: &hi} }

// Contains reports whether v lies inside the range.
func (r *Range) Contains(v float64) bool {
	if r == nil {
		return true
	}
	if r.Min != nil && v < *r.Min {
		return false
	}
	if r.Max != nil && v > *r.Max {
		return false
	}
	return true
}

func (r *Range) clone() *Range {
	if r == nil {
		return nil
	}
	out := &Range{}
	if r.Min != nil {
		v := *r.Min
		out.Min = &v
	}
	if r.Max != nil {
		v := *r.Max
		out.Max = &v
	}
	return out
}

// GenreFilter selects by genre. With Primary set, the first genre of a record
// must be one of Include.
type GenreFilter struct {
	Include []string `json:"include,omitempty"`
	Exclude []string `json:"exclude,omitempty"`
	Primary bool     `json:"primary,omitempty"`
}

// ShortFilter is the duration-or-genre disjunction: a record qualifies when it
// runs at most MaxDuration seconds or carries one of Genres.
type ShortFilter struct {
	MaxDuration int      `json:"max_duration"`
	Genres      []string `json:"genres,omitempty"`
}

// Filters is the filter bag of a request. Durations are in seconds.
type Filters struct {
	Year        *Range        `json:"year,omitempty"`
	Date        *Window       `json:"date,omitempty"`
	Duration    *Range        `json:"duration,omitempty"`
	Genre       *GenreFilter  `json:"genre,omitempty"`
	Short       *ShortFilter  `json:"short,omitempty"`
	Language    []string      `json:"language,omitempty"`
	Country     []string      `json:"country,omitempty"`
	Certificate []string      `json:"certificate,omitempty"`
	Status      []Status      `json:"status,omitempty"`
	EpisodeType []EpisodeType `json:"episode_type,omitempty"`
	Company     []string      `json:"company,omitempty"`
	Studio      []string      `json:"studio,omitempty"`
	Network     []string      `json:"network,omitempty"`
	Rating      *Range        `json:"rating,omitempty"`
	RatingTier  string        `json:"rating_tier,omitempty"`
	Votes       *Range        `json:"votes,omitempty"`
	Award       []string      `json:"award,omitempty"`
	Keyword     []string      `json:"keyword,omitempty"`
	Action      []string      `json:"action,omitempty"`
	Seasons     *Range        `json:"seasons,omitempty"`
	Release     []ReleaseKind `json:"release,omitempty"`
}

// Empty reports whether no filter is set.
func (f Filters) Empty() bool {
	return f.Year == nil && f.Date == nil && f.Duration == nil && f.Genre == nil && f.Short == nil &&
		len(f.Language) == 0 && len(f.Country) == 0 && len(f.Certificate) == 0 && len(f.Status) == 0 &&
		len(f.EpisodeType) == 0 && len(f.Company) == 0 && len(f.Studio) == 0 && len(f.Network) == 0 &&
		f.Rating == nil && f.RatingTier == "" && f.Votes == nil && len(f.Award) == 0 && len(f.Keyword) == 0 &&
		len(f.Action) == 0 && f.Seasons == nil && len(f.Release) == 0
}

// Clone returns an independent copy.
func (f Filters) Clone() Filters {
	out := f
	out.Year = f.Year.clone()
	out.Duration = f.Duration.clone()
	out.Rating = f.Rating.clone()
	out.Votes = f.Votes.clone()
	out.Seasons = f.Seasons.clone()
	if f.Date != nil {
		w := *f.Date
		out.Date = &w
	}
	if f.Genre != nil {
		g := GenreFilter{Include: slices.Clone(f.Genre.Include), Exclude: slices.Clone(f.Genre.Exclude), Primary: f.Genre.Primary}
		out.Genre = &g
	}
	if f.Short != nil {
		s := ShortFilter{MaxDuration: f.Short.MaxDuration, Genres: slices.Clone(f.Short.Genres)}
		out.Short = &s
	}
	out.Language = slices.Clone(f.Language)
	out.Country = slices.Clone(f.Country)
	out.Certificate = slices.Clone(f.Certificate)
	out.Status = slices.Clone(f.Status)
	out.EpisodeType = slices.Clone(f.EpisodeType)
	out.Company = slices.Clone(f.Company)
	out.Studio = slices.Clone(f.Studio)
	out.Network = slices.Clone(f.Network)
	out.Award = slices.Clone(f.Award)
	out.Keyword = slices.Clone(f.Keyword)
	out.Action = slices.Clone(f.Action)
	out.Release = slices.Clone(f.Release)
	return out
}

// Merge fills the filters f leaves unset from other. Genre include/exclude
// lists are unioned.
func (f Filters) Merge(other Filters) Filters {
	out := f.Clone()
	o := other.Clone()
	if out.Year == nil {
		out.Year = o.Year
	}
	if out.Date == nil {
		out.Date = o.Date
	}
	if out.Duration == nil {
		out.Duration = o.Duration
	}
	switch {
	case out.Genre == nil:
		out.Genre = o.Genre
	case o.Genre != nil:
		out.Genre.Include = Union(out.Genre.Include, o.Genre.Include...)
		out.Genre.Exclude = Union(out.Genre.Exclude, o.Genre.Exclude...)
		out.Genre.Primary = out.Genre.Primary || o.Genre.Primary
	}
	if out.Short == nil {
		out.Short = o.Short
	}
	if len(out.Language) == 0 {
		out.Language = o.Language
	}
	if len(out.Country) == 0 {
		out.Country = o.Country
	}
	if len(out.Certificate) == 0 {
		out.Certificate = o.Certificate
	}
	if len(out.Status) == 0 {
		out.Status = o.Status
	}
	if len(out.EpisodeType) == 0 {
		out.EpisodeType = o.EpisodeType
	}
	if len(out.Company) == 0 {
		out.Company = o.Company
	}
	if len(out.Studio) == 0 {
		out.Studio = o.Studio
	}
	if len(out.Network) == 0 {
		out.Network = o.Network
	}
	if out.Rating == nil {
		out.Rating = o.Rating
	}
	if out.RatingTier == "" {
		out.RatingTier = o.RatingTier
	}
	if out.Votes == nil {
		out.Votes = o.Votes
	}
	out.Award = Union(out.Award, o.Award...)
	out.Keyword = Union(out.Keyword, o.Keyword...)
	if len(out.Action) == 0 {
		out.Action = o.Action
	}
	if out.Seasons == nil {
		out.Seasons = o.Seasons
	}
	if len(out.Release) == 0 {
		out.Release = o.Release
	}
	return out
}

// Match evaluates every filter against r. A filter on a field the record
// does not carry passes, except rating and votes floors which read a missing
// value as zero.
func (f Filters) Match(r Record) bool {
	if f.Year != nil && r.Year > 0 && !f.Year.Contains(float64(r.Year)) {
		return false
	}
	if f.Date != nil {
		if t := r.Released(); !t.IsZero() && !f.Date.Contains(t) {
			return false
		}
	}
	if f.Duration != nil && r.Duration > 0 && !f.Duration.Contains(float64(r.Duration)) {
		return false
	}
	if f.Genre != nil && !f.Genre.match(r.Genres) {
		return false
	}
	if f.Short != nil && !f.Short.match(r) {
		return false
	}
	if !memberAny(f.Language, r.Languages) || !memberAny(f.Country, r.Countries) {
		return false
	}
	if len(f.Certificate) > 0 && r.Certificate != "" && !containsFold(f.Certificate, r.Certificate) {
		return false
	}
	if len(f.Status) > 0 && r.Status != "" && !slices.Contains(f.Status, r.Status) {
		return false
	}
	if len(f.EpisodeType) > 0 && r.Media == Episode && r.Type != "" && !slices.Contains(f.EpisodeType, r.Type) {
		return false
	}
	if !memberAny(f.Company, r.Studios) || !memberAny(f.Studio, r.Studios) || !memberAny(f.Network, r.Networks) {
		return false
	}
	if f.Rating != nil && !f.Rating.Contains(r.Rating) {
		return false
	}
	if f.Votes != nil && !f.Votes.Contains(float64(r.Votes)) {
		return false
	}
	if !memberAny(f.Keyword, r.Keywords) {
		return false
	}
	if len(f.Action) > 0 && r.Action != "" && !containsFold(f.Action, r.Action) {
		return false
	}
	if f.Seasons != nil {
		if n, ok := r.Count["seasons"]; ok && !f.Seasons.Contains(float64(n)) {
			return false
		}
	}
	if len(f.Release) > 0 && len(r.Time) > 0 {
		hit := false
		for _, k := range f.Release {
			if !r.Time[k].IsZero() {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	return true
}

// Apply returns the records that match, in their original order.
func (f Filters) Apply(records []Record) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	return out
}

func (g *GenreFilter) match(genres []string) bool {
	if intersects(genres, g.Exclude) {
		return false
	}
	if len(g.Include) == 0 || len(genres) == 0 {
		return true
	}
	if g.Primary {
		return containsFold(g.Include, genres[0])
	}
	return intersects(genres, g.Include)
}

func (s *ShortFilter) match(r Record) bool {
	if r.Duration == 0 && len(r.Genres) == 0 {
		return true
	}
	if r.Duration > 0 && r.Duration <= s.MaxDuration {
		return true
	}
	return intersects(r.Genres, s.Genres)
}

// memberAny passes when no filter is set, the record has no value, or the
// two sets intersect.
func memberAny(filter, values []string) bool {
	if len(filter) == 0 || len(values) == 0 {
		return true
	}
	for _, v := range values {
		if containsFold(filter, v) || containsFold(filter, strings.ReplaceAll(v, " ", "-")) {
			return true
		}
	}
	return false
}
