package media

import "slices"

// Number is one numbering of a season or episode. Index is the running
// position used by the absolute and sequential schemes.
type Number struct {
	Season  int `json:"season"`
	Episode int `json:"episode"`
	Index   int `json:"index,omitempty"`
}

// Numbering carries the three parallel schemes.
type Numbering struct {
	Standard   Number `json:"standard"`
	Absolute   Number `json:"absolute"`
	Sequential Number `json:"sequential"`
}

// Stats summarizes durations in seconds.
type Stats struct {
	Total int `json:"total"`
	Mean  int `json:"mean"`
	Min   int `json:"min"`
	Max   int `json:"max"`
	Range int `json:"range"`
}

// Span summarizes time stamps (unix seconds) or years.
type Span struct {
	Start int64   `json:"start,omitempty"`
	End   int64   `json:"end,omitempty"`
	List  []int64 `json:"list,omitempty"`
}

type PackEpisode struct {
	Number   Numbering   `json:"number"`
	IDs      IDs         `json:"ids,omitempty"`
	Title    string      `json:"title,omitempty"`
	Type     EpisodeType `json:"type,omitempty"`
	Duration int         `json:"duration,omitempty"`
	Time     int64       `json:"time,omitempty"`
	Year     int         `json:"year,omitempty"`
	Sources  []string    `json:"sources,omitempty"`
}

type PackSeason struct {
	Number   Numbering     `json:"number"`
	IDs      IDs           `json:"ids,omitempty"`
	Title    string        `json:"title,omitempty"`
	Count    int           `json:"count"`
	Episodes []PackEpisode `json:"episodes"`
	Duration Stats         `json:"duration"`
	Time     Span          `json:"time"`
	Year     Span          `json:"year"`
	Status   Status        `json:"status,omitempty"`
}

type Tally struct {
	Total int `json:"total"`
	Main  int `json:"main"`
}

type MeanTally struct {
	Total float64 `json:"total"`
	Main  float64 `json:"main"`
}

type PackCount struct {
	Season  Tally     `json:"season"`
	Episode Tally     `json:"episode"`
	Mean    MeanTally `json:"mean"`
	Special int       `json:"special"`
}

// Pack is the consolidated season and episode structure of a show.
type Pack struct {
	IDs      IDs          `json:"ids"`
	Seasons  []PackSeason `json:"seasons"`
	Count    PackCount    `json:"count"`
	Duration Stats        `json:"duration"`
	Time     Span         `json:"time"`
	Year     Span         `json:"year"`
	Status   Status       `json:"status,omitempty"`
	Complete bool         `json:"complete"`
}

// Clone returns a deep copy.
func (p Pack) Clone() Pack {
	out := p
	out.IDs = p.IDs.Clone()
	out.Time.List = slices.Clone(p.Time.List)
	out.Year.List = slices.Clone(p.Year.List)
	out.Seasons = make([]PackSeason, len(p.Seasons))
	for i, s := range p.Seasons {
		s.IDs = s.IDs.Clone()
		s.Time.List = slices.Clone(s.Time.List)
		s.Year.List = slices.Clone(s.Year.List)
		eps := make([]PackEpisode, len(s.Episodes))
		for j, e := range s.Episodes {
			e.IDs = e.IDs.Clone()
			e.Sources = slices.Clone(e.Sources)
			eps[j] = e
		}
		s.Episodes = eps
		out.Seasons[i] = s
	}
	return out
}

// Season returns the season with the given standard number.
func (p Pack) Season(number int) (PackSeason, bool) {
	for _, s := range p.Seasons {
		if s.Number.Standard.Season == number {
			return s, true
		}
	}
	return PackSeason{}, false
}
