package media

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Tier is a rating and votes floor.
type Tier struct {
	Rating float64 `json:"rating" toml:"rating"`
	Votes  int     `json:"votes" toml:"votes"`
}

// Symbolic tier names, from most permissive to most demanding.
const (
	TierMinimal  = "minimal"
	TierLenient  = "lenient"
	TierNormal   = "normal"
	TierModerate = "moderate"
	TierStrict   = "strict"
	TierExtreme  = "extreme"
)

// TierTable maps media → tier name → floors.
type TierTable map[Media]map[string]Tier

// DefaultTiers is the built-in tier table.
func DefaultTiers() TierTable {
	return TierTable{
		Movie: {
			TierMinimal:  {Rating: 5.0, Votes: 100},
			TierLenient:  {Rating: 5.5, Votes: 500},
			TierNormal:   {Rating: 6.0, Votes: 1000},
			TierModerate: {Rating: 6.5, Votes: 2500},
			TierStrict:   {Rating: 7.0, Votes: 5000},
			TierExtreme:  {Rating: 8.0, Votes: 10000},
		},
		Show: {
			TierMinimal:  {Rating: 5.0, Votes: 50},
			TierLenient:  {Rating: 5.5, Votes: 200},
			TierNormal:   {Rating: 6.0, Votes: 500},
			TierModerate: {Rating: 6.5, Votes: 1000},
			TierStrict:   {Rating: 7.0, Votes: 2500},
			TierExtreme:  {Rating: 8.0, Votes: 5000},
		},
	}
}

// DefaultNicheFactors scale vote floors for niches with small audiences.
func DefaultNicheFactors() map[string]float64 {
	return map[string]float64{
		"anime":   0.2,
		"docu":    0.2,
		"short":   0.1,
		"special": 0.2,
		"mini":    0.5,
		"holiday": 0.5,
	}
}

// Lookup returns the tier for a media, falling back to the show table for
// television and to the movie table for everything else.
func (t TierTable) Lookup(m Media, name string) (Tier, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, key := range []Media{m, tierFallback(m)} {
		if tier, ok := t[key][name]; ok {
			return tier, nil
		}
	}
	return Tier{}, fmt.Errorf("unknown rating tier %q", name)
}

func tierFallback(m Media) Media {
	if m.Television() {
		return Show
	}
	return Movie
}

// Niche holds the expansion context: tier table, vote factors and the clock.
type Niche struct {
	Tiers   TierTable
	Factors map[string]float64
	Now     time.Time
}

// Expand turns niche tags into filters and an optional sort. Tags are
// processed in sorted order, so the same set always yields the same result.
// Vote floors are scaled by the product of the factors of every tag present.
func (n Niche) Expand(tags []string, m Media) (Filters, Sort, error) {
	tiers := n.Tiers
	if tiers == nil {
		tiers = DefaultTiers()
	}
	factors := n.Factors
	if factors == nil {
		factors = DefaultNicheFactors()
	}
	now := n.Now
	if now.IsZero() {
		now = time.Now()
	}

	set := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			set[t] = struct{}{}
		}
	}
	sorted := make([]string, 0, len(set))
	for t := range set {
		sorted = append(sorted, t)
	}
	sort.Strings(sorted)

	var f Filters
	var s Sort
	scale := 1.0
	tier := func(name string) (Tier, error) { return tiers.Lookup(m, name) }
	include := func(genres ...string) {
		if f.Genre == nil {
			f.Genre = &GenreFilter{}
		}
		f.Genre.Include = unique(f.Genre.Include, genres...)
	}
	exclude := func(genres ...string) {
		if f.Genre == nil {
			f.Genre = &GenreFilter{}
		}
		f.Genre.Exclude = unique(f.Genre.Exclude, genres...)
	}
	floor := func(t Tier) {
		if f.Rating == nil || f.Rating.Min == nil || *f.Rating.Min < t.Rating {
			f.Rating = AtLeast(t.Rating)
		}
		if f.Votes == nil || f.Votes.Min == nil || *f.Votes.Min < float64(t.Votes) {
			f.Votes = AtLeast(float64(t.Votes))
		}
	}

	for _, tag := range sorted {
		if factor, ok := factors[tag]; ok {
			scale *= factor
		}
		switch tag {
		case "feature":
			f.Duration = AtLeast(float64(60 * 60))
			exclude(GenreShort)
		case "short":
			f.Short = &ShortFilter{MaxDuration: 40 * 60, Genres: []string{GenreShort}}
		case "special":
			f.Keyword = unique(f.Keyword, "stand-up comedy", "concert")
		case "mini":
			f.Seasons = AtMost(1)
			f.Status = []Status{StatusEnded}
		case "multi":
			f.Seasons = AtLeast(2)
		case "anime":
			include(GenreAnimation)
			f.Language = unique(f.Language, "ja")
			f.Country = unique(f.Country, "jp")
		case "docu":
			include(GenreDocumentary)
		case "holiday":
			f.Keyword = unique(f.Keyword, "christmas", "holiday")
		case "kid":
			f.Certificate = unique(f.Certificate, "G", "PG", "TV-Y", "TV-Y7", "TV-G", "TV-PG")
			exclude(GenreHorror)
		case "teen":
			f.Certificate = unique(f.Certificate, "PG-13", "TV-14")
		case "adult":
			f.Certificate = unique(f.Certificate, "R", "NC-17", "TV-MA")
		case "new":
			w := Window{Start: Day(now).AddDate(-1, 0, 0), End: Day(now)}
			f.Date = &w
		case "home":
			f.Release = []ReleaseKind{ReleaseDigital, ReleasePhysical}
			if s == "" {
				s = SortHome
			}
		case "best":
			t, err := tier(TierExtreme)
			if err != nil {
				return Filters{}, "", err
			}
			floor(t)
		case "prestige":
			rt, err := tier(TierStrict)
			if err != nil {
				return Filters{}, "", err
			}
			vt, err := tier(TierExtreme)
			if err != nil {
				return Filters{}, "", err
			}
			floor(Tier{Rating: rt.Rating, Votes: vt.Votes})
		case "worst":
			t, err := tier(TierMinimal)
			if err != nil {
				return Filters{}, "", err
			}
			v, err := tier(TierNormal)
			if err != nil {
				return Filters{}, "", err
			}
			f.Rating = AtMost(t.Rating)
			f.Votes = AtLeast(float64(v.Votes))
		case "popular":
			t, err := tier(TierStrict)
			if err != nil {
				return Filters{}, "", err
			}
			if f.Votes == nil {
				f.Votes = AtLeast(float64(t.Votes))
			}
		case "unpopular":
			t, err := tier(TierLenient)
			if err != nil {
				return Filters{}, "", err
			}
			f.Votes = AtMost(float64(t.Votes))
		case "viewed":
			s = SortPlayed
		case "trend":
			s = SortTrending
		default:
			// unknown tags are treated as keywords
			f.Keyword = unique(f.Keyword, tag)
		}
	}

	if scale != 1 && f.Votes != nil && f.Votes.Min != nil {
		v := float64(int(*f.Votes.Min * scale))
		f.Votes.Min = &v
	}
	return f, s, nil
}

// ResolveTier turns a symbolic rating tier into rating and votes floors
// unless explicit floors are set.
func (f *Filters) ResolveTier(m Media, tiers TierTable) error {
	if f.RatingTier == "" {
		return nil
	}
	if tiers == nil {
		tiers = DefaultTiers()
	}
	t, err := tiers.Lookup(m, f.RatingTier)
	if err != nil {
		return err
	}
	if f.Rating == nil {
		f.Rating = AtLeast(t.Rating)
	}
	if f.Votes == nil {
		f.Votes = AtLeast(float64(t.Votes))
	}
	f.RatingTier = ""
	return nil
}
