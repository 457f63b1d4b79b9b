package media

import (
	"fmt"
	"strings"
)

// Media tags the variant of a Record.
type Media string

const (
	Movie   Media = "movie"
	Set     Media = "set"
	Show    Media = "show"
	Season  Media = "season"
	Episode Media = "episode"
	Person  Media = "person"
	List    Media = "list"
	Mixed   Media = "mixed"
)

var allMedia = []Media{Movie, Set, Show, Season, Episode, Person, List, Mixed}

// Valid reports whether m is one of the known variants.
func (m Media) Valid() bool {
	for _, v := range allMedia {
		if m == v {
			return true
		}
	}
	return false
}

// Television reports whether m belongs to the show hierarchy.
func (m Media) Television() bool {
	return m == Show || m == Season || m == Episode
}

// ParseMedia converts a wire string into a Media value.
func ParseMedia(s string) (Media, error) {
	m := Media(strings.ToLower(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", fmt.Errorf("unknown media %q", s)
	}
	return m, nil
}

// Kind is the logical operation of a Request.
type Kind string

const (
	KindSearch    Kind = "search"
	KindDiscover  Kind = "discover"
	KindRelease   Kind = "release"
	KindRecommend Kind = "recommend"
	KindList      Kind = "list"
	KindMetadata  Kind = "metadata"
	KindPack      Kind = "pack"
	KindResolve   Kind = "resolve_id"
)

// Paged reports whether the operation produces a PageResult.
func (k Kind) Paged() bool {
	switch k {
	case KindSearch, KindDiscover, KindRelease, KindRecommend, KindList:
		return true
	}
	return false
}

// ReleaseKind classifies a release event.
type ReleaseKind string

const (
	ReleasePremiere   ReleaseKind = "premiere"
	ReleaseLimited    ReleaseKind = "limited"
	ReleaseTheatrical ReleaseKind = "theatrical"
	ReleaseDigital    ReleaseKind = "digital"
	ReleasePhysical   ReleaseKind = "physical"
	ReleaseTelevision ReleaseKind = "television"
	ReleaseUnknown    ReleaseKind = "unknown"
	ReleaseNew        ReleaseKind = "new"
	ReleaseHome       ReleaseKind = "home"
	ReleaseFuture     ReleaseKind = "future"
	ReleaseFinale     ReleaseKind = "finale"
)

// Sort is a result ordering.
type Sort string

const (
	SortRank        Sort = "rank"
	SortNewest      Sort = "newest"
	SortOldest      Sort = "oldest"
	SortLaunched    Sort = "launched"
	SortHome        Sort = "home"
	SortPopular     Sort = "popular"
	SortTrending    Sort = "trending"
	SortPlayed      Sort = "played"
	SortWatched     Sort = "watched"
	SortCollected   Sort = "collected"
	SortAnticipated Sort = "anticipated"
	SortRating      Sort = "rating"
	SortVotes       Sort = "votes"
	SortTitle       Sort = "title"
)

// ServerOnly reports whether the sort depends on upstream signals that the
// records themselves do not carry.
func (s Sort) ServerOnly() bool {
	switch s {
	case SortPopular, SortTrending, SortPlayed, SortWatched, SortCollected, SortAnticipated:
		return true
	}
	return false
}

// Order is a sort direction.
type Order string

const (
	Ascending  Order = "ascending"
	Descending Order = "descending"
)

// DefaultOrder returns the natural direction for a sort.
func DefaultOrder(s Sort) Order {
	switch s {
	case SortRank, SortOldest, SortLaunched, SortTitle:
		return Ascending
	}
	return Descending
}

// EpisodeType marks premieres and finales.
type EpisodeType string

const (
	EpisodeStandard          EpisodeType = "standard"
	EpisodeSeriesPremiere    EpisodeType = "series-premiere"
	EpisodeSeasonPremiere    EpisodeType = "season-premiere"
	EpisodeMidSeasonPremiere EpisodeType = "mid-season-premiere"
	EpisodeSeriesFinale      EpisodeType = "series-finale"
	EpisodeSeasonFinale      EpisodeType = "season-finale"
	EpisodeMidSeasonFinale   EpisodeType = "mid-season-finale"
)

// Status is the production state of a title.
type Status string

const (
	StatusRumored    Status = "rumored"
	StatusPlanned    Status = "planned"
	StatusProduction Status = "production"
	StatusUpcoming   Status = "upcoming"
	StatusReleased   Status = "released"
	StatusContinuing Status = "continuing"
	StatusEnded      Status = "ended"
	StatusCanceled   Status = "canceled"
	StatusPilot      Status = "pilot"
)

// Facet names one detail sub-resource of a metadata request.
type Facet string

const (
	FacetSummary      Facet = "summary"
	FacetPeople       Facet = "people"
	FacetStudios      Facet = "studios"
	FacetTranslations Facet = "translations"
	FacetAliases      Facet = "aliases"
	FacetRatings      Facet = "ratings"
	FacetReleases     Facet = "releases"
	FacetParts        Facet = "set-parts"
	FacetPack         Facet = "pack"
)

// AllFacets lists every provider-served facet in canonical order.
var AllFacets = []Facet{FacetSummary, FacetPeople, FacetStudios, FacetTranslations, FacetAliases, FacetRatings, FacetReleases, FacetParts}

// ListKind selects which list an operation reads.
type ListKind string

const (
	ListItems      ListKind = "items"
	ListWatchlist  ListKind = "watchlist"
	ListCollection ListKind = "collection"
	ListFavorites  ListKind = "favorites"
)

// DedupPolicy chooses how duplicate records collapse.
type DedupPolicy string

const (
	KeepAll   DedupPolicy = "keep-all"
	KeepFirst DedupPolicy = "keep-first"
	KeepLast  DedupPolicy = "keep-last"
	KeepMerge DedupPolicy = "merge"
)

// ErrorCode is the wire classification of a failure.
type ErrorCode string

const (
	CodeNetwork     ErrorCode = "network"
	CodeRateLimited ErrorCode = "rate-limited"
	CodeNotFound    ErrorCode = "not-found"
	CodeIncomplete  ErrorCode = "incomplete"
	CodeServer      ErrorCode = "server"
	CodeUnknown     ErrorCode = "unknown"
)
