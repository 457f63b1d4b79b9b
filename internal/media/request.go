package media

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Request is the logical description of one operation. It is a pure value.
type Request struct {
	Kind      Kind        `json:"kind"`
	Media     Media       `json:"media"`
	Query     string      `json:"query,omitempty"`
	IDs       IDs         `json:"ids,omitempty"`
	Title     string      `json:"title,omitempty"`
	Year      int         `json:"year,omitempty"`
	Season    int         `json:"season,omitempty"`
	Episode   int         `json:"episode,omitempty"`
	Filters   Filters     `json:"filters,omitzero"`
	Sort      Sort        `json:"sort,omitempty"`
	Order     Order       `json:"order,omitempty"`
	Page      int         `json:"page,omitempty"`
	Limit     int         `json:"limit,omitempty"`
	Niche     []string    `json:"niche,omitempty"`
	Extended  []string    `json:"extended,omitempty"`
	What      []Facet     `json:"what,omitempty"`
	Release   ReleaseKind `json:"release,omitempty"`
	Window    *Window     `json:"window,omitempty"`
	List      ListKind    `json:"list,omitempty"`
	User      string      `json:"user,omitempty"`
	ListID    string      `json:"list_id,omitempty"`
	Dedup     DedupPolicy `json:"dedup,omitempty"`
	Deviation bool        `json:"deviation,omitempty"`
}

var ErrInvalidRequest = errors.New("invalid request")

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}

// Validate checks that the fields the operation needs are present.
func (r Request) Validate() error {
	if r.Media != "" && !r.Media.Valid() {
		return invalid("unknown media %q", r.Media)
	}
	if r.Page < 0 || r.Limit < 0 {
		return invalid("page and limit must not be negative")
	}
	if r.Order != "" && r.Order != Ascending && r.Order != Descending {
		return invalid("unknown order %q", r.Order)
	}
	switch r.Kind {
	case KindSearch:
		if strings.TrimSpace(r.Query) == "" && strings.TrimSpace(r.Title) == "" {
			return invalid("search needs a query")
		}
	case KindDiscover, KindRecommend:
	case KindRelease:
		if r.Window == nil {
			return invalid("release needs a window")
		}
	case KindList:
		if r.List == "" {
			return invalid("list needs a list kind")
		}
		if r.List == ListItems && r.ListID == "" {
			return invalid("list items need a list id")
		}
		if (r.List == ListWatchlist || r.List == ListCollection || r.List == ListFavorites) && r.User == "" {
			return invalid("%s list needs a user", r.List)
		}
	case KindMetadata:
		if r.IDs.Empty() && r.Title == "" {
			return invalid("metadata needs an id or a title")
		}
		if r.Media == Episode && (r.Season < 0 || r.Episode < 0) {
			return invalid("episode numbers must not be negative")
		}
	case KindPack:
		if r.IDs.Empty() {
			return invalid("pack needs a show id")
		}
	case KindResolve:
		if r.IDs.Empty() && r.Title == "" {
			return invalid("resolve needs an id or a title")
		}
	default:
		return invalid("unknown operation %q", r.Kind)
	}
	if r.Kind != KindList && r.Kind != KindPack && r.Media == "" {
		return invalid("%s needs a media", r.Kind)
	}
	return nil
}

// Normalized returns a copy with defaults applied: page 1, ids cleaned and
// the facets sorted into canonical order.
func (r Request) Normalized() Request {
	out := r
	out.Filters = r.Filters.Clone()
	out.IDs = r.IDs.Normalize()
	out.Niche = slices.Clone(r.Niche)
	if out.Page <= 0 {
		out.Page = 1
	}
	if out.Kind == KindPack && out.Media == "" {
		out.Media = Show
	}
	if out.Dedup == "" {
		out.Dedup = KeepMerge
	}
	if len(out.What) == 0 && out.Kind == KindMetadata {
		out.What = []Facet{FacetSummary}
	}
	out.What = slices.Clone(out.What)
	slices.SortFunc(out.What, func(a, b Facet) int { return facetIndex(a) - facetIndex(b) })
	out.What = slices.Compact(out.What)
	return out
}

// Wants reports whether the metadata request asks for facet.
func (r Request) Wants(f Facet) bool {
	return slices.Contains(r.What, f)
}

func facetIndex(f Facet) int {
	if i := slices.Index(AllFacets, f); i >= 0 {
		return i
	}
	return len(AllFacets)
}
