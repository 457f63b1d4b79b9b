package provider

import (
	"fmt"
	"slices"

	"github.com/gaiakodi/gaiasource/internal/media"
)

// Capabilities describes what a provider can do.
type Capabilities struct {
	Operations   []media.Kind  // operations with a matching interface
	Media        []media.Media // media variants served
	Sorts        []media.Sort  // sorts the upstream applies natively
	RequiresAuth bool          // whether a credential is mandatory
	Priority     int           // default priority (higher = preferred)
	PageSize     int           // natural page size
	Append       int           // sub-resources per detail call, 0 when unsupported
}

// Supports reports whether the provider serves kind for media m.
func (c Capabilities) Supports(kind media.Kind, m media.Media) bool {
	if !slices.Contains(c.Operations, kind) {
		return false
	}
	if kind == media.KindList || m == "" || m == media.Mixed {
		return true
	}
	return slices.Contains(c.Media, m)
}

// SortsNatively reports whether the upstream can order by s.
func (c Capabilities) SortsNatively(s media.Sort) bool {
	return s == "" || slices.Contains(c.Sorts, s)
}

// ValidateCapabilities checks if provider capabilities are valid and consistent
func ValidateCapabilities(caps Capabilities) error {
	if len(caps.Operations) == 0 {
		return fmt.Errorf("provider must support at least one operation")
	}
	if len(caps.Media) == 0 {
		return fmt.Errorf("provider must support at least one media type")
	}
	for _, m := range caps.Media {
		if !m.Valid() {
			return fmt.Errorf("unknown media %q", m)
		}
	}
	if caps.PageSize < 0 || caps.Append < 0 {
		return fmt.Errorf("page size and append limit must not be negative")
	}
	return nil
}

// Implements reports whether c has the interface behind kind.
func Implements(c Client, kind media.Kind) bool {
	switch kind {
	case media.KindSearch:
		_, ok := c.(Searcher)
		return ok
	case media.KindDiscover:
		_, ok := c.(Discoverer)
		return ok
	case media.KindRelease:
		_, ok := c.(Releaser)
		return ok
	case media.KindList:
		_, ok := c.(Lister)
		return ok
	case media.KindRecommend:
		_, ok := c.(Recommender)
		return ok
	case media.KindMetadata:
		_, ok := c.(Describer)
		return ok
	case media.KindPack:
		_, ok := c.(Packer)
		return ok
	case media.KindResolve:
		_, ok := c.(Resolver)
		return ok
	}
	return false
}
