package media

import (
	"sort"
	"strings"
)

// Id kinds understood across providers.
const (
	IDImdb  = "imdb"
	IDTmdb  = "tmdb"
	IDTvdb  = "tvdb"
	IDTrakt = "trakt"
	IDSlug  = "slug"
)

// IDKinds lists the id kinds in canonical order.
var IDKinds = []string{IDImdb, IDTmdb, IDTvdb, IDTrakt, IDSlug}

// IDs maps an id kind to its value.
type IDs map[string]string

// Get returns the id for kind or "".
func (ids IDs) Get(kind string) string {
	if ids == nil {
		return ""
	}
	return ids[kind]
}

// Set stores a normalized id; empty values are ignored.
func (ids IDs) Set(kind, value string) {
	value = strings.TrimSpace(value)
	if value == "" || value == "0" {
		return
	}
	if kind == IDImdb {
		value = NormalizeImdb(value)
	}
	ids[kind] = value
}

// Clone returns an independent copy.
func (ids IDs) Clone() IDs {
	if ids == nil {
		return nil
	}
	out := make(IDs, len(ids))
	for k, v := range ids {
		out[k] = v
	}
	return out
}

// Empty reports whether no id carries a value.
func (ids IDs) Empty() bool {
	for _, v := range ids {
		if v != "" {
			return false
		}
	}
	return true
}

// Keys returns "kind:value" pairs in sorted order.
func (ids IDs) Keys() []string {
	keys := make([]string, 0, len(ids))
	for k, v := range ids {
		if v == "" {
			continue
		}
		keys = append(keys, k+":"+strings.ToLower(v))
	}
	sort.Strings(keys)
	return keys
}

// Shares reports whether both mappings agree on at least one id.
func (ids IDs) Shares(other IDs) bool {
	for k, v := range ids {
		if v != "" && strings.EqualFold(other[k], v) {
			return true
		}
	}
	return false
}

// Fill copies ids from other that are missing here.
func (ids IDs) Fill(other IDs) {
	for k, v := range other {
		if v != "" && ids[k] == "" {
			ids[k] = v
		}
	}
}

// Missing returns the kinds from want that have no value.
func (ids IDs) Missing(want []string) []string {
	var out []string
	for _, k := range want {
		if ids.Get(k) == "" {
			out = append(out, k)
		}
	}
	return out
}

// String renders the ids deterministically.
func (ids IDs) String() string {
	return strings.Join(ids.Keys(), ",")
}

// Normalize returns a copy with trimmed values, empty entries removed and
// imdb ids cleaned.
func (ids IDs) Normalize() IDs {
	out := make(IDs, len(ids))
	for k, v := range ids {
		out.Set(strings.ToLower(strings.TrimSpace(k)), v)
	}
	return out
}

// NormalizeImdb lowercases the prefix and repairs the "ttt" artifact some
// upstreams emit.
func NormalizeImdb(id string) string {
	id = strings.ToLower(strings.TrimSpace(id))
	for strings.HasPrefix(id, "ttt") {
		id = id[1:]
	}
	if id != "" && !strings.HasPrefix(id, "tt") && isDigits(id) {
		id = "tt" + id
	}
	return id
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
