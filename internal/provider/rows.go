package provider

import (
	"encoding/json"
	"fmt"

	"github.com/charmbracelet/log"
)

// Rows is a JSON array decoded one element at a time. A row that does not
// fit T is set aside in Dropped instead of failing the whole listing.
type Rows[T any] struct {
	Items   []T
	Dropped []error
}

// UnmarshalJSON decodes every element of a JSON array separately.
func (r *Rows[T]) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.Items = make([]T, 0, len(raw))
	r.Dropped = nil
	for i, msg := range raw {
		var v T
		if err := json.Unmarshal(msg, &v); err != nil {
			r.Dropped = append(r.Dropped, fmt.Errorf("row %d: %w", i, err))
			continue
		}
		r.Items = append(r.Items, v)
	}
	return nil
}

// MarshalJSON encodes the decoded items.
func (r Rows[T]) MarshalJSON() ([]byte, error) {
	if r.Items == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(r.Items)
}

// Log reports the dropped rows of path at warn level.
func (r Rows[T]) Log(logger *log.Logger, path string) {
	for _, err := range r.Dropped {
		logger.Warn("dropping malformed row", "path", path, "err", err)
	}
}
