package cache

import (
	"context"
	"time"
)

// NullStore never stores anything.
type NullStore struct{}

func (NullStore) Get(context.Context, string) ([]byte, bool, error)        { return nil, false, nil }
func (NullStore) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (NullStore) Delete(context.Context, string) error                     { return nil }
func (NullStore) Clear(context.Context) error                              { return nil }
func (NullStore) Close() error                                             { return nil }

var _ Store = NullStore{}
