package cache

import (
	"context"
	"os"
	"path/filepath"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryStore keeps entries in process. With a file path it loads the gob
// snapshot on open and writes it back on Close.
type MemoryStore struct {
	items *gocache.Cache
	file  string
}

// NewMemoryStore creates an in-process store. file may be empty.
func NewMemoryStore(file string) *MemoryStore {
	s := &MemoryStore{
		items: gocache.New(gocache.NoExpiration, 10*time.Minute),
		file:  file,
	}
	if file != "" {
		if _, err := os.Stat(file); err == nil {
			_ = s.items.LoadFile(file)
		}
	}
	return s
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := s.items.Get(key)
	if !ok {
		return nil, false, nil
	}
	data, ok := v.([]byte)
	return data, ok, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, data []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	s.items.Set(key, append([]byte(nil), data...), ttl)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.items.Delete(key)
	return nil
}

// Clear drops every entry.
func (s *MemoryStore) Clear(context.Context) error {
	s.items.Flush()
	return nil
}

// Len is the number of unexpired entries.
func (s *MemoryStore) Len() int {
	return s.items.ItemCount()
}

// Close persists the snapshot when a file was configured.
func (s *MemoryStore) Close() error {
	if s.file == "" {
		return nil
	}
	s.items.DeleteExpired()
	if err := os.MkdirAll(filepath.Dir(s.file), 0755); err != nil {
		return err
	}
	return s.items.SaveFile(s.file)
}

var _ Store = (*MemoryStore)(nil)
