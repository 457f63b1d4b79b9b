package cache

import (
	"context"
	"fmt"
	"strings"
)

// Backend names accepted by Open.
const (
	BackendNone   = "none"
	BackendMemory = "memory"
	BackendBolt   = "bolt"
	BackendRedis  = "redis"
	BackendMongo  = "mongo"
)

// Options selects and configures a store.
type Options struct {
	Backend       string
	Path          string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	MongoURI      string
	MongoDatabase string
}

// Clearer is implemented by stores that can drop all entries.
type Clearer interface {
	Clear(ctx context.Context) error
}

// Open builds the store named by opts.Backend.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Backend)) {
	case BackendNone, "off", "null":
		return NullStore{}, nil
	case BackendMemory, "":
		return NewMemoryStore(opts.Path), nil
	case BackendBolt:
		if opts.Path == "" {
			return nil, fmt.Errorf("bolt cache needs a path")
		}
		return OpenBolt(opts.Path)
	case BackendRedis:
		addr := opts.RedisAddr
		if addr == "" {
			addr = "localhost:6379"
		}
		return OpenRedis(ctx, addr, opts.RedisPassword, opts.RedisDB, "gaia:")
	case BackendMongo:
		uri := opts.MongoURI
		if uri == "" {
			uri = "mongodb://localhost:27017"
		}
		db := opts.MongoDatabase
		if db == "" {
			db = "gaiasource"
		}
		return OpenMongo(ctx, uri, db, "results")
	}
	return nil, fmt.Errorf("unknown cache backend %q", opts.Backend)
}
