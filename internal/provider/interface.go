package provider

import (
	"context"

	"github.com/gaiakodi/gaiasource/internal/media"
)

// Client is the interface every upstream catalog implements. Operations are
// optional: a client declares them in Capabilities and implements the
// matching interface below.
type Client interface {
	// Identification
	Name() string
	Description() string

	// Capability discovery
	Capabilities() Capabilities

	// Configuration
	Configure(config map[string]interface{}) error
	ConfigSchema() ConfigSchema
}

// Searcher serves text search.
type Searcher interface {
	Search(ctx context.Context, req media.Request) (*media.PageResult, error)
}

// Discoverer serves faceted listings.
type Discoverer interface {
	Discover(ctx context.Context, req media.Request) (*media.PageResult, error)
}

// Releaser serves date-ranged releases.
type Releaser interface {
	Release(ctx context.Context, req media.Request) (*media.PageResult, error)
}

// Lister reads user and curated lists.
type Lister interface {
	List(ctx context.Context, req media.Request) (*media.PageResult, error)
}

// Recommender serves the provider's own opinionated lists.
type Recommender interface {
	Recommend(ctx context.Context, req media.Request) (*media.PageResult, error)
}

// Describer fetches the details of one title. Facet failures do not fail
// the call; they clear Record.Complete.
type Describer interface {
	Metadata(ctx context.Context, req media.Request) (*media.Record, error)
}

// Packer lists the seasons and episodes of a show. A nil seasons slice asks
// for every season.
type Packer interface {
	Pack(ctx context.Context, show media.IDs, seasons []int) (*Listing, error)
}

// Resolver translates between id systems. It returns every candidate the
// upstream reports; choosing between them is the caller's job.
type Resolver interface {
	Resolve(ctx context.Context, ids media.IDs, m media.Media) ([]media.Record, error)
}

// Listing is the raw season and episode structure of a show as one provider
// sees it.
type Listing struct {
	Provider string         `json:"provider"`
	Show     media.Record   `json:"show"`
	Seasons  []media.Record `json:"seasons"`
	Episodes []media.Record `json:"episodes"`
	Complete bool           `json:"complete"`
}

// ConfigSchema describes the configuration requirements for a provider
type ConfigSchema struct {
	Fields []ConfigField
}

// ConfigField describes a single configuration field
type ConfigField struct {
	Name        string          // Field name
	DisplayName string          // Human-readable name
	Type        ConfigFieldType // Field type
	Required    bool            // Whether this field is required
	Default     interface{}     // Default value
	Description string          // Help text
	Sensitive   bool            // Whether this contains sensitive data (for masking)
}

// ConfigFieldType represents the type of a configuration field
type ConfigFieldType string

const (
	ConfigFieldTypeString   ConfigFieldType = "string"
	ConfigFieldTypeInt      ConfigFieldType = "int"
	ConfigFieldTypeBool     ConfigFieldType = "bool"
	ConfigFieldTypePassword ConfigFieldType = "password"
)
