// Package providertest provides a scriptable provider.Client for tests.
package providertest

import (
	"context"
	"sync"

	"github.com/gaiakodi/gaiasource/internal/media"
	"github.com/gaiakodi/gaiasource/internal/provider"
)

// Fake is a provider whose operations are func fields. An operation with a
// nil func answers provider.ErrUnsupported. Every call is counted.
type Fake struct {
	ID   string
	Caps provider.Capabilities

	SearchFunc    func(ctx context.Context, req media.Request) (*media.PageResult, error)
	DiscoverFunc  func(ctx context.Context, req media.Request) (*media.PageResult, error)
	ReleaseFunc   func(ctx context.Context, req media.Request) (*media.PageResult, error)
	ListFunc      func(ctx context.Context, req media.Request) (*media.PageResult, error)
	RecommendFunc func(ctx context.Context, req media.Request) (*media.PageResult, error)
	MetadataFunc  func(ctx context.Context, req media.Request) (*media.Record, error)
	PackFunc      func(ctx context.Context, show media.IDs, seasons []int) (*provider.Listing, error)
	ResolveFunc   func(ctx context.Context, ids media.IDs, m media.Media) ([]media.Record, error)

	mu    sync.Mutex
	calls map[media.Kind]int
}

// New returns a fake named name serving ops for the given media.
func New(name string, ops []media.Kind, m ...media.Media) *Fake {
	return &Fake{
		ID: name,
		Caps: provider.Capabilities{
			Operations: ops,
			Media:      m,
			PageSize:   20,
		},
	}
}

// Register adds f to r and enables it.
func Register(r *provider.Registry, fakes ...*Fake) error {
	for _, f := range fakes {
		if err := r.Register(f.ID, f, 0); err != nil {
			return err
		}
		if err := r.Enable(f.ID); err != nil {
			return err
		}
	}
	return nil
}

func (f *Fake) count(kind media.Kind) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[media.Kind]int)
	}
	f.calls[kind]++
}

// Calls returns how often kind was invoked.
func (f *Fake) Calls(kind media.Kind) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[kind]
}

func (f *Fake) Name() string                       { return f.ID }
func (f *Fake) Description() string                { return "fake " + f.ID }
func (f *Fake) Capabilities() provider.Capabilities { return f.Caps }
func (f *Fake) Configure(map[string]interface{}) error {
	return nil
}
func (f *Fake) ConfigSchema() provider.ConfigSchema { return provider.ConfigSchema{} }

func page(ctx context.Context, fn func(context.Context, media.Request) (*media.PageResult, error), req media.Request) (*media.PageResult, error) {
	if fn == nil {
		return nil, provider.ErrUnsupported
	}
	return fn(ctx, req)
}

func (f *Fake) Search(ctx context.Context, req media.Request) (*media.PageResult, error) {
	f.count(media.KindSearch)
	return page(ctx, f.SearchFunc, req)
}

func (f *Fake) Discover(ctx context.Context, req media.Request) (*media.PageResult, error) {
	f.count(media.KindDiscover)
	return page(ctx, f.DiscoverFunc, req)
}

func (f *Fake) Release(ctx context.Context, req media.Request) (*media.PageResult, error) {
	f.count(media.KindRelease)
	return page(ctx, f.ReleaseFunc, req)
}

func (f *Fake) List(ctx context.Context, req media.Request) (*media.PageResult, error) {
	f.count(media.KindList)
	return page(ctx, f.ListFunc, req)
}

func (f *Fake) Recommend(ctx context.Context, req media.Request) (*media.PageResult, error) {
	f.count(media.KindRecommend)
	return page(ctx, f.RecommendFunc, req)
}

func (f *Fake) Metadata(ctx context.Context, req media.Request) (*media.Record, error) {
	f.count(media.KindMetadata)
	if f.MetadataFunc == nil {
		return nil, provider.ErrUnsupported
	}
	return f.MetadataFunc(ctx, req)
}

func (f *Fake) Pack(ctx context.Context, show media.IDs, seasons []int) (*provider.Listing, error) {
	f.count(media.KindPack)
	if f.PackFunc == nil {
		return nil, provider.ErrUnsupported
	}
	return f.PackFunc(ctx, show, seasons)
}

func (f *Fake) Resolve(ctx context.Context, ids media.IDs, m media.Media) ([]media.Record, error) {
	f.count(media.KindResolve)
	if f.ResolveFunc == nil {
		return nil, provider.ErrUnsupported
	}
	return f.ResolveFunc(ctx, ids, m)
}
