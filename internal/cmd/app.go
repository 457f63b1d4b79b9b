package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"

	"github.com/gaiakodi/gaiasource/internal/aggregate"
	"github.com/gaiakodi/gaiasource/internal/cache"
	"github.com/gaiakodi/gaiasource/internal/config"
	journal "github.com/gaiakodi/gaiasource/internal/log"
	"github.com/gaiakodi/gaiasource/internal/media"
	"github.com/gaiakodi/gaiasource/internal/pack"
	"github.com/gaiakodi/gaiasource/internal/pipeline"
	"github.com/gaiakodi/gaiasource/internal/provider"
	"github.com/gaiakodi/gaiasource/internal/provider/omdb"
	"github.com/gaiakodi/gaiasource/internal/provider/tmdb"
	"github.com/gaiakodi/gaiasource/internal/provider/trakt"
	"github.com/gaiakodi/gaiasource/internal/provider/tvdb"
	"github.com/gaiakodi/gaiasource/internal/ratelimit"
)

// constructors builds every known provider from the shared deps.
var constructors = map[string]func(provider.Deps) provider.Client{
	"tmdb":  func(d provider.Deps) provider.Client { return tmdb.New(d) },
	"trakt": func(d provider.Deps) provider.Client { return trakt.New(d) },
	"tvdb":  func(d provider.Deps) provider.Client { return tvdb.New(d) },
	"omdb":  func(d provider.Deps) provider.Client { return omdb.New(d) },
}

// app is the dependency container of one invocation.
type app struct {
	cfg      *config.Config
	logger   *log.Logger
	registry *provider.Registry
	governor *ratelimit.Governor
	cache    *cache.Cache
	journal  *journal.Journal
	engine   *pipeline.Engine
	timeout  time.Duration
}

// loadConfig reads the configuration and applies the global flag overrides.
func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error
	if globalFlags.Config != "" {
		cfg, err = config.LoadFile(globalFlags.Config)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if globalFlags.LogLevel != "" {
		cfg.Log.Level = globalFlags.LogLevel
	}
	if globalFlags.NoCache {
		cfg.Cache.Backend = cache.BackendNone
	}
	if globalFlags.Workers > 0 {
		cfg.Workers = globalFlags.Workers
	}
	if globalFlags.Timeout != "" {
		d, err := time.ParseDuration(globalFlags.Timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid --timeout: %w", err)
		}
		cfg.Timeout = config.D(d)
	}
	return cfg, nil
}

// newApp wires the registry, governor, cache, aggregator and engine.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	logger := journal.New(os.Stderr, cfg.Log.Level, journal.Format(cfg.Log.Format))

	store, err := cache.Open(ctx, cfg.CacheOptions())
	if err != nil {
		logger.Warn("cache unavailable, continuing without it", "backend", cfg.Cache.Backend, "err", err)
		store = cache.NullStore{}
	}
	results := cache.New(store, cache.WithNegativeTTL(cfg.Cache.Negative.Duration), cache.WithLogger(logger))

	governor := ratelimit.New(cfg.Budgets(),
		ratelimit.WithThresholds(cfg.Pools.SwitchAt, cfg.Pools.AuthBelow),
		ratelimit.WithLogger(logger))

	deps := provider.Deps{
		HTTP:     &http.Client{Timeout: cfg.Timeout.Duration},
		Governor: governor,
		Cache:    results,
		Logger:   logger,
		Workers:  cfg.Workers,
		TTL:      cfg.TTL(),
	}
	registry, err := newRegistry(cfg, deps, logger)
	if err != nil {
		results.Close()
		return nil, err
	}

	dir, err := config.JournalDir()
	if err != nil {
		results.Close()
		return nil, err
	}
	jr := journal.NewJournal(dir, cfg.Log.Journal)

	resolver := aggregate.NewResolver(registry,
		aggregate.WithResolverCache(results, cfg.Cache.IDs.Duration),
		aggregate.WithResolverLogger(logger))
	agg := aggregate.New(registry, aggregate.Options{
		Priorities: cfg.PriorityTable(),
		Rating:     cfg.Rating,
		Resolver:   resolver,
		Workers:    cfg.Workers,
		Logger:     logger,
	})
	packs := pack.New(agg,
		pack.WithCache(results, cfg.Cache.Pack.Duration),
		pack.WithLogger(logger))
	engine := pipeline.New(pipeline.Config{
		Aggregator: agg,
		Packs:      packs,
		Cache:      results,
		PageTTL:    cfg.Cache.Page.Duration,
		Tiers:      cfg.TierTable(),
		Factors:    cfg.Niche,
		Interleave: media.InterleaveMode(cfg.Interleave.Mode),
		Within:     cfg.Interleave.Within.Duration,
		Journal:    jr,
		Logger:     logger,
	})

	return &app{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		governor: governor,
		cache:    results,
		journal:  jr,
		engine:   engine,
		timeout:  cfg.Timeout.Duration,
	}, nil
}

// newRegistry registers every known provider and enables those configured
// with credentials. A provider whose configuration fails stays disabled.
func newRegistry(cfg *config.Config, deps provider.Deps, logger *log.Logger) (*provider.Registry, error) {
	registry := provider.NewRegistry()
	for _, name := range config.Providers {
		client := constructors[name](deps)
		if err := registry.Register(name, client, cfg.Providers[name].Priority); err != nil {
			return nil, err
		}
		if !cfg.Active(name) {
			continue
		}
		if err := registry.Configure(name, cfg.ProviderSettings(name)); err != nil {
			logger.Warn("provider disabled", "provider", name, "err", err)
			continue
		}
		if err := registry.Enable(name); err != nil {
			logger.Warn("provider disabled", "provider", name, "err", err)
		}
	}
	return registry, nil
}

// close flushes the journal and releases the cache.
func (a *app) close() error {
	var errs []error
	if err := a.journal.End(); err != nil {
		errs = append(errs, fmt.Errorf("writing journal: %w", err))
	}
	if err := a.journal.Cleanup(a.cfg.Log.RetentionDays); err != nil {
		a.logger.Warn("journal cleanup failed", "err", err)
	}
	if err := a.cache.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// operationContext bounds one operation with the configured timeout.
func (a *app) operationContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.timeout)
}
