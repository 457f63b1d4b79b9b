package config

import (
	"path/filepath"
	"strings"

	"github.com/gaiakodi/gaiasource/internal/aggregate"
	"github.com/gaiakodi/gaiasource/internal/cache"
	"github.com/gaiakodi/gaiasource/internal/media"
	"github.com/gaiakodi/gaiasource/internal/provider"
	"github.com/gaiakodi/gaiasource/internal/ratelimit"
)

// credential is the setting a provider cannot work without.
var credential = map[string]string{
	"tmdb":  "api_key",
	"trakt": "client_id",
	"tvdb":  "api_key",
	"omdb":  "api_key",
}

// ProviderSettings returns the Configure map of a provider.
func (cfg *Config) ProviderSettings(name string) map[string]interface{} {
	p := cfg.Providers[name]
	settings := map[string]interface{}{
		"language": cfg.Language,
		"country":  cfg.Country,
		"region":   cfg.Country,
	}
	for key, v := range map[string]string{
		"api_key":   p.APIKey,
		"client_id": p.ClientID,
		"token":     p.Token,
		"base_url":  p.BaseURL,
	} {
		if v != "" {
			settings[key] = v
		}
	}
	return settings
}

// Active reports whether a provider should be enabled: it has its
// credential and was not switched off.
func (cfg *Config) Active(name string) bool {
	p, ok := cfg.Providers[name]
	if !ok {
		return false
	}
	if p.Enabled != nil && !*p.Enabled {
		return false
	}
	key, known := credential[name]
	if !known {
		return p.Enabled != nil && *p.Enabled
	}
	v, _ := cfg.ProviderSettings(name)[key].(string)
	return strings.TrimSpace(v) != ""
}

// Budgets returns the governor budgets keyed by pool.
func (cfg *Config) Budgets() map[string]ratelimit.Budget {
	out := make(map[string]ratelimit.Budget, len(cfg.Providers)*2)
	for name, p := range cfg.Providers {
		if p.Budget.Limit > 0 {
			out[name] = p.Budget.governor()
		}
		if p.AuthBudget.Limit > 0 {
			out[ratelimit.PoolKey(name, true)] = p.AuthBudget.governor()
		}
	}
	return out
}

func (b Budget) governor() ratelimit.Budget {
	return ratelimit.Budget{Limit: b.Limit, Window: b.Window.Duration, Burst: b.Burst}
}

// PriorityTable returns the merge priorities per media.
func (cfg *Config) PriorityTable() aggregate.Priorities {
	out := make(aggregate.Priorities, len(cfg.Priorities))
	for m, names := range cfg.Priorities {
		out[media.Media(m)] = names
	}
	return out
}

// TierTable returns the rating tiers per media.
func (cfg *Config) TierTable() media.TierTable {
	out := make(media.TierTable, len(cfg.Tiers))
	for m, tiers := range cfg.Tiers {
		out[media.Media(m)] = tiers
	}
	return out
}

// CacheOptions returns the store options, defaulting the bolt file to
// ~/.gaiasource/cache.db.
func (cfg *Config) CacheOptions() cache.Options {
	c := cfg.Cache
	path := c.Path
	if path == "" && strings.EqualFold(c.Backend, cache.BackendBolt) {
		if home, err := Home(); err == nil {
			path = filepath.Join(home, "cache.db")
		}
	}
	return cache.Options{
		Backend:       c.Backend,
		Path:          path,
		RedisAddr:     c.RedisAddr,
		RedisPassword: c.RedisPassword,
		RedisDB:       c.RedisDB,
		MongoURI:      c.MongoURI,
		MongoDatabase: c.MongoDatabase,
	}
}

// TTL returns the provider response lifetimes.
func (cfg *Config) TTL() provider.TTL {
	return provider.TTL{
		List:   cfg.Cache.List.Duration,
		Detail: cfg.Cache.Detail.Duration,
		IDs:    cfg.Cache.IDs.Duration,
	}
}

// JournalDir is where operation sessions are written.
func JournalDir() (string, error) {
	home, err := Home()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "logs"), nil
}
