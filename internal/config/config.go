// Package config holds the settings of a gaiasource process. A Config is a
// plain value built from defaults, the TOML file and the environment, and
// handed to the components that need it.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/gaiakodi/gaiasource/internal/aggregate"
	"github.com/gaiakodi/gaiasource/internal/cache"
	"github.com/gaiakodi/gaiasource/internal/media"
	"github.com/gaiakodi/gaiasource/internal/provider"
	"github.com/gaiakodi/gaiasource/internal/ratelimit"
)

// Providers known to the process, in default priority order.
var Providers = []string{"tmdb", "trakt", "tvdb", "omdb"}

// Duration is a time.Duration written as a string ("24h", "90s") in TOML.
type Duration struct {
	time.Duration
}

// D wraps d.
func D(d time.Duration) Duration { return Duration{d} }

func (d *Duration) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	if s == "" {
		d.Duration = 0
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Budget is a call budget in configuration form.
type Budget struct {
	Limit  int      `toml:"limit"`
	Window Duration `toml:"window"`
	Burst  int      `toml:"burst,omitempty"`
}

// ProviderConfig holds the credentials and limits of one provider.
type ProviderConfig struct {
	// Enabled defaults to true when the provider has its credentials.
	Enabled  *bool  `toml:"enabled,omitempty"`
	APIKey   string `toml:"api_key,omitempty"`
	ClientID string `toml:"client_id,omitempty"`
	Token    string `toml:"token,omitempty"`
	BaseURL  string `toml:"base_url,omitempty"`
	Priority int    `toml:"priority,omitempty"`
	Budget   Budget `toml:"budget"`
	// AuthBudget is the authenticated pool; zero shares Budget.
	AuthBudget Budget `toml:"auth_budget,omitempty"`
}

// CacheConfig selects the result cache store and its lifetimes.
type CacheConfig struct {
	Backend       string   `toml:"backend"`
	Path          string   `toml:"path,omitempty"`
	RedisAddr     string   `toml:"redis_addr,omitempty"`
	RedisPassword string   `toml:"redis_password,omitempty"`
	RedisDB       int      `toml:"redis_db,omitempty"`
	MongoURI      string   `toml:"mongo_uri,omitempty"`
	MongoDatabase string   `toml:"mongo_database,omitempty"`
	Page          Duration `toml:"page"`
	List          Duration `toml:"list"`
	Detail        Duration `toml:"detail"`
	IDs           Duration `toml:"ids"`
	Negative      Duration `toml:"negative"`
	Pack          Duration `toml:"pack"`
}

// InterleaveConfig places specials in episode lists.
type InterleaveConfig struct {
	Mode   string   `toml:"mode"`
	Within Duration `toml:"within"`
}

// PoolConfig holds the pool switching thresholds.
type PoolConfig struct {
	SwitchAt  float64 `toml:"switch_at"`
	AuthBelow float64 `toml:"auth_below"`
}

// LogConfig configures the logger and the operation journal.
type LogConfig struct {
	Level         string `toml:"level"`
	Format        string `toml:"format"`
	Journal       bool   `toml:"journal"`
	RetentionDays int    `toml:"retention_days"`
}

// Config is the full configuration.
type Config struct {
	Language   string                           `toml:"language"`
	Country    string                           `toml:"country"`
	Workers    int                              `toml:"workers"`
	Timeout    Duration                         `toml:"timeout"`
	Listen     string                           `toml:"listen"`
	Providers  map[string]ProviderConfig        `toml:"providers"`
	Cache      CacheConfig                      `toml:"cache"`
	Priorities map[string][]string              `toml:"priorities"`
	Rating     aggregate.Policy                 `toml:"rating"`
	Interleave InterleaveConfig                 `toml:"interleave"`
	Pools      PoolConfig                       `toml:"pools"`
	Tiers      map[string]map[string]media.Tier `toml:"tiers"`
	Niche      map[string]float64               `toml:"niche"`
	Log        LogConfig                        `toml:"log"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	ttl := provider.DefaultTTL()
	cfg := &Config{
		Language: "en",
		Country:  "us",
		Workers:  provider.DefaultWorkers(),
		Timeout:  D(30 * time.Second),
		Listen:   "127.0.0.1:8321",
		Providers: map[string]ProviderConfig{
			"tmdb":  {Priority: 40, Budget: Budget{Limit: 40, Window: D(10 * time.Second)}},
			"trakt": {Priority: 30, Budget: Budget{Limit: 1000, Window: D(5 * time.Minute), Burst: 20}},
			"tvdb":  {Priority: 20, Budget: Budget{Limit: 100, Window: D(10 * time.Second)}},
			"omdb":  {Priority: 10, Budget: Budget{Limit: 1000, Window: D(24 * time.Hour), Burst: 10}},
		},
		Cache: CacheConfig{
			Backend:  cache.BackendBolt,
			Page:     D(15 * time.Minute),
			List:     D(ttl.List),
			Detail:   D(ttl.Detail),
			IDs:      D(ttl.IDs),
			Negative: D(cache.TTLNegative),
			Pack:     D(cache.TTLWeek),
		},
		Priorities: make(map[string][]string),
		Rating:     aggregate.DefaultPolicy(),
		Interleave: InterleaveConfig{Mode: string(media.InterleaveNone), Within: D(14 * 24 * time.Hour)},
		Pools:      PoolConfig{SwitchAt: ratelimit.DefaultSwitchAt, AuthBelow: ratelimit.DefaultAuthBelow},
		Tiers:      make(map[string]map[string]media.Tier),
		Niche:      media.DefaultNicheFactors(),
		Log:        LogConfig{Level: "info", Format: "text", Journal: true, RetentionDays: 30},
	}
	for m, names := range aggregate.DefaultPriorities() {
		cfg.Priorities[string(m)] = slices.Clone(names)
	}
	for m, tiers := range media.DefaultTiers() {
		cfg.Tiers[string(m)] = make(map[string]media.Tier, len(tiers))
		for name, t := range tiers {
			cfg.Tiers[string(m)][name] = t
		}
	}
	return cfg
}

// Home returns the gaiasource directory, ~/.gaiasource.
func Home() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".gaiasource"), nil
}

// ConfigPath returns the path to the config file
func ConfigPath() (string, error) {
	home, err := Home()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "config.toml"), nil
}

// Load reads the configuration from the default path.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFile(path)
}

// LoadFile reads the configuration at path. A missing file yields the
// defaults. Environment overrides are applied last.
func LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		var file Config
		md, err := toml.Decode(string(data), &file)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		cfg.merge(&file, md)
	case !os.IsNotExist(err):
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg.applyEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// merge overlays the fields set in file.
func (cfg *Config) merge(file *Config, md toml.MetaData) {
	if file.Language != "" {
		cfg.Language = file.Language
	}
	if file.Country != "" {
		cfg.Country = file.Country
	}
	if file.Workers > 0 {
		cfg.Workers = file.Workers
	}
	if file.Timeout.Duration > 0 {
		cfg.Timeout = file.Timeout
	}
	if file.Listen != "" {
		cfg.Listen = file.Listen
	}

	for name, p := range file.Providers {
		name = strings.ToLower(name)
		def := cfg.Providers[name]
		if p.Priority == 0 {
			p.Priority = def.Priority
		}
		if p.Budget.Limit == 0 {
			p.Budget = def.Budget
		}
		cfg.Providers[name] = p
	}

	c := file.Cache
	if c.Backend != "" {
		cfg.Cache.Backend = c.Backend
	}
	for _, s := range []struct {
		dst *string
		src string
	}{
		{&cfg.Cache.Path, c.Path},
		{&cfg.Cache.RedisAddr, c.RedisAddr},
		{&cfg.Cache.RedisPassword, c.RedisPassword},
		{&cfg.Cache.MongoURI, c.MongoURI},
		{&cfg.Cache.MongoDatabase, c.MongoDatabase},
	} {
		if s.src != "" {
			*s.dst = s.src
		}
	}
	if c.RedisDB != 0 {
		cfg.Cache.RedisDB = c.RedisDB
	}
	for _, d := range []struct {
		dst *Duration
		src Duration
	}{
		{&cfg.Cache.Page, c.Page},
		{&cfg.Cache.List, c.List},
		{&cfg.Cache.Detail, c.Detail},
		{&cfg.Cache.IDs, c.IDs},
		{&cfg.Cache.Negative, c.Negative},
		{&cfg.Cache.Pack, c.Pack},
	} {
		if d.src.Duration > 0 {
			*d.dst = d.src
		}
	}

	for m, names := range file.Priorities {
		cfg.Priorities[strings.ToLower(m)] = names
	}
	if file.Rating.Main != "" {
		cfg.Rating = file.Rating
		if cfg.Rating.Fallback == "" {
			cfg.Rating.Fallback = aggregate.MethodAverage
		}
	}
	if file.Interleave.Mode != "" {
		cfg.Interleave.Mode = file.Interleave.Mode
	}
	if file.Interleave.Within.Duration > 0 {
		cfg.Interleave.Within = file.Interleave.Within
	}
	if file.Pools.SwitchAt > 0 {
		cfg.Pools.SwitchAt = file.Pools.SwitchAt
	}
	if file.Pools.AuthBelow > 0 {
		cfg.Pools.AuthBelow = file.Pools.AuthBelow
	}
	for m, tiers := range file.Tiers {
		m = strings.ToLower(m)
		if cfg.Tiers[m] == nil {
			cfg.Tiers[m] = make(map[string]media.Tier, len(tiers))
		}
		for name, t := range tiers {
			cfg.Tiers[m][strings.ToLower(name)] = t
		}
	}
	for tag, f := range file.Niche {
		cfg.Niche[strings.ToLower(tag)] = f
	}

	if file.Log.Level != "" {
		cfg.Log.Level = file.Log.Level
	}
	if file.Log.Format != "" {
		cfg.Log.Format = file.Log.Format
	}
	if file.Log.RetentionDays > 0 {
		cfg.Log.RetentionDays = file.Log.RetentionDays
	}
	if md.IsDefined("log", "journal") {
		cfg.Log.Journal = file.Log.Journal
	}
}

// environment variables mapped onto provider credentials
var providerEnv = map[string]struct {
	provider string
	set      func(*ProviderConfig, string)
}{
	"GAIA_TMDB_API_KEY":    {"tmdb", func(p *ProviderConfig, v string) { p.APIKey = v }},
	"GAIA_TRAKT_CLIENT_ID": {"trakt", func(p *ProviderConfig, v string) { p.ClientID = v }},
	"GAIA_TRAKT_TOKEN":     {"trakt", func(p *ProviderConfig, v string) { p.Token = v }},
	"GAIA_TVDB_API_KEY":    {"tvdb", func(p *ProviderConfig, v string) { p.APIKey = v }},
	"GAIA_OMDB_API_KEY":    {"omdb", func(p *ProviderConfig, v string) { p.APIKey = v }},
}

// applyEnv overrides settings from GAIA_* variables.
func (cfg *Config) applyEnv(lookup func(string) (string, bool)) {
	for key, e := range providerEnv {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			p := cfg.Providers[e.provider]
			e.set(&p, strings.TrimSpace(v))
			cfg.Providers[e.provider] = p
		}
	}
	if v, ok := lookup("GAIA_CACHE_BACKEND"); ok && v != "" {
		cfg.Cache.Backend = v
	}
	if v, ok := lookup("GAIA_CACHE_PATH"); ok && v != "" {
		cfg.Cache.Path = v
	}
	if v, ok := lookup("GAIA_LOG_LEVEL"); ok && v != "" {
		cfg.Log.Level = v
	}
	if v, ok := lookup("GAIA_WORKERS"); ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Workers = n
		}
	}
}

// Validate checks values the components would otherwise reject at run time.
func (cfg *Config) Validate() error {
	for m := range cfg.Priorities {
		if !media.Media(m).Valid() {
			return fmt.Errorf("priorities: unknown media %q", m)
		}
	}
	for m := range cfg.Tiers {
		if !media.Media(m).Valid() {
			return fmt.Errorf("tiers: unknown media %q", m)
		}
	}
	for _, method := range []aggregate.Method{cfg.Rating.Main, cfg.Rating.Fallback} {
		if method != "" && !method.IsAverage() && !slices.Contains(sources(), string(method)) {
			return fmt.Errorf("rating: unknown method %q", method)
		}
	}
	switch media.InterleaveMode(cfg.Interleave.Mode) {
	case media.InterleaveNone, media.InterleaveNearest, media.InterleaveWithin, "":
	default:
		return fmt.Errorf("interleave: unknown mode %q", cfg.Interleave.Mode)
	}
	if cfg.Pools.SwitchAt > 1 || cfg.Pools.AuthBelow > 1 {
		return fmt.Errorf("pools: thresholds are fractions of the budget")
	}
	return nil
}

// sources are the vote sources a rating method may name directly.
func sources() []string {
	return append(slices.Clone(Providers), "imdb")
}

// Save writes the configuration to the default path.
func (cfg *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return cfg.SaveFile(path)
}

// SaveFile writes the configuration as TOML.
func (cfg *Config) SaveFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := cfg.Encode()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Encode renders the configuration as TOML.
func (cfg *Config) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return buf.Bytes(), nil
}
