package tmdb

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ryanbradynd05/go-tmdb"

	"github.com/gaiakodi/gaiasource/internal/media"
	"github.com/gaiakodi/gaiasource/internal/provider"
)

const (
	providerName = "tmdb"
	baseURL      = "https://api.themoviedb.org/3"
	pageSize     = 20
	appendLimit  = 20
)

// Provider implements provider.Client for TMDb. Search and single-facet
// lookups go through the go-tmdb SDK; discover, find, collections, batched
// detail fetches, seasons and lists use the JSON API directly.
type Provider struct {
	deps     provider.Deps
	sdk      SDK
	api      *provider.API
	newSDK   func(apiKey string) SDK
	apiKey   string
	language string
	region   string
	logger   *log.Logger
}

// SDK is the subset of *tmdb.TMDb the provider uses.
type SDK interface {
	SearchMovie(name string, options map[string]string) (*tmdb.MovieSearchResults, error)
	SearchTv(name string, options map[string]string) (*tmdb.TvSearchResults, error)
	GetMovieInfo(id int, options map[string]string) (*tmdb.Movie, error)
	GetTvInfo(id int, options map[string]string) (*tmdb.TV, error)
	GetTvSeasonInfo(showID, seasonID int, options map[string]string) (*tmdb.TvSeason, error)
	GetTvEpisodeInfo(showID, seasonNum, episodeNum int, options map[string]string) (*tmdb.TvEpisode, error)
}

// New creates an unconfigured TMDb provider.
func New(deps provider.Deps) *Provider {
	return &Provider{
		deps:     deps,
		language: "en-US",
		region:   "US",
		logger:   deps.Log(providerName),
		newSDK: func(apiKey string) SDK {
			return tmdb.Init(tmdb.Config{APIKey: apiKey, Proxies: nil, UseProxy: false})
		},
	}
}

// Name returns the provider name
func (p *Provider) Name() string {
	return providerName
}

// Description returns the provider description
func (p *Provider) Description() string {
	return "The Movie Database (TMDb): movies, collections, shows and people"
}

// Capabilities returns what this provider can do
func (p *Provider) Capabilities() provider.Capabilities {
	return provider.Capabilities{
		Operations: []media.Kind{
			media.KindSearch, media.KindDiscover, media.KindRelease, media.KindRecommend,
			media.KindList, media.KindMetadata, media.KindPack, media.KindResolve,
		},
		Media: []media.Media{media.Movie, media.Set, media.Show, media.Season, media.Episode, media.Person},
		Sorts: []media.Sort{
			media.SortPopular, media.SortRating, media.SortVotes,
			media.SortNewest, media.SortOldest, media.SortTitle,
		},
		RequiresAuth: true,
		Priority:     100,
		PageSize:     pageSize,
		Append:       appendLimit,
	}
}

// ConfigSchema returns the configuration schema for this provider
func (p *Provider) ConfigSchema() provider.ConfigSchema {
	return provider.ConfigSchema{
		Fields: []provider.ConfigField{
			{
				Name:        "api_key",
				DisplayName: "API Key",
				Type:        provider.ConfigFieldTypePassword,
				Required:    true,
				Description: "TMDb API key (not the Read Access Token). Get it from themoviedb.org/settings/api",
				Sensitive:   true,
			},
			{
				Name:        "language",
				DisplayName: "Language",
				Type:        provider.ConfigFieldTypeString,
				Default:     "en-US",
				Description: "Preferred language for titles and plots",
			},
			{
				Name:        "region",
				DisplayName: "Region",
				Type:        provider.ConfigFieldTypeString,
				Default:     "US",
				Description: "Country used for certificates and regional release dates",
			},
		},
	}
}

// Configure applies configuration to the provider
func (p *Provider) Configure(config map[string]interface{}) error {
	apiKey, _ := config["api_key"].(string)
	if strings.TrimSpace(apiKey) == "" {
		return fmt.Errorf("api_key is required")
	}
	p.apiKey = apiKey

	if language, ok := config["language"].(string); ok && language != "" {
		p.language = language
	}
	if region, ok := config["region"].(string); ok && region != "" {
		p.region = strings.ToUpper(region)
	}

	p.sdk = p.newSDK(p.apiKey)
	p.api = p.deps.API(providerName, baseURL)
	p.api.RetryDelay = 10 * time.Second
	p.api.Sign = func(req *http.Request, _ bool) {
		q := req.URL.Query()
		q.Set("api_key", p.apiKey)
		req.URL.RawQuery = q.Encode()
	}
	return nil
}

func (p *Provider) ready() error {
	if p.sdk == nil || p.api == nil {
		return &provider.ProviderError{Provider: providerName, Code: media.CodeUnknown, Message: "provider not configured"}
	}
	return nil
}

// classify maps go-tmdb errors, which only carry upstream text, onto
// provider errors.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var pe *provider.ProviderError
	if errors.As(err, &pe) {
		return err
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "401") || strings.Contains(errStr, "unauthorized") || strings.Contains(errStr, "invalid api key"):
		return &provider.ProviderError{Provider: providerName, Code: media.CodeUnknown, Message: "authentication failed: " + err.Error(), Err: err}
	case strings.Contains(errStr, "429") || strings.Contains(errStr, "rate limit"):
		return provider.RateLimited(providerName, 10*time.Second, err)
	case strings.Contains(errStr, "404") || strings.Contains(errStr, "could not be found"):
		return &provider.ProviderError{Provider: providerName, Code: media.CodeNotFound, Message: "not found", Err: err}
	case strings.Contains(errStr, "503") || strings.Contains(errStr, "unavailable") || strings.Contains(errStr, "500"):
		return provider.ServerError(providerName, 0, err)
	case strings.Contains(errStr, "timeout") || strings.Contains(errStr, "connection") || strings.Contains(errStr, "no such host"):
		return provider.NetworkError(providerName, err)
	}
	return &provider.ProviderError{Provider: providerName, Code: media.CodeUnknown, Message: err.Error(), Err: err}
}
