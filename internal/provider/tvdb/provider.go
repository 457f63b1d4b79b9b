package tvdb

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	tvdbapi "github.com/dashotv/tvdb"
	"github.com/dashotv/tvdb/openapi/models/operations"

	"github.com/gaiakodi/gaiasource/internal/media"
	"github.com/gaiakodi/gaiasource/internal/provider"
)

const providerName = "tvdb"

// TVDBClient captures the dashotv client methods used by this provider.
type TVDBClient interface {
	GetSearchResults(request operations.GetSearchResultsRequest) (*tvdbapi.GetSearchResultsResponse, error)
	GetSeriesExtended(id float64, meta *operations.GetSeriesExtendedQueryParamMeta, short *bool) (*tvdbapi.GetSeriesExtendedResponse, error)
	GetMovieExtended(id float64, meta *operations.QueryParamMeta, short *bool) (*tvdbapi.GetMovieExtendedResponse, error)
	GetSeriesEpisodes(request operations.GetSeriesEpisodesRequest) (*tvdbapi.GetSeriesEpisodesResponse, error)
}

// Provider implements provider.Client for TheTVDB. It is the authority
// for episode numbering and tvdb ids.
type Provider struct {
	deps   provider.Deps
	client TVDBClient
	apiKey string
	logger *log.Logger

	login func(apiKey string) (TVDBClient, error)
}

// New creates an unconfigured TVDB provider.
func New(deps provider.Deps) *Provider {
	return &Provider{
		deps:   deps,
		logger: deps.Log(providerName),
		login: func(apiKey string) (TVDBClient, error) {
			c, err := tvdbapi.Login(apiKey)
			if err != nil {
				return nil, err
			}
			return c, nil
		},
	}
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return providerName
}

// Description returns a human readable description of the provider.
func (p *Provider) Description() string {
	return "TheTVDB: series, seasons, episode numbering and remote ids"
}

// Capabilities returns what this provider can handle.
func (p *Provider) Capabilities() provider.Capabilities {
	return provider.Capabilities{
		Operations:   []media.Kind{media.KindSearch, media.KindMetadata, media.KindPack, media.KindResolve},
		Media:        []media.Media{media.Movie, media.Show, media.Season, media.Episode},
		Sorts:        []media.Sort{media.SortRank},
		RequiresAuth: true,
		Priority:     95,
		PageSize:     pageSize,
	}
}

// ConfigSchema returns the configuration schema for this provider.
func (p *Provider) ConfigSchema() provider.ConfigSchema {
	return provider.ConfigSchema{
		Fields: []provider.ConfigField{
			{
				Name:        "api_key",
				DisplayName: "API Key",
				Type:        provider.ConfigFieldTypePassword,
				Required:    true,
				Description: "TVDB API key. Generate one from your thetvdb.com account dashboard",
				Sensitive:   true,
			},
		},
	}
}

// Configure applies configuration to the provider.
func (p *Provider) Configure(config map[string]interface{}) error {
	apiKeyRaw, ok := config["api_key"].(string)
	if !ok {
		return fmt.Errorf("api_key is required")
	}

	apiKey := strings.TrimSpace(apiKeyRaw)
	if apiKey == "" {
		return fmt.Errorf("api_key is required")
	}

	client, err := p.login(apiKey)
	if err != nil {
		return classify(err)
	}

	p.apiKey = apiKey
	p.client = client
	return nil
}

func (p *Provider) ready() error {
	if p.client == nil || p.apiKey == "" {
		return &provider.ProviderError{Provider: providerName, Code: media.CodeUnknown, Message: "provider not configured"}
	}
	return nil
}

// classify maps dashotv client errors, which only carry upstream text,
// onto provider errors.
func classify(err error) error {
	if err == nil {
		return nil
	}

	msg := err.Error()
	lower := strings.ToLower(msg)

	switch {
	case strings.Contains(lower, "401"), strings.Contains(lower, "unauthorized"), strings.Contains(lower, "apikey"):
		return &provider.ProviderError{Provider: providerName, Code: media.CodeUnknown, Message: "authentication failed: " + msg, Err: err}
	case strings.Contains(lower, "429"), strings.Contains(lower, "too many"):
		return provider.RateLimited(providerName, 5*time.Second, err)
	case strings.Contains(lower, "404"), strings.Contains(lower, "not found"):
		return &provider.ProviderError{Provider: providerName, Code: media.CodeNotFound, Message: msg, Err: err}
	case strings.Contains(lower, "503"), strings.Contains(lower, "unavailable"), strings.Contains(lower, "500"):
		return provider.ServerError(providerName, 0, err)
	case strings.Contains(lower, "timeout"), strings.Contains(lower, "connection"):
		return provider.NetworkError(providerName, err)
	}
	return &provider.ProviderError{Provider: providerName, Code: media.CodeUnknown, Message: msg, Err: err}
}
