package trakt

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/gaiakodi/gaiasource/internal/media"
	"github.com/gaiakodi/gaiasource/internal/provider"
)

const (
	providerName   = "trakt"
	defaultBaseURL = "https://api.trakt.tv"
	apiVersion     = "2"
	pageSize       = 20
	maxLimit       = 100
)

// Provider implements provider.Client for Trakt. Every endpoint is plain
// JSON, so all calls go through the shared provider.API transport.
type Provider struct {
	deps     provider.Deps
	api      *provider.API
	clientID string
	token    string
	baseURL  string
	country  string
	language string
	logger   *log.Logger
}

// New creates an unconfigured Trakt provider.
func New(deps provider.Deps) *Provider {
	return &Provider{
		deps:     deps,
		baseURL:  defaultBaseURL,
		country:  "us",
		language: "en",
		logger:   deps.Log(providerName),
	}
}

// Name returns the provider name
func (p *Provider) Name() string {
	return providerName
}

// Description returns the provider description
func (p *Provider) Description() string {
	return "Trakt: community lists, calendars, popularity signals and id lookups"
}

// Capabilities returns what this provider can do
func (p *Provider) Capabilities() provider.Capabilities {
	return provider.Capabilities{
		Operations: []media.Kind{
			media.KindSearch, media.KindDiscover, media.KindRelease, media.KindRecommend,
			media.KindList, media.KindMetadata, media.KindPack, media.KindResolve,
		},
		Media: []media.Media{media.Movie, media.Show, media.Season, media.Episode, media.Person},
		Sorts: []media.Sort{
			media.SortPopular, media.SortTrending, media.SortAnticipated,
			media.SortPlayed, media.SortWatched, media.SortCollected, media.SortRank,
		},
		RequiresAuth: true,
		Priority:     90,
		PageSize:     pageSize,
	}
}

// ConfigSchema returns the configuration schema for this provider
func (p *Provider) ConfigSchema() provider.ConfigSchema {
	return provider.ConfigSchema{
		Fields: []provider.ConfigField{
			{
				Name:        "client_id",
				DisplayName: "Client ID",
				Type:        provider.ConfigFieldTypePassword,
				Required:    true,
				Description: "Trakt API application client id",
				Sensitive:   true,
			},
			{
				Name:        "token",
				DisplayName: "Access Token",
				Type:        provider.ConfigFieldTypePassword,
				Description: "OAuth access token for user lists and recommendations",
				Sensitive:   true,
			},
			{
				Name:        "country",
				DisplayName: "Country",
				Type:        provider.ConfigFieldTypeString,
				Default:     "us",
				Description: "Country used for certificates and regional release dates",
			},
			{
				Name:        "language",
				DisplayName: "Language",
				Type:        provider.ConfigFieldTypeString,
				Default:     "en",
				Description: "Language of translated titles",
			},
			{
				Name:        "base_url",
				DisplayName: "API URL",
				Type:        provider.ConfigFieldTypeString,
				Default:     defaultBaseURL,
				Description: "Trakt API endpoint",
			},
		},
	}
}

// Configure applies configuration to the provider
func (p *Provider) Configure(config map[string]interface{}) error {
	clientID, _ := config["client_id"].(string)
	if strings.TrimSpace(clientID) == "" {
		return fmt.Errorf("client_id is required")
	}
	p.clientID = strings.TrimSpace(clientID)
	if token, ok := config["token"].(string); ok {
		p.token = strings.TrimSpace(token)
	}
	if country, ok := config["country"].(string); ok && country != "" {
		p.country = strings.ToLower(country)
	}
	if language, ok := config["language"].(string); ok && language != "" {
		p.language = strings.ToLower(language)
	}
	if u, ok := config["base_url"].(string); ok && u != "" {
		p.baseURL = u
	}

	p.api = p.deps.API(providerName, p.baseURL)
	p.api.RetryDelay = 5 * time.Second
	p.api.CanAuth = p.token != ""
	p.api.Keep = []string{"X-Pagination-Page", "X-Pagination-Page-Count", "X-Pagination-Item-Count"}
	p.api.Sign = p.sign
	return nil
}

func (p *Provider) sign(req *http.Request, auth bool) {
	req.Header.Set("trakt-api-key", p.clientID)
	req.Header.Set("trakt-api-version", apiVersion)
	if auth && p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}
}

func (p *Provider) ready() error {
	if p.api == nil {
		return &provider.ProviderError{Provider: providerName, Code: media.CodeUnknown, Message: "provider not configured"}
	}
	return nil
}

// authed reports whether user-scoped endpoints can be called.
func (p *Provider) authed() bool {
	return p.token != ""
}
