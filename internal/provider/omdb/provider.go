package omdb

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Digital-Shane/omdb"
	"github.com/charmbracelet/log"

	"github.com/gaiakodi/gaiasource/internal/media"
	"github.com/gaiakodi/gaiasource/internal/provider"
)

const (
	providerName = "omdb"
	// voteSource is the key of the IMDb vote in Record.Voting.
	voteSource = "imdb"
	pageSize   = 10
)

// Provider implements provider.Client for OMDb, the source of IMDb ratings
// and the authority for imdb ids. Title and episode lookups go through the
// omdb client; full detail and search pages are read as raw JSON.
type Provider struct {
	deps       provider.Deps
	client     *omdb.Client
	api        *provider.API
	httpClient *http.Client
	apiKey     string
	baseURL    string
	logger     *log.Logger
}

// New creates an unconfigured OMDb provider.
func New(deps provider.Deps) *Provider {
	return &Provider{
		deps:       deps,
		httpClient: deps.HTTP,
		baseURL:    omdb.DefaultURL,
		logger:     deps.Log(providerName),
	}
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return providerName
}

// Description returns a human readable description of the provider.
func (p *Provider) Description() string {
	return "Open Movie Database (OMDb): IMDb ratings, certificates and imdb ids"
}

// Capabilities returns what this provider can handle.
func (p *Provider) Capabilities() provider.Capabilities {
	return provider.Capabilities{
		Operations:   []media.Kind{media.KindSearch, media.KindMetadata, media.KindResolve},
		Media:        []media.Media{media.Movie, media.Show, media.Season, media.Episode},
		Sorts:        []media.Sort{media.SortRank},
		RequiresAuth: true,
		Priority:     60,
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
				Description: "OMDb API key. Request one from https://www.omdbapi.com/apikey.aspx",
				Sensitive:   true,
			},
			{
				Name:        "base_url",
				DisplayName: "API URL",
				Type:        provider.ConfigFieldTypeString,
				Default:     omdb.DefaultURL,
				Description: "OMDb endpoint",
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
	if u, ok := config["base_url"].(string); ok && u != "" {
		p.baseURL = u
	}

	if p.httpClient == nil {
		p.httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	p.apiKey = apiKey
	p.client = omdb.NewClient(p.apiKey, p.httpClient)
	p.api = p.deps.API(providerName, p.baseURL)
	p.api.HTTP = p.httpClient
	p.api.Sign = p.sign
	return nil
}

func (p *Provider) sign(req *http.Request, _ bool) {
	q := req.URL.Query()
	q.Set("apikey", p.apiKey)
	req.URL.RawQuery = q.Encode()
}

func (p *Provider) ready() error {
	if p.client == nil || p.api == nil {
		return &provider.ProviderError{Provider: providerName, Code: media.CodeUnknown, Message: "provider not configured"}
	}
	return nil
}

// classify maps OMDb error texts onto provider errors. OMDb answers most
// failures with HTTP 200 and a message.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var pe *provider.ProviderError
	if errors.As(err, &pe) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return provider.NetworkError(providerName, err)
	}

	msg := err.Error()
	lower := strings.ToLower(msg)

	switch {
	case strings.Contains(lower, "invalid api key"), strings.Contains(lower, "no api key"), strings.Contains(lower, "missing omdb api key"):
		return &provider.ProviderError{Provider: providerName, Code: media.CodeUnknown, Message: "authentication failed: " + msg, Err: err}
	case strings.Contains(lower, "not found"), strings.Contains(lower, "incorrect imdb id"):
		return &provider.ProviderError{Provider: providerName, Code: media.CodeNotFound, Message: msg, Err: err}
	case strings.Contains(lower, "limit reached"), strings.Contains(lower, "too many requests"):
		return provider.RateLimited(providerName, 5*time.Second, err)
	case strings.Contains(lower, "timeout"), strings.Contains(lower, "connection"):
		return provider.NetworkError(providerName, err)
	}
	return &provider.ProviderError{Provider: providerName, Code: media.CodeUnknown, Message: msg, Err: err}
}

// parseRating reads an imdbRating, rounded back to the one decimal OMDb
// reports after the float32 parse.
func parseRating(value string) float64 {
	return math.Round(float64(omdb.ParseRating(value))*100) / 100
}

// parseRuntime attempts to convert runtime strings (e.g., "136 min") to integer minutes.
func parseRuntime(value string) int {
	if value == "" {
		return 0
	}
	fields := strings.Fields(value)
	if len(fields) == 0 {
		return 0
	}
	minutes, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0
	}
	return minutes
}
