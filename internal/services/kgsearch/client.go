package kgsearch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/api/googleapi"
	kg "google.golang.org/api/kgsearch/v1"
	"google.golang.org/api/option"

	"marquee/internal/services"
)

const (
	defaultEndpoint    = "https://kgsearch.googleapis.com/"
	defaultHTTPTimeout = 15 * time.Second
	searchLimit        = 5
)

// Config captures the Knowledge Graph Search API settings.
type Config struct {
	APIKey   string
	Endpoint string
	Language string
	MinScore float64
}

// Entity is an accepted knowledge graph result.
type Entity struct {
	ID          string
	Name        string
	Description string
	Bio         string
	ImageURL    string
	URL         string
	Types       []string
	Score       float64
}

// IsMusic reports whether any schema.org type names a music entity.
func (e *Entity) IsMusic() bool {
	if e == nil {
		return false
	}
	for _, t := range e.Types {
		if strings.Contains(t, "Music") {
			return true
		}
	}
	return false
}

// Client queries the Knowledge Graph Search API.
type Client struct {
	cfg     Config
	service *kg.Service
}

// NewClient builds the generated API service. The API key is attached by the
// transport so a caller-supplied HTTP client keeps working.
func NewClient(ctx context.Context, cfg Config, httpClient *http.Client) (*Client, error) {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.Endpoint = strings.TrimSpace(cfg.Endpoint)
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultEndpoint
	}
	if !strings.HasSuffix(cfg.Endpoint, "/") {
		cfg.Endpoint += "/"
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	base := httpClient.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	keyed := *httpClient
	keyed.Transport = &apiKeyTransport{key: cfg.APIKey, base: base}

	service, err := kg.NewService(ctx,
		option.WithHTTPClient(&keyed),
		option.WithEndpoint(cfg.Endpoint),
	)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "kgsearch", "new client", "build service", err)
	}
	return &Client{cfg: cfg, service: service}, nil
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool {
	return c != nil && c.cfg.APIKey != ""
}

type itemListElement struct {
	Result struct {
		ID          string   `json:"@id"`
		Name        string   `json:"name"`
		Types       []string `json:"@type"`
		Description string   `json:"description"`
		URL         string   `json:"url"`
		Image       struct {
			ContentURL string `json:"contentUrl"`
		} `json:"image"`
		DetailedDescription struct {
			ArticleBody string `json:"articleBody"`
			URL         string `json:"url"`
		} `json:"detailedDescription"`
	} `json:"result"`
	ResultScore float64 `json:"resultScore"`
}

// Search returns the first result whose score reaches the configured minimum,
// or nil when no result qualifies.
func (c *Client) Search(ctx context.Context, query string) (*Entity, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, services.Wrap(services.ErrValidation, "kgsearch", "search", "query required", nil)
	}
	if !c.Configured() {
		return nil, services.Wrap(services.ErrConfiguration, "kgsearch", "search", "api key required", nil)
	}

	resp, err := c.service.Entities.Search().
		Query(query).
		Languages(c.cfg.Language).
		Limit(searchLimit).
		Context(ctx).
		Do()
	if err != nil {
		return nil, services.Wrap(services.ErrExternalService, "kgsearch", "search", query, describeError(err))
	}

	for idx, raw := range resp.ItemListElement {
		item, err := decodeItem(raw)
		if err != nil {
			return nil, services.Wrap(services.ErrMalformedResponse, "kgsearch", "search",
				fmt.Sprintf("item %d", idx), err)
		}
		if item.ResultScore < c.cfg.MinScore || strings.TrimSpace(item.Result.Name) == "" {
			continue
		}
		result := item.Result
		return &Entity{
			ID:          result.ID,
			Name:        strings.TrimSpace(result.Name),
			Description: strings.TrimSpace(result.Description),
			Bio:         strings.TrimSpace(result.DetailedDescription.ArticleBody),
			ImageURL:    result.Image.ContentURL,
			URL:         firstNonEmpty(result.DetailedDescription.URL, result.URL),
			Types:       result.Types,
			Score:       item.ResultScore,
		}, nil
	}
	return nil, nil
}

// decodeItem converts one untyped list element into the typed shape.
func decodeItem(raw any) (itemListElement, error) {
	var item itemListElement
	data, err := json.Marshal(raw)
	if err != nil {
		return item, err
	}
	err = json.Unmarshal(data, &item)
	return item, err
}

func describeError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return fmt.Errorf("http %d: %w", apiErr.Code, err)
	}
	return err
}

type apiKeyTransport struct {
	key  string
	base http.RoundTripper
}

func (t *apiKeyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.key == "" {
		return t.base.RoundTrip(req)
	}
	clone := req.Clone(req.Context())
	query := clone.URL.Query()
	query.Set("key", t.key)
	clone.URL.RawQuery = query.Encode()
	return t.base.RoundTrip(clone)
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
