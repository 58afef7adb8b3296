package spotify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"marquee/internal/logging"
	"marquee/internal/services"
	"marquee/internal/textutil"
)

const (
	defaultBaseURL     = "https://api.spotify.com/v1"
	defaultTokenURL    = "https://accounts.spotify.com/api/token"
	defaultHTTPTimeout = 15 * time.Second
	searchLimit        = 5
	maxRetryAfter      = 10 * time.Second

	DefaultExactMinPopularity   = 20
	DefaultPartialMinPopularity = 50
)

// Config captures the music catalog credentials and acceptance thresholds.
type Config struct {
	ClientID             string
	ClientSecret         string
	BaseURL              string
	TokenURL             string
	Market               string
	ExactMinPopularity   int
	PartialMinPopularity int
}

// Artist is an accepted music catalog match.
type Artist struct {
	ID         string
	Name       string
	URL        string
	Genres     []string
	Popularity int
	ImageURL   string
	MatchType  textutil.NameMatch
}

// Client searches the Spotify Web API for artists.
type Client struct {
	cfg        Config
	httpClient *http.Client
	tokens     *tokenCache
	logger     *slog.Logger
	sleeper    func(time.Duration)
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client for both search and token calls.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithLogger attaches a logger for acceptance decisions.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithSleeper replaces the Retry-After sleep, mainly for tests.
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) {
		c.sleeper = sleeper
	}
}

// NewClient constructs a music catalog client.
func NewClient(cfg Config, opts ...Option) *Client {
	cfg.ClientID = strings.TrimSpace(cfg.ClientID)
	cfg.ClientSecret = strings.TrimSpace(cfg.ClientSecret)
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if strings.TrimSpace(cfg.TokenURL) == "" {
		cfg.TokenURL = defaultTokenURL
	}
	if cfg.ExactMinPopularity <= 0 {
		cfg.ExactMinPopularity = DefaultExactMinPopularity
	}
	if cfg.PartialMinPopularity <= 0 {
		cfg.PartialMinPopularity = DefaultPartialMinPopularity
	}
	client := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(client)
	}
	client.tokens = newTokenCache(cfg.ClientID, cfg.ClientSecret, cfg.TokenURL, client.httpClient)
	return client
}

// Configured reports whether client credentials are present.
func (c *Client) Configured() bool {
	return c != nil && c.cfg.ClientID != "" && c.cfg.ClientSecret != ""
}

type searchResponse struct {
	Artists struct {
		Items []artistItem `json:"items"`
	} `json:"artists"`
}

type artistItem struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Genres       []string `json:"genres"`
	Popularity   int      `json:"popularity"`
	ExternalURLs struct {
		Spotify string `json:"spotify"`
	} `json:"external_urls"`
	Images []struct {
		URL   string `json:"url"`
		Width int    `json:"width"`
	} `json:"images"`
}

// SearchArtist looks up performer and returns the first result that passes the
// name and popularity test, or nil when none does.
func (c *Client) SearchArtist(ctx context.Context, performer string) (*Artist, error) {
	performer = strings.TrimSpace(performer)
	if performer == "" {
		return nil, services.Wrap(services.ErrValidation, "spotify", "search artist", "performer required", nil)
	}
	if !c.Configured() {
		return nil, services.Wrap(services.ErrConfiguration, "spotify", "search artist", "client credentials required", nil)
	}

	resp, err := c.search(ctx, performer)
	if err != nil {
		var decode *decodeError
		marker := services.ErrExternalService
		if errors.As(err, &decode) {
			marker = services.ErrMalformedResponse
		}
		return nil, services.Wrap(marker, "spotify", "search artist", performer, err)
	}
	return c.selectArtist(performer, resp.Artists.Items), nil
}

func (c *Client) selectArtist(performer string, items []artistItem) *Artist {
	for idx, item := range items {
		match := textutil.CompareNames(performer, item.Name)
		accepted, reason := c.accept(match, item.Popularity)
		c.logger.Debug("music catalog candidate",
			logging.Args(append(logging.DecisionAttrs("music_match", acceptLabel(accepted), reason),
				logging.Int("result_index", idx),
				logging.String("query", performer),
				logging.String("candidate", item.Name),
				logging.Int("popularity", item.Popularity),
				logging.String("match_type", match.String()),
			)...)...)
		if !accepted {
			continue
		}
		return &Artist{
			ID:         item.ID,
			Name:       item.Name,
			URL:        item.ExternalURLs.Spotify,
			Genres:     item.Genres,
			Popularity: item.Popularity,
			ImageURL:   largestImage(item),
			MatchType:  match,
		}
	}
	return nil
}

// accept applies the popularity floor that corresponds to how closely the
// names agree. Partial matches need a materially higher floor.
func (c *Client) accept(match textutil.NameMatch, popularity int) (bool, string) {
	switch match {
	case textutil.NameExact:
		if popularity < c.cfg.ExactMinPopularity {
			return false, fmt.Sprintf("exact name below popularity %d", c.cfg.ExactMinPopularity)
		}
		return true, "exact name"
	case textutil.NamePartial:
		if popularity < c.cfg.PartialMinPopularity {
			return false, fmt.Sprintf("partial name below popularity %d", c.cfg.PartialMinPopularity)
		}
		return true, "partial name"
	default:
		return false, "name mismatch"
	}
}

func acceptLabel(accepted bool) string {
	if accepted {
		return "accepted"
	}
	return "rejected"
}

func (c *Client) search(ctx context.Context, performer string) (*searchResponse, error) {
	query := url.Values{}
	query.Set("q", performer)
	query.Set("type", "artist")
	query.Set("limit", strconv.Itoa(searchLimit))
	if market := strings.TrimSpace(c.cfg.Market); market != "" {
		query.Set("market", market)
	}
	endpoint := c.cfg.BaseURL + "/search?" + query.Encode()

	reauthorized, rateLimited := false, false
	for {
		token, err := c.tokens.AccessToken(ctx)
		if err != nil {
			return nil, fmt.Errorf("access token: %w", err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("new request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("http error: %w", err)
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("read body: %w", err)
		}

		switch {
		case resp.StatusCode == http.StatusUnauthorized && !reauthorized:
			reauthorized = true
			c.tokens.Invalidate()
			continue
		case resp.StatusCode == http.StatusTooManyRequests && !rateLimited:
			rateLimited = true
			if err := c.sleep(ctx, retryAfter(resp.Header.Get("Retry-After"))); err != nil {
				return nil, err
			}
			continue
		case resp.StatusCode >= http.StatusMultipleChoices:
			return nil, fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		}

		var decoded searchResponse
		if err := json.Unmarshal(body, &decoded); err != nil {
			return nil, &decodeError{err: err}
		}
		return &decoded, nil
	}
}

type decodeError struct {
	err error
}

func (e *decodeError) Error() string { return "decode response: " + e.err.Error() }

func (e *decodeError) Unwrap() error { return e.err }

func (c *Client) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	if c.sleeper != nil {
		c.sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func retryAfter(value string) time.Duration {
	seconds, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || seconds <= 0 {
		return time.Second
	}
	return min(time.Duration(seconds)*time.Second, maxRetryAfter)
}

func largestImage(item artistItem) string {
	best, width := "", -1
	for _, img := range item.Images {
		if img.URL != "" && img.Width > width {
			best, width = img.URL, img.Width
		}
	}
	return best
}
