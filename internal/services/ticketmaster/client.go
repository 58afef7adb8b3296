package ticketmaster

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"marquee/internal/services"
)

const (
	defaultBaseURL       = "https://app.ticketmaster.com/discovery/v2"
	defaultPageSize      = 200
	maxPageSize          = 200
	defaultMaxPages      = 5
	defaultHTTPTimeout   = 30 * time.Second
	defaultRetryAttempts = 3
	defaultRetryBase     = time.Second
	defaultRetryMax      = 15 * time.Second
	discoveryTimeLayout  = "2006-01-02T15:04:05Z"
)

// Config captures the Discovery API settings.
type Config struct {
	APIKey         string
	BaseURL        string
	PageSize       int
	MaxPages       int
	TimeoutSeconds int
}

// Client queries the Discovery API for venue event listings.
type Client struct {
	cfg        Config
	httpClient *http.Client

	retryAttempts int
	retryBase     time.Duration
	retryMax      time.Duration
	sleeper       func(time.Duration)
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRetry overrides attempt count and backoff bounds.
func WithRetry(attempts int, base, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.retryAttempts = attempts
		c.retryBase = base
		c.retryMax = maxDelay
	}
}

// WithSleeper replaces the retry sleep, mainly for tests.
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) {
		c.sleeper = sleeper
	}
}

// NewClient constructs a Discovery client.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}
	cfg.PageSize = min(cfg.PageSize, maxPageSize)
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = defaultMaxPages
	}
	client := &Client{
		cfg:           cfg,
		httpClient:    &http.Client{Timeout: timeout},
		retryAttempts: defaultRetryAttempts,
		retryBase:     defaultRetryBase,
		retryMax:      defaultRetryMax,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool {
	return c != nil && c.cfg.APIKey != ""
}

// VenueEvents pages through all events at venueID starting in [from, to).
// Paging stops at the last page reported by the API or at the configured cap.
func (c *Client) VenueEvents(ctx context.Context, venueID string, from, to time.Time) ([]Event, error) {
	venueID = strings.TrimSpace(venueID)
	if venueID == "" {
		return nil, services.Wrap(services.ErrValidation, "ticketmaster", "venue events", "venue id required", nil)
	}
	if !c.Configured() {
		return nil, services.Wrap(services.ErrConfiguration, "ticketmaster", "venue events", "api key required", nil)
	}

	var events []Event
	for page := 0; page < c.cfg.MaxPages; page++ {
		resp, err := c.fetchPage(ctx, venueID, from, to, page)
		if err != nil {
			return events, services.Wrap(classifyError(err), "ticketmaster", "venue events",
				fmt.Sprintf("venue %s page %d", venueID, page), err)
		}
		events = append(events, resp.Embedded.Events...)
		if resp.Page.TotalPages <= page+1 || len(resp.Embedded.Events) == 0 {
			break
		}
	}
	return events, nil
}

func (c *Client) fetchPage(ctx context.Context, venueID string, from, to time.Time, page int) (*searchResponse, error) {
	query := url.Values{}
	query.Set("apikey", c.cfg.APIKey)
	query.Set("venueId", venueID)
	query.Set("startDateTime", from.UTC().Format(discoveryTimeLayout))
	query.Set("endDateTime", to.UTC().Format(discoveryTimeLayout))
	query.Set("size", strconv.Itoa(c.cfg.PageSize))
	query.Set("page", strconv.Itoa(page))
	query.Set("sort", "date,asc")
	endpoint := c.cfg.BaseURL + "/events.json?" + query.Encode()

	var lastErr error
	attempts := max(c.retryAttempts, 1)
	for attempt := 1; attempt <= attempts; attempt++ {
		resp, err := c.get(ctx, endpoint)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		delay, retry := c.retryDelay(ctx, err, attempt, attempts)
		if !retry {
			return nil, err
		}
		if err := c.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("failed after %d attempts: %w", attempts, lastErr)
}

func (c *Client) get(ctx context.Context, endpoint string) (*searchResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http error: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &StatusError{
			StatusCode: resp.StatusCode,
			Body:       snippet(string(body)),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}
	var decoded searchResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, &decodeError{err: err}
	}
	return &decoded, nil
}

// StatusError reports a non-2xx Discovery response.
type StatusError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Body)
}

// Retryable reports whether the status is worth another attempt.
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusRequestTimeout ||
		e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode >= http.StatusInternalServerError
}

type decodeError struct {
	err error
}

func (e *decodeError) Error() string { return "decode response: " + e.err.Error() }

func (e *decodeError) Unwrap() error { return e.err }

func classifyError(err error) error {
	var decode *decodeError
	if errors.As(err, &decode) {
		return services.ErrMalformedResponse
	}
	return services.ErrExternalService
}

func (c *Client) retryDelay(ctx context.Context, err error, attempt, maxAttempts int) (time.Duration, bool) {
	if attempt >= maxAttempts || ctx.Err() != nil {
		return 0, false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		if !statusErr.Retryable() {
			return 0, false
		}
		if statusErr.RetryAfter > 0 {
			return min(statusErr.RetryAfter, c.retryMax), true
		}
		return c.backoff(attempt), true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return c.backoff(attempt), true
	}
	return 0, false
}

func (c *Client) backoff(attempt int) time.Duration {
	delay := c.retryBase << (attempt - 1)
	if c.retryMax > 0 && delay > c.retryMax {
		return c.retryMax
	}
	return delay
}

func (c *Client) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
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

func parseRetryAfter(value string) time.Duration {
	seconds, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

func snippet(body string) string {
	body = strings.Join(strings.Fields(body), " ")
	if len(body) > 200 {
		return body[:200] + "..."
	}
	return body
}
