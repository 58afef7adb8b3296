package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

// secretEnv lists credentials that may be supplied through the environment
// instead of the config file. File values win when both are present.
type secretEnv struct {
	LLMAPIKey            string `env:"MARQUEE_LLM_API_KEY"`
	TicketmasterAPIKey   string `env:"TICKETMASTER_API_KEY"`
	SpotifyClientID      string `env:"SPOTIFY_CLIENT_ID"`
	SpotifyClientSecret  string `env:"SPOTIFY_CLIENT_SECRET"`
	KnowledgeGraphAPIKey string `env:"GOOGLE_KG_API_KEY"`
}

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.applySecretEnv(); err != nil {
		return err
	}
	c.normalizeCatalog()
	c.normalizeLLM()
	c.normalizeTicketmaster()
	c.normalizeSpotify()
	c.normalizeKnowledgeGraph()
	c.normalizeBatches()
	c.normalizeLogging()
	c.normalizeTelemetry()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.VenuesFile, err = expandPath(strings.TrimSpace(c.Paths.VenuesFile)); err != nil {
		return fmt.Errorf("paths.venues_file: %w", err)
	}
	if c.Paths.FeedDir, err = expandPath(strings.TrimSpace(c.Paths.FeedDir)); err != nil {
		return fmt.Errorf("paths.feed_dir: %w", err)
	}
	return nil
}

func (c *Config) applySecretEnv() error {
	var secrets secretEnv
	if err := env.Parse(&secrets); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	fill := func(target *string, value string) {
		if strings.TrimSpace(*target) == "" {
			*target = value
		}
		*target = strings.TrimSpace(*target)
	}
	fill(&c.LLM.APIKey, secrets.LLMAPIKey)
	fill(&c.Ticketmaster.APIKey, secrets.TicketmasterAPIKey)
	fill(&c.Spotify.ClientID, secrets.SpotifyClientID)
	fill(&c.Spotify.ClientSecret, secrets.SpotifyClientSecret)
	fill(&c.KnowledgeGraph.APIKey, secrets.KnowledgeGraphAPIKey)
	return nil
}

func (c *Config) normalizeCatalog() {
	c.Catalog.DefaultTimezone = strings.TrimSpace(c.Catalog.DefaultTimezone)
	if c.Catalog.DefaultTimezone == "" {
		c.Catalog.DefaultTimezone = defaultTimezone
	}
}

func (c *Config) normalizeLLM() {
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.Model == "" {
		c.LLM.Model = defaultLLMModel
	}
	c.LLM.Referer = strings.TrimSpace(c.LLM.Referer)
	c.LLM.Title = strings.TrimSpace(c.LLM.Title)
	if c.LLM.Title == "" {
		c.LLM.Title = defaultLLMTitle
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
}

func (c *Config) normalizeTicketmaster() {
	c.Ticketmaster.BaseURL = strings.TrimRight(strings.TrimSpace(c.Ticketmaster.BaseURL), "/")
	if c.Ticketmaster.BaseURL == "" {
		c.Ticketmaster.BaseURL = defaultTicketmasterBaseURL
	}
	if c.Ticketmaster.HorizonDays <= 0 {
		c.Ticketmaster.HorizonDays = defaultTicketmasterHorizonDays
	}
	if c.Ticketmaster.PageSize <= 0 || c.Ticketmaster.PageSize > 200 {
		c.Ticketmaster.PageSize = defaultTicketmasterPageSize
	}
	if c.Ticketmaster.MaxPages <= 0 {
		c.Ticketmaster.MaxPages = defaultTicketmasterMaxPages
	}
}

func (c *Config) normalizeSpotify() {
	c.Spotify.BaseURL = strings.TrimRight(strings.TrimSpace(c.Spotify.BaseURL), "/")
	if c.Spotify.BaseURL == "" {
		c.Spotify.BaseURL = defaultSpotifyBaseURL
	}
	c.Spotify.TokenURL = strings.TrimSpace(c.Spotify.TokenURL)
	if c.Spotify.TokenURL == "" {
		c.Spotify.TokenURL = defaultSpotifyTokenURL
	}
	c.Spotify.Market = strings.ToUpper(strings.TrimSpace(c.Spotify.Market))
	if c.Spotify.ExactMinPopularity <= 0 {
		c.Spotify.ExactMinPopularity = defaultSpotifyExactMinPopularity
	}
	if c.Spotify.PartialMinPopularity <= 0 {
		c.Spotify.PartialMinPopularity = defaultSpotifyPartialMinPopular
	}
}

func (c *Config) normalizeKnowledgeGraph() {
	c.KnowledgeGraph.Endpoint = strings.TrimSpace(c.KnowledgeGraph.Endpoint)
	c.KnowledgeGraph.Language = strings.ToLower(strings.TrimSpace(c.KnowledgeGraph.Language))
	if c.KnowledgeGraph.Language == "" {
		c.KnowledgeGraph.Language = defaultKnowledgeGraphLanguage
	}
	if c.KnowledgeGraph.MinScore < 0 {
		c.KnowledgeGraph.MinScore = 0
	}
}

func (c *Config) normalizeBatches() {
	if c.Matching.PageSize <= 0 {
		c.Matching.PageSize = defaultMatchingPageSize
	}
	if c.Matching.RecheckHours <= 0 {
		c.Matching.RecheckHours = defaultMatchingRecheckHours
	}
	if c.Enrichment.EventDelayMillis < 0 {
		c.Enrichment.EventDelayMillis = 0
	}
	if c.Enrichment.RequestDelayMillis < 0 {
		c.Enrichment.RequestDelayMillis = 0
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func (c *Config) normalizeTelemetry() {
	c.Metrics.PushgatewayURL = strings.TrimSpace(c.Metrics.PushgatewayURL)
	c.Metrics.Job = strings.TrimSpace(c.Metrics.Job)
	if c.Metrics.Job == "" {
		c.Metrics.Job = defaultMetricsJob
	}
	c.Tracing.OTLPEndpoint = strings.TrimSpace(c.Tracing.OTLPEndpoint)
	c.Tracing.ServiceName = strings.TrimSpace(c.Tracing.ServiceName)
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = defaultTracingServiceName
	}
}
