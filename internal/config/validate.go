package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	if _, err := time.LoadLocation(c.Catalog.DefaultTimezone); err != nil {
		return fmt.Errorf("catalog.default_timezone: unknown timezone %q", c.Catalog.DefaultTimezone)
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateURLs(); err != nil {
		return err
	}
	if c.Spotify.PartialMinPopularity < c.Spotify.ExactMinPopularity {
		return fmt.Errorf(
			"spotify.partial_min_popularity (%d) must be at least spotify.exact_min_popularity (%d)",
			c.Spotify.PartialMinPopularity,
			c.Spotify.ExactMinPopularity,
		)
	}
	if c.Spotify.PartialMinPopularity > 100 {
		return errors.New("spotify.partial_min_popularity must be between 0 and 100")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

func (c *Config) validateURLs() error {
	checks := []struct {
		key   string
		value string
	}{
		{"llm.base_url", c.LLM.BaseURL},
		{"ticketmaster.base_url", c.Ticketmaster.BaseURL},
		{"spotify.base_url", c.Spotify.BaseURL},
		{"spotify.token_url", c.Spotify.TokenURL},
		{"knowledge_graph.endpoint", c.KnowledgeGraph.Endpoint},
		{"metrics.pushgateway_url", c.Metrics.PushgatewayURL},
		{"tracing.otlp_endpoint", c.Tracing.OTLPEndpoint},
	}
	for _, check := range checks {
		if check.value == "" {
			continue
		}
		parsed, err := url.Parse(check.value)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("%s: invalid url %q", check.key, check.value)
		}
	}
	return nil
}
