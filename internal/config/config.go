package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and file locations.
type Paths struct {
	DataDir    string `toml:"data_dir"`
	LogDir     string `toml:"log_dir"`
	VenuesFile string `toml:"venues_file"`
	FeedDir    string `toml:"feed_dir"`
}

// Catalog contains canonical catalog settings.
type Catalog struct {
	// DefaultTimezone applies to venues that do not declare their own timezone.
	DefaultTimezone string `toml:"default_timezone"`
}

// LLM contains the chat completion settings used for classification and arbitration.
type LLM struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	Referer        string `toml:"referer"`
	Title          string `toml:"title"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Ticketmaster contains configuration for the ticket platform Discovery API.
type Ticketmaster struct {
	APIKey      string `toml:"api_key"`
	BaseURL     string `toml:"base_url"`
	HorizonDays int    `toml:"horizon_days"`
	PageSize    int    `toml:"page_size"`
	MaxPages    int    `toml:"max_pages"`
}

// Spotify contains configuration for the music catalog search.
type Spotify struct {
	ClientID             string `toml:"client_id"`
	ClientSecret         string `toml:"client_secret"`
	BaseURL              string `toml:"base_url"`
	TokenURL             string `toml:"token_url"`
	Market               string `toml:"market"`
	ExactMinPopularity   int    `toml:"exact_min_popularity"`
	PartialMinPopularity int    `toml:"partial_min_popularity"`
}

// KnowledgeGraph contains configuration for the Google Knowledge Graph Search API.
type KnowledgeGraph struct {
	APIKey   string  `toml:"api_key"`
	Endpoint string  `toml:"endpoint"`
	Language string  `toml:"language"`
	MinScore float64 `toml:"min_score"`
}

// Matching contains cross-source matcher settings.
type Matching struct {
	PageSize     int `toml:"page_size"`
	RecheckHours int `toml:"recheck_hours"`
}

// Enrichment contains enrichment pacing settings.
type Enrichment struct {
	EventDelayMillis   int `toml:"event_delay_ms"`
	RequestDelayMillis int `toml:"request_delay_ms"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Metrics contains Prometheus Pushgateway settings.
type Metrics struct {
	PushgatewayURL string `toml:"pushgateway_url"`
	Job            string `toml:"job"`
}

// Tracing contains OpenTelemetry exporter settings.
type Tracing struct {
	OTLPEndpoint string `toml:"otlp_endpoint"`
	ServiceName  string `toml:"service_name"`
}

// Config encapsulates all configuration values for marquee.
//
// Configuration sections by subsystem:
//   - Paths: data, log, venue catalog and feed locations
//   - Catalog: default venue timezone for day bucketing
//   - LLM: classification and match arbitration
//   - Ticketmaster: external ticket cache refresh
//   - Spotify: music catalog lookups during enrichment
//   - KnowledgeGraph: entity lookups during enrichment
//   - Matching / Enrichment: batch pacing and windows
//   - Logging, Metrics, Tracing: operational output
type Config struct {
	Paths          Paths          `toml:"paths"`
	Catalog        Catalog        `toml:"catalog"`
	LLM            LLM            `toml:"llm"`
	Ticketmaster   Ticketmaster   `toml:"ticketmaster"`
	Spotify        Spotify        `toml:"spotify"`
	KnowledgeGraph KnowledgeGraph `toml:"knowledge_graph"`
	Matching       Matching       `toml:"matching"`
	Enrichment     Enrichment     `toml:"enrichment"`
	Logging        Logging        `toml:"logging"`
	Metrics        Metrics        `toml:"metrics"`
	Tracing        Tracing        `toml:"tracing"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("marquee.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the data and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir, c.LockDir()} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the SQLite catalog location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "marquee.db")
}

// LockDir returns the directory holding per-job lock files.
func (c *Config) LockDir() string {
	return filepath.Join(c.Paths.DataDir, "locks")
}

// DefaultLocation returns the parsed default venue timezone. Validate guarantees it loads.
func (c *Config) DefaultLocation() *time.Location {
	loc, err := time.LoadLocation(c.Catalog.DefaultTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// RecheckWindow returns how long a match check stays fresh.
func (c *Config) RecheckWindow() time.Duration {
	return time.Duration(c.Matching.RecheckHours) * time.Hour
}

// EventDelay returns the pause between enrichment events.
func (c *Config) EventDelay() time.Duration {
	return time.Duration(c.Enrichment.EventDelayMillis) * time.Millisecond
}

// RequestDelay returns the pause between secondary enrichment requests.
func (c *Config) RequestDelay() time.Duration {
	return time.Duration(c.Enrichment.RequestDelayMillis) * time.Millisecond
}

// LLMEnabled reports whether classification and arbitration can run.
func (c *Config) LLMEnabled() bool {
	return strings.TrimSpace(c.LLM.APIKey) != ""
}

// TicketmasterEnabled reports whether the ticket cache can be refreshed.
func (c *Config) TicketmasterEnabled() bool {
	return strings.TrimSpace(c.Ticketmaster.APIKey) != ""
}

// SpotifyEnabled reports whether music catalog lookups can run.
func (c *Config) SpotifyEnabled() bool {
	return strings.TrimSpace(c.Spotify.ClientID) != "" && strings.TrimSpace(c.Spotify.ClientSecret) != ""
}

// KnowledgeGraphEnabled reports whether knowledge graph lookups can run.
func (c *Config) KnowledgeGraphEnabled() bool {
	return strings.TrimSpace(c.KnowledgeGraph.APIKey) != ""
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
