package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"marquee/internal/config"
)

func TestLoadDefaultConfigUsesEnvSecretsAndExpandsPaths(t *testing.T) {
	t.Setenv("TICKETMASTER_API_KEY", "tm-key")
	t.Setenv("SPOTIFY_CLIENT_ID", " spotify-id ")
	t.Setenv("SPOTIFY_CLIENT_SECRET", "spotify-secret")
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "marquee")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.DatabasePath() != filepath.Join(wantData, "marquee.db") {
		t.Fatalf("unexpected database path: %q", cfg.DatabasePath())
	}
	if cfg.Ticketmaster.APIKey != "tm-key" {
		t.Fatalf("expected ticketmaster key from env, got %q", cfg.Ticketmaster.APIKey)
	}
	if cfg.Spotify.ClientID != "spotify-id" {
		t.Fatalf("expected trimmed spotify client id, got %q", cfg.Spotify.ClientID)
	}
	if !cfg.TicketmasterEnabled() || !cfg.SpotifyEnabled() {
		t.Fatal("expected ticketmaster and spotify to be enabled")
	}
	if cfg.LLMEnabled() {
		t.Fatal("expected llm disabled without api key")
	}
	if cfg.Catalog.DefaultTimezone != "America/Chicago" {
		t.Fatalf("unexpected default timezone %q", cfg.Catalog.DefaultTimezone)
	}
	if cfg.Matching.PageSize != config.Default().Matching.PageSize {
		t.Fatalf("unexpected matching page size %d", cfg.Matching.PageSize)
	}
}

func TestLoadFileValuesOverrideEnv(t *testing.T) {
	t.Setenv("MARQUEE_LLM_API_KEY", "from-env")
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(dir, "data")
	cfg.LLM.APIKey = "from-file"
	cfg.Logging.Format = "JSON"
	cfg.Enrichment.EventDelayMillis = -5
	encoded, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, encoded, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	loaded, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected config %q to exist, got %q exists=%v", path, resolved, exists)
	}
	if loaded.LLM.APIKey != "from-file" {
		t.Fatalf("expected file api key to win, got %q", loaded.LLM.APIKey)
	}
	if loaded.Logging.Format != "json" {
		t.Fatalf("expected normalized log format json, got %q", loaded.Logging.Format)
	}
	if loaded.Enrichment.EventDelayMillis != 0 {
		t.Fatalf("expected negative delay clamped to 0, got %d", loaded.Enrichment.EventDelayMillis)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{
			name:    "unknown timezone",
			mutate:  func(c *config.Config) { c.Catalog.DefaultTimezone = "Mars/Olympus" },
			wantErr: "default_timezone",
		},
		{
			name:    "bad log format",
			mutate:  func(c *config.Config) { c.Logging.Format = "xml" },
			wantErr: "logging.format",
		},
		{
			name:    "relative pushgateway",
			mutate:  func(c *config.Config) { c.Metrics.PushgatewayURL = "pushgateway:9091" },
			wantErr: "metrics.pushgateway_url",
		},
		{
			name: "partial popularity below exact",
			mutate: func(c *config.Config) {
				c.Spotify.ExactMinPopularity = 60
				c.Spotify.PartialMinPopularity = 40
			},
			wantErr: "partial_min_popularity",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Paths.DataDir = t.TempDir()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error mentioning %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestCreateSampleIsLoadable(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if !exists {
		t.Fatal("expected sample config to exist")
	}
	if cfg.Ticketmaster.HorizonDays != 60 {
		t.Fatalf("unexpected horizon days %d", cfg.Ticketmaster.HorizonDays)
	}
}
