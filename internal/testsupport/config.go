package testsupport

import (
	"path/filepath"
	"testing"

	"marquee/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// Pacing delays are zeroed and no external credentials are set.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.VenuesFile = filepath.Join(base, "venues.yaml")
	cfg.Enrichment.EventDelayMillis = 0
	cfg.Enrichment.RequestDelayMillis = 0

	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}
	return &cfg
}

// WithLLM points the LLM client at baseURL with a test key.
func WithLLM(baseURL string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.LLM.APIKey = "test"
		cfg.LLM.BaseURL = baseURL
	}
}

// WithTicketmaster points the Discovery client at baseURL with a test key.
func WithTicketmaster(baseURL string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Ticketmaster.APIKey = "test"
		cfg.Ticketmaster.BaseURL = baseURL
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
