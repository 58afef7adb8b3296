package jobs

import (
	"context"
	"log/slog"

	"marquee/internal/catalog"
	"marquee/internal/config"
	"marquee/internal/enrichment"
	"marquee/internal/metrics"
	"marquee/internal/services/kgsearch"
	"marquee/internal/services/llm"
	"marquee/internal/services/spotify"
	"marquee/internal/services/ticketmaster"
)

// NewFromConfig builds every external client from cfg and wires a Runner.
// Clients without credentials report themselves unconfigured and the
// components that use them degrade accordingly.
func NewFromConfig(ctx context.Context, cfg *config.Config, store *catalog.Store, logger *slog.Logger) (*Runner, error) {
	llmClient := llm.NewClient(llm.Config{
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.BaseURL,
		Model:          cfg.LLM.Model,
		Referer:        cfg.LLM.Referer,
		Title:          cfg.LLM.Title,
		TimeoutSeconds: cfg.LLM.TimeoutSeconds,
	})
	music := spotify.NewClient(spotify.Config{
		ClientID:             cfg.Spotify.ClientID,
		ClientSecret:         cfg.Spotify.ClientSecret,
		BaseURL:              cfg.Spotify.BaseURL,
		TokenURL:             cfg.Spotify.TokenURL,
		Market:               cfg.Spotify.Market,
		ExactMinPopularity:   cfg.Spotify.ExactMinPopularity,
		PartialMinPopularity: cfg.Spotify.PartialMinPopularity,
	}, spotify.WithLogger(logger))
	knowledge, err := kgsearch.NewClient(ctx, kgsearch.Config{
		APIKey:   cfg.KnowledgeGraph.APIKey,
		Endpoint: cfg.KnowledgeGraph.Endpoint,
		Language: cfg.KnowledgeGraph.Language,
		MinScore: cfg.KnowledgeGraph.MinScore,
	}, nil)
	if err != nil {
		return nil, err
	}
	discovery := ticketmaster.NewClient(ticketmaster.Config{
		APIKey:   cfg.Ticketmaster.APIKey,
		BaseURL:  cfg.Ticketmaster.BaseURL,
		PageSize: cfg.Ticketmaster.PageSize,
		MaxPages: cfg.Ticketmaster.MaxPages,
	})

	return New(cfg, store, Dependencies{
		Arbiter: llmClient,
		Enrichment: enrichment.Dependencies{
			Classifier: llmClient,
			Music:      music,
			Knowledge:  knowledge,
		},
		Discovery: discovery,
		Metrics:   metrics.New(cfg),
	}, logger)
}
