package config

const (
	defaultConfigPath                 = "~/.config/marquee/config.toml"
	defaultDataDir                    = "~/.local/share/marquee"
	defaultLogDir                     = "~/.local/share/marquee/logs"
	defaultVenuesFile                 = "~/.config/marquee/venues.yaml"
	defaultTimezone                   = "America/Chicago"
	defaultLLMBaseURL                 = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel                   = "google/gemini-3-flash-preview"
	defaultLLMTitle                   = "Marquee Event Catalog"
	defaultLLMTimeoutSeconds          = 60
	defaultTicketmasterBaseURL        = "https://app.ticketmaster.com/discovery/v2"
	defaultTicketmasterHorizonDays    = 60
	defaultTicketmasterPageSize       = 200
	defaultTicketmasterMaxPages       = 5
	defaultSpotifyBaseURL             = "https://api.spotify.com/v1"
	defaultSpotifyTokenURL            = "https://accounts.spotify.com/api/token"
	defaultSpotifyMarket              = "US"
	defaultSpotifyExactMinPopularity  = 20
	defaultSpotifyPartialMinPopular   = 50
	defaultKnowledgeGraphLanguage     = "en"
	defaultKnowledgeGraphMinScore     = 1.0
	defaultMatchingPageSize           = 50
	defaultMatchingRecheckHours       = 20
	defaultEnrichmentEventDelayMillis = 1000
	defaultEnrichmentRequestDelayMs   = 500
	defaultLogFormat                  = "console"
	defaultLogLevel                   = "info"
	defaultMetricsJob                 = "marquee"
	defaultTracingServiceName         = "marquee"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:    defaultDataDir,
			LogDir:     defaultLogDir,
			VenuesFile: defaultVenuesFile,
		},
		Catalog: Catalog{
			DefaultTimezone: defaultTimezone,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		Ticketmaster: Ticketmaster{
			BaseURL:     defaultTicketmasterBaseURL,
			HorizonDays: defaultTicketmasterHorizonDays,
			PageSize:    defaultTicketmasterPageSize,
			MaxPages:    defaultTicketmasterMaxPages,
		},
		Spotify: Spotify{
			BaseURL:              defaultSpotifyBaseURL,
			TokenURL:             defaultSpotifyTokenURL,
			Market:               defaultSpotifyMarket,
			ExactMinPopularity:   defaultSpotifyExactMinPopularity,
			PartialMinPopularity: defaultSpotifyPartialMinPopular,
		},
		KnowledgeGraph: KnowledgeGraph{
			Language: defaultKnowledgeGraphLanguage,
			MinScore: defaultKnowledgeGraphMinScore,
		},
		Matching: Matching{
			PageSize:     defaultMatchingPageSize,
			RecheckHours: defaultMatchingRecheckHours,
		},
		Enrichment: Enrichment{
			EventDelayMillis:   defaultEnrichmentEventDelayMillis,
			RequestDelayMillis: defaultEnrichmentRequestDelayMs,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Metrics: Metrics{
			Job: defaultMetricsJob,
		},
		Tracing: Tracing{
			ServiceName: defaultTracingServiceName,
		},
	}
}
