package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"marquee/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigShowCommand(ctx))

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			} else {
				expanded, err := config.ExpandPath(target)
				if err != nil {
					return fmt.Errorf("resolve config path: %w", err)
				}
				target = expanded
			}

			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("create config directory: %w", err)
			}
			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				} else if !os.IsNotExist(err) {
					return fmt.Errorf("check config path: %w", err)
				}
			}
			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("create sample config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Set API keys in the file or via MARQUEE_LLM_API_KEY, TICKETMASTER_API_KEY, SPOTIFY_CLIENT_ID/SPOTIFY_CLIENT_SECRET and GOOGLE_KG_API_KEY.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

type configSummary struct {
	Path           string `json:"path"`
	FileExists     bool   `json:"file_exists"`
	DataDir        string `json:"data_dir"`
	Database       string `json:"database"`
	LogDir         string `json:"log_dir"`
	VenuesFile     string `json:"venues_file"`
	FeedDir        string `json:"feed_dir,omitempty"`
	Timezone       string `json:"default_timezone"`
	LLM            bool   `json:"llm"`
	Ticketmaster   bool   `json:"ticketmaster"`
	Spotify        bool   `json:"spotify"`
	KnowledgeGraph bool   `json:"knowledge_graph"`
	Pushgateway    string `json:"pushgateway_url,omitempty"`
	OTLPEndpoint   string `json:"otlp_endpoint,omitempty"`
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the resolved configuration (secrets omitted)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			summary := configSummary{
				Path:           ctx.configPath,
				FileExists:     ctx.configSeen,
				DataDir:        cfg.Paths.DataDir,
				Database:       cfg.DatabasePath(),
				LogDir:         cfg.Paths.LogDir,
				VenuesFile:     cfg.Paths.VenuesFile,
				FeedDir:        cfg.Paths.FeedDir,
				Timezone:       cfg.Catalog.DefaultTimezone,
				LLM:            cfg.LLMEnabled(),
				Ticketmaster:   cfg.TicketmasterEnabled(),
				Spotify:        cfg.SpotifyEnabled(),
				KnowledgeGraph: cfg.KnowledgeGraphEnabled(),
				Pushgateway:    cfg.Metrics.PushgatewayURL,
				OTLPEndpoint:   cfg.Tracing.OTLPEndpoint,
			}
			return ctx.emit(cmd, summary, func() {
				path := summary.Path
				if !summary.FileExists {
					path += " (not found, defaults used)"
				}
				rows := [][]string{
					{"config", path},
					{"database", summary.Database},
					{"log dir", summary.LogDir},
					{"venues file", summary.VenuesFile},
					{"feed dir", summary.FeedDir},
					{"default timezone", summary.Timezone},
					{"llm", yesNo(summary.LLM)},
					{"ticketmaster", yesNo(summary.Ticketmaster)},
					{"spotify", yesNo(summary.Spotify)},
					{"knowledge graph", yesNo(summary.KnowledgeGraph)},
					{"pushgateway", summary.Pushgateway},
					{"otlp endpoint", summary.OTLPEndpoint},
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Setting", "Value"}, rows, nil))
			})
		},
	}
}
