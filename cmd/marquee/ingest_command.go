package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"marquee/internal/ingest"
	"marquee/internal/jobs"
	"marquee/internal/sources"
)

type ingestOutput struct {
	Collected map[string]int    `json:"collected"`
	Failures  []producerFailure `json:"producer_failures,omitempty"`
	Result    ingest.Result     `json:"result"`
}

type producerFailure struct {
	Key   string `json:"key"`
	Error string `json:"error"`
}

func newIngestCommand(ctx *commandContext) *cobra.Command {
	var sourceKeys []string
	var feeds []string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Collect records from source producers and upsert them",
		Long: "Collect records from the feed files in paths.feed_dir (or the files given with --feed) " +
			"and upsert them into the catalog. With --source or --feed only the named producers run.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			registry := sources.NewRegistry()
			if _, err := sources.RegisterFeedDir(registry, cfg.Paths.FeedDir); err != nil {
				return err
			}
			keys := append([]string(nil), sourceKeys...)
			for _, path := range feeds {
				key := sources.FeedKey(path)
				if err := registry.Register(key, sources.FileFeed(path)); err != nil {
					return err
				}
				keys = append(keys, key)
			}
			if len(registry.Keys()) == 0 {
				return fmt.Errorf("no source producers registered; set paths.feed_dir or pass --feed")
			}

			return ctx.withRunner(cmd, func(runCtx context.Context, runner *jobs.Runner) error {
				collected := registry.Collect(runCtx, keys...)
				out := ingestOutput{Collected: collected.Counts}
				for _, failure := range collected.Failures {
					out.Failures = append(out.Failures, producerFailure{Key: failure.Key, Error: failure.Err.Error()})
				}
				result, err := runner.RunUpsert(runCtx, collected.Records)
				if err != nil {
					return err
				}
				out.Result = result
				return ctx.emit(cmd, out, func() { renderIngest(cmd, out, len(collected.Records)) })
			})
		},
	}
	cmd.Flags().StringSliceVar(&sourceKeys, "source", nil, "Producer keys to collect (default: all registered)")
	cmd.Flags().StringSliceVar(&feeds, "feed", nil, "Additional feed files (YAML or JSON)")
	return cmd
}

func renderIngest(cmd *cobra.Command, out ingestOutput, records int) {
	w := cmd.OutOrStdout()
	printCounters(w, []counter{
		{"records collected", records},
		{"created", out.Result.Created},
		{"updated", out.Result.Updated},
		{"record errors", len(out.Result.Errors)},
		{"producer failures", len(out.Failures)},
	})
	if len(out.Failures) > 0 {
		rows := make([][]string, 0, len(out.Failures))
		for _, f := range out.Failures {
			rows = append(rows, []string{f.Key, f.Error})
		}
		fmt.Fprintln(w, renderTable([]string{"Producer", "Error"}, rows, nil))
	}
	if len(out.Result.Errors) > 0 {
		rows := make([][]string, 0, len(out.Result.Errors))
		for _, e := range out.Result.Errors {
			rows = append(rows, []string{strconv.Itoa(e.Index), e.VenueSlug, e.Title, e.Message})
		}
		fmt.Fprintln(w, renderTable([]string{"#", "Venue", "Title", "Error"}, rows, []columnAlignment{alignRight}))
	}
}
