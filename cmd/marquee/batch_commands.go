package main

import (
	"context"

	"github.com/spf13/cobra"

	"marquee/internal/jobs"
)

func newMatchCommand(ctx *commandContext) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "match",
		Short: "Match upcoming events against the ticket cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRunner(cmd, func(runCtx context.Context, runner *jobs.Runner) error {
				summary, err := runner.RunMatchBatch(runCtx, limit)
				if err != nil {
					return err
				}
				return ctx.emit(cmd, summary, func() {
					printCounters(cmd.OutOrStdout(), []counter{
						{"matched", summary.Matched},
						{"no match", summary.NoMatch},
						{"sticky / skipped arbitration", summary.SkippedArbitration},
						{"errors", summary.Errors},
						{"cache size", summary.CacheSize},
					})
				})
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum events to check (0 for all due events)")
	return cmd
}

func newEnrichCommand(ctx *commandContext) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "enrich",
		Short: "Classify and enrich upcoming events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRunner(cmd, func(runCtx context.Context, runner *jobs.Runner) error {
				summary, err := runner.RunEnrichmentBatch(runCtx, limit)
				if err != nil {
					return err
				}
				return ctx.emit(cmd, summary, func() {
					printCounters(cmd.OutOrStdout(), []counter{
						{"processed", summary.Processed},
						{"completed", summary.Completed},
						{"partial", summary.Partial},
						{"failed", summary.Failed},
						{"skipped", summary.Skipped},
						{"categories updated", summary.CategoriesUpdated},
					})
				})
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 25, "Maximum events to enrich")
	return cmd
}

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Ticket platform cache utilities",
	}
	cacheCmd.AddCommand(&cobra.Command{
		Use:   "refresh",
		Short: "Rebuild the ticket cache for every ticketed venue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRunner(cmd, func(runCtx context.Context, runner *jobs.Runner) error {
				summary, err := runner.RunCacheRefresh(runCtx)
				if err != nil {
					return err
				}
				return ctx.emit(cmd, summary, func() {
					printCounters(cmd.OutOrStdout(), []counter{
						{"venues", summary.Venues},
						{"fetched", summary.Fetched},
						{"stored", summary.Stored},
						{"venue errors", summary.Errors},
					})
				})
			})
		},
	})
	return cacheCmd
}
