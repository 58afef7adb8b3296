package main

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"marquee/internal/calendar"
	"marquee/internal/catalog"
)

type eventView struct {
	ID         int64     `json:"id"`
	Venue      string    `json:"venue"`
	Title      string    `json:"title"`
	StartsAt   time.Time `json:"starts_at"`
	Category   string    `json:"category"`
	Status     string    `json:"status"`
	ExternalID string    `json:"external_id,omitempty"`
	Confidence float64   `json:"match_confidence,omitempty"`
}

func newEventsCommand(ctx *commandContext) *cobra.Command {
	eventsCmd := &cobra.Command{
		Use:   "events",
		Short: "Inspect canonical events",
	}

	var limit int
	var includePast bool
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List upcoming events, soonest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			from := time.Now().UTC()
			if includePast {
				from = time.Time{}
			}
			return ctx.withStore(cmd, func(store *catalog.Store) error {
				events, err := store.ListEvents(cmd.Context(), from, limit)
				if err != nil {
					return err
				}
				views := make([]eventView, 0, len(events))
				rows := make([][]string, 0, len(events))
				for _, ev := range events {
					views = append(views, eventView{
						ID:         ev.ID,
						Venue:      ev.VenueSlug,
						Title:      ev.DisplayTitle(),
						StartsAt:   ev.StartsAt,
						Category:   string(ev.Category),
						Status:     string(ev.Status),
						ExternalID: ev.Match.ExternalID,
						Confidence: ev.Match.Confidence,
					})
					loc := calendar.LoadLocation(ev.VenueTimezone, cfg.DefaultLocation())
					rows = append(rows, []string{
						strconv.FormatInt(ev.ID, 10),
						calendar.DateKey(ev.StartsAt, loc) + " " + calendar.LocalClock(ev.StartsAt, loc),
						ev.VenueSlug,
						ev.DisplayTitle(),
						string(ev.Category),
						string(ev.Status),
						yesNo(ev.Match.Matched()),
					})
				}
				return ctx.emit(cmd, views, func() {
					if len(rows) == 0 {
						fmt.Fprintln(cmd.OutOrStdout(), "No events")
						return
					}
					fmt.Fprintln(cmd.OutOrStdout(), renderTable(
						[]string{"ID", "Local start", "Venue", "Title", "Category", "Status", "Matched"},
						rows,
						[]columnAlignment{alignRight},
					))
				})
			})
		},
	}
	listCmd.Flags().IntVar(&limit, "limit", 50, "Maximum events to list")
	listCmd.Flags().BoolVar(&includePast, "all", false, "Include past events")
	eventsCmd.AddCommand(listCmd)
	eventsCmd.AddCommand(newEnrichmentStatusCommand(ctx))

	return eventsCmd
}

func newEnrichmentStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "enrichment",
		Short: "Count enrichment records by status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd, func(store *catalog.Store) error {
				counts, err := store.EnrichmentCounts(cmd.Context())
				if err != nil {
					return err
				}
				statuses := make([]string, 0, len(counts))
				byName := make(map[string]int, len(counts))
				for status, n := range counts {
					statuses = append(statuses, string(status))
					byName[string(status)] = n
				}
				sort.Strings(statuses)
				return ctx.emit(cmd, byName, func() {
					if len(statuses) == 0 {
						fmt.Fprintln(cmd.OutOrStdout(), "No enrichment records")
						return
					}
					rows := make([]counter, 0, len(statuses))
					for _, status := range statuses {
						rows = append(rows, counter{status, byName[status]})
					}
					printCounters(cmd.OutOrStdout(), rows)
				})
			})
		},
	}
}
