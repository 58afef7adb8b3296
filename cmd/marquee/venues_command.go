package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"marquee/internal/catalog"
	"marquee/internal/sources"
)

type venueView struct {
	Slug          string `json:"slug"`
	Name          string `json:"name"`
	City          string `json:"city,omitempty"`
	Timezone      string `json:"timezone,omitempty"`
	TicketVenueID string `json:"ticket_venue_id,omitempty"`
}

func newVenuesCommand(ctx *commandContext) *cobra.Command {
	venuesCmd := &cobra.Command{
		Use:   "venues",
		Short: "Venue catalog utilities",
	}

	venuesCmd.AddCommand(&cobra.Command{
		Use:   "sync [file]",
		Short: "Upsert venues from a YAML file (default paths.venues_file)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := cfg.Paths.VenuesFile
			if len(args) == 1 {
				path = strings.TrimSpace(args[0])
			}
			specs, err := sources.LoadVenues(path)
			if err != nil {
				return err
			}
			return ctx.withStore(cmd, func(store *catalog.Store) error {
				synced, err := sources.SyncVenues(cmd.Context(), store, specs)
				if err != nil {
					return err
				}
				return ctx.emit(cmd, map[string]any{"file": path, "synced": synced}, func() {
					fmt.Fprintf(cmd.OutOrStdout(), "Synced %d venues from %s\n", synced, path)
				})
			})
		},
	})

	venuesCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List known venues",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd, func(store *catalog.Store) error {
				venues, err := store.ListVenues(cmd.Context())
				if err != nil {
					return err
				}
				views := make([]venueView, 0, len(venues))
				rows := make([][]string, 0, len(venues))
				for _, v := range venues {
					views = append(views, venueView{
						Slug: v.Slug, Name: v.Name, City: v.City, Timezone: v.Timezone, TicketVenueID: v.TicketVenueID,
					})
					rows = append(rows, []string{v.Slug, v.Name, v.City, v.Timezone, v.TicketVenueID})
				}
				return ctx.emit(cmd, views, func() {
					if len(rows) == 0 {
						fmt.Fprintln(cmd.OutOrStdout(), "No venues; run `marquee venues sync` first")
						return
					}
					fmt.Fprintln(cmd.OutOrStdout(), renderTable(
						[]string{"Slug", "Name", "City", "Timezone", "Ticket ID"}, rows, nil))
				})
			})
		},
	})

	return venuesCmd
}
