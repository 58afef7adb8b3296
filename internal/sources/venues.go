package sources

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"marquee/internal/catalog"
)

// VenueSpec is one entry of the venues file.
type VenueSpec struct {
	Slug          string `yaml:"slug"`
	Name          string `yaml:"name"`
	City          string `yaml:"city"`
	Timezone      string `yaml:"timezone"`
	TicketVenueID string `yaml:"ticket_venue_id"`
}

type venuesFile struct {
	Venues []VenueSpec `yaml:"venues"`
}

// LoadVenues reads the venues YAML file. Every entry needs a slug and a
// valid timezone when one is given.
func LoadVenues(path string) ([]VenueSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read venues file: %w", err)
	}
	var file venuesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode venues file %s: %w", path, err)
	}
	seen := make(map[string]struct{}, len(file.Venues))
	for i, spec := range file.Venues {
		slug := strings.TrimSpace(spec.Slug)
		if slug == "" {
			return nil, fmt.Errorf("venues file %s: entry %d has no slug", path, i)
		}
		if _, dup := seen[slug]; dup {
			return nil, fmt.Errorf("venues file %s: duplicate slug %q", path, slug)
		}
		seen[slug] = struct{}{}
		if tz := strings.TrimSpace(spec.Timezone); tz != "" {
			if _, err := time.LoadLocation(tz); err != nil {
				return nil, fmt.Errorf("venues file %s: venue %s: %w", path, slug, err)
			}
		}
		file.Venues[i].Slug = slug
	}
	return file.Venues, nil
}

// SyncVenues upserts every spec by slug and returns how many were written.
func SyncVenues(ctx context.Context, store *catalog.Store, specs []VenueSpec) (int, error) {
	synced := 0
	for _, spec := range specs {
		name := strings.TrimSpace(spec.Name)
		if name == "" {
			name = spec.Slug
		}
		_, err := store.UpsertVenue(ctx, catalog.Venue{
			Slug:          spec.Slug,
			Name:          name,
			City:          strings.TrimSpace(spec.City),
			Timezone:      strings.TrimSpace(spec.Timezone),
			TicketVenueID: strings.TrimSpace(spec.TicketVenueID),
		})
		if err != nil {
			return synced, fmt.Errorf("sync venue %s: %w", spec.Slug, err)
		}
		synced++
	}
	return synced, nil
}
