package testsupport

import (
	"context"
	"testing"
	"time"

	"marquee/internal/catalog"
	"marquee/internal/config"
	"marquee/internal/textutil"
)

// MustOpenStore opens a catalog.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *catalog.Store {
	t.Helper()

	store, err := catalog.Open(cfg)
	if err != nil {
		t.Fatalf("catalog.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustVenue creates or updates a venue for tests.
func MustVenue(t testing.TB, store *catalog.Store, slug, timezone string) *catalog.Venue {
	t.Helper()

	venue, err := store.UpsertVenue(context.Background(), catalog.Venue{Slug: slug, Name: slug, Timezone: timezone})
	if err != nil {
		t.Fatalf("store.UpsertVenue: %v", err)
	}
	return venue
}

// MustEvent inserts a scraper event with the given title and start for tests.
func MustEvent(t testing.TB, store *catalog.Store, venue *catalog.Venue, title string, start time.Time) *catalog.Event {
	t.Helper()

	ev, err := store.InsertEvent(context.Background(), catalog.NewEvent{
		VenueID: venue.ID,
		Source:  catalog.SourceScraper,
		EventFields: catalog.EventFields{
			Title:           title,
			NormalizedTitle: textutil.NormalizeTitle(title),
			StartsAt:        start,
		},
	})
	if err != nil {
		t.Fatalf("store.InsertEvent: %v", err)
	}
	return ev
}
