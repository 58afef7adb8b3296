package catalog_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"marquee/internal/catalog"
	"marquee/internal/testsupport"
)

func TestOpenRejectsSchemaMismatch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	path := store.Path()
	store.Close()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open raw db: %v", err)
	}
	if _, err := db.Exec("UPDATE schema_version SET version = 99"); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	db.Close()

	if _, err := catalog.OpenPath(path); !errors.Is(err, catalog.ErrSchemaMismatch) {
		t.Fatalf("expected schema mismatch, got %v", err)
	}
}

func TestVenueUpsertBySlug(t *testing.T) {
	ctx := context.Background()
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))

	first, err := store.UpsertVenue(ctx, catalog.Venue{Slug: " Stubbs ", Name: "Stubb's", Timezone: "America/Chicago"})
	if err != nil {
		t.Fatalf("UpsertVenue: %v", err)
	}
	second, err := store.UpsertVenue(ctx, catalog.Venue{Slug: "stubbs", Name: "Stubb's BBQ", TicketVenueID: "KovZpZA"})
	if err != nil {
		t.Fatalf("UpsertVenue: %v", err)
	}
	if first.ID != second.ID || second.Name != "Stubb's BBQ" || second.TicketVenueID != "KovZpZA" {
		t.Fatalf("expected in-place update, got %+v then %+v", first, second)
	}

	ticketed, err := store.TicketedVenues(ctx)
	if err != nil {
		t.Fatalf("TicketedVenues: %v", err)
	}
	if len(ticketed) != 1 || ticketed[0].Slug != "stubbs" {
		t.Fatalf("unexpected ticketed venues %+v", ticketed)
	}
	if _, err := store.VenueBySlug(ctx, "missing"); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestInsertAndOverwriteEvent(t *testing.T) {
	ctx := context.Background()
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	venue := testsupport.MustVenue(t, store, "stubbs", "America/Chicago")
	start := time.Date(2025, 12, 14, 19, 0, 0, 0, time.UTC)

	ev, err := store.InsertEvent(ctx, catalog.NewEvent{
		VenueID:       venue.ID,
		Source:        catalog.SourceScraper,
		SourceEventID: "evt-1",
		EventFields: catalog.EventFields{
			Title:           "Gospel Brunch",
			NormalizedTitle: "gospel brunch",
			Description:     "Sunday brunch",
			StartsAt:        start,
		},
	})
	if err != nil {
		t.Fatalf("InsertEvent: %v", err)
	}
	if ev.Status != catalog.EventScheduled || ev.Category != catalog.CategoryOther {
		t.Fatalf("unexpected defaults %+v", ev)
	}
	if ev.VenueSlug != "stubbs" || ev.VenueTimezone != "America/Chicago" {
		t.Fatalf("expected venue join, got %+v", ev)
	}

	if err := store.UpdateEventCategory(ctx, ev.ID, catalog.CategoryConcert); err != nil {
		t.Fatalf("UpdateEventCategory: %v", err)
	}
	err = store.OverwriteEvent(ctx, ev.ID, catalog.EventFields{
		Title:           "Gospel Brunch Live",
		NormalizedTitle: "gospel brunch live",
		StartsAt:        start.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("OverwriteEvent: %v", err)
	}
	got, err := store.GetEvent(ctx, ev.ID)
	if err != nil {
		t.Fatalf("GetEvent: %v", err)
	}
	if got.Title != "Gospel Brunch Live" || got.Description != "" || !got.StartsAt.Equal(start.Add(time.Hour)) {
		t.Fatalf("expected full overwrite, got %+v", got)
	}
	if got.Category != catalog.CategoryConcert {
		t.Fatalf("expected empty category to keep CONCERT, got %s", got.Category)
	}
	if got.SourceEventID != "evt-1" || got.Source != catalog.SourceScraper {
		t.Fatalf("identity changed: %+v", got)
	}

	_, err = store.InsertEvent(ctx, catalog.NewEvent{
		VenueID:       venue.ID,
		Source:        catalog.SourceScraper,
		SourceEventID: "evt-1",
		EventFields:   catalog.EventFields{Title: "Dup", NormalizedTitle: "dup", StartsAt: start},
	})
	if !catalog.IsUniqueViolation(err) {
		t.Fatalf("expected unique violation, got %v", err)
	}
}

func TestFindByTitleOnDay(t *testing.T) {
	ctx := context.Background()
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	venue := testsupport.MustVenue(t, store, "stubbs", "America/Chicago")
	start := time.Date(2025, 12, 14, 19, 0, 0, 0, time.UTC)
	ev := testsupport.MustEvent(t, store, venue, "Bob Dylan", start)

	lookup := catalog.TitleLookup{
		VenueID:         venue.ID,
		Source:          catalog.SourceScraper,
		NormalizedTitle: "bob dylan",
		DayStart:        start.Add(-12 * time.Hour),
		DayEnd:          start.Add(12 * time.Hour),
	}
	found, err := store.FindByTitleOnDay(ctx, lookup)
	if err != nil || found == nil || found.ID != ev.ID {
		t.Fatalf("expected match, got %+v err=%v", found, err)
	}

	lookup.DayStart = start.Add(time.Hour)
	lookup.DayEnd = start.Add(25 * time.Hour)
	if found, err := store.FindByTitleOnDay(ctx, lookup); err != nil || found != nil {
		t.Fatalf("expected no match outside day, got %+v err=%v", found, err)
	}
}

func TestEventsNeedingMatchKeysetAndRecheck(t *testing.T) {
	ctx := context.Background()
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	venue := testsupport.MustVenue(t, store, "stubbs", "")
	now := time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)

	testsupport.MustEvent(t, store, venue, "Past", now.Add(-time.Hour))
	a := testsupport.MustEvent(t, store, venue, "A", now.Add(2*time.Hour))
	b := testsupport.MustEvent(t, store, venue, "B", now.Add(2*time.Hour))
	c := testsupport.MustEvent(t, store, venue, "C", now.Add(time.Hour))

	sel := catalog.MatchSelection{Now: now, CheckedBefore: now.Add(-20 * time.Hour), Limit: 2}
	page, err := store.EventsNeedingMatch(ctx, sel)
	if err != nil {
		t.Fatalf("EventsNeedingMatch: %v", err)
	}
	if len(page) != 2 || page[0].ID != c.ID || page[1].ID != a.ID {
		t.Fatalf("unexpected first page %v", ids(page))
	}
	sel.After = catalog.MatchCursor{StartsAt: page[1].StartsAt, ID: page[1].ID}
	page, err = store.EventsNeedingMatch(ctx, sel)
	if err != nil {
		t.Fatalf("EventsNeedingMatch: %v", err)
	}
	if len(page) != 1 || page[0].ID != b.ID {
		t.Fatalf("unexpected second page %v", ids(page))
	}

	if err := store.MarkMatchChecked(ctx, c.ID, now.Add(-time.Hour)); err != nil {
		t.Fatalf("MarkMatchChecked: %v", err)
	}
	if err := store.MarkMatchChecked(ctx, a.ID, now.Add(-30*time.Hour)); err != nil {
		t.Fatalf("MarkMatchChecked: %v", err)
	}
	page, err = store.EventsNeedingMatch(ctx, catalog.MatchSelection{Now: now, CheckedBefore: now.Add(-20 * time.Hour), Limit: 10})
	if err != nil {
		t.Fatalf("EventsNeedingMatch: %v", err)
	}
	if len(page) != 2 || page[0].ID != a.ID || page[1].ID != b.ID {
		t.Fatalf("expected fresh check to be skipped and stale one re-selected, got %v", ids(page))
	}
}

func TestSaveMatchRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	venue := testsupport.MustVenue(t, store, "stubbs", "")
	ev := testsupport.MustEvent(t, store, venue, "Texas MBB", time.Now().Add(48*time.Hour))
	checked := time.Date(2025, 12, 1, 8, 0, 0, 0, time.UTC)

	err := store.SaveMatch(ctx, ev.ID, catalog.MatchDecision{
		ExternalID:          "tm-2",
		MatchedName:         "UT MBB vs Baylor",
		Confidence:          0.35,
		PreferExternalTitle: true,
		CheckedAt:           &checked,
		Metadata:            &catalog.ExternalMetadata{Promoter: "Live Nation", SupportingActs: []string{"Opener"}},
	})
	if err != nil {
		t.Fatalf("SaveMatch: %v", err)
	}
	got, err := store.GetEvent(ctx, ev.ID)
	if err != nil {
		t.Fatalf("GetEvent: %v", err)
	}
	m := got.Match
	if !m.Matched() || m.ExternalID != "tm-2" || m.Confidence != 0.35 || !m.PreferExternalTitle {
		t.Fatalf("unexpected decision %+v", m)
	}
	if m.CheckedAt == nil || !m.CheckedAt.Equal(checked) {
		t.Fatalf("unexpected checked at %v", m.CheckedAt)
	}
	if m.Metadata == nil || m.Metadata.Promoter != "Live Nation" || len(m.Metadata.SupportingActs) != 1 {
		t.Fatalf("unexpected metadata %+v", m.Metadata)
	}
	if got.DisplayTitle() != "UT MBB vs Baylor" {
		t.Fatalf("expected external display title, got %q", got.DisplayTitle())
	}
}

func TestReplaceTicketCacheIsAtomic(t *testing.T) {
	ctx := context.Background()
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))

	stored, err := store.ReplaceTicketCache(ctx, []catalog.CacheRecord{
		{ExternalID: "a", VenueSlug: "stubbs", LocalDate: "2025-12-14", Name: "Late Show", LocalTime: "21:00"},
		{ExternalID: "b", VenueSlug: "stubbs", LocalDate: "2025-12-14", Name: "Early Show", LocalTime: "18:00"},
		{ExternalID: "b", VenueSlug: "stubbs", LocalDate: "2025-12-14", Name: "Duplicate"},
		{ExternalID: "", VenueSlug: "stubbs", LocalDate: "2025-12-14", Name: "No id"},
	})
	if err != nil {
		t.Fatalf("ReplaceTicketCache: %v", err)
	}
	if stored != 2 {
		t.Fatalf("expected 2 stored, got %d", stored)
	}
	candidates, err := store.CacheCandidates(ctx, "stubbs", "2025-12-14")
	if err != nil {
		t.Fatalf("CacheCandidates: %v", err)
	}
	if len(candidates) != 2 || candidates[0].Name != "Early Show" {
		t.Fatalf("unexpected candidates %+v", candidates)
	}

	// A failing replacement leaves the previous snapshot intact.
	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := store.ReplaceTicketCache(cancelled, []catalog.CacheRecord{{ExternalID: "c", VenueSlug: "stubbs", LocalDate: "2025-12-15", Name: "New"}}); err == nil {
		t.Fatal("expected cancelled replace to fail")
	}
	count, err := store.CountTicketCache(ctx)
	if err != nil {
		t.Fatalf("CountTicketCache: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected previous snapshot preserved, got %d rows", count)
	}

	if _, err := store.ReplaceTicketCache(ctx, nil); err != nil {
		t.Fatalf("ReplaceTicketCache empty: %v", err)
	}
	if count, _ := store.CountTicketCache(ctx); count != 0 {
		t.Fatalf("expected empty cache, got %d", count)
	}
}

func TestEnrichmentSelectionAndRetryCeiling(t *testing.T) {
	ctx := context.Background()
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	venue := testsupport.MustVenue(t, store, "stubbs", "")
	now := time.Now().UTC()

	fresh := testsupport.MustEvent(t, store, venue, "Fresh", now.Add(time.Hour))
	retry := testsupport.MustEvent(t, store, venue, "Retry", now.Add(2*time.Hour))
	exhausted := testsupport.MustEvent(t, store, venue, "Exhausted", now.Add(3*time.Hour))
	done := testsupport.MustEvent(t, store, venue, "Done", now.Add(4*time.Hour))
	testsupport.MustEvent(t, store, venue, "Past", now.Add(-time.Hour))

	save := func(id int64, status catalog.EnrichmentStatus, attempts int) {
		t.Helper()
		if err := store.SaveEnrichment(ctx, catalog.Enrichment{EventID: id, Status: status, Attempts: attempts, LastError: "boom"}); err != nil {
			t.Fatalf("SaveEnrichment: %v", err)
		}
	}
	save(retry.ID, catalog.EnrichmentFailed, 2)
	save(exhausted.ID, catalog.EnrichmentFailed, 3)
	save(done.ID, catalog.EnrichmentPartial, 0)

	events, err := store.EventsNeedingEnrichment(ctx, now, 10)
	if err != nil {
		t.Fatalf("EventsNeedingEnrichment: %v", err)
	}
	if got := ids(events); len(got) != 2 || got[0] != fresh.ID || got[1] != retry.ID {
		t.Fatalf("unexpected selection %v", got)
	}

	if err := store.MarkEnrichmentProcessing(ctx, retry.ID); err != nil {
		t.Fatalf("MarkEnrichmentProcessing: %v", err)
	}
	rec, err := store.GetEnrichment(ctx, retry.ID)
	if err != nil {
		t.Fatalf("GetEnrichment: %v", err)
	}
	if rec.Status != catalog.EnrichmentProcessing || rec.Attempts != 2 {
		t.Fatalf("expected processing with attempts preserved, got %+v", rec)
	}
	if none, err := store.GetEnrichment(ctx, fresh.ID); err != nil || none != nil {
		t.Fatalf("expected no record, got %+v err=%v", none, err)
	}
}

func TestEnrichmentSelectionAgreesWithNeedsEnrichment(t *testing.T) {
	ctx := context.Background()
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	venue := testsupport.MustVenue(t, store, "stubbs", "")
	start := time.Now().UTC().Add(time.Hour)

	statuses := []catalog.EnrichmentStatus{
		catalog.EnrichmentPending,
		catalog.EnrichmentProcessing,
		catalog.EnrichmentCompleted,
		catalog.EnrichmentPartial,
		catalog.EnrichmentFailed,
		catalog.EnrichmentSkipped,
	}
	want := make(map[int64]bool)
	n := 0
	for _, status := range statuses {
		for _, attempts := range []int{0, catalog.MaxEnrichmentAttempts - 1, catalog.MaxEnrichmentAttempts} {
			n++
			ev := testsupport.MustEvent(t, store, venue, fmt.Sprintf("%s %d", status, attempts), start.Add(time.Duration(n)*time.Minute))
			rec := catalog.Enrichment{EventID: ev.ID, Status: status, Attempts: attempts}
			if err := store.SaveEnrichment(ctx, rec); err != nil {
				t.Fatalf("SaveEnrichment: %v", err)
			}
			want[ev.ID] = catalog.NeedsEnrichment(&rec)
		}
	}
	fresh := testsupport.MustEvent(t, store, venue, "Never attempted", start.Add(time.Duration(n+1)*time.Minute))
	want[fresh.ID] = catalog.NeedsEnrichment(nil)

	events, err := store.EventsNeedingEnrichment(ctx, time.Now().UTC(), 100)
	if err != nil {
		t.Fatalf("EventsNeedingEnrichment: %v", err)
	}
	selected := make(map[int64]bool)
	for _, id := range ids(events) {
		selected[id] = true
	}
	for id, due := range want {
		if selected[id] != due {
			t.Errorf("event %d: selected=%v, NeedsEnrichment=%v", id, selected[id], due)
		}
	}
	if !selected[fresh.ID] {
		t.Error("event without a record must be selected")
	}
}

func TestEligibleForRetry(t *testing.T) {
	tests := []struct {
		status   catalog.EnrichmentStatus
		attempts int
		want     bool
	}{
		{catalog.EnrichmentFailed, 0, true},
		{catalog.EnrichmentFailed, 2, true},
		{catalog.EnrichmentFailed, 3, false},
		{catalog.EnrichmentPartial, 0, false},
		{catalog.EnrichmentCompleted, 0, false},
		{catalog.EnrichmentPending, 0, false},
	}
	for _, tt := range tests {
		if got := catalog.EligibleForRetry(tt.status, tt.attempts); got != tt.want {
			t.Errorf("EligibleForRetry(%s, %d) = %v, want %v", tt.status, tt.attempts, got, tt.want)
		}
	}
}

func TestParseEnums(t *testing.T) {
	if c, ok := catalog.ParseCategory(" theatre "); !ok || c != catalog.CategoryTheater {
		t.Fatalf("expected THEATER, got %q %v", c, ok)
	}
	if c := catalog.CoerceCategory("opera"); c != catalog.CategoryOther {
		t.Fatalf("expected OTHER, got %q", c)
	}
	if c := catalog.CoerceConfidence(""); c != catalog.ConfidenceMedium {
		t.Fatalf("expected medium, got %q", c)
	}
	if _, ok := catalog.ParseSource("carrier-pigeon"); ok {
		t.Fatal("expected unknown source to be rejected")
	}
}

func ids(events []*catalog.Event) []int64 {
	out := make([]int64, len(events))
	for i, ev := range events {
		out[i] = ev.ID
	}
	return out
}
