package matching_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"marquee/internal/calendar"
	"marquee/internal/catalog"
	"marquee/internal/logging"
	"marquee/internal/matching"
	"marquee/internal/services"
	"marquee/internal/services/llm"
	"marquee/internal/testsupport"
	"marquee/internal/textutil"
)

type fakeArbiter struct {
	configured bool
	calls      int
	requests   []llm.ArbitrationRequest
	respond    func(req llm.ArbitrationRequest) (llm.Arbitration, error)
}

func (f *fakeArbiter) Configured() bool { return f.configured }

func (f *fakeArbiter) ArbitrateMatch(_ context.Context, req llm.ArbitrationRequest) (llm.Arbitration, error) {
	f.calls++
	f.requests = append(f.requests, req)
	if f.respond == nil {
		return llm.Arbitration{}, nil
	}
	return f.respond(req)
}

func index(i int) *int { return &i }

type fixture struct {
	store   *catalog.Store
	venue   *catalog.Venue
	arbiter *fakeArbiter
	matcher *matching.Matcher
	start   time.Time
	date    string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	venue := testsupport.MustVenue(t, store, "erwin", "America/Chicago")
	loc, _ := time.LoadLocation("America/Chicago")
	now := time.Now()
	start := time.Date(now.Year(), now.Month(), now.Day(), 19, 0, 0, 0, loc).AddDate(0, 0, 3)
	arbiter := &fakeArbiter{configured: true}
	return &fixture{
		store:   store,
		venue:   venue,
		arbiter: arbiter,
		matcher: matching.NewMatcher(cfg, store, arbiter, logging.NewNop()),
		start:   start,
		date:    calendar.DateKey(start, loc),
	}
}

func (f *fixture) cache(t *testing.T, records ...catalog.CacheRecord) {
	t.Helper()
	for i := range records {
		records[i].VenueSlug = f.venue.Slug
		if records[i].LocalDate == "" {
			records[i].LocalDate = f.date
		}
	}
	if _, err := f.store.ReplaceTicketCache(context.Background(), records); err != nil {
		t.Fatalf("ReplaceTicketCache: %v", err)
	}
}

func (f *fixture) event(t *testing.T, title string) *catalog.Event {
	t.Helper()
	return testsupport.MustEvent(t, f.store, f.venue, title, f.start)
}

func (f *fixture) reload(t *testing.T, ev *catalog.Event) *catalog.Event {
	t.Helper()
	got, err := f.store.GetEvent(context.Background(), ev.ID)
	if err != nil {
		t.Fatalf("GetEvent: %v", err)
	}
	return got
}

func TestAutoMatchAboveThreshold(t *testing.T) {
	f := newFixture(t)
	f.cache(t,
		catalog.CacheRecord{ExternalID: "tm-1", Name: "Sunday Gospel Brunch", LocalTime: "13:00",
			Metadata: catalog.ExternalMetadata{Promoter: "Stubbs"}},
		catalog.CacheRecord{ExternalID: "tm-2", Name: "Trivia Night"},
	)
	ev := f.event(t, "Gospel Brunch")

	decision, err := f.matcher.MatchEvent(context.Background(), ev)
	if err != nil {
		t.Fatalf("MatchEvent: %v", err)
	}
	if decision.Outcome != matching.OutcomeMatched || decision.Rule != "auto" {
		t.Fatalf("unexpected decision %+v", decision)
	}
	if f.arbiter.calls != 0 {
		t.Fatalf("auto-match must not call the arbiter")
	}
	got := f.reload(t, ev)
	if got.Match.ExternalID != "tm-1" || got.Match.Confidence < matching.AutoMatchThreshold {
		t.Fatalf("unexpected stored match %+v", got.Match)
	}
	if !got.Match.PreferExternalTitle {
		t.Fatalf("expected title preference for a much longer external title")
	}
	if got.Match.Metadata == nil || got.Match.Metadata.Promoter != "Stubbs" || got.Match.CheckedAt == nil {
		t.Fatalf("expected metadata and checked time, got %+v", got.Match)
	}
}

func TestStickyReuseSkipsScoringAndArbitration(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.cache(t,
		catalog.CacheRecord{ExternalID: "tm-7", Name: "Late Show", Metadata: catalog.ExternalMetadata{Info: "fresh"}},
		catalog.CacheRecord{ExternalID: "tm-8", Name: "Early Show"},
	)
	ev := f.event(t, "Comedy Hour")
	old := time.Now().Add(-48 * time.Hour).UTC().Truncate(time.Second)
	if err := f.store.SaveMatch(ctx, ev.ID, catalog.MatchDecision{
		ExternalID: "tm-7", MatchedName: "Late Show", Confidence: 0.42, CheckedAt: &old,
	}); err != nil {
		t.Fatalf("SaveMatch: %v", err)
	}

	decision, err := f.matcher.MatchEvent(ctx, f.reload(t, ev))
	if err != nil {
		t.Fatalf("MatchEvent: %v", err)
	}
	if decision.Outcome != matching.OutcomeSticky {
		t.Fatalf("expected sticky reuse, got %+v", decision)
	}
	if f.arbiter.calls != 0 {
		t.Fatalf("sticky reuse must not call the arbiter, got %d calls", f.arbiter.calls)
	}
	got := f.reload(t, ev)
	if got.Match.ExternalID != "tm-7" || got.Match.Confidence != 0.42 {
		t.Fatalf("decision changed: %+v", got.Match)
	}
	if !got.Match.CheckedAt.After(old) {
		t.Fatalf("expected checked time to advance")
	}
	if got.Match.Metadata == nil || got.Match.Metadata.Info != "fresh" {
		t.Fatalf("expected refreshed metadata, got %+v", got.Match.Metadata)
	}
}

func TestStickyReuseWhenRecordAbsent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ev := f.event(t, "Comedy Hour")
	if err := f.store.SaveMatch(ctx, ev.ID, catalog.MatchDecision{ExternalID: "gone", MatchedName: "Comedy Hour"}); err != nil {
		t.Fatalf("SaveMatch: %v", err)
	}
	decision, err := f.matcher.MatchEvent(ctx, f.reload(t, ev))
	if err != nil || decision.Outcome != matching.OutcomeSticky {
		t.Fatalf("expected sticky, got %+v %v", decision, err)
	}
	if got := f.reload(t, ev); got.Match.ExternalID != "gone" {
		t.Fatalf("decision dropped: %+v", got.Match)
	}
}

func TestRenamedRecordIsRescored(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.cache(t, catalog.CacheRecord{ExternalID: "tm-7", Name: "Completely Different"})
	ev := f.event(t, "Comedy Hour")
	if err := f.store.SaveMatch(ctx, ev.ID, catalog.MatchDecision{ExternalID: "tm-7", MatchedName: "Comedy Hour"}); err != nil {
		t.Fatalf("SaveMatch: %v", err)
	}
	if _, err := f.matcher.MatchEvent(ctx, f.reload(t, ev)); err != nil {
		t.Fatalf("MatchEvent: %v", err)
	}
	if f.arbiter.calls != 1 {
		t.Fatalf("expected arbitration after rename, got %d calls", f.arbiter.calls)
	}
}

func TestArbitrationStoresChosenCandidateSimilarity(t *testing.T) {
	f := newFixture(t)
	f.cache(t,
		catalog.CacheRecord{ExternalID: "tm-a", Name: "Texas Longhorns Men's Basketball", LocalTime: "19:00"},
		catalog.CacheRecord{ExternalID: "tm-b", Name: "UT MBB vs Baylor", LocalTime: "19:00"},
	)
	f.arbiter.respond = func(req llm.ArbitrationRequest) (llm.Arbitration, error) {
		for i, cand := range req.Candidates {
			if cand.Name == "UT MBB vs Baylor" {
				return llm.Arbitration{Index: index(i), PreferExternalTitle: true, Reason: "same game"}, nil
			}
		}
		return llm.Arbitration{}, nil
	}
	ev := f.event(t, "Texas MBB")

	decision, err := f.matcher.MatchEvent(context.Background(), ev)
	if err != nil {
		t.Fatalf("MatchEvent: %v", err)
	}
	if decision.Outcome != matching.OutcomeMatched || decision.Rule != "arbitration" {
		t.Fatalf("unexpected decision %+v", decision)
	}
	req := f.arbiter.requests[0]
	if len(req.Candidates) != 2 || req.Title != "Texas MBB" || req.LocalTime != "19:00" {
		t.Fatalf("unexpected arbitration request %+v", req)
	}
	got := f.reload(t, ev)
	want := textutil.Similarity("Texas MBB", "UT MBB vs Baylor")
	if got.Match.ExternalID != "tm-b" || math.Abs(got.Match.Confidence-want) > 1e-9 {
		t.Fatalf("expected tm-b with confidence %.4f, got %+v", want, got.Match)
	}
	if math.Abs(got.Match.Confidence-0.35) > 0.01 {
		t.Fatalf("expected confidence near 0.35, got %.4f", got.Match.Confidence)
	}
	if !got.Match.PreferExternalTitle {
		t.Fatalf("expected arbiter title preference to be stored")
	}
}

func TestArbitrationFailsClosed(t *testing.T) {
	cases := map[string]func(llm.ArbitrationRequest) (llm.Arbitration, error){
		"out of range": func(llm.ArbitrationRequest) (llm.Arbitration, error) {
			return llm.Arbitration{Index: index(5)}, nil
		},
		"negative": func(llm.ArbitrationRequest) (llm.Arbitration, error) {
			return llm.Arbitration{Index: index(-1)}, nil
		},
		"null index": func(llm.ArbitrationRequest) (llm.Arbitration, error) {
			return llm.Arbitration{Reason: "different acts"}, nil
		},
		"malformed": func(llm.ArbitrationRequest) (llm.Arbitration, error) {
			return llm.Arbitration{}, services.Wrap(services.ErrMalformedResponse, "llm", "arbitrate", "parse payload", errors.New("bad json"))
		},
		"unavailable": func(llm.ArbitrationRequest) (llm.Arbitration, error) {
			return llm.Arbitration{}, services.Wrap(services.ErrExternalService, "llm", "complete", "", errors.New("503"))
		},
	}
	for name, respond := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			f.cache(t, catalog.CacheRecord{ExternalID: "tm-1", Name: "Something Else"})
			f.arbiter.respond = respond
			ev := f.event(t, "Open Mic")

			decision, err := f.matcher.MatchEvent(context.Background(), ev)
			if err != nil {
				t.Fatalf("MatchEvent: %v", err)
			}
			if decision.Outcome != matching.OutcomeNoMatch {
				t.Fatalf("expected no match, got %+v", decision)
			}
			got := f.reload(t, ev)
			if got.Match.Matched() || got.Match.CheckedAt == nil {
				t.Fatalf("expected checked without match, got %+v", got.Match)
			}
		})
	}
}

func TestNoCandidatesAndUnconfiguredArbiter(t *testing.T) {
	f := newFixture(t)
	ev := f.event(t, "Open Mic")
	decision, err := f.matcher.MatchEvent(context.Background(), ev)
	if err != nil || decision.Outcome != matching.OutcomeNoMatch || decision.Rule != "no_candidates" {
		t.Fatalf("unexpected decision %+v %v", decision, err)
	}

	f.arbiter.configured = false
	f.cache(t, catalog.CacheRecord{ExternalID: "tm-1", Name: "Something Else"})
	decision, err = f.matcher.MatchEvent(context.Background(), ev)
	if err != nil || decision.Outcome != matching.OutcomeNoMatch {
		t.Fatalf("unexpected decision %+v %v", decision, err)
	}
	if f.arbiter.calls != 0 {
		t.Fatalf("unconfigured arbiter must not be called")
	}
}

func TestAcceptedCancellationUpdatesStatus(t *testing.T) {
	f := newFixture(t)
	f.cache(t, catalog.CacheRecord{
		ExternalID: "tm-1", Name: "Gospel Brunch",
		Metadata: catalog.ExternalMetadata{StatusCode: "cancelled"},
	})
	ev := f.event(t, "Gospel Brunch")
	if _, err := f.matcher.MatchEvent(context.Background(), ev); err != nil {
		t.Fatalf("MatchEvent: %v", err)
	}
	if got := f.reload(t, ev); got.Status != catalog.EventCancelled {
		t.Fatalf("expected cancelled status, got %s", got.Status)
	}
}

func TestRunBatchCountsOutcomes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.cache(t,
		catalog.CacheRecord{ExternalID: "tm-1", Name: "Gospel Brunch"},
		catalog.CacheRecord{ExternalID: "tm-2", Name: "Unrelated Listing"},
	)
	f.event(t, "Gospel Brunch")
	f.event(t, "Open Mic")
	sticky := f.event(t, "Comedy Hour")
	if err := f.store.SaveMatch(ctx, sticky.ID, catalog.MatchDecision{ExternalID: "tm-2", MatchedName: "Unrelated Listing"}); err != nil {
		t.Fatalf("SaveMatch: %v", err)
	}
	// Recently checked events are not selected again.
	recent := f.event(t, "Already Checked")
	if err := f.store.MarkMatchChecked(ctx, recent.ID, time.Now()); err != nil {
		t.Fatalf("MarkMatchChecked: %v", err)
	}

	summary, err := f.matcher.RunBatch(ctx, 0)
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	want := matching.Summary{Matched: 1, NoMatch: 1, SkippedArbitration: 0, CacheSize: 2}
	if summary != want {
		t.Fatalf("summary = %+v, want %+v", summary, want)
	}

	// Second pass finds nothing due within the recheck window.
	summary, err = f.matcher.RunBatch(ctx, 0)
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if summary.Matched+summary.NoMatch+summary.SkippedArbitration != 0 {
		t.Fatalf("expected empty second pass, got %+v", summary)
	}
}

func TestRunBatchRespectsLimit(t *testing.T) {
	f := newFixture(t)
	for _, title := range []string{"A Show", "B Show", "C Show"} {
		f.event(t, title)
	}
	summary, err := f.matcher.RunBatch(context.Background(), 2)
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if summary.NoMatch != 2 {
		t.Fatalf("expected 2 processed, got %+v", summary)
	}
}

func TestRankPrefersMaterialSupersetWhenClose(t *testing.T) {
	ranked := matching.Rank("The Jazz Night", []catalog.CacheRecord{
		{ExternalID: "a", Name: "Jazz Nite"},
		{ExternalID: "b", Name: "Jazz Nite Trio"},
		{ExternalID: "c", Name: "Bluegrass"},
	})
	if ranked[0].Record.ExternalID != "b" || ranked[1].Record.ExternalID != "a" || ranked[2].Record.ExternalID != "c" {
		t.Fatalf("unexpected order: %s %s %s", ranked[0].Record.ExternalID, ranked[1].Record.ExternalID, ranked[2].Record.ExternalID)
	}
}
