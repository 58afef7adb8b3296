package matching

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"marquee/internal/calendar"
	"marquee/internal/catalog"
	"marquee/internal/config"
	"marquee/internal/logging"
	"marquee/internal/services"
	"marquee/internal/services/llm"
	"marquee/internal/telemetry"
)

// Arbiter picks a counterpart among closely scored candidates.
type Arbiter interface {
	Configured() bool
	ArbitrateMatch(ctx context.Context, req llm.ArbitrationRequest) (llm.Arbitration, error)
}

// Outcome is the result of matching one event.
type Outcome string

const (
	OutcomeMatched Outcome = "matched"
	OutcomeNoMatch Outcome = "no_match"
	// OutcomeSticky means a prior decision was kept without scoring.
	OutcomeSticky Outcome = "sticky"
)

// Decision is the full record of how one event was resolved.
type Decision struct {
	Outcome    Outcome
	Rule       string
	Candidates int
	Accepted   *Candidate
	Reason     string
}

// Matcher links canonical events to ticket cache records.
type Matcher struct {
	store      *catalog.Store
	arbiter    Arbiter
	logger     *slog.Logger
	defaultLoc *time.Location
	recheck    time.Duration
	pageSize   int
	now        func() time.Time
}

// NewMatcher constructs a matcher. arbiter may be nil, in which case
// non-obvious events are left unmatched.
func NewMatcher(cfg *config.Config, store *catalog.Store, arbiter Arbiter, logger *slog.Logger) *Matcher {
	if logger == nil {
		logger = logging.NewNop()
	}
	m := &Matcher{
		store:      store,
		arbiter:    arbiter,
		logger:     logging.NewComponentLogger(logger, "matching"),
		defaultLoc: time.UTC,
		recheck:    20 * time.Hour,
		pageSize:   50,
		now:        time.Now,
	}
	if cfg != nil {
		m.defaultLoc = cfg.DefaultLocation()
		m.recheck = cfg.RecheckWindow()
		m.pageSize = cfg.Matching.PageSize
	}
	return m
}

// MatchEvent runs the decision ladder for one event and persists the result.
func (m *Matcher) MatchEvent(ctx context.Context, ev *catalog.Event) (decision Decision, err error) {
	ctx, span := telemetry.StartEvent(ctx, "matching.event", ev.ID)
	defer func() { telemetry.End(span, err) }()
	return m.matchEvent(ctx, ev)
}

func (m *Matcher) matchEvent(ctx context.Context, ev *catalog.Event) (Decision, error) {
	logger := logging.WithContext(services.WithEventID(ctx, ev.ID), m.logger)
	loc := calendar.LoadLocation(ev.VenueTimezone, m.defaultLoc)
	checkedAt := m.now().UTC()

	records, err := m.store.CacheCandidates(ctx, ev.VenueSlug, calendar.DateKey(ev.StartsAt, loc))
	if err != nil {
		return Decision{}, err
	}

	if decision, ok, err := m.sticky(ctx, ev, records, checkedAt); ok || err != nil {
		if err == nil {
			logger.Debug("match decision kept",
				logging.Args(logging.DecisionAttrs("match", string(decision.Outcome), decision.Reason)...)...)
		}
		return decision, err
	}

	if len(records) == 0 {
		return m.noMatch(ctx, logger, ev, checkedAt, Decision{Rule: "no_candidates", Reason: "no cache records on this venue date"})
	}

	ranked := Rank(ev.Title, records)
	top := ranked[0]
	if top.Score >= AutoMatchThreshold {
		accepted := top
		return m.accept(ctx, logger, ev, checkedAt, Decision{
			Rule:       "auto",
			Candidates: len(ranked),
			Accepted:   &accepted,
			Reason:     fmt.Sprintf("similarity %.2f >= %.2f", top.Score, AutoMatchThreshold),
		}, prefersExternalTitle(ev.Title, top.Record.Name))
	}

	return m.arbitrate(ctx, logger, ev, loc, checkedAt, ranked)
}

// sticky keeps an accepted decision while its record is unchanged or absent.
func (m *Matcher) sticky(ctx context.Context, ev *catalog.Event, records []catalog.CacheRecord, checkedAt time.Time) (Decision, bool, error) {
	if !ev.Match.Matched() {
		return Decision{}, false, nil
	}
	for _, rec := range records {
		if rec.ExternalID != ev.Match.ExternalID {
			continue
		}
		if rec.Name != ev.Match.MatchedName {
			return Decision{}, false, nil
		}
		meta := rec.Metadata
		if err := m.store.RefreshMatchMetadata(ctx, ev.ID, checkedAt, &meta); err != nil {
			return Decision{}, true, err
		}
		return Decision{Outcome: OutcomeSticky, Rule: "sticky", Candidates: len(records), Reason: "matched record unchanged"}, true, nil
	}
	if err := m.store.MarkMatchChecked(ctx, ev.ID, checkedAt); err != nil {
		return Decision{}, true, err
	}
	return Decision{Outcome: OutcomeSticky, Rule: "sticky", Candidates: len(records), Reason: "matched record absent from cache"}, true, nil
}

func (m *Matcher) arbitrate(ctx context.Context, logger *slog.Logger, ev *catalog.Event, loc *time.Location, checkedAt time.Time, ranked []Candidate) (Decision, error) {
	base := Decision{Rule: "arbitration", Candidates: len(ranked)}
	if m.arbiter == nil || !m.arbiter.Configured() {
		base.Reason = "arbitration unavailable"
		return m.noMatch(ctx, logger, ev, checkedAt, base)
	}

	req := llm.ArbitrationRequest{
		Title:     ev.Title,
		Venue:     ev.VenueName,
		Date:      calendar.PromptDate(ev.StartsAt, loc),
		LocalTime: calendar.LocalClock(ev.StartsAt, loc),
	}
	for _, cand := range ranked {
		localTime := cand.Record.LocalTime
		if localTime == "" && cand.Record.StartsAt != nil {
			localTime = calendar.LocalClock(*cand.Record.StartsAt, loc)
		}
		req.Candidates = append(req.Candidates, llm.ArbitrationCandidate{Name: cand.Record.Name, LocalTime: localTime})
	}

	verdict, err := m.arbiter.ArbitrateMatch(ctx, req)
	if err != nil {
		logging.WarnWithContext(logger, "match arbitration failed", "match_arbitration_failed",
			logging.String("error_kind", services.Kind(err)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check llm credentials and availability"),
			logging.String(logging.FieldImpact, "event left unmatched until the next check"),
		)
		base.Reason = "arbitration error: " + services.Kind(err)
		return m.noMatch(ctx, logger, ev, checkedAt, base)
	}
	if verdict.Index == nil {
		base.Reason = firstNonEmpty(verdict.Reason, "arbiter reported no match")
		return m.noMatch(ctx, logger, ev, checkedAt, base)
	}
	idx := *verdict.Index
	if idx < 0 || idx >= len(ranked) {
		base.Reason = fmt.Sprintf("arbiter index %d out of range", idx)
		return m.noMatch(ctx, logger, ev, checkedAt, base)
	}
	accepted := ranked[idx]
	base.Accepted = &accepted
	base.Reason = firstNonEmpty(verdict.Reason, "arbiter selected candidate")
	return m.accept(ctx, logger, ev, checkedAt, base, verdict.PreferExternalTitle)
}

func (m *Matcher) accept(ctx context.Context, logger *slog.Logger, ev *catalog.Event, checkedAt time.Time, decision Decision, preferTitle bool) (Decision, error) {
	decision.Outcome = OutcomeMatched
	rec := decision.Accepted.Record
	meta := rec.Metadata
	err := m.store.SaveMatch(ctx, ev.ID, catalog.MatchDecision{
		ExternalID:          rec.ExternalID,
		MatchedName:         rec.Name,
		Confidence:          decision.Accepted.Score,
		PreferExternalTitle: preferTitle,
		CheckedAt:           &checkedAt,
		Metadata:            &meta,
	})
	if err != nil {
		return decision, err
	}
	if status, ok := statusFromCode(meta.StatusCode); ok && status != ev.Status {
		if err := m.store.UpdateEventStatus(ctx, ev.ID, status); err != nil {
			return decision, err
		}
	}
	logger.Info("event matched",
		logging.Args(append(logging.DecisionAttrs("match", decision.Rule, decision.Reason),
			logging.String("external_id", rec.ExternalID),
			logging.String("matched_name", rec.Name),
			logging.Float64("confidence", decision.Accepted.Score),
			logging.Bool("prefer_external_title", preferTitle),
			logging.Int("candidates", decision.Candidates),
		)...)...)
	return decision, nil
}

func (m *Matcher) noMatch(ctx context.Context, logger *slog.Logger, ev *catalog.Event, checkedAt time.Time, decision Decision) (Decision, error) {
	decision.Outcome = OutcomeNoMatch
	decision.Accepted = nil
	if err := m.store.MarkMatchChecked(ctx, ev.ID, checkedAt); err != nil {
		return decision, err
	}
	logger.Debug("event not matched",
		logging.Args(append(logging.DecisionAttrs("match", decision.Rule, decision.Reason),
			logging.Int("candidates", decision.Candidates),
		)...)...)
	return decision, nil
}

// statusFromCode maps ticket-platform lifecycle codes onto event status.
func statusFromCode(code string) (catalog.EventStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(code)) {
	case "cancelled", "canceled":
		return catalog.EventCancelled, true
	case "postponed", "rescheduled":
		return catalog.EventPostponed, true
	default:
		return "", false
	}
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
