package ticketcache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"marquee/internal/calendar"
	"marquee/internal/catalog"
	"marquee/internal/config"
	"marquee/internal/logging"
	"marquee/internal/services"
	"marquee/internal/services/ticketmaster"
)

const defaultHorizon = 60 * 24 * time.Hour

// Discovery lists the ticket platform's events at one of its venues.
type Discovery interface {
	Configured() bool
	VenueEvents(ctx context.Context, venueID string, from, to time.Time) ([]ticketmaster.Event, error)
}

// RefreshSummary reports one cache refresh.
type RefreshSummary struct {
	Venues  int `json:"venues"`
	Fetched int `json:"fetched"`
	Stored  int `json:"stored"`
	Errors  int `json:"errors"`
}

// Refresher rebuilds the ticket cache from the Discovery API.
type Refresher struct {
	store      *catalog.Store
	discovery  Discovery
	logger     *slog.Logger
	horizon    time.Duration
	defaultLoc *time.Location
	now        func() time.Time
}

// NewRefresher builds a refresher with the horizon taken from cfg.
func NewRefresher(cfg *config.Config, store *catalog.Store, discovery Discovery, logger *slog.Logger) *Refresher {
	if logger == nil {
		logger = logging.NewNop()
	}
	r := &Refresher{
		store:      store,
		discovery:  discovery,
		logger:     logging.NewComponentLogger(logger, "ticketcache"),
		horizon:    defaultHorizon,
		defaultLoc: time.UTC,
		now:        time.Now,
	}
	if cfg != nil {
		if cfg.Ticketmaster.HorizonDays > 0 {
			r.horizon = time.Duration(cfg.Ticketmaster.HorizonDays) * 24 * time.Hour
		}
		r.defaultLoc = cfg.DefaultLocation()
	}
	return r
}

// Refresh fetches every ticketed venue and swaps the cache in one
// transaction. Venue failures are counted and skipped. When every venue
// fails the previous snapshot is kept.
func (r *Refresher) Refresh(ctx context.Context) (RefreshSummary, error) {
	var summary RefreshSummary
	if r.discovery == nil || !r.discovery.Configured() {
		return summary, services.Wrap(services.ErrConfiguration, "ticketcache", "refresh", "ticket platform api key not configured", nil)
	}
	logger := logging.WithContext(ctx, r.logger)

	venues, err := r.store.TicketedVenues(ctx)
	if err != nil {
		return summary, fmt.Errorf("list ticketed venues: %w", err)
	}
	summary.Venues = len(venues)
	if len(venues) == 0 {
		logger.Info("no ticketed venues; cache left unchanged")
		return summary, nil
	}

	now := r.now()
	var records []catalog.CacheRecord
	for _, venue := range venues {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		loc := calendar.LoadLocation(venue.Timezone, r.defaultLoc)
		from, _ := calendar.DayBounds(now, loc)
		to := now.Add(r.horizon)

		events, err := r.discovery.VenueEvents(ctx, venue.TicketVenueID, from, to)
		if err != nil {
			summary.Errors++
			logging.WarnWithContext(logger, "ticket platform fetch failed", "ticketcache_venue_failed",
				logging.String(logging.FieldVenue, venue.Slug),
				logging.String("ticket_venue_id", venue.TicketVenueID),
				logging.String("error_kind", services.Kind(err)),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the ticket platform api key and venue id"),
				logging.String(logging.FieldImpact, "venue has no match candidates until the next refresh"),
			)
			continue
		}
		summary.Fetched += len(events)
		for _, ev := range events {
			if rec, ok := ev.CacheRecord(venue.Slug, venue.TicketVenueID); ok {
				records = append(records, rec)
			}
		}
		logger.Debug("venue fetched",
			logging.String(logging.FieldVenue, venue.Slug),
			logging.Int("events", len(events)),
		)
	}

	if summary.Errors == summary.Venues {
		logging.WarnWithContext(logger, "every venue fetch failed; keeping previous cache", "ticketcache_refresh_skipped",
			logging.Int("venues", summary.Venues),
			logging.String(logging.FieldErrorHint, "check ticket platform availability"),
		)
		return summary, nil
	}

	stored, err := r.store.ReplaceTicketCache(ctx, records)
	if err != nil {
		return summary, fmt.Errorf("replace ticket cache: %w", err)
	}
	summary.Stored = stored

	logger.Info("ticket cache refreshed",
		logging.Int("venues", summary.Venues),
		logging.Int("fetched", summary.Fetched),
		logging.Int("stored", summary.Stored),
		logging.Int("errors", summary.Errors),
	)
	return summary, nil
}
