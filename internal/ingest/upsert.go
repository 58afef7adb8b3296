package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"marquee/internal/calendar"
	"marquee/internal/catalog"
	"marquee/internal/config"
	"marquee/internal/logging"
	"marquee/internal/services"
	"marquee/internal/textutil"
)

// ItemError describes why one record of a batch was not persisted.
type ItemError struct {
	Index     int    `json:"index"`
	VenueSlug string `json:"venue"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	Err       error  `json:"-"`
}

func (e ItemError) Error() string {
	return fmt.Sprintf("record %d (%s/%s): %s", e.Index, e.VenueSlug, e.Title, e.Message)
}

func (e ItemError) Unwrap() error { return e.Err }

// Result summarizes one upsert batch.
type Result struct {
	Created int         `json:"created"`
	Updated int         `json:"updated"`
	Errors  []ItemError `json:"errors"`
}

// Ingester resolves normalized records onto canonical events.
type Ingester struct {
	store      *catalog.Store
	logger     *slog.Logger
	defaultLoc *time.Location
}

// NewIngester constructs an ingester bound to the catalog store.
func NewIngester(cfg *config.Config, store *catalog.Store, logger *slog.Logger) *Ingester {
	loc := time.UTC
	if cfg != nil {
		loc = cfg.DefaultLocation()
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Ingester{
		store:      store,
		logger:     logging.NewComponentLogger(logger, "ingest"),
		defaultLoc: loc,
	}
}

// Upsert resolves every record to an existing event or creates one, then
// overwrites the full field set. A failing record is reported in
// Result.Errors and never stops the batch.
func (i *Ingester) Upsert(ctx context.Context, records []catalog.NormalizedRecord) Result {
	logger := logging.WithContext(ctx, i.logger)
	result := Result{Errors: []ItemError{}}
	venues := make(map[string]*catalog.Venue)

	for idx, rec := range records {
		if err := ctx.Err(); err != nil {
			result.Errors = append(result.Errors, ItemError{
				Index:   idx,
				Message: fmt.Sprintf("batch interrupted, %d records not processed", len(records)-idx),
				Err:     err,
			})
			break
		}
		created, err := i.upsertOne(ctx, rec, venues)
		if err != nil {
			itemErr := ItemError{
				Index:     idx,
				VenueSlug: strings.TrimSpace(rec.VenueSlug),
				Title:     strings.TrimSpace(rec.Title),
				Message:   err.Error(),
				Err:       err,
			}
			result.Errors = append(result.Errors, itemErr)
			logging.WarnWithContext(logger, "record not ingested", "ingest_item_failed",
				logging.Int("index", idx),
				logging.String(logging.FieldVenue, itemErr.VenueSlug),
				logging.String("title", itemErr.Title),
				logging.String("error_kind", services.Kind(err)),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, hintFor(err)),
			)
			continue
		}
		if created {
			result.Created++
		} else {
			result.Updated++
		}
	}

	logger.Info("upsert batch complete",
		logging.Int("records", len(records)),
		logging.Int("created", result.Created),
		logging.Int("updated", result.Updated),
		logging.Int("errors", len(result.Errors)),
	)
	return result
}

func (i *Ingester) upsertOne(ctx context.Context, rec catalog.NormalizedRecord, venues map[string]*catalog.Venue) (bool, error) {
	source, err := validate(rec)
	if err != nil {
		return false, err
	}
	venue, err := i.venue(ctx, rec.VenueSlug, venues)
	if err != nil {
		return false, err
	}

	fields := catalog.EventFields{
		Title:           strings.TrimSpace(rec.Title),
		NormalizedTitle: textutil.NormalizeTitle(rec.Title),
		Description:     strings.TrimSpace(rec.Description),
		URL:             strings.TrimSpace(rec.URL),
		ImageURL:        strings.TrimSpace(rec.ImageURL),
		StartsAt:        rec.StartsAt,
		EndsAt:          rec.EndsAt,
	}
	if category, ok := catalog.ParseCategory(rec.CategoryHint); ok {
		fields.Category = category
	}
	sourceEventID := strings.TrimSpace(rec.SourceEventID)

	existing, err := i.resolve(ctx, venue, source, sourceEventID, fields)
	if err != nil {
		return false, err
	}
	if existing != nil {
		if err := i.store.OverwriteEvent(ctx, existing.ID, fields); err != nil {
			return false, fmt.Errorf("overwrite event %d: %w", existing.ID, err)
		}
		i.logger.Debug("event updated",
			logging.Int64(logging.FieldEventID, existing.ID),
			logging.String(logging.FieldVenue, venue.Slug),
			logging.String("title", fields.Title),
		)
		return false, nil
	}

	ev, err := i.store.InsertEvent(ctx, catalog.NewEvent{
		VenueID:       venue.ID,
		Source:        source,
		SourceEventID: sourceEventID,
		EventFields:   fields,
	})
	if err != nil {
		if catalog.IsUniqueViolation(err) {
			return false, services.Wrap(services.ErrPersistenceConflict, "ingest", "insert event", "duplicate source event id", err)
		}
		return false, err
	}
	i.logger.Debug("event created",
		logging.Int64(logging.FieldEventID, ev.ID),
		logging.String(logging.FieldVenue, venue.Slug),
		logging.String("title", fields.Title),
	)
	return true, nil
}

// resolve applies the primary (source id) then fallback (same local day,
// identical normalized title) match. Records carrying a source id only fall
// back onto rows that have none.
func (i *Ingester) resolve(ctx context.Context, venue *catalog.Venue, source catalog.Source, sourceEventID string, fields catalog.EventFields) (*catalog.Event, error) {
	if sourceEventID != "" {
		ev, err := i.store.FindBySourceID(ctx, source, sourceEventID)
		if err != nil || ev != nil {
			return ev, err
		}
	}
	if fields.NormalizedTitle == "" {
		return nil, nil
	}
	loc := calendar.LoadLocation(venue.Timezone, i.defaultLoc)
	dayStart, dayEnd := calendar.DayBounds(fields.StartsAt, loc)
	return i.store.FindByTitleOnDay(ctx, catalog.TitleLookup{
		VenueID:         venue.ID,
		Source:          source,
		NormalizedTitle: fields.NormalizedTitle,
		DayStart:        dayStart,
		DayEnd:          dayEnd,
		WithoutSourceID: sourceEventID != "",
	})
}

func (i *Ingester) venue(ctx context.Context, slug string, cache map[string]*catalog.Venue) (*catalog.Venue, error) {
	key := strings.ToLower(strings.TrimSpace(slug))
	if key == "" {
		return nil, services.Wrap(services.ErrReferenceMissing, "ingest", "resolve venue", "venue slug missing", nil)
	}
	if venue, ok := cache[key]; ok {
		if venue == nil {
			return nil, services.Wrap(services.ErrReferenceMissing, "ingest", "resolve venue", fmt.Sprintf("unknown venue %q", key), nil)
		}
		return venue, nil
	}
	venue, err := i.store.VenueBySlug(ctx, key)
	if errors.Is(err, catalog.ErrNotFound) {
		cache[key] = nil
		return nil, services.Wrap(services.ErrReferenceMissing, "ingest", "resolve venue", fmt.Sprintf("unknown venue %q", key), nil)
	}
	if err != nil {
		return nil, err
	}
	cache[key] = venue
	return venue, nil
}

func validate(rec catalog.NormalizedRecord) (catalog.Source, error) {
	if strings.TrimSpace(rec.Title) == "" {
		return "", services.Wrap(services.ErrValidation, "ingest", "validate", "title required", nil)
	}
	if rec.StartsAt.IsZero() {
		return "", services.Wrap(services.ErrValidation, "ingest", "validate", "start time required", nil)
	}
	source, ok := catalog.ParseSource(rec.Source)
	if !ok {
		return "", services.Wrap(services.ErrValidation, "ingest", "validate", fmt.Sprintf("unknown source %q", rec.Source), nil)
	}
	if rec.EndsAt != nil && !rec.EndsAt.IsZero() && rec.EndsAt.Before(rec.StartsAt) {
		return "", services.Wrap(services.ErrValidation, "ingest", "validate", "end before start", nil)
	}
	return source, nil
}

func hintFor(err error) string {
	switch {
	case errors.Is(err, services.ErrReferenceMissing):
		return "add the venue to the venues file and run venues sync"
	case errors.Is(err, services.ErrValidation):
		return "fix the source adapter output for this record"
	case errors.Is(err, services.ErrPersistenceConflict):
		return "another row already owns this source event id"
	default:
		return "check database health and re-run ingest"
	}
}
