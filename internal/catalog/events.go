package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const eventColumns = `e.id, e.venue_id, v.slug, v.name, v.timezone, e.source, e.source_event_id,
    e.title, e.normalized_title, e.description, e.url, e.image_url, e.starts_at, e.ends_at,
    e.category, e.status, e.tm_external_id, e.tm_matched_name, e.tm_confidence, e.tm_prefer_title,
    e.tm_checked_at, e.tm_metadata_json, e.created_at, e.updated_at`

const eventFrom = " FROM events e JOIN venues v ON v.id = e.venue_id"

// EventFields are the mutable fields rewritten on every successful upsert.
// An empty Category leaves the stored category unchanged on overwrite.
type EventFields struct {
	Title           string
	NormalizedTitle string
	Description     string
	URL             string
	ImageURL        string
	StartsAt        time.Time
	EndsAt          *time.Time
	Category        Category
}

// NewEvent carries the identity of a row being created alongside its fields.
type NewEvent struct {
	VenueID       int64
	Source        Source
	SourceEventID string
	EventFields
}

// InsertEvent creates a canonical event with status scheduled and category
// OTHER when none is given. Uniqueness violations stay detectable with IsUniqueViolation.
func (s *Store) InsertEvent(ctx context.Context, ev NewEvent) (*Event, error) {
	category := ev.Category
	if category == "" {
		category = CategoryOther
	}
	now := s.timestamp()
	res, err := s.execWithRetry(ctx,
		`INSERT INTO events (
            venue_id, source, source_event_id, title, normalized_title, description, url, image_url,
            starts_at, ends_at, category, status, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.VenueID,
		ev.Source,
		nullableString(ev.SourceEventID),
		ev.Title,
		ev.NormalizedTitle,
		nullableString(ev.Description),
		nullableString(ev.URL),
		nullableString(ev.ImageURL),
		formatTime(ev.StartsAt),
		formatTimePtr(ev.EndsAt),
		category,
		EventScheduled,
		now,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetEvent(ctx, id)
}

// OverwriteEvent replaces every mutable field of an existing event. Identity
// columns (venue, source, source_event_id) are never touched.
func (s *Store) OverwriteEvent(ctx context.Context, id int64, fields EventFields) error {
	res, err := s.execWithRetry(ctx,
		`UPDATE events SET
            title = ?, normalized_title = ?, description = ?, url = ?, image_url = ?,
            starts_at = ?, ends_at = ?, category = COALESCE(?, category), updated_at = ?
         WHERE id = ?`,
		fields.Title,
		fields.NormalizedTitle,
		nullableString(fields.Description),
		nullableString(fields.URL),
		nullableString(fields.ImageURL),
		formatTime(fields.StartsAt),
		formatTimePtr(fields.EndsAt),
		nullableString(string(fields.Category)),
		s.timestamp(),
		id,
	)
	if err != nil {
		return fmt.Errorf("overwrite event %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetEvent loads one event by id or returns ErrNotFound.
func (s *Store) GetEvent(ctx context.Context, id int64) (*Event, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+eventColumns+eventFrom+" WHERE e.id = ?", id)
	ev, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get event %d: %w", id, err)
	}
	return ev, nil
}

// FindBySourceID returns the event with identical (source, source_event_id), or nil.
func (s *Store) FindBySourceID(ctx context.Context, source Source, sourceEventID string) (*Event, error) {
	if sourceEventID == "" {
		return nil, nil
	}
	row := s.db.QueryRowContext(ctx,
		"SELECT "+eventColumns+eventFrom+" WHERE e.source = ? AND e.source_event_id = ?",
		source, sourceEventID,
	)
	ev, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find event by source id: %w", err)
	}
	return ev, nil
}

// TitleLookup selects fallback candidates on one venue-local day.
type TitleLookup struct {
	VenueID         int64
	Source          Source
	NormalizedTitle string
	DayStart        time.Time
	DayEnd          time.Time
	// WithoutSourceID limits candidates to rows that carry no source-native id.
	WithoutSourceID bool
}

// FindByTitleOnDay returns the oldest event at the venue and source whose start
// falls in [DayStart, DayEnd) and whose normalized title is exactly equal, or nil.
func (s *Store) FindByTitleOnDay(ctx context.Context, lookup TitleLookup) (*Event, error) {
	query := "SELECT " + eventColumns + eventFrom + `
        WHERE e.venue_id = ? AND e.source = ? AND e.normalized_title = ?
          AND e.starts_at >= ? AND e.starts_at < ?`
	if lookup.WithoutSourceID {
		query += " AND e.source_event_id IS NULL"
	}
	query += " ORDER BY e.id LIMIT 1"

	row := s.db.QueryRowContext(ctx, query,
		lookup.VenueID,
		lookup.Source,
		lookup.NormalizedTitle,
		formatTime(lookup.DayStart),
		formatTime(lookup.DayEnd),
	)
	ev, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find event by title: %w", err)
	}
	return ev, nil
}

// ListEvents returns events starting at or after from, soonest first.
func (s *Store) ListEvents(ctx context.Context, from time.Time, limit int) ([]*Event, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.queryEvents(ctx,
		"SELECT "+eventColumns+eventFrom+" WHERE e.starts_at >= ? ORDER BY e.starts_at, e.id LIMIT ?",
		formatTime(from), limit,
	)
}

// CountEvents returns the total number of canonical events.
func (s *Store) CountEvents(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM events").Scan(&count); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return count, nil
}

// UpdateEventCategory sets the category of an event.
func (s *Store) UpdateEventCategory(ctx context.Context, id int64, category Category) error {
	_, err := s.execWithRetry(ctx,
		"UPDATE events SET category = ?, updated_at = ? WHERE id = ?",
		category, s.timestamp(), id,
	)
	if err != nil {
		return fmt.Errorf("update event %d category: %w", id, err)
	}
	return nil
}

// UpdateEventStatus sets the lifecycle status of an event.
func (s *Store) UpdateEventStatus(ctx context.Context, id int64, status EventStatus) error {
	_, err := s.execWithRetry(ctx,
		"UPDATE events SET status = ?, updated_at = ? WHERE id = ?",
		status, s.timestamp(), id,
	)
	if err != nil {
		return fmt.Errorf("update event %d status: %w", id, err)
	}
	return nil
}

func (s *Store) queryEvents(ctx context.Context, query string, args ...any) ([]*Event, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func scanEvent(scanner rowScanner) (*Event, error) {
	var (
		ev            Event
		venueTimezone sql.NullString
		sourceStr     string
		sourceEventID sql.NullString
		description   sql.NullString
		url           sql.NullString
		imageURL      sql.NullString
		startsRaw     string
		endsRaw       sql.NullString
		categoryStr   string
		statusStr     string
		externalID    sql.NullString
		matchedName   sql.NullString
		confidence    sql.NullFloat64
		preferTitle   int
		checkedRaw    sql.NullString
		metadataRaw   sql.NullString
		createdRaw    string
		updatedRaw    string
	)
	if err := scanner.Scan(
		&ev.ID,
		&ev.VenueID,
		&ev.VenueSlug,
		&ev.VenueName,
		&venueTimezone,
		&sourceStr,
		&sourceEventID,
		&ev.Title,
		&ev.NormalizedTitle,
		&description,
		&url,
		&imageURL,
		&startsRaw,
		&endsRaw,
		&categoryStr,
		&statusStr,
		&externalID,
		&matchedName,
		&confidence,
		&preferTitle,
		&checkedRaw,
		&metadataRaw,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	ev.VenueTimezone = venueTimezone.String
	ev.Source = Source(sourceStr)
	ev.SourceEventID = sourceEventID.String
	ev.Description = description.String
	ev.URL = url.String
	ev.ImageURL = imageURL.String
	ev.EndsAt = parseNullTime(endsRaw)
	ev.Category = Category(categoryStr)
	ev.Status = EventStatus(statusStr)
	ev.Match = MatchDecision{
		ExternalID:          externalID.String,
		MatchedName:         matchedName.String,
		Confidence:          confidence.Float64,
		PreferExternalTitle: preferTitle != 0,
		CheckedAt:           parseNullTime(checkedRaw),
	}
	meta, err := unmarshalNullable[ExternalMetadata](metadataRaw)
	if err != nil {
		return nil, fmt.Errorf("decode match metadata for event %d: %w", ev.ID, err)
	}
	ev.Match.Metadata = meta

	starts, err := parseTimeString(startsRaw)
	if err != nil {
		return nil, fmt.Errorf("parse starts_at for event %d: %w", ev.ID, err)
	}
	ev.StartsAt = starts
	ev.CreatedAt, _ = parseTimeString(createdRaw)
	ev.UpdatedAt, _ = parseTimeString(updatedRaw)
	return &ev, nil
}
