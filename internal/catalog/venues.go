package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

const venueColumns = "id, slug, name, city, timezone, ticket_venue_id, created_at, updated_at"

// UpsertVenue inserts a venue or updates the existing row with the same slug.
func (s *Store) UpsertVenue(ctx context.Context, venue Venue) (*Venue, error) {
	slug := strings.ToLower(strings.TrimSpace(venue.Slug))
	if slug == "" {
		return nil, errors.New("upsert venue: slug required")
	}
	name := strings.TrimSpace(venue.Name)
	if name == "" {
		name = slug
	}
	now := s.timestamp()
	_, err := s.execWithRetry(ctx,
		`INSERT INTO venues (slug, name, city, timezone, ticket_venue_id, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(slug) DO UPDATE SET
            name = excluded.name,
            city = excluded.city,
            timezone = excluded.timezone,
            ticket_venue_id = excluded.ticket_venue_id,
            updated_at = excluded.updated_at`,
		slug,
		name,
		nullableString(strings.TrimSpace(venue.City)),
		nullableString(strings.TrimSpace(venue.Timezone)),
		nullableString(strings.TrimSpace(venue.TicketVenueID)),
		now,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert venue %s: %w", slug, err)
	}
	return s.VenueBySlug(ctx, slug)
}

// VenueBySlug returns the venue with the given slug or ErrNotFound.
func (s *Store) VenueBySlug(ctx context.Context, slug string) (*Venue, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+venueColumns+" FROM venues WHERE slug = ?",
		strings.ToLower(strings.TrimSpace(slug)),
	)
	venue, err := scanVenue(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get venue %s: %w", slug, err)
	}
	return venue, nil
}

// ListVenues returns all venues ordered by slug.
func (s *Store) ListVenues(ctx context.Context) ([]*Venue, error) {
	return s.queryVenues(ctx, "SELECT "+venueColumns+" FROM venues ORDER BY slug")
}

// TicketedVenues returns venues that carry a ticket-platform venue id.
func (s *Store) TicketedVenues(ctx context.Context) ([]*Venue, error) {
	return s.queryVenues(ctx,
		"SELECT "+venueColumns+" FROM venues WHERE ticket_venue_id IS NOT NULL AND ticket_venue_id != '' ORDER BY slug")
}

func (s *Store) queryVenues(ctx context.Context, query string, args ...any) ([]*Venue, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query venues: %w", err)
	}
	defer rows.Close()

	var venues []*Venue
	for rows.Next() {
		venue, err := scanVenue(rows)
		if err != nil {
			return nil, fmt.Errorf("scan venue: %w", err)
		}
		venues = append(venues, venue)
	}
	return venues, rows.Err()
}

func scanVenue(scanner rowScanner) (*Venue, error) {
	var (
		venue      Venue
		city       sql.NullString
		timezone   sql.NullString
		ticketID   sql.NullString
		createdRaw string
		updatedRaw string
	)
	if err := scanner.Scan(&venue.ID, &venue.Slug, &venue.Name, &city, &timezone, &ticketID, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}
	venue.City = city.String
	venue.Timezone = timezone.String
	venue.TicketVenueID = ticketID.String
	venue.CreatedAt, _ = parseTimeString(createdRaw)
	venue.UpdatedAt, _ = parseTimeString(updatedRaw)
	return &venue, nil
}
