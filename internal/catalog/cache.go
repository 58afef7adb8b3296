package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// ReplaceTicketCache swaps the whole ticket-platform snapshot for records in a
// single transaction. Readers never observe a partially written cache.
func (s *Store) ReplaceTicketCache(ctx context.Context, records []CacheRecord) (int, error) {
	fetchedAt := s.timestamp()
	stored := 0
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		stored = 0
		if _, err := tx.ExecContext(ctx, "DELETE FROM ticket_cache"); err != nil {
			return fmt.Errorf("clear ticket cache: %w", err)
		}
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO ticket_cache (
                external_id, venue_slug, ticket_venue_id, local_date, name, local_time, starts_at, metadata_json, fetched_at
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
            ON CONFLICT(external_id) DO NOTHING`)
		if err != nil {
			return fmt.Errorf("prepare ticket cache insert: %w", err)
		}
		defer stmt.Close()

		for _, rec := range records {
			if rec.ExternalID == "" || rec.VenueSlug == "" || rec.LocalDate == "" {
				continue
			}
			meta, err := json.Marshal(rec.Metadata)
			if err != nil {
				return fmt.Errorf("encode cache metadata %s: %w", rec.ExternalID, err)
			}
			res, err := stmt.ExecContext(ctx,
				rec.ExternalID,
				rec.VenueSlug,
				nullableString(rec.TicketVenueID),
				rec.LocalDate,
				rec.Name,
				nullableString(rec.LocalTime),
				formatTimePtr(rec.StartsAt),
				string(meta),
				fetchedAt,
			)
			if err != nil {
				return fmt.Errorf("insert cache record %s: %w", rec.ExternalID, err)
			}
			if n, _ := res.RowsAffected(); n > 0 {
				stored++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return stored, nil
}

// CacheCandidates returns the cached records for a venue on one local date,
// ordered by local time.
func (s *Store) CacheCandidates(ctx context.Context, venueSlug, localDate string) ([]CacheRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT external_id, venue_slug, ticket_venue_id, local_date, name, local_time, starts_at, metadata_json, fetched_at
         FROM ticket_cache WHERE venue_slug = ? AND local_date = ?
         ORDER BY COALESCE(local_time, ''), external_id`,
		venueSlug, localDate,
	)
	if err != nil {
		return nil, fmt.Errorf("query cache candidates: %w", err)
	}
	defer rows.Close()

	var records []CacheRecord
	for rows.Next() {
		var (
			rec        CacheRecord
			ticketID   sql.NullString
			localTime  sql.NullString
			startsRaw  sql.NullString
			metaRaw    sql.NullString
			fetchedRaw string
		)
		if err := rows.Scan(&rec.ExternalID, &rec.VenueSlug, &ticketID, &rec.LocalDate, &rec.Name, &localTime, &startsRaw, &metaRaw, &fetchedRaw); err != nil {
			return nil, fmt.Errorf("scan cache record: %w", err)
		}
		rec.TicketVenueID = ticketID.String
		rec.LocalTime = localTime.String
		rec.StartsAt = parseNullTime(startsRaw)
		if meta, err := unmarshalNullable[ExternalMetadata](metaRaw); err == nil && meta != nil {
			rec.Metadata = *meta
		}
		rec.FetchedAt, _ = parseTimeString(fetchedRaw)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// CountTicketCache returns the number of cached ticket-platform records.
func (s *Store) CountTicketCache(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM ticket_cache").Scan(&count); err != nil {
		return 0, fmt.Errorf("count ticket cache: %w", err)
	}
	return count, nil
}
