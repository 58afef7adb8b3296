package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// EventsNeedingEnrichment returns upcoming events with no enrichment record, a
// pending or abandoned processing record, or a failed record with retries
// left, soonest start first.
//
// Jobs hold an exclusive lock, so a processing row seen here belongs to a run
// that was killed and is safe to pick up again. The WHERE clause must stay in
// step with NeedsEnrichment.
func (s *Store) EventsNeedingEnrichment(ctx context.Context, now time.Time, limit int) ([]*Event, error) {
	if limit <= 0 {
		limit = 25
	}
	return s.queryEvents(ctx,
		"SELECT "+eventColumns+eventFrom+`
        LEFT JOIN event_enrichment en ON en.event_id = e.id
        WHERE e.starts_at >= ?
          AND (
            en.id IS NULL
            OR en.status = ?
            OR (en.status IN (?, ?) AND en.attempts < ?)
          )
        ORDER BY e.starts_at, e.id
        LIMIT ?`,
		formatTime(now),
		EnrichmentPending,
		EnrichmentProcessing,
		EnrichmentFailed,
		MaxEnrichmentAttempts,
		limit,
	)
}

// GetEnrichment returns the enrichment record of an event, or nil when none exists.
func (s *Store) GetEnrichment(ctx context.Context, eventID int64) (*Enrichment, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, event_id, status, attempts, last_error, classification_json, music_json, knowledge_json, created_at, updated_at
         FROM event_enrichment WHERE event_id = ?`,
		eventID,
	)
	var (
		rec            Enrichment
		statusStr      string
		lastError      sql.NullString
		classification sql.NullString
		music          sql.NullString
		knowledge      sql.NullString
		createdRaw     string
		updatedRaw     string
	)
	err := row.Scan(&rec.ID, &rec.EventID, &statusStr, &rec.Attempts, &lastError, &classification, &music, &knowledge, &createdRaw, &updatedRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get enrichment for event %d: %w", eventID, err)
	}
	rec.Status = EnrichmentStatus(statusStr)
	rec.LastError = lastError.String
	if rec.Classification, err = unmarshalNullable[ClassificationResult](classification); err != nil {
		return nil, fmt.Errorf("decode classification for event %d: %w", eventID, err)
	}
	if rec.Music, err = unmarshalNullable[MusicResult](music); err != nil {
		return nil, fmt.Errorf("decode music for event %d: %w", eventID, err)
	}
	if rec.Knowledge, err = unmarshalNullable[KnowledgeResult](knowledge); err != nil {
		return nil, fmt.Errorf("decode knowledge for event %d: %w", eventID, err)
	}
	rec.CreatedAt, _ = parseTimeString(createdRaw)
	rec.UpdatedAt, _ = parseTimeString(updatedRaw)
	return &rec, nil
}

// MarkEnrichmentProcessing creates or moves the event's record into processing.
// Attempts and previous results are preserved.
func (s *Store) MarkEnrichmentProcessing(ctx context.Context, eventID int64) error {
	now := s.timestamp()
	_, err := s.execWithRetry(ctx,
		`INSERT INTO event_enrichment (event_id, status, attempts, created_at, updated_at)
         VALUES (?, ?, 0, ?, ?)
         ON CONFLICT(event_id) DO UPDATE SET status = excluded.status, updated_at = excluded.updated_at`,
		eventID, EnrichmentProcessing, now, now,
	)
	if err != nil {
		return fmt.Errorf("mark enrichment processing for event %d: %w", eventID, err)
	}
	return nil
}

// SaveEnrichment writes the full outcome of an enrichment attempt.
func (s *Store) SaveEnrichment(ctx context.Context, rec Enrichment) error {
	classification, err := marshalNullable(rec.Classification)
	if err != nil {
		return fmt.Errorf("encode classification: %w", err)
	}
	music, err := marshalNullable(rec.Music)
	if err != nil {
		return fmt.Errorf("encode music: %w", err)
	}
	knowledge, err := marshalNullable(rec.Knowledge)
	if err != nil {
		return fmt.Errorf("encode knowledge: %w", err)
	}
	now := s.timestamp()
	_, err = s.execWithRetry(ctx,
		`INSERT INTO event_enrichment (
            event_id, status, attempts, last_error, classification_json, music_json, knowledge_json, created_at, updated_at
         ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(event_id) DO UPDATE SET
            status = excluded.status,
            attempts = excluded.attempts,
            last_error = excluded.last_error,
            classification_json = excluded.classification_json,
            music_json = excluded.music_json,
            knowledge_json = excluded.knowledge_json,
            updated_at = excluded.updated_at`,
		rec.EventID,
		rec.Status,
		rec.Attempts,
		nullableString(rec.LastError),
		classification,
		music,
		knowledge,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("save enrichment for event %d: %w", rec.EventID, err)
	}
	return nil
}

// EnrichmentCounts returns the number of records per status.
func (s *Store) EnrichmentCounts(ctx context.Context) (map[EnrichmentStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT status, COUNT(1) FROM event_enrichment GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("count enrichment: %w", err)
	}
	defer rows.Close()

	counts := make(map[EnrichmentStatus]int)
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan enrichment count: %w", err)
		}
		counts[EnrichmentStatus(status)] = count
	}
	return counts, rows.Err()
}
