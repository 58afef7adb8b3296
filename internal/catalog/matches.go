package catalog

import (
	"context"
	"fmt"
	"time"
)

// MatchCursor is the keyset position of a match selection page.
type MatchCursor struct {
	StartsAt time.Time
	ID       int64
}

// MatchSelection describes one page of events due for a cross-source check.
type MatchSelection struct {
	Now time.Time
	// CheckedBefore re-selects events whose last check is older than this instant.
	CheckedBefore time.Time
	After         MatchCursor
	Limit         int
}

// EventsNeedingMatch returns upcoming events never checked or checked before
// CheckedBefore, ordered by (starts_at, id) strictly after the cursor.
func (s *Store) EventsNeedingMatch(ctx context.Context, sel MatchSelection) ([]*Event, error) {
	limit := sel.Limit
	if limit <= 0 {
		limit = 50
	}
	cursorStart := sel.After.StartsAt
	if cursorStart.Before(sel.Now) {
		cursorStart = sel.Now
		sel.After.ID = 0
	}
	return s.queryEvents(ctx,
		"SELECT "+eventColumns+eventFrom+`
        WHERE e.starts_at >= ?
          AND (e.tm_checked_at IS NULL OR e.tm_checked_at < ?)
          AND (e.starts_at > ? OR (e.starts_at = ? AND e.id > ?))
        ORDER BY e.starts_at, e.id
        LIMIT ?`,
		formatTime(sel.Now),
		formatTime(sel.CheckedBefore),
		formatTime(cursorStart),
		formatTime(cursorStart),
		sel.After.ID,
		limit,
	)
}

// SaveMatch persists an accepted match decision including its metadata bundle.
func (s *Store) SaveMatch(ctx context.Context, eventID int64, decision MatchDecision) error {
	metadata, err := marshalNullable(decision.Metadata)
	if err != nil {
		return fmt.Errorf("encode match metadata: %w", err)
	}
	checked := decision.CheckedAt
	if checked == nil {
		now := s.now()
		checked = &now
	}
	_, err = s.execWithRetry(ctx,
		`UPDATE events SET
            tm_external_id = ?, tm_matched_name = ?, tm_confidence = ?, tm_prefer_title = ?,
            tm_checked_at = ?, tm_metadata_json = ?, updated_at = ?
         WHERE id = ?`,
		nullableString(decision.ExternalID),
		nullableString(decision.MatchedName),
		decision.Confidence,
		boolToInt(decision.PreferExternalTitle),
		formatTime(*checked),
		metadata,
		s.timestamp(),
		eventID,
	)
	if err != nil {
		return fmt.Errorf("save match for event %d: %w", eventID, err)
	}
	return nil
}

// MarkMatchChecked records a check without touching any decision field.
func (s *Store) MarkMatchChecked(ctx context.Context, eventID int64, at time.Time) error {
	_, err := s.execWithRetry(ctx,
		"UPDATE events SET tm_checked_at = ? WHERE id = ?",
		formatTime(at), eventID,
	)
	if err != nil {
		return fmt.Errorf("mark event %d checked: %w", eventID, err)
	}
	return nil
}

// RefreshMatchMetadata stamps the check time and replaces the metadata bundle of
// an already accepted match, leaving the decision fields as they are.
func (s *Store) RefreshMatchMetadata(ctx context.Context, eventID int64, at time.Time, meta *ExternalMetadata) error {
	if meta == nil {
		return s.MarkMatchChecked(ctx, eventID, at)
	}
	encoded, err := marshalNullable(meta)
	if err != nil {
		return fmt.Errorf("encode match metadata: %w", err)
	}
	_, err = s.execWithRetry(ctx,
		"UPDATE events SET tm_checked_at = ?, tm_metadata_json = ? WHERE id = ?",
		formatTime(at), encoded, eventID,
	)
	if err != nil {
		return fmt.Errorf("refresh match metadata for event %d: %w", eventID, err)
	}
	return nil
}
