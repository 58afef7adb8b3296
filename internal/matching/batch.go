package matching

import (
	"context"
	"fmt"

	"marquee/internal/catalog"
	"marquee/internal/logging"
	"marquee/internal/services"
)

// Summary counts the outcomes of one match batch.
type Summary struct {
	Matched            int `json:"matched"`
	NoMatch            int `json:"no_match"`
	SkippedArbitration int `json:"skipped_arbitration"`
	Errors             int `json:"errors"`
	CacheSize          int `json:"cache_size"`
}

// RunBatch matches up to limit upcoming events that are due for a check,
// soonest first, one page at a time. Per-event failures are logged and
// counted. The returned error is set only when selection itself fails.
func (m *Matcher) RunBatch(ctx context.Context, limit int) (Summary, error) {
	logger := logging.WithContext(ctx, m.logger)
	var summary Summary

	cacheSize, err := m.store.CountTicketCache(ctx)
	if err != nil {
		return summary, fmt.Errorf("count ticket cache: %w", err)
	}
	summary.CacheSize = cacheSize

	now := m.now().UTC()
	sel := catalog.MatchSelection{
		Now:           now,
		CheckedBefore: now.Add(-m.recheck),
		Limit:         m.pageSize,
	}
	processed := 0
	for limit <= 0 || processed < limit {
		if limit > 0 {
			sel.Limit = min(m.pageSize, limit-processed)
		}
		page, err := m.store.EventsNeedingMatch(ctx, sel)
		if err != nil {
			return summary, fmt.Errorf("select events: %w", err)
		}
		if len(page) == 0 {
			break
		}
		for _, ev := range page {
			if err := ctx.Err(); err != nil {
				return summary, err
			}
			processed++
			decision, err := m.MatchEvent(ctx, ev)
			if err != nil {
				summary.Errors++
				logging.WarnWithContext(logger, "event match failed", "match_item_failed",
					logging.Int64(logging.FieldEventID, ev.ID),
					logging.String(logging.FieldVenue, ev.VenueSlug),
					logging.String("error_kind", services.Kind(err)),
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "check database health; the event is retried next batch"),
				)
				continue
			}
			switch decision.Outcome {
			case OutcomeMatched:
				summary.Matched++
			case OutcomeSticky:
				summary.SkippedArbitration++
			default:
				summary.NoMatch++
			}
		}
		last := page[len(page)-1]
		sel.After = catalog.MatchCursor{StartsAt: last.StartsAt, ID: last.ID}
		if len(page) < sel.Limit {
			break
		}
	}

	logger.Info("match batch complete",
		logging.Int("processed", processed),
		logging.Int("matched", summary.Matched),
		logging.Int("no_match", summary.NoMatch),
		logging.Int("skipped_arbitration", summary.SkippedArbitration),
		logging.Int("errors", summary.Errors),
		logging.Int("cache_size", summary.CacheSize),
	)
	return summary, nil
}
