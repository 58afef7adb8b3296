package enrichment

import (
	"context"
	"fmt"

	"marquee/internal/catalog"
	"marquee/internal/logging"
	"marquee/internal/services"
)

// Summary counts the outcomes of one enrichment batch.
type Summary struct {
	Processed         int `json:"processed"`
	Completed         int `json:"completed"`
	Partial           int `json:"partial"`
	Failed            int `json:"failed"`
	Skipped           int `json:"skipped"`
	CategoriesUpdated int `json:"categories_updated"`
}

// RunBatch enriches up to limit upcoming events that have no record, a
// pending record, or a failed record with retries left. The returned error is
// set only when selection fails.
func (e *Engine) RunBatch(ctx context.Context, limit int) (Summary, error) {
	logger := logging.WithContext(ctx, e.logger)
	var summary Summary

	logger.Debug("enrichment batch starting",
		logging.Int("limit", limit),
		logging.Duration("event_delay", e.eventPacer.Interval()),
		logging.Duration("request_delay", e.requestPacer.Interval()),
	)
	events, err := e.store.EventsNeedingEnrichment(ctx, e.now().UTC(), limit)
	if err != nil {
		return summary, fmt.Errorf("select events: %w", err)
	}

	for idx, ev := range events {
		if idx > 0 {
			if err := e.eventPacer.Wait(ctx); err != nil {
				return summary, err
			}
		}
		summary.Processed++
		result, err := e.EnrichEvent(ctx, ev)
		if err != nil {
			summary.Failed++
			logging.WarnWithContext(logger, "event enrichment failed", "enrichment_item_failed",
				logging.Int64(logging.FieldEventID, ev.ID),
				logging.String(logging.FieldVenue, ev.VenueSlug),
				logging.String("error_kind", services.Kind(err)),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check database health; the event is retried next batch"),
			)
			continue
		}
		switch result.Status {
		case catalog.EnrichmentCompleted:
			summary.Completed++
		case catalog.EnrichmentPartial:
			summary.Partial++
		case catalog.EnrichmentSkipped:
			summary.Skipped++
		default:
			summary.Failed++
		}
		if result.CategoryUpdated {
			summary.CategoriesUpdated++
		}
	}

	logger.Info("enrichment batch complete",
		logging.Int("processed", summary.Processed),
		logging.Int("completed", summary.Completed),
		logging.Int("partial", summary.Partial),
		logging.Int("failed", summary.Failed),
		logging.Int("skipped", summary.Skipped),
		logging.Int("categories_updated", summary.CategoriesUpdated),
	)
	return summary, nil
}
