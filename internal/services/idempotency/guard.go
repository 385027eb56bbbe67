package idempotency

import (
	"context"

	"go.uber.org/zap"

	"github.com/phambaophuc/blob-thumbnail/internal/models"
	"github.com/phambaophuc/blob-thumbnail/internal/services/thumbnail"
)

// Handler processes one creation event.
type Handler func(ctx context.Context, event models.CreationEvent) thumbnail.Result

// Guard skips events whose ID was already handled. An ID is recorded only
// once the event completed (success or skip), so failed events stay eligible
// for redelivery. Events without an ID pass straight through.
func Guard(store Store, inner Handler, logger *zap.Logger) Handler {
	if store == nil {
		return inner
	}

	return func(ctx context.Context, event models.CreationEvent) thumbnail.Result {
		if event.ID == "" {
			return inner(ctx, event)
		}

		seen, err := store.Contains(ctx, event.ID)
		if err != nil {
			// Uploads overwrite, so processing twice is harmless.
			logger.Warn("Idempotency lookup failed, processing anyway",
				zap.String("event_id", event.ID),
				zap.Error(err),
			)
			return inner(ctx, event)
		}

		if seen {
			logger.Debug("Skipping duplicate event", zap.String("event_id", event.ID))
			return thumbnail.Result{
				EventID: event.ID,
				Outcome: thumbnail.OutcomeSkipped,
				Reason:  "duplicate event",
			}
		}

		result := inner(ctx, event)
		if !result.Completed() {
			return result
		}

		if err := store.Add(ctx, event.ID); err != nil {
			logger.Warn("Failed to record handled event",
				zap.String("event_id", event.ID),
				zap.Error(err),
			)
		}

		return result
	}
}
