package amqp

import (
	"context"
	"fmt"

	"github.com/webitel/live-relay-service/internal/domain/model"
)

// [ON_SESSION_LIFECYCLE]
// Folds went_live / ended / not_live / failed into the status store.
func (h *LifecycleHandler) OnSessionLifecycleV1(ctx context.Context, ev *model.LifecycleEvent) error {
	if ev.Identifier == "" {
		h.logger.Warn("LIFECYCLE_SKIPPED: identifier_missing", "event_id", ev.ID)
		return nil
	}

	if err := h.tracker.Track(ctx, ev); err != nil {
		return fmt.Errorf("track %s %s: %w", ev.Kind, ev.Identifier, err)
	}

	h.logger.Debug("LIFECYCLE_TRACKED",
		"kind", ev.Kind,
		"identifier", ev.Identifier,
		"session_id", ev.SessionID,
	)
	return nil
}
