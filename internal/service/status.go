package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/webitel/live-relay-service/internal/domain/model"
)

// StatusStore persists the last known StreamStatus per identifier.
type StatusStore interface {
	Get(ctx context.Context, identifier string) (model.StreamStatus, error)
	Put(ctx context.Context, status model.StreamStatus) error
}

// SessionHistory archives finished live sessions.
type SessionHistory interface {
	Record(ctx context.Context, ev *model.LifecycleEvent) error
}

// StatusTracker folds lifecycle events into the status store and answers
// status queries for the HTTP surface.
type StatusTracker interface {
	Track(ctx context.Context, ev *model.LifecycleEvent) error
	Status(ctx context.Context, identifier string) (model.StreamStatus, error)
}

type StatusService struct {
	store   StatusStore
	history SessionHistory
	logger  *slog.Logger
	now     func() time.Time
}

func NewStatusService(store StatusStore, history SessionHistory, logger *slog.Logger) *StatusService {
	return &StatusService{
		store:   store,
		history: history,
		logger:  logger,
		now:     time.Now,
	}
}

func (s *StatusService) Track(ctx context.Context, ev *model.LifecycleEvent) error {
	prev, err := s.store.Get(ctx, ev.Identifier)
	if err != nil && !errors.Is(err, model.ErrStatusNotFound) {
		return fmt.Errorf("load status %s: %w", ev.Identifier, err)
	}

	next, applied := prev.ApplyLifecycle(ev, s.now())
	if applied {
		if err := s.store.Put(ctx, next); err != nil {
			return fmt.Errorf("save status %s: %w", ev.Identifier, err)
		}
	} else {
		s.logger.Debug("STALE_LIFECYCLE_SKIPPED",
			"identifier", ev.Identifier,
			"kind", ev.Kind,
			"session_id", ev.SessionID,
			"stored_kind", prev.LastKind,
		)
	}

	if ev.Kind == model.LifecycleEnded && s.history != nil {
		if err := s.history.Record(ctx, ev); err != nil {
			return fmt.Errorf("record history %s: %w", ev.Identifier, err)
		}
	}
	return nil
}

func (s *StatusService) Status(ctx context.Context, identifier string) (model.StreamStatus, error) {
	identifier = model.NormalizeIdentifier(identifier)
	if identifier == "" {
		return model.StreamStatus{}, model.ErrEmptyIdentifier
	}
	return s.store.Get(ctx, identifier)
}
