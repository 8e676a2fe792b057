package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/webitel/live-relay-service/internal/domain/model"
	"github.com/webitel/live-relay-service/internal/domain/registry"
)

// RelayMiddleware implements [DECORATOR_PATTERN] to add observability
// to the relay lifecycle without touching business logic.
type RelayMiddleware struct {
	Next   Relayer
	Logger *slog.Logger
}

func NewRelayMiddleware(next Relayer, logger *slog.Logger) Relayer {
	return &RelayMiddleware{
		Next:   next,
		Logger: logger,
	}
}

func (m *RelayMiddleware) Subscribe(ctx context.Context, meta registry.ConnectMetadata) registry.Connector {
	conn := m.Next.Subscribe(ctx, meta)
	m.Logger.Debug("SUBSCRIBER_CONNECTED",
		"conn_id", conn.GetID(),
		"remote_ip", meta.RemoteIP,
	)
	return conn
}

func (m *RelayMiddleware) Watch(ctx context.Context, conn registry.Connector, identifier string) (model.SessionSnapshot, error) {
	snap, err := m.Next.Watch(ctx, conn, identifier)
	if err != nil {
		m.Logger.Warn("WATCH_REJECTED",
			"conn_id", conn.GetID(),
			"identifier", identifier,
			"err", err,
		)
		return snap, err
	}

	m.Logger.Info("WATCH_STARTED",
		"conn_id", conn.GetID(),
		"session_id", snap.ID,
		"identifier", snap.Identifier,
	)
	return snap, nil
}

// Unsubscribe wraps the awaited teardown with timing for slow upstreams.
func (m *RelayMiddleware) Unsubscribe(ctx context.Context, conn registry.Connector) error {
	start := time.Now()
	err := m.Next.Unsubscribe(ctx, conn)
	duration := time.Since(start)

	if err != nil {
		m.Logger.Error("UNSUBSCRIBE_TEARDOWN_FAILED",
			"conn_id", conn.GetID(),
			"err", err,
			"duration_ms", duration.Milliseconds(),
		)
	} else {
		m.Logger.Debug("SUBSCRIBER_RELEASED",
			"conn_id", conn.GetID(),
			"dropped", conn.Dropped(),
			"duration_ms", duration.Milliseconds(),
		)
	}
	return err
}

func (m *RelayMiddleware) Stats() model.HubStats {
	return m.Next.Stats()
}
