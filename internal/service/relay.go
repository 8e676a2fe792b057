package service

import (
	"context"
	"fmt"

	"github.com/webitel/live-relay-service/internal/domain/model"
	"github.com/webitel/live-relay-service/internal/domain/registry"
	"github.com/webitel/live-relay-service/internal/domain/session"
)

// [RELAY_SERVICE] PRIMARY INTERFACE FOR TRANSPORT HANDLERS
type Relayer interface {
	Subscribe(ctx context.Context, meta registry.ConnectMetadata) registry.Connector
	Watch(ctx context.Context, conn registry.Connector, identifier string) (model.SessionSnapshot, error)
	Unsubscribe(ctx context.Context, conn registry.Connector) error
	Stats() model.HubStats
}

// SessionFactory creates idle sessions bound to a subscriber sink.
type SessionFactory interface {
	New(identifier string, sink session.Sink) *session.Session
}

type RelayService struct {
	hub      registry.Hubber
	sessions SessionFactory
}

func NewRelayService(hub registry.Hubber, sessions SessionFactory) *RelayService {
	return &RelayService{
		hub:      hub,
		sessions: sessions,
	}
}

// [SUBSCRIBE] Allocates the subscriber mailbox; no session exists until Watch.
func (s *RelayService) Subscribe(ctx context.Context, meta registry.ConnectMetadata) registry.Connector {
	return s.hub.Connect(ctx, meta)
}

// Watch starts monitoring identifier on behalf of conn. A connection runs at
// most one session; a new one is accepted once the previous has finished.
func (s *RelayService) Watch(_ context.Context, conn registry.Connector, identifier string) (model.SessionSnapshot, error) {
	select {
	case <-conn.Done():
		return model.SessionSnapshot{}, model.ErrSessionClosed
	default:
	}

	identifier = model.NormalizeIdentifier(identifier)
	if identifier == "" {
		return model.SessionSnapshot{}, model.ErrEmptyIdentifier
	}

	sess := s.sessions.New(identifier, conn)
	if err := s.hub.Register(conn.GetID(), sess); err != nil {
		return model.SessionSnapshot{}, fmt.Errorf("watch %s: %w", identifier, err)
	}

	sess.Start()
	return sess.Snapshot(), nil
}

// [UNSUBSCRIBE] Tears the session down, then releases the mailbox.
func (s *RelayService) Unsubscribe(ctx context.Context, conn registry.Connector) error {
	defer conn.Close()
	return s.hub.Unregister(ctx, conn.GetID())
}

func (s *RelayService) Stats() model.HubStats {
	return s.hub.Stats()
}
