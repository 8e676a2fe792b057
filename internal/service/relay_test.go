package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webitel/live-relay-service/internal/domain/model"
	"github.com/webitel/live-relay-service/internal/domain/registry"
	"github.com/webitel/live-relay-service/internal/domain/session"
)

type offlineDialer struct{}

func (offlineDialer) Connect(ctx context.Context, _ string) (model.Handle, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func newRelay(t *testing.T) (Relayer, *registry.Hub) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	hub := registry.NewHub(logger)
	t.Cleanup(func() { _ = hub.Shutdown(context.Background()) })

	factory := session.NewFactory(session.DefaultConfig(), offlineDialer{}, nil, logger)
	return NewRelayMiddleware(NewRelayService(hub, factory), logger), hub
}

func TestRelay_WatchRejectsEmptyIdentifier(t *testing.T) {
	relay, _ := newRelay(t)
	conn := relay.Subscribe(context.Background(), registry.ConnectMetadata{})

	_, err := relay.Watch(context.Background(), conn, "   ")
	require.ErrorIs(t, err, model.ErrEmptyIdentifier)
	assert.Equal(t, 0, relay.Stats().ActiveSessions)
}

func TestRelay_WatchStartsOneSessionPerConnection(t *testing.T) {
	relay, hub := newRelay(t)
	conn := relay.Subscribe(context.Background(), registry.ConnectMetadata{RemoteIP: "127.0.0.1"})

	snap, err := relay.Watch(context.Background(), conn, " alice\n")
	require.NoError(t, err)
	assert.Equal(t, "alice", snap.Identifier)
	assert.Equal(t, "connecting", snap.StateName)

	_, err = relay.Watch(context.Background(), conn, "bob")
	require.ErrorIs(t, err, model.ErrSessionInFlight)

	s, ok := hub.Lookup(conn.GetID())
	require.True(t, ok)
	assert.Equal(t, "alice", s.Identifier())
	assert.Equal(t, 1, relay.Stats().ActiveSessions)
}

func TestRelay_UnsubscribeReleasesEverything(t *testing.T) {
	relay, hub := newRelay(t)
	conn := relay.Subscribe(context.Background(), registry.ConnectMetadata{})

	_, err := relay.Watch(context.Background(), conn, "carol")
	require.NoError(t, err)
	s, _ := hub.Lookup(conn.GetID())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, relay.Unsubscribe(ctx, conn))

	<-s.Done()
	<-conn.Done()
	assert.Equal(t, model.StateClosed, s.State())
	assert.Equal(t, 0, relay.Stats().ActiveSessions)
}

func TestRelay_WatchNormalizesIdentifier(t *testing.T) {
	relay, hub := newRelay(t)

	first := relay.Subscribe(context.Background(), registry.ConnectMetadata{})
	snap, err := relay.Watch(context.Background(), first, " @bob ")
	require.NoError(t, err)
	assert.Equal(t, "bob", snap.Identifier)

	second := relay.Subscribe(context.Background(), registry.ConnectMetadata{})
	snap, err = relay.Watch(context.Background(), second, "bob")
	require.NoError(t, err)
	assert.Equal(t, "bob", snap.Identifier)

	s, ok := hub.Lookup(first.GetID())
	require.True(t, ok)
	assert.Equal(t, "bob", s.Identifier())

	_, err = relay.Watch(context.Background(), relay.Subscribe(context.Background(), registry.ConnectMetadata{}), "@")
	assert.ErrorIs(t, err, model.ErrEmptyIdentifier)
}

func TestRelay_WatchOnClosedConnection(t *testing.T) {
	relay, hub := newRelay(t)
	conn := relay.Subscribe(context.Background(), registry.ConnectMetadata{})
	conn.Close()

	_, err := relay.Watch(context.Background(), conn, "dave")
	require.ErrorIs(t, err, model.ErrSessionClosed)

	_, ok := hub.Lookup(conn.GetID())
	assert.False(t, ok, "no session is registered for a closed connection")
}
