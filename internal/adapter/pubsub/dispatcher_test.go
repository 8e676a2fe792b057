package pubsub

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webitel/live-relay-service/internal/domain/model"
)

func TestDispatcher_NotifyPublishesOnLocalBus(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	p := NewProvider("", "live_relay.events", watermill.NewSlogLogger(logger))
	t.Cleanup(func() { _ = p.Close() })
	require.True(t, p.IsLocal())

	sub, err := p.BuildSubscriber("ignored")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ev := model.NewLifecycleEvent(model.LifecycleWentLive, uuid.New(), "bob", time.Now())
	msgs, err := sub.Subscribe(ctx, ev.GetRoutingKey())
	require.NoError(t, err)

	pub, err := p.BuildPublisher()
	require.NoError(t, err)
	require.NoError(t, NewEventDispatcher(pub, logger).Notify(ctx, ev))

	select {
	case msg := <-msgs:
		msg.Ack()
		assert.Equal(t, ev.GetRoutingKey(), msg.Metadata.Get("routing_key"))

		var got model.LifecycleEvent
		require.NoError(t, json.Unmarshal(msg.Payload, &got))
		assert.Equal(t, ev.ID, got.ID)
		assert.Equal(t, model.LifecycleWentLive, got.Kind)
	case <-ctx.Done():
		t.Fatal("lifecycle event not delivered")
	}
}

func TestDispatcher_RejectsNil(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	p := NewProvider("", "x", watermill.NewSlogLogger(logger))
	t.Cleanup(func() { _ = p.Close() })

	pub, err := p.BuildPublisher()
	require.NoError(t, err)
	assert.Error(t, NewEventDispatcher(pub, logger).Publish(context.Background(), nil))
}
