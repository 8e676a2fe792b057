package pubsub

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/webitel/live-relay-service/internal/domain/model"
	"github.com/webitel/live-relay-service/internal/domain/session"
	"go.opentelemetry.io/otel/trace"
)

// EventDispatcher defines the high-level contract for outgoing events.
// This allows the handler to stay agnostic of the transport implementation.
type EventDispatcher interface {
	Publish(ctx context.Context, ev model.OutboundEventer) error
	Publisher() message.Publisher
}

var (
	_ EventDispatcher  = (*Dispatcher)(nil)
	_ session.Notifier = (*Dispatcher)(nil)
)

// Dispatcher publishes outbound events through watermill.
type Dispatcher struct {
	publisher message.Publisher
	logger    *slog.Logger
}

func NewEventDispatcher(pub message.Publisher, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		publisher: pub,
		logger:    logger,
	}
}

func (d *Dispatcher) Publish(ctx context.Context, ev model.OutboundEventer) error {
	if ev == nil {
		return fmt.Errorf("event dispatcher: cannot publish nil event")
	}

	payload, err := ev.ToJSON()
	if err != nil {
		return fmt.Errorf("event dispatcher: marshal failure: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	msg.Metadata.Set("routing_key", ev.GetRoutingKey())
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		msg.Metadata.Set("trace_id", sc.TraceID().String())
	}

	if err := d.publisher.Publish(ev.GetRoutingKey(), msg); err != nil {
		return fmt.Errorf("event dispatcher: failed to publish to topic %s: %w", ev.GetRoutingKey(), err)
	}

	d.logger.Debug("[BUS] event published",
		slog.String("topic", ev.GetRoutingKey()),
		slog.String("msg_id", msg.UUID),
	)
	return nil
}

// Notify publishes a session lifecycle milestone.
func (d *Dispatcher) Notify(ctx context.Context, ev *model.LifecycleEvent) error {
	return d.Publish(ctx, ev)
}

func (d *Dispatcher) Publisher() message.Publisher {
	return d.publisher
}
