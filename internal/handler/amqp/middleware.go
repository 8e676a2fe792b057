package amqp

import (
	"context"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/google/uuid"
)

type traceIDKey struct{}

// TraceIDFromContext returns the id set by TraceIDMiddleware.
func TraceIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(traceIDKey{}).(string)
	return id
}

// [TRACE_ID_MIDDLEWARE]
// Ensures TraceID persistence through the call chain.
func TraceIDMiddleware(h message.HandlerFunc) message.HandlerFunc {
	return func(msg *message.Message) ([]*message.Message, error) {
		traceID := msg.Metadata.Get("trace_id")
		if traceID == "" {
			traceID = uuid.NewString()
			msg.Metadata.Set("trace_id", traceID)
		}

		ctx := context.WithValue(msg.Context(), traceIDKey{}, traceID)
		msg.SetContext(ctx)

		return h(msg)
	}
}

// [LOGGING_MIDDLEWARE]
// Structured logging with latency and TraceID.
func LoggingMiddleware(logger *slog.Logger) message.HandlerMiddleware {
	return func(h message.HandlerFunc) message.HandlerFunc {
		return func(msg *message.Message) ([]*message.Message, error) {
			start := time.Now()
			msgs, err := h(msg)

			logger.Debug("MESSAGE_HANDLED",
				"msg_id", msg.UUID,
				"routing_key", msg.Metadata.Get("routing_key"),
				"trace_id", msg.Metadata.Get("trace_id"),
				"duration_ms", time.Since(start).Milliseconds(),
				"success", err == nil,
			)
			return msgs, err
		}
	}
}

// Lifecycle retry budget. Track folds are idempotent per session, so a
// message that still fails after LifecycleMaxRetries goes to the poison queue.
const (
	LifecycleMaxRetries      = 2
	lifecycleRetryInterval   = 100 * time.Millisecond
	lifecycleRetryMaxBackoff = time.Second
)

// [RETRY_MIDDLEWARE]
// Short jittered backoff: a status write that fails this many times points at
// the store, not at the message.
func NewRetryMiddleware(logger watermill.LoggerAdapter) middleware.Retry {
	return middleware.Retry{
		MaxRetries:          LifecycleMaxRetries,
		InitialInterval:     lifecycleRetryInterval,
		MaxInterval:         lifecycleRetryMaxBackoff,
		Multiplier:          2.0,
		RandomizationFactor: 0.2,
		MaxElapsedTime:      5 * time.Second,
		Logger:              logger,
	}
}
