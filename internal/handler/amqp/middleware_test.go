package amqp

import (
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryMiddleware_GivesUpAfterBudget(t *testing.T) {
	var calls atomic.Int32
	failing := func(*message.Message) ([]*message.Message, error) {
		calls.Add(1)
		return nil, errors.New("store unavailable")
	}

	logger := watermill.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	h := NewRetryMiddleware(logger).Middleware(failing)

	_, err := h(message.NewMessage(watermill.NewUUID(), []byte(`{}`)))
	require.Error(t, err)
	assert.Equal(t, int32(LifecycleMaxRetries+1), calls.Load())
}

func TestRetryMiddleware_StopsOnSuccess(t *testing.T) {
	var calls atomic.Int32
	flaky := func(*message.Message) ([]*message.Message, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("timeout")
		}
		return nil, nil
	}

	logger := watermill.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	_, err := NewRetryMiddleware(logger).Middleware(flaky)(message.NewMessage(watermill.NewUUID(), nil))
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestTraceIDMiddleware_KeepsIncomingID(t *testing.T) {
	var seen string
	h := TraceIDMiddleware(func(msg *message.Message) ([]*message.Message, error) {
		seen = TraceIDFromContext(msg.Context())
		return nil, nil
	})

	msg := message.NewMessage(watermill.NewUUID(), nil)
	msg.Metadata.Set("trace_id", "abc123")
	_, err := h(msg)
	require.NoError(t, err)
	assert.Equal(t, "abc123", seen)

	fresh := message.NewMessage(watermill.NewUUID(), nil)
	_, err = h(fresh)
	require.NoError(t, err)
	assert.NotEmpty(t, seen)
	assert.Equal(t, fresh.Metadata.Get("trace_id"), seen)
}
