package amqp

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/webitel/live-relay-service/config"
	"github.com/webitel/live-relay-service/internal/adapter/pubsub"
	"github.com/webitel/live-relay-service/internal/service"
)

const (
	// ------------------- TOPICS (ROUTING KEYS) -----------------
	TopicSessionWentLive = "live_relay.v1.session.went_live"
	TopicSessionEnded    = "live_relay.v1.session.ended"
	TopicSessionNotLive  = "live_relay.v1.session.not_live"
	TopicSessionFailed   = "live_relay.v1.session.failed"

	// ------------------- QUEUES (CONSUMERS) --------------------
	PoisonTopicSuffix = ".poison"
)

type LifecycleHandler struct {
	tracker    service.StatusTracker
	dispatcher pubsub.EventDispatcher
	logger     *slog.Logger
	queue      string
}

func NewLifecycleHandler(cfg *config.Config, tracker service.StatusTracker, dispatcher pubsub.EventDispatcher, logger *slog.Logger) *LifecycleHandler {
	return &LifecycleHandler{
		tracker:    tracker,
		dispatcher: dispatcher,
		logger:     logger,
		queue:      cfg.Broker.Queue,
	}
}

func NewWatermillRouter(logger watermill.LoggerAdapter) (*message.Router, error) {
	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: 10 * time.Second}, logger)
	if err != nil {
		return nil, fmt.Errorf("ROUTER_SETUP_FAILED: %w", err)
	}
	router.AddMiddleware(middleware.Recoverer)
	return router, nil
}

// [REGISTRATION_PIPELINE]
func (h *LifecycleHandler) RegisterHandlers(router *message.Router, provider *pubsub.Provider) error {
	poison, err := middleware.PoisonQueue(h.dispatcher.Publisher(), h.queue+PoisonTopicSuffix)
	if err != nil {
		return fmt.Errorf("POISON_SETUP_FAILED: %w", err)
	}

	retry := NewRetryMiddleware(watermill.NewSlogLogger(h.logger))

	configs := []struct {
		name    string
		topic   string
		handler message.NoPublishHandlerFunc
	}{
		{"ON_SESSION_WENT_LIVE", TopicSessionWentLive, Bind(h, h.OnSessionLifecycleV1)},
		{"ON_SESSION_ENDED", TopicSessionEnded, Bind(h, h.OnSessionLifecycleV1)},
		{"ON_SESSION_NOT_LIVE", TopicSessionNotLive, Bind(h, h.OnSessionLifecycleV1)},
		{"ON_SESSION_FAILED", TopicSessionFailed, Bind(h, h.OnSessionLifecycleV1)},
	}

	for _, c := range configs {
		// [SHARED_HANDLER_QUEUE]
		// One durable queue per handler; relay nodes compete for its messages.
		// Format: live-relay.session-events.v1.ON_SESSION_ENDED
		handlerQueue := fmt.Sprintf("%s.%s", h.queue, c.name)

		sub, err := provider.BuildSubscriber(handlerQueue)
		if err != nil {
			return err
		}

		router.AddConsumerHandler(c.name, c.topic, sub, c.handler).AddMiddleware(
			TraceIDMiddleware,
			LoggingMiddleware(h.logger),
			poison,
			retry.Middleware,
			middleware.NewThrottle(100, time.Second).Middleware,
			middleware.Timeout(time.Second*30),
		)
	}

	h.logger.Info("AMQP_PIPELINE_READY", "queue", h.queue, "local", provider.IsLocal())
	return nil
}

// runRouter starts the router and waits until its handlers are subscribed.
func runRouter(ctx context.Context, router *message.Router, logger *slog.Logger) error {
	go func() {
		if err := router.Run(context.Background()); err != nil {
			logger.Error("ROUTER_STOPPED", "err", err)
		}
	}()

	select {
	case <-router.Running():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
