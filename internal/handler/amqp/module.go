package amqp

import (
	"context"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/webitel/live-relay-service/internal/adapter/pubsub"
	"go.uber.org/fx"
)

var Module = fx.Module("amqp-handler",
	fx.Provide(
		NewLifecycleHandler,
		NewWatermillRouter,
	),

	fx.Invoke(func(lc fx.Lifecycle, h *LifecycleHandler, router *message.Router, provider *pubsub.Provider, logger *slog.Logger) error {
		if err := h.RegisterHandlers(router, provider); err != nil {
			return err
		}

		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				return runRouter(ctx, router, logger)
			},
			OnStop: func(context.Context) error {
				return router.Close()
			},
		})
		return nil
	}),
)
