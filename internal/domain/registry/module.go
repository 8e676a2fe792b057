package registry

import (
	"context"
	"log/slog"

	"github.com/webitel/live-relay-service/config"
	"go.uber.org/fx"
)

var Module = fx.Module("registry",
	fx.Provide(
		// [CLEAN_INJECTION] Configure Hub using Functional Options
		func(cfg *config.Config, logger *slog.Logger) *Hub {
			return NewHub(logger,
				WithMailboxSize(cfg.Registry.MailboxSize),
			)
		},
		func(h *Hub) Hubber { return h },
	),
	fx.Invoke(func(lc fx.Lifecycle, h Hubber) {
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				h.Start()
				return nil
			},
			OnStop: func(ctx context.Context) error {
				return h.Shutdown(ctx) // [GRACEFUL_SHUTDOWN] Stop all session actors
			},
		})
	}),
)
