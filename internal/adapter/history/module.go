package history

import (
	"context"
	"log/slog"

	"github.com/webitel/live-relay-service/config"
	"github.com/webitel/live-relay-service/internal/service"
	"go.uber.org/fx"
)

var Module = fx.Module("history",
	fx.Provide(
		func(lc fx.Lifecycle, cfg *config.Config, logger *slog.Logger) (service.SessionHistory, error) {
			if cfg.History.DatabaseURL == "" {
				logger.Info("[HISTORY] session history disabled")
				return Noop{}, nil
			}

			pool, err := NewPool(context.Background(), cfg.History.DatabaseURL)
			if err != nil {
				return nil, err
			}
			h := NewPgHistory(pool)

			lc.Append(fx.Hook{
				OnStart: h.ApplySchema,
				OnStop: func(context.Context) error {
					h.Close()
					return nil
				},
			})
			return h, nil
		},
	),
)
