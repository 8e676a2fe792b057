package store

import (
	"context"
	"log/slog"

	"github.com/webitel/live-relay-service/config"
	"github.com/webitel/live-relay-service/internal/service"
	"go.uber.org/fx"
)

var Module = fx.Module("store",
	fx.Provide(
		func(lc fx.Lifecycle, cfg *config.Config, logger *slog.Logger) (service.StatusStore, error) {
			if cfg.Store.RedisURL == "" {
				logger.Info("[STORE] using in-memory status cache", slog.Int("size", cfg.Store.LRUSize))
				return NewLRUStore(cfg.Store.LRUSize, cfg.Store.TTL)
			}

			client, err := NewRedisClient(cfg.Store.RedisURL)
			if err != nil {
				return nil, err
			}
			rs := NewRedisStore(client, cfg.Store.KeyPrefix, cfg.Store.TTL)

			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					// Redis may come up after us; the bus retries failed writes.
					if err := rs.Ping(ctx); err != nil {
						logger.Warn("[STORE] redis not reachable yet", slog.Any("err", err))
					}
					return nil
				},
				OnStop: func(context.Context) error { return rs.Close() },
			})
			logger.Info("[STORE] using redis status store", slog.String("prefix", cfg.Store.KeyPrefix))
			return rs, nil
		},
	),
)
