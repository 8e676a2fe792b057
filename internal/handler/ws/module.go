package ws

import (
	"log/slog"

	"github.com/webitel/live-relay-service/config"
	"github.com/webitel/live-relay-service/internal/service"
	"go.uber.org/fx"
)

var Module = fx.Module("ws-handler",
	fx.Provide(
		func(cfg *config.Config, logger *slog.Logger, relayer service.Relayer) *RelayHandler {
			return NewRelayHandler(logger, relayer, cfg.Monitor.TeardownTimeout)
		},
	),
)
