package httphandler

import (
	"log/slog"
	"net/http"

	"github.com/webitel/live-relay-service/internal/service"
	"go.uber.org/fx"
)

// HealthHandler is the router served on the health port.
type HealthHandler http.Handler

var Module = fx.Module("http-handler",
	fx.Provide(
		func(logger *slog.Logger, relayer service.Relayer, tracker service.StatusTracker) HealthHandler {
			sampler, err := SelfSampler()
			if err != nil {
				logger.Warn("PROCESS_SAMPLER_UNAVAILABLE", "err", err)
				sampler = nil
			}
			return NewRouter(logger, relayer, tracker, sampler)
		},
	),
)
