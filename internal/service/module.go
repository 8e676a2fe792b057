package service

import (
	"log/slog"

	"github.com/webitel/live-relay-service/internal/domain/session"
	"go.uber.org/fx"
)

var Module = fx.Module(
	"service",

	fx.Provide(
		func(f *session.Factory) SessionFactory { return f },
		NewRelayService,
		fx.Annotate(
			NewStatusService,
			fx.As(new(StatusTracker)),
		),

		// [DECORATION_LAYER] Wrapped at provide time: fx.Decorate would only
		// reach consumers inside this module, not the transport handlers.
		func(svc *RelayService, logger *slog.Logger) Relayer {
			return NewRelayMiddleware(svc, logger)
		},
	),
)
