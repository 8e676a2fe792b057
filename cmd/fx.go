package cmd

import (
	"github.com/webitel/live-relay-service/config"
	httpsrv "github.com/webitel/live-relay-service/infra/server/http"
	"github.com/webitel/live-relay-service/internal/adapter/history"
	"github.com/webitel/live-relay-service/internal/adapter/pubsub"
	"github.com/webitel/live-relay-service/internal/adapter/store"
	"github.com/webitel/live-relay-service/internal/adapter/upstream"
	"github.com/webitel/live-relay-service/internal/domain/registry"
	"github.com/webitel/live-relay-service/internal/domain/session"
	amqpdi "github.com/webitel/live-relay-service/internal/handler/amqp"
	httphandler "github.com/webitel/live-relay-service/internal/handler/http"
	"github.com/webitel/live-relay-service/internal/handler/ws"
	"github.com/webitel/live-relay-service/internal/service"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
)

func NewApp(cfg *config.Config) *fx.App {
	return fx.New(
		fx.Provide(
			func() *config.Config { return cfg },
			ProvideLogLevel,
			ProvideLogger,
			ProvideWatermillLogger,
			ProvideTracerProvider,
		),
		fx.Invoke(
			WatchConfig,
			func(*sdktrace.TracerProvider) {},
		),
		fx.WithLogger(ProvideFxLogger),
		upstream.Module,
		pubsub.Module,
		store.Module,
		history.Module,
		session.Module,
		registry.Module,
		service.Module,
		amqpdi.Module,
		httphandler.Module,
		ws.Module,
		httpsrv.Module,
	)
}
