package pubsub

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/webitel/live-relay-service/config"
	"github.com/webitel/live-relay-service/internal/domain/session"
	"go.uber.org/fx"
)

var Module = fx.Module("pubsub",
	fx.Provide(
		func(lc fx.Lifecycle, cfg *config.Config, logger watermill.LoggerAdapter) *Provider {
			p := NewProvider(cfg.Broker.AMQPURL, cfg.Broker.Exchange, logger)
			lc.Append(fx.Hook{
				OnStop: func(context.Context) error { return p.Close() },
			})
			return p
		},
		func(p *Provider) (message.Publisher, error) { return p.BuildPublisher() },
		NewEventDispatcher,
		func(d *Dispatcher) EventDispatcher { return d },
		func(d *Dispatcher) session.Notifier { return d },
	),
)
