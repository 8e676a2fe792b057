package upstream

import (
	"log/slog"

	"github.com/webitel/live-relay-service/config"
	"github.com/webitel/live-relay-service/internal/domain/model"
	"go.uber.org/fx"
)

var Module = fx.Module("upstream",
	fx.Provide(
		fx.Annotate(
			func(cfg *config.Config, logger *slog.Logger) *Gateway {
				return NewGateway(ConfigFrom(cfg.Upstream), logger)
			},
			fx.As(new(model.Dialer)),
		),
	),
)

func ConfigFrom(c config.UpstreamConfig) Config {
	return Config{
		URL:              c.URL,
		HandshakeTimeout: c.HandshakeTimeout,
		LiveTimeout:      c.LiveTimeout,
		ReadTimeout:      c.ReadTimeout,
		PingInterval:     c.PingInterval,
		BufferSize:       c.BufferSize,
		Headers:          c.Headers,
		Breaker: BreakerConfig{
			MaxRequests:         c.Breaker.MaxRequests,
			Interval:            c.Breaker.Interval,
			Timeout:             c.Breaker.Timeout,
			ConsecutiveFailures: c.Breaker.ConsecutiveFailures,
		},
	}
}
