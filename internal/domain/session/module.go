package session

import (
	"github.com/webitel/live-relay-service/config"
	"go.uber.org/fx"
)

var Module = fx.Module("session",
	fx.Provide(
		ConfigFrom,
		NewFactory,
	),
)

// ConfigFrom maps the monitor and reconnect sections onto session tuning.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		StatusInterval:  cfg.Monitor.StatusInterval,
		Window:          cfg.Monitor.Window,
		TeardownTimeout: cfg.Monitor.TeardownTimeout,
		SendTimeout:     cfg.Monitor.SendTimeout,
		NotifyTimeout:   cfg.Monitor.NotifyTimeout,
		Reconnect: ReconnectConfig{
			MaxAttempts:         cfg.Reconnect.MaxAttempts,
			InitialInterval:     cfg.Reconnect.InitialInterval,
			MaxInterval:         cfg.Reconnect.MaxInterval,
			Multiplier:          cfg.Reconnect.Multiplier,
			RandomizationFactor: cfg.Reconnect.RandomizationFactor,
		},
	}
}
