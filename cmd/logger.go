package cmd

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/webitel/live-relay-service/config"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
)

// ProvideLogLevel returns the shared level; WatchConfig updates it live.
func ProvideLogLevel(cfg *config.Config) *slog.LevelVar {
	lv := new(slog.LevelVar)
	lv.Set(parseLevel(cfg.Log.Level))
	return lv
}

func ProvideLogger(cfg *config.Config, level *slog.LevelVar) *slog.Logger {
	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	switch {
	case cfg.Log.Exporter == "otel":
		handler = otelslog.NewHandler(ServiceName)
	case cfg.Log.Format == "text":
		handler = slog.NewTextHandler(os.Stdout, opts)
	default:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	logger := slog.New(handler).With(
		slog.String("service", ServiceName),
		slog.String("version", version),
	)
	slog.SetDefault(logger)
	return logger
}

func ProvideWatermillLogger(logger *slog.Logger) watermill.LoggerAdapter {
	return watermill.NewSlogLogger(logger)
}

func ProvideFxLogger(logger *slog.Logger) fxevent.Logger {
	l := &fxevent.SlogLogger{Logger: logger}
	l.UseLogLevel(slog.LevelDebug)
	return l
}

// ProvideTracerProvider registers the global tracer provider. Spans are
// sampled by parent; exporters attach through the standard OTEL_* variables.
func ProvideTracerProvider(lc fx.Lifecycle) *sdktrace.TracerProvider {
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
	)
	otel.SetTracerProvider(tp)

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error { return tp.Shutdown(ctx) },
	})
	return tp
}

// WatchConfig applies log level changes from the config file without restart.
func WatchConfig(cfg *config.Config, level *slog.LevelVar, logger *slog.Logger) {
	cfg.Watch(func(next *config.Config) {
		newLevel := parseLevel(next.Log.Level)
		if newLevel != level.Level() {
			level.Set(newLevel)
			logger.Info("CONFIG_RELOADED", "log_level", newLevel.String())
		}
	}, func(err error) {
		logger.Warn("CONFIG_RELOAD_REJECTED", "err", err)
	})
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
