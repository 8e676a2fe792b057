package session

import (
	"log/slog"

	"github.com/webitel/live-relay-service/internal/domain/model"
)

// Factory binds the process-wide collaborators every session shares.
type Factory struct {
	cfg      Config
	dialer   model.Dialer
	notifier Notifier
	logger   *slog.Logger
	clock    Clock
}

func NewFactory(cfg Config, dialer model.Dialer, notifier Notifier, logger *slog.Logger) *Factory {
	return &Factory{
		cfg:      cfg,
		dialer:   dialer,
		notifier: notifier,
		logger:   logger,
		clock:    RealClock(),
	}
}

// New creates an idle session writing to sink.
func (f *Factory) New(identifier string, sink Sink) *Session {
	return New(identifier, f.dialer, sink,
		WithConfig(f.cfg),
		WithClock(f.clock),
		WithLogger(f.logger),
		WithNotifier(f.notifier),
	)
}
