package session

import (
	"log/slog"
	"time"
)

// Config holds the monitor and reconnect tuning for one session.
type Config struct {
	// StatusInterval is the cadence of "has not gone live yet" reports.
	StatusInterval time.Duration
	// Window bounds liveness polling and reconnection.
	Window time.Duration
	// TeardownTimeout bounds each awaited upstream disconnect.
	TeardownTimeout time.Duration
	// SendTimeout bounds each envelope hand-off to the subscriber mailbox.
	SendTimeout time.Duration
	// NotifyTimeout bounds each lifecycle publish.
	NotifyTimeout time.Duration
	Reconnect     ReconnectConfig
}

// ReconnectConfig shapes the exponential backoff used after upstream errors.
type ReconnectConfig struct {
	MaxAttempts         int
	InitialInterval     time.Duration
	MaxInterval         time.Duration
	Multiplier          float64
	RandomizationFactor float64
}

func DefaultConfig() Config {
	return Config{
		StatusInterval:  30 * time.Second,
		Window:          5 * time.Minute,
		TeardownTimeout: 5 * time.Second,
		SendTimeout:     500 * time.Millisecond,
		NotifyTimeout:   2 * time.Second,
		Reconnect: ReconnectConfig{
			MaxAttempts:         10,
			InitialInterval:     time.Second,
			MaxInterval:         30 * time.Second,
			Multiplier:          2,
			RandomizationFactor: 0.5,
		},
	}
}

// Option defines a functional configuration type for a Session.
type Option func(*Session)

func WithConfig(cfg Config) Option {
	return func(s *Session) {
		s.cfg = cfg
	}
}

// WithClock swaps the time source; tests use it to step the window.
func WithClock(c Clock) Option {
	return func(s *Session) {
		s.clock = c
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		s.logger = l
	}
}

// WithNotifier publishes lifecycle milestones (went_live, ended, ...).
func WithNotifier(n Notifier) Option {
	return func(s *Session) {
		s.notifier = n
	}
}
