package registry

import "time"

// Option defines a functional configuration type for the Hub.
type Option func(*Hub)

// WithEvictionInterval configures how often the [JANITOR] sweeps sessions
// that ended on their own (not_live, end_time) while the subscriber stayed.
func WithEvictionInterval(d time.Duration) Option {
	return func(h *Hub) {
		h.config.evictionInterval = d
	}
}

// WithMailboxSize sets the [BACKPRESSURE] threshold of each subscriber mailbox.
func WithMailboxSize(size int) Option {
	return func(h *Hub) {
		h.config.mailboxSize = size
	}
}
