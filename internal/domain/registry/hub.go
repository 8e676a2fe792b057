/*
Package registry tracks the live relay sessions of the process.

Every subscriber channel is represented by a Connector (its outbound mailbox)
and owns at most one session.Session at a time. The Hub is the only shared
index; everything per-subscriber lives inside the session actor.
*/
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/webitel/live-relay-service/internal/domain/model"
	"github.com/webitel/live-relay-service/internal/domain/session"
	"golang.org/x/sync/errgroup"
)

// Hubber defines the gateway for subscriber and session management.
type Hubber interface {
	Connect(ctx context.Context, meta ConnectMetadata) Connector
	Register(connID uuid.UUID, s *session.Session) error
	Lookup(connID uuid.UUID) (*session.Session, bool)
	Unregister(ctx context.Context, connID uuid.UUID) error
	Stats() model.HubStats
	Start()
	Shutdown(ctx context.Context) error
}

type hubConfig struct {
	evictionInterval time.Duration
	mailboxSize      int
}

// Hub implements a [SCALABLE_REGISTRY] keyed by subscriber connection id.
type Hub struct {
	// sessions stores Map[uuid.UUID]*session.Session.
	sessions sync.Map

	config    hubConfig
	logger    *slog.Logger
	startedAt time.Time

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewHub(logger *slog.Logger, opts ...Option) *Hub {
	h := &Hub{
		config: hubConfig{
			evictionInterval: time.Minute,
			mailboxSize:      256,
		},
		logger:    logger,
		startedAt: time.Now(),
		stopCh:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Connect allocates the outbound mailbox for a new subscriber channel.
func (h *Hub) Connect(ctx context.Context, meta ConnectMetadata) Connector {
	return NewConnector(ctx, meta, h.config.mailboxSize)
}

// Register binds s to the connection. A connection whose previous session
// has finished may start a new one; an active one is never replaced.
func (h *Hub) Register(connID uuid.UUID, s *session.Session) error {
	for {
		val, loaded := h.sessions.LoadOrStore(connID, s)
		if !loaded {
			return nil
		}

		prev := val.(*session.Session)
		select {
		case <-prev.Done():
			// [RECLAIM] Finished sessions are replaced in place.
			if h.sessions.CompareAndSwap(connID, prev, s) {
				return nil
			}
		default:
			return fmt.Errorf("register %s on %s: %w", s.Identifier(), connID, model.ErrSessionInFlight)
		}
	}
}

func (h *Hub) Lookup(connID uuid.UUID) (*session.Session, bool) {
	val, ok := h.sessions.Load(connID)
	if !ok {
		return nil, false
	}
	return val.(*session.Session), true
}

// Unregister closes the connection's session and awaits its teardown.
func (h *Hub) Unregister(ctx context.Context, connID uuid.UUID) error {
	val, ok := h.sessions.LoadAndDelete(connID)
	if !ok {
		return nil
	}
	return val.(*session.Session).Close(ctx)
}

func (h *Hub) Stats() model.HubStats {
	stats := model.HubStats{
		ByState: make(map[string]int),
		Uptime:  time.Since(h.startedAt),
	}

	h.sessions.Range(func(_, val any) bool {
		st := val.(*session.Session).State()
		stats.ByState[st.String()]++
		if st != model.StateClosed {
			stats.ActiveSessions++
		}
		return true
	})
	return stats
}

// Start launches the [JANITOR] that drops finished sessions whose
// subscriber is still connected.
func (h *Hub) Start() {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()

		ticker := time.NewTicker(h.config.evictionInterval)
		defer ticker.Stop()

		for {
			select {
			case <-h.stopCh:
				return
			case <-ticker.C:
				h.evictFinished()
			}
		}
	}()
}

func (h *Hub) evictFinished() {
	evicted := 0
	h.sessions.Range(func(key, val any) bool {
		s := val.(*session.Session)
		select {
		case <-s.Done():
			if h.sessions.CompareAndDelete(key, s) {
				evicted++
			}
		default:
		}
		return true
	})

	if evicted > 0 {
		h.logger.Debug("[JANITOR] evicted finished sessions", slog.Int("count", evicted))
	}
}

// Shutdown stops the janitor and closes every session in parallel.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.stopOnce.Do(func() { close(h.stopCh) })
	h.wg.Wait()

	g, gctx := errgroup.WithContext(ctx)
	h.sessions.Range(func(key, val any) bool {
		h.sessions.Delete(key)
		s := val.(*session.Session)
		g.Go(func() error {
			return s.Close(gctx)
		})
		return true
	})
	return g.Wait()
}
