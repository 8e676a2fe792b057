package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/webitel/live-relay-service/internal/domain/model"
)

var _ model.Handle = (*handle)(nil)

// handle is a live gateway connection. One goroutine reads frames into
// events; a second keeps the socket alive with pings.
type handle struct {
	conn   *websocket.Conn
	cfg    Config
	logger *slog.Logger

	events    chan model.UpstreamEvent
	closing   chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func newHandle(conn *websocket.Conn, cfg Config, logger *slog.Logger) *handle {
	h := &handle{
		conn:    conn,
		cfg:     cfg,
		logger:  logger,
		events:  make(chan model.UpstreamEvent, cfg.BufferSize),
		closing: make(chan struct{}),
		done:    make(chan struct{}),
	}

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
	})
	_ = conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))

	go h.readLoop()
	go h.pingLoop()
	return h
}

func (h *handle) Events() <-chan model.UpstreamEvent { return h.events }

// Disconnect sends a close frame and waits for the reader to exit.
func (h *handle) Disconnect(ctx context.Context) error {
	h.closeOnce.Do(func() {
		close(h.closing)
		deadline := time.Now().Add(time.Second)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = h.conn.WriteControl(websocket.CloseMessage, msg, deadline)
	})

	select {
	case <-h.done:
		return h.closeConn()
	case <-ctx.Done():
		// The gateway did not echo the close; force the reader out.
		_ = h.closeConn()
		<-h.done
		return ctx.Err()
	}
}

func (h *handle) closeConn() error {
	if err := h.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

func (h *handle) readLoop() {
	defer close(h.done)
	defer close(h.events)

	for {
		_, raw, err := h.conn.ReadMessage()
		if err != nil {
			select {
			case <-h.closing:
			default:
				h.logger.Warn("[UPSTREAM] gateway read failed", slog.Any("err", err))
				h.push(model.UpstreamEvent{Kind: model.UpstreamError, Err: err})
			}
			return
		}
		_ = h.conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))

		var f frame
		if err := json.Unmarshal(raw, &f); err != nil {
			h.logger.Debug("[UPSTREAM] skipping malformed frame", slog.Any("err", err))
			continue
		}

		ev, ok := f.toEvent()
		if !ok {
			h.logger.Debug("[UPSTREAM] skipping unrelayed event", slog.String("event", f.Event))
			continue
		}
		if !h.push(ev) {
			return
		}
		if ev.Kind == model.UpstreamDisconnected {
			return
		}
	}
}

// push blocks until the session takes ev or the handle is being closed.
func (h *handle) push(ev model.UpstreamEvent) bool {
	select {
	case h.events <- ev:
		return true
	case <-h.closing:
		return false
	}
}

func (h *handle) pingLoop() {
	if h.cfg.PingInterval <= 0 {
		return
	}
	ticker := time.NewTicker(h.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(h.cfg.PingInterval / 2)
			if err := h.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				if !errors.Is(err, websocket.ErrCloseSent) {
					h.logger.Debug("[UPSTREAM] ping failed", slog.Any("err", err))
				}
				return
			}
		}
	}
}
