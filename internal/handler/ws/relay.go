package ws

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/webitel/live-relay-service/internal/domain/model"
	"github.com/webitel/live-relay-service/internal/domain/registry"
	wsmarshaller "github.com/webitel/live-relay-service/internal/handler/marshaller/ws"
	"github.com/webitel/live-relay-service/internal/service"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024
)

// RelayHandler serves the subscriber channel: the first text frame names the
// target, envelopes flow back until either side hangs up.
type RelayHandler struct {
	logger          *slog.Logger
	relayer         service.Relayer
	upgrader        websocket.Upgrader
	teardownTimeout time.Duration

	mu     sync.Mutex
	active map[*websocket.Conn]struct{}
}

func NewRelayHandler(logger *slog.Logger, relayer service.Relayer, teardownTimeout time.Duration) *RelayHandler {
	return &RelayHandler{
		logger:  logger,
		relayer: relayer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		teardownTimeout: teardownTimeout,
		active:          make(map[*websocket.Conn]struct{}),
	}
}

func (h *RelayHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("ws upgrade failed", "error", err)
		return
	}
	defer ws.Close()

	h.track(ws)
	defer h.untrack(ws)

	conn := h.relayer.Subscribe(context.WithoutCancel(r.Context()), registry.ConnectMetadata{
		RemoteIP:  remoteIP(r),
		UserAgent: r.UserAgent(),
	})
	log := h.logger.With("conn_id", conn.GetID())
	log.Info("ws opened", "remote_ip", conn.Metadata().RemoteIP)

	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		h.writePump(ws, conn, log)
	}()

	h.readLoop(r.Context(), ws, conn, log)

	// [TEARDOWN] Await the upstream release before dropping the socket.
	ctx, cancel := context.WithTimeout(context.Background(), h.teardownTimeout)
	defer cancel()
	if err := h.relayer.Unsubscribe(ctx, conn); err != nil {
		log.Warn("session teardown incomplete", "error", err)
	}
	<-pumpDone
	log.Info("ws closed")
}

// readLoop treats every text frame as a watch request.
func (h *RelayHandler) readLoop(ctx context.Context, ws *websocket.Conn, conn registry.Connector, log *slog.Logger) {
	ws.SetReadLimit(maxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		kind, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				log.Debug("ws read failed", "error", err)
			}
			return
		}
		if kind != websocket.TextMessage {
			continue
		}
		_ = ws.SetReadDeadline(time.Now().Add(pongWait))

		if _, err := h.relayer.Watch(ctx, conn, string(data)); err != nil {
			conn.Send(model.NewErrorEnvelope(wsmarshaller.ErrorMessage(err)), writeWait)
		}
	}
}

// writePump is the only writer of ws.
func (h *RelayHandler) writePump(ws *websocket.Conn, conn registry.Connector, log *slog.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-conn.Done():
			_ = ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			return

		case env := <-conn.Recv():
			data, err := wsmarshaller.MarshallEnvelope(env)
			if err != nil {
				log.Error("failed to marshal envelope", "error", err)
				continue
			}

			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Warn("ws send failed", "error", err)
				// Unblock the reader so the session is torn down.
				_ = ws.Close()
				return
			}

		case <-ticker.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				if !errors.Is(err, websocket.ErrCloseSent) {
					log.Debug("ws ping failed", "error", err)
				}
				_ = ws.Close()
				return
			}
		}
	}
}

// Shutdown sends going-away to every open subscriber channel; each handler
// then runs its normal teardown.
func (h *RelayHandler) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	for ws := range h.active {
		_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		_ = ws.Close()
	}
	h.logger.Info("ws subscribers disconnected", "count", len(h.active))
}

// Active reports the number of open subscriber channels.
func (h *RelayHandler) Active() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.active)
}

func (h *RelayHandler) track(ws *websocket.Conn) {
	h.mu.Lock()
	h.active[ws] = struct{}{}
	h.mu.Unlock()
}

func (h *RelayHandler) untrack(ws *websocket.Conn) {
	h.mu.Lock()
	delete(h.active, ws)
	h.mu.Unlock()
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
