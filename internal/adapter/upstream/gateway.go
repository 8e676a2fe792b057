/*
Package upstream connects to the webcast gateway that fronts TikTok live rooms.

The gateway speaks JSON over WebSocket: after the handshake it sends a
"connected" frame once the room is live, or an "error" frame when it is not.
Relay frames follow as {"event": "chat", "data": {...}}.
*/
package upstream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sony/gobreaker"
	"github.com/webitel/live-relay-service/internal/domain/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/webitel/live-relay-service/internal/adapter/upstream"

var _ model.Dialer = (*Gateway)(nil)

type Config struct {
	URL              string
	HandshakeTimeout time.Duration
	LiveTimeout      time.Duration
	ReadTimeout      time.Duration
	PingInterval     time.Duration
	BufferSize       int
	Headers          map[string]string
	Breaker          BreakerConfig
}

type BreakerConfig struct {
	MaxRequests         uint32
	Interval            time.Duration
	Timeout             time.Duration
	ConsecutiveFailures uint32
}

// Gateway dials one WebSocket per session. Connects share a circuit breaker
// so a dead gateway fails sessions fast instead of stacking handshakes.
type Gateway struct {
	cfg     Config
	dialer  *websocket.Dialer
	breaker *gobreaker.CircuitBreaker
	tracer  trace.Tracer
	logger  *slog.Logger
}

func NewGateway(cfg Config, logger *slog.Logger) *Gateway {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 64
	}

	g := &Gateway{
		cfg: cfg,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
		tracer: otel.Tracer(tracerName),
		logger: logger,
	}

	g.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "webcast-gateway",
		MaxRequests: cfg.Breaker.MaxRequests,
		Interval:    cfg.Breaker.Interval,
		Timeout:     cfg.Breaker.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.Breaker.ConsecutiveFailures
		},
		// An offline target or a cancelled attempt says nothing about gateway health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, model.ErrNotLive) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("[UPSTREAM] circuit breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})
	return g
}

// Connect returns once the gateway reports the room live.
func (g *Gateway) Connect(ctx context.Context, identifier string) (model.Handle, error) {
	ctx, span := g.tracer.Start(ctx, "upstream.Connect",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("live.identifier", identifier)),
	)
	defer span.End()

	res, err := g.breaker.Execute(func() (interface{}, error) {
		return g.connect(ctx, identifier)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetStatus(codes.Ok, "")
	return res.(*handle), nil
}

func (g *Gateway) connect(ctx context.Context, identifier string) (*handle, error) {
	target := g.endpoint(identifier)

	header := http.Header{}
	for k, v := range g.cfg.Headers {
		header.Set(k, v)
	}

	conn, resp, err := g.dialer.DialContext(ctx, target, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial gateway: %s: %w", resp.Status, err)
		}
		return nil, fmt.Errorf("dial gateway: %w", err)
	}

	first, err := g.awaitLive(ctx, conn)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	log := g.logger.With(slog.String("identifier", identifier))
	log.Debug("[UPSTREAM] gateway reports room live", slog.String("payload", string(first.Data)))
	return newHandle(conn, g.cfg, log), nil
}

// awaitLive reads frames until "connected", an error, or the live timeout.
func (g *Gateway) awaitLive(ctx context.Context, conn *websocket.Conn) (frame, error) {
	deadline := time.Now().Add(g.cfg.LiveTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetReadDeadline(deadline); err != nil {
		return frame{}, err
	}

	// Unblock the read when the attempt is cancelled.
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetReadDeadline(time.Now())
	})
	defer stop()

	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			if ctx.Err() != nil {
				return frame{}, ctx.Err()
			}
			var ce *websocket.CloseError
			if errors.As(err, &ce) {
				return frame{}, fmt.Errorf("gateway closed before live (%d %s): %w", ce.Code, ce.Text, model.ErrNotLive)
			}
			return frame{}, fmt.Errorf("await live: %w", err)
		}

		switch f.Event {
		case frameConnected:
			return f, nil
		case frameError, frameStreamEnd, frameDisconnected:
			return frame{}, fmt.Errorf("%s: %w", f.errorMessage(), model.ErrNotLive)
		}
	}
}

func (g *Gateway) endpoint(identifier string) string {
	id := model.NormalizeIdentifier(identifier)
	return strings.ReplaceAll(g.cfg.URL, "{identifier}", url.QueryEscape(id))
}
