package httpsrv

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"

	"github.com/webitel/live-relay-service/config"
	httphandler "github.com/webitel/live-relay-service/internal/handler/http"
	"github.com/webitel/live-relay-service/internal/handler/ws"
	"go.uber.org/fx"
	"golang.org/x/sync/errgroup"
)

type Servers struct {
	Health *Server
	Relay  *Server
}

func NewServers(cfg *config.Config, health httphandler.HealthHandler, relay *ws.RelayHandler, logger *slog.Logger) Servers {
	host := cfg.Server.Host

	rs := New("relay", net.JoinHostPort(host, strconv.Itoa(cfg.Server.RelayPort)), relay, logger)
	rs.OnShutdown(relay.Shutdown)

	return Servers{
		Health: New("health", net.JoinHostPort(host, strconv.Itoa(cfg.Server.HealthPort)), health, logger),
		Relay:  rs,
	}
}

func (s Servers) all() []*Server { return []*Server{s.Health, s.Relay} }

func (s Servers) Start(ctx context.Context) error {
	for _, srv := range s.all() {
		if err := srv.Start(ctx); err != nil {
			// Release whatever already bound.
			_ = s.Stop(ctx)
			return err
		}
	}
	return nil
}

// Stop shuts both listeners down in parallel.
func (s Servers) Stop(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range s.all() {
		g.Go(func() error {
			if err := srv.Stop(gctx); err != nil {
				return fmt.Errorf("stop %s: %w", srv.name, err)
			}
			return nil
		})
	}
	return g.Wait()
}

var Module = fx.Module("http-server",
	fx.Provide(NewServers),
	fx.Invoke(func(lc fx.Lifecycle, s Servers) {
		lc.Append(fx.Hook{
			OnStart: s.Start,
			OnStop:  s.Stop,
		})
	}),
)
