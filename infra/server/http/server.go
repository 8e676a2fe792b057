package httpsrv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// Server is one named HTTP listener driven by the fx lifecycle.
type Server struct {
	name   string
	srv    *http.Server
	logger *slog.Logger
	ln     net.Listener
	done   chan struct{}
}

func New(name, addr string, handler http.Handler, logger *slog.Logger) *Server {
	return &Server{
		name: name,
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger.With("server", name),
		done:   make(chan struct{}),
	}
}

// OnShutdown registers fn to run when Stop begins; hijacked connections
// such as WebSockets are not closed by http.Server itself.
func (s *Server) OnShutdown(fn func()) {
	s.srv.RegisterOnShutdown(fn)
}

// Start binds the listener synchronously so port conflicts fail startup.
func (s *Server) Start(context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("%s listen %s: %w", s.name, s.srv.Addr, err)
	}
	s.ln = ln

	go func() {
		defer close(s.done)
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("SERVER_FAILED", "err", err)
		}
	}()

	s.logger.Info("SERVER_LISTENING", "addr", ln.Addr().String())
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	if s.ln == nil {
		return nil
	}
	err := s.srv.Shutdown(ctx)

	select {
	case <-s.done:
	case <-ctx.Done():
	}
	s.logger.Info("SERVER_STOPPED")
	return err
}

// Addr is the bound address once started.
func (s *Server) Addr() string {
	if s.ln == nil {
		return s.srv.Addr
	}
	return s.ln.Addr().String()
}
