package httphandler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/webitel/live-relay-service/internal/service"
)

const Banner = "TikTok Live Connector Server Running"

// NewRouter wires the plaintext health and status routes.
func NewRouter(logger *slog.Logger, relayer service.Relayer, tracker service.StatusTracker, sampler ProcessSampler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)

	h := &Handler{
		logger:  logger,
		relayer: relayer,
		tracker: tracker,
		sampler: sampler,
		started: time.Now(),
	}

	r.Get("/", h.Root)
	r.Get("/healthz", h.Health)
	r.Route("/api", func(api chi.Router) {
		api.Get("/streams/{identifier}", h.StreamStatus)
	})
	return r
}

// RequestLogger logs each request through slog.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			logger.Debug("HTTP_REQUEST",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
