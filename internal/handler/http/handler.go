package httphandler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/webitel/live-relay-service/internal/domain/model"
	"github.com/webitel/live-relay-service/internal/service"
)

type Handler struct {
	logger  *slog.Logger
	relayer service.Relayer
	tracker service.StatusTracker
	sampler ProcessSampler
	started time.Time
}

type healthResponse struct {
	Status   string         `json:"status"`
	Version  string         `json:"version"`
	Uptime   string         `json:"uptime"`
	Sessions model.HubStats `json:"sessions"`
	Process  *ProcessStats  `json:"process,omitempty"`
}

func (h *Handler) Root(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(Banner))
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:   "ok",
		Version:  model.ServerVersion,
		Uptime:   time.Since(h.started).Round(time.Second).String(),
		Sessions: h.relayer.Stats(),
	}

	if h.sampler != nil {
		stats, err := h.sampler(r.Context())
		if err != nil {
			h.logger.Warn("PROCESS_SAMPLE_FAILED", "err", err)
		} else {
			resp.Process = &stats
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *Handler) StreamStatus(w http.ResponseWriter, r *http.Request) {
	identifier := chi.URLParam(r, "identifier")

	st, err := h.tracker.Status(r.Context(), identifier)
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, st)
	case errors.Is(err, model.ErrStatusNotFound):
		respondError(w, http.StatusNotFound, "no status recorded for "+identifier)
	case errors.Is(err, model.ErrEmptyIdentifier):
		respondError(w, http.StatusBadRequest, model.MsgEmptyIdentifier)
	default:
		h.logger.Error("STATUS_LOOKUP_FAILED", "identifier", identifier, "err", err)
		respondError(w, http.StatusInternalServerError, "status lookup failed")
	}
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, model.NewErrorEnvelope(message))
}
