package httphandler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webitel/live-relay-service/internal/domain/model"
	"github.com/webitel/live-relay-service/internal/domain/registry"
)

type stubRelayer struct{ stats model.HubStats }

func (s stubRelayer) Subscribe(ctx context.Context, meta registry.ConnectMetadata) registry.Connector {
	return registry.NewConnector(ctx, meta, 1)
}
func (s stubRelayer) Watch(context.Context, registry.Connector, string) (model.SessionSnapshot, error) {
	return model.SessionSnapshot{}, nil
}
func (s stubRelayer) Unsubscribe(context.Context, registry.Connector) error { return nil }
func (s stubRelayer) Stats() model.HubStats                                { return s.stats }

type stubTracker struct {
	statuses map[string]model.StreamStatus
	err      error
}

func (s stubTracker) Track(context.Context, *model.LifecycleEvent) error { return nil }

func (s stubTracker) Status(_ context.Context, id string) (model.StreamStatus, error) {
	if s.err != nil {
		return model.StreamStatus{}, s.err
	}
	st, ok := s.statuses[id]
	if !ok {
		return model.StreamStatus{}, model.ErrStatusNotFound
	}
	return st, nil
}

func newTestRouter(tracker stubTracker, sampler ProcessSampler) http.Handler {
	relayer := stubRelayer{stats: model.HubStats{ActiveSessions: 2, ByState: map[string]int{"live": 2}}}
	return NewRouter(slog.New(slog.NewTextHandler(io.Discard, nil)), relayer, tracker, sampler)
}

func TestRoot(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter(stubTracker{}, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "TikTok Live Connector Server Running", rec.Body.String())
}

func TestHealth(t *testing.T) {
	sampler := func(context.Context) (ProcessStats, error) {
		return ProcessStats{PID: 7, RSSBytes: 1 << 20, Goroutines: 12}, nil
	}

	rec := httptest.NewRecorder()
	newTestRouter(stubTracker{}, sampler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Status   string         `json:"status"`
		Sessions model.HubStats `json:"sessions"`
		Process  ProcessStats   `json:"process"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, 2, body.Sessions.ActiveSessions)
	assert.Equal(t, uint64(1<<20), body.Process.RSSBytes)
}

func TestHealth_SamplerFailureStillHealthy(t *testing.T) {
	sampler := func(context.Context) (ProcessStats, error) {
		return ProcessStats{}, errors.New("no procfs")
	}

	rec := httptest.NewRecorder()
	newTestRouter(stubTracker{}, sampler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), `"process"`)
}

func TestStreamStatus(t *testing.T) {
	tracker := stubTracker{statuses: map[string]model.StreamStatus{
		"bob": {Identifier: "bob", IsLive: true, LastKind: "went_live"},
	}}
	router := newTestRouter(tracker, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/streams/bob", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var st model.StreamStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.True(t, st.IsLive)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/streams/alice", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"type":"error"`)
}

func TestStreamStatus_BackendFailure(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter(stubTracker{err: errors.New("redis down")}, nil).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/streams/bob", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestSelfSampler(t *testing.T) {
	sampler, err := SelfSampler()
	if err != nil {
		t.Skipf("process inspection unavailable: %v", err)
	}
	stats, err := sampler(context.Background())
	if err != nil {
		t.Skipf("process inspection unavailable: %v", err)
	}
	assert.Positive(t, stats.RSSBytes)
	assert.Positive(t, stats.Goroutines)
}
