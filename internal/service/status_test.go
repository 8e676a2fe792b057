package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webitel/live-relay-service/internal/domain/model"
)

type memStore struct {
	mu   sync.Mutex
	data map[string]model.StreamStatus
	err  error
}

func (m *memStore) Get(_ context.Context, id string) (model.StreamStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return model.StreamStatus{}, m.err
	}
	st, ok := m.data[id]
	if !ok {
		return model.StreamStatus{}, model.ErrStatusNotFound
	}
	return st, nil
}

func (m *memStore) Put(_ context.Context, st model.StreamStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[st.Identifier] = st
	return nil
}

type memHistory struct {
	recorded []*model.LifecycleEvent
}

func (h *memHistory) Record(_ context.Context, ev *model.LifecycleEvent) error {
	h.recorded = append(h.recorded, ev)
	return nil
}

func TestStatusService_TrackFoldsLifecycle(t *testing.T) {
	store := &memStore{data: map[string]model.StreamStatus{}}
	history := &memHistory{}
	svc := NewStatusService(store, history, slog.New(slog.NewTextHandler(io.Discard, nil)))

	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	end := start.Add(8 * time.Second)
	sid := uuid.New()

	ctx := context.Background()
	require.NoError(t, svc.Track(ctx, model.NewLifecycleEvent(model.LifecycleWentLive, sid, "bob", start).WithWindow(start, time.Time{})))

	st, err := svc.Status(ctx, "bob")
	require.NoError(t, err)
	assert.True(t, st.IsLive)
	assert.Empty(t, history.recorded)

	require.NoError(t, svc.Track(ctx, model.NewLifecycleEvent(model.LifecycleEnded, sid, "bob", end).WithWindow(start, end)))

	st, err = svc.Status(ctx, " bob ")
	require.NoError(t, err)
	assert.False(t, st.IsLive)
	assert.InDelta(t, 8.0, st.Duration, 1e-9)
	require.Len(t, history.recorded, 1)
	assert.Equal(t, sid, history.recorded[0].SessionID)
}

func TestStatusService_StatusErrors(t *testing.T) {
	store := &memStore{data: map[string]model.StreamStatus{}}
	svc := NewStatusService(store, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err := svc.Status(context.Background(), "nobody")
	assert.ErrorIs(t, err, model.ErrStatusNotFound)

	_, err = svc.Status(context.Background(), "")
	assert.ErrorIs(t, err, model.ErrEmptyIdentifier)

	store.err = errors.New("redis down")
	err = svc.Track(context.Background(), model.NewLifecycleEvent(model.LifecycleFailed, uuid.New(), "x", time.Now()))
	assert.ErrorContains(t, err, "redis down")
}

func TestStatusService_EndedIsNotReopenedByLateWentLive(t *testing.T) {
	store := &memStore{data: map[string]model.StreamStatus{}}
	history := &memHistory{}
	svc := NewStatusService(store, history, slog.New(slog.NewTextHandler(io.Discard, nil)))

	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	end := start.Add(8 * time.Second)
	sid := uuid.New()
	ctx := context.Background()

	require.NoError(t, svc.Track(ctx, model.NewLifecycleEvent(model.LifecycleEnded, sid, "bob", end).WithWindow(start, end)))
	require.NoError(t, svc.Track(ctx, model.NewLifecycleEvent(model.LifecycleWentLive, sid, "bob", start).WithWindow(start, time.Time{})))

	st, err := svc.Status(ctx, "@bob")
	require.NoError(t, err)
	assert.False(t, st.IsLive)
	assert.Equal(t, "ended", st.LastKind)
	require.NotNil(t, st.EndedAt)
	assert.True(t, st.EndedAt.Equal(end))
	assert.Len(t, history.recorded, 1)
}
