package history

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webitel/live-relay-service/internal/domain/model"
)

func TestRecordArgs(t *testing.T) {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	end := start.Add(8 * time.Second)
	sid := uuid.New()

	ev := model.NewLifecycleEvent(model.LifecycleEnded, sid, "bob", end).WithWindow(start, end)
	args := recordArgs(ev)
	require.Len(t, args, 5)
	assert.Equal(t, sid, args[0])
	assert.Equal(t, "bob", args[1])
	assert.True(t, end.Equal(args[3].(time.Time)))
	assert.InDelta(t, 8.0, args[4].(float64), 1e-9)
}

func TestRecordArgs_FallsBackToOccurredAt(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	ev := model.NewLifecycleEvent(model.LifecycleEnded, uuid.New(), "bob", at)

	args := recordArgs(ev)
	assert.True(t, at.Equal(args[3].(time.Time)))
	assert.Nil(t, args[2].(*time.Time))
}

func TestNewPool_RejectsBadURL(t *testing.T) {
	_, err := NewPool(context.Background(), "postgres://%zz")
	assert.Error(t, err)
}

func TestNoop(t *testing.T) {
	assert.NoError(t, Noop{}.Record(context.Background(), &model.LifecycleEvent{}))
}
