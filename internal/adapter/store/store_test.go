package store

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webitel/live-relay-service/internal/domain/model"
)

func TestLRUStore_PutGet(t *testing.T) {
	s, err := NewLRUStore(2, time.Hour)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = s.Get(ctx, "bob")
	require.ErrorIs(t, err, model.ErrStatusNotFound)

	require.NoError(t, s.Put(ctx, model.StreamStatus{Identifier: "bob", IsLive: true}))
	st, err := s.Get(ctx, "bob")
	require.NoError(t, err)
	assert.True(t, st.IsLive)
}

func TestLRUStore_EvictsLeastRecent(t *testing.T) {
	s, err := NewLRUStore(2, 0)
	require.NoError(t, err)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.Put(ctx, model.StreamStatus{Identifier: id}))
	}
	assert.Equal(t, 2, s.Len())

	_, err = s.Get(ctx, "a")
	assert.ErrorIs(t, err, model.ErrStatusNotFound)
}

func TestLRUStore_Expires(t *testing.T) {
	s, err := NewLRUStore(4, time.Minute)
	require.NoError(t, err)

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	require.NoError(t, s.Put(context.Background(), model.StreamStatus{Identifier: "bob"}))

	now = now.Add(2 * time.Minute)
	_, err = s.Get(context.Background(), "bob")
	assert.ErrorIs(t, err, model.ErrStatusNotFound)
	assert.Equal(t, 0, s.Len())
}

func TestRedisStore_KeyAndUnreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 100 * time.Millisecond})
	s := NewRedisStore(client, "live_relay:stream", time.Hour)
	t.Cleanup(func() { _ = s.Close() })

	assert.Equal(t, "live_relay:stream:{bob}", s.Key("bob"))

	err := s.Put(context.Background(), model.StreamStatus{Identifier: "bob"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "live_relay:stream:{bob}")

	_, err = s.Get(context.Background(), "bob")
	require.Error(t, err)
	assert.NotErrorIs(t, err, model.ErrStatusNotFound)
}

func TestNewRedisClient_RejectsBadURL(t *testing.T) {
	_, err := NewRedisClient("not a url")
	assert.Error(t, err)
}
