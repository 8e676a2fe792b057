package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/webitel/live-relay-service/internal/domain/model"
)

type lruEntry struct {
	status    model.StreamStatus
	expiresAt time.Time
}

// LRUStore keeps statuses in process memory. Used when no Redis is configured.
type LRUStore struct {
	// [MEMORY_MANAGEMENT] Bounded cache; least recently queried identifiers go first.
	cache *lru.Cache[string, lruEntry]
	ttl   time.Duration

	mu  sync.Mutex
	now func() time.Time
}

func NewLRUStore(size int, ttl time.Duration) (*LRUStore, error) {
	cache, err := lru.New[string, lruEntry](size)
	if err != nil {
		return nil, fmt.Errorf("status cache: %w", err)
	}
	return &LRUStore{cache: cache, ttl: ttl, now: time.Now}, nil
}

func (s *LRUStore) Get(_ context.Context, identifier string) (model.StreamStatus, error) {
	e, ok := s.cache.Get(identifier)
	if !ok {
		return model.StreamStatus{}, model.ErrStatusNotFound
	}
	if s.ttl > 0 && s.clock().After(e.expiresAt) {
		s.cache.Remove(identifier)
		return model.StreamStatus{}, model.ErrStatusNotFound
	}
	return e.status, nil
}

func (s *LRUStore) Put(_ context.Context, status model.StreamStatus) error {
	s.cache.Add(status.Identifier, lruEntry{
		status:    status,
		expiresAt: s.clock().Add(s.ttl),
	})
	return nil
}

func (s *LRUStore) Len() int { return s.cache.Len() }

func (s *LRUStore) clock() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now()
}
