package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const snapshotPrefix = "dmsd:session:"

// SnapshotStore persists dashboards between process restarts.
type SnapshotStore interface {
	Save(ctx context.Context, id string, s Snapshot, ttl time.Duration) error
	Load(ctx context.Context, id string) (Snapshot, error)
	Delete(ctx context.Context, id string) error
}

// RedisSnapshotStore keeps snapshots as JSON values that expire with the session.
type RedisSnapshotStore struct {
	cache *redis.Client
}

func NewRedisSnapshotStore(cache *redis.Client) *RedisSnapshotStore {
	return &RedisSnapshotStore{cache: cache}
}

func (s *RedisSnapshotStore) Save(ctx context.Context, id string, snap Snapshot, ttl time.Duration) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := s.cache.Set(ctx, snapshotPrefix+id, raw, ttl).Err(); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func (s *RedisSnapshotStore) Load(ctx context.Context, id string) (Snapshot, error) {
	raw, err := s.cache.Get(ctx, snapshotPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return Snapshot{}, ErrSessionNotFound
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("load snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}

func (s *RedisSnapshotStore) Delete(ctx context.Context, id string) error {
	return s.cache.Del(ctx, snapshotPrefix+id).Err()
}

// MemorySnapshotStore is the single-process fallback.
type MemorySnapshotStore struct {
	mu    sync.Mutex
	items map[string]memorySnapshot
	now   func() time.Time
}

type memorySnapshot struct {
	snap      Snapshot
	expiresAt time.Time
}

func NewMemorySnapshotStore() *MemorySnapshotStore {
	return &MemorySnapshotStore{items: make(map[string]memorySnapshot), now: time.Now}
}

func (s *MemorySnapshotStore) Save(_ context.Context, id string, snap Snapshot, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item := memorySnapshot{snap: snap}
	if ttl > 0 {
		item.expiresAt = s.now().Add(ttl)
	}
	s.items[id] = item
	return nil
}

func (s *MemorySnapshotStore) Load(_ context.Context, id string) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return Snapshot{}, ErrSessionNotFound
	}
	if !item.expiresAt.IsZero() && !s.now().Before(item.expiresAt) {
		delete(s.items, id)
		return Snapshot{}, ErrSessionNotFound
	}
	return item.snap, nil
}

func (s *MemorySnapshotStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, id)
	return nil
}
